package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cortexd/cortexd/internal/domain"
)

var compressMigrations = []string{
	`CREATE TABLE IF NOT EXISTS memory_records (
		id              TEXT PRIMARY KEY,
		domain          TEXT NOT NULL,
		content         TEXT NOT NULL,
		categories      TEXT NOT NULL DEFAULT '[]',
		importance      REAL NOT NULL,
		token_count     INTEGER NOT NULL,
		compressed_from TEXT,
		archived_by     TEXT,
		created_at      INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_memory_domain ON memory_records(domain, archived_by)`,
	`CREATE TABLE IF NOT EXISTS atoms (
		id           TEXT PRIMARY KEY,
		domain       TEXT NOT NULL,
		subject      TEXT NOT NULL,
		action       TEXT NOT NULL,
		outcome      TEXT NOT NULL,
		consequences TEXT NOT NULL,
		confidence   REAL NOT NULL,
		source       TEXT NOT NULL,
		categories   TEXT NOT NULL DEFAULT '[]',
		created_at   INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS compression_runs (
		run_id          TEXT PRIMARY KEY,
		clusters_found  INTEGER NOT NULL,
		atoms_written   INTEGER NOT NULL,
		refusals        INTEGER NOT NULL,
		rollbacks       INTEGER NOT NULL,
		started_at      INTEGER NOT NULL,
		finished_at     INTEGER
	)`,
}

// ListEligibleMemories returns memory records not yet absorbed into a
// compressed record (archived_by IS NULL), oldest first.
func (s *Store) ListEligibleMemories(domainName string) ([]domain.MemoryRecord, error) {
	var out []domain.MemoryRecord
	err := s.All(
		`SELECT id, domain, content, categories, importance, token_count, compressed_from, archived_by, created_at
		 FROM memory_records WHERE domain = ? AND archived_by IS NULL ORDER BY created_at ASC`,
		[]any{domainName},
		func(rows *sql.Rows) error {
			m, err := scanMemoryRecordRow(rows)
			if err != nil {
				return err
			}
			out = append(out, m)
			return nil
		},
	)
	return out, err
}

// GetMemoryRecord fetches a single memory record by ID — used to read
// back a just-archived compressed row for post-write verification.
func (s *Store) GetMemoryRecord(id string) (*domain.MemoryRecord, error) {
	row := s.db.QueryRow(
		`SELECT id, domain, content, categories, importance, token_count, compressed_from, archived_by, created_at
		 FROM memory_records WHERE id = ?`, id,
	)
	m, err := scanMemoryRecordRow(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrAtomNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemoryRecordRow(row rowScanner) (domain.MemoryRecord, error) {
	var m domain.MemoryRecord
	var categoriesJSON, compressedFromJSON string
	var archivedBy sql.NullString
	var createdAt int64
	err := row.Scan(&m.ID, &m.Domain, &m.Content, &categoriesJSON, &m.Importance, &m.TokenCount,
		&compressedFromJSON, &archivedBy, &createdAt)
	if err != nil {
		return domain.MemoryRecord{}, err
	}
	m.CreatedAt = time.Unix(createdAt, 0)
	m.ArchivedBy = archivedBy.String
	_ = json.Unmarshal([]byte(categoriesJSON), &m.Categories)
	if compressedFromJSON != "" {
		_ = json.Unmarshal([]byte(compressedFromJSON), &m.CompressedFrom)
	}
	return m, nil
}

// GetMemoryImportance returns the current importance value for a memory —
// used to capture the "original importance" before a downgrade so rollback
// can restore it exactly.
func (s *Store) GetMemoryImportance(id string) (float64, error) {
	var imp float64
	err := s.db.QueryRow(`SELECT importance FROM memory_records WHERE id = ?`, id).Scan(&imp)
	return imp, err
}

// InsertCompressedMemory writes the compression Writer's mandatory
// output: a new short-term-memory row carrying the distillation summary,
// its derived categories, its importance, and the member IDs it was
// compressed from.
func (s *Store) InsertCompressedMemory(rec domain.MemoryRecord) error {
	categoriesJSON, err := json.Marshal(rec.Categories)
	if err != nil {
		return err
	}
	compressedFromJSON, err := json.Marshal(rec.CompressedFrom)
	if err != nil {
		return err
	}
	_, err = s.Run(
		`INSERT INTO memory_records (id, domain, content, categories, importance, token_count, compressed_from, archived_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?)`,
		rec.ID, rec.Domain, rec.Content, string(categoriesJSON), rec.Importance, rec.TokenCount,
		string(compressedFromJSON), rec.CreatedAt.Unix(),
	)
	return err
}

// DeleteMemoryRecord removes a memory record row — used as the
// compensating write when a compression run must roll back a
// just-written compressed record.
func (s *Store) DeleteMemoryRecord(id string) error {
	_, err := s.Run(`DELETE FROM memory_records WHERE id = ?`, id)
	return err
}

// DowngradeMemoryImportance sets a member's importance after it has been
// absorbed into the compressed record archivedBy.
func (s *Store) DowngradeMemoryImportance(id string, newImportance float64, archivedBy string) error {
	_, err := s.Run(`UPDATE memory_records SET importance = ?, archived_by = ? WHERE id = ?`, newImportance, archivedBy, id)
	return err
}

// RestoreMemoryImportance reverts a member's importance and clears its
// archived_by — the compensating write used on rollback.
func (s *Store) RestoreMemoryImportance(id string, originalImportance float64) error {
	_, err := s.Run(`UPDATE memory_records SET importance = ?, archived_by = NULL WHERE id = ?`, originalImportance, id)
	return err
}

// InsertAtom writes an optional enrichment atom record, linked to its
// compressed memory record by the caller.
func (s *Store) InsertAtom(a domain.Atom) error {
	categoriesJSON, err := json.Marshal(a.Categories)
	if err != nil {
		return err
	}
	_, err = s.Run(
		`INSERT INTO atoms (id, domain, subject, action, outcome, consequences, confidence, source, categories, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Domain, a.Subject, a.Action, a.Outcome, a.Consequences, a.Confidence, a.Source,
		string(categoriesJSON), a.CreatedAt.Unix(),
	)
	return err
}

// DeleteAtom removes an atom row — used as the compensating write when a
// compression run must roll back after an enrichment atom was already
// written.
func (s *Store) DeleteAtom(id string) error {
	_, err := s.Run(`DELETE FROM atoms WHERE id = ?`, id)
	return err
}

// GetAtom fetches a single enrichment atom by ID.
func (s *Store) GetAtom(id string) (*domain.Atom, error) {
	row := s.db.QueryRow(
		`SELECT id, domain, subject, action, outcome, consequences, confidence, source, categories, created_at
		 FROM atoms WHERE id = ?`, id,
	)
	var a domain.Atom
	var categoriesJSON string
	var createdAt int64
	err := row.Scan(&a.ID, &a.Domain, &a.Subject, &a.Action, &a.Outcome, &a.Consequences, &a.Confidence, &a.Source,
		&categoriesJSON, &createdAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrAtomNotFound
	}
	if err != nil {
		return nil, err
	}
	a.CreatedAt = time.Unix(createdAt, 0)
	_ = json.Unmarshal([]byte(categoriesJSON), &a.Categories)
	return &a, nil
}

// CompressionRunSummary aggregates counters for one compression pass —
// mirrors the reporter's JSON artifact shape.
type CompressionRunSummary struct {
	RunID         string
	ClustersFound int
	AtomsWritten  int
	Refusals      int
	Rollbacks     int
	StartedAt     time.Time
	FinishedAt    time.Time
}

// InsertCompressionRun records the outcome of one compression pass.
func (s *Store) InsertCompressionRun(r CompressionRunSummary) error {
	_, err := s.Run(
		`INSERT INTO compression_runs (run_id, clusters_found, atoms_written, refusals, rollbacks, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.ClustersFound, r.AtomsWritten, r.Refusals, r.Rollbacks,
		r.StartedAt.Unix(), nullableUnixPtr(&r.FinishedAt),
	)
	return err
}
