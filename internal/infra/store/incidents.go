package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cortexd/cortexd/internal/domain"
)

var incidentMigrations = []string{
	`CREATE TABLE IF NOT EXISTS incidents (
		id            TEXT PRIMARY KEY,
		anomaly_type  TEXT NOT NULL,
		target_id     TEXT NOT NULL,
		severity      TEXT NOT NULL,
		state         TEXT NOT NULL,
		attempts      INTEGER NOT NULL DEFAULT 0,
		confidence    REAL NOT NULL DEFAULT 0,
		runbook_id    TEXT NOT NULL DEFAULT '',
		audit         TEXT NOT NULL DEFAULT '[]',
		detected_at   INTEGER NOT NULL,
		updated_at    INTEGER NOT NULL,
		resolved_at   INTEGER,
		dismissed_at  INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_incidents_active
		ON incidents(anomaly_type, target_id)
		WHERE state NOT IN ('resolved','escalated','self_resolved','dismissed')`,
	`CREATE TABLE IF NOT EXISTS runbook_stats (
		runbook_id        TEXT PRIMARY KEY,
		mode              TEXT NOT NULL DEFAULT 'dry_run',
		dry_run_count     INTEGER NOT NULL DEFAULT 0,
		success_count     INTEGER NOT NULL DEFAULT 0,
		failure_count     INTEGER NOT NULL DEFAULT 0,
		last_executed_at  INTEGER
	)`,
}

// UpsertIncident inserts a new incident or updates an existing one's
// mutable fields. Callers determine identity via FindActiveIncident first.
func (s *Store) UpsertIncident(inc domain.Incident) error {
	auditJSON, err := json.Marshal(inc.Audit)
	if err != nil {
		return err
	}
	_, err = s.Run(
		`INSERT INTO incidents (id, anomaly_type, target_id, severity, state, attempts, confidence, runbook_id, audit, detected_at, updated_at, resolved_at, dismissed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			severity=excluded.severity,
			state=excluded.state,
			attempts=excluded.attempts,
			confidence=excluded.confidence,
			runbook_id=excluded.runbook_id,
			audit=excluded.audit,
			updated_at=excluded.updated_at,
			resolved_at=excluded.resolved_at,
			dismissed_at=excluded.dismissed_at`,
		inc.ID, string(inc.AnomalyType), inc.TargetID, string(inc.Severity), string(inc.State),
		inc.Attempts, inc.Confidence, inc.RunbookID, string(auditJSON),
		inc.DetectedAt.Unix(), inc.UpdatedAt.Unix(),
		nullableUnixPtr(inc.ResolvedAt), nullableUnixPtr(inc.DismissedAt),
	)
	return err
}

// FindActiveIncident returns the non-terminal incident for the given
// (anomalyType, targetID) key, or nil if none exists.
func (s *Store) FindActiveIncident(anomalyType domain.AnomalyType, targetID string) (*domain.Incident, error) {
	row := s.db.QueryRow(
		`SELECT id, anomaly_type, target_id, severity, state, attempts, confidence, runbook_id, audit, detected_at, updated_at, resolved_at, dismissed_at
		 FROM incidents
		 WHERE anomaly_type = ? AND target_id = ?
		   AND state NOT IN ('resolved','escalated','self_resolved','dismissed')
		 LIMIT 1`,
		string(anomalyType), targetID,
	)
	inc, err := scanIncident(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return inc, err
}

// GetIncident fetches a single incident by ID.
func (s *Store) GetIncident(id string) (*domain.Incident, error) {
	row := s.db.QueryRow(
		`SELECT id, anomaly_type, target_id, severity, state, attempts, confidence, runbook_id, audit, detected_at, updated_at, resolved_at, dismissed_at
		 FROM incidents WHERE id = ?`, id,
	)
	inc, err := scanIncident(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrIncidentNotFound
	}
	return inc, err
}

// ListIncidents returns incidents, optionally filtered to non-terminal
// states only.
func (s *Store) ListIncidents(activeOnly bool) ([]domain.Incident, error) {
	query := `SELECT id, anomaly_type, target_id, severity, state, attempts, confidence, runbook_id, audit, detected_at, updated_at, resolved_at, dismissed_at FROM incidents`
	if activeOnly {
		query += ` WHERE state NOT IN ('resolved','escalated','self_resolved','dismissed')`
	}
	query += ` ORDER BY detected_at DESC`

	var out []domain.Incident
	err := s.All(query, nil, func(rows *sql.Rows) error {
		inc, err := scanIncident(rows)
		if err != nil {
			return err
		}
		out = append(out, *inc)
		return nil
	})
	return out, err
}

func scanIncident(s scanner) (*domain.Incident, error) {
	var inc domain.Incident
	var anomalyType, severity, state string
	var auditJSON string
	var detectedAt, updatedAt int64
	var resolvedAt, dismissedAt sql.NullInt64

	err := s.Scan(&inc.ID, &anomalyType, &inc.TargetID, &severity, &state,
		&inc.Attempts, &inc.Confidence, &inc.RunbookID, &auditJSON,
		&detectedAt, &updatedAt, &resolvedAt, &dismissedAt)
	if err != nil {
		return nil, err
	}

	inc.AnomalyType = domain.AnomalyType(anomalyType)
	inc.Severity = domain.Severity(severity)
	inc.State = domain.IncidentState(state)
	inc.DetectedAt = time.Unix(detectedAt, 0)
	inc.UpdatedAt = time.Unix(updatedAt, 0)
	if resolvedAt.Valid {
		t := time.Unix(resolvedAt.Int64, 0)
		inc.ResolvedAt = &t
	}
	if dismissedAt.Valid {
		t := time.Unix(dismissedAt.Int64, 0)
		inc.DismissedAt = &t
	}
	_ = json.Unmarshal([]byte(auditJSON), &inc.Audit)
	return &inc, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func nullableUnixPtr(t *time.Time) sql.NullInt64 {
	if t == nil || t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

// ─── Runbook stats ───────────────────────────────────────────────────────────

// RunbookStats is the persisted graduation state of a runbook definition.
type RunbookStats struct {
	RunbookID      string
	Mode           domain.RunbookMode
	DryRunCount    int
	SuccessCount   int
	FailureCount   int
	LastExecutedAt time.Time
}

// GetRunbookStats returns the persisted stats for a runbook, defaulting to
// a fresh dry-run record if none exists yet.
func (s *Store) GetRunbookStats(runbookID string) (RunbookStats, error) {
	row := s.db.QueryRow(
		`SELECT runbook_id, mode, dry_run_count, success_count, failure_count, last_executed_at
		 FROM runbook_stats WHERE runbook_id = ?`, runbookID,
	)
	var rs RunbookStats
	var mode string
	var lastExec sql.NullInt64
	err := row.Scan(&rs.RunbookID, &mode, &rs.DryRunCount, &rs.SuccessCount, &rs.FailureCount, &lastExec)
	if err == sql.ErrNoRows {
		return RunbookStats{RunbookID: runbookID, Mode: domain.RunbookModeDryRun}, nil
	}
	if err != nil {
		return RunbookStats{}, err
	}
	rs.Mode = domain.RunbookMode(mode)
	if lastExec.Valid {
		rs.LastExecutedAt = time.Unix(lastExec.Int64, 0)
	}
	return rs, nil
}

// SaveRunbookStats upserts the graduation state for a runbook.
func (s *Store) SaveRunbookStats(rs RunbookStats) error {
	_, err := s.Run(
		`INSERT INTO runbook_stats (runbook_id, mode, dry_run_count, success_count, failure_count, last_executed_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(runbook_id) DO UPDATE SET
			mode=excluded.mode,
			dry_run_count=excluded.dry_run_count,
			success_count=excluded.success_count,
			failure_count=excluded.failure_count,
			last_executed_at=excluded.last_executed_at`,
		rs.RunbookID, string(rs.Mode), rs.DryRunCount, rs.SuccessCount, rs.FailureCount,
		nullableUnixPtr(&rs.LastExecutedAt),
	)
	return err
}
