package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cortexd/cortexd/internal/domain"
)

var crossdomainMigrations = []string{
	`CREATE TABLE IF NOT EXISTS pattern_fingerprints (
		id            TEXT PRIMARY KEY,
		source_domain TEXT NOT NULL,
		extractor_ver INTEGER NOT NULL,
		vector        TEXT NOT NULL,
		label         TEXT NOT NULL DEFAULT '',
		extracted_at  INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_fingerprints_domain ON pattern_fingerprints(source_domain)`,
}

// InsertFingerprint persists one extractor's structural encoding.
func (s *Store) InsertFingerprint(f domain.PatternFingerprint) error {
	vecJSON, err := json.Marshal(f.Vector)
	if err != nil {
		return err
	}
	_, err = s.Run(
		`INSERT INTO pattern_fingerprints (id, source_domain, extractor_ver, vector, label, extracted_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		f.ID, f.SourceDomain, f.ExtractorVer, string(vecJSON), f.Label, f.ExtractedAt.Unix(),
	)
	return err
}

// ListFingerprintsExcludingDomain returns every fingerprint whose source
// domain differs from domainName — the candidate pool for pairwise
// cross-domain matching.
func (s *Store) ListFingerprintsExcludingDomain(domainName string) ([]domain.PatternFingerprint, error) {
	var out []domain.PatternFingerprint
	err := s.All(
		`SELECT id, source_domain, extractor_ver, vector, label, extracted_at
		 FROM pattern_fingerprints WHERE source_domain != ? ORDER BY extracted_at DESC`,
		[]any{domainName},
		func(rows *sql.Rows) error {
			f, err := scanFingerprint(rows)
			if err != nil {
				return err
			}
			out = append(out, *f)
			return nil
		},
	)
	return out, err
}

// ListFingerprintsByDomain returns every fingerprint extracted for domainName.
func (s *Store) ListFingerprintsByDomain(domainName string) ([]domain.PatternFingerprint, error) {
	var out []domain.PatternFingerprint
	err := s.All(
		`SELECT id, source_domain, extractor_ver, vector, label, extracted_at
		 FROM pattern_fingerprints WHERE source_domain = ? ORDER BY extracted_at DESC`,
		[]any{domainName},
		func(rows *sql.Rows) error {
			f, err := scanFingerprint(rows)
			if err != nil {
				return err
			}
			out = append(out, *f)
			return nil
		},
	)
	return out, err
}

func scanFingerprint(s scanner) (*domain.PatternFingerprint, error) {
	var f domain.PatternFingerprint
	var vecJSON string
	var extractedAt int64
	if err := s.Scan(&f.ID, &f.SourceDomain, &f.ExtractorVer, &vecJSON, &f.Label, &extractedAt); err != nil {
		return nil, err
	}
	f.ExtractedAt = time.Unix(extractedAt, 0)
	_ = json.Unmarshal([]byte(vecJSON), &f.Vector)
	return &f, nil
}
