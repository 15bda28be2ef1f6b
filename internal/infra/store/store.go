// Package store provides the embedded SQLite-backed relational store shared
// by every supervisory-plane subsystem. One store, one file, WAL mode,
// single writer — callers never see a transaction; atomicity across
// multi-row writes is the caller's responsibility via sequential writes and
// explicit compensation.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, no CGO required
)

// Store wraps a SQLite connection with WAL mode and phased migrations.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at dir/cortex.db, applying every
// registered migration. Safe to call repeatedly — migrations are
// idempotent.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "cortex.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	db.SetMaxOpenConns(1) // sqlite is single-writer
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close cleanly shuts down the database.
func (s *Store) Close() error { return s.db.Close() }

// Ping checks database connectivity.
func (s *Store) Ping() error { return s.db.Ping() }

// Run executes a write statement (INSERT/UPDATE/DELETE).
func (s *Store) Run(query string, args ...any) (sql.Result, error) {
	return s.db.Exec(query, args...)
}

// Get scans a single row into the fields pointed to by dest.
func (s *Store) Get(query string, args []any, dest ...any) error {
	return s.db.QueryRow(query, args...).Scan(dest...)
}

// All runs query and invokes scan once per returned row.
func (s *Store) All(query string, args []any, scan func(*sql.Rows) error) error {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// migrate runs every phased migration list in order. Each list is owned by
// the subsystem file that needs it (incidents.go, rtl.go, etc.).
func (s *Store) migrate() error {
	var all []string
	all = append(all, incidentMigrations...)
	all = append(all, rtlMigrations...)
	all = append(all, compressMigrations...)
	all = append(all, crossdomainMigrations...)
	all = append(all, sessionMigrations...)
	all = append(all, cortexMigrations...)

	for _, m := range all {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// nullableString converts an empty string to SQL NULL for optional columns.
func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
