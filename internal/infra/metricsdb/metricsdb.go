// Package metricsdb is the append-only domain metrics sink named in the
// supervisory plane's external interfaces: a second SQLite database,
// write-only from cortexd's own perspective — it exists for external
// dashboards to read, never for cortexd to query back.
package metricsdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DB is the append-only metrics sink.
type DB struct {
	db *sql.DB
}

// Open creates or opens the database at dir/metrics.db.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create metrics dir: %w", err)
	}
	dbPath := filepath.Join(dir, "metrics.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open metrics db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping metrics db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate metrics db: %w", err)
	}
	return d, nil
}

func (d *DB) Close() error { return d.db.Close() }

func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS metrics_values (
			id    INTEGER PRIMARY KEY AUTOINCREMENT,
			name  TEXT NOT NULL,
			value REAL NOT NULL,
			tags  TEXT NOT NULL DEFAULT '{}',
			at    INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_metrics_values_name ON metrics_values(name, at)`,
		`CREATE TABLE IF NOT EXISTS metrics_events (
			id    INTEGER PRIMARY KEY AUTOINCREMENT,
			name  TEXT NOT NULL,
			tags  TEXT NOT NULL DEFAULT '{}',
			at    INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_metrics_events_name ON metrics_events(name, at)`,
	}
	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// RecordValue appends a gauge-like observation.
func (d *DB) RecordValue(name string, value float64, tags map[string]string, at time.Time) error {
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return err
	}
	_, err = d.db.Exec(`INSERT INTO metrics_values (name, value, tags, at) VALUES (?, ?, ?, ?)`,
		name, value, string(tagsJSON), at.Unix())
	return err
}

// RecordEvent appends a discrete event marker (no numeric value).
func (d *DB) RecordEvent(name string, tags map[string]string, at time.Time) error {
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return err
	}
	_, err = d.db.Exec(`INSERT INTO metrics_events (name, tags, at) VALUES (?, ?, ?)`,
		name, string(tagsJSON), at.Unix())
	return err
}
