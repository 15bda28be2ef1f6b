package store

import (
	"database/sql"
	"time"

	"github.com/cortexd/cortexd/internal/domain"
)

var cortexMigrations = []string{
	`CREATE TABLE IF NOT EXISTS cortex_attempts (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id         TEXT NOT NULL,
		selected_model  TEXT NOT NULL,
		route           TEXT NOT NULL,
		tokens_in       INTEGER NOT NULL DEFAULT 0,
		tokens_out      INTEGER NOT NULL DEFAULT 0,
		duration_ms     INTEGER NOT NULL DEFAULT 0,
		success         BOOLEAN NOT NULL,
		fallback_reason TEXT NOT NULL DEFAULT '',
		at              INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cortex_attempts_task ON cortex_attempts(task_id)`,
}

// RecordAttempt persists one routing attempt for later inspection via
// cortexctl or the admin API.
func (s *Store) RecordAttempt(taskID string, a domain.AttemptEvent) error {
	_, err := s.Run(
		`INSERT INTO cortex_attempts (task_id, selected_model, route, tokens_in, tokens_out, duration_ms, success, fallback_reason, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		taskID, a.SelectedModel, string(a.Route), a.TokensIn, a.TokensOut, a.DurationMs, a.Success,
		string(a.FallbackReason), a.At.Unix(),
	)
	return err
}

// AttemptsForTask returns every recorded attempt for a task, in order.
func (s *Store) AttemptsForTask(taskID string) ([]domain.AttemptEvent, error) {
	var out []domain.AttemptEvent
	err := s.All(
		`SELECT selected_model, route, tokens_in, tokens_out, duration_ms, success, fallback_reason, at
		 FROM cortex_attempts WHERE task_id = ? ORDER BY id ASC`,
		[]any{taskID},
		func(rows *sql.Rows) error {
			var a domain.AttemptEvent
			var route, reason string
			var at int64
			if err := rows.Scan(&a.SelectedModel, &route, &a.TokensIn, &a.TokensOut, &a.DurationMs, &a.Success, &reason, &at); err != nil {
				return err
			}
			a.Route = domain.RouteType(route)
			a.FallbackReason = domain.ErrorClass(reason)
			a.At = time.Unix(at, 0)
			out = append(out, a)
			return nil
		},
	)
	return out, err
}
