package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cortexd/cortexd/internal/domain"
)

var rtlMigrations = []string{
	`CREATE TABLE IF NOT EXISTS failure_events (
		id             TEXT PRIMARY KEY,
		type           TEXT NOT NULL,
		root_cause     TEXT NOT NULL DEFAULT '',
		message        TEXT NOT NULL,
		context        TEXT NOT NULL DEFAULT '{}',
		targets        TEXT NOT NULL DEFAULT '[]',
		status         TEXT NOT NULL,
		occurred_at    INTEGER NOT NULL,
		classified_at  INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_failure_events_cause ON failure_events(root_cause, occurred_at)`,
	`CREATE TABLE IF NOT EXISTS propagation_records (
		id          TEXT PRIMARY KEY,
		failure_id  TEXT NOT NULL,
		action      TEXT NOT NULL,
		target      TEXT NOT NULL,
		tier        INTEGER NOT NULL,
		success     BOOLEAN NOT NULL,
		detail      TEXT NOT NULL DEFAULT '',
		at          INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_propagation_failure ON propagation_records(failure_id)`,
}

// InsertFailureEvent persists a classified failure event.
func (s *Store) InsertFailureEvent(e domain.FailureEvent) error {
	ctxJSON, err := json.Marshal(e.Context)
	if err != nil {
		return err
	}
	targetsJSON, err := json.Marshal(e.PropagationTargets)
	if err != nil {
		return err
	}
	_, err = s.Run(
		`INSERT INTO failure_events (id, type, root_cause, message, context, targets, status, occurred_at, classified_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Type), e.RootCause, e.Message, string(ctxJSON), string(targetsJSON),
		string(e.Status), e.OccurredAt.Unix(), nullableUnixPtr(&e.ClassifiedAt),
	)
	return err
}

// UpdateFailureStatus transitions a failure event's propagation status.
func (s *Store) UpdateFailureStatus(id string, status domain.PropagationStatus) error {
	_, err := s.Run(`UPDATE failure_events SET status = ? WHERE id = ?`, string(status), id)
	return err
}

// RecentFailuresByCause returns failure events sharing a root cause within
// the given lookback window, most recent first — used by the recurrence
// detector.
func (s *Store) RecentFailuresByCause(rootCause string, since time.Time) ([]domain.FailureEvent, error) {
	var out []domain.FailureEvent
	err := s.All(
		`SELECT id, type, root_cause, message, context, targets, status, occurred_at, classified_at
		 FROM failure_events WHERE root_cause = ? AND occurred_at >= ? ORDER BY occurred_at DESC`,
		[]any{rootCause, since.Unix()},
		func(rows *sql.Rows) error {
			ev, err := scanFailureEvent(rows)
			if err != nil {
				return err
			}
			out = append(out, *ev)
			return nil
		},
	)
	return out, err
}

func scanFailureEvent(s scanner) (*domain.FailureEvent, error) {
	var e domain.FailureEvent
	var typ, status, ctxJSON, targetsJSON string
	var occurredAt int64
	var classifiedAt sql.NullInt64
	if err := s.Scan(&e.ID, &typ, &e.RootCause, &e.Message, &ctxJSON, &targetsJSON, &status, &occurredAt, &classifiedAt); err != nil {
		return nil, err
	}
	e.Type = domain.DetectionType(typ)
	e.Status = domain.PropagationStatus(status)
	e.OccurredAt = time.Unix(occurredAt, 0)
	if classifiedAt.Valid {
		e.ClassifiedAt = time.Unix(classifiedAt.Int64, 0)
	}
	_ = json.Unmarshal([]byte(ctxJSON), &e.Context)
	_ = json.Unmarshal([]byte(targetsJSON), &e.PropagationTargets)
	return &e, nil
}

// InsertPropagationRecord appends one propagation action row.
func (s *Store) InsertPropagationRecord(r domain.PropagationRecord) error {
	_, err := s.Run(
		`INSERT INTO propagation_records (id, failure_id, action, target, tier, success, detail, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.FailureID, r.Action, r.Target, r.Tier, r.Success, r.Detail, r.At.Unix(),
	)
	return err
}
