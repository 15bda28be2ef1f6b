package store

import (
	"database/sql"
	"time"
)

var sessionMigrations = []string{
	`CREATE TABLE IF NOT EXISTS session_index (
		session_id  TEXT PRIMARY KEY,
		ended_at    INTEGER NOT NULL,
		path        TEXT NOT NULL,
		topic_tags  TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_session_ended ON session_index(ended_at)`,
}

// SessionIndexEntry is the fast-lookup row pointing at an on-disk session
// snapshot file.
type SessionIndexEntry struct {
	SessionID string
	EndedAt   time.Time
	Path      string
	TopicTags string
}

// IndexSession records where a session snapshot file lives for fast
// lookback scanning — the snapshot body itself is a file, not a row, per
// the session preserver's storage contract.
func (s *Store) IndexSession(e SessionIndexEntry) error {
	_, err := s.Run(
		`INSERT INTO session_index (session_id, ended_at, path, topic_tags) VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET ended_at=excluded.ended_at, path=excluded.path, topic_tags=excluded.topic_tags`,
		e.SessionID, e.EndedAt.Unix(), e.Path, e.TopicTags,
	)
	return err
}

// RecentSessions returns index entries ended within the lookback window,
// most recent first.
func (s *Store) RecentSessions(since time.Time) ([]SessionIndexEntry, error) {
	var out []SessionIndexEntry
	err := s.All(
		`SELECT session_id, ended_at, path, topic_tags FROM session_index WHERE ended_at >= ? ORDER BY ended_at DESC`,
		[]any{since.Unix()},
		func(rows *sql.Rows) error {
			var e SessionIndexEntry
			var endedAt int64
			if err := rows.Scan(&e.SessionID, &endedAt, &e.Path, &e.TopicTags); err != nil {
				return err
			}
			e.EndedAt = time.Unix(endedAt, 0)
			out = append(out, e)
			return nil
		},
	)
	return out, err
}
