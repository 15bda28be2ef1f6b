// Package session implements the end-of-session snapshot and
// start-of-session restore: a decayed-relevance scan over recent
// session snapshots that produces an inherited-context preamble for the
// next session.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cortexd/cortexd/internal/domain"
	"github.com/cortexd/cortexd/internal/infra/store"
)

// Config bounds the restore scan per spec.
type Config struct {
	LookbackDays      int
	RelevanceThreshold float64
	MaxSessionsScored int
	MaxInheritedPins  int
	DecayMinFloor     float64
}

func DefaultConfig() Config {
	return Config{LookbackDays: 30, RelevanceThreshold: 0.3, MaxSessionsScored: 5, MaxInheritedPins: 10, DecayMinFloor: 0.1}
}

// Preserver writes and restores session snapshots. Snapshots live as
// JSON files under Dir; the store only holds a lookup index row per
// session so a restore scan doesn't have to stat every file on disk.
type Preserver struct {
	Dir   string
	store *store.Store
	cfg   Config
	now   func() time.Time
}

func NewPreserver(dir string, st *store.Store, cfg Config) *Preserver {
	return &Preserver{Dir: dir, store: st, cfg: cfg, now: time.Now}
}

// Snapshot writes state's JSON document to Dir and indexes it.
func (p *Preserver) Snapshot(state domain.SessionState) error {
	if err := os.MkdirAll(p.Dir, 0755); err != nil {
		return err
	}
	path := filepath.Join(p.Dir, state.SessionID+".json")
	body, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, body, 0644); err != nil {
		return err
	}
	return p.store.IndexSession(store.SessionIndexEntry{
		SessionID: state.SessionID,
		EndedAt:   state.EndedAt,
		Path:      path,
		TopicTags: strings.Join(state.HotTopics, ","),
	})
}

// Restore scans sessions within LookbackDays, scores each against
// currentTopics, ranks those at or above RelevanceThreshold, caps at
// MaxSessionsScored, and renders a preamble with pins capped at
// MaxInheritedPins.
func (p *Preserver) Restore(currentTopics []string) ([]domain.ScoredSession, string, error) {
	since := p.now().Add(-time.Duration(p.cfg.LookbackDays) * 24 * time.Hour)
	entries, err := p.store.RecentSessions(since)
	if err != nil {
		return nil, "", err
	}

	var scored []domain.ScoredSession
	for _, e := range entries {
		state, err := p.load(e.Path)
		if err != nil {
			continue
		}
		hours := p.now().Sub(state.EndedAt).Hours()
		relevance := relevanceScore(hours, state.HotTopics, currentTopics, len(state.OpenIncidents))
		if relevance < p.cfg.RelevanceThreshold {
			continue
		}
		confidence := confidenceDecay(hours, p.cfg.DecayMinFloor)
		scored = append(scored, domain.ScoredSession{Session: *state, Relevance: relevance, Confidence: confidence})
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Relevance > scored[j].Relevance })
	if len(scored) > p.cfg.MaxSessionsScored {
		scored = scored[:p.cfg.MaxSessionsScored]
	}

	return scored, renderPreamble(scored, p.cfg.MaxInheritedPins), nil
}

func (p *Preserver) load(path string) (*domain.SessionState, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s domain.SessionState
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// relevanceScore implements relevance_score = 0.4·recency +
// 0.35·topic_jaccard + 0.25·min(1, pending_tasks·0.25) where recency =
// max(0, 1 − hours/168). Open incidents stand in for "pending tasks" —
// this build has no separate task-tracking concept.
func relevanceScore(hours float64, priorTopics, currentTopics []string, pendingTasks int) float64 {
	recency := 1 - hours/168
	if recency < 0 {
		recency = 0
	}
	jaccard := topicJaccard(priorTopics, currentTopics)
	taskTerm := float64(pendingTasks) * 0.25
	if taskTerm > 1 {
		taskTerm = 1
	}
	return 0.4*recency + 0.35*jaccard + 0.25*taskTerm
}

// confidenceDecay implements factor = max(floor, 1 − (hours/168)·0.4),
// applied only at read time and never persisted back to the snapshot.
func confidenceDecay(hours, floor float64) float64 {
	f := 1 - (hours/168)*0.4
	if f < floor {
		return floor
	}
	return f
}

func topicJaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[strings.ToLower(t)] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[strings.ToLower(t)] = struct{}{}
	}
	intersection := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func renderPreamble(scored []domain.ScoredSession, maxPins int) string {
	if len(scored) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Inherited context from prior sessions:\n")
	pinCount := 0
	for _, s := range scored {
		b.WriteString(fmt.Sprintf("- session %s (relevance %.2f, confidence %.2f): %s\n",
			s.Session.SessionID, s.Relevance, s.Confidence, truncate(s.Session.WorkingMemory, 200)))
		for _, pin := range s.Session.Pins {
			if pinCount >= maxPins {
				break
			}
			b.WriteString(fmt.Sprintf("  pinned: %s\n", truncate(pin.Content, 160)))
			pinCount++
		}
	}
	return b.String()
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
