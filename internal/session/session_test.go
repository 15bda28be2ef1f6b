package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cortexd/cortexd/internal/domain"
	"github.com/cortexd/cortexd/internal/infra/store"
)

func TestSnapshotThenRestoreScoresRecentSession(t *testing.T) {
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	dir := t.TempDir()
	now := time.Now()
	p := NewPreserver(dir, st, DefaultConfig())
	p.now = func() time.Time { return now }

	state := domain.SessionState{
		SessionID:     "sess-1",
		EndedAt:       now.Add(-2 * time.Hour),
		WorkingMemory: "debugging the incident pipeline",
		HotTopics:     []string{"incident", "pipeline"},
		OpenIncidents: []string{"INC-1"},
		Pins:          []domain.PinnedContext{{Content: "remember the flaky probe"}},
	}
	if err := p.Snapshot(state); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	scored, preamble, err := p.Restore([]string{"incident", "pipeline"})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if len(scored) != 1 {
		t.Fatalf("expected 1 scored session, got %d", len(scored))
	}
	if scored[0].Relevance <= 0 {
		t.Fatalf("expected positive relevance, got %f", scored[0].Relevance)
	}
	if preamble == "" {
		t.Fatal("expected non-empty preamble")
	}
}

func TestRelevanceScoreZeroAtExactlyOneWeek(t *testing.T) {
	score := relevanceScore(168, nil, nil, 0)
	if score != 0 {
		t.Fatalf("expected 0 relevance at exactly 168 hours with no topics/tasks, got %f", score)
	}
}

func TestConfidenceDecayRespectsFloor(t *testing.T) {
	factor := confidenceDecay(10000, 0.1)
	if factor != 0.1 {
		t.Fatalf("expected decay to clamp at floor 0.1, got %f", factor)
	}
}

func TestHotTopicsFiltersStopWordsAndRanksByFrequency(t *testing.T) {
	topics := HotTopics("the incident and the pipeline and the incident again", 2)
	if len(topics) != 2 {
		t.Fatalf("expected 2 topics, got %v", topics)
	}
	if topics[0] != "incident" {
		t.Fatalf("expected incident to rank first, got %v", topics)
	}
}

func TestImportLegacyYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "legacy.yaml")
	body := "session_id: legacy-1\nworking_memory: old notes\npins:\n  - remember this\nhot_topics:\n  - legacy\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write legacy file: %v", err)
	}

	state, err := ImportLegacyYAML(path, time.Now())
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if state.SessionID != "legacy-1" {
		t.Fatalf("expected session id legacy-1, got %s", state.SessionID)
	}
	if len(state.Pins) != 1 || state.Pins[0].Content != "remember this" {
		t.Fatalf("expected 1 imported pin, got %v", state.Pins)
	}
}
