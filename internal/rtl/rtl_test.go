package rtl

import (
	"context"
	"testing"
	"time"

	"github.com/cortexd/cortexd/internal/bus"
	"github.com/cortexd/cortexd/internal/domain"
	"github.com/cortexd/cortexd/internal/infra/store"
)

func TestQueueDropsPastCapacity(t *testing.T) {
	q := NewQueue(1, 100, 100)
	p := domain.DetectionPayload{ID: "a"}

	if !q.Enqueue(p) {
		t.Fatal("expected first enqueue to succeed")
	}
	if q.Enqueue(p) {
		t.Fatal("expected second enqueue to be dropped at capacity 1")
	}
	if q.Dropped() != 1 {
		t.Fatalf("expected 1 dropped, got %d", q.Dropped())
	}
}

func TestClassifierMatchesKeywordBeforeFallback(t *testing.T) {
	c := NewClassifier()
	timeoutEvent := c.Classify(domain.DetectionPayload{Type: domain.DetectionToolFailure, Message: "request timeout after 30s"})
	if timeoutEvent.RootCause != "tool_timeout" {
		t.Fatalf("expected tool_timeout, got %s", timeoutEvent.RootCause)
	}

	genericEvent := c.Classify(domain.DetectionPayload{Type: domain.DetectionToolFailure, Message: "unexpected exit code"})
	if genericEvent.RootCause != "tool_error" {
		t.Fatalf("expected tool_error, got %s", genericEvent.RootCause)
	}
}

func TestPipelineProcessPersistsFailureEvent(t *testing.T) {
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	cfg := Config{
		Store: st, Bus: bus.New(nil),
		SOPDir: t.TempDir(), GitDir: t.TempDir(), RegressionRoot: t.TempDir(),
		QueueCapacity: 10, CorrectionRPS: 5, CorrectionBurst: 5,
	}
	pipeline := New(cfg)

	payload := domain.DetectionPayload{ID: "fail-1", Type: domain.DetectionUserCorrection, Message: "that's wrong", OccurredAt: time.Now()}
	pipeline.Process(context.Background(), payload)

	events, err := st.RecentFailuresByCause("user_correction", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("RecentFailuresByCause: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 persisted failure event, got %d", len(events))
	}
}
