package incident

import (
	"testing"
	"time"

	"github.com/cortexd/cortexd/internal/domain"
	"github.com/cortexd/cortexd/internal/infra/store"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return New(st, DefaultConfig())
}

func TestUpsertIncidentCreatesDetected(t *testing.T) {
	m := newTestManager(t)
	a := domain.Anomaly{Type: domain.AnomalyDiskFull, TargetID: "node-1", Severity: domain.SeverityCritical, DetectedAt: time.Now()}

	inc, err := m.UpsertIncident(a)
	if err != nil {
		t.Fatalf("UpsertIncident: %v", err)
	}
	if inc.State != domain.IncidentDetected {
		t.Fatalf("expected Detected, got %s", inc.State)
	}
}

func TestUpsertIncidentDeduplicatesActive(t *testing.T) {
	m := newTestManager(t)
	a := domain.Anomaly{Type: domain.AnomalyDiskFull, TargetID: "node-1", Severity: domain.SeverityMedium, DetectedAt: time.Now()}

	first, err := m.UpsertIncident(a)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	a.Severity = domain.SeverityCritical
	second, err := m.UpsertIncident(a)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected dedup to same incident ID, got %s vs %s", first.ID, second.ID)
	}
	if second.Severity != domain.SeverityCritical {
		t.Fatalf("expected severity to update in place")
	}

	all, err := m.List(true)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected exactly 1 active incident, got %d", len(all))
	}
}

func TestTransitionRecordsOffMatrixJump(t *testing.T) {
	m := newTestManager(t)
	inc, err := m.UpsertIncident(domain.Anomaly{Type: domain.AnomalyCPUOverload, TargetID: "node-2", DetectedAt: time.Now()})
	if err != nil {
		t.Fatalf("UpsertIncident: %v", err)
	}

	// No transition matrix is enforced beyond the terminal-state guard: an
	// off-matrix jump still succeeds and is recorded, for forensic clarity.
	if err := m.Transition(inc.ID, domain.IncidentResolved, "skip ahead"); err != nil {
		t.Fatalf("expected off-matrix jump to succeed, got %v", err)
	}

	got, err := m.Get(inc.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != domain.IncidentResolved {
		t.Fatalf("expected Resolved, got %s", got.State)
	}
	last := got.Audit[len(got.Audit)-1]
	if last.From != domain.IncidentDetected || last.To != domain.IncidentResolved || last.Detail != "skip ahead" {
		t.Fatalf("expected audit entry for the off-matrix jump, got %+v", last)
	}
}

func TestTransitionToTerminalThenRejectsFurtherTransitions(t *testing.T) {
	m := newTestManager(t)
	inc, _ := m.UpsertIncident(domain.Anomaly{Type: domain.AnomalyCPUOverload, TargetID: "node-3", DetectedAt: time.Now()})

	if err := m.Transition(inc.ID, domain.IncidentDiagnosing, ""); err != nil {
		t.Fatalf("transition to diagnosing: %v", err)
	}
	if err := m.Transition(inc.ID, domain.IncidentRemediating, ""); err != nil {
		t.Fatalf("transition to remediating: %v", err)
	}
	if err := m.Transition(inc.ID, domain.IncidentVerifying, ""); err != nil {
		t.Fatalf("transition to verifying: %v", err)
	}
	if err := m.Transition(inc.ID, domain.IncidentResolved, ""); err != nil {
		t.Fatalf("transition to resolved: %v", err)
	}

	if err := m.Transition(inc.ID, domain.IncidentEscalated, ""); err != domain.ErrIncidentTerminal {
		t.Fatalf("expected ErrIncidentTerminal, got %v", err)
	}
}

func TestDismissSuppressesFutureDetections(t *testing.T) {
	m := newTestManager(t)
	a := domain.Anomaly{Type: domain.AnomalyMemoryExhausted, TargetID: "node-4", DetectedAt: time.Now()}
	inc, _ := m.UpsertIncident(a)

	if err := m.Dismiss(a.Type, a.TargetID); err != nil {
		t.Fatalf("Dismiss: %v", err)
	}

	got, err := m.Get(inc.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != domain.IncidentDismissed {
		t.Fatalf("expected Dismissed, got %s", got.State)
	}

	synthetic, err := m.UpsertIncident(a)
	if err != nil {
		t.Fatalf("expected nil error for a dismissed anomaly, got %v", err)
	}
	if synthetic.ID != "dismissed" || synthetic.State != domain.IncidentDismissed {
		t.Fatalf("expected synthetic dismissed incident, got %+v", synthetic)
	}

	all, err := m.List(false)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected no new incident row written for the suppressed detection, got %d incidents", len(all))
	}
}
