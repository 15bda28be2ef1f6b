package runbook

import (
	"context"
	"testing"

	"github.com/cortexd/cortexd/internal/anomaly"
	"github.com/cortexd/cortexd/internal/domain"
	"github.com/cortexd/cortexd/internal/infra/store"
)

func testDefinition() Definition {
	return Definition{
		ID:                   "test-runbook",
		Label:                "test",
		AppliesTo:            []domain.AnomalyType{domain.AnomalyProcessDown},
		AutoApproveWhitelist: true,
		Build: func(a domain.Anomaly) []Step {
			return []Step{
				{
					ID:          "noop",
					Description: "no-op success step",
					TimeoutMs:   1000,
					DryRun:      func(domain.Anomaly) string { return "would noop" },
					Execute: func(ctx context.Context, a domain.Anomaly) domain.StepResult {
						return domain.StepResult{Success: true}
					},
				},
			}
		},
	}
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewRegistry(st, []Definition{testDefinition()})
}

func TestExecuteDryRunDoesNotCallExecute(t *testing.T) {
	reg := newTestRegistry(t)
	calledLive := false
	def := testDefinition()
	def.Build = func(a domain.Anomaly) []Step {
		return []Step{{
			ID: "noop", TimeoutMs: 1000,
			DryRun:  func(domain.Anomaly) string { return "dry" },
			Execute: func(ctx context.Context, a domain.Anomaly) domain.StepResult { calledLive = true; return domain.StepResult{Success: true} },
		}}
	}

	classify := anomaly.New(nil).AsFunc()
	exec := NewExecutor(reg, classify, nil, nil)
	exec.verifyWait = 0

	result, err := exec.Execute(context.Background(), def, nil, domain.Anomaly{Type: domain.AnomalyProcessDown, TargetID: "x"}, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if calledLive {
		t.Fatal("Execute should not have been called in dry-run mode")
	}
	if result.Err != nil {
		t.Fatalf("dry-run execution should not report an error, got %v", result.Err)
	}
	if result.SelfResolved {
		t.Fatal("dry-run execution with no reading should not short-circuit as self-resolved")
	}
}

func TestExecuteGraduatesToLiveAfterThreshold(t *testing.T) {
	reg := newTestRegistry(t)
	def := testDefinition()
	classify := anomaly.New(nil).AsFunc()
	exec := NewExecutor(reg, classify, nil, nil)
	exec.verifyWait = 0

	for i := 0; i < graduationThreshold; i++ {
		if _, err := exec.Execute(context.Background(), def, nil, domain.Anomaly{Type: domain.AnomalyProcessDown, TargetID: "x"}, nil); err != nil {
			t.Fatalf("Execute iteration %d: %v", i, err)
		}
	}

	stats, err := reg.Stats(def.ID)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Mode != domain.RunbookModeLive {
		t.Fatalf("expected mode live after %d dry runs, got %s", graduationThreshold, stats.Mode)
	}
}

func TestExecuteDoesNotGraduateWithoutWhitelist(t *testing.T) {
	def := testDefinition()
	def.AutoApproveWhitelist = false

	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	reg := NewRegistry(st, []Definition{def})

	classify := anomaly.New(nil).AsFunc()
	exec := NewExecutor(reg, classify, nil, nil)
	exec.verifyWait = 0

	for i := 0; i < graduationThreshold*2; i++ {
		if _, err := exec.Execute(context.Background(), def, nil, domain.Anomaly{Type: domain.AnomalyProcessDown, TargetID: "x"}, nil); err != nil {
			t.Fatalf("Execute iteration %d: %v", i, err)
		}
	}

	stats, err := reg.Stats(def.ID)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Mode != domain.RunbookModeDryRun {
		t.Fatalf("expected mode to stay dry_run without whitelist membership, got %s", stats.Mode)
	}
}
