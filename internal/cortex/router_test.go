package cortex

import (
	"context"
	"errors"
	"testing"

	"github.com/cortexd/cortexd/internal/bus"
	"github.com/cortexd/cortexd/internal/domain"
	"github.com/cortexd/cortexd/internal/infra/store"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewRouter(st, bus.New(nil), nil)
}

func TestSelectUsesUserOverrideWhenItSucceeds(t *testing.T) {
	r := newTestRouter(t)
	req := domain.SelectionRequest{TaskID: "t1", UserOverride: "gpt-user", SystemDefault: "gpt-default"}

	decision, err := r.Select(context.Background(), req, func(ctx context.Context, model string) (int, int, error) {
		return 10, 20, nil
	})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if decision.SelectedModel != "gpt-user" || decision.Route != domain.RouteUserOverride {
		t.Fatalf("expected user override selection, got %+v", decision)
	}
	if len(decision.Attempts) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(decision.Attempts))
	}
}

func TestSelectFallsThroughChainOnFailure(t *testing.T) {
	r := newTestRouter(t)
	req := domain.SelectionRequest{
		TaskID:        "t2",
		UserOverride:  "gpt-user",
		SystemDefault: "gpt-default",
		FallbackChain: []string{"gpt-fallback"},
	}

	decision, err := r.Select(context.Background(), req, func(ctx context.Context, model string) (int, int, error) {
		if model == "gpt-fallback" {
			return 5, 5, nil
		}
		return 0, 0, errors.New("rate limit exceeded")
	})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if decision.SelectedModel != "gpt-fallback" {
		t.Fatalf("expected fallback selection, got %s", decision.SelectedModel)
	}
	if len(decision.Attempts) != 3 {
		t.Fatalf("expected 3 attempts before success, got %d", len(decision.Attempts))
	}
}

func TestSelectReturnsErrNoRouteAvailableWhenAllFail(t *testing.T) {
	r := newTestRouter(t)
	req := domain.SelectionRequest{TaskID: "t3", SystemDefault: "gpt-default"}

	_, err := r.Select(context.Background(), req, func(ctx context.Context, model string) (int, int, error) {
		return 0, 0, errors.New("boom")
	})
	if err != domain.ErrNoRouteAvailable {
		t.Fatalf("expected ErrNoRouteAvailable, got %v", err)
	}
}

func TestClassifyErrorKeywords(t *testing.T) {
	cases := map[string]domain.ErrorClass{
		"request timeout":        domain.ErrClassTimeout,
		"rate limit exceeded":    domain.ErrClassCapacity,
		"policy refused request": domain.ErrClassPolicyOverride,
	}
	for msg, want := range cases {
		got := ClassifyError(errors.New(msg))
		if got != want {
			t.Errorf("ClassifyError(%q) = %v, want %v", msg, got, want)
		}
	}
	if ClassifyError(nil) != domain.ErrClassNone {
		t.Error("expected ErrClassNone for nil error")
	}
}
