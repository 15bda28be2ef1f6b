// Package cortex implements the shared cortex router: one fallback-chain
// model selector used by every subsystem that needs to pick a model for
// a task, so the cascading "try the best option, demote on failure"
// behavior lives in exactly one place. When every candidate in the chain
// fails, Select returns domain.ErrNoRouteAvailable.
package cortex

import (
	"context"
	"time"

	"github.com/cortexd/cortexd/internal/bus"
	"github.com/cortexd/cortexd/internal/domain"
	"github.com/cortexd/cortexd/internal/infra/metrics"
	"github.com/cortexd/cortexd/internal/infra/metricsdb"
	"github.com/cortexd/cortexd/internal/infra/store"
)

// Invoke is the caller-supplied attempt function — it tries model on
// task and reports tokens/duration/success, classifying any failure.
type Invoke func(ctx context.Context, model string) (tokensIn, tokensOut int, err error)

// Router picks a model for a task by walking the fallback chain: user
// override first, then task policy, then the system default, then the
// ordered fallback list — directly grounded on the teacher daemon's
// cascading backend selection (real subprocess backend, then
// auto-download, then a mock backend, never a hard failure).
type Router struct {
	store     *store.Store
	bus       *bus.Bus
	metricsDB *metricsdb.DB
	now       func() time.Time
}

func NewRouter(st *store.Store, b *bus.Bus, m *metricsdb.DB) *Router {
	return &Router{store: st, bus: b, metricsDB: m, now: time.Now}
}

// Select walks req's candidate chain in priority order, invoking each
// via call until one succeeds or the chain is exhausted.
func (r *Router) Select(ctx context.Context, req domain.SelectionRequest, call Invoke) (domain.Decision, error) {
	candidates := buildChain(req)

	var attempts []domain.AttemptEvent
	for _, c := range candidates {
		started := r.now()
		tokensIn, tokensOut, err := call(ctx, c.model)
		duration := r.now().Sub(started)

		attempt := domain.AttemptEvent{
			SelectedModel: c.model,
			Route:         c.route,
			TokensIn:      tokensIn,
			TokensOut:     tokensOut,
			DurationMs:    duration.Milliseconds(),
			Success:       err == nil,
			FallbackReason: ClassifyError(err),
			At:            r.now(),
		}
		attempts = append(attempts, attempt)
		r.record(req.TaskID, attempt)

		if err == nil {
			return domain.Decision{SelectedModel: c.model, Route: c.route, Attempts: attempts}, nil
		}
	}

	return domain.Decision{Attempts: attempts}, domain.ErrNoRouteAvailable
}

type candidate struct {
	model string
	route domain.RouteType
}

// buildChain assembles the ordered candidate list: user override, task
// policy, system default, then the fallback chain in the order given —
// skipping any empty entries.
func buildChain(req domain.SelectionRequest) []candidate {
	var out []candidate
	add := func(model string, route domain.RouteType) {
		if model != "" {
			out = append(out, candidate{model: model, route: route})
		}
	}
	add(req.UserOverride, domain.RouteUserOverride)
	add(req.TaskPolicy, domain.RouteTaskPolicy)
	add(req.SystemDefault, domain.RouteSystemDefault)
	for _, m := range req.FallbackChain {
		add(m, domain.RouteFallback)
	}
	return out
}

func (r *Router) record(taskID string, a domain.AttemptEvent) {
	_ = r.store.RecordAttempt(taskID, a)
	if r.metricsDB != nil {
		tags := map[string]string{"model": a.SelectedModel, "route": string(a.Route)}
		r.metricsDB.RecordEvent("cortex.attempt", tags, a.At)
	}
	if r.bus != nil {
		priority := bus.PriorityInfo
		if !a.Success {
			priority = bus.PriorityAction
		}
		_ = r.bus.Send("cortex.attempt", string(a.Route)+":"+a.SelectedModel, priority, taskID)
	}
	metrics.CortexAttempts.WithLabelValues(string(a.Route), boolLabel(a.Success)).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "success"
	}
	return "failure"
}
