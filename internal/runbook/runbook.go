// Package runbook implements the remediation runbook library and
// executor: a static registry of {anomaly_type → action sequence}
// definitions that graduate from dry-run observation to live execution,
// and an executor that runs a definition's steps against an incident with
// per-step timeouts and circuit breaking.
package runbook

import (
	"context"
	"time"

	"github.com/cortexd/cortexd/internal/anomaly"
	"github.com/cortexd/cortexd/internal/bus"
	"github.com/cortexd/cortexd/internal/domain"
	"github.com/cortexd/cortexd/internal/incident"
	"github.com/cortexd/cortexd/internal/infra/metrics"
	"github.com/cortexd/cortexd/internal/infra/store"
	"github.com/sony/gobreaker"
)

// Step is one unit of remediation work within a Definition.
type Step struct {
	ID          string
	Description string
	TimeoutMs   int64
	DryRun      func(domain.Anomaly) string
	Execute     func(ctx context.Context, a domain.Anomaly) domain.StepResult
}

// Definition is the sum-of-variants capability set a runbook provides.
type Definition struct {
	ID                  string
	Label               string
	AppliesTo           []domain.AnomalyType
	AutoApproveWhitelist bool
	Build               func(domain.Anomaly) []Step
}

func (d Definition) appliesTo(t domain.AnomalyType) bool {
	for _, at := range d.AppliesTo {
		if at == t {
			return true
		}
	}
	return false
}

// Registry holds the static library of Definitions plus their persisted
// graduation state (dry-run count, mode, confidence).
type Registry struct {
	defs  map[string]Definition
	store *store.Store
	now   func() time.Time
}

// NewRegistry constructs a Registry over defs, persisting graduation state
// through st.
func NewRegistry(st *store.Store, defs []Definition) *Registry {
	m := make(map[string]Definition, len(defs))
	for _, d := range defs {
		m[d.ID] = d
	}
	return &Registry{defs: m, store: st, now: time.Now}
}

// For returns every Definition applicable to t.
func (r *Registry) For(t domain.AnomalyType) []Definition {
	var out []Definition
	for _, d := range r.defs {
		if d.appliesTo(t) {
			out = append(out, d)
		}
	}
	return out
}

// Stats returns the persisted graduation state for definitionID.
func (r *Registry) Stats(definitionID string) (store.RunbookStats, error) {
	return r.store.GetRunbookStats(definitionID)
}

// graduationThreshold is the dry-run count after which a runbook with no
// failures becomes eligible for live execution.
const graduationThreshold = 10

// recordDryRun increments the dry-run counter and promotes to live once
// the threshold is met with zero recorded failures, but only for a
// definition on the operator's auto-execute whitelist — a runbook that
// was never approved for auto-execution stays in dry_run no matter how
// many clean observations it accumulates.
func (r *Registry) recordDryRun(definitionID string) error {
	stats, err := r.store.GetRunbookStats(definitionID)
	if err != nil {
		return err
	}
	stats.DryRunCount++
	stats.LastExecutedAt = r.now()
	def, whitelisted := r.defs[definitionID]
	if stats.DryRunCount >= graduationThreshold && stats.FailureCount == 0 && whitelisted && def.AutoApproveWhitelist {
		stats.Mode = domain.RunbookModeLive
	}
	return r.store.SaveRunbookStats(stats)
}

func (r *Registry) recordOutcome(definitionID string, success bool) error {
	stats, err := r.store.GetRunbookStats(definitionID)
	if err != nil {
		return err
	}
	if success {
		stats.SuccessCount++
	} else {
		stats.FailureCount++
		stats.Mode = domain.RunbookModeDryRun // regress on any live failure
	}
	stats.LastExecutedAt = r.now()
	return r.store.SaveRunbookStats(stats)
}

// Executor runs a Definition's steps against an incident. The classifier
// is injected via constructor so the executor never imports the anomaly
// package's concrete Classifier type, avoiding a circular dependency
// between verification and classification.
type Executor struct {
	registry   *Registry
	classify   anomaly.ClassifyFunc
	incidents  *incident.Manager
	bus        *bus.Bus
	breakers   map[string]*gobreaker.CircuitBreaker
	now        func() time.Time
	verifyWait time.Duration
}

// NewExecutor constructs an Executor. classify is called both for the
// pre-execution verification probe and the post-execution verification
// step. incidents drives the incident's state machine through
// remediating/verifying/resolved/remediation_failed/self_resolved as the
// run progresses; b posts a notification when a remediation turns out to
// be unnecessary.
func NewExecutor(registry *Registry, classify anomaly.ClassifyFunc, incidents *incident.Manager, b *bus.Bus) *Executor {
	return &Executor{
		registry:   registry,
		classify:   classify,
		incidents:  incidents,
		bus:        b,
		breakers:   make(map[string]*gobreaker.CircuitBreaker),
		now:        time.Now,
		verifyWait: 2 * time.Second,
	}
}

// transitionIncident is a no-op when inc is nil, so tests that exercise
// Execute without a live incident don't need a Manager in the loop.
func (e *Executor) transitionIncident(inc *domain.Incident, to domain.IncidentState, detail string) {
	if e.incidents == nil || inc == nil {
		return
	}
	_ = e.incidents.Transition(inc.ID, to, detail)
}

func (e *Executor) breakerFor(definitionID, stepID string) *gobreaker.CircuitBreaker {
	key := definitionID + "/" + stepID
	if b, ok := e.breakers[key]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        key,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	e.breakers[key] = b
	return b
}

// Execute runs definition's steps against inc/a, following spec's seven-step
// algorithm: verify before touching anything (short-circuiting on
// self-resolution), transition the incident through remediating and
// verifying as work proceeds, and report a tri-state verification result
// plus whether escalation is needed. inc may be nil for callers (tests,
// standalone dry runs) that don't carry a live incident; in that case no
// state transitions are attempted.
func (e *Executor) Execute(ctx context.Context, definition Definition, inc *domain.Incident, a domain.Anomaly, reading func() domain.Reading) (domain.ExecutionResult, error) {
	stats, err := e.registry.Stats(definition.ID)
	if err != nil {
		return domain.ExecutionResult{}, err
	}

	result := domain.ExecutionResult{RunbookID: definition.ID}

	// Step 1: pre-execution verification. If the target already reads
	// healthy, the anomaly resolved on its own and no remediation runs.
	if reading != nil && len(e.classify(reading())) == 0 {
		result.SelfResolved = true
		e.transitionIncident(inc, domain.IncidentSelfResolved, "pre-execution verification found the target healthy")
		if e.bus != nil && inc != nil {
			_ = e.bus.Send("incident.self_resolved", "incident "+inc.ID+" resolved before remediation ran", bus.PriorityInfo, inc.ID)
		}
		metrics.RunbookExecutions.WithLabelValues(definition.ID, "self_resolved").Inc()
		return result, nil
	}

	e.transitionIncident(inc, domain.IncidentRemediating, "executing runbook "+definition.ID)

	steps := definition.Build(a)
	for _, step := range steps {
		var sr domain.StepResult
		if stats.Mode == domain.RunbookModeDryRun {
			sr = domain.StepResult{StepID: step.ID, Success: true, Output: step.DryRun(a)}
		} else {
			sr = e.runLiveStep(ctx, definition.ID, step, a)
		}
		result.Steps = append(result.Steps, sr)
		if !sr.Success {
			result.Err = sr.Err
			break
		}
	}

	if stats.Mode == domain.RunbookModeDryRun {
		_ = e.registry.recordDryRun(definition.ID)
		metrics.RunbookExecutions.WithLabelValues(definition.ID, "dry_run").Inc()
		e.transitionIncident(inc, domain.IncidentVerifying, "dry-run complete, no live change made")
		return result, nil
	}

	if result.Err != nil {
		e.transitionIncident(inc, domain.IncidentRemediationFailed, result.Err.Error())
		result.EscalationNeeded = true
		metrics.RunbookExecutions.WithLabelValues(definition.ID, "failure").Inc()
		_ = e.registry.recordOutcome(definition.ID, false)
		return result, nil
	}

	e.transitionIncident(inc, domain.IncidentVerifying, "remediation steps complete, verifying")

	// Fixed wall-clock wait before verification, per design: a polling
	// variant is a legitimate variation but not the baseline behavior.
	time.Sleep(e.verifyWait)

	healthy := true
	if reading != nil {
		healthy = len(e.classify(reading())) == 0
	}
	result.VerificationPassed = &healthy
	result.EscalationNeeded = !healthy

	outcome := "failure"
	if healthy {
		outcome = "success"
	}
	metrics.RunbookExecutions.WithLabelValues(definition.ID, outcome).Inc()
	_ = e.registry.recordOutcome(definition.ID, healthy)

	if healthy {
		e.transitionIncident(inc, domain.IncidentResolved, "post-remediation verification passed")
	} else {
		e.transitionIncident(inc, domain.IncidentRemediationFailed, "post-remediation verification failed")
	}

	return result, nil
}

func (e *Executor) runLiveStep(ctx context.Context, definitionID string, step Step, a domain.Anomaly) domain.StepResult {
	breaker := e.breakerFor(definitionID, step.ID)
	start := e.now()

	timeout := time.Duration(step.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := breaker.Execute(func() (any, error) {
		resultCh := make(chan domain.StepResult, 1)
		go func() { resultCh <- step.Execute(stepCtx, a) }()

		select {
		case r := <-resultCh:
			if !r.Success {
				return r, domain.ErrStepFailed
			}
			return r, nil
		case <-stepCtx.Done():
			return domain.StepResult{StepID: step.ID, Success: false, Err: domain.ErrStepTimeout}, domain.ErrStepTimeout
		}
	})

	if raw == nil {
		return domain.StepResult{StepID: step.ID, Success: false, Err: err, Duration: e.now().Sub(start)}
	}
	sr := raw.(domain.StepResult)
	sr.StepID = step.ID
	sr.Duration = e.now().Sub(start)
	return sr
}
