package rtl

import (
	"context"
	"time"

	"github.com/cortexd/cortexd/internal/bus"
	"github.com/cortexd/cortexd/internal/domain"
	"github.com/cortexd/cortexd/internal/infra/metrics"
	"github.com/cortexd/cortexd/internal/infra/store"
	"github.com/cortexd/cortexd/internal/rtl/atomprop"
	"github.com/cortexd/cortexd/internal/rtl/recurrence"
	"github.com/cortexd/cortexd/internal/rtl/regression"
	"github.com/cortexd/cortexd/internal/rtl/soppatch"
	"github.com/google/uuid"
)

// Pipeline wires the classifier and every propagation target behind the
// bounded Queue's drain loop.
type Pipeline struct {
	queue      *Queue
	classifier *Classifier
	store      *store.Store
	bus        *bus.Bus
	sopResolve *soppatch.Resolver
	sopWrite   *soppatch.Writer
	atoms      *atomprop.Propagator
	regression *regression.Generator
	recurrence *recurrence.Detector
	now        func() time.Time
}

// Config bundles the pipeline's dependencies.
type Config struct {
	Store          *store.Store
	Bus            *bus.Bus
	SOPDir         string
	GitDir         string
	RegressionRoot string
	// StoreDBPath, when set, is rejected as a context-supplied sop_file
	// target even if it falls under SOPDir.
	StoreDBPath     string
	QueueCapacity   int
	CorrectionRPS   float64
	CorrectionBurst int
}

// New constructs a fully wired Pipeline from cfg.
func New(cfg Config) *Pipeline {
	q := NewQueue(cfg.QueueCapacity, cfg.CorrectionRPS, cfg.CorrectionBurst)
	return &Pipeline{
		queue:      q,
		classifier: NewClassifier(),
		store:      cfg.Store,
		bus:        cfg.Bus,
		sopResolve: soppatch.NewResolver(cfg.SOPDir, cfg.StoreDBPath),
		sopWrite:   soppatch.NewWriter(cfg.GitDir),
		atoms:      atomprop.New(cfg.Store),
		regression: regression.New(cfg.RegressionRoot),
		recurrence: recurrence.New(cfg.Store, cfg.Bus),
		now:        time.Now,
	}
}

// Queue exposes the bounded queue for relay wiring.
func (p *Pipeline) Queue() *Queue { return p.queue }

// Run starts the drain loop and blocks until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	p.queue.Drain(ctx, func(payload domain.DetectionPayload) {
		p.Process(ctx, payload)
	})
}

// Process classifies one payload and propagates it to every target the
// classifier assigned, persisting the outcome either way — no detection
// is silently dropped once it reaches this point, though it may end up
// marked escalated or dropped in status.
func (p *Pipeline) Process(ctx context.Context, payload domain.DetectionPayload) {
	event := p.classifier.Classify(payload)

	if err := p.store.InsertFailureEvent(event); err != nil {
		return
	}

	status := domain.PropagationPropagated
	for i, target := range event.PropagationTargets {
		tier := i // tier ordinal matches the target's position for reporting
		ok := p.propagateOne(ctx, event, target, tier)
		p.recordPropagation(event, target, tier, ok)
		if !ok {
			status = domain.PropagationEscalated
		}
	}
	if len(event.PropagationTargets) == 0 {
		status = domain.PropagationDropped
	}

	_ = p.store.UpdateFailureStatus(event.ID, status)

	if count, err := p.recurrence.Check(ctx, event.RootCause); err == nil && count > 0 {
		metrics.RTLPropagations.WithLabelValues("recurrence", event.RootCause).Add(0)
	}
}

func (p *Pipeline) propagateOne(ctx context.Context, e domain.FailureEvent, target string, tier int) bool {
	switch target {
	case "sop":
		return p.propagateSOP(e, tier)
	case "atom":
		return p.atoms.Propagate(e) == nil
	case "regression":
		_, err := p.regression.Generate(e)
		return err == nil
	case "relay":
		return p.bus.Send("rtl.relay", e.Message, bus.PriorityAction, e.ID) == nil
	default:
		return false
	}
}

func (p *Pipeline) propagateSOP(e domain.FailureEvent, tier int) bool {
	path, err := p.sopResolve.Resolve(e)
	if err != nil {
		return false
	}
	if tier >= 3 {
		preview := p.sopWrite.PreviewDiff(e)
		return p.bus.Send("rtl.sop_preview", preview, bus.PriorityAction, "rtl:"+e.ID) == nil
	}
	commitErr, writeErr := p.sopWrite.Append(path, e, tier <= 2)
	if writeErr != nil {
		return false
	}
	_ = commitErr // non-fatal: the entry is already written; the commit error is not recorded
	return true
}

func (p *Pipeline) recordPropagation(e domain.FailureEvent, target string, tier int, success bool) {
	rec := domain.PropagationRecord{
		ID:        uuid.NewString(),
		FailureID: e.ID,
		Action:    target,
		Target:    target,
		Tier:      tier,
		Success:   success,
		At:        p.now(),
	}
	_ = p.store.InsertPropagationRecord(rec)
	outcome := target
	if !success {
		outcome = target + "_failed"
	}
	metrics.RTLPropagations.WithLabelValues(tierLabel(tier), outcome).Inc()
}

func tierLabel(tier int) string {
	switch {
	case tier <= 0:
		return "0"
	case tier == 1:
		return "1"
	case tier == 2:
		return "2"
	default:
		return "3"
	}
}
