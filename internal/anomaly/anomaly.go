// Package anomaly implements the pure rule-table classifier that turns a
// probe Reading into zero or more Anomalies. Classify itself is a pure
// function; statistical profiling (when a rule needs a running mean/stddev)
// is kept in an optional Profiler consulted by individual rules, never
// inside Classify's own state.
package anomaly

import (
	"math"
	"sync"
	"time"

	"github.com/cortexd/cortexd/internal/domain"
)

// Rule maps one predicate over a Reading to an Anomaly classification.
type Rule struct {
	SourceID        string // empty matches any source
	Predicate       func(domain.Reading) bool
	Type            domain.AnomalyType
	Severity        domain.Severity
	RemediationHint string
}

// Classifier evaluates a Reading against a rule table.
type Classifier struct {
	rules []Rule
	now   func() time.Time
}

// ClassifyFunc is the constructor-injectable shape the runbook executor
// depends on, breaking any import cycle between anomaly and runbook.
type ClassifyFunc func(domain.Reading) []domain.Anomaly

// New constructs a Classifier over the given rule table.
func New(rules []Rule) *Classifier {
	return &Classifier{rules: rules, now: time.Now}
}

// Classify evaluates every matching rule against reading and returns every
// resulting Anomaly. Pure: no shared state is mutated.
func (c *Classifier) Classify(reading domain.Reading) []domain.Anomaly {
	var out []domain.Anomaly
	now := c.now()

	for _, r := range c.rules {
		if r.SourceID != "" && r.SourceID != reading.SourceID {
			continue
		}
		if !r.Predicate(reading) {
			continue
		}
		out = append(out, domain.Anomaly{
			Type:            r.Type,
			Severity:        r.Severity,
			SourceID:        reading.SourceID,
			TargetID:        reading.SourceID,
			Description:     string(r.Type) + " on " + reading.SourceID,
			RemediationHint: r.RemediationHint,
			DetectedAt:      now,
		})
	}
	return out
}

// AsFunc adapts Classify to the ClassifyFunc shape for constructor
// injection into the runbook executor.
func (c *Classifier) AsFunc() ClassifyFunc { return c.Classify }

// DefaultRules returns the standard rule table for the builtin probes:
// process-down, network partial/down, and integrity mismatch. Disk
// capacity rules are not included; DiskRule builds them from thresholds.
func DefaultRules() []Rule {
	return []Rule{
		{
			Predicate:       func(r domain.Reading) bool { return !r.Healthy && r.Err == nil && r.Value == 0 && r.Labels == nil },
			Type:            domain.AnomalyProcessDown,
			Severity:        domain.SeverityHigh,
			RemediationHint: "restart_process",
		},
		{
			Predicate: func(r domain.Reading) bool {
				return !r.Healthy && r.Labels["partial"] == "true"
			},
			Type:            domain.AnomalyNetworkPartial,
			Severity:        domain.SeverityMedium,
			RemediationHint: "retry_backoff",
		},
		{
			Predicate: func(r domain.Reading) bool {
				return !r.Healthy && r.Labels["partial"] == "false"
			},
			Type:            domain.AnomalyNetworkDown,
			Severity:        domain.SeverityCritical,
			RemediationHint: "failover_network",
		},
		{
			Predicate: func(r domain.Reading) bool {
				digest, ok := r.Labels["digest"]
				return ok && !r.Healthy && digest != ""
			},
			Type:            domain.AnomalyIntegrityMismatch,
			Severity:        domain.SeverityCritical,
			RemediationHint: "restore_from_backup",
		},
	}
}

// DiskRule builds a disk-capacity rule pair (low/full) parameterized by
// thresholds, since disk probes report a raw byte value rather than a
// binary healthy flag alone.
func DiskRule(lowBytes, fullBytes uint64) []Rule {
	return []Rule{
		{
			Predicate:       func(r domain.Reading) bool { return r.Value <= float64(fullBytes) },
			Type:            domain.AnomalyDiskFull,
			Severity:        domain.SeverityCritical,
			RemediationHint: "free_disk_space",
		},
		{
			Predicate: func(r domain.Reading) bool {
				return r.Value > float64(fullBytes) && r.Value <= float64(lowBytes)
			},
			Type:            domain.AnomalyDiskLow,
			Severity:        domain.SeverityMedium,
			RemediationHint: "free_disk_space",
		},
	}
}

// ─── Optional statistical profiler ───────────────────────────────────────────

// Profile keeps Welford's-algorithm running mean/variance for one source's
// numeric readings, letting a rule build a z-score threshold without the
// classifier itself carrying mutable state.
type Profile struct {
	count int64
	mean  float64
	m2    float64
}

// Update folds value into the running statistics.
func (p *Profile) Update(value float64) {
	p.count++
	delta := value - p.mean
	p.mean += delta / float64(p.count)
	delta2 := value - p.mean
	p.m2 += delta * delta2
}

// Stddev returns the sample standard deviation, or 0 if fewer than 2
// samples have been observed.
func (p *Profile) Stddev() float64 {
	if p.count < 2 {
		return 0
	}
	return math.Sqrt(p.m2 / float64(p.count-1))
}

// ZScore returns the z-score of value against the profile's running stats,
// or 0 if the profile has too few samples to be meaningful. Against a
// profile with zero variance, any value other than the mean scores ±Inf.
func (p *Profile) ZScore(value float64) float64 {
	if p.count < 2 {
		return 0
	}
	sd := p.Stddev()
	if sd == 0 {
		if value == p.mean {
			return 0
		}
		return math.Copysign(math.Inf(1), value-p.mean)
	}
	return (value - p.mean) / sd
}

// Profiler keeps one Profile per source under a mutex, for rules that want
// z-score-based thresholds (e.g. latency/CPU spikes) without serializing
// through the pure Classify path.
type Profiler struct {
	mu       sync.Mutex
	profiles map[string]*Profile
}

func NewProfiler() *Profiler {
	return &Profiler{profiles: make(map[string]*Profile)}
}

// Observe returns value's z-score against sourceID's profile as it stood
// before this call, then folds value into the profile.
func (p *Profiler) Observe(sourceID string, value float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	prof, ok := p.profiles[sourceID]
	if !ok {
		prof = &Profile{}
		p.profiles[sourceID] = prof
	}
	z := prof.ZScore(value)
	prof.Update(value)
	return z
}
