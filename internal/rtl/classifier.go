package rtl

import "github.com/cortexd/cortexd/internal/domain"

// classRule maps a DetectionType, optionally further narrowed by a
// keyword match over Message, to a root cause and propagation targets.
type classRule struct {
	Type      domain.DetectionType
	Keyword   string // empty matches any message
	RootCause string
	Targets   []string
}

// Classifier turns a DetectionPayload into a classified FailureEvent via a
// rule table, falling back to a generic root cause when nothing matches.
type Classifier struct {
	rules []classRule
}

// NewClassifier builds a Classifier over the default rule table.
func NewClassifier() *Classifier {
	return &Classifier{rules: defaultClassRules()}
}

func defaultClassRules() []classRule {
	return []classRule{
		{Type: domain.DetectionToolFailure, Keyword: "timeout", RootCause: "tool_timeout", Targets: []string{"sop", "atom"}},
		{Type: domain.DetectionToolFailure, RootCause: "tool_error", Targets: []string{"sop"}},
		{Type: domain.DetectionUserCorrection, RootCause: "user_correction", Targets: []string{"sop", "atom"}},
		{Type: domain.DetectionHookViolation, RootCause: "hook_violation", Targets: []string{"atom", "relay"}},
		{Type: domain.DetectionTrustViolation, RootCause: "trust_violation", Targets: []string{"relay"}},
		{Type: domain.DetectionPipelineFailure, RootCause: "pipeline_failure", Targets: []string{"regression", "atom"}},
	}
}

// Classify returns the best-matching FailureEvent for p. A Keyword-bearing
// rule only matches when the keyword appears in p.Message; rules are
// evaluated in order, so keyword-specific rules should precede their
// type-wide fallback.
func (c *Classifier) Classify(p domain.DetectionPayload) domain.FailureEvent {
	for _, r := range c.rules {
		if r.Type != p.Type {
			continue
		}
		if r.Keyword != "" && !containsFold(p.Message, r.Keyword) {
			continue
		}
		return domain.FailureEvent{
			ID:                 p.ID,
			Type:               p.Type,
			RootCause:          r.RootCause,
			Message:            p.Message,
			Context:            p.Context,
			PropagationTargets: r.Targets,
			Status:             domain.PropagationPending,
			OccurredAt:         p.OccurredAt,
		}
	}
	return domain.FailureEvent{
		ID:                 p.ID,
		Type:               p.Type,
		RootCause:          "unclassified",
		Message:            p.Message,
		Context:            p.Context,
		PropagationTargets: nil,
		Status:             domain.PropagationPending,
		OccurredAt:         p.OccurredAt,
	}
}

func containsFold(haystack, needle string) bool {
	hl, nl := []rune(haystack), []rune(needle)
	if len(nl) == 0 || len(nl) > len(hl) {
		return false
	}
	lower := func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}
	for i := 0; i+len(nl) <= len(hl); i++ {
		match := true
		for j := range nl {
			if lower(hl[i+j]) != lower(nl[j]) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
