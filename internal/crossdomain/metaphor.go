package crossdomain

import (
	"fmt"

	"github.com/cortexd/cortexd/internal/domain"
)

// metaphorTemplate pairs a dimension with the phrase to use when that
// dimension dominates a match — rendering is template selection, not
// generation.
type metaphorTemplate struct {
	Dim    int
	Phrase string
}

var metaphorTemplates = []metaphorTemplate{
	{domain.DimCascadePotential, "both show small failures cascading into larger ones"},
	{domain.DimRecoverySpeed, "both recovered faster than the initial severity suggested"},
	{domain.DimVolatility, "both show the same volatile, noisy lead-up before the event"},
	{domain.DimFrequency, "both keep recurring despite apparent fixes"},
	{domain.DimScopeBreadth, "both spread wider than the initial blast radius implied"},
	{domain.DimLeadTime, "both gave an early warning signal that went unacted on"},
}

// renderMetaphor builds a short human-readable sentence framing a match
// as an analogy between the two source domains, picking the template
// whose dimension has the largest combined magnitude across both
// fingerprints.
func renderMetaphor(a, b domain.PatternFingerprint, sim float64) string {
	best := metaphorTemplates[0]
	bestScore := -1.0
	for _, tmpl := range metaphorTemplates {
		combined := absf(a.Vector[tmpl.Dim]) + absf(b.Vector[tmpl.Dim])
		if combined > bestScore {
			bestScore = combined
			best = tmpl
		}
	}
	return fmt.Sprintf("%s and %s: %s (%.0f%% structural match)", a.SourceDomain, b.SourceDomain, best.Phrase, sim*100)
}

func absf(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
