// Package crossdomain finds structural analogies between domains the
// agent reasons about that are otherwise unrelated — an incident
// postmortem pattern and a planning mistake, say — by reducing each
// observation to a fixed-width StructuralVector and comparing across
// domain partitions.
package crossdomain

import (
	"strings"
	"time"

	"github.com/cortexd/cortexd/internal/domain"
)

// Extractor turns a domain-specific textual observation into a
// StructuralVector. Each domain ships its own extractor tuned to its
// vocabulary; the resulting vectors live in one shared 12-dimension
// space so they can be compared across domains regardless of source.
type Extractor interface {
	Domain() string
	Version() int
	Extract(observation string) domain.StructuralVector
}

// weightedKeyword is one (keyword, dimension, weight) rule. Extraction
// is keyword-weighted scoring, not a real NLP model — grounded on the
// same weighted-dimension scoring idiom the deleted scheduler used to
// rank candidate nodes, just applied to text instead of resource specs.
type weightedKeyword struct {
	Keyword string
	Dim     int
	Weight  float64
}

// score applies a set of weighted keyword rules to an observation,
// clamping each dimension to [-1, 1].
func score(observation string, rules []weightedKeyword) domain.StructuralVector {
	lower := strings.ToLower(observation)
	var v domain.StructuralVector
	for _, r := range rules {
		if strings.Contains(lower, r.Keyword) {
			v[r.Dim] += r.Weight
		}
	}
	for i := range v {
		if v[i] > 1 {
			v[i] = 1
		}
		if v[i] < -1 {
			v[i] = -1
		}
	}
	return v
}

func newFingerprint(id string, e Extractor, observation string, now func() time.Time) domain.PatternFingerprint {
	return domain.PatternFingerprint{
		ID:           id,
		SourceDomain: e.Domain(),
		ExtractorVer: e.Version(),
		Vector:       e.Extract(observation),
		Label:        observation,
		ExtractedAt:  now(),
	}
}
