package crossdomain

import (
	"math"
	"time"

	"github.com/cortexd/cortexd/internal/domain"
	"github.com/cortexd/cortexd/internal/infra/metrics"
	"github.com/cortexd/cortexd/internal/infra/store"
	"github.com/google/uuid"
)

// Matcher extracts fingerprints from observations, persists them, and
// finds cross-domain matches by cosine similarity over the shared
// 12-dimension structural space.
type Matcher struct {
	store      *store.Store
	extractors map[string]Extractor
	Threshold  float64
	now        func() time.Time
}

func NewMatcher(st *store.Store, extractors ...Extractor) *Matcher {
	m := &Matcher{store: st, extractors: make(map[string]Extractor, len(extractors)), Threshold: 0.75, now: time.Now}
	for _, e := range extractors {
		m.extractors[e.Domain()] = e
	}
	return m
}

// Record extracts a fingerprint for domainName's observation and
// persists it for future matching.
func (m *Matcher) Record(domainName, observation string) (domain.PatternFingerprint, error) {
	e, ok := m.extractors[domainName]
	if !ok {
		return domain.PatternFingerprint{}, domain.ErrUnknownDomain
	}
	fp := newFingerprint(uuid.NewString(), e, observation, m.now)
	if err := m.store.InsertFingerprint(fp); err != nil {
		return domain.PatternFingerprint{}, err
	}
	return fp, nil
}

// MatchAgainst compares fp against every fingerprint recorded for a
// different domain and returns those above Threshold, most similar
// first.
func (m *Matcher) MatchAgainst(fp domain.PatternFingerprint) ([]domain.Match, error) {
	candidates, err := m.store.ListFingerprintsExcludingDomain(fp.SourceDomain)
	if err != nil {
		return nil, err
	}

	var matches []domain.Match
	for _, c := range candidates {
		sim := cosineSimilarity(fp.Vector, c.Vector)
		if sim >= m.Threshold {
			match := domain.Match{A: fp, B: c, Similarity: sim, Metaphor: renderMetaphor(fp, c, sim)}
			matches = append(matches, match)
			metrics.CrossDomainMatches.WithLabelValues(fp.SourceDomain, c.SourceDomain).Inc()
		}
	}

	sortMatchesDescending(matches)
	return matches, nil
}

func sortMatchesDescending(matches []domain.Match) {
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].Similarity > matches[j-1].Similarity; j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}
}

func cosineSimilarity(a, b domain.StructuralVector) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
