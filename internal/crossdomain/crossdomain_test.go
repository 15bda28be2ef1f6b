package crossdomain

import (
	"testing"

	"github.com/cortexd/cortexd/internal/domain"
	"github.com/cortexd/cortexd/internal/infra/store"
)

func TestTradingAndFleetExtractorsShareCascadeDimension(t *testing.T) {
	trading := NewTradingExtractor()
	fleet := NewFleetExtractor()

	tv := trading.Extract("severe drawdown after the position was stopped out")
	fv := fleet.Extract("breakdown caused a fleet-wide delayed schedule")

	if tv.CascadePotential() <= 0 {
		t.Fatalf("expected trading drawdown to score cascade potential, got %f", tv.CascadePotential())
	}
	if fv.CascadePotential() <= 0 {
		t.Fatalf("expected fleet breakdown to score cascade potential, got %f", fv.CascadePotential())
	}
}

func TestMatcherFindsCrossDomainMatchAboveThreshold(t *testing.T) {
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	m := NewMatcher(st, NewTradingExtractor(), NewFleetExtractor())
	m.Threshold = 0.5

	tradingFP, err := m.Record("trading", "a cascading drawdown spread across overleveraged positions")
	if err != nil {
		t.Fatalf("record trading: %v", err)
	}
	if _, err := m.Record("fleet", "a breakdown cascaded into a fleet-wide delay"); err != nil {
		t.Fatalf("record fleet: %v", err)
	}

	matches, err := m.MatchAgainst(tradingFP)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 cross-domain match, got %d", len(matches))
	}
	if matches[0].B.SourceDomain != "fleet" {
		t.Fatalf("expected match against fleet domain, got %s", matches[0].B.SourceDomain)
	}
	if matches[0].Metaphor == "" {
		t.Fatal("expected a rendered metaphor")
	}
}

func TestMatcherRejectsUnknownDomain(t *testing.T) {
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	m := NewMatcher(st, NewTradingExtractor())
	if _, err := m.Record("unknown-domain", "anything"); err != domain.ErrUnknownDomain {
		t.Fatalf("expected ErrUnknownDomain, got %v", err)
	}
}

func TestCosineSimilarityIdenticalVectors(t *testing.T) {
	v := domain.StructuralVector{}
	v[domain.DimVolatility] = 0.5
	if sim := cosineSimilarity(v, v); sim < 0.999 {
		t.Fatalf("expected identical vectors to have similarity ~1, got %f", sim)
	}
}
