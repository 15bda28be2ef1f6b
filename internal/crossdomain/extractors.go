package crossdomain

import "github.com/cortexd/cortexd/internal/domain"

// TradingExtractor reads market/execution post-mortems — the vocabulary
// of slippage, drawdown, and position sizing.
type TradingExtractor struct{ version int }

func NewTradingExtractor() *TradingExtractor { return &TradingExtractor{version: 1} }
func (e *TradingExtractor) Domain() string   { return "trading" }
func (e *TradingExtractor) Version() int     { return e.version }
func (e *TradingExtractor) Extract(observation string) domain.StructuralVector {
	return score(observation, []weightedKeyword{
		{"slippage", domain.DimVolatility, 0.6},
		{"drawdown", domain.DimCascadePotential, 0.8},
		{"stopped out", domain.DimTrendDirection, -0.5},
		{"breakout", domain.DimTrendDirection, 0.7},
		{"recovered", domain.DimRecoverySpeed, 0.6},
		{"overleveraged", domain.DimScopeBreadth, 0.9},
		{"correlated", domain.DimCorrelationStrength, 0.7},
		{"early warning", domain.DimLeadTime, 0.6},
	})
}

// RadioExtractor reads RF/signal-chain observations — interference,
// desense, link budget.
type RadioExtractor struct{ version int }

func NewRadioExtractor() *RadioExtractor { return &RadioExtractor{version: 1} }
func (e *RadioExtractor) Domain() string { return "radio" }
func (e *RadioExtractor) Version() int   { return e.version }
func (e *RadioExtractor) Extract(observation string) domain.StructuralVector {
	return score(observation, []weightedKeyword{
		{"interference", domain.DimVolatility, 0.7},
		{"desense", domain.DimCascadePotential, 0.6},
		{"dropout", domain.DimTrendDirection, -0.6},
		{"link recovered", domain.DimRecoverySpeed, 0.7},
		{"band-wide", domain.DimScopeBreadth, 0.8},
		{"correlated fade", domain.DimCorrelationStrength, 0.7},
		{"forecast", domain.DimLeadTime, 0.5},
	})
}

// FleetExtractor reads vehicle/fleet operations observations — fuel,
// maintenance, route deviation.
type FleetExtractor struct{ version int }

func NewFleetExtractor() *FleetExtractor { return &FleetExtractor{version: 1} }
func (e *FleetExtractor) Domain() string { return "fleet" }
func (e *FleetExtractor) Version() int   { return e.version }
func (e *FleetExtractor) Extract(observation string) domain.StructuralVector {
	return score(observation, []weightedKeyword{
		{"breakdown", domain.DimCascadePotential, 0.8},
		{"delayed", domain.DimTrendDirection, -0.5},
		{"rerouted", domain.DimRecoverySpeed, 0.6},
		{"fleet-wide", domain.DimScopeBreadth, 0.9},
		{"scheduled maintenance", domain.DimLeadTime, 0.7},
		{"recurring", domain.DimFrequency, 0.7},
	})
}

// MetaExtractor reads the agent's own operational observations —
// incidents, runbooks, rtl propagations — so the agent can find
// analogies in its own history, not just external domains.
type MetaExtractor struct{ version int }

func NewMetaExtractor() *MetaExtractor { return &MetaExtractor{version: 1} }
func (e *MetaExtractor) Domain() string { return "meta" }
func (e *MetaExtractor) Version() int   { return e.version }
func (e *MetaExtractor) Extract(observation string) domain.StructuralVector {
	return score(observation, []weightedKeyword{
		{"escalated", domain.DimSeverityTrend, 0.8},
		{"remediation failed", domain.DimCascadePotential, 0.9},
		{"self-resolved", domain.DimRecoverySpeed, 0.8},
		{"recurrence", domain.DimFrequency, 0.8},
		{"dismissed", domain.DimConfidence, -0.4},
		{"novel", domain.DimNovelty, 0.7},
	})
}
