// Package escalation implements the four-tier escalation router: a pure
// tier-selection function plus a delivery step that fires the bus and/or
// the domain metrics sink depending on tier.
package escalation

import (
	"context"
	"fmt"

	"github.com/cortexd/cortexd/internal/bus"
	"github.com/cortexd/cortexd/internal/domain"
	"github.com/cortexd/cortexd/internal/infra/metricsdb"
)

// Tier is the closed set of escalation levels.
type Tier int

const (
	// TierSilent logs to the metrics sink only — confident, known-safe
	// auto-remediation.
	TierSilent Tier = iota
	// TierInfo posts an info-priority bus message — routine, low-severity.
	TierInfo
	// TierAction posts an action-priority bus message — needs attention,
	// not yet urgent.
	TierAction
	// TierUrgent fires both the bus and the guaranteed external channel —
	// remediation failed, no runbook exists, or the anomaly is critical.
	TierUrgent
)

// SelectTier is the pure decision function the router wraps. It mirrors
// the runbook graduation and remediation state to decide how loud to be.
// Tier 3 is unconditional: no runbook, a failed remediation, or critical
// severity always reaches TierUrgent regardless of runbook mode or
// confidence.
func SelectTier(runbookExists bool, mode domain.RunbookMode, confidence, confidenceThreshold float64, remediationFailed bool, severity domain.Severity) Tier {
	if !runbookExists || remediationFailed || severity == domain.SeverityCritical {
		return TierUrgent
	}
	if mode == domain.RunbookModeDryRun {
		return TierAction
	}
	if confidence < confidenceThreshold {
		return TierAction
	}
	if severity == domain.SeverityLow {
		return TierInfo
	}
	return TierSilent
}

// Router delivers a decision reached via SelectTier.
type Router struct {
	bus        *bus.Bus
	metricsDB  *metricsdb.DB
}

// NewRouter constructs a Router.
func NewRouter(b *bus.Bus, m *metricsdb.DB) *Router {
	return &Router{bus: b, metricsDB: m}
}

// Fire delivers incident according to tier.
func (r *Router) Fire(ctx context.Context, tier Tier, inc domain.Incident) error {
	body := fmt.Sprintf("incident %s (%s on %s) state=%s attempts=%d", inc.ID, inc.AnomalyType, inc.TargetID, inc.State, inc.Attempts)

	switch tier {
	case TierSilent:
		if r.metricsDB != nil {
			return r.metricsDB.RecordEvent("incident.silent", map[string]string{
				"incident_id": inc.ID, "anomaly_type": string(inc.AnomalyType),
			}, inc.UpdatedAt)
		}
		return nil
	case TierInfo:
		return r.bus.Send("incident.info", body, bus.PriorityInfo, inc.ID)
	case TierAction:
		return r.bus.Send("incident.action", body, bus.PriorityAction, inc.ID)
	case TierUrgent:
		return r.bus.SendTier3(ctx, "incident.urgent", body, inc.ID)
	default:
		return nil
	}
}
