package escalation

import (
	"context"
	"testing"

	"github.com/cortexd/cortexd/internal/bus"
	"github.com/cortexd/cortexd/internal/domain"
)

func TestSelectTierUrgentOnRemediationFailure(t *testing.T) {
	tier := SelectTier(true, domain.RunbookModeLive, 0.9, 0.5, true, domain.SeverityMedium)
	if tier != TierUrgent {
		t.Fatalf("expected TierUrgent, got %v", tier)
	}
}

func TestSelectTierUrgentWhenNoRunbook(t *testing.T) {
	tier := SelectTier(false, "", 0, 0.5, false, domain.SeverityMedium)
	if tier != TierUrgent {
		t.Fatalf("expected TierUrgent, got %v", tier)
	}
}

func TestSelectTierUrgentWhenCriticalEvenWithDryRunRunbook(t *testing.T) {
	tier := SelectTier(true, domain.RunbookModeDryRun, 0.9, 0.5, false, domain.SeverityCritical)
	if tier != TierUrgent {
		t.Fatalf("expected TierUrgent for critical severity regardless of runbook mode, got %v", tier)
	}
}

func TestSelectTierSilentWhenConfidentAndLive(t *testing.T) {
	tier := SelectTier(true, domain.RunbookModeLive, 0.95, 0.5, false, domain.SeverityHigh)
	if tier != TierSilent {
		t.Fatalf("expected TierSilent, got %v", tier)
	}
}

func TestSelectTierInfoWhenLowSeverityAndLive(t *testing.T) {
	tier := SelectTier(true, domain.RunbookModeLive, 0.95, 0.5, false, domain.SeverityLow)
	if tier != TierInfo {
		t.Fatalf("expected TierInfo, got %v", tier)
	}
}

func TestSelectTierActionWhenDryRunAndNonCritical(t *testing.T) {
	tier := SelectTier(true, domain.RunbookModeDryRun, 0.9, 0.5, false, domain.SeverityMedium)
	if tier != TierAction {
		t.Fatalf("expected TierAction, got %v", tier)
	}
}

func TestFireUrgentDeliversViaBus(t *testing.T) {
	b := bus.New(nil)
	received := false
	b.Subscribe("incident.urgent", func(bus.Message) { received = true })

	r := NewRouter(b, nil)
	err := r.Fire(context.Background(), TierUrgent, domain.Incident{ID: "INC-1", AnomalyType: domain.AnomalyDiskFull})
	if err != nil {
		t.Fatalf("Fire: %v", err)
	}
	if !received {
		t.Fatal("expected bus subscriber to receive urgent escalation")
	}
}
