package anomaly

import (
	"testing"
	"time"

	"github.com/cortexd/cortexd/internal/domain"
)

func TestClassifyProcessDown(t *testing.T) {
	c := New(DefaultRules())
	anomalies := c.Classify(domain.Reading{SourceID: "agent-proc", Healthy: false, PolledAt: time.Now()})

	if len(anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(anomalies))
	}
	if anomalies[0].Type != domain.AnomalyProcessDown {
		t.Fatalf("expected process_down, got %s", anomalies[0].Type)
	}
}

func TestClassifyHealthyReadingProducesNoAnomalies(t *testing.T) {
	c := New(DefaultRules())
	anomalies := c.Classify(domain.Reading{SourceID: "agent-proc", Healthy: true, PolledAt: time.Now()})
	if len(anomalies) != 0 {
		t.Fatalf("expected no anomalies for healthy reading, got %d", len(anomalies))
	}
}

func TestClassifyNetworkPartialVsDown(t *testing.T) {
	c := New(DefaultRules())

	partial := c.Classify(domain.Reading{SourceID: "net", Healthy: false, Labels: map[string]string{"partial": "true"}})
	if len(partial) != 1 || partial[0].Type != domain.AnomalyNetworkPartial {
		t.Fatalf("expected network_partial, got %+v", partial)
	}

	down := c.Classify(domain.Reading{SourceID: "net", Healthy: false, Labels: map[string]string{"partial": "false"}})
	if len(down) != 1 || down[0].Type != domain.AnomalyNetworkDown {
		t.Fatalf("expected network_down, got %+v", down)
	}
}

func TestDiskRuleThresholds(t *testing.T) {
	c := New(DiskRule(10_000, 1_000))

	full := c.Classify(domain.Reading{SourceID: "disk", Value: 500})
	if len(full) != 1 || full[0].Type != domain.AnomalyDiskFull {
		t.Fatalf("expected disk_full, got %+v", full)
	}

	low := c.Classify(domain.Reading{SourceID: "disk", Value: 5000})
	if len(low) != 1 || low[0].Type != domain.AnomalyDiskLow {
		t.Fatalf("expected disk_low, got %+v", low)
	}

	healthy := c.Classify(domain.Reading{SourceID: "disk", Value: 50000})
	if len(healthy) != 0 {
		t.Fatalf("expected no anomaly above thresholds, got %+v", healthy)
	}
}

func TestProfilerZScore(t *testing.T) {
	p := NewProfiler()
	for i := 0; i < 20; i++ {
		p.Observe("latency", 100)
	}
	z := p.Observe("latency", 500)
	if z < 3 {
		t.Fatalf("expected large z-score for outlier, got %f", z)
	}
}
