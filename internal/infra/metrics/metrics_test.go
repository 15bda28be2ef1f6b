package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func gatherNames(t *testing.T) map[string]bool {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestCounterMetricsAreRegistered(t *testing.T) {
	// Touch every vec/counter at least once so Gather reports its family
	// even though nothing has incremented it yet in this test binary.
	IncidentsDetected.WithLabelValues("cpu_saturation")
	RunbookExecutions.WithLabelValues("rb-1", "success")
	RTLPropagations.WithLabelValues("1", "sop_patch")
	CrossDomainMatches.WithLabelValues("trading", "fleet")
	BusMessages.WithLabelValues("incident.created", "urgent")
	CortexAttempts.WithLabelValues("user_override", "true")

	names := gatherNames(t)
	want := []string{
		"cortexd_incidents_detected_total",
		"cortexd_runbook_executions_total",
		"cortexd_rtl_propagations_total",
		"cortexd_crossdomain_matches_total",
		"cortexd_bus_messages_total",
		"cortexd_cortex_attempts_total",
	}
	for _, w := range want {
		if !names[w] {
			t.Errorf("expected metric family %q to be registered", w)
		}
	}
}

func TestGaugeAndHistogramMetricsAreRegistered(t *testing.T) {
	ProbeHealthy.WithLabelValues("disk")
	IncidentsActive.Set(0)
	IncidentMTTR.Observe(12)
	RTLQueueDepth.Set(0)
	RTLDropped.Add(0)
	CompressionRatio.Observe(0.3)
	CompressionRollbacks.Add(0)
	ProbePollLatency.WithLabelValues("disk").Observe(0.01)

	names := gatherNames(t)
	want := []string{
		"cortexd_probe_healthy",
		"cortexd_incidents_active",
		"cortexd_incident_mttr_seconds",
		"cortexd_rtl_queue_depth",
		"cortexd_rtl_dropped_total",
		"cortexd_compression_ratio",
		"cortexd_compression_rollbacks_total",
		"cortexd_probe_poll_latency_seconds",
	}
	for _, w := range want {
		if !names[w] {
			t.Errorf("expected metric family %q to be registered", w)
		}
	}
}

func TestAllMetricsShareCortexdNamespace(t *testing.T) {
	names := gatherNames(t)
	found := 0
	for name := range names {
		if len(name) > len("cortexd_") && name[:len("cortexd_")] == "cortexd_" {
			found++
		}
	}
	if found < 10 {
		t.Errorf("expected at least 10 cortexd_ metric families registered, got %d", found)
	}
}
