// Package metrics provides Prometheus metrics for cortexd.
// Ambient observability — counters, gauges, histograms for incidents,
// runbooks, the real-time learning pipeline, compression, cross-domain
// matching, the message bus, and the cortex router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Probes ─────────────────────────────────────────────────────────────────

// ProbePollLatency tracks probe poll duration in seconds.
var ProbePollLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "cortexd",
	Name:      "probe_poll_latency_seconds",
	Help:      "Probe poll duration in seconds.",
	Buckets:   prometheus.DefBuckets,
}, []string{"source"})

// ProbeHealthy tracks the last poll's health result (1=healthy, 0=unhealthy).
var ProbeHealthy = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "cortexd",
	Name:      "probe_healthy",
	Help:      "Last probe poll result (1=healthy, 0=unhealthy).",
}, []string{"source"})

// ─── Incidents ──────────────────────────────────────────────────────────────

// IncidentsDetected tracks incidents opened by anomaly type.
var IncidentsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "cortexd",
	Name:      "incidents_detected_total",
	Help:      "Total incidents detected by anomaly type.",
}, []string{"anomaly_type"})

// IncidentsActive tracks currently open incidents.
var IncidentsActive = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "cortexd",
	Name:      "incidents_active",
	Help:      "Number of currently non-terminal incidents.",
})

// IncidentMTTR tracks resolution time in seconds.
var IncidentMTTR = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "cortexd",
	Name:      "incident_mttr_seconds",
	Help:      "Mean time to resolution for resolved incidents.",
	Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
})

// ─── Runbooks ───────────────────────────────────────────────────────────────

// RunbookExecutions tracks runbook runs by outcome.
var RunbookExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "cortexd",
	Name:      "runbook_executions_total",
	Help:      "Total runbook executions by runbook id and outcome.",
}, []string{"runbook_id", "outcome"})

// ─── Real-time learning ─────────────────────────────────────────────────────

// RTLQueueDepth tracks the bounded detection queue's current depth.
var RTLQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "cortexd",
	Name:      "rtl_queue_depth",
	Help:      "Current depth of the detection queue.",
})

// RTLDropped tracks detections dropped due to queue saturation.
var RTLDropped = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "cortexd",
	Name:      "rtl_dropped_total",
	Help:      "Total detections dropped at the bounded queue.",
})

// RTLPropagations tracks propagation actions by tier.
var RTLPropagations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "cortexd",
	Name:      "rtl_propagations_total",
	Help:      "Total propagation actions by tier and action kind.",
}, []string{"tier", "action"})

// ─── Compression ────────────────────────────────────────────────────────────

// CompressionRatio tracks the achieved compression ratio per archived cluster.
var CompressionRatio = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "cortexd",
	Name:      "compression_ratio",
	Help:      "Achieved compression ratio (tokens_before / tokens_after) per archived cluster.",
	Buckets:   []float64{1, 2, 3, 5, 10, 20, 50, 100},
})

// CompressionRollbacks tracks rollback events.
var CompressionRollbacks = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "cortexd",
	Name:      "compression_rollbacks_total",
	Help:      "Total compression runs that rolled back after a write failure.",
})

// ─── Cross-domain ───────────────────────────────────────────────────────────

// CrossDomainMatches tracks matches found per domain pair.
var CrossDomainMatches = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "cortexd",
	Name:      "crossdomain_matches_total",
	Help:      "Total cross-domain pattern matches found, by domain pair.",
}, []string{"domain_a", "domain_b"})

// ─── Bus ────────────────────────────────────────────────────────────────────

// BusMessages tracks messages sent by subject and priority.
var BusMessages = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "cortexd",
	Name:      "bus_messages_total",
	Help:      "Total messages sent on the bus, by subject and priority.",
}, []string{"subject", "priority"})

// ─── Cortex router ──────────────────────────────────────────────────────────

// CortexAttempts tracks routing attempts by route type and outcome.
var CortexAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "cortexd",
	Name:      "cortex_attempts_total",
	Help:      "Total model selection attempts, by route type and success.",
}, []string{"route", "success"})
