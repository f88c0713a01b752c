package discovery

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the orchestrator.
type Metrics struct {
	Registry       *prometheus.Registry
	RunsTotal      *prometheus.CounterVec
	PhaseDuration  *prometheus.HistogramVec
	DroppedFetches prometheus.Counter
}

// NewMetrics constructs and registers all orchestrator metrics on a
// dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_runs_total",
			Help: "Total discovery runs by final status.",
		},
		[]string{"status"},
	)
	phaseDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "discovery_phase_duration_seconds",
			Help:    "Duration of each pipeline phase.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"},
	)
	dropped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "discovery_dropped_fetches_total",
			Help: "Total pages dropped because extraction failed.",
		},
	)

	registry.MustRegister(runs, phaseDuration, dropped)

	return &Metrics{
		Registry:       registry,
		RunsTotal:      runs,
		PhaseDuration:  phaseDuration,
		DroppedFetches: dropped,
	}
}

// IncRun counts a finished run by status.
func (m *Metrics) IncRun(status string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
}

// ObservePhase records a phase duration.
func (m *Metrics) ObservePhase(phase Phase, d time.Duration) {
	if m == nil {
		return
	}
	m.PhaseDuration.WithLabelValues(string(phase)).Observe(d.Seconds())
}

// IncDrop counts a dropped page fetch.
func (m *Metrics) IncDrop() {
	if m == nil {
		return
	}
	m.DroppedFetches.Inc()
}
