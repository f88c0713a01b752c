package scrape

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scrape client.
type Metrics struct {
	Registry        *prometheus.Registry
	CallsTotal      *prometheus.CounterVec
	CallDuration    prometheus.Histogram
	PagesDiscovered prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	calls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_scrape_calls_total",
			Help: "Total calls issued against the scraping capability.",
		},
		[]string{"capability"},
	)
	callDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "discovery_scrape_call_duration_seconds",
			Help:    "Latency of scraping capability calls.",
			Buckets: prometheus.DefBuckets,
		},
	)
	pagesDiscovered := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "discovery_pages_discovered_total",
			Help: "Total page summaries returned by map and crawl calls.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_scrape_errors_total",
			Help: "Total scraping capability errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(calls, callDuration, pagesDiscovered, errorsTotal)

	return &Metrics{
		Registry:        registry,
		CallsTotal:      calls,
		CallDuration:    callDuration,
		PagesDiscovered: pagesDiscovered,
		ErrorsTotal:     errorsTotal,
	}
}

// IncCall increments the call counter for a capability.
func (m *Metrics) IncCall(capability string) {
	if m == nil {
		return
	}
	m.CallsTotal.WithLabelValues(capability).Inc()
}

// ObserveDuration records a capability call duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.CallDuration.Observe(d.Seconds())
}

// AddPages increments the discovered page counter.
func (m *Metrics) AddPages(n int) {
	if m == nil {
		return
	}
	m.PagesDiscovered.Add(float64(n))
}

// IncError increments the error counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
