// Package metrics exposes Prometheus instrumentation for timeline builds,
// slice queries, and session reloads.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dagtrace"

// Metrics holds the collectors registered for one process. A nil *Metrics
// records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	builds        prometheus.Counter
	buildDuration prometheus.Histogram
	items         prometheus.Gauge
	drops         *prometheus.CounterVec
	queries       *prometheus.CounterVec
	reloads       *prometheus.CounterVec
}

// New registers the collectors with reg. Pass prometheus.NewRegistry() in
// tests to keep them isolated from the default registry.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,

		builds: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "timeline",
			Name:      "builds_total",
			Help:      "Total timeline builds",
		}),
		buildDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "timeline",
			Name:      "build_duration_seconds",
			Help:      "Time to build a timeline in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		items: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "timeline",
			Name:      "items",
			Help:      "Items in the most recently built timeline",
		}),
		// Labels: kind (malformed_event, unattributed_event)
		drops: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "timeline",
			Name:      "dropped_events_total",
			Help:      "Events excluded from timelines by diagnostic kind",
		}, []string{"kind"}),
		// Labels: query (slice, payload, alias), status (ok, not_found, error)
		queries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "requests_total",
			Help:      "Node slice and payload queries by outcome",
		}, []string{"query", "status"}),
		// Labels: status (ok, error)
		reloads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "reloads_total",
			Help:      "Session loads and reloads by outcome",
		}, []string{"status"}),
	}
}

// ObserveBuild records one timeline build.
func (m *Metrics) ObserveBuild(d time.Duration, items int, drops map[string]int) {
	if m == nil {
		return
	}
	m.builds.Inc()
	m.buildDuration.Observe(d.Seconds())
	m.items.Set(float64(items))
	for kind, n := range drops {
		m.drops.WithLabelValues(kind).Add(float64(n))
	}
}

// ObserveQuery records one slice, payload, or alias lookup.
func (m *Metrics) ObserveQuery(query, status string) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(query, status).Inc()
}

// ObserveReload records one session load attempt.
func (m *Metrics) ObserveReload(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.reloads.WithLabelValues(status).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
