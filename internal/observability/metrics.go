package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// query coordinator, the freshness cache, and the observation ingest loop.
type Metrics struct {
	QueriesTotal    *prometheus.CounterVec   // labels: intent, path, outcome={ok,degraded,error}
	QueryDuration   *prometheus.HistogramVec // label: path
	QueriesInFlight prometheus.Gauge

	// Cache metrics.
	CacheLookups       *prometheus.CounterVec // labels: result={hit,miss}, tier
	CacheInvalidations *prometheus.CounterVec // label: reason={sweep,upstream,admin}
	CacheEntries       prometheus.Gauge

	// Decomposition metrics.
	StepsExecuted prometheus.Counter
	StepFailures  prometheus.Counter

	// Collaborator metrics.
	CollaboratorRetries prometheus.Counter
	DelegateDuration    prometheus.Histogram

	// Ingest metrics.
	ObservationsIngested prometheus.Counter
	IngestErrors         prometheus.Counter
	IngestRunning        prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus
// registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.QueriesTotal,
		m.QueryDuration,
		m.QueriesInFlight,
		m.CacheLookups,
		m.CacheInvalidations,
		m.CacheEntries,
		m.StepsExecuted,
		m.StepFailures,
		m.CollaboratorRetries,
		m.DelegateDuration,
		m.ObservationsIngested,
		m.IngestErrors,
		m.IngestRunning,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		QueriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fire_danger",
			Name:      "queries_total",
			Help:      "Queries handled, by intent, execution path, and outcome.",
		}, []string{"intent", "path", "outcome"}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fire_danger",
			Name:      "query_duration_seconds",
			Help:      "End-to-end query duration by execution path.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"path"}),
		QueriesInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fire_danger",
			Name:      "queries_in_flight",
			Help:      "Queries currently being coordinated.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fire_danger",
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by result and freshness tier.",
		}, []string{"result", "tier"}),
		CacheInvalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fire_danger",
			Name:      "cache_invalidations_total",
			Help:      "Cache entries removed, by reason.",
		}, []string{"reason"}),
		CacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fire_danger",
			Name:      "cache_entries",
			Help:      "Entries currently stored in the freshness cache.",
		}),
		StepsExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fire_danger",
			Name:      "decomposition_steps_total",
			Help:      "Decomposition steps executed.",
		}),
		StepFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fire_danger",
			Name:      "decomposition_step_failures_total",
			Help:      "Decomposition steps that failed and aborted their plan.",
		}),
		CollaboratorRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fire_danger",
			Name:      "collaborator_retries_total",
			Help:      "Retries against external collaborators.",
		}),
		DelegateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fire_danger",
			Name:      "delegate_duration_seconds",
			Help:      "Duration of delegated collaborator calls.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ObservationsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fire_danger",
			Name:      "observations_ingested_total",
			Help:      "Station observations consumed from the source topic.",
		}),
		IngestErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fire_danger",
			Name:      "ingest_errors_total",
			Help:      "Observation messages that failed to parse or validate.",
		}),
		IngestRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fire_danger",
			Name:      "ingest_running",
			Help:      "1 when the ingest loop is active, 0 when shut down.",
		}),
	}
}
