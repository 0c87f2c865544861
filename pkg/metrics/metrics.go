// Package metrics defines the Prometheus metric collectors used across the
// platform and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	ProximityQueries     *prometheus.CounterVec
	ProximityLatency     *prometheus.HistogramVec
	ProximityResults     *prometheus.HistogramVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	IndexReloadsTotal    *prometheus.CounterVec
	IndexBuildDuration   prometheus.Histogram
	IndexTerms           prometheus.Gauge
	IndexDocuments       prometheus.Gauge
	IndexSkippedLines    prometheus.Gauge
	IndexGeneration      prometheus.Gauge
	CircuitBreakerState  *prometheus.GaugeVec
	AnalyticsEvents      *prometheus.CounterVec
}

// New creates all metrics and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all metrics and registers them with reg. Tests pass
// a fresh prometheus.NewRegistry() so repeated construction does not panic.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		ProximityQueries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proximity_queries_total",
				Help: "Total proximity queries by direction and outcome (hit, zero_result, or an error kind).",
			},
			[]string{"direction", "outcome"},
		),
		ProximityLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "proximity_query_latency_seconds",
				Help:    "Proximity query latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"direction", "cache_status"},
		),
		ProximityResults: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "proximity_results_count",
				Help:    "Number of occurrence pairs returned per proximity query.",
				Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000, 10000},
			},
			[]string{"direction"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses.",
			},
		),
		IndexReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_reloads_total",
				Help: "Total positional index builds by status.",
			},
			[]string{"status"},
		),
		IndexBuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "index_build_duration_seconds",
				Help:    "Time to load the corpus and build the positional index.",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
		),
		IndexTerms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_terms",
				Help: "Distinct terms in the published positional index.",
			},
		),
		IndexDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_documents",
				Help: "Documents in the published positional index.",
			},
		),
		IndexSkippedLines: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_skipped_lines",
				Help: "Corpus lines skipped for lacking a document identifier in the last build.",
			},
		),
		IndexGeneration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_generation",
				Help: "Generation number of the published positional index.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
		AnalyticsEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_events_total",
				Help: "Analytics events by status (published, dropped, failed).",
			},
			[]string{"status"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.ProximityQueries,
		m.ProximityLatency,
		m.ProximityResults,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.IndexReloadsTotal,
		m.IndexBuildDuration,
		m.IndexTerms,
		m.IndexDocuments,
		m.IndexSkippedLines,
		m.IndexGeneration,
		m.CircuitBreakerState,
		m.AnalyticsEvents,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler for the default
// registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
