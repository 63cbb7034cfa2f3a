// Package metrics defines the Prometheus metric collectors used by the
// indexer, the HTTP service and the Kafka worker, and exposes an HTTP handler
// for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for indexgen.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	IndexRunsTotal       *prometheus.CounterVec
	StageDuration        *prometheus.HistogramVec
	LinesReadTotal       prometheus.Counter
	WordsIndexedTotal    prometheus.Counter
	UnindexableTotal     prometheus.Counter
	PartitionWords       *prometheus.GaugeVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	CacheBreakerState    prometheus.Gauge
	JobsConsumedTotal    *prometheus.CounterVec
}

// New creates all metrics and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all metrics and registers them with reg.
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
		IndexRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexgen_runs_total",
				Help: "Index runs by outcome (ok, config_error, input_error, output_error, data_error, failed).",
			},
			[]string{"status"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "indexgen_stage_duration_seconds",
				Help:    "Duration of index build stages (read, sort, emit).",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"stage"},
		),
		LinesReadTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "indexgen_lines_read_total",
				Help: "Total document lines read.",
			},
		),
		WordsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "indexgen_words_indexed_total",
				Help: "Total word occurrences inserted into an index.",
			},
		),
		UnindexableTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "indexgen_unindexable_words_total",
				Help: "Words skipped because they cannot be assigned to a letter partition.",
			},
		),
		PartitionWords: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "indexgen_partition_words",
				Help: "Distinct words per partition in the most recent run.",
			},
			[]string{"partition"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "indexgen_cache_hits_total",
				Help: "Total number of report cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "indexgen_cache_misses_total",
				Help: "Total number of report cache misses.",
			},
		),
		CacheBreakerState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "indexgen_cache_breaker_state",
				Help: "State of the circuit guarding Redis (0 closed, 1 open, 2 half-open).",
			},
		),
		JobsConsumedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexgen_jobs_consumed_total",
				Help: "Index jobs consumed from Kafka by outcome.",
			},
			[]string{"status"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.IndexRunsTotal,
		m.StageDuration,
		m.LinesReadTotal,
		m.WordsIndexedTotal,
		m.UnindexableTotal,
		m.PartitionWords,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheBreakerState,
		m.JobsConsumedTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
