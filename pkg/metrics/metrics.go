// Package metrics defines the Prometheus collectors used by the indexer and
// the searcher and exposes an HTTP handler for scraping. Recording helpers are
// nil-safe so components can run without metrics in tests and tools.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	DocsRegisteredTotal  prometheus.Counter
	DocsDuplicateTotal   prometheus.Counter
	PostingsTotal        *prometheus.CounterVec
	IndexFlushesTotal    *prometheus.CounterVec
	ShardMergesTotal     *prometheus.CounterVec
	ShardMergeDuration   *prometheus.HistogramVec
}

// New creates all collectors and registers them with reg. A nil reg means
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
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
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by result type (hit, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of ranked documents per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of query cache misses.",
			},
		),
		DocsRegisteredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docs_registered_total",
				Help: "Documents assigned a new id by the registry.",
			},
		),
		DocsDuplicateTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docs_duplicate_total",
				Help: "Submissions rejected as duplicates of an already registered url.",
			},
		),
		PostingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postings_added_total",
				Help: "Postings accumulated by the partial-index builder, by field.",
			},
			[]string{"field"},
		),
		IndexFlushesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_flushes_total",
				Help: "Total partial-index flush operations by status.",
			},
			[]string{"status"},
		),
		ShardMergesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shard_merges_total",
				Help: "Shard merges by field and status (merged, skipped, failed).",
			},
			[]string{"field", "status"},
		),
		ShardMergeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shard_merge_duration_seconds",
				Help:    "Time spent merging a single shard file.",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			},
			[]string{"field"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DocsRegisteredTotal,
		m.DocsDuplicateTotal,
		m.PostingsTotal,
		m.IndexFlushesTotal,
		m.ShardMergesTotal,
		m.ShardMergeDuration,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func (m *Metrics) DocumentRegistered(duplicate bool) {
	if m == nil {
		return
	}
	if duplicate {
		m.DocsDuplicateTotal.Inc()
		return
	}
	m.DocsRegisteredTotal.Inc()
}

func (m *Metrics) PostingAdded(field string) {
	if m == nil {
		return
	}
	m.PostingsTotal.WithLabelValues(field).Inc()
}

func (m *Metrics) Flushed(status string) {
	if m == nil {
		return
	}
	m.IndexFlushesTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ShardMerged(field, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ShardMergesTotal.WithLabelValues(field, status).Inc()
	if status == "merged" {
		m.ShardMergeDuration.WithLabelValues(field).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) SearchServed(resultType, cacheStatus string, results int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	m.SearchLatency.WithLabelValues(cacheStatus).Observe(elapsed.Seconds())
	m.SearchResultsCount.Observe(float64(results))
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.Inc()
		return
	}
	m.CacheMissesTotal.Inc()
}
