// Package metrics defines the Prometheus metric collectors used by the
// search engine and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the engine.
type Metrics struct {
	DocsIndexedTotal    prometheus.Counter
	DocsSkippedTotal    prometheus.Counter
	IndexBatchesTotal   *prometheus.CounterVec
	IndexBatchDuration  prometheus.Histogram
	CorpusDocuments     prometheus.Gauge
	CorpusTerms         prometheus.Gauge
	CorpusEntities      prometheus.Gauge
	SearchQueriesTotal  *prometheus.CounterVec
	SearchLatency       *prometheus.HistogramVec
	SearchResultsCount  prometheus.Histogram
	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates all Prometheus collectors and registers them on the default
// registry.
func New() *Metrics {
	m := &Metrics{
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docs_indexed_total",
				Help: "Total number of documents successfully indexed.",
			},
		),
		DocsSkippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docs_skipped_total",
				Help: "Total number of documents skipped during ingestion due to per-document errors.",
			},
		),
		IndexBatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_batches_total",
				Help: "Total number of index batches by outcome (ok, error).",
			},
			[]string{"outcome"},
		),
		IndexBatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "index_batch_duration_seconds",
				Help:    "Wall-clock duration of index batches in seconds.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		CorpusDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "corpus_documents",
				Help: "Number of documents in the current index snapshot.",
			},
		),
		CorpusTerms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "corpus_terms",
				Help: "Number of distinct terms in the current index snapshot.",
			},
		),
		CorpusEntities: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "corpus_entities",
				Help: "Number of distinct canonical entities in the current index snapshot.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by query type and outcome.",
			},
			[]string{"type", "outcome"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"type", "cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of results returned per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
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
	}

	prometheus.MustRegister(
		m.DocsIndexedTotal,
		m.DocsSkippedTotal,
		m.IndexBatchesTotal,
		m.IndexBatchDuration,
		m.CorpusDocuments,
		m.CorpusTerms,
		m.CorpusEntities,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)
	return m
}

// Handler returns the HTTP handler that serves the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
