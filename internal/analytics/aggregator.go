package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/attestor-labs/lexsearch/pkg/kafka"
)

// AggregatedStats is the rolling view served to operators.
type AggregatedStats struct {
	TotalSearches     int64            `json:"total_searches"`
	TotalDocsIndexed  int64            `json:"total_docs_indexed"`
	TotalDocsSkipped  int64            `json:"total_docs_skipped"`
	CacheHits         int64            `json:"cache_hits"`
	CacheMisses       int64            `json:"cache_misses"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      int64            `json:"p50_latency_ms"`
	P95LatencyMs      int64            `json:"p95_latency_ms"`
	P99LatencyMs      int64            `json:"p99_latency_ms"`
	SearchesByType    map[string]int64 `json:"searches_by_type"`
	TopQueries        []QueryCount     `json:"top_queries"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	QueriesPerMinute  float64          `json:"queries_per_minute"`
}

// QueryCount pairs a query string with how often it ran.
type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator consumes analytics events from Kafka into rolling counters.
type Aggregator struct {
	mu                sync.RWMutex
	totalSearches     atomic.Int64
	totalDocsIndexed  atomic.Int64
	totalDocsSkipped  atomic.Int64
	cacheHits         atomic.Int64
	cacheMisses       atomic.Int64
	zeroResults       atomic.Int64
	latencies         []int64
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	searchesByType    map[string]int64
	startTime         time.Time

	consumers []*kafka.Consumer
	logger    *slog.Logger
}

// NewAggregator creates an Aggregator over the given consumers, one per
// analytics topic.
func NewAggregator(consumers ...*kafka.Consumer) *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, 10000),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		searchesByType:    make(map[string]int64),
		startTime:         time.Now(),
		consumers:         consumers,
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// AddConsumers attaches the Kafka consumers feeding this aggregator. It
// exists because the consumers' handlers need the aggregator first.
func (a *Aggregator) AddConsumers(consumers ...*kafka.Consumer) {
	a.consumers = append(a.consumers, consumers...)
}

// Start begins consuming every topic. It blocks until ctx is cancelled.
func (a *Aggregator) Start(ctx context.Context) error {
	a.logger.Info("analytics aggregator starting", "topics", len(a.consumers))
	g, gctx := errgroup.WithContext(ctx)
	for _, consumer := range a.consumers {
		consumer := consumer
		g.Go(func() error { return consumer.Start(gctx) })
	}
	return g.Wait()
}

// HandleEvent returns the Kafka handler that feeds the aggregator. Events
// that decode as neither kind are logged and dropped.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		if event, err := kafka.DecodeJSON[SearchEvent](value); err == nil && event.Type == EventSearch {
			agg.recordSearchEvent(event)
			return nil
		}
		if event, err := kafka.DecodeJSON[IndexBatchEvent](value); err == nil && event.Type == EventIndexBatch {
			agg.recordIndexEvent(event)
			return nil
		}
		agg.logger.Error("unrecognised analytics event", "value_size", len(value))
		return nil
	}
}

func (a *Aggregator) recordSearchEvent(event SearchEvent) {
	a.totalSearches.Add(1)
	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}
	if event.Results == 0 {
		a.zeroResults.Add(1)
	}

	a.mu.Lock()
	a.latencies = append(a.latencies, event.LatencyMs)
	a.queryCounts[event.Query]++
	a.searchesByType[event.QueryType]++
	if event.Results == 0 {
		a.zeroResultQueries[event.Query]++
	}
	a.mu.Unlock()
}

func (a *Aggregator) recordIndexEvent(event IndexBatchEvent) {
	a.totalDocsIndexed.Add(int64(event.Indexed))
	a.totalDocsSkipped.Add(int64(event.Skipped))
}

// Stats snapshots the rolling counters.
func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:    a.totalSearches.Load(),
		TotalDocsIndexed: a.totalDocsIndexed.Load(),
		TotalDocsSkipped: a.totalDocsSkipped.Load(),
		CacheHits:        a.cacheHits.Load(),
		CacheMisses:      a.cacheMisses.Load(),
		ZeroResultCount:  a.zeroResults.Load(),
		SearchesByType:   make(map[string]int64, len(a.searchesByType)),
	}
	for queryType, count := range a.searchesByType {
		stats.SearchesByType[queryType] = count
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
