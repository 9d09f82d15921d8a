package analytics

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attestor-labs/lexsearch/internal/engine"
)

func feed(t *testing.T, agg *Aggregator, event interface{}) {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	require.NoError(t, HandleEvent(agg)(context.Background(), []byte("analytics"), data))
}

func searchEvent(query string, results int, latencyMs int64, cacheHit bool) SearchEvent {
	return SearchEvent{
		Type:      EventSearch,
		Query:     query,
		QueryType: "fulltext",
		Results:   results,
		LatencyMs: latencyMs,
		CacheHit:  cacheHit,
		Timestamp: time.Now(),
	}
}

func TestAggregatorSearchCounters(t *testing.T) {
	agg := NewAggregator()

	feed(t, agg, searchEvent("breach of contract", 5, 10, false))
	feed(t, agg, searchEvent("breach of contract", 5, 20, true))
	feed(t, agg, searchEvent("unknown plaintiff", 0, 30, false))

	stats := agg.Stats()
	assert.Equal(t, int64(3), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(2), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.Equal(t, int64(3), stats.SearchesByType["fulltext"])
	assert.InDelta(t, 20.0, stats.AvgLatencyMs, 0.001)
	assert.Greater(t, stats.QueriesPerMinute, 0.0)
}

func TestAggregatorIndexCounters(t *testing.T) {
	agg := NewAggregator()

	feed(t, agg, IndexBatchEvent{
		Type: EventIndexBatch, BatchID: "b1",
		Requested: 10, Indexed: 8, Skipped: 2,
		LatencyMs: 100, CorpusDocs: 8, Timestamp: time.Now(),
	})
	feed(t, agg, IndexBatchEvent{
		Type: EventIndexBatch, BatchID: "b2",
		Requested: 5, Indexed: 5,
		LatencyMs: 50, CorpusDocs: 13, Timestamp: time.Now(),
	})

	stats := agg.Stats()
	assert.Equal(t, int64(13), stats.TotalDocsIndexed)
	assert.Equal(t, int64(2), stats.TotalDocsSkipped)
}

func TestAggregatorTopQueries(t *testing.T) {
	agg := NewAggregator()

	for i := 0; i < 3; i++ {
		feed(t, agg, searchEvent("indemnification clause", 2, 5, false))
	}
	feed(t, agg, searchEvent("force majeure", 1, 5, false))
	feed(t, agg, searchEvent("nonexistent entity", 0, 5, false))

	stats := agg.Stats()
	require.NotEmpty(t, stats.TopQueries)
	assert.Equal(t, "indemnification clause", stats.TopQueries[0].Query)
	assert.Equal(t, int64(3), stats.TopQueries[0].Count)

	require.Len(t, stats.ZeroResultQueries, 1)
	assert.Equal(t, "nonexistent entity", stats.ZeroResultQueries[0].Query)
}

func TestAggregatorTopQueriesTieBreaksByQuery(t *testing.T) {
	counts := map[string]int64{"zeta": 2, "alpha": 2, "mid": 5}
	got := topN(counts, 10)
	require.Len(t, got, 3)
	assert.Equal(t, "mid", got[0].Query)
	assert.Equal(t, "alpha", got[1].Query)
	assert.Equal(t, "zeta", got[2].Query)

	capped := topN(counts, 2)
	assert.Len(t, capped, 2)
}

func TestAggregatorLatencyPercentiles(t *testing.T) {
	agg := NewAggregator()
	for i := int64(1); i <= 100; i++ {
		feed(t, agg, searchEvent("q", 1, i, false))
	}

	stats := agg.Stats()
	assert.Equal(t, int64(51), stats.P50LatencyMs)
	assert.Equal(t, int64(96), stats.P95LatencyMs)
	assert.Equal(t, int64(100), stats.P99LatencyMs)
}

func TestHandleEventDropsUnrecognised(t *testing.T) {
	agg := NewAggregator()
	err := HandleEvent(agg)(context.Background(), nil, []byte(`{"type":"mystery"}`))
	require.NoError(t, err, "bad events are dropped, not retried")
	assert.Equal(t, int64(0), agg.Stats().TotalSearches)
}

func TestNotifierNilCollectorsAreSafe(t *testing.T) {
	n := Notifier{}
	assert.NotPanics(t, func() {
		n.SearchComplete(engine.SearchStats{Query: "q", Results: 1})
		n.IndexingComplete(engine.BatchStats{BatchID: "b"})
		n.IndexingError("b", nil)
		n.SearchError("q", nil)
		n.IndexingProgress("b", 50)
	})
}
