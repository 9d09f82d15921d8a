package analytics

import (
	"github.com/attestor-labs/lexsearch/internal/engine"
	"github.com/attestor-labs/lexsearch/pkg/metrics"
)

// MetricsNotifier mirrors engine events into Prometheus collectors.
type MetricsNotifier struct {
	M *metrics.Metrics
}

func (n MetricsNotifier) IndexingProgress(string, float64) {}

func (n MetricsNotifier) IndexingComplete(stats engine.BatchStats) {
	n.M.DocsIndexedTotal.Add(float64(stats.Indexed))
	n.M.DocsSkippedTotal.Add(float64(len(stats.Skipped)))
	n.M.IndexBatchesTotal.WithLabelValues("ok").Inc()
	n.M.IndexBatchDuration.Observe(stats.Duration.Seconds())
	n.M.CorpusDocuments.Set(float64(stats.Corpus.TotalDocuments))
	n.M.CorpusTerms.Set(float64(stats.Corpus.TotalTerms))
	n.M.CorpusEntities.Set(float64(stats.Corpus.TotalEntities))
}

func (n MetricsNotifier) IndexingError(string, error) {
	n.M.IndexBatchesTotal.WithLabelValues("error").Inc()
}

func (n MetricsNotifier) SearchComplete(stats engine.SearchStats) {
	n.M.SearchQueriesTotal.WithLabelValues(stats.Type, "ok").Inc()
	cacheStatus := "miss"
	if stats.CacheHit {
		cacheStatus = "hit"
	}
	n.M.SearchLatency.WithLabelValues(stats.Type, cacheStatus).Observe(stats.Duration.Seconds())
	n.M.SearchResultsCount.Observe(float64(stats.Results))
}

func (n MetricsNotifier) SearchError(string, error) {
	n.M.SearchQueriesTotal.WithLabelValues("unknown", "error").Inc()
}
