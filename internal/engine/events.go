package engine

import (
	"log/slog"
	"time"
)

// SkippedDocument reports a document excluded from a batch together with the
// reason. Skipped documents appear in none of the indices.
type SkippedDocument struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// BatchStats summarises one completed index batch.
type BatchStats struct {
	BatchID   string            `json:"batch_id"`
	Requested int               `json:"requested"`
	Indexed   int               `json:"indexed"`
	Skipped   []SkippedDocument `json:"skipped,omitempty"`
	Duration  time.Duration     `json:"duration"`
	Corpus    CorpusMetadata    `json:"corpus"`
}

// SearchStats summarises one executed query for subscribers.
type SearchStats struct {
	Query    string        `json:"query"`
	Type     string        `json:"type"`
	Results  int           `json:"results"`
	Duration time.Duration `json:"duration"`
	CacheHit bool          `json:"cache_hit"`
}

// Notifier receives asynchronous progress and completion events. It is
// injected explicitly; there is no ambient event bus. Implementations must
// be safe for concurrent use and must not block.
type Notifier interface {
	IndexingProgress(batchID string, percent float64)
	IndexingComplete(stats BatchStats)
	IndexingError(batchID string, err error)
	SearchComplete(stats SearchStats)
	SearchError(query string, err error)
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) IndexingProgress(string, float64) {}
func (NopNotifier) IndexingComplete(BatchStats)      {}
func (NopNotifier) IndexingError(string, error)      {}
func (NopNotifier) SearchComplete(SearchStats)       {}
func (NopNotifier) SearchError(string, error)        {}

// LogNotifier writes every event to slog.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

func (n LogNotifier) IndexingProgress(batchID string, percent float64) {
	n.logger().Debug("indexing progress", "batch_id", batchID, "percent", percent)
}

func (n LogNotifier) IndexingComplete(stats BatchStats) {
	n.logger().Info("indexing complete",
		"batch_id", stats.BatchID,
		"indexed", stats.Indexed,
		"skipped", len(stats.Skipped),
		"duration", stats.Duration,
	)
}

func (n LogNotifier) IndexingError(batchID string, err error) {
	n.logger().Error("indexing failed", "batch_id", batchID, "error", err)
}

func (n LogNotifier) SearchComplete(stats SearchStats) {
	n.logger().Debug("search complete",
		"query", stats.Query,
		"type", stats.Type,
		"results", stats.Results,
		"duration", stats.Duration,
		"cache_hit", stats.CacheHit,
	)
}

func (n LogNotifier) SearchError(query string, err error) {
	n.logger().Error("search failed", "query", query, "error", err)
}

// MultiNotifier fans events out to several notifiers.
type MultiNotifier []Notifier

func (m MultiNotifier) IndexingProgress(batchID string, percent float64) {
	for _, n := range m {
		n.IndexingProgress(batchID, percent)
	}
}

func (m MultiNotifier) IndexingComplete(stats BatchStats) {
	for _, n := range m {
		n.IndexingComplete(stats)
	}
}

func (m MultiNotifier) IndexingError(batchID string, err error) {
	for _, n := range m {
		n.IndexingError(batchID, err)
	}
}

func (m MultiNotifier) SearchComplete(stats SearchStats) {
	for _, n := range m {
		n.SearchComplete(stats)
	}
}

func (m MultiNotifier) SearchError(query string, err error) {
	for _, n := range m {
		n.SearchError(query, err)
	}
}
