// Package analytics tracks search and indexing activity. Events flow from
// the engine and query path through a buffered collector into Kafka; the
// aggregator consumes them back into rolling in-memory statistics served
// over HTTP.
package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventIndexBatch EventType = "index_batch"
)

// SearchEvent is one executed query.
type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	QueryType string    `json:"query_type"`
	Results   int       `json:"results"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
}

// IndexBatchEvent is one completed index batch.
type IndexBatchEvent struct {
	Type       EventType `json:"type"`
	BatchID    string    `json:"batch_id"`
	Requested  int       `json:"requested"`
	Indexed    int       `json:"indexed"`
	Skipped    int       `json:"skipped"`
	LatencyMs  int64     `json:"latency_ms"`
	CorpusDocs int       `json:"corpus_docs"`
	Timestamp  time.Time `json:"timestamp"`
}
