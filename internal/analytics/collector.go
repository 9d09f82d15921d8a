package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/attestor-labs/lexsearch/internal/engine"
	"github.com/attestor-labs/lexsearch/pkg/kafka"
	"github.com/attestor-labs/lexsearch/pkg/resilience"
)

// Collector buffers analytics events and publishes them to Kafka from a
// single background goroutine. Track never blocks; when the buffer is full
// the event is dropped.
type Collector struct {
	producer *kafka.Producer
	eventCh  chan interface{}
	logger   *slog.Logger
	done     chan struct{}
}

// NewCollector creates a Collector with the given buffer size.
func NewCollector(producer *kafka.Producer, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		producer: producer,
		eventCh:  make(chan interface{}, bufferSize),
		logger:   slog.Default().With("component", "analytics-collector"),
		done:     make(chan struct{}),
	}
}

// Start launches the publishing goroutine.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					return
				}
				if err := c.publish(ctx, event); err != nil {
					c.logger.Error("failed to publish analytics event", "error", err)
				}
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh))
}

// Track enqueues one event without blocking.
func (c *Collector) Track(event interface{}) {
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops accepting events and waits for the publisher to exit.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

// publish writes one event with bounded retry; analytics events are
// droppable, so exhausted retries surface as a log line, not an error to
// the tracker.
func (c *Collector) publish(ctx context.Context, event interface{}) error {
	return resilience.Retry(ctx, "analytics-publish", resilience.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 50 * time.Millisecond,
	}, func() error {
		return c.producer.Publish(ctx, kafka.Event{
			Key:   "analytics",
			Value: event,
		})
	})
}

func (c *Collector) drainRemaining() {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			if err := c.publish(context.Background(), event); err != nil {
				c.logger.Error("failed to publish remaining event", "error", err)
			}
		default:
			return
		}
	}
}

// Notifier adapts engine events into collector events. It satisfies the
// engine's Notifier interface, so wiring analytics is just another notifier
// in the fan-out. Search and batch events go to separate collectors because
// they publish to separate topics.
type Notifier struct {
	Searches *Collector
	Batches  *Collector
}

func (n Notifier) IndexingProgress(string, float64) {}

func (n Notifier) IndexingComplete(stats engine.BatchStats) {
	if n.Batches == nil {
		return
	}
	n.Batches.Track(IndexBatchEvent{
		Type:       EventIndexBatch,
		BatchID:    stats.BatchID,
		Requested:  stats.Requested,
		Indexed:    stats.Indexed,
		Skipped:    len(stats.Skipped),
		LatencyMs:  stats.Duration.Milliseconds(),
		CorpusDocs: stats.Corpus.TotalDocuments,
		Timestamp:  time.Now(),
	})
}

func (n Notifier) IndexingError(string, error) {}

func (n Notifier) SearchComplete(stats engine.SearchStats) {
	if n.Searches == nil {
		return
	}
	n.Searches.Track(SearchEvent{
		Type:      EventSearch,
		Query:     stats.Query,
		QueryType: stats.Type,
		Results:   stats.Results,
		LatencyMs: stats.Duration.Milliseconds(),
		CacheHit:  stats.CacheHit,
		Timestamp: time.Now(),
	})
}

func (n Notifier) SearchError(string, error) {}
