// Package ingest drives the indexing pipeline from Kafka. Extraction
// collaborators publish batches of prepared documents to the ingest topic;
// the consumer indexes each batch and records per-document outcomes in the
// catalog.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/attestor-labs/lexsearch/internal/catalog"
	"github.com/attestor-labs/lexsearch/internal/document"
	"github.com/attestor-labs/lexsearch/internal/engine"
	"github.com/attestor-labs/lexsearch/pkg/kafka"
)

// BatchEvent is the payload published to the document-ingest topic.
type BatchEvent struct {
	BatchID   string           `json:"batch_id"`
	Source    string           `json:"source,omitempty"`
	Documents []document.Input `json:"documents"`
	Timestamp time.Time        `json:"timestamp"`
}

// Consumer wraps a Kafka consumer to drive batch indexing.
type Consumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates a Consumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *Consumer {
	return &Consumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "ingest-consumer"),
	}
}

// Start begins consuming ingest events. It blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("ingest consumer starting")
	return c.consumer.Start(ctx)
}

// HandleMessage returns a Kafka MessageHandler that indexes each batch event
// through the engine. If cat is non-nil, every document's status is recorded
// there: PENDING on receipt, then INDEXED or FAILED per the batch outcome.
// Malformed events are logged and dropped rather than retried forever.
func HandleMessage(eng *engine.Engine, cat *catalog.Catalog) kafka.MessageHandler {
	logger := slog.Default().With("component", "ingest-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[BatchEvent](value)
		if err != nil {
			logger.Error("failed to decode ingest event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		if len(event.Documents) == 0 {
			logger.Warn("empty ingest batch", "batch_id", event.BatchID)
			return nil
		}

		registerPending(ctx, cat, event.Documents, logger)

		stats, err := eng.IndexDocuments(ctx, event.Documents)
		if err != nil {
			markAllFailed(ctx, cat, event.Documents, err.Error(), logger)
			return err
		}

		recordOutcomes(ctx, cat, event.Documents, stats, logger)
		logger.Info("ingest batch processed",
			"batch_id", event.BatchID,
			"source", event.Source,
			"indexed", stats.Indexed,
			"skipped", len(stats.Skipped),
		)
		return nil
	}
}

func registerPending(ctx context.Context, cat *catalog.Catalog, docs []document.Input, logger *slog.Logger) {
	if cat == nil {
		return
	}
	records := make([]catalog.Record, 0, len(docs))
	for _, doc := range docs {
		records = append(records, catalog.Record{
			ID:           doc.ID,
			Name:         doc.Name,
			DocumentType: document.ClassifyType(doc),
			CaseID:       doc.Metadata.CaseID,
		})
	}
	if err := cat.RegisterPending(ctx, records); err != nil {
		logger.Error("failed to register pending documents", "error", err)
	}
}

func recordOutcomes(ctx context.Context, cat *catalog.Catalog, docs []document.Input, stats *engine.BatchStats, logger *slog.Logger) {
	if cat == nil {
		return
	}
	failed := make(map[string]string, len(stats.Skipped))
	for _, skip := range stats.Skipped {
		failed[skip.ID] = skip.Reason
	}
	for _, doc := range docs {
		if reason, ok := failed[doc.ID]; ok {
			if err := cat.MarkFailed(ctx, doc.ID, reason); err != nil {
				logger.Error("failed to mark document failed", "doc_id", doc.ID, "error", err)
			}
			continue
		}
		if err := cat.MarkIndexed(ctx, doc.ID); err != nil {
			logger.Error("failed to mark document indexed", "doc_id", doc.ID, "error", err)
		}
	}
}

func markAllFailed(ctx context.Context, cat *catalog.Catalog, docs []document.Input, reason string, logger *slog.Logger) {
	if cat == nil {
		return
	}
	for _, doc := range docs {
		if err := cat.MarkFailed(ctx, doc.ID, reason); err != nil {
			logger.Error("failed to mark document failed", "doc_id", doc.ID, "error", err)
		}
	}
}
