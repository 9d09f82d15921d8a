// Package api exposes the engine over HTTP: document ingestion, the four
// query strategies, corpus statistics, and cache administration.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/attestor-labs/lexsearch/internal/catalog"
	"github.com/attestor-labs/lexsearch/internal/document"
	"github.com/attestor-labs/lexsearch/internal/engine"
	"github.com/attestor-labs/lexsearch/internal/search"
	"github.com/attestor-labs/lexsearch/pkg/errors"
	"github.com/attestor-labs/lexsearch/pkg/logger"
)

// Handler serves the v1 API.
type Handler struct {
	engine   *engine.Engine
	executor *search.Executor
	cache    *search.QueryCache
	catalog  *catalog.Catalog
	logger   *slog.Logger
}

// New creates a Handler. cache and cat may be nil when those subsystems are
// disabled.
func New(eng *engine.Engine, exec *search.Executor, cache *search.QueryCache, cat *catalog.Catalog) *Handler {
	return &Handler{
		engine:   eng,
		executor: exec,
		cache:    cache,
		catalog:  cat,
		logger:   slog.Default().With("component", "api-handler"),
	}
}

type indexRequest struct {
	Documents []document.Input `json:"documents"`
}

// IndexDocuments ingests a batch synchronously and reports the outcome.
func (h *Handler) IndexDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Documents) == 0 {
		h.writeError(w, http.StatusBadRequest, "documents array is required")
		return
	}

	h.registerPending(ctx, req.Documents)
	stats, err := h.engine.IndexDocuments(ctx, req.Documents)
	if err != nil {
		h.markAllFailed(ctx, req.Documents, err.Error())
		log.Error("index batch failed", "error", err)
		h.writeAppError(w, err)
		return
	}
	h.recordOutcomes(ctx, req.Documents, stats)

	log.Info("index batch completed",
		"batch_id", stats.BatchID,
		"indexed", stats.Indexed,
		"skipped", len(stats.Skipped),
	)
	h.writeJSON(w, http.StatusOK, stats)
}

// Search executes one query.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var query search.Query
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	resp, err := h.executor.Search(ctx, query)
	if err != nil {
		log.Error("search failed", "query", query.Text, "type", query.Type, "error", err)
		h.writeAppError(w, err)
		return
	}

	log.Info("search completed",
		"query", query.Text,
		"type", resp.Type,
		"total_hits", resp.TotalHits,
		"returned", len(resp.Results),
		"cache_hit", resp.CacheHit,
		"took", resp.Took,
	)
	h.writeJSON(w, http.StatusOK, resp)
}

// documentView is the public shape of an indexed document. Raw token slices
// stay internal.
type documentView struct {
	ID        string                    `json:"id"`
	Name      string                    `json:"name"`
	Metadata  document.Metadata         `json:"metadata"`
	Entities  []document.ResolvedEntity `json:"entities,omitempty"`
	IndexedAt time.Time                 `json:"indexed_at"`
	Catalog   *catalog.Record           `json:"catalog,omitempty"`
}

// GetDocument returns one indexed document by ID.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID := r.PathValue("id")

	snap, err := h.engine.Snapshot()
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	doc, ok := snap.Store.Get(docID)
	if !ok {
		h.writeError(w, http.StatusNotFound, fmt.Sprintf("document %s not found", docID))
		return
	}

	view := documentView{
		ID:        doc.ID,
		Name:      doc.Name,
		Metadata:  doc.Metadata,
		Entities:  doc.Entities,
		IndexedAt: doc.IndexedAt,
	}
	if h.catalog != nil {
		if rec, err := h.catalog.Get(ctx, docID); err == nil {
			view.Catalog = rec
		}
	}
	h.writeJSON(w, http.StatusOK, view)
}

type corpusStatsResponse struct {
	State   string                `json:"state"`
	Version uint64                `json:"index_version"`
	Corpus  engine.CorpusMetadata `json:"corpus"`
	Catalog map[string]int        `json:"catalog_status,omitempty"`
}

// CorpusStats returns the derived statistics of the current snapshot.
func (h *Handler) CorpusStats(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.Snapshot()
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	resp := corpusStatsResponse{
		State:   h.engine.State().String(),
		Version: snap.Version,
		Corpus:  snap.Corpus,
	}
	if h.catalog != nil {
		if counts, err := h.catalog.CountByStatus(r.Context()); err == nil {
			resp.Catalog = counts
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// ClearIndex resets the engine and drops cached responses.
func (h *Handler) ClearIndex(w http.ResponseWriter, r *http.Request) {
	h.engine.ClearIndex()
	if h.cache != nil {
		if _, err := h.cache.Invalidate(r.Context()); err != nil {
			h.logger.Warn("cache invalidation after clear failed", "error", err)
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// CacheStats reports process-local cache hit rates.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

// CacheInvalidate drops every cached query response.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	dropped, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"invalidated": dropped})
}

func (h *Handler) registerPending(ctx context.Context, docs []document.Input) {
	if h.catalog == nil {
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
	if err := h.catalog.RegisterPending(ctx, records); err != nil {
		h.logger.Error("failed to register pending documents", "error", err)
	}
}

func (h *Handler) recordOutcomes(ctx context.Context, docs []document.Input, stats *engine.BatchStats) {
	if h.catalog == nil {
		return
	}
	failed := make(map[string]string, len(stats.Skipped))
	for _, skip := range stats.Skipped {
		failed[skip.ID] = skip.Reason
	}
	for _, doc := range docs {
		if reason, ok := failed[doc.ID]; ok {
			if err := h.catalog.MarkFailed(ctx, doc.ID, reason); err != nil {
				h.logger.Error("failed to mark document failed", "doc_id", doc.ID, "error", err)
			}
			continue
		}
		if err := h.catalog.MarkIndexed(ctx, doc.ID); err != nil {
			h.logger.Error("failed to mark document indexed", "doc_id", doc.ID, "error", err)
		}
	}
}

func (h *Handler) markAllFailed(ctx context.Context, docs []document.Input, reason string) {
	if h.catalog == nil {
		return
	}
	for _, doc := range docs {
		if err := h.catalog.MarkFailed(ctx, doc.ID, reason); err != nil {
			h.logger.Error("failed to mark document failed", "doc_id", doc.ID, "error", err)
		}
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	h.writeError(w, errors.HTTPStatusCode(err), err.Error())
}
