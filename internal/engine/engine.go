// Package engine owns the index structures behind a single-writer,
// copy-on-write snapshot model. Each batch builds a complete successor
// snapshot which is published atomically, so readers always see the latest
// complete version of the corpus.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/attestor-labs/lexsearch/internal/document"
	"github.com/attestor-labs/lexsearch/internal/index"
	"github.com/attestor-labs/lexsearch/internal/tokenizer"
	"github.com/attestor-labs/lexsearch/pkg/config"
	"github.com/attestor-labs/lexsearch/pkg/errors"
)

// State is the engine lifecycle phase.
type State int32

const (
	StateEmpty State = iota
	StateIndexing
	StateReady
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateIndexing:
		return "indexing"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Engine orchestrates ingestion across the document store and the three
// indices, and publishes immutable snapshots for readers.
type Engine struct {
	cfg      config.IndexConfig
	tok      tokenizer.Tokenizer
	embedder index.Embedder
	weights  *index.Weights
	notifier Notifier
	logger   *slog.Logger

	writeMu sync.Mutex
	current atomic.Pointer[Snapshot]
	state   atomic.Int32
	pool    *ants.Pool
}

// Option configures an Engine.
type Option func(*Engine) error

// WithTokenizer substitutes the tokenization strategy.
func WithTokenizer(tok tokenizer.Tokenizer) Option {
	return func(e *Engine) error {
		if tok == nil {
			return fmt.Errorf("tokenizer must not be nil")
		}
		e.tok = tok
		return nil
	}
}

// WithEmbedder substitutes the vector embedding provider.
func WithEmbedder(emb index.Embedder) Option {
	return func(e *Engine) error {
		if emb == nil {
			return fmt.Errorf("embedder must not be nil")
		}
		e.embedder = emb
		return nil
	}
}

// WithNotifier injects the event subscriber. Default is LogNotifier.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) error {
		if n == nil {
			n = NopNotifier{}
		}
		e.notifier = n
		return nil
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// New creates an Engine in the empty state.
func New(cfg config.IndexConfig, opts ...Option) (*Engine, error) {
	workers := cfg.AnalysisWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("creating analysis pool: %w", err)
	}

	weights := index.NewWeights(cfg.TermWeights)
	e := &Engine{
		cfg:      cfg,
		tok:      tokenizer.New(cfg.StopWords...),
		embedder: index.NewHashingEmbedder(cfg.VectorDimensions, weights, cfg.TopKeywords),
		weights:  weights,
		notifier: LogNotifier{},
		logger:   slog.Default().With("component", "index-engine"),
		pool:     pool,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			pool.Release()
			return nil, err
		}
	}
	e.state.Store(int32(StateEmpty))
	return e, nil
}

// Close releases the analysis pool.
func (e *Engine) Close() {
	e.pool.Release()
}

// State returns the current lifecycle phase.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Weights exposes the domain term-weight table for scoring.
func (e *Engine) Weights() *index.Weights {
	return e.weights
}

// Tokenize runs query text through the engine's tokenizer.
func (e *Engine) Tokenize(text string) []tokenizer.Token {
	return e.tok.Tokenize(text)
}

// EmbedQuery builds the query-side pseudo-embedding.
func (e *Engine) EmbedQuery(text string) *index.Vector {
	return e.embedder.Embed(e.tok.Tokenize(text))
}

// Snapshot returns the latest complete snapshot for reading. Before the
// first batch has completed, an empty snapshot is served unless that first
// build is currently running, in which case ErrIndexingInProgress is
// returned.
func (e *Engine) Snapshot() (*Snapshot, error) {
	if snap := e.current.Load(); snap != nil {
		return snap, nil
	}
	if e.State() == StateIndexing {
		return nil, errors.New(errors.ErrIndexingInProgress, 409,
			"initial index build has not completed")
	}
	return emptySnapshot(e.cfg.ContextWindowRadius, e.cfg.MaxContextsPerTerm), nil
}

// Notifier returns the injected event subscriber so the query path can emit
// search events through the same channel.
func (e *Engine) Notifier() Notifier {
	return e.notifier
}

// analyzed is the output of the parallel per-document analysis phase.
type analyzed struct {
	doc *document.Document
	vec *index.Vector
	err error
}

// IndexDocuments ingests a batch. Documents are tokenized and vectorized in
// parallel, then applied to a cloned snapshot one at a time; the successor
// snapshot is published only after the whole batch and the corpus statistics
// are complete. Per-document failures are skipped and reported in the
// returned stats; they abort nothing. A cancelled context abandons the
// successor entirely, leaving the last published snapshot untouched.
func (e *Engine) IndexDocuments(ctx context.Context, batch []document.Input) (*BatchStats, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	batchID := uuid.NewString()
	start := time.Now()
	prevState := e.State()
	e.state.Store(int32(StateIndexing))

	stats, err := e.indexLocked(ctx, batchID, batch)
	if err != nil {
		e.state.Store(int32(prevState))
		e.notifier.IndexingError(batchID, err)
		return nil, err
	}

	e.state.Store(int32(StateReady))
	stats.Duration = time.Since(start)
	e.notifier.IndexingComplete(*stats)
	e.logger.Info("batch indexed",
		"batch_id", batchID,
		"requested", stats.Requested,
		"indexed", stats.Indexed,
		"skipped", len(stats.Skipped),
		"corpus_docs", stats.Corpus.TotalDocuments,
		"duration", stats.Duration,
	)
	return stats, nil
}

func (e *Engine) indexLocked(ctx context.Context, batchID string, batch []document.Input) (*BatchStats, error) {
	results := make([]analyzed, len(batch))
	var wg sync.WaitGroup
	for i := range batch {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, fmt.Errorf("batch %s cancelled during analysis: %w", batchID, err)
		}
		i := i
		wg.Add(1)
		task := func() {
			defer wg.Done()
			results[i] = e.analyze(batch[i])
		}
		if err := e.pool.Submit(task); err != nil {
			// Pool rejected the task (released or overloaded); analyse
			// inline rather than losing the document.
			task()
		}
	}
	wg.Wait()

	var base *Snapshot
	if cur := e.current.Load(); cur != nil {
		base = cur.clone()
	} else {
		base = emptySnapshot(e.cfg.ContextWindowRadius, e.cfg.MaxContextsPerTerm)
		base.Version = 1
	}

	stats := &BatchStats{
		BatchID:   batchID,
		Requested: len(batch),
	}
	for i, res := range results {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("batch %s cancelled while applying documents: %w", batchID, err)
		}
		if res.err != nil {
			stats.Skipped = append(stats.Skipped, SkippedDocument{
				ID:     batch[i].ID,
				Reason: res.err.Error(),
			})
			e.logger.Warn("document skipped",
				"batch_id", batchID,
				"doc_id", batch[i].ID,
				"reason", res.err,
			)
		} else {
			base.apply(res.doc, res.vec)
			stats.Indexed++
		}
		// Skipped documents are processed too; a batch always reaches 100%.
		e.notifier.IndexingProgress(batchID, float64(i+1)/float64(len(batch))*100)
	}

	base.recomputeCorpus(time.Now())
	e.current.Store(base)
	stats.Corpus = base.Corpus
	return stats, nil
}

// analyze runs the pure per-document phase: validation, classification,
// tokenization, and vectorization. Panics are converted to per-document
// errors so a malformed document cannot take down the batch.
func (e *Engine) analyze(in document.Input) (res analyzed) {
	defer func() {
		if r := recover(); r != nil {
			res = analyzed{err: fmt.Errorf("analysis panic: %v", r)}
		}
	}()

	if err := in.Validate(); err != nil {
		return analyzed{err: err}
	}

	tokens := e.tok.Tokenize(in.Content)
	meta := in.Metadata
	meta.DocumentType = document.ClassifyType(in)
	meta.WordCount = len(tokens)

	doc := &document.Document{
		ID:        in.ID,
		Name:      in.Name,
		RawText:   in.Content,
		Tokens:    tokens,
		Entities:  in.Entities,
		Metadata:  meta,
		IndexedAt: time.Now(),
	}
	return analyzed{doc: doc, vec: e.embedder.Embed(tokens)}
}

// ClearIndex atomically resets every structure to the empty state.
func (e *Engine) ClearIndex() {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	e.current.Store(nil)
	e.state.Store(int32(StateEmpty))
	e.logger.Info("index cleared")
}
