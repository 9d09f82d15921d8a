package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attestor-labs/lexsearch/internal/document"
	"github.com/attestor-labs/lexsearch/pkg/config"
	"github.com/attestor-labs/lexsearch/pkg/errors"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := New(config.IndexConfig{
		VectorDimensions:    100,
		ContextWindowRadius: 5,
		MaxContextsPerTerm:  3,
		AnalysisWorkers:     2,
		TopKeywords:         10,
	}, WithNotifier(NopNotifier{}))
	require.NoError(t, err)
	t.Cleanup(eng.Close)
	return eng
}

func testBatch() []document.Input {
	return []document.Input{
		{
			ID:      "doc-1",
			Name:    "services_agreement.txt",
			Content: "This agreement governs liability and indemnification between the parties.",
			Entities: []document.ResolvedEntity{
				{CanonicalName: "Acme Corp", EntityType: "organization", Confidence: 0.9},
			},
		},
		{
			ID:      "doc-2",
			Name:    "smith_deposition.txt",
			Content: "Deposition of John Smith regarding the alleged breach.",
		},
	}
}

func TestIndexDocumentsBuildsSnapshot(t *testing.T) {
	eng := newTestEngine(t)
	assert.Equal(t, StateEmpty, eng.State())

	stats, err := eng.IndexDocuments(context.Background(), testBatch())
	require.NoError(t, err)
	assert.Equal(t, StateReady, eng.State())
	assert.Equal(t, 2, stats.Requested)
	assert.Equal(t, 2, stats.Indexed)
	assert.Empty(t, stats.Skipped)
	assert.Equal(t, 2, stats.Corpus.TotalDocuments)
	assert.Equal(t, 1, stats.Corpus.TotalEntities)

	snap, err := eng.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), snap.Version)

	doc, ok := snap.Store.Get("doc-1")
	require.True(t, ok)
	assert.Equal(t, document.TypeContract, doc.Metadata.DocumentType)
	assert.Equal(t, len(doc.Tokens), doc.Metadata.WordCount)

	_, ok = snap.Inverted.Lookup("indemnification")
	assert.True(t, ok)
	assert.Len(t, snap.Entities.Match("acme"), 1)
}

func TestIndexDocumentsSkipsInvalid(t *testing.T) {
	eng := newTestEngine(t)

	batch := append(testBatch(),
		document.Input{Name: "no_id.txt", Content: "orphan"},
		document.Input{ID: "doc-3", Entities: []document.ResolvedEntity{
			{CanonicalName: "Bad", Confidence: 7},
		}},
	)
	stats, err := eng.IndexDocuments(context.Background(), batch)
	require.NoError(t, err, "per-document failures never abort a batch")
	assert.Equal(t, 4, stats.Requested)
	assert.Equal(t, 2, stats.Indexed)
	require.Len(t, stats.Skipped, 2)
	assert.Equal(t, "", stats.Skipped[0].ID)
	assert.Equal(t, "doc-3", stats.Skipped[1].ID)
	assert.NotEmpty(t, stats.Skipped[0].Reason)

	snap, err := eng.Snapshot()
	require.NoError(t, err)
	_, ok := snap.Store.Get("doc-3")
	assert.False(t, ok, "skipped documents appear in no structure")
}

type progressRecorder struct {
	NopNotifier
	percents []float64
}

func (r *progressRecorder) IndexingProgress(_ string, percent float64) {
	r.percents = append(r.percents, percent)
}

func TestProgressCoversSkippedDocuments(t *testing.T) {
	rec := &progressRecorder{}
	eng, err := New(config.IndexConfig{
		VectorDimensions:    100,
		ContextWindowRadius: 5,
		MaxContextsPerTerm:  3,
		AnalysisWorkers:     2,
		TopKeywords:         10,
	}, WithNotifier(rec))
	require.NoError(t, err)
	t.Cleanup(eng.Close)

	// The last document is invalid; progress must still reach 100%.
	batch := append(testBatch(),
		document.Input{ID: "doc-3", Content: "arbitration clause"},
		document.Input{Name: "no_id.txt", Content: "orphan"},
	)
	_, err = eng.IndexDocuments(context.Background(), batch)
	require.NoError(t, err)

	require.Equal(t, []float64{25, 50, 75, 100}, rec.percents,
		"one progress event per processed document, indexed or skipped")
}

func TestReindexSameIDOverwrites(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.IndexDocuments(ctx, testBatch())
	require.NoError(t, err)

	_, err = eng.IndexDocuments(ctx, []document.Input{{
		ID:      "doc-1",
		Name:    "revised_agreement.txt",
		Content: "Superseded terms concerning arbitration only.",
	}})
	require.NoError(t, err)

	snap, err := eng.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), snap.Version)
	assert.Equal(t, 2, snap.Store.Len(), "overwrite does not grow the corpus")

	// Old content must be gone from every structure.
	pl, ok := snap.Inverted.Lookup("indemnification")
	if ok {
		assert.NotContains(t, pl.Postings, "doc-1")
	}
	_, ok = snap.Inverted.Lookup("arbitration")
	assert.True(t, ok)
	assert.Empty(t, snap.Entities.Match("acme"), "old entities removed with the old record")
}

func TestReindexIdenticalBatchIsIdempotent(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	first, err := eng.IndexDocuments(ctx, testBatch())
	require.NoError(t, err)
	second, err := eng.IndexDocuments(ctx, testBatch())
	require.NoError(t, err)

	assert.Equal(t, first.Corpus.TotalDocuments, second.Corpus.TotalDocuments)
	assert.Equal(t, first.Corpus.TotalTerms, second.Corpus.TotalTerms)
	assert.Equal(t, first.Corpus.TotalEntities, second.Corpus.TotalEntities)
	assert.Equal(t, first.Corpus.CommonTerms, second.Corpus.CommonTerms)
}

func TestSnapshotBeforeFirstBatch(t *testing.T) {
	eng := newTestEngine(t)

	snap, err := eng.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Store.Len())
	assert.Equal(t, uint64(0), snap.Version)
}

func TestSnapshotDuringFirstBuildRejected(t *testing.T) {
	eng := newTestEngine(t)
	eng.state.Store(int32(StateIndexing))

	_, err := eng.Snapshot()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrIndexingInProgress)
}

func TestSnapshotDuringRebuildServesPrevious(t *testing.T) {
	eng := newTestEngine(t)
	_, err := eng.IndexDocuments(context.Background(), testBatch())
	require.NoError(t, err)

	// A rebuild in flight must not block readers once a snapshot exists.
	eng.state.Store(int32(StateIndexing))
	snap, err := eng.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Store.Len())
}

func TestPublishedSnapshotUnaffectedByLaterBatches(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.IndexDocuments(ctx, testBatch())
	require.NoError(t, err)
	old, err := eng.Snapshot()
	require.NoError(t, err)

	_, err = eng.IndexDocuments(ctx, []document.Input{{
		ID: "doc-9", Content: "entirely new filing about easements",
	}})
	require.NoError(t, err)

	assert.Equal(t, 2, old.Store.Len(), "held snapshots are immutable")
	_, ok := old.Store.Get("doc-9")
	assert.False(t, ok)
}

func TestCancelledContextAbandonsBatch(t *testing.T) {
	eng := newTestEngine(t)
	_, err := eng.IndexDocuments(context.Background(), testBatch())
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = eng.IndexDocuments(cancelled, []document.Input{{ID: "doc-5", Content: "text"}})
	require.Error(t, err)

	snap, err := eng.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Store.Len(), "last published snapshot untouched")
	assert.Equal(t, uint64(1), snap.Version)
}

func TestClearIndex(t *testing.T) {
	eng := newTestEngine(t)
	_, err := eng.IndexDocuments(context.Background(), testBatch())
	require.NoError(t, err)

	eng.ClearIndex()
	assert.Equal(t, StateEmpty, eng.State())

	snap, err := eng.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Store.Len())
}

func TestCorpusMetadata(t *testing.T) {
	eng := newTestEngine(t)
	stats, err := eng.IndexDocuments(context.Background(), testBatch())
	require.NoError(t, err)

	corpus := stats.Corpus
	assert.Greater(t, corpus.AvgDocumentLength, 0.0)
	assert.Equal(t, 0.5, corpus.AvgEntityCount)
	assert.NotEmpty(t, corpus.CommonTerms)
	assert.NotEmpty(t, corpus.RareTerms)
	assert.WithinDuration(t, time.Now(), corpus.LastUpdated, time.Minute)

	// Rare terms read least-frequent first; common terms most-frequent first.
	assert.GreaterOrEqual(t,
		corpus.CommonTerms[0].TotalFrequency,
		corpus.CommonTerms[len(corpus.CommonTerms)-1].TotalFrequency)
	assert.LessOrEqual(t,
		corpus.RareTerms[0].TotalFrequency,
		corpus.RareTerms[len(corpus.RareTerms)-1].TotalFrequency)
}
