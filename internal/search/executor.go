package search

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/attestor-labs/lexsearch/internal/document"
	"github.com/attestor-labs/lexsearch/internal/engine"
	"github.com/attestor-labs/lexsearch/pkg/config"
	"github.com/attestor-labs/lexsearch/pkg/errors"
)

// Executor runs queries against the latest engine snapshot.
type Executor struct {
	engine *engine.Engine
	cache  *QueryCache
	cfg    config.SearchConfig
	logger *slog.Logger
}

// NewExecutor creates an Executor. cache may be nil to disable caching.
func NewExecutor(eng *engine.Engine, cache *QueryCache, cfg config.SearchConfig) *Executor {
	return &Executor{
		engine: eng,
		cache:  cache,
		cfg:    cfg,
		logger: slog.Default().With("component", "query-executor"),
	}
}

// Search validates, executes, filters, ranks, and decorates one query.
func (ex *Executor) Search(ctx context.Context, q Query) (*Response, error) {
	start := time.Now()

	if strings.TrimSpace(q.Text) == "" {
		return nil, errors.New(errors.ErrInvalidQuery, 400, "query text is required")
	}
	switch q.Type {
	case TypeFullText, TypeSemantic, TypeEntity, TypeHybrid:
	case "":
		q.Type = TypeFullText
	default:
		return nil, errors.Newf(errors.ErrUnsupportedQueryType, 400, "query type %q", q.Type)
	}
	q.Options = ex.normalize(q.Options)

	snap, err := ex.engine.Snapshot()
	if err != nil {
		ex.engine.Notifier().SearchError(q.Text, err)
		return nil, err
	}

	if ex.cache != nil {
		key := cacheKey(snap.Version, q)
		resp, hit, err := ex.cache.GetOrCompute(ctx, key, func() (*Response, error) {
			return ex.execute(ctx, snap, q)
		})
		if err != nil {
			ex.engine.Notifier().SearchError(q.Text, err)
			return nil, err
		}
		resp.CacheHit = hit
		resp.Took = time.Since(start)
		ex.notifyComplete(q, resp)
		return resp, nil
	}

	resp, err := ex.execute(ctx, snap, q)
	if err != nil {
		ex.engine.Notifier().SearchError(q.Text, err)
		return nil, err
	}
	resp.Took = time.Since(start)
	ex.notifyComplete(q, resp)
	return resp, nil
}

func (ex *Executor) notifyComplete(q Query, resp *Response) {
	ex.engine.Notifier().SearchComplete(engine.SearchStats{
		Query:    q.Text,
		Type:     string(q.Type),
		Results:  len(resp.Results),
		Duration: resp.Took,
		CacheHit: resp.CacheHit,
	})
}

// normalize fills unset option fields with configured defaults. Fields
// default independently: a request setting only max_results keeps snippets
// and highlighting on, and an explicit false stays false.
func (ex *Executor) normalize(opts Options) Options {
	defaults := DefaultOptions(ex.cfg)
	if opts.MaxResults <= 0 {
		opts.MaxResults = defaults.MaxResults
	}
	if opts.IncludeSnippets == nil {
		opts.IncludeSnippets = defaults.IncludeSnippets
	}
	if opts.HighlightTerms == nil {
		opts.HighlightTerms = defaults.HighlightTerms
	}
	if opts.SnippetLength <= 0 {
		opts.SnippetLength = defaults.SnippetLength
	}
	if opts.SemanticThreshold <= 0 {
		opts.SemanticThreshold = defaults.SemanticThreshold
	}
	if opts.RankingStrategy == "" {
		opts.RankingStrategy = defaults.RankingStrategy
	}
	return opts
}

// execute produces the filtered, ranked, decorated result list for one
// query against one snapshot.
func (ex *Executor) execute(ctx context.Context, snap *engine.Snapshot, q Query) (*Response, error) {
	var results []Result
	var err error
	switch q.Type {
	case TypeFullText:
		results, err = ex.fullTextResults(ctx, snap, q)
	case TypeSemantic:
		results, err = ex.semanticResults(ctx, snap, q)
	case TypeEntity:
		results, err = ex.entityResults(ctx, snap, q)
	case TypeHybrid:
		results, err = ex.hybridResults(ctx, snap, q)
	}
	if err != nil {
		return nil, err
	}

	results = applyFilters(snap, results, q.Filters)
	rank(snap, results, q.Options.RankingStrategy)
	totalHits := len(results)
	if len(results) > q.Options.MaxResults {
		results = results[:q.Options.MaxResults]
	}

	if q.Options.snippetsEnabled() {
		gen := newSnippetGenerator(q.Options.SnippetLength, q.Options.highlightEnabled())
		terms := queryTermStrings(ex.engine.Tokenize(q.Text))
		for i := range results {
			doc, ok := snap.Store.Get(results[i].DocumentID)
			if !ok {
				continue
			}
			results[i].Snippets = gen.Generate(snap, doc, terms, results[i].EntityMatches)
		}
	}

	return &Response{
		Query:     q.Text,
		Type:      q.Type,
		TotalHits: totalHits,
		Results:   results,
		Version:   snap.Version,
	}, nil
}

// fullTextHit accumulates a document's TF-IDF score across query terms.
type fullTextHit struct {
	score float64
}

// fullTextScores computes per-document TF-IDF sums over the query terms.
// Documents matching no term do not appear at all.
func (ex *Executor) fullTextScores(ctx context.Context, snap *engine.Snapshot, text string) (map[string]*fullTextHit, error) {
	terms := ex.engine.Tokenize(text)
	totalDocs := snap.Store.Len()
	hits := make(map[string]*fullTextHit)
	if totalDocs == 0 {
		return hits, nil
	}

	seen := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, dup := seen[term.Term]; dup {
			continue
		}
		seen[term.Term] = struct{}{}

		pl, ok := snap.Inverted.Lookup(term.Term)
		if !ok {
			continue
		}
		// idf is 0 when the term appears in every document; such terms
		// contribute nothing, by definition of the weighting.
		idf := math.Log(float64(totalDocs) / float64(pl.DocFreq()))
		weight := ex.engine.Weights().Of(term.Term)
		for docID, posting := range pl.Postings {
			doc, ok := snap.Store.Get(docID)
			if !ok || len(doc.Tokens) == 0 {
				continue
			}
			tf := float64(posting.Frequency) / float64(len(doc.Tokens))
			hit, exists := hits[docID]
			if !exists {
				hit = &fullTextHit{}
				hits[docID] = hit
			}
			hit.score += tf * idf * weight
		}
	}
	return hits, nil
}

func (ex *Executor) fullTextResults(ctx context.Context, snap *engine.Snapshot, q Query) ([]Result, error) {
	hits, err := ex.fullTextScores(ctx, snap, q.Text)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(hits))
	for docID, hit := range hits {
		results = append(results, Result{
			DocumentID:    docID,
			Score:         hit.score,
			RelevanceType: RelevanceExact,
			Metadata:      docMetadata(snap, docID),
		})
	}
	sortByDocID(results)
	return results, nil
}

func (ex *Executor) semanticResults(ctx context.Context, snap *engine.Snapshot, q Query) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	qvec := ex.engine.EmbedQuery(q.Text)
	similar := snap.Semantic.Similar(qvec, q.Options.SemanticThreshold)
	results := make([]Result, 0, len(similar))
	for _, s := range similar {
		results = append(results, Result{
			DocumentID:    s.DocID,
			Score:         s.Similarity,
			RelevanceType: RelevanceContext,
			Metadata:      docMetadata(snap, s.DocID),
		})
	}
	return results, nil
}

// entityHit is one (document, entity) scoring pair. Entity queries keep the
// pairs as separate result entries; the hybrid path merges them per
// document.
type entityHit struct {
	docID  string
	entity string
	score  float64
}

func (ex *Executor) entityScores(ctx context.Context, snap *engine.Snapshot, text string) ([]entityHit, error) {
	matches := snap.Entities.Match(text)
	hits := make([]entityHit, 0, len(matches))
	for _, match := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if match.Postings.TotalOccurrences == 0 {
			continue
		}
		for docID, occ := range match.Postings.Occurrences {
			hits = append(hits, entityHit{
				docID:  docID,
				entity: match.Postings.CanonicalName,
				score:  occ.Confidence * float64(occ.Count) / float64(match.Postings.TotalOccurrences),
			})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].docID != hits[j].docID {
			return hits[i].docID < hits[j].docID
		}
		return hits[i].entity < hits[j].entity
	})
	return hits, nil
}

func (ex *Executor) entityResults(ctx context.Context, snap *engine.Snapshot, q Query) ([]Result, error) {
	hits, err := ex.entityScores(ctx, snap, q.Text)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, Result{
			DocumentID:    hit.docID,
			Score:         hit.score,
			RelevanceType: RelevanceEntity,
			EntityMatches: []string{hit.entity},
			Metadata:      docMetadata(snap, hit.docID),
		})
	}
	return results, nil
}

// hybridResults fans the three strategies out concurrently and merges per
// document: 0.4·fulltext + 0.4·semantic + 0.2·entity, with absent
// components contributing 0. The relevance label starts at exact when
// full text contributed and escalates to context when semantic also did;
// entity matches are appended regardless.
func (ex *Executor) hybridResults(ctx context.Context, snap *engine.Snapshot, q Query) ([]Result, error) {
	var (
		ftHits  map[string]*fullTextHit
		semHits []Result
		entHits []entityHit
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ftHits, err = ex.fullTextScores(gctx, snap, q.Text)
		return err
	})
	g.Go(func() error {
		var err error
		semHits, err = ex.semanticResults(gctx, snap, q)
		return err
	})
	g.Go(func() error {
		var err error
		entHits, err = ex.entityScores(gctx, snap, q.Text)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	type merged struct {
		score         float64
		hasFullText   bool
		hasSemantic   bool
		entityMatches []string
	}
	byDoc := make(map[string]*merged)
	get := func(docID string) *merged {
		m, ok := byDoc[docID]
		if !ok {
			m = &merged{}
			byDoc[docID] = m
		}
		return m
	}

	for docID, hit := range ftHits {
		m := get(docID)
		m.score += hybridFullTextWeight * hit.score
		m.hasFullText = true
	}
	for _, hit := range semHits {
		m := get(hit.DocumentID)
		m.score += hybridSemanticWeight * hit.Score
		m.hasSemantic = true
	}
	for _, hit := range entHits {
		m := get(hit.docID)
		m.score += hybridEntityWeight * hit.score
		m.entityMatches = append(m.entityMatches, hit.entity)
	}

	results := make([]Result, 0, len(byDoc))
	for docID, m := range byDoc {
		relevance := RelevanceEntity
		if m.hasFullText {
			relevance = RelevanceExact
		}
		if m.hasSemantic {
			relevance = RelevanceContext
		}
		results = append(results, Result{
			DocumentID:    docID,
			Score:         m.score,
			RelevanceType: relevance,
			EntityMatches: m.entityMatches,
			Metadata:      docMetadata(snap, docID),
		})
	}
	sortByDocID(results)
	return results, nil
}

func docMetadata(snap *engine.Snapshot, docID string) document.Metadata {
	if doc, ok := snap.Store.Get(docID); ok {
		return doc.Metadata
	}
	return document.Metadata{}
}

func sortByDocID(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		return results[i].DocumentID < results[j].DocumentID
	})
}
