// Package search executes queries against engine snapshots: one strategy
// per query type, a weighted hybrid merger, conjunctive post-filters,
// pluggable ranking, and snippet extraction.
package search

import (
	"time"

	"github.com/attestor-labs/lexsearch/internal/document"
	"github.com/attestor-labs/lexsearch/pkg/config"
)

// QueryType selects the retrieval strategy.
type QueryType string

const (
	TypeFullText QueryType = "fulltext"
	TypeSemantic QueryType = "semantic"
	TypeEntity   QueryType = "entity"
	TypeHybrid   QueryType = "hybrid"
)

// Relevance labels attached to results.
const (
	RelevanceExact   = "exact"
	RelevanceContext = "context"
	RelevanceEntity  = "entity"
)

// Hybrid component weights. These exact values are part of the scoring
// contract and must not drift.
const (
	hybridFullTextWeight = 0.4
	hybridSemanticWeight = 0.4
	hybridEntityWeight   = 0.2
)

// DateRange bounds are inclusive. Nil ends are open.
type DateRange struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// Filters are conjunctive: a result must satisfy every non-empty filter.
// Application order is irrelevant. ConfidenceThreshold is a minimum result
// score; results scoring below it are dropped.
type Filters struct {
	DocumentTypes       []string   `json:"document_types,omitempty"`
	DateRange           *DateRange `json:"date_range,omitempty"`
	Entities            []string   `json:"entities,omitempty"`
	ConfidenceThreshold float64    `json:"confidence_threshold,omitempty"`
	CaseIDs             []string   `json:"case_ids,omitempty"`
}

// Options control result shaping. Each field defaults independently: unset
// values are replaced with configured defaults by normalize. The boolean
// fields are pointers so an explicit false survives a request that omits
// other fields.
type Options struct {
	MaxResults        int      `json:"max_results"`
	IncludeSnippets   *bool    `json:"include_snippets,omitempty"`
	SnippetLength     int      `json:"snippet_length"`
	HighlightTerms    *bool    `json:"highlight_terms,omitempty"`
	RankingStrategy   Strategy `json:"ranking_strategy"`
	SemanticThreshold float64  `json:"semantic_threshold"`
}

func (o Options) snippetsEnabled() bool {
	return o.IncludeSnippets == nil || *o.IncludeSnippets
}

func (o Options) highlightEnabled() bool {
	return o.HighlightTerms == nil || *o.HighlightTerms
}

func boolPtr(v bool) *bool { return &v }

// DefaultOptions returns the documented defaults, seeded from config.
func DefaultOptions(cfg config.SearchConfig) Options {
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 50
	}
	snippetLength := cfg.SnippetLength
	if snippetLength <= 0 {
		snippetLength = 200
	}
	threshold := cfg.SemanticThreshold
	if threshold == 0 {
		threshold = 0.3
	}
	return Options{
		MaxResults:        maxResults,
		IncludeSnippets:   boolPtr(true),
		SnippetLength:     snippetLength,
		HighlightTerms:    boolPtr(true),
		RankingStrategy:   StrategyRelevance,
		SemanticThreshold: threshold,
	}
}

// Query is a fully-specified search request.
type Query struct {
	Text    string    `json:"text"`
	Type    QueryType `json:"type"`
	Filters Filters   `json:"filters"`
	Options Options   `json:"options"`
}

// Result is one ranked hit.
type Result struct {
	DocumentID    string            `json:"document_id"`
	Score         float64           `json:"score"`
	RelevanceType string            `json:"relevance_type"`
	Snippets      []string          `json:"snippets,omitempty"`
	EntityMatches []string          `json:"entity_matches,omitempty"`
	Metadata      document.Metadata `json:"metadata"`
}

// Response is the executor output for one query.
type Response struct {
	Query     string        `json:"query"`
	Type      QueryType     `json:"type"`
	TotalHits int           `json:"total_hits"`
	Results   []Result      `json:"results"`
	Took      time.Duration `json:"took"`
	CacheHit  bool          `json:"cache_hit"`
	Version   uint64        `json:"index_version"`
}
