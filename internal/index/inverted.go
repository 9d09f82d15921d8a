// Package index holds the three retrieval structures of the engine: the
// term-frequency inverted index, the entity-occurrence index, and the
// semantic vector index. All three are mutated only by the snapshot builder
// (single writer); published snapshots are immutable, so the structures
// carry no locks and instead support cloning for copy-on-write updates.
package index

import (
	"sort"
	"strings"

	"github.com/attestor-labs/lexsearch/internal/tokenizer"
)

// Posting records one document's occurrences of one term.
type Posting struct {
	Term      string   `json:"term"`
	DocID     string   `json:"doc_id"`
	Frequency int      `json:"frequency"`
	Positions []int    `json:"positions"`
	Contexts  []string `json:"contexts,omitempty"`
}

// PostingList maps document IDs to their Posting for one term, alongside the
// term's corpus-wide frequency.
type PostingList struct {
	Postings       map[string]*Posting
	TotalFrequency int
}

// DocFreq returns the number of documents containing the term.
func (pl *PostingList) DocFreq() int {
	return len(pl.Postings)
}

// TermStat pairs a term with its corpus-wide total frequency, used for the
// common/rare term lists in corpus metadata.
type TermStat struct {
	Term           string `json:"term"`
	TotalFrequency int    `json:"total_frequency"`
}

// Inverted is the term → posting-list index.
type Inverted struct {
	terms        map[string]*PostingList
	docTerms     map[string][]string
	windowRadius int
	maxContexts  int
}

// NewInverted creates an empty inverted index. windowRadius is the number of
// tokens captured around each occurrence for snippet contexts; maxContexts
// caps stored context windows per posting.
func NewInverted(windowRadius, maxContexts int) *Inverted {
	if windowRadius <= 0 {
		windowRadius = 5
	}
	if maxContexts <= 0 {
		maxContexts = 3
	}
	return &Inverted{
		terms:        make(map[string]*PostingList),
		docTerms:     make(map[string][]string),
		windowRadius: windowRadius,
		maxContexts:  maxContexts,
	}
}

// Add indexes one document's token sequence. The document must not already
// be present; callers overwrite by calling Remove first.
func (ix *Inverted) Add(docID string, tokens []tokenizer.Token) {
	postings := make(map[string]*Posting)
	for _, tok := range tokens {
		p, exists := postings[tok.Term]
		if !exists {
			p = &Posting{
				Term:      tok.Term,
				DocID:     docID,
				Positions: make([]int, 0, 4),
			}
			postings[tok.Term] = p
		}
		p.Frequency++
		p.Positions = append(p.Positions, tok.Position)
		if len(p.Contexts) < ix.maxContexts {
			p.Contexts = append(p.Contexts, contextWindow(tokens, tok.Position, ix.windowRadius))
		}
	}

	terms := make([]string, 0, len(postings))
	for term, posting := range postings {
		pl, exists := ix.terms[term]
		if !exists {
			pl = &PostingList{Postings: make(map[string]*Posting)}
			ix.terms[term] = pl
		}
		pl.Postings[docID] = posting
		pl.TotalFrequency += posting.Frequency
		terms = append(terms, term)
	}
	sort.Strings(terms)
	ix.docTerms[docID] = terms
}

// Remove deletes every posting the document contributed.
func (ix *Inverted) Remove(docID string) {
	for _, term := range ix.docTerms[docID] {
		pl, ok := ix.terms[term]
		if !ok {
			continue
		}
		if posting, ok := pl.Postings[docID]; ok {
			pl.TotalFrequency -= posting.Frequency
			delete(pl.Postings, docID)
		}
		if len(pl.Postings) == 0 {
			delete(ix.terms, term)
		}
	}
	delete(ix.docTerms, docID)
}

// Lookup returns the posting list for a term.
func (ix *Inverted) Lookup(term string) (*PostingList, bool) {
	pl, ok := ix.terms[term]
	return pl, ok
}

// DocFreq returns the number of documents containing the term.
func (ix *Inverted) DocFreq(term string) int {
	if pl, ok := ix.terms[term]; ok {
		return pl.DocFreq()
	}
	return 0
}

// TermCount returns the number of distinct terms.
func (ix *Inverted) TermCount() int {
	return len(ix.terms)
}

// TermStats returns every term with its total frequency, ordered by
// descending frequency and ascending term for equal frequencies.
func (ix *Inverted) TermStats() []TermStat {
	stats := make([]TermStat, 0, len(ix.terms))
	for term, pl := range ix.terms {
		stats = append(stats, TermStat{Term: term, TotalFrequency: pl.TotalFrequency})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].TotalFrequency != stats[j].TotalFrequency {
			return stats[i].TotalFrequency > stats[j].TotalFrequency
		}
		return stats[i].Term < stats[j].Term
	})
	return stats
}

// Clone returns a copy safe for mutation. Posting values are shared: they
// are immutable once indexed, and Remove replaces map entries rather than
// editing postings in place.
func (ix *Inverted) Clone() *Inverted {
	terms := make(map[string]*PostingList, len(ix.terms))
	for term, pl := range ix.terms {
		postings := make(map[string]*Posting, len(pl.Postings))
		for docID, p := range pl.Postings {
			postings[docID] = p
		}
		terms[term] = &PostingList{
			Postings:       postings,
			TotalFrequency: pl.TotalFrequency,
		}
	}
	docTerms := make(map[string][]string, len(ix.docTerms))
	for docID, ts := range ix.docTerms {
		docTerms[docID] = ts
	}
	return &Inverted{
		terms:        terms,
		docTerms:     docTerms,
		windowRadius: ix.windowRadius,
		maxContexts:  ix.maxContexts,
	}
}

// contextWindow joins the tokens within radius of center into one string.
func contextWindow(tokens []tokenizer.Token, center, radius int) string {
	lo := center - radius
	if lo < 0 {
		lo = 0
	}
	hi := center + radius + 1
	if hi > len(tokens) {
		hi = len(tokens)
	}
	var b strings.Builder
	for i := lo; i < hi; i++ {
		if i > lo {
			b.WriteByte(' ')
		}
		b.WriteString(tokens[i].Term)
	}
	return b.String()
}
