package search

import (
	"strings"
	"unicode/utf8"

	"github.com/attestor-labs/lexsearch/internal/document"
	"github.com/attestor-labs/lexsearch/internal/engine"
	"github.com/attestor-labs/lexsearch/internal/tokenizer"
)

const (
	maxSnippetsPerTerm = 3
	maxSnippetsPerDoc  = 5
)

// snippetGenerator extracts highlighted context windows for the terms and
// entities that matched a document.
type snippetGenerator struct {
	maxLength int
	highlight bool
}

func newSnippetGenerator(maxLength int, highlight bool) *snippetGenerator {
	return &snippetGenerator{maxLength: maxLength, highlight: highlight}
}

func queryTermStrings(tokens []tokenizer.Token) []string {
	terms := make([]string, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		if _, dup := seen[tok.Term]; dup {
			continue
		}
		seen[tok.Term] = struct{}{}
		terms = append(terms, tok.Term)
	}
	return terms
}

// Generate returns up to maxSnippetsPerDoc deduplicated snippets for the
// document: at most maxSnippetsPerTerm context windows per query term, then
// entity mention contexts for the matched entities. Each snippet is
// truncated around the first occurrence of its term.
func (g *snippetGenerator) Generate(snap *engine.Snapshot, doc *document.Document, terms, entityNames []string) []string {
	snippets := make([]string, 0, maxSnippetsPerDoc)
	seen := make(map[string]struct{})

	add := func(raw, term string) bool {
		snippet := g.render(raw, term)
		if snippet == "" {
			return len(snippets) < maxSnippetsPerDoc
		}
		if _, dup := seen[snippet]; dup {
			return len(snippets) < maxSnippetsPerDoc
		}
		seen[snippet] = struct{}{}
		snippets = append(snippets, snippet)
		return len(snippets) < maxSnippetsPerDoc
	}

	for _, term := range terms {
		pl, ok := snap.Inverted.Lookup(term)
		if !ok {
			continue
		}
		posting, ok := pl.Postings[doc.ID]
		if !ok {
			continue
		}
		for i, ctx := range posting.Contexts {
			if i >= maxSnippetsPerTerm {
				break
			}
			if !add(ctx, term) {
				return snippets
			}
		}
	}

	for _, name := range entityNames {
		for _, match := range snap.Entities.Match(name) {
			occ, ok := match.Postings.Occurrences[doc.ID]
			if !ok {
				continue
			}
			for i, ctx := range occ.Contexts {
				if i >= maxSnippetsPerTerm {
					break
				}
				if !add(ctx, name) {
					return snippets
				}
			}
		}
	}
	return snippets
}

// render truncates the context around the first occurrence of term and
// optionally wraps each occurrence in highlight markers.
func (g *snippetGenerator) render(raw, term string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	if g.maxLength > 0 && len(text) > g.maxLength {
		text = truncateAround(text, term, g.maxLength)
	}
	if g.highlight {
		text = highlightTerm(text, term)
	}
	return text
}

// truncateAround keeps a window of at most maxLength bytes centred on the
// first case-insensitive occurrence of term. Window edges snap inward to
// rune boundaries, not to word boundaries, so a multi-byte rune is never
// split.
func truncateAround(text, term string, maxLength int) string {
	idx := strings.Index(strings.ToLower(text), strings.ToLower(term))
	if idx < 0 {
		return text[:snapBack(text, maxLength)]
	}
	half := (maxLength - len(term)) / 2
	start := idx - half
	if start < 0 {
		start = 0
	}
	end := start + maxLength
	if end > len(text) {
		end = len(text)
		start = end - maxLength
		if start < 0 {
			start = 0
		}
	}
	start = snapForward(text, start)
	end = snapBack(text, end)
	return text[start:end]
}

// snapForward moves i to the next rune start at or after it.
func snapForward(text string, i int) int {
	for i < len(text) && !utf8.RuneStart(text[i]) {
		i++
	}
	return i
}

// snapBack moves i to the nearest rune boundary at or before it.
func snapBack(text string, i int) int {
	for i > 0 && i < len(text) && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}

// highlightTerm wraps every case-insensitive occurrence of term in ** **
// markers, preserving the original casing of each occurrence.
func highlightTerm(text, term string) string {
	if term == "" {
		return text
	}
	lower := strings.ToLower(text)
	needle := strings.ToLower(term)
	var b strings.Builder
	pos := 0
	for {
		idx := strings.Index(lower[pos:], needle)
		if idx < 0 {
			b.WriteString(text[pos:])
			return b.String()
		}
		idx += pos
		b.WriteString(text[pos:idx])
		b.WriteString("**")
		b.WriteString(text[idx : idx+len(term)])
		b.WriteString("**")
		pos = idx + len(term)
	}
}
