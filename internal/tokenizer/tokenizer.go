// Package tokenizer provides text normalisation for the search engine. It
// lower-cases input, splits on non-alphanumeric boundaries, and removes
// short tokens, purely numeric tokens, and stop-words. There is no stemming:
// terms are indexed exactly as they appear after normalisation.
package tokenizer

import (
	"strings"
	"unicode"
)

// baseStopWords are always removed. Domain-specific additions come from
// configuration.
var baseStopWords = map[string]struct{}{
	"and": {}, "are": {}, "but": {}, "can": {}, "each": {},
	"for": {}, "from": {}, "had": {}, "has": {}, "have": {},
	"its": {}, "not": {}, "that": {}, "the": {}, "their": {},
	"they": {}, "this": {}, "was": {}, "were": {}, "what": {},
	"when": {}, "where": {}, "which": {}, "who": {}, "will": {},
	"with": {},
}

// Token is a single normalised term and its position in the token sequence.
type Token struct {
	Term     string
	Position int
}

// Tokenizer turns raw text into a deterministic token sequence. Identical
// input must always yield an identical sequence.
type Tokenizer interface {
	Tokenize(text string) []Token
}

// Normalizer is the default Tokenizer. It is safe for concurrent use: the
// stop-word set is fixed at construction.
type Normalizer struct {
	stopWords map[string]struct{}
}

// New creates a Normalizer whose stop-word set is the built-in English set
// extended with the given domain words (matched case-insensitively).
func New(domainStopWords ...string) *Normalizer {
	stop := make(map[string]struct{}, len(baseStopWords)+len(domainStopWords))
	for w := range baseStopWords {
		stop[w] = struct{}{}
	}
	for _, w := range domainStopWords {
		stop[strings.ToLower(w)] = struct{}{}
	}
	return &Normalizer{stopWords: stop}
}

// Tokenize lower-cases text, splits it on non-alphanumeric runs, and drops
// tokens of length <= 2, purely numeric tokens, and stop-words. Positions
// are 0-based over the surviving tokens.
func (n *Normalizer) Tokenize(text string) []Token {
	text = strings.ToLower(text)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]Token, 0, len(words)/2)
	pos := 0
	for _, word := range words {
		if len(word) <= 2 {
			continue
		}
		if isNumeric(word) {
			continue
		}
		if _, isStop := n.stopWords[word]; isStop {
			continue
		}
		tokens = append(tokens, Token{
			Term:     word,
			Position: pos,
		})
		pos++
	}
	return tokens
}

func isNumeric(word string) bool {
	for _, r := range word {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
