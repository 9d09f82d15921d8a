package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizeNormalisation(t *testing.T) {
	tok := New()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "lowercases and splits on punctuation",
			// "12(b)" splits into "12" (numeric) and "b" (short); both drop.
			input: "Breach-of-Contract, Section 12(b)!",
			want:  []string{"breach", "contract", "section"},
		},
		{
			name:  "drops short tokens",
			input: "a an it go contract",
			want:  []string{"contract"},
		},
		{
			name:  "drops purely numeric tokens",
			input: "clause 42 2023 damages 12b",
			want:  []string{"clause", "damages", "12b"},
		},
		{
			name:  "drops stop words",
			input: "the parties have agreed that liability",
			want:  []string{"parties", "agreed", "liability"},
		},
		{
			name:  "empty input",
			input: "",
			want:  []string{},
		},
		{
			name:  "only removable tokens",
			input: "the and 42 it",
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := tok.Tokenize(tt.input)
			terms := make([]string, 0, len(tokens))
			for _, token := range tokens {
				terms = append(terms, token.Term)
			}
			assert.Equal(t, tt.want, terms)
		})
	}
}

func TestTokenizePositionsAreOverSurvivors(t *testing.T) {
	tok := New()
	tokens := tok.Tokenize("the plaintiff filed against the defendant")
	require.Len(t, tokens, 4, "against is not a stop word")
	for i, token := range tokens {
		assert.Equal(t, i, token.Position)
	}
	assert.Equal(t, "plaintiff", tokens[0].Term)
	assert.Equal(t, "filed", tokens[1].Term)
	assert.Equal(t, "against", tokens[2].Term)
	assert.Equal(t, "defendant", tokens[3].Term)
}

func TestTokenizeDomainStopWords(t *testing.T) {
	tok := New("Exhibit", "herein")
	tokens := tok.Tokenize("exhibit herein witness")
	require.Len(t, tokens, 1)
	assert.Equal(t, "witness", tokens[0].Term)
}

func TestTokenizeDeterministic(t *testing.T) {
	tok := New()
	input := "The contract governs indemnification, liability, and damages."
	first := tok.Tokenize(input)
	second := tok.Tokenize(input)
	assert.Equal(t, first, second)
}

func TestTokenizeNoStemming(t *testing.T) {
	tok := New()
	tokens := tok.Tokenize("agreements agreement")
	require.Len(t, tokens, 2)
	assert.Equal(t, "agreements", tokens[0].Term)
	assert.Equal(t, "agreement", tokens[1].Term)
}
