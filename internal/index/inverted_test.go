package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attestor-labs/lexsearch/internal/tokenizer"
)

func tokenize(t *testing.T, text string) []tokenizer.Token {
	t.Helper()
	return tokenizer.New().Tokenize(text)
}

func TestInvertedAddAndLookup(t *testing.T) {
	ix := NewInverted(5, 3)
	ix.Add("doc-1", tokenize(t, "breach of contract claims breach remedies"))

	pl, ok := ix.Lookup("breach")
	require.True(t, ok)
	assert.Equal(t, 1, pl.DocFreq())
	assert.Equal(t, 2, pl.TotalFrequency)

	posting := pl.Postings["doc-1"]
	require.NotNil(t, posting)
	assert.Equal(t, 2, posting.Frequency)
	assert.Equal(t, []int{0, 3}, posting.Positions)
	assert.Len(t, posting.Contexts, 2)

	_, ok = ix.Lookup("arbitration")
	assert.False(t, ok)
}

func TestInvertedContextsAreCapped(t *testing.T) {
	ix := NewInverted(2, 3)
	// "claim" survives tokenization five times.
	ix.Add("doc-1", tokenize(t, "claim claim claim claim claim"))

	pl, ok := ix.Lookup("claim")
	require.True(t, ok)
	posting := pl.Postings["doc-1"]
	assert.Equal(t, 5, posting.Frequency)
	assert.Len(t, posting.Contexts, 3)
}

func TestInvertedRemove(t *testing.T) {
	ix := NewInverted(5, 3)
	ix.Add("doc-1", tokenize(t, "contract liability damages"))
	ix.Add("doc-2", tokenize(t, "contract arbitration"))

	ix.Remove("doc-1")

	pl, ok := ix.Lookup("contract")
	require.True(t, ok)
	assert.Equal(t, 1, pl.DocFreq())
	assert.Equal(t, 1, pl.TotalFrequency)

	// Terms only doc-1 contributed disappear entirely.
	_, ok = ix.Lookup("liability")
	assert.False(t, ok)
	_, ok = ix.Lookup("damages")
	assert.False(t, ok)

	assert.Equal(t, 2, ix.TermCount())
}

func TestInvertedTermStatsOrdering(t *testing.T) {
	ix := NewInverted(5, 3)
	ix.Add("doc-1", tokenize(t, "contract contract contract damages damages arbitration"))

	stats := ix.TermStats()
	require.Len(t, stats, 3)
	assert.Equal(t, TermStat{Term: "contract", TotalFrequency: 3}, stats[0])
	assert.Equal(t, TermStat{Term: "damages", TotalFrequency: 2}, stats[1])
	assert.Equal(t, TermStat{Term: "arbitration", TotalFrequency: 1}, stats[2])
}

func TestInvertedTermStatsTieBreaksByTerm(t *testing.T) {
	ix := NewInverted(5, 3)
	ix.Add("doc-1", tokenize(t, "zoning appeal"))

	stats := ix.TermStats()
	require.Len(t, stats, 2)
	assert.Equal(t, "appeal", stats[0].Term)
	assert.Equal(t, "zoning", stats[1].Term)
}

func TestInvertedCloneIsolation(t *testing.T) {
	ix := NewInverted(5, 3)
	ix.Add("doc-1", tokenize(t, "contract liability"))

	clone := ix.Clone()
	clone.Remove("doc-1")
	clone.Add("doc-2", tokenize(t, "arbitration"))

	// Original keeps its postings.
	pl, ok := ix.Lookup("contract")
	require.True(t, ok)
	assert.Equal(t, 1, pl.DocFreq())
	_, ok = ix.Lookup("arbitration")
	assert.False(t, ok)
}

func TestContextWindowBounds(t *testing.T) {
	tokens := tokenize(t, "alpha bravo charlie delta echo")
	require.Len(t, tokens, 5)

	assert.Equal(t, "alpha bravo charlie", contextWindow(tokens, 0, 2))
	assert.Equal(t, "alpha bravo charlie delta echo", contextWindow(tokens, 2, 2))
	assert.Equal(t, "charlie delta echo", contextWindow(tokens, 4, 2))
}
