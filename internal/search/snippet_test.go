package search

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attestor-labs/lexsearch/internal/document"
	"github.com/attestor-labs/lexsearch/internal/engine"
	"github.com/attestor-labs/lexsearch/internal/index"
	"github.com/attestor-labs/lexsearch/internal/tokenizer"
)

func snippetSnapshot(t *testing.T, content string) (*engine.Snapshot, *document.Document) {
	t.Helper()
	tok := tokenizer.New()
	tokens := tok.Tokenize(content)

	doc := &document.Document{ID: "d1", Tokens: tokens}
	store := document.NewStore()
	store.Put(doc)

	inv := index.NewInverted(5, 3)
	inv.Add("d1", tokens)

	ents := index.NewEntities()
	ents.Add("d1", []document.ResolvedEntity{
		{
			CanonicalName: "Acme Corp",
			Confidence:    0.9,
			Mentions: []document.EntityMention{
				{StartPosition: 0, Context: "Acme Corp filed the original complaint"},
			},
		},
	})

	return &engine.Snapshot{
		Store:    store,
		Inverted: inv,
		Entities: ents,
		Semantic: index.NewSemantic(),
	}, doc
}

func TestGenerateTermSnippets(t *testing.T) {
	snap, doc := snippetSnapshot(t,
		"The agreement covers liability. The agreement covers damages. The agreement covers warranties.")
	gen := newSnippetGenerator(200, true)

	snippets := gen.Generate(snap, doc, []string{"agreement"}, nil)
	require.NotEmpty(t, snippets)
	assert.LessOrEqual(t, len(snippets), 3, "at most three snippets per term")
	for _, s := range snippets {
		assert.Contains(t, s, "**agreement**")
	}
}

func TestGenerateCapsTotalAtFive(t *testing.T) {
	snap, doc := snippetSnapshot(t,
		"alpha bravo charlie delta echo foxtrot golf hotel india juliet kilo lima")
	gen := newSnippetGenerator(200, false)

	terms := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf"}
	snippets := gen.Generate(snap, doc, terms, nil)
	assert.Len(t, snippets, 5)
}

func TestGenerateDeduplicatesWindows(t *testing.T) {
	snap, doc := snippetSnapshot(t, "breach breach")
	gen := newSnippetGenerator(200, false)

	// Both occurrences share the identical context window.
	snippets := gen.Generate(snap, doc, []string{"breach"}, nil)
	assert.Len(t, snippets, 1)
}

func TestGenerateEntitySnippets(t *testing.T) {
	snap, doc := snippetSnapshot(t, "procedural history of the matter")
	gen := newSnippetGenerator(200, true)

	snippets := gen.Generate(snap, doc, nil, []string{"Acme Corp"})
	require.Len(t, snippets, 1)
	assert.Contains(t, snippets[0], "**Acme Corp**")
}

func TestTruncateAroundKeepsMatchVisible(t *testing.T) {
	long := strings.Repeat("padding ", 40) + "liability" + strings.Repeat(" trailing", 40)
	got := truncateAround(long, "liability", 60)
	assert.LessOrEqual(t, len(got), 60)
	assert.Contains(t, got, "liability")

	// Match near the start: window clamps to the text head.
	got = truncateAround("liability plus a long tail of additional words here", "liability", 20)
	assert.LessOrEqual(t, len(got), 20)
	assert.Contains(t, got, "liability")
}

func TestTruncateAroundKeepsRunesIntact(t *testing.T) {
	// Multi-byte runes surround the match; window edges must never split one.
	long := strings.Repeat("é", 50) + " liability " + strings.Repeat("ü", 50)
	got := truncateAround(long, "liability", 40)
	assert.LessOrEqual(t, len(got), 40)
	assert.Contains(t, got, "liability")
	assert.True(t, utf8.ValidString(got))

	// No match at all: the head truncation snaps to a boundary too.
	got = truncateAround(strings.Repeat("é", 30), "absent", 25)
	assert.LessOrEqual(t, len(got), 25)
	assert.True(t, utf8.ValidString(got))
}

func TestHighlightTermPreservesCasing(t *testing.T) {
	got := highlightTerm("Acme Corp sued ACME CORP", "acme corp")
	assert.Equal(t, "**Acme Corp** sued **ACME CORP**", got)

	assert.Equal(t, "untouched", highlightTerm("untouched", ""))
	assert.Equal(t, "no match here", highlightTerm("no match here", "zebra"))
}

func TestRenderRespectsLengthAndHighlightFlags(t *testing.T) {
	gen := newSnippetGenerator(30, false)
	out := gen.render(strings.Repeat("x ", 40)+"claim", "claim")
	assert.LessOrEqual(t, len(out), 30)
	assert.NotContains(t, out, "**")

	assert.Equal(t, "", gen.render("   ", "claim"))
}
