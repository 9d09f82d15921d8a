package index

import (
	"math"
	"sort"

	"github.com/attestor-labs/lexsearch/internal/tokenizer"
)

// Vector is a document's fixed-dimension pseudo-embedding. Magnitude is the
// L2 norm after normalisation: 1 for any non-empty document, 0 for a
// document with no indexable tokens (a valid degenerate state).
type Vector struct {
	DocID       string    `json:"doc_id"`
	Values      []float64 `json:"values"`
	Magnitude   float64   `json:"magnitude"`
	TopKeywords []string  `json:"top_keywords,omitempty"`
}

// Embedder turns a token sequence into a fixed-dimension vector. The default
// implementation is a deterministic term-weighted projection; a learned
// model can be substituted without touching index or query logic.
type Embedder interface {
	Embed(tokens []tokenizer.Token) *Vector
	Dimensions() int
}

// HashingEmbedder is the default Embedder: per distinct token it computes a
// TF-IDF-like weight (freq/len · domainWeight) and scatters it into the
// vector at runningCounter mod D, then L2-normalises.
type HashingEmbedder struct {
	dims        int
	weights     *Weights
	topKeywords int
}

// NewHashingEmbedder creates an embedder with the given dimension count
// (default 100) and domain weight table.
func NewHashingEmbedder(dims int, weights *Weights, topKeywords int) *HashingEmbedder {
	if dims <= 0 {
		dims = 100
	}
	if topKeywords <= 0 {
		topKeywords = 10
	}
	if weights == nil {
		weights = NewWeights(nil)
	}
	return &HashingEmbedder{dims: dims, weights: weights, topKeywords: topKeywords}
}

// Dimensions returns the fixed vector length.
func (e *HashingEmbedder) Dimensions() int {
	return e.dims
}

// Embed builds the pseudo-embedding for a token sequence. Distinct tokens
// are visited in first-appearance order so the projection is deterministic.
func (e *HashingEmbedder) Embed(tokens []tokenizer.Token) *Vector {
	values := make([]float64, e.dims)
	if len(tokens) == 0 {
		return &Vector{Values: values, Magnitude: 0}
	}

	freq := make(map[string]int, len(tokens))
	order := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, seen := freq[tok.Term]; !seen {
			order = append(order, tok.Term)
		}
		freq[tok.Term]++
	}

	type keyword struct {
		term   string
		weight float64
	}
	keywords := make([]keyword, 0, len(order))
	total := float64(len(tokens))
	for counter, term := range order {
		weight := (float64(freq[term]) / total) * e.weights.Of(term)
		values[counter%e.dims] += weight
		keywords = append(keywords, keyword{term: term, weight: weight})
	}

	magnitude := l2Norm(values)
	if magnitude > 0 {
		for i := range values {
			values[i] /= magnitude
		}
	}

	sort.Slice(keywords, func(i, j int) bool {
		if keywords[i].weight != keywords[j].weight {
			return keywords[i].weight > keywords[j].weight
		}
		return keywords[i].term < keywords[j].term
	})
	top := make([]string, 0, e.topKeywords)
	for i := 0; i < len(keywords) && i < e.topKeywords; i++ {
		top = append(top, keywords[i].term)
	}

	return &Vector{
		Values:      values,
		Magnitude:   l2Norm(values),
		TopKeywords: top,
	}
}

// SimilarDoc pairs a document ID with its cosine similarity to a query
// vector.
type SimilarDoc struct {
	DocID      string
	Similarity float64
}

// Semantic is the per-document vector index.
type Semantic struct {
	vectors map[string]*Vector
}

// NewSemantic creates an empty semantic index.
func NewSemantic() *Semantic {
	return &Semantic{vectors: make(map[string]*Vector)}
}

// Add stores a document's vector, replacing any previous one.
func (ix *Semantic) Add(docID string, vec *Vector) {
	stored := *vec
	stored.DocID = docID
	ix.vectors[docID] = &stored
}

// Remove deletes a document's vector.
func (ix *Semantic) Remove(docID string) {
	delete(ix.vectors, docID)
}

// Vector returns a document's vector.
func (ix *Semantic) Vector(docID string) (*Vector, bool) {
	v, ok := ix.vectors[docID]
	return v, ok
}

// Similar returns every document whose cosine similarity to the query vector
// meets or exceeds threshold, ordered by ascending document ID. Zero-vector
// documents have similarity 0 and never pass a positive threshold.
func (ix *Semantic) Similar(query *Vector, threshold float64) []SimilarDoc {
	results := make([]SimilarDoc, 0)
	for docID, vec := range ix.vectors {
		sim := Cosine(query, vec)
		if sim >= threshold {
			results = append(results, SimilarDoc{DocID: docID, Similarity: sim})
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].DocID < results[j].DocID
	})
	return results
}

// Clone returns a copy safe for mutation, sharing the immutable vectors.
func (ix *Semantic) Clone() *Semantic {
	vectors := make(map[string]*Vector, len(ix.vectors))
	for docID, vec := range ix.vectors {
		vectors[docID] = vec
	}
	return &Semantic{vectors: vectors}
}

// Cosine computes the cosine similarity of two vectors. It is 0, not NaN,
// when either magnitude is 0.
func Cosine(a, b *Vector) float64 {
	if a == nil || b == nil || a.Magnitude == 0 || b.Magnitude == 0 {
		return 0
	}
	n := len(a.Values)
	if len(b.Values) < n {
		n = len(b.Values)
	}
	var dot float64
	for i := 0; i < n; i++ {
		dot += a.Values[i] * b.Values[i]
	}
	return dot / (a.Magnitude * b.Magnitude)
}

func l2Norm(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v * v
	}
	return math.Sqrt(sum)
}
