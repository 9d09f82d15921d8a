package engine

import (
	"time"

	"github.com/attestor-labs/lexsearch/internal/document"
	"github.com/attestor-labs/lexsearch/internal/index"
)

// CorpusMetadata is derived from the index structures after every batch;
// it is never hand-edited.
type CorpusMetadata struct {
	TotalDocuments    int              `json:"total_documents"`
	TotalTerms        int              `json:"total_terms"`
	TotalEntities     int              `json:"total_entities"`
	AvgDocumentLength float64          `json:"avg_document_length"`
	AvgEntityCount    float64          `json:"avg_entity_count"`
	CommonTerms       []index.TermStat `json:"common_terms,omitempty"`
	RareTerms         []index.TermStat `json:"rare_terms,omitempty"`
	LastUpdated       time.Time        `json:"last_updated"`
}

// Snapshot is one complete, immutable version of every index structure.
// Readers always hold a whole snapshot, so a search never observes a
// half-applied batch.
type Snapshot struct {
	Version  uint64
	Store    *document.Store
	Inverted *index.Inverted
	Entities *index.Entities
	Semantic *index.Semantic
	Corpus   CorpusMetadata
}

func emptySnapshot(windowRadius, maxContexts int) *Snapshot {
	return &Snapshot{
		Store:    document.NewStore(),
		Inverted: index.NewInverted(windowRadius, maxContexts),
		Entities: index.NewEntities(),
		Semantic: index.NewSemantic(),
	}
}

// clone prepares a mutable successor of this snapshot.
func (s *Snapshot) clone() *Snapshot {
	return &Snapshot{
		Version:  s.Version + 1,
		Store:    s.Store.Clone(),
		Inverted: s.Inverted.Clone(),
		Entities: s.Entities.Clone(),
		Semantic: s.Semantic.Clone(),
	}
}

// remove drops a document from every structure; used when overwriting an
// already-indexed ID.
func (s *Snapshot) remove(docID string) {
	s.Store.Delete(docID)
	s.Inverted.Remove(docID)
	s.Entities.Remove(docID)
	s.Semantic.Remove(docID)
}

// apply inserts one analysed document into every structure.
func (s *Snapshot) apply(doc *document.Document, vec *index.Vector) {
	if _, exists := s.Store.Get(doc.ID); exists {
		s.remove(doc.ID)
	}
	s.Store.Put(doc)
	s.Inverted.Add(doc.ID, doc.Tokens)
	s.Entities.Add(doc.ID, doc.Entities)
	s.Semantic.Add(doc.ID, vec)
}

const termListSize = 10

// recomputeCorpus rebuilds the derived corpus statistics.
func (s *Snapshot) recomputeCorpus(now time.Time) {
	meta := CorpusMetadata{
		TotalDocuments: s.Store.Len(),
		TotalTerms:     s.Inverted.TermCount(),
		TotalEntities:  s.Entities.EntityCount(),
		LastUpdated:    now,
	}
	if meta.TotalDocuments > 0 {
		var tokenSum, entitySum int
		for _, id := range s.Store.IDs() {
			doc, _ := s.Store.Get(id)
			tokenSum += len(doc.Tokens)
			entitySum += s.Entities.DocEntityCount(id)
		}
		meta.AvgDocumentLength = float64(tokenSum) / float64(meta.TotalDocuments)
		meta.AvgEntityCount = float64(entitySum) / float64(meta.TotalDocuments)
	}

	stats := s.Inverted.TermStats()
	common := len(stats)
	if common > termListSize {
		common = termListSize
	}
	meta.CommonTerms = stats[:common]

	rareStart := len(stats) - termListSize
	if rareStart < 0 {
		rareStart = 0
	}
	rare := make([]index.TermStat, len(stats)-rareStart)
	copy(rare, stats[rareStart:])
	// Rare terms read least-frequent first.
	for i, j := 0, len(rare)-1; i < j; i, j = i+1, j-1 {
		rare[i], rare[j] = rare[j], rare[i]
	}
	meta.RareTerms = rare
	s.Corpus = meta
}
