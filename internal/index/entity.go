package index

import (
	"sort"
	"strings"

	"github.com/attestor-labs/lexsearch/internal/document"
)

// Occurrence records one document's occurrences of one canonical entity.
type Occurrence struct {
	DocID      string   `json:"doc_id"`
	Count      int      `json:"count"`
	Positions  []int    `json:"positions,omitempty"`
	Confidence float64  `json:"confidence"`
	Contexts   []string `json:"contexts,omitempty"`
}

// EntityPostings holds every document occurrence of one canonical entity and
// the corpus-wide occurrence total.
type EntityPostings struct {
	// CanonicalName preserves the original casing for display; the index
	// key is the case-folded form.
	CanonicalName    string
	EntityType       string
	Occurrences      map[string]*Occurrence
	TotalOccurrences int
}

// EntityMatch is an entity key matched by a query, carried into scoring.
type EntityMatch struct {
	Key      string
	Postings *EntityPostings
}

// Entities indexes externally-resolved canonical entities by case-folded
// name.
type Entities struct {
	entities    map[string]*EntityPostings
	docEntities map[string][]string
}

// NewEntities creates an empty entity index.
func NewEntities() *Entities {
	return &Entities{
		entities:    make(map[string]*EntityPostings),
		docEntities: make(map[string][]string),
	}
}

// Add indexes one document's resolved entities. The document must not
// already be present; callers overwrite by calling Remove first.
func (ix *Entities) Add(docID string, entities []document.ResolvedEntity) {
	keys := make([]string, 0, len(entities))
	for _, ent := range entities {
		key := strings.ToLower(ent.CanonicalName)
		ep, exists := ix.entities[key]
		if !exists {
			ep = &EntityPostings{
				CanonicalName: ent.CanonicalName,
				EntityType:    ent.EntityType,
				Occurrences:   make(map[string]*Occurrence),
			}
			ix.entities[key] = ep
		}

		count := len(ent.Mentions)
		if count == 0 {
			// The resolver attached the entity without mention detail;
			// it occurred at least once.
			count = 1
		}
		occ := &Occurrence{
			DocID:      docID,
			Count:      count,
			Confidence: ent.Confidence,
		}
		for _, m := range ent.Mentions {
			occ.Positions = append(occ.Positions, m.StartPosition)
			if m.Context != "" {
				occ.Contexts = append(occ.Contexts, m.Context)
			}
		}

		if prev, dup := ep.Occurrences[docID]; dup {
			// Same canonical entity listed twice for one document:
			// fold the occurrences together, keeping the higher
			// confidence.
			occ.Count += prev.Count
			occ.Positions = append(prev.Positions, occ.Positions...)
			occ.Contexts = append(prev.Contexts, occ.Contexts...)
			if prev.Confidence > occ.Confidence {
				occ.Confidence = prev.Confidence
			}
			ep.TotalOccurrences -= prev.Count
		} else {
			keys = append(keys, key)
		}
		ep.Occurrences[docID] = occ
		ep.TotalOccurrences += occ.Count
	}
	sort.Strings(keys)
	ix.docEntities[docID] = keys
}

// Remove deletes every entity occurrence the document contributed.
func (ix *Entities) Remove(docID string) {
	for _, key := range ix.docEntities[docID] {
		ep, ok := ix.entities[key]
		if !ok {
			continue
		}
		if occ, ok := ep.Occurrences[docID]; ok {
			ep.TotalOccurrences -= occ.Count
			delete(ep.Occurrences, docID)
		}
		if len(ep.Occurrences) == 0 {
			delete(ix.entities, key)
		}
	}
	delete(ix.docEntities, docID)
}

// Match returns every entity whose case-folded key contains the query or is
// contained by it, in ascending key order.
func (ix *Entities) Match(query string) []EntityMatch {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	matches := make([]EntityMatch, 0)
	for key, ep := range ix.entities {
		if strings.Contains(key, q) || strings.Contains(q, key) {
			matches = append(matches, EntityMatch{Key: key, Postings: ep})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Key < matches[j].Key
	})
	return matches
}

// EntityCount returns the number of distinct canonical entities.
func (ix *Entities) EntityCount() int {
	return len(ix.entities)
}

// DocEntityCount returns how many distinct entities a document carries.
func (ix *Entities) DocEntityCount(docID string) int {
	return len(ix.docEntities[docID])
}

// Clone returns a copy safe for mutation, sharing the immutable Occurrence
// values.
func (ix *Entities) Clone() *Entities {
	entities := make(map[string]*EntityPostings, len(ix.entities))
	for key, ep := range ix.entities {
		occurrences := make(map[string]*Occurrence, len(ep.Occurrences))
		for docID, occ := range ep.Occurrences {
			occurrences[docID] = occ
		}
		entities[key] = &EntityPostings{
			CanonicalName:    ep.CanonicalName,
			EntityType:       ep.EntityType,
			Occurrences:      occurrences,
			TotalOccurrences: ep.TotalOccurrences,
		}
	}
	docEntities := make(map[string][]string, len(ix.docEntities))
	for docID, keys := range ix.docEntities {
		docEntities[docID] = keys
	}
	return &Entities{
		entities:    entities,
		docEntities: docEntities,
	}
}
