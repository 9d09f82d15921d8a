// Package document defines the canonical document model, the typed
// ingestion input with boundary validation, and the in-memory document
// store that owns per-document records.
package document

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/attestor-labs/lexsearch/internal/tokenizer"
	"github.com/attestor-labs/lexsearch/pkg/errors"
)

// Document types recognised by the classifier and the importance ranker.
const (
	TypeContract       = "contract"
	TypeBrief          = "brief"
	TypeMotion         = "motion"
	TypeDeposition     = "deposition"
	TypeCorrespondence = "correspondence"
	TypeOther          = "other"
)

// EntityMention is a single occurrence of an entity in the source text, as
// reported by the external entity-resolution collaborator.
type EntityMention struct {
	StartPosition int    `json:"start_position"`
	Context       string `json:"context"`
}

// ResolvedEntity is a canonical entity attached to a document by the
// external resolver.
type ResolvedEntity struct {
	CanonicalName string          `json:"canonical_name"`
	EntityType    string          `json:"entity_type"`
	Confidence    float64         `json:"confidence"`
	Mentions      []EntityMention `json:"mentions,omitempty"`
}

// Metadata carries per-document attributes used for filtering and ranking.
type Metadata struct {
	DocumentType string     `json:"document_type"`
	CreatedDate  *time.Time `json:"created_date,omitempty"`
	ModifiedDate *time.Time `json:"modified_date,omitempty"`
	CaseID       string     `json:"case_id,omitempty"`
	WordCount    int        `json:"word_count"`
}

// Input is the ingestion payload consumed from the document-extraction
// collaborator. All fields except ID are optional; empty content is allowed.
type Input struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Content  string           `json:"content"`
	Entities []ResolvedEntity `json:"entities,omitempty"`
	Metadata Metadata         `json:"metadata"`
}

// Validate checks the boundary requirements for an ingestion input.
func (in Input) Validate() error {
	if strings.TrimSpace(in.ID) == "" {
		return errors.Newf(errors.ErrInvalidDocument, 400, "document id is required (name %q)", in.Name)
	}
	for i, ent := range in.Entities {
		if ent.CanonicalName == "" {
			return errors.Newf(errors.ErrInvalidDocument, 400,
				"document %s: entity %d has no canonical name", in.ID, i)
		}
		if ent.Confidence < 0 || ent.Confidence > 1 {
			return errors.Newf(errors.ErrInvalidDocument, 400,
				"document %s: entity %q confidence %.3f outside [0,1]", in.ID, ent.CanonicalName, ent.Confidence)
		}
	}
	return nil
}

// Document is the canonical per-document record. It is immutable once
// indexed; re-indexing the same ID replaces the record wholesale.
type Document struct {
	ID        string
	Name      string
	RawText   string
	Tokens    []tokenizer.Token
	Entities  []ResolvedEntity
	Metadata  Metadata
	IndexedAt time.Time
}

// Date returns the document's created date, falling back to the modified
// date. The second return reports whether either is present.
func (d *Document) Date() (time.Time, bool) {
	if d.Metadata.CreatedDate != nil {
		return *d.Metadata.CreatedDate, true
	}
	if d.Metadata.ModifiedDate != nil {
		return *d.Metadata.ModifiedDate, true
	}
	return time.Time{}, false
}

var filenameTypeHints = []struct {
	hint    string
	docType string
}{
	{"contract", TypeContract},
	{"agreement", TypeContract},
	{"brief", TypeBrief},
	{"motion", TypeMotion},
	{"depo", TypeDeposition},
	{"deposition", TypeDeposition},
	{"letter", TypeCorrespondence},
	{"email", TypeCorrespondence},
	{"correspondence", TypeCorrespondence},
}

var contentTypeHints = []struct {
	hint    string
	docType string
}{
	{"this agreement is entered into", TypeContract},
	{"witnesseth", TypeContract},
	{"statement of the case", TypeBrief},
	{"respectfully submitted", TypeBrief},
	{"hereby moves", TypeMotion},
	{"notice of motion", TypeMotion},
	{"deposition of", TypeDeposition},
	{"having been duly sworn", TypeDeposition},
	{"dear ", TypeCorrespondence},
	{"sincerely", TypeCorrespondence},
}

// ClassifyType determines a document type from filename and content
// heuristics. An explicitly supplied type always wins.
func ClassifyType(in Input) string {
	if in.Metadata.DocumentType != "" {
		return in.Metadata.DocumentType
	}
	name := strings.ToLower(in.Name)
	for _, h := range filenameTypeHints {
		if strings.Contains(name, h.hint) {
			return h.docType
		}
	}
	// Only scan a bounded prefix; type markers appear early in legal
	// documents.
	content := strings.ToLower(in.Content)
	if len(content) > 2000 {
		content = content[:2000]
	}
	for _, h := range contentTypeHints {
		if strings.Contains(content, h.hint) {
			return h.docType
		}
	}
	return TypeOther
}

// Store owns the canonical document records of one index snapshot. It is
// mutated only by the snapshot builder (single writer); published snapshots
// are read-only, so no locking happens here.
type Store struct {
	docs map[string]*Document
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{docs: make(map[string]*Document)}
}

// Put inserts or replaces a document record.
func (s *Store) Put(doc *Document) {
	s.docs[doc.ID] = doc
}

// Get returns the document with the given ID.
func (s *Store) Get(id string) (*Document, bool) {
	doc, ok := s.docs[id]
	return doc, ok
}

// Delete removes a document record if present.
func (s *Store) Delete(id string) {
	delete(s.docs, id)
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	return len(s.docs)
}

// IDs returns all document IDs in ascending order.
func (s *Store) IDs() []string {
	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns a copy of the store sharing the immutable document records.
func (s *Store) Clone() *Store {
	docs := make(map[string]*Document, len(s.docs))
	for id, doc := range s.docs {
		docs[id] = doc
	}
	return &Store{docs: docs}
}

// String implements fmt.Stringer for logging.
func (s *Store) String() string {
	return fmt.Sprintf("Store(%d docs)", len(s.docs))
}
