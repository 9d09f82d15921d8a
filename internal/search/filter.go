package search

import (
	"strings"

	"github.com/attestor-labs/lexsearch/internal/document"
	"github.com/attestor-labs/lexsearch/internal/engine"
)

// applyFilters keeps the results that satisfy every non-empty filter.
// Filters are conjunctive and order-independent; an empty Filters value
// passes everything through untouched.
func applyFilters(snap *engine.Snapshot, results []Result, f Filters) []Result {
	if f.isEmpty() {
		return results
	}
	kept := results[:0]
	for _, r := range results {
		if r.Score < f.ConfidenceThreshold {
			continue
		}
		doc, ok := snap.Store.Get(r.DocumentID)
		if !ok {
			continue
		}
		if !matchesFilters(doc, f) {
			continue
		}
		if !matchesEntities(r, doc, f.Entities) {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

func (f Filters) isEmpty() bool {
	return len(f.DocumentTypes) == 0 &&
		f.DateRange == nil &&
		len(f.Entities) == 0 &&
		f.ConfidenceThreshold == 0 &&
		len(f.CaseIDs) == 0
}

func matchesFilters(doc *document.Document, f Filters) bool {
	if len(f.DocumentTypes) > 0 && !containsFold(f.DocumentTypes, doc.Metadata.DocumentType) {
		return false
	}
	if len(f.CaseIDs) > 0 && !containsFold(f.CaseIDs, doc.Metadata.CaseID) {
		return false
	}
	if f.DateRange != nil && !matchesDateRange(doc, *f.DateRange) {
		return false
	}
	return true
}

// matchesDateRange checks the document date against inclusive bounds.
// Documents without any date pass: the filter constrains known dates and
// cannot reject what it cannot compare.
func matchesDateRange(doc *document.Document, dr DateRange) bool {
	date, ok := doc.Date()
	if !ok {
		return true
	}
	if dr.Start != nil && date.Before(*dr.Start) {
		return false
	}
	if dr.End != nil && date.After(*dr.End) {
		return false
	}
	return true
}

// matchesEntities reports whether at least one wanted entity matches the
// result. It checks the result's matched entity names when the strategy
// produced any, falling back to the document's resolved entities otherwise.
// Matching is case-insensitive and allows the partial containment the
// entity index uses.
func matchesEntities(r Result, doc *document.Document, wanted []string) bool {
	if len(wanted) == 0 {
		return true
	}
	names := r.EntityMatches
	if len(names) == 0 {
		names = make([]string, 0, len(doc.Entities))
		for _, ent := range doc.Entities {
			names = append(names, ent.CanonicalName)
		}
	}
	sawNonBlank := false
	for _, want := range wanted {
		w := strings.ToLower(strings.TrimSpace(want))
		if w == "" {
			continue
		}
		sawNonBlank = true
		for _, name := range names {
			got := strings.ToLower(name)
			if strings.Contains(got, w) || strings.Contains(w, got) {
				return true
			}
		}
	}
	return !sawNonBlank
}

func containsFold(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}
