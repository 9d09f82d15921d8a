package search

import (
	"sort"
	"time"

	"github.com/attestor-labs/lexsearch/internal/document"
	"github.com/attestor-labs/lexsearch/internal/engine"
)

// Strategy selects the result ordering.
type Strategy string

const (
	StrategyRelevance     Strategy = "relevance"
	StrategyDate          Strategy = "date"
	StrategyImportance    Strategy = "importance"
	StrategyEntityDensity Strategy = "entity_density"
)

// importanceBoost weighs document types by how load-bearing they tend to be
// in a matter. Unknown types fall back to the "other" boost.
var importanceBoost = map[string]float64{
	document.TypeContract:       1.5,
	document.TypeBrief:          1.4,
	document.TypeMotion:         1.3,
	document.TypeDeposition:     1.2,
	document.TypeCorrespondence: 1.0,
	document.TypeOther:          0.8,
}

func boostFor(docType string) float64 {
	if b, ok := importanceBoost[docType]; ok {
		return b
	}
	return importanceBoost[document.TypeOther]
}

// rank orders results in place. Every strategy breaks ties by ascending
// document ID so identical inputs always produce identical orderings. An
// unknown strategy falls back to relevance.
func rank(snap *engine.Snapshot, results []Result, strategy Strategy) {
	switch strategy {
	case StrategyDate:
		rankByDate(snap, results)
	case StrategyImportance:
		rankBy(results, func(r Result) float64 {
			return r.Score * boostFor(r.Metadata.DocumentType) *
				(1 + 0.1*float64(len(r.EntityMatches)))
		})
	case StrategyEntityDensity:
		rankBy(results, func(r Result) float64 {
			return float64(len(r.EntityMatches))
		})
	default:
		rankBy(results, func(r Result) float64 { return r.Score })
	}
}

func rankBy(results []Result, key func(Result) float64) {
	sort.SliceStable(results, func(i, j int) bool {
		ki, kj := key(results[i]), key(results[j])
		if ki != kj {
			return ki > kj
		}
		return results[i].DocumentID < results[j].DocumentID
	})
}

// rankByDate orders newest first. Documents without any date sort after all
// dated ones.
func rankByDate(snap *engine.Snapshot, results []Result) {
	dateOf := func(r Result) (time.Time, bool) {
		doc, ok := snap.Store.Get(r.DocumentID)
		if !ok {
			return time.Time{}, false
		}
		return doc.Date()
	}
	sort.SliceStable(results, func(i, j int) bool {
		di, okI := dateOf(results[i])
		dj, okJ := dateOf(results[j])
		switch {
		case !okI && !okJ:
			return results[i].DocumentID < results[j].DocumentID
		case !okI:
			return false
		case !okJ:
			return true
		case !di.Equal(dj):
			return di.After(dj)
		default:
			return results[i].DocumentID < results[j].DocumentID
		}
	})
}

