package index

// defaultTermWeights boosts terms that carry disproportionate signal in
// legal corpora. Terms not listed weigh 1.0.
var defaultTermWeights = map[string]float64{
	"agreement":       2.5,
	"contract":        2.5,
	"breach":          2.2,
	"breached":        2.2,
	"indemnification": 2.0,
	"liability":       2.0,
	"warranty":        1.8,
	"termination":     1.8,
	"plaintiff":       1.5,
	"defendant":       1.5,
	"deposition":      1.5,
	"motion":          1.4,
	"settlement":      1.4,
	"damages":         1.4,
	"negligence":      1.4,
	"jurisdiction":    1.3,
	"statute":         1.3,
	"clause":          1.3,
}

// Weights resolves per-term domain weights for TF-IDF scoring and vector
// construction.
type Weights struct {
	table map[string]float64
}

// NewWeights builds a weight table from the defaults overlaid with the given
// overrides. Passing nil keeps the defaults.
func NewWeights(overrides map[string]float64) *Weights {
	table := make(map[string]float64, len(defaultTermWeights)+len(overrides))
	for term, w := range defaultTermWeights {
		table[term] = w
	}
	for term, w := range overrides {
		table[term] = w
	}
	return &Weights{table: table}
}

// Of returns the weight for a term, defaulting to 1.0.
func (w *Weights) Of(term string) float64 {
	if weight, ok := w.table[term]; ok {
		return weight
	}
	return 1.0
}
