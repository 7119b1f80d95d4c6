package telemetry

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrInvalidEdges is returned for histogram edges that cannot bin anything.
var ErrInvalidEdges = errors.New("invalid histogram edges")

// EnergyEdges returns n+1 bin edges spanning [emin, emax], equally spaced
// in energy or, with logarithmic set, in log energy.
func EnergyEdges(emin, emax float64, n int, logarithmic bool) ([]float64, error) {
	switch {
	case n < 1:
		return nil, fmt.Errorf("%w: need at least one bin, got %d", ErrInvalidEdges, n)
	case !(emin < emax):
		return nil, fmt.Errorf("%w: empty range [%v, %v]", ErrInvalidEdges, emin, emax)
	case logarithmic && !(emin > 0):
		return nil, fmt.Errorf("%w: logarithmic edges need a positive lower bound, got %v", ErrInvalidEdges, emin)
	}

	edges := make([]float64, n+1)
	if logarithmic {
		return floats.LogSpan(edges, emin, emax), nil
	}
	return floats.Span(edges, emin, emax), nil
}

// WeightedHistogram sums weights[i] into the bin of edges containing
// values[i]. Bins are half open, [edges[k], edges[k+1]). Values outside the
// edges are dropped. A nil weights slice counts every value once.
func WeightedHistogram(values, weights, edges []float64) []float64 {
	if len(edges) < 2 {
		return nil
	}
	lo, hi := edges[0], edges[len(edges)-1]

	xs := make([]float64, 0, len(values))
	ws := make([]float64, 0, len(values))
	for i, v := range values {
		if v < lo || v >= hi {
			continue
		}
		xs = append(xs, v)
		if weights == nil {
			ws = append(ws, 1)
		} else {
			ws = append(ws, weights[i])
		}
	}
	if len(xs) == 0 {
		return make([]float64, len(edges)-1)
	}

	// stat.Histogram needs x sorted; carry the weights along.
	idx := make([]int, len(xs))
	floats.Argsort(xs, idx)
	sorted := make([]float64, len(ws))
	for i, j := range idx {
		sorted[i] = ws[j]
	}
	return stat.Histogram(nil, edges, xs, sorted)
}

// SpectrumBin is one row of an energy spectrum.
type SpectrumBin struct {
	Low    float64 `csv:"e_low" json:"e_low"`
	High   float64 `csv:"e_high" json:"e_high"`
	Weight float64 `csv:"weight" json:"weight"`
}

// Bins pairs histogram counts with their edges.
func Bins(edges, counts []float64) []SpectrumBin {
	bins := make([]SpectrumBin, len(counts))
	for i := range counts {
		bins[i] = SpectrumBin{Low: edges[i], High: edges[i+1], Weight: counts[i]}
	}
	return bins
}
