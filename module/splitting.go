package module

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/crprop/candidate"
)

// Configuration errors returned by the splitting constructors.
var (
	ErrInvalidEnergyRange   = errors.New("splitting: invalid energy range")
	ErrInvalidBins          = errors.New("splitting: invalid number of energy bins")
	ErrInvalidSplit         = errors.New("splitting: negative split number")
	ErrInvalidSpectralIndex = errors.New("splitting: invalid spectral index")
)

// CandidateSplitting clones a candidate into n_split weighted copies each time
// its energy crosses a configured threshold upwards, dividing the weight by
// n_split so expectation values are unchanged.
//
// Thresholds are compared with strict "<": an energy equal to a threshold
// counts as having crossed it.
type CandidateSplitting struct {
	nSplit    int
	minWeight float64 // no splitting at or below this weight; 0 disables the floor
	bins      []float64
}

// NewCandidateSplitting creates a splitting module with nBins thresholds
// between emin and emax, log-spaced if log is set.
func NewCandidateSplitting(nSplit int, emin, emax float64, nBins int, minWeight float64, log bool) (*CandidateSplitting, error) {
	s := &CandidateSplitting{}
	if err := s.SetNsplit(nSplit); err != nil {
		return nil, err
	}
	if err := s.SetEnergyBins(emin, emax, nBins, log); err != nil {
		return nil, err
	}
	s.SetMinimalWeight(minWeight)
	return s, nil
}

// NewSplittingForSpectralIndex derives the splitting from the expected
// spectral index of the accelerated population: factor+1 log-spaced
// thresholds from emin to emin*10^factor, and 10^(index-1) copies per
// crossing to compensate for the particles lost per decade. Indices that
// give fewer than two copies are rejected.
func NewSplittingForSpectralIndex(index, emin float64, factor int) (*CandidateSplitting, error) {
	if !(index > 0) {
		return nil, fmt.Errorf("%w: %v (must be > 0)", ErrInvalidSpectralIndex, index)
	}
	nSplit := int(math.Pow(10, index-1))
	if nSplit < 2 {
		return nil, fmt.Errorf("%w: %v gives %d copies per crossing", ErrInvalidSpectralIndex, index, nSplit)
	}
	if factor < 0 {
		return nil, fmt.Errorf("%w: decade factor %d", ErrInvalidBins, factor)
	}
	emax := emin * math.Pow(10, float64(factor))
	return NewCandidateSplitting(nSplit, emin, emax, factor+1, 0, true)
}

// NewDSASplitting configures splitting for diffusive shock acceleration with
// a (negative) spectral index: candidates always split in two, and
// thresholds are placed so that each bin is expected to lose half of its
// particles. The weight floor stops splitting after nBins generations.
func NewDSASplitting(spectralIndex, emin float64, nBins int) (*CandidateSplitting, error) {
	if spectralIndex >= -1 {
		return nil, fmt.Errorf("%w: %v (must be < -1)", ErrInvalidSpectralIndex, spectralIndex)
	}
	if nBins < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBins, nBins)
	}
	if !(emin > 0) {
		return nil, fmt.Errorf("%w: Emin %v must be positive", ErrInvalidEnergyRange, emin)
	}

	dE := math.Pow(0.5, 1/(spectralIndex+1))
	bins := make([]float64, nBins)
	for i := range bins {
		bins[i] = emin * math.Pow(dE, float64(i+1))
	}
	return &CandidateSplitting{
		nSplit:    2,
		minWeight: 1 / math.Pow(2, float64(nBins)),
		bins:      bins,
	}, nil
}

// SetEnergyBins replaces the thresholds. Linear bins are Emin + i*(Emax-Emin)/nBins,
// log bins run from Emin to Emax inclusive. Thresholds are strictly
// increasing, so Emin == Emax allows a single bin only.
func (s *CandidateSplitting) SetEnergyBins(emin, emax float64, nBins int, log bool) error {
	if emin > emax {
		return fmt.Errorf("%w: %v > %v", ErrInvalidEnergyRange, emin, emax)
	}
	if nBins < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidBins, nBins)
	}
	if emin == emax && nBins > 1 {
		return fmt.Errorf("%w: %d thresholds need Emin < Emax, got %v", ErrInvalidEnergyRange, nBins, emin)
	}

	var bins []float64
	switch {
	case nBins == 1:
		bins = []float64{emin}
	case log:
		if !(emin > 0) {
			return fmt.Errorf("%w: log bins need Emin > 0, got %v", ErrInvalidEnergyRange, emin)
		}
		bins = floats.LogSpan(make([]float64, nBins), emin, emax)
	default:
		// nBins+1 edges, the last one (Emax) is not a threshold
		bins = floats.Span(make([]float64, nBins+1), emin, emax)[:nBins]
	}
	s.bins = bins
	return nil
}

// SetNsplit sets the number of copies per crossing. 0 disables splitting.
func (s *CandidateSplitting) SetNsplit(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSplit, n)
	}
	s.nSplit = n
	return nil
}

// SetMinimalWeight sets the weight floor below which splitting is suppressed.
func (s *CandidateSplitting) SetMinimalWeight(w float64) {
	s.minWeight = w
}

// Nsplit returns the number of copies per crossing.
func (s *CandidateSplitting) Nsplit() int {
	return s.nSplit
}

// MinimalWeight returns the weight floor.
func (s *CandidateSplitting) MinimalWeight() float64 {
	return s.minWeight
}

// EnergyBins returns the thresholds. The slice must not be modified.
func (s *CandidateSplitting) EnergyBins() []float64 {
	return s.bins
}

// Description implements Describer.
func (s *CandidateSplitting) Description() string {
	if len(s.bins) == 0 {
		return fmt.Sprintf("CandidateSplitting: n_split=%d, no energy bins", s.nSplit)
	}
	return fmt.Sprintf("CandidateSplitting: n_split=%d, %d energy bins in [%g, %g], min weight %g",
		s.nSplit, len(s.bins), s.bins[0], s.bins[len(s.bins)-1], s.minWeight)
}

// Process splits c if its energy crossed one or more thresholds since the
// previous step.
func (s *CandidateSplitting) Process(c *candidate.Candidate) {
	if s.nSplit == 0 || len(s.bins) == 0 {
		return
	}
	if c.Weight() <= s.minWeight {
		return
	}

	currE := c.Current.Energy
	prevE := c.Previous.Energy
	if currE < s.bins[0] {
		return
	}

	for i, edge := range s.bins {
		if prevE >= edge {
			continue
		}
		// previous energy lies below threshold i
		if currE < edge {
			return
		}
		// one split per threshold surpassed
		for j := i; j < len(s.bins); j++ {
			s.split(c, currE)
			if j < len(s.bins)-1 && currE < s.bins[j+1] {
				return
			}
		}
		return
	}
}

func (s *CandidateSplitting) split(c *candidate.Candidate, currE float64) {
	c.UpdateWeight(1 / float64(s.nSplit))
	for k := 1; k < s.nSplit; k++ {
		n := c.Clone(false)
		n.SetTag(candidate.TagSplit)
		// otherwise the clone looks like a fresh crossing on its next step
		n.Previous.SetEnergy(currE)
		c.AddSecondary(n)
	}
}
