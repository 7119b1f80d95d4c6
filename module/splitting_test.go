package module

import (
	"errors"
	"math"
	"testing"

	"github.com/pthm-cable/crprop/candidate"
)

func newTestCandidate(prevE, currE float64) *candidate.Candidate {
	c := candidate.NewRegistry(1).NewCandidate(candidate.ParticleState{ID: candidate.Proton})
	c.Previous.SetEnergy(prevE)
	c.Current.SetEnergy(currE)
	return c
}

func totalWeight(c *candidate.Candidate) float64 {
	w := c.Weight()
	for _, s := range c.Secondaries() {
		w += totalWeight(s)
	}
	return w
}

func decadeSplitting(nSplit int) *CandidateSplitting {
	return &CandidateSplitting{nSplit: nSplit, bins: []float64{1, 10, 100}}
}

func TestSplittingSingleCrossing(t *testing.T) {
	s := decadeSplitting(2)
	c := newTestCandidate(5, 50)

	s.Process(c)

	if c.Weight() != 0.5 {
		t.Errorf("weight = %v, want 0.5", c.Weight())
	}
	secs := c.Secondaries()
	if len(secs) != 1 {
		t.Fatalf("got %d secondaries, want 1", len(secs))
	}
	sec := secs[0]
	if sec.Weight() != 0.5 {
		t.Errorf("clone weight = %v, want 0.5", sec.Weight())
	}
	if sec.Parent() != c {
		t.Error("clone parent should be the split candidate")
	}
	if sec.Previous.Energy != 50 {
		t.Errorf("clone previous energy = %v, want 50", sec.Previous.Energy)
	}
	if sec.Current.Energy != 50 {
		t.Errorf("clone current energy = %v, want 50", sec.Current.Energy)
	}
	if sec.Tag() != candidate.TagSplit {
		t.Errorf("clone tag = %q, want %q", sec.Tag(), candidate.TagSplit)
	}
	if sec.SerialNumber() == c.SerialNumber() {
		t.Error("clone must have its own serial number")
	}
}

func TestSplittingMultipleCrossings(t *testing.T) {
	s := decadeSplitting(2)
	c := newTestCandidate(5, 150)

	s.Process(c)

	if c.Weight() != 0.25 {
		t.Errorf("weight = %v, want 0.25", c.Weight())
	}
	if n := len(c.Secondaries()); n != 2 {
		t.Fatalf("got %d secondaries, want 2", n)
	}
	if w := c.Secondaries()[0].Weight(); w != 0.5 {
		t.Errorf("first clone weight = %v, want 0.5", w)
	}
	if w := c.Secondaries()[1].Weight(); w != 0.25 {
		t.Errorf("second clone weight = %v, want 0.25", w)
	}
	if w := totalWeight(c); math.Abs(w-1) > 1e-12 {
		t.Errorf("total weight = %v, want 1", w)
	}
}

func TestSplittingNoAction(t *testing.T) {
	tests := []struct {
		name         string
		prevE, currE float64
	}{
		{"same bin", 12, 50},
		{"same lowest bin", 1, 9.9},
		{"below first threshold", 0.1, 0.5},
		{"above all thresholds", 150, 500},
		{"energy decreased", 50, 5},
		{"previous on threshold", 10, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCandidate(tt.prevE, tt.currE)
			decadeSplitting(3).Process(c)

			if c.Weight() != 1 {
				t.Errorf("weight = %v, want 1", c.Weight())
			}
			if n := len(c.Secondaries()); n != 0 {
				t.Errorf("got %d secondaries, want 0", n)
			}
		})
	}
}

func TestSplittingThresholdTieBreak(t *testing.T) {
	c := newTestCandidate(5, 10)
	decadeSplitting(2).Process(c)

	if c.Weight() != 0.5 {
		t.Errorf("energy equal to threshold should split: weight = %v, want 0.5", c.Weight())
	}

	c = newTestCandidate(0.5, 1)
	decadeSplitting(2).Process(c)
	if c.Weight() != 0.5 {
		t.Errorf("energy equal to first threshold should split: weight = %v, want 0.5", c.Weight())
	}
}

func TestSplittingNoDoubleSplit(t *testing.T) {
	s := decadeSplitting(2)
	c := newTestCandidate(5, 50)
	s.Process(c)

	clone := c.Secondaries()[0]
	s.Process(clone)
	if clone.Weight() != 0.5 || len(clone.Secondaries()) != 0 {
		t.Errorf("clone split again: weight %v, %d secondaries", clone.Weight(), len(clone.Secondaries()))
	}

	// next step of the original, nothing moved
	c.Previous = c.Current
	s.Process(c)
	if c.Weight() != 0.5 || len(c.Secondaries()) != 1 {
		t.Errorf("original split again: weight %v, %d secondaries", c.Weight(), len(c.Secondaries()))
	}
}

func TestSplittingDisabled(t *testing.T) {
	c := newTestCandidate(5, 50)
	decadeSplitting(0).Process(c)
	if c.Weight() != 1 || len(c.Secondaries()) != 0 {
		t.Error("n_split = 0 should disable splitting")
	}

	c = newTestCandidate(5, 50)
	(&CandidateSplitting{nSplit: 2}).Process(c)
	if c.Weight() != 1 || len(c.Secondaries()) != 0 {
		t.Error("no bins should disable splitting")
	}
}

func TestSplittingMinimalWeight(t *testing.T) {
	s := decadeSplitting(2)
	s.SetMinimalWeight(0.5)

	c := newTestCandidate(5, 50)
	s.Process(c)
	if c.Weight() != 0.5 {
		t.Fatalf("weight above floor should split: weight = %v", c.Weight())
	}

	// at the floor: no-op
	c.Previous.SetEnergy(50)
	c.Current.SetEnergy(150)
	s.Process(c)
	if c.Weight() != 0.5 || len(c.Secondaries()) != 1 {
		t.Errorf("weight at floor should not split: weight %v, %d secondaries", c.Weight(), len(c.Secondaries()))
	}
}

func TestSplittingWeightConservation(t *testing.T) {
	energies := []float64{0.5, 1, 3, 10, 42, 100, 1e3}
	for nSplit := 1; nSplit <= 5; nSplit++ {
		for _, prevE := range energies {
			for _, currE := range energies {
				c := newTestCandidate(prevE, currE)
				decadeSplitting(nSplit).Process(c)

				if w := totalWeight(c); math.Abs(w-1) > 1e-12 {
					t.Errorf("n_split=%d prevE=%v currE=%v: total weight %v, want 1", nSplit, prevE, currE, w)
				}
			}
		}
	}
}

func TestSplittingRepeatedCrossingsConserveWeight(t *testing.T) {
	s := decadeSplitting(3)
	c := newTestCandidate(0.5, 0.5)

	// walk the primary and every clone up through all thresholds
	pending := []*candidate.Candidate{c}
	for len(pending) > 0 {
		x := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		for _, e := range []float64{2, 20, 200} {
			if e <= x.Current.Energy {
				continue
			}
			x.Previous = x.Current
			x.Current.SetEnergy(e)
			s.Process(x)
		}
		pending = append(pending, x.DrainSecondaries()...)
	}

	if w := totalWeight(c); math.Abs(w-1) > 1e-12 {
		t.Errorf("total weight = %v, want 1", w)
	}
	if w := c.Weight(); math.Abs(w-1.0/27) > 1e-12 {
		t.Errorf("primary weight = %v, want 1/27", w)
	}
}

func TestNewCandidateSplittingErrors(t *testing.T) {
	tests := []struct {
		name      string
		nSplit    int
		emin      float64
		emax      float64
		nBins     int
		log       bool
		wantError error
	}{
		{"emin above emax", 2, 100, 10, 3, false, ErrInvalidEnergyRange},
		{"zero bins", 2, 1, 10, 0, false, ErrInvalidBins},
		{"negative split", -1, 1, 10, 3, false, ErrInvalidSplit},
		{"log with zero emin", 2, 0, 10, 3, true, ErrInvalidEnergyRange},
		{"repeated linear thresholds", 2, 10, 10, 3, false, ErrInvalidEnergyRange},
		{"repeated log thresholds", 2, 10, 10, 3, true, ErrInvalidEnergyRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewCandidateSplitting(tt.nSplit, tt.emin, tt.emax, tt.nBins, 0, tt.log)
			if !errors.Is(err, tt.wantError) {
				t.Errorf("error = %v, want %v", err, tt.wantError)
			}
			if s != nil {
				t.Error("failed construction should not return a module")
			}
		})
	}
}

func TestEnergyBinsLinear(t *testing.T) {
	s, err := NewCandidateSplitting(2, 0, 30, 3, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0, 10, 20}
	got := s.EnergyBins()
	if len(got) != len(want) {
		t.Fatalf("bins = %v, want %v", got, want)
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("bin %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestEnergyBinsLog(t *testing.T) {
	s, err := NewCandidateSplitting(2, 1, 1e4, 5, 0, true)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{1, 10, 100, 1e3, 1e4}
	got := s.EnergyBins()
	if len(got) != len(want) {
		t.Fatalf("bins = %v, want %v", got, want)
	}
	for i := range want {
		if math.Abs(got[i]-want[i])/want[i] > 1e-9 {
			t.Errorf("bin %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestEnergyBinsSingle(t *testing.T) {
	s, err := NewCandidateSplitting(2, 5, 50, 1, 0, true)
	if err != nil {
		t.Fatal(err)
	}
	if got := s.EnergyBins(); len(got) != 1 || got[0] != 5 {
		t.Errorf("bins = %v, want [5]", got)
	}
}

func TestEnergyBinsEqualBounds(t *testing.T) {
	s, err := NewCandidateSplitting(2, 10, 10, 1, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	c := newTestCandidate(5, 20)
	s.Process(c)
	if c.Weight() != 0.5 || len(c.Secondaries()) != 1 {
		t.Errorf("weight = %v with %d secondaries, want 0.5 with 1", c.Weight(), len(c.Secondaries()))
	}
}

func TestSplittingForSpectralIndex(t *testing.T) {
	s, err := NewSplittingForSpectralIndex(2, 1, 4)
	if err != nil {
		t.Fatal(err)
	}
	if s.Nsplit() != 10 {
		t.Errorf("n_split = %d, want 10", s.Nsplit())
	}
	bins := s.EnergyBins()
	if len(bins) != 5 {
		t.Fatalf("got %d bins, want 5", len(bins))
	}
	if math.Abs(bins[4]-1e4)/1e4 > 1e-9 {
		t.Errorf("last bin = %v, want 1e4", bins[4])
	}

	for _, index := range []float64{0, -1, 0.5, 1, 1.2} {
		if _, err := NewSplittingForSpectralIndex(index, 1, 4); !errors.Is(err, ErrInvalidSpectralIndex) {
			t.Errorf("index %v: error = %v, want ErrInvalidSpectralIndex", index, err)
		}
	}
}

func TestDSASplitting(t *testing.T) {
	s, err := NewDSASplitting(-2, 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	if s.Nsplit() != 2 {
		t.Errorf("n_split = %d, want 2", s.Nsplit())
	}
	if s.MinimalWeight() != 0.125 {
		t.Errorf("min weight = %v, want 0.125", s.MinimalWeight())
	}
	want := []float64{2, 4, 8}
	for i, b := range s.EnergyBins() {
		if math.Abs(b-want[i]) > 1e-9 {
			t.Errorf("bin %d = %v, want %v", i, b, want[i])
		}
	}

	if _, err := NewDSASplitting(0.5, 1, 3); !errors.Is(err, ErrInvalidSpectralIndex) {
		t.Errorf("positive index: error = %v, want ErrInvalidSpectralIndex", err)
	}
}

func TestSplittingDescription(t *testing.T) {
	if d := Describe(decadeSplitting(2)); d == "" {
		t.Error("description should not be empty")
	}
}
