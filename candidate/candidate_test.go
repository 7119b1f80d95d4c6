package candidate

import (
	"math"
	"sync"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func testState(energy float64) ParticleState {
	return ParticleState{
		Position:  r3.Vec{X: 1, Y: 2, Z: 3},
		Direction: r3.Vec{X: 1},
		Energy:    energy,
		ID:        Proton,
	}
}

func TestNewCandidate(t *testing.T) {
	reg := NewRegistry(1)
	c := reg.NewCandidate(testState(10))

	if c.Weight() != 1 {
		t.Errorf("weight = %v, want 1", c.Weight())
	}
	if !c.IsActive() {
		t.Error("new candidate should be active")
	}
	if c.Tag() != TagPrimary {
		t.Errorf("tag = %q, want %q", c.Tag(), TagPrimary)
	}
	if c.Parent() != nil || c.ParentSerialNumber() != 0 {
		t.Error("primary should have no parent")
	}
	if c.SourceSerialNumber() != c.SerialNumber() {
		t.Errorf("source serial = %d, want own serial %d", c.SourceSerialNumber(), c.SerialNumber())
	}
	if c.Previous != c.Current || c.Source != c.Current || c.Created != c.Current {
		t.Error("all states of a primary should equal the initial state")
	}
}

func TestCloneIndependence(t *testing.T) {
	reg := NewRegistry(1)
	c := reg.NewCandidate(testState(10))
	c.UpdateWeight(0.5)
	c.SetCurrentStep(3)
	c.AddSecondary(c.Clone(false))

	n := c.Clone(false)

	if n.SerialNumber() == c.SerialNumber() {
		t.Error("clone must get a fresh serial number")
	}
	if n.Parent() != c {
		t.Error("clone parent should be the source candidate")
	}
	if n.ParentSerialNumber() != c.SerialNumber() {
		t.Errorf("parent serial = %d, want %d", n.ParentSerialNumber(), c.SerialNumber())
	}
	if n.Weight() != 0.5 {
		t.Errorf("clone weight = %v, want 0.5", n.Weight())
	}
	if n.TrajectoryLength() != 3 {
		t.Errorf("clone trajectory length = %v, want 3", n.TrajectoryLength())
	}
	if len(n.Secondaries()) != 0 {
		t.Errorf("non-recursive clone has %d secondaries, want 0", len(n.Secondaries()))
	}

	n.Current.SetEnergy(99)
	n.UpdateWeight(0.5)
	if c.Current.Energy != 10 {
		t.Errorf("mutating clone changed source energy to %v", c.Current.Energy)
	}
	if c.Weight() != 0.5 {
		t.Errorf("mutating clone changed source weight to %v", c.Weight())
	}
}

func TestCloneRecursive(t *testing.T) {
	reg := NewRegistry(1)
	c := reg.NewCandidate(testState(10))
	s := c.Clone(false)
	c.AddSecondary(s)

	n := c.Clone(true)
	if len(n.Secondaries()) != 1 {
		t.Fatalf("recursive clone has %d secondaries, want 1", len(n.Secondaries()))
	}
	ns := n.Secondaries()[0]
	if ns == s {
		t.Error("recursive clone must copy secondaries, not share them")
	}
	if ns.Parent() != n {
		t.Error("cloned secondary should point at the new clone")
	}
	if ns.SerialNumber() == s.SerialNumber() {
		t.Error("cloned secondary must get a fresh serial number")
	}
}

func TestUpdateWeightPanicsOnNonPositive(t *testing.T) {
	for _, f := range []float64{0, -1, math.NaN()} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("UpdateWeight(%v) did not panic", f)
				}
			}()
			NewRegistry(1).NewCandidate(testState(1)).UpdateWeight(f)
		}()
	}
}

func TestDrainSecondaries(t *testing.T) {
	reg := NewRegistry(1)
	c := reg.NewCandidate(testState(10))

	if got := c.DrainSecondaries(); got != nil {
		t.Errorf("drain on empty = %v, want nil", got)
	}

	c.AddSecondary(c.Clone(false))
	c.AddSecondary(c.Clone(false))
	if got := c.DrainSecondaries(); len(got) != 2 {
		t.Fatalf("first drain returned %d, want 2", len(got))
	}

	c.AddSecondary(c.Clone(false))
	got := c.DrainSecondaries()
	if len(got) != 1 {
		t.Fatalf("second drain returned %d, want 1", len(got))
	}
	if got[0] != c.Secondaries()[2] {
		t.Error("second drain should return only the newest secondary")
	}
	if len(c.Secondaries()) != 3 {
		t.Errorf("parent keeps %d secondaries, want 3", len(c.Secondaries()))
	}
}

func TestLimitNextStep(t *testing.T) {
	c := NewRegistry(1).NewCandidate(testState(1))
	c.LimitNextStep(5)
	c.LimitNextStep(8)
	if c.NextStep() != 5 {
		t.Errorf("next step = %v, want 5", c.NextStep())
	}
	c.SetNextStep(8)
	if c.NextStep() != 8 {
		t.Errorf("next step = %v, want 8", c.NextStep())
	}
}

func TestRandDeterministic(t *testing.T) {
	a := NewRegistry(7).NewCandidate(testState(1))
	b := NewRegistry(7).NewCandidate(testState(1))
	for i := 0; i < 10; i++ {
		if x, y := a.Rand().Float64(), b.Rand().Float64(); x != y {
			t.Fatalf("draw %d differs: %v vs %v", i, x, y)
		}
	}
}

func TestRandIndependentOfSerialOrder(t *testing.T) {
	ra, rb := NewRegistry(7), NewRegistry(7)
	pa := ra.NewCandidate(testState(1))
	pb := rb.NewCandidate(testState(1))

	// another worker takes serials between the two clones in b
	a1 := pa.Clone(false)
	rb.NextSerialNumber()
	b1 := pb.Clone(false)
	rb.NextSerialNumber()
	a2, b2 := pa.Clone(false), pb.Clone(false)
	qa, qb := ra.NewCandidate(testState(1)), rb.NewCandidate(testState(1))

	if a1.SerialNumber() == b1.SerialNumber() {
		t.Fatal("serials should differ between the two registries")
	}
	pairs := []struct {
		name string
		x, y *Candidate
	}{
		{"first clone", a1, b1},
		{"second clone", a2, b2},
		{"second primary", qa, qb},
	}
	for _, p := range pairs {
		if x, y := p.x.Rand().Uint64(), p.y.Rand().Uint64(); x != y {
			t.Errorf("%s: streams differ: %d vs %d", p.name, x, y)
		}
	}

	if a1.Rand().Uint64() == a2.Rand().Uint64() {
		t.Error("sibling clones share a random stream")
	}
}

func TestSerialNumbersUniqueAcrossGoroutines(t *testing.T) {
	reg := NewRegistry(1)
	root := reg.NewCandidate(testState(1))

	const workers = 8
	const perWorker = 1000

	serials := make([][]uint64, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				serials[w] = append(serials[w], root.Clone(false).SerialNumber())
			}
		}(w)
	}
	wg.Wait()

	seen := make(map[uint64]bool, workers*perWorker)
	for w := range serials {
		var last uint64
		for _, s := range serials[w] {
			if seen[s] {
				t.Fatalf("serial %d allocated twice", s)
			}
			if s <= last {
				t.Fatalf("serials not increasing within a goroutine: %d after %d", s, last)
			}
			seen[s] = true
			last = s
		}
	}
	if reg.Peek() != uint64(workers*perWorker)+2 {
		t.Errorf("next serial = %d, want %d", reg.Peek(), workers*perWorker+2)
	}
}

func TestSetEnergyClampsNegative(t *testing.T) {
	var s ParticleState
	s.SetEnergy(-3)
	if s.Energy != 0 {
		t.Errorf("energy = %v, want 0", s.Energy)
	}
}

func TestSetDirectionNormalizes(t *testing.T) {
	var s ParticleState
	s.SetDirection(r3.Vec{X: 3, Y: 4})
	if math.Abs(r3.Norm(s.Direction)-1) > 1e-12 {
		t.Errorf("|direction| = %v, want 1", r3.Norm(s.Direction))
	}
	s.SetDirection(r3.Vec{})
	if math.Abs(s.Direction.X-0.6) > 1e-12 {
		t.Error("zero vector should leave direction unchanged")
	}
}

func TestNucleusID(t *testing.T) {
	if got := NucleusID(56, 26); got != 1000260560 {
		t.Errorf("NucleusID(56, 26) = %d, want 1000260560", got)
	}
}
