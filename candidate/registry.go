package candidate

import (
	"math/rand/v2"
	"sync/atomic"
)

// TagPrimary is the interaction tag assigned to source-injected candidates.
const TagPrimary = "PRIM"

// Registry hands out serial numbers and random streams for the candidates of
// one simulation run. Every candidate keeps a handle to the registry that
// created it so clones draw from the same counter.
//
// Safe for concurrent use.
type Registry struct {
	next      atomic.Uint64
	primaries atomic.Uint64
	seed      uint64
}

// NewRegistry creates a registry whose first serial number is 1.
// The seed determines every candidate's random stream.
func NewRegistry(seed uint64) *Registry {
	r := &Registry{seed: seed}
	r.next.Store(1)
	return r
}

// Seed returns the run seed.
func (r *Registry) Seed() uint64 {
	return r.seed
}

// NextSerialNumber allocates the next serial number.
func (r *Registry) NextSerialNumber() uint64 {
	return r.next.Add(1) - 1
}

// Peek returns the serial number the next allocation will return.
func (r *Registry) Peek() uint64 {
	return r.next.Load()
}

// SetNextSerialNumber resets the counter, e.g. to resume a run.
// Must not be called while candidates are being created.
func (r *Registry) SetNextSerialNumber(n uint64) {
	r.next.Store(n)
}

// NewCandidate creates a primary candidate with weight 1 at the given state.
// Primaries are keyed by creation order, so random streams are reproducible
// only if primaries are created from a single goroutine.
func (r *Registry) NewCandidate(state ParticleState) *Candidate {
	serial := r.NextSerialNumber()
	return &Candidate{
		stream:   streamKey(0, r.primaries.Add(1)),
		Current:  state,
		Previous: state,
		Source:   state,
		Created:  state,
		reg:      r,
		serial:   serial,
		source:   serial,
		weight:   1,
		active:   true,
		tag:      TagPrimary,
		nextStep: defaultNextStep,
	}
}

func (r *Registry) newRand(stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(r.seed, stream))
}

// streamKey mixes a parent key and a child index (splitmix64 finalizer).
func streamKey(parent, index uint64) uint64 {
	z := parent*0x9e3779b97f4a7c15 + index
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
