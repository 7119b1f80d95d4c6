// Package source generates primary candidates from composable features.
package source

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/crprop/candidate"
	"github.com/pthm-cable/crprop/physics"
)

// Feature sets part of a primary's initial state.
type Feature interface {
	Prepare(state *candidate.ParticleState, rng *rand.Rand)
}

// Source creates primaries by applying its features, in order, to a fresh
// state. Not safe for concurrent use.
type Source struct {
	reg      *candidate.Registry
	rng      *rand.Rand
	features []Feature
}

// New creates a source drawing serial numbers from reg. The source has its
// own random stream derived from the registry seed.
func New(reg *candidate.Registry, features ...Feature) *Source {
	return &Source{
		reg:      reg,
		rng:      rand.New(rand.NewPCG(reg.Seed(), 0x5eed)),
		features: features,
	}
}

// Add appends a feature.
func (s *Source) Add(f Feature) {
	s.features = append(s.features, f)
}

// Candidate creates one primary candidate.
func (s *Source) Candidate() *candidate.Candidate {
	state := candidate.ParticleState{
		ID:        candidate.Proton,
		Direction: r3.Vec{X: -1},
	}
	for _, f := range s.features {
		f.Prepare(&state, s.rng)
	}
	return s.reg.NewCandidate(state)
}

// Description lists the features.
func (s *Source) Description() string {
	names := make([]string, len(s.features))
	for i, f := range s.features {
		names[i] = fmt.Sprintf("%+v", f)
	}
	return "Source: " + strings.Join(names, ", ")
}

// Position places primaries at a fixed point.
type Position struct {
	At r3.Vec
}

// Prepare implements Feature.
func (f Position) Prepare(state *candidate.ParticleState, _ *rand.Rand) {
	state.Position = f.At
}

// UniformSphere places primaries uniformly inside a sphere.
type UniformSphere struct {
	Center r3.Vec
	Radius float64
}

// Prepare implements Feature.
func (f UniformSphere) Prepare(state *candidate.ParticleState, rng *rand.Rand) {
	r := f.Radius * math.Cbrt(rng.Float64())
	dir := physics.RandomDirection(rng.Float64(), rng.Float64())
	state.Position = r3.Add(f.Center, r3.Scale(r, dir))
}

// IsotropicEmission draws directions uniformly on the sphere.
type IsotropicEmission struct{}

// Prepare implements Feature.
func (IsotropicEmission) Prepare(state *candidate.ParticleState, rng *rand.Rand) {
	state.Direction = physics.RandomDirection(rng.Float64(), rng.Float64())
}

// Direction emits primaries along a fixed direction.
type Direction struct {
	Dir r3.Vec
}

// Prepare implements Feature.
func (f Direction) Prepare(state *candidate.ParticleState, _ *rand.Rand) {
	state.SetDirection(f.Dir)
}

// MonoEnergy gives every primary the same energy.
type MonoEnergy struct {
	Energy float64
}

// Prepare implements Feature.
func (f MonoEnergy) Prepare(state *candidate.ParticleState, _ *rand.Rand) {
	state.SetEnergy(f.Energy)
}

// PowerLawSpectrum draws energies from dN/dE ∝ E^Index on [Emin, Emax].
type PowerLawSpectrum struct {
	Emin, Emax float64
	Index      float64
}

// NewPowerLawSpectrum validates the energy range.
func NewPowerLawSpectrum(emin, emax, index float64) (PowerLawSpectrum, error) {
	if !(emin > 0) || emax < emin {
		return PowerLawSpectrum{}, fmt.Errorf("power law spectrum: invalid range [%v, %v]", emin, emax)
	}
	return PowerLawSpectrum{Emin: emin, Emax: emax, Index: index}, nil
}

// Prepare implements Feature.
func (f PowerLawSpectrum) Prepare(state *candidate.ParticleState, rng *rand.Rand) {
	state.SetEnergy(f.Sample(rng.Float64()))
}

// Sample maps a uniform deviate u in [0, 1) to an energy by inverting the CDF.
func (f PowerLawSpectrum) Sample(u float64) float64 {
	if math.Abs(f.Index+1) < 1e-12 {
		return f.Emin * math.Pow(f.Emax/f.Emin, u)
	}
	g := f.Index + 1
	lo := math.Pow(f.Emin, g)
	hi := math.Pow(f.Emax, g)
	return math.Pow(lo+u*(hi-lo), 1/g)
}

// ParticleType sets the species code.
type ParticleType struct {
	ID int
}

// Prepare implements Feature.
func (f ParticleType) Prepare(state *candidate.ParticleState, _ *rand.Rand) {
	state.ID = f.ID
}

// Redshift sets the emission redshift.
type Redshift struct {
	Z float64
}

// Prepare implements Feature.
func (f Redshift) Prepare(state *candidate.ParticleState, _ *rand.Rand) {
	state.Redshift = f.Z
}
