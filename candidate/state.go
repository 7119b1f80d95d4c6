// Package candidate provides the transported entity model: particle states,
// weighted candidates with their ancestry, and the per-run registry that
// hands out serial numbers and random streams.
package candidate

import (
	"log/slog"

	"gonum.org/v1/gonum/spatial/r3"
)

// Common species codes (PDG numbering, nuclei as 100ZZZAAAI).
const (
	Photon   = 22
	Electron = 11
	Proton   = 2212
	Neutron  = 2112
)

// NucleusID returns the species code for a nucleus with mass number a and
// charge number z.
func NucleusID(a, z int) int {
	return 1000000000 + z*10000 + a*10
}

// ParticleState is a snapshot of a transported particle.
// It is a value type; copying it into Candidate.Previous freezes it.
type ParticleState struct {
	Position  r3.Vec
	Direction r3.Vec // unit vector
	Energy    float64
	ID        int
	Redshift  float64
}

// SetEnergy sets the energy, clamping negative values to zero.
func (s *ParticleState) SetEnergy(e float64) {
	if e < 0 {
		e = 0
	}
	s.Energy = e
}

// SetDirection sets the direction of motion, normalized to unit length.
// A zero vector leaves the direction unchanged.
func (s *ParticleState) SetDirection(d r3.Vec) {
	n := r3.Norm(d)
	if n == 0 {
		return
	}
	s.Direction = r3.Scale(1/n, d)
}

// Momentum returns the momentum vector in energy units (ultra-relativistic).
func (s ParticleState) Momentum() r3.Vec {
	return r3.Scale(s.Energy, s.Direction)
}

// LogValue implements slog.LogValuer.
func (s ParticleState) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("id", s.ID),
		slog.Float64("energy", s.Energy),
		slog.Float64("x", s.Position.X),
		slog.Float64("y", s.Position.Y),
		slog.Float64("z", s.Position.Z),
		slog.Float64("redshift", s.Redshift),
	)
}
