// Package physics contains the propagation, acceleration and boundary
// modules that move candidates through space and energy.
package physics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/crprop/candidate"
)

// SimplePropagation moves candidates in a straight line.
// The step is the candidate's requested next step clamped to [MinStep, MaxStep].
type SimplePropagation struct {
	MinStep float64
	MaxStep float64
}

// NewSimplePropagation creates a straight-line propagator.
func NewSimplePropagation(minStep, maxStep float64) (*SimplePropagation, error) {
	if !(minStep > 0) || maxStep < minStep {
		return nil, fmt.Errorf("simple propagation: invalid step range [%v, %v]", minStep, maxStep)
	}
	return &SimplePropagation{MinStep: minStep, MaxStep: maxStep}, nil
}

// Process advances c by one step.
func (p *SimplePropagation) Process(c *candidate.Candidate) {
	step := math.Max(p.MinStep, math.Min(c.NextStep(), p.MaxStep))
	advance(c, step)
	c.SetNextStep(p.MaxStep)
}

// Description implements module.Describer.
func (p *SimplePropagation) Description() string {
	return fmt.Sprintf("SimplePropagation: step in [%g, %g]", p.MinStep, p.MaxStep)
}

// RandomWalk re-draws an isotropic direction before every fixed-length
// step, a crude model of diffusion in a turbulent field. Step limits
// requested by other modules are ignored: towards a surface they would only
// produce ever shorter steps in random directions.
type RandomWalk struct {
	Step float64
}

// NewRandomWalk creates a random-walk propagator with the given step length.
func NewRandomWalk(step float64) (*RandomWalk, error) {
	if !(step > 0) {
		return nil, fmt.Errorf("random walk: step must be positive, got %v", step)
	}
	return &RandomWalk{Step: step}, nil
}

// Process scatters c and advances it by one step.
func (p *RandomWalk) Process(c *candidate.Candidate) {
	c.Current.SetDirection(RandomDirection(c.Rand().Float64(), c.Rand().Float64()))
	advance(c, p.Step)
}

// Description implements module.Describer.
func (p *RandomWalk) Description() string {
	return fmt.Sprintf("RandomWalk: step %g", p.Step)
}

// RandomDirection maps two uniform deviates in [0, 1) to an isotropic unit vector.
func RandomDirection(u, v float64) r3.Vec {
	cosTheta := 2*u - 1
	sinTheta := math.Sqrt(max(0, 1-cosTheta*cosTheta))
	phi := 2 * math.Pi * v
	return r3.Vec{
		X: sinTheta * math.Cos(phi),
		Y: sinTheta * math.Sin(phi),
		Z: cosTheta,
	}
}

func advance(c *candidate.Candidate, step float64) {
	c.Current.Position = r3.Add(c.Current.Position, r3.Scale(step, c.Current.Direction))
	c.SetCurrentStep(step)
}
