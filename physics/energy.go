package physics

import (
	"fmt"
	"math"

	"github.com/pthm-cable/crprop/candidate"
)

// ContinuousAcceleration increases the energy exponentially with path
// length: E -> E * exp(Rate * step).
type ContinuousAcceleration struct {
	Rate float64 // per unit length
}

// NewContinuousAcceleration creates an acceleration module.
func NewContinuousAcceleration(rate float64) (*ContinuousAcceleration, error) {
	if rate < 0 {
		return nil, fmt.Errorf("continuous acceleration: negative rate %v", rate)
	}
	return &ContinuousAcceleration{Rate: rate}, nil
}

// Process applies the gain for the step just taken.
func (a *ContinuousAcceleration) Process(c *candidate.Candidate) {
	if a.Rate == 0 || c.CurrentStep() == 0 {
		return
	}
	c.Current.SetEnergy(c.Current.Energy * math.Exp(a.Rate*c.CurrentStep()))
}

// Description implements module.Describer.
func (a *ContinuousAcceleration) Description() string {
	return fmt.Sprintf("ContinuousAcceleration: rate %g per unit length", a.Rate)
}

// ContinuousLoss removes a fixed fraction of the energy per unit length:
// E -> E * exp(-step / Length).
type ContinuousLoss struct {
	Length float64 // energy-loss length
}

// NewContinuousLoss creates an energy-loss module.
func NewContinuousLoss(length float64) (*ContinuousLoss, error) {
	if !(length > 0) {
		return nil, fmt.Errorf("continuous loss: loss length must be positive, got %v", length)
	}
	return &ContinuousLoss{Length: length}, nil
}

// Process applies the loss for the step just taken and keeps the next step
// below a tenth of the loss length.
func (l *ContinuousLoss) Process(c *candidate.Candidate) {
	c.Current.SetEnergy(c.Current.Energy * math.Exp(-c.CurrentStep()/l.Length))
	c.LimitNextStep(0.1 * l.Length)
}

// Description implements module.Describer.
func (l *ContinuousLoss) Description() string {
	return fmt.Sprintf("ContinuousLoss: loss length %g", l.Length)
}
