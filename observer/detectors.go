package observer

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/crprop/candidate"
)

// SmallSphere detects candidates entering a sphere.
type SmallSphere struct {
	Center r3.Vec
	Radius float64
}

// Check implements Detector.
func (s SmallSphere) Check(c *candidate.Candidate) Detection {
	d := r3.Norm(r3.Sub(c.Current.Position, s.Center))
	if d <= s.Radius {
		dPrev := r3.Norm(r3.Sub(c.Previous.Position, s.Center))
		if dPrev > s.Radius {
			return Detected
		}
		return Nothing
	}
	c.LimitNextStep(d - s.Radius)
	return Nothing
}

// LargeSphere detects candidates at or outside a sphere, typically an
// escape boundary around the source region.
type LargeSphere struct {
	Center r3.Vec
	Radius float64
}

// Check implements Detector.
func (s LargeSphere) Check(c *candidate.Candidate) Detection {
	d := r3.Norm(r3.Sub(c.Current.Position, s.Center))
	if d >= s.Radius {
		return Detected
	}
	c.LimitNextStep(s.Radius - d)
	return Nothing
}

// Point1D detects candidates reaching x <= 0, for one-dimensional setups.
type Point1D struct{}

// Check implements Detector.
func (Point1D) Check(c *candidate.Candidate) Detection {
	x := c.Current.Position.X
	if x > 0 {
		c.LimitNextStep(x)
		return Nothing
	}
	return Detected
}

// EnergyWindow vetoes candidates outside [Emin, Emax).
type EnergyWindow struct {
	Emin, Emax float64
}

// Check implements Detector.
func (w EnergyWindow) Check(c *candidate.Candidate) Detection {
	e := c.Current.Energy
	if e < w.Emin || e >= w.Emax {
		return Veto
	}
	return Nothing
}
