// Package observer detects candidates that meet geometric conditions and
// hands them to output modules.
package observer

import (
	"fmt"
	"strings"

	"github.com/pthm-cable/crprop/candidate"
	"github.com/pthm-cable/crprop/module"
)

// Detection is a detector's verdict for one step.
type Detection int

const (
	Nothing Detection = iota
	Detected
	Veto // suppresses output; the candidate is still stopped at the surface
)

func (d Detection) String() string {
	switch d {
	case Detected:
		return "detected"
	case Veto:
		return "veto"
	default:
		return "nothing"
	}
}

// Detector decides whether a candidate is detected in the current step.
// Detectors may limit the candidate's next step so the detection surface is
// not overshot.
type Detector interface {
	Check(c *candidate.Candidate) Detection
}

// Observer is a module that runs its detectors on every step. When at least
// one detects the candidate and none vetoes it, the candidate is passed to
// the outputs and, unless disabled, deactivated. A vetoed candidate that
// reaches a detection surface is deactivated without being output.
type Observer struct {
	detectors  []Detector
	outputs    []module.Module
	deactivate bool
	tag        string
}

// New creates an observer that deactivates detected candidates.
func New(detectors ...Detector) *Observer {
	return &Observer{detectors: detectors, deactivate: true}
}

// Add appends a detector.
func (o *Observer) Add(d Detector) {
	o.detectors = append(o.detectors, d)
}

// OnDetection registers a module that receives every detected candidate.
// Outputs are called concurrently from the scheduler's workers.
func (o *Observer) OnDetection(m module.Module) {
	o.outputs = append(o.outputs, m)
}

// SetDeactivateOnDetection controls whether detected candidates stop.
func (o *Observer) SetDeactivateOnDetection(deactivate bool) {
	o.deactivate = deactivate
}

// SetTag sets the tag written to detected candidates. Empty keeps the
// candidate's own tag.
func (o *Observer) SetTag(tag string) {
	o.tag = tag
}

// Process implements module.Module.
func (o *Observer) Process(c *candidate.Candidate) {
	detected, vetoed := false, false
	for _, d := range o.detectors {
		switch d.Check(c) {
		case Veto:
			vetoed = true
		case Detected:
			detected = true
		}
	}
	if !detected {
		return
	}
	if vetoed {
		if o.deactivate {
			c.SetActive(false)
		}
		return
	}

	if o.tag != "" {
		c.SetTag(o.tag)
	}
	for _, out := range o.outputs {
		out.Process(c)
	}
	if o.deactivate {
		c.SetActive(false)
	}
}

// Description implements module.Describer.
func (o *Observer) Description() string {
	parts := make([]string, len(o.detectors))
	for i, d := range o.detectors {
		parts[i] = fmt.Sprintf("%+v", d)
	}
	return fmt.Sprintf("Observer: %s (deactivate=%t, outputs=%d)",
		strings.Join(parts, ", "), o.deactivate, len(o.outputs))
}
