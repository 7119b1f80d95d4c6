package physics

import (
	"fmt"

	"github.com/pthm-cable/crprop/candidate"
)

// MinimumEnergy deactivates candidates whose energy fell below Emin.
type MinimumEnergy struct {
	Emin float64
}

// Process deactivates c if it is below the cut.
func (m *MinimumEnergy) Process(c *candidate.Candidate) {
	if c.Current.Energy < m.Emin {
		c.SetActive(false)
	}
}

// Description implements module.Describer.
func (m *MinimumEnergy) Description() string {
	return fmt.Sprintf("MinimumEnergy: %g", m.Emin)
}

// MaximumTrajectoryLength deactivates candidates that travelled further than
// Max and limits the next step so the limit is hit exactly.
type MaximumTrajectoryLength struct {
	Max float64
}

// Process deactivates c once its trajectory reaches Max.
func (m *MaximumTrajectoryLength) Process(c *candidate.Candidate) {
	remaining := m.Max - c.TrajectoryLength()
	if remaining <= 0 {
		c.SetActive(false)
		return
	}
	c.LimitNextStep(remaining)
}

// Description implements module.Describer.
func (m *MaximumTrajectoryLength) Description() string {
	return fmt.Sprintf("MaximumTrajectoryLength: %g", m.Max)
}
