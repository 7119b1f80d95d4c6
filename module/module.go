// Package module defines the per-step processing contract, the ModuleList
// scheduler that drives candidates through an ordered pipeline, and the
// importance-splitting module.
package module

import (
	"fmt"

	"github.com/pthm-cable/crprop/candidate"
)

// Module is one pluggable processing step. Process communicates only through
// side effects on c: it may update c.Current, append secondaries, or
// deactivate c. Implementations must be safe to call from several goroutines
// on different candidates at once.
type Module interface {
	Process(c *candidate.Candidate)
}

// Describer is implemented by modules that can describe their configuration.
type Describer interface {
	Description() string
}

// ModuleFunc adapts a plain function to the Module interface.
type ModuleFunc func(c *candidate.Candidate)

// Process calls f(c).
func (f ModuleFunc) Process(c *candidate.Candidate) {
	f(c)
}

// Describe returns a human-readable description of m.
func Describe(m Module) string {
	if d, ok := m.(Describer); ok {
		return d.Description()
	}
	return fmt.Sprintf("%T", m)
}

// Source produces primary candidates. The scheduler calls Candidate from a
// single goroutine.
type Source interface {
	Candidate() *candidate.Candidate
}

// SourceFunc adapts a plain function to the Source interface.
type SourceFunc func() *candidate.Candidate

// Candidate calls f().
func (f SourceFunc) Candidate() *candidate.Candidate {
	return f()
}
