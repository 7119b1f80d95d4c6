package candidate

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"weak"
)

// TagSplit is the interaction tag of clones produced by importance splitting.
const TagSplit = "SPLIT"

// defaultNextStep means "no step limit requested yet".
const defaultNextStep = math.MaxFloat64

// Candidate is one Monte-Carlo sample path: the particle's current and
// previous state, its statistical weight, and its ancestry.
//
// A candidate is owned by exactly one goroutine while it is being processed;
// none of its methods synchronize.
type Candidate struct {
	Current  ParticleState // state being advanced
	Previous ParticleState // state at the end of the previous step
	Source   ParticleState // state of the originating primary at injection
	Created  ParticleState // state when this candidate was created

	reg          *Registry
	serial       uint64
	source       uint64 // serial of the originating primary
	parentSerial uint64
	parent       weak.Pointer[Candidate]

	secondaries []*Candidate
	drained     int // secondaries already handed to the scheduler

	weight float64
	active bool
	tag    string
	stream uint64 // random stream key, fixed by lineage
	clones uint64 // clones made from c so far
	rng    *rand.Rand

	trajectoryLength float64
	currentStep      float64
	nextStep         float64
}

// SerialNumber returns the candidate's unique serial number.
func (c *Candidate) SerialNumber() uint64 {
	return c.serial
}

// SourceSerialNumber returns the serial number of the primary this candidate
// descends from (its own serial for primaries).
func (c *Candidate) SourceSerialNumber() uint64 {
	return c.source
}

// ParentSerialNumber returns the parent's serial number, or 0 for primaries.
func (c *Candidate) ParentSerialNumber() uint64 {
	return c.parentSerial
}

// Parent returns the candidate that spawned this one. The link does not keep
// the parent alive: nil is returned for primaries and for parents that have
// already been released.
func (c *Candidate) Parent() *Candidate {
	return c.parent.Value()
}

// Registry returns the registry the candidate was created by.
func (c *Candidate) Registry() *Registry {
	return c.reg
}

// Weight returns the statistical weight.
func (c *Candidate) Weight() float64 {
	return c.weight
}

// UpdateWeight multiplies the weight by factor. Panics if factor <= 0.
func (c *Candidate) UpdateWeight(factor float64) {
	if !(factor > 0) {
		panic(fmt.Sprintf("candidate: invalid weight factor %v", factor))
	}
	c.weight *= factor
}

// IsActive reports whether the candidate is still being propagated.
func (c *Candidate) IsActive() bool {
	return c.active
}

// SetActive activates or deactivates the candidate.
func (c *Candidate) SetActive(active bool) {
	c.active = active
}

// Tag returns the interaction tag describing how the candidate was created.
func (c *Candidate) Tag() string {
	return c.tag
}

// SetTag sets the interaction tag.
func (c *Candidate) SetTag(tag string) {
	c.tag = tag
}

// TrajectoryLength returns the total path length travelled.
func (c *Candidate) TrajectoryLength() float64 {
	return c.trajectoryLength
}

// CurrentStep returns the length of the last step.
func (c *Candidate) CurrentStep() float64 {
	return c.currentStep
}

// SetCurrentStep records the step just taken and adds it to the trajectory length.
func (c *Candidate) SetCurrentStep(step float64) {
	c.currentStep = step
	c.trajectoryLength += step
}

// NextStep returns the requested length of the next step.
func (c *Candidate) NextStep() float64 {
	return c.nextStep
}

// SetNextStep sets the requested next step length.
func (c *Candidate) SetNextStep(step float64) {
	c.nextStep = step
}

// LimitNextStep shrinks the next step to at most step.
func (c *Candidate) LimitNextStep(step float64) {
	c.nextStep = math.Min(c.nextStep, step)
}

// Rand returns the candidate's own random stream, seeded from the run seed
// and the candidate's place in its lineage: a primary's injection order, a
// clone's parent stream and clone index. Serial numbers of clones depend on
// worker interleaving, stream keys do not.
func (c *Candidate) Rand() *rand.Rand {
	if c.rng == nil {
		c.rng = c.reg.newRand(c.stream)
	}
	return c.rng
}

// AddSecondary appends a secondary. The caller is responsible for the
// secondary's Previous state being coherent.
func (c *Candidate) AddSecondary(s *Candidate) {
	c.secondaries = append(c.secondaries, s)
}

// Secondaries returns all secondaries spawned so far, in creation order.
// The returned slice must not be modified.
func (c *Candidate) Secondaries() []*Candidate {
	return c.secondaries
}

// DrainSecondaries returns the secondaries added since the previous call.
// They remain owned by this candidate.
func (c *Candidate) DrainSecondaries() []*Candidate {
	if c.drained == len(c.secondaries) {
		return nil
	}
	fresh := c.secondaries[c.drained:len(c.secondaries):len(c.secondaries)]
	c.drained = len(c.secondaries)
	return fresh
}

// Clone creates an independent copy with a fresh serial number whose parent
// is c. Secondaries are copied only if recursive is set, in which case each
// is cloned in turn with the new copy as its parent.
func (c *Candidate) Clone(recursive bool) *Candidate {
	n := &Candidate{
		Current:          c.Current,
		Previous:         c.Previous,
		Source:           c.Source,
		Created:          c.Created,
		reg:              c.reg,
		serial:           c.reg.NextSerialNumber(),
		source:           c.source,
		weight:           c.weight,
		active:           c.active,
		tag:              c.tag,
		trajectoryLength: c.trajectoryLength,
		currentStep:      c.currentStep,
		nextStep:         c.nextStep,
	}
	c.clones++
	n.stream = streamKey(c.stream, c.clones)
	n.setParent(c)
	if recursive && len(c.secondaries) > 0 {
		n.secondaries = make([]*Candidate, 0, len(c.secondaries))
		for _, s := range c.secondaries {
			cs := s.Clone(true)
			cs.setParent(n)
			n.secondaries = append(n.secondaries, cs)
		}
	}
	return n
}

func (c *Candidate) setParent(p *Candidate) {
	c.parent = weak.Make(p)
	c.parentSerial = p.serial
}

// LogValue implements slog.LogValuer.
func (c *Candidate) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("serial", c.serial),
		slog.Uint64("parent", c.parentSerial),
		slog.String("tag", c.tag),
		slog.Float64("weight", c.weight),
		slog.Bool("active", c.active),
		slog.Any("current", c.Current),
	)
}
