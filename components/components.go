// Package components defines the ECS components of archived detections.
package components

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Lineage identifies a detected candidate and its ancestry.
type Lineage struct {
	Serial       uint64
	ParentSerial uint64 // 0 for primaries
	SourceSerial uint64
	Tag          string
}

// Kinematics is the particle state at detection.
type Kinematics struct {
	ID               int // species code
	Energy           float64
	Position         r3.Vec
	Direction        r3.Vec
	TrajectoryLength float64
}

// Weight is the statistical weight at detection.
type Weight struct {
	Value float64
}

// Origin is the particle state at the source.
type Origin struct {
	Energy   float64
	Position r3.Vec
}
