// Package strike turns per-frame keypoint observations into classified
// strike events. The classifier is stateful per (person, side): it keeps
// bounded kinematic histories and applies a per-person cooldown so one
// physical motion is never counted twice.
package strike

import (
	"math"
	"time"
)

// Side identifies which arm threw a strike. The string values appear in
// persisted punch labels ("Jab Right") and combination sequences.
type Side string

const (
	SideLeft  Side = "Left"
	SideRight Side = "Right"
)

// Type is the classified strike kind. Other is a real strike whose motion
// cleared the thresholds but matched no named pattern; it is still emitted
// so no strike silently vanishes.
type Type string

const (
	Jab      Type = "Jab"
	Straight Type = "Straight"
	Hook     Type = "Hook"
	Uppercut Type = "Uppercut"
	Other    Type = "Other"
)

// Vec2 is a 2D vector in pixel units.
type Vec2 struct {
	X float64
	Y float64
}

// Norm returns the Euclidean magnitude.
func (v Vec2) Norm() float64 {
	return math.Hypot(v.X, v.Y)
}

// Event is one classified strike. Immutable once created.
type Event struct {
	PersonID int
	Side     Side
	Type     Type
	Time     time.Time

	// Kinematics at emission time. Speed is in pixels/sec (or calibrated
	// units); Power is the fixed linear proxy speed * 1.2, not a physical
	// unit.
	Speed    float64
	Velocity Vec2
	Accel    Vec2
	Power    float64

	// Wrist is the striking wrist's position at emission.
	Wrist Vec2
}

// Label is the persisted punch label, e.g. "Hook Left".
func (e Event) Label() string {
	return string(e.Type) + " " + string(e.Side)
}

// motion is the combined magnitude used to tie-break when both arms
// qualify in the same observation.
func (e Event) motion() float64 {
	return e.Speed + e.Velocity.Norm() + e.Accel.Norm()
}
