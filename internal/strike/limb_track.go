package strike

import "time"

// TrackKey identifies one limb track. Keying on a struct instead of a
// concatenated string keeps person/side lookups typed and drift-free.
type TrackKey struct {
	PersonID int
	Side     Side
}

// positionSample is one wrist observation.
type positionSample struct {
	Pos  Vec2
	Time time.Time
}

// LimbTrack is the bounded per-(person, side) rolling history of wrist
// positions, instantaneous velocities, and instantaneous accelerations.
// Owned exclusively by the classifier; never shared.
type LimbTrack struct {
	positions  []positionSample
	velocities []Vec2
	accels     []Vec2

	maxPositions  int
	maxVelocities int
	maxAccels     int
}

func newLimbTrack(maxPositions, maxVelocities, maxAccels int) *LimbTrack {
	return &LimbTrack{
		maxPositions:  maxPositions,
		maxVelocities: maxVelocities,
		maxAccels:     maxAccels,
	}
}

func (t *LimbTrack) pushPosition(pos Vec2, ts time.Time) {
	t.positions = append(t.positions, positionSample{Pos: pos, Time: ts})
	if len(t.positions) > t.maxPositions {
		t.positions = t.positions[1:]
	}
}

func (t *LimbTrack) pushVelocity(v Vec2) {
	t.velocities = append(t.velocities, v)
	if len(t.velocities) > t.maxVelocities {
		t.velocities = t.velocities[1:]
	}
}

func (t *LimbTrack) pushAccel(a Vec2) {
	t.accels = append(t.accels, a)
	if len(t.accels) > t.maxAccels {
		t.accels = t.accels[1:]
	}
}

// lastTwoPositions returns the two most recent samples, oldest first.
func (t *LimbTrack) lastTwoPositions() (positionSample, positionSample, bool) {
	n := len(t.positions)
	if n < 2 {
		return positionSample{}, positionSample{}, false
	}
	return t.positions[n-2], t.positions[n-1], true
}
