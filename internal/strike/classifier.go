package strike

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/strike.report/internal/pose"
)

// Config holds the classifier's tuning parameters. The thresholds are in
// pixel units per second and were tuned empirically against the reference
// camera setup; treat them as configuration, not law.
type Config struct {
	Cooldown          time.Duration // minimum gap between strikes per person
	SpeedThreshold    float64       // average wrist speed floor (px/s)
	VelocityThreshold float64       // average velocity magnitude floor
	AccelThreshold    float64       // average acceleration magnitude floor
	MinDisplacement   float64       // minimum wrist travel to classify (px)

	PositionHistory int // samples kept per limb
	VelocityHistory int
	AccelHistory    int
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		Cooldown:          500 * time.Millisecond,
		SpeedThreshold:    0.7,
		VelocityThreshold: 0.5,
		AccelThreshold:    0.3,
		MinDisplacement:   5,
		PositionHistory:   10,
		VelocityHistory:   5,
		AccelHistory:      3,
	}
}

// Classifier consumes one keypoint observation at a time and emits zero or
// one classified strike event. Callers must serialize Detect calls on a
// single instance; independent sessions get independent classifiers.
type Classifier struct {
	cfg        Config
	tracks     map[TrackKey]*LimbTrack
	lastStrike map[int]time.Time
}

// New creates a classifier with the given configuration.
func New(cfg Config) *Classifier {
	if cfg.PositionHistory < 2 {
		cfg.PositionHistory = 2
	}
	if cfg.VelocityHistory < 1 {
		cfg.VelocityHistory = 1
	}
	if cfg.AccelHistory < 1 {
		cfg.AccelHistory = 1
	}
	return &Classifier{
		cfg:        cfg,
		tracks:     make(map[TrackKey]*LimbTrack),
		lastStrike: make(map[int]time.Time),
	}
}

// Detect decides whether obs at ts represents a thrown strike. Missing
// landmarks, non-positive elapsed time, and insufficient history are all
// quiet "no event" outcomes, never errors: worst case is under-detection.
func (c *Classifier) Detect(obs pose.PersonObservation, ts time.Time) (Event, bool) {
	if last, ok := c.lastStrike[obs.PersonID]; ok && ts.Sub(last) < c.cfg.Cooldown {
		return Event{}, false
	}
	if !obs.HasUpperBody() {
		return Event{}, false
	}

	right, rightOK := c.analyzeSide(obs, SideRight, ts)
	left, leftOK := c.analyzeSide(obs, SideLeft, ts)

	switch {
	case rightOK && leftOK:
		// Both arms moved: attribute the strike to the arm with the
		// larger combined motion.
		winner := right
		if left.motion() > right.motion() {
			winner = left
		}
		c.lastStrike[obs.PersonID] = ts
		return winner, true
	case rightOK:
		c.lastStrike[obs.PersonID] = ts
		return right, true
	case leftOK:
		c.lastStrike[obs.PersonID] = ts
		return left, true
	}
	return Event{}, false
}

// sideLandmarks returns the shoulder, elbow, and wrist indices for a side.
func sideLandmarks(side Side) (shoulder, elbow, wrist int) {
	if side == SideLeft {
		return pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist
	}
	return pose.RightShoulder, pose.RightElbow, pose.RightWrist
}

// analyzeSide updates one limb's histories and produces a candidate event
// if the motion cleared every threshold.
func (c *Classifier) analyzeSide(obs pose.PersonObservation, side Side, ts time.Time) (Event, bool) {
	shoulderIdx, elbowIdx, wristIdx := sideLandmarks(side)
	shoulderKP := obs.Keypoints[shoulderIdx]
	elbowKP := obs.Keypoints[elbowIdx]
	wristKP := obs.Keypoints[wristIdx]
	if !shoulderKP.Usable() || !elbowKP.Usable() || !wristKP.Usable() {
		return Event{}, false
	}

	key := TrackKey{PersonID: obs.PersonID, Side: side}
	track, ok := c.tracks[key]
	if !ok {
		track = newLimbTrack(c.cfg.PositionHistory, c.cfg.VelocityHistory, c.cfg.AccelHistory)
		c.tracks[key] = track
	}

	wrist := Vec2{X: wristKP.X, Y: wristKP.Y}
	track.pushPosition(wrist, ts)

	prev, curr, ok := track.lastTwoPositions()
	if !ok {
		return Event{}, false
	}
	dt := curr.Time.Sub(prev.Time).Seconds()
	if dt <= 0 {
		return Event{}, false
	}

	displacement := Vec2{X: curr.Pos.X - prev.Pos.X, Y: curr.Pos.Y - prev.Pos.Y}
	speed := displacement.Norm() / dt

	velocity := Vec2{X: displacement.X / dt, Y: displacement.Y / dt}
	track.pushVelocity(velocity)

	accel := Vec2{}
	if n := len(track.velocities); n >= 2 {
		v1, v2 := track.velocities[n-2], track.velocities[n-1]
		accel = Vec2{X: (v2.X - v1.X) / dt, Y: (v2.Y - v1.Y) / dt}
	}
	track.pushAccel(accel)

	// Instantaneous speed doubles as its own running average: smoothing
	// happens through the velocity/acceleration histories below.
	avgSpeed := speed
	avgVelocity := meanVec(track.velocities)
	avgAccel := meanVec(track.accels)

	if avgSpeed < c.cfg.SpeedThreshold ||
		avgVelocity.Norm() < c.cfg.VelocityThreshold ||
		avgAccel.Norm() < c.cfg.AccelThreshold {
		return Event{}, false
	}

	if displacement.Norm() < c.cfg.MinDisplacement {
		return Event{}, false
	}

	shoulder := Vec2{X: shoulderKP.X, Y: shoulderKP.Y}
	elbow := Vec2{X: elbowKP.X, Y: elbowKP.Y}
	kind := c.classify(displacement, shoulder, elbow, curr.Pos, avgVelocity, avgAccel)

	return Event{
		PersonID: obs.PersonID,
		Side:     side,
		Type:     kind,
		Time:     ts,
		Speed:    avgSpeed,
		Velocity: avgVelocity,
		Accel:    avgAccel,
		Power:    avgSpeed * 1.2,
		Wrist:    curr.Pos,
	}, true
}

// classify maps a qualifying motion onto a named strike pattern from the
// wrist direction, the elbow angle, and the smoothed kinematics. Checked in
// priority order; anything left over is Other.
func (c *Classifier) classify(displacement, shoulder, elbow, wrist Vec2, velocity, accel Vec2) Type {
	norm := displacement.Norm()
	direction := Vec2{X: displacement.X / norm, Y: displacement.Y / norm}

	elbowAngle := angleDegrees(shoulder, elbow, wrist)

	// Uppercut: sharply upward trajectory with upward acceleration.
	// Image coordinates grow downward, so "up" is negative Y.
	if direction.Y < -0.7 && accel.Y < -0.2 {
		return Uppercut
	}
	// Straight: extended arm, linear horizontal travel.
	if elbowAngle > 140 && math.Abs(direction.X) > 0.7 && math.Abs(accel.X) < 0.2 {
		return Straight
	}
	// Hook: bent arm, curved trajectory with both components moving.
	if elbowAngle < 90 && math.Abs(direction.X) > 0.3 && math.Abs(direction.Y) > 0.3 {
		return Hook
	}
	// Jab: quick straight punch off a mostly extended arm.
	if elbowAngle > 120 && math.Abs(direction.X) > 0.7 && velocity.Norm() > c.cfg.VelocityThreshold {
		return Jab
	}
	return Other
}

// angleDegrees is the angle at vertex b between rays b->a and b->c, via the
// law of cosines. The epsilon guards a degenerate zero-length ray.
func angleDegrees(a, b, c Vec2) float64 {
	ba := Vec2{X: a.X - b.X, Y: a.Y - b.Y}
	bc := Vec2{X: c.X - b.X, Y: c.Y - b.Y}

	cosine := (ba.X*bc.X + ba.Y*bc.Y) / (ba.Norm()*bc.Norm() + 1e-6)
	cosine = math.Max(-1, math.Min(1, cosine))
	return math.Acos(cosine) * 180 / math.Pi
}

// meanVec is the component-wise mean over a history window.
func meanVec(vs []Vec2) Vec2 {
	if len(vs) == 0 {
		return Vec2{}
	}
	xs := make([]float64, len(vs))
	ys := make([]float64, len(vs))
	for i, v := range vs {
		xs[i] = v.X
		ys[i] = v.Y
	}
	return Vec2{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil)}
}
