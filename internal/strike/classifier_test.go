package strike

import (
	"math"
	"testing"
	"time"

	"github.com/banshee-data/strike.report/internal/pose"
)

var testBase = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

const frameDT = 100 * time.Millisecond

// testObs builds an observation with a plausible guard stance and applies
// keypoint overrides on top.
func testObs(personID int, overrides map[int]pose.Keypoint) pose.PersonObservation {
	p := pose.PersonObservation{PersonID: personID}
	defaults := map[int]pose.Keypoint{
		pose.LeftShoulder:  {X: 180, Y: 120, Confidence: 0.9},
		pose.RightShoulder: {X: 240, Y: 120, Confidence: 0.9},
		pose.LeftElbow:     {X: 160, Y: 170, Confidence: 0.9},
		pose.RightElbow:    {X: 280, Y: 125, Confidence: 0.9},
		pose.LeftWrist:     {X: 170, Y: 200, Confidence: 0.9},
		pose.RightWrist:    {X: 300, Y: 130, Confidence: 0.9},
	}
	for idx, kp := range defaults {
		p.Keypoints[idx] = kp
	}
	for idx, kp := range overrides {
		p.Keypoints[idx] = kp
	}
	return p
}

// feedWrist runs the classifier over a right-wrist trajectory, one frame per
// position, and returns the last detection outcome.
func feedWrist(t *testing.T, c *Classifier, wristIdx int, path []Vec2, extra map[int]pose.Keypoint) (Event, bool) {
	t.Helper()
	var ev Event
	var ok bool
	for i, p := range path {
		overrides := map[int]pose.Keypoint{
			wristIdx: {X: p.X, Y: p.Y, Confidence: 0.9},
		}
		for idx, kp := range extra {
			overrides[idx] = kp
		}
		ts := testBase.Add(time.Duration(i) * frameDT)
		ev, ok = c.Detect(testObs(0, overrides), ts)
		if i < len(path)-1 && ok {
			t.Fatalf("unexpected detection at frame %d: %+v", i, ev)
		}
	}
	return ev, ok
}

func TestDetectStraight(t *testing.T) {
	c := New(DefaultConfig())

	// Fast horizontal extension with a slight vertical wobble, so the
	// smoothed acceleration is vertical and the horizontal component
	// stays under the straight-punch ceiling.
	path := []Vec2{{X: 300, Y: 130}, {X: 310, Y: 130}, {X: 320, Y: 128}}
	ev, ok := feedWrist(t, c, pose.RightWrist, path, nil)
	if !ok {
		t.Fatal("expected a detection on the third frame")
	}
	if ev.Type != Straight {
		t.Errorf("got type %q, want %q", ev.Type, Straight)
	}
	if ev.Side != SideRight {
		t.Errorf("got side %q, want %q", ev.Side, SideRight)
	}
	if ev.Label() != "Straight Right" {
		t.Errorf("got label %q, want %q", ev.Label(), "Straight Right")
	}
}

func TestDetectJab(t *testing.T) {
	c := New(DefaultConfig())

	// Same extended-arm geometry, but the wrist accelerates horizontally,
	// which disqualifies the straight pattern and leaves the jab.
	path := []Vec2{{X: 300, Y: 130}, {X: 310, Y: 130}, {X: 330, Y: 130}}
	ev, ok := feedWrist(t, c, pose.RightWrist, path, nil)
	if !ok {
		t.Fatal("expected a detection on the third frame")
	}
	if ev.Type != Jab {
		t.Errorf("got type %q, want %q", ev.Type, Jab)
	}
}

func TestDetectUppercut(t *testing.T) {
	c := New(DefaultConfig())

	// Vertical rise; image Y decreases upward.
	path := []Vec2{{X: 300, Y: 200}, {X: 300, Y: 190}, {X: 300, Y: 170}}
	ev, ok := feedWrist(t, c, pose.RightWrist, path, nil)
	if !ok {
		t.Fatal("expected a detection on the third frame")
	}
	if ev.Type != Uppercut {
		t.Errorf("got type %q, want %q", ev.Type, Uppercut)
	}
}

func TestDetectHook(t *testing.T) {
	c := New(DefaultConfig())

	// Bent arm: the wrist curls back toward the shoulder while travelling
	// diagonally.
	extra := map[int]pose.Keypoint{
		pose.RightShoulder: {X: 300, Y: 120, Confidence: 0.9},
		pose.RightElbow:    {X: 310, Y: 170, Confidence: 0.9},
	}
	path := []Vec2{{X: 240, Y: 130}, {X: 250, Y: 140}, {X: 270, Y: 160}}
	ev, ok := feedWrist(t, c, pose.RightWrist, path, extra)
	if !ok {
		t.Fatal("expected a detection on the third frame")
	}
	if ev.Type != Hook {
		t.Errorf("got type %q, want %q", ev.Type, Hook)
	}
}

func TestDetectOther(t *testing.T) {
	c := New(DefaultConfig())

	// Fast straight-down motion matches no named pattern but still clears
	// every kinematic threshold.
	path := []Vec2{{X: 300, Y: 130}, {X: 300, Y: 140}, {X: 300, Y: 160}}
	ev, ok := feedWrist(t, c, pose.RightWrist, path, nil)
	if !ok {
		t.Fatal("expected a detection on the third frame")
	}
	if ev.Type != Other {
		t.Errorf("got type %q, want %q", ev.Type, Other)
	}
}

func TestDetectEventKinematics(t *testing.T) {
	c := New(DefaultConfig())

	path := []Vec2{{X: 300, Y: 130}, {X: 310, Y: 130}, {X: 330, Y: 130}}
	ev, ok := feedWrist(t, c, pose.RightWrist, path, nil)
	if !ok {
		t.Fatal("expected a detection")
	}
	// 20 px in 100ms.
	if math.Abs(ev.Speed-200) > 1e-6 {
		t.Errorf("got speed %v, want 200", ev.Speed)
	}
	if math.Abs(ev.Power-240) > 1e-6 {
		t.Errorf("got power %v, want 240", ev.Power)
	}
	if ev.Wrist != (Vec2{X: 330, Y: 130}) {
		t.Errorf("got wrist %+v, want {330 130}", ev.Wrist)
	}
}

func TestDetectCooldown(t *testing.T) {
	c := New(DefaultConfig())

	path := []Vec2{{X: 300, Y: 130}, {X: 310, Y: 130}, {X: 330, Y: 130}}
	if _, ok := feedWrist(t, c, pose.RightWrist, path, nil); !ok {
		t.Fatal("expected an initial detection")
	}
	strikeTime := testBase.Add(2 * frameDT)

	// A qualifying motion inside the cooldown window is suppressed.
	within := testObs(0, map[int]pose.Keypoint{
		pose.RightWrist: {X: 360, Y: 130, Confidence: 0.9},
	})
	if _, ok := c.Detect(within, strikeTime.Add(100*time.Millisecond)); ok {
		t.Error("detection inside cooldown window should be suppressed")
	}

	// Cooldown is per person: another person is unaffected.
	other := testObs(0, map[int]pose.Keypoint{
		pose.RightWrist: {X: 300, Y: 130, Confidence: 0.9},
	})
	other.PersonID = 7
	if _, ok := c.Detect(other, strikeTime.Add(100*time.Millisecond)); ok {
		t.Error("first observation of a new person cannot be a detection")
	}
}

func TestDetectTieBreakPrefersFasterArm(t *testing.T) {
	c := New(DefaultConfig())

	// Both wrists accelerate; the left travels twice as far per frame.
	rightPath := []Vec2{{X: 300, Y: 130}, {X: 310, Y: 130}, {X: 330, Y: 130}}
	leftPath := []Vec2{{X: 170, Y: 200}, {X: 150, Y: 200}, {X: 110, Y: 200}}

	var ev Event
	var ok bool
	for i := range rightPath {
		obs := testObs(0, map[int]pose.Keypoint{
			pose.RightWrist: {X: rightPath[i].X, Y: rightPath[i].Y, Confidence: 0.9},
			pose.LeftWrist:  {X: leftPath[i].X, Y: leftPath[i].Y, Confidence: 0.9},
		})
		ev, ok = c.Detect(obs, testBase.Add(time.Duration(i)*frameDT))
	}
	if !ok {
		t.Fatal("expected a detection on the third frame")
	}
	if ev.Side != SideLeft {
		t.Errorf("got side %q, want %q (larger combined motion)", ev.Side, SideLeft)
	}
}

func TestDetectRejectsLowConfidence(t *testing.T) {
	c := New(DefaultConfig())

	path := []Vec2{{X: 300, Y: 130}, {X: 310, Y: 130}, {X: 330, Y: 130}}
	for i, p := range path {
		obs := testObs(0, map[int]pose.Keypoint{
			pose.RightWrist: {X: p.X, Y: p.Y, Confidence: 0.9},
			pose.LeftElbow:  {X: 160, Y: 170, Confidence: 0.1},
		})
		if _, ok := c.Detect(obs, testBase.Add(time.Duration(i)*frameDT)); ok {
			t.Fatalf("frame %d: detection despite unusable upper-body landmark", i)
		}
	}
}

func TestDetectRejectsRepeatedTimestamp(t *testing.T) {
	c := New(DefaultConfig())

	// The same frame delivered twice produces zero elapsed time, which
	// must not divide into a velocity.
	positions := []Vec2{{X: 300, Y: 130}, {X: 330, Y: 130}, {X: 360, Y: 130}}
	for _, p := range positions {
		obs := testObs(0, map[int]pose.Keypoint{
			pose.RightWrist: {X: p.X, Y: p.Y, Confidence: 0.9},
		})
		if _, ok := c.Detect(obs, testBase); ok {
			t.Fatal("detection with non-advancing timestamps")
		}
	}
}

func TestDetectRejectsSmallDisplacement(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinDisplacement = 50
	c := New(cfg)

	path := []Vec2{{X: 300, Y: 130}, {X: 310, Y: 130}, {X: 330, Y: 130}}
	if _, ok := feedWrist(t, c, pose.RightWrist, path, nil); ok {
		t.Error("20px travel should not clear a 50px displacement floor")
	}
}

func TestAngleDegrees(t *testing.T) {
	tests := []struct {
		name    string
		a, b, c Vec2
		want    float64
	}{
		{"right angle", Vec2{X: 1, Y: 0}, Vec2{}, Vec2{X: 0, Y: 1}, 90},
		{"straight line", Vec2{X: -1, Y: 0}, Vec2{}, Vec2{X: 1, Y: 0}, 180},
		{"degenerate ray", Vec2{}, Vec2{}, Vec2{X: 1, Y: 0}, 90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := angleDegrees(tt.a, tt.b, tt.c)
			if math.Abs(got-tt.want) > 0.1 {
				t.Errorf("angleDegrees = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLimbTrackBounds(t *testing.T) {
	track := newLimbTrack(3, 2, 2)
	for i := 0; i < 10; i++ {
		track.pushPosition(Vec2{X: float64(i)}, testBase.Add(time.Duration(i)*frameDT))
		track.pushVelocity(Vec2{X: float64(i)})
		track.pushAccel(Vec2{X: float64(i)})
	}
	if len(track.positions) != 3 {
		t.Errorf("got %d positions, want 3", len(track.positions))
	}
	if len(track.velocities) != 2 || len(track.accels) != 2 {
		t.Errorf("got %d velocities and %d accels, want 2 and 2", len(track.velocities), len(track.accels))
	}
	prev, curr, ok := track.lastTwoPositions()
	if !ok {
		t.Fatal("expected two positions")
	}
	if prev.Pos.X != 8 || curr.Pos.X != 9 {
		t.Errorf("lastTwoPositions = %v, %v; want X=8 then X=9", prev.Pos, curr.Pos)
	}
}

func TestMeanVec(t *testing.T) {
	got := meanVec([]Vec2{{X: 1, Y: 2}, {X: 3, Y: 6}})
	if got != (Vec2{X: 2, Y: 4}) {
		t.Errorf("meanVec = %+v, want {2 4}", got)
	}
	if meanVec(nil) != (Vec2{}) {
		t.Error("meanVec of empty history should be zero")
	}
}
