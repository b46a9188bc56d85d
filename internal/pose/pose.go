// Package pose defines the keypoint data model produced by an external
// pose-estimation service and the Source implementations that talk to it.
package pose

// Landmark indices follow the COCO ordering used by the pose service. Only
// the first 13 landmarks are carried; lower-body points below the hips are
// not needed for strike analysis.
const (
	Nose = iota
	LeftEye
	RightEye
	LeftEar
	RightEar
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftHip
	RightHip

	// NumKeypoints is the number of landmarks in a PersonObservation.
	NumKeypoints = 13
)

// MinConfidence is the confidence floor below which a landmark is unusable.
const MinConfidence = 0.3

// Keypoint is a single 2D body-landmark estimate in pixel coordinates with a
// confidence score in [0, 1].
type Keypoint struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
}

// Usable reports whether the landmark estimate is confident enough to feed
// into kinematic analysis.
func (k Keypoint) Usable() bool {
	return k.Confidence > MinConfidence
}

// PersonObservation is one person's keypoint set from a single inference
// call. PersonID is the pose service's track index and is expected to stay
// stable for a person across consecutive frames.
type PersonObservation struct {
	PersonID  int                    `json:"person_id"`
	Keypoints [NumKeypoints]Keypoint `json:"keypoints"`
}

// UpperBody lists the landmarks a strike classification requires.
var UpperBody = []int{
	LeftShoulder, RightShoulder,
	LeftElbow, RightElbow,
	LeftWrist, RightWrist,
}

// HasUpperBody reports whether every required upper-body landmark is usable.
func (p PersonObservation) HasUpperBody() bool {
	for _, idx := range UpperBody {
		if !p.Keypoints[idx].Usable() {
			return false
		}
	}
	return true
}
