package pose

import (
	"context"
	"image"
	"sync"
)

// Source converts a raw frame into zero or more per-person keypoint sets.
// The pose model itself is an external collaborator; implementations here
// only move data to and from it. Infer must not mutate the input image.
type Source interface {
	Infer(ctx context.Context, img image.Image) ([]PersonObservation, error)
}

// ScriptedSource replays a fixed sequence of observation sets, one per Infer
// call, then repeats the final entry. It backs -dev mode and tests so the
// detector can run without a camera or a pose model.
type ScriptedSource struct {
	mu     sync.Mutex
	frames [][]PersonObservation
	next   int
	calls  int
}

// NewScriptedSource creates a source that replays the given frames.
func NewScriptedSource(frames [][]PersonObservation) *ScriptedSource {
	return &ScriptedSource{frames: frames}
}

// Infer returns the next scripted observation set.
func (s *ScriptedSource) Infer(ctx context.Context, img image.Image) ([]PersonObservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.frames) == 0 {
		return nil, nil
	}
	obs := s.frames[s.next]
	if s.next < len(s.frames)-1 {
		s.next++
	}
	return obs, nil
}

// Calls reports how many Infer calls the source has served.
func (s *ScriptedSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
