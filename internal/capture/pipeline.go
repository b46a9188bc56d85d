package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/strike.report/internal/monitoring"
	"github.com/banshee-data/strike.report/internal/pose"
)

// pollInterval is how long the inference loop idles when no new frame has
// arrived. Stop latency is bounded by one interval per loop.
const pollInterval = time.Millisecond

// maxConsecutiveGrabErrors is how many failed reads in a row count as an
// unrecoverable device error. The capture loop then exits and releases the
// camera instead of spinning.
const maxConsecutiveGrabErrors = 30

// Result is the latest (timestamp, frame, keypoints) tuple produced by the
// inference loop. Time is the frame's capture time, not the inference time.
type Result struct {
	Time    time.Time
	Frame   Frame
	Persons []pose.PersonObservation
}

// PipelineConfig configures the acquisition pipeline.
type PipelineConfig struct {
	// SkipFactor processes every Nth available frame; 1 processes all.
	SkipFactor int
}

// DeviceOpener opens the capture device for one pipeline run. Start calls
// it on every run, so a pipeline stopped at session end reopens the camera
// for the next session instead of reading from a closed device.
type DeviceOpener func() (Device, error)

// Pipeline runs the capture and inference loops. They communicate only
// through single-slot cells, so a slow model sees fewer frames and a slow
// consumer sees a stale result; neither ever blocks the camera.
type Pipeline struct {
	runID string

	open DeviceOpener
	src  pose.Source
	skip int

	frameMu     sync.Mutex
	latestFrame *Frame

	resultMu     sync.RWMutex
	latestResult *Result

	startedMu sync.Mutex
	started   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewPipeline wires a device opener to a pose source. Each run owns the
// device it opened and closes it when its capture loop exits.
func NewPipeline(open DeviceOpener, src pose.Source, cfg PipelineConfig) *Pipeline {
	skip := cfg.SkipFactor
	if skip < 1 {
		skip = 1
	}
	return &Pipeline{runID: uuid.New().String(), open: open, src: src, skip: skip}
}

// RunID identifies this pipeline instance in logs. Sessions can outlive a
// camera reconnect, so log correlation needs an ID per pipeline, not per
// session.
func (p *Pipeline) RunID() string {
	return p.runID
}

// Start opens the device and launches both loops. It fails if the pipeline
// is already running or the device cannot be opened; a failed open leaves
// the pipeline stopped so a later Start may retry.
func (p *Pipeline) Start(ctx context.Context) error {
	p.startedMu.Lock()
	defer p.startedMu.Unlock()
	if p.started {
		return fmt.Errorf("pipeline already started")
	}

	dev, err := p.open()
	if err != nil {
		return fmt.Errorf("failed to open capture device: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.started = true

	// Results from an earlier run must not leak into this one.
	p.frameMu.Lock()
	p.latestFrame = nil
	p.frameMu.Unlock()
	p.resultMu.Lock()
	p.latestResult = nil
	p.resultMu.Unlock()

	monitoring.Logf("capture: pipeline %s starting (skip factor %d)", p.runID, p.skip)
	p.wg.Add(2)
	go p.captureLoop(ctx, dev)
	go p.inferLoop(ctx)
	return nil
}

// Stop signals both loops and waits for them to exit. Safe to call more
// than once; only the first call does anything.
func (p *Pipeline) Stop() {
	p.startedMu.Lock()
	if !p.started {
		p.startedMu.Unlock()
		return
	}
	p.started = false
	cancel := p.cancel
	p.startedMu.Unlock()

	cancel()
	p.wg.Wait()
}

// LatestResult returns the most recent inference result, or false if none
// has been produced yet. Safe to call concurrently with the loops.
func (p *Pipeline) LatestResult() (Result, bool) {
	p.resultMu.RLock()
	defer p.resultMu.RUnlock()
	if p.latestResult == nil {
		return Result{}, false
	}
	return *p.latestResult, true
}

// captureLoop pulls frames from the device and overwrites the latest-frame
// cell. It owns this run's device: Close happens here, exactly once, after
// the loop exits.
func (p *Pipeline) captureLoop(ctx context.Context, dev Device) {
	defer p.wg.Done()
	defer func() {
		if err := dev.Close(); err != nil {
			monitoring.Logf("capture: error closing device: %v", err)
		}
	}()

	errStreak := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, err := dev.Grab()
		if err != nil {
			errStreak++
			if errStreak >= maxConsecutiveGrabErrors {
				monitoring.Logf("capture: device unrecoverable after %d failed reads: %v", errStreak, err)
				return
			}
			time.Sleep(pollInterval)
			continue
		}
		errStreak = 0
		monitoring.FramesCaptured.Inc()

		p.frameMu.Lock()
		if p.latestFrame != nil {
			monitoring.FramesSkipped.Inc()
		}
		p.latestFrame = &frame
		p.frameMu.Unlock()
	}
}

// takeFrame removes and returns the latest unconsumed frame, if any.
func (p *Pipeline) takeFrame() (Frame, bool) {
	p.frameMu.Lock()
	defer p.frameMu.Unlock()
	if p.latestFrame == nil {
		return Frame{}, false
	}
	f := *p.latestFrame
	p.latestFrame = nil
	return f, true
}

// inferLoop feeds every Nth available frame through the pose source and
// overwrites the latest-result cell.
func (p *Pipeline) inferLoop(ctx context.Context) {
	defer p.wg.Done()

	frameCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, ok := p.takeFrame()
		if !ok {
			time.Sleep(pollInterval)
			continue
		}

		frameCount++
		if frameCount%p.skip != 0 {
			monitoring.FramesSkipped.Inc()
			continue
		}

		persons, err := p.src.Infer(ctx, frame.Image)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			monitoring.InferenceErrors.Inc()
			monitoring.Logf("capture: inference failed: %v", err)
			continue
		}
		monitoring.Inferences.Inc()

		p.resultMu.Lock()
		p.latestResult = &Result{
			Time:    frame.Time,
			Frame:   frame,
			Persons: persons,
		}
		p.resultMu.Unlock()
	}
}
