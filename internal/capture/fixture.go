package capture

import (
	"fmt"
	"image"
	"sync"
	"time"
)

// FixtureDevice synthesizes blank frames at a fixed rate. It stands in for
// the camera in -dev mode and in tests so the rest of the pipeline can run
// without hardware.
type FixtureDevice struct {
	interval time.Duration
	img      image.Image

	mu     sync.Mutex
	seq    int64
	closed bool
}

// NewFixtureDevice creates a device emitting width x height frames every
// interval. A zero interval emits as fast as the caller can Grab.
func NewFixtureDevice(width, height int, interval time.Duration) *FixtureDevice {
	return &FixtureDevice{
		interval: interval,
		img:      image.NewGray(image.Rect(0, 0, width, height)),
	}
}

// Grab returns the next synthetic frame.
func (d *FixtureDevice) Grab() (Frame, error) {
	if d.interval > 0 {
		time.Sleep(d.interval)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return Frame{}, fmt.Errorf("fixture device closed")
	}
	d.seq++
	return Frame{
		Seq:   d.seq,
		Time:  time.Now(),
		Image: d.img,
	}, nil
}

// Close marks the device closed; subsequent Grab calls fail.
func (d *FixtureDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Frames reports how many frames have been grabbed.
func (d *FixtureDevice) Frames() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seq
}
