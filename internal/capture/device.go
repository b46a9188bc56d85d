// Package capture bridges a camera device and the pose-inference step
// without letting either stall the other. Both stages communicate through
// single-slot latest-value cells: a new frame or inference result replaces,
// rather than queues behind, the previous one.
package capture

import (
	"fmt"
	"image"
	"time"

	"gocv.io/x/gocv"
)

// Frame is one decoded video frame with its capture timestamp.
type Frame struct {
	Seq   int64
	Time  time.Time
	Image image.Image
}

// Device produces raw frames. Implementations wrap a physical camera or a
// test fixture; Grab blocks until the next frame is available.
type Device interface {
	Grab() (Frame, error)
	Close() error
}

// CameraConfig holds the fixed capture settings for a camera device.
type CameraConfig struct {
	DeviceID int
	Width    int
	Height   int
	FPS      int
}

// DefaultCameraConfig matches the rig the detector was tuned against:
// low resolution keeps inference latency bounded.
func DefaultCameraConfig() CameraConfig {
	return CameraConfig{
		DeviceID: 0,
		Width:    480,
		Height:   360,
		FPS:      15,
	}
}

// CameraDevice reads frames from a local camera through OpenCV.
type CameraDevice struct {
	cap *gocv.VideoCapture
	mat gocv.Mat
	seq int64
}

// OpenCamera opens the configured device. Failure to open is a startup
// error surfaced to the caller; nothing is retried here.
func OpenCamera(cfg CameraConfig) (*CameraDevice, error) {
	cap, err := gocv.OpenVideoCapture(cfg.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %d: %w", cfg.DeviceID, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("camera %d is not available", cfg.DeviceID)
	}
	cap.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	cap.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	cap.Set(gocv.VideoCaptureFPS, float64(cfg.FPS))
	cap.Set(gocv.VideoCaptureBufferSize, 1)

	return &CameraDevice{
		cap: cap,
		mat: gocv.NewMat(),
	}, nil
}

// Grab reads the next frame and decodes it into an image.Image copy, so the
// returned frame stays valid after the next read reuses the Mat.
func (d *CameraDevice) Grab() (Frame, error) {
	if ok := d.cap.Read(&d.mat); !ok {
		return Frame{}, fmt.Errorf("camera read failed")
	}
	if d.mat.Empty() {
		return Frame{}, fmt.Errorf("camera returned empty frame")
	}
	img, err := d.mat.ToImage()
	if err != nil {
		return Frame{}, fmt.Errorf("failed to convert frame: %w", err)
	}
	d.seq++
	return Frame{
		Seq:   d.seq,
		Time:  time.Now(),
		Image: img,
	}, nil
}

// Close releases the camera and the scratch Mat.
func (d *CameraDevice) Close() error {
	d.mat.Close()
	return d.cap.Close()
}
