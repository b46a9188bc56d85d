package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus collectors for the capture/classify/persist path. Registered on
// the default registry; main mounts Handler() at /metrics.
var (
	// FramesCaptured counts frames read from the camera device.
	FramesCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "strike",
		Subsystem: "capture",
		Name:      "frames_captured_total",
		Help:      "Frames read from the camera device.",
	})

	// FramesSkipped counts frames dropped by the inference skip factor or
	// overwritten before the inference loop consumed them.
	FramesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "strike",
		Subsystem: "capture",
		Name:      "frames_skipped_total",
		Help:      "Frames not sent to inference (skip factor or overwrite).",
	})

	// Inferences counts completed pose-inference calls.
	Inferences = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "strike",
		Subsystem: "capture",
		Name:      "inferences_total",
		Help:      "Completed pose inference calls.",
	})

	// InferenceErrors counts failed pose-inference calls.
	InferenceErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "strike",
		Subsystem: "capture",
		Name:      "inference_errors_total",
		Help:      "Failed pose inference calls.",
	})

	// StrikesDetected counts emitted strike events by type label.
	StrikesDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "strike",
		Subsystem: "classifier",
		Name:      "events_total",
		Help:      "Strike events emitted by the kinematic classifier.",
	}, []string{"type"})

	// CombinationsRecorded counts combination records created or merged.
	CombinationsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "strike",
		Subsystem: "session",
		Name:      "combinations_total",
		Help:      "Combination records created or merged.",
	})

	// FlushErrors counts failed pending-strike batch writes.
	FlushErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "strike",
		Subsystem: "session",
		Name:      "flush_errors_total",
		Help:      "Failed pending-strike batch writes.",
	})

	// CycleDuration observes ProcessOneCycle latency in seconds.
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "strike",
		Subsystem: "session",
		Name:      "cycle_duration_seconds",
		Help:      "Latency of one session processing cycle.",
		Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 10),
	})
)

// Handler returns the /metrics HTTP handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
