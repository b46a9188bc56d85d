package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/strike.report/internal/api"
	"github.com/banshee-data/strike.report/internal/capture"
	"github.com/banshee-data/strike.report/internal/config"
	"github.com/banshee-data/strike.report/internal/db"
	"github.com/banshee-data/strike.report/internal/monitoring"
	"github.com/banshee-data/strike.report/internal/pose"
	"github.com/banshee-data/strike.report/internal/session"
	"github.com/banshee-data/strike.report/internal/units"
	"github.com/banshee-data/strike.report/internal/version"
)

var (
	devMode      = flag.Bool("dev", false, "Run with a synthetic camera and scripted pose data")
	listen       = flag.String("listen", ":8080", "Listen address")
	dbPath       = flag.String("db", "strike_data.db", "SQLite database path")
	tuningPath   = flag.String("tuning", "", "Optional tuning config JSON path")
	speedUnits   = flag.String("units", units.PXPS, "Speed units in API responses ("+units.GetValidUnitsString()+")")
	pxPerMeter   = flag.Float64("px-per-meter", 0, "Pixel-to-meter calibration, required for mps output")
	poseEndpoint = flag.String("pose-endpoint", "http://127.0.0.1:5005/infer", "Pose service HTTP endpoint")
	poseUDP      = flag.String("pose-udp", "", "Receive pose observations on this UDP address instead of polling HTTP")
	videosDir    = flag.String("videos-dir", "", "Restrict recorder-reported video paths to this directory (empty disables the check)")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	if !units.IsValid(*speedUnits) {
		log.Fatalf("invalid units %q (valid: %s)", *speedUnits, units.GetValidUnitsString())
	}

	log.Printf("strike.report %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)

	tuning := &config.TuningConfig{}
	if *tuningPath != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*tuningPath)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
	}

	camCfg := tuning.CameraConfig()

	// The opener runs on every session start, so the camera is reopened
	// for each session rather than held across the whole process.
	var open capture.DeviceOpener
	var src pose.Source
	if *devMode {
		open = func() (capture.Device, error) {
			return capture.NewFixtureDevice(camCfg.Width, camCfg.Height, time.Second/time.Duration(camCfg.FPS)), nil
		}
		src = pose.NewScriptedSource(devScript())
	} else {
		open = func() (capture.Device, error) {
			return capture.OpenCamera(camCfg)
		}
		if *poseUDP != "" {
			udpSrc, err := pose.NewUDPSource(*poseUDP)
			if err != nil {
				log.Fatalf("failed to listen for pose observations: %v", err)
			}
			defer udpSrc.Close()
			src = udpSrc
		} else {
			src = pose.NewHTTPSource(*poseEndpoint, nil)
		}
	}

	pipeline := capture.NewPipeline(open, src, tuning.PipelineConfig())

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	engine := session.NewEngine(database, pipeline, tuning.EngineConfig())

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// mount the admin debugging routes (accessible only in dev mode or over Tailscale)
		database.AttachAdminRoutes(mux)

		mux.Handle("/metrics", monitoring.Handler())

		apiMux := api.NewServer(ctx, database, engine, *speedUnits, *pxPerMeter, *videosDir).ServeMux()
		mux.Handle("/api/", http.StripPrefix("/api", apiMux))

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	log.Printf("strike server listening on %s", *listen)
	wg.Wait()

	// stop any pipeline the last session left running
	pipeline.Stop()
	log.Printf("Graceful shutdown complete")
}

// devScript is a scripted right-hand extension and retraction, enough to
// exercise the detector end to end without a camera or pose model.
func devScript() [][]pose.PersonObservation {
	var frames [][]pose.PersonObservation
	for x := 250.0; x <= 430; x += 20 {
		frames = append(frames, []pose.PersonObservation{devPerson(x)})
	}
	for x := 410.0; x >= 250; x -= 20 {
		frames = append(frames, []pose.PersonObservation{devPerson(x)})
	}
	return frames
}

func devPerson(rightWristX float64) pose.PersonObservation {
	p := pose.PersonObservation{PersonID: 0}
	set := func(idx int, x, y float64) {
		p.Keypoints[idx] = pose.Keypoint{X: x, Y: y, Confidence: 0.9}
	}
	set(pose.LeftShoulder, 180, 120)
	set(pose.RightShoulder, 240, 120)
	set(pose.LeftElbow, 160, 170)
	set(pose.RightElbow, 280, 140)
	set(pose.LeftWrist, 170, 200)
	set(pose.RightWrist, rightWristX, 130)
	return p
}
