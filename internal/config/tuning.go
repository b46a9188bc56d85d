// Package config loads JSON tuning files. Every field is optional: a
// partial file overrides only what it names and the Get* accessors fall
// back to the tuned defaults, so the same JSON works for startup
// configuration and runtime experimentation.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/strike.report/internal/capture"
	"github.com/banshee-data/strike.report/internal/session"
	"github.com/banshee-data/strike.report/internal/strike"
)

// TuningConfig is the root tuning schema.
type TuningConfig struct {
	// Camera params
	CameraID    *int `json:"camera_id,omitempty"`
	FrameWidth  *int `json:"frame_width,omitempty"`
	FrameHeight *int `json:"frame_height,omitempty"`
	FrameRate   *int `json:"frame_rate,omitempty"`
	SkipFactor  *int `json:"skip_factor,omitempty"`

	// Classifier params
	Cooldown          *string  `json:"cooldown,omitempty"` // duration string like "500ms"
	SpeedThreshold    *float64 `json:"speed_threshold,omitempty"`
	VelocityThreshold *float64 `json:"velocity_threshold,omitempty"`
	AccelThreshold    *float64 `json:"acceleration_threshold,omitempty"`
	MinDisplacement   *float64 `json:"min_displacement,omitempty"`

	// Combination params
	ComboGapBreak          *string `json:"combo_gap_break,omitempty"`   // e.g. "1.5s"
	ComboWindowSpan        *string `json:"combo_window_span,omitempty"` // e.g. "3s"
	ComboMinLength         *int    `json:"combo_min_length,omitempty"`
	ComboFinalizeMinLength *int    `json:"combo_finalize_min_length,omitempty"`

	// Engine params
	FlushThreshold *int    `json:"flush_threshold,omitempty"`
	CycleInterval  *string `json:"cycle_interval,omitempty"` // e.g. "33ms"
}

// EmptyTuningConfig returns a TuningConfig with all fields unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. Fields omitted
// from the file retain their defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *TuningConfig) Validate() error {
	for name, v := range map[string]*float64{
		"speed_threshold":        c.SpeedThreshold,
		"velocity_threshold":     c.VelocityThreshold,
		"acceleration_threshold": c.AccelThreshold,
		"min_displacement":       c.MinDisplacement,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must be non-negative, got %f", name, *v)
		}
	}

	for name, v := range map[string]*string{
		"cooldown":          c.Cooldown,
		"combo_gap_break":   c.ComboGapBreak,
		"combo_window_span": c.ComboWindowSpan,
		"cycle_interval":    c.CycleInterval,
	} {
		if v != nil && *v != "" {
			if _, err := time.ParseDuration(*v); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
			}
		}
	}

	// The frame interval divides by the rate, so zero or negative camera
	// geometry is rejected before it reaches the capture layer.
	for name, v := range map[string]*int{
		"frame_rate":   c.FrameRate,
		"frame_width":  c.FrameWidth,
		"frame_height": c.FrameHeight,
	} {
		if v != nil && *v < 1 {
			return fmt.Errorf("%s must be >= 1, got %d", name, *v)
		}
	}

	if c.SkipFactor != nil && *c.SkipFactor < 1 {
		return fmt.Errorf("skip_factor must be >= 1, got %d", *c.SkipFactor)
	}
	if c.ComboMinLength != nil && *c.ComboMinLength < 2 {
		return fmt.Errorf("combo_min_length must be >= 2, got %d", *c.ComboMinLength)
	}
	if c.ComboFinalizeMinLength != nil && *c.ComboFinalizeMinLength < 2 {
		return fmt.Errorf("combo_finalize_min_length must be >= 2, got %d", *c.ComboFinalizeMinLength)
	}
	if c.FlushThreshold != nil && *c.FlushThreshold < 1 {
		return fmt.Errorf("flush_threshold must be >= 1, got %d", *c.FlushThreshold)
	}
	return nil
}

func (c *TuningConfig) duration(v *string, fallback time.Duration) time.Duration {
	if v == nil || *v == "" {
		return fallback
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fallback
	}
	return d
}

// CameraConfig builds the capture settings, falling back to defaults.
func (c *TuningConfig) CameraConfig() capture.CameraConfig {
	cfg := capture.DefaultCameraConfig()
	if c.CameraID != nil {
		cfg.DeviceID = *c.CameraID
	}
	if c.FrameWidth != nil {
		cfg.Width = *c.FrameWidth
	}
	if c.FrameHeight != nil {
		cfg.Height = *c.FrameHeight
	}
	if c.FrameRate != nil {
		cfg.FPS = *c.FrameRate
	}
	return cfg
}

// PipelineConfig builds the acquisition pipeline settings.
func (c *TuningConfig) PipelineConfig() capture.PipelineConfig {
	cfg := capture.PipelineConfig{SkipFactor: 1}
	if c.SkipFactor != nil {
		cfg.SkipFactor = *c.SkipFactor
	}
	return cfg
}

// ClassifierConfig builds the classifier settings.
func (c *TuningConfig) ClassifierConfig() strike.Config {
	cfg := strike.DefaultConfig()
	cfg.Cooldown = c.duration(c.Cooldown, cfg.Cooldown)
	if c.SpeedThreshold != nil {
		cfg.SpeedThreshold = *c.SpeedThreshold
	}
	if c.VelocityThreshold != nil {
		cfg.VelocityThreshold = *c.VelocityThreshold
	}
	if c.AccelThreshold != nil {
		cfg.AccelThreshold = *c.AccelThreshold
	}
	if c.MinDisplacement != nil {
		cfg.MinDisplacement = *c.MinDisplacement
	}
	return cfg
}

// EngineConfig builds the session-engine settings, including the embedded
// classifier config.
func (c *TuningConfig) EngineConfig() session.Config {
	cfg := session.DefaultConfig()
	cfg.Classifier = c.ClassifierConfig()
	cfg.ComboGapBreak = c.duration(c.ComboGapBreak, cfg.ComboGapBreak)
	cfg.ComboWindowSpan = c.duration(c.ComboWindowSpan, cfg.ComboWindowSpan)
	cfg.CycleInterval = c.duration(c.CycleInterval, cfg.CycleInterval)
	if c.ComboMinLength != nil {
		cfg.ComboMinLength = *c.ComboMinLength
	}
	if c.ComboFinalizeMinLength != nil {
		cfg.ComboFinalizeMinLength = *c.ComboFinalizeMinLength
	}
	if c.FlushThreshold != nil {
		cfg.FlushThreshold = *c.FlushThreshold
	}
	return cfg
}
