// Package config loads handtrace configuration from defaults, an optional
// YAML file and HANDTRACE_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/handtrace/internal/detector"
)

// Config is the complete application configuration.
type Config struct {
	Server        ServerConfig           `koanf:"server"`
	Store         StoreConfig            `koanf:"store"`
	Log           LogConfig              `koanf:"log"`
	Detector      detector.Config        `koanf:"detector"`
	Breaker       detector.BreakerConfig `koanf:"breaker"`
	Analysis      AnalysisConfig         `koanf:"analysis"`
	Capture       CaptureConfig          `koanf:"capture"`
	Visualization Visualization          `koanf:"visualization"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	AllowedOrigins  []string      `koanf:"allowed_origins"`
	RenderRateLimit int           `koanf:"render_rate_limit"` // requests per minute per client, 0 disables
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// StoreConfig configures the SQLite database.
type StoreConfig struct {
	Path string `koanf:"path"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level      string `koanf:"level"`  // debug, info, warn, error
	Format     string `koanf:"format"` // json or console
	File       string `koanf:"file"`   // optional rotated log file
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
	Compress   bool   `koanf:"compress"`
}

// AnalysisConfig configures batch and live analysis.
type AnalysisConfig struct {
	MaxImageSide int `koanf:"max_image_side"`
	BatchSize    int `koanf:"batch_size"`
}

// CaptureConfig configures the live camera pipeline.
type CaptureConfig struct {
	Enabled  bool `koanf:"enabled"`
	DeviceID int  `koanf:"device_id"`
	FPS      int  `koanf:"fps"`
}

// Colormap names a heatmap color scale.
type Colormap string

const (
	ColormapJet     Colormap = "jet"
	ColormapHot     Colormap = "hot"
	ColormapRainbow Colormap = "rainbow"
	ColormapOcean   Colormap = "ocean"
	ColormapViridis Colormap = "viridis"
	ColormapPlasma  Colormap = "plasma"
	ColormapMagma   Colormap = "magma"
	ColormapInferno Colormap = "inferno"
)

// Colormaps lists every supported colormap.
var Colormaps = []Colormap{
	ColormapJet,
	ColormapHot,
	ColormapRainbow,
	ColormapOcean,
	ColormapViridis,
	ColormapPlasma,
	ColormapMagma,
	ColormapInferno,
}

// Valid reports whether c is a supported colormap.
func (c Colormap) Valid() bool {
	for _, m := range Colormaps {
		if c == m {
			return true
		}
	}
	return false
}

// Visualization holds the trail and heatmap rendering settings.
type Visualization struct {
	TrailLength     int     `koanf:"trail_length" json:"trail_length"`
	LandmarkSize    int     `koanf:"landmark_size" json:"landmark_size"`
	Alpha           float64 `koanf:"alpha" json:"alpha"`
	Opacity         float64 `koanf:"opacity" json:"opacity"`
	BlackBackground bool    `koanf:"black_background" json:"black_background"`
	AlphaFade       bool    `koanf:"alpha_fade" json:"alpha_fade"`

	HeatmapRadius          int      `koanf:"heatmap_radius" json:"heatmap_radius"`
	HeatmapOpacity         float64  `koanf:"heatmap_opacity" json:"heatmap_opacity"`
	HeatmapColormap        Colormap `koanf:"heatmap_colormap" json:"heatmap_colormap"`
	HeatmapBlur            int      `koanf:"heatmap_blur" json:"heatmap_blur"`
	HeatmapBlackBackground bool     `koanf:"heatmap_black_background" json:"heatmap_black_background"`
	HeatmapAccumulate      bool     `koanf:"heatmap_accumulate" json:"heatmap_accumulate"`
}

// DefaultVisualization returns the default rendering settings.
func DefaultVisualization() Visualization {
	return Visualization{
		TrailLength:     50,
		LandmarkSize:    6,
		Alpha:           0.8,
		Opacity:         0.3,
		BlackBackground: true,
		AlphaFade:       true,

		HeatmapRadius:          5,
		HeatmapOpacity:         1.0,
		HeatmapColormap:        ColormapRainbow,
		HeatmapBlur:            20,
		HeatmapBlackBackground: true,
		HeatmapAccumulate:      false,
	}
}

// Validate checks every setting against its allowed range.
func (v Visualization) Validate() error {
	var errs []error

	checkInt := func(name string, val, lo, hi int) {
		if val < lo || val > hi {
			errs = append(errs, fmt.Errorf("%s must be between %d and %d, got %d", name, lo, hi, val))
		}
	}
	checkFloat := func(name string, val, lo, hi float64) {
		if !(val >= lo && val <= hi) {
			errs = append(errs, fmt.Errorf("%s must be between %g and %g, got %g", name, lo, hi, val))
		}
	}

	checkInt("trail_length", v.TrailLength, 1, 100)
	checkInt("landmark_size", v.LandmarkSize, 1, 10)
	checkFloat("alpha", v.Alpha, 0.1, 1.0)
	checkFloat("opacity", v.Opacity, 0.1, 1.0)
	checkInt("heatmap_radius", v.HeatmapRadius, 1, 100)
	checkFloat("heatmap_opacity", v.HeatmapOpacity, 0.1, 1.0)
	checkInt("heatmap_blur", v.HeatmapBlur, 1, 50)

	if !v.HeatmapColormap.Valid() {
		errs = append(errs, fmt.Errorf("heatmap_colormap %q is not supported", v.HeatmapColormap))
	}

	return errors.Join(errs...)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            "127.0.0.1:8420",
			AllowedOrigins:  []string{"http://localhost:8420", "http://127.0.0.1:8420"},
			RenderRateLimit: 120,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Path: "handtrace.db",
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Detector: detector.DefaultConfig(),
		Breaker:  detector.DefaultBreakerConfig(),
		Analysis: AnalysisConfig{
			MaxImageSide: 1280,
			BatchSize:    100,
		},
		Capture: CaptureConfig{
			DeviceID: 0,
			FPS:      15,
		},
		Visualization: DefaultVisualization(),
	}
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Store.Path == "" {
		errs = append(errs, errors.New("store.path is required"))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or console, got %q", c.Log.Format))
	}
	if c.Detector.MaxHands < 1 || c.Detector.MaxHands > 2 {
		errs = append(errs, fmt.Errorf("detector.max_hands must be 1 or 2, got %d", c.Detector.MaxHands))
	}
	if c.Analysis.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("analysis.batch_size must be positive, got %d", c.Analysis.BatchSize))
	}
	if c.Capture.FPS < 1 {
		errs = append(errs, fmt.Errorf("capture.fps must be positive, got %d", c.Capture.FPS))
	}
	if err := c.Visualization.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("visualization: %w", err))
	}

	return errors.Join(errs...)
}
