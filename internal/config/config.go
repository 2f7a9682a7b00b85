// Package config provides configuration management for go-hls-playstats.
package config

import "time"

// Config holds all configuration options for a playback statistics run.
type Config struct {
	// Collection
	Interval    time.Duration `json:"interval"`
	KeepHistory bool          `json:"keep_history"`

	// Run control
	Duration time.Duration `json:"duration"` // 0 = until sessions complete
	Sessions int           `json:"sessions"` // 0 = forever
	Speed    float64       `json:"speed"`    // simulated seconds per wall second
	Seed     int64         `json:"seed"`     // 0 = seeded from the clock

	// Simulated stream
	Stream          string        `json:"stream"` // label for logs and metrics
	Live            bool          `json:"live"`
	ContentDuration time.Duration `json:"content_duration"`
	BitrateBps      int64         `json:"bitrate"`
	Width           int           `json:"width"`
	Height          int           `json:"height"`
	FrameRate       float64       `json:"fps"`
	Renditions      int           `json:"renditions"`

	// Fault injection (per simulated minute)
	ErrorRate    float64 `json:"error_rate"`
	RebufferRate float64 `json:"rebuffer_rate"`
	DropRate     float64 `json:"drop_rate"`

	// Observability
	MetricsAddr string `json:"metrics_addr"` // empty disables the endpoint
	MetricsDump bool   `json:"metrics_dump"`
	TUIEnabled  bool   `json:"tui_enabled"`
	Verbose     bool   `json:"verbose"`
	LogFormat   string `json:"log_format"` // json, text
	LogLevel    string `json:"log_level"`

	// Diagnostic modes
	Check bool `json:"check"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// Collection
		Interval:    time.Second,
		KeepHistory: false,

		// Run control
		Duration: 0,
		Sessions: 1,
		Speed:    1.0,
		Seed:     0,

		// Simulated stream
		Live:            false,
		ContentDuration: 2 * time.Minute,
		BitrateBps:      5_000_000,
		Width:           1920,
		Height:          1080,
		FrameRate:       30,
		Renditions:      4,

		// Fault injection
		ErrorRate:    0.5,
		RebufferRate: 0.5,
		DropRate:     0.002,

		// Observability
		MetricsAddr: "0.0.0.0:17091",
		MetricsDump: false,
		TUIEnabled:  true,
		Verbose:     false,
		LogFormat:   "json",
		LogLevel:    "info",
	}
}

// StreamLabel returns Stream, or a label derived from the content mode.
func (c *Config) StreamLabel() string {
	if c.Stream != "" {
		return c.Stream
	}
	if c.Live {
		return "sim://live"
	}
	return "sim://vod"
}

// Mode returns "live" or "vod".
func (c *Config) Mode() string {
	if c.Live {
		return "live"
	}
	return "vod"
}

// ApplyCheckMode modifies config for --check mode: one short verbose session
// without the dashboard.
func ApplyCheckMode(cfg *Config) {
	cfg.Sessions = 1
	cfg.ContentDuration = 10 * time.Second
	cfg.Duration = 30 * time.Second
	cfg.TUIEnabled = false
	cfg.Verbose = true
}
