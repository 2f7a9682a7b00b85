package config

import (
	"bytes"
	"errors"
	"flag"
	"strings"
	"testing"
	"time"
)

func TestFlagType(t *testing.T) {
	testCases := []struct {
		name     string
		defValue string
		expected string
	}{
		{"bool true", "true", ""},
		{"bool false", "false", ""},
		{"int", "42", "int"},
		{"string", "hello", "string"},
		{"duration seconds", "5s", "duration"},
		{"duration minutes", "5m", "duration"},
		{"duration hours", "1h", "duration"},
		{"float", "0.002", "float"},
		{"address", "0.0.0.0:17091", "string"},
		{"empty", "", "string"},
		{"zero", "0", "int"},
		{"negative int", "-1", "int"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := &flag.Flag{
				Name:     "test",
				DefValue: tc.defValue,
			}
			result := flagType(f)
			if result != tc.expected {
				t.Errorf("flagType(%q) = %q, want %q", tc.defValue, result, tc.expected)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Verify critical defaults
	if cfg.Interval != time.Second {
		t.Errorf("Interval = %v, want 1s", cfg.Interval)
	}
	if cfg.KeepHistory {
		t.Error("KeepHistory should be false by default")
	}
	if cfg.Sessions != 1 {
		t.Errorf("Sessions = %d, want 1", cfg.Sessions)
	}
	if cfg.Speed != 1.0 {
		t.Errorf("Speed = %g, want 1", cfg.Speed)
	}
	if cfg.TUIEnabled != true {
		t.Error("TUIEnabled should be true by default")
	}
	if cfg.MetricsAddr != "0.0.0.0:17091" {
		t.Errorf("MetricsAddr = %q, want %q", cfg.MetricsAddr, "0.0.0.0:17091")
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, want json", cfg.LogFormat)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("DefaultConfig() should be valid: %v", err)
	}
}

func TestStreamLabelAndMode(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.StreamLabel() != "sim://vod" || cfg.Mode() != "vod" {
		t.Errorf("VOD label/mode = %q/%q", cfg.StreamLabel(), cfg.Mode())
	}

	cfg.Live = true
	if cfg.StreamLabel() != "sim://live" || cfg.Mode() != "live" {
		t.Errorf("live label/mode = %q/%q", cfg.StreamLabel(), cfg.Mode())
	}

	cfg.Stream = "sim://custom"
	if cfg.StreamLabel() != "sim://custom" {
		t.Errorf("StreamLabel() = %q, want explicit label", cfg.StreamLabel())
	}
}

// =============================================================================
// Tests: ParseArgs
// =============================================================================

func TestParseArgs_Defaults(t *testing.T) {
	cfg, err := ParseArgs(nil, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("ParseArgs(nil) error: %v", err)
	}
	if *cfg != *DefaultConfig() {
		t.Errorf("ParseArgs(nil) = %+v, want defaults", cfg)
	}
}

func TestParseArgs_AllFlags(t *testing.T) {
	args := []string{
		"-interval", "250ms",
		"-keep-history",
		"-duration", "5m",
		"-sessions", "3",
		"-speed", "10",
		"-seed", "42",
		"-live",
		"-content-duration", "30s",
		"-bitrate", "8000000",
		"-width", "3840",
		"-height", "2160",
		"-fps", "60",
		"-renditions", "5",
		"-error-rate", "2.5",
		"-rebuffer-rate", "1",
		"-drop-rate", "0.01",
		"-metrics", "127.0.0.1:9999",
		"-metrics-dump",
		"-tui=false",
		"-v",
		"-log-format", "text",
		"-log-level", "debug",
		"--check",
		"sim://flaky-live",
	}

	cfg, err := ParseArgs(args, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("ParseArgs error: %v", err)
	}

	want := Config{
		Interval:        250 * time.Millisecond,
		KeepHistory:     true,
		Duration:        5 * time.Minute,
		Sessions:        3,
		Speed:           10,
		Seed:            42,
		Stream:          "sim://flaky-live",
		Live:            true,
		ContentDuration: 30 * time.Second,
		BitrateBps:      8_000_000,
		Width:           3840,
		Height:          2160,
		FrameRate:       60,
		Renditions:      5,
		ErrorRate:       2.5,
		RebufferRate:    1,
		DropRate:        0.01,
		MetricsAddr:     "127.0.0.1:9999",
		MetricsDump:     true,
		TUIEnabled:      false,
		Verbose:         true,
		LogFormat:       "text",
		LogLevel:        "debug",
		Check:           true,
	}
	if *cfg != want {
		t.Errorf("ParseArgs =\n%+v\nwant\n%+v", *cfg, want)
	}
}

func TestParseArgs_UnknownFlag(t *testing.T) {
	var out bytes.Buffer
	if _, err := ParseArgs([]string{"-clients", "5"}, &out); err == nil {
		t.Error("expected error for unknown flag")
	}
	if !strings.Contains(out.String(), "Usage:") {
		t.Errorf("usage not printed on error:\n%s", out.String())
	}
}

func TestParseArgs_Help(t *testing.T) {
	var out bytes.Buffer
	_, err := ParseArgs([]string{"-h"}, &out)
	if !errors.Is(err, flag.ErrHelp) {
		t.Errorf("ParseArgs(-h) error = %v, want flag.ErrHelp", err)
	}

	usage := out.String()
	for _, want := range []string{
		"Collection:", "Run Control:", "Simulated Stream:", "Fault Injection:", "Observability:",
		"-interval duration", "-metrics string", "(default 0.0.0.0:17091)", "-drop-rate float",
	} {
		if !strings.Contains(usage, want) {
			t.Errorf("usage missing %q", want)
		}
	}
}

// =============================================================================
// Tests: Validate
// =============================================================================

func TestValidate_Fields(t *testing.T) {
	testCases := []struct {
		field  string
		mutate func(*Config)
	}{
		{"interval", func(c *Config) { c.Interval = 0 }},
		{"interval", func(c *Config) { c.Interval = time.Millisecond }},
		{"duration", func(c *Config) { c.Duration = -time.Second }},
		{"sessions", func(c *Config) { c.Sessions = -1 }},
		{"speed", func(c *Config) { c.Speed = 0 }},
		{"speed", func(c *Config) { c.Speed = 1000 }},
		{"content_duration", func(c *Config) { c.ContentDuration = 0 }},
		{"bitrate", func(c *Config) { c.BitrateBps = -1 }},
		{"resolution", func(c *Config) { c.Width = 0 }},
		{"resolution", func(c *Config) { c.Height = -1 }},
		{"fps", func(c *Config) { c.FrameRate = 0 }},
		{"renditions", func(c *Config) { c.Renditions = 0 }},
		{"error_rate", func(c *Config) { c.ErrorRate = -0.1 }},
		{"rebuffer_rate", func(c *Config) { c.RebufferRate = -1 }},
		{"drop_rate", func(c *Config) { c.DropRate = 1 }},
		{"metrics_addr", func(c *Config) { c.MetricsAddr = "not-an-address" }},
		{"log_format", func(c *Config) { c.LogFormat = "xml" }},
		{"log_level", func(c *Config) { c.LogLevel = "trace" }},
	}

	for _, tc := range testCases {
		t.Run(tc.field, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatalf("Expected error for %s", tc.field)
			}
			var ve ValidationError
			if !errors.As(err, &ve) || ve.Field != tc.field {
				t.Errorf("error = %v, want field %q", err, tc.field)
			}
		})
	}
}

func TestValidate_MetricsDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MetricsAddr = ""
	cfg.MetricsDump = true

	if err := Validate(cfg); err != nil {
		t.Errorf("empty metrics address should be valid: %v", err)
	}
}

func TestValidate_ForeverSessions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sessions = 0
	cfg.Live = true

	if err := Validate(cfg); err != nil {
		t.Errorf("sessions=0 should be valid: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Interval = 0
	cfg.Speed = -1
	cfg.LogFormat = "yaml"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected multiple errors")
	}

	errStr := err.Error()
	for _, field := range []string{"interval", "speed", "log_format"} {
		if !strings.Contains(errStr, field) {
			t.Errorf("Error should mention %s: %v", field, err)
		}
	}
}

func TestApplyCheckMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sessions = 5
	cfg.Verbose = false

	ApplyCheckMode(cfg)

	if cfg.Sessions != 1 {
		t.Errorf("Check mode should set sessions=1, got %d", cfg.Sessions)
	}
	if !cfg.Verbose {
		t.Error("Check mode should enable verbose")
	}
	if cfg.TUIEnabled {
		t.Error("Check mode should disable the dashboard")
	}
	if cfg.ContentDuration != 10*time.Second {
		t.Errorf("Check mode should set content duration=10s, got %v", cfg.ContentDuration)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("check mode config should be valid: %v", err)
	}
}

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "test_field",
		Message: "test message",
	}

	errStr := err.Error()
	if errStr != "test_field: test message" {
		t.Errorf("Error string = %q, want %q", errStr, "test_field: test message")
	}
}
