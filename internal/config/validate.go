package config

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing every problem found.
func Validate(cfg *Config) error {
	var errs []error

	// Sampling cadence must be positive and sane
	const minInterval = 10 * time.Millisecond
	if cfg.Interval < minInterval {
		errs = append(errs, ValidationError{
			Field:   "interval",
			Message: fmt.Sprintf("must be at least %v (got %v)", minInterval, cfg.Interval),
		})
	}

	if cfg.Duration < 0 {
		errs = append(errs, ValidationError{
			Field:   "duration",
			Message: "must not be negative",
		})
	}

	if cfg.Sessions < 0 {
		errs = append(errs, ValidationError{
			Field:   "sessions",
			Message: "must not be negative (0 = forever)",
		})
	}

	if cfg.Speed <= 0 || cfg.Speed > 100 {
		errs = append(errs, ValidationError{
			Field:   "speed",
			Message: fmt.Sprintf("must be in (0, 100] (got %g)", cfg.Speed),
		})
	}

	if cfg.ContentDuration <= 0 {
		errs = append(errs, ValidationError{
			Field:   "content_duration",
			Message: "must be positive",
		})
	}

	if cfg.BitrateBps <= 0 {
		errs = append(errs, ValidationError{
			Field:   "bitrate",
			Message: "must be positive",
		})
	}

	if cfg.Width <= 0 || cfg.Height <= 0 {
		errs = append(errs, ValidationError{
			Field:   "resolution",
			Message: fmt.Sprintf("width and height must be positive (got %dx%d)", cfg.Width, cfg.Height),
		})
	}

	if cfg.FrameRate <= 0 {
		errs = append(errs, ValidationError{
			Field:   "fps",
			Message: "must be positive",
		})
	}

	if cfg.Renditions < 1 {
		errs = append(errs, ValidationError{
			Field:   "renditions",
			Message: "must be at least 1",
		})
	}

	if cfg.ErrorRate < 0 {
		errs = append(errs, ValidationError{
			Field:   "error_rate",
			Message: "must not be negative",
		})
	}
	if cfg.RebufferRate < 0 {
		errs = append(errs, ValidationError{
			Field:   "rebuffer_rate",
			Message: "must not be negative",
		})
	}
	if cfg.DropRate < 0 || cfg.DropRate >= 1 {
		errs = append(errs, ValidationError{
			Field:   "drop_rate",
			Message: fmt.Sprintf("must be in [0, 1) (got %g)", cfg.DropRate),
		})
	}

	if cfg.MetricsAddr != "" {
		if err := validateAddr(cfg.MetricsAddr); err != nil {
			errs = append(errs, ValidationError{
				Field:   "metrics_addr",
				Message: err.Error(),
			})
		}
	}

	// Log format must be valid
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.LogLevel] {
		errs = append(errs, ValidationError{
			Field:   "log_level",
			Message: fmt.Sprintf("must be one of: debug, info, warn, error (got %q)", cfg.LogLevel),
		})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// validateAddr checks that addr is a host:port listen address.
func validateAddr(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
	}
	if port == "" {
		return errors.New("listen address must include a port")
	}
	return nil
}
