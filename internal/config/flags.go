package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ParseFlags parses the process command line and returns a Config.
func ParseFlags() (*Config, error) {
	return ParseArgs(os.Args[1:], os.Stderr)
}

// ParseArgs parses args into a Config. Usage and parse errors are written
// to out.
func ParseArgs(args []string, out io.Writer) (*Config, error) {
	cfg := DefaultConfig()
	fs := flag.NewFlagSet("go-hls-playstats", flag.ContinueOnError)
	fs.SetOutput(out)

	// Custom usage message
	fs.Usage = func() {
		fmt.Fprintf(out, `go-hls-playstats - adaptive streaming playback statistics

Usage:
  go-hls-playstats [flags] [STREAM_LABEL]

Collection:
`)
		// Print flags by category
		printFlagCategory(fs, out, []string{"interval", "keep-history"})

		fmt.Fprintf(out, "\nRun Control:\n")
		printFlagCategory(fs, out, []string{"duration", "sessions", "speed", "seed"})

		fmt.Fprintf(out, "\nSimulated Stream:\n")
		printFlagCategory(fs, out, []string{"live", "content-duration", "bitrate", "width", "height", "fps", "renditions"})

		fmt.Fprintf(out, "\nFault Injection:\n")
		printFlagCategory(fs, out, []string{"error-rate", "rebuffer-rate", "drop-rate"})

		fmt.Fprintf(out, "\nObservability:\n")
		printFlagCategory(fs, out, []string{"metrics", "metrics-dump", "tui", "v", "log-format", "log-level"})

		fmt.Fprintf(out, "\nDiagnostics:\n")
		printFlagCategory(fs, out, []string{"check"})

		fmt.Fprintf(out, `
Flag Convention:
  Single-dash flags (-sessions, -live) are normal options.
  Double-dash flags (--check) are diagnostic modes.

Examples:
  # Watch one two-minute VOD session on the dashboard
  go-hls-playstats

  # Three fast sessions of a flaky live stream, JSON logs only
  go-hls-playstats -tui=false -live -sessions 3 -speed 10 -error-rate 4 sim://flaky-live

  # Reproducible run with a metrics dump in the exit summary
  go-hls-playstats -tui=false -seed 42 -speed 20 -metrics-dump

`)
	}

	// Collection
	fs.DurationVar(&cfg.Interval, "interval", cfg.Interval, "Statistics sampling interval")
	fs.BoolVar(&cfg.KeepHistory, "keep-history", cfg.KeepHistory, "Retain the player's detailed event history")

	// Run control
	fs.DurationVar(&cfg.Duration, "duration", cfg.Duration, "Run duration (0 = until sessions complete)")
	fs.IntVar(&cfg.Sessions, "sessions", cfg.Sessions, "Playback sessions to run (0 = forever)")
	fs.Float64Var(&cfg.Speed, "speed", cfg.Speed, "Simulated seconds per wall second")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed for fault injection (0 = from clock)")

	// Simulated stream
	fs.BoolVar(&cfg.Live, "live", cfg.Live, "Simulate a live stream instead of VOD")
	fs.DurationVar(&cfg.ContentDuration, "content-duration", cfg.ContentDuration, "VOD length, or live broadcast length")
	fs.Int64Var(&cfg.BitrateBps, "bitrate", cfg.BitrateBps, "Top rendition bitrate in bits per second")
	fs.IntVar(&cfg.Width, "width", cfg.Width, "Top rendition width")
	fs.IntVar(&cfg.Height, "height", cfg.Height, "Top rendition height")
	fs.Float64Var(&cfg.FrameRate, "fps", cfg.FrameRate, "Nominal frame rate")
	fs.IntVar(&cfg.Renditions, "renditions", cfg.Renditions, "Rendition ladder size")

	// Fault injection
	fs.Float64Var(&cfg.ErrorRate, "error-rate", cfg.ErrorRate, "Segment errors per simulated minute of downloading")
	fs.Float64Var(&cfg.RebufferRate, "rebuffer-rate", cfg.RebufferRate, "Injected stalls per simulated minute of playback")
	fs.Float64Var(&cfg.DropRate, "drop-rate", cfg.DropRate, "Fraction of frames dropped by the decoder")

	// Observability
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, `Prometheus metrics address ("" disables)`)
	fs.BoolVar(&cfg.MetricsDump, "metrics-dump", cfg.MetricsDump, "Append the final metric values to the exit summary")
	fs.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Enable live terminal dashboard (use -tui=false to disable)")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, `Log level: "debug", "info", "warn", "error"`)

	// Diagnostics (double-dash convention)
	fs.BoolVar(&cfg.Check, "check", cfg.Check, "Run one short verbose session without the dashboard")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Positional argument: stream label
	if rest := fs.Args(); len(rest) >= 1 {
		cfg.Stream = rest[0]
	}

	return cfg, nil
}

// printFlagCategory prints flags matching the given names (helper for usage).
func printFlagCategory(fs *flag.FlagSet, out io.Writer, names []string) {
	fs.VisitAll(func(f *flag.Flag) {
		for _, name := range names {
			if f.Name == name {
				fmt.Fprintf(out, "  -%s %s\n    \t%s", f.Name, flagType(f), f.Usage)
				if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "0s" {
					fmt.Fprintf(out, " (default %s)", f.DefValue)
				}
				fmt.Fprintln(out)
				return
			}
		}
	})
}

// flagType returns a type hint for the flag value.
func flagType(f *flag.Flag) string {
	// Infer type from default value format
	switch f.DefValue {
	case "true", "false":
		return ""
	}

	// Check if it looks like a duration
	if strings.HasSuffix(f.DefValue, "s") || strings.HasSuffix(f.DefValue, "m") || strings.HasSuffix(f.DefValue, "h") {
		return "duration"
	}

	// Check if numeric
	if _, err := strconv.ParseInt(f.DefValue, 10, 64); err == nil {
		return "int"
	}
	if _, err := strconv.ParseFloat(f.DefValue, 64); err == nil {
		return "float"
	}

	return "string"
}
