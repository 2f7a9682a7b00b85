package summary

import (
	"fmt"
	"strings"
	"time"
)

const (
	ruleHeavy = "═══════════════════════════════════════════════════════════════════════════════\n"
	ruleLight = "───────────────────────────────────────────────────────────────────────────────\n"
)

// Config holds run information that is not part of the recorded Report.
type Config struct {
	// Duration is the total run duration
	Duration time.Duration

	// Stream describes the observed content (e.g. "sim://vod 1280x720")
	Stream string

	// MetricsAddr is the Prometheus metrics endpoint address
	MetricsAddr string

	// MetricsDump, when non-empty, is appended verbatim (Prometheus text).
	MetricsDump string
}

// FormatExitSummary formats a recorded run for display at program exit.
//
// The summary includes:
// - Run information
// - Per-session QoE (join time, rebuffers, frames)
// - Quality and network distributions (P50/P95/P99)
// - Lifetime totals
// - Recent player errors
func FormatExitSummary(rep Report, cfg Config) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(ruleHeavy)
	b.WriteString("                          go-hls-playstats Exit Summary\n")
	b.WriteString(ruleHeavy + "\n")

	// Run info
	fmt.Fprintf(&b, "Run Duration:           %s\n", FormatDuration(cfg.Duration))
	if cfg.Stream != "" {
		fmt.Fprintf(&b, "Stream:                 %s\n", cfg.Stream)
	}
	fmt.Fprintf(&b, "Snapshots:              %s\n", FormatNumber(rep.Updates))
	fmt.Fprintf(&b, "Sessions:               %d\n\n", len(rep.Sessions))

	if rep.Updates == 0 && len(rep.Sessions) == 0 {
		b.WriteString("(No playback statistics were produced)\n\n")
		writeFooter(&b, cfg)
		return b.String()
	}

	// Sessions
	if len(rep.Sessions) > 0 {
		section(&b, "Sessions")
		fmt.Fprintf(&b, "  %-4s %-8s %10s %10s %9s %10s %10s %10s\n",
			"#", "Status", "Position", "Join", "Rebuf", "Rebuf Time", "Dropped", "Loaded")
		b.WriteString("  " + strings.Repeat("─", 78) + "\n")
		for _, s := range rep.Sessions {
			status := "ended"
			if !s.Ended {
				status = "running"
			}
			fmt.Fprintf(&b, "  %-4d %-8s %10s %10s %9d %10s %10s %10s\n",
				s.Index,
				status,
				FormatDuration(time.Duration(s.PositionMs)*time.Millisecond),
				FormatMs(time.Duration(s.JoinTimeMs)*time.Millisecond),
				s.RebufferCount,
				FormatMs(time.Duration(s.RebufferMs)*time.Millisecond),
				FormatNumber(s.DroppedFrames),
				FormatBytes(s.BytesLoaded),
			)
		}
		b.WriteString("\n")
	}

	// Distributions
	if rep.Bandwidth.Count > 0 {
		section(&b, "Quality & Network")
		fmt.Fprintf(&b, "  %-20s %12s %12s %12s %12s\n", "Metric", "P50", "P95", "P99", "Max")
		b.WriteString("  " + strings.Repeat("─", 72) + "\n")
		writeDistribution(&b, "Bandwidth", rep.Bandwidth, FormatBitrate)
		if rep.Bitrate.Count > 0 {
			writeDistribution(&b, "Bitrate", rep.Bitrate, FormatBitrate)
		}
		writeDistribution(&b, "Buffer Ahead", rep.BufferAhead, func(v float64) string {
			return FormatMs(time.Duration(v) * time.Millisecond)
		})
		if rep.FrameRate.Count > 0 {
			writeDistribution(&b, "Frame Rate", rep.FrameRate, func(v float64) string {
				return fmt.Sprintf("%.1f fps", v)
			})
		}
		fmt.Fprintf(&b, "\n  Peak Bandwidth:       %s\n\n", FormatBitrate(float64(rep.PeakBandwidthBps)))
	}

	// Lifetime totals
	if c := rep.Combined; c != nil {
		section(&b, "Lifetime Totals")
		fmt.Fprintf(&b, "  Bytes Loaded:         %s\n", FormatBytes(c.Network.TotalBytesLoaded))
		fmt.Fprintf(&b, "  Avg Bandwidth:        %s\n", FormatBitrate(float64(c.Network.EstimatedBandwidthBps)))
		fmt.Fprintf(&b, "  Join Time:            %s\n", FormatMs(time.Duration(c.JoinTimeMs)*time.Millisecond))
		fmt.Fprintf(&b, "  Rebuffers:            %d (%s)\n",
			c.RebufferCount,
			FormatMs(time.Duration(c.TotalRebufferDurationMs)*time.Millisecond))
		fmt.Fprintf(&b, "  Dropped Frames:       %s\n\n", FormatNumber(c.DroppedFrames))
	}

	// Errors
	if rep.TotalErrors > 0 {
		section(&b, "Errors")
		fmt.Fprintf(&b, "  Total Errors:         %d\n", rep.TotalErrors)
		for _, e := range rep.RecentErrors {
			fmt.Fprintf(&b, "  %-20s %s\n", e.Code, e.Message)
		}
		b.WriteString("\n")
	}

	writeFooter(&b, cfg)
	return b.String()
}

func section(b *strings.Builder, title string) {
	b.WriteString(ruleLight)
	pad := (len(ruleLight)/3 - len(title)) / 2
	if pad < 0 {
		pad = 0
	}
	b.WriteString(strings.Repeat(" ", pad) + title + "\n")
	b.WriteString(ruleLight + "\n")
}

func writeDistribution(b *strings.Builder, name string, d Distribution, format func(float64) string) {
	fmt.Fprintf(b, "  %-20s %12s %12s %12s %12s\n",
		name, format(d.P50), format(d.P95), format(d.P99), format(d.Max))
}

func writeFooter(b *strings.Builder, cfg Config) {
	if cfg.MetricsDump != "" {
		section(b, "Prometheus Metrics")
		b.WriteString(cfg.MetricsDump)
		b.WriteString("\n")
	}
	if cfg.MetricsAddr != "" {
		fmt.Fprintf(b, "Metrics endpoint was: http://%s/metrics\n", cfg.MetricsAddr)
	}
	b.WriteString(ruleHeavy)
}

// =============================================================================
// Formatting Helper Functions (exported for reuse)
// =============================================================================

// FormatDuration formats a duration as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatNumber formats a number with K/M suffixes for readability.
func FormatNumber(n int64) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}

// FormatBytes formats bytes with KB/MB/GB suffixes.
func FormatBytes(n int64) string {
	if n >= 1_000_000_000 {
		return fmt.Sprintf("%.2f GB", float64(n)/1_000_000_000)
	}
	if n >= 1_000_000 {
		return fmt.Sprintf("%.2f MB", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.2f KB", float64(n)/1_000)
	}
	return fmt.Sprintf("%d B", n)
}

// FormatBitrate formats bits/sec with Kbps/Mbps suffixes.
func FormatBitrate(bps float64) string {
	if bps >= 1_000_000 {
		return fmt.Sprintf("%.2f Mbps", bps/1_000_000)
	}
	if bps >= 1_000 {
		return fmt.Sprintf("%.1f Kbps", bps/1_000)
	}
	return fmt.Sprintf("%.0f bps", bps)
}

// FormatMs formats a duration as milliseconds.
func FormatMs(d time.Duration) string {
	ms := d.Milliseconds()
	if ms == 0 && d > 0 {
		// Sub-millisecond, show microseconds
		return fmt.Sprintf("%d µs", d.Microseconds())
	}
	return fmt.Sprintf("%d ms", ms)
}
