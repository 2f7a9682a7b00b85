package summary

import (
	"strings"
	"testing"
	"time"

	"github.com/randomizedcoder/go-hls-playstats/internal/stats"
)

// =============================================================================
// Test Helpers
// =============================================================================

func snapshot(state stats.PlaybackState, bwBps int64) stats.PlaybackSnapshot {
	return stats.PlaybackSnapshot{
		IsPlaying:    state == stats.StatePlaying,
		State:        state,
		PositionMs:   30_000,
		DurationMs:   60_000,
		VideoQuality: &stats.VideoQuality{Width: 1280, Height: 720, FrameRate: 30},
		BitrateBps:   2_000_000,
		Network: stats.NetworkStats{
			EstimatedBandwidthBps: bwBps,
			TotalBytesLoaded:      7_500_000,
		},
		DroppedFrames:           4,
		TotalFramesRendered:     900,
		BufferInfo:              stats.BufferInfo{TargetBufferMs: 8000, VideoBufferMs: 6400, AudioBufferMs: 1600},
		JoinTimeMs:              420,
		RebufferCount:           2,
		TotalRebufferDurationMs: 1500,
	}
}

// =============================================================================
// Tests: Recorder
// =============================================================================

func TestRecorder_Empty(t *testing.T) {
	rep := NewRecorder().Report()

	if rep.Updates != 0 || len(rep.Sessions) != 0 {
		t.Errorf("empty report = %+v", rep)
	}
	if rep.Bandwidth.Count != 0 || rep.Bandwidth.P50 != 0 {
		t.Errorf("Bandwidth = %+v, want zero", rep.Bandwidth)
	}
	if len(rep.RecentErrors) != 0 || rep.TotalErrors != 0 {
		t.Errorf("errors = %d/%v, want none", rep.TotalErrors, rep.RecentErrors)
	}
}

func TestRecorder_Distributions(t *testing.T) {
	r := NewRecorder()

	for i := int64(1); i <= 100; i++ {
		r.OnUpdate(snapshot(stats.StatePlaying, i*100_000))
	}
	// Non-playing snapshots do not feed distributions.
	r.OnUpdate(snapshot(stats.StateBuffering, 999_000_000))

	rep := r.Report()
	if rep.Updates != 101 {
		t.Errorf("Updates = %d, want 101", rep.Updates)
	}
	if rep.Bandwidth.Count != 100 {
		t.Errorf("Bandwidth.Count = %d, want 100", rep.Bandwidth.Count)
	}
	if rep.Bandwidth.Min != 100_000 || rep.Bandwidth.Max != 10_000_000 {
		t.Errorf("Bandwidth min/max = %f/%f", rep.Bandwidth.Min, rep.Bandwidth.Max)
	}
	if rep.Bandwidth.P50 < 4_000_000 || rep.Bandwidth.P50 > 6_000_000 {
		t.Errorf("Bandwidth.P50 = %f, want ~5000000", rep.Bandwidth.P50)
	}
	if !(rep.Bandwidth.P50 <= rep.Bandwidth.P95 && rep.Bandwidth.P95 <= rep.Bandwidth.P99) {
		t.Errorf("percentiles not ordered: %+v", rep.Bandwidth)
	}
	if rep.PeakBandwidthBps != 10_000_000 {
		t.Errorf("PeakBandwidthBps = %d, want 10000000", rep.PeakBandwidthBps)
	}
	if rep.FrameRate.P50 != 30 {
		t.Errorf("FrameRate.P50 = %f, want 30", rep.FrameRate.P50)
	}
	if rep.BufferAhead.Max != 8000 {
		t.Errorf("BufferAhead.Max = %f, want 8000", rep.BufferAhead.Max)
	}
}

func TestRecorder_Sessions(t *testing.T) {
	r := NewRecorder()

	r.OnUpdate(snapshot(stats.StatePlaying, 1_000_000))
	final := snapshot(stats.StateEnded, 1_000_000)
	final.PositionMs = 60_000
	r.OnSessionEnded(&final)

	// Second session ends without a final snapshot: falls back to last update.
	second := snapshot(stats.StatePlaying, 1_000_000)
	second.PositionMs = 12_000
	r.OnUpdate(second)
	r.OnSessionEnded(nil)

	// Third session still running at exit.
	third := snapshot(stats.StatePlaying, 1_000_000)
	third.PositionMs = 5_000
	r.OnUpdate(third)

	rep := r.Report()
	if len(rep.Sessions) != 3 {
		t.Fatalf("Sessions = %d, want 3", len(rep.Sessions))
	}

	tests := []struct {
		idx       int
		wantEnded bool
		wantPos   int64
	}{
		{0, true, 60_000},
		{1, true, 12_000},
		{2, false, 5_000},
	}
	for _, tt := range tests {
		s := rep.Sessions[tt.idx]
		if s.Index != tt.idx+1 {
			t.Errorf("session %d: Index = %d", tt.idx, s.Index)
		}
		if s.Ended != tt.wantEnded {
			t.Errorf("session %d: Ended = %v, want %v", tt.idx, s.Ended, tt.wantEnded)
		}
		if s.PositionMs != tt.wantPos {
			t.Errorf("session %d: PositionMs = %d, want %d", tt.idx, s.PositionMs, tt.wantPos)
		}
	}
}

func TestRecorder_SessionEndedWithNothing(t *testing.T) {
	r := NewRecorder()
	r.OnSessionEnded(nil)

	rep := r.Report()
	if len(rep.Sessions) != 1 || !rep.Sessions[0].Ended || rep.Sessions[0].PositionMs != 0 {
		t.Errorf("Sessions = %+v", rep.Sessions)
	}
}

func TestRecorder_RecentErrors(t *testing.T) {
	r := NewRecorder()

	snap := snapshot(stats.StatePlaying, 1_000_000)
	for i := 0; i < 8; i++ {
		snap.Errors = append(snap.Errors, stats.PlaybackError{Code: string(rune('A' + i))})
	}
	r.OnUpdate(snap)

	rep := r.Report()
	if rep.TotalErrors != 8 {
		t.Errorf("TotalErrors = %d, want 8", rep.TotalErrors)
	}
	if len(rep.RecentErrors) != maxRecentErrors {
		t.Fatalf("RecentErrors = %d, want %d", len(rep.RecentErrors), maxRecentErrors)
	}
	if rep.RecentErrors[0].Code != "D" || rep.RecentErrors[4].Code != "H" {
		t.Errorf("RecentErrors = %+v, want D..H", rep.RecentErrors)
	}
}

func TestRecorder_ReportIsCopy(t *testing.T) {
	r := NewRecorder()
	r.OnSessionEnded(nil)

	rep := r.Report()
	rep.Sessions[0].Index = 99

	if r.Report().Sessions[0].Index != 1 {
		t.Error("Report() aliases recorder state")
	}
}

// =============================================================================
// Tests: FormatExitSummary
// =============================================================================

func TestFormatExitSummary(t *testing.T) {
	r := NewRecorder()
	for i := 0; i < 10; i++ {
		r.OnUpdate(snapshot(stats.StatePlaying, 3_000_000))
	}
	final := snapshot(stats.StateEnded, 3_000_000)
	final.Errors = []stats.PlaybackError{{Code: "E_SEGMENT", Message: "HTTP 503"}}
	r.OnSessionEnded(&final)
	combined := snapshot(stats.StateEnded, 3_000_000)
	r.SetCombined(combined)

	out := FormatExitSummary(r.Report(), Config{
		Duration:    90 * time.Second,
		Stream:      "sim://vod",
		MetricsAddr: "0.0.0.0:17091",
		MetricsDump: "hls_playstats_updates_total 10\n",
	})

	for _, want := range []string{
		"go-hls-playstats Exit Summary",
		"Run Duration:           00:01:30",
		"Stream:                 sim://vod",
		"Sessions:               1",
		"Quality & Network",
		"3.00 Mbps",
		"30.0 fps",
		"Lifetime Totals",
		"7.50 MB",
		"E_SEGMENT",
		"hls_playstats_updates_total 10",
		"http://0.0.0.0:17091/metrics",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q\n%s", want, out)
		}
	}
}

func TestFormatExitSummary_NoData(t *testing.T) {
	out := FormatExitSummary(NewRecorder().Report(), Config{Duration: time.Second})

	if !strings.Contains(out, "No playback statistics") {
		t.Errorf("summary missing no-data notice:\n%s", out)
	}
	if strings.Contains(out, "Quality & Network") {
		t.Error("no-data summary should not print distributions")
	}
}

// =============================================================================
// Table-Driven Tests: Formatting Functions
// =============================================================================

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		want     string
	}{
		{"zero", 0, "00:00:00"},
		{"one second", time.Second, "00:00:01"},
		{"one hour", time.Hour, "01:00:00"},
		{"mixed", 2*time.Hour + 30*time.Minute + 45*time.Second, "02:30:45"},
		{"sub-second", 500 * time.Millisecond, "00:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDuration(tt.duration); got != tt.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.duration, got, tt.want)
			}
		})
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1500, "1.5K"},
		{1_500_000, "1.5M"},
	}

	for _, tt := range tests {
		if got := FormatNumber(tt.n); got != tt.want {
			t.Errorf("FormatNumber(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{512, "512 B"},
		{1500, "1.50 KB"},
		{7_500_000, "7.50 MB"},
		{2_000_000_000, "2.00 GB"},
	}

	for _, tt := range tests {
		if got := FormatBytes(tt.n); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestFormatBitrate(t *testing.T) {
	tests := []struct {
		bps  float64
		want string
	}{
		{0, "0 bps"},
		{800, "800 bps"},
		{128_000, "128.0 Kbps"},
		{4_500_000, "4.50 Mbps"},
	}

	for _, tt := range tests {
		if got := FormatBitrate(tt.bps); got != tt.want {
			t.Errorf("FormatBitrate(%f) = %q, want %q", tt.bps, got, tt.want)
		}
	}
}

func TestFormatMs(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0 ms"},
		{500 * time.Microsecond, "500 µs"},
		{1500 * time.Millisecond, "1500 ms"},
	}

	for _, tt := range tests {
		if got := FormatMs(tt.d); got != tt.want {
			t.Errorf("FormatMs(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
