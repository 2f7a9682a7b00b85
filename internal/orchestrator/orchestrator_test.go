package orchestrator

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/randomizedcoder/go-hls-playstats/internal/config"
	"github.com/randomizedcoder/go-hls-playstats/internal/logging"
	"github.com/randomizedcoder/go-hls-playstats/internal/metrics"
)

// testConfig returns a fast, headless configuration.
func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.TUIEnabled = false
	cfg.MetricsAddr = ""
	cfg.Interval = 10 * time.Millisecond
	cfg.Speed = 100
	cfg.ContentDuration = 5 * time.Second
	cfg.Seed = 7
	return cfg
}

func runWithTimeout(t *testing.T, o *Orchestrator, timeout time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(timeout + 10*time.Second):
		t.Fatal("Run() did not return")
	}
}

func TestSimulationConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Live = true
	cfg.BitrateBps = 8_000_000
	cfg.Renditions = 2
	cfg.ErrorRate = 3
	cfg.DropRate = 0.01

	sim := simulationConfig(cfg)
	if !sim.Live || sim.BitrateBps != 8_000_000 || sim.Renditions != 2 {
		t.Errorf("stream fields not mapped: %+v", sim)
	}
	if sim.ErrorRate != 3 || sim.DropRate != 0.01 || sim.Seed != 7 {
		t.Errorf("fault fields not mapped: %+v", sim)
	}
	if sim.ContentDuration != 5*time.Second {
		t.Errorf("ContentDuration = %v, want 5s", sim.ContentDuration)
	}
	if err := sim.Validate(); err != nil {
		t.Errorf("mapped config invalid: %v", err)
	}
}

func TestNew_SeedFromClock(t *testing.T) {
	cfg := testConfig()
	cfg.Seed = 0

	New(cfg, logging.Discard())
	if cfg.Seed == 0 {
		t.Error("seed 0 should be replaced by a clock-derived seed")
	}
}

func TestNew_RegistersRuntimeCollectors(t *testing.T) {
	o := New(testConfig(), logging.Discard())

	families, err := o.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	var haveGo, havePlayback bool
	for _, mf := range families {
		switch {
		case mf.GetName() == "go_goroutines":
			haveGo = true
		case metrics.IsPlaybackMetric(mf.GetName()):
			havePlayback = true
		}
	}
	if !haveGo {
		t.Error("go collector not registered")
	}
	if !havePlayback {
		t.Error("playback metrics not registered")
	}
}

// =============================================================================
// Tests: Run
// =============================================================================

func TestRun_SessionsComplete(t *testing.T) {
	cfg := testConfig()
	cfg.Sessions = 2
	cfg.MetricsDump = true

	o := New(cfg, logging.Discard())
	var out bytes.Buffer
	o.SetOutput(&out)

	runWithTimeout(t, o, 20*time.Second)

	rep := o.Recorder().Report()
	ended := 0
	for _, s := range rep.Sessions {
		if s.Ended {
			ended++
		}
	}
	if ended != 2 {
		t.Errorf("ended sessions = %d, want 2", ended)
	}
	if rep.Combined == nil {
		t.Fatal("combined snapshot not recorded")
	}
	if rep.Combined.Network.TotalBytesLoaded <= 0 {
		t.Errorf("combined TotalBytesLoaded = %d, want > 0", rep.Combined.Network.TotalBytesLoaded)
	}

	if o.Player().Subscribers() != 0 {
		t.Errorf("Subscribers() = %d after Run, want 0", o.Player().Subscribers())
	}

	summary := out.String()
	for _, want := range []string{
		"go-hls-playstats",
		"Exit Summary",
		"sim://vod (vod, 1920x1080",
		"seed 7",
		"hls_playstats_sessions_ended_total 2",
	} {
		if !strings.Contains(summary, want) {
			t.Errorf("output missing %q:\n%s", want, summary)
		}
	}
	if strings.Contains(summary, "go_goroutines") {
		t.Error("metrics dump should only contain playback metrics")
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	cfg := testConfig()
	cfg.Sessions = 0
	cfg.Live = true
	cfg.Speed = 1

	o := New(cfg, logging.Discard())
	var out bytes.Buffer
	o.SetOutput(&out)

	start := time.Now()
	runWithTimeout(t, o, 200*time.Millisecond)

	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Run took %v after cancellation", elapsed)
	}
	if !strings.Contains(out.String(), "Exit Summary") {
		t.Errorf("exit summary not printed:\n%s", out.String())
	}
}

func TestRun_DurationElapses(t *testing.T) {
	cfg := testConfig()
	cfg.Sessions = 0
	cfg.Speed = 1
	cfg.Duration = 150 * time.Millisecond

	o := New(cfg, logging.Discard())
	var out bytes.Buffer
	o.SetOutput(&out)

	runWithTimeout(t, o, 20*time.Second)

	if !strings.Contains(out.String(), "Press Ctrl+C to stop.") {
		t.Error("banner not printed without the dashboard")
	}
	if o.Recorder().Report().Updates == 0 {
		t.Error("no snapshots recorded during the run")
	}
}

func TestRun_InvalidSimulation(t *testing.T) {
	cfg := testConfig()
	cfg.Renditions = 0

	o := New(cfg, logging.Discard())
	if err := o.Run(context.Background()); err == nil {
		t.Error("expected error for invalid simulation")
	}
}
