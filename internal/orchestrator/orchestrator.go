// Package orchestrator wires the playback statistics pipeline together for
// one run: the simulated player and its driver, the looper that owns them,
// the collector and every listener, the metrics endpoint and the dashboard.
package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	dto "github.com/prometheus/client_model/go"

	"github.com/randomizedcoder/go-hls-playstats/internal/collector"
	"github.com/randomizedcoder/go-hls-playstats/internal/config"
	"github.com/randomizedcoder/go-hls-playstats/internal/logging"
	"github.com/randomizedcoder/go-hls-playstats/internal/looper"
	"github.com/randomizedcoder/go-hls-playstats/internal/metrics"
	"github.com/randomizedcoder/go-hls-playstats/internal/simulate"
	"github.com/randomizedcoder/go-hls-playstats/internal/stats"
	"github.com/randomizedcoder/go-hls-playstats/internal/summary"
	"github.com/randomizedcoder/go-hls-playstats/internal/timeseries"
	"github.com/randomizedcoder/go-hls-playstats/internal/tui"
)

// shutdownTimeout bounds every step of the graceful shutdown.
const shutdownTimeout = 5 * time.Second

// Orchestrator coordinates all components for one statistics run.
type Orchestrator struct {
	config *config.Config
	logger *slog.Logger
	out    io.Writer

	loop   *looper.Looper
	player *simulate.Player
	driver *simulate.Driver

	registry      *prometheus.Registry
	exporter      *metrics.Exporter
	metricsServer *metrics.Server
	throughput    *timeseries.ThroughputTracker
	recorder      *summary.Recorder
	events        *logging.Listener

	collector *collector.Collector

	finished     chan struct{}
	finishedOnce sync.Once

	startTime time.Time
}

// New creates an Orchestrator. Seed 0 is replaced by a clock-derived seed,
// which is logged so the run can be reproduced.
func New(cfg *config.Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	o := &Orchestrator{
		config:   cfg,
		logger:   logger,
		out:      os.Stdout,
		loop:     looper.New("player", logger),
		player:   simulate.New(simulationConfig(cfg)),
		finished: make(chan struct{}),
	}

	o.driver = simulate.NewDriver(o.player, o.loop, simulate.DriverConfig{
		Speed:      cfg.Speed,
		Sessions:   cfg.Sessions,
		OnFinished: o.finish,
		Logger:     logger,
	})

	// Every listener that measures rates uses simulated time.
	o.throughput = timeseries.NewThroughputTrackerWithClock(o.player)
	o.recorder = summary.NewRecorder()
	o.events = logging.NewListener(logger)

	o.registry = prometheus.NewRegistry()
	o.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	o.exporter = metrics.NewExporterWithRegistry(metrics.ExporterConfig{
		Stream:     cfg.StreamLabel(),
		Live:       cfg.Live,
		Throughput: o.throughput,
	}, o.registry)
	if cfg.MetricsAddr != "" {
		o.metricsServer = metrics.NewServer(cfg.MetricsAddr, o.registry, logger)
	}

	return o
}

// simulationConfig maps the run configuration onto the simulated player.
func simulationConfig(cfg *config.Config) simulate.Config {
	sim := simulate.DefaultConfig()
	sim.Live = cfg.Live
	sim.ContentDuration = cfg.ContentDuration
	sim.BitrateBps = cfg.BitrateBps
	sim.Width = cfg.Width
	sim.Height = cfg.Height
	sim.FrameRate = cfg.FrameRate
	sim.Renditions = cfg.Renditions
	sim.ErrorRate = cfg.ErrorRate
	sim.RebufferRate = cfg.RebufferRate
	sim.DropRate = cfg.DropRate
	sim.Seed = cfg.Seed
	sim.Start = time.Now()
	return sim
}

// SetOutput redirects the banner and exit summary (default os.Stdout).
func (o *Orchestrator) SetOutput(w io.Writer) {
	o.out = w
}

// Run executes the statistics run. It blocks until the sessions complete,
// the duration elapses, the dashboard quits, a signal arrives or ctx is
// cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.startTime = time.Now()

	if err := simulationConfig(o.config).Validate(); err != nil {
		return fmt.Errorf("invalid simulation: %w", err)
	}

	// Start metrics server
	if o.metricsServer != nil {
		if err := o.metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	// Setup signal handling
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	o.loop.Start()

	o.collector = collector.New(o.player, o.loop, collector.Config{
		UpdateInterval: o.config.Interval,
		KeepHistory:    o.config.KeepHistory,
		Logger:         o.logger,
		Clock:          o.player,
	})
	o.collector.AddListener(o.events)
	o.collector.AddListener(o.throughput)
	o.collector.AddListener(o.exporter)
	o.collector.AddListener(o.recorder)
	o.collector.AddListener(&collector.ListenerFuncs{Update: o.onFirstUpdate})

	// Start the dashboard before registering its listener so Send never
	// blocks on a program that is not running.
	var program *tea.Program
	tuiDone := make(chan struct{})
	if o.config.TUIEnabled {
		program = tea.NewProgram(tui.New(tui.Config{
			Stream:           o.config.StreamLabel(),
			MetricsAddr:      o.config.MetricsAddr,
			ThroughputSource: o.throughput,
		}), tea.WithAltScreen())
		go func() {
			defer close(tuiDone)
			if _, err := program.Run(); err != nil {
				o.logger.Error("tui_failed", "error", err)
			}
		}()
		o.collector.AddListener(tui.NewListener(program))
	} else {
		close(tuiDone)
		o.printBanner()
	}

	o.logger.Info("run_starting",
		"stream", o.config.StreamLabel(),
		"mode", o.config.Mode(),
		"sessions", o.config.Sessions,
		"speed", o.config.Speed,
		"seed", o.config.Seed,
		"interval", o.config.Interval.String(),
	)
	o.driver.Start()

	// Setup duration timer if configured
	var durationTimer <-chan time.Time
	if o.config.Duration > 0 {
		durationTimer = time.After(o.config.Duration)
	}

	// Wait for completion signal
	select {
	case sig := <-sigCh:
		o.logger.Info("received_signal", "signal", sig.String())
	case <-durationTimer:
		o.logger.Info("duration_elapsed", "duration", o.config.Duration.String())
	case <-o.finished:
		o.logger.Info("sessions_complete", "sessions", o.config.Sessions)
	case <-o.tuiQuit(tuiDone):
		o.logger.Info("tui_quit")
	case <-ctx.Done():
		o.logger.Info("context_cancelled")
	}

	o.shutdown(program, tuiDone)

	// Print exit summary
	fmt.Fprint(o.out, o.exitSummary())
	return nil
}

// tuiQuit returns tuiDone while the dashboard is enabled, and a channel that
// never fires otherwise.
func (o *Orchestrator) tuiQuit(tuiDone chan struct{}) <-chan struct{} {
	if o.config.TUIEnabled {
		return tuiDone
	}
	return nil
}

func (o *Orchestrator) onFirstUpdate(stats.PlaybackSnapshot) {
	if o.metricsServer != nil {
		o.metricsServer.SetReady()
	}
}

func (o *Orchestrator) finish() {
	o.finishedOnce.Do(func() { close(o.finished) })
}

// shutdown stops the driver, captures lifetime totals, releases the
// collector and stops the looper, the dashboard and the metrics server.
func (o *Orchestrator) shutdown(program *tea.Program, tuiDone <-chan struct{}) {
	o.driver.Stop()

	combined := make(chan stats.PlaybackSnapshot, 1)
	if o.collector.RequestCombinedSnapshot(func(s stats.PlaybackSnapshot) { combined <- s }) {
		select {
		case snap := <-combined:
			o.recorder.SetCombined(snap)
		case <-time.After(shutdownTimeout):
			o.logger.Warn("combined_snapshot_timeout")
		}
	}

	o.collector.Release()
	o.loop.Quit()
	select {
	case <-o.loop.Done():
	case <-time.After(shutdownTimeout):
		o.logger.Warn("looper_shutdown_timeout")
	}

	if program != nil {
		tui.SendQuit(program)
		select {
		case <-tuiDone:
		case <-time.After(shutdownTimeout):
			o.logger.Warn("tui_shutdown_timeout")
		}
	}

	if o.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := o.metricsServer.Shutdown(ctx); err != nil {
			o.logger.Warn("metrics_server_shutdown_error", "error", err)
		}
	}

	st := o.collector.Stats()
	o.logger.Info("run_complete",
		"duration", time.Since(o.startTime).Round(time.Millisecond).String(),
		"updates", st.Updates,
		"sessions_ended", st.SessionsEnded,
		"player_errors", st.ErrorsRecorded,
		"listener_panics", st.ListenerPanics,
	)
}

// exitSummary renders the recorded run, with the final metric values when
// -metrics-dump is set.
func (o *Orchestrator) exitSummary() string {
	cfg := summary.Config{
		Duration:    time.Since(o.startTime),
		Stream:      o.streamDescription(),
		MetricsAddr: o.config.MetricsAddr,
	}
	if o.config.MetricsDump {
		var buf bytes.Buffer
		if err := metrics.Dump(&buf, o.playstatsOnly()); err != nil {
			o.logger.Warn("metrics_dump_failed", "error", err)
		} else {
			cfg.MetricsDump = buf.String()
		}
	}
	return summary.FormatExitSummary(o.recorder.Report(), cfg)
}

// playstatsOnly gathers the playback families without the runtime
// collectors.
func (o *Orchestrator) playstatsOnly() prometheus.Gatherer {
	return prometheus.GathererFunc(func() ([]*dto.MetricFamily, error) {
		families, err := o.registry.Gather()
		if err != nil {
			return nil, err
		}
		out := families[:0]
		for _, mf := range families {
			if metrics.IsPlaybackMetric(mf.GetName()) {
				out = append(out, mf)
			}
		}
		return out, nil
	})
}

func (o *Orchestrator) streamDescription() string {
	return fmt.Sprintf("%s (%s, %dx%d @ %s, seed %d)",
		o.config.StreamLabel(), o.config.Mode(),
		o.config.Width, o.config.Height,
		summary.FormatBitrate(float64(o.config.BitrateBps)),
		o.config.Seed,
	)
}

// printBanner prints the startup banner.
func (o *Orchestrator) printBanner() {
	w := o.out
	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔═══════════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(w, "║                        go-hls-playstats                           ║")
	fmt.Fprintln(w, "║          Adaptive Streaming Playback Statistics                   ║")
	fmt.Fprintln(w, "╚═══════════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Stream:      %s\n", o.streamDescription())
	if o.config.Sessions > 0 {
		fmt.Fprintf(w, "  Sessions:    %d at %gx speed\n", o.config.Sessions, o.config.Speed)
	} else {
		fmt.Fprintf(w, "  Sessions:    unlimited at %gx speed\n", o.config.Speed)
	}
	fmt.Fprintf(w, "  Sampling:    every %s\n", o.config.Interval)
	if o.config.MetricsAddr != "" {
		fmt.Fprintf(w, "  Metrics:     http://%s/metrics\n", o.config.MetricsAddr)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Press Ctrl+C to stop.")
	fmt.Fprintln(w)
}

// Player returns the simulated player for external access.
func (o *Orchestrator) Player() *simulate.Player {
	return o.player
}

// Registry returns the metrics registry for external access.
func (o *Orchestrator) Registry() *prometheus.Registry {
	return o.registry
}

// Recorder returns the summary recorder for external access.
func (o *Orchestrator) Recorder() *summary.Recorder {
	return o.recorder
}
