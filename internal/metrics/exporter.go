// Package metrics exports playback snapshots as Prometheus metrics.
//
// Metrics are grouped by dashboard panel:
//   - Playback: state, position, buffer levels, live offset
//   - Quality: resolution, frame rate, bitrate, frames
//   - Network: bandwidth estimate, bytes loaded, rolling throughput
//   - QoE: join time, rebuffers, errors, sessions
//
// Snapshot counters are cumulative per session and restart at zero on a new
// session. Exporter feeds Prometheus counters with deltas so they stay
// monotonic across sessions.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/go-hls-playstats/internal/stats"
	"github.com/randomizedcoder/go-hls-playstats/internal/timeseries"
)

const namespace = "hls_playstats"

// playbackStates lists every state label exported by hls_playstats_state.
var playbackStates = []stats.PlaybackState{
	stats.StateUnknown,
	stats.StateIdle,
	stats.StateBuffering,
	stats.StatePlaying,
	stats.StatePaused,
	stats.StateEnded,
}

// playbackMetrics holds one Exporter's metric set. Each Exporter owns its
// own so that registries stay independent.
type playbackMetrics struct {
	// --- Panel 1: Playback ---
	info               *prometheus.GaugeVec
	state              *prometheus.GaugeVec
	positionSeconds    prometheus.Gauge
	durationSeconds    prometheus.Gauge
	bufferAheadSeconds prometheus.Gauge
	videoBufferSeconds prometheus.Gauge
	audioBufferSeconds prometheus.Gauge
	isLive             prometheus.Gauge
	liveOffsetSeconds  prometheus.Gauge

	// --- Panel 2: Quality ---
	videoWidth          prometheus.Gauge
	videoHeight         prometheus.Gauge
	frameRate           prometheus.Gauge
	bitrateBps          prometheus.Gauge
	droppedFramesTotal  prometheus.Counter
	renderedFramesTotal prometheus.Counter

	// --- Panel 3: Network ---
	estimatedBandwidthBps prometheus.Gauge
	bytesLoadedTotal      prometheus.Counter
	throughputAvg1s       prometheus.Gauge
	throughputAvg30s      prometheus.Gauge
	throughputAvg60s      prometheus.Gauge
	throughputAvg300s     prometheus.Gauge

	// --- Panel 4: QoE ---
	joinTimeSeconds      prometheus.Gauge
	rebuffersTotal       prometheus.Counter
	rebufferSecondsTotal prometheus.Counter
	playerErrorsTotal    prometheus.Counter
	sessionsEndedTotal   prometheus.Counter
	updatesTotal         prometheus.Counter
	lastCaptureTimestamp prometheus.Gauge
}

func newGauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
}

func newCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
}

func newPlaybackMetrics() *playbackMetrics {
	return &playbackMetrics{
		info: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "info",
				Help:      "Information about the observed stream (value always 1)",
			},
			[]string{"stream", "mode"},
		),
		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "state",
				Help:      "Current playback state (1 for the active state, 0 otherwise)",
			},
			[]string{"state"},
		),
		positionSeconds:    newGauge("position_seconds", "Current playback position"),
		durationSeconds:    newGauge("duration_seconds", "Content duration (0 = unknown)"),
		bufferAheadSeconds: newGauge("buffer_ahead_seconds", "Buffered media ahead of the playhead"),
		videoBufferSeconds: newGauge("video_buffer_seconds", "Estimated video share of the buffer"),
		audioBufferSeconds: newGauge("audio_buffer_seconds", "Estimated audio share of the buffer"),
		isLive:             newGauge("is_live", "1 when the stream is live"),
		liveOffsetSeconds:  newGauge("live_offset_seconds", "Distance behind the live edge (live streams only)"),

		videoWidth:          newGauge("video_width_pixels", "Active rendition width"),
		videoHeight:         newGauge("video_height_pixels", "Active rendition height"),
		frameRate:           newGauge("frame_rate", "Observed or nominal frame rate"),
		bitrateBps:          newGauge("bitrate_bits_per_second", "Active rendition bitrate"),
		droppedFramesTotal:  newCounter("dropped_frames_total", "Total frames dropped by the decoder"),
		renderedFramesTotal: newCounter("rendered_frames_total", "Total frames rendered by the decoder"),

		estimatedBandwidthBps: newGauge("estimated_bandwidth_bits_per_second", "Player bandwidth estimate"),
		bytesLoadedTotal:      newCounter("bytes_loaded_total", "Total media bytes loaded"),
		throughputAvg1s:       newGauge("throughput_1s_bytes_per_second", "Download throughput averaged over last 1 second"),
		throughputAvg30s:      newGauge("throughput_30s_bytes_per_second", "Download throughput averaged over last 30 seconds"),
		throughputAvg60s:      newGauge("throughput_60s_bytes_per_second", "Download throughput averaged over last 60 seconds"),
		throughputAvg300s:     newGauge("throughput_300s_bytes_per_second", "Download throughput averaged over last 5 minutes"),

		joinTimeSeconds:      newGauge("join_time_seconds", "Time to first frame of the current session"),
		rebuffersTotal:       newCounter("rebuffers_total", "Total rebuffering events"),
		rebufferSecondsTotal: newCounter("rebuffer_seconds_total", "Total time spent rebuffering"),
		playerErrorsTotal:    newCounter("player_errors_total", "Total player errors recorded"),
		sessionsEndedTotal:   newCounter("sessions_ended_total", "Total playback sessions that reached the end"),
		updatesTotal:         newCounter("updates_total", "Total snapshots exported"),
		lastCaptureTimestamp: newGauge("last_capture_timestamp_seconds", "Capture time of the last exported snapshot"),
	}
}

func (m *playbackMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		// Panel 1: Playback
		m.info,
		m.state,
		m.positionSeconds,
		m.durationSeconds,
		m.bufferAheadSeconds,
		m.videoBufferSeconds,
		m.audioBufferSeconds,
		m.isLive,
		m.liveOffsetSeconds,

		// Panel 2: Quality
		m.videoWidth,
		m.videoHeight,
		m.frameRate,
		m.bitrateBps,
		m.droppedFramesTotal,
		m.renderedFramesTotal,

		// Panel 3: Network
		m.estimatedBandwidthBps,
		m.bytesLoadedTotal,
		m.throughputAvg1s,
		m.throughputAvg30s,
		m.throughputAvg60s,
		m.throughputAvg300s,

		// Panel 4: QoE
		m.joinTimeSeconds,
		m.rebuffersTotal,
		m.rebufferSecondsTotal,
		m.playerErrorsTotal,
		m.sessionsEndedTotal,
		m.updatesTotal,
		m.lastCaptureTimestamp,
	}
}

// =============================================================================
// Exporter
// =============================================================================

// ExporterConfig holds configuration for the exporter.
type ExporterConfig struct {
	Stream string // label for hls_playstats_info
	Live   bool

	// Throughput, when set, feeds the rolling throughput gauges.
	Throughput *timeseries.ThroughputTracker
}

// Exporter is a collector.Listener that mirrors snapshots into Prometheus
// metrics.
type Exporter struct {
	m          *playbackMetrics
	throughput *timeseries.ThroughputTracker

	// Internal tracking for delta calculations
	mu               sync.Mutex
	prevDropped      int64
	prevRendered     int64
	prevBytes        int64
	prevRebuffers    int64
	prevRebufferMs   int64
	prevErrors       int64
	updates          int64
	sessionsEnded    int64
	peakBandwidthBps int64
}

// NewExporter creates an exporter registered with the default registry.
func NewExporter(cfg ExporterConfig) *Exporter {
	return NewExporterWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewExporterWithRegistry creates an exporter with a custom registry.
// Useful for testing.
func NewExporterWithRegistry(cfg ExporterConfig, registry prometheus.Registerer) *Exporter {
	e := &Exporter{
		m:          newPlaybackMetrics(),
		throughput: cfg.Throughput,
	}
	registry.MustRegister(e.m.collectors()...)

	mode := "vod"
	if cfg.Live {
		mode = "live"
	}
	e.m.info.WithLabelValues(cfg.Stream, mode).Set(1)

	return e
}

// OnUpdate implements collector.Listener.
func (e *Exporter) OnUpdate(snap stats.PlaybackSnapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.updates++
	e.m.updatesTotal.Inc()
	e.m.lastCaptureTimestamp.Set(float64(snap.CapturedAtMs) / 1000)

	// --- Panel 1: Playback ---
	for _, s := range playbackStates {
		v := 0.0
		if s == snap.State {
			v = 1
		}
		e.m.state.WithLabelValues(s.String()).Set(v)
	}
	e.m.positionSeconds.Set(msToSeconds(snap.PositionMs))
	e.m.durationSeconds.Set(msToSeconds(snap.DurationMs))
	e.m.bufferAheadSeconds.Set(msToSeconds(snap.BufferInfo.TargetBufferMs))
	e.m.videoBufferSeconds.Set(msToSeconds(snap.BufferInfo.VideoBufferMs))
	e.m.audioBufferSeconds.Set(msToSeconds(snap.BufferInfo.AudioBufferMs))
	if off, ok := snap.LiveOffset(); ok {
		e.m.isLive.Set(1)
		e.m.liveOffsetSeconds.Set(msToSeconds(off))
	} else {
		e.m.isLive.Set(0)
		e.m.liveOffsetSeconds.Set(0)
	}

	// --- Panel 2: Quality ---
	if q := snap.VideoQuality; q != nil {
		e.m.videoWidth.Set(float64(q.Width))
		e.m.videoHeight.Set(float64(q.Height))
		e.m.frameRate.Set(q.FrameRate)
	} else {
		e.m.videoWidth.Set(0)
		e.m.videoHeight.Set(0)
		e.m.frameRate.Set(0)
	}
	e.m.bitrateBps.Set(float64(snap.BitrateBps))
	addDelta(e.m.droppedFramesTotal, &e.prevDropped, snap.DroppedFrames)
	addDelta(e.m.renderedFramesTotal, &e.prevRendered, snap.TotalFramesRendered)

	// --- Panel 3: Network ---
	e.m.estimatedBandwidthBps.Set(float64(snap.Network.EstimatedBandwidthBps))
	if snap.Network.EstimatedBandwidthBps > e.peakBandwidthBps {
		e.peakBandwidthBps = snap.Network.EstimatedBandwidthBps
	}
	addDelta(e.m.bytesLoadedTotal, &e.prevBytes, snap.Network.TotalBytesLoaded)
	if e.throughput != nil {
		ts := e.throughput.GetStats()
		e.m.throughputAvg1s.Set(ts.Avg1s)
		e.m.throughputAvg30s.Set(ts.Avg30s)
		e.m.throughputAvg60s.Set(ts.Avg60s)
		e.m.throughputAvg300s.Set(ts.Avg300s)
	}

	// --- Panel 4: QoE ---
	e.m.joinTimeSeconds.Set(msToSeconds(snap.JoinTimeMs))
	addDelta(e.m.rebuffersTotal, &e.prevRebuffers, snap.RebufferCount)
	if d := counterDelta(e.prevRebufferMs, snap.TotalRebufferDurationMs); d > 0 {
		e.m.rebufferSecondsTotal.Add(msToSeconds(d))
	}
	e.prevRebufferMs = snap.TotalRebufferDurationMs
	addDelta(e.m.playerErrorsTotal, &e.prevErrors, int64(len(snap.Errors)))
}

// OnSessionEnded implements collector.Listener.
func (e *Exporter) OnSessionEnded(final *stats.PlaybackSnapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.sessionsEnded++
	e.m.sessionsEndedTotal.Inc()
	if final == nil {
		return
	}
	for _, s := range playbackStates {
		v := 0.0
		if s == final.State {
			v = 1
		}
		e.m.state.WithLabelValues(s.String()).Set(v)
	}
}

// Updates returns the number of snapshots exported.
func (e *Exporter) Updates() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.updates
}

// SessionsEnded returns the number of session-end notifications seen.
func (e *Exporter) SessionsEnded() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionsEnded
}

// PeakBandwidthBps returns the highest bandwidth estimate exported.
func (e *Exporter) PeakBandwidthBps() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.peakBandwidthBps
}

// =============================================================================
// Helpers
// =============================================================================

// counterDelta returns the increase from prev to cur. Snapshot counters
// restart at zero on a new session, so a drop means cur is all new.
func counterDelta(prev, cur int64) int64 {
	if cur < prev {
		return cur
	}
	return cur - prev
}

// addDelta adds the increase since *prev to c and stores cur in *prev.
// Must be called with the exporter's mu held.
func addDelta(c prometheus.Counter, prev *int64, cur int64) {
	if d := counterDelta(*prev, cur); d > 0 {
		c.Add(float64(d))
	}
	*prev = cur
}

func msToSeconds(ms int64) float64 {
	return float64(ms) / 1000
}
