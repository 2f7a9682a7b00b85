package stats

import (
	"log/slog"
	"sync"
	"time"

	"github.com/randomizedcoder/go-hls-playstats/internal/player"
)

// Clock interface for testing with deterministic time.
type Clock interface {
	Now() time.Time
}

// realClock uses time.Now() for production.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// AdapterConfig holds configuration for creating an Adapter.
type AdapterConfig struct {
	// KeepHistory asks the player's stats tracker to retain its detailed
	// event history. Independent of the adapter's own error list.
	KeepHistory bool

	Clock  Clock        // defaults to the wall clock
	Logger *slog.Logger // defaults to slog.Default()
}

// Adapter turns the readable state of a player into PlaybackSnapshots and
// keeps an append-only error history.
//
// Snapshot methods read the player and must run on the player's execution
// context. RecordError, ClearErrors and Errors are safe from any goroutine.
type Adapter struct {
	player  player.Player
	tracker player.StatsTracker
	clock   Clock
	logger  *slog.Logger

	mu           sync.Mutex
	sessionStart time.Time
	errors       []PlaybackError
	disposed     bool
}

// NewAdapter attaches a stats tracker to p and starts the first session.
func NewAdapter(p player.Player, cfg AdapterConfig) *Adapter {
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Adapter{
		player:       p,
		tracker:      p.TrackStats(cfg.KeepHistory),
		clock:        clock,
		logger:       logger,
		sessionStart: clock.Now(),
	}
}

// CurrentSnapshot returns statistics for the current session. ok is false
// only if the player has never produced playback statistics, or after
// Dispose.
func (a *Adapter) CurrentSnapshot() (snap PlaybackSnapshot, ok bool) {
	tracker := a.activeTracker()
	if tracker == nil {
		return PlaybackSnapshot{}, false
	}

	session, ok := readOK(a, "session_stats", tracker.Session)
	if !ok {
		return PlaybackSnapshot{}, false
	}
	return a.build(session, false), true
}

// CombinedSnapshot returns a snapshot whose cumulative fields come from the
// player's lifetime statistics rather than the current session. After
// Dispose the cumulative fields are zero.
func (a *Adapter) CombinedSnapshot() PlaybackSnapshot {
	var combined player.PlaybackStats
	if tracker := a.activeTracker(); tracker != nil {
		combined = read(a, "combined_stats", player.PlaybackStats{}, tracker.Combined)
	}
	return a.build(combined, true)
}

// RecordError appends a timestamped entry to the error history.
func (a *Adapter) RecordError(code, message string) {
	entry := PlaybackError{
		Code:        code,
		Message:     message,
		TimestampMs: a.clock.Now().UnixMilli(),
	}

	a.mu.Lock()
	a.errors = append(a.errors, entry)
	a.mu.Unlock()
}

// ClearErrors empties the error history.
func (a *Adapter) ClearErrors() {
	a.mu.Lock()
	a.errors = nil
	a.mu.Unlock()
}

// Errors returns a copy of the error history.
func (a *Adapter) Errors() []PlaybackError {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.copyErrorsLocked()
}

// BeginSession restarts the session clock used for the observed frame rate.
func (a *Adapter) BeginSession() {
	now := a.clock.Now()
	a.mu.Lock()
	a.sessionStart = now
	a.mu.Unlock()
}

// SessionStart returns when the current session began.
func (a *Adapter) SessionStart() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessionStart
}

// Dispose detaches the stats tracker. Idempotent.
func (a *Adapter) Dispose() {
	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return
	}
	a.disposed = true
	tracker := a.tracker
	a.tracker = nil
	a.mu.Unlock()

	if tracker != nil {
		read(a, "tracker_close", struct{}{}, func() struct{} {
			tracker.Close()
			return struct{}{}
		})
	}
	a.logger.Debug("stats_adapter_disposed")
}

func (a *Adapter) activeTracker() player.StatsTracker {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tracker
}

func (a *Adapter) copyErrorsLocked() []PlaybackError {
	out := make([]PlaybackError, len(a.errors))
	copy(out, a.errors)
	return out
}

// build reads the player and assembles a snapshot around agg.
func (a *Adapter) build(agg player.PlaybackStats, combined bool) PlaybackSnapshot {
	p := a.player
	now := a.clock.Now()

	a.mu.Lock()
	elapsedSec := now.Sub(a.sessionStart).Seconds()
	errs := a.copyErrorsLocked()
	a.mu.Unlock()

	raw := read(a, "state", stateUnavailable, p.State)
	isPlaying := read(a, "is_playing", false, p.IsPlaying)

	position := nonNegative(read(a, "position", 0, p.PositionMs))
	buffered := nonNegative(read(a, "buffered_position", 0, p.BufferedPositionMs))

	var duration int64
	if d, ok := readOK(a, "duration", p.DurationMs); ok && d > 0 {
		duration = d
	}

	format, hasFormat := readOK(a, "video_format", p.VideoFormat)
	var bitrate int64
	if hasFormat {
		bitrate = nonNegative(format.BitrateBps)
	}

	dc, hasDecoder := readOK(a, "decoder_counters", p.DecoderCounters)
	dropped, rendered := frameCounters(dc, hasDecoder, agg.TotalDroppedFrames)
	// The observed frame rate is a session measure.
	sessionRendered := rendered
	if combined {
		dropped, rendered = lifetimeFrameCounters(agg, dropped, rendered)
	}

	snap := PlaybackSnapshot{
		IsPlaying:          isPlaying,
		IsBuffering:        raw == player.StateBuffering,
		State:              classifyState(raw, isPlaying),
		PositionMs:         position,
		DurationMs:         duration,
		BufferedPositionMs: buffered,
		VideoQuality:       videoQuality(format, hasFormat, elapsedSec, sessionRendered),
		BitrateBps:         bitrate,
		Network: NetworkStats{
			EstimatedBandwidthBps: estimateBandwidth(agg.TotalBandwidthTimeMs, agg.TotalBandwidthBytes, bitrate),
			TotalBytesLoaded:      nonNegative(agg.TotalBandwidthBytes),
		},
		DroppedFrames:           nonNegative(dropped),
		TotalFramesRendered:     nonNegative(rendered),
		BufferInfo:              splitBuffer(position, buffered),
		Errors:                  errs,
		JoinTimeMs:              nonNegative(agg.TotalJoinTimeMs),
		RebufferCount:           nonNegative(agg.TotalRebufferCount),
		TotalRebufferDurationMs: nonNegative(agg.TotalRebufferTimeMs),
		CapturedAtMs:            now.UnixMilli(),
	}

	if read(a, "is_live", false, p.IsLive) {
		snap.IsLive = true
		reported, reportedOK := readOK(a, "live_offset", p.LiveOffsetMs)
		off := liveOffset(reported, reportedOK, duration, position)
		snap.LiveOffsetMs = &off
	}

	return snap
}

// read calls fn, returning fallback if the player panics.
func read[T any](a *Adapter, counter string, fallback T, fn func() T) (v T) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Debug("player_read_failed", "counter", counter, "panic", r)
			v = fallback
		}
	}()
	return fn()
}

// readOK calls fn, reporting unavailable if the player panics.
func readOK[T any](a *Adapter, counter string, fn func() (T, bool)) (v T, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Debug("player_read_failed", "counter", counter, "panic", r)
			var zero T
			v, ok = zero, false
		}
	}()
	return fn()
}
