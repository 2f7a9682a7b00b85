package logging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/randomizedcoder/go-hls-playstats/internal/stats"
)

// MaxBufferedEvents is the number of recent playback events kept for the
// exit summary.
const MaxBufferedEvents = 100

// Listener is a collector.Listener that logs playback activity.
//
// Every update is logged at debug. State transitions are logged at info,
// newly recorded player errors at warn, and session ends at info with the
// session's final counters. Recent notable events are kept in a circular
// buffer.
type Listener struct {
	logger *slog.Logger

	mu        sync.Mutex
	lastState stats.PlaybackState
	seenState bool
	errors    int
	updates   int64

	// Circular buffer for recent events
	buffer []string
	bufIdx int
}

// NewListener creates a logging listener.
func NewListener(logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		logger: logger,
		buffer: make([]string, MaxBufferedEvents),
	}
}

// OnUpdate implements collector.Listener.
func (l *Listener) OnUpdate(snap stats.PlaybackSnapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.updates++
	l.logger.Debug("playback_update",
		"state", snap.State.String(),
		"position_ms", snap.PositionMs,
		"buffer_ahead_ms", snap.BufferAheadMs(),
		"bandwidth_bps", snap.Network.EstimatedBandwidthBps,
		"dropped_frames", snap.DroppedFrames,
	)

	if !l.seenState || snap.State != l.lastState {
		from := "none"
		if l.seenState {
			from = l.lastState.String()
		}
		l.logger.Info("playback_state_changed",
			"from", from,
			"to", snap.State.String(),
			"position_ms", snap.PositionMs,
		)
		l.recordLocked(fmt.Sprintf("state %s -> %s at %dms", from, snap.State, snap.PositionMs))
		l.lastState = snap.State
		l.seenState = true
	}

	// The error history is append-only unless cleared; a shorter list
	// means it was cleared.
	if len(snap.Errors) < l.errors {
		l.errors = 0
	}
	for _, e := range snap.Errors[l.errors:] {
		l.logger.Warn("playback_error",
			"code", e.Code,
			"message", e.Message,
			"timestamp_ms", e.TimestampMs,
		)
		l.recordLocked(fmt.Sprintf("error %s: %s", e.Code, e.Message))
	}
	l.errors = len(snap.Errors)
}

// OnSessionEnded implements collector.Listener.
func (l *Listener) OnSessionEnded(final *stats.PlaybackSnapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if final == nil {
		l.logger.Info("playback_session_ended", "has_final_snapshot", false)
		l.recordLocked("session ended")
		return
	}

	l.logger.LogAttrs(context.Background(), slog.LevelInfo, "playback_session_ended",
		slog.Bool("has_final_snapshot", true),
		slog.Int64("position_ms", final.PositionMs),
		slog.Int64("join_time_ms", final.JoinTimeMs),
		slog.Int64("rebuffer_count", final.RebufferCount),
		slog.Int64("rebuffer_ms", final.TotalRebufferDurationMs),
		slog.Int64("dropped_frames", final.DroppedFrames),
		slog.Int64("frames_rendered", final.TotalFramesRendered),
		slog.Int64("bytes_loaded", final.Network.TotalBytesLoaded),
		slog.Int("errors", len(final.Errors)),
	)
	l.recordLocked(fmt.Sprintf("session ended at %dms (%d rebuffers)", final.PositionMs, final.RebufferCount))
}

// recordLocked stores an event in the circular buffer. Must be called with
// mu held.
func (l *Listener) recordLocked(event string) {
	l.buffer[l.bufIdx] = event
	l.bufIdx = (l.bufIdx + 1) % MaxBufferedEvents
}

// RecentEvents returns up to n of the most recent events, oldest first.
func (l *Listener) RecentEvents(n int) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 {
		return nil
	}
	if n > MaxBufferedEvents {
		n = MaxBufferedEvents
	}

	events := make([]string, 0, n)
	for i := 0; i < n; i++ {
		idx := (l.bufIdx - n + i + MaxBufferedEvents) % MaxBufferedEvents
		if l.buffer[idx] != "" {
			events = append(events, l.buffer[idx])
		}
	}
	return events
}

// Updates returns the number of updates logged.
func (l *Listener) Updates() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.updates
}
