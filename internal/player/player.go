// Package player defines the media player abstraction observed by the
// playback statistics pipeline.
//
// A Player is not safe for concurrent use: every read must happen on the
// execution context that drives the player (see internal/looper). TrackStats
// and Subscribe are the exception and may be called from any goroutine.
package player

// State is the raw lifecycle state reported by a player.
type State int

const (
	// StateIdle indicates no media is loaded or the player was stopped.
	StateIdle State = iota

	// StateBuffering indicates the player cannot play from its current position
	// until more data is loaded.
	StateBuffering

	// StateReady indicates the player can play immediately. Whether it is
	// advancing depends on Player.IsPlaying.
	StateReady

	// StateEnded indicates playback has reached the end of the media.
	StateEnded
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuffering:
		return "buffering"
	case StateReady:
		return "ready"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the state ends a playback session.
func (s State) IsTerminal() bool {
	return s == StateEnded
}

// VideoFormat describes the currently active video rendition.
type VideoFormat struct {
	Width      int
	Height     int
	FrameRate  float64 // nominal; <= 0 when unknown
	BitrateBps int64   // encoded bitrate; <= 0 when unknown
}

// DecoderCounters are render-pipeline statistics from the video decoder.
type DecoderCounters struct {
	RenderedFrames int64
	DroppedFrames  int64
}

// PlaybackStats are aggregate statistics maintained by the player's own
// analytics, either for the current session or over the player lifetime.
type PlaybackStats struct {
	TotalBandwidthTimeMs int64
	TotalBandwidthBytes  int64
	TotalJoinTimeMs      int64
	TotalRebufferCount   int64
	TotalRebufferTimeMs  int64
	TotalDroppedFrames   int64
	TotalRenderedFrames  int64

	// History holds detailed player events, only populated when the tracker
	// was opened with keepHistory.
	History []HistoryEntry
}

// HistoryEntry is one detailed player event retained for diagnostics.
type HistoryEntry struct {
	TimestampMs int64
	State       State
	Detail      string
}

// StatsTracker is an attached analytics listener on a player.
type StatsTracker interface {
	// Session returns statistics for the current session. ok is false until
	// the player has produced statistics for any media.
	Session() (stats PlaybackStats, ok bool)

	// Combined returns statistics aggregated over every session seen by this
	// tracker.
	Combined() PlaybackStats

	// Close detaches the tracker from the player.
	Close()
}

// Player is the read-only surface of a media player.
type Player interface {
	State() State
	IsPlaying() bool

	PositionMs() int64
	// DurationMs returns the content duration; ok is false when unknown
	// (for example an unbounded live stream).
	DurationMs() (ms int64, ok bool)
	BufferedPositionMs() int64

	// VideoFormat returns the active video format; ok is false when there is
	// no video track.
	VideoFormat() (f VideoFormat, ok bool)

	// DecoderCounters returns video decoder counters; ok is false when no
	// decoder is enabled.
	DecoderCounters() (c DecoderCounters, ok bool)

	IsLive() bool
	// LiveOffsetMs returns the distance from the live edge; ok is false when
	// unavailable.
	LiveOffsetMs() (ms int64, ok bool)

	// TrackStats attaches an analytics tracker. keepHistory retains detailed
	// event history in the returned statistics.
	TrackStats(keepHistory bool) StatsTracker

	// Subscribe registers fn for lifecycle and error events. fn may be called
	// from any goroutine. The returned function unsubscribes.
	Subscribe(fn func(Event)) (unsubscribe func())
}
