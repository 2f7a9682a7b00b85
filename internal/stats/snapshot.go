// Package stats derives normalized playback statistics from a media player.
//
// This file defines PlaybackSnapshot, the immutable record published to
// listeners on every sampling tick.
package stats

// PlaybackState is the consumer-facing classification of player state.
type PlaybackState int

const (
	StateUnknown PlaybackState = iota
	StateIdle
	StateBuffering
	StatePlaying
	StatePaused
	StateEnded
)

// String returns a human-readable name for the state.
func (s PlaybackState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuffering:
		return "buffering"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so snapshots encode the
// state by name.
func (s PlaybackState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// VideoQuality describes the active video rendition.
type VideoQuality struct {
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	FrameRate float64 `json:"frame_rate"`
}

// NetworkStats is cumulative network telemetry.
type NetworkStats struct {
	EstimatedBandwidthBps int64 `json:"estimated_bandwidth_bps"`
	TotalBytesLoaded      int64 `json:"total_bytes_loaded"`
}

// BufferInfo splits the buffered-ahead duration between tracks.
type BufferInfo struct {
	AudioBufferMs  int64 `json:"audio_buffer_ms"`
	VideoBufferMs  int64 `json:"video_buffer_ms"`
	TargetBufferMs int64 `json:"target_buffer_ms"`
}

// PlaybackError is one entry of the append-only error history.
type PlaybackError struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	TimestampMs int64  `json:"timestamp_ms"`
}

// PlaybackSnapshot is a point-in-time view of playback statistics.
//
// Snapshots are values; the Errors slice is a private copy and never aliases
// the adapter's history.
type PlaybackSnapshot struct {
	IsPlaying   bool          `json:"is_playing"`
	IsBuffering bool          `json:"is_buffering"`
	State       PlaybackState `json:"playback_state"`

	PositionMs         int64 `json:"position_ms"`
	DurationMs         int64 `json:"duration_ms"` // 0 = unknown
	BufferedPositionMs int64 `json:"buffered_position_ms"`

	VideoQuality *VideoQuality `json:"video_quality,omitempty"`
	BitrateBps   int64         `json:"bitrate_bps"`
	Network      NetworkStats  `json:"network"`

	DroppedFrames       int64 `json:"dropped_frames"`
	TotalFramesRendered int64 `json:"total_frames_rendered"`

	BufferInfo BufferInfo `json:"buffer_info"`

	IsLive       bool   `json:"is_live"`
	LiveOffsetMs *int64 `json:"live_offset_ms,omitempty"`

	Errors []PlaybackError `json:"errors"`

	JoinTimeMs              int64 `json:"join_time_ms"`
	RebufferCount           int64 `json:"rebuffer_count"`
	TotalRebufferDurationMs int64 `json:"total_rebuffer_duration_ms"`

	CapturedAtMs int64 `json:"captured_at_ms"`
}

// BufferAheadMs returns the clamped buffered-ahead duration.
func (s PlaybackSnapshot) BufferAheadMs() int64 {
	return s.BufferInfo.TargetBufferMs
}

// LiveOffset returns the live offset and whether it is present.
func (s PlaybackSnapshot) LiveOffset() (int64, bool) {
	if s.LiveOffsetMs == nil {
		return 0, false
	}
	return *s.LiveOffsetMs, true
}
