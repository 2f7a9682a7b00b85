package stats

import "github.com/randomizedcoder/go-hls-playstats/internal/player"

// Heuristic constants for derived metrics. They have no documented
// derivation and are kept here so they can be tuned in one place.
const (
	// MaxFrameRate caps observed and nominal frame rates.
	MaxFrameRate = 60.0

	// DefaultFrameRate is reported when neither an observed nor a nominal
	// rate is available.
	DefaultFrameRate = 30.0

	// MinElapsedForObservedFPS is the session age (seconds) after which the
	// observed frame rate is trusted over the nominal one.
	MinElapsedForObservedFPS = 1.0

	// VideoBufferPercent and AudioBufferPercent split the combined
	// buffered-ahead duration between tracks.
	VideoBufferPercent = 80
	AudioBufferPercent = 20
)

// stateUnavailable stands in for a raw state that could not be read. It
// matches no player state, so it classifies as StateUnknown.
const stateUnavailable player.State = -1

// classifyState maps a raw player state to a PlaybackState. Ready splits on
// whether the player is advancing.
func classifyState(raw player.State, isPlaying bool) PlaybackState {
	switch raw {
	case player.StateIdle:
		return StateIdle
	case player.StateBuffering:
		return StateBuffering
	case player.StateReady:
		if isPlaying {
			return StatePlaying
		}
		return StatePaused
	case player.StateEnded:
		return StateEnded
	default:
		return StateUnknown
	}
}

// frameRate prefers the observed rendering rate over the format's nominal
// rate once the session is older than MinElapsedForObservedFPS.
func frameRate(elapsedSec float64, renderedFrames int64, nominal float64) float64 {
	if elapsedSec > MinElapsedForObservedFPS && renderedFrames > 0 {
		return capFrameRate(float64(renderedFrames) / elapsedSec)
	}
	if nominal > 0 {
		return capFrameRate(nominal)
	}
	return DefaultFrameRate
}

func capFrameRate(fps float64) float64 {
	if fps > MaxFrameRate {
		return MaxFrameRate
	}
	return fps
}

// videoQuality returns nil unless both dimensions are strictly positive.
func videoQuality(f player.VideoFormat, hasFormat bool, elapsedSec float64, renderedFrames int64) *VideoQuality {
	if !hasFormat || f.Width <= 0 || f.Height <= 0 {
		return nil
	}
	return &VideoQuality{
		Width:     f.Width,
		Height:    f.Height,
		FrameRate: frameRate(elapsedSec, renderedFrames, f.FrameRate),
	}
}

// estimateBandwidth returns bits per second from the player's bandwidth
// meter totals, or bitrateBps when nothing has been measured.
func estimateBandwidth(bandwidthTimeMs, bandwidthBytes, bitrateBps int64) int64 {
	if bandwidthTimeMs > 0 && bandwidthBytes > 0 {
		return bandwidthBytes * 8 * 1000 / bandwidthTimeMs
	}
	return bitrateBps
}

// splitBuffer attributes the buffered-ahead duration to video and audio.
func splitBuffer(positionMs, bufferedPositionMs int64) BufferInfo {
	ahead := bufferedPositionMs - positionMs
	if ahead < 0 {
		ahead = 0
	}
	return BufferInfo{
		VideoBufferMs:  ahead * VideoBufferPercent / 100,
		AudioBufferMs:  ahead * AudioBufferPercent / 100,
		TargetBufferMs: ahead,
	}
}

// liveOffset prefers the player's own live-edge distance and falls back to
// the remaining duration of the current window.
func liveOffset(reportedMs int64, reportedOK bool, durationMs, positionMs int64) int64 {
	if reportedOK && reportedMs > 0 {
		return reportedMs
	}
	if durationMs > 0 {
		if off := durationMs - positionMs; off > 0 {
			return off
		}
	}
	return 0
}

// frameCounters prefers decoder counters over the aggregate dropped count.
func frameCounters(dc player.DecoderCounters, hasDecoder bool, aggregateDropped int64) (dropped, rendered int64) {
	if hasDecoder {
		return dc.DroppedFrames, dc.RenderedFrames
	}
	return aggregateDropped, 0
}

// lifetimeFrameCounters takes frame counts from lifetime aggregates, which
// survive the decoder reset at a new session. The session counts are a floor
// for players that do not aggregate rendered frames.
func lifetimeFrameCounters(agg player.PlaybackStats, sessionDropped, sessionRendered int64) (dropped, rendered int64) {
	return max(agg.TotalDroppedFrames, sessionDropped), max(agg.TotalRenderedFrames, sessionRendered)
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
