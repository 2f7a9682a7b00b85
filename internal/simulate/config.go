// Package simulate provides a deterministic, clock-driven media player for
// exercising the playback statistics pipeline without a real decoder.
//
// The simulated player downloads an HLS-like stream into a forward buffer,
// plays it back, injects stalls and segment errors at configurable rates and
// steps down its rendition ladder when it stalls. Time only moves when
// Advance is called.
package simulate

import (
	"fmt"
	"time"
)

// Config describes the simulated content and network.
type Config struct {
	// Content
	Live            bool          // live stream: unknown duration, live offset reported
	ContentDuration time.Duration // VOD length, or live broadcast length before it ends
	BitrateBps      int64         // top rendition bitrate
	Width           int           // top rendition width
	Height          int           // top rendition height
	FrameRate       float64       // nominal frame rate
	Renditions      int           // ladder size; each rung halves bitrate and size

	// Network
	SegmentDuration time.Duration // media per segment request
	DownloadFactor  float64       // download speed as a multiple of the bitrate
	TargetBuffer    time.Duration // downloader stops when this far ahead
	StartThreshold  time.Duration // buffered media needed to start or resume
	LiveEdgeOffset  time.Duration // initial distance behind the live edge

	// Fault injection, as expected occurrences per simulated minute.
	ErrorRate    float64
	RebufferRate float64

	// DropRate is the fraction of frames dropped by the decoder.
	DropRate float64

	Retry RetryConfig
	Seed  int64
	Start time.Time // simulated epoch; defaults to the Unix epoch
}

// DefaultConfig returns a two-minute 1080p30 VOD at 5 Mbps with mild faults.
func DefaultConfig() Config {
	return Config{
		ContentDuration: 2 * time.Minute,
		BitrateBps:      5_000_000,
		Width:           1920,
		Height:          1080,
		FrameRate:       30,
		Renditions:      4,

		SegmentDuration: 2 * time.Second,
		DownloadFactor:  2.5,
		TargetBuffer:    10 * time.Second,
		StartThreshold:  2 * time.Second,
		LiveEdgeOffset:  6 * time.Second,

		ErrorRate:    0.5,
		RebufferRate: 0.5,
		DropRate:     0.002,

		Retry: DefaultRetryConfig(),
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.ContentDuration <= 0:
		return fmt.Errorf("content duration must be positive (got %v)", c.ContentDuration)
	case c.BitrateBps <= 0:
		return fmt.Errorf("bitrate must be positive (got %d)", c.BitrateBps)
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("resolution must be positive (got %dx%d)", c.Width, c.Height)
	case c.FrameRate <= 0:
		return fmt.Errorf("frame rate must be positive (got %g)", c.FrameRate)
	case c.SegmentDuration <= 0:
		return fmt.Errorf("segment duration must be positive (got %v)", c.SegmentDuration)
	case c.DownloadFactor <= 0:
		return fmt.Errorf("download factor must be positive (got %g)", c.DownloadFactor)
	case c.ErrorRate < 0 || c.RebufferRate < 0:
		return fmt.Errorf("fault rates must not be negative")
	case c.DropRate < 0 || c.DropRate >= 1:
		return fmt.Errorf("drop rate must be in [0, 1) (got %g)", c.DropRate)
	}
	return nil
}

// Rendition is one rung of the bitrate ladder.
type Rendition struct {
	Width      int
	Height     int
	BitrateBps int64
}

func (r Rendition) String() string {
	return fmt.Sprintf("%dx%d@%dkbps", r.Width, r.Height, r.BitrateBps/1000)
}

// Ladder returns the rendition ladder, highest first. Every rung below the
// top halves the bitrate and scales each dimension by 1/sqrt(2), rounded to
// even pixels.
func (c Config) Ladder() []Rendition {
	n := c.Renditions
	if n < 1 {
		n = 1
	}
	ladder := make([]Rendition, 0, n)
	w, h, br := float64(c.Width), float64(c.Height), c.BitrateBps
	for i := 0; i < n; i++ {
		ladder = append(ladder, Rendition{
			Width:      int(w) &^ 1,
			Height:     int(h) &^ 1,
			BitrateBps: br,
		})
		w /= 1.41421356
		h /= 1.41421356
		br /= 2
		if br < 1 || int(w) < 2 || int(h) < 2 {
			break
		}
	}
	return ladder
}
