package stats

import (
	"io"
	"log/slog"
	"time"

	"github.com/randomizedcoder/go-hls-playstats/internal/player"
)

// mockClock is a controllable clock for testing.
type mockClock struct {
	now time.Time
}

func newMockClock() *mockClock {
	return &mockClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *mockClock) Now() time.Time { return c.now }

func (c *mockClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// fakeTracker is a scripted player.StatsTracker.
type fakeTracker struct {
	session    player.PlaybackStats
	hasSession bool
	combined   player.PlaybackStats
	closed     int
	panics     bool
}

func (t *fakeTracker) Session() (player.PlaybackStats, bool) {
	if t.panics {
		panic("tracker not ready")
	}
	return t.session, t.hasSession
}

func (t *fakeTracker) Combined() player.PlaybackStats {
	if t.panics {
		panic("tracker not ready")
	}
	return t.combined
}

func (t *fakeTracker) Close() { t.closed++ }

// fakePlayer is a scripted player.Player.
type fakePlayer struct {
	state     player.State
	isPlaying bool

	position    int64
	duration    int64
	hasDuration bool
	buffered    int64

	format    player.VideoFormat
	hasFormat bool

	decoder    player.DecoderCounters
	hasDecoder bool

	live          bool
	liveOffset    int64
	hasLiveOffset bool

	panicOnDecoder bool
	panicOnState   bool

	tracker     *fakeTracker
	keepHistory bool
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{
		state:     player.StateReady,
		isPlaying: true,
		tracker:   &fakeTracker{hasSession: true},
	}
}

func (p *fakePlayer) State() player.State {
	if p.panicOnState {
		panic("player released")
	}
	return p.state
}

func (p *fakePlayer) IsPlaying() bool           { return p.isPlaying }
func (p *fakePlayer) PositionMs() int64         { return p.position }
func (p *fakePlayer) DurationMs() (int64, bool) { return p.duration, p.hasDuration }
func (p *fakePlayer) BufferedPositionMs() int64 { return p.buffered }
func (p *fakePlayer) IsLive() bool              { return p.live }

func (p *fakePlayer) VideoFormat() (player.VideoFormat, bool) { return p.format, p.hasFormat }

func (p *fakePlayer) DecoderCounters() (player.DecoderCounters, bool) {
	if p.panicOnDecoder {
		panic("decoder released")
	}
	return p.decoder, p.hasDecoder
}

func (p *fakePlayer) LiveOffsetMs() (int64, bool) { return p.liveOffset, p.hasLiveOffset }

func (p *fakePlayer) TrackStats(keepHistory bool) player.StatsTracker {
	p.keepHistory = keepHistory
	return p.tracker
}

func (p *fakePlayer) Subscribe(func(player.Event)) func() { return func() {} }

func newTestAdapter(p *fakePlayer, clock *mockClock) *Adapter {
	return NewAdapter(p, AdapterConfig{
		Clock:  clock,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}
