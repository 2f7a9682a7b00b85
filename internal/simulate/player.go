package simulate

import (
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randomizedcoder/go-hls-playstats/internal/player"
)

const (
	// maxStep bounds the granularity of one simulation step.
	maxStep = 100 * time.Millisecond

	// upswitchAfter is how long playback must run without a stall before
	// the player steps back up the ladder.
	upswitchAfter = 15 * time.Second

	// downloadJitter is the relative spread of per-step download speed.
	downloadJitter = 0.4
)

var segmentErrors = []struct {
	code    string
	message string
}{
	{"ERROR_CODE_IO_BAD_HTTP_STATUS", "segment request failed: HTTP 503 Service Unavailable"},
	{"ERROR_CODE_IO_NETWORK_CONNECTION_TIMEOUT", "segment request timed out"},
	{"ERROR_CODE_IO_NETWORK_CONNECTION_FAILED", "connection reset by peer"},
	{"ERROR_CODE_PARSING_CONTAINER_MALFORMED", "malformed MPEG-TS packet"},
}

// Player is a simulated HLS player. It implements player.Player and
// stats.Clock: Now returns the simulated time, which only moves on Advance.
//
// Thread-safe: every method may be called from any goroutine. Subscribers
// are invoked synchronously from Load, Stop and Advance, after
// the player's lock is released.
type Player struct {
	cfg    Config
	ladder []Rendition
	epoch  time.Time

	elapsedNs atomic.Int64

	mu sync.Mutex

	state   player.State
	paused  bool
	loaded  bool
	session int

	rng   *rand.Rand
	retry *retryBackoff

	rung      int
	stableFor time.Duration

	sessionAge time.Duration
	position   time.Duration
	buffered   time.Duration
	liveEdge   time.Duration
	retryWait  time.Duration
	joined     bool

	frameAcc float64
	dropAcc  float64

	current   totals
	completed totals

	errorsInjected int64

	subs     map[int]func(player.Event)
	nextSub  int
	trackers map[*tracker]struct{}
	history  int // attached trackers with keepHistory

	pending []player.Event
}

var _ player.Player = (*Player)(nil)

// New creates an idle player. Call Load to start the first session.
func New(cfg Config) *Player {
	epoch := cfg.Start
	if epoch.IsZero() {
		epoch = time.Unix(0, 0)
	}
	return &Player{
		cfg:      cfg,
		ladder:   cfg.Ladder(),
		epoch:    epoch,
		state:    player.StateIdle,
		subs:     make(map[int]func(player.Event)),
		trackers: make(map[*tracker]struct{}),
	}
}

// Now returns the simulated wall time.
func (p *Player) Now() time.Time {
	return p.epoch.Add(time.Duration(p.elapsedNs.Load()))
}

// Load starts a new playback session from the beginning of the content.
// The previous session's statistics are folded into the lifetime totals.
func (p *Player) Load() {
	p.mu.Lock()
	if p.loaded {
		p.completed.add(p.current)
	}
	p.loaded = true
	p.session++
	p.rng = sessionRand(p.cfg.Seed, p.session)
	p.retry = newRetryBackoff(p.cfg.Retry, p.rng)
	p.rung = 0
	p.stableFor = 0
	p.sessionAge = 0
	p.position = 0
	p.buffered = 0
	p.liveEdge = p.cfg.LiveEdgeOffset
	p.retryWait = 0
	p.joined = false
	p.frameAcc = 0
	p.dropAcc = 0
	p.current = totals{}
	p.paused = false
	p.setStateLocked(player.StateBuffering, "load")
	events, subs := p.drainLocked()
	p.mu.Unlock()

	dispatch(events, subs)
}

// Stop ends the session without reaching the end of the content.
func (p *Player) Stop() {
	p.mu.Lock()
	p.setStateLocked(player.StateIdle, "stop")
	events, subs := p.drainLocked()
	p.mu.Unlock()

	dispatch(events, subs)
}

// SetPlaying pauses or resumes playback. A ready player that is not playing
// reports paused.
func (p *Player) SetPlaying(playing bool) {
	p.mu.Lock()
	p.paused = !playing
	p.mu.Unlock()
}

// Advance moves simulated time forward by d.
func (p *Player) Advance(d time.Duration) {
	p.mu.Lock()
	for d > 0 {
		step := min(d, maxStep)
		p.stepLocked(step)
		d -= step
	}
	events, subs := p.drainLocked()
	p.mu.Unlock()

	dispatch(events, subs)
}

// Session returns the 1-based index of the current session, or 0 before
// the first Load.
func (p *Player) Session() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session
}

// Rendition returns the active rung of the ladder.
func (p *Player) Rendition() Rendition {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ladder[p.rung]
}

// ErrorsInjected returns the number of segment errors emitted so far.
func (p *Player) ErrorsInjected() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errorsInjected
}

// --- player.Player ---

func (p *Player) State() player.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == player.StateReady && !p.paused
}

func (p *Player) PositionMs() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position.Milliseconds()
}

func (p *Player) DurationMs() (int64, bool) {
	if p.cfg.Live {
		return 0, false
	}
	return p.cfg.ContentDuration.Milliseconds(), true
}

func (p *Player) BufferedPositionMs() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffered.Milliseconds()
}

func (p *Player) VideoFormat() (player.VideoFormat, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return player.VideoFormat{}, false
	}
	r := p.ladder[p.rung]
	return player.VideoFormat{
		Width:      r.Width,
		Height:     r.Height,
		FrameRate:  p.cfg.FrameRate,
		BitrateBps: r.BitrateBps,
	}, true
}

func (p *Player) DecoderCounters() (player.DecoderCounters, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return player.DecoderCounters{}, false
	}
	return player.DecoderCounters{
		RenderedFrames: p.current.rendered,
		DroppedFrames:  p.current.dropped,
	}, true
}

func (p *Player) IsLive() bool {
	return p.cfg.Live
}

func (p *Player) LiveOffsetMs() (int64, bool) {
	if !p.cfg.Live {
		return 0, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return 0, false
	}
	return (p.liveEdge - p.position).Milliseconds(), true
}

func (p *Player) TrackStats(keepHistory bool) player.StatsTracker {
	t := &tracker{p: p, keepHistory: keepHistory}
	p.mu.Lock()
	p.trackers[t] = struct{}{}
	if keepHistory {
		p.history++
	}
	p.mu.Unlock()
	return t
}

func (p *Player) Subscribe(fn func(player.Event)) func() {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
		})
	}
}

// Subscribers returns the number of registered event subscribers.
func (p *Player) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// --- simulation ---

func (p *Player) stepLocked(dt time.Duration) {
	p.elapsedNs.Add(int64(dt))
	if !p.loaded || p.state == player.StateIdle || p.state == player.StateEnded {
		return
	}

	p.sessionAge += dt
	if p.cfg.Live {
		p.liveEdge += dt
	}
	p.downloadLocked(dt)

	switch p.state {
	case player.StateBuffering:
		if p.joined {
			p.current.rebufferTime += dt
		} else {
			p.current.joinTime += dt
		}
		if p.canStartLocked() {
			p.joined = true
			p.setStateLocked(player.StateReady, p.ladder[p.rung].String())
		}

	case player.StateReady:
		if !p.paused {
			p.playLocked(dt)
		}
	}

	if p.cfg.Live && p.state != player.StateEnded && p.sessionAge >= p.cfg.ContentDuration {
		p.setStateLocked(player.StateEnded, "broadcast ended")
	}
}

// downloadLocked fills the forward buffer. Segment errors pause the
// downloader for a backoff delay.
func (p *Player) downloadLocked(dt time.Duration) {
	if p.retryWait > 0 {
		p.retryWait -= dt
		if p.retryWait > 0 {
			return
		}
		p.retryWait = 0
	}

	limit := p.contentEndLocked()
	if p.buffered >= limit || p.buffered-p.position >= p.cfg.TargetBuffer {
		return
	}

	if p.chance(p.cfg.ErrorRate, dt) {
		e := segmentErrors[p.rng.Intn(len(segmentErrors))]
		p.errorsInjected++
		p.retryWait = p.retry.next()
		p.emitLocked(player.Error(e.code, e.message))
		p.recordHistoryLocked(e.code)
		return
	}

	speed := p.cfg.DownloadFactor * (1 + downloadJitter*(p.rng.Float64()-0.5))
	media := time.Duration(float64(dt) * speed)
	if p.buffered+media > limit {
		media = limit - p.buffered
	}
	p.buffered += media

	bitrate := p.ladder[p.rung].BitrateBps
	p.current.bandwidthBytes += media.Seconds() * float64(bitrate) / 8
	p.current.bandwidthTime += dt
	p.retry.reset()
}

func (p *Player) playLocked(dt time.Duration) {
	advance := dt
	if p.position+advance > p.buffered {
		advance = p.buffered - p.position
	}
	p.position += advance
	p.renderLocked(advance)

	end := p.contentEndLocked()
	if !p.cfg.Live && p.position >= end {
		p.position = end
		p.setStateLocked(player.StateEnded, "end of stream")
		return
	}

	if p.chance(p.cfg.RebufferRate, dt) {
		// Lost the forward buffer, for example after a discontinuity.
		p.buffered = p.position
	}
	if p.buffered <= p.position {
		p.current.rebuffers++
		p.stableFor = 0
		if p.rung < len(p.ladder)-1 {
			p.rung++
		}
		p.setStateLocked(player.StateBuffering, "stall")
		return
	}

	p.stableFor += dt
	if p.stableFor >= upswitchAfter && p.rung > 0 && p.buffered-p.position >= p.cfg.TargetBuffer/2 {
		p.rung--
		p.stableFor = 0
	}
}

// renderLocked counts the frames for d of played media.
func (p *Player) renderLocked(d time.Duration) {
	p.frameAcc += d.Seconds() * p.cfg.FrameRate
	frames := math.Floor(p.frameAcc)
	p.frameAcc -= frames

	p.dropAcc += frames * p.cfg.DropRate
	drops := math.Floor(p.dropAcc)
	p.dropAcc -= drops

	p.current.rendered += int64(frames - drops)
	p.current.dropped += int64(drops)
}

func (p *Player) canStartLocked() bool {
	ahead := p.buffered - p.position
	return ahead >= p.cfg.StartThreshold || p.buffered >= p.contentEndLocked()
}

// contentEndLocked is the furthest position that can be downloaded.
func (p *Player) contentEndLocked() time.Duration {
	if p.cfg.Live {
		return p.liveEdge
	}
	return p.cfg.ContentDuration
}

// chance reports whether an event expected ratePerMinute times per minute
// happens within dt.
func (p *Player) chance(ratePerMinute float64, dt time.Duration) bool {
	if ratePerMinute <= 0 {
		return false
	}
	return p.rng.Float64() < ratePerMinute*dt.Minutes()
}

func (p *Player) setStateLocked(s player.State, detail string) {
	if p.state == s {
		return
	}
	p.state = s
	p.emitLocked(player.StateChanged(s))
	p.recordHistoryLocked(detail)
}

func (p *Player) recordHistoryLocked(detail string) {
	if p.history == 0 {
		return
	}
	p.current.history = append(p.current.history, player.HistoryEntry{
		TimestampMs: time.Duration(p.elapsedNs.Load()).Milliseconds(),
		State:       p.state,
		Detail:      detail,
	})
}

func (p *Player) emitLocked(ev player.Event) {
	p.pending = append(p.pending, ev)
}

// drainLocked takes the pending events and a copy of the subscribers in
// registration order.
func (p *Player) drainLocked() ([]player.Event, []func(player.Event)) {
	if len(p.pending) == 0 {
		return nil, nil
	}
	events := p.pending
	p.pending = nil

	subs := make([]func(player.Event), 0, len(p.subs))
	for id := 0; id < p.nextSub; id++ {
		if fn, ok := p.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	return events, subs
}

func dispatch(events []player.Event, subs []func(player.Event)) {
	for _, ev := range events {
		for _, fn := range subs {
			fn(ev)
		}
	}
}
