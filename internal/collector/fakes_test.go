package collector

import (
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/randomizedcoder/go-hls-playstats/internal/player"
	"github.com/randomizedcoder/go-hls-playstats/internal/stats"
)

// =============================================================================
// manualExecutor: deterministic Executor driven by virtual time
// =============================================================================

type manualTask struct {
	due       time.Duration
	seq       int
	fn        func()
	ran       bool
	cancelled bool
}

type manualExecutor struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	tasks  []*manualTask
	closed bool
}

func (e *manualExecutor) Post(fn func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.enqueueLocked(fn, 0)
	return true
}

func (e *manualExecutor) PostDelayed(fn func(), d time.Duration) func() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.enqueueLocked(fn, d)
	return func() bool {
		e.mu.Lock()
		defer e.mu.Unlock()
		if t.ran || t.cancelled {
			return false
		}
		t.cancelled = true
		return true
	}
}

func (e *manualExecutor) enqueueLocked(fn func(), d time.Duration) *manualTask {
	e.seq++
	t := &manualTask{due: e.now + d, seq: e.seq, fn: fn}
	e.tasks = append(e.tasks, t)
	return t
}

// RunPending runs every task that is due, including tasks posted by tasks.
func (e *manualExecutor) RunPending() {
	for {
		e.mu.Lock()
		sort.SliceStable(e.tasks, func(i, j int) bool {
			if e.tasks[i].due != e.tasks[j].due {
				return e.tasks[i].due < e.tasks[j].due
			}
			return e.tasks[i].seq < e.tasks[j].seq
		})
		var next *manualTask
		for i, t := range e.tasks {
			if t.due > e.now {
				break
			}
			e.tasks = append(e.tasks[:i], e.tasks[i+1:]...)
			if t.cancelled {
				next = &manualTask{fn: func() {}}
			} else {
				t.ran = true
				next = t
			}
			break
		}
		e.mu.Unlock()

		if next == nil {
			return
		}
		next.fn()
	}
}

// Advance moves virtual time forward and runs due tasks.
func (e *manualExecutor) Advance(d time.Duration) {
	e.mu.Lock()
	e.now += d
	e.mu.Unlock()
	e.RunPending()
}

// Pending returns the number of tasks that have not run or been cancelled.
func (e *manualExecutor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, t := range e.tasks {
		if !t.cancelled {
			n++
		}
	}
	return n
}

// =============================================================================
// fakePlayer / fakeTracker
// =============================================================================

type fakeTracker struct {
	mu         sync.Mutex
	session    player.PlaybackStats
	hasSession bool
	combined   player.PlaybackStats
	closed     int
}

func (t *fakeTracker) Session() (player.PlaybackStats, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session, t.hasSession
}

func (t *fakeTracker) Combined() player.PlaybackStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.combined
}

func (t *fakeTracker) Close() {
	t.mu.Lock()
	t.closed++
	t.mu.Unlock()
}

type fakePlayer struct {
	mu       sync.Mutex
	state    player.State
	position int64
	buffered int64
	decoder  player.DecoderCounters
	tracker  *fakeTracker

	subscribers  map[int]func(player.Event)
	nextSub      int
	unsubscribed int
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{
		state:       player.StateReady,
		tracker:     &fakeTracker{hasSession: true},
		subscribers: make(map[int]func(player.Event)),
	}
}

func (p *fakePlayer) State() player.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *fakePlayer) IsPlaying() bool { return p.State() == player.StateReady }

func (p *fakePlayer) PositionMs() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

func (p *fakePlayer) DurationMs() (int64, bool) { return 60_000, true }

func (p *fakePlayer) BufferedPositionMs() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffered
}

func (p *fakePlayer) VideoFormat() (player.VideoFormat, bool) {
	return player.VideoFormat{Width: 1280, Height: 720, FrameRate: 30, BitrateBps: 2_000_000}, true
}

func (p *fakePlayer) DecoderCounters() (player.DecoderCounters, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.decoder, true
}

func (p *fakePlayer) IsLive() bool                { return false }
func (p *fakePlayer) LiveOffsetMs() (int64, bool) { return 0, false }

func (p *fakePlayer) TrackStats(bool) player.StatsTracker { return p.tracker }

func (p *fakePlayer) Subscribe(fn func(player.Event)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSub
	p.nextSub++
	p.subscribers[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if _, ok := p.subscribers[id]; ok {
			delete(p.subscribers, id)
			p.unsubscribed++
		}
	}
}

// emit delivers ev to subscribers, as the player's event thread would.
func (p *fakePlayer) emit(ev player.Event) {
	p.mu.Lock()
	if ev.Kind == player.EventStateChanged {
		p.state = ev.State
	}
	subs := make([]func(player.Event), 0, len(p.subscribers))
	for _, fn := range p.subscribers {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}

// play advances playback counters by one step.
func (p *fakePlayer) play(frames int64, dropped int64, bytes int64) {
	p.mu.Lock()
	p.position += 1000
	p.buffered = p.position + 4000
	p.decoder.RenderedFrames += frames
	p.decoder.DroppedFrames += dropped
	p.mu.Unlock()

	p.tracker.mu.Lock()
	for _, s := range []*player.PlaybackStats{&p.tracker.session, &p.tracker.combined} {
		s.TotalBandwidthBytes += bytes
		s.TotalBandwidthTimeMs += 100
		s.TotalRenderedFrames += frames
		s.TotalDroppedFrames += dropped
	}
	p.tracker.mu.Unlock()
}

// newSession resets session stats and decoder counters while lifetime stats
// keep accumulating.
func (p *fakePlayer) newSession() {
	p.mu.Lock()
	p.position, p.buffered = 0, 0
	p.decoder = player.DecoderCounters{}
	p.mu.Unlock()

	p.tracker.mu.Lock()
	p.tracker.session = player.PlaybackStats{}
	p.tracker.combined.TotalRebufferCount++
	p.tracker.mu.Unlock()
}

func (p *fakePlayer) subscriberCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subscribers)
}

// =============================================================================
// recordingListener
// =============================================================================

type recordingListener struct {
	mu       sync.Mutex
	updates  []stats.PlaybackSnapshot
	ended    []*stats.PlaybackSnapshot
	onUpdate func()
}

func (l *recordingListener) OnUpdate(snap stats.PlaybackSnapshot) {
	l.mu.Lock()
	l.updates = append(l.updates, snap)
	hook := l.onUpdate
	l.mu.Unlock()
	if hook != nil {
		hook()
	}
}

func (l *recordingListener) OnSessionEnded(final *stats.PlaybackSnapshot) {
	l.mu.Lock()
	l.ended = append(l.ended, final)
	l.mu.Unlock()
}

func (l *recordingListener) updateCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.updates)
}

func (l *recordingListener) endedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ended)
}

func (l *recordingListener) lastUpdate() stats.PlaybackSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.updates[len(l.updates)-1]
}

// panicListener panics on every callback.
type panicListener struct{}

func (panicListener) OnUpdate(stats.PlaybackSnapshot)        { panic("listener update failure") }
func (panicListener) OnSessionEnded(*stats.PlaybackSnapshot) { panic("listener end failure") }

// taggedListener has value receivers and a slice field, so its values
// cannot be compared with ==.
type taggedListener struct {
	tags []string
}

func (taggedListener) OnUpdate(stats.PlaybackSnapshot)        {}
func (taggedListener) OnSessionEnded(*stats.PlaybackSnapshot) {}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const testInterval = time.Second

func newTestCollector(p *fakePlayer, exec *manualExecutor) *Collector {
	return New(p, exec, Config{
		UpdateInterval: testInterval,
		Logger:         discardLogger(),
	})
}
