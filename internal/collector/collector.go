// Package collector samples a media player on a fixed cadence and fans the
// resulting playback snapshots out to registered listeners.
//
// A Collector is bound to one player for its whole lifetime and to one
// Executor, the execution context on which the player may be read. Every
// tick, player event and adapter disposal runs on that executor.
package collector

import (
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randomizedcoder/go-hls-playstats/internal/player"
	"github.com/randomizedcoder/go-hls-playstats/internal/stats"
)

// DefaultUpdateInterval is the sampling cadence when none is configured.
const DefaultUpdateInterval = time.Second

// Executor runs tasks serially on the player's execution context.
// internal/looper.Looper implements it.
type Executor interface {
	// Post enqueues fn and reports whether it was accepted.
	Post(fn func()) bool

	// PostDelayed enqueues fn after d. cancel prevents a pending fn from
	// running.
	PostDelayed(fn func(), d time.Duration) (cancel func() bool)
}

// Config holds configuration for creating a Collector. It is copied at
// construction and never changes afterwards.
type Config struct {
	// UpdateInterval is the time between sampling ticks.
	UpdateInterval time.Duration

	// KeepHistory retains the player's detailed event history.
	KeepHistory bool

	Logger *slog.Logger // defaults to slog.Default()
	Clock  stats.Clock  // defaults to the wall clock
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		UpdateInterval: DefaultUpdateInterval,
		KeepHistory:    false,
	}
}

// Stats are collector-level counters.
type Stats struct {
	Ticks          int64
	Updates        int64
	SessionsEnded  int64
	ErrorsRecorded int64
	ListenerPanics int64
}

// Collector owns the sampling loop and listener fan-out for one player.
//
// Thread-safe: listener registration, Release and the Request* methods may
// be called from any goroutine.
type Collector struct {
	player   player.Player
	exec     Executor
	adapter  *stats.Adapter
	interval time.Duration
	logger   *slog.Logger

	// Listener set; held only to mutate or copy, never while notifying.
	mu        sync.RWMutex
	listeners []Listener

	released    atomic.Bool
	schedMu     sync.Mutex
	cancelTick  func() bool
	unsubscribe func()

	// Executor-confined session tracking.
	sessionEnded bool

	// Counters (atomic, lock-free)
	ticks          atomic.Int64
	updates        atomic.Int64
	sessionsEnded  atomic.Int64
	errorsRecorded atomic.Int64
	listenerPanics atomic.Int64
}

// New attaches a collector to p and schedules the first tick on exec with
// no delay.
func New(p player.Player, exec Executor, cfg Config) *Collector {
	interval := cfg.UpdateInterval
	if interval <= 0 {
		interval = DefaultUpdateInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Collector{
		player:   p,
		exec:     exec,
		interval: interval,
		logger:   logger,
		adapter: stats.NewAdapter(p, stats.AdapterConfig{
			KeepHistory: cfg.KeepHistory,
			Clock:       cfg.Clock,
			Logger:      logger,
		}),
	}

	c.unsubscribe = p.Subscribe(c.onPlayerEvent)
	c.schedule(0)

	logger.Debug("collector_started", "interval", interval.String(), "keep_history", cfg.KeepHistory)
	return c
}

// --- Listener registry ---

// AddListener registers l. Adding a listener that is already registered,
// or adding after Release, is a no-op. A listener whose value cannot be
// compared (a value receiver on a type holding a slice, map or func) is
// rejected with a warning.
func (c *Collector) AddListener(l Listener) {
	if l == nil {
		return
	}
	if !isComparable(l) {
		c.logger.Warn("listener_not_comparable", "type", fmt.Sprintf("%T", l))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released.Load() {
		return
	}
	if slices.Contains(c.listeners, l) {
		return
	}
	c.listeners = append(c.listeners, l)
}

// RemoveListener deregisters l. Removing an unknown listener is a no-op.
func (c *Collector) RemoveListener(l Listener) {
	if l == nil || !isComparable(l) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if i := slices.Index(c.listeners, l); i >= 0 {
		c.listeners = slices.Delete(c.listeners, i, i+1)
	}
}

// isComparable reports whether l can be compared with == without panicking.
// Every registered listener satisfies it.
func isComparable(l Listener) bool {
	return reflect.ValueOf(l).Comparable()
}

// RemoveAllListeners deregisters every listener.
func (c *Collector) RemoveAllListeners() {
	c.mu.Lock()
	c.listeners = nil
	c.mu.Unlock()
}

// ListenerCount returns the number of registered listeners.
func (c *Collector) ListenerCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.listeners)
}

// --- On-demand snapshots ---

// CurrentSnapshot reads the player directly. It must be called on the
// executor (for example from a listener); use RequestSnapshot elsewhere.
// It never notifies listeners.
func (c *Collector) CurrentSnapshot() (stats.PlaybackSnapshot, bool) {
	return c.safeCurrent()
}

// CombinedSnapshot reads the player directly and must be called on the
// executor. It never notifies listeners.
func (c *Collector) CombinedSnapshot() stats.PlaybackSnapshot {
	return c.adapter.CombinedSnapshot()
}

// RequestSnapshot computes the current snapshot on the executor and passes
// it to fn there. It reports whether the request was accepted.
func (c *Collector) RequestSnapshot(fn func(snap stats.PlaybackSnapshot, ok bool)) bool {
	return c.exec.Post(func() {
		snap, ok := c.safeCurrent()
		fn(snap, ok)
	})
}

// RequestCombinedSnapshot computes the combined snapshot on the executor
// and passes it to fn there.
func (c *Collector) RequestCombinedSnapshot(fn func(snap stats.PlaybackSnapshot)) bool {
	return c.exec.Post(func() {
		fn(c.adapter.CombinedSnapshot())
	})
}

// Errors returns a copy of the recorded player errors.
func (c *Collector) Errors() []stats.PlaybackError {
	return c.adapter.Errors()
}

// ClearErrors empties the recorded player errors.
func (c *Collector) ClearErrors() {
	c.adapter.ClearErrors()
}

// --- Lifecycle ---

// Release stops sampling, detaches from the player, disposes the adapter
// and clears all listeners. A tick already running completes; no later
// tick or session-end notification is delivered. Idempotent, and safe to
// call from a listener callback.
func (c *Collector) Release() {
	if !c.released.CompareAndSwap(false, true) {
		return
	}

	c.schedMu.Lock()
	cancel := c.cancelTick
	c.cancelTick = nil
	c.schedMu.Unlock()
	if cancel != nil {
		cancel()
	}

	if c.unsubscribe != nil {
		c.unsubscribe()
	}

	// Dispose on the executor so it cannot race an in-flight tick.
	if !c.exec.Post(c.adapter.Dispose) {
		c.adapter.Dispose()
	}

	c.RemoveAllListeners()

	c.logger.Info("collector_released",
		"ticks", c.ticks.Load(),
		"updates", c.updates.Load(),
		"sessions_ended", c.sessionsEnded.Load(),
	)
}

// Released reports whether Release has been called.
func (c *Collector) Released() bool {
	return c.released.Load()
}

// Stats returns collector-level counters.
func (c *Collector) Stats() Stats {
	return Stats{
		Ticks:          c.ticks.Load(),
		Updates:        c.updates.Load(),
		SessionsEnded:  c.sessionsEnded.Load(),
		ErrorsRecorded: c.errorsRecorded.Load(),
		ListenerPanics: c.listenerPanics.Load(),
	}
}

// --- Sampling ---

// schedule posts the next tick after d unless released.
func (c *Collector) schedule(d time.Duration) {
	c.schedMu.Lock()
	defer c.schedMu.Unlock()

	if c.released.Load() {
		return
	}
	c.cancelTick = c.exec.PostDelayed(c.tick, d)
}

// tick samples the player once and re-schedules itself after the fan-out
// completes, so there is never more than one tick in flight.
func (c *Collector) tick() {
	if c.released.Load() {
		return
	}
	defer c.schedule(c.interval)

	c.ticks.Add(1)
	snap, ok := c.safeCurrent()
	if !ok {
		return
	}

	c.updates.Add(1)
	c.notify("on_update", func(l Listener) {
		l.OnUpdate(snap)
	})
}

// safeCurrent returns the current snapshot, treating a panic as absent.
func (c *Collector) safeCurrent() (snap stats.PlaybackSnapshot, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("snapshot_failed", "panic", r)
			snap, ok = stats.PlaybackSnapshot{}, false
		}
	}()
	return c.adapter.CurrentSnapshot()
}

// --- Player events ---

// onPlayerEvent may run on any goroutine; it marshals the event onto the
// executor.
func (c *Collector) onPlayerEvent(ev player.Event) {
	if c.released.Load() {
		return
	}
	if !c.exec.Post(func() { c.handleEvent(ev) }) {
		c.logger.Debug("player_event_dropped", "event", ev.String())
	}
}

func (c *Collector) handleEvent(ev player.Event) {
	if c.released.Load() {
		return
	}

	switch ev.Kind {
	case player.EventError:
		c.adapter.RecordError(ev.Code, ev.Message)
		c.errorsRecorded.Add(1)
		c.logger.Warn("player_error", "code", ev.Code, "message", ev.Message)
	case player.EventStateChanged:
		c.handleStateChange(ev.State)
	}
}

// handleStateChange fires OnSessionEnded once per transition into the
// terminal state. Repeated terminal signals are ignored until the player
// leaves it, which also starts a new session.
func (c *Collector) handleStateChange(s player.State) {
	if !s.IsTerminal() {
		if c.sessionEnded {
			c.sessionEnded = false
			c.adapter.BeginSession()
			c.logger.Info("session_started", "state", s.String())
		}
		return
	}

	if c.sessionEnded {
		c.logger.Debug("duplicate_session_end_ignored")
		return
	}
	c.sessionEnded = true
	c.sessionsEnded.Add(1)

	final, ok := c.safeCurrent()
	c.logger.Info("session_ended", "has_final_snapshot", ok)

	c.notify("on_session_ended", func(l Listener) {
		if !ok {
			l.OnSessionEnded(nil)
			return
		}
		own := final
		l.OnSessionEnded(&own)
	})
}

// --- Fan-out ---

// notify calls fn for a stable copy of the listener set. The lock is not
// held during callbacks.
func (c *Collector) notify(callback string, fn func(Listener)) {
	c.mu.RLock()
	listeners := slices.Clone(c.listeners)
	c.mu.RUnlock()

	for _, l := range listeners {
		c.invoke(callback, l, fn)
	}
}

// invoke isolates one listener: a panic is logged and counted.
func (c *Collector) invoke(callback string, l Listener, fn func(Listener)) {
	defer func() {
		if r := recover(); r != nil {
			c.listenerPanics.Add(1)
			c.logger.Warn("listener_panic", "callback", callback, "panic", r)
		}
	}()
	fn(l)
}
