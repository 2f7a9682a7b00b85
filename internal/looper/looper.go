// Package looper provides a single-goroutine serial task loop.
//
// A Looper is the execution context that owns a media player: every task
// posted to it runs on the same goroutine, one at a time, in submission
// order. Delayed tasks are handed to the loop when their timer fires.
package looper

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultQueueSize is the capacity of the task queue.
const DefaultQueueSize = 256

// Looper runs posted tasks sequentially on one goroutine.
//
// Thread-safe: Post, PostDelayed and Quit may be called from any goroutine,
// including from a task running on the loop.
type Looper struct {
	name   string
	logger *slog.Logger

	tasks chan func()
	quit  chan struct{}
	done  chan struct{}

	quitOnce  sync.Once
	startOnce sync.Once
	running   atomic.Bool

	// Counters (atomic, lock-free)
	executed atomic.Int64
	panics   atomic.Int64
}

// New creates a looper. Call Start or Run before posting work that must
// execute.
func New(name string, logger *slog.Logger) *Looper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Looper{
		name:   name,
		logger: logger,
		tasks:  make(chan func(), DefaultQueueSize),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start runs the loop in a new goroutine and returns immediately.
func (l *Looper) Start() {
	go l.Run()
}

// Run executes tasks until Quit is called. It blocks. Calling Run more than
// once is a no-op for every call after the first.
func (l *Looper) Run() {
	started := false
	l.startOnce.Do(func() { started = true })
	if !started {
		return
	}

	l.running.Store(true)
	defer func() {
		l.running.Store(false)
		close(l.done)
	}()

	l.logger.Debug("looper_started", "looper", l.name)
	for {
		select {
		case <-l.quit:
			l.logger.Debug("looper_stopped", "looper", l.name, "executed", l.executed.Load())
			return
		case fn := <-l.tasks:
			l.execute(fn)
		}
	}
}

// execute runs one task. A panicking task is logged and does not stop the
// loop.
func (l *Looper) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.panics.Add(1)
			l.logger.Error("looper_task_panic", "looper", l.name, "panic", r)
		}
	}()
	l.executed.Add(1)
	fn()
}

// Post enqueues fn. It returns false if the looper has quit.
//
// Post blocks while the queue is full, so a task must not flood its own
// looper with more than DefaultQueueSize posts.
func (l *Looper) Post(fn func()) bool {
	select {
	case <-l.quit:
		return false
	default:
	}

	select {
	case l.tasks <- fn:
		return true
	case <-l.quit:
		return false
	}
}

// PostDelayed enqueues fn after d. The returned cancel function prevents fn
// from running if it has not started yet; it reports whether the task was
// cancelled before running.
func (l *Looper) PostDelayed(fn func(), d time.Duration) (cancel func() bool) {
	var state atomic.Int32 // 0 pending, 1 started, 2 cancelled

	run := func() {
		if state.CompareAndSwap(0, 1) {
			fn()
		}
	}

	if d <= 0 {
		l.Post(run)
	} else {
		timer := time.AfterFunc(d, func() { l.Post(run) })
		return func() bool {
			timer.Stop()
			return state.CompareAndSwap(0, 2)
		}
	}

	return func() bool {
		return state.CompareAndSwap(0, 2)
	}
}

// Quit stops the loop after the task currently executing, if any. Pending
// tasks are discarded. Idempotent.
func (l *Looper) Quit() {
	l.quitOnce.Do(func() {
		close(l.quit)
	})
}

// Done returns a channel closed when Run has returned.
func (l *Looper) Done() <-chan struct{} {
	return l.done
}

// Running reports whether the loop goroutine is active.
func (l *Looper) Running() bool {
	return l.running.Load()
}

// Executed returns the number of tasks run.
func (l *Looper) Executed() int64 {
	return l.executed.Load()
}

// Panics returns the number of tasks that panicked.
func (l *Looper) Panics() int64 {
	return l.panics.Load()
}
