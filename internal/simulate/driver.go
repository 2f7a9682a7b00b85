package simulate

import (
	"log/slog"
	"sync"
	"time"

	"github.com/randomizedcoder/go-hls-playstats/internal/player"
)

// Scheduler runs delayed tasks on the player's execution context.
// internal/looper.Looper implements it.
type Scheduler interface {
	PostDelayed(fn func(), d time.Duration) (cancel func() bool)
}

// DriverConfig controls how a Driver advances a Player.
type DriverConfig struct {
	// Step is the simulated time per tick (default: 100ms).
	Step time.Duration

	// Speed is simulated seconds per wall second (default: 1).
	Speed float64

	// Sessions is the number of sessions to play; 0 plays forever.
	Sessions int

	// Gap is the simulated pause between the end of one session and the
	// next Load (default: 1s).
	Gap time.Duration

	// OnFinished runs on the scheduler once the last session has ended.
	OnFinished func()

	Logger *slog.Logger
}

// Driver ticks a Player from a Scheduler and loads successive sessions.
//
// Thread-safe: Start and Stop may be called from any goroutine; ticks run on
// the scheduler.
type Driver struct {
	player *Player
	sched  Scheduler
	cfg    DriverConfig
	wall   time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	cancel  func() bool
	stopped bool

	// Scheduler-confined.
	ended   int
	gapLeft time.Duration
	waiting bool
}

// NewDriver creates a driver. Nothing happens until Start.
func NewDriver(p *Player, s Scheduler, cfg DriverConfig) *Driver {
	if cfg.Step <= 0 {
		cfg.Step = maxStep
	}
	if cfg.Speed <= 0 {
		cfg.Speed = 1
	}
	if cfg.Gap < 0 {
		cfg.Gap = 0
	} else if cfg.Gap == 0 {
		cfg.Gap = time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		player: p,
		sched:  s,
		cfg:    cfg,
		wall:   time.Duration(float64(cfg.Step) / cfg.Speed),
		logger: logger,
	}
}

// Start loads the first session and begins ticking.
func (d *Driver) Start() {
	d.schedule(0, func() {
		d.player.Load()
		d.logger.Info("simulated_session_loaded", "session", d.player.Session())
		d.tick()
	})
}

// Stop cancels the pending tick. It is safe to call more than once.
func (d *Driver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

// SessionsEnded returns the number of sessions that reached the end.
// Only meaningful on the scheduler or after the driver has finished.
func (d *Driver) SessionsEnded() int {
	return d.ended
}

func (d *Driver) schedule(delay time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.cancel = d.sched.PostDelayed(fn, delay)
}

func (d *Driver) tick() {
	d.mu.Lock()
	stopped := d.stopped
	d.mu.Unlock()
	if stopped {
		return
	}

	d.player.Advance(d.cfg.Step)

	if d.waiting {
		d.gapLeft -= d.cfg.Step
		if d.gapLeft <= 0 {
			d.waiting = false
			d.player.Load()
			d.logger.Info("simulated_session_loaded", "session", d.player.Session())
		}
	} else if d.player.State() == player.StateEnded {
		d.ended++
		d.logger.Info("simulated_session_finished", "session", d.player.Session(), "sessions_ended", d.ended)
		if d.cfg.Sessions > 0 && d.ended >= d.cfg.Sessions {
			if d.cfg.OnFinished != nil {
				d.cfg.OnFinished()
			}
			return
		}
		d.waiting = true
		d.gapLeft = d.cfg.Gap
	}

	d.schedule(d.wall, d.tick)
}
