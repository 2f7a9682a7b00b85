// Package timeseries turns the cumulative byte counter carried by playback
// snapshots into rolling network throughput.
//
// Snapshots report bytes loaded for the current session, so the counter
// restarts at every new session. The tracker folds those restarts into one
// monotonic total before computing rolling averages over fixed windows
// (1s, 30s, 60s, 300s).
//
// Thread-safe: Observe is called from the sampling loop, GetStats from
// display goroutines.
package timeseries

import (
	"sync"
	"time"

	"github.com/randomizedcoder/go-hls-playstats/internal/stats"
)

const (
	// ringBufferSize is the number of samples to retain (5 minutes at 1 sample/sec)
	ringBufferSize = 300

	// Window durations for rolling averages
	window1s   = 1 * time.Second
	window30s  = 30 * time.Second
	window60s  = 60 * time.Second
	window300s = 300 * time.Second
)

// Clock interface for testing with deterministic time.
type Clock interface {
	Now() time.Time
}

// realClock uses time.Now() for production.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// sample is the folded cumulative byte count at one observation.
type sample struct {
	timestamp time.Time
	bytes     int64
}

// ThroughputTracker computes rolling download throughput from per-session
// cumulative byte counts.
//
// Usage:
//
//	tracker := NewThroughputTracker()
//	coll.AddListener(tracker)  // Observe on every snapshot
//	stats := tracker.GetStats()
type ThroughputTracker struct {
	mu sync.RWMutex

	// Ring buffer of samples for rolling average calculation
	samples  []sample
	writeIdx int

	// Session folding: bytes carried over from earlier sessions plus the
	// last raw value seen in the current one. folded is set between an
	// ended session and the first bytes of the next.
	carried      int64
	sessionBytes int64
	sessions     int
	folded       bool

	startTime time.Time
	clock     Clock
}

// ThroughputStats contains computed rolling averages at a point in time.
type ThroughputStats struct {
	// TotalBytes is the folded byte count across all sessions.
	TotalBytes int64

	// Sessions is the number of sessions observed (at least 1 once any
	// bytes were seen).
	Sessions int

	// Rolling averages (bytes per second)
	Avg1s   float64
	Avg30s  float64
	Avg60s  float64
	Avg300s float64

	// AvgOverall is the average throughput since tracking started
	AvgOverall float64
}

// BitsPerSecond converts a bytes/sec average to bits/sec.
func BitsPerSecond(bytesPerSec float64) float64 {
	return bytesPerSec * 8
}

// NewThroughputTracker creates a new tracker with real clock.
func NewThroughputTracker() *ThroughputTracker {
	return NewThroughputTrackerWithClock(realClock{})
}

// NewThroughputTrackerWithClock creates a tracker with custom clock for testing.
func NewThroughputTrackerWithClock(clock Clock) *ThroughputTracker {
	now := clock.Now()
	t := &ThroughputTracker{
		samples:   make([]sample, 0, ringBufferSize),
		startTime: now,
		clock:     clock,
	}
	t.samples = append(t.samples, sample{timestamp: now, bytes: 0})
	return t
}

// Observe records sessionBytes, the cumulative bytes loaded in the current
// session. The first value after OnSessionEnded belongs to a new session,
// and so does any value lower than the previous one; the previous
// session's total is carried forward.
func (t *ThroughputTracker) Observe(sessionBytes int64) {
	if sessionBytes < 0 {
		sessionBytes = 0
	}
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case t.folded:
		if sessionBytes > 0 {
			t.folded = false
			t.sessions++
		}
	case sessionBytes < t.sessionBytes:
		t.carried += t.sessionBytes
		t.sessions++
	}
	if t.sessions == 0 && sessionBytes > 0 {
		t.sessions = 1
	}
	t.sessionBytes = sessionBytes

	t.recordLocked(sample{timestamp: now, bytes: t.carried + sessionBytes})
}

// OnUpdate implements collector.Listener. Once a session has been folded,
// snapshots still showing it ended repeat its bytes and are not counted
// again.
func (t *ThroughputTracker) OnUpdate(snap stats.PlaybackSnapshot) {
	if snap.State == stats.StateEnded && t.isFolded() {
		t.Observe(0)
		return
	}
	t.Observe(snap.Network.TotalBytesLoaded)
}

// OnSessionEnded implements collector.Listener. It carries the ended
// session's bytes forward, taking the larger of the last observed value
// and the final snapshot's, so the next session starts from zero.
func (t *ThroughputTracker) OnSessionEnded(final *stats.PlaybackSnapshot) {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.folded {
		return
	}
	ended := t.sessionBytes
	if final != nil {
		ended = max(ended, final.Network.TotalBytesLoaded)
	}
	if t.sessions == 0 && ended > 0 {
		t.sessions = 1
	}
	t.carried += ended
	t.sessionBytes = 0
	t.folded = true

	t.recordLocked(sample{timestamp: now, bytes: t.carried})
}

func (t *ThroughputTracker) isFolded() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.folded
}

func (t *ThroughputTracker) recordLocked(s sample) {
	if len(t.samples) < ringBufferSize {
		t.samples = append(t.samples, s)
		return
	}
	t.samples[t.writeIdx] = s
	t.writeIdx = (t.writeIdx + 1) % ringBufferSize
}

// GetStats computes and returns current throughput statistics.
// Always returns valid data, using whatever history is available.
func (t *ThroughputTracker) GetStats() ThroughputStats {
	now := t.clock.Now()

	t.mu.RLock()
	defer t.mu.RUnlock()

	current := t.carried + t.sessionBytes
	stats := ThroughputStats{
		TotalBytes: current,
		Sessions:   t.sessions,
	}

	elapsed := now.Sub(t.startTime).Seconds()
	if elapsed > 0 {
		stats.AvgOverall = float64(current) / elapsed
	}

	stats.Avg1s = t.avgOverWindow(now, current, window1s)
	stats.Avg30s = t.avgOverWindow(now, current, window30s)
	stats.Avg60s = t.avgOverWindow(now, current, window60s)
	stats.Avg300s = t.avgOverWindow(now, current, window300s)

	return stats
}

// avgOverWindow calculates average bytes/sec over the specified window.
// Must be called with mu held (at least RLock).
func (t *ThroughputTracker) avgOverWindow(now time.Time, currentBytes int64, window time.Duration) float64 {
	if len(t.samples) == 0 {
		return 0
	}

	targetTime := now.Add(-window)

	// Newest sample at or before the window start.
	var best *sample
	for i := range t.samples {
		s := &t.samples[i]
		if s.timestamp.After(targetTime) {
			continue
		}
		if best == nil || s.timestamp.After(best.timestamp) {
			best = s
		}
	}
	if best == nil {
		best = t.oldestSample()
	}

	elapsed := now.Sub(best.timestamp).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(currentBytes-best.bytes) / elapsed
}

// oldestSample returns the oldest sample in the ring buffer.
// Must be called with mu held.
func (t *ThroughputTracker) oldestSample() *sample {
	if len(t.samples) < ringBufferSize {
		return &t.samples[0]
	}
	return &t.samples[t.writeIdx]
}

// Reset clears all data and restarts tracking.
func (t *ThroughputTracker) Reset() {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.samples = t.samples[:0]
	t.samples = append(t.samples, sample{timestamp: now, bytes: 0})
	t.writeIdx = 0
	t.carried = 0
	t.sessionBytes = 0
	t.sessions = 0
	t.folded = false
	t.startTime = now
}

// SampleCount returns the number of samples in the ring buffer.
func (t *ThroughputTracker) SampleCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.samples)
}
