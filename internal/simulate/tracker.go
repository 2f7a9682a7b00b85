package simulate

import (
	"slices"
	"sync/atomic"
	"time"

	"github.com/randomizedcoder/go-hls-playstats/internal/player"
)

// totals are the analytics aggregates of one session, or of several folded
// together.
type totals struct {
	bandwidthTime  time.Duration
	bandwidthBytes float64
	joinTime       time.Duration
	rebuffers      int64
	rebufferTime   time.Duration
	dropped        int64
	rendered       int64
	history        []player.HistoryEntry
}

func (t *totals) add(o totals) {
	t.bandwidthTime += o.bandwidthTime
	t.bandwidthBytes += o.bandwidthBytes
	t.joinTime += o.joinTime
	t.rebuffers += o.rebuffers
	t.rebufferTime += o.rebufferTime
	t.dropped += o.dropped
	t.rendered += o.rendered
	t.history = append(t.history, o.history...)
}

func (t totals) stats(keepHistory bool) player.PlaybackStats {
	s := player.PlaybackStats{
		TotalBandwidthTimeMs: t.bandwidthTime.Milliseconds(),
		TotalBandwidthBytes:  int64(t.bandwidthBytes),
		TotalJoinTimeMs:      t.joinTime.Milliseconds(),
		TotalRebufferCount:   t.rebuffers,
		TotalRebufferTimeMs:  t.rebufferTime.Milliseconds(),
		TotalDroppedFrames:   t.dropped,
		TotalRenderedFrames:  t.rendered,
	}
	if keepHistory {
		s.History = slices.Clone(t.history)
	}
	return s
}

// tracker is the player.StatsTracker handed out by TrackStats.
type tracker struct {
	p           *Player
	keepHistory bool
	closed      atomic.Bool
}

func (t *tracker) Session() (player.PlaybackStats, bool) {
	if t.closed.Load() {
		return player.PlaybackStats{}, false
	}
	t.p.mu.Lock()
	defer t.p.mu.Unlock()
	if !t.p.loaded {
		return player.PlaybackStats{}, false
	}
	return t.p.current.stats(t.keepHistory), true
}

// Combined covers every session the player has loaded.
func (t *tracker) Combined() player.PlaybackStats {
	t.p.mu.Lock()
	defer t.p.mu.Unlock()
	all := totals{}
	all.add(t.p.completed)
	all.add(t.p.current)
	return all.stats(t.keepHistory)
}

func (t *tracker) Close() {
	if !t.closed.CompareAndSwap(false, true) {
		return
	}
	t.p.mu.Lock()
	delete(t.p.trackers, t)
	if t.keepHistory {
		t.p.history--
	}
	t.p.mu.Unlock()
}

// Trackers returns the number of attached stats trackers.
func (p *Player) Trackers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.trackers)
}
