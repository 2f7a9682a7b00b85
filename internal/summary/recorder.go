// Package summary records playback statistics over a run and formats the
// exit summary.
//
// Recorder is a collector.Listener. Distributions (bandwidth, bitrate,
// buffer level, frame rate) use T-Digest so memory stays bounded no matter
// how long the run is.
package summary

import (
	"sync"

	"github.com/influxdata/tdigest"

	"github.com/randomizedcoder/go-hls-playstats/internal/stats"
)

// digestCompression bounds each digest to ~100 centroids (~10KB).
const digestCompression = 100

// maxRecentErrors is the number of most recent errors kept for the report.
const maxRecentErrors = 5

// Distribution summarizes one recorded metric.
type Distribution struct {
	Count int64
	Min   float64
	Max   float64
	P50   float64
	P95   float64
	P99   float64
}

// SessionReport is the per-session outcome.
type SessionReport struct {
	Index          int
	Ended          bool // false for a session still running at exit
	PositionMs     int64
	DurationMs     int64
	JoinTimeMs     int64
	RebufferCount  int64
	RebufferMs     int64
	DroppedFrames  int64
	RenderedFrames int64
	BytesLoaded    int64
	Errors         int
}

// Report is everything the exit summary prints.
type Report struct {
	Updates  int64
	Sessions []SessionReport

	Bandwidth   Distribution // bits/sec
	Bitrate     Distribution // bits/sec
	BufferAhead Distribution // milliseconds
	FrameRate   Distribution // frames/sec

	PeakBandwidthBps int64
	TotalErrors      int
	RecentErrors     []stats.PlaybackError

	// Combined is the lifetime snapshot, if one was supplied.
	Combined *stats.PlaybackSnapshot
}

type digest struct {
	td       *tdigest.TDigest
	count    int64
	min, max float64
}

func newDigest() *digest {
	return &digest{td: tdigest.NewWithCompression(digestCompression)}
}

func (d *digest) add(v float64) {
	if d.count == 0 || v < d.min {
		d.min = v
	}
	if d.count == 0 || v > d.max {
		d.max = v
	}
	d.count++
	d.td.Add(v, 1)
}

func (d *digest) distribution() Distribution {
	if d.count == 0 {
		return Distribution{}
	}
	return Distribution{
		Count: d.count,
		Min:   d.min,
		Max:   d.max,
		P50:   d.td.Quantile(0.50),
		P95:   d.td.Quantile(0.95),
		P99:   d.td.Quantile(0.99),
	}
}

// Recorder accumulates snapshots into a Report.
type Recorder struct {
	mu sync.Mutex

	updates     int64
	bandwidth   *digest
	bitrate     *digest
	bufferAhead *digest
	frameRate   *digest
	peakBw      int64

	sessions []SessionReport
	last     *stats.PlaybackSnapshot
	errors   []stats.PlaybackError
	combined *stats.PlaybackSnapshot
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		bandwidth:   newDigest(),
		bitrate:     newDigest(),
		bufferAhead: newDigest(),
		frameRate:   newDigest(),
	}
}

// OnUpdate implements collector.Listener.
func (r *Recorder) OnUpdate(snap stats.PlaybackSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.updates++
	r.last = &snap
	r.errors = snap.Errors

	if snap.State != stats.StatePlaying {
		// Distributions describe steady-state playback only.
		return
	}
	r.bandwidth.add(float64(snap.Network.EstimatedBandwidthBps))
	if snap.BitrateBps > 0 {
		r.bitrate.add(float64(snap.BitrateBps))
	}
	r.bufferAhead.add(float64(snap.BufferAheadMs()))
	if snap.VideoQuality != nil {
		r.frameRate.add(snap.VideoQuality.FrameRate)
	}
	if snap.Network.EstimatedBandwidthBps > r.peakBw {
		r.peakBw = snap.Network.EstimatedBandwidthBps
	}
}

// OnSessionEnded implements collector.Listener. A nil final snapshot falls
// back to the last update seen.
func (r *Recorder) OnSessionEnded(final *stats.PlaybackSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	src := final
	if src == nil {
		src = r.last
	}
	rep := SessionReport{Index: len(r.sessions) + 1, Ended: true}
	if src != nil {
		fillSession(&rep, src)
		r.errors = src.Errors
	}
	r.sessions = append(r.sessions, rep)
	r.last = nil
}

// SetCombined records the lifetime snapshot for the report.
func (r *Recorder) SetCombined(snap stats.PlaybackSnapshot) {
	r.mu.Lock()
	r.combined = &snap
	r.mu.Unlock()
}

// Report returns the accumulated report. A session with updates but no end
// notification is included as not ended.
func (r *Recorder) Report() Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	rep := Report{
		Updates:          r.updates,
		Sessions:         make([]SessionReport, len(r.sessions), len(r.sessions)+1),
		Bandwidth:        r.bandwidth.distribution(),
		Bitrate:          r.bitrate.distribution(),
		BufferAhead:      r.bufferAhead.distribution(),
		FrameRate:        r.frameRate.distribution(),
		PeakBandwidthBps: r.peakBw,
		TotalErrors:      len(r.errors),
		Combined:         r.combined,
	}
	copy(rep.Sessions, r.sessions)

	if r.last != nil {
		open := SessionReport{Index: len(r.sessions) + 1}
		fillSession(&open, r.last)
		rep.Sessions = append(rep.Sessions, open)
	}

	start := len(r.errors) - maxRecentErrors
	if start < 0 {
		start = 0
	}
	rep.RecentErrors = append([]stats.PlaybackError(nil), r.errors[start:]...)

	return rep
}

func fillSession(rep *SessionReport, s *stats.PlaybackSnapshot) {
	rep.PositionMs = s.PositionMs
	rep.DurationMs = s.DurationMs
	rep.JoinTimeMs = s.JoinTimeMs
	rep.RebufferCount = s.RebufferCount
	rep.RebufferMs = s.TotalRebufferDurationMs
	rep.DroppedFrames = s.DroppedFrames
	rep.RenderedFrames = s.TotalFramesRendered
	rep.BytesLoaded = s.Network.TotalBytesLoaded
	rep.Errors = len(s.Errors)
}
