package collector

import "github.com/randomizedcoder/go-hls-playstats/internal/stats"

// Listener receives playback statistics from a Collector.
//
// Callbacks run on the collector's executor. They may add or remove
// listeners and may call Release. Listener values are compared with ==;
// AddListener rejects values that cannot be compared, so register by
// pointer unless the type is comparable.
type Listener interface {
	// OnUpdate is called on every sampling tick that produced a snapshot.
	OnUpdate(snap stats.PlaybackSnapshot)

	// OnSessionEnded is called once per transition of the player into its
	// terminal state. final is nil if no snapshot could be produced.
	OnSessionEnded(final *stats.PlaybackSnapshot)
}

// ListenerFuncs adapts a pair of functions to Listener. Register it by
// pointer; either field may be nil.
type ListenerFuncs struct {
	Update       func(snap stats.PlaybackSnapshot)
	SessionEnded func(final *stats.PlaybackSnapshot)
}

// OnUpdate implements Listener.
func (f *ListenerFuncs) OnUpdate(snap stats.PlaybackSnapshot) {
	if f.Update != nil {
		f.Update(snap)
	}
}

// OnSessionEnded implements Listener.
func (f *ListenerFuncs) OnSessionEnded(final *stats.PlaybackSnapshot) {
	if f.SessionEnded != nil {
		f.SessionEnded(final)
	}
}
