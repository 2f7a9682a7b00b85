package player

import "fmt"

// EventKind distinguishes player events.
type EventKind int

const (
	// EventStateChanged carries a new lifecycle state.
	EventStateChanged EventKind = iota

	// EventError carries a playback error from the player's error channel.
	EventError
)

// Event is a single notification from a player. Exactly one of State or the
// error fields is meaningful, depending on Kind.
type Event struct {
	Kind EventKind

	State State

	Code    string
	Message string
}

// StateChanged returns a lifecycle event.
func StateChanged(s State) Event {
	return Event{Kind: EventStateChanged, State: s}
}

// Error returns a playback error event.
func Error(code, message string) Event {
	return Event{Kind: EventError, Code: code, Message: message}
}

// String implements fmt.Stringer.
func (e Event) String() string {
	switch e.Kind {
	case EventStateChanged:
		return "state_changed(" + e.State.String() + ")"
	case EventError:
		return fmt.Sprintf("error(%s: %s)", e.Code, e.Message)
	default:
		return "unknown"
	}
}
