package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-hls-playstats/internal/stats"
)

// Sender delivers messages to a running program. *tea.Program implements it.
type Sender interface {
	Send(msg tea.Msg)
}

// Listener forwards collector notifications to the dashboard. Register it
// by pointer.
type Listener struct {
	p Sender
}

// NewListener creates a listener that sends to p.
func NewListener(p Sender) *Listener {
	return &Listener{p: p}
}

// OnUpdate implements collector.Listener.
func (l *Listener) OnUpdate(snap stats.PlaybackSnapshot) {
	if l.p != nil {
		l.p.Send(SnapshotMsg{Snapshot: snap})
	}
}

// OnSessionEnded implements collector.Listener.
func (l *Listener) OnSessionEnded(final *stats.PlaybackSnapshot) {
	if l.p != nil {
		l.p.Send(SessionEndedMsg{Final: final})
	}
}

// SendQuit sends a quit message to the TUI.
func SendQuit(p Sender) {
	if p != nil {
		p.Send(QuitMsg{})
	}
}
