package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-hls-playstats/internal/stats"
	"github.com/randomizedcoder/go-hls-playstats/internal/timeseries"
)

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to update the display.
type TickMsg time.Time

// SnapshotMsg carries the latest playback snapshot.
type SnapshotMsg struct {
	Snapshot stats.PlaybackSnapshot
}

// SessionEndedMsg signals the end of a playback session.
type SessionEndedMsg struct {
	Final *stats.PlaybackSnapshot
}

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// =============================================================================
// Model
// =============================================================================

// Model represents the TUI state.
type Model struct {
	// Configuration
	stream      string
	metricsAddr string

	// Current state
	snap         *stats.PlaybackSnapshot
	throughput   timeseries.ThroughputStats
	session      int
	sessionsDone int
	startTime    time.Time
	lastUpdate   time.Time
	detailedView bool

	// Display options
	width  int
	height int

	// Throughput source (optional)
	throughputSource ThroughputSource

	// Quit flag
	quitting bool
}

// ThroughputSource provides rolling throughput. *timeseries.ThroughputTracker
// implements it.
type ThroughputSource interface {
	GetStats() timeseries.ThroughputStats
}

// Config holds TUI configuration.
type Config struct {
	Stream           string
	MetricsAddr      string
	ThroughputSource ThroughputSource
}

// New creates a new TUI model.
func New(cfg Config) Model {
	return Model{
		stream:           cfg.Stream,
		metricsAddr:      cfg.MetricsAddr,
		throughputSource: cfg.ThroughputSource,
		session:          1,
		startTime:        time.Now(),
		lastUpdate:       time.Now(),
		width:            80,
		height:           24,
	}
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	// tea.WithAltScreen() is passed when creating the program.
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "d":
			m.detailedView = !m.detailedView
			return m, nil
		case "r":
			// Force refresh
			return m, tickCmd()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		if m.throughputSource != nil {
			m.throughput = m.throughputSource.GetStats()
		}
		return m, tickCmd()

	case SnapshotMsg:
		snap := msg.Snapshot
		if m.snap != nil && m.snap.State == stats.StateEnded && snap.State != stats.StateEnded {
			m.session++
		}
		m.snap = &snap
		m.lastUpdate = time.Now()
		return m, nil

	case SessionEndedMsg:
		m.sessionsDone++
		if msg.Final != nil {
			final := *msg.Final
			m.snap = &final
		}
		m.lastUpdate = time.Now()
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.detailedView && m.snap != nil && len(m.snap.Errors) > 0 {
		return m.renderDetailedView()
	}
	return m.renderSummaryView()
}

// =============================================================================
// Commands
// =============================================================================

// tickCmd returns a command that sends a tick after 500ms.
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// =============================================================================
// Accessors
// =============================================================================

// Elapsed returns the time since the dashboard started.
func (m Model) Elapsed() time.Duration {
	return time.Since(m.startTime)
}

// Snapshot returns the last snapshot shown, if any.
func (m Model) Snapshot() (stats.PlaybackSnapshot, bool) {
	if m.snap == nil {
		return stats.PlaybackSnapshot{}, false
	}
	return *m.snap, true
}

// Session returns the 1-based number of the session being displayed.
func (m Model) Session() int {
	return m.session
}

// SessionsEnded returns the number of session-end notifications received.
func (m Model) SessionsEnded() int {
	return m.sessionsDone
}

// Progress returns playback progress through the content (0.0 to 1.0), or
// 0 when the duration is unknown.
func (m Model) Progress() float64 {
	if m.snap == nil || m.snap.DurationMs <= 0 {
		return 0
	}
	p := float64(m.snap.PositionMs) / float64(m.snap.DurationMs)
	if p > 1 {
		p = 1
	}
	return p
}

// DropRate returns dropped frames as a fraction of all decoded frames.
func (m Model) DropRate() float64 {
	if m.snap == nil {
		return 0
	}
	total := m.snap.DroppedFrames + m.snap.TotalFramesRendered
	if total == 0 {
		return 0
	}
	return float64(m.snap.DroppedFrames) / float64(total)
}
