package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/randomizedcoder/go-hls-playstats/internal/stats"
	"github.com/randomizedcoder/go-hls-playstats/internal/summary"
	"github.com/randomizedcoder/go-hls-playstats/internal/timeseries"
)

// maxErrorRows is the number of errors listed in the summary view.
const maxErrorRows = 3

// =============================================================================
// Main View Rendering
// =============================================================================

// renderSummaryView renders the main dashboard.
func (m Model) renderSummaryView() string {
	var sections []string

	sections = append(sections, m.renderHeader())

	if m.snap == nil {
		sections = append(sections, boxStyle.Width(m.width-2).Render(
			dimStyle.Render("Waiting for playback statistics..."),
		))
		sections = append(sections, m.renderFooter())
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}

	sections = append(sections, m.renderPlayback())
	sections = append(sections, m.renderQuality())
	sections = append(sections, m.renderNetwork())
	sections = append(sections, m.renderQoE())

	if len(m.snap.Errors) > 0 {
		sections = append(sections, m.renderErrors(maxErrorRows))
	}

	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderDetailedView renders the full error history.
func (m Model) renderDetailedView() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderErrors(len(m.snap.Errors)),
		m.renderFooter(),
	)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	state := stats.StateUnknown
	if m.snap != nil {
		state = m.snap.State
	}

	header := fmt.Sprintf(
		" go-hls-playstats │ %s │ Session %d │ Elapsed: %s ",
		GetStateLabel(state),
		m.session,
		summary.FormatDuration(m.Elapsed()),
	)

	return headerStyle.Width(m.width).Render(header)
}

// =============================================================================
// Playback
// =============================================================================

func (m Model) renderPlayback() string {
	s := m.snap

	barWidth := m.width - 30
	if barWidth < 20 {
		barWidth = 20
	}

	var position string
	if s.DurationMs > 0 {
		position = fmt.Sprintf("%s / %s",
			summary.FormatDuration(msDuration(s.PositionMs)),
			summary.FormatDuration(msDuration(s.DurationMs)))
	} else {
		position = summary.FormatDuration(msDuration(s.PositionMs))
	}

	rows := []string{
		sectionHeaderStyle.Render("Playback"),
		RenderProgressBar(m.Progress(), barWidth),
		RenderKeyValue("Position", position),
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("Buffer Ahead:"),
			GetBufferStyle(s.BufferAheadMs()).Render(summary.FormatMs(msDuration(s.BufferAheadMs()))),
			unitStyle.Render(fmt.Sprintf("  (video %s, audio %s)",
				summary.FormatMs(msDuration(s.BufferInfo.VideoBufferMs)),
				summary.FormatMs(msDuration(s.BufferInfo.AudioBufferMs)))),
		),
	}

	if off, ok := s.LiveOffset(); ok {
		rows = append(rows, RenderKeyValue("Live Offset", summary.FormatMs(msDuration(off))))
	}

	return boxStyle.Width(m.width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// =============================================================================
// Quality
// =============================================================================

func (m Model) renderQuality() string {
	s := m.snap

	resolution := "N/A"
	fps := "N/A"
	if q := s.VideoQuality; q != nil {
		resolution = fmt.Sprintf("%dx%d", q.Width, q.Height)
		fps = fmt.Sprintf("%.1f fps", q.FrameRate)
	}

	dropRate := m.DropRate()
	dropped := fmt.Sprintf("%s (%s)", summary.FormatNumber(s.DroppedFrames), formatPercent(dropRate))

	rows := []string{
		sectionHeaderStyle.Render("Quality"),
		RenderKeyValue("Resolution", resolution),
		RenderKeyValue("Frame Rate", fps),
		RenderKeyValue("Bitrate", summary.FormatBitrate(float64(s.BitrateBps))),
		RenderKeyValue("Frames Rendered", summary.FormatNumber(s.TotalFramesRendered)),
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("Frames Dropped:"),
			GetDropRateStyle(dropRate).Render(dropped),
		),
	}

	return boxStyle.Width(m.width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// =============================================================================
// Network
// =============================================================================

func (m Model) renderNetwork() string {
	s := m.snap

	rows := []string{
		sectionHeaderStyle.Render("Network"),
		RenderKeyValue("Est. Bandwidth", summary.FormatBitrate(float64(s.Network.EstimatedBandwidthBps))),
		RenderKeyValue("Bytes Loaded", summary.FormatBytes(s.Network.TotalBytesLoaded)),
	}

	if m.throughputSource != nil {
		t := m.throughput
		rows = append(rows, RenderKeyValue("Throughput",
			fmt.Sprintf("%s (1s)  %s (30s)  %s (60s)",
				formatThroughput(t.Avg1s),
				formatThroughput(t.Avg30s),
				formatThroughput(t.Avg60s))))
	}

	return boxStyle.Width(m.width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// =============================================================================
// QoE
// =============================================================================

func (m Model) renderQoE() string {
	s := m.snap

	rebuffers := valueGoodStyle
	if s.RebufferCount > 0 {
		rebuffers = valueWarnStyle
	}

	rows := []string{
		sectionHeaderStyle.Render("Experience"),
		RenderKeyValue("Join Time", summary.FormatMs(msDuration(s.JoinTimeMs))),
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("Rebuffers:"),
			rebuffers.Render(fmt.Sprintf("%d", s.RebufferCount)),
			unitStyle.Render(fmt.Sprintf("  (%s total)", summary.FormatMs(msDuration(s.TotalRebufferDurationMs)))),
		),
		RenderKeyValue("Sessions Ended", fmt.Sprintf("%d", m.sessionsDone)),
	}

	return boxStyle.Width(m.width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// =============================================================================
// Errors
// =============================================================================

func (m Model) renderErrors(limit int) string {
	errs := m.snap.Errors
	start := len(errs) - limit
	if start < 0 {
		start = 0
	}

	rows := []string{
		sectionHeaderStyle.Render(fmt.Sprintf("Errors (%d)", len(errs))),
		tableHeaderStyle.Render(fmt.Sprintf("%-10s %-20s %s", "Time", "Code", "Message")),
	}
	for i, e := range errs[start:] {
		style := tableRowEvenStyle
		if i%2 == 1 {
			style = tableRowOddStyle
		}
		ts := time.UnixMilli(e.TimestampMs).Format("15:04:05")
		rows = append(rows, style.Render(fmt.Sprintf("%-10s %-20s %s", ts, e.Code, e.Message)))
	}

	return boxStyle.Width(m.width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	keys := "q: quit │ d: error details │ r: refresh"
	if m.metricsAddr != "" {
		keys += fmt.Sprintf(" │ metrics: http://%s/metrics", m.metricsAddr)
	}
	if m.stream != "" {
		keys += " │ " + m.stream
	}
	return footerStyle.Render(keys)
}

// =============================================================================
// Formatting Helpers
// =============================================================================

func msDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// formatPercent formats a fraction as a percentage.
func formatPercent(value float64) string {
	return fmt.Sprintf("%.2f%%", value*100)
}

// formatThroughput formats bytes/sec as a bitrate.
func formatThroughput(bytesPerSec float64) string {
	return summary.FormatBitrate(timeseries.BitsPerSecond(bytesPerSec))
}
