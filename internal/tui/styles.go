// Package tui provides a live terminal dashboard for playback statistics.
//
// The dashboard is a Bubble Tea program styled with Lipgloss. It shows the
// playback state and buffer, the rendition and frame drops, network
// throughput, rebuffering and recent player errors.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/randomizedcoder/go-hls-playstats/internal/stats"
)

// Palette, keyed by what the colour means on the dashboard.
var (
	colorBrand   = lipgloss.Color("#7C3AED")
	colorHeading = lipgloss.Color("#06B6D4")
	colorRule    = lipgloss.Color("#374151")

	colorHealthy  = lipgloss.Color("#10B981")
	colorDegraded = lipgloss.Color("#F59E0B")
	colorFailed   = lipgloss.Color("#EF4444")
	colorEnded    = lipgloss.Color("#3B82F6")

	colorValue = lipgloss.Color("#E5E7EB")
	colorLabel = lipgloss.Color("#9CA3AF")
	colorFaint = lipgloss.Color("#6B7280")
)

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

// =============================================================================
// Layout
// =============================================================================

var (
	headerStyle = fg(colorValue).
			Background(colorBrand).
			Bold(true).
			Padding(0, 1).
			MarginBottom(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorRule).
			Padding(0, 1)

	sectionHeaderStyle = fg(colorHeading).
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(colorRule)

	footerStyle = fg(colorLabel).MarginTop(1)
	dimStyle    = fg(colorFaint)
	unitStyle   = fg(colorFaint)
	labelStyle  = fg(colorLabel).Width(20)
	valueStyle  = fg(colorValue).Bold(true)

	// Error table rows alternate brightness.
	tableHeaderStyle  = fg(colorHeading).Bold(true)
	tableRowEvenStyle = fg(colorValue)
	tableRowOddStyle  = fg(colorLabel)
)

// Health levels for values that can go bad.
var (
	valueGoodStyle = fg(colorHealthy).Bold(true)
	valueWarnStyle = fg(colorDegraded).Bold(true)
	valueBadStyle  = fg(colorFailed).Bold(true)
)

// =============================================================================
// Indicators
// =============================================================================

// GetStateStyle returns the style for a playback state.
func GetStateStyle(state stats.PlaybackState) lipgloss.Style {
	switch state {
	case stats.StatePlaying:
		return valueGoodStyle
	case stats.StateBuffering:
		return valueWarnStyle
	case stats.StateEnded:
		return fg(colorEnded).Bold(true)
	case stats.StatePaused:
		return fg(colorLabel)
	default:
		return dimStyle
	}
}

// GetStateLabel returns a styled state indicator.
func GetStateLabel(state stats.PlaybackState) string {
	return GetStateStyle(state).Render("● " + state.String())
}

// Buffer-ahead thresholds for colouring.
const (
	bufferLowMs  = 2_000
	bufferWarnMs = 5_000
)

// GetBufferStyle returns a style based on buffered-ahead milliseconds.
func GetBufferStyle(aheadMs int64) lipgloss.Style {
	switch {
	case aheadMs < bufferLowMs:
		return valueBadStyle
	case aheadMs < bufferWarnMs:
		return valueWarnStyle
	default:
		return valueGoodStyle
	}
}

// GetDropRateStyle returns a style based on the dropped-frame fraction.
func GetDropRateStyle(dropRate float64) lipgloss.Style {
	switch {
	case dropRate == 0:
		return valueGoodStyle
	case dropRate < 0.01:
		return valueWarnStyle
	default:
		return valueBadStyle
	}
}

// =============================================================================
// Helpers
// =============================================================================

// RenderKeyValue renders a label-value pair.
func RenderKeyValue(label string, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Left,
		labelStyle.Render(label+":"),
		valueStyle.Render(value),
	)
}

// RenderProgressBar renders progress in [0, 1] as a bar at least 10 cells
// wide followed by a percentage.
func RenderProgressBar(progress float64, width int) string {
	width = max(width, 10)
	filled := min(max(int(progress*float64(width)), 0), width)

	return fg(colorBrand).Render(strings.Repeat("█", filled)) +
		fg(colorRule).Render(strings.Repeat("░", width-filled)) +
		valueStyle.Render(fmt.Sprintf(" %3.0f%%", progress*100))
}
