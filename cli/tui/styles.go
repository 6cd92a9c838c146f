// Package tui provides the Bubble Tea live replay dashboard for crossflow.
//
// TUI rules:
//   - TUI is opt-in only (--tui flag)
//   - TUI is read-only: the only action is cancelling the active replay
//   - TUI shows the same batches and reports as line output
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/crossflow/capacity"
	"github.com/pithecene-io/crossflow/replay"
)

// Color palette.
var (
	primaryColor   = lipgloss.Color("#7C3AED") // Purple
	successColor   = lipgloss.Color("#10B981") // Green
	warningColor   = lipgloss.Color("#F59E0B") // Amber
	errorColor     = lipgloss.Color("#EF4444") // Red
	mutedColor     = lipgloss.Color("#6B7280") // Gray
	highlightColor = lipgloss.Color("#3B82F6") // Blue
)

// Styles for TUI components.
var (
	// TitleStyle for headers and titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	// LabelStyle for field labels.
	LabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(12)

	// ValueStyle for field values.
	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	// SuccessStyle for success states.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(successColor)

	// WarningStyle for warning states.
	WarningStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	// ErrorStyle for error states.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	// MutedStyle for secondary text.
	MutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	// BoxStyle for bordered containers.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	// HelpStyle for help text.
	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)

	// StatBoxStyle for stat display boxes.
	StatBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(highlightColor).
			Padding(0, 2).
			Width(18).
			Align(lipgloss.Center)

	// StatLabelStyle for stat labels.
	StatLabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Align(lipgloss.Center)

	// StatValueStyle for stat values.
	StatValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Align(lipgloss.Center)
)

// StateStyle returns a style for a replay state.
func StateStyle(state replay.State) lipgloss.Style {
	switch state {
	case replay.StateCompleted, replay.StateIdle:
		return SuccessStyle
	case replay.StateReplaying, replay.StateCancelled:
		return WarningStyle
	case replay.StateErrored:
		return ErrorStyle
	default:
		return ValueStyle
	}
}

// BandStyle returns a style for a capacity band.
func BandStyle(band capacity.Band) lipgloss.Style {
	switch band {
	case capacity.BandNominal:
		return SuccessStyle
	case capacity.BandElevated:
		return WarningStyle
	case capacity.BandOverSaturated:
		return ErrorStyle
	default:
		return ValueStyle
	}
}

// gainColor colors a gain: green when adaptive wins, red when it loses.
func gainColor(gain float64) lipgloss.Color {
	switch {
	case gain > 0:
		return successColor
	case gain < 0:
		return errorColor
	default:
		return highlightColor
	}
}
