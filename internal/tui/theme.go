// Package tui provides shared theme and styles for the workspace TUI.
package tui

import "github.com/charmbracelet/lipgloss"

// Colors — brand palette.
var (
	ColorPrimary   = lipgloss.Color("#0EA5E9") // sky
	ColorSecondary = lipgloss.Color("#8B5CF6") // violet
	ColorAccent    = lipgloss.Color("#F59E0B") // amber

	ColorSuccess = lipgloss.Color("#10B981") // emerald
	ColorWarning = lipgloss.Color("#F59E0B") // amber
	ColorError   = lipgloss.Color("#EF4444") // red
	ColorMuted   = lipgloss.Color("#6B7280") // gray-500
	ColorText    = lipgloss.Color("#E5E7EB") // gray-200
	ColorSubtle  = lipgloss.Color("#9CA3AF") // gray-400
)

// Shared styles used across the workspace panels.
var (
	// Title is the main heading style.
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorPrimary).
		MarginBottom(1)

	// Subtitle for panel headings.
	Subtitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorSecondary)

	// Selected highlights the currently focused item.
	Selected = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	// Dimmed for non-focused items.
	Dimmed = lipgloss.NewStyle().
		Foreground(ColorMuted)

	// Success for positive messages.
	Success = lipgloss.NewStyle().
		Foreground(ColorSuccess)

	// ErrorStyle for error messages (avoiding collision with builtin error).
	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	// WarningStyle for warning messages.
	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	// Help for keybind hints at the bottom.
	Help = lipgloss.NewStyle().
		Foreground(ColorMuted)

	// ActiveDot represents connected status.
	ActiveDot = lipgloss.NewStyle().
			Foreground(ColorSuccess).
			Render("●")

	// InactiveDot represents disconnected status.
	InactiveDot = lipgloss.NewStyle().
			Foreground(ColorError).
			Render("●")

	// WarnDot represents reconnecting status.
	WarnDot = lipgloss.NewStyle().
		Foreground(ColorWarning).
		Render("●")
)

// StatusDot returns a colored dot for hub connection status.
func StatusDot(connected bool, reconnecting bool) string {
	if reconnecting {
		return WarnDot
	}
	if connected {
		return ActiveDot
	}
	return InactiveDot
}

// StatusText returns a colored connection status label.
func StatusText(connected bool, reconnecting bool) string {
	if reconnecting {
		return WarningStyle.Render("reconnecting")
	}
	if connected {
		return Success.Render("connected")
	}
	return ErrorStyle.Render("disconnected")
}

// AgentStatusStyle returns a style for a persona's reported status.
func AgentStatusStyle(status string) lipgloss.Style {
	switch status {
	case "working", "responding":
		return lipgloss.NewStyle().Foreground(ColorSuccess)
	case "thinking":
		return lipgloss.NewStyle().Foreground(ColorAccent)
	case "idle":
		return lipgloss.NewStyle().Foreground(ColorMuted)
	case "blocked", "error":
		return lipgloss.NewStyle().Foreground(ColorError)
	default:
		return lipgloss.NewStyle().Foreground(ColorText)
	}
}
