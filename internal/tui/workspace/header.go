package workspace

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/crewloop-ai/crewloop/internal/realtime"
	"github.com/crewloop-ai/crewloop/internal/tui"
)

type headerModel struct {
	projectID string
	state     realtime.State
	lastError string
}

func newHeader(projectID string) headerModel {
	return headerModel{projectID: projectID}
}

func (h *headerModel) setState(s realtime.State) {
	h.state = s
	if s == realtime.StateConnected {
		h.lastError = ""
	}
}

func (h *headerModel) setError(msg string) {
	h.lastError = msg
}

func (h headerModel) View(width int) string {
	left := tui.Title.Render("Crewloop")

	connected := h.state == realtime.StateConnected
	reconnecting := h.state == realtime.StateConnecting
	right := fmt.Sprintf("%s %s", tui.StatusDot(connected, reconnecting),
		tui.StatusText(connected, reconnecting))

	meta := lipgloss.NewStyle().Foreground(tui.ColorMuted).
		Render("  Project: " + h.projectID)

	line := left + meta
	gap := width - lipgloss.Width(line) - lipgloss.Width(right) - 2
	if gap > 0 {
		line += lipgloss.NewStyle().Width(gap).Render("") + right
	} else {
		line += "  " + right
	}

	if h.lastError != "" {
		line += "\n" + tui.ErrorStyle.Render("  ⚠ "+h.lastError)
	}
	return line
}
