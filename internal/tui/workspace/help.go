package workspace

import (
	"strings"

	"github.com/crewloop-ai/crewloop/internal/tui"
)

type helpModel struct {
	visible bool
}

func newHelp() helpModel {
	return helpModel{}
}

func (h *helpModel) toggle() {
	h.visible = !h.visible
}

func (h helpModel) View() string {
	var sb strings.Builder
	sb.WriteString(tui.Title.Render("Keybindings") + "\n\n")

	rows := [][2]string{
		{"tab", "cycle panel focus"},
		{"j / k", "move cursor in lists"},
		{"enter", "open highlighted channel / send message"},
		{"g / G", "jump to first / last channel"},
		{"esc", "leave the message input"},
		{"?", "toggle this help"},
		{"q, ctrl+c", "quit"},
	}
	for _, r := range rows {
		sb.WriteString("  " + tui.Selected.Render(r[0]))
		sb.WriteString(strings.Repeat(" ", max(14-len(r[0]), 1)))
		sb.WriteString(tui.Help.Render(r[1]) + "\n")
	}

	sb.WriteString("\n" + tui.Dimmed.Render("  Press ? to close"))
	return sb.String()
}
