package workspace

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/crewloop-ai/crewloop/internal/store"
	"github.com/crewloop-ai/crewloop/internal/tui"
)

type rosterModel struct {
	items  []store.Agent
	cursor int
}

func newRoster() rosterModel {
	return rosterModel{}
}

func (r *rosterModel) update(agents []store.Agent) {
	r.items = agents
	if r.cursor >= len(r.items) {
		r.cursor = max(0, len(r.items)-1)
	}
}

func (r rosterModel) Update(msg tea.Msg) (rosterModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "j", "down":
			if r.cursor < len(r.items)-1 {
				r.cursor++
			}
		case "k", "up":
			if r.cursor > 0 {
				r.cursor--
			}
		}
	}
	return r, nil
}

func (r rosterModel) View() string {
	if len(r.items) == 0 {
		return tui.Dimmed.Render("  No agents assigned")
	}

	var out string
	for i, a := range r.items {
		cursor := "  "
		if i == r.cursor {
			cursor = tui.Selected.Render("> ")
		}

		name := a.Name
		if name == "" {
			name = a.ID
		}
		status := a.Status
		if a.Typing {
			status = "typing…"
		}

		line := fmt.Sprintf("%-16s %-10s %s",
			name,
			tui.Dimmed.Render(a.Role),
			tui.AgentStatusStyle(a.Status).Render(status),
		)
		out += cursor + line + "\n"
	}
	return out
}
