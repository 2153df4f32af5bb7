package workspace

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/crewloop-ai/crewloop/internal/tui"
	"github.com/crewloop-ai/crewloop/pkg/protocol"
)

// Board column order; unknown statuses sort after these.
var columnOrder = []string{"todo", "in_progress", "review", "done"}

type boardModel struct {
	items  []protocol.Task
	cursor int
}

func newBoard() boardModel {
	return boardModel{}
}

func (b *boardModel) update(tasks []protocol.Task) {
	ordered := make([]protocol.Task, 0, len(tasks))
	seen := make(map[string]bool, len(tasks))
	for _, col := range columnOrder {
		for _, t := range tasks {
			if t.Status == col {
				ordered = append(ordered, t)
				seen[t.ID] = true
			}
		}
	}
	for _, t := range tasks {
		if !seen[t.ID] {
			ordered = append(ordered, t)
		}
	}

	b.items = ordered
	if b.cursor >= len(b.items) {
		b.cursor = max(0, len(b.items)-1)
	}
}

func (b boardModel) Update(msg tea.Msg) (boardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "j", "down":
			if b.cursor < len(b.items)-1 {
				b.cursor++
			}
		case "k", "up":
			if b.cursor > 0 {
				b.cursor--
			}
		}
	}
	return b, nil
}

func (b boardModel) View() string {
	if len(b.items) == 0 {
		return tui.Dimmed.Render("  No tasks on the board")
	}

	var out string
	lastStatus := ""
	for i, t := range b.items {
		if t.Status != lastStatus {
			out += tui.Dimmed.Render("  ── "+columnLabel(t.Status)) + "\n"
			lastStatus = t.Status
		}

		cursor := "  "
		title := t.Title
		if i == b.cursor {
			cursor = tui.Selected.Render("> ")
			title = tui.Selected.Render(title)
		}

		assignee := ""
		if t.AssigneeID != "" {
			assignee = tui.Dimmed.Render(" @" + t.AssigneeID)
		}
		out += fmt.Sprintf("%s%s%s\n", cursor, title, assignee)
	}
	return out
}

func columnLabel(status string) string {
	switch status {
	case "todo":
		return "To do"
	case "in_progress":
		return "In progress"
	case "review":
		return "Review"
	case "done":
		return "Done"
	default:
		return status
	}
}
