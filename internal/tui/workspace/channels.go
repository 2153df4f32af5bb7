package workspace

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/crewloop-ai/crewloop/internal/tui"
	"github.com/crewloop-ai/crewloop/pkg/protocol"
)

type channelsModel struct {
	items  []protocol.Channel
	cursor int
}

func newChannels() channelsModel {
	return channelsModel{}
}

func (c *channelsModel) update(channels []protocol.Channel) {
	c.items = channels
	if c.cursor >= len(c.items) {
		c.cursor = max(0, len(c.items)-1)
	}
}

// selected returns the highlighted channel's id, or "".
func (c channelsModel) selected() string {
	if c.cursor < 0 || c.cursor >= len(c.items) {
		return ""
	}
	return c.items[c.cursor].ID
}

func (c channelsModel) Update(msg tea.Msg) (channelsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "j", "down":
			if c.cursor < len(c.items)-1 {
				c.cursor++
			}
		case "k", "up":
			if c.cursor > 0 {
				c.cursor--
			}
		case "g":
			c.cursor = 0
		case "G":
			c.cursor = max(0, len(c.items)-1)
		}
	}
	return c, nil
}

func (c channelsModel) View() string {
	if len(c.items) == 0 {
		return tui.Dimmed.Render("  No channels yet")
	}

	var out string
	for i, ch := range c.items {
		cursor := "  "
		name := "# " + ch.Name
		if i == c.cursor {
			cursor = tui.Selected.Render("> ")
			name = tui.Selected.Render(name)
		}
		out += cursor + name + "\n"
	}
	return out
}
