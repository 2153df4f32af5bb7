package workspace

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/crewloop-ai/crewloop/internal/shell"
	"github.com/crewloop-ai/crewloop/internal/tui"
	"github.com/crewloop-ai/crewloop/pkg/protocol"
)

const sendTimeout = 10 * time.Second

// sentMsg reports the outcome of an async message send.
type sentMsg struct {
	err error
}

type chatModel struct {
	ws *shell.Workspace

	channelID string
	release   func() // closes the previous channel subscription
	messages  []protocol.Message

	viewport viewport.Model
	input    textinput.Model
}

func newChat(ws *shell.Workspace) chatModel {
	in := textinput.New()
	in.Placeholder = "Message the team…"
	in.CharLimit = 4000
	in.Focus()

	return chatModel{
		ws:       ws,
		viewport: viewport.New(80, 12),
		input:    in,
	}
}

func (c *chatModel) setSize(width, height int) {
	c.viewport.Width = width
	c.viewport.Height = height
	c.input.Width = width - 4
}

// open switches the chat panel to a channel, taking ownership of its
// subscription release.
func (c *chatModel) open(channelID string, release func()) {
	if c.release != nil {
		c.release()
	}
	c.channelID = channelID
	c.release = release
	c.messages = nil
}

func (c *chatModel) setChannel(channelID string, msgs []protocol.Message) {
	if channelID != c.channelID {
		return
	}
	c.messages = msgs
	c.viewport.SetContent(c.renderMessages())
	c.viewport.GotoBottom()
}

// capturing reports whether keystrokes should go to the input line.
func (c chatModel) capturing() bool {
	return c.channelID != "" && c.input.Focused()
}

// setFocus gives the input line focus when the chat panel becomes active
// and releases it when focus moves elsewhere.
func (c *chatModel) setFocus(focused bool) {
	if focused {
		c.input.Focus()
		return
	}
	c.input.Blur()
}

func (c chatModel) Update(msg tea.Msg) (chatModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		text := strings.TrimSpace(c.input.Value())
		if text == "" || c.channelID == "" {
			return c, nil
		}
		c.input.Reset()

		ws, channelID := c.ws, c.channelID
		return c, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()
			return sentMsg{err: ws.SendMessage(ctx, channelID, text)}
		}
	}

	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	return c, cmd
}

func (c chatModel) View() string {
	if c.channelID == "" {
		return tui.Dimmed.Render("  Select a channel to start chatting")
	}
	return c.viewport.View() + "\n" + c.input.View()
}

func (c chatModel) renderMessages() string {
	if len(c.messages) == 0 {
		return tui.Dimmed.Render("  No messages yet")
	}

	var sb strings.Builder
	for _, m := range c.messages {
		ts := m.CreatedAt.Local().Format("15:04")
		author := m.AuthorID
		if author == "" {
			author = "unknown"
		}
		sb.WriteString(fmt.Sprintf("%s %s %s\n",
			tui.Dimmed.Render(ts),
			tui.Subtitle.Render(author+":"),
			m.Content,
		))
	}
	return sb.String()
}
