// Package workspace implements the terminal workspace UI: channel list,
// chat log, agent roster, and task board, all fed by the view-state stores.
package workspace

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/crewloop-ai/crewloop/internal/realtime"
	"github.com/crewloop-ai/crewloop/internal/shell"
	"github.com/crewloop-ai/crewloop/internal/tui"
	"github.com/crewloop-ai/crewloop/pkg/protocol"
)

// Panel identifies which workspace panel is focused.
type Panel int

const (
	PanelChannels Panel = iota
	PanelChat
	PanelRoster
	PanelBoard
)

// EventMsg wraps a realtime event forwarded into the TUI loop.
type EventMsg struct {
	Event protocol.Event
}

// StateMsg carries a connection state transition.
type StateMsg struct {
	State realtime.State
}

// Model is the root workspace TUI model.
type Model struct {
	ws *shell.Workspace

	header   headerModel
	channels channelsModel
	chat     chatModel
	roster   rosterModel
	board    boardModel
	help     helpModel

	activePanel Panel
	width       int
	height      int
	quitting    bool
}

// NewModel creates the workspace model. The shell must already be started.
func NewModel(ws *shell.Workspace) Model {
	m := Model{
		ws:       ws,
		header:   newHeader(ws.ProjectID()),
		channels: newChannels(),
		chat:     newChat(ws),
		roster:   newRoster(),
		board:    newBoard(),
		help:     newHelp(),
	}
	m.refresh()
	return m
}

// refresh re-reads every store snapshot the panels render from.
func (m *Model) refresh() {
	m.channels.update(m.ws.Channels.Project(m.ws.ProjectID()))
	m.roster.update(m.ws.Agents.Project(m.ws.ProjectID()))
	m.board.update(m.ws.Tasks.Project(m.ws.ProjectID()))
	if ch := m.channels.selected(); ch != "" {
		m.chat.setChannel(ch, m.ws.Messages.Channel(ch))
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.chat.setSize(msg.Width*2/3, max(msg.Height-10, 5))
		return m, nil

	case tea.KeyMsg:
		// Global bindings win over the chat input, otherwise a focused
		// input would swallow quit and panel navigation for good.
		switch {
		case key.Matches(msg, key.NewBinding(key.WithKeys("ctrl+c"))):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, key.NewBinding(key.WithKeys("tab"))):
			m.activePanel = (m.activePanel + 1) % 4
			m.chat.setFocus(m.activePanel == PanelChat)
			return m, nil
		case key.Matches(msg, key.NewBinding(key.WithKeys("esc"))):
			if m.activePanel == PanelChat && m.chat.capturing() {
				m.chat.setFocus(false)
				return m, nil
			}
		}

		// The chat input swallows remaining printable keys while focused.
		if m.activePanel == PanelChat && m.chat.capturing() {
			var cmd tea.Cmd
			m.chat, cmd = m.chat.Update(msg)
			return m, cmd
		}

		switch {
		case key.Matches(msg, key.NewBinding(key.WithKeys("q"))):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, key.NewBinding(key.WithKeys("?"))):
			m.help.toggle()
			return m, nil
		case key.Matches(msg, key.NewBinding(key.WithKeys("enter"))):
			if m.activePanel == PanelChannels {
				m.openSelectedChannel()
				return m, nil
			}
			if m.activePanel == PanelChat {
				m.chat.setFocus(true)
				return m, nil
			}
		}

	case StateMsg:
		m.header.setState(msg.State)
		return m, nil

	case EventMsg:
		m.refresh()
		if msg.Event.Kind == protocol.KindError {
			if info, ok := msg.Event.Payload.(*protocol.ErrorInfo); ok {
				m.header.setError(info.Message)
			}
		}
		return m, nil

	case sentMsg:
		if msg.err != nil {
			m.header.setError(msg.err.Error())
		}
		m.refresh()
		return m, nil
	}

	// Delegate to the focused panel.
	var cmd tea.Cmd
	switch m.activePanel {
	case PanelChannels:
		m.channels, cmd = m.channels.Update(msg)
	case PanelChat:
		m.chat, cmd = m.chat.Update(msg)
	case PanelRoster:
		m.roster, cmd = m.roster.Update(msg)
	case PanelBoard:
		m.board, cmd = m.board.Update(msg)
	}
	return m, cmd
}

// openSelectedChannel switches the chat panel to the highlighted channel,
// releasing the previous channel's subscription.
func (m *Model) openSelectedChannel() {
	ch := m.channels.selected()
	if ch == "" || ch == m.chat.channelID {
		return
	}
	m.chat.open(ch, m.ws.OpenChannel(ch))
	m.chat.setChannel(ch, m.ws.Messages.Channel(ch))
	m.activePanel = PanelChat
	m.chat.setFocus(true)
}

func (m Model) View() string {
	if m.help.visible {
		return m.help.View()
	}

	headerView := m.header.View(m.width)

	panelStyle := func(p Panel) lipgloss.Style {
		s := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(tui.ColorMuted)
		if m.activePanel == p {
			s = s.BorderForeground(tui.ColorPrimary)
		}
		return s
	}

	sideWidth := max(m.width/3-2, 20)
	mainWidth := max(m.width-sideWidth-6, 40)

	channelsView := panelStyle(PanelChannels).Width(sideWidth).Render(
		tui.Subtitle.Render(" Channels") + "\n" + m.channels.View(),
	)
	rosterView := panelStyle(PanelRoster).Width(sideWidth).Render(
		tui.Subtitle.Render(" Team") + "\n" + m.roster.View(),
	)
	chatView := panelStyle(PanelChat).Width(mainWidth).Render(
		tui.Subtitle.Render(" Chat") + "\n" + m.chat.View(),
	)
	boardView := panelStyle(PanelBoard).Width(mainWidth).Render(
		tui.Subtitle.Render(" Board") + "\n" + m.board.View(),
	)

	side := lipgloss.JoinVertical(lipgloss.Left, channelsView, rosterView)
	main := lipgloss.JoinVertical(lipgloss.Left, chatView, boardView)
	body := lipgloss.JoinHorizontal(lipgloss.Top, side, main)

	hint := tui.Help.Render("  tab: switch panel · enter: open channel · esc: leave input · ?: help · q: quit")

	return lipgloss.JoinVertical(lipgloss.Left, headerView, body, hint)
}
