package workspace

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/crewloop-ai/crewloop/internal/realtime"
	"github.com/crewloop-ai/crewloop/internal/shell"
	"github.com/crewloop-ai/crewloop/pkg/protocol"
)

// stubHub satisfies the REST surface with empty fixtures.
type stubHub struct{}

func (stubHub) ListChannels(context.Context, string) ([]protocol.Channel, error) { return nil, nil }
func (stubHub) ListMessages(context.Context, string) ([]protocol.Message, error) { return nil, nil }
func (stubHub) ListAgents(context.Context, string) ([]protocol.AgentStatus, error) {
	return nil, nil
}
func (stubHub) ListTasks(context.Context, string) ([]protocol.Task, error) { return nil, nil }
func (stubHub) PostMessage(context.Context, string, string) (protocol.Message, error) {
	return protocol.Message{}, nil
}

func testWorkspace(t *testing.T) *shell.Workspace {
	t.Helper()

	hub := realtime.NewController(realtime.Options{
		URL: "ws://hub.test/ws/client",
		Dialer: func(context.Context, string) (realtime.Conn, error) {
			return nil, errors.New("offline")
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return shell.New(hub, stubHub{}, "p1", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func openChatModel(t *testing.T) Model {
	t.Helper()

	ws := testWorkspace(t)
	ws.Channels.Merge("p1", []protocol.Channel{{ID: "c1", Name: "general"}})
	m := NewModel(ws)

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	if m.activePanel != PanelChat || !m.chat.capturing() {
		t.Fatalf("opening a channel should focus the chat input, panel = %v", m.activePanel)
	}
	return m
}

func requireQuit(t *testing.T, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a quit command, got nil")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg, got %T", cmd())
	}
}

func TestCtrlCQuitsWhileChatInputFocused(t *testing.T) {
	m := openChatModel(t)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	requireQuit(t, cmd)
}

func TestTabLeavesChatPanelWhileInputFocused(t *testing.T) {
	m := openChatModel(t)

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = updated.(Model)
	if m.activePanel == PanelChat {
		t.Fatal("tab did not switch away from the chat panel")
	}
	if m.chat.capturing() {
		t.Fatal("chat input kept focus after the panel changed")
	}
}

func TestEscBlursInputSoQuitKeyWorks(t *testing.T) {
	m := openChatModel(t)

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = updated.(Model)
	if m.chat.capturing() {
		t.Fatal("esc did not blur the chat input")
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	requireQuit(t, cmd)
}

func TestTypedKeysStillReachTheInput(t *testing.T) {
	m := openChatModel(t)

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	m = updated.(Model)
	if got := m.chat.input.Value(); got != "q" {
		t.Fatalf("input value = %q, want the typed character", got)
	}

	// Returning to the chat panel restores input focus.
	for i := 0; i < 4; i++ {
		updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
		m = updated.(Model)
	}
	if m.activePanel != PanelChat || !m.chat.capturing() {
		t.Fatal("cycling back to the chat panel should refocus the input")
	}
}
