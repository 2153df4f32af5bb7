package workspace

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/crewloop-ai/crewloop/internal/realtime"
	"github.com/crewloop-ai/crewloop/internal/shell"
	"github.com/crewloop-ai/crewloop/pkg/protocol"
)

// Run starts the shell, renders the workspace TUI, and blocks until the
// user quits. Realtime events and connection state changes are forwarded
// into the bubbletea loop so panels re-read the stores as state arrives.
func Run(ws *shell.Workspace) error {
	ws.Start()
	defer ws.Stop()

	p := tea.NewProgram(NewModel(ws), tea.WithAltScreen())

	removeEvents := ws.Hub().OnEvent(func(ev protocol.Event) {
		p.Send(EventMsg{Event: ev})
	})
	defer removeEvents()

	removeStates := ws.Hub().OnStateChange(func(s realtime.State) {
		p.Send(StateMsg{State: s})
	})
	defer removeStates()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run workspace ui: %w", err)
	}
	return nil
}
