package dashboard

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jb-8200/asdlc-coord/internal/broker"
)

// Run starts the dashboard program and blocks until the user quits.
// staleness is the presence threshold, forwarded from COORD_PRESENCE_TIMEOUT_MINUTES.
func Run(client *broker.Client, staleness time.Duration) error {
	p := tea.NewProgram(NewModel(client, staleness), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
