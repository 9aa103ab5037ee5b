package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/gophpeek/phpeek-pm/internal/supervisor"
)

// Run blocks the calling goroutine rendering the instance dashboard until
// the user quits (q / ctrl+c).
func Run(sup *supervisor.Supervisor) error {
	p := tea.NewProgram(NewModel(sup), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
