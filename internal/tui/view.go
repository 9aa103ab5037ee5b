package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// View renders the header, instance table, and footer keymap hint.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	header := titleStyle.Render("phpeek-pm") + dimStyle.Render(fmt.Sprintf("  (last refresh %s)", m.lastRefresh.Format("15:04:05")))
	footer := dimStyle.Render("↑/↓ navigate · r refresh · q quit")

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		"",
		m.tbl.View(),
		"",
		footer,
	)
}
