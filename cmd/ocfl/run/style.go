package run

import "github.com/charmbracelet/lipgloss"

// Output styles for listing and validation commands. Lipgloss disables
// styling automatically when stdout isn't a terminal.
var (
	headStyle   = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Faint(true)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	addStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	removeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	modStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)
