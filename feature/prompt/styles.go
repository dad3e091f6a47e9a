package prompt

import "github.com/charmbracelet/lipgloss"

var (
	accent = lipgloss.Color("#E5A00D")
	dim    = lipgloss.Color("#6B7280")
	green  = lipgloss.Color("#10B981")
	red    = lipgloss.Color("#EF4444")
	blue   = lipgloss.Color("#3B82F6")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(accent)
	labelStyle   = lipgloss.NewStyle().Foreground(dim).Width(12)
	dimStyle     = lipgloss.NewStyle().Foreground(dim)
	successStyle = lipgloss.NewStyle().Foreground(green)
	errorStyle   = lipgloss.NewStyle().Foreground(red)
	phaseStyle   = lipgloss.NewStyle().Foreground(blue).Bold(true)
	boxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(dim).
			Padding(0, 1)
)
