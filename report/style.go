package report

import (
	"github.com/charmbracelet/lipgloss"

	"vigil/probe"
)

var (
	green  = lipgloss.Color("#10B981")
	red    = lipgloss.Color("#EF4444")
	yellow = lipgloss.Color("#F59E0B")
	dim    = lipgloss.Color("#6B7280")

	healthy   = lipgloss.NewStyle().Foreground(green).Bold(true)
	unhealthy = lipgloss.NewStyle().Foreground(red).Bold(true)
	warning   = lipgloss.NewStyle().Foreground(yellow)
	dimText   = lipgloss.NewStyle().Foreground(dim)
)

func stateDot(s probe.State) string {
	switch s {
	case probe.StatePass:
		return healthy.Render("●")
	case probe.StateWarn:
		return warning.Render("●")
	default:
		return unhealthy.Render("●")
	}
}

func stateLabel(s probe.State) string {
	switch s {
	case probe.StatePass:
		return healthy.Render("pass")
	case probe.StateWarn:
		return warning.Render("warn")
	default:
		return unhealthy.Render("fail")
	}
}
