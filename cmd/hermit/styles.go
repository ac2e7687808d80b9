package main

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette for CLI output. lipgloss drops the colors when stdout is not a
// terminal, so piped output stays plain.
var (
	shellColor  = lipgloss.Color("#E8743B") // hermit orange
	mutedColor  = lipgloss.Color("#8A8F98")
	okColor     = lipgloss.Color("#8BC34A")
	dangerColor = lipgloss.Color("#E53935")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(shellColor)
	labelStyle = lipgloss.NewStyle().Foreground(mutedColor).Width(16)
	dimStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	okStyle    = lipgloss.NewStyle().Foreground(okColor)
	errStyle   = lipgloss.NewStyle().Foreground(dangerColor)
)

// row renders a "label value" line with aligned labels.
func row(label, value string) string {
	return "  " + labelStyle.Render(label) + value
}
