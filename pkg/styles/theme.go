// Package styles holds the color palette and lipgloss styles shared by console output.
package styles

import "github.com/charmbracelet/lipgloss"

// Palette. Light and dark variants are picked from the terminal background.
var (
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#7EE787"}
	ColorInfo    = lipgloss.AdaptiveColor{Light: "#0969DA", Dark: "#79C0FF"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#9A6700", Dark: "#E3B341"}
	ColorError   = lipgloss.AdaptiveColor{Light: "#CF222E", Dark: "#FF7B72"}
	ColorMuted   = lipgloss.AdaptiveColor{Light: "#6E7781", Dark: "#8B949E"}
	ColorBorder  = lipgloss.AdaptiveColor{Light: "#D0D7DE", Dark: "#30363D"}
)

var (
	Success = lipgloss.NewStyle().Foreground(ColorSuccess)
	Info    = lipgloss.NewStyle().Foreground(ColorInfo)
	Warning = lipgloss.NewStyle().Foreground(ColorWarning)
	Error   = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	Verbose = lipgloss.NewStyle().Foreground(ColorMuted).Italic(true)

	TableTitle  = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	TableHeader = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	TableCell   = lipgloss.NewStyle().Padding(0, 1)
	TableTotal  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	TableBorder = lipgloss.NewStyle().Foreground(ColorBorder)
)
