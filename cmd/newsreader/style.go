package main

import "github.com/charmbracelet/lipgloss"

var (
	accent = lipgloss.Color("#fab387")
	subtle = lipgloss.Color("#a6adc8")
	good   = lipgloss.Color("#a6e3a1")
	frame  = lipgloss.Color("#45475a")

	titleStyle = lipgloss.NewStyle().Foreground(accent).Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(subtle)
	valueStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(subtle).Width(22)
	openStyle  = lipgloss.NewStyle().Foreground(accent)
	doneStyle  = lipgloss.NewStyle().Foreground(good)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(frame).
			Padding(0, 1)

	// History cells, indexed by activity level.
	heatCells = []string{
		lipgloss.NewStyle().Foreground(frame).Render("·"),
		lipgloss.NewStyle().Foreground(lipgloss.Color("#9be9a8")).Render("▪"),
		lipgloss.NewStyle().Foreground(lipgloss.Color("#40c463")).Render("▪"),
		lipgloss.NewStyle().Foreground(lipgloss.Color("#30a14e")).Render("■"),
		lipgloss.NewStyle().Foreground(lipgloss.Color("#216e39")).Render("■"),
	}
)
