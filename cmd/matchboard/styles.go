package main

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#00843D", Dark: "#3DDC84"}
	colorAccent  = lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#FFDF00"}
	colorDim     = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#626262"}
	colorWarn    = lipgloss.AdaptiveColor{Light: "#C0392B", Dark: "#F25D94"}

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	dateStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			PaddingRight(2)

	teamsStyle = lipgloss.NewStyle().
			Bold(true)

	nationalStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent)

	leagueStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	closeStyle = lipgloss.NewStyle().
			Foreground(colorPrimary)

	warningStyle = lipgloss.NewStyle().
			Foreground(colorWarn).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorWarn).
			Padding(0, 1)

	footerStyle = lipgloss.NewStyle().
			Foreground(colorDim)
)
