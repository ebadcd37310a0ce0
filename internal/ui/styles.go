// Package ui provides consistent styling and components for the softbright CLI
package ui

import "github.com/charmbracelet/lipgloss"

// Color palette - consistent across the application
var (
	// Primary colors
	ColorPrimary = lipgloss.Color("214") // Amber
	ColorSuccess = lipgloss.Color("82")  // Green
	ColorWarning = lipgloss.Color("208") // Orange
	ColorError   = lipgloss.Color("196") // Red
	ColorInfo    = lipgloss.Color("86")  // Cyan

	// Neutral colors
	ColorText   = lipgloss.Color("252") // Light gray
	ColorSubtle = lipgloss.Color("241") // Medium gray
	ColorMuted  = lipgloss.Color("238") // Dark gray
)

// Base styles - building blocks for other styles
var (
	SubtleStyle = lipgloss.NewStyle().
			Foreground(ColorSubtle)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			MarginBottom(1)

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			Background(ColorMuted).
			Padding(0, 1)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	ControlKeyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	ControlDescStyle = lipgloss.NewStyle().
				Foreground(ColorText)
)

// Icons
var (
	IconSuccess = "✓"
	IconError   = "✗"
	IconSun     = "☀"
	IconDimmed  = "◐"
	IconActive  = "●"
	IconIdle    = "○"
)

// FormatControl renders a key binding hint.
func FormatControl(key, desc string) string {
	return ControlKeyStyle.Render(key) + " - " + ControlDescStyle.Render(desc)
}

// FormatState renders a controller state with its indicator.
func FormatState(state string) string {
	switch state {
	case "full-bright":
		return SuccessStyle.Render(IconSun + " " + state)
	case "dimmed", "at-floor":
		return WarningStyle.Render(IconDimmed + " " + state)
	default:
		return SubtleStyle.Render(IconIdle + " " + state)
	}
}

// FormatFlag renders a boolean as an indicator.
func FormatFlag(on bool) string {
	if on {
		return SuccessStyle.Render(IconActive)
	}
	return SubtleStyle.Render(IconIdle)
}

// FormatResult renders the outcome of a one-shot command.
func FormatResult(success bool, message string) string {
	if success {
		return SuccessStyle.Render(IconSuccess) + " " + message
	}
	return ErrorStyle.Render(IconError) + " " + message
}

// FormatAppHeader renders the application title with an optional subtitle.
func FormatAppHeader(title, subtitle string) string {
	header := TitleStyle.Render("softbright") + " " + HeaderStyle.UnsetMarginBottom().Render(title)
	if subtitle != "" {
		header += "\n" + SubtleStyle.Render(subtitle)
	}
	return header
}
