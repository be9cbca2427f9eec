package ui

import "github.com/charmbracelet/lipgloss"

// ColorLime is the accent color for the active stage and progress fill.
const ColorLime = "#A3E635"

// Styles groups the lipgloss styles used by the TUI renderer.
type Styles struct {
	Active lipgloss.Style
	Dim    lipgloss.Style
	Label  lipgloss.Style
}

// DefaultStyles returns the color styles for a TTY with color support.
func DefaultStyles() Styles {
	return Styles{
		Active: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime)).Bold(true),
		Dim:    lipgloss.NewStyle().Faint(true),
		Label:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

// NoColorStyles returns styles with no color attributes, for NO_COLOR.
func NoColorStyles() Styles {
	return Styles{
		Active: lipgloss.NewStyle().Bold(true),
		Dim:    lipgloss.NewStyle(),
		Label:  lipgloss.NewStyle(),
	}
}
