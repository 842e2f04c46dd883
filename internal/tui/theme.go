// Package tui renders hubgate CLI output with lipgloss.
package tui

import "github.com/charmbracelet/lipgloss"

// Theme centralizes all styling for CLI output.
type Theme struct {
	// Verification outcomes
	Passed  lipgloss.Style
	Skipped lipgloss.Style
	Failed  lipgloss.Style

	StatusQueued lipgloss.Style

	// UI elements
	Border    lipgloss.Style
	Title     lipgloss.Style
	Header    lipgloss.Style
	Dim       lipgloss.Style
	Highlight lipgloss.Style
}

func NewDefaultTheme() Theme {
	purple := lipgloss.Color("#874BFD")

	return Theme{
		Passed:       lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		Skipped:      lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00")),
		Failed:       lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")),
		StatusQueued: lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),

		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(purple).
			Padding(0, 1),
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")),
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#61AFEF")),
		Dim:       lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		Highlight: lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B")),
	}
}

// Verification picks the style for a recorded verification outcome.
func (t Theme) Verification(outcome string) lipgloss.Style {
	switch outcome {
	case "passed":
		return t.Passed
	case "skipped", "not_applicable":
		return t.Skipped
	default:
		return t.Failed
	}
}
