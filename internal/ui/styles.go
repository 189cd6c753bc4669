package ui

import "github.com/charmbracelet/lipgloss"

// Styles holds all lipgloss styles for the app
type Styles struct {
	App    lipgloss.Style
	Header lipgloss.Style
	Footer lipgloss.Style

	// Worker phases
	PhaseInitializing lipgloss.Style
	PhaseReady        lipgloss.Style
	PhaseFailed       lipgloss.Style
	PhaseTerminated   lipgloss.Style

	// Form
	Label        lipgloss.Style
	LabelFocused lipgloss.Style
	Notice       lipgloss.Style

	// Download panel
	MonitorBox lipgloss.Style
	TaskTitle  lipgloss.Style
	TaskDone   lipgloss.Style
	TaskFailed lipgloss.Style
	Dim        lipgloss.Style

	// Diagnostics
	LogViewport lipgloss.Style
	LogLine     lipgloss.Style
	LogError    lipgloss.Style

	HelpKey lipgloss.Style
}

// DefaultStyles returns the default color scheme
func DefaultStyles() *Styles {
	subtle := lipgloss.AdaptiveColor{Light: "#666", Dark: "#999"}
	highlight := lipgloss.AdaptiveColor{Light: "#7D56F4", Dark: "#AD8EE6"}
	success := lipgloss.AdaptiveColor{Light: "#00AA00", Dark: "#00FF00"}
	warning := lipgloss.AdaptiveColor{Light: "#AAAA00", Dark: "#FFFF00"}
	errorColor := lipgloss.AdaptiveColor{Light: "#AA0000", Dark: "#FF0000"}
	info := lipgloss.AdaptiveColor{Light: "#0066CC", Dark: "#00AAFF"}

	return &Styles{
		App: lipgloss.NewStyle().
			Padding(1, 2),

		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(highlight).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(subtle).
			MarginBottom(1).
			Padding(0, 1),

		Footer: lipgloss.NewStyle().
			Foreground(subtle).
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(subtle).
			MarginTop(1).
			Padding(0, 1),

		PhaseInitializing: lipgloss.NewStyle().
			Foreground(info),

		PhaseReady: lipgloss.NewStyle().
			Foreground(success).
			Bold(true),

		PhaseFailed: lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true),

		PhaseTerminated: lipgloss.NewStyle().
			Foreground(warning),

		Label: lipgloss.NewStyle().
			Foreground(subtle).
			Width(10),

		LabelFocused: lipgloss.NewStyle().
			Foreground(highlight).
			Bold(true).
			Width(10),

		Notice: lipgloss.NewStyle().
			Foreground(warning),

		MonitorBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(subtle).
			Padding(0, 1).
			MarginTop(1),

		TaskTitle: lipgloss.NewStyle().
			Bold(true),

		TaskDone: lipgloss.NewStyle().
			Foreground(success),

		TaskFailed: lipgloss.NewStyle().
			Foreground(errorColor),

		Dim: lipgloss.NewStyle().
			Foreground(subtle),

		LogViewport: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(highlight).
			Padding(0, 1),

		LogLine: lipgloss.NewStyle().
			Foreground(subtle),

		LogError: lipgloss.NewStyle().
			Foreground(errorColor),

		HelpKey: lipgloss.NewStyle().
			Foreground(highlight).
			Bold(true),
	}
}
