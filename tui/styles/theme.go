package styles

import "github.com/charmbracelet/lipgloss"

var (
	PrimaryColor = lipgloss.Color("#7C3AED")
	SuccessColor = lipgloss.Color("#22C55E")
	WarningColor = lipgloss.Color("#EAB308")
	ErrorColor   = lipgloss.Color("#EF4444")
	MutedColor   = lipgloss.Color("#6B7280")
	TextColor    = lipgloss.Color("#F9FAFB")

	Muted = lipgloss.NewStyle().Foreground(MutedColor)

	TabActive = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor).
			Padding(0, 2)

	TabInactive = lipgloss.NewStyle().
			Foreground(MutedColor).
			Padding(0, 2)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor).
		Padding(0, 1)

	StatusBar = lipgloss.NewStyle().
			Foreground(MutedColor).
			Padding(0, 1)

	StatusSuccess = lipgloss.NewStyle().Foreground(SuccessColor)
	StatusError   = lipgloss.NewStyle().Foreground(ErrorColor)
	StatusPending = lipgloss.NewStyle().Foreground(WarningColor)

	TableHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor)

	TableSelected = lipgloss.NewStyle().
			Background(PrimaryColor).
			Foreground(TextColor)
)

// RunStatus picks the colour for a sync_runs.status value.
func RunStatus(status string) lipgloss.Style {
	switch status {
	case "completed":
		return StatusSuccess
	case "failed":
		return StatusError
	case "incomplete", "running":
		return StatusPending
	default:
		return Muted
	}
}
