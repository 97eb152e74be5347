package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Label colors
	colorWaiting  = lipgloss.Color("240") // gray
	colorError    = lipgloss.Color("196") // red
	colorOverride = lipgloss.Color("208") // orange-red
	colorFull     = lipgloss.Color("220") // yellow
	colorOpen     = lipgloss.Color("46")  // green

	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			PaddingLeft(1).
			PaddingRight(1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			MarginTop(1).
			MarginBottom(0)

	courseStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	selectedCourseStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Background(lipgloss.Color("237"))

	detailKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Width(14)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

func labelIcon(label string) string {
	switch label {
	case "waiting":
		return "⏳"
	case "error":
		return "⚠️"
	case "override":
		return "🔒"
	case "full":
		return "⛔"
	case "open":
		return "✅"
	default:
		return "❓"
	}
}

func labelColor(label string) lipgloss.Color {
	switch label {
	case "waiting":
		return colorWaiting
	case "error":
		return colorError
	case "override":
		return colorOverride
	case "full":
		return colorFull
	case "open":
		return colorOpen
	default:
		return lipgloss.Color("252")
	}
}
