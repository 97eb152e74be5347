package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/marcin-skalski/seatwatch/internal/seats"
)

const nameWidth = 25

func renderListView(snap Snapshot, selected int) string {
	var b strings.Builder

	// Header
	open := 0
	for _, c := range snap.Courses {
		if c.HasReading && c.Remaining > 0 {
			open++
		}
	}
	header := fmt.Sprintf("seatwatch │ %d courses │ %d open │ %d pollers",
		len(snap.Courses), open, snap.PollerCount)
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("🎓 Watched Courses"))
	b.WriteString("\n")
	b.WriteString(renderCourses(snap.Courses, selected, snap.Timestamp))

	if snap.LastReconcileErr != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("reconcile: " + snap.LastReconcileErr))
		b.WriteString("\n")
	}

	// Footer
	reconciled := "never"
	if !snap.LastReconcile.IsZero() {
		reconciled = snap.LastReconcile.Format("15:04:05")
	}
	footer := fmt.Sprintf("Last updated: %s │ reconciled: %s │ q:quit r:refresh ↑↓:select enter:details",
		snap.Timestamp.Format("15:04:05"), reconciled)
	b.WriteString(footerStyle.Render(footer))

	return b.String()
}

func renderCourses(courses []CourseState, selected int, now time.Time) string {
	if len(courses) == 0 {
		return emptyStyle.Render("  (no courses being watched)")
	}

	var b strings.Builder
	for i, c := range courses {
		label := c.Label()

		name := runewidth.Truncate(c.Name, nameWidth, "...")
		name = runewidth.FillRight(name, nameWidth)

		seatsCol := "  -/-"
		if c.HasReading {
			seatsCol = fmt.Sprintf("%3d/%-3d", c.Remaining, c.Capacity)
		}

		checked := "never"
		if !c.LastCheck.IsZero() {
			checked = formatDuration(now.Sub(c.LastCheck)) + " ago"
		}

		line := fmt.Sprintf("%d. %s %s %s %-8s checked %s",
			i+1, name, seatsCol, labelIcon(label), label, checked)

		style := courseStyle.Foreground(labelColor(label))
		if i == selected {
			style = selectedCourseStyle
			line = "▶ " + line
		} else {
			line = "  " + line
		}
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}

	return b.String()
}

func renderDetailView(c CourseState, now time.Time) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("seatwatch │ " + c.Name))
	b.WriteString("\n\n")

	row := func(key, value string) {
		b.WriteString(detailKeyStyle.Render(key))
		b.WriteString(value)
		b.WriteString("\n")
	}

	label := c.Label()
	row("Status", lipgloss.NewStyle().Foreground(labelColor(label)).Render(labelIcon(label)+" "+label))
	row("ID", c.ID)
	row("Recipients", fmt.Sprintf("%d", c.Recipients))
	if c.HasReading {
		row("Capacity", fmt.Sprintf("%d", c.Capacity))
		row("Enrolled", fmt.Sprintf("%d", c.Actual))
		row("Remaining", fmt.Sprintf("%d", c.Remaining))
		row("Summary", seats.DescribeRemaining(c.Remaining))
	}
	if !c.LastCheck.IsZero() {
		row("Last check", fmt.Sprintf("%s (%s ago)", c.LastCheck.Format("15:04:05"), formatDuration(now.Sub(c.LastCheck))))
	}
	if !c.LastChange.IsZero() {
		row("Last change", c.LastChange.Format("2006-01-02 15:04:05"))
	}
	row("Alerts sent", fmt.Sprintf("%d", c.Alerts))
	if c.LastError != "" {
		row("Last error", errorStyle.Render(c.LastError))
	}

	b.WriteString(footerStyle.Render("esc:back q:quit"))
	return b.String()
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
