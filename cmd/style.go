package cmd

import (
	"strings"

	"charm.land/lipgloss/v2"
)

var (
	colorPrimary = lipgloss.Color("#8B5CF6")
	colorAccent  = lipgloss.Color("#F97316")
	colorDim     = lipgloss.Color("#94A3B8")
	colorError   = lipgloss.Color("#F43F5E")

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	dimStyle    = lipgloss.NewStyle().Foreground(colorDim)
	errorStyle  = lipgloss.NewStyle().Foreground(colorError)
	bodyStyle   = lipgloss.NewStyle()
)

// column is one fixed-width table column.
type column struct {
	title string
	width int
	right bool
}

// renderRow pads cells to their column widths.
func renderRow(cols []column, cells []string, style lipgloss.Style) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		s := style.Width(c.width).MaxWidth(c.width)
		if c.right {
			s = s.Align(lipgloss.Right)
		}
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		parts[i] = s.Render(cell)
	}
	return strings.Join(parts, "  ")
}

func renderHeader(cols []column) string {
	titles := make([]string, len(cols))
	width := 0
	for i, c := range cols {
		titles[i] = c.title
		width += c.width + 2
	}
	return renderRow(cols, titles, headerStyle) + "\n" + dimStyle.Render(strings.Repeat("─", width-2))
}

func rule(cols []column) string {
	width := 0
	for _, c := range cols {
		width += c.width + 2
	}
	return dimStyle.Render(strings.Repeat("─", width-2))
}
