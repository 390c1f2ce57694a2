package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Width(10)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238"))
)

// renderStatusBar renders the mirror summary line.
func renderStatusBar(snap Snapshot, connected bool, width int) string {
	var status string
	if connected {
		dot := okStyle.Render("●")
		parts := []string{dot + " mirror live"}
		if snap.Focused != "" {
			parts = append(parts, "focus:"+snap.Focused)
		}
		if snap.Capture != "" {
			parts = append(parts, "capture:"+snap.Capture)
		}
		parts = append(parts, "pending:"+itoa(snap.Pending))
		status = strings.Join(parts, "  ")
	} else {
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("●")
		status = dot + " connection lost"
	}

	style := lipgloss.NewStyle().
		Width(width).
		Background(lipgloss.Color("235")).
		Foreground(lipgloss.Color("250")).
		Padding(0, 1)
	return style.Render(status)
}

// renderHelpBar renders the bottom keybinding bar with an optional status
// message on the left.
func renderHelpBar(status string, failed bool, width int) string {
	left := ""
	if status != "" {
		if failed {
			left = errorStyle.Render(status)
		} else {
			left = okStyle.Render(status)
		}
	}
	right := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render("j/k:move  v:toggle visible  f:focus  r:refresh  q:quit")

	gap := width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		Render(left + strings.Repeat(" ", gap) + right)
}

// renderDetail renders the selected window's state.
func renderDetail(row Row, width int) string {
	lines := []string{titleStyle.Render(" " + row.ID), ""}
	field := func(label, value string) {
		lines = append(lines, " "+labelStyle.Render(label)+valueStyle.Render(value))
	}
	field("bounds", row.Bounds)
	field("visible", yesNo(row.Visible))
	field("drawn", yesNo(row.Drawn))
	field("opacity", ftoa(row.Opacity))
	field("cursor", row.Cursor)
	field("modal", yesNo(row.Modal))
	switch {
	case row.Root:
		field("kind", "root")
	case row.Owned:
		field("kind", "owned")
	default:
		field("kind", "foreign")
	}
	if len(row.Props) > 0 {
		lines = append(lines, "", " "+titleStyle.Render("properties"))
		for _, p := range row.Props {
			lines = append(lines, " "+valueStyle.Render(p))
		}
	}
	return lipgloss.NewStyle().Width(width).Render(strings.Join(lines, "\n"))
}
