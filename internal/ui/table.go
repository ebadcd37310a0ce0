package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// MonitorRow is one line of the monitor listing.
type MonitorRow struct {
	Index     int
	Connector string
	Name      string
	X, Y      int
	Width     int
	Height    int
	Refresh   float64
	Primary   bool
	Dimmed    bool
}

// RenderMonitors renders monitors as a table.
func RenderMonitors(rows []MonitorRow) string {
	cells := make([][]string, len(rows))
	for i, r := range rows {
		primary := ""
		if r.Primary {
			primary = "◀"
		}
		refresh := "-"
		if r.Refresh > 0 {
			refresh = fmt.Sprintf("%.0f Hz", r.Refresh)
		}
		cells[i] = []string{
			fmt.Sprintf("%d", r.Index),
			r.Connector,
			r.Name,
			fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y),
			refresh,
			primary,
			FormatFlag(r.Dimmed),
		}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorSubtle)).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true).Padding(0, 1)
			case col == 0:
				return lipgloss.NewStyle().Foreground(ColorInfo).Bold(true).Padding(0, 1)
			default:
				return lipgloss.NewStyle().Foreground(ColorText).Padding(0, 1)
			}
		}).
		Headers("#", "CONNECTOR", "NAME", "GEOMETRY", "REFRESH", "PRIMARY", "DIMMED").
		Rows(cells...)
	return t.String()
}
