// Package render prints a generated schedule for the terminal.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"cyclecal/internal/model"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	typeStyles  = map[model.DayType]lipgloss.Style{
		model.School:  lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		model.Holiday: lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		model.PD:      lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		model.Exam:    lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	}
)

const (
	dateWidth  = 16
	typeWidth  = 9
	cycleWidth = 7
)

// Table writes one line per generated day: date, day type, cycle day
// (with * for a manual override) and the named classes with rooms.
func Table(w io.Writer, days []model.GeneratedDay) error {
	header := pad("Date", dateWidth) + pad("Type", typeWidth) + pad("Cycle", cycleWidth) + "Classes"
	if _, err := fmt.Fprintln(w, headerStyle.Render(header)); err != nil {
		return err
	}
	for _, d := range days {
		line := pad(d.Date.Time().Format("Mon, Jan 2 2006"), dateWidth) +
			typeStyles[d.Type].Render(pad(string(d.Type), typeWidth)) +
			pad(cycleCell(d), cycleWidth) +
			classesCell(d)
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func cycleCell(d model.GeneratedDay) string {
	if d.CycleDay == nil {
		return "-"
	}
	s := fmt.Sprintf("Day %d", *d.CycleDay)
	if d.OverrideCycleDay != nil {
		s += "*"
	}
	return s
}

func classesCell(d model.GeneratedDay) string {
	if d.CycleDay == nil {
		return ""
	}
	var parts []string
	for _, c := range d.Classes {
		if c.Name == "" {
			continue
		}
		if c.Room != "" {
			parts = append(parts, fmt.Sprintf("%s (%s)", c.Name, c.Room))
		} else {
			parts = append(parts, c.Name)
		}
	}
	if len(parts) == 0 {
		return dimStyle.Render("No classes configured")
	}
	return strings.Join(parts, ", ")
}

// pad right-pads s to width display cells.
func pad(s string, width int) string {
	if n := lipgloss.Width(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s + " "
}
