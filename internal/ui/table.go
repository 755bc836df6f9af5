package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"refbind/internal/binding"
	"refbind/internal/mode"
	"refbind/internal/valuecat"
)

// TableHeaders are the column titles of the decision table.
func TableHeaders() []string {
	h := []string{"form", "context"}
	for _, c := range valuecat.Categories {
		h = append(h, c.String())
	}
	return h
}

// TableRows renders binding.Table(m) as text cells.
func TableRows(m mode.Mode) [][]string {
	rows := binding.Table(m)
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		line := []string{r.Form.String(), r.Context.String()}
		for _, cell := range r.Cells {
			line = append(line, cell.Label())
		}
		out = append(out, line)
	}
	return out
}

// RenderTable draws the decision table for m. Without color the output is
// plain box-drawing text, stable enough for golden comparisons.
func RenderTable(m mode.Mode, color bool) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(TableHeaders()...).
		Rows(TableRows(m)...)

	if color {
		header := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7")).Padding(0, 1)
		cell := lipgloss.NewStyle().Padding(0, 1)
		t = t.BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return header
				}
				return cell
			})
	} else {
		plain := lipgloss.NewStyle().Padding(0, 1)
		t = t.StyleFunc(func(int, int) lipgloss.Style { return plain })
	}

	title := "binding decision table (" + m.String() + " mode)"
	return title + "\n" + strings.TrimRight(t.Render(), "\n") + "\n"
}

// verdictStyle colors a verdict label for the resolve command.
func verdictStyle(v binding.Verdict) lipgloss.Style {
	switch v.Kind {
	case binding.Allowed:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	case binding.AllowedViaTemporary:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
}

// Verdict renders v, colored when color is set.
func Verdict(v binding.Verdict, color bool) string {
	s := v.String()
	if !color {
		return s
	}
	return verdictStyle(v).Render(s)
}
