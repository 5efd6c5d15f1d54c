package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/agentic-research/impactree/internal/selector"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Right)
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// renderTable writes t with one header per column. corner heads the row
// label column.
func renderTable(w io.Writer, corner string, t *selector.Table, headers []string) error {
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(append([]string{corner}, headers...)...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return labelStyle
			default:
				return cellStyle
			}
		})

	_, cols := t.Shape()
	for i, r := range t.Rows() {
		cells := make([]string, 0, cols+1)
		cells = append(cells, r)
		for j := range cols {
			cells = append(cells, formatFloat(t.At(i, j)))
		}
		tbl.Row(cells...)
	}
	_, err := fmt.Fprintln(w, tbl.Render())
	return err
}
