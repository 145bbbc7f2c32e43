package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Table renders left-aligned columns sized to their widest cell
type Table struct {
	headers []string
	rows    [][]string
}

// NewTable creates a table with the given column headers
func NewTable(headers ...string) *Table {
	return &Table{headers: headers}
}

// AddRow appends a row. Missing cells render empty and extra cells are dropped.
func (t *Table) AddRow(cells ...string) *Table {
	row := make([]string, len(t.headers))
	copy(row, cells)
	t.rows = append(t.rows, row)
	return t
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.rows)
}

// Render returns the table as text
func (t *Table) Render() string {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	b.WriteString(t.renderRow(t.headers, widths, TableHeaderStyle))
	for _, row := range t.rows {
		b.WriteString("\n")
		b.WriteString(t.renderRow(row, widths, ValueStyle))
	}
	return b.String()
}

func (t *Table) renderRow(cells []string, widths []int, style lipgloss.Style) string {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = style.Width(widths[i]).Render(cell)
	}
	return "  " + strings.TrimRight(strings.Join(parts, "  "), " ")
}
