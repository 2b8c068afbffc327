package plot

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cast"
)

const (
	tableGap      = "  "
	emptyCellMark = "-"
)

type tableColumn struct {
	width   int
	numeric bool
}

// FormatTable lays out a report table. Each column is as wide as its widest
// cell. Columns holding only numbers are right aligned, and "-" or empty
// cells do not count against that.
func FormatTable(headers []string, rows [][]string) []string {
	cols := tableColumns(headers, rows)
	if len(cols) == 0 {
		return nil
	}
	lines := make([]string, 0, len(rows)+1)
	if len(headers) > 0 {
		lines = append(lines, renderTableRow(headers, cols))
	}
	for _, row := range rows {
		lines = append(lines, renderTableRow(row, cols))
	}
	return lines
}

// NumericColumns reports which columns FormatTable right aligns.
func NumericColumns(rows [][]string) map[int]bool {
	out := map[int]bool{}
	for i, col := range tableColumns(nil, rows) {
		if col.numeric {
			out[i] = true
		}
	}
	return out
}

func tableColumns(headers []string, rows [][]string) []tableColumn {
	n := len(headers)
	for _, row := range rows {
		n = max(n, len(row))
	}
	cols := make([]tableColumn, n)
	seen := make([]bool, n)
	for i, h := range headers {
		cols[i].width = runewidth.StringWidth(h)
	}
	for i := range cols {
		cols[i].numeric = len(rows) > 0
	}
	for _, row := range rows {
		for i, cell := range row {
			cols[i].width = max(cols[i].width, runewidth.StringWidth(cell))
			switch {
			case cell == "" || cell == emptyCellMark:
			case isNumber(cell):
				seen[i] = true
			default:
				cols[i].numeric = false
			}
		}
	}
	for i := range cols {
		cols[i].numeric = cols[i].numeric && seen[i]
	}
	return cols
}

func isNumber(cell string) bool {
	_, err := cast.ToFloat64E(strings.TrimSpace(cell))
	return err == nil
}

func renderTableRow(row []string, cols []tableColumn) string {
	cells := make([]string, len(cols))
	for i, col := range cols {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		if col.numeric {
			cells[i] = runewidth.FillLeft(cell, col.width)
		} else {
			cells[i] = runewidth.FillRight(cell, col.width)
		}
	}
	return strings.TrimRight(strings.Join(cells, tableGap), " ")
}
