// Package workbook loads uploaded spreadsheets into typed rows.
// It tries several parsing engines in a fixed order and reports every
// failure when none of them can read the file.
package workbook

import (
	"strconv"
	"strings"
	"time"
)

// DataStartRow is the 1-based row where data begins. Rows above it hold
// titles, notes and the three header rows.
const DataStartRow = 7

// CellKind identifies the type of a cell value
type CellKind int

const (
	CellEmpty CellKind = iota
	CellString
	CellNumber
	CellDate
)

// Cell is one typed cell value
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
	Time   time.Time
}

// StringCell builds a string cell, collapsing blank text to an empty cell
func StringCell(s string) Cell {
	s = strings.TrimSpace(s)
	if s == "" {
		return Cell{}
	}
	return Cell{Kind: CellString, Text: s}
}

// NumberCell builds a numeric cell
func NumberCell(f float64) Cell {
	return Cell{Kind: CellNumber, Number: f}
}

// DateCell builds a date cell
func DateCell(t time.Time) Cell {
	return Cell{Kind: CellDate, Time: t}
}

// IsEmpty reports whether the cell holds no value
func (c Cell) IsEmpty() bool {
	return c.Kind == CellEmpty
}

// String returns the trimmed textual form of the cell. Numbers use the
// shortest decimal representation so a code stored as 534544.0 reads "534544".
func (c Cell) String() string {
	switch c.Kind {
	case CellString:
		return c.Text
	case CellNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case CellDate:
		return FormatDate(c.Time)
	default:
		return ""
	}
}

// FormatDate renders a date as ISO, adding the clock only when it is set
func FormatDate(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}

// Workbook is one loaded sheet of a spreadsheet
type Workbook struct {
	Path      string
	Sheet     string
	Sheets    []string
	Engine    string
	Signature Signature
	// Failed lists the engines that were tried before Engine succeeded
	Failed []EngineAttempt
	Rows   [][]Cell
}

// Row returns the 1-based row n, or nil when the sheet is shorter
func (w *Workbook) Row(n int) []Cell {
	if n < 1 || n > len(w.Rows) {
		return nil
	}
	return w.Rows[n-1]
}

// Cell returns the cell at 1-based row and column, empty when out of range
func (w *Workbook) Cell(row, col int) Cell {
	r := w.Row(row)
	if col < 1 || col > len(r) {
		return Cell{}
	}
	return r[col-1]
}

// MaxColumn returns the highest populated 1-based column index in the sheet
func (w *Workbook) MaxColumn() int {
	maxCol := 0
	for _, row := range w.Rows {
		if n := populatedWidth(row); n > maxCol {
			maxCol = n
		}
	}
	return maxCol
}

// DataRows returns the rows from DataStartRow onwards
func (w *Workbook) DataRows() [][]Cell {
	if len(w.Rows) < DataStartRow {
		return nil
	}
	return w.Rows[DataStartRow-1:]
}

// DataWidth returns the widest populated data row
func (w *Workbook) DataWidth() int {
	width := 0
	for _, row := range w.DataRows() {
		if n := populatedWidth(row); n > width {
			width = n
		}
	}
	return width
}

func populatedWidth(row []Cell) int {
	for i := len(row) - 1; i >= 0; i-- {
		if !row[i].IsEmpty() {
			return i + 1
		}
	}
	return 0
}
