package workbook

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// relaxedLimits lifts the default unzip limits for oversized exports
var relaxedLimits = excelize.Options{
	RawCellValue:      true,
	UnzipSizeLimit:    16 << 30,
	UnzipXMLSizeLimit: 1 << 30,
}

// readExcelStream reads the sheet through the excelize row iterator
func readExcelStream(path string, opts ReadOptions) (*Workbook, error) {
	f, err := excelize.OpenFile(path, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	sheet, err := pickSheet(sheets, opts.Sheet)
	if err != nil {
		return nil, err
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create row iterator: %w", err)
	}
	defer rows.Close()

	typer := newCellTyper(f, sheet)
	out := make([][]Cell, 0, 256)
	rowNum := 0
	for rows.Next() {
		rowNum++
		values, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", rowNum, err)
		}
		out = append(out, typer.row(rowNum, values))
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return &Workbook{Path: path, Sheet: sheet, Sheets: sheets, Rows: out}, nil
}

// readExcelRows loads the whole sheet at once with relaxed size limits
func readExcelRows(path string, opts ReadOptions) (*Workbook, error) {
	f, err := excelize.OpenFile(path, relaxedLimits)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	sheet, err := pickSheet(sheets, opts.Sheet)
	if err != nil {
		return nil, err
	}

	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}

	typer := newCellTyper(f, sheet)
	out := make([][]Cell, len(raw))
	for i, values := range raw {
		out[i] = typer.row(i+1, values)
	}

	return &Workbook{Path: path, Sheet: sheet, Sheets: sheets, Rows: out}, nil
}

func pickSheet(sheets []string, want string) (string, error) {
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook has no sheets")
	}
	if want == "" {
		return sheets[0], nil
	}
	for _, s := range sheets {
		if s == want {
			return s, nil
		}
	}
	for _, s := range sheets {
		if strings.EqualFold(s, want) {
			return s, nil
		}
	}
	return "", fmt.Errorf("sheet %q not found (available: %s)", want, strings.Join(sheets, ", "))
}

// cellTyper turns raw excelize values into typed cells, using the cell type
// and number format to tell text, numbers and dates apart
type cellTyper struct {
	f         *excelize.File
	sheet     string
	dateStyle map[int]bool
}

func newCellTyper(f *excelize.File, sheet string) *cellTyper {
	return &cellTyper{f: f, sheet: sheet, dateStyle: make(map[int]bool)}
}

func (t *cellTyper) row(rowNum int, values []string) []Cell {
	cells := make([]Cell, len(values))
	for i, v := range values {
		cells[i] = t.cell(i+1, rowNum, v)
	}
	return cells
}

func (t *cellTyper) cell(col, row int, raw string) Cell {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Cell{}
	}

	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return parseText(raw)
	}

	typ, _ := t.f.GetCellType(t.sheet, name)
	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString:
		return StringCell(raw)
	case excelize.CellTypeDate:
		if ts, ok := parseISOTime(raw); ok {
			return DateCell(ts)
		}
		return StringCell(raw)
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return StringCell(raw)
	}
	num, _ := d.Float64()

	if t.isDate(name) {
		if ts, err := excelize.ExcelDateToTime(num, false); err == nil {
			return DateCell(ts)
		}
	}
	return NumberCell(num)
}

func (t *cellTyper) isDate(cellName string) bool {
	idx, err := t.f.GetCellStyle(t.sheet, cellName)
	if err != nil || idx == 0 {
		return false
	}
	if v, ok := t.dateStyle[idx]; ok {
		return v
	}

	isDate := false
	if style, err := t.f.GetStyle(idx); err == nil && style != nil {
		isDate = isBuiltinDateFormat(style.NumFmt)
		if style.CustomNumFmt != nil {
			isDate = isDateFormatCode(*style.CustomNumFmt)
		}
	}
	t.dateStyle[idx] = isDate
	return isDate
}

// isBuiltinDateFormat reports whether a built-in number format id renders a date
func isBuiltinDateFormat(id int) bool {
	switch {
	case id >= 14 && id <= 22:
		return true
	case id >= 27 && id <= 36:
		return true
	case id >= 50 && id <= 58:
		return true
	}
	return false
}

// isDateFormatCode inspects a custom format code, ignoring quoted literals
// and bracketed locale/colour sections
func isDateFormatCode(code string) bool {
	var b strings.Builder
	inQuote, inBracket := false, false
	for _, r := range strings.ToLower(code) {
		switch {
		case r == '"':
			inQuote = !inQuote
		case inQuote:
		case r == '[':
			inBracket = true
		case r == ']':
			inBracket = false
		case inBracket:
		default:
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	return strings.ContainsAny(cleaned, "yd")
}
