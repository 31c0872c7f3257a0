// Package table turns typed sheet rows into JSON-safe records keyed by
// resolved column labels.
package table

import (
	"math"
	"path/filepath"
	"strings"

	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/workbook"
)

// CompanionPrefix is prepended to the original stem of a processed workbook
const CompanionPrefix = "processed_"

// Record is one data row: label -> string, float64 or nil
type Record map[string]any

// Normalize converts data rows into records. keys[i] names column i; cells
// beyond len(keys) are ignored. Rows with no value at all are dropped.
func Normalize(rows [][]workbook.Cell, keys []string) []Record {
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec := make(Record, len(keys))
		populated := false
		for i, key := range keys {
			var c workbook.Cell
			if i < len(row) {
				c = row[i]
			}
			v := value(c)
			if v != nil {
				populated = true
			}
			rec[key] = v
		}
		if populated {
			records = append(records, rec)
		}
	}
	return records
}

func value(c workbook.Cell) any {
	switch c.Kind {
	case workbook.CellString:
		return c.Text
	case workbook.CellNumber:
		if math.IsNaN(c.Number) || math.IsInf(c.Number, 0) {
			return nil
		}
		return c.Number
	case workbook.CellDate:
		return workbook.FormatDate(c.Time)
	default:
		return nil
	}
}

// Narrow keeps only the given columns of each record. Records left with no
// value in any of those columns are dropped.
func Narrow(records []Record, columns []string) []Record {
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		n := make(Record, len(columns))
		empty := true
		for _, col := range columns {
			v := rec[col]
			if v != nil {
				empty = false
			}
			n[col] = v
		}
		if empty {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Head returns at most n records
func Head(records []Record, n int) []Record {
	if n < 0 || n >= len(records) {
		return records
	}
	return records[:n]
}

// Sanitize returns v with every NaN or infinite float replaced by nil,
// descending into maps and slices
func Sanitize(v any) any {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		return t
	case float32:
		f := float64(t)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return t
	case Record:
		out := make(Record, len(t))
		for k, e := range t {
			out[k] = Sanitize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Sanitize(e)
		}
		return out
	case []Record:
		out := make([]Record, len(t))
		for i, e := range t {
			out[i] = Sanitize(e).(Record)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i, e := range t {
			out[i] = Sanitize(e).(map[string]any)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Sanitize(e)
		}
		return out
	case []float64:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Sanitize(e)
		}
		return out
	default:
		return v
	}
}

// CompanionName is the processed workbook name for an uploaded file
func CompanionName(original string) string {
	base := filepath.Base(original)
	return CompanionPrefix + strings.TrimSuffix(base, filepath.Ext(base)) + ".xlsx"
}

// WriteCompanion writes the narrowed table to path: one header row with
// columns in order, then one row per record
func WriteCompanion(path string, columns []string, records []Record) error {
	rows := make([][]any, 0, len(records)+1)

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	rows = append(rows, header)

	for _, rec := range records {
		row := make([]any, len(columns))
		for i, c := range columns {
			row[i] = Sanitize(rec[c])
		}
		rows = append(rows, row)
	}

	return workbook.WriteSheet(path, "Sheet1", rows)
}
