package workbook

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readDelimited handles spreadsheets that are really delimited text exports
// saved under a workbook extension
func readDelimited(path string, opts ReadOptions) (*Workbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	if Sniff(head) != SignatureText {
		return nil, fmt.Errorf("content is not delimited text")
	}

	data = bytes.TrimPrefix(data, utf8BOM)

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = detectDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := gocsv.NewSimpleDecoderFromCSVReader(r).GetCSVRows()
	if err != nil {
		return nil, fmt.Errorf("failed to parse delimited text: %w", err)
	}

	sheet := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if opts.Sheet != "" && !strings.EqualFold(opts.Sheet, sheet) {
		return nil, fmt.Errorf("sheet %q not found (delimited text has a single sheet)", opts.Sheet)
	}

	rows := make([][]Cell, len(records))
	for i, rec := range records {
		cells := make([]Cell, len(rec))
		for j, v := range rec {
			cells[j] = parseText(v)
		}
		rows[i] = cells
	}

	return &Workbook{Path: path, Sheet: sheet, Sheets: []string{sheet}, Rows: rows}, nil
}

// detectDelimiter picks the most frequent candidate delimiter across the
// first lines of the sample
func detectDelimiter(data []byte) rune {
	candidates := []rune{',', ';', '\t', '|'}
	lines := strings.SplitN(string(data), "\n", 11)
	if len(lines) > 10 {
		lines = lines[:10]
	}

	best, bestCount := ',', 0
	for _, c := range candidates {
		count := 0
		for _, line := range lines {
			count += strings.Count(line, string(c))
		}
		if count > bestCount {
			best, bestCount = c, count
		}
	}
	return best
}

// parseText types a cell that only exists as text
func parseText(raw string) Cell {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Cell{}
	}
	if d, err := decimal.NewFromString(raw); err == nil {
		f, _ := d.Float64()
		return NumberCell(f)
	}
	return StringCell(raw)
}

func parseISOTime(raw string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
