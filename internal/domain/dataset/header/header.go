// Package header rebuilds column names from the three stacked header rows of
// a market-data sheet and pulls cargo and unit hints from the title block.
package header

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/workbook"
)

// Separator joins the parts of a resolved label
const Separator = " - "

// DefaultHeaderRows are the 1-based rows holding the stacked header
var DefaultHeaderRows = [3]int{4, 5, 6}

// Unit classes assigned to labels
const (
	UnitBillionTonneMiles = "billion tonne-miles"
	UnitMillionTonnes     = "million tonnes"
	UnitYoY               = "yoy"
	UnitUnknown           = "unknown"
)

// cargoPattern matches the cargo vocabulary; longer names come first so
// "Nickel Ore" wins over a shorter overlap
var cargoPattern = regexp.MustCompile(`(?i)\b(iron ore|nickel ore|minor bulk|coal|grain|other|bauxite|alumina|steel|fertilizer|coke|scrap|total)\b`)

var titleCaser = cases.Title(language.English)

// Options configures header resolution
type Options struct {
	HeaderRows [3]int
}

// Resolution is everything derived from the header block of a sheet
type Resolution struct {
	Labels    []string
	UpperText string
	Cargos    []string
}

// LabelFor joins the non-empty trimmed parts with Separator
func LabelFor(top, mid, bottom string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{top, mid, bottom} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, Separator)
}

// Resolve builds one label per populated column of the sheet
func Resolve(wb *workbook.Workbook, opts Options) Resolution {
	rows := opts.HeaderRows
	if rows == [3]int{} {
		rows = DefaultHeaderRows
	}

	maxCol := wb.MaxColumn()
	labels := make([]string, maxCol)
	for col := 1; col <= maxCol; col++ {
		labels[col-1] = LabelFor(
			wb.Cell(rows[0], col).String(),
			wb.Cell(rows[1], col).String(),
			wb.Cell(rows[2], col).String(),
		)
	}

	upper := UpperText(wb, max(rows[0], rows[1], rows[2])+1)
	return Resolution{
		Labels:    labels,
		UpperText: upper,
		Cargos:    ExtractCargos(upper),
	}
}

// UpperText concatenates rows 1..lastRow: cells space-joined, non-empty rows
// newline-joined
func UpperText(wb *workbook.Workbook, lastRow int) string {
	lines := make([]string, 0, lastRow)
	for r := 1; r <= lastRow; r++ {
		cells := wb.Row(r)
		parts := make([]string, 0, len(cells))
		for _, c := range cells {
			if s := c.String(); s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) > 0 {
			lines = append(lines, strings.Join(parts, " "))
		}
	}
	return strings.Join(lines, "\n")
}

// ExtractCargos returns the cargo names found in text, title-cased, in order
// of first appearance
func ExtractCargos(text string) []string {
	matches := cargoPattern.FindAllString(text, -1)
	seen := make(map[string]struct{}, len(matches))
	cargos := make([]string, 0, len(matches))
	for _, m := range matches {
		name := titleCaser.String(strings.ToLower(m))
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		cargos = append(cargos, name)
	}
	return cargos
}

// Units classifies each label; the first matching rule wins
func Units(labels []string) []string {
	units := make([]string, len(labels))
	for i, l := range labels {
		units[i] = unitFor(l)
	}
	return units
}

func unitFor(label string) string {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "billion"):
		return UnitBillionTonneMiles
	case strings.Contains(l, "million"):
		return UnitMillionTonnes
	case strings.Contains(l, "y/y"), strings.Contains(l, "%"), strings.Contains(l, "yoy"):
		return UnitYoY
	default:
		return UnitUnknown
	}
}

// Apply fits labels to the data column count: short lists are padded with
// empty labels, long ones truncated. The note describes any mismatch.
func Apply(labels []string, width int) ([]string, string) {
	if width < 0 {
		width = 0
	}
	applied := make([]string, width)
	copy(applied, labels)

	var note string
	switch {
	case len(labels) < width:
		note = fmt.Sprintf("resolved %d header labels for %d data columns; padded with empty labels", len(labels), width)
	case len(labels) > width:
		note = fmt.Sprintf("resolved %d header labels for %d data columns; truncated", len(labels), width)
	}
	return applied, note
}

// Disambiguate suffixes repeated labels with ".N" so every column has a
// distinct key; the first occurrence keeps its name
func Disambiguate(labels []string) []string {
	out := make([]string, len(labels))
	used := make(map[string]struct{}, len(labels))
	counts := make(map[string]int, len(labels))
	for i, l := range labels {
		if _, dup := used[l]; !dup {
			used[l] = struct{}{}
			out[i] = l
			continue
		}
		for {
			counts[l]++
			candidate := l + "." + strconv.Itoa(counts[l])
			if _, taken := used[candidate]; !taken {
				used[candidate] = struct{}{}
				out[i] = candidate
				break
			}
		}
	}
	return out
}
