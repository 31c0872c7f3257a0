package codes

import (
	"regexp"
	"strings"
)

// versionSuffix is the "_MM_YY.xlsx" tail of an upload filename
var versionSuffix = regexp.MustCompile(`(?i)_\d{2}_\d{2}\.(xlsx|xlsm|xls)$`)

// Selection is the outcome of narrowing a table's columns
type Selection struct {
	BaseFilename string
	// Columns are the selected labels, Indices their positions in the input
	Columns []string
	Indices []int
	// CodesUsed lists the catalog codes that matched at least one column
	CodesUsed []string
	// Matched is true when the base filename is in the catalog
	Matched bool
	// Fallback is true when every column was kept
	Fallback bool
	// Suggestion is the nearest catalog key when the lookup missed
	Suggestion string
}

// BaseFilename strips the version suffix and lower-cases. Names without the
// suffix are only lower-cased.
func BaseFilename(filename string) string {
	return normalizeKey(versionSuffix.ReplaceAllString(strings.TrimSpace(filename), ""))
}

// HasVersionSuffix reports whether filename follows the _MM_YY convention
func HasVersionSuffix(filename string) bool {
	return versionSuffix.MatchString(strings.TrimSpace(filename))
}

// FindDateColumn returns the index of the first label containing "date",
// or -1
func FindDateColumn(labels []string) int {
	for i, l := range labels {
		if strings.Contains(strings.ToLower(l), "date") {
			return i
		}
	}
	return -1
}

// Select narrows labels to the date column followed by the columns of each
// catalog code, in catalog order. A filename missing from the catalog, or an
// empty selection, keeps every column.
func (c *Catalog) Select(labels []string, filename string) Selection {
	base := BaseFilename(filename)
	sel := Selection{BaseFilename: base}

	e, ok := c.entries[base]
	if !ok {
		sel.Suggestion = c.Suggest(base)
		return keepAll(sel, labels)
	}
	sel.Matched = true

	byCode := make([][]int, len(e.codes))
	for li, hits := range e.hits(labels) {
		for _, ci := range hits {
			byCode[ci] = append(byCode[ci], li)
		}
	}

	picked := make(map[int]struct{}, len(labels))
	indices := make([]int, 0, len(labels))
	if di := FindDateColumn(labels); di >= 0 {
		picked[di] = struct{}{}
		indices = append(indices, di)
	}

	for ci, labelIdx := range byCode {
		if len(labelIdx) == 0 {
			continue
		}
		sel.CodesUsed = append(sel.CodesUsed, e.codes[ci])
		for _, li := range labelIdx {
			if _, dup := picked[li]; dup {
				continue
			}
			picked[li] = struct{}{}
			indices = append(indices, li)
		}
	}

	if len(indices) == 0 {
		return keepAll(sel, labels)
	}

	sel.Indices = indices
	sel.Columns = make([]string, len(indices))
	for i, li := range indices {
		sel.Columns[i] = labels[li]
	}
	return sel
}

func keepAll(sel Selection, labels []string) Selection {
	sel.Fallback = true
	sel.Columns = append([]string(nil), labels...)
	sel.Indices = make([]int, len(labels))
	for i := range labels {
		sel.Indices[i] = i
	}
	return sel
}
