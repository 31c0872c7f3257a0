package header

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/workbook"
)

func sheet(rows ...[]workbook.Cell) *workbook.Workbook {
	return &workbook.Workbook{Sheet: "Sheet1", Rows: rows}
}

func s(v string) workbook.Cell  { return workbook.StringCell(v) }
func n(v float64) workbook.Cell { return workbook.NumberCell(v) }

var empty = workbook.Cell{}

func TestLabelFor(t *testing.T) {
	tests := []struct {
		name             string
		top, mid, bottom string
		expected         string
	}{
		{"all parts", "Iron Ore", "Seaborne", "Million t", "Iron Ore - Seaborne - Million t"},
		{"empty middle", "Iron Ore", "", "Million t", "Iron Ore - Million t"},
		{"all empty", "", "", "", ""},
		{"whitespace only", "  ", "\t", " ", ""},
		{"trims parts", " Coal ", "", " y/y %", "Coal - y/y %"},
		{"bottom only", "", "", "Date", "Date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, LabelFor(tt.top, tt.mid, tt.bottom))
			// pure: same input, same output
			assert.Equal(t, LabelFor(tt.top, tt.mid, tt.bottom), LabelFor(tt.top, tt.mid, tt.bottom))
		})
	}
}

func TestResolve(t *testing.T) {
	wb := sheet(
		[]workbook.Cell{s("Clarksons Shipping Intelligence Network")},
		[]workbook.Cell{s("Seaborne trade: IRON ORE, coal and Grain")},
		[]workbook.Cell{s("includes Minor Bulk; iron ore revised")},
		[]workbook.Cell{empty, s("Iron Ore"), s("Coal"), empty},
		[]workbook.Cell{empty, empty, s("Trade"), empty},
		[]workbook.Cell{s("Date"), s("Million t"), n(534544), empty},
		[]workbook.Cell{s("2021-01-01"), n(120.5), n(80), s("Total shown")},
	)

	res := Resolve(wb, Options{})

	require.Len(t, res.Labels, 4)
	assert.Equal(t, "Date", res.Labels[0])
	assert.Equal(t, "Iron Ore - Million t", res.Labels[1])
	assert.Equal(t, "Coal - Trade - 534544", res.Labels[2])
	assert.Equal(t, "", res.Labels[3])

	assert.Equal(t, []string{"Iron Ore", "Coal", "Grain", "Minor Bulk", "Total"}, res.Cargos)
	assert.Contains(t, res.UpperText, "Clarksons Shipping Intelligence Network\n")
	assert.Contains(t, res.UpperText, "2021-01-01 120.5 80 Total shown")
}

func TestResolve_CustomHeaderRows(t *testing.T) {
	wb := sheet(
		[]workbook.Cell{s("Index")},
		[]workbook.Cell{s("BCI 5TC"), s("USD/day")},
	)

	res := Resolve(wb, Options{HeaderRows: [3]int{1, 2, 3}})
	assert.Equal(t, []string{"Index - BCI 5TC", "USD/day"}, res.Labels)
	assert.Equal(t, "Index\nBCI 5TC USD/day", res.UpperText)
}

func TestUnits(t *testing.T) {
	labels := []string{
		"Iron Ore - Billion Tonne-Miles",
		"Coal - Million t",
		"Grain - y/y",
		"Steel - % change",
		"Total YoY",
		"Date",
		"Million tonnes billion",
	}

	assert.Equal(t, []string{
		UnitBillionTonneMiles,
		UnitMillionTonnes,
		UnitYoY,
		UnitYoY,
		UnitYoY,
		UnitUnknown,
		UnitBillionTonneMiles,
	}, Units(labels))
}

func TestApply(t *testing.T) {
	tests := []struct {
		name     string
		labels   []string
		width    int
		expected []string
		hasNote  bool
	}{
		{"exact", []string{"a", "b"}, 2, []string{"a", "b"}, false},
		{"pads short", []string{"a"}, 3, []string{"a", "", ""}, true},
		{"truncates long", []string{"a", "b", "c"}, 2, []string{"a", "b"}, true},
		{"no labels", nil, 2, []string{"", ""}, true},
		{"no data", []string{"a"}, 0, []string{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applied, note := Apply(tt.labels, tt.width)
			assert.Equal(t, tt.expected, applied)
			assert.Len(t, applied, tt.width)
			assert.Equal(t, tt.hasNote, note != "")
		})
	}
}

func TestDisambiguate(t *testing.T) {
	got := Disambiguate([]string{"Date", "", "Coal", "", "Coal", "Coal.1"})
	assert.Equal(t, []string{"Date", "", "Coal", ".1", "Coal.1", "Coal.1.1"}, got)
}
