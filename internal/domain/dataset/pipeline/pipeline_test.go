package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/codes"
	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/header"
	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/table"
	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/workbook"
	"github.com/FACorreiaa/maritime-portal/pkg/metrics"
)

func newPipeline(t *testing.T) *Pipeline {
	t.Helper()
	catalog, err := codes.New(codes.Manifest{Series: []codes.SeriesEntry{
		{File: "SIN_Timeseries_BCI 5TC", Codes: []string{"534544"}},
	}})
	require.NoError(t, err)
	return New(catalog, header.DefaultHeaderRows, metrics.New())
}

func writeBCI(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "stored.xlsx")
	rows := [][]any{
		{"Baltic Exchange"},
		{"Capesize Index"},
		{"Source: Clarksons; coal and iron ore routes"},
		{"", "BCI 5TC", "BCI 4TC", "BCI 5TC"},
		{"", "USD/day", "USD/day", "USD/day"},
		{"Date", "534544", "100001", "534544"},
		{time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), 15000.0, 14000.0, 15001.0},
		{nil, nil, nil, nil},
		{time.Date(2021, 1, 8, 0, 0, 0, 0, time.UTC), 16000.0, 15000.0, 16001.0},
	}
	require.NoError(t, workbook.WriteSheet(path, "Sheet1", rows))
	return path
}

func TestRun_CatalogHit(t *testing.T) {
	p := newPipeline(t)
	path := writeBCI(t, t.TempDir())

	res, err := p.Run(path, "SIN_Timeseries_BCI 5TC_11_25.xlsx", "")
	require.NoError(t, err)

	label := "BCI 5TC - USD/day - 534544"
	assert.Equal(t, []string{"Date", label, "BCI 4TC - USD/day - 100001", label + ".1"}, res.Keys)
	assert.Equal(t, []string{"Date", label, label + ".1"}, res.Selection.Columns)
	assert.Equal(t, []string{"534544"}, res.Selection.CodesUsed)
	assert.Equal(t, "Date", res.DateColumn())
	assert.Empty(t, res.LabelNote)
	assert.Equal(t, []string{"Coal", "Iron Ore"}, res.Resolution.Cargos)

	require.Len(t, res.Records, 2)
	require.Len(t, res.Narrowed, 2)
	assert.Equal(t, table.Record{"Date": "2021-01-01", label: 15000.0, label + ".1": 15001.0}, res.Narrowed[0])
}

func TestRun_CatalogMissKeepsAllColumns(t *testing.T) {
	p := newPipeline(t)
	path := writeBCI(t, t.TempDir())

	res, err := p.Run(path, "unknown_11_25.xlsx", "")
	require.NoError(t, err)

	assert.False(t, res.Selection.Matched)
	assert.Equal(t, res.Keys, res.Selection.Columns)
	assert.Empty(t, res.Selection.CodesUsed)
}

func TestRun_Unreadable(t *testing.T) {
	p := newPipeline(t)
	path := filepath.Join(t.TempDir(), "broken.xls")
	require.NoError(t, os.WriteFile(path, []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1, 0x00, 0x00}, 0o644))

	_, err := p.Run(path, "broken_11_25.xls", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, workbook.ErrUnreadable)
}
