package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/workbook"
)

func TestInspect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upload.xlsx")
	require.NoError(t, workbook.WriteSheet(path, "Sheet1", [][]any{
		{"Baltic Exchange"},
		{""},
		{""},
		{"", "BCI 5TC", "BCI 4TC"},
		{"", "USD/day", "USD/day"},
		{"Date", "534544", "100001"},
		{time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC), 15000.0, 14000.0},
		{time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), 16000.0, 15000.0},
	}))

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"inspect", path, "--name", "SIN_Timeseries_BCI 5TC_11_25.xlsx", "--rows", "1"})
	require.NoError(t, cmd.Execute())

	var got inspectOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.True(t, got.CatalogMatched)
	assert.Equal(t, []string{"534544"}, got.CodesUsed)
	assert.Equal(t, []string{"Date", "BCI 5TC - USD/day - 534544"}, got.SelectedColumns)
	assert.Equal(t, 2, got.RowCount)
	assert.Len(t, got.Data, 1)
}

func TestInspect_MissingFile(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"inspect", filepath.Join(t.TempDir(), "nope.xlsx")})
	assert.Error(t, cmd.Execute())
}

func TestCharts_InvalidView(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"charts", "--view", "tankers"})
	assert.Error(t, cmd.Execute())
}
