package charts

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/codes"
	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/header"
	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/pipeline"
	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/repository"
	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/table"
	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/workbook"
	"github.com/FACorreiaa/maritime-portal/pkg/metrics"
	"github.com/FACorreiaa/maritime-portal/pkg/storage"
)

var ref = time.Date(2025, 11, 14, 9, 0, 0, 0, time.UTC)

func TestSuffix(t *testing.T) {
	tests := []struct {
		name   string
		ref    time.Time
		offset int
		want   string
	}{
		{"current month", ref, 0, "_11_25"},
		{"previous month", ref, -1, "_10_25"},
		{"january wraps to december", time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), -1, "_12_24"},
		{"end of month", time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), -1, "_02_25"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Suffix(tt.ref, tt.offset))
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		filename string
		group    string
		ok       bool
	}{
		{"Dry Bulk Trade_11_25.xlsx", GroupDryBulkTrade, true},
		{"Fleet Development_11_25.xlsx", GroupFleetDevelopment, true},
		{"Containership Fleet Development_10_25.xlsx", GroupContainerTradeFleet, true},
		{"Container Fleet Development_10_25.xlsx", GroupContainerTradeFleet, true},
		{"SIN_Timeseries_BCI 5TC_11_25.xlsx", GroupIndices, true},
		{"sin_timeseries_bhsi 38_11_25.xlsx", GroupIndices, true},
		{"Container Trade_10_25.xlsx", GroupContainerTradeFleet, true},
		{"Container SCFI_10_25.xlsx", GroupSCFIWeekly, true},
		{"Tanker rates_11_25.xlsx", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			group, ok := Classify(tt.filename, DefaultRules)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.group, group)
		})
	}
}

func TestFilterFromYear(t *testing.T) {
	records := []table.Record{
		{"Date": "2020-12-31", "v": 1.0},
		{"Date": "2021-01-01", "v": 2.0},
		{"Date": "not a date", "v": 3.0},
		{"Date": nil, "v": 4.0},
		{"Date": "3/15/2022", "v": 5.0},
		{"Date": time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), "v": 6.0},
	}

	got := FilterFromYear(records, "Date", 2021)
	require.Len(t, got, 3)
	assert.Equal(t, 2.0, got[0]["v"])
	assert.Equal(t, 5.0, got[1]["v"])
	assert.Equal(t, 6.0, got[2]["v"])
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2021-01-01", time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2021-01-01 00:00:00", time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2021/1/1", time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"01.01.2021", time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2022/03/04 10:00:00", time.Date(2022, 3, 4, 10, 0, 0, 0, time.UTC)},
		{"2022/03/04 00:00:00", time.Date(2022, 3, 4, 0, 0, 0, 0, time.UTC)},
		{"2022/3/4 08:15:00", time.Date(2022, 3, 4, 8, 15, 0, 0, time.UTC)},
		{"3/4/2022", time.Date(2022, 3, 4, 0, 0, 0, 0, time.UTC)},
		{"25/12/2022", time.Date(2022, 12, 25, 0, 0, 0, 0, time.UTC)},
		{"12/25/2022 06:00:00", time.Date(2022, 12, 25, 6, 0, 0, 0, time.UTC)},
		{"25/12/2022 06:00:00", time.Date(2022, 12, 25, 6, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, ok := ParseDate(tt.in)
			require.True(t, ok)
			assert.True(t, tt.want.Equal(d), d.String())
		})
	}

	records := []table.Record{
		{"Date": "2022/03/04 10:00:00"},
		{"Date": "25/12/2022"},
		{"Date": "2020/12/31 23:00:00"},
	}
	assert.Len(t, FilterFromYear(records, "Date", 2021), 2)

	_, ok := ParseDate(42.0)
	assert.False(t, ok)
	_, ok = ParseDate("  ")
	assert.False(t, ok)
}

type memLister struct {
	datasets []repository.Dataset
	err      error
}

func (m *memLister) List(context.Context) ([]repository.Dataset, error) {
	return m.datasets, m.err
}

type fixture struct {
	agg     *Aggregator
	lister  *memLister
	uploads *storage.LocalStorage
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	uploads, err := storage.NewLocalStorage(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)

	catalog, err := codes.New(codes.Manifest{Series: []codes.SeriesEntry{
		{File: "SIN_Timeseries_BCI 5TC", Codes: []string{"534544"}},
		{File: "Fleet Development", Codes: []string{"30891"}},
	}})
	require.NoError(t, err)

	m := metrics.New()
	lister := &memLister{}
	agg := NewAggregator(lister, uploads,
		pipeline.New(catalog, header.DefaultHeaderRows, m),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	).WithMetrics(m)
	return &fixture{agg: agg, lister: lister, uploads: uploads}
}

// add stores a workbook with one series column and registers it
func (f *fixture) add(t *testing.T, filename, code string, uploaded time.Time, start time.Time, value float64) repository.Dataset {
	t.Helper()
	rows := [][]any{
		{"Shipping market data"},
		{""},
		{""},
		{"", "Series", "Other"},
		{"", "USD/day", "USD/day"},
		{"Date", code, "999999"},
	}
	for i := 0; i < 3; i++ {
		rows = append(rows, []any{start.AddDate(0, i, 0), value + float64(i), 1.0})
	}

	path := filepath.Join(t.TempDir(), "src.xlsx")
	require.NoError(t, workbook.WriteSheet(path, "Sheet1", rows))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	info, err := f.uploads.Save(context.Background(), filename, bytes.NewReader(data), 1<<20)
	require.NoError(t, err)

	d := repository.Dataset{
		ID:               uuid.New(),
		OriginalFilename: filename,
		StoredFilename:   info.Name,
		RowCount:         3,
		ColumnCount:      2,
		UploadedAt:       uploaded,
	}
	f.lister.datasets = append(f.lister.datasets, d)
	return d
}

func TestAggregate_CurrentMonthOnly(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	f.add(t, "Fleet Development_10_25.xlsx", "30891", ref.AddDate(0, -1, 0), start, 100)
	current := f.add(t, "Fleet Development_11_25.xlsx", "30891", ref, start, 200)

	res, err := f.agg.Aggregate(context.Background(), DefaultView, ref)
	require.NoError(t, err)

	require.Contains(t, res, GroupDryBulkTrade)
	require.Contains(t, res, GroupIndices)
	assert.Empty(t, res[GroupDryBulkTrade])
	assert.Empty(t, res[GroupIndices])

	require.Len(t, res[GroupFleetDevelopment], 1)
	s := res[GroupFleetDevelopment][0]
	assert.Equal(t, current.ID, s.DatasetID)
	assert.Equal(t, "Date", s.DateColumn)
	assert.Equal(t, []string{"Date", "Series - USD/day - 30891"}, s.Columns)
	require.Len(t, s.Data, 3)
	assert.Equal(t, 200.0, s.Data[0]["Series - USD/day - 30891"])
}

func TestAggregate_LaterUploadWins(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	f.add(t, "Fleet Development_11_25.xlsx", "30891", ref.Add(-time.Hour), start, 1)
	later := f.add(t, "Fleet Development_11_25.xlsx", "30891", ref, start, 2)

	res, err := f.agg.Aggregate(context.Background(), DefaultView, ref)
	require.NoError(t, err)
	require.Len(t, res[GroupFleetDevelopment], 1)
	assert.Equal(t, later.ID, res[GroupFleetDevelopment][0].DatasetID)
}

func TestAggregate_FloorYearAndSkips(t *testing.T) {
	f := newFixture(t)

	// straddles the floor: Dec 2020, Jan 2021, Feb 2021
	bci := f.add(t, "SIN_Timeseries_BCI 5TC_11_25.xlsx", "534544", ref, time.Date(2020, 12, 1, 0, 0, 0, 0, time.UTC), 10)
	// entirely before the floor
	f.add(t, "SIN_Timeseries_BPI 82_11_25.xlsx", "541976", ref, time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC), 10)
	// file removed from disk
	gone := f.add(t, "SIN_Timeseries_BSI 63_11_25.xlsx", "545327", ref, time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), 10)
	require.NoError(t, f.uploads.Remove(context.Background(), gone.StoredFilename))

	res, err := f.agg.Aggregate(context.Background(), DefaultView, ref)
	require.NoError(t, err)

	require.Len(t, res[GroupIndices], 1)
	s := res[GroupIndices][0]
	assert.Equal(t, bci.ID, s.DatasetID)
	require.Len(t, s.Data, 2)
	assert.Equal(t, "2021-01-01", s.Data[0]["Date"])
}

func TestAggregate_ContainerViewUsesPreviousMonth(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	prev := f.add(t, "Containership Fleet Development_10_25.xlsx", "32580", ref, start, 5)
	f.add(t, "Container Trade_11_25.xlsx", "93420", ref, start, 5)

	res, err := f.agg.Aggregate(context.Background(), ContainerView, ref)
	require.NoError(t, err)

	assert.Len(t, res, 2)
	require.Len(t, res[GroupContainerTradeFleet], 1)
	assert.Equal(t, prev.ID, res[GroupContainerTradeFleet][0].DatasetID)
	assert.Empty(t, res[GroupSCFIWeekly])
}

func TestAggregate_ListError(t *testing.T) {
	f := newFixture(t)
	f.lister.err = errors.New("connection refused")

	_, err := f.agg.Aggregate(context.Background(), DefaultView, ref)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestLatestIndex(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

	f.add(t, "SIN_Timeseries_BCI 5TC_11_25.xlsx", "534544", ref.Add(-time.Hour), start, 1)
	newest := f.add(t, "SIN_Timeseries_BCI 5TC_11_25.xlsx", "534544", ref, start, 2)

	s, err := f.agg.LatestIndex(context.Background(), "BCI", ref)
	require.NoError(t, err)
	assert.Equal(t, newest.ID, s.DatasetID)
	assert.Equal(t, "Series - USD/day - 534544", s.TargetColumn)
	assert.Equal(t, 2.0, s.Data[0][s.TargetColumn])

	_, err = f.agg.LatestIndex(context.Background(), "bhsi", ref)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestLatestPerBase_Property(t *testing.T) {
	faker := gofakeit.New(42)
	bases := []string{"Fleet Development", "Dry Bulk Trade", "SIN_Timeseries_BCI 5TC"}

	for round := 0; round < 50; round++ {
		n := faker.Number(1, 20)
		datasets := make([]repository.Dataset, 0, n)
		newest := map[string]repository.Dataset{}
		for i := 0; i < n; i++ {
			base := bases[faker.Number(0, len(bases)-1)]
			d := repository.Dataset{
				ID:               uuid.New(),
				OriginalFilename: base + "_11_25.xlsx",
				UploadedAt:       faker.DateRange(ref.AddDate(0, -1, 0), ref),
			}
			datasets = append(datasets, d)
			key := codes.BaseFilename(d.OriginalFilename)
			if cur, ok := newest[key]; !ok || after(d, cur) {
				newest[key] = d
			}
		}

		got := latestPerBase(datasets)
		require.Len(t, got, len(newest))
		for _, d := range got {
			assert.Equal(t, newest[codes.BaseFilename(d.OriginalFilename)].ID, d.ID)
		}
	}
}

func after(a, b repository.Dataset) bool {
	if !a.UploadedAt.Equal(b.UploadedAt) {
		return a.UploadedAt.After(b.UploadedAt)
	}
	return a.ID.String() > b.ID.String()
}
