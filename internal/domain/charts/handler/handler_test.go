package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/maritime-portal/internal/domain/charts"
	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/table"
)

type stubAggregator struct {
	view    charts.View
	ref     time.Time
	keyword string
	result  charts.Result
	index   *charts.IndexSeries
	err     error
}

func (s *stubAggregator) Aggregate(_ context.Context, v charts.View, ref time.Time) (charts.Result, error) {
	s.view, s.ref = v, ref
	return s.result, s.err
}

func (s *stubAggregator) LatestIndex(_ context.Context, keyword string, ref time.Time) (*charts.IndexSeries, error) {
	s.keyword, s.ref = keyword, ref
	return s.index, s.err
}

var now = time.Date(2025, 11, 14, 0, 0, 0, 0, time.UTC)

func serve(agg Aggregator, floor int, target string) *httptest.ResponseRecorder {
	h := NewChartsHandler(agg, floor, slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithClock(func() time.Time { return now })
	r := chi.NewRouter()
	r.Route("/api", h.Routes)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestChartViews(t *testing.T) {
	agg := &stubAggregator{result: charts.Result{
		charts.GroupIndices: {{Filename: "BCI_11_25.xlsx", Data: []table.Record{{"Date": "2021-01-01", "v": math.Inf(1)}}}},
	}}

	rec := serve(agg, 0, "/api/charts/data")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, charts.DefaultView.Name, agg.view.Name)
	assert.Equal(t, 2021, agg.view.FloorYear)
	assert.Equal(t, now, agg.ref)

	var body map[string][]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Nil(t, body[charts.GroupIndices][0]["data"].([]any)[0].(map[string]any)["v"])

	rec = serve(agg, 2022, "/api/charts/data/container?ref=2025-03")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, charts.ContainerView.Name, agg.view.Name)
	assert.Equal(t, 2022, agg.view.FloorYear)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), agg.ref)
}

func TestChartViews_Errors(t *testing.T) {
	rec := serve(&stubAggregator{}, 0, "/api/charts/data?ref=March")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(&stubAggregator{err: errors.New("db down")}, 0, "/api/charts/data")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestIndexSeries(t *testing.T) {
	agg := &stubAggregator{index: &charts.IndexSeries{TargetColumn: "BCI 5TC - USD/day - 534544"}}
	rec := serve(agg, 0, "/api/charts/data/bci")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bci", agg.keyword)
	assert.Contains(t, rec.Body.String(), `"target_column":"BCI 5TC - USD/day - 534544"`)
	assert.Contains(t, rec.Body.String(), `"data":[]`)

	rec = serve(agg, 0, "/api/charts/data/index/bhsi")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bhsi", agg.keyword)

	rec = serve(&stubAggregator{err: charts.ErrNoData}, 0, "/api/charts/data/bci")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"no BCI data uploaded for this month"}`, rec.Body.String())
}
