// Package handler exposes the chart views over HTTP.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/FACorreiaa/maritime-portal/internal/domain/charts"
	"github.com/FACorreiaa/maritime-portal/pkg/httpx"
)

// Aggregator is the part of the chart aggregator the handlers call
type Aggregator interface {
	Aggregate(ctx context.Context, view charts.View, ref time.Time) (charts.Result, error)
	LatestIndex(ctx context.Context, keyword string, ref time.Time) (*charts.IndexSeries, error)
}

// ChartsHandler serves the chart routes
type ChartsHandler struct {
	agg       Aggregator
	floorYear int
	now       func() time.Time
	logger    *slog.Logger
}

// NewChartsHandler creates a new charts handler. floorYear replaces the
// views' default floor when positive.
func NewChartsHandler(agg Aggregator, floorYear int, logger *slog.Logger) *ChartsHandler {
	return &ChartsHandler{agg: agg, floorYear: floorYear, now: time.Now, logger: logger}
}

// WithClock sets the clock used when no reference month is given
func (h *ChartsHandler) WithClock(now func() time.Time) *ChartsHandler {
	h.now = now
	return h
}

// Routes mounts the handlers on r
func (h *ChartsHandler) Routes(r chi.Router) {
	r.Get("/charts/data", h.view(charts.DefaultView))
	r.Get("/charts/data/container", h.view(charts.ContainerView))
	r.Get("/charts/data/bci", h.index("bci"))
	r.Get("/charts/data/index/{keyword}", h.indexParam)
}

func (h *ChartsHandler) ref(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	ref, ok := httpx.ParseMonth(r.URL.Query().Get("ref"), h.now())
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "ref must be a month as YYYY-MM")
	}
	return ref, ok
}

func (h *ChartsHandler) view(v charts.View) http.HandlerFunc {
	if h.floorYear > 0 {
		v = v.WithFloorYear(h.floorYear)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ref, ok := h.ref(w, r)
		if !ok {
			return
		}
		res, err := h.agg.Aggregate(r.Context(), v, ref)
		if err != nil {
			h.logger.Error("chart aggregation failed", slog.String("view", v.Name), slog.Any("error", err))
			httpx.WriteError(w, http.StatusInternalServerError, "failed to build chart data")
			return
		}
		for group, series := range res {
			for i := range series {
				series[i].Data = httpx.Records(series[i].Data)
			}
			res[group] = series
		}
		httpx.WriteJSON(w, http.StatusOK, res)
	}
}

func (h *ChartsHandler) index(keyword string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.writeIndex(w, r, keyword)
	}
}

func (h *ChartsHandler) indexParam(w http.ResponseWriter, r *http.Request) {
	keyword := strings.TrimSpace(chi.URLParam(r, "keyword"))
	if keyword == "" {
		httpx.WriteError(w, http.StatusBadRequest, "missing index keyword")
		return
	}
	h.writeIndex(w, r, keyword)
}

func (h *ChartsHandler) writeIndex(w http.ResponseWriter, r *http.Request, keyword string) {
	ref, ok := h.ref(w, r)
	if !ok {
		return
	}
	s, err := h.agg.LatestIndex(r.Context(), keyword, ref)
	switch {
	case err == nil:
		s.Data = httpx.Records(s.Data)
		httpx.WriteJSON(w, http.StatusOK, s)
	case errors.Is(err, charts.ErrNoData):
		httpx.WriteError(w, http.StatusNotFound, "no "+strings.ToUpper(keyword)+" data uploaded for this month")
	default:
		h.logger.Error("index series failed", slog.String("keyword", keyword), slog.Any("error", err))
		httpx.WriteError(w, http.StatusInternalServerError, "failed to build chart data")
	}
}
