package charts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/codes"
	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/pipeline"
	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/repository"
	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/table"
	"github.com/FACorreiaa/maritime-portal/pkg/metrics"
	"github.com/FACorreiaa/maritime-portal/pkg/storage"
)

// ErrNoData is returned when no dataset qualifies for a single-series view
var ErrNoData = errors.New("no matching dataset")

// Skip reasons reported to logs and metrics
const (
	SkipMissingFile  = "missing_file"
	SkipUnreadable   = "unreadable"
	SkipNoDateColumn = "no_date_column"
	SkipNoRows       = "no_rows_after_floor"
)

const tracerName = "github.com/FACorreiaa/maritime-portal/internal/domain/charts"

// View is one chart page: which groups it shows, which month's uploads it
// reads and the first year of data it keeps
type View struct {
	Name        string
	Groups      []string
	MonthOffset int
	FloorYear   int
}

// DefaultView is the dry bulk page, fed by the current month's uploads
var DefaultView = View{
	Name:        "default",
	Groups:      []string{GroupDryBulkTrade, GroupFleetDevelopment, GroupIndices},
	MonthOffset: 0,
	FloorYear:   2021,
}

// ContainerView is the container page, fed by the previous month's uploads
var ContainerView = View{
	Name:        "container",
	Groups:      []string{GroupContainerTradeFleet, GroupSCFIWeekly},
	MonthOffset: -1,
	FloorYear:   2021,
}

// WithFloorYear returns a copy of v with another floor year
func (v View) WithFloorYear(year int) View {
	v.FloorYear = year
	return v
}

// Series is one dataset's chart data
type Series struct {
	DatasetID  uuid.UUID      `json:"dataset_id"`
	Filename   string         `json:"filename"`
	Columns    []string       `json:"columns"`
	Data       []table.Record `json:"data"`
	DateColumn string         `json:"date_column"`
}

// IndexSeries is a single index series with the column to plot
type IndexSeries struct {
	Series
	TargetColumn string `json:"target_column"`
}

// Result maps every group of a view to its series
type Result map[string][]Series

// DatasetLister is the catalog read the aggregator needs
type DatasetLister interface {
	List(ctx context.Context) ([]repository.Dataset, error)
}

// Aggregator builds chart payloads from the dataset catalog
type Aggregator struct {
	repo     DatasetLister
	uploads  storage.Storage
	pipeline *pipeline.Pipeline
	rules    []Rule
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewAggregator creates a new aggregator using DefaultRules
func NewAggregator(repo DatasetLister, uploads storage.Storage, p *pipeline.Pipeline, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		repo:     repo,
		uploads:  uploads,
		pipeline: p,
		rules:    DefaultRules,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
	}
}

// WithMetrics records skipped datasets
func (a *Aggregator) WithMetrics(m *metrics.Metrics) *Aggregator {
	a.metrics = m
	return a
}

// WithRules replaces the classification rules
func (a *Aggregator) WithRules(rules []Rule) *Aggregator {
	a.rules = rules
	return a
}

// Aggregate builds the series of every group in view from the datasets
// uploaded for the view's month relative to ref
func (a *Aggregator) Aggregate(ctx context.Context, view View, ref time.Time) (Result, error) {
	ctx, span := a.tracer.Start(ctx, "Aggregator.Aggregate",
		trace.WithAttributes(attribute.String("chart.view", view.Name)))
	defer span.End()

	grouped, err := a.candidates(ctx, view, ref)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	result := make(Result, len(view.Groups))
	for _, group := range view.Groups {
		series := make([]Series, 0, len(grouped[group]))
		for _, d := range latestPerBase(grouped[group]) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			s, ok := a.build(ctx, d, view.FloorYear)
			if ok {
				series = append(series, s.Series)
			}
		}
		result[group] = series
	}

	span.SetAttributes(attribute.Int("chart.groups", len(result)))
	return result, nil
}

// LatestIndex returns the newest indices dataset of the current month whose
// filename contains keyword
func (a *Aggregator) LatestIndex(ctx context.Context, keyword string, ref time.Time) (*IndexSeries, error) {
	ctx, span := a.tracer.Start(ctx, "Aggregator.LatestIndex",
		trace.WithAttributes(attribute.String("chart.keyword", keyword)))
	defer span.End()

	view := DefaultView
	view.Groups = []string{GroupIndices}
	grouped, err := a.candidates(ctx, view, ref)
	if err != nil {
		return nil, err
	}

	keyword = strings.ToLower(strings.TrimSpace(keyword))
	matches := make([]repository.Dataset, 0)
	for _, d := range grouped[GroupIndices] {
		if strings.Contains(strings.ToLower(d.OriginalFilename), keyword) {
			matches = append(matches, d)
		}
	}
	sortByUpload(matches)

	// newest first; fall back to older uploads when the newest is unusable
	for i := len(matches) - 1; i >= 0; i-- {
		s, ok := a.build(ctx, matches[i], view.FloorYear)
		if !ok {
			continue
		}
		if s.TargetColumn == "" {
			continue
		}
		return s, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoData, keyword)
}

// candidates returns the view's datasets grouped by category
func (a *Aggregator) candidates(ctx context.Context, view View, ref time.Time) (map[string][]repository.Dataset, error) {
	datasets, err := a.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}

	wanted := make(map[string]struct{}, len(view.Groups))
	for _, g := range view.Groups {
		wanted[g] = struct{}{}
	}

	suffix := Suffix(ref, view.MonthOffset)
	grouped := make(map[string][]repository.Dataset, len(view.Groups))
	for _, d := range datasets {
		lower := strings.ToLower(d.OriginalFilename)
		if !strings.Contains(lower, suffix) {
			continue
		}
		group, ok := Classify(lower, a.rules)
		if !ok {
			continue
		}
		if _, ok := wanted[group]; !ok {
			continue
		}
		grouped[group] = append(grouped[group], d)
	}
	return grouped, nil
}

// build re-reads a dataset and applies the year floor. ok is false when the
// dataset is skipped.
func (a *Aggregator) build(ctx context.Context, d repository.Dataset, floorYear int) (*IndexSeries, bool) {
	log := a.logger.With(
		slog.String("dataset_id", d.ID.String()),
		slog.String("filename", d.OriginalFilename),
	)

	exists, err := a.uploads.Exists(ctx, d.StoredFilename)
	if err != nil || !exists {
		a.skip(log, SkipMissingFile, err)
		return nil, false
	}
	path, err := a.uploads.Path(d.StoredFilename)
	if err != nil {
		a.skip(log, SkipMissingFile, err)
		return nil, false
	}

	res, err := a.pipeline.Run(path, d.OriginalFilename, d.SheetName)
	if err != nil {
		a.skip(log, SkipUnreadable, err)
		return nil, false
	}

	dateCol := res.DateColumn()
	if dateCol == "" {
		a.skip(log, SkipNoDateColumn, nil)
		return nil, false
	}

	data := FilterFromYear(res.Narrowed, dateCol, floorYear)
	if len(data) == 0 {
		a.skip(log, SkipNoRows, nil)
		return nil, false
	}

	target := ""
	for _, c := range res.Selection.Columns {
		if c != dateCol {
			target = c
			break
		}
	}

	return &IndexSeries{
		Series: Series{
			DatasetID:  d.ID,
			Filename:   d.OriginalFilename,
			Columns:    res.Selection.Columns,
			Data:       data,
			DateColumn: dateCol,
		},
		TargetColumn: target,
	}, true
}

func (a *Aggregator) skip(log *slog.Logger, reason string, err error) {
	a.metrics.AggregationSkip(reason)
	if err != nil {
		log.Warn("dataset skipped", slog.String("reason", reason), slog.Any("error", err))
		return
	}
	log.Info("dataset skipped", slog.String("reason", reason))
}

// latestPerBase keeps one dataset per base filename: uploads are replayed
// oldest first so a later upload replaces an earlier one. The result keeps
// the order in which each base filename first appeared.
func latestPerBase(datasets []repository.Dataset) []repository.Dataset {
	sorted := append([]repository.Dataset(nil), datasets...)
	sortByUpload(sorted)

	order := make([]string, 0, len(sorted))
	latest := make(map[string]repository.Dataset, len(sorted))
	for _, d := range sorted {
		base := codes.BaseFilename(d.OriginalFilename)
		if _, seen := latest[base]; !seen {
			order = append(order, base)
		}
		latest[base] = d
	}

	out := make([]repository.Dataset, len(order))
	for i, base := range order {
		out[i] = latest[base]
	}
	return out
}

// sortByUpload orders datasets by upload time, ties broken by id
func sortByUpload(datasets []repository.Dataset) {
	sort.SliceStable(datasets, func(i, j int) bool {
		if !datasets[i].UploadedAt.Equal(datasets[j].UploadedAt) {
			return datasets[i].UploadedAt.Before(datasets[j].UploadedAt)
		}
		return datasets[i].ID.String() < datasets[j].ID.String()
	})
}
