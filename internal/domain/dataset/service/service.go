// Package service provides the dataset upload and browse orchestration.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/pipeline"
	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/repository"
	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/search"
	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/table"
	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/workbook"
	"github.com/FACorreiaa/maritime-portal/pkg/metrics"
	"github.com/FACorreiaa/maritime-portal/pkg/storage"
)

var (
	// ErrUnsupportedFile is returned for uploads with an extension the
	// reader does not handle
	ErrUnsupportedFile = errors.New("unsupported file type")
	// ErrEmptyUpload is returned when no content or filename was provided
	ErrEmptyUpload = errors.New("empty upload")
	// ErrUnreadableWorkbook wraps every workbook format failure
	ErrUnreadableWorkbook = errors.New("unreadable workbook")
	// ErrPersistence wraps storage and catalog write failures
	ErrPersistence = errors.New("failed to persist dataset")
	// ErrFileMissing is returned when a catalog row exists but its stored
	// file is gone
	ErrFileMissing = errors.New("dataset file missing")
	// ErrNotFound is returned when no dataset has the requested id
	ErrNotFound = repository.ErrNotFound
	// ErrTooLarge is returned when an upload exceeds the size limit
	ErrTooLarge = storage.ErrTooLarge
	// ErrSearchDisabled is returned by Search without an index
	ErrSearchDisabled = errors.New("dataset search is not enabled")
)

// AllowedExtensions lists the upload extensions accepted
var AllowedExtensions = []string{".xlsx", ".xlsm", ".xls", ".csv"}

const tracerName = "github.com/FACorreiaa/maritime-portal/internal/domain/dataset/service"

// Options tunes upload processing
type Options struct {
	PreviewRows    int
	MaxUploadBytes int64
	DefaultSheet   string
}

// UploadInput is one workbook upload
type UploadInput struct {
	Filename string
	Content  io.Reader
	// Sheet to load; Options.DefaultSheet or the first sheet when empty
	Sheet string
}

// DatasetView is the public form of a catalog row
type DatasetView struct {
	ID               uuid.UUID `json:"id"`
	OriginalFilename string    `json:"original_filename"`
	SheetName        string    `json:"sheet_name"`
	RowCount         int       `json:"row_count"`
	ColumnCount      int       `json:"column_count"`
	Columns          []string  `json:"columns,omitempty"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

// UploadResult is the upload response payload
type UploadResult struct {
	Dataset                DatasetView    `json:"dataset"`
	Data                   []table.Record `json:"data"`
	Columns                []string       `json:"columns"`
	SelectedColumns        []string       `json:"selected_columns"`
	CodesUsed              []string       `json:"codes_used"`
	LabeledColumns         []string       `json:"labeled_columns"`
	SelectedLabeledColumns []string       `json:"selected_labeled_columns"`
	Cargos                 []string       `json:"cargos"`
	Units                  []string       `json:"units"`
	LabelExtractionError   string         `json:"label_extraction_error,omitempty"`
	CatalogSuggestion      string         `json:"catalog_suggestion,omitempty"`
	Engine                 string         `json:"engine"`
	CompanionFile          string         `json:"companion_file,omitempty"`
}

// DetailResult is a dataset re-derived from its stored file
type DetailResult struct {
	Dataset         DatasetView    `json:"dataset"`
	Columns         []string       `json:"columns"`
	SelectedColumns []string       `json:"selected_columns"`
	CodesUsed       []string       `json:"codes_used"`
	Data            []table.Record `json:"data"`
}

// SearchResult pairs a dataset with its relevance score
type SearchResult struct {
	Dataset DatasetView `json:"dataset"`
	Score   float64     `json:"score"`
}

// DatasetService orchestrates dataset uploads and reads
type DatasetService struct {
	repo      repository.DatasetRepository
	uploads   storage.Storage
	processed storage.Storage
	pipeline  *pipeline.Pipeline
	index     *search.Index // Optional: nil disables Search
	metrics   *metrics.Metrics
	logger    *slog.Logger
	opts      Options
	now       func() time.Time
	tracer    trace.Tracer
}

// NewDatasetService creates a new dataset service
func NewDatasetService(
	repo repository.DatasetRepository,
	uploads, processed storage.Storage,
	p *pipeline.Pipeline,
	opts Options,
	logger *slog.Logger,
) *DatasetService {
	return &DatasetService{
		repo:      repo,
		uploads:   uploads,
		processed: processed,
		pipeline:  p,
		logger:    logger,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
		tracer:    otel.Tracer(tracerName),
	}
}

// WithSearchIndex enables Search and keeps the index current on upload
func (s *DatasetService) WithSearchIndex(idx *search.Index) *DatasetService {
	s.index = idx
	return s
}

// WithMetrics records upload outcomes
func (s *DatasetService) WithMetrics(m *metrics.Metrics) *DatasetService {
	s.metrics = m
	return s
}

// WithClock overrides the upload timestamp source
func (s *DatasetService) WithClock(now func() time.Time) *DatasetService {
	s.now = now
	return s
}

// IsAllowedExtension reports whether filename has an accepted extension
func IsAllowedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, a := range AllowedExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

// Upload stores, processes and catalogs one workbook. On any failure after
// the file is saved, the stored file and companion are removed.
func (s *DatasetService) Upload(ctx context.Context, in UploadInput) (_ *UploadResult, err error) {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, "DatasetService.Upload",
		trace.WithAttributes(attribute.String("dataset.filename", in.Filename)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		s.metrics.ObserveUpload(outcome(err), time.Since(started))
	}()

	filename := strings.TrimSpace(filepath.Base(in.Filename))
	if in.Content == nil || filename == "" || filename == "." {
		return nil, ErrEmptyUpload
	}
	if !IsAllowedExtension(filename) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, filepath.Ext(filename))
	}

	info, err := s.uploads.Save(ctx, filename, in.Content, s.opts.MaxUploadBytes)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: failed to save upload: %w", ErrPersistence, err)
	}

	// the companion is written under a temporary name so a failed upload
	// never replaces the companion of an earlier upload of the same file
	companion := storage.SanitizeFilename(table.CompanionName(filename))
	staged := storage.StoredName(companion)
	cleanup := func() {
		if rmErr := s.uploads.Remove(context.WithoutCancel(ctx), info.Name); rmErr != nil {
			s.logger.Warn("failed to remove stored upload", slog.String("stored", info.Name), slog.Any("error", rmErr))
		}
		if rmErr := s.processed.Remove(context.WithoutCancel(ctx), staged); rmErr != nil {
			s.logger.Warn("failed to remove staged companion", slog.String("companion", staged), slog.Any("error", rmErr))
		}
	}

	result, err := s.process(ctx, filename, info, staged, s.sheet(in.Sheet))
	if err != nil {
		cleanup()
		s.logger.Error("upload failed",
			slog.String("filename", filename),
			slog.String("stored", info.Name),
			slog.Any("error", err),
		)
		return nil, err
	}

	if err := s.processed.Rename(context.WithoutCancel(ctx), staged, companion); err != nil {
		s.logger.Warn("failed to publish companion",
			slog.String("companion", companion), slog.Any("error", err))
		_ = s.processed.Remove(context.WithoutCancel(ctx), staged)
	}

	s.logger.Info("dataset uploaded",
		slog.String("dataset_id", result.Dataset.ID.String()),
		slog.String("filename", filename),
		slog.String("engine", result.Engine),
		slog.Int("rows", result.Dataset.RowCount),
		slog.Int("selected_columns", result.Dataset.ColumnCount),
		slog.Any("codes_used", result.CodesUsed),
	)
	return result, nil
}

func (s *DatasetService) process(ctx context.Context, filename string, info *storage.FileInfo, companion, sheet string) (*UploadResult, error) {
	path, err := s.uploads.Path(info.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	_, span := s.tracer.Start(ctx, "pipeline.Run")
	res, err := s.pipeline.Run(path, filename, sheet)
	span.End()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableWorkbook, err)
	}
	if res.LabelNote != "" {
		s.logger.Warn("header labels do not match data width",
			slog.String("filename", filename), slog.String("note", res.LabelNote))
	}
	if !res.Selection.Matched {
		s.logger.Info("workbook not in code catalog",
			slog.String("base_filename", res.Selection.BaseFilename),
			slog.String("suggestion", res.Selection.Suggestion))
	}

	companionPath, err := s.processed.Path(companion)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if err := table.WriteCompanion(companionPath, res.Selection.Columns, res.Narrowed); err != nil {
		return nil, fmt.Errorf("%w: failed to write companion: %w", ErrPersistence, err)
	}

	d := &repository.Dataset{
		ID:               uuid.New(),
		OriginalFilename: filename,
		StoredFilename:   info.Name,
		SheetName:        res.Workbook.Sheet,
		RowCount:         len(res.Narrowed),
		ColumnCount:      len(res.Selection.Columns),
		Columns:          res.Keys,
		UploadedAt:       s.now(),
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	if s.index != nil {
		if err := s.index.Add(*d); err != nil {
			s.logger.Warn("failed to index dataset", slog.String("dataset_id", d.ID.String()), slog.Any("error", err))
		}
	}

	return &UploadResult{
		Dataset:                toView(*d, false),
		Data:                   table.Head(res.Narrowed, s.opts.PreviewRows),
		Columns:                res.Keys,
		SelectedColumns:        res.Selection.Columns,
		CodesUsed:              nonNil(res.Selection.CodesUsed),
		LabeledColumns:         res.Resolution.Labels,
		SelectedLabeledColumns: res.Selection.Columns,
		Cargos:                 nonNil(res.Resolution.Cargos),
		Units:                  res.Units,
		LabelExtractionError:   res.LabelNote,
		CatalogSuggestion:      res.Selection.Suggestion,
		Engine:                 res.Workbook.Engine,
		CompanionFile:          companion,
	}, nil
}

// List returns every dataset, newest first
func (s *DatasetService) List(ctx context.Context) ([]DatasetView, error) {
	ctx, span := s.tracer.Start(ctx, "DatasetService.List")
	defer span.End()

	datasets, err := s.repo.List(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}

	views := make([]DatasetView, len(datasets))
	for i, d := range datasets {
		views[i] = toView(d, false)
	}
	return views, nil
}

// Get returns a dataset with its narrowed table re-derived from the stored
// file
func (s *DatasetService) Get(ctx context.Context, id uuid.UUID) (*DetailResult, error) {
	ctx, span := s.tracer.Start(ctx, "DatasetService.Get",
		trace.WithAttributes(attribute.String("dataset.id", id.String())))
	defer span.End()

	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	ok, err := s.uploads.Exists(ctx, d.StoredFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to check stored file: %w", err)
	}
	if !ok {
		s.logger.Warn("dataset file missing",
			slog.String("dataset_id", id.String()), slog.String("stored", d.StoredFilename))
		return nil, fmt.Errorf("%w: %s", ErrFileMissing, d.StoredFilename)
	}

	path, err := s.uploads.Path(d.StoredFilename)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileMissing, err)
	}
	res, err := s.pipeline.Run(path, d.OriginalFilename, d.SheetName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableWorkbook, err)
	}

	return &DetailResult{
		Dataset:         toView(*d, true),
		Columns:         res.Keys,
		SelectedColumns: res.Selection.Columns,
		CodesUsed:       nonNil(res.Selection.CodesUsed),
		Data:            res.Narrowed,
	}, nil
}

// Search finds datasets by filename or column label
func (s *DatasetService) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if s.index == nil {
		return nil, ErrSearchDisabled
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return []SearchResult{}, nil
	}

	ctx, span := s.tracer.Start(ctx, "DatasetService.Search")
	defer span.End()

	hits, err := s.index.Search(query, limit)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		d, err := s.repo.Get(ctx, h.DatasetID)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		results = append(results, SearchResult{Dataset: toView(*d, false), Score: h.Score})
	}
	return results, nil
}

// RebuildIndex reloads the search index from the catalog
func (s *DatasetService) RebuildIndex(ctx context.Context) error {
	if s.index == nil {
		return nil
	}
	datasets, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list datasets: %w", err)
	}
	if err := s.index.Rebuild(datasets); err != nil {
		return err
	}
	s.logger.Info("search index rebuilt", slog.Int("datasets", len(datasets)))
	return nil
}

func (s *DatasetService) sheet(requested string) string {
	if requested = strings.TrimSpace(requested); requested != "" {
		return requested
	}
	return s.opts.DefaultSheet
}

func toView(d repository.Dataset, withColumns bool) DatasetView {
	v := DatasetView{
		ID:               d.ID,
		OriginalFilename: d.OriginalFilename,
		SheetName:        d.SheetName,
		RowCount:         d.RowCount,
		ColumnCount:      d.ColumnCount,
		UploadedAt:       d.UploadedAt,
	}
	if withColumns {
		v.Columns = d.Columns
	}
	return v
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnreadableWorkbook), errors.Is(err, workbook.ErrUnreadable):
		return "unreadable"
	case errors.Is(err, ErrTooLarge):
		return "too_large"
	case errors.Is(err, ErrUnsupportedFile), errors.Is(err, ErrEmptyUpload):
		return "rejected"
	default:
		return "error"
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
