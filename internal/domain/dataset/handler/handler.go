// Package handler exposes dataset upload and browse over HTTP.
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/service"
	"github.com/FACorreiaa/maritime-portal/pkg/httpx"
)

// multipartOverhead is allowed on top of the file size limit for the
// multipart envelope
const multipartOverhead = 1 << 20

const defaultSearchLimit = 20

// DatasetService is the part of the dataset service the handlers call
type DatasetService interface {
	Upload(ctx context.Context, in service.UploadInput) (*service.UploadResult, error)
	List(ctx context.Context) ([]service.DatasetView, error)
	Get(ctx context.Context, id uuid.UUID) (*service.DetailResult, error)
	Search(ctx context.Context, query string, limit int) ([]service.SearchResult, error)
}

// DatasetHandler serves the dataset routes
type DatasetHandler struct {
	svc      DatasetService
	maxBytes int64
	logger   *slog.Logger
}

// NewDatasetHandler creates a new dataset handler
func NewDatasetHandler(svc DatasetService, maxUploadBytes int64, logger *slog.Logger) *DatasetHandler {
	return &DatasetHandler{svc: svc, maxBytes: maxUploadBytes, logger: logger}
}

// Routes mounts the handlers on r
func (h *DatasetHandler) Routes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Post("/upload", h.Upload)
	r.Post("/upload/excel", h.Upload)
	r.Get("/datasets", h.List)
	r.Get("/datasets/search", h.Search)
	r.Get("/datasets/{id}", h.Get)
}

type healthResponse struct {
	Status        string  `json:"status"`
	MaxFileSizeMB float64 `json:"max_file_size_mb"`
}

// Health reports liveness and the upload size limit
func (h *DatasetHandler) Health(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		MaxFileSizeMB: float64(h.maxBytes) / (1 << 20),
	})
}

// Upload accepts a multipart "file" field and an optional "sheet" field
func (h *DatasetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)

	file, fh, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			httpx.WriteError(w, http.StatusRequestEntityTooLarge, h.tooLargeMessage())
		case errors.Is(err, http.ErrMissingFile):
			httpx.WriteError(w, http.StatusBadRequest, "no file provided")
		default:
			httpx.WriteError(w, http.StatusBadRequest, "invalid multipart form")
		}
		return
	}
	defer file.Close()

	if fh.Filename == "" {
		httpx.WriteError(w, http.StatusBadRequest, "select a file to upload")
		return
	}
	if !service.IsAllowedExtension(fh.Filename) {
		httpx.WriteError(w, http.StatusBadRequest, "only Excel (.xlsx, .xlsm, .xls) or CSV files can be uploaded")
		return
	}

	res, err := h.svc.Upload(r.Context(), service.UploadInput{
		Filename: fh.Filename,
		Content:  file,
		Sheet:    r.FormValue("sheet"),
	})
	if err != nil {
		h.writeUploadError(w, err)
		return
	}

	res.Data = httpx.Records(res.Data)
	httpx.WriteJSON(w, http.StatusOK, res)
}

func (h *DatasetHandler) writeUploadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrUnsupportedFile), errors.Is(err, service.ErrEmptyUpload):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrTooLarge):
		httpx.WriteError(w, http.StatusRequestEntityTooLarge, h.tooLargeMessage())
	case errors.Is(err, service.ErrUnreadableWorkbook):
		httpx.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error("upload failed", slog.Any("error", err))
		httpx.WriteError(w, http.StatusInternalServerError, fmt.Sprintf("failed to process file: %v", err))
	}
}

func (h *DatasetHandler) tooLargeMessage() string {
	return fmt.Sprintf("file too large: at most %.0fMB can be uploaded", float64(h.maxBytes)/(1<<20))
}

// List returns every dataset, newest first
func (h *DatasetHandler) List(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.List(r.Context())
	if err != nil {
		h.logger.Error("list datasets failed", slog.Any("error", err))
		httpx.WriteError(w, http.StatusInternalServerError, "failed to list datasets")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, views)
}

// Get returns a dataset with its narrowed table
func (h *DatasetHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid dataset id")
		return
	}

	res, err := h.svc.Get(r.Context(), id)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "dataset not found")
		return
	case errors.Is(err, service.ErrFileMissing):
		httpx.WriteError(w, http.StatusNotFound, "dataset file was removed from the server")
		return
	case errors.Is(err, service.ErrUnreadableWorkbook):
		httpx.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	default:
		h.logger.Error("get dataset failed", slog.String("dataset_id", id.String()), slog.Any("error", err))
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load dataset")
		return
	}

	res.Data = httpx.Records(res.Data)
	httpx.WriteJSON(w, http.StatusOK, res)
}

// Search finds datasets by filename or column label: ?q=&limit=
func (h *DatasetHandler) Search(w http.ResponseWriter, r *http.Request) {
	limit := defaultSearchLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httpx.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	res, err := h.svc.Search(r.Context(), r.URL.Query().Get("q"), limit)
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusOK, res)
	case errors.Is(err, service.ErrSearchDisabled):
		httpx.WriteError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.Error("search datasets failed", slog.Any("error", err))
		httpx.WriteError(w, http.StatusInternalServerError, "search failed")
	}
}
