// Package repository persists uploaded dataset metadata.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no dataset has the requested id
var ErrNotFound = errors.New("dataset not found")

// Dataset is the catalog row of one uploaded workbook. Rows are never
// mutated after creation.
type Dataset struct {
	ID               uuid.UUID `db:"id"`
	OriginalFilename string    `db:"original_filename"`
	StoredFilename   string    `db:"stored_filename"`
	SheetName        string    `db:"sheet_name"`
	RowCount         int       `db:"row_count"`
	ColumnCount      int       `db:"column_count"`
	// Columns are all resolved labels, stored as a JSON array
	Columns    []string  `db:"columns_json"`
	UploadedAt time.Time `db:"uploaded_at"`
}

// DatasetRepository defines the interface for dataset catalog access
type DatasetRepository interface {
	Create(ctx context.Context, d *Dataset) error
	List(ctx context.Context) ([]Dataset, error)
	Get(ctx context.Context, id uuid.UUID) (*Dataset, error)
}

func encodeColumns(cols []string) (string, error) {
	if cols == nil {
		cols = []string{}
	}
	b, err := json.Marshal(cols)
	if err != nil {
		return "", fmt.Errorf("failed to encode columns: %w", err)
	}
	return string(b), nil
}

func decodeColumns(raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	var cols []string
	if err := json.Unmarshal([]byte(raw), &cols); err != nil {
		return nil, fmt.Errorf("failed to decode columns: %w", err)
	}
	return cols, nil
}

func validate(d *Dataset) error {
	if d == nil {
		return errors.New("dataset is nil")
	}
	if d.ID == uuid.Nil {
		return errors.New("dataset id is required")
	}
	if d.StoredFilename == "" {
		return errors.New("stored filename is required")
	}
	if d.UploadedAt.IsZero() {
		return errors.New("uploaded_at is required")
	}
	return nil
}
