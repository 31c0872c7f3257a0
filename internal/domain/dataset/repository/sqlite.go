package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SQLiteDatasetRepository implements DatasetRepository on a database/sql
// handle opened with the modernc sqlite driver. uploaded_at is stored as
// unix nanoseconds so ordering is numeric.
type SQLiteDatasetRepository struct {
	db *sql.DB
}

// NewSQLiteDatasetRepository creates a new SQLite-backed dataset repository
func NewSQLiteDatasetRepository(db *sql.DB) *SQLiteDatasetRepository {
	return &SQLiteDatasetRepository{db: db}
}

const sqliteSelectColumns = `id, original_filename, stored_filename, sheet_name,
		row_count, column_count, columns_json, uploaded_at`

// Create inserts a dataset row inside a transaction
func (r *SQLiteDatasetRepository) Create(ctx context.Context, d *Dataset) error {
	if err := validate(d); err != nil {
		return err
	}
	cols, err := encodeColumns(d.Columns)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	const q = `INSERT INTO datasets (id, original_filename, stored_filename, sheet_name,
		row_count, column_count, columns_json, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, q,
		d.ID.String(), d.OriginalFilename, d.StoredFilename, d.SheetName,
		d.RowCount, d.ColumnCount, cols, d.UploadedAt.UTC().UnixNano(),
	)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to insert dataset: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit dataset: %w", err)
	}
	return nil
}

// List returns every dataset, newest upload first
func (r *SQLiteDatasetRepository) List(ctx context.Context) ([]Dataset, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sqliteSelectColumns+` FROM datasets ORDER BY uploaded_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	datasets := make([]Dataset, 0)
	for rows.Next() {
		d, err := scanSQLite(rows)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate datasets: %w", err)
	}
	return datasets, nil
}

// Get returns one dataset by id
func (r *SQLiteDatasetRepository) Get(ctx context.Context, id uuid.UUID) (*Dataset, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sqliteSelectColumns+` FROM datasets WHERE id = ?`, id.String())

	d, err := scanSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLite(row scanner) (*Dataset, error) {
	var (
		d        Dataset
		id, cols string
		uploaded int64
	)
	err := row.Scan(
		&id, &d.OriginalFilename, &d.StoredFilename, &d.SheetName,
		&d.RowCount, &d.ColumnCount, &cols, &uploaded,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan dataset: %w", err)
	}

	if d.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid dataset id %q: %w", id, err)
	}
	if d.Columns, err = decodeColumns(cols); err != nil {
		return nil, err
	}
	d.UploadedAt = time.Unix(0, uploaded).UTC()
	return &d, nil
}
