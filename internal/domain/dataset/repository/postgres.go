package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Pool is the subset of *pgxpool.Pool the repository uses
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresDatasetRepository implements DatasetRepository using PostgreSQL
type PostgresDatasetRepository struct {
	pool Pool
}

// NewPostgresDatasetRepository creates a new PostgreSQL-backed dataset repository
func NewPostgresDatasetRepository(pool Pool) *PostgresDatasetRepository {
	return &PostgresDatasetRepository{pool: pool}
}

const pgSelectColumns = `id, original_filename, stored_filename, sheet_name,
		row_count, column_count, columns_json::text, uploaded_at`

// Create inserts a dataset row inside a transaction
func (r *PostgresDatasetRepository) Create(ctx context.Context, d *Dataset) error {
	if err := validate(d); err != nil {
		return err
	}
	cols, err := encodeColumns(d.Columns)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	query := `
		INSERT INTO datasets (id, original_filename, stored_filename, sheet_name,
			row_count, column_count, columns_json, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8)
	`
	_, err = tx.Exec(ctx, query,
		d.ID, d.OriginalFilename, d.StoredFilename, d.SheetName,
		d.RowCount, d.ColumnCount, cols, d.UploadedAt.UTC(),
	)
	if err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("failed to insert dataset: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit dataset: %w", err)
	}
	return nil
}

// List returns every dataset, newest upload first
func (r *PostgresDatasetRepository) List(ctx context.Context) ([]Dataset, error) {
	query := `SELECT ` + pgSelectColumns + ` FROM datasets ORDER BY uploaded_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	datasets := make([]Dataset, 0)
	for rows.Next() {
		d, err := scanPostgres(rows)
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
func (r *PostgresDatasetRepository) Get(ctx context.Context, id uuid.UUID) (*Dataset, error) {
	query := `SELECT ` + pgSelectColumns + ` FROM datasets WHERE id = $1`

	d, err := scanPostgres(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func scanPostgres(row pgx.Row) (*Dataset, error) {
	var (
		d    Dataset
		cols string
	)
	err := row.Scan(
		&d.ID, &d.OriginalFilename, &d.StoredFilename, &d.SheetName,
		&d.RowCount, &d.ColumnCount, &cols, &d.UploadedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan dataset: %w", err)
	}

	if d.Columns, err = decodeColumns(cols); err != nil {
		return nil, err
	}
	d.UploadedAt = d.UploadedAt.UTC()
	return &d, nil
}
