package db

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLite_MigratesOnce(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "nested", "portal.db")

	first, err := OpenSQLite(ctx, path, logger)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// reopening applies nothing new and keeps the schema
	second, err := OpenSQLite(ctx, path, logger)
	require.NoError(t, err)
	defer second.Close()

	var n int
	require.NoError(t, second.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'datasets'`).Scan(&n))
	assert.Equal(t, 1, n)
}
