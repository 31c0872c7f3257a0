package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_SaveOpenRemove(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)

	info, err := s.Save(ctx, "SIN_Timeseries_BCI 5TC_11_25.XLSX", strings.NewReader("workbook bytes"), 0)
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(info.Name, ".xlsx"))
	assert.Len(t, info.Name, 32+len(".xlsx"))
	assert.Equal(t, int64(len("workbook bytes")), info.Size)
	assert.Equal(t, "SIN_Timeseries_BCI 5TC_11_25.XLSX", info.OriginalName)

	ok, err := s.Exists(ctx, info.Name)
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := s.Open(ctx, info.Name)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "workbook bytes", string(data))

	files, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, info.Name, files[0].Name)

	require.NoError(t, s.Remove(ctx, info.Name))
	require.NoError(t, s.Remove(ctx, info.Name), "removing twice is fine")

	ok, err = s.Exists(ctx, info.Name)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Open(ctx, info.Name)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStorage_Rename(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	old, err := s.Save(ctx, "old.xlsx", strings.NewReader("old"), 0)
	require.NoError(t, err)
	fresh, err := s.Save(ctx, "new.xlsx", strings.NewReader("new"), 0)
	require.NoError(t, err)

	require.NoError(t, s.Rename(ctx, fresh.Name, old.Name))

	rc, err := s.Open(ctx, old.Name)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "new", string(data))

	ok, err := s.Exists(ctx, fresh.Name)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, s.Rename(ctx, fresh.Name, old.Name), ErrNotFound)
	assert.ErrorIs(t, s.Rename(ctx, old.Name, "../escape.xlsx"), ErrInvalidName)
}

func TestLocalStorage_UniqueNames(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	seen := make(map[string]struct{})
	for i := 0; i < 20; i++ {
		info, err := s.Save(ctx, "same.xlsx", strings.NewReader("x"), 0)
		require.NoError(t, err)
		_, dup := seen[info.Name]
		require.False(t, dup)
		seen[info.Name] = struct{}{}
	}
}

func TestLocalStorage_SizeLimit(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewLocalStorage(dir)
	require.NoError(t, err)

	_, err = s.Save(ctx, "big.xlsx", strings.NewReader(strings.Repeat("a", 11)), 10)
	assert.ErrorIs(t, err, ErrTooLarge)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected upload must not stay on disk")

	_, err = s.Save(ctx, "exact.xlsx", strings.NewReader(strings.Repeat("a", 10)), 10)
	assert.NoError(t, err)
}

func TestLocalStorage_Path(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	tests := []struct {
		name    string
		wantErr bool
	}{
		{"abc.xlsx", false},
		{"", true},
		{"../etc/passwd", true},
		{"sub/file.xlsx", true},
		{"..", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Path(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "__etc_passwd", SanitizeFilename("../etc/passwd"))
	assert.Equal(t, "a_b_c.xlsx", SanitizeFilename("a:b|c.xlsx"))
	assert.Equal(t, "plain name.xlsx", SanitizeFilename("plain name.xlsx"))
}
