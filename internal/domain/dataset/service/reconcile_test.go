package service

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	kept, err := f.svc.Upload(ctx, UploadInput{
		Filename: "SIN_Timeseries_BCI 5TC_11_25.xlsx",
		Content:  bytes.NewReader(bciWorkbook(t, 2)),
	})
	require.NoError(t, err)
	lost, err := f.svc.Upload(ctx, UploadInput{
		Filename: "SIN_Timeseries_BCI 5TC_10_25.xlsx",
		Content:  bytes.NewReader(bciWorkbook(t, 2)),
	})
	require.NoError(t, err)

	orphan, err := f.uploads.Save(ctx, "stray.xlsx", strings.NewReader("leftover"), 1024)
	require.NoError(t, err)

	// the stored file of the second upload disappears
	list, err := f.repo.List(ctx)
	require.NoError(t, err)
	for _, d := range list {
		if d.ID == lost.Dataset.ID {
			require.NoError(t, f.uploads.Remove(ctx, d.StoredFilename))
		}
	}

	t.Run("fresh orphans are kept", func(t *testing.T) {
		report, err := f.svc.Reconcile(ctx, false)
		require.NoError(t, err)
		assert.Empty(t, report.RemovedOrphans)
		require.Len(t, report.MissingFiles, 1)
		assert.Equal(t, lost.Dataset.ID, report.MissingFiles[0].ID)
	})

	f.svc.WithClock(func() time.Time { return time.Now().Add(2 * OrphanGrace) })

	t.Run("dry run removes nothing", func(t *testing.T) {
		report, err := f.svc.Reconcile(ctx, true)
		require.NoError(t, err)
		assert.True(t, report.DryRun)
		assert.Equal(t, []string{orphan.Name}, report.RemovedOrphans)
		ok, err := f.uploads.Exists(ctx, orphan.Name)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("stale orphans are removed", func(t *testing.T) {
		report, err := f.svc.Reconcile(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, []string{orphan.Name}, report.RemovedOrphans)
		ok, err := f.uploads.Exists(ctx, orphan.Name)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	_, err = f.svc.Get(ctx, kept.Dataset.ID)
	assert.NoError(t, err)
}
