package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// OrphanGrace protects files of uploads still in flight from Reconcile
const OrphanGrace = time.Hour

// ReconcileReport summarizes one reconcile pass
type ReconcileReport struct {
	// RemovedOrphans are stored uploads no catalog row refers to
	RemovedOrphans []string `json:"removed_orphans"`
	// MissingFiles are catalog rows whose stored file is gone
	MissingFiles []DatasetView `json:"missing_files"`
	DryRun       bool          `json:"dry_run"`
}

// Reconcile compares stored uploads with the catalog. Uploads older than
// OrphanGrace without a catalog row are removed unless dryRun is set; rows
// without a file are reported and left in place.
func (s *DatasetService) Reconcile(ctx context.Context, dryRun bool) (*ReconcileReport, error) {
	ctx, span := s.tracer.Start(ctx, "DatasetService.Reconcile")
	defer span.End()

	datasets, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	files, err := s.uploads.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list stored uploads: %w", err)
	}

	report := &ReconcileReport{
		RemovedOrphans: []string{},
		MissingFiles:   []DatasetView{},
		DryRun:         dryRun,
	}

	referenced := make(map[string]struct{}, len(datasets))
	for _, d := range datasets {
		referenced[d.StoredFilename] = struct{}{}
	}
	onDisk := make(map[string]struct{}, len(files))
	cutoff := s.now().Add(-OrphanGrace)

	for _, f := range files {
		onDisk[f.Name] = struct{}{}
		if _, ok := referenced[f.Name]; ok || f.ModifiedAt.After(cutoff) {
			continue
		}
		if !dryRun {
			if err := s.uploads.Remove(ctx, f.Name); err != nil {
				s.logger.Warn("failed to remove orphaned upload",
					slog.String("stored", f.Name), slog.Any("error", err))
				continue
			}
		}
		s.logger.Info("orphaned upload", slog.String("stored", f.Name), slog.Bool("removed", !dryRun))
		report.RemovedOrphans = append(report.RemovedOrphans, f.Name)
	}

	for _, d := range datasets {
		if _, ok := onDisk[d.StoredFilename]; ok {
			continue
		}
		s.logger.Warn("dataset file missing",
			slog.String("dataset_id", d.ID.String()), slog.String("stored", d.StoredFilename))
		report.MissingFiles = append(report.MissingFiles, toView(d, false))
	}

	return report, nil
}
