// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/service"
)

// Reconciler compares stored uploads with the dataset catalog
type Reconciler interface {
	Reconcile(ctx context.Context, dryRun bool) (*service.ReconcileReport, error)
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron       *cron.Cron
	reconciler Reconciler
	spec       string
	timeout    time.Duration
	logger     *slog.Logger
}

// NewScheduler creates a new job scheduler. spec is a standard 5-field cron
// expression for the reconcile job.
func NewScheduler(reconciler Reconciler, spec string, logger *slog.Logger) *Scheduler {
	c := cron.New(
		cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	return &Scheduler{
		cron:       c,
		reconciler: reconciler,
		spec:       spec,
		timeout:    10 * time.Minute,
		logger:     logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.reconcile); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
		slog.String("reconcile_spec", s.spec),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow triggers the reconcile job outside its schedule.
func (s *Scheduler) RunNow() {
	go s.reconcile()
}

func (s *Scheduler) reconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.logger.Info("starting storage reconcile")
	start := time.Now()

	report, err := s.reconciler.Reconcile(ctx, false)
	if err != nil {
		s.logger.Error("storage reconcile failed", slog.Any("error", err))
		return
	}

	s.logger.Info("storage reconcile completed",
		slog.Int("orphans_removed", len(report.RemovedOrphans)),
		slog.Int("missing_files", len(report.MissingFiles)),
		slog.Duration("duration", time.Since(start)),
	)
}
