package api

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/FACorreiaa/maritime-portal/internal/domain/charts"
	chartshandler "github.com/FACorreiaa/maritime-portal/internal/domain/charts/handler"
	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/codes"
	datasethandler "github.com/FACorreiaa/maritime-portal/internal/domain/dataset/handler"
	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/pipeline"
	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/repository"
	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/search"
	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/service"
	"github.com/FACorreiaa/maritime-portal/pkg/config"
	"github.com/FACorreiaa/maritime-portal/pkg/cron"
	"github.com/FACorreiaa/maritime-portal/pkg/db"
	"github.com/FACorreiaa/maritime-portal/pkg/metrics"
	"github.com/FACorreiaa/maritime-portal/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config  *config.Config
	DB      *db.DB  // set with the postgres driver
	SQLite  *sql.DB // set with the sqlite driver
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Repositories
	DatasetRepo repository.DatasetRepository

	// Services
	Uploads        *storage.LocalStorage
	Processed      *storage.LocalStorage
	Catalog        *codes.Catalog
	Pipeline       *pipeline.Pipeline
	SearchIndex    *search.Index
	DatasetService *service.DatasetService
	Aggregator     *charts.Aggregator
	Scheduler      *cron.Scheduler
	Limiter        *rate.Limiter

	// Handlers
	DatasetHandler *datasethandler.DatasetHandler
	ChartsHandler  *chartshandler.ChartsHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}
	if cfg.Observability.MetricsEnabled {
		deps.Metrics = metrics.New()
	}

	if err := deps.initDatabase(ctx); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	if err := deps.initRepositories(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	if err := deps.initServices(ctx); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	if err := deps.initHandlers(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init handlers: %w", err)
	}

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase opens the configured catalog store and runs migrations
func (d *Dependencies) initDatabase(ctx context.Context) error {
	if d.Config.Database.Driver == config.DriverSQLite {
		sqlDB, err := db.OpenSQLite(ctx, d.Config.Database.SQLitePath, d.Logger)
		if err != nil {
			return err
		}
		d.SQLite = sqlDB
		d.Logger.Info("sqlite catalog ready", slog.String("path", d.Config.Database.SQLitePath))
		return nil
	}

	database, err := db.New(ctx, db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	if err := d.DB.RunMigrations(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() error {
	if d.SQLite != nil {
		d.DatasetRepo = repository.NewSQLiteDatasetRepository(d.SQLite)
	} else {
		d.DatasetRepo = repository.NewPostgresDatasetRepository(d.DB.Pool)
	}

	d.Logger.Info("repositories initialized")
	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices(ctx context.Context) error {
	var err error
	if d.Uploads, err = storage.NewLocalStorage(d.Config.Storage.UploadDir); err != nil {
		return fmt.Errorf("failed to init upload storage: %w", err)
	}
	if d.Processed, err = storage.NewLocalStorage(d.Config.Storage.ProcessedDir); err != nil {
		return fmt.Errorf("failed to init processed storage: %w", err)
	}

	d.Catalog, err = LoadCatalog(d.Config.Ingest.CatalogPath)
	if err != nil {
		return err
	}
	d.Logger.Info("series code catalog loaded",
		slog.String("version", d.Catalog.Version()),
		slog.Int("series", d.Catalog.Len()),
	)

	d.Pipeline = pipeline.New(d.Catalog, d.Config.Ingest.HeaderRows, d.Metrics)

	if d.SearchIndex, err = search.NewIndex(""); err != nil {
		return fmt.Errorf("failed to init search index: %w", err)
	}

	d.DatasetService = service.NewDatasetService(
		d.DatasetRepo,
		d.Uploads,
		d.Processed,
		d.Pipeline,
		service.Options{
			PreviewRows:    d.Config.Ingest.PreviewRows,
			MaxUploadBytes: d.Config.Ingest.MaxUploadBytes(),
			DefaultSheet:   d.Config.Ingest.DefaultSheet,
		},
		d.Logger,
	).WithSearchIndex(d.SearchIndex).WithMetrics(d.Metrics)

	if err := d.DatasetService.RebuildIndex(ctx); err != nil {
		// search is optional; uploads keep indexing incrementally
		d.Logger.Warn("failed to rebuild search index", slog.Any("error", err))
	}

	d.Aggregator = charts.NewAggregator(d.DatasetRepo, d.Uploads, d.Pipeline, d.Logger).
		WithMetrics(d.Metrics)

	if d.Config.Jobs.ReconcileEnabled {
		d.Scheduler = cron.NewScheduler(d.DatasetService, d.Config.Jobs.ReconcileSpec, d.Logger)
	}

	if rps := d.Config.Server.RateLimitPerSecond; rps > 0 {
		d.Limiter = rate.NewLimiter(rate.Limit(rps), max(d.Config.Server.RateLimitBurst, 1))
	}

	d.Logger.Info("services initialized")
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() error {
	d.DatasetHandler = datasethandler.NewDatasetHandler(d.DatasetService, d.Config.Ingest.MaxUploadBytes(), d.Logger)
	d.ChartsHandler = chartshandler.NewChartsHandler(d.Aggregator, d.Config.Ingest.YearFloor, d.Logger)

	d.Logger.Info("handlers initialized")
	return nil
}

// LoadCatalog returns the catalog at path, or the embedded one when path is
// empty
func LoadCatalog(path string) (*codes.Catalog, error) {
	if path == "" {
		c, err := codes.Default()
		if err != nil {
			return nil, fmt.Errorf("failed to load embedded code catalog: %w", err)
		}
		return c, nil
	}
	c, err := codes.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load code catalog %s: %w", path, err)
	}
	return c, nil
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.SearchIndex != nil {
		if err := d.SearchIndex.Close(); err != nil {
			d.Logger.Warn("failed to close search index", slog.Any("error", err))
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
	if d.SQLite != nil {
		if err := d.SQLite.Close(); err != nil {
			d.Logger.Warn("failed to close sqlite", slog.Any("error", err))
		}
	}
	d.Logger.Info("cleanup completed")
}
