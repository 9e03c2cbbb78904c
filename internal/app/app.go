// Package app builds the padronsync object graph from a Config: database,
// optional Redis and S3 backends, services and the ops HTTP server.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gymbridge/internal/archive"
	"github.com/dmitrijs2005/gymbridge/internal/cache"
	"github.com/dmitrijs2005/gymbridge/internal/config"
	"github.com/dmitrijs2005/gymbridge/internal/httpapi"
	"github.com/dmitrijs2005/gymbridge/internal/lock"
	"github.com/dmitrijs2005/gymbridge/internal/logging"
	"github.com/dmitrijs2005/gymbridge/internal/metrics"
	"github.com/dmitrijs2005/gymbridge/internal/models"
	"github.com/dmitrijs2005/gymbridge/internal/registry"
	"github.com/dmitrijs2005/gymbridge/internal/repositories/repomanager"
	"github.com/dmitrijs2005/gymbridge/internal/services"
	"github.com/redis/go-redis/v9"
)

// MetricsJob is the Pushgateway job name of CLI runs.
const MetricsJob = "padronsync"

var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	redis       *redis.Client
	metrics     *metrics.Metrics

	sync        *services.SyncService
	identities  *services.IdentityService
	resolver    *services.ResolverService
	assignments *services.AssignmentService
}

// NewApp connects every configured backend. Without a Redis URL the run lock
// falls back to a Postgres advisory lock and lookups are not cached. Without
// an S3 bucket pages are not archived.
func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	db, err := openDB(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app := &App{
		config:      cfg,
		logger:      logger,
		db:          db,
		repomanager: repomanager.NewPostgresRepositoryManager(),
		metrics:     metrics.New(),
	}

	if cfg.AutoMigrate {
		if err := app.repomanager.RunMigrations(ctx, db); err != nil {
			_ = app.Close()
			return nil, err
		}
	}

	if err := app.initServices(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (app *App) initServices(ctx context.Context) error {
	cfg := app.config

	var locker lock.Locker = lock.NewPostgresLocker(app.db)
	var lookupCache cache.Cache
	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		app.redis = client
		locker = lock.NewRedisLocker(client, cfg.LockTTL)
		lookupCache = cache.NewRedisCache(client)
	}

	var pageArchive archive.Archiver
	if cfg.S3.Bucket != "" {
		a, err := archive.NewS3Archive(ctx, archive.Options{
			Bucket:       cfg.S3.Bucket,
			Region:       cfg.S3.Region,
			BaseEndpoint: cfg.S3.BaseEndpoint,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			Prefix:       cfg.S3.Prefix,
		})
		if err != nil {
			return err
		}
		pageArchive = a
	}

	client := registry.NewClient(cfg.RegistryBaseURL, cfg.RegistryToken, cfg.RegistryTimeout, app.logger,
		registry.WithPagePath(cfg.RegistryPagePath))

	app.sync = services.NewSyncService(services.SyncDeps{
		Registry: client,
		Mirror:   services.NewMirrorService(app.db, app.repomanager, app.logger),
		Cursor:   app.repomanager.SyncStates(app.db),
		Locker:   locker,
		Archive:  pageArchive,
		Metrics:  app.metrics,
		Logger:   app.logger,
		PerPage:  cfg.PerPage,
	})
	app.identities = services.NewIdentityService(app.db, app.repomanager,
		services.BcryptHasher{Cost: cfg.BcryptCost}, app.metrics, app.logger)
	app.resolver = services.NewResolverService(client, lookupCache, cfg.ResolverCacheTTL, app.metrics, app.logger)
	app.assignments = services.NewAssignmentService(app.db, app.repomanager, app.identities, app.logger)
	return nil
}

// Migrate applies the embedded migrations without touching other backends.
func Migrate(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	db, err := openDB(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	defer db.Close()

	logger.Info(ctx, "applying migrations")
	if err := repomanager.NewPostgresRepositoryManager().RunMigrations(ctx, db); err != nil {
		return err
	}
	logger.Info(ctx, "migrations applied")
	return nil
}

// RunSync performs one sync run.
func (app *App) RunSync(ctx context.Context, opts services.Options) (*services.RunSummary, error) {
	return app.sync.Run(ctx, opts)
}

func (app *App) EnsureIdentity(ctx context.Context, mirrorID int64) (*models.Identity, error) {
	return app.identities.EnsureIdentityByMirrorID(ctx, mirrorID)
}

// LookupPadron resolves a member and reports whether the answer is now cached.
func (app *App) LookupPadron(ctx context.Context, dni string) (*registry.Member, bool, error) {
	m, err := app.resolver.Resolve(ctx, dni)
	if err != nil {
		return nil, false, err
	}
	return m, app.resolver.Cached(ctx, dni), nil
}

func (app *App) EnsureAssignment(ctx context.Context, professorID, incomingID int64) (int64, error) {
	return app.assignments.EnsureStudentAssignment(ctx, professorID, incomingID)
}

// Metrics exposes the instruments shared by every service of the app.
func (app *App) Metrics() *metrics.Metrics {
	return app.metrics
}

// PushMetrics sends the run metrics to the configured Pushgateway, if any.
func (app *App) PushMetrics(ctx context.Context) error {
	return app.metrics.Push(ctx, app.config.PushgatewayURL, MetricsJob)
}

// Serve runs the ops HTTP server until ctx is cancelled.
func (app *App) Serve(ctx context.Context) error {
	app.metrics.WithRuntimeCollectors()

	h := httpapi.NewHandler(app.db, app.resolver, app.identities, app.metrics.Registry, app.config.OpsToken, app.logger)
	if app.config.OpsToken == "" {
		app.logger.Warn(ctx, "no ops token configured, /internal endpoints will reject every request")
	}
	return httpapi.NewServer(app.config.HTTPAddr, httpapi.NewRouter(h), app.logger).Run(ctx)
}

func (app *App) Close() error {
	var errs []error
	if app.redis != nil {
		errs = append(errs, app.redis.Close())
	}
	if app.db != nil {
		errs = append(errs, app.db.Close())
	}
	return errors.Join(errs...)
}
