// Package app assembles stores, services and backends from configuration.
// The server and the task runner share it.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"

	"github.com/platinummonkey/pressroom/pkg/auth"
	"github.com/platinummonkey/pressroom/pkg/config"
	"github.com/platinummonkey/pressroom/pkg/errorlog"
	"github.com/platinummonkey/pressroom/pkg/maintenance"
	"github.com/platinummonkey/pressroom/pkg/middleware"
	"github.com/platinummonkey/pressroom/pkg/observability"
	"github.com/platinummonkey/pressroom/pkg/storage"
	"github.com/platinummonkey/pressroom/pkg/storage/memory"
	"github.com/platinummonkey/pressroom/pkg/storage/postgres"
	"github.com/platinummonkey/pressroom/pkg/unity"
	"github.com/platinummonkey/pressroom/pkg/upload"
)

// authStore is what the token sweeper and services need from a driver
type authStore interface {
	auth.Store
	Ping(ctx context.Context) error
}

// App holds the wired dependencies of one process
type App struct {
	Config   *config.Config
	Logger   *observability.Logger
	DB       *sql.DB       // nil with the memory driver
	Redis    *redis.Client // nil without a Redis URL
	Registry *prometheus.Registry
	Metrics  *observability.Metrics // nil when metrics are disabled

	// Recorders receives domain observations for Prometheus and, with OTel on, the global meter
	Recorders observability.Recorders

	Store    authStore
	Unities  unity.Store
	ErrorLog errorlog.Repository // nil when errors are only logged
	Sink     errorlog.Sink

	Auth     *auth.Service
	Unity    *unity.Service
	Pipeline *upload.Pipeline
	Backend  upload.Backend

	closers []func() error
}

// New connects every backend named by cfg. Close releases them.
func New(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*App, error) {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	a := &App{Config: cfg, Logger: logger}

	if cfg.Observability.MetricsEnabled {
		a.Registry = prometheus.NewRegistry()
		a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		a.Metrics = observability.NewMetrics(a.Registry)
		a.Recorders = append(a.Recorders, a.Metrics)
	}
	if cfg.Observability.OTelEnabled {
		otelMetrics, err := observability.NewOTelMetrics(otel.GetMeterProvider())
		if err != nil {
			return nil, err
		}
		a.Recorders = append(a.Recorders, otelMetrics)
	}

	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openRedis(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openUploads(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.buildServices()
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	cfg := a.Config

	switch cfg.Database.Driver {
	case config.DriverMemory:
		store := memory.NewStore()
		a.Store = store
		a.Unities = store.Unities()
		sink := errorlog.NewMemorySink()
		a.ErrorLog = sink
		a.Sink = errorlog.NewMultiSink(sink, errorlog.NewLogSink(a.Logger))
		a.Logger.Warn("using in-memory store; data is lost on exit")
		return nil

	case config.DriverPostgres:
		db, err := postgres.Open(ctx, postgres.ConnectionConfig{
			URL:         cfg.Database.URL,
			MaxConns:    cfg.Database.MaxConns,
			MinConns:    cfg.Database.MinConns,
			Timeout:     cfg.Database.Timeout,
			MaxLifetime: cfg.Database.MaxLifetime,
			MaxIdleTime: cfg.Database.MaxIdleTime,
		})
		if err != nil {
			return err
		}
		a.DB = db
		a.closers = append(a.closers, db.Close)

		if cfg.Database.AutoMigrate {
			if err := postgres.EnsureSchema(ctx, db); err != nil {
				return err
			}
		}

		store := postgres.NewStore(db)
		a.Store = store
		a.Unities = store.Unities()

		if cfg.Observability.PersistErrors {
			sink, err := errorlog.NewDBSink(db)
			if err != nil {
				return err
			}
			a.ErrorLog = sink
			a.Sink = errorlog.NewMultiSink(sink, errorlog.NewLogSink(a.Logger))
		} else {
			a.Sink = errorlog.NewLogSink(a.Logger)
		}
		return nil

	default:
		return fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func (a *App) openRedis(ctx context.Context) error {
	rc := a.Config.Redis
	if rc.URL == "" {
		return nil
	}
	client, err := storage.NewRedisClient(ctx, storage.RedisConfig{
		URL:        rc.URL,
		Password:   rc.Password,
		DB:         rc.DB,
		MaxRetries: rc.MaxRetries,
		PoolSize:   rc.PoolSize,
	})
	if err != nil {
		return err
	}
	a.Redis = client
	a.closers = append(a.closers, client.Close)
	return nil
}

func (a *App) openUploads(ctx context.Context) error {
	uc := a.Config.Uploads
	mapper := upload.NewMapper(uc.BaseURL, uc.Root)

	switch uc.Backend {
	case config.BackendS3:
		backend, err := upload.NewS3Backend(ctx, upload.S3Config{
			Bucket:       uc.S3.Bucket,
			Region:       uc.S3.Region,
			Endpoint:     uc.S3.Endpoint,
			AccessKey:    uc.S3.AccessKey,
			SecretKey:    uc.S3.SecretKey,
			UsePathStyle: uc.S3.UsePathStyle,
			KeyPrefix:    uc.S3.KeyPrefix,
		})
		if err != nil {
			return err
		}
		a.Backend = backend
	default:
		backend, err := upload.NewLocalBackend(mapper)
		if err != nil {
			return err
		}
		a.Backend = backend
	}

	opts := []upload.PipelineOption{upload.WithLogger(a.Logger.WithField("component", "upload"))}
	if len(a.Recorders) > 0 {
		opts = append(opts, upload.WithRecorder(a.Recorders))
	}
	a.Pipeline = upload.NewPipeline(a.Backend, mapper, opts...)
	return nil
}

func (a *App) buildServices() {
	ac := a.Config.Auth

	authOpts := []auth.Option{
		auth.WithErrorSink(a.Sink),
		auth.WithLogger(a.Logger.WithField("component", "auth")),
		auth.WithPolicy(auth.Policy{
			MaxTries:        ac.MaxTries,
			TokenTTL:        ac.TokenTTL,
			IdentifierField: auth.IdentifierField(ac.IdentifierField),
		}),
	}
	if len(a.Recorders) > 0 {
		authOpts = append(authOpts, auth.WithRecorder(a.Recorders))
	}
	a.Auth = auth.NewService(a.Store, auth.NewBcryptHasher(ac.BcryptCost), auth.NewTokenGenerator(ac.JWTSecret, ac.Issuer), authOpts...)

	a.Unity = unity.NewService(a.Unities, a.Pipeline,
		unity.WithErrorSink(a.Sink),
		unity.WithLogger(a.Logger.WithField("component", "unity")),
	)
}

// Sweeper returns a token sweeper over the configured store
func (a *App) Sweeper() *maintenance.TokenSweeper {
	opts := []maintenance.Option{maintenance.WithLogger(a.Logger.WithField("component", "sweeper"))}
	if len(a.Recorders) > 0 {
		opts = append(opts, maintenance.WithRecorder(a.Recorders))
	}
	return maintenance.NewTokenSweeper(a.Store, opts...)
}

// LoginLimiter returns the shared Redis limiter, or an in-process one without Redis
func (a *App) LoginLimiter() middleware.Limiter {
	rl := &middleware.RateLimitConfig{
		RequestsPerWindow: a.Config.Auth.LoginRateLimit,
		WindowDuration:    a.Config.Auth.LoginRateWindow,
	}
	if a.Redis != nil {
		return middleware.NewRedisLimiter(a.Redis, rl, "pressroom:login")
	}
	return middleware.NewMemoryLimiter(rl)
}

// HealthChecker probes the database, Redis and the upload backend
func (a *App) HealthChecker(version string) *observability.HealthChecker {
	checker := observability.NewHealthChecker(a.DB, a.Redis)
	checker.SetVersion(version)
	checker.AddProbe("uploads", a.Backend.Ping)
	if a.DB == nil {
		checker.AddProbe("store", a.Store.Ping)
	}
	return checker
}

// Close releases connections in reverse order of opening
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
