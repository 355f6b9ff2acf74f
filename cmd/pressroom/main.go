package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/pressroom/pkg/api"
	"github.com/platinummonkey/pressroom/pkg/app"
	"github.com/platinummonkey/pressroom/pkg/config"
	"github.com/platinummonkey/pressroom/pkg/httputil"
	"github.com/platinummonkey/pressroom/pkg/maintenance"
	"github.com/platinummonkey/pressroom/pkg/observability"
	"github.com/platinummonkey/pressroom/pkg/storage/postgres"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	configPath := flag.String("config", os.Getenv("PRESSROOM_CONFIG"), "Path to YAML configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		observability.NewLogger(observability.InfoLevel, os.Stderr).WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout).WithField("service", "pressroom")
	if err := run(cfg, *configPath, logger); err != nil {
		logger.WithError(err).Error("Server exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, configPath string, logger *observability.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Observability.OTelServiceVersion == "" {
		cfg.Observability.OTelServiceVersion = version
	}
	providers, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		return err
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.DB != nil && a.Metrics != nil {
		postgres.StartStatsRoutine(ctx, a.DB, 30*time.Second, logger, a.Metrics.UpdateDBStats)
	}

	proxies, err := httputil.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return err
	}

	opts := []api.Option{
		api.WithLogger(logger),
		api.WithLoginLimiter(a.LoginLimiter()),
		api.WithCORS(cfg.Server.CORSOrigins),
		api.WithTrustedProxies(proxies),
	}
	if a.ErrorLog != nil {
		opts = append(opts, api.WithErrorLog(a.ErrorLog))
	}
	opts = append(opts, api.WithErrorSink(a.Sink))
	if a.Metrics != nil {
		opts = append(opts, api.WithMetrics(a.Metrics))
	}
	if providers != nil {
		opts = append(opts, api.WithTracing())
	}
	server := api.NewServer(a.Auth, a.Unity, a.Pipeline, opts...)

	apiServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:         cfg.Server.HealthAddr(),
		Handler:      api.NewHealthHandler(a.HealthChecker(version), a.Registry),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	shutdown := observability.NewShutdownManager(logger, apiServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(healthServer.Shutdown)
	if providers != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, providers, logger)
		})
	}

	if configPath != "" {
		watcher, err := config.NewWatcher(configPath, logger)
		if err != nil {
			return err
		}
		watcher.Start(func(next *config.Config) {
			logger.SetLevel(next.Observability.Level())
			logger.WithField("log_level", next.Observability.LogLevel).Info("Configuration reloaded")
		})
		shutdown.RegisterShutdownFunc(func(context.Context) error { return watcher.Close() })
	}

	if cfg.Maintenance.TokenSweepEnabled {
		scheduler := maintenance.NewScheduler(logger)
		if err := scheduler.AddSweep(cfg.Maintenance.TokenSweepSchedule, a.Sweeper()); err != nil {
			return err
		}
		scheduler.Start()
		shutdown.RegisterShutdownFunc(scheduler.Stop)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("Starting pressroom API server")
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("Starting health and metrics server")
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// a failing listener cancels gctx, which shuts the other one down
	g.Go(func() error {
		return shutdown.WaitForShutdown(gctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
