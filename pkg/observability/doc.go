// Package observability provides structured logging, Prometheus metrics,
// health checks, OpenTelemetry tracing and graceful shutdown.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("user_id", id).Info("login succeeded")
//
// Handlers pull a request-scoped logger carrying request_id and user_id:
//
//	observability.FromContext(r.Context()).WithError(err).Error("upload failed")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//	router.Handle("/metrics", observability.MetricsHandler(registry))
//
// Metrics also satisfies the recorder interfaces of the auth service, the
// upload pipeline and the token sweeper. With OpenTelemetry enabled the same
// observations are exported as OTel instruments too:
//
//	providers, err := observability.InitOTel(ctx, cfg, logger)
//	otelMetrics, err := observability.NewOTelMetrics(otel.GetMeterProvider())
//	recorder := observability.Recorders{metrics, otelMetrics}
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	checker.AddProbe("uploads", backend.Ping)
//
// Liveness always answers 200. Readiness answers 503 when the database or a
// probe fails; a Redis outage only degrades.
package observability
