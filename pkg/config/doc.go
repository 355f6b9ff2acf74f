// Package config provides application configuration management.
//
// # Overview
//
// Configuration is layered: built-in defaults, then an optional YAML file,
// then PRESSROOM_* environment variables. The result is validated before use.
//
// # Configuration Structure
//
// Server settings:
//
//	PRESSROOM_HOST="0.0.0.0"
//	PRESSROOM_PORT="3333"
//	PRESSROOM_HEALTH_PORT="9090"
//
// Database settings:
//
//	PRESSROOM_DB_DRIVER="postgres"  # postgres, memory
//	PRESSROOM_DB_URL="postgres://localhost/pressroom?sslmode=disable"
//	PRESSROOM_DB_MAX_CONNS="20"
//
// Auth settings:
//
//	PRESSROOM_JWT_SECRET="change-me-please"
//	PRESSROOM_TOKEN_TTL="24h"  # 0 issues non-expiring tokens
//	PRESSROOM_MAX_LOGIN_TRIES="5"
//	PRESSROOM_LOGIN_IDENTIFIER="username"  # username, email
//
// Upload settings:
//
//	PRESSROOM_UPLOAD_BACKEND="local"  # local, s3
//	PRESSROOM_UPLOAD_ROOT="./uploads"
//	PRESSROOM_UPLOAD_BASE_URL="https://cms.example.com"
//	PRESSROOM_S3_BUCKET="pressroom-uploads"
//
// Maintenance and observability:
//
//	PRESSROOM_TOKEN_SWEEP_ENABLED="true"
//	PRESSROOM_TOKEN_SWEEP_SCHEDULE="0 * * * *"
//	PRESSROOM_LOG_LEVEL="info"
//	PRESSROOM_OTEL_ENABLED="true"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig(os.Getenv("PRESSROOM_CONFIG"))
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("Server: %s\n", cfg.Server.Addr())
//
// # Reloading
//
// Watcher re-reads the file when it changes and hands over the validated
// result. The server only applies the log level from it.
//
//	w, err := config.NewWatcher(path, logger)
//	w.Start(func(next *config.Config) { logger.SetLevel(next.Observability.Level()) })
//	defer w.Close()
//
// # Related Packages
//
//   - pkg/observability: log levels, tracing settings
//   - pkg/storage: database and Redis settings
//   - pkg/upload: backend settings
package config
