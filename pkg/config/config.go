package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/pressroom/pkg/httputil"
	"github.com/platinummonkey/pressroom/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Auth          AuthConfig          `yaml:"auth"`
	Uploads       UploadsConfig       `yaml:"uploads"`
	Maintenance   MaintenanceConfig   `yaml:"maintenance"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	// Proxies (IPs or CIDRs) allowed to set X-Forwarded-For and X-Real-IP
	TrustedProxies []string `yaml:"trusted_proxies"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// Addr returns host:port of the API listener
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

// HealthAddr returns host:port of the health listener
func (s ServerConfig) HealthAddr() string {
	return net.JoinHostPort(s.Host, s.HealthPort)
}

// Database drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// DatabaseConfig selects and tunes the credential/content store
type DatabaseConfig struct {
	Driver      string        `yaml:"driver"`
	URL         string        `yaml:"url"`
	MaxConns    int           `yaml:"max_conns"`
	MinConns    int           `yaml:"min_conns"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxLifetime time.Duration `yaml:"max_lifetime"`
	MaxIdleTime time.Duration `yaml:"max_idle_time"`
	AutoMigrate bool          `yaml:"auto_migrate"`
}

// RedisConfig configures the shared login rate limiter. An empty URL keeps
// counters in process.
type RedisConfig struct {
	URL        string `yaml:"url"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	MaxRetries int    `yaml:"max_retries"`
	PoolSize   int    `yaml:"pool_size"`
}

// AuthConfig tunes login and token issuance
type AuthConfig struct {
	JWTSecret       string        `yaml:"jwt_secret"`
	Issuer          string        `yaml:"issuer"`
	TokenTTL        time.Duration `yaml:"token_ttl"`
	MaxTries        int           `yaml:"max_tries"`
	IdentifierField string        `yaml:"identifier_field"`
	BcryptCost      int           `yaml:"bcrypt_cost"`
	LoginRateLimit  int           `yaml:"login_rate_limit"`
	LoginRateWindow time.Duration `yaml:"login_rate_window"`
}

// Upload backends
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// UploadsConfig configures where uploaded files live and how they are addressed
type UploadsConfig struct {
	Backend string   `yaml:"backend"`
	Root    string   `yaml:"root"`
	BaseURL string   `yaml:"base_url"`
	S3      S3Config `yaml:"s3"`
}

// S3Config configures the S3 upload backend
type S3Config struct {
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UsePathStyle bool   `yaml:"use_path_style"`
	KeyPrefix    string `yaml:"key_prefix"`
}

// MaintenanceConfig configures scheduled jobs
type MaintenanceConfig struct {
	TokenSweepEnabled  bool   `yaml:"token_sweep_enabled"`
	TokenSweepSchedule string `yaml:"token_sweep_schedule"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel string `yaml:"log_level"`

	// Metrics
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// Error log persistence in the log_errors table
	PersistErrors bool `yaml:"persist_errors"`

	// OpenTelemetry
	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"` // Use insecure gRPC connection
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Level returns the parsed log level
func (o ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(o.LogLevel)
}

// OTel returns the tracing settings
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
		SampleRatio:    o.OTelSampleRatio,
	}
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "3333",
			HealthPort:      "9090",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Database: DatabaseConfig{
			Driver:      DriverPostgres,
			MaxConns:    20,
			MinConns:    2,
			Timeout:     10 * time.Second,
			MaxLifetime: 30 * time.Minute,
			MaxIdleTime: 5 * time.Minute,
			AutoMigrate: true,
		},
		Auth: AuthConfig{
			TokenTTL:        24 * time.Hour,
			MaxTries:        5,
			IdentifierField: "username",
			LoginRateLimit:  10,
			LoginRateWindow: time.Minute,
		},
		Uploads: UploadsConfig{
			Backend: BackendLocal,
			Root:    "./uploads",
			S3:      S3Config{Region: "us-east-1"},
		},
		Maintenance: MaintenanceConfig{
			TokenSweepSchedule: "0 * * * *",
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			PersistErrors:      true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "pressroom",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1.0,
		},
	}
}

// LoadConfig loads defaults, the YAML file at path (when path is not empty)
// and environment overrides, then validates the result
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides fields whose PRESSROOM_* variable is set
func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("PRESSROOM_HOST", s.Host)
	s.Port = getEnv("PRESSROOM_PORT", s.Port)
	s.HealthPort = getEnv("PRESSROOM_HEALTH_PORT", s.HealthPort)
	s.ReadTimeout = getEnvDuration("PRESSROOM_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("PRESSROOM_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("PRESSROOM_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("PRESSROOM_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.CORSOrigins = getEnvList("PRESSROOM_CORS_ORIGINS", s.CORSOrigins)
	s.TrustedProxies = getEnvList("PRESSROOM_TRUSTED_PROXIES", s.TrustedProxies)

	db := &c.Database
	db.Driver = getEnv("PRESSROOM_DB_DRIVER", db.Driver)
	db.URL = getEnv("PRESSROOM_DB_URL", db.URL)
	db.MaxConns = getEnvInt("PRESSROOM_DB_MAX_CONNS", db.MaxConns)
	db.MinConns = getEnvInt("PRESSROOM_DB_MIN_CONNS", db.MinConns)
	db.Timeout = getEnvDuration("PRESSROOM_DB_TIMEOUT", db.Timeout)
	db.AutoMigrate = getEnvBool("PRESSROOM_DB_AUTO_MIGRATE", db.AutoMigrate)

	r := &c.Redis
	r.URL = getEnv("PRESSROOM_REDIS_URL", r.URL)
	r.Password = getEnv("PRESSROOM_REDIS_PASSWORD", r.Password)
	r.DB = getEnvInt("PRESSROOM_REDIS_DB", r.DB)
	r.MaxRetries = getEnvInt("PRESSROOM_REDIS_MAX_RETRIES", r.MaxRetries)
	r.PoolSize = getEnvInt("PRESSROOM_REDIS_POOL_SIZE", r.PoolSize)

	a := &c.Auth
	a.JWTSecret = getEnv("PRESSROOM_JWT_SECRET", a.JWTSecret)
	a.Issuer = getEnv("PRESSROOM_JWT_ISSUER", a.Issuer)
	a.TokenTTL = getEnvDuration("PRESSROOM_TOKEN_TTL", a.TokenTTL)
	a.MaxTries = getEnvInt("PRESSROOM_MAX_LOGIN_TRIES", a.MaxTries)
	a.IdentifierField = getEnv("PRESSROOM_LOGIN_IDENTIFIER", a.IdentifierField)
	a.BcryptCost = getEnvInt("PRESSROOM_BCRYPT_COST", a.BcryptCost)
	a.LoginRateLimit = getEnvInt("PRESSROOM_LOGIN_RATE_LIMIT", a.LoginRateLimit)
	a.LoginRateWindow = getEnvDuration("PRESSROOM_LOGIN_RATE_WINDOW", a.LoginRateWindow)

	u := &c.Uploads
	u.Backend = getEnv("PRESSROOM_UPLOAD_BACKEND", u.Backend)
	u.Root = getEnv("PRESSROOM_UPLOAD_ROOT", u.Root)
	u.BaseURL = getEnv("PRESSROOM_UPLOAD_BASE_URL", u.BaseURL)
	u.S3.Bucket = getEnv("PRESSROOM_S3_BUCKET", u.S3.Bucket)
	u.S3.Region = getEnv("PRESSROOM_S3_REGION", u.S3.Region)
	u.S3.Endpoint = getEnv("PRESSROOM_S3_ENDPOINT", u.S3.Endpoint)
	u.S3.AccessKey = getEnv("PRESSROOM_S3_ACCESS_KEY", u.S3.AccessKey)
	u.S3.SecretKey = getEnv("PRESSROOM_S3_SECRET_KEY", u.S3.SecretKey)
	u.S3.UsePathStyle = getEnvBool("PRESSROOM_S3_USE_PATH_STYLE", u.S3.UsePathStyle)
	u.S3.KeyPrefix = getEnv("PRESSROOM_S3_KEY_PREFIX", u.S3.KeyPrefix)

	m := &c.Maintenance
	m.TokenSweepEnabled = getEnvBool("PRESSROOM_TOKEN_SWEEP_ENABLED", m.TokenSweepEnabled)
	m.TokenSweepSchedule = getEnv("PRESSROOM_TOKEN_SWEEP_SCHEDULE", m.TokenSweepSchedule)

	o := &c.Observability
	o.LogLevel = getEnv("PRESSROOM_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("PRESSROOM_METRICS_ENABLED", o.MetricsEnabled)
	o.PersistErrors = getEnvBool("PRESSROOM_PERSIST_ERRORS", o.PersistErrors)
	o.OTelEnabled = getEnvBool("PRESSROOM_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("PRESSROOM_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("PRESSROOM_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("PRESSROOM_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("PRESSROOM_OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = getEnvFloat("PRESSROOM_OTEL_SAMPLE_RATIO", o.OTelSampleRatio)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	// Validate server config
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server port is required"))
	}
	if c.Server.HealthPort == "" {
		errs = append(errs, errors.New("health port is required"))
	}
	if c.Server.Port != "" && c.Server.Port == c.Server.HealthPort {
		errs = append(errs, errors.New("server port and health port must be different"))
	}
	if _, err := httputil.ParseTrustedProxies(c.Server.TrustedProxies); err != nil {
		errs = append(errs, err)
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database URL is required for the postgres driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("invalid database driver: %s (must be postgres or memory)", c.Database.Driver))
	}

	if len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT secret must have at least 16 characters"))
	}
	if c.Auth.TokenTTL < 0 {
		errs = append(errs, errors.New("token TTL must not be negative"))
	}
	if c.Auth.MaxTries <= 0 {
		errs = append(errs, errors.New("max login tries must be positive"))
	}
	if c.Auth.IdentifierField != "username" && c.Auth.IdentifierField != "email" {
		errs = append(errs, fmt.Errorf("invalid login identifier: %s (must be username or email)", c.Auth.IdentifierField))
	}
	if c.Auth.LoginRateLimit < 0 {
		errs = append(errs, errors.New("login rate limit must not be negative"))
	}
	if c.Auth.LoginRateLimit > 0 && c.Auth.LoginRateWindow <= 0 {
		errs = append(errs, errors.New("login rate window must be positive"))
	}

	switch c.Uploads.Backend {
	case BackendLocal:
		if c.Uploads.Root == "" {
			errs = append(errs, errors.New("upload root is required for the local backend"))
		}
	case BackendS3:
		if c.Uploads.S3.Bucket == "" {
			errs = append(errs, errors.New("S3 bucket is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid upload backend: %s (must be local or s3)", c.Uploads.Backend))
	}

	if c.Maintenance.TokenSweepEnabled {
		if _, err := cron.ParseStandard(c.Maintenance.TokenSweepSchedule); err != nil {
			errs = append(errs, fmt.Errorf("invalid token sweep schedule %q: %w", c.Maintenance.TokenSweepSchedule, err))
		}
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			errs = append(errs, errors.New("OpenTelemetry endpoint is required when OTel is enabled"))
		}
		if c.Observability.OTelServiceName == "" {
			errs = append(errs, errors.New("OpenTelemetry service name is required when OTel is enabled"))
		}
	}

	return errors.Join(errs...)
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default.
// A bare "0" is accepted as a zero duration.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList returns a comma separated environment variable or a default
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
