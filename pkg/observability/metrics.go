package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Auth metrics
	LoginAttemptsTotal    *prometheus.CounterVec
	AccountLockoutsTotal  prometheus.Counter
	TokenValidationsTotal *prometheus.CounterVec
	TokensSweptTotal      prometheus.Counter
	TokenSweepsTotal      *prometheus.CounterVec

	// Upload metrics
	UploadsTotal       *prometheus.CounterVec
	UploadBytesTotal   *prometheus.CounterVec
	UploadDuration     *prometheus.HistogramVec
	UploadDeletesTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive    prometheus.Gauge
	DBConnectionsIdle      prometheus.Gauge
	DBConnectionsWaitCount prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pressroom_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pressroom_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pressroom_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pressroom_login_attempts_total",
				Help: "Login attempts by outcome",
			},
			[]string{"outcome"},
		),
		AccountLockoutsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pressroom_account_lockouts_total",
				Help: "Accounts blocked after too many failed logins",
			},
		),
		TokenValidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pressroom_token_validations_total",
				Help: "Bearer token validations by result",
			},
			[]string{"result"},
		),
		TokensSweptTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pressroom_tokens_swept_total",
				Help: "Expired tokens deleted by the sweeper",
			},
		),
		TokenSweepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pressroom_token_sweeps_total",
				Help: "Token sweep runs by status",
			},
			[]string{"status"},
		),

		UploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pressroom_uploads_total",
				Help: "Stored uploads by collection and status",
			},
			[]string{"collection", "status"},
		),
		UploadBytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pressroom_upload_bytes_total",
				Help: "Bytes written by the upload pipeline",
			},
			[]string{"collection"},
		),
		UploadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pressroom_upload_duration_seconds",
				Help:    "Time spent transforming and writing an upload",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"collection"},
		),
		UploadDeletesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pressroom_upload_deletes_total",
				Help: "Upload deletions by collection and status",
			},
			[]string{"collection", "status"},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pressroom_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pressroom_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		DBConnectionsWaitCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pressroom_db_connections_wait_count",
				Help: "Total number of connections waited for",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.LoginAttemptsTotal,
		m.AccountLockoutsTotal,
		m.TokenValidationsTotal,
		m.TokensSweptTotal,
		m.TokenSweepsTotal,
		m.UploadsTotal,
		m.UploadBytesTotal,
		m.UploadDuration,
		m.UploadDeletesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.DBConnectionsWaitCount,
	)

	return m
}

// RecordLogin counts a login attempt outcome (success, invalid, blocked, error)
func (m *Metrics) RecordLogin(outcome string) {
	m.LoginAttemptsTotal.WithLabelValues(outcome).Inc()
}

// RecordLockout counts an account transitioning to blocked
func (m *Metrics) RecordLockout() {
	m.AccountLockoutsTotal.Inc()
}

// RecordTokenValidation counts a bearer validation result
func (m *Metrics) RecordTokenValidation(result string) {
	m.TokenValidationsTotal.WithLabelValues(result).Inc()
}

// RecordSweep records one sweeper run
func (m *Metrics) RecordSweep(deleted int64, err error) {
	if err != nil {
		m.TokenSweepsTotal.WithLabelValues("error").Inc()
		return
	}
	m.TokenSweepsTotal.WithLabelValues("ok").Inc()
	m.TokensSweptTotal.Add(float64(deleted))
}

// RecordUpload records one pipeline write
func (m *Metrics) RecordUpload(collection string, bytes int64, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.UploadsTotal.WithLabelValues(collection, status).Inc()
	m.UploadDuration.WithLabelValues(collection).Observe(duration.Seconds())
	if err == nil {
		m.UploadBytesTotal.WithLabelValues(collection).Add(float64(bytes))
	}
}

// RecordUploadDelete records one pipeline delete
func (m *Metrics) RecordUploadDelete(collection string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.UploadDeletesTotal.WithLabelValues(collection, status).Inc()
}

// UpdateDBStats copies connection pool stats into the gauges
func (m *Metrics) UpdateDBStats(stats sql.DBStats) {
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
	m.DBConnectionsWaitCount.Set(float64(stats.WaitCount))
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// routeLabel prefers the mux route template so path variables don't explode cardinality
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			path := routeLabel(r)
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, path).Observe(float64(rw.bytesWritten))
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
