package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/pressroom/pkg/auth"
	"github.com/platinummonkey/pressroom/pkg/errorlog"
	"github.com/platinummonkey/pressroom/pkg/httputil"
	"github.com/platinummonkey/pressroom/pkg/middleware"
	"github.com/platinummonkey/pressroom/pkg/observability"
	"github.com/platinummonkey/pressroom/pkg/unity"
	"github.com/platinummonkey/pressroom/pkg/upload"
)

// DefaultMaxBodyBytes caps request bodies; the largest accepted upload is 20MB
const DefaultMaxBodyBytes = 32 << 20

// Server represents our API server
type Server struct {
	router       *mux.Router
	auth         *auth.Service
	unities      *unity.Service
	pipeline     *upload.Pipeline
	errorLog     errorlog.Repository
	sink         errorlog.Sink
	limiter      middleware.Limiter
	logger       *observability.Logger
	metrics      *observability.Metrics
	corsOrigins  []string
	proxies      *httputil.TrustedProxies
	maxBodyBytes int64
	tracing      bool
	handler      http.Handler
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the server logger
func WithLogger(logger *observability.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics records HTTP metrics
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Server) { s.metrics = metrics }
}

// WithErrorLog serves /log-errors from repo and records handler failures to it
func WithErrorLog(repo errorlog.Repository) Option {
	return func(s *Server) {
		s.errorLog = repo
		s.sink = repo
	}
}

// WithErrorSink records handler failures without exposing /log-errors
func WithErrorSink(sink errorlog.Sink) Option {
	return func(s *Server) { s.sink = sink }
}

// WithLoginLimiter rate limits POST /login per client IP
func WithLoginLimiter(limiter middleware.Limiter) Option {
	return func(s *Server) { s.limiter = limiter }
}

// WithCORS allows cross-origin requests from origins
func WithCORS(origins []string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithTrustedProxies believes forwarding headers sent by proxies. Without it
// the client address is always the direct peer.
func WithTrustedProxies(proxies *httputil.TrustedProxies) Option {
	return func(s *Server) { s.proxies = proxies }
}

// WithMaxBodyBytes overrides DefaultMaxBodyBytes
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) { s.maxBodyBytes = n }
}

// WithTracing wraps the router in an OpenTelemetry HTTP handler
func WithTracing() Option {
	return func(s *Server) { s.tracing = true }
}

// NewServer creates a new API server
func NewServer(authService *auth.Service, unityService *unity.Service, pipeline *upload.Pipeline, opts ...Option) *Server {
	s := &Server{
		router:       mux.NewRouter(),
		auth:         authService,
		unities:      unityService,
		pipeline:     pipeline,
		sink:         errorlog.NopSink{},
		logger:       observability.NewNopLogger(),
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	s.handler = s.wrap(s.router)
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.Use(httputil.ClientIPMiddleware(s.proxies))
	s.router.Use(httputil.RecoveryMiddleware(s.logger))
	s.router.Use(httputil.LoggingMiddleware(s.logger))
	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))
	}
	s.router.Use(httputil.MaxBytesMiddleware(s.maxBodyBytes))
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusNotFound, "Route not found.")
	})

	// Public routes
	var login http.Handler = http.HandlerFunc(s.login)
	if s.limiter != nil {
		login = middleware.LoginRateLimit(s.limiter, s.logger)(login)
	}
	s.router.Handle("/login", login).Methods("POST")
	s.router.HandleFunc("/logout", s.logout).Methods("POST")
	s.router.HandleFunc("/uploads/{folder}/{file}", s.serveUpload).Methods("GET", "HEAD")

	// Authenticated routes
	protected := s.router.NewRoute().Subrouter()
	protected.Use(middleware.NewAuthMiddleware(s.auth, s.logger).Handler)

	protected.HandleFunc("/auth/me", s.me).Methods("GET")

	protected.HandleFunc("/upload", s.uploadHandler(upload.GenericImage)).Methods("POST")
	protected.HandleFunc("/upload/attachment", s.uploadHandler(upload.AlertAttachment)).Methods("POST")
	protected.HandleFunc("/upload/pdf", s.uploadHandler(upload.MagazinePDF)).Methods("POST")
	protected.Handle("/upload/cover",
		middleware.ValidateUpload(upload.PostCover.Field, upload.CoverImageGate)(s.uploadHandler(upload.PostCover)),
	).Methods("POST")

	protected.HandleFunc("/unities", s.listUnities).Methods("GET")
	protected.HandleFunc("/unities", s.createUnity).Methods("POST")
	protected.HandleFunc("/unities/{id:[0-9]+}", s.getUnity).Methods("GET")
	protected.HandleFunc("/unities/{id:[0-9]+}", s.updateUnity).Methods("PUT")
	protected.HandleFunc("/unities/{id:[0-9]+}", s.deleteUnity).Methods("DELETE")

	// Admin routes
	admin := protected.NewRoute().Subrouter()
	admin.Use(middleware.RequireRole(auth.RoleAdmin))

	admin.HandleFunc("/users", s.listUsers).Methods("GET")
	admin.HandleFunc("/users", s.createUser).Methods("POST")
	admin.HandleFunc("/users/{id:[0-9]+}", s.getUser).Methods("GET")
	admin.HandleFunc("/users/{id:[0-9]+}/unblock", s.unblockUser).Methods("POST")

	if s.errorLog != nil {
		admin.HandleFunc("/log-errors", s.listLogErrors).Methods("GET")
		admin.HandleFunc("/log-errors/{id:[0-9]+}", s.updateLogError).Methods("PUT")
	}
}

// wrap applies the handlers that must also see unmatched routes
func (s *Server) wrap(h http.Handler) http.Handler {
	if len(s.corsOrigins) > 0 {
		h = httputil.CORSMiddleware(s.corsOrigins)(h)
	}
	if s.tracing {
		h = otelhttp.NewHandler(h, "pressroom.http",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	}
	return h
}

// Handler returns the root handler with CORS and tracing applied
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the router for additional registrations
func (s *Server) Router() *mux.Router {
	return s.router
}

// NewHealthHandler serves liveness, readiness and (when registry is set) metrics
func NewHealthHandler(checker *observability.HealthChecker, registry *prometheus.Registry) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/health/live", checker.Liveness).Methods("GET")
	router.HandleFunc("/health/ready", checker.Readiness).Methods("GET")
	if registry != nil {
		router.Handle("/metrics", observability.MetricsHandler(registry)).Methods("GET")
	}
	return router
}
