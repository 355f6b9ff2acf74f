// Package middleware provides HTTP middleware for bearer authentication,
// role checks, login rate limiting and upload validation.
//
// # Middleware Components
//
// AuthMiddleware resolves "Authorization: Bearer <token>" through the auth
// service and stores the *auth.AuthContext in the request context:
//
//	authMW := middleware.NewAuthMiddleware(authService, logger)
//	protected.Use(authMW.Handler)
//	admin.Use(middleware.RequireRole(auth.RoleAdmin))
//
// LoginRateLimit bounds login attempts per client IP. The counter lives in
// Redis when configured so every instance shares it, in memory otherwise:
//
//	limiter := middleware.NewRedisLimiter(redisClient, cfg, "ratelimit:login")
//	router.Handle("/login", middleware.LoginRateLimit(limiter, logger)(loginHandler))
//
// ValidateUpload rejects oversize or mistyped multipart files before the
// handler runs.
//
// # Related Packages
//
//   - pkg/auth: token validation state machine
//   - pkg/upload: upload constraints
package middleware
