// Package api implements the pressroom REST API.
//
// # Routes
//
// Public:
//
//	POST /login                  issue a bearer token
//	POST /logout                 revoke the bearer token of the Authorization header
//	GET  /uploads/{folder}/{file} stream a stored upload
//
// Authenticated (Authorization: Bearer <token>):
//
//	GET  /auth/me
//	POST /upload, /upload/attachment, /upload/cover, /upload/pdf
//	GET|POST /unities, GET|PUT|DELETE /unities/{id}
//
// Admin only:
//
//	GET|POST /users, GET /users/{id}, POST /users/{id}/unblock
//	GET /log-errors, PUT /log-errors/{id}
//
// Health and metrics are served by NewHealthHandler on a separate listener.
//
// # Errors
//
// Every error response is {"error": "..."} plus safe diagnostic fields such as
// "tries" or "blocked_at". Unexpected failures always read "internal server error".
package api
