// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
// JSON responses:
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteMessage(w, http.StatusOK, "Logout successfully.")
//
// Classified errors map to their HTTP status and keep their diagnostic details:
//
//	httputil.WriteAppError(w, err) // {"error": "...", "tries": 3, "blocked": false}
//
// Unclassified errors always become 500 with a generic message; the cause is
// never sent to the client.
//
// # Middleware
//
// LoggingMiddleware assigns a request id, stores a request-scoped logger in the
// context and logs one line per request. RecoveryMiddleware turns panics into
// 500 responses. Chain composes middleware in declaration order.
package httputil
