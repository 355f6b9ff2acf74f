package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/platinummonkey/pressroom/pkg/apperr"
	"github.com/platinummonkey/pressroom/pkg/auth"
	"github.com/platinummonkey/pressroom/pkg/contextkeys"
	"github.com/platinummonkey/pressroom/pkg/httputil"
	"github.com/platinummonkey/pressroom/pkg/observability"
)

// Authenticator resolves a bearer token to its user
type Authenticator interface {
	Authenticate(ctx context.Context, bearer string) (*auth.AuthContext, error)
}

// AuthMiddleware provides authentication middleware
type AuthMiddleware struct {
	authenticator Authenticator
	logger        *observability.Logger
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(authenticator Authenticator, logger *observability.Logger) *AuthMiddleware {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &AuthMiddleware{
		authenticator: authenticator,
		logger:        logger,
	}
}

// Handler wraps an HTTP handler with authentication.
// A missing or malformed header is treated as no token at all.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.ExtractBearer(r.Header.Get("Authorization"))
		if !ok {
			httputil.WriteAppError(w, apperr.Unauthorized("middleware.Auth", auth.MsgTokenNotProvided))
			return
		}

		authCtx, err := m.authenticator.Authenticate(r.Context(), token)
		if err != nil {
			if apperr.Is(err, apperr.KindInternal) {
				observability.FromContext(r.Context()).WithError(err).Error("token validation failed")
			}
			httputil.WriteAppError(w, err)
			return
		}

		userID := strconv.FormatInt(authCtx.User.ID, 10)
		ctx := contextkeys.WithAuth(r.Context(), authCtx)
		ctx = observability.WithUserID(ctx, userID)
		if reqLogger, ok := ctx.Value(contextkeys.LoggerKey).(*observability.Logger); ok {
			ctx = observability.WithLogger(ctx, reqLogger.WithField("user_id", userID))
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAuthContext extracts auth context from request
func GetAuthContext(r *http.Request) *auth.AuthContext {
	return AuthFromContext(r.Context())
}

// AuthFromContext extracts auth context from ctx
func AuthFromContext(ctx context.Context) *auth.AuthContext {
	authCtx, ok := ctx.Value(contextkeys.AuthKey).(*auth.AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}

// RequireRole creates middleware that checks for a specific role
func RequireRole(role auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := GetAuthContext(r)
			if authCtx == nil {
				httputil.WriteAppError(w, apperr.Unauthorized("middleware.RequireRole", auth.MsgTokenNotProvided))
				return
			}

			if !authCtx.HasRole(role) {
				httputil.WriteAppError(w, apperr.New(apperr.KindForbidden, "middleware.RequireRole", "insufficient role permissions"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
