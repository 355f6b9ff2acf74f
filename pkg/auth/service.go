package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/platinummonkey/pressroom/pkg/apperr"
	"github.com/platinummonkey/pressroom/pkg/errorlog"
	"github.com/platinummonkey/pressroom/pkg/observability"
)

// Client-facing messages
const (
	MsgInvalidCredentials = "User or password invalid."
	MsgAccountBlocked     = "User blocked. Please contact an administrator."
	MsgTokenNotInformed   = "Token not informed."
	MsgTokenNotFound      = "Token not found."
	MsgTokenNotProvided   = "Token not provided."
	MsgTokenInvalid       = "Invalid or revoked token."
	MsgTokenExpired       = "Token expired."
	MsgUserNotFound       = "User not found for token."
)

// Login outcomes reported to the Recorder
const (
	OutcomeSuccess = "success"
	OutcomeInvalid = "invalid"
	OutcomeBlocked = "blocked"
	OutcomeError   = "error"
)

// Token validation results reported to the Recorder
const (
	ValidationOK           = "ok"
	ValidationInvalid      = "invalid"
	ValidationExpired      = "expired"
	ValidationUserNotFound = "user_not_found"
	ValidationError        = "error"
)

const controllerName = "AuthController"

// Policy tunes the login flow
type Policy struct {
	// MaxTries is the number of consecutive failures that blocks an account
	MaxTries int
	// TokenTTL is the lifetime of issued tokens; 0 issues non-expiring tokens
	TokenTTL time.Duration
	// IdentifierField selects the column matched against the login identifier
	IdentifierField IdentifierField
}

// DefaultPolicy returns 5 tries, 24h tokens, username login
func DefaultPolicy() Policy {
	return Policy{
		MaxTries:        5,
		TokenTTL:        24 * time.Hour,
		IdentifierField: IdentifyByUsername,
	}
}

// Recorder receives auth metrics
type Recorder interface {
	RecordLogin(outcome string)
	RecordLockout()
	RecordTokenValidation(result string)
}

type nopRecorder struct{}

func (nopRecorder) RecordLogin(string)           {}
func (nopRecorder) RecordLockout()               {}
func (nopRecorder) RecordTokenValidation(string) {}

// Service implements login, logout and bearer authentication
type Service struct {
	store   Store
	hasher  Hasher
	tokens  *TokenGenerator
	clock   Clock
	sink    errorlog.Sink
	logger  *observability.Logger
	metrics Recorder
	policy  Policy
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the wall clock
func WithClock(clock Clock) Option {
	return func(s *Service) { s.clock = clock }
}

// WithErrorSink records internal failures
func WithErrorSink(sink errorlog.Sink) Option {
	return func(s *Service) { s.sink = sink }
}

// WithLogger sets the service logger
func WithLogger(logger *observability.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithRecorder sets the metrics recorder
func WithRecorder(recorder Recorder) Option {
	return func(s *Service) { s.metrics = recorder }
}

// WithPolicy replaces the default policy. MaxTries <= 0, a negative TokenTTL and
// an empty IdentifierField keep their defaults; TokenTTL 0 disables expiry.
func WithPolicy(policy Policy) Option {
	return func(s *Service) {
		if policy.MaxTries > 0 {
			s.policy.MaxTries = policy.MaxTries
		}
		if policy.TokenTTL >= 0 {
			s.policy.TokenTTL = policy.TokenTTL
		}
		if policy.IdentifierField != "" {
			s.policy.IdentifierField = policy.IdentifierField
		}
	}
}

// NewService creates an auth service
func NewService(store Store, hasher Hasher, tokens *TokenGenerator, opts ...Option) *Service {
	s := &Service{
		store:   store,
		hasher:  hasher,
		tokens:  tokens,
		clock:   SystemClock{},
		sink:    errorlog.NopSink{},
		logger:  observability.NewNopLogger(),
		metrics: nopRecorder{},
		policy:  DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the effective policy
func (s *Service) Policy() Policy {
	return s.policy
}

// Login verifies credentials and issues a session token.
//
// Unknown identifiers and wrong passwords both fail with 401; a blocked account
// fails with 403 whatever the password. Every failed password increments the
// user's tries and the MaxTries-th failure blocks the account.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	const op = "auth.Login"

	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" || req.Password == "" {
		return nil, apperr.Validation(op, "Username and password are required.")
	}

	user, err := s.store.FindUserByIdentifier(ctx, s.policy.IdentifierField, identifier)
	if errors.Is(err, ErrUserNotFound) {
		// keep the response time of unknown users in line with wrong passwords
		s.hasher.DummyVerify(req.Password)
		s.metrics.RecordLogin(OutcomeInvalid)
		return nil, apperr.Unauthorized(op, MsgInvalidCredentials)
	}
	if err != nil {
		return nil, s.loginError(ctx, err)
	}

	if user.IsBlocked() {
		s.metrics.RecordLogin(OutcomeBlocked)
		return nil, apperr.New(apperr.KindAccountBlocked, op, MsgAccountBlocked).
			WithDetail("blocked_at", user.BlockedAt.UTC())
	}

	ok, err := s.hasher.Verify(user.PasswordHash, req.Password)
	if err != nil {
		return nil, s.loginError(ctx, err)
	}

	now := s.clock.Now()
	if !ok {
		return nil, s.recordFailure(ctx, op, user, now)
	}

	var expiresAt *time.Time
	if s.policy.TokenTTL > 0 {
		exp := now.Add(s.policy.TokenTTL)
		expiresAt = &exp
	}

	bearer, tokenHash, err := s.tokens.GenerateToken(user.ID, now, expiresAt)
	if err != nil {
		return nil, s.loginError(ctx, err)
	}

	err = s.store.WithTx(ctx, func(tx Store) error {
		user.Tries = 0
		user.BlockedAt = nil
		user.UpdatedAt = now
		if err := tx.UpdateLoginState(ctx, user); err != nil {
			return err
		}
		return tx.CreateToken(ctx, &Token{
			UserID:    user.ID,
			TokenHash: tokenHash,
			Type:      TokenTypeJWT,
			ExpiresAt: expiresAt,
			IP:        truncate(req.ClientIP, 45),
			UserAgent: req.UserAgent,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, s.loginError(ctx, err)
	}

	s.metrics.RecordLogin(OutcomeSuccess)
	s.logger.WithField("user_id", user.ID).Info("login succeeded")

	return &LoginResult{
		Token:     bearer,
		ExpiresAt: expiresAt,
		User:      user.Projection(),
	}, nil
}

func (s *Service) recordFailure(ctx context.Context, op string, user *User, now time.Time) error {
	var blocked bool
	err := s.store.WithTx(ctx, func(tx Store) error {
		// re-read inside the unit of work so concurrent failures are not lost
		current, err := tx.FindUserByID(ctx, user.ID)
		if err != nil {
			return err
		}
		current.Tries++
		if current.Tries >= s.policy.MaxTries && current.BlockedAt == nil {
			blockedAt := now
			current.BlockedAt = &blockedAt
			blocked = true
		}
		current.UpdatedAt = now
		*user = *current
		return tx.UpdateLoginState(ctx, current)
	})
	if err != nil {
		return s.loginError(ctx, err)
	}

	s.metrics.RecordLogin(OutcomeInvalid)
	if blocked {
		s.metrics.RecordLockout()
		s.logger.WithField("user_id", user.ID).Warn("account blocked after repeated login failures")
	}

	return apperr.Unauthorized(op, MsgInvalidCredentials).
		WithDetail("tries", user.Tries).
		WithDetail("blocked", user.IsBlocked())
}

// Logout revokes the token. Revoking an already revoked token succeeds and
// keeps the first revocation time.
func (s *Service) Logout(ctx context.Context, bearer string) error {
	const op = "auth.Logout"

	if strings.TrimSpace(bearer) == "" {
		return apperr.Validation(op, MsgTokenNotInformed)
	}

	token, err := s.store.FindTokenByHash(ctx, s.tokens.HashToken(bearer))
	if errors.Is(err, ErrTokenNotFound) {
		return apperr.NotFound(op, MsgTokenNotFound)
	}
	if err != nil {
		return s.internal(ctx, op, "logout", err)
	}

	if token.IsRevoked {
		return nil
	}

	if err := s.store.RevokeToken(ctx, token.ID, s.clock.Now()); err != nil {
		return s.internal(ctx, op, "logout", err)
	}

	s.logger.WithField("user_id", token.UserID).Info("token revoked")
	return nil
}

// Authenticate resolves a bearer token to its user.
// An expired token is marked revoked before the request is rejected.
func (s *Service) Authenticate(ctx context.Context, bearer string) (*AuthContext, error) {
	const op = "auth.Authenticate"

	if bearer == "" {
		s.metrics.RecordTokenValidation(ValidationInvalid)
		return nil, apperr.Unauthorized(op, MsgTokenNotProvided)
	}

	if _, err := s.tokens.ParseToken(bearer); err != nil {
		s.metrics.RecordTokenValidation(ValidationInvalid)
		return nil, apperr.Wrap(apperr.KindUnauthorized, op, MsgTokenInvalid, err)
	}

	token, err := s.store.FindTokenByHash(ctx, s.tokens.HashToken(bearer))
	if errors.Is(err, ErrTokenNotFound) {
		s.metrics.RecordTokenValidation(ValidationInvalid)
		return nil, apperr.Unauthorized(op, MsgTokenInvalid)
	}
	if err != nil {
		s.metrics.RecordTokenValidation(ValidationError)
		return nil, s.internal(ctx, op, "authenticate", err)
	}
	if token.IsRevoked {
		s.metrics.RecordTokenValidation(ValidationInvalid)
		return nil, apperr.Unauthorized(op, MsgTokenInvalid)
	}

	now := s.clock.Now()
	if token.IsExpired(now) {
		if err := s.store.RevokeToken(ctx, token.ID, now); err != nil {
			s.metrics.RecordTokenValidation(ValidationError)
			return nil, s.internal(ctx, op, "authenticate", err)
		}
		s.metrics.RecordTokenValidation(ValidationExpired)
		return nil, apperr.Unauthorized(op, MsgTokenExpired)
	}

	user, err := s.store.FindUserByID(ctx, token.UserID)
	if errors.Is(err, ErrUserNotFound) {
		s.metrics.RecordTokenValidation(ValidationUserNotFound)
		return nil, apperr.Unauthorized(op, MsgUserNotFound)
	}
	if err != nil {
		s.metrics.RecordTokenValidation(ValidationError)
		return nil, s.internal(ctx, op, "authenticate", err)
	}

	s.metrics.RecordTokenValidation(ValidationOK)
	return &AuthContext{User: user, Token: token}, nil
}

// CreateUser hashes password and inserts a new user
func (s *Service) CreateUser(ctx context.Context, username, email, password string, role Role) (*User, error) {
	const op = "auth.CreateUser"

	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperr.Validation(op, "Username is required.")
	}
	if len(password) < 6 {
		return nil, apperr.Validation(op, "Password must have at least 6 characters.")
	}
	if role == "" {
		role = RoleEditor
	}
	if role != RoleAdmin && role != RoleEditor {
		return nil, apperr.Validation(op, "Role must be admin or editor.")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, s.internal(ctx, op, "store", err)
	}

	now := s.clock.Now()
	user := &User{
		Username:     username,
		Email:        strings.TrimSpace(email),
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateUser) {
			return nil, apperr.Wrap(apperr.KindConflict, op, "Username or email already in use.", err)
		}
		return nil, s.internal(ctx, op, "store", err)
	}

	return user, nil
}

// FindUser looks a user up by username
func (s *Service) FindUser(ctx context.Context, username string) (*User, error) {
	const op = "auth.FindUser"

	user, err := s.store.FindUserByIdentifier(ctx, IdentifyByUsername, username)
	if errors.Is(err, ErrUserNotFound) {
		return nil, apperr.NotFound(op, "User not found.")
	}
	if err != nil {
		return nil, s.internal(ctx, op, "show", err)
	}
	return user, nil
}

// GetUser looks a user up by id
func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	const op = "auth.GetUser"

	user, err := s.store.FindUserByID(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return nil, apperr.NotFound(op, "User not found.")
	}
	if err != nil {
		return nil, s.internal(ctx, op, "show", err)
	}
	return user, nil
}

// ListUsers returns every user ordered by id
func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, s.internal(ctx, "auth.ListUsers", "index", err)
	}
	return users, nil
}

// Unblock clears the lockout of a user and resets its tries
func (s *Service) Unblock(ctx context.Context, userID int64) (*User, error) {
	const op = "auth.Unblock"

	var user *User
	err := s.store.WithTx(ctx, func(tx Store) error {
		current, err := tx.FindUserByID(ctx, userID)
		if err != nil {
			return err
		}
		current.Tries = 0
		current.BlockedAt = nil
		current.UpdatedAt = s.clock.Now()
		user = current
		return tx.UpdateLoginState(ctx, current)
	})
	if errors.Is(err, ErrUserNotFound) {
		return nil, apperr.NotFound(op, "User not found.")
	}
	if err != nil {
		return nil, s.internal(ctx, op, "unblock", err)
	}

	s.logger.WithField("user_id", userID).Info("account unblocked")
	return user, nil
}

func (s *Service) loginError(ctx context.Context, err error) error {
	s.metrics.RecordLogin(OutcomeError)
	return s.internal(ctx, "auth.Login", "login", err)
}

// internal records err and hides it behind a generic message
func (s *Service) internal(ctx context.Context, op, function string, err error) error {
	errorlog.Report(ctx, s.sink, s.logger, errorlog.Entry{
		Controller: controllerName,
		Function:   function,
		Message:    "Error on " + function,
		Err:        err,
	})
	s.logger.WithError(err).WithField("op", op).Error("auth operation failed")
	return apperr.Internal(op, err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
