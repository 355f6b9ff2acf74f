package auth

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUserNotFound is returned by stores when no user matches
	ErrUserNotFound = errors.New("user not found")

	// ErrTokenNotFound is returned by stores when no token matches
	ErrTokenNotFound = errors.New("token not found")

	// ErrDuplicateUser is returned when username or email is taken
	ErrDuplicateUser = errors.New("user already exists")
)

// IdentifierField selects the column used to look users up at login
type IdentifierField string

const (
	IdentifyByUsername IdentifierField = "username"
	IdentifyByEmail    IdentifierField = "email"
)

// CredentialStore persists users
type CredentialStore interface {
	FindUserByIdentifier(ctx context.Context, field IdentifierField, identifier string) (*User, error)
	FindUserByID(ctx context.Context, id int64) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	CreateUser(ctx context.Context, user *User) error
	// UpdateLoginState persists Tries and BlockedAt
	UpdateLoginState(ctx context.Context, user *User) error
}

// TokenStore persists session tokens
type TokenStore interface {
	CreateToken(ctx context.Context, token *Token) error
	FindTokenByHash(ctx context.Context, tokenHash string) (*Token, error)
	RevokeToken(ctx context.Context, id int64, revokedAt time.Time) error
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// Store is the persistence the auth service needs. WithTx runs fn inside one
// unit of work: fn's error or panic rolls everything back.
type Store interface {
	CredentialStore
	TokenStore
	WithTx(ctx context.Context, fn func(tx Store) error) error
}
