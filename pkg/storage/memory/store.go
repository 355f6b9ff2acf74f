// Package memory provides in-process stores for development and tests.
// Every method returns copies, so callers never share state with the store.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/platinummonkey/pressroom/pkg/auth"
	"github.com/platinummonkey/pressroom/pkg/unity"
)

type state struct {
	users   map[int64]auth.User
	tokens  map[int64]auth.Token
	unities map[int64]unity.Unity
	nextID  int64
}

func (st *state) clone() *state {
	c := &state{
		users:   make(map[int64]auth.User, len(st.users)),
		tokens:  make(map[int64]auth.Token, len(st.tokens)),
		unities: make(map[int64]unity.Unity, len(st.unities)),
		nextID:  st.nextID,
	}
	for id, u := range st.users {
		c.users[id] = copyUser(u)
	}
	for id, t := range st.tokens {
		c.tokens[id] = copyToken(t)
	}
	for id, u := range st.unities {
		c.unities[id] = copyUnity(u)
	}
	return c
}

type db struct {
	mu   sync.Mutex
	txMu sync.Mutex
	st   *state
}

// Store is a mutex-guarded in-memory implementation of auth.Store.
// Unities returns a unity.Store view sharing the same state.
type Store struct {
	*db
	// inTx marks the view handed to a WithTx callback, which already holds txMu
	inTx bool
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{db: &db{st: &state{
		users:   make(map[int64]auth.User),
		tokens:  make(map[int64]auth.Token),
		unities: make(map[int64]unity.Unity),
	}}}
}

// WithTx implements auth.Store. State is snapshotted before fn and restored
// if fn fails or panics. Writes made outside the transaction wait for it to
// finish, so a rollback never discards them. Calling WithTx on the tx view
// joins the running transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx auth.Store) error) error {
	return s.withTx(ctx, func(tx *Store) error { return fn(tx) })
}

func (s *Store) withTx(ctx context.Context, fn func(tx *Store) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.inTx {
		return fn(s)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			s.restore(snapshot)
			panic(p)
		}
		if err != nil {
			s.restore(snapshot)
		}
	}()

	return fn(&Store{db: s.db, inTx: true})
}

// lockWrite takes the locks a mutation needs and returns the unlock func
func (s *Store) lockWrite() func() {
	if !s.inTx {
		s.txMu.Lock()
	}
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		if !s.inTx {
			s.txMu.Unlock()
		}
	}
}

func (s *Store) restore(snapshot *state) {
	s.mu.Lock()
	s.st = snapshot
	s.mu.Unlock()
}

func (s *Store) nextID() int64 {
	s.st.nextID++
	return s.st.nextID
}

// FindUserByIdentifier implements auth.CredentialStore
func (s *Store) FindUserByIdentifier(ctx context.Context, field auth.IdentifierField, identifier string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.st.users {
		var value string
		switch field {
		case auth.IdentifyByEmail:
			value = u.Email
		default:
			value = u.Username
		}
		if value != "" && strings.EqualFold(value, identifier) {
			c := copyUser(u)
			return &c, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

// FindUserByID implements auth.CredentialStore
func (s *Store) FindUserByID(ctx context.Context, id int64) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.st.users[id]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	c := copyUser(u)
	return &c, nil
}

// ListUsers implements auth.CredentialStore
func (s *Store) ListUsers(ctx context.Context) ([]*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]*auth.User, 0, len(s.st.users))
	for _, u := range s.st.users {
		c := copyUser(u)
		users = append(users, &c)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// CreateUser implements auth.CredentialStore
func (s *Store) CreateUser(ctx context.Context, user *auth.User) error {
	defer s.lockWrite()()

	for _, u := range s.st.users {
		if strings.EqualFold(u.Username, user.Username) {
			return auth.ErrDuplicateUser
		}
		if user.Email != "" && strings.EqualFold(u.Email, user.Email) {
			return auth.ErrDuplicateUser
		}
	}

	user.ID = s.nextID()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}
	s.st.users[user.ID] = copyUser(*user)
	return nil
}

// UpdateLoginState implements auth.CredentialStore
func (s *Store) UpdateLoginState(ctx context.Context, user *auth.User) error {
	defer s.lockWrite()()

	u, ok := s.st.users[user.ID]
	if !ok {
		return auth.ErrUserNotFound
	}
	u.Tries = user.Tries
	u.BlockedAt = copyTime(user.BlockedAt)
	u.UpdatedAt = user.UpdatedAt
	s.st.users[user.ID] = u
	return nil
}

// CreateToken implements auth.TokenStore
func (s *Store) CreateToken(ctx context.Context, token *auth.Token) error {
	defer s.lockWrite()()

	if _, ok := s.st.users[token.UserID]; !ok {
		return auth.ErrUserNotFound
	}
	token.ID = s.nextID()
	if token.Type == "" {
		token.Type = auth.TokenTypeJWT
	}
	s.st.tokens[token.ID] = copyToken(*token)
	return nil
}

// FindTokenByHash implements auth.TokenStore
func (s *Store) FindTokenByHash(ctx context.Context, tokenHash string) (*auth.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.st.tokens {
		if t.TokenHash == tokenHash {
			c := copyToken(t)
			return &c, nil
		}
	}
	return nil, auth.ErrTokenNotFound
}

// RevokeToken implements auth.TokenStore. The first revocation time is kept.
func (s *Store) RevokeToken(ctx context.Context, id int64, revokedAt time.Time) error {
	defer s.lockWrite()()

	t, ok := s.st.tokens[id]
	if !ok {
		return auth.ErrTokenNotFound
	}
	t.IsRevoked = true
	if t.RevokedAt == nil {
		at := revokedAt
		t.RevokedAt = &at
	}
	s.st.tokens[id] = t
	return nil
}

// DeleteExpiredTokens implements auth.TokenStore
func (s *Store) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	defer s.lockWrite()()

	var deleted int64
	for id, t := range s.st.tokens {
		if t.ExpiresAt != nil && t.ExpiresAt.Before(now) {
			delete(s.st.tokens, id)
			deleted++
		}
	}
	return deleted, nil
}

// TokensForUser returns the tokens of userID ordered by id
func (s *Store) TokensForUser(userID int64) []*auth.Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tokens []*auth.Token
	for _, t := range s.st.tokens {
		if t.UserID == userID {
			c := copyToken(t)
			tokens = append(tokens, &c)
		}
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].ID < tokens[j].ID })
	return tokens
}

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func copyUser(u auth.User) auth.User {
	u.BlockedAt = copyTime(u.BlockedAt)
	return u
}

func copyToken(t auth.Token) auth.Token {
	t.ExpiresAt = copyTime(t.ExpiresAt)
	t.RevokedAt = copyTime(t.RevokedAt)
	return t
}
