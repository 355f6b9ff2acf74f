package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and verifies passwords
type Hasher interface {
	Hash(password string) (string, error)
	// Verify reports whether password matches hash. A mismatch is (false, nil).
	Verify(hash, password string) (bool, error)
	// DummyVerify spends the same work as Verify against a hash that matches
	// nothing. Logins for unknown identifiers call it to keep timing uniform.
	DummyVerify(password string)
}

// BcryptHasher implements Hasher with bcrypt
type BcryptHasher struct {
	cost  int
	dummy []byte
}

// NewBcryptHasher creates a bcrypt hasher. cost <= 0 selects bcrypt.DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	// cost is in range, so generation cannot fail
	dummy, _ := bcrypt.GenerateFromPassword([]byte("pressroom unknown account"), cost)
	return &BcryptHasher{cost: cost, dummy: dummy}
}

// Hash implements Hasher
func (h *BcryptHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify implements Hasher
func (h *BcryptHasher) Verify(hash, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("failed to verify password: %w", err)
}

// DummyVerify implements Hasher
func (h *BcryptHasher) DummyVerify(password string) {
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(password))
}
