package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const (
	// BearerPrefix is the Authorization header scheme
	BearerPrefix = "Bearer "
	// DefaultIssuer is the iss claim of issued tokens
	DefaultIssuer = "pressroom"
)

// ErrMalformedToken is returned when a bearer value is not a token we signed
var ErrMalformedToken = errors.New("malformed token")

// Claims are the JWT claims of a session token
type Claims struct {
	UserID int64 `json:"uid"`
	jwt.RegisteredClaims
}

// TokenGenerator issues and parses session tokens
type TokenGenerator struct {
	secret []byte
	issuer string
}

// NewTokenGenerator creates a generator signing with secret
func NewTokenGenerator(secret, issuer string) *TokenGenerator {
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return &TokenGenerator{
		secret: []byte(secret),
		issuer: issuer,
	}
}

// GenerateToken signs a new HS256 token for userID.
// Returns the bearer value (given to the client once) and its hash (stored).
func (tg *TokenGenerator) GenerateToken(userID int64, issuedAt time.Time, expiresAt *time.Time) (token string, tokenHash string, err error) {
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			Issuer:   tg.issuer,
			Subject:  strconv.FormatInt(userID, 10),
			IssuedAt: jwt.NewNumericDate(issuedAt),
		},
	}
	if expiresAt != nil {
		claims.ExpiresAt = jwt.NewNumericDate(*expiresAt)
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tg.secret)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign token: %w", err)
	}

	return token, tg.HashToken(token), nil
}

// HashToken computes the SHA256 hash of a token for lookup
func (tg *TokenGenerator) HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// ParseToken verifies the signature of token and returns its claims.
// Expiry is not checked here: the token store is the authority on expiry.
func (tg *TokenGenerator) ParseToken(token string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return tg.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if !parsed.Valid || claims.UserID == 0 {
		return nil, ErrMalformedToken
	}

	return claims, nil
}

// ExtractBearer returns the token of an Authorization header value.
// ok is false when the header is absent or not of the form "Bearer <token>".
func ExtractBearer(header string) (token string, ok bool) {
	if !strings.HasPrefix(header, BearerPrefix) {
		return "", false
	}
	token = strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
	if token == "" {
		return "", false
	}
	return token, true
}
