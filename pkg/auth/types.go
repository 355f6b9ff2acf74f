package auth

import "time"

// Role is the editorial role of a user
type Role string

const (
	RoleAdmin  Role = "admin"  // Can manage users and error logs
	RoleEditor Role = "editor" // Can manage content
)

// TokenTypeJWT is the only token type issued by the login flow
const TokenTypeJWT = "jwt"

// User is a persisted credential record
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email,omitempty"`
	PasswordHash string     `json:"-"` // Never expose hash
	Role         Role       `json:"role"`
	Tries        int        `json:"tries"`
	BlockedAt    *time.Time `json:"blocked_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsBlocked reports whether the account is locked
func (u *User) IsBlocked() bool {
	return u.BlockedAt != nil
}

// IsAdmin reports whether the user holds the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Projection returns the minimal public view of the user
func (u *User) Projection() *UserProjection {
	return &UserProjection{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
	}
}

// UserProjection is what login and /auth/me return
type UserProjection struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     Role   `json:"role,omitempty"`
}

// Token is a persisted session token. TokenHash is the SHA-256 digest of the
// bearer value handed to the client.
type Token struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	TokenHash string     `json:"-"`
	Type      string     `json:"type"`
	IsRevoked bool       `json:"-"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	IP        string     `json:"ip,omitempty"`
	UserAgent string     `json:"user_agent,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// IsExpired reports whether the token expired at or before now
func (t *Token) IsExpired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

// IsUsable reports whether the token may authenticate a request at now
func (t *Token) IsUsable(now time.Time) bool {
	return !t.IsRevoked && !t.IsExpired(now)
}

// AuthContext holds the authenticated user of a request
type AuthContext struct {
	User  *User
	Token *Token
}

// HasRole checks if the authenticated user holds role
func (ac *AuthContext) HasRole(role Role) bool {
	if ac == nil || ac.User == nil {
		return false
	}
	return ac.User.Role == role
}

// LoginRequest carries credentials and client metadata for Login
type LoginRequest struct {
	Identifier string
	Password   string
	ClientIP   string
	UserAgent  string
}

// LoginResult is returned by a successful Login
type LoginResult struct {
	Token     string          `json:"token"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	User      *UserProjection `json:"user"`
}
