// Package auth implements the session core of the CMS: password login with
// brute-force lockout, bearer token issuance, revocation and lazy expiry.
//
// # Login
//
// Users are looked up by username (or email, see Policy.IdentifierField) and
// verified with bcrypt. Each wrong password increments the user's tries; the
// MaxTries-th failure sets blocked_at and every later attempt is refused with
// KindAccountBlocked until an administrator unblocks the account. A successful
// login resets the counters and stores a new token in the same unit of work.
//
//	svc := auth.NewService(store, auth.NewBcryptHasher(0),
//		auth.NewTokenGenerator(secret, ""),
//		auth.WithErrorSink(sink),
//	)
//	result, err := svc.Login(ctx, auth.LoginRequest{Identifier: "alice", Password: pw})
//
// # Tokens
//
// Tokens are HS256 JWTs. Only their SHA-256 digest is persisted, so a database
// leak does not leak usable bearer values. The token store decides whether a
// token is usable: it must not be revoked and, when expires_at is set, the
// injected Clock must be strictly before it. Authenticate marks an expired
// token revoked the first time it is presented.
//
// # Errors
//
// All operations return *apperr.Error values. Store and hashing failures are
// recorded to the errorlog.Sink and surface as KindInternal with a generic
// message.
package auth
