// Package storage holds the persistence backends of pressroom.
//
// Subpackages implement the auth and unity stores:
//
//   - postgres: lib/pq backed stores with transactional WithTx
//   - memory: mutex-guarded in-process stores for development and tests
//
// This package itself only builds the shared Redis client used by the login
// rate limiter and the readiness probe.
package storage
