package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/pressroom/pkg/auth"
	"github.com/platinummonkey/pressroom/pkg/observability"
)

// TokenPurger deletes tokens that expired before now
type TokenPurger interface {
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// Recorder receives sweep metrics
type Recorder interface {
	RecordSweep(deleted int64, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordSweep(int64, error) {}

// TokenSweeper removes expired tokens
type TokenSweeper struct {
	store   TokenPurger
	clock   auth.Clock
	logger  *observability.Logger
	metrics Recorder
}

// Option configures a TokenSweeper
type Option func(*TokenSweeper)

// WithClock overrides the wall clock
func WithClock(clock auth.Clock) Option {
	return func(s *TokenSweeper) { s.clock = clock }
}

// WithLogger sets the sweeper logger
func WithLogger(logger *observability.Logger) Option {
	return func(s *TokenSweeper) { s.logger = logger }
}

// WithRecorder sets the metrics recorder
func WithRecorder(recorder Recorder) Option {
	return func(s *TokenSweeper) { s.metrics = recorder }
}

// NewTokenSweeper creates a sweeper over store
func NewTokenSweeper(store TokenPurger, opts ...Option) *TokenSweeper {
	s := &TokenSweeper{
		store:   store,
		clock:   auth.SystemClock{},
		logger:  observability.NewNopLogger(),
		metrics: nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep deletes every token with expires_at < now and returns how many went
func (s *TokenSweeper) Sweep(ctx context.Context) (int64, error) {
	now := s.clock.Now()

	deleted, err := s.store.DeleteExpiredTokens(ctx, now)
	s.metrics.RecordSweep(deleted, err)
	if err != nil {
		s.logger.WithError(err).Error("token sweep failed")
		return 0, fmt.Errorf("token sweep: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"deleted": deleted,
		"before":  now.Format(time.RFC3339),
	}).Info("expired tokens swept")
	return deleted, nil
}
