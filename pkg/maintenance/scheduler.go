package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/pressroom/pkg/observability"
)

// DefaultSweepSchedule runs the token sweep at the top of every hour
const DefaultSweepSchedule = "0 * * * *"

// sweepTimeout bounds one scheduled sweep
const sweepTimeout = 5 * time.Minute

// Scheduler runs maintenance jobs on cron schedules
type Scheduler struct {
	cron   *cron.Cron
	logger *observability.Logger
}

// NewScheduler creates a scheduler. Panicking jobs are recovered and a job
// still running when its next tick arrives is skipped.
func NewScheduler(logger *observability.Logger) *Scheduler {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	cl := cronLogger{logger: logger.WithField("component", "scheduler")}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
	}
}

// AddSweep schedules sweeper on spec (standard 5-field cron syntax or descriptors like @every 1h)
func (s *Scheduler) AddSweep(spec string, sweeper *TokenSweeper) error {
	if spec == "" {
		spec = DefaultSweepSchedule
	}
	_, err := s.cron.AddFunc(spec, func() {
		defer observability.RecoverPanic(s.logger, "token sweep")
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		// failures are logged and counted by the sweeper
		_, _ = sweeper.Sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule token sweep %q: %w", spec, err)
	}
	s.logger.WithField("schedule", spec).Info("token sweep scheduled")
	return nil
}

// Jobs returns the number of scheduled jobs
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

// Start runs the scheduler in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs or ctx, whichever ends first
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts observability.Logger to cron.Logger
type cronLogger struct {
	logger *observability.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithError(err).WithFields(fields(keysAndValues)).Error(msg)
}

func fields(keysAndValues []interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		out[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return out
}
