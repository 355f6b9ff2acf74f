// Package maintenance runs housekeeping jobs.
//
// TokenSweeper deletes tokens whose expiry lies strictly in the past. Tokens
// without an expiry are never swept. Scheduler runs the sweep on a cron
// schedule inside the server; the pressroom-tasks CLI runs it once:
//
//	sweeper := maintenance.NewTokenSweeper(store, maintenance.WithLogger(logger))
//	sched := maintenance.NewScheduler(logger)
//	if err := sched.AddSweep("0 * * * *", sweeper); err != nil {
//		return err
//	}
//	sched.Start()
//	defer sched.Stop(ctx)
package maintenance
