package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/platinummonkey/pressroom/pkg/app"
	"github.com/platinummonkey/pressroom/pkg/cli"
	"github.com/platinummonkey/pressroom/pkg/config"
	"github.com/platinummonkey/pressroom/pkg/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	open := func(ctx context.Context) (*app.App, error) {
		cfg, err := config.LoadConfig(os.Getenv("PRESSROOM_CONFIG"))
		if err != nil {
			return nil, err
		}
		cfg.Observability.MetricsEnabled = false
		logger := observability.NewLogger(cfg.Observability.Level(), os.Stderr).WithField("service", "pressroom-tasks")
		return app.New(ctx, cfg, logger)
	}

	root := cli.NewRootCommand(open, os.Stdout)
	if err := root.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
