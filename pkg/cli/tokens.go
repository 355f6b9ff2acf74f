package cli

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/platinummonkey/pressroom/pkg/app"
)

func newTokensClearCommand(open Opener, out io.Writer) *Command {
	cmd := &Command{
		Name:        "tokens:clear",
		Description: "Delete all tokens where expires_at < now",
		Flags:       flag.NewFlagSet("tokens:clear", flag.ContinueOnError),
		out:         out,
	}
	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		return withApp(ctx, open, func(a *app.App) error {
			deleted, err := a.Sweeper().Sweep(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Deleted %d expired tokens\n", deleted)
			return nil
		})
	}
	return cmd
}
