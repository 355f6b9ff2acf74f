package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sort"

	"github.com/platinummonkey/pressroom/pkg/app"
)

// Opener builds the application a task runs against
type Opener func(ctx context.Context) (*app.App, error)

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(ctx context.Context, args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet
	out         io.Writer
}

// NewRootCommand creates the root command. Tasks open the application lazily
// through open and write their report to out.
func NewRootCommand(open Opener, out io.Writer) *Command {
	root := &Command{
		Name:        "pressroom-tasks",
		Description: "Pressroom maintenance tasks",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("pressroom-tasks", flag.ContinueOnError),
		out:         out,
	}

	// Add subcommands
	root.Subcommands["tokens:clear"] = newTokensClearCommand(open, out)
	root.Subcommands["users:create"] = newUsersCreateCommand(open, out)
	root.Subcommands["users:unblock"] = newUsersUnblockCommand(open, out)

	return root
}

// Execute runs the subcommand named by args[0]
func (c *Command) Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return c.usage()
	}

	// Check for help flag
	if args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		return c.usage()
	}

	// Check for subcommand
	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(ctx, args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage() error {
	fmt.Fprintf(c.out, "Usage: %s <command> [flags]\n\n", c.Name)
	fmt.Fprintf(c.out, "Commands:\n")

	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(c.out, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}

// withApp opens the application, runs fn and closes it
func withApp(ctx context.Context, open Opener, fn func(a *app.App) error) error {
	a, err := open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
