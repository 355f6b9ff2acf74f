package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/platinummonkey/pressroom/pkg/app"
	"github.com/platinummonkey/pressroom/pkg/auth"
)

func newUsersCreateCommand(open Opener, out io.Writer) *Command {
	cmd := &Command{
		Name:        "users:create",
		Description: "Create a user account",
		Flags:       flag.NewFlagSet("users:create", flag.ContinueOnError),
		out:         out,
	}

	username := cmd.Flags.String("username", "", "Username (required)")
	email := cmd.Flags.String("email", "", "Email address")
	password := cmd.Flags.String("password", "", "Password, at least 6 characters (required)")
	role := cmd.Flags.String("role", string(auth.RoleEditor), "Role: admin or editor")

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *username == "" || *password == "" {
			return errors.New("--username and --password are required")
		}

		return withApp(ctx, open, func(a *app.App) error {
			user, err := a.Auth.CreateUser(ctx, *username, *email, *password, auth.Role(*role))
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Created %s user %s (id %d)\n", user.Role, user.Username, user.ID)
			return nil
		})
	}
	return cmd
}

func newUsersUnblockCommand(open Opener, out io.Writer) *Command {
	cmd := &Command{
		Name:        "users:unblock",
		Description: "Clear the login lockout of a user",
		Flags:       flag.NewFlagSet("users:unblock", flag.ContinueOnError),
		out:         out,
	}

	username := cmd.Flags.String("username", "", "Username of the account")
	id := cmd.Flags.Int64("id", 0, "Id of the account")

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if (*username == "") == (*id == 0) {
			return errors.New("exactly one of --username or --id is required")
		}

		return withApp(ctx, open, func(a *app.App) error {
			userID := *id
			if *username != "" {
				user, err := a.Auth.FindUser(ctx, *username)
				if err != nil {
					return err
				}
				userID = user.ID
			}

			user, err := a.Auth.Unblock(ctx, userID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Unblocked %s (id %d)\n", user.Username, user.ID)
			return nil
		})
	}
	return cmd
}
