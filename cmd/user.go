package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/immotax"
	"github.com/etnz/immotax/functions"
	"github.com/etnz/immotax/store"
	"github.com/google/subcommands"
)

type userCmd struct{}

func (*userCmd) Name() string     { return "user" }
func (*userCmd) Synopsis() string { return "manage the users of the API" }
func (*userCmd) Usage() string {
	return `itx user add -email <email> [-name <name>] [-role user|admin] [-tax-number <number>]
itx user token -email <email>
itx user list

  add creates a user and prints its API token. token replaces the token of a
  user and prints the new one. Tokens are stored hashed: print them once,
  keep them safe.
`
}

func (c *userCmd) SetFlags(f *flag.FlagSet) {}

func (c *userCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	action, args := f.Arg(0), f.Args()[1:]

	fs := flag.NewFlagSet("user "+action, flag.ContinueOnError)
	email := fs.String("email", "", "Email of the user")
	name := fs.String("name", "", "Name of the user")
	role := fs.String("role", "user", "Role of the user (user, admin)")
	taxNumber := fs.String("tax-number", "", "Tax number (Steuernummer) of the user")
	if err := fs.Parse(args); err != nil {
		return subcommands.ExitUsageError
	}

	a, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()
	users := a.store.Entities().Users

	switch action {
	case "add":
		token, hash, err := functions.NewToken()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		if existing, err := users.Where(ctx, "", "email", *email); err == nil && len(existing) > 0 {
			fmt.Fprintf(os.Stderr, "Error: user %q already exists\n", *email)
			return subcommands.ExitFailure
		}
		u := &immotax.User{Email: *email, Name: *name, Role: *role, TaxNumber: *taxNumber, TokenHash: hash}
		if err := users.Create(ctx, "", u); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating user: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Fprintf(os.Stderr, "Created user %s (%s)\n", u.ID, u.Email)
		fmt.Println(token)

	case "token":
		u, err := a.user(ctx, *email)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		token, hash, err := functions.NewToken()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		u.TokenHash = hash
		if err := users.Update(ctx, "", u); err != nil {
			fmt.Fprintf(os.Stderr, "Error updating user: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Println(token)

	case "list":
		list, err := users.List(ctx, "", store.Query{Sort: "email"})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		for _, u := range list {
			fmt.Printf("%s\t%s\t%s\t%s\n", u.ID, u.Email, u.Role, u.Name)
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown action %q\n", action)
		return subcommands.ExitUsageError
	}
	return subcommands.ExitSuccess
}
