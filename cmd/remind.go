package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/immotax"
	"github.com/etnz/immotax/scheduler"
	"github.com/google/subcommands"
)

type remindCmd struct {
	rent   bool
	filing bool
	date   string
}

func (*remindCmd) Name() string     { return "remind" }
func (*remindCmd) Synopsis() string { return "send the due reminders once" }
func (*remindCmd) Usage() string {
	return `itx remind [-rent] [-filing] [-d <date>]

  Sends the rent arrears and filing deadline reminders due on a day, like the
  daily job of the server does. Reminders already sent are not sent again.
  Both kinds are sent unless one is selected.
`
}

func (c *remindCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.rent, "rent", false, "Send the rent arrears reminders")
	f.BoolVar(&c.filing, "filing", false, "Send the filing deadline reminders")
	f.StringVar(&c.date, "d", immotax.Today().String(), "Day of the reminders")
}

func (c *remindCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	day, err := immotax.ParseDate(c.date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing date: %v\n", err)
		return subcommands.ExitUsageError
	}
	if !c.rent && !c.filing {
		c.rent, c.filing = true, true
	}

	a, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	r := &scheduler.Reminders{
		Entities:     a.store.Entities(),
		Mail:         a.mailer(),
		Landlord:     a.cfg.Scheduler.Landlord,
		FilingWindow: a.cfg.Scheduler.FilingWindow,
		Log:          a.log,
	}
	status := subcommands.ExitSuccess
	if c.rent {
		n, err := r.RunRent(ctx, day)
		fmt.Printf("%d rent reminders sent\n", n)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error sending rent reminders: %v\n", err)
			status = subcommands.ExitFailure
		}
	}
	if c.filing {
		n, err := r.RunFiling(ctx, day)
		fmt.Printf("%d filing reminders sent\n", n)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error sending filing reminders: %v\n", err)
			status = subcommands.ExitFailure
		}
	}
	return status
}
