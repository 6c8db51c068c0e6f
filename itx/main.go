// Command itx is the immotax command line and API server.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/etnz/immotax/cmd"
	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
)

func main() {
	complete.Complete("itx", cmd.Completion())

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	cmd.Register(commander)

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
