// Package cmd implements the immotax command line: the API server and the
// offline calculations on trade files.
package cmd

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
)

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(c.HelpCommand(), "")
	c.Register(c.FlagsCommand(), "")
	c.Register(&topicCmd{}, "")
	c.Register(&completionCmd{}, "")

	c.Register(&serveCmd{}, "service")
	c.Register(&userCmd{}, "service")
	c.Register(&remindCmd{}, "service")

	c.Register(&fifoCmd{}, "calculations")
	c.Register(&gainsCmd{}, "calculations")
	c.Register(&exportCmd{}, "calculations")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var (
	configFile = flag.String("config", os.Getenv("IMMOTAX_CONFIG"), "Path to the YAML configuration file")
	// Verbose turns on debug logging.
	Verbose = flag.Bool("v", false, "Verbose output")
)

// printMarkdown renders markdown on the terminal.
func printMarkdown(md string) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err == nil {
		var out string
		if out, err = r.Render(md); err == nil {
			fmt.Print(out)
			return
		}
	}
	// raw markdown is still readable.
	fmt.Print(md)
	if !strings.HasSuffix(md, "\n") {
		fmt.Println()
	}
}
