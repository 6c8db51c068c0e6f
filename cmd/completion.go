package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/etnz/immotax/docs"
	"github.com/etnz/immotax/export"
	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

// Completion describes the command line for shell completion.
func Completion() *complete.Command {
	trades := map[string]complete.Predictor{
		"trades": predict.Files("*.jsonl"),
		"c":      predict.Set{"EUR", "USD", "CHF", "GBP"},
		"cache":  predict.Dirs("*"),
	}
	formats := make(predict.Set, len(export.Formats))
	for i, f := range export.Formats {
		formats[i] = string(f)
	}
	topics := docs.Names()

	return &complete.Command{
		Flags: map[string]complete.Predictor{
			"config": predict.Files("*.yaml"),
			"v":      predict.Nothing,
		},
		Sub: map[string]*complete.Command{
			"serve":  {Flags: map[string]complete.Predictor{"addr": predict.Something}},
			"user":   {Args: predict.Set{"add", "token", "list"}},
			"remind": {Flags: map[string]complete.Predictor{"rent": predict.Nothing, "filing": predict.Nothing, "d": predict.Something}},
			"fifo": {
				Flags: merge(trades, map[string]complete.Predictor{"method": predict.Set{"fifo", "average"}, "json": predict.Nothing}),
				Args:  predict.Something,
			},
			"gains": {
				Flags: merge(trades, map[string]complete.Predictor{"year": predict.Something, "pdf": predict.Files("*.pdf"), "json": predict.Nothing}),
			},
			"export": {
				Flags: map[string]complete.Predictor{
					"user":   predict.Something,
					"year":   predict.Something,
					"format": formats,
					"o":      predict.Files("*"),
				},
			},
			"topic":      {Args: predict.Set(append(topics, "*"))},
			"completion": {Args: predict.Set{"bash", "zsh"}},
		},
	}
}

func merge(a, b map[string]complete.Predictor) map[string]complete.Predictor {
	m := make(map[string]complete.Predictor, len(a)+len(b))
	for k, v := range a {
		m[k] = v
	}
	for k, v := range b {
		m[k] = v
	}
	return m
}

type completionCmd struct{}

func (*completionCmd) Name() string     { return "completion" }
func (*completionCmd) Synopsis() string { return "print the shell completion setup" }
func (*completionCmd) Usage() string {
	return `itx completion [bash|zsh]

  Prints the line enabling the completion of itx in the shell. Add it to the
  shell startup file, for instance:

    itx completion bash >> ~/.bashrc
`
}

func (c *completionCmd) SetFlags(f *flag.FlagSet) {}

func (c *completionCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	bin, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if abs, err := filepath.EvalSymlinks(bin); err == nil {
		bin = abs
	}
	name := filepath.Base(os.Args[0])

	switch f.Arg(0) {
	case "", "bash":
		fmt.Printf("complete -C %s %s\n", bin, name)
	case "zsh":
		fmt.Printf("autoload -U +X bashcompinit && bashcompinit\ncomplete -o nospace -C %s %s\n", bin, name)
	default:
		fmt.Fprintf(os.Stderr, "unsupported shell %q\n", f.Arg(0))
		return subcommands.ExitUsageError
	}
	return subcommands.ExitSuccess
}
