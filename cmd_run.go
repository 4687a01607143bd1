package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"slate/vm"
)

type runCmd struct{}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "Execute a source file" }
func (*runCmd) Usage() string {
	return `run <file>:
  Compile and execute a script.
`
}
func (*runCmd) SetFlags(f *flag.FlagSet) {}

func (r *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "file not provided")
		return subcommands.ExitUsageError
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read file: %v\n", err)
		return subcommands.ExitFailure
	}

	bc, sink, ok := compile(string(data))
	if !ok {
		printDiagnostics(os.Stderr, sink)
		return subcommands.ExitFailure
	}

	m := vm.New()
	if err := m.Run(bc); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
