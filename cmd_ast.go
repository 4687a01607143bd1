package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"slate/diag"
)

// astCmd prints a file's parsed (and resolved/checked) AST as JSON,
// generalizing the teacher's -dumpAST REPL flag into its own subcommand.
type astCmd struct{}

func (*astCmd) Name() string     { return "ast" }
func (*astCmd) Synopsis() string { return "Print a file's AST as JSON" }
func (*astCmd) Usage() string {
	return `ast <file>:
  Parse (and type-check) a script and print its AST as JSON.
`
}
func (*astCmd) SetFlags(f *flag.FlagSet) {}

func (cmd *astCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	var sink diag.Sink
	stmts, ok := frontend(string(data), &sink)
	if !ok {
		printDiagnostics(os.Stderr, &sink)
		return subcommands.ExitFailure
	}

	out, err := printASTJSON(stmts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to render AST: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Println(out)
	return subcommands.ExitSuccess
}
