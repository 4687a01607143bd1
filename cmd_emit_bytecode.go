package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"slate/compiler"
)

// emitBytecodeCmd dumps a compiled program's disassembly, generalizing the
// teacher's emitBytecodeCmd (which wrote a .nic hex file plus a disassembly
// text file) to a single stdout disassembly via compiler.Disassemble.
type emitBytecodeCmd struct{}

func (*emitBytecodeCmd) Name() string     { return "emit" }
func (*emitBytecodeCmd) Synopsis() string { return "Compile a file and print its bytecode disassembly" }
func (*emitBytecodeCmd) Usage() string {
	return `emit <file>:
  Compile a script and print a disassembly of its bytecode.
`
}
func (*emitBytecodeCmd) SetFlags(f *flag.FlagSet) {}

func (cmd *emitBytecodeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	fmt.Print(compiler.Disassemble(bc))
	return subcommands.ExitSuccess
}
