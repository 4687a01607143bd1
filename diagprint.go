package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"slate/diag"
)

// printDiagnostics renders every diagnostic in a Sink the way the ISA's
// error reporting is specified: "[E####]: message", then the offending
// source line and a caret under the column, colored the way
// sam-decook-lox's codecrafters/cmd prints Lox runtime/syntax errors.
func printDiagnostics(w io.Writer, sink *diag.Sink) {
	code := color.New(color.FgRed, color.Bold)
	caret := color.New(color.FgYellow)
	for _, d := range sink.Diagnostics {
		code.Fprintf(w, "[E%04d]: ", int(d.Kind))
		fmt.Fprintln(w, d.Message)
		if !d.HasPosition {
			continue
		}
		fmt.Fprintln(w, d.LineText)
		caret.Fprintln(w, carets(d.Column))
	}
}

func carets(column int) string {
	b := make([]byte, column+1)
	for i := range b {
		b[i] = ' '
	}
	b[column] = '^'
	return string(b)
}
