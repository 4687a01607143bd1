package main

import (
	"slate/ast"
	"slate/checker"
	"slate/compiler"
	"slate/diag"
	"slate/lexer"
	"slate/parser"
	"slate/resolver"
)

// frontend runs the lexer through the checker and returns the annotated
// statements, or reports why it couldn't. The caller is responsible for
// printing sink.Diagnostics and bailing out when ok is false.
func frontend(source string, sink *diag.Sink) (stmts []ast.Stmt, ok bool) {
	toks := lexer.New(source, sink).Scan()
	if sink.HasErrors() {
		return nil, false
	}
	stmts = parser.New(toks, source, sink).Parse()
	if sink.HasErrors() {
		return nil, false
	}
	resolver.New(source, sink).Resolve(stmts)
	if sink.HasErrors() {
		return nil, false
	}
	checker.New(source, sink).Check(stmts)
	return stmts, !sink.HasErrors()
}

// compile runs the full frontend plus codegen, stopping at the first
// stage that reports a diagnostic.
func compile(source string) (compiler.Bytecode, *diag.Sink, bool) {
	var sink diag.Sink
	stmts, ok := frontend(source, &sink)
	if !ok {
		return compiler.Bytecode{}, &sink, false
	}
	bc := compiler.New(source, &sink).Compile(stmts)
	return bc, &sink, !sink.HasErrors()
}
