package checker

import (
	"testing"

	"slate/ast"
	"slate/diag"
	"slate/lexer"
	"slate/parser"
	"slate/resolver"
)

func checkSource(t *testing.T, source string) ([]ast.Stmt, *diag.Sink) {
	t.Helper()
	var sink diag.Sink
	toks := lexer.New(source, &sink).Scan()
	if sink.HasErrors() {
		t.Fatalf("unexpected lex diagnostics: %v", sink.Diagnostics)
	}
	stmts := parser.New(toks, source, &sink).Parse()
	if sink.HasErrors() {
		t.Fatalf("unexpected parse diagnostics: %v", sink.Diagnostics)
	}
	resolver.New(source, &sink).Resolve(stmts)
	if sink.HasErrors() {
		t.Fatalf("unexpected resolve diagnostics: %v", sink.Diagnostics)
	}
	New(source, &sink).Check(stmts)
	return stmts, &sink
}

func TestCheckWellTypedPrograms(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"int var inferred", "var x := 1;"},
		{"bool var annotated", "var x: bool = true;"},
		{"string var annotated", `var s: string = "hi";`},
		{"arithmetic", "var x: int = 1 + 2 * 3;"},
		{"comparison", "var x: bool = 1 < 2;"},
		{"array literal", "var a: [int] = [1, 2, 3];"},
		{"array index", "var a: [int] = [1, 2]; var x: int = a[0];"},
		{"array element assignment", "var a: [int] = [1, 2]; a[0] = 9;"},
		{"if else", "var x: int = 1; if x == 1 { x = 2; } else { x = 3; }"},
		{"while", "var x: int = 0; while x < 10 { x = x + 1; }"},
		{"for loop", "for (var i := 0; i < 3; i = i + 1) { print(i); }"},
		{"function call", "var f: fn(int) -> int = fn(n: int) -> int { return n; }; var x: int = f(1);"},
		{"self recursion", "var f := fn(self, n: int) -> int { if n == 0 { return 1; } return n * self(n - 1); };"},
		{"builtin print", "print(1);"},
		{"builtin to_string", `var s: string = to_string(1);`},
		{"builtin length on array", "var a: [int] = [1]; var n: int = length(a);"},
		{"builtin length on string", `var n: int = length("hi");`},
		{"builtin clone preserves type", "var a: [int] = [1]; var b: [int] = clone(a);"},
		{"builtin append", "var a: [int] = [1]; append(a, 2);"},
		{"builtin random", "var x: int = random(1, 10);"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, sink := checkSource(t, tt.source)
			if sink.HasErrors() {
				t.Fatalf("unexpected diagnostics: %v", sink.Diagnostics)
			}
		})
	}
}

func TestCheckMismatches(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"annotated mismatch", "var x: int = true;"},
		{"binary operand mismatch", `var x := 1 + "s";`},
		{"condition not bool", "if 1 { }"},
		{"while condition not bool", "while 1 { }"},
		{"index not int", `var a: [int] = [1]; var x: int = a["s"];`},
		{"index a non-array", "var x: int = 1; var y: int = x[0];"},
		{"assign wrong type into array", `var a: [int] = [1]; a[0] = "s";`},
		{"call argument mismatch", `var f: fn(int) -> int = fn(n: int) -> int { return n; }; f("s");`},
		{"call arity mismatch", "var f: fn(int) -> int = fn(n: int) -> int { return n; }; f();"},
		{"call a non-function", "var x := 1; x();"},
		{"return type mismatch", "var f: fn() -> int = fn() -> int { return true; };"},
		{"append element mismatch", `var a: [int] = [1]; append(a, "s");`},
		{"random wrong argument types", `var x := random("a", "b");`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, sink := checkSource(t, tt.source)
			if !sink.HasErrors() {
				t.Fatalf("expected a MismatchedTypes diagnostic")
			}
			if sink.Diagnostics[0].Kind != diag.MismatchedTypes {
				t.Errorf("got %s", sink.Diagnostics[0].Kind)
			}
		})
	}
}

func TestCheckArrayElementsMustShareAType(t *testing.T) {
	_, sink := checkSource(t, `var a := [1, "s"];`)
	if !sink.HasErrors() {
		t.Fatalf("expected a diagnostic for mixed array element types")
	}
}

func TestCheckAnnotatesResolvedTypes(t *testing.T) {
	stmts, sink := checkSource(t, "var x: int = 1 + 2;")
	if sink.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", sink.Diagnostics)
	}
	decl := stmts[0].(*ast.VarDecl)
	bin := decl.Init.(*ast.Binary)
	if bin.ResolvedType.Kind.String() != "int" {
		t.Errorf("want binary expression resolved to int, got %s", bin.ResolvedType)
	}
}
