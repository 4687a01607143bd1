package compiler

import (
	"fmt"
	"testing"

	"slate/checker"
	"slate/diag"
	"slate/lexer"
	"slate/parser"
	"slate/resolver"
)

func compileSource(t *testing.T, source string) (Bytecode, *diag.Sink) {
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
	checker.New(source, &sink).Check(stmts)
	if sink.HasErrors() {
		t.Fatalf("unexpected check diagnostics: %v", sink.Diagnostics)
	}
	bc := New(source, &sink).Compile(stmts)
	if sink.HasErrors() {
		t.Fatalf("unexpected compile diagnostics: %v", sink.Diagnostics)
	}
	return bc, &sink
}

func countOp(instructions []byte, op Opcode) int {
	n := 0
	ip := 0
	for ip < len(instructions) {
		got := Opcode(instructions[ip])
		if got == op {
			n++
		}
		if _, ok := operandWidths[got]; ok {
			ip += 2
		} else {
			ip++
		}
	}
	return n
}

// returnOperands collects the hasValue operand of every RETURN emitted, in
// instruction order. Every function body ends with a trailing implicit
// RETURN 0 safety net (see compileFunctionBody), so an explicit `return
// expr;` shows up as a 1 earlier in this list, not necessarily last.
func returnOperands(instructions []byte) []byte {
	var ops []byte
	ip := 0
	for ip < len(instructions) {
		op := Opcode(instructions[ip])
		if op == OpReturn {
			ops = append(ops, instructions[ip+1])
		}
		if _, ok := operandWidths[op]; ok {
			ip += 2
		} else {
			ip++
		}
	}
	return ops
}

func TestCompileVarDeclEmitsStackAllocAndSet(t *testing.T) {
	bc, _ := compileSource(t, "var x := 1;")
	fn := bc.Functions[0]
	if Opcode(fn.Instructions[0]) != OpStackAlloc {
		t.Fatalf("expected function 0 to start with STACK_ALLOC, got %s", Opcode(fn.Instructions[0]))
	}
	if fn.Instructions[1] != 1 {
		t.Errorf("expected one local slot allocated, got %d", fn.Instructions[1])
	}
	if countOp(fn.Instructions, OpVarSet) != 1 {
		t.Errorf("expected exactly one VAR_SET")
	}
}

func TestCompileExprStmtDropsNonVoidResult(t *testing.T) {
	bc, _ := compileSource(t, "var x := 1; x + 1;")
	fn := bc.Functions[0]
	if countOp(fn.Instructions, OpPop) != 1 {
		t.Errorf("expected a POP to discard the bare expression statement's result")
	}
}

func TestCompilePrintStatementHasNoPop(t *testing.T) {
	bc, _ := compileSource(t, "print(1);")
	fn := bc.Functions[0]
	if countOp(fn.Instructions, OpPop) != 0 {
		t.Errorf("print returns void, expected no POP")
	}
}

func TestCompileBinaryPushesLeftThenRight(t *testing.T) {
	bc, _ := compileSource(t, "var x := 1 - 2;")
	fn := bc.Functions[0]
	// CONSTANT 0 (for 1), CONSTANT 1 (for 2), SUB - the two operands must
	// be distinct constant-pool entries pushed in source order.
	if len(bc.Constants) != 2 {
		t.Fatalf("expected two distinct constants, got %d", len(bc.Constants))
	}
	if bc.Constants[0].Int != 1 || bc.Constants[1].Int != 2 {
		t.Fatalf("expected constants in left-then-right order, got %v, %v", bc.Constants[0], bc.Constants[1])
	}
	if countOp(fn.Instructions, OpSub) != 1 {
		t.Errorf("expected a SUB opcode")
	}
}

func TestCompileNotEqualIsEqualThenNegate(t *testing.T) {
	bc, _ := compileSource(t, "var x := 1 != 2;")
	fn := bc.Functions[0]
	if countOp(fn.Instructions, OpEqual) != 1 {
		t.Errorf("expected EQUAL")
	}
	if countOp(fn.Instructions, OpNegate) != 1 {
		t.Errorf("expected NEGATE immediately after EQUAL")
	}
	for ip := 0; ip < len(fn.Instructions); {
		op := Opcode(fn.Instructions[ip])
		if op == OpEqual {
			if ip+1 >= len(fn.Instructions) || Opcode(fn.Instructions[ip+1]) != OpNegate {
				t.Errorf("expected NEGATE immediately after EQUAL")
			}
			break
		}
		if _, ok := operandWidths[op]; ok {
			ip += 2
		} else {
			ip++
		}
	}
}

func TestCompileIfWithoutElsePatchesBranchForward(t *testing.T) {
	bc, _ := compileSource(t, "var x := 1; if x == 1 { x = 2; }")
	fn := bc.Functions[0]
	if countOp(fn.Instructions, OpBranchNeq) != 1 {
		t.Fatalf("expected one BRANCH_NEQ")
	}
	if countOp(fn.Instructions, OpJump) != 0 {
		t.Errorf("an if with no else should not need a JUMP")
	}
}

func TestCompileIfElseEmitsJumpOverElseBranch(t *testing.T) {
	bc, _ := compileSource(t, "var x := 1; if x == 1 { x = 2; } else { x = 3; }")
	fn := bc.Functions[0]
	if countOp(fn.Instructions, OpBranchNeq) != 1 {
		t.Fatalf("expected one BRANCH_NEQ")
	}
	if countOp(fn.Instructions, OpJump) != 1 {
		t.Fatalf("expected one JUMP skipping the else branch")
	}
}

func TestCompileWhileJumpsBackToConditionStart(t *testing.T) {
	bc, _ := compileSource(t, "var x := 0; while x < 3 { x = x + 1; }")
	fn := bc.Functions[0]
	if countOp(fn.Instructions, OpJumpBack) != 1 {
		t.Fatalf("expected one JUMP_BACK")
	}
	if countOp(fn.Instructions, OpBranchNeq) != 1 {
		t.Fatalf("expected one BRANCH_NEQ guarding loop exit")
	}
}

func TestCompileArrayLiteralPushesElementsInReverse(t *testing.T) {
	bc, _ := compileSource(t, "var a := [1, 2, 3];")
	fn := bc.Functions[0]
	if countOp(fn.Instructions, OpArrayInit) != 1 {
		t.Fatalf("expected one ARRAY_INIT")
	}
	// elements compile high-to-low, so the literal 3 (the last element)
	// is the first one to reach addConstant and lands at constant index 0.
	var firstConstantOperand byte
	for ip := 0; ip < len(fn.Instructions); {
		op := Opcode(fn.Instructions[ip])
		if op == OpConstant {
			firstConstantOperand = fn.Instructions[ip+1]
			break
		}
		if _, ok := operandWidths[op]; ok {
			ip += 2
		} else {
			ip++
		}
	}
	if bc.Constants[firstConstantOperand].Int != 3 {
		t.Errorf("expected the last array element's value (3) to be the first constant pushed, got %v", bc.Constants[firstConstantOperand])
	}
}

func TestCompileGlobalFunctionEmitsNoStorageOp(t *testing.T) {
	bc, _ := compileSource(t, `var f: fn(int) -> int = fn(n: int) -> int { return n; };`)
	fn := bc.Functions[0]
	if countOp(fn.Instructions, OpVarSet) != 0 {
		t.Errorf("a top-level global function declaration should emit no VAR_SET, got %d", countOp(fn.Instructions, OpVarSet))
	}
	if len(bc.Functions) != 2 {
		t.Fatalf("expected function 0 (top level) plus the compiled function body, got %d functions", len(bc.Functions))
	}
}

func TestCompileGlobalFunctionCallUsesConstantNotVarGet(t *testing.T) {
	bc, _ := compileSource(t, `var f: fn(int) -> int = fn(n: int) -> int { return n; }; f(1);`)
	fn := bc.Functions[0]
	if countOp(fn.Instructions, OpVarGet) != 0 {
		t.Errorf("calling a global function by name should never emit VAR_GET")
	}
	if countOp(fn.Instructions, OpCall) != 1 {
		t.Errorf("expected one CALL")
	}
}

func TestCompileSelfRecursionMaterializesSelfAtEntry(t *testing.T) {
	bc, _ := compileSource(t, `var f := fn(self, n: int) -> int {
		if n == 0 { return 1; }
		return n * self(n - 1);
	};`)
	body := bc.Functions[1]
	if Opcode(body.Instructions[0]) != OpStackAlloc {
		t.Fatalf("expected function body to start with STACK_ALLOC")
	}
	if Opcode(body.Instructions[2]) != OpConstant {
		t.Fatalf("expected self's materialization to begin with CONSTANT right after STACK_ALLOC, got %s", Opcode(body.Instructions[2]))
	}
	if Opcode(body.Instructions[4]) != OpVarSet {
		t.Fatalf("expected CONSTANT <self index> to be immediately followed by VAR_SET, got %s", Opcode(body.Instructions[4]))
	}
}

func TestCompileCallArgsThenCallee(t *testing.T) {
	bc, _ := compileSource(t, `var f: fn(int) -> int = fn(n: int) -> int { return n; }; f(1);`)
	fn := bc.Functions[0]
	var callOperand byte
	for ip := 0; ip < len(fn.Instructions); {
		op := Opcode(fn.Instructions[ip])
		if op == OpCall {
			callOperand = fn.Instructions[ip+1]
			break
		}
		if _, ok := operandWidths[op]; ok {
			ip += 2
		} else {
			ip++
		}
	}
	if callOperand != 1 {
		t.Errorf("expected CALL 1 (one argument), got CALL %d", callOperand)
	}
}

func TestCompileBuiltinCallEmitsCallBuiltinWithIndex(t *testing.T) {
	bc, _ := compileSource(t, `print(1);`)
	fn := bc.Functions[0]
	found := false
	for ip := 0; ip < len(fn.Instructions); {
		op := Opcode(fn.Instructions[ip])
		if op == OpCallBuiltin {
			found = true
			if fn.Instructions[ip+1] != 0 {
				t.Errorf("expected print's builtin index 0, got %d", fn.Instructions[ip+1])
			}
		}
		if _, ok := operandWidths[op]; ok {
			ip += 2
		} else {
			ip++
		}
	}
	if !found {
		t.Fatalf("expected a CALL_BUILTIN instruction")
	}
}

func TestCompileArrayIndexReadAndWrite(t *testing.T) {
	bc, _ := compileSource(t, `var a := [1]; var x := a[0]; a[0] = 9;`)
	fn := bc.Functions[0]
	if countOp(fn.Instructions, OpArrayGet) != 1 {
		t.Errorf("expected one ARRAY_GET")
	}
	if countOp(fn.Instructions, OpArraySet) != 1 {
		t.Errorf("expected one ARRAY_SET")
	}
}

func TestCompileLocalSlotsStartAfterParams(t *testing.T) {
	bc, _ := compileSource(t, `var f: fn(int) -> int = fn(n: int) -> int {
		var a := 1;
		var b := 2;
		return a + b;
	};`)
	body := bc.Functions[1]
	if Opcode(body.Instructions[0]) != OpStackAlloc {
		t.Fatalf("expected STACK_ALLOC")
	}
	if body.Instructions[1] != 2 {
		t.Errorf("expected 2 extra local slots beyond the single parameter, got %d", body.Instructions[1])
	}
}

func TestCompileForLoopDesugarsLikeWhile(t *testing.T) {
	bc, _ := compileSource(t, "for (var i := 0; i < 3; i = i + 1) { print(i); }")
	fn := bc.Functions[0]
	if countOp(fn.Instructions, OpJumpBack) != 1 {
		t.Errorf("expected one JUMP_BACK for the for-loop's back-edge")
	}
	if countOp(fn.Instructions, OpBranchNeq) != 1 {
		t.Errorf("expected one BRANCH_NEQ guarding loop exit")
	}
}

func TestCompileReturnFlagsWhetherAValueFollows(t *testing.T) {
	bc, _ := compileSource(t, `var f: fn() -> int = fn() -> int { return 1; };`)
	body := bc.Functions[1]
	ops := returnOperands(body.Instructions)
	if len(ops) == 0 || ops[0] != 1 {
		t.Errorf("expected the explicit return to compile as RETURN 1, got %v", ops)
	}

	bc2, _ := compileSource(t, `var g: fn() -> void = fn() -> void { return; };`)
	body2 := bc2.Functions[1]
	ops2 := returnOperands(body2.Instructions)
	if len(ops2) == 0 || ops2[0] != 0 {
		t.Errorf("expected the explicit bare return to compile as RETURN 0, got %v", ops2)
	}
}

func TestCompileFunctionBodyEndsWithImplicitReturn(t *testing.T) {
	bc, _ := compileSource(t, `var f: fn() -> void = fn() -> void { print(1); };`)
	body := bc.Functions[1]
	if Opcode(body.Instructions[len(body.Instructions)-2]) != OpReturn {
		t.Fatalf("expected a trailing implicit RETURN so a void function with no explicit return still terminates its frame")
	}
}

func TestCompileConstantOverflowReportsDiagnostic(t *testing.T) {
	source := ""
	for i := 0; i < 260; i++ {
		source += fmt.Sprintf("var y%d := %d;\n", i, i)
	}
	_, sink := compileSourceAllowErrors(t, source)
	found := false
	for _, d := range sink.Diagnostics {
		if d.Kind == diag.ConstantOverflow {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a ConstantOverflow diagnostic once the constant pool exceeds 255 entries")
	}
}

func compileSourceAllowErrors(t *testing.T, source string) (Bytecode, *diag.Sink) {
	t.Helper()
	var sink diag.Sink
	toks := lexer.New(source, &sink).Scan()
	stmts := parser.New(toks, source, &sink).Parse()
	resolver.New(source, &sink).Resolve(stmts)
	checker.New(source, &sink).Check(stmts)
	bc := New(source, &sink).Compile(stmts)
	return bc, &sink
}
