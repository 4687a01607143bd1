package compiler

import (
	"strings"

	"slate/ast"
	"slate/diag"
	"slate/token"
	"slate/types"
	"slate/value"
)

// frame tracks one function's emission state: its instruction buffer and a
// monotonic local-slot counter. Parameters occupy the first paramCount
// slots (already present on the eval stack at call time, per the caller's
// pushed arguments); every later local (a `self` binding or a `var`
// declaration) draws from slots beyond paramCount, which is exactly the
// count STACK_ALLOC reserves.
type frame struct {
	funcIndex    int
	instructions []byte
	nextSlot     int
	paramCount   int
}

// Compiler emits bytecode for a type-checked, resolved program. One
// Compiler compiles exactly one program.
type Compiler struct {
	sink      *diag.Sink
	source    string
	lines     []string
	functions []Function
	constants []value.Value
	frames    []*frame
}

// New builds a Compiler reporting diagnostics into sink.
func New(source string, sink *diag.Sink) *Compiler {
	return &Compiler{sink: sink, source: source, lines: strings.Split(source, "\n")}
}

// Compile emits function 0 (the top-level statement sequence) plus every
// function value reachable from it, returning the complete Bytecode.
func (c *Compiler) Compile(program []ast.Stmt) Bytecode {
	c.functions = append(c.functions, Function{})
	c.pushFrame(0, 0)

	allocOffset := c.emitByte(OpStackAlloc, 0)
	for _, stmt := range program {
		c.compileStmt(stmt)
	}
	// Every function ends with an implicit RETURN 0, a terminator for
	// void functions (and the top-level script) with no explicit return
	// statement; an earlier explicit return already pops the frame
	// before control ever reaches this trailing instruction.
	c.emitByte(OpReturn, 0)
	c.patchAlloc(allocOffset)
	c.popFrame()

	return Bytecode{Functions: c.functions, Constants: c.constants}
}

func (c *Compiler) current() *frame { return c.frames[len(c.frames)-1] }

func (c *Compiler) pushFrame(funcIndex, paramCount int) {
	c.frames = append(c.frames, &frame{funcIndex: funcIndex, paramCount: paramCount})
}

func (c *Compiler) popFrame() {
	f := c.current()
	c.functions[f.funcIndex] = Function{Instructions: f.instructions}
	c.frames = c.frames[:len(c.frames)-1]
}

func (c *Compiler) patchAlloc(allocOperandOffset int) {
	f := c.current()
	extra := f.nextSlot - f.paramCount
	f.instructions[allocOperandOffset] = byte(extra)
}

// emitByte appends a two-byte instruction (opcode + one immediate) and
// returns the offset of the operand byte, for later patching.
func (c *Compiler) emitByte(op Opcode, operand byte) int {
	f := c.current()
	f.instructions = append(f.instructions, byte(op), operand)
	return len(f.instructions) - 1
}

// emit0 appends a one-byte instruction carrying no immediate.
func (c *Compiler) emit0(op Opcode) {
	f := c.current()
	f.instructions = append(f.instructions, byte(op))
}

func (c *Compiler) patchJumpForward(operandOffset int) {
	f := c.current()
	distance := len(f.instructions) - (operandOffset + 1)
	f.instructions[operandOffset] = byte(distance)
}

// position turns a byte offset into the source into a line/column pair
// and the enclosing line's text, for diagnostic rendering.
func (c *Compiler) position(offset int) (int32, int, string) {
	line := 0
	lineStart := 0
	for i := 0; i < offset && i < len(c.source); i++ {
		if c.source[i] == '\n' {
			line++
			lineStart = i + 1
		}
	}
	var text string
	if line < len(c.lines) {
		text = c.lines[line]
	}
	return int32(line), offset - lineStart, text
}

func (c *Compiler) addConstant(v value.Value, offset int) int {
	if len(c.constants) >= 255 {
		line, col, text := c.position(offset)
		c.sink.Add(diag.New(diag.ConstantOverflow, line, col, text, "constant pool exceeded 255 entries"))
		return 0
	}
	c.constants = append(c.constants, v)
	return len(c.constants) - 1
}

func (c *Compiler) declareLocal(decl *ast.SymbolDecl) int {
	f := c.current()
	if f.nextSlot >= 255 {
		c.sink.Add(diag.Bare(diag.LocalOverflow, "function %q exceeded 255 local slots", decl.Name))
		return f.nextSlot
	}
	slot := f.nextSlot
	f.nextSlot++
	decl.Slot = slot
	return slot
}

func (c *Compiler) compileBlock(b *ast.Block) {
	for _, stmt := range b.Statements {
		c.compileStmt(stmt)
	}
}

func (c *Compiler) compileStmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.Block:
		c.compileBlock(s)
	case *ast.VarDecl:
		c.compileVarDecl(s)
	case *ast.VarAssign:
		c.compileExpr(s.Value)
		if s.Binding != nil {
			c.emitByte(OpVarSet, byte(s.Binding.Slot))
		}
	case *ast.ArrayAssign:
		c.compileExpr(s.Value)
		c.compileExpr(s.Index)
		c.compileExpr(s.Array)
		c.emit0(OpArraySet)
	case *ast.While:
		c.compileWhile(s)
	case *ast.For:
		c.compileFor(s)
	case *ast.If:
		c.compileIf(s)
	case *ast.Return:
		c.compileReturn(s)
	case *ast.ExprStmt:
		c.compileExpr(s.Expression)
		if exprResolvedType(s.Expression).Kind != types.Void {
			c.emit0(OpPop)
		}
	}
}

// compileVarDecl special-cases a top-level function global: it has no
// runtime storage of its own (every use short-circuits to a CONSTANT of
// the function's index, per compileVariable), so the declaration only
// needs to compile the function body and register its index.
func (c *Compiler) compileVarDecl(s *ast.VarDecl) {
	if s.Decl != nil && s.Decl.FuncNode != nil {
		c.compileFunctionBody(s.Decl.FuncNode)
		return
	}
	c.compileExpr(s.Init)
	if s.Decl == nil {
		return
	}
	slot := c.declareLocal(s.Decl)
	c.emitByte(OpVarSet, byte(slot))
}

func (c *Compiler) compileWhile(s *ast.While) {
	condStart := len(c.current().instructions)
	c.compileExpr(s.Condition)
	branchOffset := c.emitByte(OpBranchNeq, 0)
	c.compileBlock(s.Body)
	c.emitJumpBack(condStart)
	c.patchJumpForward(branchOffset)
}

func (c *Compiler) compileFor(s *ast.For) {
	if s.Init != nil {
		c.compileStmt(s.Init)
	}
	condStart := len(c.current().instructions)
	c.compileExpr(s.Condition)
	branchOffset := c.emitByte(OpBranchNeq, 0)
	c.compileBlock(s.Body)
	if s.Post != nil {
		c.compileStmt(s.Post)
	}
	c.emitJumpBack(condStart)
	c.patchJumpForward(branchOffset)
}

// emitJumpBack emits a JUMP_BACK whose distance is known immediately: the
// position right after this two-byte instruction, minus condStart.
func (c *Compiler) emitJumpBack(condStart int) {
	pos := len(c.current().instructions)
	distance := pos + 2 - condStart
	c.emitByte(OpJumpBack, byte(distance))
}

func (c *Compiler) compileIf(s *ast.If) {
	c.compileExpr(s.Condition)
	branchOffset := c.emitByte(OpBranchNeq, 0)
	c.compileBlock(s.Then)
	if s.Else != nil {
		jumpOffset := c.emitByte(OpJump, 0)
		c.patchJumpForward(branchOffset)
		c.compileBlock(s.Else)
		c.patchJumpForward(jumpOffset)
	} else {
		c.patchJumpForward(branchOffset)
	}
}

func (c *Compiler) compileReturn(s *ast.Return) {
	if s.Value != nil {
		c.compileExpr(s.Value)
		c.emitByte(OpReturn, 1)
		return
	}
	c.emitByte(OpReturn, 0)
}

func (c *Compiler) compileExpr(expr ast.Expression) {
	switch e := expr.(type) {
	case *ast.IntLiteral:
		k := c.addConstant(value.Int(e.Value), e.Offset())
		c.emitByte(OpConstant, byte(k))
	case *ast.BoolLiteral:
		k := c.addConstant(value.Bool(e.Value), e.Offset())
		c.emitByte(OpConstant, byte(k))
	case *ast.StringLiteral:
		k := c.addConstant(value.Object_(&value.Object{Kind: value.ObjString, Str: e.Value}), e.Offset())
		c.emitByte(OpConstant, byte(k))
	case *ast.Variable:
		c.compileVariable(e)
	case *ast.Binary:
		c.compileBinary(e)
	case *ast.Call:
		c.compileCall(e)
	case *ast.Index:
		c.compileExpr(e.IndexExpr)
		c.compileExpr(e.Array)
		c.emit0(OpArrayGet)
	case *ast.FunctionValue:
		c.compileFunctionBody(e)
		k := c.addConstant(value.Func(e.FuncIndex), e.Offset())
		c.emitByte(OpConstant, byte(k))
	case *ast.BuiltinCall:
		c.compileBuiltinCall(e)
	case *ast.ArrayInit:
		c.compileArrayInit(e)
	}
}

// compileVariable short-circuits a function-decl binding to a CONSTANT of
// its function-table index, never a VAR_GET: a function global has no
// runtime local slot (see compileVarDecl).
func (c *Compiler) compileVariable(e *ast.Variable) {
	if e.Binding == nil {
		return
	}
	if e.Binding.FuncNode != nil {
		k := c.addConstant(value.Func(e.Binding.FuncNode.FuncIndex), e.Offset())
		c.emitByte(OpConstant, byte(k))
		return
	}
	c.emitByte(OpVarGet, byte(e.Binding.Slot))
}

func (c *Compiler) compileBinary(e *ast.Binary) {
	c.compileExpr(e.Left)
	c.compileExpr(e.Right)
	switch e.Operator.TokenType {
	case token.ADD:
		c.emit0(OpAdd)
	case token.SUB:
		c.emit0(OpSub)
	case token.MULT:
		c.emit0(OpMul)
	case token.DIV:
		c.emit0(OpDiv)
	case token.MOD:
		c.emit0(OpMod)
	case token.EQUAL_EQUAL:
		c.emit0(OpEqual)
	case token.NOT_EQUAL:
		c.emit0(OpEqual)
		c.emit0(OpNegate)
	case token.LESS:
		c.emit0(OpLess)
	case token.LESS_EQUAL:
		c.emit0(OpLessEq)
	case token.LARGER:
		c.emit0(OpGreater)
	case token.LARGER_EQUAL:
		c.emit0(OpGreaterEq)
	case token.AND:
		c.emit0(OpAnd)
	case token.OR:
		c.emit0(OpOr)
	}
}

func (c *Compiler) compileCall(e *ast.Call) {
	for _, a := range e.Args {
		c.compileExpr(a)
	}
	c.compileExpr(e.Callee)
	c.emitByte(OpCall, byte(len(e.Args)))
}

func (c *Compiler) compileBuiltinCall(e *ast.BuiltinCall) {
	for _, a := range e.Args {
		c.compileExpr(a)
	}
	c.emitByte(OpCallBuiltin, byte(e.BuiltinIndex))
}

func (c *Compiler) compileArrayInit(e *ast.ArrayInit) {
	for i := len(e.Elements) - 1; i >= 0; i-- {
		c.compileExpr(e.Elements[i])
	}
	c.emitByte(OpArrayInit, byte(len(e.Elements)))
}

// compileFunctionBody compiles fn's body into a fresh function table
// entry, assigning fn.FuncIndex before the body is compiled so a direct
// self-reference (global name or `self` parameter) sees it already set.
func (c *Compiler) compileFunctionBody(fn *ast.FunctionValue) {
	index := len(c.functions)
	c.functions = append(c.functions, Function{})
	fn.FuncIndex = index
	c.pushFrame(index, len(fn.Params))

	allocOffset := c.emitByte(OpStackAlloc, 0)

	for i := range fn.Params {
		c.declareLocal(fn.Params[i].Decl)
	}
	if fn.SelfParam {
		selfSlot := c.declareLocal(fn.SelfDecl)
		k := c.addConstant(value.Func(index), fn.Offset())
		c.emitByte(OpConstant, byte(k))
		c.emitByte(OpVarSet, byte(selfSlot))
	}

	c.compileBlock(fn.Body)
	c.emitByte(OpReturn, 0)

	c.patchAlloc(allocOffset)
	c.popFrame()
}

// exprResolvedType recovers the static type the checker already annotated
// on expr, used only to decide whether an expression statement's result
// needs an OpPop.
func exprResolvedType(expr ast.Expression) types.Type {
	switch e := expr.(type) {
	case *ast.IntLiteral:
		return types.IntType
	case *ast.BoolLiteral:
		return types.BoolType
	case *ast.StringLiteral:
		return types.StringType
	case *ast.Variable:
		return e.ResolvedType
	case *ast.Binary:
		return e.ResolvedType
	case *ast.Call:
		return e.ResolvedType
	case *ast.Index:
		return e.ResolvedType
	case *ast.FunctionValue:
		return e.ResolvedType
	case *ast.BuiltinCall:
		return e.ResolvedType
	case *ast.ArrayInit:
		return e.ResolvedType
	default:
		return types.VoidType
	}
}
