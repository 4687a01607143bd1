// Package checker implements the static type checking pass: it walks the
// resolved AST, annotates every ResolvedType field, resolves type
// annotations against the types package, and reports mismatches.
package checker

import (
	"strings"

	"slate/ast"
	"slate/builtin"
	"slate/diag"
	"slate/token"
	"slate/types"
)

// Checker type-checks one program. returnStack tracks the expected return
// type of the innermost function body being checked, with function 0 (the
// top-level statement sequence) pushed as void.
type Checker struct {
	sink        *diag.Sink
	source      string
	lines       []string
	returnStack []types.Type
}

// New builds a Checker reporting diagnostics into sink. source is kept to
// compute line/column positions from the byte offsets carried on AST nodes.
func New(source string, sink *diag.Sink) *Checker {
	return &Checker{sink: sink, source: source, lines: strings.Split(source, "\n")}
}

// Check type-checks the top-level statement sequence.
func (c *Checker) Check(program []ast.Stmt) {
	c.returnStack = append(c.returnStack, types.VoidType)
	for _, stmt := range program {
		c.checkStmt(stmt)
	}
	c.returnStack = c.returnStack[:len(c.returnStack)-1]
}

// position turns a byte offset into the source into a line/column pair and
// the text of the enclosing line, for diagnostic rendering.
func (c *Checker) position(offset int) (int32, int, string) {
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

func (c *Checker) errorAt(offset int, format string, args ...any) {
	line, col, text := c.position(offset)
	c.sink.Add(diag.New(diag.MismatchedTypes, line, col, text, format, args...))
}

// resolveTypeExpr turns parsed type syntax into a types.Type, reporting an
// unknown named type as a MismatchedTypes diagnostic: the diagnostic
// vocabulary has no separate "unknown type" kind, and an unresolvable type
// name is a type-checking failure by any other name.
func (c *Checker) resolveTypeExpr(te ast.TypeExpr) types.Type {
	switch t := te.(type) {
	case *ast.NamedTypeExpr:
		if bt, ok := types.Builtin(t.Name.Lexeme); ok {
			return bt
		}
		c.errorAt(t.Offset(), "unknown type name %q", t.Name.Lexeme)
		return types.VoidType
	case *ast.ArrayTypeExpr:
		return types.NewArray(c.resolveTypeExpr(t.Elem))
	case *ast.FuncTypeExpr:
		params := make([]types.Type, len(t.Params))
		for i, p := range t.Params {
			params[i] = c.resolveTypeExpr(p)
		}
		return types.NewFunction(params, c.resolveTypeExpr(t.Ret))
	default:
		return types.VoidType
	}
}

// bindingType is the type of a resolved name: a function global's type is
// the function literal's own resolved signature, not a separately tracked
// DeclaredType. A nil binding means name resolution already failed and a
// diagnostic is already in the sink; treat it as void to avoid cascading.
func (c *Checker) bindingType(decl *ast.SymbolDecl) types.Type {
	if decl == nil {
		return types.VoidType
	}
	if decl.FuncNode != nil {
		return decl.FuncNode.ResolvedType
	}
	return decl.DeclaredType
}

func (c *Checker) checkStmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.Block:
		c.checkBlockBody(s)
	case *ast.VarDecl:
		c.checkVarDecl(s)
	case *ast.VarAssign:
		c.checkVarAssign(s)
	case *ast.ArrayAssign:
		c.checkArrayAssign(s)
	case *ast.While:
		c.checkWhile(s)
	case *ast.For:
		c.checkFor(s)
	case *ast.If:
		c.checkIf(s)
	case *ast.Return:
		c.checkReturn(s)
	case *ast.ExprStmt:
		c.checkExpr(s.Expression)
	}
}

func (c *Checker) checkBlockBody(b *ast.Block) {
	for _, stmt := range b.Statements {
		c.checkStmt(stmt)
	}
}

func (c *Checker) checkVarDecl(s *ast.VarDecl) {
	var resultType types.Type
	if s.Annotated {
		declared := c.resolveTypeExpr(s.TypeExpr)
		initType := c.checkExpr(s.Init)
		if !declared.Equals(initType) {
			c.errorAt(s.Init.Offset(), "variable %q declared as %s but initialized with %s", s.Name.Lexeme, declared, initType)
		}
		resultType = declared
	} else {
		initType := c.checkExpr(s.Init)
		if initType.Kind == types.Void {
			c.errorAt(s.Init.Offset(), "cannot infer a variable type from a void expression")
		}
		resultType = initType
	}
	// A top-level function global's type lives on the FunctionValue node
	// itself (see bindingType); only a plain variable needs DeclaredType.
	if s.Decl != nil && s.Decl.FuncNode == nil {
		s.Decl.DeclaredType = resultType
	}
}

func (c *Checker) checkVarAssign(s *ast.VarAssign) {
	valType := c.checkExpr(s.Value)
	if s.Binding == nil {
		return
	}
	expected := c.bindingType(s.Binding)
	if !expected.Equals(valType) {
		c.errorAt(s.Offset(), "cannot assign %s to %q of type %s", valType, s.Name.Lexeme, expected)
	}
}

func (c *Checker) checkArrayAssign(s *ast.ArrayAssign) {
	arrType := c.checkExpr(s.Array)
	idxType := c.checkExpr(s.Index)
	valType := c.checkExpr(s.Value)
	if arrType.Kind != types.Array {
		c.errorAt(s.Array.Offset(), "cannot index-assign into a value of type %s", arrType)
		return
	}
	if idxType.Kind != types.Int {
		c.errorAt(s.Index.Offset(), "array index must be int, got %s", idxType)
	}
	if !arrType.Elem.Equals(valType) {
		c.errorAt(s.Value.Offset(), "cannot assign %s into an array of %s", valType, *arrType.Elem)
	}
}

func (c *Checker) checkWhile(s *ast.While) {
	condType := c.checkExpr(s.Condition)
	if condType.Kind != types.Bool {
		c.errorAt(s.Condition.Offset(), "while condition must be bool, got %s", condType)
	}
	c.checkBlockBody(s.Body)
}

func (c *Checker) checkFor(s *ast.For) {
	if s.Init != nil {
		c.checkStmt(s.Init)
	}
	condType := c.checkExpr(s.Condition)
	if condType.Kind != types.Bool {
		c.errorAt(s.Condition.Offset(), "for condition must be bool, got %s", condType)
	}
	if s.Post != nil {
		c.checkStmt(s.Post)
	}
	c.checkBlockBody(s.Body)
}

func (c *Checker) checkIf(s *ast.If) {
	condType := c.checkExpr(s.Condition)
	if condType.Kind != types.Bool {
		c.errorAt(s.Condition.Offset(), "if condition must be bool, got %s", condType)
	}
	c.checkBlockBody(s.Then)
	if s.Else != nil {
		c.checkBlockBody(s.Else)
	}
}

func (c *Checker) checkReturn(s *ast.Return) {
	valType := types.VoidType
	if s.Value != nil {
		valType = c.checkExpr(s.Value)
	}
	expected := c.returnStack[len(c.returnStack)-1]
	if !valType.Equals(expected) {
		c.errorAt(s.Offset(), "return type mismatch: expected %s, got %s", expected, valType)
	}
}

func (c *Checker) checkExpr(expr ast.Expression) types.Type {
	switch e := expr.(type) {
	case *ast.IntLiteral:
		return types.IntType
	case *ast.BoolLiteral:
		return types.BoolType
	case *ast.StringLiteral:
		return types.StringType
	case *ast.Variable:
		e.ResolvedType = c.bindingType(e.Binding)
		return e.ResolvedType
	case *ast.Binary:
		return c.checkBinary(e)
	case *ast.Call:
		return c.checkCall(e)
	case *ast.Index:
		return c.checkIndex(e)
	case *ast.FunctionValue:
		return c.checkFunctionValue(e)
	case *ast.BuiltinCall:
		return c.checkBuiltinCall(e)
	case *ast.ArrayInit:
		return c.checkArrayInit(e)
	default:
		return types.VoidType
	}
}

func (c *Checker) checkBinary(b *ast.Binary) types.Type {
	lt := c.checkExpr(b.Left)
	rt := c.checkExpr(b.Right)

	var result types.Type
	switch b.Operator.TokenType {
	case token.ADD, token.SUB, token.MULT, token.DIV, token.MOD:
		if !lt.Equals(rt) {
			c.errorAt(b.Offset(), "mismatched operand types for %q: %s vs %s", b.Operator.Lexeme, lt, rt)
		}
		result = lt
	case token.LESS, token.LESS_EQUAL, token.LARGER, token.LARGER_EQUAL, token.EQUAL_EQUAL, token.NOT_EQUAL:
		if !lt.Equals(rt) {
			c.errorAt(b.Offset(), "mismatched operand types for %q: %s vs %s", b.Operator.Lexeme, lt, rt)
		}
		result = types.BoolType
	case token.AND, token.OR:
		if lt.Kind != types.Bool || rt.Kind != types.Bool {
			c.errorAt(b.Offset(), "operands of %q must be bool", b.Operator.Lexeme)
		}
		result = types.BoolType
	default:
		result = types.VoidType
	}
	b.ResolvedType = result
	return result
}

func (c *Checker) checkCall(call *ast.Call) types.Type {
	calleeType := c.checkExpr(call.Callee)
	argTypes := make([]types.Type, len(call.Args))
	for i, a := range call.Args {
		argTypes[i] = c.checkExpr(a)
	}

	if calleeType.Kind != types.Function {
		c.errorAt(call.Offset(), "cannot call a value of type %s", calleeType)
		call.ResolvedType = types.VoidType
		return call.ResolvedType
	}

	if len(argTypes) != len(calleeType.Params) {
		c.errorAt(call.Offset(), "expected %d arguments, got %d", len(calleeType.Params), len(argTypes))
	} else {
		for i, pt := range calleeType.Params {
			if !pt.Equals(argTypes[i]) {
				c.errorAt(call.Args[i].Offset(), "argument %d: expected %s, got %s", i, pt, argTypes[i])
			}
		}
	}
	call.ResolvedType = *calleeType.Ret
	return call.ResolvedType
}

func (c *Checker) checkIndex(idx *ast.Index) types.Type {
	arrType := c.checkExpr(idx.Array)
	idxType := c.checkExpr(idx.IndexExpr)

	if arrType.Kind != types.Array {
		c.errorAt(idx.Offset(), "cannot index a value of type %s", arrType)
		idx.ResolvedType = types.VoidType
		return idx.ResolvedType
	}
	if idxType.Kind != types.Int {
		c.errorAt(idx.IndexExpr.Offset(), "array index must be int, got %s", idxType)
	}
	idx.ResolvedType = *arrType.Elem
	return idx.ResolvedType
}

// checkFunctionValue computes the function's own signature before checking
// its body, so a direct self-reference (global name or `self` parameter)
// sees a fully formed type.
func (c *Checker) checkFunctionValue(fn *ast.FunctionValue) types.Type {
	paramTypes := make([]types.Type, len(fn.Params))
	for i := range fn.Params {
		p := &fn.Params[i]
		pt := c.resolveTypeExpr(p.TypeExpr)
		if p.Decl != nil {
			p.Decl.DeclaredType = pt
		}
		paramTypes[i] = pt
	}
	retType := c.resolveTypeExpr(fn.ReturnTypeExpr)
	fnType := types.NewFunction(paramTypes, retType)
	fn.ResolvedType = fnType
	if fn.SelfDecl != nil {
		fn.SelfDecl.DeclaredType = fnType
	}

	c.returnStack = append(c.returnStack, retType)
	c.checkBlockBody(fn.Body)
	c.returnStack = c.returnStack[:len(c.returnStack)-1]

	return fnType
}

// checkBuiltinCall applies the fixed signature of each of the six builtins.
// clone is type-directed: its result type is whatever type its single
// argument already has, since cloning preserves shape.
func (c *Checker) checkBuiltinCall(call *ast.BuiltinCall) types.Type {
	argTypes := make([]types.Type, len(call.Args))
	for i, a := range call.Args {
		argTypes[i] = c.checkExpr(a)
	}

	var result types.Type
	switch call.BuiltinIndex {
	case builtin.Print:
		if len(argTypes) != 1 {
			c.errorAt(call.Offset(), "print expects 1 argument, got %d", len(argTypes))
		}
		result = types.VoidType
	case builtin.ToString:
		if len(argTypes) != 1 {
			c.errorAt(call.Offset(), "to_string expects 1 argument, got %d", len(argTypes))
		}
		result = types.StringType
	case builtin.Length:
		if len(argTypes) != 1 || (argTypes[0].Kind != types.Array && argTypes[0].Kind != types.String) {
			c.errorAt(call.Offset(), "length expects an array or string argument")
		}
		result = types.IntType
	case builtin.Clone:
		if len(argTypes) != 1 {
			c.errorAt(call.Offset(), "clone expects 1 argument, got %d", len(argTypes))
			result = types.VoidType
		} else {
			result = argTypes[0]
		}
	case builtin.Append:
		if len(argTypes) != 2 || argTypes[0].Kind != types.Array {
			c.errorAt(call.Offset(), "append expects (array, element)")
		} else if !argTypes[0].Elem.Equals(argTypes[1]) {
			c.errorAt(call.Offset(), "cannot append a %s to an array of %s", argTypes[1], *argTypes[0].Elem)
		}
		result = types.VoidType
	case builtin.Random:
		if len(argTypes) != 2 || argTypes[0].Kind != types.Int || argTypes[1].Kind != types.Int {
			c.errorAt(call.Offset(), "random expects (int, int)")
		}
		result = types.IntType
	default:
		result = types.VoidType
	}
	call.ResolvedType = result
	return result
}

// checkArrayInit infers an empty array literal's element type as void: the
// spec leaves this Open Question unresolved, and void can never unify with
// a real element type, so `[]` only type-checks where an array of void is
// accepted (e.g. an inferred `var a := [];`); an annotated declaration such
// as `var a: [int] = [];` is rejected like any other mismatch. See DESIGN.md.
func (c *Checker) checkArrayInit(lit *ast.ArrayInit) types.Type {
	if len(lit.Elements) == 0 {
		lit.ResolvedType = types.NewArray(types.VoidType)
		return lit.ResolvedType
	}

	first := c.checkExpr(lit.Elements[0])
	for _, el := range lit.Elements[1:] {
		t := c.checkExpr(el)
		if !t.Equals(first) {
			c.errorAt(el.Offset(), "array elements must share a type: expected %s, got %s", first, t)
		}
	}
	lit.ResolvedType = types.NewArray(first)
	return lit.ResolvedType
}
