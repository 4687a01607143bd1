package main

import (
	"encoding/json"

	"slate/ast"
)

// astPrinter walks the tree the same way the teacher's astPrinter does —
// one Visit method per node, each returning a map[string]any keyed by
// node kind — generalized to this language's statement and expression
// set (functions, arrays, builtins) instead of Lox's.
type astPrinter struct{}

func (p astPrinter) VisitBlock(s *ast.Block) any {
	stmts := make([]any, len(s.Statements))
	for i, st := range s.Statements {
		stmts[i] = st.Accept(p)
	}
	return map[string]any{"node": "Block", "statements": stmts}
}

func (p astPrinter) VisitVarDecl(s *ast.VarDecl) any {
	m := map[string]any{"node": "VarDecl", "name": s.Name.Lexeme, "annotated": s.Annotated}
	if s.Init != nil {
		m["init"] = s.Init.Accept(p)
	}
	return m
}

func (p astPrinter) VisitVarAssign(s *ast.VarAssign) any {
	return map[string]any{"node": "VarAssign", "name": s.Name.Lexeme, "value": s.Value.Accept(p)}
}

func (p astPrinter) VisitArrayAssign(s *ast.ArrayAssign) any {
	return map[string]any{
		"node":  "ArrayAssign",
		"array": s.Array.Accept(p),
		"index": s.Index.Accept(p),
		"value": s.Value.Accept(p),
	}
}

func (p astPrinter) VisitWhile(s *ast.While) any {
	return map[string]any{"node": "While", "condition": s.Condition.Accept(p), "body": s.Body.Accept(p)}
}

func (p astPrinter) VisitFor(s *ast.For) any {
	m := map[string]any{"node": "For", "condition": s.Condition.Accept(p), "body": s.Body.Accept(p)}
	if s.Init != nil {
		m["init"] = s.Init.Accept(p)
	}
	if s.Post != nil {
		m["post"] = s.Post.Accept(p)
	}
	return m
}

func (p astPrinter) VisitIf(s *ast.If) any {
	m := map[string]any{"node": "If", "condition": s.Condition.Accept(p), "then": s.Then.Accept(p)}
	if s.Else != nil {
		m["else"] = s.Else.Accept(p)
	}
	return m
}

func (p astPrinter) VisitReturn(s *ast.Return) any {
	m := map[string]any{"node": "Return"}
	if s.Value != nil {
		m["value"] = s.Value.Accept(p)
	}
	return m
}

func (p astPrinter) VisitExprStmt(s *ast.ExprStmt) any {
	return map[string]any{"node": "ExprStmt", "expression": s.Expression.Accept(p)}
}

func (p astPrinter) VisitIntLiteral(e *ast.IntLiteral) any {
	return map[string]any{"node": "IntLiteral", "value": e.Value}
}

func (p astPrinter) VisitBoolLiteral(e *ast.BoolLiteral) any {
	return map[string]any{"node": "BoolLiteral", "value": e.Value}
}

func (p astPrinter) VisitStringLiteral(e *ast.StringLiteral) any {
	return map[string]any{"node": "StringLiteral", "value": e.Value}
}

func (p astPrinter) VisitVariable(e *ast.Variable) any {
	return map[string]any{"node": "Variable", "name": e.Name.Lexeme}
}

func (p astPrinter) VisitBinary(e *ast.Binary) any {
	return map[string]any{
		"node":     "Binary",
		"operator": string(e.Operator.TokenType),
		"left":     e.Left.Accept(p),
		"right":    e.Right.Accept(p),
	}
}

func (p astPrinter) VisitCall(e *ast.Call) any {
	args := make([]any, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.Accept(p)
	}
	return map[string]any{"node": "Call", "callee": e.Callee.Accept(p), "args": args}
}

func (p astPrinter) VisitIndex(e *ast.Index) any {
	return map[string]any{"node": "Index", "array": e.Array.Accept(p), "index": e.IndexExpr.Accept(p)}
}

func (p astPrinter) VisitFunctionValue(e *ast.FunctionValue) any {
	params := make([]any, len(e.Params))
	for i, param := range e.Params {
		params[i] = param.Name.Lexeme
	}
	return map[string]any{
		"node":      "FunctionValue",
		"params":    params,
		"selfParam": e.SelfParam,
		"body":      e.Body.Accept(p),
	}
}

func (p astPrinter) VisitBuiltinCall(e *ast.BuiltinCall) any {
	args := make([]any, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.Accept(p)
	}
	return map[string]any{"node": "BuiltinCall", "name": e.Name, "args": args}
}

func (p astPrinter) VisitArrayInit(e *ast.ArrayInit) any {
	elems := make([]any, len(e.Elements))
	for i, el := range e.Elements {
		elems[i] = el.Accept(p)
	}
	return map[string]any{"node": "ArrayInit", "elements": elems}
}

// printASTJSON renders a program's AST as indented JSON, mirroring the
// teacher's PrintASTJSON.
func printASTJSON(stmts []ast.Stmt) (string, error) {
	p := astPrinter{}
	out := make([]any, len(stmts))
	for i, s := range stmts {
		out[i] = s.Accept(p)
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
