// Package ast defines the abstract syntax tree produced by the parser and
// annotated in place by the resolver and checker passes.
//
// Nodes are pointers so later passes can annotate them (symbol bindings,
// resolved types, function-table indices) without rebuilding the tree —
// the teacher's value-receiver AST cannot carry that kind of mutable
// annotation, so nodes here are *struct rather than struct.
package ast

import (
	"slate/token"
	"slate/types"
)

// Expression is any AST node that evaluates to a value.
type Expression interface {
	Accept(v ExpressionVisitor) any
	Offset() int
}

// Stmt is any AST node executed for effect.
type Stmt interface {
	Accept(v StmtVisitor) any
	Offset() int
}

type ExpressionVisitor interface {
	VisitIntLiteral(e *IntLiteral) any
	VisitBoolLiteral(e *BoolLiteral) any
	VisitStringLiteral(e *StringLiteral) any
	VisitVariable(e *Variable) any
	VisitBinary(e *Binary) any
	VisitCall(e *Call) any
	VisitIndex(e *Index) any
	VisitFunctionValue(e *FunctionValue) any
	VisitBuiltinCall(e *BuiltinCall) any
	VisitArrayInit(e *ArrayInit) any
}

type StmtVisitor interface {
	VisitBlock(s *Block) any
	VisitVarDecl(s *VarDecl) any
	VisitVarAssign(s *VarAssign) any
	VisitArrayAssign(s *ArrayAssign) any
	VisitWhile(s *While) any
	VisitFor(s *For) any
	VisitIf(s *If) any
	VisitReturn(s *Return) any
	VisitExprStmt(s *ExprStmt) any
}

// SymbolDecl is a named binding shared (never copied) between its
// declaration site and every use site; a use-site node carries a pointer
// to the same SymbolDecl.
type SymbolDecl struct {
	Name         string
	DeclaredType types.Type
	FuncNode     *FunctionValue // non-nil when this binds a function value
	IsGlobal     bool

	// Filled by codegen with the function-local slot index. Unused for a
	// global function binding, whose uses compile to a CONSTANT of
	// FuncNode.FuncIndex instead.
	Slot int
}

// TypeExpr is the parsed syntax for a type annotation, resolved to a
// types.Type by the checker.
type TypeExpr interface {
	isTypeExpr()
	Offset() int
}

type NamedTypeExpr struct {
	Name token.Token
}

func (*NamedTypeExpr) isTypeExpr()    {}
func (t *NamedTypeExpr) Offset() int  { return t.Name.Start }

type ArrayTypeExpr struct {
	Elem TypeExpr
	Off  int
}

func (*ArrayTypeExpr) isTypeExpr()   {}
func (t *ArrayTypeExpr) Offset() int { return t.Off }

type FuncTypeExpr struct {
	Params []TypeExpr
	Ret    TypeExpr
	Off    int
}

func (*FuncTypeExpr) isTypeExpr()   {}
func (t *FuncTypeExpr) Offset() int { return t.Off }
