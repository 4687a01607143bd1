package ast

import (
	"slate/token"
	"slate/types"
)

// IntLiteral is a parsed base-10 integer constant.
type IntLiteral struct {
	Value int64
	Off   int
}

func (e *IntLiteral) Accept(v ExpressionVisitor) any { return v.VisitIntLiteral(e) }
func (e *IntLiteral) Offset() int                    { return e.Off }

// BoolLiteral is the `true`/`false` keyword.
type BoolLiteral struct {
	Value bool
	Off   int
}

func (e *BoolLiteral) Accept(v ExpressionVisitor) any { return v.VisitBoolLiteral(e) }
func (e *BoolLiteral) Offset() int                    { return e.Off }

// StringLiteral is a double-quoted string with no escape processing.
type StringLiteral struct {
	Value string
	Off   int
}

func (e *StringLiteral) Accept(v ExpressionVisitor) any { return v.VisitStringLiteral(e) }
func (e *StringLiteral) Offset() int                    { return e.Off }

// Variable is a read of a previously bound name. Binding is populated by
// the symbol resolution pass; ResolvedType is populated by the checker.
type Variable struct {
	Name         token.Token
	Binding      *SymbolDecl
	ResolvedType types.Type
}

func (e *Variable) Accept(v ExpressionVisitor) any { return v.VisitVariable(e) }
func (e *Variable) Offset() int                    { return e.Name.Start }

// Binary is a binary arithmetic/comparison/equality/boolean expression.
type Binary struct {
	Left         Expression
	Operator     token.Token
	Right        Expression
	ResolvedType types.Type
}

func (e *Binary) Accept(v ExpressionVisitor) any { return v.VisitBinary(e) }
func (e *Binary) Offset() int                    { return e.Left.Offset() }

// Call is postfix call syntax `callee(args...)`.
type Call struct {
	Callee       Expression
	Args         []Expression
	Off          int
	ResolvedType types.Type
}

func (e *Call) Accept(v ExpressionVisitor) any { return v.VisitCall(e) }
func (e *Call) Offset() int                    { return e.Off }

// Index is postfix index syntax `array[index]`.
type Index struct {
	Array        Expression
	IndexExpr    Expression
	Off          int
	ResolvedType types.Type
}

func (e *Index) Accept(v ExpressionVisitor) any { return v.VisitIndex(e) }
func (e *Index) Offset() int                    { return e.Off }

// Param is one parameter of a FunctionValue. Decl is filled by the
// resolver; its DeclaredType is filled by the checker.
type Param struct {
	Name     token.Token
	TypeExpr TypeExpr
	Decl     *SymbolDecl
}

// FunctionValue is an anonymous function literal: `fn(params) -> ret { body }`.
// FuncIndex and ResolvedType are filled in by later passes (symbol/type/codegen).
// SelfDecl is non-nil when SelfParam is set: the resolver pushes an
// implicit `self` binding so the body can recurse without a global name.
type FunctionValue struct {
	Params         []Param
	ReturnTypeExpr TypeExpr
	Body           *Block
	SelfParam      bool
	Off            int

	FuncIndex    int
	ResolvedType types.Type
	SelfDecl     *SymbolDecl
}

func (e *FunctionValue) Accept(v ExpressionVisitor) any { return v.VisitFunctionValue(e) }
func (e *FunctionValue) Offset() int                    { return e.Off }

// BuiltinCall is a call to one of the fixed built-in functions, recognized
// by the parser's name heuristic rather than by symbol resolution.
type BuiltinCall struct {
	Name         string
	Args         []Expression
	BuiltinIndex int
	Off          int
	ResolvedType types.Type
}

func (e *BuiltinCall) Accept(v ExpressionVisitor) any { return v.VisitBuiltinCall(e) }
func (e *BuiltinCall) Offset() int                    { return e.Off }

// ArrayInit is an array literal `[e1, e2, ...]`.
type ArrayInit struct {
	Elements     []Expression
	Off          int
	ResolvedType types.Type
}

func (e *ArrayInit) Accept(v ExpressionVisitor) any { return v.VisitArrayInit(e) }
func (e *ArrayInit) Offset() int                    { return e.Off }
