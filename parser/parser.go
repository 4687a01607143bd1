// Package parser implements recursive-descent parsing for statements and
// declarations and precedence-climbing parsing for expressions, building
// the AST consumed by the resolver and checker passes.
package parser

import (
	"strings"

	"slate/ast"
	"slate/builtin"
	"slate/diag"
	"slate/token"
)

// parseAbort unwinds parsing back to Parse on the first diagnostic; the
// spec requires the parser to surface the error and abort rather than
// attempt recovery.
type parseAbort struct{}

// Parser consumes a token sequence with one-token lookahead.
type Parser struct {
	tokens []token.Token
	pos    int
	sink   *diag.Sink
	lines  []string
}

// New builds a Parser over tokens, reporting diagnostics into sink. source
// is kept only to quote the offending line in a diagnostic.
func New(tokens []token.Token, source string, sink *diag.Sink) *Parser {
	return &Parser{tokens: tokens, sink: sink, lines: strings.Split(source, "\n")}
}

func (p *Parser) peek() token.Token     { return p.tokens[p.pos] }
func (p *Parser) previous() token.Token { return p.tokens[p.pos-1] }
func (p *Parser) isFinished() bool      { return p.peek().TokenType == token.EOF }

func (p *Parser) checkType(tt token.TokenType) bool {
	return p.peek().TokenType == tt
}

func (p *Parser) advance() token.Token {
	if !p.isFinished() {
		p.pos++
	}
	return p.previous()
}

func (p *Parser) match(types ...token.TokenType) bool {
	for _, tt := range types {
		if p.checkType(tt) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) lineText(line int32) string {
	if int(line) >= 0 && int(line) < len(p.lines) {
		return p.lines[line]
	}
	return ""
}

func (p *Parser) errorAt(tok token.Token, kind diag.Kind, format string, args ...any) {
	p.sink.Add(diag.New(kind, tok.Line, tok.Column, p.lineText(tok.Line), format, args...))
	panic(parseAbort{})
}

func (p *Parser) consume(tt token.TokenType, message string) token.Token {
	if p.checkType(tt) {
		return p.advance()
	}
	kind := diag.UnexpectedToken
	if p.isFinished() {
		kind = diag.UnexpectedEnd
	}
	p.errorAt(p.peek(), kind, "%s", message)
	return token.Token{}
}

// Parse consumes every token and returns the top-level statement sequence.
// On the first syntax error the diagnostic is already in the sink and
// parsing stops, returning whatever statements were built so far; callers
// must check the sink before trusting the result.
func (p *Parser) Parse() (stmts []ast.Stmt) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(parseAbort); !ok {
				panic(r)
			}
		}
	}()

	for !p.isFinished() {
		stmts = append(stmts, p.declaration())
	}
	return stmts
}

func (p *Parser) declaration() ast.Stmt {
	if p.match(token.VAR) {
		return p.varDecl()
	}
	return p.statement()
}

func (p *Parser) varDecl() ast.Stmt {
	off := p.previous().Start
	name := p.consume(token.IDENTIFIER, "expected a variable name after 'var'")

	decl := &ast.VarDecl{Name: name, Off: off}
	if p.match(token.COLON) {
		decl.TypeExpr = p.typeExpr()
		decl.Annotated = true
		p.consume(token.ASSIGN, "expected '=' after type annotation")
	} else {
		p.consume(token.DECLARE_EQ, "expected ':=' or ': TYPE =' in variable declaration")
	}
	decl.Init = p.expression()
	p.consume(token.SEMICOLON, "expected ';' after variable declaration")
	return decl
}

func (p *Parser) statement() ast.Stmt {
	switch {
	case p.checkType(token.LCUR):
		open := p.advance()
		return p.blockFrom(open.Start)
	case p.match(token.IF):
		return p.ifStatement()
	case p.match(token.WHILE):
		return p.whileStatement()
	case p.match(token.FOR):
		return p.forStatement()
	case p.match(token.RETURN):
		return p.returnStatement()
	default:
		return p.simpleStatement()
	}
}

func (p *Parser) blockStmt() *ast.Block {
	open := p.consume(token.LCUR, "expected '{'")
	return p.blockFrom(open.Start)
}

func (p *Parser) blockFrom(off int) *ast.Block {
	var stmts []ast.Stmt
	for !p.checkType(token.RCUR) && !p.isFinished() {
		stmts = append(stmts, p.declaration())
	}
	if !p.checkType(token.RCUR) {
		p.errorAt(p.peek(), diag.UnterminatedBlock, "unterminated block")
	}
	p.advance()
	return &ast.Block{Statements: stmts, Off: off}
}

func (p *Parser) ifStatement() ast.Stmt {
	off := p.previous().Start
	cond := p.expression()
	then := p.blockStmt()
	var elseBlock *ast.Block
	if p.match(token.ELSE) {
		elseBlock = p.blockStmt()
	}
	return &ast.If{Condition: cond, Then: then, Else: elseBlock, Off: off}
}

func (p *Parser) whileStatement() ast.Stmt {
	off := p.previous().Start
	cond := p.expression()
	body := p.blockStmt()
	return &ast.While{Condition: cond, Body: body, Off: off}
}

// forStatement parses `for ( init ; cond ; post ) BLOCK`. The spec leaves
// the concrete for-loop syntax unspecified beyond "same block semantics as
// while"; this C-style clause form is the design decision recorded in
// DESIGN.md.
func (p *Parser) forStatement() ast.Stmt {
	off := p.previous().Start
	p.consume(token.LPA, "expected '(' after 'for'")

	var init ast.Stmt
	if p.match(token.VAR) {
		init = p.varDecl()
	} else if !p.checkType(token.SEMICOLON) {
		init = p.assignOrExprStmt(true)
	} else {
		p.consume(token.SEMICOLON, "expected ';' after empty for-init")
	}

	cond := p.expression()
	p.consume(token.SEMICOLON, "expected ';' after for condition")

	var post ast.Stmt
	if !p.checkType(token.RPA) {
		post = p.assignOrExprStmt(false)
	}
	p.consume(token.RPA, "expected ')' after for clauses")
	body := p.blockStmt()
	return &ast.For{Init: init, Condition: cond, Post: post, Body: body, Off: off}
}

func (p *Parser) returnStatement() ast.Stmt {
	off := p.previous().Start
	var value ast.Expression
	if !p.checkType(token.SEMICOLON) {
		value = p.expression()
	}
	p.consume(token.SEMICOLON, "expected ';' after return")
	return &ast.Return{Value: value, Off: off}
}

func (p *Parser) simpleStatement() ast.Stmt {
	return p.assignOrExprStmt(true)
}

// assignOrExprStmt parses an expression and, if followed by '=', turns it
// into a VarAssign or ArrayAssign depending on the expression's shape —
// this is how `EXPR[EXPR] = EXPR` array-element assignment is recognized
// without a dedicated grammar production. consumeSemi is false for a
// for-loop's post clause, which is terminated by ')' instead of ';'.
func (p *Parser) assignOrExprStmt(consumeSemi bool) ast.Stmt {
	expr := p.expression()
	off := expr.Offset()

	if p.match(token.ASSIGN) {
		value := p.expression()
		if consumeSemi {
			p.consume(token.SEMICOLON, "expected ';' after assignment")
		}
		switch target := expr.(type) {
		case *ast.Variable:
			return &ast.VarAssign{Name: target.Name, Value: value, Off: off}
		case *ast.Index:
			return &ast.ArrayAssign{Array: target.Array, Index: target.IndexExpr, Value: value, Off: off}
		default:
			p.errorAt(p.previous(), diag.UnexpectedToken, "invalid assignment target")
		}
	}

	if consumeSemi {
		p.consume(token.SEMICOLON, "expected ';' after expression statement")
	}
	return &ast.ExprStmt{Expression: expr, Off: off}
}

// Expression precedence (higher binds tighter): postfix call/index (20);
// multiplicative (12/13); additive (10/11); comparison `< <= > >=`, one
// level between additive and equality; equality (5/6); boolean `and`/`or`
// sharing one level (2/3). Associativity is left for every infix operator.

func (p *Parser) expression() ast.Expression { return p.or() }

// or parses the boolean level, where `and` and `or` share one precedence:
// `a or b and c` groups as `(a or b) and c`.
func (p *Parser) or() ast.Expression {
	expr := p.equality()
	for p.match(token.OR, token.AND) {
		op := p.previous()
		expr = &ast.Binary{Left: expr, Operator: op, Right: p.equality()}
	}
	return expr
}

func (p *Parser) equality() ast.Expression {
	expr := p.comparison()
	for p.match(token.EQUAL_EQUAL, token.NOT_EQUAL) {
		op := p.previous()
		expr = &ast.Binary{Left: expr, Operator: op, Right: p.comparison()}
	}
	return expr
}

func (p *Parser) comparison() ast.Expression {
	expr := p.term()
	for p.match(token.LESS, token.LESS_EQUAL, token.LARGER, token.LARGER_EQUAL) {
		op := p.previous()
		expr = &ast.Binary{Left: expr, Operator: op, Right: p.term()}
	}
	return expr
}

func (p *Parser) term() ast.Expression {
	expr := p.factor()
	for p.match(token.ADD, token.SUB) {
		op := p.previous()
		expr = &ast.Binary{Left: expr, Operator: op, Right: p.factor()}
	}
	return expr
}

func (p *Parser) factor() ast.Expression {
	expr := p.postfix()
	for p.match(token.MULT, token.DIV, token.MOD) {
		op := p.previous()
		expr = &ast.Binary{Left: expr, Operator: op, Right: p.postfix()}
	}
	return expr
}

func (p *Parser) postfix() ast.Expression {
	expr := p.primary()
	for {
		switch {
		case p.match(token.LPA):
			expr = p.finishCall(expr)
		case p.match(token.LBRACKET):
			off := p.previous().Start
			idx := p.expression()
			p.consume(token.RBRACKET, "expected ']' after index expression")
			expr = &ast.Index{Array: expr, IndexExpr: idx, Off: off}
		default:
			return expr
		}
	}
}

func (p *Parser) finishCall(callee ast.Expression) ast.Expression {
	off := callee.Offset()
	var args []ast.Expression
	if !p.checkType(token.RPA) {
		args = append(args, p.expression())
		for p.match(token.COMMA) {
			args = append(args, p.expression())
		}
	}
	p.consume(token.RPA, "expected ')' after call arguments")

	if v, ok := callee.(*ast.Variable); ok {
		if idx, isBuiltin := builtin.Names[v.Name.Lexeme]; isBuiltin {
			return &ast.BuiltinCall{Name: v.Name.Lexeme, Args: args, BuiltinIndex: idx, Off: off}
		}
	}
	return &ast.Call{Callee: callee, Args: args, Off: off}
}

func (p *Parser) primary() ast.Expression {
	switch {
	case p.match(token.INT):
		tok := p.previous()
		return &ast.IntLiteral{Value: tok.Literal.(int64), Off: tok.Start}
	case p.match(token.STRING):
		tok := p.previous()
		return &ast.StringLiteral{Value: tok.Literal.(string), Off: tok.Start}
	case p.match(token.TRUE):
		return &ast.BoolLiteral{Value: true, Off: p.previous().Start}
	case p.match(token.FALSE):
		return &ast.BoolLiteral{Value: false, Off: p.previous().Start}
	case p.match(token.LBRACKET):
		return p.arrayLiteral()
	case p.match(token.FUNC):
		return p.functionValue()
	case p.match(token.LPA):
		expr := p.expression()
		p.consume(token.RPA, "expected ')' after expression")
		return expr
	case p.match(token.IDENTIFIER):
		return &ast.Variable{Name: p.previous()}
	default:
		p.errorAt(p.peek(), diag.UnexpectedToken, "expected an expression")
		return nil
	}
}

func (p *Parser) arrayLiteral() ast.Expression {
	off := p.previous().Start
	var elems []ast.Expression
	if !p.checkType(token.RBRACKET) {
		elems = append(elems, p.expression())
		for p.match(token.COMMA) {
			elems = append(elems, p.expression())
		}
	}
	p.consume(token.RBRACKET, "expected ']' after array literal")
	return &ast.ArrayInit{Elements: elems, Off: off}
}

// functionValue parses `fn ( params ) -> TYPE BLOCK`. A first bare
// parameter literally named "self" (no type annotation) marks the
// function as self-referencing: the resolver binds `self` inside the body
// to the function's own value, giving anonymous function literals a way
// to recurse without a global name. See DESIGN.md.
func (p *Parser) functionValue() ast.Expression {
	off := p.previous().Start
	p.consume(token.LPA, "expected '(' after 'fn'")

	var params []ast.Param
	selfParam := false
	if !p.checkType(token.RPA) {
		if p.trySelfParam() {
			selfParam = true
		} else {
			params = append(params, p.parseParam())
		}
		for p.match(token.COMMA) {
			params = append(params, p.parseParam())
		}
	}
	p.consume(token.RPA, "expected ')' after parameters")
	p.consume(token.ARROW, "expected '->' after parameter list")
	retType := p.typeExpr()
	body := p.blockStmt()
	return &ast.FunctionValue{Params: params, ReturnTypeExpr: retType, Body: body, SelfParam: selfParam, Off: off}
}

func (p *Parser) trySelfParam() bool {
	if !p.checkType(token.IDENTIFIER) || p.peek().Lexeme != "self" {
		return false
	}
	saved := p.pos
	p.advance()
	if p.checkType(token.COLON) {
		p.pos = saved
		return false
	}
	return true
}

func (p *Parser) parseParam() ast.Param {
	name := p.consume(token.IDENTIFIER, "expected a parameter name")
	p.consume(token.COLON, "expected ':' after parameter name")
	return ast.Param{Name: name, TypeExpr: p.typeExpr()}
}

// typeExpr parses `[TYPE]` for arrays, `fn(TYPE,...) -> TYPE` for function
// types, and a bare identifier otherwise (resolved against the built-in
// name table by the checker).
func (p *Parser) typeExpr() ast.TypeExpr {
	switch {
	case p.match(token.LBRACKET):
		off := p.previous().Start
		elem := p.typeExpr()
		p.consume(token.RBRACKET, "expected ']' in array type")
		return &ast.ArrayTypeExpr{Elem: elem, Off: off}
	case p.match(token.FUNC):
		off := p.previous().Start
		p.consume(token.LPA, "expected '(' in function type")
		var params []ast.TypeExpr
		if !p.checkType(token.RPA) {
			params = append(params, p.typeExpr())
			for p.match(token.COMMA) {
				params = append(params, p.typeExpr())
			}
		}
		p.consume(token.RPA, "expected ')' in function type")
		p.consume(token.ARROW, "expected '->' in function type")
		return &ast.FuncTypeExpr{Params: params, Ret: p.typeExpr(), Off: off}
	case p.match(token.IDENTIFIER):
		return &ast.NamedTypeExpr{Name: p.previous()}
	default:
		p.errorAt(p.peek(), diag.UnexpectedToken, "expected a type")
		return nil
	}
}
