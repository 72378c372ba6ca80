package parser

import (
	"fmt"
	"strconv"

	"github.com/xirelogy/go-wasmrepl/internal/ast"
	"github.com/xirelogy/go-wasmrepl/internal/lexer"
	"github.com/xirelogy/go-wasmrepl/internal/token"
)

// Parser builds an ast.Program from the token stream. curToken is always
// the next unconsumed token.
type Parser struct {
	l         *lexer.Lexer
	curToken  token.Token
	peekToken token.Token
	errors    []string
}

func New(l *lexer.Lexer) *Parser {
	p := &Parser{
		l:      l,
		errors: []string{},
	}
	// Read two tokens, so curToken and peekToken are set
	p.nextToken()
	p.nextToken()
	return p
}

// Errors returns the accumulated syntax errors as "line:col: message".
func (p *Parser) Errors() []string {
	return p.errors
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

// ParseProgram parses one increment. Parsing stops at the first error.
func (p *Parser) ParseProgram() *ast.Program {
	prog := &ast.Program{}
	prog.NodeSpan.Start = p.curToken.Pos

	for p.curToken.Type != token.EOF && len(p.errors) == 0 {
		p.skipNewlines()
		if p.curToken.Type == token.EOF {
			break
		}
		switch {
		case p.curToken.Type == token.Class:
			if c := p.parseClass(); c != nil {
				prog.Classes = append(prog.Classes, c)
			}
		case p.curToken.Type == token.Def:
			if fn := p.parseFunc(""); fn != nil {
				prog.Funcs = append(prog.Funcs, fn)
			}
		case p.isVarDef():
			if v := p.parseVarDef(); v != nil {
				prog.Vars = append(prog.Vars, v)
			}
		default:
			if stmt := p.parseStatement(); stmt != nil {
				prog.Stmts = append(prog.Stmts, stmt)
			}
		}
	}
	prog.NodeSpan.End = p.curToken.Pos
	return prog
}

func (p *Parser) isVarDef() bool {
	return p.curToken.Type == token.Ident && p.peekToken.Type == token.Colon
}

func (p *Parser) parseVarDef() *ast.VarDef {
	def := &ast.VarDef{Name: p.curToken.Literal, NamePos: p.curToken.Pos}
	p.nextToken() // name
	p.nextToken() // ':'
	annot, ok := p.parseType()
	if !ok {
		return nil
	}
	def.Annot = annot
	if !p.expect(token.Assign) {
		return nil
	}
	lit := p.parseLiteral()
	if lit == nil {
		return nil
	}
	def.Value = lit
	if !p.expectEndOfLine() {
		return nil
	}
	return def
}

func (p *Parser) parseType() (ast.TypeAnnotation, bool) {
	annot := ast.TypeAnnotation{PosT: p.curToken.Pos}
	switch p.curToken.Type {
	case token.Ident:
		annot.Name = p.curToken.Literal
	case token.None:
		annot.Name = "None"
	default:
		p.errorf(p.curToken.Pos, "expected type, got %s", p.curToken.Type)
		return annot, false
	}
	p.nextToken()
	return annot, true
}

func (p *Parser) parseLiteral() ast.Literal {
	pos := p.curToken.Pos
	switch p.curToken.Type {
	case token.Number:
		return p.parseNumber(false, pos)
	case token.Minus:
		p.nextToken()
		if p.curToken.Type != token.Number {
			p.errorf(p.curToken.Pos, "expected literal, got %s", p.curToken.Type)
			return nil
		}
		return p.parseNumber(true, pos)
	case token.True:
		p.nextToken()
		return &ast.BoolLiteral{Value: true, PosT: pos}
	case token.False:
		p.nextToken()
		return &ast.BoolLiteral{Value: false, PosT: pos}
	case token.None:
		p.nextToken()
		return &ast.NoneLiteral{PosT: pos}
	default:
		p.errorf(pos, "expected literal, got %s", p.curToken.Type)
		return nil
	}
}

func (p *Parser) parseNumber(negative bool, pos token.Position) *ast.NumberLiteral {
	lit := p.curToken.Literal
	if negative {
		lit = "-" + lit
	}
	n, err := strconv.ParseInt(lit, 10, 32)
	if err != nil {
		p.errorf(pos, "integer literal %s out of range", lit)
		return nil
	}
	p.nextToken()
	return &ast.NumberLiteral{Value: int32(n), PosT: pos}
}

func (p *Parser) parseClass() *ast.ClassDef {
	def := &ast.ClassDef{ClassPos: p.curToken.Pos}
	p.nextToken() // 'class'
	if p.curToken.Type != token.Ident {
		p.errorf(p.curToken.Pos, "expected class name, got %s", p.curToken.Type)
		return nil
	}
	def.Name = p.curToken.Literal
	p.nextToken()
	if !p.expect(token.LParen) {
		return nil
	}
	if p.curToken.Type != token.Ident {
		p.errorf(p.curToken.Pos, "expected superclass name, got %s", p.curToken.Type)
		return nil
	}
	def.Super = p.curToken.Literal
	p.nextToken()
	if !p.expect(token.RParen) || !p.expectBlockStart() {
		return nil
	}
	for p.curToken.Type != token.Dedent && p.curToken.Type != token.EOF {
		switch {
		case p.curToken.Type == token.Pass:
			p.nextToken()
			if !p.expectEndOfLine() {
				return nil
			}
		case p.curToken.Type == token.Def:
			fn := p.parseFunc(def.Name)
			if fn == nil {
				return nil
			}
			def.Methods = append(def.Methods, fn)
		case p.isVarDef():
			v := p.parseVarDef()
			if v == nil {
				return nil
			}
			def.Fields = append(def.Fields, v)
		default:
			p.errorf(p.curToken.Pos, "unexpected %s in class body", p.curToken.Type)
			return nil
		}
	}
	p.expect(token.Dedent)
	return def
}

func (p *Parser) parseFunc(class string) *ast.FuncDef {
	fn := &ast.FuncDef{DefPos: p.curToken.Pos, Class: class}
	p.nextToken() // 'def'
	if p.curToken.Type != token.Ident {
		p.errorf(p.curToken.Pos, "expected function name, got %s", p.curToken.Type)
		return nil
	}
	fn.Name = p.curToken.Literal
	p.nextToken()
	if !p.expect(token.LParen) {
		return nil
	}
	for p.curToken.Type != token.RParen {
		if len(fn.Params) > 0 && !p.expect(token.Comma) {
			return nil
		}
		if p.curToken.Type != token.Ident {
			p.errorf(p.curToken.Pos, "expected parameter, got %s", p.curToken.Type)
			return nil
		}
		param := ast.Param{Name: p.curToken.Literal, Pos: p.curToken.Pos}
		p.nextToken()
		if !p.expect(token.Colon) {
			return nil
		}
		annot, ok := p.parseType()
		if !ok {
			return nil
		}
		param.Annot = annot
		fn.Params = append(fn.Params, param)
	}
	p.nextToken() // ')'
	if p.curToken.Type == token.Arrow {
		p.nextToken()
		annot, ok := p.parseType()
		if !ok {
			return nil
		}
		fn.Return = &annot
	}
	if !p.expectBlockStart() {
		return nil
	}
	for {
		if p.curToken.Type == token.Global {
			p.nextToken()
			if p.curToken.Type != token.Ident {
				p.errorf(p.curToken.Pos, "expected name after global, got %s", p.curToken.Type)
				return nil
			}
			fn.Globals = append(fn.Globals, p.curToken.Literal)
			p.nextToken()
			if !p.expectEndOfLine() {
				return nil
			}
			continue
		}
		if p.isVarDef() {
			v := p.parseVarDef()
			if v == nil {
				return nil
			}
			fn.Vars = append(fn.Vars, v)
			continue
		}
		break
	}
	fn.Body = p.parseStatementsUntilDedent()
	if len(p.errors) > 0 {
		return nil
	}
	if len(fn.Body) == 0 && len(fn.Vars) == 0 && len(fn.Globals) == 0 {
		p.errorf(fn.DefPos, "function %s has an empty body", fn.Name)
		return nil
	}
	p.expect(token.Dedent)
	return fn
}

// parseBlock parses ':' NEWLINE INDENT statements DEDENT.
func (p *Parser) parseBlock() []ast.Statement {
	if !p.expectBlockStart() {
		return nil
	}
	body := p.parseStatementsUntilDedent()
	if len(p.errors) > 0 {
		return nil
	}
	if len(body) == 0 {
		p.errorf(p.curToken.Pos, "expected an indented block")
		return nil
	}
	p.expect(token.Dedent)
	return body
}

func (p *Parser) parseStatementsUntilDedent() []ast.Statement {
	var out []ast.Statement
	for p.curToken.Type != token.Dedent && p.curToken.Type != token.EOF && len(p.errors) == 0 {
		if p.curToken.Type == token.Newline {
			p.nextToken()
			continue
		}
		if stmt := p.parseStatement(); stmt != nil {
			out = append(out, stmt)
		}
	}
	return out
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.curToken.Type {
	case token.Pass:
		stmt := &ast.PassStmt{PosT: p.curToken.Pos}
		p.nextToken()
		if !p.expectEndOfLine() {
			return nil
		}
		return stmt
	case token.Return:
		return p.parseReturn()
	case token.If:
		return p.parseIf()
	case token.While:
		return p.parseWhile()
	case token.Class, token.Def:
		p.errorf(p.curToken.Pos, "%s is only allowed at the top level", p.curToken.Literal)
		return nil
	case token.Indent:
		p.errorf(p.curToken.Pos, "unexpected indent")
		return nil
	default:
		if p.isVarDef() {
			p.errorf(p.curToken.Pos, "variable %s must be declared before any statement", p.curToken.Literal)
			return nil
		}
		return p.parseSimpleStatement()
	}
}

func (p *Parser) parseReturn() ast.Statement {
	ret := &ast.ReturnStmt{Return: p.curToken.Pos}
	p.nextToken()
	if p.curToken.Type != token.Newline {
		ret.Value = p.parseExpression(lowest)
		if ret.Value == nil {
			return nil
		}
	}
	if !p.expectEndOfLine() {
		return nil
	}
	return ret
}

func (p *Parser) parseIf() ast.Statement {
	stmt := &ast.IfStmt{IfPos: p.curToken.Pos}
	p.nextToken() // 'if' or 'elif'
	stmt.Condition = p.parseExpression(lowest)
	if stmt.Condition == nil {
		return nil
	}
	stmt.Conseq = p.parseBlock()
	if stmt.Conseq == nil {
		return nil
	}
	switch p.curToken.Type {
	case token.Elif:
		alt := p.parseIf()
		if alt == nil {
			return nil
		}
		stmt.Alt = []ast.Statement{alt}
	case token.Else:
		p.nextToken()
		stmt.Alt = p.parseBlock()
		if stmt.Alt == nil {
			return nil
		}
	}
	return stmt
}

func (p *Parser) parseWhile() ast.Statement {
	stmt := &ast.WhileStmt{WhilePos: p.curToken.Pos}
	p.nextToken()
	stmt.Condition = p.parseExpression(lowest)
	if stmt.Condition == nil {
		return nil
	}
	stmt.Body = p.parseBlock()
	if stmt.Body == nil {
		return nil
	}
	return stmt
}

func (p *Parser) parseSimpleStatement() ast.Statement {
	start := p.curToken.Pos
	expr := p.parseExpression(lowest)
	if expr == nil {
		return nil
	}
	if p.curToken.Type == token.Assign {
		pos := p.curToken.Pos
		switch expr.(type) {
		case *ast.Identifier, *ast.MemberExpr:
		default:
			p.errorf(pos, "cannot assign to expression")
			return nil
		}
		p.nextToken()
		value := p.parseExpression(lowest)
		if value == nil || !p.expectEndOfLine() {
			return nil
		}
		return &ast.AssignStmt{Target: expr, Value: value, PosT: pos}
	}
	if !p.expectEndOfLine() {
		return nil
	}
	return &ast.ExprStmt{Expression: expr, Start: start}
}

func (p *Parser) parseExpression(precedence int) ast.Expression {
	var left ast.Expression

	pos := p.curToken.Pos
	switch p.curToken.Type {
	case token.Number, token.True, token.False, token.None:
		left = p.parseLiteral()
	case token.Ident:
		name := p.curToken.Literal
		p.nextToken()
		if p.curToken.Type == token.LParen {
			args, ok := p.parseArguments()
			if !ok {
				return nil
			}
			left = &ast.CallExpr{Name: name, Arguments: args, PosT: pos}
		} else {
			left = &ast.Identifier{Name: name, PosT: pos}
		}
	case token.LParen:
		p.nextToken()
		left = p.parseExpression(lowest)
		if left == nil || !p.expect(token.RParen) {
			return nil
		}
	case token.Minus:
		p.nextToken()
		if p.curToken.Type == token.Number {
			left = p.parseNumber(true, pos)
		} else {
			right := p.parseExpression(prefixPrecedence)
			if right == nil {
				return nil
			}
			left = &ast.UnaryExpr{Operator: token.Minus, Right: right, PosT: pos}
		}
	case token.Not:
		if precedence > notPrecedence {
			p.errorf(pos, "unexpected not")
			return nil
		}
		p.nextToken()
		right := p.parseExpression(notPrecedence)
		if right == nil {
			return nil
		}
		left = &ast.UnaryExpr{Operator: token.Not, Right: right, PosT: pos}
	default:
		p.errorf(pos, "unexpected token %s", p.curToken.Type)
		return nil
	}

	if left == nil {
		return nil
	}

	for precedence < p.curPrecedence() {
		op := p.curToken
		if op.Type == token.Dot {
			left = p.parseMember(left)
		} else {
			p.nextToken()
			right := p.parseExpression(precedences[op.Type])
			if right == nil {
				return nil
			}
			left = &ast.BinaryExpr{Left: left, Operator: op.Type, Right: right, PosT: op.Pos}
		}
		if left == nil {
			return nil
		}
	}

	return left
}

func (p *Parser) parseMember(left ast.Expression) ast.Expression {
	pos := p.curToken.Pos
	p.nextToken() // '.'
	if p.curToken.Type != token.Ident {
		p.errorf(p.curToken.Pos, "expected attribute name, got %s", p.curToken.Type)
		return nil
	}
	name := p.curToken.Literal
	p.nextToken()
	if p.curToken.Type == token.LParen {
		args, ok := p.parseArguments()
		if !ok {
			return nil
		}
		return &ast.MethodCallExpr{Receiver: left, Method: name, Arguments: args, PosT: pos}
	}
	return &ast.MemberExpr{Left: left, Property: name, PosT: pos}
}

func (p *Parser) parseArguments() ([]ast.Expression, bool) {
	p.nextToken() // '('
	args := []ast.Expression{}
	for p.curToken.Type != token.RParen {
		if len(args) > 0 && !p.expect(token.Comma) {
			return nil, false
		}
		arg := p.parseExpression(lowest)
		if arg == nil {
			return nil, false
		}
		args = append(args, arg)
	}
	p.nextToken() // ')'
	return args, true
}

func (p *Parser) expect(t token.Type) bool {
	if p.curToken.Type == t {
		p.nextToken()
		return true
	}
	p.errorf(p.curToken.Pos, "expected %s, got %s", t, p.curToken.Type)
	return false
}

func (p *Parser) expectEndOfLine() bool {
	return p.expect(token.Newline)
}

func (p *Parser) expectBlockStart() bool {
	return p.expect(token.Colon) && p.expect(token.Newline) && p.expect(token.Indent)
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.Type]; ok {
		return prec
	}
	return lowest
}

func (p *Parser) skipNewlines() {
	for p.curToken.Type == token.Newline {
		p.nextToken()
	}
}

func (p *Parser) errorf(pos token.Position, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	p.errors = append(p.errors, fmt.Sprintf("%d:%d: %s", pos.Line, pos.Column, msg))
}

const (
	lowest = iota + 1
	orPrecedence
	andPrecedence
	notPrecedence
	comparePrecedence
	sumPrecedence
	productPrecedence
	prefixPrecedence
	callPrecedence
)

var precedences = map[token.Type]int{
	token.Or:           orPrecedence,
	token.And:          andPrecedence,
	token.Equal:        comparePrecedence,
	token.NotEqual:     comparePrecedence,
	token.Less:         comparePrecedence,
	token.LessEqual:    comparePrecedence,
	token.Greater:      comparePrecedence,
	token.GreaterEqual: comparePrecedence,
	token.Is:           comparePrecedence,
	token.Plus:         sumPrecedence,
	token.Minus:        sumPrecedence,
	token.Star:         productPrecedence,
	token.SlashSlash:   productPrecedence,
	token.Percent:      productPrecedence,
	token.Dot:          callPrecedence,
}
