// internal/parser/parser.go
package parser

import (
	"fmt"
	"strconv"

	"wisp/internal/errors"
	"wisp/internal/lexer"
)

// Binary operator priorities as (left, right); right < left makes an
// operator right associative.
var precedence = map[lexer.TokenType][2]int{
	lexer.TokenOr:       {1, 1},
	lexer.TokenAnd:      {2, 2},
	lexer.TokenEqEq:     {3, 3},
	lexer.TokenNotEqual: {3, 3},
	lexer.TokenLT:       {3, 3},
	lexer.TokenGT:       {3, 3},
	lexer.TokenLE:       {3, 3},
	lexer.TokenGE:       {3, 3},
	lexer.TokenConcat:   {5, 4},
	lexer.TokenPlus:     {6, 6},
	lexer.TokenMinus:    {6, 6},
	lexer.TokenStar:     {7, 7},
	lexer.TokenSlash:    {7, 7},
	lexer.TokenCaret:    {10, 9},
}

const unaryPriority = 8

type Parser struct {
	tokens  []lexer.Token
	current int
	file    string
}

func NewParser(tokens []lexer.Token) *Parser {
	p := &Parser{tokens: tokens}
	if len(tokens) > 0 {
		p.file = tokens[0].File
	}
	return p
}

// ParseSource scans and parses a whole chunk. Syntax errors are returned
// as *errors.ScriptError.
func ParseSource(source, file string) (stmts []Stmt, err error) {
	scanner := lexer.NewScannerWithFile(source, file)
	tokens := scanner.ScanTokens()
	if scanner.HadError() {
		first := scanner.Errors()[0]
		return nil, errors.NewSyntaxError(first.Message, file, first.Line)
	}

	defer func() {
		if r := recover(); r != nil {
			se, ok := r.(*errors.ScriptError)
			if !ok {
				panic(r)
			}
			stmts, err = nil, se
		}
	}()
	return NewParser(tokens).Parse(), nil
}

// Parse parses the token stream as a chunk. It panics with a
// *errors.ScriptError on the first syntax error.
func (p *Parser) Parse() []Stmt {
	stmts := p.block()
	if !p.isAtEnd() {
		p.errorAt(p.peek(), "'<eof>' expected")
	}
	return stmts
}

func blockFollow(t lexer.TokenType) bool {
	switch t {
	case lexer.TokenEOF, lexer.TokenEnd, lexer.TokenElse, lexer.TokenElseif, lexer.TokenUntil:
		return true
	}
	return false
}

func (p *Parser) block() []Stmt {
	var stmts []Stmt
	for !blockFollow(p.peek().Type) {
		if p.match(lexer.TokenReturn) {
			stmts = append(stmts, p.returnStatement())
			break
		}
		stmts = append(stmts, p.statement())
		p.match(lexer.TokenSemicolon)
	}
	return stmts
}

func (p *Parser) statement() Stmt {
	switch {
	case p.match(lexer.TokenLocal):
		return p.localStatement()
	case p.match(lexer.TokenFunction):
		return p.functionStatement()
	case p.match(lexer.TokenIf):
		return p.ifStatement()
	case p.match(lexer.TokenWhile):
		condition := p.expression()
		p.consume(lexer.TokenDo, "'do' expected")
		body := p.block()
		p.consume(lexer.TokenEnd, "'end' expected")
		return &WhileStmt{Condition: condition, Body: body}
	case p.match(lexer.TokenRepeat):
		body := p.block()
		p.consume(lexer.TokenUntil, "'until' expected")
		return &RepeatStmt{Body: body, Condition: p.expression()}
	case p.match(lexer.TokenDo):
		body := p.block()
		p.consume(lexer.TokenEnd, "'end' expected")
		return &DoStmt{Body: body}
	}
	return p.exprStatement()
}

func (p *Parser) returnStatement() Stmt {
	line := p.previous().Line
	var values []Expr
	if !blockFollow(p.peek().Type) && !p.check(lexer.TokenSemicolon) {
		values = p.expressionList()
	}
	p.match(lexer.TokenSemicolon)
	if !blockFollow(p.peek().Type) {
		p.errorAt(p.peek(), "'return' must be the last statement of a block")
	}
	return &ReturnStmt{Values: values, Line: line}
}

func (p *Parser) localStatement() Stmt {
	line := p.previous().Line
	names := []string{p.consume(lexer.TokenIdent, "<name> expected").Lexeme}
	for p.match(lexer.TokenComma) {
		names = append(names, p.consume(lexer.TokenIdent, "<name> expected").Lexeme)
	}
	var exprs []Expr
	if p.match(lexer.TokenEqual) {
		exprs = p.expressionList()
	}
	return &LocalStmt{Names: names, Exprs: exprs, Line: line}
}

func (p *Parser) functionStatement() Stmt {
	nameTok := p.consume(lexer.TokenIdent, "<name> expected")
	var target Expr = &Variable{Name: nameTok.Lexeme, Line: nameTok.Line}
	fullName := nameTok.Lexeme
	for p.match(lexer.TokenDot) {
		field := p.consume(lexer.TokenIdent, "<name> expected")
		target = &IndexExpr{Object: target, Index: &Literal{Value: field.Lexeme}, Line: field.Line}
		fullName += "." + field.Lexeme
	}
	method := false
	if p.match(lexer.TokenColon) {
		field := p.consume(lexer.TokenIdent, "<name> expected")
		target = &IndexExpr{Object: target, Index: &Literal{Value: field.Lexeme}, Line: field.Line}
		fullName += ":" + field.Lexeme
		method = true
	}
	fn := p.functionBody(fullName, nameTok.Line, method)
	return &FunctionStmt{Target: target, Func: fn}
}

func (p *Parser) ifStatement() Stmt {
	condition := p.expression()
	p.consume(lexer.TokenThen, "'then' expected")
	thenBranch := p.block()

	var elseBranch []Stmt
	switch {
	case p.match(lexer.TokenElseif):
		// The nested if consumes the shared 'end'.
		return &IfStmt{Condition: condition, Then: thenBranch, Else: []Stmt{p.ifStatement()}}
	case p.match(lexer.TokenElse):
		elseBranch = p.block()
	}
	p.consume(lexer.TokenEnd, "'end' expected")
	return &IfStmt{Condition: condition, Then: thenBranch, Else: elseBranch}
}

// exprStatement parses either a call statement or an assignment.
func (p *Parser) exprStatement() Stmt {
	start := p.peek()
	expr := p.suffixedExpression()
	if p.check(lexer.TokenEqual) || p.check(lexer.TokenComma) {
		targets := []Expr{p.checkTarget(expr, start)}
		for p.match(lexer.TokenComma) {
			tok := p.peek()
			targets = append(targets, p.checkTarget(p.suffixedExpression(), tok))
		}
		p.consume(lexer.TokenEqual, "'=' expected")
		return &AssignmentStmt{Targets: targets, Exprs: p.expressionList(), Line: start.Line}
	}
	if !IsMultiValue(expr) {
		p.errorAt(start, "syntax error")
	}
	return &ExpressionStmt{Expr: expr}
}

func (p *Parser) checkTarget(expr Expr, tok lexer.Token) Expr {
	switch expr.(type) {
	case *Variable, *IndexExpr:
		return expr
	}
	p.errorAt(tok, "cannot assign to this expression")
	return nil
}

func (p *Parser) functionBody(name string, line int, method bool) *FunctionExpr {
	fn := &FunctionExpr{Name: name, Line: line}
	if method {
		fn.Params = append(fn.Params, "self")
	}
	p.consume(lexer.TokenLParen, "'(' expected")
	if !p.check(lexer.TokenRParen) {
		for {
			if p.match(lexer.TokenDots) {
				fn.IsVararg = true
				break
			}
			fn.Params = append(fn.Params, p.consume(lexer.TokenIdent, "<name> expected").Lexeme)
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.consume(lexer.TokenRParen, "')' expected")
	fn.Body = p.block()
	fn.EndLine = p.consume(lexer.TokenEnd, "'end' expected").Line
	return fn
}

// --- Expression Parsing with Precedence ---

func (p *Parser) expressionList() []Expr {
	exprs := []Expr{p.expression()}
	for p.match(lexer.TokenComma) {
		exprs = append(exprs, p.expression())
	}
	return exprs
}

func (p *Parser) expression() Expr {
	return p.subexpression(0)
}

func (p *Parser) subexpression(limit int) Expr {
	var left Expr
	if p.match(lexer.TokenNot) || p.match(lexer.TokenMinus) {
		op := p.previous()
		operand := p.subexpression(unaryPriority)
		left = &UnaryExpr{Operator: op.Lexeme, Operand: operand, Line: op.Line}
	} else {
		left = p.simpleExpression()
	}

	for {
		op := p.peek()
		prio, ok := precedence[op.Type]
		if !ok || prio[0] <= limit {
			break
		}
		p.advance()
		right := p.subexpression(prio[1])
		switch op.Type {
		case lexer.TokenAnd, lexer.TokenOr:
			left = &LogicalExpr{Left: left, Operator: op.Lexeme, Right: right}
		default:
			left = &Binary{Left: left, Operator: op.Lexeme, Right: right, Line: op.Line}
		}
	}
	return left
}

func (p *Parser) simpleExpression() Expr {
	tok := p.peek()
	switch tok.Type {
	case lexer.TokenNumber:
		p.advance()
		val, err := strconv.ParseFloat(tok.Lexeme, 64)
		if err != nil {
			p.errorAt(tok, fmt.Sprintf("malformed number near '%s'", tok.Lexeme))
		}
		return &Literal{Value: val}
	case lexer.TokenString:
		p.advance()
		return &Literal{Value: tok.Lexeme}
	case lexer.TokenNil:
		p.advance()
		return &Literal{Value: nil}
	case lexer.TokenLBrace:
		return p.tableConstructor()
	case lexer.TokenFunction:
		p.advance()
		return p.functionBody("", tok.Line, false)
	}
	return p.suffixedExpression()
}

func (p *Parser) primaryExpression() Expr {
	tok := p.advance()
	switch tok.Type {
	case lexer.TokenIdent:
		return &Variable{Name: tok.Lexeme, Line: tok.Line}
	case lexer.TokenLParen:
		expr := p.expression()
		p.consume(lexer.TokenRParen, "')' expected")
		return &ParenExpr{Inner: expr}
	}
	p.errorAt(tok, "unexpected symbol")
	return nil
}

func (p *Parser) suffixedExpression() Expr {
	expr := p.primaryExpression()
	for {
		tok := p.peek()
		switch tok.Type {
		case lexer.TokenDot:
			p.advance()
			name := p.consume(lexer.TokenIdent, "<name> expected")
			expr = &IndexExpr{Object: expr, Index: &Literal{Value: name.Lexeme}, Line: name.Line}
		case lexer.TokenLBracket:
			p.advance()
			index := p.expression()
			p.consume(lexer.TokenRBracket, "']' expected")
			expr = &IndexExpr{Object: expr, Index: index, Line: tok.Line}
		case lexer.TokenColon:
			p.advance()
			name := p.consume(lexer.TokenIdent, "<name> expected")
			expr = &MethodCallExpr{Object: expr, Method: name.Lexeme, Args: p.callArguments(), Line: name.Line}
		case lexer.TokenLParen, lexer.TokenLBrace, lexer.TokenString:
			expr = &CallExpr{Callee: expr, Args: p.callArguments(), Line: tok.Line}
		default:
			return expr
		}
	}
}

func (p *Parser) callArguments() []Expr {
	tok := p.peek()
	switch tok.Type {
	case lexer.TokenString:
		p.advance()
		return []Expr{&Literal{Value: tok.Lexeme}}
	case lexer.TokenLBrace:
		return []Expr{p.tableConstructor()}
	case lexer.TokenLParen:
		p.advance()
		var args []Expr
		if !p.check(lexer.TokenRParen) {
			args = p.expressionList()
		}
		p.consume(lexer.TokenRParen, "')' expected")
		return args
	}
	p.errorAt(tok, "function arguments expected")
	return nil
}

func (p *Parser) tableConstructor() Expr {
	line := p.consume(lexer.TokenLBrace, "'{' expected").Line
	table := &TableExpr{Line: line}
	for !p.check(lexer.TokenRBrace) {
		switch {
		case p.check(lexer.TokenIdent) && p.checkNext(lexer.TokenEqual):
			name := p.advance()
			p.advance()
			table.Entries = append(table.Entries, TableEntry{Key: &Literal{Value: name.Lexeme}, Value: p.expression()})
		case p.match(lexer.TokenLBracket):
			key := p.expression()
			p.consume(lexer.TokenRBracket, "']' expected")
			p.consume(lexer.TokenEqual, "'=' expected")
			table.Entries = append(table.Entries, TableEntry{Key: key, Value: p.expression()})
		default:
			table.Entries = append(table.Entries, TableEntry{Value: p.expression()})
		}
		if !p.match(lexer.TokenComma) && !p.match(lexer.TokenSemicolon) {
			break
		}
	}
	p.consume(lexer.TokenRBrace, "'}' expected")
	return table
}

// --- Utility methods ---

func (p *Parser) errorAt(tok lexer.Token, msg string) {
	panic(errors.NewSyntaxError(fmt.Sprintf("%s near '%s'", msg, tok.Lexeme), p.file, tok.Line))
}

func (p *Parser) match(t lexer.TokenType) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) consume(t lexer.TokenType, msg string) lexer.Token {
	if p.check(t) {
		return p.advance()
	}
	p.errorAt(p.peek(), msg)
	return lexer.Token{}
}

func (p *Parser) check(t lexer.TokenType) bool {
	return p.peek().Type == t
}

func (p *Parser) checkNext(t lexer.TokenType) bool {
	if p.current+1 >= len(p.tokens) {
		return false
	}
	return p.tokens[p.current+1].Type == t
}

func (p *Parser) previous() lexer.Token {
	return p.tokens[p.current-1]
}

func (p *Parser) advance() lexer.Token {
	if !p.isAtEnd() {
		p.current++
		return p.tokens[p.current-1]
	}
	return p.peek()
}

func (p *Parser) peek() lexer.Token {
	return p.tokens[p.current]
}

func (p *Parser) isAtEnd() bool {
	return p.peek().Type == lexer.TokenEOF
}
