package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser consumes the flat token slice produced by the Lexer and builds an AST.
//
// Grammar:
//
//	program        = function* EOF
//	function       = "int" IDENTIFIER "(" ")" "{" statement* "}"
//	statement      = "return" expression ";" | expression ";"
//	expression     = additive
//	additive       = multiplicative (("+" | "-") multiplicative)*
//	multiplicative = unary (("*" | "/") unary)*
//	unary          = "-" unary | primary
//	primary        = INTEGER | IDENTIFIER "(" ")" | "(" expression ")"
type Parser struct {
	tokens      []Token
	pos         int
	sourceLines []string
}

func NewParser(tokens []Token, rawSource string) *Parser {
	return &Parser{tokens: tokens, sourceLines: strings.Split(rawSource, "\n")}
}

// fmtError wraps an error message with the source line where the token appears.
func (p *Parser) fmtError(tok Token, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	lineIdx := tok.Line - 1

	snippet := "<source unavailable>"
	if lineIdx >= 0 && lineIdx < len(p.sourceLines) {
		snippet = strings.TrimSpace(p.sourceLines[lineIdx])
	}

	return fmt.Errorf("line %d: %s\n  |> %s", tok.Line, msg, snippet)
}

// peek returns the current token without consuming it.
func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: EOF}
	}
	return p.tokens[p.pos]
}

// advance consumes and returns the current token.
func (p *Parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

// expect consumes the current token if it matches tt, otherwise returns an error.
func (p *Parser) expect(tt TokenType) (Token, error) {
	tok := p.advance()
	if tok.Type != tt {
		return tok, p.fmtError(tok, "expected %s, got %s (%q)", tt, tok.Type, tok.Lexeme)
	}
	return tok, nil
}

func (p *Parser) parseFunction() (*FunctionDecl, error) {
	if _, err := p.expect(INT); err != nil {
		return nil, err
	}
	name, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Type != RPAREN {
		return nil, p.fmtError(tok, "function %q: parameters are not supported", name.Lexeme)
	}
	p.advance()
	if _, err := p.expect(LBRACE); err != nil {
		return nil, err
	}

	fn := &FunctionDecl{Name: name.Lexeme, Line: name.Line}
	for p.peek().Type != RBRACE {
		if p.peek().Type == EOF {
			return nil, p.fmtError(p.peek(), "unexpected end of input in function %q", fn.Name)
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		fn.Body = append(fn.Body, stmt)
	}
	p.advance() // }
	return fn, nil
}

func (p *Parser) parseStatement() (Stmt, error) {
	if p.peek().Type == RETURN {
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		return &ReturnStmt{Expr: expr}, nil
	}

	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return &ExprStmt{Expr: expr}, nil
}

// parseExpression is the entry point for expression parsing.
func (p *Parser) parseExpression() (Expr, error) {
	return p.parseAdditive()
}

// parseAdditive handles + and -
func (p *Parser) parseAdditive() (Expr, error) {
	expr, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == PLUS || p.peek().Type == MINUS {
		op := p.advance().Type
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Op: op, Left: expr, Right: right}
	}
	return expr, nil
}

// parseMultiplicative handles * and /
func (p *Parser) parseMultiplicative() (Expr, error) {
	expr, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == STAR || p.peek().Type == SLASH {
		op := p.advance().Type
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Op: op, Left: expr, Right: right}
	}
	return expr, nil
}

func (p *Parser) parseUnary() (Expr, error) {
	if p.peek().Type == MINUS {
		op := p.advance().Type
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: op, Right: right}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (Expr, error) {
	tok := p.advance()
	switch tok.Type {
	case INTEGER:
		// Literals up to 2^64-1 are accepted and kept as their bit pattern.
		if v, err := strconv.ParseInt(tok.Lexeme, 0, 64); err == nil {
			return &Literal{Value: v}, nil
		}
		v, err := strconv.ParseUint(tok.Lexeme, 0, 64)
		if err != nil {
			return nil, p.fmtError(tok, "invalid integer literal %q", tok.Lexeme)
		}
		return &Literal{Value: int64(v)}, nil

	case IDENTIFIER:
		if _, err := p.expect(LPAREN); err != nil {
			return nil, p.fmtError(tok, "%q is not a function call; variables are not supported", tok.Lexeme)
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, p.fmtError(tok, "call to %q: arguments are not supported", tok.Lexeme)
		}
		return &FunctionCall{Name: tok.Lexeme, Line: tok.Line}, nil

	case LPAREN:
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return expr, nil
	}
	return nil, p.fmtError(tok, "unexpected token %s (%q) in expression", tok.Type, tok.Lexeme)
}

// Parse builds a Program from the token stream produced by Lex.
// rawSource is only used to quote the offending line in error messages.
func Parse(tokens []Token, rawSource string) (*Program, error) {
	p := NewParser(tokens, rawSource)
	prog := &Program{}
	for p.peek().Type != EOF {
		fn, err := p.parseFunction()
		if err != nil {
			return nil, err
		}
		prog.Functions = append(prog.Functions, fn)
	}
	return prog, nil
}
