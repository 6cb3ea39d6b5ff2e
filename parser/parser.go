// Package parser implements a precedence-climbing (Pratt) parser that turns
// a formula's token sequence into an *ast.Expr tree (§4.2).
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/forgelang/forge/ast"
	"github.com/forgelang/forge/lexer"
	"github.com/forgelang/forge/token"
)

// Error is a parse error: the offending token plus an expected/got message,
// per §7's Parse row.
type Error struct {
	Token    token.Token
	Expected string
	Message  string
}

func (e *Error) Error() string {
	if e.Expected != "" {
		return fmt.Sprintf("parse error at %d: expected %s, got %s", e.Token.Pos, e.Expected, e.Token)
	}
	return fmt.Sprintf("parse error at %d: %s", e.Token.Pos, e.Message)
}

// Precedence levels, low to high, per §4.2. & binds tighter than comparison
// (Open Question (a), fixed here: comparison lowest).
const (
	_ int = iota
	LOWEST
	COMPARISON  // = <> < <= > >=
	CONCAT      // &
	ADDITIVE    // + -
	MULTIPLICATIVE // * /
	EXPONENT    // ^ (right associative)
	UNARY       // unary -
	CALLORINDEX // f(...), x[i]
)

var precedences = map[token.Type]int{
	token.EQ:    COMPARISON,
	token.NEQ:   COMPARISON,
	token.LT:    COMPARISON,
	token.LTE:   COMPARISON,
	token.GT:    COMPARISON,
	token.GTE:   COMPARISON,
	token.AMP:   CONCAT,
	token.PLUS:  ADDITIVE,
	token.MINUS: ADDITIVE,
	token.STAR:  MULTIPLICATIVE,
	token.SLASH: MULTIPLICATIVE,
	token.CARET:    EXPONENT,
	token.LBRACKET: CALLORINDEX,
}

// allowRange controls whether a bare identifier ':' identifier is accepted
// as a Range node, legal only inside spreadsheet-bridge-only contexts, per
// §3 ("range A:B, reserved for grid formulas only").
type Parser struct {
	toks       []token.Token
	pos        int
	allowRange bool
	err        error
}

// Parse tokenizes and parses a formula string into an expression tree.
func Parse(formula string) (*ast.Expr, error) {
	return parse(formula, false)
}

// ParseGrid parses a grid-address formula (as read back from a spreadsheet
// sheet by the bridge), where A:B range syntax is legal per §3.
func ParseGrid(formula string) (*ast.Expr, error) {
	return parse(formula, true)
}

func parse(formula string, allowRange bool) (*ast.Expr, error) {
	toks, err := lexer.Tokenize(formula)
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks, allowRange: allowRange}
	expr := p.parseExpression(LOWEST)
	if p.err != nil {
		return nil, p.err
	}
	if p.cur().Type != token.EOF {
		return nil, &Error{Token: p.cur(), Expected: "end of formula"}
	}
	return expr, nil
}

func (p *Parser) cur() token.Token {
	if p.pos >= len(p.toks) {
		return token.Token{Type: token.EOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) peek() token.Token {
	if p.pos+1 >= len(p.toks) {
		return token.Token{Type: token.EOF}
	}
	return p.toks[p.pos+1]
}

func (p *Parser) advance() token.Token {
	t := p.cur()
	p.pos++
	return t
}

func (p *Parser) curPrecedence() int {
	if pr, ok := precedences[p.cur().Type]; ok {
		return pr
	}
	return LOWEST
}

func (p *Parser) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *Parser) parseExpression(precedence int) *ast.Expr {
	left := p.parsePrefix()
	if p.err != nil {
		return nil
	}
	for precedence < p.curPrecedence() {
		tok := p.cur()
		switch tok.Type {
		case token.LBRACKET:
			left = p.parseIndex(left)
		default:
			left = p.parseInfix(left)
		}
		if p.err != nil {
			return nil
		}
	}
	return left
}

func (p *Parser) parsePrefix() *ast.Expr {
	tok := p.cur()
	switch tok.Type {
	case token.NUMBER:
		p.advance()
		n, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.fail(&Error{Token: tok, Message: "malformed number"})
			return nil
		}
		return &ast.Expr{Kind: ast.NumberLit, Pos: tok.Pos, Number: n}
	case token.TEXT:
		p.advance()
		return &ast.Expr{Kind: ast.TextLit, Pos: tok.Pos, Text: tok.Literal}
	case token.TRUE_LIT:
		p.advance()
		return &ast.Expr{Kind: ast.BoolLit, Pos: tok.Pos, Bool: true}
	case token.FALSE_LIT:
		p.advance()
		return &ast.Expr{Kind: ast.BoolLit, Pos: tok.Pos, Bool: false}
	case token.MINUS:
		p.advance()
		operand := p.parseExpression(UNARY)
		if p.err != nil {
			return nil
		}
		return &ast.Expr{Kind: ast.UnaryMinus, Pos: tok.Pos, Right: operand}
	case token.LPAREN:
		p.advance()
		inner := p.parseExpression(LOWEST)
		if p.err != nil {
			return nil
		}
		if p.cur().Type != token.RPAREN {
			p.fail(&Error{Token: p.cur(), Expected: ")"})
			return nil
		}
		p.advance()
		return inner
	case token.IDENT:
		return p.parseIdentLed()
	}
	p.fail(&Error{Token: tok, Message: "unexpected token in expression"})
	return nil
}

// parseIdentLed handles the three primary forms that begin with an
// identifier: a bare reference, a call (ident followed by '('), and a
// colon-range between two identifiers (accepted only where allowRange).
func (p *Parser) parseIdentLed() *ast.Expr {
	tok := p.advance()
	if p.cur().Type == token.LPAREN {
		return p.parseCall(tok)
	}
	ref := parseRef(tok)
	if p.allowRange && p.cur().Type == token.COLON {
		p.advance()
		if p.cur().Type != token.IDENT {
			p.fail(&Error{Token: p.cur(), Expected: "identifier"})
			return nil
		}
		toTok := p.advance()
		return &ast.Expr{
			Kind:      ast.Range,
			Pos:       tok.Pos,
			RangeFrom: ref,
			RangeTo:   parseRef(toTok),
		}
	}
	return ref
}

func parseRef(tok token.Token) *ast.Expr {
	lit := tok.Literal
	form := ast.RefName
	if strings.HasPrefix(lit, "@") {
		form = ast.RefCrossDoc
		lit = lit[1:]
	}
	parts := strings.Split(lit, ".")
	if form == ast.RefName && len(parts) > 1 {
		form = ast.RefTableColumn
	}
	return &ast.Expr{Kind: ast.Ref, Pos: tok.Pos, RefForm: form, RefParts: parts}
}

func (p *Parser) parseCall(nameTok token.Token) *ast.Expr {
	p.advance() // consume '('
	var args []*ast.Expr
	if p.cur().Type != token.RPAREN {
		for {
			arg := p.parseExpression(LOWEST)
			if p.err != nil {
				return nil
			}
			args = append(args, arg)
			if p.cur().Type == token.COMMA {
				p.advance()
				continue
			}
			break
		}
	}
	if p.cur().Type != token.RPAREN {
		p.fail(&Error{Token: p.cur(), Expected: ")"})
		return nil
	}
	p.advance()
	return &ast.Expr{Kind: ast.Call, Pos: nameTok.Pos, Func: strings.ToUpper(nameTok.Literal), Args: args}
}

func (p *Parser) parseIndex(base *ast.Expr) *ast.Expr {
	tok := p.advance() // consume '['
	idx := p.parseExpression(LOWEST)
	if p.err != nil {
		return nil
	}
	if p.cur().Type != token.RBRACKET {
		p.fail(&Error{Token: p.cur(), Expected: "]"})
		return nil
	}
	p.advance()
	return &ast.Expr{Kind: ast.Index, Pos: tok.Pos, Base: base, Index: idx}
}

func (p *Parser) parseInfix(left *ast.Expr) *ast.Expr {
	tok := p.advance()
	op, ok := ast.OpFromToken(tok.Type)
	if !ok {
		p.fail(&Error{Token: tok, Message: "not a binary operator"})
		return nil
	}
	precedence := precedences[tok.Type]
	rightAssoc := tok.Type == token.CARET
	nextPrecedence := precedence
	if rightAssoc {
		nextPrecedence = precedence - 1
	}
	right := p.parseExpression(nextPrecedence)
	if p.err != nil {
		return nil
	}
	return &ast.Expr{Kind: ast.BinaryOp, Pos: tok.Pos, Op: op, Left: left, Right: right}
}
