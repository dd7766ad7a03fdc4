package formula

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultMaxDepth bounds expression nesting (parentheses, calls, unary signs).
const DefaultMaxDepth = 64

// ════════════════════════════════════════════════════════════════════
// Parser — Recursive Descent
// ════════════════════════════════════════════════════════════════════

// Parser transforms a token stream into an AST.
type Parser struct {
	tokens   []Token
	pos      int
	source   string
	depth    int
	maxDepth int
}

// NewParser creates a parser from a token slice.
func NewParser(tokens []Token, source string) *Parser {
	return &Parser{tokens: tokens, source: source, maxDepth: DefaultMaxDepth}
}

// SetMaxDepth overrides the nesting limit. Values <= 0 restore the default.
func (p *Parser) SetMaxDepth(n int) {
	if n <= 0 {
		n = DefaultMaxDepth
	}
	p.maxDepth = n
}

// Parse parses the full token stream. Trailing tokens after a complete
// expression are an error.
func (p *Parser) Parse() (Node, error) {
	if p.atEnd() {
		return nil, p.errorf(p.peek(), "empty expression")
	}
	node, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if !p.atEnd() {
		tok := p.peek()
		if tok.Kind == TokenRParen {
			return nil, p.errorf(tok, "unmatched ')'")
		}
		return nil, p.errorf(tok, "unexpected %s %q after expression", tok.Kind, tok.Text)
	}
	return node, nil
}

// Parse tokenizes and parses input with the default nesting limit.
func Parse(input string) (Node, error) {
	return ParseWithDepth(input, DefaultMaxDepth)
}

// ParseWithDepth tokenizes and parses input with an explicit nesting limit.
func ParseWithDepth(input string, maxDepth int) (Node, error) {
	tokens, err := Tokenize(input)
	if err != nil {
		return nil, err
	}
	p := NewParser(tokens, input)
	p.SetMaxDepth(maxDepth)
	return p.Parse()
}

// ────────────────────────────────────────────────────────────────────
// Token helpers
// ────────────────────────────────────────────────────────────────────

func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Kind: TokenEOF, Offset: len(p.source)}
	}
	return p.tokens[p.pos]
}

func (p *Parser) advance() Token {
	tok := p.peek()
	if tok.Kind != TokenEOF {
		p.pos++
	}
	return tok
}

func (p *Parser) atEnd() bool {
	return p.peek().Kind == TokenEOF
}

func (p *Parser) isOperator(ops ...string) bool {
	tok := p.peek()
	if tok.Kind != TokenOperator {
		return false
	}
	for _, op := range ops {
		if tok.Text == op {
			return true
		}
	}
	return false
}

func (p *Parser) expect(kind TokenKind, what string) (Token, error) {
	tok := p.peek()
	if tok.Kind != kind {
		return tok, p.errorf(tok, "expected %s, found %s", what, describe(tok))
	}
	return p.advance(), nil
}

// errorf builds a ParseError located at tok. Offsets are clamped into the
// source so that end-of-input errors still point at a real character.
func (p *Parser) errorf(tok Token, format string, args ...interface{}) error {
	offset := tok.Offset
	if offset >= len(p.source) {
		offset = len(p.source) - 1
	}
	if offset < 0 {
		offset = 0
	}
	return &ParseError{
		Offset:  offset,
		Found:   describe(tok),
		Message: fmt.Sprintf(format, args...),
	}
}

func (p *Parser) enter(tok Token) error {
	p.depth++
	if p.depth > p.maxDepth {
		return p.errorf(tok, "expression nested deeper than %d levels", p.maxDepth)
	}
	return nil
}

func (p *Parser) leave() { p.depth-- }

func describe(tok Token) string {
	if tok.Kind == TokenEOF {
		return "end of input"
	}
	return strconv.Quote(tok.Text)
}

// ────────────────────────────────────────────────────────────────────
// Grammar (precedence from lowest to highest):
//   Additive       → Multiplicative ( ('+'|'-') Multiplicative )*
//   Multiplicative → Unary ( ('*'|'/') Unary )*
//   Unary          → ('+'|'-') Unary | Primary
//   Primary        → Number | Identifier | Call | '(' Additive ')'
//   Call           → Identifier '(' [ Additive ( ',' Additive )* ] ')'
// ────────────────────────────────────────────────────────────────────

func (p *Parser) parseAdditive() (Node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}

	for p.isOperator("+", "-") {
		opTok := p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Position: opTok.Offset, Op: opTok.Text, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for p.isOperator("*", "/") {
		opTok := p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Position: opTok.Offset, Op: opTok.Text, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (Node, error) {
	if p.isOperator("+", "-") {
		opTok := p.advance()
		if err := p.enter(opTok); err != nil {
			return nil, err
		}
		defer p.leave()

		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Position: opTok.Offset, Op: opTok.Text, Operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (Node, error) {
	tok := p.peek()

	switch tok.Kind {
	case TokenNumber:
		p.advance()
		val, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			return nil, p.errorf(tok, "invalid number %q", tok.Text)
		}
		return &NumberLiteral{Position: tok.Offset, Value: val, Raw: tok.Text}, nil

	case TokenIdentifier:
		p.advance()
		if p.peek().Kind == TokenLParen {
			return p.parseCall(tok)
		}
		return &Reference{Position: tok.Offset, Name: tok.Text}, nil

	case TokenLParen:
		p.advance()
		if err := p.enter(tok); err != nil {
			return nil, err
		}
		defer p.leave()

		inner, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		if p.peek().Kind != TokenRParen {
			return nil, p.errorf(p.peek(), "unmatched '(' at offset %d, found %s", tok.Offset, describe(p.peek()))
		}
		p.advance()
		return inner, nil

	case TokenEOF:
		return nil, p.errorf(tok, "unexpected end of input")

	case TokenRParen:
		return nil, p.errorf(tok, "unexpected ')'")

	default:
		return nil, p.errorf(tok, "unexpected %s %q", tok.Kind, tok.Text)
	}
}

func (p *Parser) parseCall(nameTok Token) (Node, error) {
	open := p.advance() // consume (
	if err := p.enter(open); err != nil {
		return nil, err
	}
	defer p.leave()

	args := []Node{}
	if p.peek().Kind != TokenRParen {
		for {
			arg, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().Kind != TokenComma {
				break
			}
			p.advance() // consume ,
		}
	}

	if _, err := p.expect(TokenRParen, "',' or ')' to close "+nameTok.Text+"("); err != nil {
		return nil, err
	}

	return &CallExpr{Position: nameTok.Offset, Name: strings.ToLower(nameTok.Text), Args: args}, nil
}
