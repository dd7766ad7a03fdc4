package formula

import (
	"fmt"
	"unicode/utf8"
)

// ════════════════════════════════════════════════════════════════════
// Token Types
// ════════════════════════════════════════════════════════════════════

// TokenKind enumerates all token kinds produced by the lexer.
type TokenKind int

const (
	TokenEOF TokenKind = iota

	TokenNumber     // 42, 3.14, .5
	TokenIdentifier // revenue, discount_rate, max
	TokenOperator   // + - * /
	TokenLParen     // (
	TokenRParen     // )
	TokenComma      // ,
)

var tokenKindNames = map[TokenKind]string{
	TokenEOF:        "EOF",
	TokenNumber:     "NUMBER",
	TokenIdentifier: "IDENT",
	TokenOperator:   "OPERATOR",
	TokenLParen:     "(",
	TokenRParen:     ")",
	TokenComma:      ",",
}

func (k TokenKind) String() string {
	if name, ok := tokenKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", int(k))
}

// ════════════════════════════════════════════════════════════════════
// Token
// ════════════════════════════════════════════════════════════════════

// Token represents a single lexical token from the input.
type Token struct {
	Kind   TokenKind
	Text   string // literal text
	Offset int    // byte offset in source
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d", t.Kind, t.Text, t.Offset)
}

// ════════════════════════════════════════════════════════════════════
// Lexer
// ════════════════════════════════════════════════════════════════════

// Lexer tokenizes a formula expression.
type Lexer struct {
	input  string
	pos    int
	tokens []Token
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// Tokenize is shorthand for NewLexer(input).Tokenize().
func Tokenize(input string) ([]Token, error) {
	return NewLexer(input).Tokenize()
}

// Tokenize performs the complete tokenization. The returned slice always
// ends with a TokenEOF whose offset is len(input).
func (l *Lexer) Tokenize() ([]Token, error) {
	for {
		tok, err := l.nextToken()
		if err != nil {
			return nil, err
		}
		l.tokens = append(l.tokens, tok)
		if tok.Kind == TokenEOF {
			break
		}
	}
	return l.tokens, nil
}

// ────────────────────────────────────────────────────────────────────
// Internal scanning
// ────────────────────────────────────────────────────────────────────

func (l *Lexer) peekAt(i int) byte {
	if i >= len(l.input) {
		return 0
	}
	return l.input[i]
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) && isSpace(l.input[l.pos]) {
		l.pos++
	}
}

func (l *Lexer) nextToken() (Token, error) {
	l.skipWhitespace()

	if l.pos >= len(l.input) {
		return Token{Kind: TokenEOF, Offset: l.pos}, nil
	}

	start := l.pos
	ch := l.input[l.pos]

	switch ch {
	case '(':
		l.pos++
		return Token{Kind: TokenLParen, Text: "(", Offset: start}, nil
	case ')':
		l.pos++
		return Token{Kind: TokenRParen, Text: ")", Offset: start}, nil
	case ',':
		l.pos++
		return Token{Kind: TokenComma, Text: ",", Offset: start}, nil
	case '+', '-', '*', '/':
		l.pos++
		return Token{Kind: TokenOperator, Text: string(ch), Offset: start}, nil
	}

	// Numbers (digits or .digit)
	if isDigit(ch) || (ch == '.' && isDigit(l.peekAt(l.pos+1))) {
		return l.readNumber(start), nil
	}

	if isIdentStart(ch) {
		return l.readIdentifier(start), nil
	}

	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return Token{}, &LexError{Offset: start, Char: r}
}

func (l *Lexer) readNumber(start int) Token {
	hasDot := false
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if isDigit(ch) {
			l.pos++
		} else if ch == '.' && !hasDot {
			hasDot = true
			l.pos++
		} else {
			break
		}
	}
	return Token{Kind: TokenNumber, Text: l.input[start:l.pos], Offset: start}
}

func (l *Lexer) readIdentifier(start int) Token {
	for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
		l.pos++
	}
	return Token{Kind: TokenIdentifier, Text: l.input[start:l.pos], Offset: start}
}

func isSpace(ch byte) bool { return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' }

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func isLetter(ch byte) bool { return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') }

func isIdentStart(ch byte) bool { return isLetter(ch) || ch == '_' }

func isIdentPart(ch byte) bool { return isIdentStart(ch) || isDigit(ch) }
