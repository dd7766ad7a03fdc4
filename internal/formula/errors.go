package formula

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds reported by Kind() on every error in this package.
const (
	KindLex                = "lex"
	KindParse              = "parse"
	KindUnknownReference   = "unknown_reference"
	KindUnknownFunction    = "unknown_function"
	KindArity              = "arity"
	KindCircularDependency = "circular_dependency"
	KindNonNumeric         = "non_numeric"
)

// Kinded is implemented by every error type of this package.
type Kinded interface {
	error
	Kind() string
}

// ErrorKind returns the kind of err, or "" if err is not a formula error.
func ErrorKind(err error) string {
	var k Kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return ""
}

// ErrorOffset returns the source offset carried by err, or -1.
func ErrorOffset(err error) int {
	var (
		lexErr *LexError
		parErr *ParseError
		refErr *UnknownReferenceError
		fnErr  *UnknownFunctionError
		arErr  *ArityError
	)
	switch {
	case errors.As(err, &lexErr):
		return lexErr.Offset
	case errors.As(err, &parErr):
		return parErr.Offset
	case errors.As(err, &refErr):
		return refErr.Offset
	case errors.As(err, &fnErr):
		return fnErr.Offset
	case errors.As(err, &arErr):
		return arErr.Offset
	}
	return -1
}

// LexError reports a character the lexer does not accept.
type LexError struct {
	Offset int
	Char   rune
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at offset %d: unexpected character %q", e.Offset, e.Char)
}

func (e *LexError) Kind() string { return KindLex }

// ParseError captures a malformed token sequence.
type ParseError struct {
	Offset  int
	Found   string // offending token text, or "end of input"
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: %s", e.Offset, e.Message)
}

func (e *ParseError) Kind() string { return KindParse }

// UnknownReferenceError reports an identifier that names no known metric or formula.
type UnknownReferenceError struct {
	Name   string
	Offset int
}

func (e *UnknownReferenceError) Error() string {
	return fmt.Sprintf("unknown reference %q at offset %d", e.Name, e.Offset)
}

func (e *UnknownReferenceError) Kind() string { return KindUnknownReference }

// UnknownFunctionError reports a call to a function that is not built in.
type UnknownFunctionError struct {
	Name   string
	Offset int
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("unknown function %q at offset %d", e.Name, e.Offset)
}

func (e *UnknownFunctionError) Kind() string { return KindUnknownFunction }

// ArityError reports a built-in called with the wrong number of arguments.
type ArityError struct {
	Function string
	Offset   int
	Got      int
	Want     string
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("%s() at offset %d takes %s argument(s), got %d", e.Function, e.Offset, e.Want, e.Got)
}

func (e *ArityError) Kind() string { return KindArity }

// CircularDependencyError lists every id that participates in a reference cycle.
type CircularDependencyError struct {
	IDs []string
}

func (e *CircularDependencyError) Error() string {
	return "circular dependency between: " + strings.Join(e.IDs, ", ")
}

func (e *CircularDependencyError) Kind() string { return KindCircularDependency }

// NonNumericResultError reports an evaluation that produced no usable scalar.
type NonNumericResultError struct {
	Expression string
	Value      float64
}

func (e *NonNumericResultError) Error() string {
	return fmt.Sprintf("expression %q evaluated to non-numeric result %v", e.Expression, e.Value)
}

func (e *NonNumericResultError) Kind() string { return KindNonNumeric }
