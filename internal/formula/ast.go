// Package formula implements the business-case expression language: a lexer,
// a recursive descent parser, dependency analysis over named references and a
// NaN-propagating evaluator with a small built-in function library.
package formula

import (
	"fmt"
	"strings"
)

// ════════════════════════════════════════════════════════════════════
// AST Node Types
// ════════════════════════════════════════════════════════════════════

// Node is the interface for all AST nodes. The set of node kinds is closed:
// only this package can implement it.
type Node interface {
	node()
	// Pos returns the byte offset of the node in the original source.
	Pos() int
	String() string
}

// NumberLiteral represents a numeric constant (e.g. 42, 3.14, .5).
type NumberLiteral struct {
	Position int
	Value    float64
	Raw      string
}

func (n *NumberLiteral) node()          {}
func (n *NumberLiteral) Pos() int       { return n.Position }
func (n *NumberLiteral) String() string { return n.Raw }

// Reference names a metric or formula id.
type Reference struct {
	Position int
	Name     string
}

func (n *Reference) node()          {}
func (n *Reference) Pos() int       { return n.Position }
func (n *Reference) String() string { return n.Name }

// UnaryExpr represents a sign operation: -x or +x.
type UnaryExpr struct {
	Position int
	Op       string // "+" or "-"
	Operand  Node
}

func (n *UnaryExpr) node()          {}
func (n *UnaryExpr) Pos() int       { return n.Position }
func (n *UnaryExpr) String() string { return fmt.Sprintf("(%s%s)", n.Op, n.Operand.String()) }

// BinaryExpr represents an arithmetic operation: a + b, a - b, a * b, a / b.
type BinaryExpr struct {
	Position int
	Op       string
	Left     Node
	Right    Node
}

func (n *BinaryExpr) node()    {}
func (n *BinaryExpr) Pos() int { return n.Position }
func (n *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", n.Left.String(), n.Op, n.Right.String())
}

// CallExpr represents a built-in function invocation e.g. max(a, b).
type CallExpr struct {
	Position int
	Name     string // callee, lower-cased
	Args     []Node
}

func (n *CallExpr) node()    {}
func (n *CallExpr) Pos() int { return n.Position }
func (n *CallExpr) String() string {
	parts := make([]string, len(n.Args))
	for i, a := range n.Args {
		parts[i] = a.String()
	}
	return n.Name + "(" + strings.Join(parts, ", ") + ")"
}
