package formula

import (
	"fmt"
	"math"
)

// ════════════════════════════════════════════════════════════════════
// Evaluator — AST Walker
// ════════════════════════════════════════════════════════════════════

// Resolver looks up the current value of a metric or formula id.
// ok=false means the id is unknown; the evaluator then yields NaN.
type Resolver func(id string) (value float64, ok bool)

// MapResolver adapts a plain map to a Resolver.
func MapResolver(values map[string]float64) Resolver {
	return func(id string) (float64, bool) {
		v, ok := values[id]
		return v, ok
	}
}

// Evaluate walks node and returns its numeric value. It never fails: a
// missing reference, a division by zero or an unknown function all produce
// NaN, which then propagates through every operator except ifnull.
func Evaluate(node Node, resolve Resolver) float64 {
	switch n := node.(type) {
	case *NumberLiteral:
		return n.Value

	case *Reference:
		if resolve == nil {
			return math.NaN()
		}
		v, ok := resolve(n.Name)
		if !ok {
			return math.NaN()
		}
		return v

	case *UnaryExpr:
		return applyUnary(n.Op, Evaluate(n.Operand, resolve))

	case *BinaryExpr:
		return applyBinary(n.Op, Evaluate(n.Left, resolve), Evaluate(n.Right, resolve))

	case *CallExpr:
		b, ok := lookupBuiltin(n.Name)
		if !ok || !b.acceptsArgs(len(n.Args)) {
			return math.NaN()
		}
		args := make([]float64, len(n.Args))
		for i, a := range n.Args {
			args[i] = Evaluate(a, resolve)
		}
		return b.fn(args)

	default:
		panic(fmt.Sprintf("formula: unknown node type %T", node))
	}
}

// EvaluateScalar evaluates expr and rejects results that cannot be used as a
// finite-or-NaN scalar (overflow to ±Inf).
func EvaluateScalar(expr string, resolve Resolver) (float64, error) {
	node, err := Parse(expr)
	if err != nil {
		return math.NaN(), err
	}
	return scalar(expr, node, resolve)
}

// EvaluateNodeScalar is EvaluateScalar for an already parsed expression.
func EvaluateNodeScalar(node Node, resolve Resolver) (float64, error) {
	return scalar(node.String(), node, resolve)
}

func scalar(expr string, node Node, resolve Resolver) (float64, error) {
	v := Evaluate(node, resolve)
	if math.IsInf(v, 0) {
		return v, &NonNumericResultError{Expression: expr, Value: v}
	}
	return v, nil
}

func applyUnary(op string, v float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	switch op {
	case "-":
		return -v
	case "+":
		return v
	}
	return math.NaN()
}

func applyBinary(op string, l, r float64) float64 {
	if math.IsNaN(l) || math.IsNaN(r) {
		return math.NaN()
	}
	switch op {
	case "+":
		return l + r
	case "-":
		return l - r
	case "*":
		return l * r
	case "/":
		if r == 0 {
			return math.NaN()
		}
		return l / r
	}
	return math.NaN()
}

// ════════════════════════════════════════════════════════════════════
// Bound programs
// ════════════════════════════════════════════════════════════════════

// Program is an expression whose references have been resolved to slot
// indexes ahead of time. It is immutable and safe for concurrent use.
type Program struct {
	root   Node
	eval   func(slots []float64) float64
	source string
}

// Bind converts node into a Program over a slot table. index maps an id to
// its slot; ids it does not know evaluate to NaN.
func Bind(node Node, index func(id string) (int, bool)) *Program {
	return &Program{root: node, eval: bindNode(node, index), source: node.String()}
}

// Eval runs the program against one slot table.
func (p *Program) Eval(slots []float64) float64 { return p.eval(slots) }

// Node returns the AST the program was bound from.
func (p *Program) Node() Node { return p.root }

func (p *Program) String() string { return p.source }

func bindNode(node Node, index func(string) (int, bool)) func([]float64) float64 {
	switch n := node.(type) {
	case *NumberLiteral:
		v := n.Value
		return func([]float64) float64 { return v }

	case *Reference:
		i, ok := index(n.Name)
		if !ok {
			return func([]float64) float64 { return math.NaN() }
		}
		return func(s []float64) float64 { return s[i] }

	case *UnaryExpr:
		op, operand := n.Op, bindNode(n.Operand, index)
		return func(s []float64) float64 { return applyUnary(op, operand(s)) }

	case *BinaryExpr:
		op, left, right := n.Op, bindNode(n.Left, index), bindNode(n.Right, index)
		return func(s []float64) float64 { return applyBinary(op, left(s), right(s)) }

	case *CallExpr:
		b, ok := lookupBuiltin(n.Name)
		if !ok || !b.acceptsArgs(len(n.Args)) {
			return func([]float64) float64 { return math.NaN() }
		}
		args := make([]func([]float64) float64, len(n.Args))
		for i, a := range n.Args {
			args[i] = bindNode(a, index)
		}
		fn := b.fn
		return func(s []float64) float64 {
			vals := make([]float64, len(args))
			for i, a := range args {
				vals[i] = a(s)
			}
			return fn(vals)
		}

	default:
		panic(fmt.Sprintf("formula: unknown node type %T", node))
	}
}
