package formula

import (
	"fmt"
	"sort"
)

// ════════════════════════════════════════════════════════════════════
// Validation
// ════════════════════════════════════════════════════════════════════

// ValidateExpression compiles expr and checks every reference against
// knownIDs and every call against the built-in registry. It returns nil or
// the first problem in source order.
func ValidateExpression(expr string, knownIDs []string) error {
	known := make(map[string]struct{}, len(knownIDs))
	for _, id := range knownIDs {
		known[id] = struct{}{}
	}
	node, err := Parse(expr)
	if err != nil {
		return err
	}
	problems := Check(node, func(id string) bool {
		_, ok := known[id]
		return ok
	})
	if len(problems) > 0 {
		return problems[0]
	}
	return nil
}

// Check walks a parsed expression and returns every unknown reference,
// unknown function and arity problem, ordered by offset.
func Check(node Node, isKnown func(id string) bool) []error {
	var problems []error
	var walk func(Node)
	walk = func(node Node) {
		switch n := node.(type) {
		case *NumberLiteral:
		case *Reference:
			if isKnown == nil || !isKnown(n.Name) {
				problems = append(problems, &UnknownReferenceError{Name: n.Name, Offset: n.Position})
			}
		case *UnaryExpr:
			walk(n.Operand)
		case *BinaryExpr:
			walk(n.Left)
			walk(n.Right)
		case *CallExpr:
			b, ok := lookupBuiltin(n.Name)
			switch {
			case !ok:
				problems = append(problems, &UnknownFunctionError{Name: n.Name, Offset: n.Position})
			case !b.acceptsArgs(len(n.Args)):
				problems = append(problems, &ArityError{
					Function: n.Name,
					Offset:   n.Position,
					Got:      len(n.Args),
					Want:     b.arityText(),
				})
			}
			for _, a := range n.Args {
				walk(a)
			}
		default:
			panic(fmt.Sprintf("formula: unknown node type %T", node))
		}
	}
	walk(node)

	sort.SliceStable(problems, func(i, j int) bool {
		return ErrorOffset(problems[i]) < ErrorOffset(problems[j])
	})
	return problems
}
