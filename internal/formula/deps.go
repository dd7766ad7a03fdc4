package formula

import (
	"fmt"
	"sort"
)

// ════════════════════════════════════════════════════════════════════
// Dependency Analysis
// ════════════════════════════════════════════════════════════════════

// DependencyMap maps an id to the sorted, de-duplicated ids it references.
// Ids that appear only as references (leaf metrics) need not be keys.
type DependencyMap map[string][]string

// CollectReferences returns the name of every Reference under node. Callee
// names of function calls are not references.
func CollectReferences(node Node) map[string]struct{} {
	refs := make(map[string]struct{})
	collectRefs(node, refs)
	return refs
}

// References is CollectReferences as a sorted slice.
func References(node Node) []string {
	return sortedKeys(CollectReferences(node))
}

func collectRefs(node Node, refs map[string]struct{}) {
	switch n := node.(type) {
	case *NumberLiteral:
	case *Reference:
		refs[n.Name] = struct{}{}
	case *UnaryExpr:
		collectRefs(n.Operand, refs)
	case *BinaryExpr:
		collectRefs(n.Left, refs)
		collectRefs(n.Right, refs)
	case *CallExpr:
		for _, a := range n.Args {
			collectRefs(a, refs)
		}
	default:
		panic(fmt.Sprintf("formula: unknown node type %T", node))
	}
}

// BuildDependencyMap derives the dependency map of a set of compiled formulas.
func BuildDependencyMap(formulas map[string]Node) DependencyMap {
	deps := make(DependencyMap, len(formulas))
	for id, node := range formulas {
		deps[id] = References(node)
	}
	return deps
}

// nodes returns every id in the map, keyed or referenced, sorted.
func (m DependencyMap) nodes() []string {
	set := make(map[string]struct{}, len(m))
	for id, deps := range m {
		set[id] = struct{}{}
		for _, d := range deps {
			set[d] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// DetectCircularDependencies returns every id that sits on a reference cycle,
// sorted. Self-references count as cycles. The result is empty for an
// acyclic map.
//
// The walk is a depth-first search that keeps the current recursion stack;
// revisiting a node that is still on the stack closes a cycle, and the
// strongly connected component rooted there is reported whole.
func DetectCircularDependencies(m DependencyMap) []string {
	var (
		index    = 0
		indexOf  = make(map[string]int)
		lowlink  = make(map[string]int)
		onStack  = make(map[string]bool)
		stack    []string
		cyclic   = make(map[string]struct{})
		visit    func(id string)
		selfLoop = func(id string) bool {
			for _, d := range m[id] {
				if d == id {
					return true
				}
			}
			return false
		}
	)

	visit = func(id string) {
		indexOf[id] = index
		lowlink[id] = index
		index++
		stack = append(stack, id)
		onStack[id] = true

		for _, dep := range m[id] {
			if _, seen := indexOf[dep]; !seen {
				visit(dep)
				lowlink[id] = min(lowlink[id], lowlink[dep])
			} else if onStack[dep] {
				lowlink[id] = min(lowlink[id], indexOf[dep])
			}
		}

		if lowlink[id] != indexOf[id] {
			return
		}
		// id is the root of a component: pop it.
		var component []string
		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[top] = false
			component = append(component, top)
			if top == id {
				break
			}
		}
		if len(component) > 1 || selfLoop(id) {
			for _, c := range component {
				cyclic[c] = struct{}{}
			}
		}
	}

	for _, id := range m.nodes() {
		if _, seen := indexOf[id]; !seen {
			visit(id)
		}
	}
	return sortedKeys(cyclic)
}

// TopologicalSort orders every id so that it follows all ids it depends on,
// using Kahn's algorithm with a FIFO queue seeded in sorted order. The order
// is stable for a given map. A cycle yields *CircularDependencyError.
func TopologicalSort(m DependencyMap) ([]string, error) {
	nodes := m.nodes()
	inDegree := make(map[string]int, len(nodes))
	dependents := make(map[string][]string, len(nodes))

	for _, id := range nodes {
		deps := dedupe(m[id])
		inDegree[id] = len(deps)
		for _, d := range deps {
			dependents[d] = append(dependents[d], id)
		}
	}

	queue := make([]string, 0, len(nodes))
	for _, id := range nodes {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]string, 0, len(nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, dep := range dependents[id] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(order) != len(nodes) {
		return nil, &CircularDependencyError{IDs: DetectCircularDependencies(m)}
	}
	return order, nil
}

// Dependents returns the ids that directly reference id, sorted.
func (m DependencyMap) Dependents(id string) []string {
	var out []string
	for k, deps := range m {
		for _, d := range deps {
			if d == id {
				out = append(out, k)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

func dedupe(ids []string) []string {
	if len(ids) < 2 {
		return ids
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
