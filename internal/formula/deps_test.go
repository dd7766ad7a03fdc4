package formula

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"
)

// ════════════════════════════════════════════════════════════════════
// Dependency Analysis Tests
// ════════════════════════════════════════════════════════════════════

func mustParseAll(t *testing.T, exprs map[string]string) map[string]Node {
	t.Helper()
	out := make(map[string]Node, len(exprs))
	for id, expr := range exprs {
		node, err := Parse(expr)
		assertNoErr(t, err)
		out[id] = node
	}
	return out
}

func TestCollectReferences(t *testing.T) {
	node, err := Parse("max(a, b) + a * -c / ifnull(d, 2)")
	assertNoErr(t, err)

	refs := CollectReferences(node)
	assertEqual(t, 4, len(refs))
	for _, id := range []string{"a", "b", "c", "d"} {
		_, ok := refs[id]
		assertTrue(t, ok)
	}
	_, isRef := refs["max"]
	assertTrue(t, !isRef)
	assertEqual(t, "a,b,c,d", strings.Join(References(node), ","))

	lit, _ := Parse("1 + 2")
	assertEqual(t, 0, len(CollectReferences(lit)))
}

func TestBuildDependencyMap(t *testing.T) {
	deps := BuildDependencyMap(mustParseAll(t, map[string]string{
		"total":  "a + b + a",
		"margin": "total / revenue",
		"flat":   "42",
	}))
	assertEqual(t, "a,b", strings.Join(deps["total"], ","))
	assertEqual(t, "revenue,total", strings.Join(deps["margin"], ","))
	assertEqual(t, 0, len(deps["flat"]))
	assertEqual(t, "margin", strings.Join(deps.Dependents("total"), ","))
}

func TestDetectCircularDependencies(t *testing.T) {
	tests := []struct {
		name string
		deps DependencyMap
		want string
	}{
		{"acyclic", DependencyMap{"c": {"a", "b"}, "d": {"c"}}, ""},
		{"mutual", DependencyMap{"x": {"y"}, "y": {"x"}}, "x,y"},
		{"self", DependencyMap{"a": {"a"}, "b": {"a"}}, "a"},
		{"ring of three with tail", DependencyMap{"a": {"b"}, "b": {"c"}, "c": {"a"}, "d": {"a"}}, "a,b,c"},
		{"two cycles", DependencyMap{"a": {"b"}, "b": {"a"}, "p": {"q"}, "q": {"r"}, "r": {"p"}, "z": {}}, "a,b,p,q,r"},
		{"cycle behind leaf", DependencyMap{"m": {"leaf", "n"}, "n": {"m"}}, "m,n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertEqual(t, tt.want, strings.Join(DetectCircularDependencies(tt.deps), ","))
		})
	}
}

func TestTopologicalSort(t *testing.T) {
	order, err := TopologicalSort(DependencyMap{"total": {"a", "b"}})
	assertNoErr(t, err)
	assertEqual(t, "a,b,total", strings.Join(order, ","))

	order, err = TopologicalSort(DependencyMap{"c": {"b"}, "b": {"a"}})
	assertNoErr(t, err)
	assertEqual(t, "a,b,c", strings.Join(order, ","))

	// Leaves and unreferenced keys both sort first.
	order, err = TopologicalSort(DependencyMap{"z": {}, "y": {"x"}})
	assertNoErr(t, err)
	assertEqual(t, "x,z,y", strings.Join(order, ","))
}

func TestTopologicalSort_Cycle(t *testing.T) {
	_, err := TopologicalSort(DependencyMap{"x": {"y"}, "y": {"x"}, "ok": {"a"}})
	var cycle *CircularDependencyError
	if !errors.As(err, &cycle) {
		t.Fatalf("want *CircularDependencyError, got %v", err)
	}
	assertEqual(t, "x,y", strings.Join(cycle.IDs, ","))
	assertEqual(t, KindCircularDependency, ErrorKind(err))

	_, err = TopologicalSort(DependencyMap{"self": {"self"}})
	assertTrue(t, errors.As(err, &cycle))
	assertEqual(t, "self", strings.Join(cycle.IDs, ","))
}

func TestTopologicalSort_Stable(t *testing.T) {
	deps := DependencyMap{"e": {"c", "d"}, "d": {"a"}, "c": {"a", "b"}, "f": {}}
	first, err := TopologicalSort(deps)
	assertNoErr(t, err)
	for i := 0; i < 20; i++ {
		again, err := TopologicalSort(deps)
		assertNoErr(t, err)
		assertEqual(t, strings.Join(first, ","), strings.Join(again, ","))
	}
}

func TestTopologicalSort_RandomAcyclicGraphs(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for trial := 0; trial < 50; trial++ {
		n := 2 + rng.IntN(30)
		deps := make(DependencyMap, n)
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("n%02d", i)
			var d []string
			for j := 0; j < i; j++ {
				if rng.Float64() < 0.2 {
					d = append(d, fmt.Sprintf("n%02d", j))
				}
			}
			deps[id] = d
		}

		assertEqual(t, 0, len(DetectCircularDependencies(deps)))
		order, err := TopologicalSort(deps)
		assertNoErr(t, err)
		assertEqual(t, n, len(order))

		pos := make(map[string]int, len(order))
		for i, id := range order {
			pos[id] = i
		}
		for id, ds := range deps {
			for _, d := range ds {
				if pos[d] >= pos[id] {
					t.Fatalf("trial %d: %s sorted before its dependency %s", trial, id, d)
				}
			}
		}
	}
}

func TestDetectCircularDependencies_RandomCycles(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	for trial := 0; trial < 30; trial++ {
		length := 1 + rng.IntN(6)
		deps := DependencyMap{}
		for i := 0; i < length; i++ {
			deps[fmt.Sprintf("c%d", i)] = []string{fmt.Sprintf("c%d", (i+1)%length), "leaf"}
		}
		deps["tail"] = []string{"c0"}

		got := DetectCircularDependencies(deps)
		assertEqual(t, length, len(got))
		for i, id := range got {
			assertEqual(t, fmt.Sprintf("c%d", i), id)
		}
	}
}
