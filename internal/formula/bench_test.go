package formula

import (
	"fmt"
	"testing"
)

// ── Lexer Benchmarks ──

func BenchmarkTokenizeSimple(b *testing.B) {
	input := "a + b"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Tokenize(input)
	}
}

func BenchmarkTokenizeComplex(b *testing.B) {
	input := "ifnull(revenue * (1 - churn_rate) / max(seats, 1), 0) - avg(license_cost, support_cost, 0.5 * hosting)"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Tokenize(input)
	}
}

// ── Parser Benchmarks ──

func BenchmarkParseComplex(b *testing.B) {
	input := "ifnull(revenue * (1 - churn_rate) / max(seats, 1), 0) - avg(license_cost, support_cost, 0.5 * hosting)"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Parse(input)
	}
}

// ── Evaluator Benchmarks ──

func BenchmarkEvaluate(b *testing.B) {
	node, _ := Parse("ifnull(revenue * (1 - churn_rate) / max(seats, 1), 0) - cost")
	vals := MapResolver(map[string]float64{"revenue": 1200, "churn_rate": 0.1, "seats": 40, "cost": 12})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Evaluate(node, vals)
	}
}

func BenchmarkProgramEval(b *testing.B) {
	node, _ := Parse("ifnull(revenue * (1 - churn_rate) / max(seats, 1), 0) - cost")
	index := map[string]int{"revenue": 0, "churn_rate": 1, "seats": 2, "cost": 3}
	prog := Bind(node, func(id string) (int, bool) { i, ok := index[id]; return i, ok })
	slots := []float64{1200, 0.1, 40, 12}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		prog.Eval(slots)
	}
}

// ── Dependency Benchmarks ──

func BenchmarkTopologicalSort(b *testing.B) {
	deps := make(DependencyMap, 200)
	for i := 0; i < 200; i++ {
		id := fmt.Sprintf("f%03d", i)
		if i > 0 {
			deps[id] = []string{fmt.Sprintf("f%03d", i-1), fmt.Sprintf("m%03d", i)}
		} else {
			deps[id] = nil
		}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		TopologicalSort(deps)
	}
}
