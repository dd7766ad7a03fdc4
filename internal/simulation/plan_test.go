package simulation

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/seenimoa/roicase/internal/formula"
	"github.com/seenimoa/roicase/pkg/models"
)

func diagnosticKinds(err error) string {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return ""
	}
	kinds := make([]string, len(ve.Diagnostics))
	for i, d := range ve.Diagnostics {
		kinds[i] = d.ID + ":" + d.Kind
	}
	return strings.Join(kinds, ",")
}

func TestCompile_Diagnostics(t *testing.T) {
	tests := []struct {
		name string
		wb   *models.Workbook
		want string
	}{
		{
			name: "duplicate ids",
			wb: &models.Workbook{
				Metrics:  []models.Metric{{ID: "a"}, {ID: "a"}},
				Formulas: []models.Formula{{ID: "a", Expression: "1"}},
			},
			want: "a:duplicate_id,a:duplicate_id",
		},
		{
			name: "empty id",
			wb:   &models.Workbook{Metrics: []models.Metric{{ID: " "}}},
			want: " :empty_id",
		},
		{
			name: "invalid distribution",
			wb: &models.Workbook{Metrics: []models.Metric{
				{ID: "m", Distribution: &models.Distribution{Min: 10, Mode: 5, Max: 20}},
			}},
			want: "m:invalid_distribution",
		},
		{
			name: "expression problems are collected per id",
			wb: &models.Workbook{
				Metrics: []models.Metric{{ID: "a", Value: models.Float(1)}},
				Formulas: []models.Formula{
					{ID: "lex", Expression: "a $ 2"},
					{ID: "parse", Expression: "a +"},
					{ID: "ref", Expression: "a + ghost"},
					{ID: "fn", Expression: "npv(a)"},
					{ID: "arity", Expression: "ifnull(a)"},
					{ID: "fine", Expression: "a * 2"},
				},
			},
			want: "lex:lex,parse:parse,ref:unknown_reference,fn:unknown_function,arity:arity",
		},
		{
			name: "metric formula",
			wb: &models.Workbook{Metrics: []models.Metric{
				{ID: "m", Formula: "missing * 2"},
			}},
			want: "m:unknown_reference",
		},
		{
			name: "categories",
			wb: &models.Workbook{
				Metrics:  []models.Metric{{ID: "a"}},
				Formulas: []models.Formula{{ID: "f", Expression: "a"}},
				Categories: []models.Category{
					{ID: "bad", Type: "revenue"},
					{ID: "c", Type: models.CategoryCost, MetricIDs: []string{"a", "f", "nope"}},
				},
			},
			want: "bad:invalid_category,c:unknown_metric,c:unknown_metric",
		},
		{
			name: "cycle alongside other problems",
			wb: &models.Workbook{
				Formulas: []models.Formula{
					{ID: "x", Expression: "y"},
					{ID: "y", Expression: "x"},
					{ID: "z", Expression: "nope"},
				},
			},
			want: "z:unknown_reference,x,y:circular_dependency",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := Compile(tt.wb, CompileOptions{})
			if plan != nil {
				t.Fatal("invalid workbook produced a plan")
			}
			assertEqual(t, tt.want, diagnosticKinds(err))
		})
	}
}

func TestCompile_ValidationErrorUnwraps(t *testing.T) {
	wb := &models.Workbook{
		Formulas: []models.Formula{
			{ID: "x", Expression: "x + 1"},
			{ID: "bad", Expression: "1 +"},
		},
	}
	_, err := Compile(wb, CompileOptions{})

	var cycle *formula.CircularDependencyError
	assertTrue(t, errors.As(err, &cycle))
	assertEqual(t, "x", strings.Join(cycle.IDs, ","))

	var pe *formula.ParseError
	assertTrue(t, errors.As(err, &pe))
	assertTrue(t, strings.Contains(err.Error(), "workbook has 2 problem(s)"))
}

func TestCompile_SelfReference(t *testing.T) {
	wb := &models.Workbook{Metrics: []models.Metric{{ID: "m", Unit: "$", Formula: "m * 2"}}}
	_, err := Compile(wb, CompileOptions{})
	var cycle *formula.CircularDependencyError
	assertTrue(t, errors.As(err, &cycle))
	assertEqual(t, "m", strings.Join(cycle.IDs, ","))
}

func TestCompile_DepthLimit(t *testing.T) {
	deep := strings.Repeat("(", 10) + "1" + strings.Repeat(")", 10)
	wb := &models.Workbook{Formulas: []models.Formula{{ID: "f", Expression: deep}}}

	_, err := Compile(wb, CompileOptions{})
	assertNoErr(t, err)

	_, err = Compile(wb, CompileOptions{MaxDepth: 5})
	assertEqual(t, "f:parse", diagnosticKinds(err))
}

func TestCompile_OrderAndAccessors(t *testing.T) {
	wb := &models.Workbook{
		Metrics: []models.Metric{
			{ID: "price", Distribution: &models.Distribution{Min: 1, Mode: 2, Max: 4}},
			{ID: "units", Value: models.Float(10)},
			{ID: "revenue", Unit: "$", Formula: "price * units"},
		},
		Formulas: []models.Formula{
			{ID: "margin", Expression: "revenue - cost"},
			{ID: "cost", Expression: "units * 0.5"},
		},
	}
	plan, err := Compile(wb, DefaultCompileOptions())
	assertNoErr(t, err)

	assertEqual(t, "price,units,revenue,margin,cost", strings.Join(plan.IDs(), ","))
	assertEqual(t, "price", strings.Join(plan.StochasticIDs(), ","))
	assertEqual(t, "cost,revenue,margin", strings.Join(plan.ComputedIDs(), ","))
	assertEqual(t, "price,units,cost,revenue,margin", strings.Join(plan.Order(), ","))
	assertEqual(t, "cost,revenue", strings.Join(plan.Dependencies()["margin"], ","))
	assertEqual(t, wb.Fingerprint(), plan.Fingerprint())

	est := plan.PointEstimates()
	assertFloat(t, 20, est["revenue"])
	assertFloat(t, 5, est["cost"])
	assertFloat(t, 15, est["margin"])
}

func TestCompile_NilWorkbook(t *testing.T) {
	_, err := Compile(nil, CompileOptions{})
	assertTrue(t, err != nil)
}

func TestPlanEnv_DrivesREPL(t *testing.T) {
	plan, err := Compile(sensitivityWorkbook(), DefaultCompileOptions())
	assertNoErr(t, err)

	var out bytes.Buffer
	in := strings.NewReader("savings - license\n.deps savings\n.quit\n")
	formula.NewREPL(plan.Env(), in, &out).Run()

	output := out.String()
	assertTrue(t, strings.Contains(output, "→ 700.0000"))
	assertTrue(t, strings.Contains(output, "savings uses:    hours_saved"))
}

// ════════════════════════════════════════════════════════════════════
// Cash flow model
// ════════════════════════════════════════════════════════════════════

func TestCashFlowModel_Project(t *testing.T) {
	m := DefaultCashFlowModel()
	b, c, n := make([]float64, 3), make([]float64, 3), make([]float64, 3)
	m.Project(100, 50, b, c, n)

	assertFloat(t, 100, b[0])
	assertFloat(t, 110, b[1])
	assertFloat(t, 121, b[2])
	assertFloat(t, 50, c[0])
	assertFloat(t, 47.5, c[1])
	assertFloat(t, 45.125, c[2])
	assertFloat(t, 75.875, n[2])
}

func TestCashFlowModel_NPV(t *testing.T) {
	m := DefaultCashFlowModel()
	assertFloat(t, 100/1.1+100/1.21+100/1.331, m.NPV([]float64{100, 100, 100}, 0.1))
	assertFloat(t, 300, m.NPV([]float64{100, 100, 100}, 0))
	assertFloat(t, 0, m.NPV(nil, 0.1))
}

func TestCashFlowModel_DiscountRate(t *testing.T) {
	m := DefaultCashFlowModel()
	assertFloat(t, 0.25, m.DiscountRate(0.1, false))
	assertFloat(t, 0.1, m.DiscountRate(0.1, true))
	assertFloat(t, 0.25, m.DiscountRate(math.NaN(), true))
	assertFloat(t, 0.25, m.DiscountRate(math.Inf(1), true))
	assertFloat(t, 0.25, m.DiscountRate(-1, true))
	assertFloat(t, 0, m.DiscountRate(0, true))
}

func TestCashFlowModel_Payback(t *testing.T) {
	m := DefaultCashFlowModel()
	tests := []struct {
		name string
		b, c float64
		want float64
	}{
		{"no costs", 10, 0, 0},
		{"ten months", 220, 100, 10},
		{"first month", 1300, 100, 1},
		{"never", 0, 100, 36},
		{"third year", 130, 100, 28},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, c, n := make([]float64, 3), make([]float64, 3), make([]float64, 3)
			m.Project(tt.b, tt.c, b, c, n)
			assertFloat(t, tt.want, m.PaybackMonths(b, c))
		})
	}

	assertTrue(t, math.IsNaN(m.PaybackMonths([]float64{math.NaN(), 1, 1}, []float64{0, 0, 0})))
	assertEqual(t, 36, m.SentinelMonths())
}
