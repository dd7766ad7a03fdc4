package models

import (
	"encoding/json"
	"math"
	"testing"
)

// ── Category Tests ──

func TestCategoryType(t *testing.T) {
	tests := []struct {
		in      CategoryType
		valid   bool
		benefit bool
	}{
		{CategoryBenefit, true, true},
		{CategoryCost, true, false},
		{"Benefit", true, true},
		{"COST", true, false},
		{"revenue", false, false},
		{"", false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			if got := tt.in.Valid(); got != tt.valid {
				t.Errorf("Valid(): got %v, want %v", got, tt.valid)
			}
			if got := tt.in.IsBenefit(); got != tt.benefit {
				t.Errorf("IsBenefit(): got %v, want %v", got, tt.benefit)
			}
		})
	}
}

// ── Metric Tests ──

func TestDistributionValid(t *testing.T) {
	tests := []struct {
		d    Distribution
		want bool
	}{
		{Distribution{1, 2, 3}, true},
		{Distribution{5, 5, 5}, true},
		{Distribution{3, 2, 4}, false},
		{Distribution{1, 5, 4}, false},
	}
	for _, tt := range tests {
		if got := tt.d.Valid(); got != tt.want {
			t.Errorf("%+v.Valid(): got %v, want %v", tt.d, got, tt.want)
		}
	}
}

func TestMetricKinds(t *testing.T) {
	fixed := Metric{ID: "rate", Value: Float(12)}
	sampled := Metric{ID: "hours", Value: Float(1), Distribution: &Distribution{Min: 50, Mode: 100, Max: 150}}
	computed := Metric{ID: "savings", Distribution: &Distribution{Min: 1, Mode: 2, Max: 3}, Formula: "hours * rate"}
	blank := Metric{ID: "blank", Formula: "   "}

	if fixed.IsStochastic() || fixed.HasFormula() || fixed.FixedValue() != 12 || fixed.MostLikely() != 12 {
		t.Errorf("fixed metric misclassified: %+v", fixed)
	}
	if !sampled.IsStochastic() || sampled.MostLikely() != 100 {
		t.Errorf("sampled metric misclassified: %+v", sampled)
	}
	if !computed.HasFormula() || computed.IsStochastic() {
		t.Error("a formula overrides the distribution")
	}
	if blank.HasFormula() || blank.FixedValue() != 0 {
		t.Error("whitespace formula should be ignored and missing value read as 0")
	}
}

// ── Workbook Tests ──

func testWorkbook() Workbook {
	return Workbook{
		Name: "helpdesk",
		Metrics: []Metric{
			{ID: "hours", Unit: "hours", Distribution: &Distribution{Min: 50, Mode: 100, Max: 150}},
			{ID: "rate", Unit: "$", Value: Float(12)},
		},
		Formulas:   []Formula{{ID: "savings", Expression: "hours * rate"}},
		Categories: []Category{{ID: "benefits", Type: CategoryBenefit, MetricIDs: []string{"savings"}}},
	}
}

func TestWorkbookIDs(t *testing.T) {
	wb := testWorkbook()
	got := wb.IDs()
	want := []string{"hours", "rate", "savings"}
	if len(got) != len(want) {
		t.Fatalf("IDs: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("IDs[%d]: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestWorkbookFingerprint(t *testing.T) {
	a, b := testWorkbook(), testWorkbook()
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("equal workbooks should share a fingerprint")
	}
	if len(a.Fingerprint()) != 64 {
		t.Errorf("fingerprint should be hex SHA-256, got %q", a.Fingerprint())
	}

	b.Metrics[1].Value = Float(13)
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("changing a value should change the fingerprint")
	}
}

func TestWorkbookFingerprint_NonFinite(t *testing.T) {
	finite, nan, inf := testWorkbook(), testWorkbook(), testWorkbook()
	nan.Metrics[1].Value = Float(math.NaN())
	inf.Metrics[1].Value = Float(math.Inf(1))

	if len(nan.Fingerprint()) != 64 || len(inf.Fingerprint()) != 64 {
		t.Fatalf("non-finite values should still hash, got %q and %q", nan.Fingerprint(), inf.Fingerprint())
	}
	if nan.Fingerprint() == inf.Fingerprint() {
		t.Error("NaN and +Inf workbooks should not share a fingerprint")
	}
	if nan.Fingerprint() == finite.Fingerprint() {
		t.Error("NaN workbook should not match the finite one")
	}
	if nan.Fingerprint() != nan.Fingerprint() {
		t.Error("fingerprint should be stable")
	}
}

func TestWorkbookFingerprint_FieldBoundaries(t *testing.T) {
	a, b := testWorkbook(), testWorkbook()
	a.Metrics[0].ID, a.Metrics[0].Name = "ab", "c"
	b.Metrics[0].ID, b.Metrics[0].Name = "a", "bc"
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("moving text between fields should change the fingerprint")
	}
}

func TestWorkbookJSONFieldNames(t *testing.T) {
	wb := testWorkbook()
	data, err := json.Marshal(wb)
	if err != nil {
		t.Fatalf("json.Marshal(Workbook) error: %v", err)
	}
	var generic map[string]interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		t.Fatal(err)
	}
	cats := generic["categories"].([]interface{})
	if _, ok := cats[0].(map[string]interface{})["metricIds"]; !ok {
		t.Error("categories should carry metricIds")
	}
	metrics := generic["metrics"].([]interface{})
	if _, ok := metrics[0].(map[string]interface{})["value"]; ok {
		t.Error("absent value should be omitted")
	}
}

// ── Result Tests ──

func TestSimulationResultJSON(t *testing.T) {
	r := SimulationResult{
		NPV:           Stats{P50: 1000, Mean: 1100},
		PaybackPeriod: Payback{P50: 14},
		Metadata:      RunMetadata{RunID: "abc", Iterations: 500, Seed: 42},
	}
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal(SimulationResult) error: %v", err)
	}
	var generic map[string]interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"npv", "paybackPeriod", "yearlyResults", "categoryContributions", "sensitivityAnalysis", "metadata"} {
		if _, ok := generic[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}
	if _, ok := generic["formulaOutputs"]; ok {
		t.Error("empty formulaOutputs should be omitted")
	}
	meta := generic["metadata"].(map[string]interface{})
	if meta["runId"] != "abc" || meta["seed"].(float64) != 42 {
		t.Errorf("metadata: got %v", meta)
	}
}
