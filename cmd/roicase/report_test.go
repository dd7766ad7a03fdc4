package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/seenimoa/roicase/pkg/models"
)

func TestPrintResult(t *testing.T) {
	wb := &models.Workbook{Name: "helpdesk"}
	r := &models.SimulationResult{
		NPV:           models.Stats{P10: -1000, P50: 2500, P90: 6000, Mean: 2600, Std: 1200},
		PaybackPeriod: models.Payback{P10: 4, P50: 9, P90: 36},
		YearlyResults: []models.YearResult{
			{Year: 1, Benefits: models.Stats{Mean: 3000}, Costs: models.Stats{Mean: 1000}, Net: models.Stats{Mean: 2000}},
		},
		CategoryContributions: []models.CategoryContribution{
			{CategoryID: "costs", Contribution: -1000, Percentage: -38.46},
			{CategoryID: "benefits", Name: "Savings", Contribution: 3600, Percentage: 138.46},
		},
		SensitivityAnalysis: []models.Sensitivity{{MetricID: "hours_saved", Impact: 0.9}},
		Metadata:            models.RunMetadata{RunID: "r1", Iterations: 500, DurationMs: 1500, HorizonYears: 3, InvalidTrials: 2},
	}

	var buf bytes.Buffer
	printResult(&buf, wb, r, "$")
	out := buf.String()

	for _, want := range []string{
		"helpdesk: 500 trials in 1.5s",
		"P50 $2,500.00",
		"-$1,000.00",
		"> 36 mo",
		"2 trial(s) produced no NPV",
		"+138.46%",
		"hours_saved",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Savings") > strings.Index(out, "costs") {
		t.Error("categories should be ordered by absolute contribution")
	}
}

func TestProgressPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := progressPrinter(&buf)
	p(10, 100)
	p(20, 100) // throttled
	p(100, 100)

	out := buf.String()
	if strings.Count(out, "\r") != 2 {
		t.Errorf("expected 2 redraws, got %q", out)
	}
	if !strings.Contains(out, "100%  100/100 trials") {
		t.Errorf("final redraw missing: %q", out)
	}
}
