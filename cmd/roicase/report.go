package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/seenimoa/roicase/internal/formula"
	"github.com/seenimoa/roicase/internal/simulation"
	"github.com/seenimoa/roicase/pkg/models"
	"github.com/seenimoa/roicase/pkg/utils"
)

const barWidth = 30

// progressPrinter draws a progress bar on w, redrawn at most every 100ms.
func progressPrinter(w io.Writer) func(done, total int) {
	var mu sync.Mutex
	var last time.Time
	return func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		if done < total && time.Since(last) < 100*time.Millisecond {
			return
		}
		last = time.Now()
		filled := barWidth * done / total
		fmt.Fprintf(w, "\r  [%s%s] %3d%%  %d/%d trials",
			strings.Repeat("█", filled), strings.Repeat("░", barWidth-filled),
			100*done/total, done, total)
	}
}

// printCompileError lists every diagnostic of a failed compile.
func printCompileError(err error) {
	var ve *simulation.ValidationError
	var ce *formula.CircularDependencyError
	switch {
	case errors.As(err, &ve):
		fmt.Printf("❌ %d problem(s) found:\n", len(ve.Diagnostics))
		for _, d := range ve.Diagnostics {
			where := d.ID
			if where == "" {
				where = "(workbook)"
			}
			if d.Offset >= 0 {
				where = fmt.Sprintf("%s@%d", where, d.Offset)
			}
			fmt.Printf("   %-24s %-20s %s\n", where, d.Kind, d.Message)
		}
	case errors.As(err, &ce):
		fmt.Printf("❌ circular dependency: %s\n", strings.Join(ce.IDs, " → "))
	default:
		fmt.Printf("❌ %v\n", err)
	}
}

// printResult writes the human-readable report of a run.
func printResult(w io.Writer, wb *models.Workbook, r *models.SimulationResult, unit string) {
	meta := r.Metadata
	money := func(v float64) string { return utils.FormatMoney(v, unit) }

	title := wb.Name
	if title == "" {
		title = "workbook"
	}
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════")
	fmt.Fprintf(w, "  %s: %d trials in %s\n", title, meta.Iterations, utils.FormatDuration(meta.DurationMs))
	fmt.Fprintf(w, "  run %s  seed %d  workers %d\n", meta.RunID, meta.Seed, meta.Workers)
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════")

	fmt.Fprintln(w, "\n  Net Present Value")
	fmt.Fprintf(w, "    P10 %-18s P50 %-18s P90 %s\n", money(r.NPV.P10), money(r.NPV.P50), money(r.NPV.P90))
	fmt.Fprintf(w, "    mean %s  (σ %s)\n", money(r.NPV.Mean), utils.FormatCompact(r.NPV.Std, unit))
	if meta.InvalidTrials > 0 {
		fmt.Fprintf(w, "    ⚠️  %d trial(s) produced no NPV and were excluded\n", meta.InvalidTrials)
	}

	horizon := 12 * meta.HorizonYears
	fmt.Fprintln(w, "\n  Payback Period")
	fmt.Fprintf(w, "    P10 %-10s P50 %-10s P90 %s\n",
		utils.FormatMonths(r.PaybackPeriod.P10, horizon),
		utils.FormatMonths(r.PaybackPeriod.P50, horizon),
		utils.FormatMonths(r.PaybackPeriod.P90, horizon))

	fmt.Fprintln(w, "\n  Yearly Cash Flow (mean)")
	fmt.Fprintf(w, "    %-6s %18s %18s %18s\n", "Year", "Benefits", "Costs", "Net")
	for _, y := range r.YearlyResults {
		fmt.Fprintf(w, "    %-6d %18s %18s %18s\n", y.Year,
			money(y.Benefits.Mean), money(y.Costs.Mean), money(y.Net.Mean))
	}

	if len(r.CategoryContributions) > 0 {
		contribs := append([]models.CategoryContribution(nil), r.CategoryContributions...)
		sort.SliceStable(contribs, func(i, j int) bool {
			return math.Abs(contribs[i].Contribution) > math.Abs(contribs[j].Contribution)
		})
		fmt.Fprintln(w, "\n  Category Contributions")
		for _, c := range contribs {
			name := c.Name
			if name == "" {
				name = c.CategoryID
			}
			fmt.Fprintf(w, "    %-24s %18s %10s\n", name, money(c.Contribution), utils.FormatPct(c.Percentage))
		}
	}

	if len(r.SensitivityAnalysis) > 0 {
		fmt.Fprintln(w, "\n  Sensitivity (correlation with NPV)")
		for _, s := range r.SensitivityAnalysis {
			bar := strings.Repeat("█", int(math.Abs(s.Impact)*barWidth+0.5))
			fmt.Fprintf(w, "    %-24s %+6.2f  %s\n", s.MetricID, s.Impact, bar)
		}
	}
	fmt.Fprintln(w)
}
