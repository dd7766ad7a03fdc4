package simulation

import (
	"math"
	"sort"

	"github.com/seenimoa/roicase/internal/stats"
	"github.com/seenimoa/roicase/pkg/models"
)

// DefaultTopK bounds the number of tornado inputs reported.
const DefaultTopK = 8

// rankSensitivity correlates every sampled input with NPV and keeps the topK
// strongest by absolute correlation. Trials with a non-finite NPV or sample
// are left out of that input's correlation.
func rankSensitivity(ids []string, samples [][]float64, npv []float64, topK int) []models.Sensitivity {
	out := make([]models.Sensitivity, 0, len(ids))
	xs := make([]float64, 0, len(npv))
	ys := make([]float64, 0, len(npv))
	for i, id := range ids {
		xs, ys = xs[:0], ys[:0]
		for t, y := range npv {
			x := samples[i][t]
			if !finite(x) || !finite(y) {
				continue
			}
			xs = append(xs, x)
			ys = append(ys, y)
		}
		out = append(out, models.Sensitivity{MetricID: id, Impact: stats.Correlation(xs, ys)})
	}

	sort.SliceStable(out, func(a, b int) bool {
		ia, ib := math.Abs(out[a].Impact), math.Abs(out[b].Impact)
		if ia != ib {
			return ia > ib
		}
		return out[a].MetricID < out[b].MetricID
	})
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

// categoryContributions reports each category's mean signed contribution and
// its share of mean NPV in percent (0 when mean NPV is exactly 0).
func categoryContributions(plan *Plan, totals [][]float64, meanNPV float64) []models.CategoryContribution {
	out := make([]models.CategoryContribution, len(plan.categories))
	for i, c := range plan.categories {
		finiteTotals, _ := stats.Finite(totals[i])
		mean := stats.Mean(finiteTotals)
		if !c.benefit {
			mean = -mean
		}
		pct := 0.0
		if meanNPV != 0 {
			pct = mean / meanNPV * 100
		}
		out[i] = models.CategoryContribution{
			CategoryID:   c.id,
			Name:         c.name,
			Contribution: mean,
			Percentage:   pct,
		}
	}
	return out
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
