// Package stats reduces simulation sample arrays into summary statistics.
package stats

import (
	"math"
	"sort"

	"github.com/seenimoa/roicase/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Descriptive statistics
// ════════════════════════════════════════════════════════════════════

// Quantile returns the q-quantile (0 ≤ q ≤ 1) of xs by linear interpolation
// between order statistics (R type 7). xs is not modified. Empty input
// yields 0 and a NaN q yields NaN.
func Quantile(xs []float64, q float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	return quantileSorted(sorted, q)
}

func quantileSorted(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	switch {
	case math.IsNaN(q):
		return math.NaN()
	case q <= 0:
		return sorted[0]
	case q >= 1:
		return sorted[n-1]
	}
	h := float64(n-1) * q
	lo := int(math.Floor(h))
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[hi]-sorted[lo])
}

// Mean returns the arithmetic mean, 0 for empty input.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev returns the sample standard deviation (n−1 denominator), 0 when
// fewer than two values are present.
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mean := Mean(xs)
	sumSq := 0.0
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)-1))
}

// Correlation returns the Pearson correlation of x and y. It is 0 when the
// lengths differ, fewer than two pairs exist, or either series is constant.
func Correlation(x, y []float64) float64 {
	n := len(x)
	if n != len(y) || n < 2 {
		return 0
	}
	mx, my := Mean(x), Mean(y)
	var sxy, sxx, syy float64
	for i := 0; i < n; i++ {
		dx, dy := x[i]-mx, y[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0
	}
	r := sxy / math.Sqrt(sxx*syy)
	// Rounding can push |r| a hair past 1.
	return math.Max(-1, math.Min(1, r))
}

// ────────────────────────────────────────────────────────────────────
// Summaries
// ────────────────────────────────────────────────────────────────────

// Finite returns the finite values of xs and how many were dropped.
func Finite(xs []float64) ([]float64, int) {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		out = append(out, x)
	}
	return out, len(xs) - len(out)
}

// Summarize computes percentiles, mean and standard deviation over the
// finite values of xs. The second result is the number of dropped values.
func Summarize(xs []float64) (models.Stats, int) {
	finite, dropped := Finite(xs)
	sort.Float64s(finite)
	return models.Stats{
		P10:  quantileSorted(finite, 0.10),
		P25:  quantileSorted(finite, 0.25),
		P50:  quantileSorted(finite, 0.50),
		P75:  quantileSorted(finite, 0.75),
		P90:  quantileSorted(finite, 0.90),
		Mean: Mean(finite),
		Std:  StdDev(finite),
	}, dropped
}
