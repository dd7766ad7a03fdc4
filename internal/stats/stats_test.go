package stats

import (
	"math"
	"math/rand/v2"
	"testing"
)

func TestQuantile(t *testing.T) {
	xs := []float64{5, 1, 4, 2, 3}
	tests := []struct {
		q    float64
		want float64
	}{
		{0, 1},
		{0.1, 1.4},
		{0.25, 2},
		{0.5, 3},
		{0.9, 4.6},
		{1, 5},
		{-0.5, 1},
		{2, 5},
	}
	for _, tt := range tests {
		assertFloat(t, tt.want, Quantile(xs, tt.q))
	}
	// Input is left untouched.
	assertFloat(t, 5, xs[0])

	assertFloat(t, 0, Quantile(nil, 0.5))
	assertFloat(t, 7, Quantile([]float64{7}, 0.9))
	assertFloat(t, 2, Quantile([]float64{2, 2, 2, 2}, 0.3))

	if got := Quantile([]float64{1, 2, 3}, math.NaN()); !math.IsNaN(got) {
		t.Errorf("Quantile(q=NaN) = %v, want NaN", got)
	}
}

func TestQuantile_Monotone(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for trial := 0; trial < 100; trial++ {
		xs := make([]float64, 1+rng.IntN(200))
		for i := range xs {
			xs[i] = rng.NormFloat64() * 100
		}
		p10, p50, p90 := Quantile(xs, 0.1), Quantile(xs, 0.5), Quantile(xs, 0.9)
		if !(p10 <= p50 && p50 <= p90) {
			t.Fatalf("trial %d: p10=%v p50=%v p90=%v", trial, p10, p50, p90)
		}
	}
}

func TestMeanStdDev(t *testing.T) {
	xs := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assertFloat(t, 5, Mean(xs))
	assertFloat(t, math.Sqrt(32.0/7.0), StdDev(xs))

	assertFloat(t, 0, Mean(nil))
	assertFloat(t, 0, StdDev(nil))
	assertFloat(t, 0, StdDev([]float64{42}))
	assertFloat(t, 0, StdDev([]float64{3, 3, 3}))
}

func TestCorrelation(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	assertFloat(t, 1, Correlation(x, []float64{2, 4, 6, 8, 10}))
	assertFloat(t, -1, Correlation(x, []float64{10, 8, 6, 4, 2}))
	assertFloat(t, 0, Correlation(x, []float64{7, 7, 7, 7, 7}))
	assertFloat(t, 0, Correlation(x, []float64{1, 2}))
	assertFloat(t, 0, Correlation(nil, nil))
	assertFloat(t, 0, Correlation([]float64{1}, []float64{1}))

	r := Correlation(x, []float64{1, 3, 2, 5, 4})
	assertFloat(t, 0.8, r)
}

func TestSummarize(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, math.NaN(), math.Inf(1)}
	s, dropped := Summarize(xs)
	if dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}
	assertFloat(t, 1.9, s.P10)
	assertFloat(t, 3.25, s.P25)
	assertFloat(t, 5.5, s.P50)
	assertFloat(t, 7.75, s.P75)
	assertFloat(t, 9.1, s.P90)
	assertFloat(t, 5.5, s.Mean)
	assertFloat(t, math.Sqrt(82.5/9), s.Std)

	empty, dropped := Summarize([]float64{math.NaN()})
	if dropped != 1 || empty.P50 != 0 || empty.Mean != 0 || empty.Std != 0 {
		t.Errorf("all-NaN summary = %+v (dropped %d)", empty, dropped)
	}
}

func assertFloat(t *testing.T, want, got float64) {
	t.Helper()
	if math.Abs(want-got) > 1e-6 {
		t.Errorf("want %f, got %f", want, got)
	}
}
