// Package sampler draws random variates for uncertain business-case inputs.
//
// Every function takes its uniform randomness from an explicit Source, so a
// sample is a deterministic function of the uniform stream it consumes.
package sampler

import (
	"math"
	"math/rand/v2"
)

// Source yields uniform draws in [0, 1).
type Source interface {
	Float64() float64
}

// NewSource returns an explicitly seeded PCG stream. Different stream values
// with the same seed give independent sequences, one per worker.
func NewSource(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream))
}

// ════════════════════════════════════════════════════════════════════
// Base variates
// ════════════════════════════════════════════════════════════════════

// Uniform returns a draw in the open interval (0, 1).
func Uniform(src Source) float64 {
	for {
		u := src.Float64()
		if u > 0 {
			return u
		}
	}
}

// Normal returns a standard normal variate using the Box-Muller transform
// over two uniform draws.
func Normal(src Source) float64 {
	u1 := Uniform(src)
	u2 := src.Float64()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

// Gamma returns a Gamma(shape, 1) variate using Marsaglia and Tsang's method.
// Shapes below 1 draw Gamma(shape+1) and scale by U^(1/shape).
func Gamma(src Source, shape float64) float64 {
	if shape <= 0 || math.IsNaN(shape) {
		return math.NaN()
	}
	if shape < 1 {
		return Gamma(src, shape+1) * math.Pow(Uniform(src), 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1 / math.Sqrt(9*d)
	for {
		x := Normal(src)
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := Uniform(src)
		x2 := x * x
		if u < 1-0.0331*x2*x2 {
			return d * v
		}
		if math.Log(u) < 0.5*x2+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}

// Beta returns a Beta(alpha, beta) variate as Ga/(Ga+Gb).
func Beta(src Source, alpha, beta float64) float64 {
	x := Gamma(src, alpha)
	y := Gamma(src, beta)
	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}

// ════════════════════════════════════════════════════════════════════
// Beta-PERT
// ════════════════════════════════════════════════════════════════════

// pertWeight is the weight PERT puts on the most likely value.
const pertWeight = 4.0

// PERTShape returns the Beta shape parameters for a (min, mode, max) triple.
func PERTShape(min, mode, max float64) (alpha, beta float64) {
	span := max - min
	alpha = 1 + pertWeight*(mode-min)/span
	beta = 1 + pertWeight*(max-mode)/span
	return alpha, beta
}

// PERTMean is the expected value of the Beta-PERT distribution.
func PERTMean(min, mode, max float64) float64 {
	return (min + pertWeight*mode + max) / (pertWeight + 2)
}

// PERT draws one value from the Beta-PERT distribution over [min, max] with
// the given mode. A degenerate range returns min without consuming any
// draws. Inputs violating min <= mode <= max yield NaN.
func PERT(src Source, min, mode, max float64) float64 {
	if min == max {
		return min
	}
	if !(min <= mode && mode <= max) {
		return math.NaN()
	}
	alpha, beta := PERTShape(min, mode, max)
	return min + Beta(src, alpha, beta)*(max-min)
}
