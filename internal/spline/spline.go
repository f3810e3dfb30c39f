// Package spline evaluates the cubic splines carried by pulse words.
package spline

import "math"

// Coefficients are spline terms in hardware sample units, constant term
// first.
type Coefficients [4]float64

// Scale converts the fixed-point terms of a word into Coefficients. The
// k-th order term is divided by 2^(k*shift); the constant term is not.
func Scale(u [4]int64, shift uint8) Coefficients {
	var c Coefficients
	for k, v := range u {
		c[k] = float64(v) / math.Exp2(float64(k)*float64(shift))
	}
	return c
}

// Evaluator turns coefficients into n samples. Implementations must be
// deterministic and free of side effects.
type Evaluator interface {
	Evaluate(c Coefficients, n int) []float64
}

// ForwardDifference evaluates by forward-difference accumulation, the way
// the pulse generator does: each step outputs the running value, then adds
// every term into the one below it.
type ForwardDifference struct{}

// Evaluate implements Evaluator.
func (ForwardDifference) Evaluate(c Coefficients, n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	v0, v1, v2, v3 := c[0], c[1], c[2], c[3]
	for i := range out {
		out[i] = v0
		v0 += v1
		v1 += v2
		v2 += v3
	}
	return out
}
