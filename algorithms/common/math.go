package common

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Basic numeric helpers shared by the analysis stages, backed by gonum

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// MeanDiff returns the mean successive difference of an ordered series, which
// telescopes to (last-first)/(n-1). Zero when fewer than two values.
func MeanDiff(data []float64) float64 {
	if len(data) < 2 {
		return 0.0
	}
	diffs := make([]float64, len(data)-1)
	for i := 1; i < len(data); i++ {
		diffs[i-1] = data[i] - data[i-1]
	}
	return Mean(diffs)
}

// Negate returns a new slice with every element sign-flipped.
func Negate(data []float64) []float64 {
	out := make([]float64, len(data))
	copy(out, data)
	floats.Scale(-1, out)
	return out
}

// Offset returns a new slice with delta subtracted from every element.
func Offset(data []float64, delta float64) []float64 {
	out := make([]float64, len(data))
	copy(out, data)
	floats.AddConst(-delta, out)
	return out
}

// LinearFit is the result of an ordinary least-squares line fit y = Intercept + Slope*x.
type LinearFit struct {
	Slope     float64
	Intercept float64
	RSquared  float64
	N         int
}

// LinRegression fits y = a + b*x with the closed-form normal equations.
// ok is false when fewer than two points are given or when all x are equal
// (zero denominator).
func LinRegression(x, y []float64) (fit LinearFit, ok bool) {
	if len(x) != len(y) || len(x) < 2 {
		return LinearFit{}, false
	}

	n := float64(len(x))
	sumX := floats.Sum(x)
	sumY := floats.Sum(y)
	sumXY := floats.Dot(x, y)
	sumX2 := floats.Dot(x, x)

	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return LinearFit{}, false
	}

	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	r2 := stat.RSquared(x, y, nil, intercept, slope)
	if math.IsNaN(r2) || math.IsInf(r2, 0) {
		// constant y: the line explains it exactly
		r2 = 1.0
	}

	return LinearFit{
		Slope:     slope,
		Intercept: intercept,
		RSquared:  r2,
		N:         len(x),
	}, true
}

// ClampInt constrains an integer to a range
func ClampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Lerp performs linear interpolation between two values
func Lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}
