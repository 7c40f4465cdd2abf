package filters

import (
	"github.com/RyanBlaney/ringdown/algorithms/common"
)

const (
	DefaultBaselineTailFraction = 0.2
	DefaultBaselineMinTail      = 10
)

// BaselineEstimator estimates the DC level a damped oscillation settles to.
//
// The level is the mean of the final max(fraction*n, minTail) samples. Heavily
// damped captures have a large leading transient and a flat tail; the tail is
// the better estimate of the probe's DC bias. Signals that have not settled by
// the end of the capture bias the estimate.
type BaselineEstimator struct {
	tailFraction float64
	minTail      int
}

// NewBaselineEstimator creates an estimator with the default tail window.
func NewBaselineEstimator() *BaselineEstimator {
	return NewBaselineEstimatorWithParams(DefaultBaselineTailFraction, DefaultBaselineMinTail)
}

// NewBaselineEstimatorWithParams creates an estimator with a custom tail window.
func NewBaselineEstimatorWithParams(tailFraction float64, minTail int) *BaselineEstimator {
	if tailFraction <= 0 || tailFraction > 1 {
		tailFraction = DefaultBaselineTailFraction
	}
	if minTail < 1 {
		minTail = 1
	}
	return &BaselineEstimator{
		tailFraction: tailFraction,
		minTail:      minTail,
	}
}

// TailLength returns how many trailing samples are averaged for a series of n.
func (b *BaselineEstimator) TailLength(n int) int {
	tail := max(int(b.tailFraction*float64(n)), b.minTail)
	return min(tail, n)
}

// Estimate returns the baseline of the smoothed series. ok is false for an
// empty series, where the baseline is undefined.
func (b *BaselineEstimator) Estimate(smoothed []float64) (baseline float64, ok bool) {
	n := len(smoothed)
	if n == 0 {
		return 0, false
	}
	return common.Mean(smoothed[n-b.TailLength(n):]), true
}
