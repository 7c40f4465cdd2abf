package temporal

import (
	"errors"
	"math"

	"github.com/RyanBlaney/ringdown/algorithms/common"
)

var (
	// ErrInsufficientPeaks means fewer than two peaks lie above the baseline.
	ErrInsufficientPeaks = errors.New("fewer than two peaks above baseline")
	// ErrDegenerateFit means every qualifying peak has the same time.
	ErrDegenerateFit = errors.New("degenerate envelope fit: identical peak times")
)

// FitParams describes the envelope y(t) = A*exp(Beta*t) + C.
type FitParams struct {
	A        float64 `json:"a"`
	Beta     float64 `json:"beta"` // per microsecond; negative for decay
	C        float64 `json:"c"`    // fixed to the baseline
	RSquared float64 `json:"r_squared"`
	Points   int     `json:"points"` // peaks that entered the regression
}

// Evaluate returns the envelope value at t microseconds.
func (f FitParams) Evaluate(t float64) float64 {
	return f.A*math.Exp(f.Beta*t) + f.C
}

// Curve evaluates the envelope at every time in times.
func (f FitParams) Curve(times []float64) []float64 {
	out := make([]float64, len(times))
	for i, t := range times {
		out[i] = f.Evaluate(t)
	}
	return out
}

// Decaying reports whether the envelope shrinks over time.
func (f FitParams) Decaying() bool {
	return f.Beta < 0
}

// TimeConstantUs returns 1/|Beta|, or +Inf for a flat envelope.
func (f FitParams) TimeConstantUs() float64 {
	if f.Beta == 0 {
		return math.Inf(1)
	}
	return 1 / math.Abs(f.Beta)
}

// EnvelopeFitter fits an exponential envelope to cycle peaks by linear
// regression of ln(y-C) against t, with C held at the baseline.
type EnvelopeFitter struct{}

// NewEnvelopeFitter creates a new envelope fitter
func NewEnvelopeFitter() *EnvelopeFitter {
	return &EnvelopeFitter{}
}

// Fit returns the envelope through peaks. Peaks at or below the baseline have
// no logarithm and are skipped. The sign of Beta is not enforced; a growing
// envelope is returned as computed.
func (ef *EnvelopeFitter) Fit(peaks []Peak, baseline float64) (*FitParams, error) {
	if len(peaks) < 2 {
		return nil, ErrInsufficientPeaks
	}

	times := make([]float64, 0, len(peaks))
	logs := make([]float64, 0, len(peaks))
	for _, p := range peaks {
		if p.Voltage > baseline {
			times = append(times, p.TimeUs)
			logs = append(logs, math.Log(p.Voltage-baseline))
		}
	}
	if len(times) < 2 {
		return nil, ErrInsufficientPeaks
	}

	line, ok := common.LinRegression(times, logs)
	if !ok {
		return nil, ErrDegenerateFit
	}

	return &FitParams{
		A:        math.Exp(line.Intercept),
		Beta:     line.Slope,
		C:        baseline,
		RSquared: line.RSquared,
		Points:   line.N,
	}, nil
}
