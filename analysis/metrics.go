package analysis

import (
	"math"

	"github.com/RyanBlaney/ringdown/algorithms/temporal"
)

const secondsPerMicro = 1e-6

// Metrics are the physical quantities derived from a successful fit.
type Metrics struct {
	FrequencyKhz                float64 `json:"frequency_khz"`
	DampingCoefficientPerSecond float64 `json:"damping_coefficient_per_second"`
	LogDecrement                float64 `json:"log_decrement"`
	PeriodUs                    float64 `json:"period_us"`
	ValidCycleCount             int     `json:"valid_cycle_count"`
}

// DeriveMetrics converts a fit (Beta per microsecond) and the average period
// into reportable metrics. ok is false without a fit or a positive period.
func DeriveMetrics(fit *temporal.FitParams, avgPeriodUs float64, peakCount int) (*Metrics, bool) {
	if fit == nil || !(avgPeriodUs > 0) {
		return nil, false
	}

	periodSec := avgPeriodUs * secondsPerMicro
	logDecrement := math.Abs(fit.Beta) * avgPeriodUs

	return &Metrics{
		FrequencyKhz:                1 / periodSec / 1000,
		DampingCoefficientPerSecond: logDecrement / periodSec,
		LogDecrement:                logDecrement,
		PeriodUs:                    avgPeriodUs,
		ValidCycleCount:             peakCount,
	}, true
}
