package temporal

import (
	"fmt"
	"math"
	"strings"

	"github.com/RyanBlaney/ringdown/algorithms/common"
)

// LockMode selects how successive periods are validated.
type LockMode string

const (
	// LockStrict compares every period with the first measured period.
	LockStrict LockMode = "strict"
	// LockResync compares every period with the previously accepted period,
	// following slow drift. The run still ends at the first violation.
	LockResync LockMode = "resync"
)

// ParseLockMode converts a configuration string into a LockMode.
func ParseLockMode(s string) (LockMode, error) {
	switch LockMode(strings.ToLower(strings.TrimSpace(s))) {
	case LockStrict, "":
		return LockStrict, nil
	case LockResync:
		return LockResync, nil
	default:
		return LockStrict, fmt.Errorf("unknown lock mode %q", s)
	}
}

// Crossing is a rising crossing of the baseline.
type Crossing struct {
	TimeUs      float64 `json:"time_us"`      // linearly interpolated
	SampleIndex int     `json:"sample_index"` // smoothed sample just before the crossing
}

// CrossingDetector finds rising baseline crossings and validates the run of
// crossings whose period stays within tolerance.
type CrossingDetector struct {
	tolerance float64 // fraction, e.g. 0.15
	mode      LockMode
}

// NewCrossingDetector creates a strict detector with the tolerance in percent.
func NewCrossingDetector(tolerancePct float64) *CrossingDetector {
	return NewCrossingDetectorWithMode(tolerancePct, LockStrict)
}

// NewCrossingDetectorWithMode creates a detector with an explicit lock mode.
func NewCrossingDetectorWithMode(tolerancePct float64, mode LockMode) *CrossingDetector {
	if mode == "" {
		mode = LockStrict
	}
	return &CrossingDetector{
		tolerance: tolerancePct / 100.0,
		mode:      mode,
	}
}

// Detect returns both the raw rising crossings and the validated prefix.
func (cd *CrossingDetector) Detect(timeUs, smoothed []float64, baseline float64) (raw, valid []Crossing) {
	raw = cd.FindRising(timeUs, smoothed, baseline)
	return raw, cd.Lock(raw)
}

// FindRising returns every i where smoothed[i] <= baseline < smoothed[i+1].
func (cd *CrossingDetector) FindRising(timeUs, smoothed []float64, baseline float64) []Crossing {
	n := min(len(timeUs), len(smoothed))
	var crossings []Crossing

	for i := 0; i+1 < n; i++ {
		lo, hi := smoothed[i], smoothed[i+1]
		if !(lo <= baseline && baseline < hi) {
			continue
		}
		f := (baseline - lo) / (hi - lo)
		crossings = append(crossings, Crossing{
			TimeUs:      common.Lerp(timeUs[i], timeUs[i+1], f),
			SampleIndex: i,
		})
	}

	return crossings
}

// Lock returns the longest prefix of raw whose periods stay within tolerance.
// The first two crossings are always accepted and set the reference period;
// the first crossing outside tolerance ends the run. A deviation exactly equal
// to the tolerance is accepted.
func (cd *CrossingDetector) Lock(raw []Crossing) []Crossing {
	if len(raw) < 2 {
		return []Crossing{}
	}

	valid := make([]Crossing, 2, len(raw))
	copy(valid, raw[:2])
	ref := raw[1].TimeUs - raw[0].TimeUs

	for _, c := range raw[2:] {
		period := c.TimeUs - valid[len(valid)-1].TimeUs
		if math.Abs(period-ref) > cd.tolerance*ref {
			break
		}
		valid = append(valid, c)
		if cd.mode == LockResync {
			ref = period
		}
	}

	return valid
}

// AveragePeriod is the mean successive difference of crossing times, or zero
// with fewer than two crossings.
func AveragePeriod(crossings []Crossing) float64 {
	if len(crossings) < 2 {
		return 0
	}
	times := make([]float64, len(crossings))
	for i, c := range crossings {
		times[i] = c.TimeUs
	}
	return common.MeanDiff(times)
}
