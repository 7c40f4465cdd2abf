package analysis

import (
	"github.com/RyanBlaney/ringdown/algorithms/common"
	"github.com/RyanBlaney/ringdown/algorithms/temporal"
)

// NormalizedView is the zero-referenced frame used for display and export:
// time 0 is the first valid crossing and voltage 0 is the baseline.
type NormalizedView struct {
	TimeOffsetUs  float64             `json:"time_offset_us"`
	VoltageOffset float64             `json:"voltage_offset"`
	TimeUs        []float64           `json:"time_us"`
	Raw           []float64           `json:"raw"`
	Smoothed      []float64           `json:"smoothed"`
	Peaks         []temporal.Peak     `json:"peaks"`
	Crossings     []temporal.Crossing `json:"crossings"`
	Baseline      float64             `json:"baseline"` // always 0
}

// Normalize shifts every series by the first valid crossing time (or the first
// sample time when there is none) and by the baseline voltage.
func Normalize(
	timeUs, raw, smoothed []float64,
	peaks []temporal.Peak,
	valid []temporal.Crossing,
	baseline float64,
) *NormalizedView {
	var t0 float64
	switch {
	case len(valid) > 0:
		t0 = valid[0].TimeUs
	case len(timeUs) > 0:
		t0 = timeUs[0]
	}

	normPeaks := make([]temporal.Peak, len(peaks))
	for i, p := range peaks {
		normPeaks[i] = temporal.Peak{
			TimeUs:      p.TimeUs - t0,
			Voltage:     p.Voltage - baseline,
			SampleIndex: p.SampleIndex,
		}
	}

	normCrossings := make([]temporal.Crossing, len(valid))
	for i, c := range valid {
		normCrossings[i] = temporal.Crossing{
			TimeUs:      c.TimeUs - t0,
			SampleIndex: c.SampleIndex,
		}
	}

	return &NormalizedView{
		TimeOffsetUs:  t0,
		VoltageOffset: baseline,
		TimeUs:        common.Offset(timeUs, t0),
		Raw:           common.Offset(raw, baseline),
		Smoothed:      common.Offset(smoothed, baseline),
		Peaks:         normPeaks,
		Crossings:     normCrossings,
		Baseline:      0,
	}
}
