package temporal

// Peak is the maximum of the smoothed signal within one validated cycle.
type Peak struct {
	TimeUs      float64 `json:"time_us"`
	Voltage     float64 `json:"voltage"`
	SampleIndex int     `json:"sample_index"`
}

// PeakExtractor finds one peak per validated inter-crossing interval.
type PeakExtractor struct{}

// NewPeakExtractor creates a new peak extractor
func NewPeakExtractor() *PeakExtractor {
	return &PeakExtractor{}
}

// Extract scans the smoothed samples between consecutive crossings' sample
// indices (inclusive) and keeps the maximum when it is strictly above the
// baseline. The earliest sample wins ties.
func (pe *PeakExtractor) Extract(timeUs, smoothed []float64, valid []Crossing, baseline float64) []Peak {
	if len(valid) < 2 {
		return []Peak{}
	}

	n := min(len(timeUs), len(smoothed))
	peaks := make([]Peak, 0, len(valid)-1)

	for i := 0; i+1 < len(valid); i++ {
		start := valid[i].SampleIndex
		end := min(valid[i+1].SampleIndex, n-1)
		if start < 0 || start > end {
			continue
		}

		best := start
		for j := start + 1; j <= end; j++ {
			if smoothed[j] > smoothed[best] {
				best = j
			}
		}

		if smoothed[best] > baseline {
			peaks = append(peaks, Peak{
				TimeUs:      timeUs[best],
				Voltage:     smoothed[best],
				SampleIndex: best,
			})
		}
	}

	return peaks
}
