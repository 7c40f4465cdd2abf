package filters

import (
	"github.com/RyanBlaney/ringdown/algorithms/common"
)

const (
	// MinSmoothingWindow is the smallest window; it disables smoothing.
	MinSmoothingWindow = 1
	// MaxSmoothingWindow is the largest window exposed to operators.
	MaxSmoothingWindow = 50

	// MicrosPerSecond converts trace time to the processing time axis.
	MicrosPerSecond = 1e6
)

// Smoother is a centered moving-average filter. Windows at the edges of the
// series shrink instead of wrapping or padding.
type Smoother struct {
	window int
}

// NewSmoother creates a smoother. The window is clamped to
// [MinSmoothingWindow, MaxSmoothingWindow].
func NewSmoother(window int) *Smoother {
	return &Smoother{
		window: common.ClampInt(window, MinSmoothingWindow, MaxSmoothingWindow),
	}
}

// Window returns the effective window size.
func (s *Smoother) Window() int {
	return s.window
}

// Process returns the smoothed series; output length equals input length.
// Sample i averages [i-W/2, i+W/2] intersected with [0, len).
func (s *Smoother) Process(signal []float64) []float64 {
	smoothed := make([]float64, len(signal))
	if s.window <= 1 {
		copy(smoothed, signal)
		return smoothed
	}

	halfWindow := s.window / 2
	n := len(signal)

	for i := range signal {
		start := max(i-halfWindow, 0)
		end := min(i+halfWindow, n-1)

		sum := 0.0
		for j := start; j <= end; j++ {
			sum += signal[j]
		}
		smoothed[i] = sum / float64(end-start+1)
	}

	return smoothed
}

// Invert flips probe polarity.
func Invert(signal []float64) []float64 {
	return common.Negate(signal)
}

// Preprocessed holds the aligned series every later stage consumes.
type Preprocessed struct {
	TimeUs   []float64 // microseconds
	Raw      []float64 // after optional inversion, unsmoothed
	Smoothed []float64
}

// Len returns the number of samples.
func (p *Preprocessed) Len() int {
	return len(p.TimeUs)
}

// Preprocessor rescales time to microseconds, optionally inverts the voltage
// and smooths it.
type Preprocessor struct {
	invert   bool
	smoother *Smoother
}

// NewPreprocessor creates a preprocessor.
func NewPreprocessor(invert bool, window int) *Preprocessor {
	return &Preprocessor{
		invert:   invert,
		smoother: NewSmoother(window),
	}
}

// Window returns the effective smoothing window.
func (p *Preprocessor) Window() int {
	return p.smoother.Window()
}

// Process runs the stage on time (seconds) and voltage columns of equal length.
func (p *Preprocessor) Process(timesSec, volts []float64) *Preprocessed {
	n := min(len(timesSec), len(volts))

	timeUs := make([]float64, n)
	for i := range n {
		timeUs[i] = timesSec[i] * MicrosPerSecond
	}

	raw := make([]float64, n)
	copy(raw, volts[:n])
	if p.invert {
		raw = Invert(raw)
	}

	return &Preprocessed{
		TimeUs:   timeUs,
		Raw:      raw,
		Smoothed: p.smoother.Process(raw),
	}
}
