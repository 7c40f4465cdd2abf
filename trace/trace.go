package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// ErrEmptyInput is returned when a source produced no usable samples.
var ErrEmptyInput = errors.New("no valid numeric data found")

// Sample is a single oscilloscope reading.
type Sample struct {
	Time    float64 `json:"time"`    // seconds
	Voltage float64 `json:"voltage"` // volts
}

// Trace is an ordered, immutable sequence of samples in file order.
type Trace struct {
	ID        string         `json:"id"` // hex SHA-256 of the source bytes
	Source    string         `json:"source,omitempty"`
	Format    string         `json:"format"` // "text" or "wav"
	Timestamp time.Time      `json:"timestamp"`
	Samples   []Sample       `json:"-"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func newTrace(source, format string, sum []byte, samples []Sample) *Trace {
	return &Trace{
		ID:        hex.EncodeToString(sum),
		Source:    source,
		Format:    format,
		Timestamp: time.Now(),
		Samples:   samples,
		Metadata:  make(map[string]any),
	}
}

// FromSamples builds a trace from samples produced in memory. The ID is derived
// from the sample values so identical data yields identical IDs.
func FromSamples(source string, samples []Sample) *Trace {
	h := sha256.New()
	buf := make([]byte, 0, 64)
	for _, s := range samples {
		buf = appendFloat(buf[:0], s.Time)
		buf = appendFloat(buf, s.Voltage)
		h.Write(buf)
	}
	cp := make([]Sample, len(samples))
	copy(cp, samples)
	return newTrace(source, "memory", h.Sum(nil), cp)
}

// Len returns the number of samples.
func (t *Trace) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Samples)
}

// Empty reports whether the trace holds no samples.
func (t *Trace) Empty() bool {
	return t.Len() == 0
}

// Times returns a copy of the time column in seconds.
func (t *Trace) Times() []float64 {
	out := make([]float64, t.Len())
	for i, s := range t.Samples {
		out[i] = s.Time
	}
	return out
}

// Voltages returns a copy of the voltage column.
func (t *Trace) Voltages() []float64 {
	out := make([]float64, t.Len())
	for i, s := range t.Samples {
		out[i] = s.Voltage
	}
	return out
}

// Duration returns the time span between the first and last sample.
func (t *Trace) Duration() time.Duration {
	if t.Len() < 2 {
		return 0
	}
	span := t.Samples[len(t.Samples)-1].Time - t.Samples[0].Time
	return time.Duration(span * float64(time.Second))
}
