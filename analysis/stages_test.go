package analysis

import (
	"testing"

	"github.com/RyanBlaney/ringdown/algorithms/temporal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveMetrics(t *testing.T) {
	fit := &temporal.FitParams{A: 1, Beta: -0.002, C: 0}

	m, ok := DeriveMetrics(fit, 1000, 6)
	require.True(t, ok)
	assert.InDelta(t, 2.0, m.LogDecrement, 1e-12)
	assert.InDelta(t, 1.0, m.FrequencyKhz, 1e-12)
	assert.InDelta(t, 2000.0, m.DampingCoefficientPerSecond, 1e-9)
	assert.Equal(t, 1000.0, m.PeriodUs)
	assert.Equal(t, 6, m.ValidCycleCount)
}

func TestDeriveMetricsUsesMagnitudeOfBeta(t *testing.T) {
	m, ok := DeriveMetrics(&temporal.FitParams{Beta: 0.001}, 500, 3)
	require.True(t, ok)
	assert.InDelta(t, 0.5, m.LogDecrement, 1e-12)
	assert.InDelta(t, 2.0, m.FrequencyKhz, 1e-12)
}

func TestDeriveMetricsUnavailable(t *testing.T) {
	_, ok := DeriveMetrics(nil, 1000, 3)
	assert.False(t, ok)

	_, ok = DeriveMetrics(&temporal.FitParams{Beta: -1}, 0, 3)
	assert.False(t, ok)
}

func TestNormalizeAnchorsOnFirstValidCrossing(t *testing.T) {
	timeUs := []float64{10, 11, 12, 13}
	raw := []float64{1.5, 2.5, 0.5, 1.5}
	smoothed := []float64{1.4, 2.4, 0.6, 1.6}
	peaks := []temporal.Peak{{TimeUs: 11, Voltage: 2.4, SampleIndex: 1}}
	valid := []temporal.Crossing{{TimeUs: 10.5, SampleIndex: 0}, {TimeUs: 12.5, SampleIndex: 2}}

	v := Normalize(timeUs, raw, smoothed, peaks, valid, 1.5)

	assert.Equal(t, 10.5, v.TimeOffsetUs)
	assert.Equal(t, 1.5, v.VoltageOffset)
	assert.Equal(t, 0.0, v.Baseline)
	assert.Equal(t, []float64{-0.5, 0.5, 1.5, 2.5}, v.TimeUs)
	assert.Equal(t, []float64{0, 1, -1, 0}, v.Raw)
	assert.InDeltaSlice(t, []float64{-0.1, 0.9, -0.9, 0.1}, v.Smoothed, 1e-12)
	assert.Equal(t, 0.0, v.Crossings[0].TimeUs)
	assert.Equal(t, 2.0, v.Crossings[1].TimeUs)
	assert.Equal(t, 0.5, v.Peaks[0].TimeUs)
	assert.InDelta(t, 0.9, v.Peaks[0].Voltage, 1e-12)

	// inputs untouched
	assert.Equal(t, 10.0, timeUs[0])
	assert.Equal(t, 10.5, valid[0].TimeUs)
}

func TestNormalizeFallsBackToFirstSample(t *testing.T) {
	v := Normalize([]float64{4, 5}, []float64{1, 1}, []float64{1, 1}, nil, nil, 1)
	assert.Equal(t, 4.0, v.TimeOffsetUs)
	assert.Equal(t, []float64{0, 1}, v.TimeUs)
	assert.Empty(t, v.Crossings)
	assert.Empty(t, v.Peaks)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cases := map[string]func(*Config){
		"window low":    func(c *Config) { c.SmoothingWindow = 0 },
		"window high":   func(c *Config) { c.SmoothingWindow = 51 },
		"tolerance 0":   func(c *Config) { c.TolerancePct = 0 },
		"tolerance big": func(c *Config) { c.TolerancePct = 150 },
		"lock mode":     func(c *Config) { c.LockMode = "adaptive" },
		"tail fraction": func(c *Config) { c.BaselineTailFraction = 0 },
		"min tail":      func(c *Config) { c.BaselineMinTail = 0 },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(cfg)
		err := cfg.Validate()
		assert.True(t, IsCode(err, CodeInvalidConfig), name)
	}
}

func TestConfigKeyCoversEveryParameter(t *testing.T) {
	base := DefaultConfig()
	seen := map[string]bool{base.Key(): true}

	variants := []func(*Config){
		func(c *Config) { c.SmoothingWindow++ },
		func(c *Config) { c.TolerancePct += 0.5 },
		func(c *Config) { c.Invert = true },
		func(c *Config) { c.LockMode = temporal.LockResync },
		func(c *Config) { c.BaselineTailFraction = 0.3 },
		func(c *Config) { c.BaselineMinTail = 20 },
	}
	for i, mutate := range variants {
		cfg := DefaultConfig()
		mutate(cfg)
		key := cfg.Key()
		assert.False(t, seen[key], "variant %d collides: %s", i, key)
		seen[key] = true
	}

	empty := DefaultConfig()
	empty.LockMode = ""
	assert.Equal(t, base.Key(), empty.Key())
}

func TestErrorMessages(t *testing.T) {
	err := &Error{Code: CodeInsufficientPeaks}
	assert.Contains(t, err.Error(), "insufficient cycles")
	assert.Equal(t, "mystery", Message(Code("mystery")))
	assert.False(t, IsCode(nil, CodeEmptyInput))
}
