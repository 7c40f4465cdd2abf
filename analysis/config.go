package analysis

import (
	"fmt"

	"github.com/RyanBlaney/ringdown/algorithms/filters"
	"github.com/RyanBlaney/ringdown/algorithms/temporal"
)

// Config holds the tunable analysis parameters. Every field participates in
// Key, so two analyses with equal keys on the same trace produce equal results.
type Config struct {
	SmoothingWindow      int               `json:"smoothing_window"`
	TolerancePct         float64           `json:"tolerance_pct"`
	Invert               bool              `json:"invert"`
	LockMode             temporal.LockMode `json:"lock_mode"`
	BaselineTailFraction float64           `json:"baseline_tail_fraction"`
	BaselineMinTail      int               `json:"baseline_min_tail"`
}

// DefaultConfig returns the default analysis configuration
func DefaultConfig() *Config {
	return &Config{
		SmoothingWindow:      5,
		TolerancePct:         15,
		Invert:               false,
		LockMode:             temporal.LockStrict,
		BaselineTailFraction: filters.DefaultBaselineTailFraction,
		BaselineMinTail:      filters.DefaultBaselineMinTail,
	}
}

// Validate checks parameter domains.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return &Error{Code: CodeInvalidConfig, Err: fmt.Errorf(format, args...)}
	}

	if c.SmoothingWindow < filters.MinSmoothingWindow || c.SmoothingWindow > filters.MaxSmoothingWindow {
		return invalid("smoothing window %d outside [%d, %d]",
			c.SmoothingWindow, filters.MinSmoothingWindow, filters.MaxSmoothingWindow)
	}
	if c.TolerancePct <= 0 || c.TolerancePct > 100 {
		return invalid("period tolerance %g%% outside (0, 100]", c.TolerancePct)
	}
	if _, err := temporal.ParseLockMode(string(c.LockMode)); err != nil {
		return invalid("%v", err)
	}
	if c.BaselineTailFraction <= 0 || c.BaselineTailFraction > 1 {
		return invalid("baseline tail fraction %g outside (0, 1]", c.BaselineTailFraction)
	}
	if c.BaselineMinTail < 1 {
		return invalid("baseline minimum tail %d must be positive", c.BaselineMinTail)
	}
	return nil
}

// Key returns the exact parameter tuple as a string, for result caching.
func (c *Config) Key() string {
	mode := c.LockMode
	if mode == "" {
		mode = temporal.LockStrict
	}
	return fmt.Sprintf("w=%d;tol=%g;inv=%t;lock=%s;tail=%g;mintail=%d",
		c.SmoothingWindow, c.TolerancePct, c.Invert, mode,
		c.BaselineTailFraction, c.BaselineMinTail)
}
