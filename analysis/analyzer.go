package analysis

import (
	"errors"

	"github.com/RyanBlaney/ringdown/algorithms/common"
	"github.com/RyanBlaney/ringdown/algorithms/filters"
	"github.com/RyanBlaney/ringdown/algorithms/temporal"
	"github.com/RyanBlaney/ringdown/logging"
	"github.com/RyanBlaney/ringdown/trace"
)

// Result is everything the presentation layer needs to report and redraw one
// analysis. Absent stages are nil; Warnings says why.
type Result struct {
	TraceID     string  `json:"trace_id"`
	Source      string  `json:"source,omitempty"`
	Config      Config  `json:"config"`
	SampleCount int     `json:"sample_count"`
	Baseline    float64 `json:"baseline"`      // volts, un-normalized
	AvgPeriodUs float64 `json:"avg_period_us"` // zero when undefined

	RawCrossingCount int `json:"raw_crossing_count"`

	View     *NormalizedView     `json:"view"`
	Fit      *temporal.FitParams `json:"fit,omitempty"`
	FitCurve []float64           `json:"fit_curve,omitempty"` // normalized frame, aligned with View.TimeUs
	Metrics  *Metrics            `json:"metrics,omitempty"`

	// Anomalous marks a non-decaying envelope.
	Anomalous bool      `json:"anomalous"`
	Warnings  []Warning `json:"warnings,omitempty"`
}

// HasWarning reports whether the result carries a warning with code.
func (r *Result) HasWarning(code Code) bool {
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

// Complete reports whether every stage produced a value.
func (r *Result) Complete() bool {
	return r.Metrics != nil
}

// Analyzer runs the full pipeline over one trace. It holds no per-trace state;
// give each concurrent worker its own Analyzer anyway, the stages are cheap.
type Analyzer struct {
	config       Config
	preprocessor *filters.Preprocessor
	baseline     *filters.BaselineEstimator
	crossings    *temporal.CrossingDetector
	peaks        *temporal.PeakExtractor
	fitter       *temporal.EnvelopeFitter
	logger       logging.Logger
}

// NewAnalyzer creates an analyzer for cfg (DefaultConfig when nil).
func NewAnalyzer(cfg *Config) (*Analyzer, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	config := *cfg
	if config.LockMode == "" {
		config.LockMode = temporal.LockStrict
	}

	return &Analyzer{
		config:       config,
		preprocessor: filters.NewPreprocessor(config.Invert, config.SmoothingWindow),
		baseline:     filters.NewBaselineEstimatorWithParams(config.BaselineTailFraction, config.BaselineMinTail),
		crossings:    temporal.NewCrossingDetectorWithMode(config.TolerancePct, config.LockMode),
		peaks:        temporal.NewPeakExtractor(),
		fitter:       temporal.NewEnvelopeFitter(),
		logger: logging.WithFields(logging.Fields{
			"component": "analyzer",
		}),
	}, nil
}

// Config returns a copy of the analyzer configuration.
func (a *Analyzer) Config() Config {
	return a.config
}

// Analyze runs every stage. Only an empty trace is an error; later failures
// are reported as warnings with the dependent fields left nil.
func (a *Analyzer) Analyze(tr *trace.Trace) (*Result, error) {
	if tr.Empty() {
		return nil, &Error{Code: CodeEmptyInput, Err: trace.ErrEmptyInput}
	}

	logger := a.logger.WithFields(logging.Fields{
		"function": "Analyze",
		"trace_id": shortID(tr.ID),
		"samples":  tr.Len(),
	})

	result := &Result{
		TraceID:     tr.ID,
		Source:      tr.Source,
		Config:      a.config,
		SampleCount: tr.Len(),
	}

	pre := a.preprocessor.Process(tr.Times(), tr.Voltages())
	logger.Debug("Trace preprocessed", logging.Fields{
		"window":   a.preprocessor.Window(),
		"smoothed": pre.Len(),
	})

	baseline, _ := a.baseline.Estimate(pre.Smoothed)
	result.Baseline = baseline

	raw, valid := a.crossings.Detect(pre.TimeUs, pre.Smoothed, baseline)
	result.RawCrossingCount = len(raw)
	result.AvgPeriodUs = temporal.AveragePeriod(valid)

	logger.Debug("Crossings detected", logging.Fields{
		"baseline":      baseline,
		"raw_crossings": len(raw),
		"valid":         len(valid),
		"avg_period_us": result.AvgPeriodUs,
	})

	var peaks []temporal.Peak
	if len(raw) < 2 {
		result.Warnings = append(result.Warnings, newWarning(CodeInsufficientCrossings))
		logger.Warn(Message(CodeInsufficientCrossings), logging.Fields{"raw_crossings": len(raw)})
	} else {
		peaks = a.peaks.Extract(pre.TimeUs, pre.Smoothed, valid, baseline)
	}

	result.View = Normalize(pre.TimeUs, pre.Raw, pre.Smoothed, peaks, valid, baseline)

	if len(raw) < 2 {
		return result, nil
	}

	fit, err := a.fitter.Fit(a.fitPeaks(peaks, result.View.TimeOffsetUs), baseline)
	if err != nil {
		code := CodeInsufficientPeaks
		if errors.Is(err, temporal.ErrDegenerateFit) {
			code = CodeDegenerateFit
		}
		result.Warnings = append(result.Warnings, newWarning(code))
		logger.Warn(Message(code), logging.Fields{"peaks": len(peaks)})
		return result, nil
	}

	result.Fit = fit
	result.FitCurve = common.Offset(fit.Curve(result.View.TimeUs), baseline)
	result.Anomalous = !fit.Decaying()
	if result.Anomalous {
		logger.Warn("Envelope is not decaying", logging.Fields{"beta": fit.Beta})
	}

	if metrics, ok := DeriveMetrics(fit, result.AvgPeriodUs, len(peaks)); ok {
		result.Metrics = metrics
	}

	logger.Debug("Analysis complete", logging.Fields{
		"peaks":     len(peaks),
		"beta":      fit.Beta,
		"r_squared": fit.RSquared,
	})

	return result, nil
}

// fitPeaks moves peak times onto the normalized axis and keeps absolute
// voltages, so C stays the un-normalized baseline.
func (a *Analyzer) fitPeaks(peaks []temporal.Peak, t0 float64) []temporal.Peak {
	out := make([]temporal.Peak, len(peaks))
	for i, p := range peaks {
		out[i] = temporal.Peak{
			TimeUs:      p.TimeUs - t0,
			Voltage:     p.Voltage,
			SampleIndex: p.SampleIndex,
		}
	}
	return out
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
