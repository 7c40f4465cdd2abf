package analysis

import (
	"errors"
	"fmt"
)

// Code classifies analysis failures and warnings.
type Code string

const (
	CodeEmptyInput            Code = "empty_input"
	CodeInsufficientCrossings Code = "insufficient_crossings"
	CodeInsufficientPeaks     Code = "insufficient_peaks"
	CodeDegenerateFit         Code = "degenerate_fit"
	CodeInvalidConfig         Code = "invalid_config"
)

var codeMessages = map[Code]string{
	CodeEmptyInput:            "no valid numeric data found",
	CodeInsufficientCrossings: "fewer than two rising zero crossings; period and metrics are undefined",
	CodeInsufficientPeaks:     "signal unstable or insufficient cycles; try adjusting tolerance or inversion",
	CodeDegenerateFit:         "signal unstable or insufficient cycles; envelope fit is degenerate",
	CodeInvalidConfig:         "invalid analysis configuration",
}

// Message returns the user-facing message for a code.
func Message(code Code) string {
	if msg, ok := codeMessages[code]; ok {
		return msg
	}
	return string(code)
}

// Error is a coded analysis error.
type Error struct {
	Code Code
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", Message(e.Code), e.Err)
	}
	return Message(e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == code
}

// Warning is a low-confidence condition that did not stop the analysis.
type Warning struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func newWarning(code Code) Warning {
	return Warning{Code: code, Message: Message(code)}
}
