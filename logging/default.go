package logging

import (
	"context"
	"io"
	"maps"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DefaultLogger is the zerolog-backed implementation of Logger.
// Console output goes to stderr so that command output on stdout stays clean.
type DefaultLogger struct {
	zl     zerolog.Logger
	level  *atomic.Int32
	fields Fields
}

// NewDefaultLogger creates a console logger writing to stderr at InfoLevel.
func NewDefaultLogger() *DefaultLogger {
	return NewConsoleLogger(os.Stderr, InfoLevel, isTerminal())
}

// NewConsoleLogger creates a human-readable logger. Colors are only emitted when
// color is true.
func NewConsoleLogger(w io.Writer, level Level, color bool) *DefaultLogger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    !color,
	}
	return newLogger(zerolog.New(output).With().Timestamp().Logger(), level)
}

// NewJSONLogger creates a logger emitting one JSON object per line.
func NewJSONLogger(w io.Writer, level Level) *DefaultLogger {
	return newLogger(zerolog.New(w).With().Timestamp().Logger(), level)
}

func newLogger(zl zerolog.Logger, level Level) *DefaultLogger {
	l := &DefaultLogger{
		zl:     zl,
		level:  &atomic.Int32{},
		fields: make(Fields),
	}
	l.level.Store(int32(level))
	return l
}

// isTerminal reports whether stderr is attached to a character device.
func isTerminal() bool {
	if fileInfo, _ := os.Stderr.Stat(); fileInfo != nil {
		return (fileInfo.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

func toZerologLevel(level Level) zerolog.Level {
	switch level {
	case DebugLevel:
		return zerolog.DebugLevel
	case InfoLevel:
		return zerolog.InfoLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	case FatalLevel:
		return zerolog.FatalLevel
	default:
		return zerolog.NoLevel
	}
}

func (d *DefaultLogger) log(level Level, err error, msg string, fields ...Fields) {
	if level < Level(d.level.Load()) {
		return
	}

	allFields := make(map[string]any, len(d.fields))
	maps.Copy(allFields, d.fields)
	for _, f := range fields {
		maps.Copy(allFields, f)
	}

	var event *zerolog.Event
	switch level {
	case DebugLevel:
		event = d.zl.Debug()
	case InfoLevel:
		event = d.zl.Info()
	case WarnLevel:
		event = d.zl.Warn()
	case ErrorLevel:
		event = d.zl.Error()
	case FatalLevel:
		// zerolog exits the process after writing a fatal event
		event = d.zl.Fatal()
	default:
		event = d.zl.WithLevel(toZerologLevel(level))
	}

	if err != nil {
		event = event.Err(err)
	}
	if len(allFields) > 0 {
		event = event.Fields(allFields)
	}
	event.Msg(msg)
}

func (d *DefaultLogger) Debug(msg string, fields ...Fields) {
	d.log(DebugLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Info(msg string, fields ...Fields) {
	d.log(InfoLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Warn(msg string, fields ...Fields) {
	d.log(WarnLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Error(err error, msg string, fields ...Fields) {
	d.log(ErrorLevel, err, msg, fields...)
}

func (d *DefaultLogger) Fatal(err error, msg string, fields ...Fields) {
	d.log(FatalLevel, err, msg, fields...)
}

// WithFields returns a child logger. Children share the parent's level so that
// SetLevel on the root logger applies to component loggers created earlier.
func (d *DefaultLogger) WithFields(fields Fields) Logger {
	newFields := make(Fields, len(d.fields)+len(fields))
	maps.Copy(newFields, d.fields)
	maps.Copy(newFields, fields)

	return &DefaultLogger{
		zl:     d.zl,
		level:  d.level,
		fields: newFields,
	}
}

func (d *DefaultLogger) WithContext(ctx context.Context) Logger {
	if fields, ok := fieldsFromContext(ctx); ok {
		return d.WithFields(fields)
	}
	return d
}

func (d *DefaultLogger) SetLevel(level Level) {
	d.level.Store(int32(level))
}

// NoOpLogger discards everything. Tests install it to keep output quiet.
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, fields ...Fields)            {}
func (n *NoOpLogger) Info(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Warn(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Error(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) Fatal(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) WithFields(fields Fields) Logger               { return n }
func (n *NoOpLogger) WithContext(ctx context.Context) Logger        { return n }
func (n *NoOpLogger) SetLevel(level Level)                          {}
