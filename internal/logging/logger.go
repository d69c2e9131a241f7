// Package logging provides the logging interface and default implementation
// shared across the pipeline, codec, operator, and server packages.
//
// Design: four-level interface (Error, Warn, Info, Debug). Users can wrap
// their own structured loggers if needed — Logger is a small enough
// interface that a slog or zap adapter is a few lines.
//
// Log format: YYYY/MM/DD HH:MM:SS LEVEL [component] message
//
// Example: 2026/07/31 18:45:13 INFO [pipeline] rotated to trace.002.ds
//
// Component namespace prefixes are used for filtering:
//   - [pipeline] — write pipeline (queue, workers, writer, rotation)
//   - [codec]    — extent pack/unpack
//   - [dsfile]   — file open/read/tail/index
//   - [operator] — relational operator execution
//   - [server]   — table orchestration
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"reflect"
)

// Level represents the logging level.
type Level int

const (
	// LevelError logs only errors.
	LevelError Level = iota
	// LevelWarn logs warnings and errors.
	LevelWarn
	// LevelInfo logs info, warnings, and errors.
	LevelInfo
	// LevelDebug logs everything including debug messages.
	LevelDebug
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// Logger defines the interface used throughout this module for diagnostic
// output. Implementations must be safe for concurrent use, since pipeline
// workers and the writer goroutine may all log simultaneously.
type Logger interface {
	Errorf(format string, args ...any)
	Warnf(format string, args ...any)
	Infof(format string, args ...any)
	Debugf(format string, args ...any)
}

// DefaultLogger is the default logger that writes to a specified output.
// It is stateless and safe for concurrent use (log.Logger is thread-safe).
// Level is read-only after construction — create a new logger to change it.
type DefaultLogger struct {
	logger *log.Logger
	level  Level
}

// NewDefaultLogger creates a new default logger with the specified level.
// It writes to stderr.
func NewDefaultLogger(level Level) *DefaultLogger {
	return &DefaultLogger{
		logger: log.New(os.Stderr, "", log.LstdFlags),
		level:  level,
	}
}

// NewLogger creates a new logger with the specified output and level.
func NewLogger(w io.Writer, level Level) *DefaultLogger {
	return &DefaultLogger{
		logger: log.New(w, "", log.LstdFlags),
		level:  level,
	}
}

// Level returns the logging level.
func (l *DefaultLogger) Level() Level {
	return l.level
}

// Errorf logs a formatted error message.
func (l *DefaultLogger) Errorf(format string, args ...any) {
	if l.level >= LevelError {
		_ = l.logger.Output(2, "ERROR "+fmt.Sprintf(format, args...))
	}
}

// Warnf logs a formatted warning message.
func (l *DefaultLogger) Warnf(format string, args ...any) {
	if l.level >= LevelWarn {
		_ = l.logger.Output(2, "WARN "+fmt.Sprintf(format, args...))
	}
}

// Infof logs a formatted informational message.
func (l *DefaultLogger) Infof(format string, args ...any) {
	if l.level >= LevelInfo {
		_ = l.logger.Output(2, "INFO "+fmt.Sprintf(format, args...))
	}
}

// Debugf logs a formatted debug message.
func (l *DefaultLogger) Debugf(format string, args ...any) {
	if l.level >= LevelDebug {
		_ = l.logger.Output(2, "DEBUG "+fmt.Sprintf(format, args...))
	}
}

// Namespace prefixes for log messages. Use with fmt.Sprintf to add
// component context, matching the "[component] message" convention.
const (
	NSPipeline = "[pipeline] "
	NSCodec    = "[codec] "
	NSDSFile   = "[dsfile] "
	NSOperator = "[operator] "
	NSServer   = "[server] "
)

// IsNil returns true if the logger is nil or a typed-nil.
// A typed-nil occurs when a nil pointer is assigned to an interface:
//
//	var l *DefaultLogger = nil
//	opts.Logger = l  // the interface is not nil, but the pointer is
//
// Calling methods on a typed-nil panics, so this function detects both
// cases.
func IsNil(l Logger) bool {
	if l == nil {
		return true
	}
	v := reflect.ValueOf(l)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

// OrDefault returns l if it is valid (non-nil and not typed-nil),
// otherwise a default WARN-level logger. Ensures callers never hold a nil
// Logger after construction.
func OrDefault(l Logger) Logger {
	if IsNil(l) {
		return NewDefaultLogger(LevelWarn)
	}
	return l
}
