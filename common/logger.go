package common

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Logger is the leveled logger shared by every engine component.
// Components receive one through their WithLogger builder option and fall back to NewNopLogger.
type Logger interface {
	// DebugEnabled reports whether Debugf output is currently emitted.
	//
	// Returns:
	//   - bool: true if debug logging is enabled
	DebugEnabled() bool

	// SetDebug toggles Debugf output at runtime.
	//
	// Parameters:
	//   - enabled: true to emit debug messages
	SetDebug(enabled bool)

	// Debugf logs a formatted message at debug level. No-op unless debug is enabled.
	Debugf(format string, args ...any)

	// Infof logs a formatted message at info level.
	Infof(format string, args ...any)

	// Warnf logs a formatted message at warn level.
	Warnf(format string, args ...any)

	// Errorf logs a formatted message at error level.
	Errorf(format string, args ...any)
}

// DefaultLogger is a Logger backed by log/slog. Info and debug go to one handler and warn and error
// to another, with a shared level that SetDebug moves between slog.LevelInfo and slog.LevelDebug.
type DefaultLogger struct {
	level *slog.LevelVar
	out   *slog.Logger
	err   *slog.Logger
}

var _ Logger = &DefaultLogger{}

// NewDefaultLogger creates a DefaultLogger writing text records to the process stdout and stderr.
//
// Parameters:
//   - prefix: recorded as the component attribute, omitted when empty
//   - debug: whether Debugf output is enabled initially
//
// Returns:
//   - *DefaultLogger: the logger
func NewDefaultLogger(prefix string, debug bool) *DefaultLogger {
	return NewWriterLogger(prefix, debug, os.Stdout, os.Stderr)
}

// NewWriterLogger creates a DefaultLogger writing text records to the given writers.
//
// Parameters:
//   - prefix: recorded as the component attribute, omitted when empty
//   - debug: whether Debugf output is enabled initially
//   - out: destination for debug and info messages
//   - errOut: destination for warn and error messages
//
// Returns:
//   - *DefaultLogger: the logger
func NewWriterLogger(prefix string, debug bool, out, errOut io.Writer) *DefaultLogger {
	level := newLevel(debug)
	opts := &slog.HandlerOptions{Level: level}
	return &DefaultLogger{
		level: level,
		out:   withComponent(slog.New(slog.NewTextHandler(out, opts)), prefix),
		err:   withComponent(slog.New(slog.NewTextHandler(errOut, opts)), prefix),
	}
}

// NewSlogLogger routes every level through an existing slog.Logger. Debugf output also needs the
// logger's handler to enable slog.LevelDebug.
//
// Parameters:
//   - logger: the destination, or nil for slog.Default()
//   - debug: whether Debugf output is enabled initially
//
// Returns:
//   - *DefaultLogger: the logger
func NewSlogLogger(logger *slog.Logger, debug bool) *DefaultLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultLogger{level: newLevel(debug), out: logger, err: logger}
}

func newLevel(debug bool) *slog.LevelVar {
	level := &slog.LevelVar{}
	if debug {
		level.Set(slog.LevelDebug)
	}
	return level
}

func withComponent(l *slog.Logger, prefix string) *slog.Logger {
	if prefix == "" {
		return l
	}
	return l.With("component", prefix)
}

func (l *DefaultLogger) DebugEnabled() bool {
	return l.level.Level() <= slog.LevelDebug
}

func (l *DefaultLogger) SetDebug(enabled bool) {
	if enabled {
		l.level.Set(slog.LevelDebug)
		return
	}
	l.level.Set(slog.LevelInfo)
}

func (l *DefaultLogger) Debugf(format string, args ...any) {
	if !l.DebugEnabled() {
		return
	}
	l.out.Debug(fmt.Sprintf(format, args...))
}

func (l *DefaultLogger) Infof(format string, args ...any) {
	l.out.Info(fmt.Sprintf(format, args...))
}

func (l *DefaultLogger) Warnf(format string, args ...any) {
	l.err.Warn(fmt.Sprintf(format, args...))
}

func (l *DefaultLogger) Errorf(format string, args ...any) {
	l.err.Error(fmt.Sprintf(format, args...))
}

type nopLogger struct{}

// NewNopLogger returns a Logger that discards everything.
func NewNopLogger() Logger { return nopLogger{} }

func (nopLogger) DebugEnabled() bool                { return false }
func (nopLogger) SetDebug(bool)                     {}
func (nopLogger) Debugf(format string, args ...any) {}
func (nopLogger) Infof(format string, args ...any)  {}
func (nopLogger) Warnf(format string, args ...any)  {}
func (nopLogger) Errorf(format string, args ...any) {}
