// Package simlog provides the leveled logger used by the simulator.
package simlog

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Level is the severity of a message.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

// ParseLevel converts a level name such as "debug" into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return LevelError, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "info", "":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "trace":
		return LevelTrace, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Logger filters messages below its level.
type Logger struct {
	level  Level
	logger *log.Logger
}

// New creates a logger writing to w.
func New(w io.Writer, level Level, prefix string) *Logger {
	return &Logger{
		level:  level,
		logger: log.New(w, prefix, log.LstdFlags|log.Lmicroseconds),
	}
}

// SetLevel changes the level of the logger.
func (l *Logger) SetLevel(level Level) {
	if l == nil {
		return
	}
	l.level = level
}

// Enabled returns true if messages at level are printed. Callers use it to
// skip building expensive messages.
func (l *Logger) Enabled(level Level) bool {
	return l != nil && level <= l.level
}

func (l *Logger) logf(level Level, format string, args ...any) {
	if !l.Enabled(level) {
		return
	}
	_ = l.logger.Output(3, fmt.Sprintf(format, args...))
}

// Tracef prints per-access protocol traces.
func (l *Logger) Tracef(format string, args ...any) {
	l.logf(LevelTrace, format, args...)
}

// Debugf prints debug messages.
func (l *Logger) Debugf(format string, args ...any) {
	l.logf(LevelDebug, format, args...)
}

// Infof prints info messages.
func (l *Logger) Infof(format string, args ...any) {
	l.logf(LevelInfo, format, args...)
}

// Warnf prints warnings.
func (l *Logger) Warnf(format string, args ...any) {
	l.logf(LevelWarn, format, args...)
}

// Errorf prints errors.
func (l *Logger) Errorf(format string, args ...any) {
	l.logf(LevelError, format, args...)
}

var defaultLogger = New(os.Stderr, LevelInfo, "[zsim] ")

// Default returns the process-wide logger.
func Default() *Logger {
	return defaultLogger
}

// SetDefault replaces the process-wide logger.
func SetDefault(l *Logger) {
	if l == nil {
		return
	}
	defaultLogger = l
}
