// Package log implements structured logging for msig.
package log

import (
	"fmt"
	"io"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Logger is a leveled, structured logger bound to a module name.
type Logger struct {
	kit    log.Logger
	level  Level
	module string
}

// NewDefaultLogger returns a JSON logger at info level writing to stdout.
// Outside of tests, use RootLogger() from package `cmd/common` instead.
func NewDefaultLogger(module string) *Logger {
	l, err := NewLogger(module, os.Stdout, FmtJSON, LevelInfo)
	if err != nil {
		// NewLogger only fails on an unknown format.
		panic(err)
	}
	return l
}

// NewLogger builds a logger writing in the given format to w.
func NewLogger(module string, w io.Writer, format Format, lvl Level) (*Logger, error) {
	var kit log.Logger
	sw := log.NewSyncWriter(w)
	switch format {
	case FmtJSON:
		kit = log.NewJSONLogger(sw)
	case FmtLogfmt:
		kit = log.NewLogfmtLogger(sw)
	default:
		return nil, fmt.Errorf("log: unsupported log format: %v", format)
	}

	// Skip go-kit's own frames plus emit() and the exported level method.
	kit = log.WithPrefix(kit,
		"ts", log.DefaultTimestampUTC,
		"caller", log.Caller(5),
	)

	return &Logger{kit: kit, level: lvl, module: module}, nil
}

func (l *Logger) emit(lvl Level, msg string, keyvals []interface{}) {
	if lvl < l.level {
		return
	}
	var leveled log.Logger
	switch lvl {
	case LevelDebug:
		leveled = level.Debug(l.kit)
	case LevelInfo:
		leveled = level.Info(l.kit)
	case LevelWarn:
		leveled = level.Warn(l.kit)
	default:
		leveled = level.Error(l.kit)
	}
	_ = leveled.Log(append([]interface{}{"module", l.module, "msg", msg}, keyvals...)...)
}

// Debug logs msg with keyvals at debug level.
func (l *Logger) Debug(msg string, keyvals ...interface{}) { l.emit(LevelDebug, msg, keyvals) }

// Info logs msg with keyvals at info level.
func (l *Logger) Info(msg string, keyvals ...interface{}) { l.emit(LevelInfo, msg, keyvals) }

// Warn logs msg with keyvals at warn level.
func (l *Logger) Warn(msg string, keyvals ...interface{}) { l.emit(LevelWarn, msg, keyvals) }

// Error logs msg with keyvals at error level.
func (l *Logger) Error(msg string, keyvals ...interface{}) { l.emit(LevelError, msg, keyvals) }

// With returns a copy of the logger that adds keyvals to every record.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	return &Logger{kit: log.With(l.kit, keyvals...), level: l.level, module: l.module}
}

// WithModule returns a copy of the logger reporting under another module name.
func (l *Logger) WithModule(module string) *Logger {
	return &Logger{kit: l.kit, level: l.level, module: module}
}

// Level returns the minimum level that is emitted.
func (l *Logger) Level() Level {
	return l.level
}
