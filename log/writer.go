package log

import (
	"bytes"
	"io"
)

type lineWriter struct {
	logger *Logger
	level  Level
}

// Writer returns an io.Writer that logs every write as one record at lvl.
// Intended for libraries that only accept a standard library *log.Logger.
func (l *Logger) Writer(lvl Level) io.Writer {
	return &lineWriter{logger: l, level: lvl}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.logger.emit(w.level, string(bytes.TrimRight(p, "\n")), nil)
	return len(p), nil
}
