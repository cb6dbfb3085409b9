package log

import (
	"fmt"
	"strings"
)

// Level is a log level. It implements the pflag.Value interface.
type Level uint

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

func (l *Level) String() string {
	name, ok := levelNames[*l]
	if !ok {
		panic("logging: unsupported log level")
	}
	return name
}

// Set parses s (case-insensitive) into the level.
func (l *Level) Set(s string) error {
	for lvl, name := range levelNames {
		if strings.EqualFold(s, name) {
			*l = lvl
			return nil
		}
	}
	return fmt.Errorf("logging: invalid log level: '%s'", s)
}

// Type lists the accepted level names.
func (l *Level) Type() string {
	return "[DEBUG,INFO,WARN,ERROR]"
}
