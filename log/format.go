package log

import (
	"fmt"
	"strings"
)

// Format is an output encoding. It implements the pflag.Value interface.
type Format uint

const (
	FmtLogfmt Format = iota
	FmtJSON
)

func (f *Format) String() string {
	switch *f {
	case FmtLogfmt:
		return "logfmt"
	case FmtJSON:
		return "JSON"
	}
	panic("logging: unsupported format")
}

// Set parses s (case-insensitive) into the format.
func (f *Format) Set(s string) error {
	switch {
	case strings.EqualFold(s, "logfmt"):
		*f = FmtLogfmt
	case strings.EqualFold(s, "json"):
		*f = FmtJSON
	default:
		return fmt.Errorf("logging: invalid log format: '%s'", s)
	}
	return nil
}

// Type lists the accepted format names.
func (f *Format) Type() string {
	return "[logfmt,JSON]"
}
