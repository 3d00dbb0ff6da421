// Package logging configures the process-wide zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Format is the log output encoding.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// ParseLevel maps a level name to a zerolog level. "warning" is accepted for warn.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "warning":
		return zerolog.WarnLevel, nil
	case "":
		return zerolog.ErrorLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// ParseFormat accepts console (default) or json.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatConsole:
		return FormatConsole, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return FormatConsole, fmt.Errorf("unknown log format %q (want console or json)", s)
	}
}

// Setup installs the global logger writing to w (stderr when nil) at level.
// Library packages log through github.com/rs/zerolog/log, so this is the only
// place output is shaped.
func Setup(level zerolog.Level, format Format, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	out := w
	if format == FormatConsole {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(level)
	log.Logger = logger
	return logger
}
