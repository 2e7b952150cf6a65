// Package sysutil configures process-wide logging.
package sysutil

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetLogLevel sets the global zerolog level. Unknown or empty values fall
// back to info; "warning" is accepted for warn.
func SetLogLevel(lvl string) zerolog.Level {
	s := strings.ToLower(strings.TrimSpace(lvl))
	if s == "warning" {
		s = "warn"
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil || s == "" || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	return level
}

// ConfigureLogger installs the global logger: JSON lines on w, or a
// human-readable console writer when pretty is set. Every line carries the
// service name and a UTC timestamp.
func ConfigureLogger(w io.Writer, level string, pretty bool, service string) {
	if w == nil {
		w = os.Stdout
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	SetLogLevel(level)
	log.Logger = zerolog.New(w).With().Timestamp().Str("service", service).Logger()
	zerolog.DefaultContextLogger = &log.Logger
}
