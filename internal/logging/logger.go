// Package logging configures the global zerolog logger and emits the
// one-line startup summary every binary logs once it is wired.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init initializes the global logger from environment variables.
//
//	TRYON_LOG_LEVEL  debug, info, warn, error (default: info)
//	TRYON_LOG_FORMAT console (default) or json
//
// JSON output goes to stdout so CloudWatch parses each line; console output
// goes to stderr.
func Init() {
	InitWith(os.Getenv("TRYON_LOG_LEVEL"), os.Getenv("TRYON_LOG_FORMAT"), nil)
}

// InitWith is Init with explicit settings. A nil w selects the default
// stream for the format.
func InitWith(level, format string, w io.Writer) {
	zerolog.SetGlobalLevel(ParseLevel(level))
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	if strings.EqualFold(format, "json") {
		if w == nil {
			w = os.Stdout
		}
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
		return
	}
	if w == nil {
		w = os.Stderr
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w})
}

// ParseLevel maps a level name to a zerolog level. Unknown names are info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
