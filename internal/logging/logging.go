// Package logging configures zerolog for beatcut and derives component
// loggers from it.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options selects log verbosity and format
type Options struct {
	Verbose bool
	// JSON writes one object per line instead of console output
	JSON bool
	// Out defaults to stderr
	Out io.Writer
}

// Init installs the global logger and level and returns the logger
func Init(opts Options) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(Level(opts.Verbose))

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	log.Logger = New(out, opts.JSON)
	return log.Logger
}

// Level maps the verbose flag onto a zerolog level
func Level(verbose bool) zerolog.Level {
	if verbose {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

// New builds a timestamped logger writing to out
func New(out io.Writer, json bool) zerolog.Logger {
	if !json {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05",
			NoColor:    os.Getenv("NO_COLOR") != "",
		}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

// Component derives a logger tagged with the component name
func Component(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}
