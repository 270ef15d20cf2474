// Package obslog wraps zerolog into the handful of leveled helpers this
// module's HTTP layer and command-line entry points use, including a
// build-tag gated verbose flag.
package obslog

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	once   sync.Once
	global zerolog.Logger
)

// Init configures the global logger. level is one of zerolog's level
// strings ("debug", "info", "warn", "error"); an unrecognized value falls
// back to "info". pretty selects the human-readable console writer instead
// of structured JSON, intended for local/dssctl use rather than services.
func Init(level string, pretty bool) {
	once.Do(func() {
		lvl, err := zerolog.ParseLevel(level)
		if err != nil {
			lvl = zerolog.InfoLevel
		}
		var w io.Writer = os.Stderr
		if pretty {
			w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
		}
		global = zerolog.New(w).With().Timestamp().Logger().Level(lvl)
	})
}

// Logger returns the configured global logger, defaulting to an info-level
// JSON logger on stderr if Init was never called.
func Logger() zerolog.Logger {
	once.Do(func() {
		global = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel)
	})
	return global
}

// ForRun returns a child logger scoped to one simulation run id, so every
// log line it emits carries run_id without the caller repeating it.
func ForRun(runID string) zerolog.Logger {
	return Logger().With().Str("run_id", runID).Logger()
}

// VerboseEnabled reports whether the current build was compiled with the
// "debug" build tag (see verbose_on.go / verbose_off.go).
func VerboseEnabled() bool {
	return verboseBuild
}
