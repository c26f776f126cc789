// Package cli implements the pincheck command-line interface.
//
// The root command checks a compiled requirements file against the source
// files it was compiled from. Findings are logged to stderr through a
// charmbracelet/log logger; the exit status tells whether any error-severity
// finding was produced.
//
// # Commands
//
//   - pincheck [REQ_FILE]: check REQ_FILE (default requirements.txt)
//   - serve: run the HTTP check service
//   - env: print the marker environment used to evaluate markers
//   - completion: generate shell completion scripts
//
// # Logging
//
// Verbosity is the number of -v flags minus the number of -q flags. At 0
// findings and the summary are printed; below 0 only fatal errors are; above
// 0 the summary is always printed, with timestamps. Loggers are passed
// through context.Context.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a logger writing to w at the given level. Timestamps
// ("14:32:01.45") are only reported at debug level.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: level <= log.DebugLevel,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// levelFor maps a verbosity (count of -v minus count of -q) to a log level.
func levelFor(verbosity int) log.Level {
	switch {
	case verbosity > 0:
		return log.DebugLevel
	case verbosity < 0:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// progress tracks the start time of an operation and logs completion with
// the elapsed duration at debug level.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg with the elapsed time, e.g. "Parsed requirements.txt (3ms)".
func (p *progress) done(msg string) {
	p.logger.Debugf("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

type ctxKey int

const loggerKey ctxKey = 0

// withLogger returns a new context with the given logger attached.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext retrieves the logger from ctx, or log.Default() if none
// is attached.
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
