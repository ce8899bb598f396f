// Package logging configures structured logging for the crux commands.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Init configures the global slog default with the given level and format.
// If w is nil, os.Stderr is used. Format must be "text" or "json".
func Init(level slog.Level, format string, w ...io.Writer) {
	var writer io.Writer = os.Stderr
	if len(w) > 0 && w[0] != nil {
		writer = w[0]
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(writer, opts)
	default:
		handler = slog.NewTextHandler(writer, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// New returns a logger with a "component" attribute for module-scoped logging.
func New(component string) *slog.Logger {
	return slog.Default().With(slog.String("component", component))
}

// LevelFromVerbosity maps the 0-60 verbosity scale used by parameter files
// onto slog levels: 0-20 errors only, 30 warnings, 40 info, 50 and above debug.
func LevelFromVerbosity(verbosity int) slog.Level {
	switch {
	case verbosity <= 20:
		return slog.LevelError
	case verbosity <= 30:
		return slog.LevelWarn
	case verbosity <= 40:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
