package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/voca9204/db3-sub002/pkg/db3"
)

// Logger wraps slog.Logger and satisfies db3.Logger.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
}

var _ db3.Logger = (*Logger)(nil)

// Options configures a Logger.
type Options struct {
	// Level filters records below it: debug, info, warn, error.
	// Defaults to info.
	Level string

	// Format selects the handler: "text" or "json". Defaults to json.
	Format string

	// Output is the destination writer. Defaults to os.Stderr.
	Output io.Writer
}

// New creates a Logger with the given options.
func New(opts Options) *Logger {
	output := opts.Output
	if output == nil {
		output = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{
		Level: ParseLevel(opts.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case "text":
		handler = slog.NewTextHandler(output, handlerOpts)
	default:
		handler = slog.NewJSONHandler(output, handlerOpts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// Default creates a logger for use before configuration is loaded:
// info level, JSON format, stderr.
func Default() *Logger {
	return New(Options{})
}

// With returns a new Logger carrying additional default attributes.
//
// Example:
//
//	poolLogger := logger.With("component", "pool")
//	poolLogger.Info("created") // Includes component=pool
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// ParseLevel converts a string log level to slog.Level.
// Defaults to info if unrecognised.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
