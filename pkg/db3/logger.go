package db3

// Logger provides a pluggable structured logging interface.
// Arguments follow the log/slog convention of alternating keys and values.
// Implementations must be safe for concurrent use by multiple goroutines.
type Logger interface {
	// Debug logs detailed diagnostic information, such as per-query timing.
	Debug(msg string, args ...any)

	// Info logs informational messages about normal operations, such as
	// pool creation and teardown.
	Info(msg string, args ...any)

	// Warn logs recoverable anomalies, such as slow queries and failed
	// health probes.
	Warn(msg string, args ...any)

	// Error logs failures that affect callers or background recovery.
	Error(msg string, args ...any)
}
