// Package logging provides concrete implementations of the db3.Logger interface.
//
// Available implementations:
//   - Logger: structured slog-backed logging with configurable level, format,
//     and destination
//   - NullLogger: discards all messages (useful for testing)
//
// All logger implementations are safe for concurrent use by multiple goroutines.
package logging
