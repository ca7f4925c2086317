package logging

import "github.com/voca9204/db3-sub002/pkg/db3"

// NullLogger is a no-op logger that discards all log messages.
// Safe for concurrent use by multiple goroutines.
// Useful for testing and for embedding the library without log output.
type NullLogger struct{}

var _ db3.Logger = (*NullLogger)(nil)

// NewNullLogger creates a new NullLogger.
func NewNullLogger() *NullLogger {
	return &NullLogger{}
}

// Debug is a no-op.
func (l *NullLogger) Debug(msg string, args ...any) {}

// Info is a no-op.
func (l *NullLogger) Info(msg string, args ...any) {}

// Warn is a no-op.
func (l *NullLogger) Warn(msg string, args ...any) {}

// Error is a no-op.
func (l *NullLogger) Error(msg string, args ...any) {}
