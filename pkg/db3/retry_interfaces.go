package db3

import (
	"fmt"
	"time"
)

// Classification buckets an error by how the retry layer should respond.
type Classification int

const (
	// ClassRetryable errors are retried with backoff against the existing
	// pool. This is the default bucket.
	ClassRetryable Classification = iota

	// ClassTransient errors indicate the pool itself is suspect (dropped
	// connections, closed pools, timeouts). The retry layer forces a pool
	// recreation before the next attempt.
	ClassTransient

	// ClassFatal errors will not improve with retries (bad credentials,
	// missing database, canceled context). They are returned immediately.
	ClassFatal
)

// String returns a human-readable name for the classification.
func (c Classification) String() string {
	switch c {
	case ClassRetryable:
		return "retryable"
	case ClassTransient:
		return "transient"
	case ClassFatal:
		return "fatal"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// ErrorClassifier decides how the retry layer responds to an error.
type ErrorClassifier interface {
	// Classify buckets err. It is never called with a nil error.
	Classify(err error) Classification
}

// BackoffStrategy calculates the delay before the next retry attempt.
type BackoffStrategy interface {
	// NextDelay returns the duration to wait before the next attempt.
	// attempt is zero-indexed (0 = delay before the first retry).
	NextDelay(attempt int) time.Duration

	// MaxAttempts returns the total attempt budget including the first
	// try. Values below 1 are treated as 1.
	MaxAttempts() int
}
