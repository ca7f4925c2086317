package retry

import (
	"math"
	"math/rand"
	"time"

	"github.com/voca9204/db3-sub002/pkg/db3"
)

// ExponentialBackoff implements exponential backoff with additive jitter.
//
// The delay before retry k (zero-indexed) is
//
//	min(initialDelay * multiplier^k + jitter, maxDelay)
//
// where jitter is drawn uniformly from [0, jitterRange). The cap applies
// after jitter, so no delay ever exceeds maxDelay.
type ExponentialBackoff struct {
	// initialDelay is the base delay before the first retry
	initialDelay time.Duration

	// maxDelay caps the delay between attempts, jitter included
	maxDelay time.Duration

	// multiplier is the factor by which the base delay grows per retry
	multiplier float64

	// maxAttempts is the total attempt budget including the first try
	maxAttempts int

	// jitterRange is the width of the additive jitter window
	jitterRange time.Duration

	// jitterFunc provides random values in [0, 1) for jitter calculation
	jitterFunc func() float64
}

// BackoffOption is a functional option for configuring ExponentialBackoff.
type BackoffOption func(*ExponentialBackoff)

// WithInitialDelay sets the base delay before the first retry.
func WithInitialDelay(d time.Duration) BackoffOption {
	return func(b *ExponentialBackoff) {
		b.initialDelay = d
	}
}

// WithMaxDelay sets the cap on the delay between retry attempts.
func WithMaxDelay(d time.Duration) BackoffOption {
	return func(b *ExponentialBackoff) {
		b.maxDelay = d
	}
}

// WithMultiplier sets the factor by which the delay grows between attempts.
func WithMultiplier(m float64) BackoffOption {
	return func(b *ExponentialBackoff) {
		b.multiplier = m
	}
}

// WithJitterRange sets the width of the additive jitter window.
// A range of zero disables jitter.
func WithJitterRange(d time.Duration) BackoffOption {
	return func(b *ExponentialBackoff) {
		b.jitterRange = d
	}
}

// WithJitterFunc sets a custom source of random values in [0, 1).
// Tests use this to make delays deterministic.
func WithJitterFunc(f func() float64) BackoffOption {
	return func(b *ExponentialBackoff) {
		b.jitterFunc = f
	}
}

// NewExponentialBackoff creates a backoff strategy with the package default
// profile (500ms base, 1.5x growth, up to 250ms of jitter, capped at 5s).
// Additional configuration can be provided via functional options.
//
// Example:
//
//	strategy := retry.NewExponentialBackoff(3,
//	    retry.WithInitialDelay(200*time.Millisecond),
//	    retry.WithJitterRange(0),
//	)
func NewExponentialBackoff(maxAttempts int, opts ...BackoffOption) *ExponentialBackoff {
	b := &ExponentialBackoff{
		initialDelay: db3.DefaultBackoffInitialDelay,
		maxDelay:     db3.DefaultBackoffMaxDelay,
		multiplier:   db3.DefaultBackoffMultiplier,
		maxAttempts:  maxAttempts,
		jitterRange:  db3.DefaultBackoffJitterRange,
		jitterFunc:   nil, // Will use rand.Float64 in NextDelay
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// NextDelay calculates the delay before retry attempt (zero-indexed).
func (b *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	// Base delay: initialDelay * (multiplier ^ attempt)
	delayMs := float64(b.initialDelay.Milliseconds()) * math.Pow(b.multiplier, float64(attempt))

	maxMs := float64(b.maxDelay.Milliseconds())
	if delayMs > maxMs {
		delayMs = maxMs
	}

	// Additive jitter spreads simultaneous retries apart.
	if b.jitterRange > 0 {
		jitterFunc := b.jitterFunc
		if jitterFunc == nil {
			// Tests set jitterFunc explicitly for determinism.
			jitterFunc = rand.Float64
		}
		delayMs += jitterFunc() * float64(b.jitterRange.Milliseconds())
	}

	// The cap also bounds the jittered value.
	if delayMs > maxMs {
		delayMs = maxMs
	}

	return time.Duration(delayMs) * time.Millisecond
}

// MaxAttempts returns the total attempt budget including the first try.
func (b *ExponentialBackoff) MaxAttempts() int {
	return b.maxAttempts
}

// InitialDelay returns the base delay for tests and debugging.
func (b *ExponentialBackoff) InitialDelay() time.Duration {
	return b.initialDelay
}

// MaxDelay returns the delay cap for tests and debugging.
func (b *ExponentialBackoff) MaxDelay() time.Duration {
	return b.maxDelay
}

// Multiplier returns the backoff multiplier for tests and debugging.
func (b *ExponentialBackoff) Multiplier() float64 {
	return b.multiplier
}

// JitterRange returns the jitter window width for tests and debugging.
func (b *ExponentialBackoff) JitterRange() time.Duration {
	return b.jitterRange
}
