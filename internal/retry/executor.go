package retry

import (
	"context"
	"time"

	"github.com/voca9204/db3-sub002/pkg/db3"
)

// Executor orchestrates retry attempts with backoff and three-way error
// classification. Retryable errors wait and try again. Transient errors
// additionally fire the onTransient hook before the next attempt, which the
// query layer wires to a forced pool recreation. Fatal errors short-circuit
// without any backoff.
//
// Thread Safety:
// The Executor itself is safe for concurrent use when calling Execute().
// WithOnRetry() and WithOnTransient() return a NEW instance with the
// callback configured, so each call site can have its own configuration
// without shared state. The original Executor remains unchanged.
type Executor struct {
	classifier  db3.ErrorClassifier
	strategy    db3.BackoffStrategy
	onRetry     func(attempt int, err error, delay time.Duration)
	onTransient func(ctx context.Context, err error)
}

// NewExecutor creates a new retry executor with the given configuration.
// Panics if classifier or strategy is nil.
func NewExecutor(
	classifier db3.ErrorClassifier,
	strategy db3.BackoffStrategy,
) *Executor {
	if classifier == nil {
		panic("classifier cannot be nil")
	}
	if strategy == nil {
		panic("strategy cannot be nil")
	}
	return &Executor{
		classifier: classifier,
		strategy:   strategy,
	}
}

// WithOnRetry returns a new Executor with the specified retry callback.
// The callback receives the just-failed attempt number (1-based), the error,
// and the delay that will be waited before the next attempt.
//
// This method does NOT modify the receiver; it returns a new instance.
func (e *Executor) WithOnRetry(callback func(attempt int, err error, delay time.Duration)) *Executor {
	clone := *e
	clone.onRetry = callback
	return &clone
}

// WithOnTransient returns a new Executor with the specified transient-error
// hook. The hook runs once per transient failure, before the backoff wait,
// and only when another attempt remains in the budget.
//
// This method does NOT modify the receiver; it returns a new instance.
func (e *Executor) WithOnTransient(hook func(ctx context.Context, err error)) *Executor {
	clone := *e
	clone.onTransient = hook
	return &clone
}

// Execute runs the operation under the retry policy.
//
// The strategy's MaxAttempts is the total attempt budget including the
// first try; values below 1 are treated as 1. Execute returns nil on the
// first success, the error itself for fatal classifications, ctx.Err()
// when the context ends during a backoff wait, and otherwise the error of
// the final attempt.
func (e *Executor) Execute(ctx context.Context, operation func(ctx context.Context) error) error {
	maxAttempts := e.strategy.MaxAttempts()
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		lastErr = operation(ctx)
		if lastErr == nil {
			return nil
		}

		class := e.classifier.Classify(lastErr)
		if class == db3.ClassFatal {
			return lastErr
		}
		if attempt >= maxAttempts {
			break
		}

		// Check context cancellation before waiting
		if err := ctx.Err(); err != nil {
			return err
		}

		if class == db3.ClassTransient && e.onTransient != nil {
			e.onTransient(ctx, lastErr)
		}

		// Delay indices are zero-based: the wait after attempt 1 is delay 0.
		delay := e.strategy.NextDelay(attempt - 1)

		if e.onRetry != nil {
			e.onRetry(attempt, lastErr, delay)
		}

		// Wait for the backoff period, respecting context cancellation
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	// Exhausted the attempt budget
	return lastErr
}
