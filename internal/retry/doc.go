// Package retry provides automatic retry with exponential backoff for
// database operations running against a managed connection pool.
//
// # Example Usage
//
//	classifier := retry.NewClassifier()
//	strategy := retry.NewExponentialBackoff(3)
//	executor := retry.NewExecutor(classifier, strategy).
//	    WithOnTransient(func(ctx context.Context, err error) {
//	        pools.CreatePool(ctx)
//	    })
//
//	err := executor.Execute(ctx, func(ctx context.Context) error {
//	    return runQuery(ctx)
//	})
//
// # Error Classification
//
// The db3.ErrorClassifier interface buckets errors three ways. Retryable
// errors wait out the backoff and run again. Transient errors indicate the
// pool itself is broken (dropped connections, closed pools, timeouts); the
// executor invokes the onTransient hook before the next attempt so the pool
// can be recreated. Fatal errors (bad credentials, missing databases,
// canceled contexts) fail immediately with no backoff.
//
// # Backoff
//
// ExponentialBackoff grows the delay geometrically from a 500ms base with a
// 1.5x multiplier, adds up to 250ms of uniform jitter, and caps the result
// at 5s. MaxAttempts is the total attempt budget including the first try.
//
// # Thread Safety
//
// Executor instances are safe for concurrent use. WithOnRetry() and
// WithOnTransient() create independent configurations per call site.
package retry
