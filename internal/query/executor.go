package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/voca9204/db3-sub002/internal/retry"
	"github.com/voca9204/db3-sub002/pkg/db3"
)

// PoolManager is the pool surface the executor drives: read the current
// pool, or force a rebuild when an error shows the pool is broken.
// Satisfied by *pool.Manager.
type PoolManager interface {
	GetPool(ctx context.Context) (db3.DBConnection, error)
	CreatePool(ctx context.Context) (db3.DBConnection, error)
}

// Executor runs queries with retry and timeout handling.
//
// Thread-Safety: safe for concurrent use; per-call state stays on the stack.
type Executor struct {
	pools      PoolManager
	classifier db3.ErrorClassifier
	log        db3.Logger

	slowThreshold time.Duration

	// newStrategy builds the per-call backoff. Tests swap in an instant
	// strategy so retries do not sleep.
	newStrategy func(maxAttempts int) db3.BackoffStrategy
}

// Option configures an Executor.
type Option func(*Executor)

// WithClassifier overrides the error classifier.
func WithClassifier(c db3.ErrorClassifier) Option {
	return func(e *Executor) {
		if c != nil {
			e.classifier = c
		}
	}
}

// WithSlowQueryThreshold overrides the duration above which completed
// queries log at warn instead of debug.
func WithSlowQueryThreshold(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.slowThreshold = d
		}
	}
}

// New creates an Executor on top of the given pool manager.
func New(pools PoolManager, log db3.Logger, opts ...Option) *Executor {
	if pools == nil {
		panic("pool manager cannot be nil")
	}
	if log == nil {
		panic("logger cannot be nil")
	}

	e := &Executor{
		pools:         pools,
		classifier:    retry.NewClassifier(),
		log:           log,
		slowThreshold: db3.DefaultSlowQueryThreshold,
		newStrategy: func(maxAttempts int) db3.BackoffStrategy {
			return retry.NewExponentialBackoff(maxAttempts)
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecuteQuery runs one statement with retries and returns its rows and
// affected-row count. Zero-value options take the package defaults.
func (e *Executor) ExecuteQuery(ctx context.Context, sql string, args []any, opts db3.QueryOptions) (*db3.Result, error) {
	opts = opts.WithDefaults()
	start := time.Now()

	strategy := e.newStrategy(opts.MaxAttempts)
	runner := retry.NewExecutor(e.classifier, strategy).
		WithOnTransient(e.forceRecreate).
		WithOnRetry(func(attempt int, err error, delay time.Duration) {
			e.log.Warn("query attempt failed, retrying",
				"attempt", attempt,
				"delay_ms", delay.Milliseconds(),
				"error", db3.MaskSecrets(err.Error()),
			)
		})

	// Phase 1: make sure a pool exists at all. Failures here are retried
	// under the same budget as the query itself.
	if err := runner.Execute(ctx, func(ctx context.Context) error {
		_, err := e.pools.GetPool(ctx)
		return err
	}); err != nil {
		qe := mapQueryError(err)
		e.logFailure(sql, time.Since(start), 0, qe)
		return nil, qe
	}

	// Phase 2: lease, run, collect. Each attempt re-reads the current pool
	// so a forced recreation between attempts takes effect.
	var result *db3.Result
	attempts := 0
	err := runner.Execute(ctx, func(ctx context.Context) error {
		attempts++
		res, aerr := e.attempt(ctx, sql, args, opts.Timeout)
		if aerr != nil {
			return aerr
		}
		result = res
		return nil
	})

	duration := time.Since(start)
	if err != nil {
		qe := mapQueryError(err)
		e.logFailure(sql, duration, attempts, qe)
		return nil, qe
	}

	e.logSuccess(sql, duration, attempts, len(result.Rows))
	return result, nil
}

// QueryOne runs the statement and returns its first row. A result with
// zero rows returns nil, nil; absence is not an error.
func (e *Executor) QueryOne(ctx context.Context, sql string, args []any, opts db3.QueryOptions) (db3.Row, error) {
	res, err := e.ExecuteQuery(ctx, sql, args, opts)
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return nil, nil
	}
	return res.Rows[0], nil
}

// attempt runs one try: lease a connection, execute under the per-attempt
// deadline, collect rows. The lease is released exactly once on every path.
func (e *Executor) attempt(ctx context.Context, sql string, args []any, timeout time.Duration) (*db3.Result, error) {
	conn, err := e.pools.GetPool(ctx)
	if err != nil {
		return nil, err
	}

	qctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	lease, err := conn.Acquire(qctx)
	if err != nil {
		return nil, e.attemptError(ctx, err, timeout)
	}
	defer lease.Release()

	rows, err := lease.Query(qctx, sql, args...)
	if err != nil {
		return nil, e.attemptError(ctx, err, timeout)
	}

	collected, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, e.attemptError(ctx, err, timeout)
	}

	return &db3.Result{
		Rows:         collected,
		RowsAffected: rows.CommandTag().RowsAffected(),
	}, nil
}

// attemptError distinguishes the per-attempt deadline from the caller's.
// When the attempt deadline fired and the caller is still live, the error
// becomes ErrQueryTimeout so it is retried against a fresh pool; the
// caller's own cancellation passes through untouched.
func (e *Executor) attemptError(ctx context.Context, err error, timeout time.Duration) error {
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("query exceeded %dms: %w", timeout.Milliseconds(), db3.ErrQueryTimeout)
	}
	return err
}

// forceRecreate is the transient-error hook: the current pool is suspect,
// so rebuild it before the next attempt. Recreation failures are logged
// only; the next attempt will surface whatever is still wrong.
func (e *Executor) forceRecreate(ctx context.Context, cause error) {
	e.log.Warn("pool marked broken, forcing recreation",
		"error", db3.MaskSecrets(cause.Error()),
	)
	if _, err := e.pools.CreatePool(ctx); err != nil {
		e.log.Error("forced pool recreation failed",
			"error", db3.MaskSecrets(err.Error()),
		)
	}
}

func (e *Executor) logSuccess(sql string, duration time.Duration, attempts, rows int) {
	args := []any{
		"sql", db3.TruncateForLog(sql),
		"duration_ms", duration.Milliseconds(),
		"rows", rows,
		"attempts", attempts,
	}
	if duration > e.slowThreshold {
		e.log.Warn("slow query", args...)
		return
	}
	e.log.Debug("query executed", args...)
}

func (e *Executor) logFailure(sql string, duration time.Duration, attempts int, qe *db3.QueryError) {
	e.log.Error("query failed",
		"sql", db3.TruncateForLog(sql),
		"duration_ms", duration.Milliseconds(),
		"attempts", attempts,
		"error", qe.Error(),
	)
}
