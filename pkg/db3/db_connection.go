package db3

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBConnection abstracts the pooled connection surface handed out by the
// pool manager. This interface decouples the query executor and callers
// from pgx-specific pool types while keeping the essential operations.
//
// Thread-Safety: implementations wrap a connection pool and are safe for
// concurrent use.
type DBConnection interface {
	// Exec executes a statement without returning rows.
	// Returns CommandTag containing information about the execution.
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)

	// QueryRow executes a query expected to return at most one row.
	// Always returns a non-nil scanner; errors are deferred until Scan.
	QueryRow(ctx context.Context, sql string, args ...any) RowScanner

	// Acquire leases a dedicated connection from the pool.
	// Caller must call Release() on the returned PooledConnection when done.
	// When the wait queue is at capacity, Acquire fails immediately with
	// ErrQueueFull instead of blocking.
	Acquire(ctx context.Context) (PooledConnection, error)
}

// RowScanner is the single-row scan surface returned by QueryRow.
// This interface decouples from pgx.Row.
type RowScanner interface {
	// Scan reads the values from the row into dest values.
	// Returns an error if no row was found or if the scan fails.
	Scan(dest ...any) error
}

// PooledConnection represents a connection leased from a pool.
// The caller must call Release() exactly once when done; Release is
// idempotent so releasing on every exit path is safe.
type PooledConnection interface {
	// Query executes a statement on this specific connection and returns
	// its rows. The returned pgx.Rows must be closed (pgx.CollectRows and
	// friends do this) before the connection is released.
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)

	// Release returns the connection to the pool.
	// After calling Release, the connection must not be used.
	Release()
}
