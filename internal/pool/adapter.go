package pool

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/semaphore"

	"github.com/voca9204/db3-sub002/pkg/db3"
)

// driverPool is the pool surface the manager owns. It extends the public
// connection interface with the lifecycle and introspection operations the
// keepalive needs. Implemented by pgxPool and by test fakes.
type driverPool interface {
	db3.DBConnection

	// Ping verifies a connection can be established and used.
	Ping(ctx context.Context) error

	// Stat reports the driver connection counters.
	Stat() db3.PoolStat

	// Close tears down all connections. Safe to call more than once.
	Close()
}

// openFunc opens a driver pool for the given credentials and profile.
// The manager holds the production implementation; tests swap it out.
type openFunc func(ctx context.Context, creds db3.Credentials, cfg db3.PoolConfig, dial pgconn.DialFunc) (driverPool, error)

// openDriverPool builds a pgxpool-backed driver pool. The fixed profile is
// applied on every creation; only the credentials vary between recreations.
func openDriverPool(ctx context.Context, creds db3.Credentials, cfg db3.PoolConfig, dial pgconn.DialFunc) (driverPool, error) {
	poolConfig, err := pgxpool.ParseConfig(BuildDSN(creds, cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool config: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	if dial != nil {
		poolConfig.ConnConfig.DialFunc = dial
	}

	pgPool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	return newPgxPool(pgPool, cfg), nil
}

// pgxPool adapts *pgxpool.Pool to the driverPool interface. A weighted
// semaphore sized MaxConns+QueueLimit backs the lease queue cap: leases
// beyond MaxConns wait inside pgxpool, and leases beyond the cap fail fast
// with ErrQueueFull instead of piling up.
//
// Thread-Safety: safe for concurrent use (pgxpool.Pool is thread-safe).
type pgxPool struct {
	pool *pgxpool.Pool
	sem  *semaphore.Weighted
}

func newPgxPool(pgPool *pgxpool.Pool, cfg db3.PoolConfig) *pgxPool {
	p := &pgxPool{pool: pgPool}
	if cfg.QueueLimit >= 0 {
		p.sem = semaphore.NewWeighted(int64(cfg.MaxConns) + int64(cfg.QueueLimit))
	}
	return p
}

var _ driverPool = (*pgxPool)(nil)

// Exec executes a statement without returning rows.
func (p *pgxPool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return p.pool.Exec(ctx, sql, args...)
}

// QueryRow executes a query that is expected to return at most one row.
func (p *pgxPool) QueryRow(ctx context.Context, sql string, args ...any) db3.RowScanner {
	return &rowAdapter{row: p.pool.QueryRow(ctx, sql, args...)}
}

// Acquire leases a dedicated connection. When the wait queue is at capacity
// the lease fails immediately with ErrQueueFull.
func (p *pgxPool) Acquire(ctx context.Context) (db3.PooledConnection, error) {
	if p.sem != nil && !p.sem.TryAcquire(1) {
		return nil, fmt.Errorf("lease queue at capacity: %w", db3.ErrQueueFull)
	}

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		if p.sem != nil {
			p.sem.Release(1)
		}
		return nil, err
	}

	return &leasedConn{conn: conn, sem: p.sem}, nil
}

// Ping verifies a connection can be acquired and the server responds.
func (p *pgxPool) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Stat reports the driver connection counters.
func (p *pgxPool) Stat() db3.PoolStat {
	s := p.pool.Stat()
	return db3.PoolStat{
		TotalConns:    s.TotalConns(),
		IdleConns:     s.IdleConns(),
		AcquiredConns: s.AcquiredConns(),
	}
}

// Close tears down all pool connections.
func (p *pgxPool) Close() {
	p.pool.Close()
}

// rowAdapter adapts pgx row types to the db3.RowScanner interface.
type rowAdapter struct {
	row interface{ Scan(...any) error }
}

// Scan reads the values from the row into dest values.
func (r *rowAdapter) Scan(dest ...any) error {
	return r.row.Scan(dest...)
}

// leasedConn is one leased connection plus its queue slot. Release is
// idempotent; the slot and the connection go back exactly once no matter how
// many exit paths call it.
type leasedConn struct {
	conn *pgxpool.Conn
	sem  *semaphore.Weighted
	once sync.Once
}

var _ db3.PooledConnection = (*leasedConn)(nil)

// Query executes a statement on this specific connection.
func (l *leasedConn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return l.conn.Query(ctx, sql, args...)
}

// Release returns the connection to the pool and frees the queue slot.
func (l *leasedConn) Release() {
	l.once.Do(func() {
		l.conn.Release()
		if l.sem != nil {
			l.sem.Release(1)
		}
	})
}
