package pool_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	testhelpers "github.com/voca9204/db3-sub002/internal/testing"
	"github.com/voca9204/db3-sub002/pkg/db3"
)

// quietProfile keeps the keepalive out of the way for tests that only
// exercise creation and leasing.
func quietProfile() db3.PoolConfig {
	return db3.PoolConfig{
		MaxConns:          2,
		KeepaliveInterval: time.Minute,
		IdleTimeout:       10 * time.Minute,
		MaxLifetime:       time.Hour,
	}
}

func waitForSnapshot(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestIntegration_CreateProbeStatsRoundTrip(t *testing.T) {
	connString := testhelpers.RequireDatabase(t)
	ctx := context.Background()

	manager := testhelpers.NewTestManager(t, connString, quietProfile())

	if got := manager.Stats().Status; got != db3.StatusAbsent {
		t.Fatalf("Status before first use = %v, want absent", got)
	}

	conn, err := manager.GetPool(ctx)
	if err != nil {
		t.Fatalf("GetPool: %v", err)
	}

	var n int
	if err := conn.QueryRow(ctx, "SELECT 1").Scan(&n); err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	if n != 1 {
		t.Errorf("SELECT 1 = %d", n)
	}

	snap := manager.Stats()
	if snap.Status != db3.StatusActive {
		t.Errorf("Status = %v, want active", snap.Status)
	}
	if snap.PoolID == "" {
		t.Error("active snapshot is missing a pool id")
	}
	if snap.CreatedAt.IsZero() || snap.LastUsed.IsZero() {
		t.Error("active snapshot is missing timestamps")
	}
	if snap.Conns.TotalConns < 1 {
		t.Errorf("TotalConns = %d, want at least 1", snap.Conns.TotalConns)
	}
}

func TestIntegration_CreatePoolReplacesIdentity(t *testing.T) {
	connString := testhelpers.RequireDatabase(t)
	ctx := context.Background()

	manager := testhelpers.NewTestManager(t, connString, quietProfile())

	if _, err := manager.GetPool(ctx); err != nil {
		t.Fatalf("GetPool: %v", err)
	}
	before := manager.Stats().PoolID

	if _, err := manager.CreatePool(ctx); err != nil {
		t.Fatalf("CreatePool: %v", err)
	}
	after := manager.Stats().PoolID

	if before == after {
		t.Errorf("forced recreation kept pool id %s", before)
	}

	// The replacement pool serves queries.
	conn, err := manager.GetPool(ctx)
	if err != nil {
		t.Fatalf("GetPool after recreation: %v", err)
	}
	var n int
	if err := conn.QueryRow(ctx, "SELECT 1").Scan(&n); err != nil {
		t.Fatalf("query on replacement pool: %v", err)
	}
}

func TestIntegration_QueueLimitFailsFast(t *testing.T) {
	connString := testhelpers.RequireDatabase(t)
	ctx := context.Background()

	cfg := quietProfile()
	cfg.MaxConns = 1
	cfg.QueueLimit = 1
	manager := testhelpers.NewTestManager(t, connString, cfg)

	conn, err := manager.GetPool(ctx)
	if err != nil {
		t.Fatalf("GetPool: %v", err)
	}

	// First lease holds the only connection.
	lease1, err := conn.Acquire(ctx)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	defer lease1.Release()

	// A third lease attempted while the queue slot is occupied must be
	// rejected immediately, not queued behind it.
	overBudget := make(chan error, 1)
	go func() {
		time.Sleep(100 * time.Millisecond)
		acquireCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		start := time.Now()
		lease, err := conn.Acquire(acquireCtx)
		if err == nil {
			lease.Release()
		}
		if waited := time.Since(start); waited > time.Second {
			err = fmt.Errorf("rejection took %v, expected fail-fast", waited)
		}
		overBudget <- err
	}()

	// The second lease takes the single queue slot and blocks inside the
	// driver until its deadline; within-budget waiters wait rather than
	// failing fast.
	waitCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	if lease, err := conn.Acquire(waitCtx); err == nil {
		lease.Release()
		t.Fatal("second Acquire should have waited and timed out, not acquired")
	} else if errors.Is(err, db3.ErrQueueFull) {
		t.Fatalf("within-budget waiter was rejected: %v", err)
	}

	if err := <-overBudget; !errors.Is(err, db3.ErrQueueFull) {
		t.Errorf("over-budget lease error = %v, want ErrQueueFull", err)
	}

	// Capacity recovers once leases drain.
	lease1.Release()
	lease, err := conn.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	lease.Release()
}

func TestIntegration_IdlePoolTornDown(t *testing.T) {
	connString := testhelpers.RequireDatabase(t)
	ctx := context.Background()

	cfg := quietProfile()
	cfg.KeepaliveInterval = 50 * time.Millisecond
	cfg.IdleTimeout = 150 * time.Millisecond
	manager := testhelpers.NewTestManager(t, connString, cfg)

	if _, err := manager.GetPool(ctx); err != nil {
		t.Fatalf("GetPool: %v", err)
	}
	first := manager.Stats().PoolID

	// No further use: the keepalive should notice the idle pool and tear
	// it down. Stats is a pure read and does not count as use.
	waitForSnapshot(t, 5*time.Second, func() bool {
		return manager.Stats().Status == db3.StatusAbsent
	}, "idle pool was not torn down")

	// The next demand recreates a fresh pool.
	if _, err := manager.GetPool(ctx); err != nil {
		t.Fatalf("GetPool after teardown: %v", err)
	}
	snap := manager.Stats()
	if snap.Status != db3.StatusActive {
		t.Fatalf("Status after re-demand = %v, want active", snap.Status)
	}
	if snap.PoolID == first {
		t.Error("pool id survived an idle teardown")
	}
}

func TestIntegration_AgedPoolRecycled(t *testing.T) {
	connString := testhelpers.RequireDatabase(t)
	ctx := context.Background()

	cfg := quietProfile()
	cfg.KeepaliveInterval = 50 * time.Millisecond
	cfg.IdleTimeout = 10 * time.Minute
	cfg.MaxLifetime = 200 * time.Millisecond
	manager := testhelpers.NewTestManager(t, connString, cfg)

	if _, err := manager.GetPool(ctx); err != nil {
		t.Fatalf("GetPool: %v", err)
	}
	first := manager.Stats().PoolID

	// The keepalive replaces the aged pool in the background without any
	// caller involvement.
	waitForSnapshot(t, 5*time.Second, func() bool {
		snap := manager.Stats()
		return snap.Status == db3.StatusActive && snap.PoolID != first
	}, "aged pool was not proactively recycled")
}

func TestIntegration_CloseStopsService(t *testing.T) {
	connString := testhelpers.RequireDatabase(t)
	ctx := context.Background()

	manager := testhelpers.NewTestManager(t, connString, quietProfile())
	if _, err := manager.GetPool(ctx); err != nil {
		t.Fatalf("GetPool: %v", err)
	}

	if err := manager.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := manager.GetPool(ctx); !errors.Is(err, db3.ErrManagerClosed) {
		t.Errorf("GetPool after Close = %v, want ErrManagerClosed", err)
	}
	if got := manager.Stats().Status; got != db3.StatusAbsent {
		t.Errorf("Status after Close = %v, want absent", got)
	}
}
