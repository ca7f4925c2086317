// Package testing provides shared helpers for integration tests: database
// gating, a process-wide test container, and wiring for a pool manager and
// query executor against the test server.
package testing

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voca9204/db3-sub002/internal/creds"
	"github.com/voca9204/db3-sub002/internal/logging"
	"github.com/voca9204/db3-sub002/internal/pool"
	"github.com/voca9204/db3-sub002/internal/query"
	"github.com/voca9204/db3-sub002/internal/testinfra"
	"github.com/voca9204/db3-sub002/pkg/db3"
)

var (
	testContainerOnce sync.Once
	testContainerConn string
	testContainerErr  error
)

func getOrStartTestContainer() (string, error) {
	testContainerOnce.Do(func() {
		ctx := context.Background()
		container, err := testinfra.StartPostgres(ctx)
		if err != nil {
			testContainerErr = err
			return
		}
		testContainerConn = container.ConnString
	})
	return testContainerConn, testContainerErr
}

// GetTestConnectionString returns the test database connection string.
// Priority: DB3_TEST_CONN env var > auto-started testcontainer > skip test.
func GetTestConnectionString(t *testing.T) string {
	t.Helper()

	if connString := os.Getenv("DB3_TEST_CONN"); connString != "" {
		return connString
	}

	connString, err := getOrStartTestContainer()
	if err != nil {
		t.Skipf("DB3_TEST_CONN not set and Docker unavailable: %v", err)
	}
	return connString
}

// SkipIfShort skips the test if running in short mode (-short flag).
func SkipIfShort(t *testing.T) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// RequireDatabase combines SkipIfShort and GetTestConnectionString for convenience.
// Returns the test connection string if available, otherwise skips the test.
func RequireDatabase(t *testing.T) string {
	t.Helper()

	SkipIfShort(t)
	return GetTestConnectionString(t)
}

// TestCredentials parses the connection string into credentials for a
// provider. Fails the test on a malformed string.
func TestCredentials(t *testing.T, connString string) db3.Credentials {
	t.Helper()

	c, err := creds.ParseDSN(connString)
	if err != nil {
		t.Fatalf("Failed to parse connection string: %v", err)
	}
	return c
}

// NewTestManager creates a pool manager against the test database with the
// given profile. SSLMode is forced to disable to match the container setup.
// The manager is closed when the test completes.
func NewTestManager(t *testing.T, connString string, cfg db3.PoolConfig) *pool.Manager {
	t.Helper()

	provider, err := creds.NewStatic(TestCredentials(t, connString))
	if err != nil {
		t.Fatalf("Failed to build credentials provider: %v", err)
	}

	cfg.SSLMode = "disable"
	manager, err := pool.New(cfg, provider, logging.NewNullLogger())
	if err != nil {
		t.Fatalf("Failed to create pool manager: %v", err)
	}

	t.Cleanup(func() {
		manager.Close() //nolint:errcheck
	})
	return manager
}

// NewTestExecutor creates a query executor on top of a test pool manager.
func NewTestExecutor(t *testing.T, connString string, cfg db3.PoolConfig) (*query.Executor, *pool.Manager) {
	t.Helper()

	manager := NewTestManager(t, connString, cfg)
	return query.New(manager, logging.NewNullLogger()), manager
}

// CreateTestDB creates a test database with the given name.
// Returns a cleanup function that should be called with t.Cleanup().
func CreateTestDB(t *testing.T, connString, dbName string) func() {
	t.Helper()

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		t.Fatalf("Failed to connect for test DB creation: %v", err)
	}

	createQuery := fmt.Sprintf("CREATE DATABASE %s", dbName)
	_, err = pool.Exec(ctx, createQuery)
	if err != nil {
		pool.Close()
		t.Fatalf("Failed to create test database %s: %v", dbName, err)
	}

	pool.Close()

	return func() {
		CleanupTestDB(t, connString, dbName)
	}
}

// CleanupTestDB drops the test database.
// Safe to call multiple times (uses DROP DATABASE IF EXISTS).
func CleanupTestDB(t *testing.T, connString, dbName string) {
	t.Helper()

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		t.Logf("Warning: Failed to connect for cleanup: %v", err)
		return
	}
	defer pool.Close()

	// Sessions still attached to the database block the drop.
	terminateQuery := `
		SELECT pg_terminate_backend(pid)
		FROM pg_stat_activity
		WHERE datname = $1 AND pid <> pg_backend_pid()
	`
	_, err = pool.Exec(ctx, terminateQuery, dbName)
	if err != nil {
		t.Logf("Warning: Failed to terminate connections to %s: %v", dbName, err)
	}

	dropQuery := fmt.Sprintf("DROP DATABASE IF EXISTS %s", dbName)
	_, err = pool.Exec(ctx, dropQuery)
	if err != nil {
		t.Logf("Warning: Failed to drop database %s: %v", dbName, err)
	}
}

// TerminateBackends kills every server backend attached to the connection
// string's database except the caller's own. Tests use it to simulate a
// dropped connection mid-stream.
func TerminateBackends(t *testing.T, connString string) {
	t.Helper()

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		t.Fatalf("Failed to connect for backend termination: %v", err)
	}
	defer pool.Close()

	_, err = pool.Exec(ctx, `
		SELECT pg_terminate_backend(pid)
		FROM pg_stat_activity
		WHERE datname = current_database() AND pid <> pg_backend_pid()
	`)
	if err != nil {
		t.Fatalf("Failed to terminate backends: %v", err)
	}
}
