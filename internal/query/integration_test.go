package query_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	testhelpers "github.com/voca9204/db3-sub002/internal/testing"
	"github.com/voca9204/db3-sub002/pkg/db3"
)

// calmProfile keeps background churn away from tests that measure
// executor behavior.
func calmProfile() db3.PoolConfig {
	return db3.PoolConfig{
		MaxConns:          4,
		KeepaliveInterval: time.Minute,
		IdleTimeout:       10 * time.Minute,
		MaxLifetime:       time.Hour,
	}
}

func TestIntegration_ExecuteQueryRoundTrip(t *testing.T) {
	connString := testhelpers.RequireDatabase(t)
	executor, _ := testhelpers.NewTestExecutor(t, connString, calmProfile())
	ctx := context.Background()

	res, err := executor.ExecuteQuery(ctx, "SELECT 1::int AS n, 'hello'::text AS v", nil, db3.QueryOptions{})
	if err != nil {
		t.Fatalf("ExecuteQuery: %v", err)
	}

	if len(res.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(res.Rows))
	}
	if res.Rows[0]["n"] != int32(1) {
		t.Errorf(`row["n"] = %v (%T), want int32(1)`, res.Rows[0]["n"], res.Rows[0]["n"])
	}
	if res.Rows[0]["v"] != "hello" {
		t.Errorf(`row["v"] = %v, want "hello"`, res.Rows[0]["v"])
	}
}

func TestIntegration_Parameters(t *testing.T) {
	connString := testhelpers.RequireDatabase(t)
	executor, _ := testhelpers.NewTestExecutor(t, connString, calmProfile())
	ctx := context.Background()

	res, err := executor.ExecuteQuery(ctx,
		"SELECT $1::int + $2::int AS total", []any{19, 23}, db3.QueryOptions{})
	if err != nil {
		t.Fatalf("ExecuteQuery: %v", err)
	}
	if res.Rows[0]["total"] != int32(42) {
		t.Errorf("total = %v, want 42", res.Rows[0]["total"])
	}
}

func TestIntegration_QueryOne(t *testing.T) {
	connString := testhelpers.RequireDatabase(t)
	executor, _ := testhelpers.NewTestExecutor(t, connString, calmProfile())
	ctx := context.Background()

	t.Run("first of many", func(t *testing.T) {
		row, err := executor.QueryOne(ctx,
			"SELECT g FROM generate_series(1, 3) AS g ORDER BY g", nil, db3.QueryOptions{})
		if err != nil {
			t.Fatalf("QueryOne: %v", err)
		}
		if row == nil {
			t.Fatal("expected a row")
		}
		if row["g"] != int32(1) {
			t.Errorf("g = %v, want 1", row["g"])
		}
	})

	t.Run("empty result is nil not error", func(t *testing.T) {
		row, err := executor.QueryOne(ctx,
			"SELECT 1 AS n WHERE false", nil, db3.QueryOptions{})
		if err != nil {
			t.Fatalf("QueryOne on empty result: %v", err)
		}
		if row != nil {
			t.Errorf("expected nil row, got %v", row)
		}
	})
}

func TestIntegration_DuplicateEntry(t *testing.T) {
	connString := testhelpers.RequireDatabase(t)
	executor, _ := testhelpers.NewTestExecutor(t, connString, calmProfile())
	ctx := context.Background()

	table := fmt.Sprintf("db3_it_dup_%d", time.Now().UnixNano())
	noRetry := db3.QueryOptions{MaxAttempts: 1}

	if _, err := executor.ExecuteQuery(ctx,
		fmt.Sprintf("CREATE TABLE %s (id int PRIMARY KEY)", table), nil, noRetry); err != nil {
		t.Fatalf("create table: %v", err)
	}
	t.Cleanup(func() {
		executor.ExecuteQuery(context.Background(), //nolint:errcheck
			fmt.Sprintf("DROP TABLE IF EXISTS %s", table), nil, noRetry)
	})

	res, err := executor.ExecuteQuery(ctx,
		fmt.Sprintf("INSERT INTO %s VALUES ($1)", table), []any{1}, noRetry)
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if res.RowsAffected != 1 {
		t.Errorf("RowsAffected = %d, want 1", res.RowsAffected)
	}

	_, err = executor.ExecuteQuery(ctx,
		fmt.Sprintf("INSERT INTO %s VALUES ($1)", table), []any{1}, noRetry)
	if err == nil {
		t.Fatal("expected unique violation")
	}
	if !errors.Is(err, db3.ErrDuplicateEntry) {
		t.Errorf("error = %v, want ErrDuplicateEntry", err)
	}
	var qe *db3.QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("error is %T, want *db3.QueryError", err)
	}
	if qe.Code != "23505" {
		t.Errorf("SQLSTATE = %q, want 23505", qe.Code)
	}
	if db3.ExitCodeForError(err) != db3.ExitQueryFailed {
		t.Errorf("exit code = %d, want %d", db3.ExitCodeForError(err), db3.ExitQueryFailed)
	}
}

func TestIntegration_StatementTimeout(t *testing.T) {
	connString := testhelpers.RequireDatabase(t)
	executor, _ := testhelpers.NewTestExecutor(t, connString, calmProfile())
	ctx := context.Background()

	start := time.Now()
	_, err := executor.ExecuteQuery(ctx, "SELECT pg_sleep(5)", nil,
		db3.QueryOptions{MaxAttempts: 1, Timeout: 200 * time.Millisecond})
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected timeout")
	}
	if !errors.Is(err, db3.ErrQueryTimeout) {
		t.Errorf("error = %v, want ErrQueryTimeout", err)
	}
	if elapsed >= 5*time.Second {
		t.Errorf("call took %v, the timeout did not cut the statement short", elapsed)
	}
	if db3.ExitCodeForError(err) != db3.ExitTimeout {
		t.Errorf("exit code = %d, want %d", db3.ExitCodeForError(err), db3.ExitTimeout)
	}
}

// The serverless recovery path end to end: the server kills every backing
// connection, the next query fails transiently, the executor forces a pool
// recreation, and the retry succeeds against the fresh pool.
func TestIntegration_RecoversFromKilledBackends(t *testing.T) {
	connString := testhelpers.RequireDatabase(t)
	executor, manager := testhelpers.NewTestExecutor(t, connString, calmProfile())
	ctx := context.Background()

	// Warm the pool so it holds at least one established connection.
	if _, err := executor.ExecuteQuery(ctx, "SELECT 1", nil, db3.QueryOptions{}); err != nil {
		t.Fatalf("warm-up query: %v", err)
	}
	before := manager.Stats().PoolID

	testhelpers.TerminateBackends(t, connString)

	start := time.Now()
	res, err := executor.ExecuteQuery(ctx, "SELECT 1 AS one", nil, db3.QueryOptions{MaxAttempts: 3})
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("query after backend termination: %v", err)
	}
	if res.Rows[0]["one"] != int32(1) {
		t.Errorf("result = %v, want 1", res.Rows[0]["one"])
	}

	after := manager.Stats().PoolID
	if after == before {
		t.Error("expected a forced pool recreation to replace the pool id")
	}

	// The success came through a retry, so at least one computed backoff
	// delay (500ms base) was served.
	if elapsed < 400*time.Millisecond {
		t.Errorf("recovery took %v, expected at least one backoff delay", elapsed)
	}
}

func TestIntegration_ErrorMessagesCarrySQLState(t *testing.T) {
	connString := testhelpers.RequireDatabase(t)
	executor, _ := testhelpers.NewTestExecutor(t, connString, calmProfile())
	ctx := context.Background()

	_, err := executor.ExecuteQuery(ctx, "SELECT * FROM table_that_does_not_exist", nil,
		db3.QueryOptions{MaxAttempts: 1})
	if err == nil {
		t.Fatal("expected failure for missing table")
	}

	var qe *db3.QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("error is %T, want *db3.QueryError", err)
	}
	if !errors.Is(err, db3.ErrQueryFailed) {
		t.Errorf("kind = %v, want ErrQueryFailed", qe.Kind)
	}
	if qe.Code != "42P01" {
		t.Errorf("SQLSTATE = %q, want 42P01 (undefined table)", qe.Code)
	}
	if !strings.Contains(qe.Message, "table_that_does_not_exist") {
		t.Errorf("message should name the table: %q", qe.Message)
	}
}
