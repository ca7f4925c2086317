package db3

import "time"

// Exit codes for semantic error classification.
// These follow Unix/GNU conventions:
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error (misuse of command line)
//   - 3+: Application-specific errors
const (
	ExitSuccess         = 0  // Operation completed successfully
	ExitGeneralError    = 1  // Unknown or unclassified error
	ExitUsageError      = 2  // CLI usage error (missing args, invalid flags)
	ExitPanic           = 3  // Internal panic (unexpected crash)
	ExitConfigError     = 10 // Invalid configuration or parameters
	ExitConnectionError = 11 // Failed to connect to or stay connected to the database
	ExitCredentialError = 12 // Credential fetch or authentication failure
	ExitTimeout         = 13 // Query timed out
	ExitQueryFailed     = 14 // Query was rejected by the server
)

const (
	// DefaultPort is the PostgreSQL server port used when none is configured.
	DefaultPort = 5432

	// DefaultMaxAttempts is the total attempt budget for a query, including
	// the first try.
	DefaultMaxAttempts = 3

	// DefaultQueryTimeout bounds each individual query attempt.
	DefaultQueryTimeout = 10 * time.Second

	// DefaultBackoffInitialDelay is the base delay before the first retry.
	DefaultBackoffInitialDelay = 500 * time.Millisecond

	// DefaultBackoffMultiplier is the exponential growth factor between retries.
	DefaultBackoffMultiplier = 1.5

	// DefaultBackoffJitterRange is the width of the additive jitter window.
	// Each delay gains a uniform random amount in [0, DefaultBackoffJitterRange).
	DefaultBackoffJitterRange = 250 * time.Millisecond

	// DefaultBackoffMaxDelay caps the delay between attempts, jitter included.
	DefaultBackoffMaxDelay = 5 * time.Second

	// DefaultKeepaliveInterval is the background health check tick period.
	DefaultKeepaliveInterval = 30 * time.Second

	// DefaultIdleTimeout is the inactivity span after which the keepalive
	// tears down the pool to let a serverless instance go quiet.
	DefaultIdleTimeout = 60 * time.Second

	// DefaultMaxLifetime is the pool age at which the keepalive proactively
	// recreates it, picking up rotated credentials and new server topology.
	DefaultMaxLifetime = 5 * time.Minute

	// DefaultMaxConns caps open connections per pool.
	DefaultMaxConns = 10

	// DefaultQueueLimit caps lease requests waiting beyond MaxConns.
	DefaultQueueLimit = 20

	// DefaultConnectTimeout bounds pool creation end to end.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultProbeTimeout bounds a single health probe.
	DefaultProbeTimeout = 5 * time.Second

	// DefaultSlowQueryThreshold is the duration above which a query is
	// logged at warn level instead of debug.
	DefaultSlowQueryThreshold = 1 * time.Second

	// DefaultClientEncoding is the client_encoding runtime parameter value.
	DefaultClientEncoding = "UTF8"

	// DefaultAppName is reported as application_name when none is configured.
	DefaultAppName = "db3"

	// MaxLoggedSQLLength is the maximum number of SQL characters included in
	// log records and error messages. This prevents overwhelming the log
	// stream with large statements.
	MaxLoggedSQLLength = 200
)
