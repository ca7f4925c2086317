// Package db3 defines the public contract for the db3 database access layer:
// credential and configuration types, the interfaces implemented by the pool
// manager and query executor, sentinel errors, and CLI exit codes.
package db3

import (
	"errors"
	"fmt"
	"time"
)

// Credentials holds one resolved set of database connection parameters.
// Providers return a fresh value on every call; the pool manager fetches
// credentials immediately before each pool creation so that rotated
// passwords and short-lived auth tokens are always current.
type Credentials struct {
	// Host is the database server hostname or IP address.
	Host string

	// Port is the database server port. Zero means DefaultPort.
	Port int

	// User is the role to authenticate as.
	User string

	// Password is the password or ephemeral auth token.
	// It must never appear in logs or error messages; see MaskSecrets.
	Password string

	// Database is the database name to connect to.
	Database string
}

// Validate checks that the credentials are complete enough to open a
// connection. It returns a multi-error if multiple fields are missing.
func (c Credentials) Validate() error {
	var errs []error

	if c.Host == "" {
		errs = append(errs, fmt.Errorf("host is required: %w", ErrInvalidConfig))
	}
	if c.User == "" {
		errs = append(errs, fmt.Errorf("user is required: %w", ErrInvalidConfig))
	}
	if c.Database == "" {
		errs = append(errs, fmt.Errorf("database is required: %w", ErrInvalidConfig))
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d is out of range: %w", c.Port, ErrInvalidConfig))
	}

	return errors.Join(errs...)
}

// String returns a printable description of the target without the password,
// so credentials are safe to pass to %v in logs.
func (c Credentials) String() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return fmt.Sprintf("postgres://%s@%s:%d/%s", c.User, c.Host, port, c.Database)
}

// Row is a single result row keyed by column name.
type Row = map[string]any

// Result is the outcome of one executed statement.
type Result struct {
	// Rows contains the result set. Empty for statements that return no rows.
	Rows []Row

	// RowsAffected is the number of rows changed by the statement, as
	// reported by the server command tag.
	RowsAffected int64
}

// QueryOptions controls retry and timeout behavior for a single query.
// The zero value selects the package defaults.
type QueryOptions struct {
	// MaxAttempts is the total attempt budget, including the first try.
	// Zero means DefaultMaxAttempts.
	MaxAttempts int

	// Timeout bounds each individual attempt, not the call as a whole.
	// Zero means DefaultQueryTimeout.
	Timeout time.Duration
}

// WithDefaults returns a copy with zero fields replaced by package defaults.
func (o QueryOptions) WithDefaults() QueryOptions {
	if o.MaxAttempts == 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultQueryTimeout
	}
	return o
}

// PoolConfig is the fixed profile applied to every pool the manager creates.
// Recreations never vary the profile; only credentials are refreshed.
type PoolConfig struct {
	// MaxConns caps the number of open connections. Zero means DefaultMaxConns.
	MaxConns int32

	// MinConns is the number of connections the driver keeps warm.
	MinConns int32

	// QueueLimit caps lease requests allowed to wait for a free connection
	// beyond MaxConns. Requests past the cap fail immediately with
	// ErrQueueFull. Zero means DefaultQueueLimit; negative disables the cap.
	QueueLimit int32

	// ConnectTimeout bounds credential fetch, dial, and initial probe of a
	// new pool. Zero means DefaultConnectTimeout.
	ConnectTimeout time.Duration

	// ProbeTimeout bounds each keepalive health probe. Zero means
	// DefaultProbeTimeout.
	ProbeTimeout time.Duration

	// IdleTimeout is the inactivity span after which the keepalive tears the
	// pool down. Zero means DefaultIdleTimeout.
	IdleTimeout time.Duration

	// MaxLifetime is the age at which the keepalive proactively recreates
	// the pool. Zero means DefaultMaxLifetime.
	MaxLifetime time.Duration

	// KeepaliveInterval is the keepalive tick period. Zero means
	// DefaultKeepaliveInterval.
	KeepaliveInterval time.Duration

	// SelfHealLimit caps consecutive keepalive-initiated recreations. When
	// the cap is exceeded the manager reports StatusDegraded and suspends
	// background recovery until the next caller-driven creation succeeds.
	// Zero means unlimited.
	SelfHealLimit int

	// SSLMode is the libpq sslmode parameter (disable, prefer, require,
	// verify-ca, verify-full). Empty leaves the driver default.
	SSLMode string

	// ClientEncoding sets the client_encoding runtime parameter, e.g. "UTF8".
	ClientEncoding string

	// AppName is reported to the server as application_name.
	AppName string
}

// WithDefaults returns a copy with zero fields replaced by package defaults.
func (c PoolConfig) WithDefaults() PoolConfig {
	if c.MaxConns == 0 {
		c.MaxConns = DefaultMaxConns
	}
	if c.QueueLimit == 0 {
		c.QueueLimit = DefaultQueueLimit
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.MaxLifetime == 0 {
		c.MaxLifetime = DefaultMaxLifetime
	}
	if c.KeepaliveInterval == 0 {
		c.KeepaliveInterval = DefaultKeepaliveInterval
	}
	if c.ClientEncoding == "" {
		c.ClientEncoding = DefaultClientEncoding
	}
	if c.AppName == "" {
		c.AppName = DefaultAppName
	}
	return c
}

// Validate checks the profile for inconsistent values.
// It returns a multi-error if multiple validation failures occur.
func (c PoolConfig) Validate() error {
	var errs []error

	if c.MaxConns < 0 {
		errs = append(errs, fmt.Errorf("MaxConns cannot be negative: %w", ErrInvalidConfig))
	}
	if c.MinConns < 0 {
		errs = append(errs, fmt.Errorf("MinConns cannot be negative: %w", ErrInvalidConfig))
	}
	if c.MaxConns > 0 && c.MinConns > c.MaxConns {
		errs = append(errs, fmt.Errorf("MinConns %d exceeds MaxConns %d: %w", c.MinConns, c.MaxConns, ErrInvalidConfig))
	}
	if c.ConnectTimeout < 0 || c.ProbeTimeout < 0 || c.IdleTimeout < 0 ||
		c.MaxLifetime < 0 || c.KeepaliveInterval < 0 {
		errs = append(errs, fmt.Errorf("timeouts cannot be negative: %w", ErrInvalidConfig))
	}
	if c.SelfHealLimit < 0 {
		errs = append(errs, fmt.Errorf("SelfHealLimit cannot be negative: %w", ErrInvalidConfig))
	}

	return errors.Join(errs...)
}

// PoolStatus describes whether a manager currently holds a live pool.
type PoolStatus string

const (
	// StatusAbsent means no pool exists. The next use creates one lazily.
	StatusAbsent PoolStatus = "absent"

	// StatusActive means a probed pool is installed and serving leases.
	StatusActive PoolStatus = "active"

	// StatusDegraded means background self-healing hit its SelfHealLimit
	// and gave up. The pool is absent until a caller-driven creation
	// succeeds.
	StatusDegraded PoolStatus = "degraded"
)

// PoolStat mirrors the driver-level connection counters at snapshot time.
type PoolStat struct {
	TotalConns    int32
	IdleConns     int32
	AcquiredConns int32
}

// StatsSnapshot is a point-in-time, read-only view of the managed pool.
// Taking a snapshot never creates a pool and never touches the last-used
// timestamp.
type StatsSnapshot struct {
	Status PoolStatus

	// PoolID identifies the current pool instance. Empty unless active.
	PoolID string

	// CreatedAt is when the current pool was installed.
	CreatedAt time.Time

	// LastUsed is when the pool last served a GetPool call.
	LastUsed time.Time

	// IdleTime is the elapsed time since LastUsed.
	IdleTime time.Duration

	// Lifetime is the age of the current pool.
	Lifetime time.Duration

	// Conns holds the driver connection counters.
	Conns PoolStat
}
