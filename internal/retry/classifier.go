package retry

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/voca9204/db3-sub002/pkg/db3"
)

// PostgreSQL error codes relevant to classification
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	// Class 08 - Connection Exception
	pgClassConnectionException = "08"

	// Class 28 - Invalid Authorization Specification
	pgClassInvalidAuthorization = "28"

	// Class 3D/3F - target does not exist
	pgCodeInvalidCatalogName = "3D000"
	pgCodeInvalidSchemaName  = "3F000"

	// Class 57 - Operator Intervention
	pgCodeAdminShutdown    = "57P01"
	pgCodeCrashShutdown    = "57P02"
	pgCodeCannotConnectNow = "57P03"
)

// Classifier implements db3.ErrorClassifier for PostgreSQL-backed pools.
//
// Errors fall into three buckets. Fatal errors (bad credentials, missing
// database, canceled context) are rejected immediately. Transient errors
// (dropped or reset connections, closed pools, attempt timeouts, server
// shutdown codes) poison the pool, so the retry layer forces a recreation
// before trying again. Everything else, including refused dials and
// serialization failures, is retried with backoff against the pool as is.
type Classifier struct{}

// NewClassifier creates a new PostgreSQL error classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify buckets err for the retry executor.
func (c *Classifier) Classify(err error) db3.Classification {
	if err == nil {
		return db3.ClassRetryable
	}

	if c.isFatal(err) {
		return db3.ClassFatal
	}
	if c.isTransient(err) {
		return db3.ClassTransient
	}

	return db3.ClassRetryable
}

// isFatal identifies errors that will not improve with retries.
func (c *Classifier) isFatal(err error) bool {
	// A canceled caller is done regardless of what the server would say.
	if errors.Is(err, context.Canceled) {
		return true
	}

	if errors.Is(err, db3.ErrCredentials) || errors.Is(err, db3.ErrAccessDenied) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 28 - Invalid Authorization Specification
		if strings.HasPrefix(pgErr.Code, pgClassInvalidAuthorization) {
			return true
		}

		// Target database or schema does not exist
		switch pgErr.Code {
		case pgCodeInvalidCatalogName, pgCodeInvalidSchemaName:
			return true
		}

		return false
	}

	// Auth failures sometimes surface as plain connect errors before a
	// PgError is available.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "password authentication failed") ||
		strings.Contains(msg, "authentication failed")
}

// isTransient identifies errors that suggest the pool itself is broken.
func (c *Classifier) isTransient(err error) bool {
	// Attempt timeouts force a recreation: a pool that times out on a
	// trivial statement is usually wedged, not slow.
	if errors.Is(err, db3.ErrQueryTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return c.isTransientPgError(pgErr)
	}

	if c.isNetworkError(err) {
		return true
	}

	return c.hasTransientMessage(err)
}

// isTransientPgError checks PostgreSQL error codes for broken-connection
// conditions.
func (c *Classifier) isTransientPgError(pgErr *pgconn.PgError) bool {
	// Class 08 - Connection Exception
	if strings.HasPrefix(pgErr.Code, pgClassConnectionException) {
		return true
	}

	// Class 57 - Operator Intervention (admin shutdown, crash shutdown)
	switch pgErr.Code {
	case pgCodeAdminShutdown, pgCodeCrashShutdown, pgCodeCannotConnectNow:
		return true
	}

	return false
}

// isNetworkError checks for network-level failures of an established
// connection. Refused dials are deliberately excluded: the server is not
// accepting anyone, and a fresh pool would fail the same way.
func (c *Classifier) isNetworkError(err error) bool {
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return false
		}
		return opErr.Timeout()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}

// hasTransientMessage checks for broken-connection conditions that only
// surface as message text, such as leases against an already closed pool.
func (c *Classifier) hasTransientMessage(err error) bool {
	transientPatterns := []string{
		"connection reset",
		"connection lost",
		"connection failure",
		"server closed the connection",
		"broken pipe",
		"unexpected eof",
		"conn closed",
		"closed pool",
		"i/o timeout",
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}

	return false
}
