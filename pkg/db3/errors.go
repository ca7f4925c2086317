package db3

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure scenarios.
// These enable callers to distinguish error types using errors.Is().
//
// Example usage:
//
//	_, err := executor.ExecuteQuery(ctx, sql, args, opts)
//	if errors.Is(err, db3.ErrDuplicateEntry) {
//	    // Handle unique constraint violation
//	}
var (
	// ErrInvalidConfig indicates the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrCredentials indicates credentials could not be fetched or resolved.
	ErrCredentials = errors.New("credentials unavailable")

	// ErrConnectionFailed indicates a pool could not be created or probed.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrManagerClosed indicates the pool manager has been shut down.
	ErrManagerClosed = errors.New("pool manager closed")

	// ErrQueueFull indicates the lease wait queue is at capacity.
	ErrQueueFull = errors.New("connection queue full")

	// ErrDuplicateEntry indicates a unique constraint violation (SQLSTATE 23505).
	ErrDuplicateEntry = errors.New("duplicate entry")

	// ErrQueryTimeout indicates a query attempt exceeded its timeout.
	ErrQueryTimeout = errors.New("query timeout")

	// ErrAccessDenied indicates the server rejected the credentials or the
	// role lacks permission (SQLSTATE class 28).
	ErrAccessDenied = errors.New("access denied")

	// ErrConnectionLost indicates an established connection dropped mid-query.
	ErrConnectionLost = errors.New("connection lost")

	// ErrConnectionRefused indicates the server actively refused the dial.
	ErrConnectionRefused = errors.New("connection refused")

	// ErrQueryFailed indicates a query failure outside the specific
	// categories above.
	ErrQueryFailed = errors.New("query failed")
)

// QueryError is the classified error returned by the query executor after
// its retry budget is spent. Kind is always one of the sentinel errors in
// this package, so callers can branch with errors.Is. Code carries the
// PostgreSQL SQLSTATE when the server reported one. Message has passed
// through MaskSecrets and never contains credential material; the raw
// driver error is not retained.
type QueryError struct {
	Kind    error
	Code    string
	Message string
}

func (e *QueryError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("%s (SQLSTATE %s): %s", e.Kind.Error(), e.Code, e.Message)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Message)
	default:
		return e.Kind.Error()
	}
}

// Unwrap exposes the sentinel so errors.Is matches the category.
func (e *QueryError) Unwrap() error { return e.Kind }

// ExitCodeForError returns the appropriate exit code for an error.
// Returns ExitSuccess (0) for nil errors, semantic codes for known errors,
// and ExitGeneralError (1) for unclassified errors.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Check for sentinel errors
	switch {
	case errors.Is(err, ErrInvalidConfig):
		return ExitConfigError
	case errors.Is(err, ErrCredentials), errors.Is(err, ErrAccessDenied):
		return ExitCredentialError
	case errors.Is(err, ErrQueryTimeout):
		return ExitTimeout
	case errors.Is(err, ErrConnectionFailed),
		errors.Is(err, ErrConnectionLost),
		errors.Is(err, ErrConnectionRefused),
		errors.Is(err, ErrQueueFull),
		errors.Is(err, ErrManagerClosed):
		return ExitConnectionError
	case errors.Is(err, ErrDuplicateEntry), errors.Is(err, ErrQueryFailed):
		return ExitQueryFailed
	}

	errStr := err.Error()

	// Cobra reports flag and argument misuse as plain errors.
	if strings.Contains(errStr, "unknown flag") ||
		strings.Contains(errStr, "unknown shorthand flag") ||
		strings.Contains(errStr, "unknown command") ||
		strings.Contains(errStr, "invalid argument") ||
		strings.Contains(errStr, "required flag") ||
		strings.Contains(errStr, "requires at least") ||
		strings.Contains(errStr, "accepts") {
		return ExitUsageError
	}

	// Check for common connection error patterns
	if strings.Contains(errStr, "failed to connect") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") {
		return ExitConnectionError
	}

	return ExitGeneralError
}
