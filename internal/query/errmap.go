package query

import (
	"context"
	"errors"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/voca9204/db3-sub002/pkg/db3"
)

const pgCodeUniqueViolation = "23505"

// lostMessages are substrings of driver errors that mean an established
// connection went away mid-flight.
var lostMessages = []string{
	"connection lost",
	"connection reset",
	"connection failure",
	"server closed the connection",
	"broken pipe",
	"unexpected eof",
	"conn closed",
	"closed pool",
}

// mapQueryError collapses whatever came out of the retry loop into exactly
// one *db3.QueryError: a sentinel Kind so errors.Is works, the SQLSTATE when
// the server reported one, and a message with secrets masked out. The raw
// driver error is not retained.
func mapQueryError(err error) *db3.QueryError {
	var qe *db3.QueryError
	if errors.As(err, &qe) {
		return qe
	}

	code := ""
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		code = pgErr.Code
	}

	return &db3.QueryError{
		Kind:    classifyKind(err, code),
		Code:    code,
		Message: db3.MaskSecrets(err.Error()),
	}
}

func classifyKind(err error, code string) error {
	msg := strings.ToLower(err.Error())

	switch {
	case code == pgCodeUniqueViolation || errors.Is(err, db3.ErrDuplicateEntry):
		return db3.ErrDuplicateEntry

	case errors.Is(err, db3.ErrQueryTimeout) || errors.Is(err, context.DeadlineExceeded):
		return db3.ErrQueryTimeout

	case strings.HasPrefix(code, "28") ||
		errors.Is(err, db3.ErrAccessDenied) ||
		errors.Is(err, db3.ErrCredentials):
		return db3.ErrAccessDenied

	case errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, db3.ErrConnectionRefused) ||
		strings.Contains(msg, "connection refused"):
		return db3.ErrConnectionRefused

	case strings.HasPrefix(code, "08") ||
		errors.Is(err, db3.ErrConnectionLost) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		hasLostMessage(msg):
		return db3.ErrConnectionLost

	case errors.Is(err, db3.ErrConnectionFailed):
		return db3.ErrConnectionFailed

	case errors.Is(err, db3.ErrQueueFull):
		return db3.ErrQueueFull

	case errors.Is(err, db3.ErrManagerClosed):
		return db3.ErrManagerClosed

	default:
		return db3.ErrQueryFailed
	}
}

func hasLostMessage(msg string) bool {
	for _, pattern := range lostMessages {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
