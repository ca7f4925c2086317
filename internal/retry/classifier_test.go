package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/voca9204/db3-sub002/pkg/db3"
)

func TestClassifier_Classify_PgErrors(t *testing.T) {
	tests := []struct {
		name string
		code string
		want db3.Classification
	}{
		{"unique violation", "23505", db3.ClassRetryable},
		{"serialization failure", "40001", db3.ClassRetryable},
		{"deadlock detected", "40P01", db3.ClassRetryable},
		{"too many connections", "53300", db3.ClassRetryable},
		{"lock not available", "55P03", db3.ClassRetryable},
		{"connection exception", "08000", db3.ClassTransient},
		{"connection does not exist", "08003", db3.ClassTransient},
		{"connection failure", "08006", db3.ClassTransient},
		{"cannot establish connection", "08001", db3.ClassTransient},
		{"admin shutdown", "57P01", db3.ClassTransient},
		{"crash shutdown", "57P02", db3.ClassTransient},
		{"cannot connect now", "57P03", db3.ClassTransient},
		{"invalid authorization", "28000", db3.ClassFatal},
		{"invalid password", "28P01", db3.ClassFatal},
		{"invalid catalog name", "3D000", db3.ClassFatal},
		{"invalid schema name", "3F000", db3.ClassFatal},
		{"undefined table", "42P01", db3.ClassRetryable},
	}

	classifier := NewClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &pgconn.PgError{Code: tt.code, Message: tt.name}
			if got := classifier.Classify(err); got != tt.want {
				t.Errorf("Classify(SQLSTATE %s) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestClassifier_Classify_WrappedPgError(t *testing.T) {
	classifier := NewClassifier()

	wrapped := fmt.Errorf("executing probe: %w", &pgconn.PgError{Code: "08006"})
	if got := classifier.Classify(wrapped); got != db3.ClassTransient {
		t.Errorf("Classify(wrapped 08006) = %v, want transient", got)
	}
}

func TestClassifier_Classify_Sentinels(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want db3.Classification
	}{
		{"credentials", fmt.Errorf("fetching token: %w", db3.ErrCredentials), db3.ClassFatal},
		{"access denied", fmt.Errorf("probe: %w", db3.ErrAccessDenied), db3.ClassFatal},
		{"query timeout", fmt.Errorf("query timeout after 10000ms: %w", db3.ErrQueryTimeout), db3.ClassTransient},
		{"deadline exceeded", context.DeadlineExceeded, db3.ClassTransient},
		{"canceled", context.Canceled, db3.ClassFatal},
		{"queue full", db3.ErrQueueFull, db3.ClassRetryable},
	}

	classifier := NewClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifier.Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassifier_Classify_NetworkErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want db3.Classification
	}{
		{
			name: "connection reset",
			err:  &net.OpError{Op: "read", Net: "tcp", Err: syscall.ECONNRESET},
			want: db3.ClassTransient,
		},
		{
			name: "broken pipe",
			err:  &net.OpError{Op: "write", Net: "tcp", Err: syscall.EPIPE},
			want: db3.ClassTransient,
		},
		{
			// A refusing server fails fresh pools the same way, so no recreation.
			name: "connection refused",
			err:  &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED},
			want: db3.ClassRetryable,
		},
		{
			name: "dns failure",
			err:  &net.DNSError{Err: "no such host", Name: "nonexistent.invalid"},
			want: db3.ClassRetryable,
		},
	}

	classifier := NewClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifier.Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassifier_Classify_MessagePatterns(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want db3.Classification
	}{
		{"reset by peer", "read tcp 10.0.0.5:51234->10.0.0.9:5432: connection reset by peer", db3.ClassTransient},
		{"server closed", "FATAL: server closed the connection unexpectedly", db3.ClassTransient},
		{"closed pool", "acquire: closed pool", db3.ClassTransient},
		{"conn closed", "conn closed", db3.ClassTransient},
		{"unexpected eof", "unexpected EOF", db3.ClassTransient},
		{"io timeout", "read tcp 10.0.0.5:51234: i/o timeout", db3.ClassTransient},
		{"auth failed", "FATAL: password authentication failed for user \"app\"", db3.ClassFatal},
		{"ordinary error", "value too long for type character varying(10)", db3.ClassRetryable},
		{"missing relation", "relation \"users\" does not exist", db3.ClassRetryable},
		{"refused text", "dial tcp 10.0.0.9:5432: connect: connection refused", db3.ClassRetryable},
	}

	classifier := NewClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifier.Classify(errors.New(tt.msg)); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.msg, got, tt.want)
			}
		})
	}
}

func TestClassifier_Classify_Nil(t *testing.T) {
	classifier := NewClassifier()
	if got := classifier.Classify(nil); got != db3.ClassRetryable {
		t.Errorf("Classify(nil) = %v, want retryable", got)
	}
}
