package creds

import (
	"context"
	"time"

	"github.com/voca9204/db3-sub002/pkg/db3"
)

// TokenProvider is implemented by providers whose credentials carry an
// explicit expiry, such as cloud IAM tokens. Caching uses the reported
// expiry instead of a fixed TTL.
type TokenProvider interface {
	db3.CredentialsProvider

	// GetWithExpiry returns credentials plus the instant they stop being
	// valid.
	GetWithExpiry(ctx context.Context) (db3.Credentials, time.Time, error)
}

// Invalidator is implemented by providers that can drop cached state, so
// a failed authentication can force a fresh fetch on the next attempt.
type Invalidator interface {
	Invalidate()
}
