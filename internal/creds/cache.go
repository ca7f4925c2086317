package creds

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/voca9204/db3-sub002/pkg/db3"
)

const (
	// DefaultCacheTTL bounds how long credentials from providers without
	// expiry information are reused.
	DefaultCacheTTL = 10 * time.Minute

	// DefaultExpirySkew is subtracted from the provider-reported expiry so
	// a token is refreshed before it actually lapses. Connection setup can
	// take a few seconds and the token must outlive the handshake.
	DefaultExpirySkew = 30 * time.Second
)

// Caching wraps a provider and reuses its result until it expires. Token
// providers are cached until their reported expiry minus a skew; everything
// else is cached for a fixed TTL. Invalidate drops the cached entry, which
// the pool uses after an authentication failure to force a fresh fetch.
type Caching struct {
	inner db3.CredentialsProvider
	ttl   time.Duration
	skew  time.Duration

	now func() time.Time

	mu      sync.Mutex
	cached  db3.Credentials
	expires time.Time
	valid   bool
}

var (
	_ db3.CredentialsProvider = (*Caching)(nil)
	_ Invalidator             = (*Caching)(nil)
)

// CacheOption configures a Caching provider.
type CacheOption func(*Caching)

// WithTTL overrides the fixed TTL used for providers without expiry
// information.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Caching) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithExpirySkew overrides how early a token is refreshed relative to its
// reported expiry.
func WithExpirySkew(skew time.Duration) CacheOption {
	return func(c *Caching) {
		if skew >= 0 {
			c.skew = skew
		}
	}
}

// NewCaching wraps inner with result caching.
func NewCaching(inner db3.CredentialsProvider, opts ...CacheOption) *Caching {
	c := &Caching{
		inner: inner,
		ttl:   DefaultCacheTTL,
		skew:  DefaultExpirySkew,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached credentials when they are still fresh, otherwise
// fetches from the wrapped provider. A failed fetch never evicts a previously
// cached entry; expiry handles that.
func (c *Caching) Get(ctx context.Context) (db3.Credentials, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid && c.now().Before(c.expires) {
		return c.cached, nil
	}

	creds, expires, err := c.fetch(ctx)
	if err != nil {
		return db3.Credentials{}, err
	}

	c.cached = creds
	c.expires = expires
	c.valid = true
	return creds, nil
}

func (c *Caching) fetch(ctx context.Context) (db3.Credentials, time.Time, error) {
	if tp, ok := c.inner.(TokenProvider); ok {
		creds, expiry, err := tp.GetWithExpiry(ctx)
		if err != nil {
			return db3.Credentials{}, time.Time{}, err
		}
		refreshAt := expiry.Add(-c.skew)
		if !refreshAt.After(c.now()) {
			// A token already inside the skew window is still usable
			// for this call, but must not be cached.
			refreshAt = c.now()
		}
		return creds, refreshAt, nil
	}

	creds, err := c.inner.Get(ctx)
	if err != nil {
		return db3.Credentials{}, time.Time{}, err
	}
	return creds, c.now().Add(c.ttl), nil
}

// Invalidate drops the cached entry so the next Get hits the wrapped
// provider. It also forwards to the wrapped provider when that provider
// caches state of its own.
func (c *Caching) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()

	if inv, ok := c.inner.(Invalidator); ok {
		inv.Invalidate()
	}
}

// String identifies the wrapped provider.
func (c *Caching) String() string {
	return fmt.Sprintf("Caching(%s)", c.inner)
}
