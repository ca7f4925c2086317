package pool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/sync/singleflight"

	"github.com/voca9204/db3-sub002/internal/logging"
	"github.com/voca9204/db3-sub002/pkg/db3"
)

// handle is one installed pool instance. Handles are replaced wholesale on
// recreation, never mutated in place, so a caller holding the previous pool
// keeps a consistent (if closed) object.
type handle struct {
	pool      driverPool
	id        string
	createdAt time.Time
	lastUsed  time.Time
	stop      context.CancelFunc
}

// credentialInvalidator is implemented by caching credential providers.
// The manager invalidates after an authentication failure so the next
// creation fetches fresh credentials instead of replaying a stale token.
type credentialInvalidator interface {
	Invalidate()
}

// Manager owns at most one live connection pool and its keepalive.
//
// Thread-Safety: safe for concurrent use. Concurrent creations are memoized
// through singleflight so parallel callers share one in-flight attempt.
type Manager struct {
	cfg   db3.PoolConfig
	creds db3.CredentialsProvider
	log   db3.Logger

	open  openFunc
	dial  pgconn.DialFunc
	newID func() string

	lifeCtx  context.Context
	lifeStop context.CancelFunc

	flight singleflight.Group
	wg     sync.WaitGroup

	mu         sync.Mutex
	h          *handle
	closed     bool
	degraded   bool
	healStreak int
}

// Option configures a Manager.
type Option func(*Manager)

// WithDialFunc routes every connection through a custom dialer, such as the
// Cloud SQL connector.
func WithDialFunc(dial pgconn.DialFunc) Option {
	return func(m *Manager) {
		m.dial = dial
	}
}

// WithIDFunc overrides pool id generation. Used by tests for stable ids.
func WithIDFunc(fn func() string) Option {
	return func(m *Manager) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// New creates a Manager around the given profile and credential source.
// No pool is opened until the first GetPool or CreatePool call.
func New(cfg db3.PoolConfig, creds db3.CredentialsProvider, log db3.Logger, opts ...Option) (*Manager, error) {
	if creds == nil {
		return nil, fmt.Errorf("credentials provider is required: %w", db3.ErrInvalidConfig)
	}
	if log == nil {
		log = logging.NewNullLogger()
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	lifeCtx, lifeStop := context.WithCancel(context.Background())

	m := &Manager{
		cfg:      cfg,
		creds:    creds,
		log:      log,
		open:     openDriverPool,
		newID:    uuid.NewString,
		lifeCtx:  lifeCtx,
		lifeStop: lifeStop,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// GetPool returns the live pool, creating one lazily when absent. The
// last-used timestamp is stamped on every call so the keepalive's idle
// accounting tracks real demand.
func (m *Manager) GetPool(ctx context.Context) (db3.DBConnection, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, db3.ErrManagerClosed
	}
	if m.h != nil {
		m.h.lastUsed = time.Now()
		p := m.h.pool
		m.mu.Unlock()
		return p, nil
	}
	m.mu.Unlock()

	h, err := m.create(ctx)
	if err != nil {
		return nil, err
	}
	return h.pool, nil
}

// CreatePool tears down any existing pool and builds a fresh one. The retry
// layer calls this when an error indicates the current pool is broken.
func (m *Manager) CreatePool(ctx context.Context) (db3.DBConnection, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, db3.ErrManagerClosed
	}
	m.mu.Unlock()

	h, err := m.create(ctx)
	if err != nil {
		return nil, err
	}
	return h.pool, nil
}

// create funnels every caller-driven creation through one in-flight build.
// Callers may abandon the wait on their own context; the build itself runs
// on the manager's lifecycle context and still installs the pool for the
// remaining waiters.
func (m *Manager) create(ctx context.Context) (*handle, error) {
	ch := m.flight.DoChan("create", func() (any, error) {
		return m.build()
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		h := res.Val.(*handle)
		m.mu.Lock()
		m.healStreak = 0
		m.degraded = false
		m.mu.Unlock()
		return h, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// build is the full creation sequence: detach and close the old pool, fetch
// fresh credentials, open with the fixed profile, probe, and install.
func (m *Manager) build() (any, error) {
	m.mu.Lock()
	old := m.h
	m.h = nil
	m.mu.Unlock()

	if old != nil {
		old.stop()
		old.pool.Close()
		m.log.Debug("closed previous pool", "pool_id", old.id)
	}

	ctx, cancel := context.WithTimeout(m.lifeCtx, m.cfg.ConnectTimeout)
	defer cancel()

	creds, err := m.creds.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching credentials from %s: %w", m.creds, errors.Join(err, db3.ErrCredentials))
	}

	pool, err := m.open(ctx, creds, m.cfg, m.dial)
	if err != nil {
		m.noteAuthFailure(err)
		masked := db3.MaskSecrets(err.Error(), creds.Password)
		return nil, fmt.Errorf("opening pool for %s: %s: %w", creds, masked, db3.ErrConnectionFailed)
	}

	probeCtx, probeCancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	err = pool.Ping(probeCtx)
	probeCancel()
	if err != nil {
		pool.Close()
		m.noteAuthFailure(err)
		masked := db3.MaskSecrets(err.Error(), creds.Password)
		return nil, fmt.Errorf("probing new pool for %s: %s: %w", creds, masked, db3.ErrConnectionFailed)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		pool.Close()
		return nil, db3.ErrManagerClosed
	}

	now := time.Now()
	keepCtx, stop := context.WithCancel(m.lifeCtx)
	h := &handle{
		pool:      pool,
		id:        m.newID(),
		createdAt: now,
		lastUsed:  now,
		stop:      stop,
	}
	m.h = h
	m.wg.Add(1)
	m.mu.Unlock()

	go m.keepalive(keepCtx, h)

	m.log.Info("pool created",
		"pool_id", h.id,
		"host", creds.Host,
		"database", creds.Database,
		"max_conns", m.cfg.MaxConns,
	)
	return h, nil
}

// noteAuthFailure invalidates cached credentials after an authentication
// failure so the next creation fetches fresh ones.
func (m *Manager) noteAuthFailure(err error) {
	if !isAuthFailure(err) {
		return
	}
	if inv, ok := m.creds.(credentialInvalidator); ok {
		inv.Invalidate()
		m.log.Debug("invalidated cached credentials after auth failure")
	}
}

// isAuthFailure reports whether err is an authentication rejection rather
// than a connectivity problem.
func isAuthFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "28")
	}
	return strings.Contains(strings.ToLower(err.Error()), "password authentication failed")
}

// Stats reports a point-in-time view of the managed pool. It never creates
// a pool and never touches the last-used timestamp.
func (m *Manager) Stats() db3.StatsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.h == nil {
		status := db3.StatusAbsent
		if m.degraded {
			status = db3.StatusDegraded
		}
		return db3.StatsSnapshot{Status: status}
	}

	now := time.Now()
	return db3.StatsSnapshot{
		Status:    db3.StatusActive,
		PoolID:    m.h.id,
		CreatedAt: m.h.createdAt,
		LastUsed:  m.h.lastUsed,
		IdleTime:  now.Sub(m.h.lastUsed),
		Lifetime:  now.Sub(m.h.createdAt),
		Conns:     m.h.pool.Stat(),
	}
}

// Close shuts the manager down: the pool is closed, background work is
// canceled and awaited. Close is idempotent; subsequent GetPool calls
// return ErrManagerClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	h := m.h
	m.h = nil
	m.mu.Unlock()

	m.lifeStop()
	if h != nil {
		h.stop()
		h.pool.Close()
		m.log.Info("pool closed", "pool_id", h.id)
	}
	m.wg.Wait()
	return nil
}
