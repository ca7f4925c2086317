package pool

import (
	"context"
	"time"

	"github.com/voca9204/db3-sub002/pkg/db3"
)

// keepaliveAction is the decision taken for one keepalive tick.
type keepaliveAction int

const (
	// actionProbe checks connection health with a ping.
	actionProbe keepaliveAction = iota

	// actionTeardown closes an idle pool and leaves the manager empty.
	actionTeardown

	// actionRecycle replaces a pool that reached its maximum lifetime.
	actionRecycle
)

func (a keepaliveAction) String() string {
	switch a {
	case actionProbe:
		return "probe"
	case actionTeardown:
		return "teardown"
	case actionRecycle:
		return "recycle"
	default:
		return "unknown"
	}
}

// evaluate decides what a keepalive tick does with a pool of the given idle
// time and age. Idle wins over age: an unused pool is torn down, not renewed.
func evaluate(idle, age time.Duration, cfg db3.PoolConfig) keepaliveAction {
	if idle > cfg.IdleTimeout {
		return actionTeardown
	}
	if age > cfg.MaxLifetime {
		return actionRecycle
	}
	return actionProbe
}

// keepalive supervises one handle until it is torn down, recycled, or
// superseded by a newer pool. One keepalive goroutine runs per handle; it
// exits when its handle is no longer the installed one.
func (m *Manager) keepalive(ctx context.Context, h *handle) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.KeepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !m.tick(ctx, h) {
				return
			}
		}
	}
}

// tick runs one keepalive pass. It returns false when this keepalive should
// stop, either because the handle was superseded or because the tick ended
// the handle's life.
func (m *Manager) tick(ctx context.Context, h *handle) bool {
	m.mu.Lock()
	if m.h != h {
		m.mu.Unlock()
		return false
	}

	now := time.Now()
	idle := now.Sub(h.lastUsed)
	age := now.Sub(h.createdAt)
	action := evaluate(idle, age, m.cfg)

	switch action {
	case actionTeardown:
		m.h = nil
		m.mu.Unlock()
		h.stop()
		h.pool.Close()
		m.log.Info("idle pool torn down",
			"pool_id", h.id,
			"idle_ms", idle.Milliseconds(),
		)
		return false

	case actionRecycle:
		m.mu.Unlock()
		m.log.Info("pool reached max lifetime, recreating",
			"pool_id", h.id,
			"age_ms", age.Milliseconds(),
		)
		m.recreateInBackground()
		return false

	default:
		m.mu.Unlock()
		return m.probe(ctx, h)
	}
}

// probe pings the pool. A healthy probe resets the self-heal streak; a
// failed probe hands off to the self-heal policy.
func (m *Manager) probe(ctx context.Context, h *handle) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	err := h.pool.Ping(probeCtx)
	cancel()

	if err == nil {
		m.mu.Lock()
		if m.h == h {
			m.healStreak = 0
		}
		m.mu.Unlock()
		return true
	}

	// A canceled keepalive context means the handle was superseded or the
	// manager is shutting down; that is not a health signal.
	if ctx.Err() != nil {
		return false
	}

	m.log.Warn("keepalive probe failed",
		"pool_id", h.id,
		"error", err.Error(),
	)
	m.selfHeal(h)
	return false
}

// selfHeal recreates the pool after a failed probe, bounded by the
// SelfHealLimit policy: when the streak of consecutive failure-driven
// recreations exceeds the limit, the manager tears the pool down and reports
// StatusDegraded until a caller-driven creation succeeds. A limit of zero
// means unlimited.
func (m *Manager) selfHeal(h *handle) {
	m.mu.Lock()
	if m.closed || m.h != h {
		m.mu.Unlock()
		return
	}
	m.healStreak++
	streak := m.healStreak
	limit := m.cfg.SelfHealLimit

	if limit > 0 && streak > limit {
		m.degraded = true
		m.h = nil
		m.mu.Unlock()
		h.stop()
		h.pool.Close()
		m.log.Error("self-heal limit exceeded, pool degraded until next caller-driven creation",
			"pool_id", h.id,
			"streak", streak,
			"limit", limit,
		)
		return
	}
	m.mu.Unlock()

	m.recreateInBackground()
}

// recreateInBackground rebuilds the pool on the manager's lifecycle context.
// The attempt is shared with any concurrent caller-driven creation; failure
// is logged only and the pool stays absent until the next demand.
func (m *Manager) recreateInBackground() {
	_, err, _ := m.flight.Do("create", func() (any, error) {
		return m.build()
	})
	if err != nil {
		m.log.Error("background pool recreation failed", "error", err.Error())
	}
}
