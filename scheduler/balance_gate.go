package scheduler

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// BalanceGate throttles the recurring, metered balance query. Once the
// account is fully confirmed and persisted, repeated checks are skipped for
// a cooldown window unless a manual check is forced. The gate never
// throttles before confirmation, so the very first transition into "funded"
// is always observed.
type BalanceGate struct {
	clock    clock.Clock
	cooldown time.Duration

	mu        sync.Mutex
	lastCheck time.Time
}

// NewBalanceGate creates a balance gate with the given cooldown.
func NewBalanceGate(clk clock.Clock, cooldown time.Duration) *BalanceGate {
	return &BalanceGate{clock: clk, cooldown: cooldown}
}

// ShouldCheck reports whether a balance query should run now. confirmed is
// the persisted account state; force bypasses the throttle entirely.
func (g *BalanceGate) ShouldCheck(confirmed, force bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	if force || !confirmed {
		g.lastCheck = now
		return true
	}
	if !g.lastCheck.IsZero() && now.Sub(g.lastCheck) < g.cooldown {
		return false
	}
	g.lastCheck = now
	return true
}
