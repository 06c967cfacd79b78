package uploader

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

// FinalityProber paces the recurring "is this settled on the canonical layer
// yet" probes for entries so far only accepted by the fast-indexing layer.
// Each failed probe doubles the entry's backoff up to a bound; success
// resets it. This keeps polling pressure off entries that may take a long
// time to finalize.
type FinalityProber struct {
	clock   clock.Clock
	initial time.Duration
	max     time.Duration
	logger  zerolog.Logger

	mu     sync.Mutex
	states map[string]*probeState
}

type probeState struct {
	backoff time.Duration
	nextAt  time.Time
}

// NewFinalityProber creates a prober with the given backoff bounds.
func NewFinalityProber(clk clock.Clock, initial, max time.Duration, logger zerolog.Logger) *FinalityProber {
	return &FinalityProber{
		clock:   clk,
		initial: initial,
		max:     max,
		logger:  logger.With().Str("component", "finality_prober").Logger(),
		states:  make(map[string]*probeState),
	}
}

// Due reports whether the id should be probed now. Ids never seen before are
// due immediately.
func (p *FinalityProber) Due(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.states[id]
	if !ok {
		return true
	}
	return !p.clock.Now().Before(st.nextAt)
}

// Observe records a probe outcome. A settled entry is forgotten entirely; a
// failed probe doubles the backoff, bounded by the maximum.
func (p *FinalityProber) Observe(id string, settled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if settled {
		delete(p.states, id)
		return
	}

	st, ok := p.states[id]
	if !ok {
		st = &probeState{backoff: p.initial}
		p.states[id] = st
	} else {
		st.backoff *= 2
		if st.backoff > p.max {
			st.backoff = p.max
		}
	}
	st.nextAt = p.clock.Now().Add(st.backoff)

	p.logger.Debug().
		Str("id", id).
		Dur("backoff", st.backoff).
		Msg("finality probe backed off")
}

// Forget drops tracking state for an id (e.g. after a tombstone).
func (p *FinalityProber) Forget(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.states, id)
}
