package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

// CycleFunc runs one reconciliation cycle. forceBalanceCheck tells the cycle
// to bypass the balance-check throttle (set by a manual sync).
type CycleFunc func(ctx context.Context, forceBalanceCheck bool) error

// Scheduler drives reconciliation cycles on an adaptive interval. A cycle
// requested while one is in flight is dropped, not queued; any write landing
// during the in-flight cycle sets the dirty flag, which guarantees the next
// scheduled cycle runs at the active interval, so no write is silently lost.
type Scheduler struct {
	clock  clock.Clock
	iv     Intervals
	cycle  CycleFunc
	logger zerolog.Logger

	mu                sync.Mutex
	lastWriteAt       time.Time
	dirty             bool
	isSyncing         bool
	forceBalanceCheck bool

	wake   chan struct{}
	stopCh chan struct{}
	done   chan struct{}
}

// New creates a scheduler. The clock is injected so interval behavior is
// testable without real timers.
func New(clk clock.Clock, iv Intervals, cycle CycleFunc, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		clock:  clk,
		iv:     iv,
		cycle:  cycle,
		logger: logger.With().Str("component", "scheduler").Logger(),
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start begins the scheduling loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info().
		Dur("active_interval", s.iv.Active).
		Dur("cooling_interval", s.iv.Cooling).
		Dur("idle_interval", s.iv.Idle).
		Msg("starting sync scheduler")

	go s.run(ctx)
}

// Stop stops the scheduling loop and waits for it to exit. A cycle already
// executing is never aborted, only the pending wait.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.done
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	for {
		interval, phase := s.nextInterval()
		timer := s.clock.Timer(interval)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.stopCh:
			timer.Stop()
			return
		case <-s.wake:
			// Manual sync-now: cancel the pending wait and run immediately.
			timer.Stop()
		case <-timer.C:
		}

		s.logger.Debug().Str("phase", string(phase)).Msg("cycle firing")
		s.runCycle(ctx)
	}
}

func (s *Scheduler) nextInterval() (time.Duration, Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ComputeInterval(s.clock.Now(), s.lastWriteAt, s.dirty, s.iv)
}

func (s *Scheduler) runCycle(ctx context.Context) {
	s.mu.Lock()
	if s.isSyncing {
		// Mutual exclusion: drop, don't queue. The dirty flag set by any
		// write during the in-flight cycle keeps the next cycle active.
		s.mu.Unlock()
		s.logger.Debug().Msg("cycle already in flight, dropping request")
		return
	}
	s.isSyncing = true
	s.dirty = false
	force := s.forceBalanceCheck
	s.forceBalanceCheck = false
	s.mu.Unlock()

	if err := s.cycle(ctx, force); err != nil {
		s.logger.Error().Err(err).Msg("reconciliation cycle failed")
	}

	s.mu.Lock()
	s.isSyncing = false
	s.mu.Unlock()
}

// MarkDirty records local write activity. The scheduler re-enters the active
// phase and the next cycle is guaranteed to observe the write.
func (s *Scheduler) MarkDirty() {
	s.mu.Lock()
	s.dirty = true
	s.lastWriteAt = s.clock.Now()
	s.mu.Unlock()
}

// SyncNow cancels any pending scheduled wait, forces an immediate cycle with
// an unthrottled balance check, and re-enters the active phase.
func (s *Scheduler) SyncNow() {
	s.mu.Lock()
	s.forceBalanceCheck = true
	s.dirty = true
	s.lastWriteAt = s.clock.Now()
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
		// A wake is already pending; one immediate cycle is enough.
	}
}

// Status is a point-in-time snapshot for the status API.
type Status struct {
	Phase       Phase     `json:"phase"`
	LastWriteAt time.Time `json:"last_write_at"`
	Dirty       bool      `json:"dirty"`
	IsSyncing   bool      `json:"is_syncing"`
}

// Snapshot returns the current scheduler status.
func (s *Scheduler) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, phase := ComputeInterval(s.clock.Now(), s.lastWriteAt, s.dirty, s.iv)
	return Status{
		Phase:       phase,
		LastWriteAt: s.lastWriteAt,
		Dirty:       s.dirty,
		IsSyncing:   s.isSyncing,
	}
}
