package engine

import (
	"time"

	"github.com/openshelf/shelf-sync-node/funding"
	"github.com/openshelf/shelf-sync-node/scheduler"
	"github.com/openshelf/shelf-sync-node/store"
)

// Status is a point-in-time engine snapshot published after each cycle and
// served by the status API.
type Status struct {
	Phase        scheduler.Phase `json:"phase"`
	IsSyncing    bool            `json:"is_syncing"`
	QueueDepth   int64           `json:"queue_depth"`
	ActiveCount  int             `json:"active_entries"`
	LastCycleAt  time.Time       `json:"last_cycle_at"`
	LastCycleErr string          `json:"last_cycle_error,omitempty"`
}

// Observer receives engine events. Implementations must not block; the
// engine calls them from the cycle goroutine.
type Observer interface {
	OnStatusChange(Status)
	OnEntrySynced(store.Entry)
	OnFundingDecision(funding.Decision)
}

// NoopObserver discards all events.
type NoopObserver struct{}

func (NoopObserver) OnStatusChange(Status)              {}
func (NoopObserver) OnEntrySynced(store.Entry)          {}
func (NoopObserver) OnFundingDecision(funding.Decision) {}
