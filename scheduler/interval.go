// Package scheduler decides when the next reconciliation cycle runs,
// balancing freshness against network and ledger cost.
package scheduler

import "time"

// Phase is the scheduler's activity state.
type Phase string

const (
	// PhaseActive uses a short interval; entered on any local write or
	// manual trigger and held for the activity window.
	PhaseActive Phase = "active"

	// PhaseCooling uses a medium interval once the activity window elapses
	// but a write happened within the cooling window.
	PhaseCooling Phase = "cooling"

	// PhaseIdle uses the long interval; the default when neither holds.
	PhaseIdle Phase = "idle"
)

// Intervals holds the scheduler policy constants.
type Intervals struct {
	Active  time.Duration
	Cooling time.Duration
	Idle    time.Duration

	ActivityWindow time.Duration
	CoolingWindow  time.Duration
}

// ComputeInterval returns the delay before the next cycle and the phase it
// belongs to. The function is pure and total: any combination of inputs maps
// to exactly one phase. An unset lastWriteAt means no write has ever
// happened, which is idle unless the dirty flag forces activity.
func ComputeInterval(now time.Time, lastWriteAt time.Time, dirty bool, iv Intervals) (time.Duration, Phase) {
	if dirty {
		return iv.Active, PhaseActive
	}
	if lastWriteAt.IsZero() {
		return iv.Idle, PhaseIdle
	}

	elapsed := now.Sub(lastWriteAt)
	switch {
	case elapsed < iv.ActivityWindow:
		return iv.Active, PhaseActive
	case elapsed < iv.CoolingWindow:
		return iv.Cooling, PhaseCooling
	default:
		return iv.Idle, PhaseIdle
	}
}
