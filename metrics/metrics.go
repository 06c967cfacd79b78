// Package metrics exposes prometheus instrumentation for the sync engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncCyclesTotal counts completed reconciliation cycles by outcome.
	SyncCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shelfsync",
		Name:      "sync_cycles_total",
		Help:      "Completed reconciliation cycles by outcome.",
	}, []string{"outcome"})

	// ReconcileOpsTotal counts store mutations produced by reconciliation.
	ReconcileOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shelfsync",
		Name:      "reconcile_ops_total",
		Help:      "Store mutations produced by reconciliation, by kind.",
	}, []string{"op"})

	// FundingDecisionsTotal counts funding policy outcomes.
	FundingDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shelfsync",
		Name:      "funding_decisions_total",
		Help:      "Funding policy outcomes by action.",
	}, []string{"action"})

	// UploadsTotal counts upload attempts by terminal status.
	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shelfsync",
		Name:      "uploads_total",
		Help:      "Upload attempts by terminal status.",
	}, []string{"status"})

	// PaymentRequiredTotal counts 402 responses from the write endpoint.
	PaymentRequiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shelfsync",
		Name:      "payment_required_total",
		Help:      "402 payment-required responses observed.",
	})

	// QueueDepth tracks the pending-op queue depth.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "shelfsync",
		Name:      "queue_depth",
		Help:      "Queued mutations awaiting publish.",
	})

	// LastCycleUnix records the wall time of the last completed cycle.
	LastCycleUnix = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "shelfsync",
		Name:      "last_cycle_unix_seconds",
		Help:      "Unix time of the last completed reconciliation cycle.",
	})

	// TombstonesPrunedTotal counts tombstones removed by retention pruning.
	TombstonesPrunedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shelfsync",
		Name:      "tombstones_pruned_total",
		Help:      "Tombstoned entries pruned past the retention window.",
	})
)
