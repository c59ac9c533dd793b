// Package metrics exposes the engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GroupExpenseSyncs counts synchronizer runs by operation
	// (apply, reverse, edit).
	GroupExpenseSyncs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_group_expense_syncs_total",
		Help: "Group expense synchronizer runs by operation.",
	}, []string{"op"})

	// ReversedEntries counts ledger entries reversed (deleted with their
	// balance effect undone).
	ReversedEntries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_reversed_entries_total",
		Help: "Ledger entries reversed across all operations.",
	})

	// LegacyFallbacks counts heuristic reversals of records without
	// linkage. Any increase here means legacy data is still being touched.
	LegacyFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_legacy_fallback_total",
		Help: "Heuristic (linkage-less) reversal invocations.",
	})

	// Settlements counts settlement recorder runs by operation
	// (record, reassign, delete).
	Settlements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_settlements_total",
		Help: "Settlement recorder runs by operation.",
	}, []string{"op"})
)
