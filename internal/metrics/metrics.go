// Package metrics exposes the service's Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransactionsCommitted counts ledger plans that fully committed,
	// labeled by operation kind.
	TransactionsCommitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quickcash_transactions_committed_total",
		Help: "Transactions that committed with every balance delta applied.",
	}, []string{"kind"})

	// TransactionsFailed counts plans that aborted after admission and were
	// persisted in state failed.
	TransactionsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quickcash_transactions_failed_total",
		Help: "Transactions persisted as failed after an aborted commit.",
	}, []string{"kind"})

	// TransactionsRejected counts plans refused before any balance
	// mutation, labeled by reason.
	TransactionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quickcash_transactions_rejected_total",
		Help: "Transactions rejected before any balance mutation.",
	}, []string{"reason"})

	// ReconciliationBacklog tracks aggregate deltas waiting to be retried.
	ReconciliationBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quickcash_reconciliation_backlog",
		Help: "Aggregate rollup deltas queued for reconciliation.",
	})

	// ReconciliationRetries counts retry attempts against the rollups.
	ReconciliationRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quickcash_reconciliation_retries_total",
		Help: "Retry attempts for queued aggregate rollup deltas.",
	})

	// NotificationsDelivered counts credit events pushed to live sockets.
	NotificationsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quickcash_notifications_delivered_total",
		Help: "Credit notifications delivered over live connections.",
	})
)
