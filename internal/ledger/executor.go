package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/quickcash/quickcash-gobackend/internal/metrics"
	"github.com/quickcash/quickcash-gobackend/internal/models"
)

// Outcome reports how a plan fared against the store.
type Outcome int

const (
	// Rejected: nothing beyond the transaction record was touched. The
	// caller error says why (duplicate reference, insufficient funds).
	Rejected Outcome = iota

	// CommittedOk: every balance delta applied and the transaction is sent.
	CommittedOk

	// CommittedFailed: the atomic unit aborted after admission, e.g. the
	// receiver vanished between validation and commit. No balance delta
	// persisted; the transaction is kept in state failed for audit.
	CommittedFailed
)

// Executor applies mutation plans with an all-or-nothing contract.
type Executor struct {
	store Store
	sink  Notifier
	recon Reconciler
}

func NewExecutor(store Store, sink Notifier, recon Reconciler) *Executor {
	return &Executor{store: store, sink: sink, recon: recon}
}

// Apply persists the plan's transaction record, runs its balance deltas as
// one atomic unit, and settles the terminal status. Aggregate rollups are
// applied after commit; a rollup failure never rolls back the transfer, it
// is queued for reconciliation instead.
//
// Once the atomic unit has begun, ctx cancellation no longer aborts it: a
// request timeout may only cancel work preceding commit.
func (e *Executor) Apply(ctx context.Context, plan *Plan) (*models.Transaction, Outcome, error) {
	tx := plan.Tx
	tx.Status = models.StatusUnsent
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now()
	}

	// The transaction row goes in first: its unique reference is the
	// idempotency boundary, so a retry of an already-processed request
	// stops here with nothing else applied.
	if err := e.store.InsertTransaction(ctx, &tx); err != nil {
		if errors.Is(err, ErrDuplicateTransaction) {
			metrics.TransactionsRejected.WithLabelValues("duplicate").Inc()
			return nil, Rejected, err
		}
		return nil, Rejected, fmt.Errorf("insert transaction %s: %w", tx.Reference, err)
	}

	// Past this point the commit must not be interrupted by the caller.
	commitCtx := context.WithoutCancel(ctx)

	err := e.store.Atomically(commitCtx, plan.Keys(), func(ctx context.Context, m Mutator) error {
		if plan.Debit != nil {
			if err := m.AdjustBalance(ctx, plan.Debit.MobileNumber, plan.Debit.Amount, false, ""); err != nil {
				return err
			}
		}
		if plan.Credit != nil {
			if err := m.AdjustBalance(ctx, plan.Credit.MobileNumber, plan.Credit.Amount, plan.Credit.CreateIfMissing, plan.Credit.Name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		e.markFailed(commitCtx, tx.Reference)
		tx.Status = models.StatusFailed
		if errors.Is(err, ErrInsufficientFunds) {
			metrics.TransactionsRejected.WithLabelValues("insufficient_funds").Inc()
			return &tx, Rejected, err
		}
		// Server-side anomaly: validation passed but the commit could not.
		log.Printf("transaction %s failed during commit: %v", tx.Reference, err)
		metrics.TransactionsFailed.WithLabelValues(tx.Kind).Inc()
		return &tx, CommittedFailed, err
	}

	if err := e.store.SetTransactionStatus(commitCtx, tx.Reference, models.StatusSent); err != nil {
		// Balances committed; the status row is all that lags. Log and
		// report success so the caller is not double-charged by a retry.
		log.Printf("transaction %s committed but status update failed: %v", tx.Reference, err)
	}
	tx.Status = models.StatusSent
	metrics.TransactionsCommitted.WithLabelValues(tx.Kind).Inc()

	e.applyAggregates(commitCtx, plan)

	if plan.NotifyMobile != "" && e.sink != nil {
		ev := NotifyEvent{
			ID:           uuid.NewString(),
			MobileNumber: plan.NotifyMobile,
			Kind:         tx.Kind,
			Amount:       tx.TotalAmount,
			Timestamp:    tx.Timestamp,
		}
		// Fire and forget: sink delivery is not part of the contract.
		go e.sink.Notify(plan.NotifyMobile, ev)
	}

	return &tx, CommittedOk, nil
}

// applyAggregates rolls the committed transaction into the operator and
// agent aggregates. Failures are recorded as reconciliation discrepancies
// rather than blocking the user-visible commit.
func (e *Executor) applyAggregates(ctx context.Context, plan *Plan) {
	if err := e.store.BumpOperator(ctx, plan.Operator); err != nil {
		log.Printf("operator aggregate update failed for %s, queued for reconciliation: %v", plan.Tx.Reference, err)
		if e.recon != nil {
			e.recon.EnqueueOperator(plan.Operator)
		}
	}
	if plan.Agent != nil {
		if err := e.store.BumpAgent(ctx, *plan.Agent); err != nil {
			log.Printf("agent aggregate update failed for %s, queued for reconciliation: %v", plan.Tx.Reference, err)
			if e.recon != nil {
				e.recon.EnqueueAgent(*plan.Agent)
			}
		}
	}
}

func (e *Executor) markFailed(ctx context.Context, reference string) {
	if err := e.store.SetTransactionStatus(ctx, reference, models.StatusFailed); err != nil {
		log.Printf("failed to mark transaction %s as failed: %v", reference, err)
	}
}
