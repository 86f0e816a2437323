// Package recon retries aggregate rollup updates that failed after a
// committed transfer. The rollups are derived data: a failed bump is a
// reconciliation discrepancy to be replayed, never a reason to roll back
// the user-visible commit.
package recon

import (
	"context"
	"log"
	"time"

	"github.com/quickcash/quickcash-gobackend/internal/ledger"
	"github.com/quickcash/quickcash-gobackend/internal/metrics"
)

const (
	queueDepth  = 256
	maxAttempts = 5
)

type job struct {
	operator *ledger.OperatorDelta
	agent    *ledger.AgentDelta
	attempts int
}

// Worker drains a queue of failed aggregate deltas and replays them against
// the store with linear backoff.
type Worker struct {
	store   ledger.Store
	jobs    chan job
	backoff time.Duration
}

func NewWorker(store ledger.Store) *Worker {
	return &Worker{
		store:   store,
		jobs:    make(chan job, queueDepth),
		backoff: 2 * time.Second,
	}
}

// EnqueueOperator implements ledger.Reconciler.
func (w *Worker) EnqueueOperator(d ledger.OperatorDelta) {
	w.enqueue(job{operator: &d})
}

// EnqueueAgent implements ledger.Reconciler.
func (w *Worker) EnqueueAgent(d ledger.AgentDelta) {
	w.enqueue(job{agent: &d})
}

func (w *Worker) enqueue(j job) {
	select {
	case w.jobs <- j:
		metrics.ReconciliationBacklog.Inc()
	default:
		// Queue full: the delta is lost to the rollups until a full
		// rebuild from the transaction log. Loud log, not a crash.
		log.Printf("reconciliation queue full, dropping aggregate delta: %+v", j)
	}
}

// Run processes queued deltas until ctx is canceled.
func (w *Worker) Run(ctx context.Context) {
	log.Println("reconciliation worker started")
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-w.jobs:
			metrics.ReconciliationBacklog.Dec()
			w.process(ctx, j)
		}
	}
}

func (w *Worker) process(ctx context.Context, j job) {
	metrics.ReconciliationRetries.Inc()

	var err error
	switch {
	case j.operator != nil:
		err = w.store.BumpOperator(ctx, *j.operator)
	case j.agent != nil:
		err = w.store.BumpAgent(ctx, *j.agent)
	}
	if err == nil {
		return
	}

	j.attempts++
	if j.attempts >= maxAttempts {
		log.Printf("aggregate delta dropped after %d attempts: %v", j.attempts, err)
		return
	}
	log.Printf("aggregate retry %d failed, requeueing: %v", j.attempts, err)

	// The backoff must not block the drain loop: one failing delta waiting
	// out its retry window cannot be allowed to stall every other queued
	// delta behind it.
	delay := time.Duration(j.attempts) * w.backoff
	go func() {
		select {
		case <-ctx.Done():
		case <-time.After(delay):
			w.enqueue(j)
		}
	}()
}
