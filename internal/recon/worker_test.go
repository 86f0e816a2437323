package recon

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/quickcash/quickcash-gobackend/internal/ledger"
	"github.com/quickcash/quickcash-gobackend/internal/models"
)

// flakyStore fails the first failures rollup writes, then succeeds.
type flakyStore struct {
	mu        sync.Mutex
	failures  int
	operators []ledger.OperatorDelta
	agents    []ledger.AgentDelta
	applied   chan struct{}
}

func newFlakyStore(failures int) *flakyStore {
	return &flakyStore{failures: failures, applied: make(chan struct{}, 16)}
}

func (s *flakyStore) BumpOperator(ctx context.Context, d ledger.OperatorDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("store unavailable")
	}
	s.operators = append(s.operators, d)
	s.applied <- struct{}{}
	return nil
}

func (s *flakyStore) BumpAgent(ctx context.Context, d ledger.AgentDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("store unavailable")
	}
	s.agents = append(s.agents, d)
	s.applied <- struct{}{}
	return nil
}

func (s *flakyStore) InsertTransaction(ctx context.Context, tx *models.Transaction) error {
	return nil
}

func (s *flakyStore) SetTransactionStatus(ctx context.Context, reference, status string) error {
	return nil
}

func (s *flakyStore) Atomically(ctx context.Context, keys []string, fn func(ctx context.Context, m ledger.Mutator) error) error {
	return nil
}

func startWorker(t *testing.T, store ledger.Store) *Worker {
	t.Helper()
	w := NewWorker(store)
	w.backoff = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go w.Run(ctx)
	return w
}

func TestWorkerReplaysOperatorDelta(t *testing.T) {
	store := newFlakyStore(0)
	w := startWorker(t, store)

	w.EnqueueOperator(ledger.OperatorDelta{Transactions: 1, Amount: 50000, Fee: 250})

	select {
	case <-store.applied:
	case <-time.After(2 * time.Second):
		t.Fatal("operator delta not replayed")
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.operators) != 1 || store.operators[0].Fee != 250 {
		t.Errorf("applied operators = %+v", store.operators)
	}
}

func TestWorkerRetriesUntilStoreRecovers(t *testing.T) {
	store := newFlakyStore(2)
	w := startWorker(t, store)

	w.EnqueueAgent(ledger.AgentDelta{MobileNumber: "01733333333", Transactions: 1, Commission: 500})

	select {
	case <-store.applied:
	case <-time.After(2 * time.Second):
		t.Fatal("agent delta never applied after retries")
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.agents) != 1 || store.agents[0].Commission != 500 {
		t.Errorf("applied agents = %+v", store.agents)
	}
}

// stuckAgentStore permanently rejects agent deltas while accepting
// operator deltas.
type stuckAgentStore struct {
	*flakyStore
}

func (s *stuckAgentStore) BumpAgent(ctx context.Context, d ledger.AgentDelta) error {
	return errors.New("store unavailable")
}

func TestWorkerBackoffDoesNotStallQueue(t *testing.T) {
	store := &stuckAgentStore{flakyStore: newFlakyStore(0)}
	w := NewWorker(store)
	w.backoff = 500 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go w.Run(ctx)

	// A delta stuck in its retry window must not delay the one behind it.
	w.EnqueueAgent(ledger.AgentDelta{MobileNumber: "01733333333", Transactions: 1})
	w.EnqueueOperator(ledger.OperatorDelta{Transactions: 1, Fee: 250})

	select {
	case <-store.applied:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("operator delta stalled behind a backing-off agent delta")
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.operators) != 1 || store.operators[0].Fee != 250 {
		t.Errorf("applied operators = %+v", store.operators)
	}
}

func TestWorkerGivesUpAfterMaxAttempts(t *testing.T) {
	store := newFlakyStore(maxAttempts + 1)
	w := startWorker(t, store)

	w.EnqueueOperator(ledger.OperatorDelta{Transactions: 1})

	// The delta burns through its attempts and is dropped, not applied.
	select {
	case <-store.applied:
		t.Fatal("delta applied despite permanent store failure")
	case <-time.After(200 * time.Millisecond):
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.operators) != 0 {
		t.Errorf("applied operators = %+v, want none", store.operators)
	}
}
