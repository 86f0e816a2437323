package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/quickcash/quickcash-gobackend/internal/models"
	"github.com/quickcash/quickcash-gobackend/internal/money"
)

// MemStore is an in-memory Store and Directory. It backs tests and local
// development. Plans over the same accounts are serialized through
// per-account locks acquired in sorted key order, and every mutation inside
// Atomically is journaled so a failing step rolls the unit back completely.
type MemStore struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	txs      map[string]*models.Transaction
	order    []string
	operator models.OperatorAggregate
	agents   map[string]*models.AgentAggregate
	locks    map[string]*sync.Mutex
}

func NewMemStore() *MemStore {
	return &MemStore{
		accounts: map[string]*models.Account{},
		txs:      map[string]*models.Transaction{},
		operator: models.OperatorAggregate{ID: models.OperatorAggregateID},
		agents:   map[string]*models.AgentAggregate{},
		locks:    map[string]*sync.Mutex{},
	}
}

func (s *MemStore) InsertTransaction(ctx context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[tx.Reference]; ok {
		return ErrDuplicateTransaction
	}
	cp := *tx
	s.txs[tx.Reference] = &cp
	s.order = append(s.order, tx.Reference)
	return nil
}

func (s *MemStore) SetTransactionStatus(ctx context.Context, reference, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[reference]
	if !ok {
		return ErrAccountNotFound
	}
	tx.Status = status
	return nil
}

// Atomically acquires the per-key locks in sorted order, runs fn against a
// journaling mutator, and undoes every applied delta if fn fails.
func (s *MemStore) Atomically(ctx context.Context, keys []string, fn func(ctx context.Context, m Mutator) error) error {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	locks := make([]*sync.Mutex, 0, len(sorted))
	for _, k := range sorted {
		locks = append(locks, s.lockFor(k))
	}
	for _, l := range locks {
		l.Lock()
	}
	defer func() {
		for i := len(locks) - 1; i >= 0; i-- {
			locks[i].Unlock()
		}
	}()

	m := &memMutator{store: s}
	if err := fn(ctx, m); err != nil {
		m.rollback()
		return err
	}
	return nil
}

func (s *MemStore) BumpOperator(ctx context.Context, d OperatorDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.operator.TotalTransactions += d.Transactions
	s.operator.TotalAmount += d.Amount
	s.operator.TotalFee += d.Fee
	s.operator.LastUpdated = time.Now()
	return nil
}

func (s *MemStore) BumpAgent(ctx context.Context, d AgentDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	agg, ok := s.agents[d.MobileNumber]
	if !ok {
		agg = &models.AgentAggregate{AgentMobileNumber: d.MobileNumber}
		s.agents[d.MobileNumber] = agg
	}
	if d.Name != "" {
		agg.Name = d.Name
	}
	agg.TotalTransactions += d.Transactions
	agg.TotalAmountProcessed += d.AmountProcessed
	agg.TotalCommission += d.Commission
	agg.TotalCashIn += d.CashIn
	agg.TotalCashOut += d.CashOut
	agg.LastUpdated = time.Now()
	return nil
}

// FindByMobile implements Directory.
func (s *MemStore) FindByMobile(ctx context.Context, mobileNumber string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[mobileNumber]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *acct
	return &cp, nil
}

// PutAccount seeds or replaces an account.
func (s *MemStore) PutAccount(acct models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := acct
	s.accounts[acct.MobileNumber] = &cp
}

// Transaction returns a copy of the stored transaction, if any.
func (s *MemStore) Transaction(reference string) (models.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[reference]
	if !ok {
		return models.Transaction{}, false
	}
	return *tx, true
}

// Transactions returns all stored transactions in insertion order.
func (s *MemStore) Transactions() []models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Transaction, 0, len(s.order))
	for _, ref := range s.order {
		out = append(out, *s.txs[ref])
	}
	return out
}

// Operator returns a copy of the operator aggregate.
func (s *MemStore) Operator() models.OperatorAggregate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.operator
}

// Agent returns a copy of the agent aggregate for the given mobile number.
func (s *MemStore) Agent(mobileNumber string) (models.AgentAggregate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	agg, ok := s.agents[mobileNumber]
	if !ok {
		return models.AgentAggregate{}, false
	}
	return *agg, true
}

func (s *MemStore) lockFor(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// memMutator journals applied balance deltas so Atomically can undo them.
type memMutator struct {
	store   *MemStore
	applied []appliedDelta
}

type appliedDelta struct {
	mobile  string
	delta   money.Amount
	created bool
}

func (m *memMutator) AdjustBalance(ctx context.Context, mobileNumber string, delta money.Amount, createIfMissing bool, name string) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	acct, ok := m.store.accounts[mobileNumber]
	created := false
	if !ok {
		if !createIfMissing {
			return ErrAccountNotFound
		}
		acct = &models.Account{
			MobileNumber: mobileNumber,
			Name:         name,
			Role:         models.RoleUser,
			CreatedAt:    time.Now(),
		}
		m.store.accounts[mobileNumber] = acct
		created = true
	}
	if acct.Balance+delta < 0 {
		if created {
			delete(m.store.accounts, mobileNumber)
		}
		return ErrInsufficientFunds
	}
	acct.Balance += delta
	m.applied = append(m.applied, appliedDelta{mobile: mobileNumber, delta: delta, created: created})
	return nil
}

func (m *memMutator) rollback() {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for i := len(m.applied) - 1; i >= 0; i-- {
		d := m.applied[i]
		if d.created {
			delete(m.store.accounts, d.mobile)
			continue
		}
		if acct, ok := m.store.accounts[d.mobile]; ok {
			acct.Balance -= d.delta
		}
	}
	m.applied = nil
}
