package services

import (
	"context"
	"log"
	"time"

	"github.com/quickcash/quickcash-gobackend/internal/ledger"
	"github.com/quickcash/quickcash-gobackend/internal/models"
	"github.com/quickcash/quickcash-gobackend/internal/money"
	"github.com/quickcash/quickcash-gobackend/internal/mongostore"
)

// WalletService drives the three money-movement operations: a request is
// validated by the transaction authority, applied by the ledger executor,
// and the resulting transaction plus the caller's updated balance are
// returned.
type WalletService struct {
	store     *mongostore.Store
	authority *ledger.Authority
	executor  *ledger.Executor
}

func NewWalletService(store *mongostore.Store, authority *ledger.Authority, executor *ledger.Executor) *WalletService {
	return &WalletService{store: store, authority: authority, executor: executor}
}

// Result is what a committed (or failed) operation reports back.
type Result struct {
	Transaction *models.Transaction `json:"transaction"`
	Balance     money.Amount        `json:"balance"`
}

// SendMoney executes a peer-to-peer transfer for the authenticated sender.
func (s *WalletService) SendMoney(ctx context.Context, req ledger.TransferRequest) (*Result, error) {
	plan, err := s.authority.PlanTransfer(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, plan, req.SenderMobile)
}

// CashOut executes a user-to-agent cash-out.
func (s *WalletService) CashOut(ctx context.Context, req ledger.CashOutRequest) (*Result, error) {
	plan, err := s.authority.PlanCashOut(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, plan, req.SenderMobile)
}

// CashIn executes an agent-to-user cash-in.
func (s *WalletService) CashIn(ctx context.Context, req ledger.CashInRequest) (*Result, error) {
	plan, err := s.authority.PlanCashIn(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, plan, req.AgentMobile)
}

func (s *WalletService) apply(ctx context.Context, plan *ledger.Plan, callerMobile string) (*Result, error) {
	tx, outcome, err := s.executor.Apply(ctx, plan)
	if err != nil {
		if outcome == ledger.CommittedFailed {
			// The record is persisted as failed for audit; the caller
			// sees a server fault.
			log.Printf("transaction %s committed-failed: %v", plan.Tx.Reference, err)
		}
		return nil, err
	}

	res := &Result{Transaction: tx}
	if acct, err := s.store.FindByMobile(ctx, callerMobile); err == nil {
		res.Balance = acct.Balance
	}
	return res, nil
}

// Balance returns the caller's spendable balance.
func (s *WalletService) Balance(ctx context.Context, mobileNumber string) (money.Amount, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	acct, err := s.store.FindByMobile(ctx, mobileNumber)
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}

// History lists transactions where the caller is either side, newest first.
func (s *WalletService) History(ctx context.Context, mobileNumber string) ([]models.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.store.ListTransactionsForMobile(ctx, mobileNumber)
}

// GetTransaction fetches one transaction by reference.
func (s *WalletService) GetTransaction(ctx context.Context, reference string) (*models.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.store.FindTransaction(ctx, reference)
}

// OperatorAggregate reads the platform rollup.
func (s *WalletService) OperatorAggregate(ctx context.Context) (*models.OperatorAggregate, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.store.OperatorAggregate(ctx)
}

// AgentAggregate reads one agent rollup.
func (s *WalletService) AgentAggregate(ctx context.Context, mobileNumber string) (*models.AgentAggregate, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.store.AgentAggregate(ctx, mobileNumber)
}
