package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quickcash/quickcash-gobackend/internal/models"
	"github.com/quickcash/quickcash-gobackend/internal/money"
)

type fakeSink struct {
	events chan NotifyEvent
}

func newFakeSink() *fakeSink {
	return &fakeSink{events: make(chan NotifyEvent, 1)}
}

func (s *fakeSink) Notify(mobileNumber string, ev NotifyEvent) {
	s.events <- ev
}

type fakeRecon struct {
	operators chan OperatorDelta
	agents    chan AgentDelta
}

func newFakeRecon() *fakeRecon {
	return &fakeRecon{
		operators: make(chan OperatorDelta, 1),
		agents:    make(chan AgentDelta, 1),
	}
}

func (r *fakeRecon) EnqueueOperator(d OperatorDelta) { r.operators <- d }
func (r *fakeRecon) EnqueueAgent(d AgentDelta)       { r.agents <- d }

// brokenAggregateStore fails every rollup write while leaving the atomic
// unit intact.
type brokenAggregateStore struct {
	*MemStore
}

func (s *brokenAggregateStore) BumpOperator(ctx context.Context, d OperatorDelta) error {
	return errors.New("aggregate store unavailable")
}

func (s *brokenAggregateStore) BumpAgent(ctx context.Context, d AgentDelta) error {
	return errors.New("aggregate store unavailable")
}

func balance(t *testing.T, store *MemStore, mobile string) money.Amount {
	t.Helper()
	acct, err := store.FindByMobile(context.Background(), mobile)
	if err != nil {
		t.Fatalf("FindByMobile(%s): %v", mobile, err)
	}
	return acct.Balance
}

func TestApplyTransferConservation(t *testing.T) {
	store := seededStore()
	a := testAuthority(store, true)
	e := NewExecutor(store, nil, nil)

	plan, err := a.PlanTransfer(context.Background(), TransferRequest{
		SenderMobile:   "01711111111",
		ReceiverMobile: "01722222222",
		TotalAmount:    10000,
		SendMoneyFee:   200,
		Reference:      "xfer-1",
	})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	tx, outcome, err := e.Apply(context.Background(), plan)
	if err != nil || outcome != CommittedOk {
		t.Fatalf("Apply = (%v, %v), want CommittedOk", outcome, err)
	}
	if tx.Status != models.StatusSent {
		t.Errorf("status = %q, want sent", tx.Status)
	}

	// 1000.00 - 98.00 = 902.00 and 0 + 100.00.
	if got := balance(t, store, "01711111111"); got != 90200 {
		t.Errorf("sender balance = %d, want 90200", got)
	}
	if got := balance(t, store, "01722222222"); got != 10000 {
		t.Errorf("receiver balance = %d, want 10000", got)
	}

	op := store.Operator()
	if op.TotalTransactions != 1 || op.TotalAmount != 10000 || op.TotalFee != 200 {
		t.Errorf("operator aggregate = %+v", op)
	}

	stored, ok := store.Transaction("xfer-1")
	if !ok || stored.Status != models.StatusSent {
		t.Errorf("stored tx = %+v, ok=%v", stored, ok)
	}
}

func TestApplyDuplicateReference(t *testing.T) {
	store := seededStore()
	a := testAuthority(store, true)
	e := NewExecutor(store, nil, nil)

	req := TransferRequest{
		SenderMobile:   "01711111111",
		ReceiverMobile: "01722222222",
		TotalAmount:    10000,
		Reference:      "dup-1",
	}
	plan, err := a.PlanTransfer(context.Background(), req)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if _, outcome, err := e.Apply(context.Background(), plan); err != nil || outcome != CommittedOk {
		t.Fatalf("first Apply = (%v, %v)", outcome, err)
	}
	senderAfter := balance(t, store, "01711111111")

	// Same reference again: rejected before any balance delta.
	retry, err := a.PlanTransfer(context.Background(), req)
	if err != nil {
		t.Fatalf("replan: %v", err)
	}
	_, outcome, err := e.Apply(context.Background(), retry)
	if outcome != Rejected || !errors.Is(err, ErrDuplicateTransaction) {
		t.Fatalf("retry Apply = (%v, %v), want Rejected/ErrDuplicateTransaction", outcome, err)
	}
	if got := balance(t, store, "01711111111"); got != senderAfter {
		t.Errorf("sender balance moved on duplicate: %d -> %d", senderAfter, got)
	}
	if n := len(store.Transactions()); n != 1 {
		t.Errorf("transaction count = %d, want 1", n)
	}
}

func TestApplyInsufficientFunds(t *testing.T) {
	store := seededStore()
	a := testAuthority(store, true)
	e := NewExecutor(store, nil, nil)

	plan, err := a.PlanTransfer(context.Background(), TransferRequest{
		SenderMobile:   "01711111111",
		ReceiverMobile: "01722222222",
		TotalAmount:    500000, // balance is 1000.00
		Reference:      "poor-1",
	})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	tx, outcome, err := e.Apply(context.Background(), plan)
	if outcome != Rejected || !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("Apply = (%v, %v), want Rejected/ErrInsufficientFunds", outcome, err)
	}
	if tx.Status != models.StatusFailed {
		t.Errorf("status = %q, want failed", tx.Status)
	}
	if got := balance(t, store, "01711111111"); got != 100000 {
		t.Errorf("sender balance = %d, want 100000 untouched", got)
	}
	if got := balance(t, store, "01722222222"); got != 0 {
		t.Errorf("receiver balance = %d, want 0 untouched", got)
	}
	// The failed record stays for audit.
	if stored, ok := store.Transaction("poor-1"); !ok || stored.Status != models.StatusFailed {
		t.Errorf("stored tx = %+v, ok=%v", stored, ok)
	}
	op := store.Operator()
	if op.TotalTransactions != 0 {
		t.Errorf("rejected transfer leaked into aggregate: %+v", op)
	}
}

func TestApplyRollsBackWhenCreditFails(t *testing.T) {
	// Implicit account creation disabled: the debit applies, then the credit
	// to an unknown number fails and the debit must be undone.
	store := seededStore()
	a := testAuthority(store, false)
	e := NewExecutor(store, nil, nil)

	plan, err := a.PlanTransfer(context.Background(), TransferRequest{
		SenderMobile:   "01711111111",
		ReceiverMobile: "01788888888",
		TotalAmount:    10000,
		Reference:      "gone-1",
	})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	tx, outcome, err := e.Apply(context.Background(), plan)
	if outcome != CommittedFailed || !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("Apply = (%v, %v), want CommittedFailed/ErrAccountNotFound", outcome, err)
	}
	if tx.Status != models.StatusFailed {
		t.Errorf("status = %q, want failed", tx.Status)
	}
	if got := balance(t, store, "01711111111"); got != 100000 {
		t.Errorf("sender balance = %d, want 100000 after rollback", got)
	}
	if _, err := store.FindByMobile(context.Background(), "01788888888"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("phantom receiver created: err = %v", err)
	}
}

func TestApplyCashOut(t *testing.T) {
	store := seededStore()
	a := testAuthority(store, true)
	e := NewExecutor(store, nil, nil)

	plan, err := a.PlanCashOut(context.Background(), CashOutRequest{
		SenderMobile: "01711111111",
		AgentMobile:  "01733333333",
		PIN:          "12345",
		TotalAmount:  50000,
		FinalAmount:  50000,
		Reference:    "co-apply-1",
	})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if _, outcome, err := e.Apply(context.Background(), plan); err != nil || outcome != CommittedOk {
		t.Fatalf("Apply = (%v, %v)", outcome, err)
	}

	// 1000.00 - (500 + 2.50 + 5.00) = 492.50.
	if got := balance(t, store, "01711111111"); got != 49250 {
		t.Errorf("sender balance = %d, want 49250", got)
	}
	// Agent hands over physical cash; the ledger balance is untouched.
	if got := balance(t, store, "01733333333"); got != 0 {
		t.Errorf("agent balance = %d, want 0", got)
	}

	agg, ok := store.Agent("01733333333")
	if !ok {
		t.Fatal("agent aggregate missing")
	}
	if agg.TotalCommission != 500 || agg.TotalCashIn != 50000 || agg.TotalTransactions != 1 {
		t.Errorf("agent aggregate = %+v", agg)
	}
	op := store.Operator()
	if op.TotalFee != 250 {
		t.Errorf("operator fee = %d, want 250", op.TotalFee)
	}
}

func TestApplyCashInNotifiesReceiver(t *testing.T) {
	store := seededStore()
	a := testAuthority(store, true)
	sink := newFakeSink()
	e := NewExecutor(store, sink, nil)

	plan, err := a.PlanCashIn(context.Background(), CashInRequest{
		AgentMobile:    "01733333333",
		ReceiverMobile: "01722222222",
		PIN:            "54321",
		TotalAmount:    20000,
		Reference:      "ci-apply-1",
	})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if _, outcome, err := e.Apply(context.Background(), plan); err != nil || outcome != CommittedOk {
		t.Fatalf("Apply = (%v, %v)", outcome, err)
	}

	if got := balance(t, store, "01722222222"); got != 20000 {
		t.Errorf("receiver balance = %d, want 20000", got)
	}

	select {
	case ev := <-sink.events:
		if ev.MobileNumber != "01722222222" || ev.Amount != 20000 || ev.Kind != models.KindCashIn {
			t.Errorf("event = %+v", ev)
		}
		if ev.ID == "" {
			t.Error("event ID empty")
		}
	case <-time.After(time.Second):
		t.Fatal("no notification delivered")
	}
}

func TestApplyQueuesFailedAggregates(t *testing.T) {
	mem := seededStore()
	a := testAuthority(mem, true)
	recon := newFakeRecon()
	e := NewExecutor(&brokenAggregateStore{MemStore: mem}, nil, recon)

	plan, err := a.PlanCashOut(context.Background(), CashOutRequest{
		SenderMobile: "01711111111",
		AgentMobile:  "01733333333",
		PIN:          "12345",
		TotalAmount:  50000,
		FinalAmount:  50000,
		Reference:    "co-recon-1",
	})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	// Rollup failure must not fail the committed transfer.
	tx, outcome, err := e.Apply(context.Background(), plan)
	if err != nil || outcome != CommittedOk {
		t.Fatalf("Apply = (%v, %v), want CommittedOk", outcome, err)
	}
	if tx.Status != models.StatusSent {
		t.Errorf("status = %q, want sent", tx.Status)
	}

	select {
	case d := <-recon.operators:
		if d.Fee != 250 {
			t.Errorf("queued operator delta = %+v", d)
		}
	default:
		t.Error("operator delta not queued for reconciliation")
	}
	select {
	case d := <-recon.agents:
		if d.Commission != 500 {
			t.Errorf("queued agent delta = %+v", d)
		}
	default:
		t.Error("agent delta not queued for reconciliation")
	}
}
