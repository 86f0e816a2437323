package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/quickcash/quickcash-gobackend/internal/models"
)

func TestMemStoreRollback(t *testing.T) {
	store := NewMemStore()
	store.PutAccount(models.Account{MobileNumber: "a", Balance: 10000})

	err := store.Atomically(context.Background(), []string{"a", "b"}, func(ctx context.Context, m Mutator) error {
		if err := m.AdjustBalance(ctx, "a", -5000, false, ""); err != nil {
			return err
		}
		// Credit a number that does not exist, with upsert off.
		return m.AdjustBalance(ctx, "b", 5000, false, "")
	})
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("err = %v, want ErrAccountNotFound", err)
	}

	acct, err := store.FindByMobile(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	if acct.Balance != 10000 {
		t.Errorf("balance = %d, want 10000 after rollback", acct.Balance)
	}
}

func TestMemStoreRollbackRemovesCreatedAccount(t *testing.T) {
	store := NewMemStore()
	store.PutAccount(models.Account{MobileNumber: "a", Balance: 10000})

	err := store.Atomically(context.Background(), []string{"a", "b"}, func(ctx context.Context, m Mutator) error {
		if err := m.AdjustBalance(ctx, "b", 5000, true, "New User"); err != nil {
			return err
		}
		// Overdraw to force the unit to abort after the upsert-create.
		return m.AdjustBalance(ctx, "a", -20000, false, "")
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if _, err := store.FindByMobile(context.Background(), "b"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("created account survived rollback: err = %v", err)
	}
}

func TestMemStoreOppositeTransfersNoDeadlock(t *testing.T) {
	store := NewMemStore()
	store.PutAccount(models.Account{MobileNumber: "a", Balance: 100000})
	store.PutAccount(models.Account{MobileNumber: "b", Balance: 100000})

	move := func(from, to string) error {
		return store.Atomically(context.Background(), []string{from, to}, func(ctx context.Context, m Mutator) error {
			if err := m.AdjustBalance(ctx, from, -100, false, ""); err != nil {
				return err
			}
			return m.AdjustBalance(ctx, to, 100, false, "")
		})
	}

	const rounds = 200
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			if err := move("a", "b"); err != nil {
				t.Errorf("a->b: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			if err := move("b", "a"); err != nil {
				t.Errorf("b->a: %v", err)
				return
			}
		}
	}()
	wg.Wait()

	// Equal traffic both ways: balances end where they started and the
	// total is conserved throughout.
	a, _ := store.FindByMobile(context.Background(), "a")
	b, _ := store.FindByMobile(context.Background(), "b")
	if a.Balance+b.Balance != 200000 {
		t.Errorf("total = %d, want 200000", a.Balance+b.Balance)
	}
	if a.Balance != 100000 || b.Balance != 100000 {
		t.Errorf("balances = %d, %d, want 100000 each", a.Balance, b.Balance)
	}
}

func TestMemStoreDuplicateReference(t *testing.T) {
	store := NewMemStore()
	tx := models.Transaction{Reference: "r1", Kind: models.KindTransfer}
	if err := store.InsertTransaction(context.Background(), &tx); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := store.InsertTransaction(context.Background(), &tx); !errors.Is(err, ErrDuplicateTransaction) {
		t.Errorf("second insert err = %v, want ErrDuplicateTransaction", err)
	}
}
