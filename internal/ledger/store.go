package ledger

import (
	"context"

	"github.com/quickcash/quickcash-gobackend/internal/models"
	"github.com/quickcash/quickcash-gobackend/internal/money"
)

// Store is the narrow persistence contract the executor runs against.
// Implementations must enforce transaction-reference uniqueness on insert
// and must make Atomically all-or-nothing: either every mutation inside fn
// is visible afterwards, or none is.
type Store interface {
	// InsertTransaction persists a new transaction record. A reference that
	// already exists yields ErrDuplicateTransaction.
	InsertTransaction(ctx context.Context, tx *models.Transaction) error

	// SetTransactionStatus moves a transaction to a terminal status.
	SetTransactionStatus(ctx context.Context, reference, status string) error

	// Atomically runs fn inside one atomic unit scoped to the given account
	// keys. If fn returns an error every mutation it performed is discarded.
	Atomically(ctx context.Context, keys []string, fn func(ctx context.Context, m Mutator) error) error

	// BumpOperator upserts the singleton operator rollup.
	BumpOperator(ctx context.Context, d OperatorDelta) error

	// BumpAgent upserts a per-agent rollup, creating a zero-valued row on
	// first touch.
	BumpAgent(ctx context.Context, d AgentDelta) error
}

// Mutator is the handle fn receives inside Atomically.
type Mutator interface {
	// AdjustBalance applies a signed delta to an account balance. A debit
	// that would leave the balance negative fails with ErrInsufficientFunds
	// before anything is written. A credit to an unknown mobile number
	// creates the account when createIfMissing is set, otherwise fails with
	// ErrAccountNotFound.
	AdjustBalance(ctx context.Context, mobileNumber string, delta money.Amount, createIfMissing bool, name string) error
}

// Directory is the read-only account lookup the transaction authority uses
// to resolve display names and roles. Missing accounts are reported as
// ErrAccountNotFound.
type Directory interface {
	FindByMobile(ctx context.Context, mobileNumber string) (*models.Account, error)
}

// CredentialVerifier re-checks a PIN as the second factor for cash-in and
// cash-out. A mismatch is reported as ErrInvalidCredential.
type CredentialVerifier interface {
	VerifyPIN(ctx context.Context, mobileNumber, candidate string) error
}

// Notifier receives credit-applied events. Delivery is best-effort and
// at-most-once; it is never part of the consistency contract.
type Notifier interface {
	Notify(mobileNumber string, ev NotifyEvent)
}

// Reconciler queues aggregate deltas whose post-commit application failed,
// so they can be retried instead of silently dropped.
type Reconciler interface {
	EnqueueOperator(d OperatorDelta)
	EnqueueAgent(d AgentDelta)
}
