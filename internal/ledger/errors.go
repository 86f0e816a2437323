package ledger

import "errors"

// Sentinel errors surfaced to callers. Handlers map these to HTTP statuses;
// anything else is a server-side fault.
var (
	// ErrInvalidInput covers missing or negative amount fields and
	// caller-supplied fee/net amounts that disagree with policy.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDuplicateTransaction is the idempotency boundary: a reference that
	// was already inserted is rejected, never re-applied.
	ErrDuplicateTransaction = errors.New("duplicate transaction reference")

	// ErrInvalidCredential is a PIN mismatch. It never reveals which side
	// of the check failed.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrInsufficientFunds rejects a plan whose debit would drive the
	// account balance negative. Nothing is mutated.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAccountNotFound is returned by the store when a referenced
	// account does not exist and creation was not allowed.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountBlocked rejects operations on operator-blocked accounts.
	ErrAccountBlocked = errors.New("account blocked")
)
