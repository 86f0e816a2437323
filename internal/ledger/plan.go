package ledger

import (
	"sort"
	"time"

	"github.com/quickcash/quickcash-gobackend/internal/models"
	"github.com/quickcash/quickcash-gobackend/internal/money"
)

// AccountDelta is one balance mutation. A negative Amount is a debit and is
// guarded against driving the balance below zero. CreateIfMissing marks the
// upsert-create path used when crediting a not-yet-registered mobile number.
type AccountDelta struct {
	MobileNumber    string
	Amount          money.Amount
	CreateIfMissing bool
	Name            string
}

// OperatorDelta increments the singleton operator rollup.
type OperatorDelta struct {
	Transactions int64
	Amount       money.Amount
	Fee          money.Amount
}

// AgentDelta increments a per-agent rollup, creating the row on first touch.
// AmountProcessed may be negative: cash-in shrinks the agent's float.
type AgentDelta struct {
	MobileNumber    string
	Name            string
	Transactions    int64
	AmountProcessed money.Amount
	Commission      money.Amount
	CashIn          money.Amount
	CashOut         money.Amount
}

// Plan is the ordered set of mutations produced for one request. The account
// deltas commit atomically; the aggregate deltas are eventually-consistent
// rollups applied after commit. NotifyMobile, when set, addresses the
// post-commit credit notification.
type Plan struct {
	Tx           models.Transaction
	Debit        *AccountDelta
	Credit       *AccountDelta
	Operator     OperatorDelta
	Agent        *AgentDelta
	NotifyMobile string
}

// Keys returns the identifiers of every account the plan touches, sorted.
// Stores that serialize through per-account locks acquire them in this
// order, so two plans over the same pair can never deadlock.
func (p *Plan) Keys() []string {
	seen := map[string]bool{}
	var keys []string
	for _, d := range []*AccountDelta{p.Debit, p.Credit} {
		if d != nil && !seen[d.MobileNumber] {
			seen[d.MobileNumber] = true
			keys = append(keys, d.MobileNumber)
		}
	}
	sort.Strings(keys)
	return keys
}

// NotifyEvent is the payload handed to the notification sink after a
// committed cash-in.
type NotifyEvent struct {
	ID           string       `json:"id"`
	MobileNumber string       `json:"mobileNumber"`
	Kind         string       `json:"kind"`
	Amount       money.Amount `json:"amount"`
	Timestamp    time.Time    `json:"timestamp"`
}
