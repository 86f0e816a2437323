// Package fees is the pure fee policy: given an operation kind and a gross
// amount it yields the operator and agent cuts. No storage, no clock.
package fees

import (
	"github.com/quickcash/quickcash-gobackend/internal/models"
	"github.com/quickcash/quickcash-gobackend/internal/money"
)

// Cash-out rates in basis points. The operator takes 0.5%, the agent 1%.
const (
	cashOutOperatorBps = 50
	cashOutAgentBps    = 100
)

// Compute returns (operatorFee, agentFee) for the given operation kind and
// gross amount in minor units.
//
// Transfer fees are caller-supplied per request, not derived here, so
// Compute reports zero for them; the transaction authority validates the
// supplied fee instead. Cash-in carries no fee at all. The asymmetry between
// the derived cash-out fee and the caller-supplied transfer fee is inherited
// wallet policy and is deliberately kept as two distinct paths.
func Compute(kind string, gross money.Amount) (operatorFee, agentFee money.Amount) {
	switch kind {
	case models.KindCashOut:
		return bps(gross, cashOutOperatorBps), bps(gross, cashOutAgentBps)
	default:
		return 0, 0
	}
}

// bps applies a basis-point rate with round-half-away-from-zero semantics
// on minor units.
func bps(amount money.Amount, rate int64) money.Amount {
	v := int64(amount) * rate
	if v >= 0 {
		return money.Amount((v + 5000) / 10000)
	}
	return money.Amount((v - 5000) / 10000)
}
