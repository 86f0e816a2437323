package models

import (
	"time"

	"github.com/quickcash/quickcash-gobackend/internal/money"
)

// OperatorAggregate is the platform-wide rollup of committed transactions.
// One row, upserted on every commit.
type OperatorAggregate struct {
	ID                string       `bson:"_id" json:"-"`
	TotalTransactions int64        `bson:"totalTransactions" json:"totalTransactions"`
	TotalAmount       money.Amount `bson:"totalAmount" json:"totalAmount"`
	TotalFee          money.Amount `bson:"totalFee" json:"totalFee"`
	LastUpdated       time.Time    `bson:"lastUpdated" json:"lastUpdated"`
}

// OperatorAggregateID is the fixed _id of the singleton operator row.
const OperatorAggregateID = "operator"

// AgentAggregate is the per-agent rollup, keyed by the agent's mobile
// number and created on first touch. TotalAmountProcessed models the float
// of funds the agent advances: it grows on cash-out and shrinks on cash-in.
type AgentAggregate struct {
	AgentMobileNumber    string       `bson:"agentMobileNumber" json:"agentMobileNumber"`
	Name                 string       `bson:"name" json:"name"`
	TotalTransactions    int64        `bson:"totalTransactions" json:"totalTransactions"`
	TotalAmountProcessed money.Amount `bson:"totalAmountProcessed" json:"totalAmountProcessed"`
	TotalCommission      money.Amount `bson:"totalCommission" json:"totalCommission"`
	TotalCashIn          money.Amount `bson:"totalCashIn" json:"totalCashIn"`
	TotalCashOut         money.Amount `bson:"totalCashOut" json:"totalCashOut"`
	LastUpdated          time.Time    `bson:"lastUpdated" json:"lastUpdated"`
}
