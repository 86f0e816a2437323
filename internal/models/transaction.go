package models

import (
	"time"

	"github.com/quickcash/quickcash-gobackend/internal/money"
)

// Operation kinds.
const (
	KindTransfer = "transfer"
	KindCashOut  = "cash-out"
	KindCashIn   = "cash-in"
)

// Transaction statuses. A transaction is created unsent, moves to sent only
// after every balance mutation committed, to failed otherwise, and is never
// mutated again after that.
const (
	StatusUnsent = "unsent"
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Transaction is an immutable-once-terminal record of one money movement
// attempt. Reference is the caller-supplied idempotency key; a second insert
// with the same reference is rejected, never overwritten.
type Transaction struct {
	Reference            string       `bson:"transaction" json:"transaction"`
	Kind                 string       `bson:"kind" json:"-"`
	MobileNumber         string       `bson:"mobileNumber" json:"mobileNumber"`
	Name                 string       `bson:"name" json:"name"`
	AccountType          string       `bson:"accountType" json:"accountType"`
	ReceiverMobileNumber string       `bson:"receiverMobileNumber" json:"receiverMobileNumber"`
	ReceiverName         string       `bson:"receiverName" json:"receiverName"`
	ReceiverAccountType  string       `bson:"receiverAccountType" json:"receiverAccountType"`
	TotalAmount          money.Amount `bson:"totalAmount" json:"totalAmount"`
	SendMoneyFee         money.Amount `bson:"sendMoneyFee" json:"sendMoneyFee"`
	FinalAmount          money.Amount `bson:"finalAmount" json:"finalAmount"`
	Status               string       `bson:"status" json:"status"`
	Timestamp            time.Time    `bson:"timestamp" json:"timestamp"`
}
