package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/quickcash/quickcash-gobackend/internal/money"
)

// Account roles.
const (
	RoleUser  = "user"
	RoleAgent = "agent"
	RoleAdmin = "admin"
)

// Account is a party's spendable-balance record. Mobile number, email and
// national id are each unique. Balance is held in minor units and must only
// be mutated through the ledger executor.
type Account struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	MobileNumber string             `bson:"mobileNumber" json:"mobileNumber"`
	NID          string             `bson:"nid" json:"nid"`
	Role         string             `bson:"role" json:"role"`
	Balance      money.Amount       `bson:"balance" json:"balance"`
	Blocked      bool               `bson:"blocked" json:"blocked"`
	Approved     bool               `bson:"approved" json:"approved"`
	HPassword    string             `bson:"password" json:"-"`
	HPIN         string             `bson:"pin" json:"-"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
}
