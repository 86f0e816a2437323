// Package mongostore is the durable ledger.Store backed by MongoDB. Plans
// run inside a client session transaction, so either every balance delta of
// a plan is visible afterwards or none is. Requires a replica-set
// deployment, which is what multi-document transactions need.
package mongostore

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/quickcash/quickcash-gobackend/internal/ledger"
	"github.com/quickcash/quickcash-gobackend/internal/models"
	"github.com/quickcash/quickcash-gobackend/internal/money"
)

const (
	accountsColl     = "accounts"
	transactionsColl = "transactions"
	operatorColl     = "operator_aggregate"
	agentsColl       = "agent_aggregates"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var (
	_ ledger.Store     = (*Store)(nil)
	_ ledger.Directory = (*Store)(nil)
)

func NewStore(client *mongo.Client, dbName string) *Store {
	return &Store{client: client, db: client.Database(dbName)}
}

// EnsureIndexes creates the unique keys the ledger relies on: mobile
// number, email and nid on accounts (email and nid sparse, since
// implicitly-created accounts carry neither), the transaction reference,
// and the agent mobile number.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(accountsColl).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.M{"mobileNumber": 1}, Options: options.Index().SetUnique(true)},
		{Keys: bson.M{"email": 1}, Options: options.Index().SetUnique(true).SetSparse(true)},
		{Keys: bson.M{"nid": 1}, Options: options.Index().SetUnique(true).SetSparse(true)},
	})
	if err != nil {
		return fmt.Errorf("failed to create account indexes: %w", err)
	}

	_, err = s.db.Collection(transactionsColl).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.M{"transaction": 1}, Options: options.Index().SetUnique(true)},
		{Keys: bson.M{"mobileNumber": 1, "timestamp": -1}},
		{Keys: bson.M{"receiverMobileNumber": 1, "timestamp": -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create transaction indexes: %w", err)
	}

	_, err = s.db.Collection(agentsColl).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.M{"agentMobileNumber": 1}, Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create agent aggregate index: %w", err)
	}
	return nil
}

func (s *Store) InsertTransaction(ctx context.Context, tx *models.Transaction) error {
	_, err := s.db.Collection(transactionsColl).InsertOne(ctx, tx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ledger.ErrDuplicateTransaction
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (s *Store) SetTransactionStatus(ctx context.Context, reference, status string) error {
	res, err := s.db.Collection(transactionsColl).UpdateOne(ctx,
		bson.M{"transaction": reference},
		bson.M{"$set": bson.M{"status": status}})
	if err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("transaction %s not found", reference)
	}
	return nil
}

// Atomically runs fn inside a session transaction. The keys argument is
// unused here: MongoDB scopes the atomic unit by the session, not by locks.
func (s *Store) Atomically(ctx context.Context, keys []string, fn func(ctx context.Context, m ledger.Mutator) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, &mutator{db: s.db})
	})
	return err
}

func (s *Store) BumpOperator(ctx context.Context, d ledger.OperatorDelta) error {
	_, err := s.db.Collection(operatorColl).UpdateOne(ctx,
		bson.M{"_id": models.OperatorAggregateID},
		bson.M{
			"$inc": bson.M{
				"totalTransactions": d.Transactions,
				"totalAmount":       int64(d.Amount),
				"totalFee":          int64(d.Fee),
			},
			"$set": bson.M{"lastUpdated": time.Now()},
		},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to update operator aggregate: %w", err)
	}
	return nil
}

func (s *Store) BumpAgent(ctx context.Context, d ledger.AgentDelta) error {
	set := bson.M{"lastUpdated": time.Now()}
	if d.Name != "" {
		set["name"] = d.Name
	}
	_, err := s.db.Collection(agentsColl).UpdateOne(ctx,
		bson.M{"agentMobileNumber": d.MobileNumber},
		bson.M{
			"$inc": bson.M{
				"totalTransactions":    d.Transactions,
				"totalAmountProcessed": int64(d.AmountProcessed),
				"totalCommission":      int64(d.Commission),
				"totalCashIn":          int64(d.CashIn),
				"totalCashOut":         int64(d.CashOut),
			},
			"$set": set,
		},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to update agent aggregate: %w", err)
	}
	return nil
}

// FindByMobile implements ledger.Directory.
func (s *Store) FindByMobile(ctx context.Context, mobileNumber string) (*models.Account, error) {
	var acct models.Account
	err := s.db.Collection(accountsColl).FindOne(ctx, bson.M{"mobileNumber": mobileNumber}).Decode(&acct)
	if err == mongo.ErrNoDocuments {
		return nil, ledger.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch account: %w", err)
	}
	return &acct, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	var acct models.Account
	err := s.db.Collection(accountsColl).FindOne(ctx, bson.M{"email": email}).Decode(&acct)
	if err == mongo.ErrNoDocuments {
		return nil, ledger.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch account: %w", err)
	}
	return &acct, nil
}

// InsertAccount persists a new registration. Unique-index collisions on
// mobile number, email or nid surface as a duplicate error.
func (s *Store) InsertAccount(ctx context.Context, acct *models.Account) error {
	_, err := s.db.Collection(accountsColl).InsertOne(ctx, acct)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("account with this mobile number, email or nid already exists")
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// ListAccounts returns all accounts with credentials projected away.
func (s *Store) ListAccounts(ctx context.Context) ([]models.Account, error) {
	projection := bson.D{
		{Key: "password", Value: 0},
		{Key: "pin", Value: 0},
	}
	cur, err := s.db.Collection(accountsColl).Find(ctx, bson.D{}, options.Find().SetProjection(projection))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch accounts: %w", err)
	}
	defer cur.Close(ctx)

	var accounts []models.Account
	if err := cur.All(ctx, &accounts); err != nil {
		return nil, fmt.Errorf("failed to decode accounts: %w", err)
	}
	return accounts, nil
}

// SetBlocked flips the operator-set blocked flag.
func (s *Store) SetBlocked(ctx context.Context, mobileNumber string, blocked bool) error {
	res, err := s.db.Collection(accountsColl).UpdateOne(ctx,
		bson.M{"mobileNumber": mobileNumber},
		bson.M{"$set": bson.M{"blocked": blocked}})
	if err != nil {
		return fmt.Errorf("failed to update blocked flag: %w", err)
	}
	if res.MatchedCount == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

// ApproveAgent sets the agent-only approved flag.
func (s *Store) ApproveAgent(ctx context.Context, mobileNumber string) error {
	res, err := s.db.Collection(accountsColl).UpdateOne(ctx,
		bson.M{"mobileNumber": mobileNumber, "role": models.RoleAgent},
		bson.M{"$set": bson.M{"approved": true}})
	if err != nil {
		return fmt.Errorf("failed to approve agent: %w", err)
	}
	if res.MatchedCount == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

// FindTransaction fetches one transaction by its reference.
func (s *Store) FindTransaction(ctx context.Context, reference string) (*models.Transaction, error) {
	var tx models.Transaction
	err := s.db.Collection(transactionsColl).FindOne(ctx, bson.M{"transaction": reference}).Decode(&tx)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("transaction not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transaction: %w", err)
	}
	return &tx, nil
}

// ListTransactionsForMobile returns transactions where the mobile number is
// either side, newest first.
func (s *Store) ListTransactionsForMobile(ctx context.Context, mobileNumber string) ([]models.Transaction, error) {
	query := bson.M{"$or": []bson.M{
		{"mobileNumber": mobileNumber},
		{"receiverMobileNumber": mobileNumber},
	}}
	cur, err := s.db.Collection(transactionsColl).Find(ctx, query,
		options.Find().SetSort(bson.M{"timestamp": -1}))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transactions: %w", err)
	}
	defer cur.Close(ctx)

	var txs []models.Transaction
	if err := cur.All(ctx, &txs); err != nil {
		return nil, fmt.Errorf("failed to decode transactions: %w", err)
	}
	return txs, nil
}

// OperatorAggregate reads the singleton rollup; a zero value is returned
// before the first committed transaction.
func (s *Store) OperatorAggregate(ctx context.Context) (*models.OperatorAggregate, error) {
	var agg models.OperatorAggregate
	err := s.db.Collection(operatorColl).FindOne(ctx, bson.M{"_id": models.OperatorAggregateID}).Decode(&agg)
	if err == mongo.ErrNoDocuments {
		return &models.OperatorAggregate{ID: models.OperatorAggregateID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch operator aggregate: %w", err)
	}
	return &agg, nil
}

// AgentAggregate reads one agent rollup.
func (s *Store) AgentAggregate(ctx context.Context, mobileNumber string) (*models.AgentAggregate, error) {
	var agg models.AgentAggregate
	err := s.db.Collection(agentsColl).FindOne(ctx, bson.M{"agentMobileNumber": mobileNumber}).Decode(&agg)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("agent aggregate not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch agent aggregate: %w", err)
	}
	return &agg, nil
}

// mutator applies guarded balance updates inside the session transaction.
type mutator struct {
	db *mongo.Database
}

func (m *mutator) AdjustBalance(ctx context.Context, mobileNumber string, delta money.Amount, createIfMissing bool, name string) error {
	coll := m.db.Collection(accountsColl)

	if delta < 0 {
		// Guarded debit: the filter only matches when the balance can
		// absorb the debit, so the balance can never be driven negative.
		res, err := coll.UpdateOne(ctx,
			bson.M{"mobileNumber": mobileNumber, "balance": bson.M{"$gte": int64(-delta)}},
			bson.M{"$inc": bson.M{"balance": int64(delta)}})
		if err != nil {
			return fmt.Errorf("failed to debit %s: %w", mobileNumber, err)
		}
		if res.MatchedCount == 0 {
			n, err := coll.CountDocuments(ctx, bson.M{"mobileNumber": mobileNumber})
			if err != nil {
				return fmt.Errorf("failed to check account %s: %w", mobileNumber, err)
			}
			if n == 0 {
				return ledger.ErrAccountNotFound
			}
			return ledger.ErrInsufficientFunds
		}
		return nil
	}

	update := bson.M{"$inc": bson.M{"balance": int64(delta)}}
	if createIfMissing {
		update["$setOnInsert"] = bson.M{
			"name":       name,
			"role":       models.RoleUser,
			"blocked":    false,
			"approved":   false,
			"created_at": time.Now(),
		}
	}
	res, err := coll.UpdateOne(ctx, bson.M{"mobileNumber": mobileNumber}, update,
		options.Update().SetUpsert(createIfMissing))
	if err != nil {
		return fmt.Errorf("failed to credit %s: %w", mobileNumber, err)
	}
	if !createIfMissing && res.MatchedCount == 0 {
		return ledger.ErrAccountNotFound
	}
	if res.UpsertedCount > 0 {
		log.Printf("implicitly created account for mobile number %s on credit", mobileNumber)
	}
	return nil
}
