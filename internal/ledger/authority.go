package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/quickcash/quickcash-gobackend/internal/fees"
	"github.com/quickcash/quickcash-gobackend/internal/models"
	"github.com/quickcash/quickcash-gobackend/internal/money"
)

// Authority validates transfer requests and turns them into mutation plans.
// It reads the account directory and the credential store but never writes.
type Authority struct {
	dir   Directory
	creds CredentialVerifier

	// allowImplicitAccounts gates the upsert-create path: when true, a
	// credit addressed to a not-yet-registered mobile number creates the
	// account inside the atomic unit instead of failing the plan.
	allowImplicitAccounts bool
}

func NewAuthority(dir Directory, creds CredentialVerifier, allowImplicitAccounts bool) *Authority {
	return &Authority{dir: dir, creds: creds, allowImplicitAccounts: allowImplicitAccounts}
}

// TransferRequest is a peer-to-peer send-money request. SenderMobile comes
// from the authenticated caller identity, never from the request body.
// FinalAmount is an optimistic hint: the authority recomputes the net amount
// and rejects a mismatch.
type TransferRequest struct {
	SenderMobile   string
	ReceiverMobile string
	TotalAmount    money.Amount
	SendMoneyFee   money.Amount
	FinalAmount    money.Amount
	Reference      string
}

// CashOutRequest moves cash from a user to an agent. The PIN is re-verified
// against the stored credential as a second factor beyond the session token.
type CashOutRequest struct {
	SenderMobile string
	AgentMobile  string
	PIN          string
	TotalAmount  money.Amount
	FinalAmount  money.Amount
	Reference    string
}

// CashInRequest moves cash from an agent to a user.
type CashInRequest struct {
	AgentMobile    string
	ReceiverMobile string
	PIN            string
	TotalAmount    money.Amount
	Reference      string
}

// PlanTransfer validates a peer transfer and produces its mutation plan:
// debit the sender the net amount, credit the receiver the gross amount,
// and roll the gross and fee into the operator aggregate. The fee here is
// caller-supplied wallet policy, unlike the derived cash-out fee.
func (a *Authority) PlanTransfer(ctx context.Context, req TransferRequest) (*Plan, error) {
	if req.Reference == "" || req.TotalAmount <= 0 {
		return nil, fmt.Errorf("%w: transaction reference and positive totalAmount required", ErrInvalidInput)
	}
	if req.SendMoneyFee < 0 {
		return nil, fmt.Errorf("%w: sendMoneyFee must not be negative", ErrInvalidInput)
	}
	if req.SendMoneyFee > req.TotalAmount {
		return nil, fmt.Errorf("%w: sendMoneyFee exceeds totalAmount", ErrInvalidInput)
	}

	final := req.TotalAmount - req.SendMoneyFee
	if req.FinalAmount != 0 && req.FinalAmount != final {
		return nil, fmt.Errorf("%w: finalAmount %s does not match totalAmount minus fee %s",
			ErrInvalidInput, req.FinalAmount, final)
	}

	sender, err := a.sender(ctx, req.SenderMobile)
	if err != nil {
		return nil, err
	}
	recvName, recvType := a.receiver(ctx, req.ReceiverMobile)

	return &Plan{
		Tx: models.Transaction{
			Reference:            req.Reference,
			Kind:                 models.KindTransfer,
			MobileNumber:         sender.MobileNumber,
			Name:                 sender.Name,
			AccountType:          sender.Role,
			ReceiverMobileNumber: req.ReceiverMobile,
			ReceiverName:         recvName,
			ReceiverAccountType:  recvType,
			TotalAmount:          req.TotalAmount,
			SendMoneyFee:         req.SendMoneyFee,
			FinalAmount:          final,
			Status:               models.StatusUnsent,
			Timestamp:            time.Now(),
		},
		Debit:  &AccountDelta{MobileNumber: sender.MobileNumber, Amount: -final},
		Credit: &AccountDelta{MobileNumber: req.ReceiverMobile, Amount: req.TotalAmount, CreateIfMissing: a.allowImplicitAccounts},
		Operator: OperatorDelta{
			Transactions: 1,
			Amount:       req.TotalAmount,
			Fee:          req.SendMoneyFee,
		},
	}, nil
}

// PlanCashOut validates a user-to-agent cash-out. Fees are derived from the
// gross amount (0.5% operator, 1% agent) and both come out of the sender on
// top of the net amount. The agent's spendable balance is not credited:
// agent compensation lives only in the aggregate, settled off-ledger.
func (a *Authority) PlanCashOut(ctx context.Context, req CashOutRequest) (*Plan, error) {
	if req.Reference == "" || req.TotalAmount <= 0 || req.FinalAmount <= 0 {
		return nil, fmt.Errorf("%w: transaction reference and positive amounts required", ErrInvalidInput)
	}
	if req.FinalAmount != req.TotalAmount {
		return nil, fmt.Errorf("%w: cash-out finalAmount must equal totalAmount", ErrInvalidInput)
	}

	if err := a.creds.VerifyPIN(ctx, req.SenderMobile, req.PIN); err != nil {
		return nil, err
	}

	sender, err := a.sender(ctx, req.SenderMobile)
	if err != nil {
		return nil, err
	}
	agentName, _ := a.receiver(ctx, req.AgentMobile)

	operatorFee, agentFee := fees.Compute(models.KindCashOut, req.TotalAmount)

	return &Plan{
		Tx: models.Transaction{
			Reference:            req.Reference,
			Kind:                 models.KindCashOut,
			MobileNumber:         sender.MobileNumber,
			Name:                 sender.Name,
			AccountType:          sender.Role,
			ReceiverMobileNumber: req.AgentMobile,
			ReceiverName:         agentName,
			ReceiverAccountType:  models.RoleAgent,
			TotalAmount:          req.TotalAmount,
			SendMoneyFee:         operatorFee + agentFee,
			FinalAmount:          req.FinalAmount,
			Status:               models.StatusUnsent,
			Timestamp:            time.Now(),
		},
		Debit: &AccountDelta{MobileNumber: sender.MobileNumber, Amount: -(req.FinalAmount + operatorFee + agentFee)},
		Operator: OperatorDelta{
			Transactions: 1,
			Amount:       req.TotalAmount,
			Fee:          operatorFee,
		},
		Agent: &AgentDelta{
			MobileNumber:    req.AgentMobile,
			Name:            agentName,
			Transactions:    1,
			AmountProcessed: req.TotalAmount,
			Commission:      agentFee,
			CashIn:          req.TotalAmount,
		},
	}, nil
}

// PlanCashIn validates an agent-to-user cash-in. The user is credited the
// full gross amount, no fee is charged, and the agent's processed-amount
// float shrinks by the gross, modeling funds the agent advanced. The
// committed plan emits a credit notification addressed to the user.
func (a *Authority) PlanCashIn(ctx context.Context, req CashInRequest) (*Plan, error) {
	if req.Reference == "" || req.TotalAmount <= 0 {
		return nil, fmt.Errorf("%w: transaction reference and positive totalAmount required", ErrInvalidInput)
	}

	if err := a.creds.VerifyPIN(ctx, req.AgentMobile, req.PIN); err != nil {
		return nil, err
	}

	agent, err := a.sender(ctx, req.AgentMobile)
	if err != nil {
		return nil, err
	}
	recvName, recvType := a.receiver(ctx, req.ReceiverMobile)

	return &Plan{
		Tx: models.Transaction{
			Reference:            req.Reference,
			Kind:                 models.KindCashIn,
			MobileNumber:         agent.MobileNumber,
			Name:                 agent.Name,
			AccountType:          agent.Role,
			ReceiverMobileNumber: req.ReceiverMobile,
			ReceiverName:         recvName,
			ReceiverAccountType:  recvType,
			TotalAmount:          req.TotalAmount,
			SendMoneyFee:         0,
			FinalAmount:          req.TotalAmount,
			Status:               models.StatusUnsent,
			Timestamp:            time.Now(),
		},
		Credit: &AccountDelta{MobileNumber: req.ReceiverMobile, Amount: req.TotalAmount, CreateIfMissing: a.allowImplicitAccounts},
		Operator: OperatorDelta{
			Transactions: 1,
			Amount:       req.TotalAmount,
			Fee:          0,
		},
		Agent: &AgentDelta{
			MobileNumber:    agent.MobileNumber,
			Name:            agent.Name,
			Transactions:    1,
			AmountProcessed: -req.TotalAmount,
			CashOut:         req.TotalAmount,
		},
		NotifyMobile: req.ReceiverMobile,
	}, nil
}

// sender resolves the authenticated party and enforces the blocked flag.
func (a *Authority) sender(ctx context.Context, mobile string) (*models.Account, error) {
	acct, err := a.dir.FindByMobile(ctx, mobile)
	if err != nil {
		return nil, err
	}
	if acct.Blocked {
		return nil, ErrAccountBlocked
	}
	return acct, nil
}

// receiver resolves display details for the credited side. A missing
// receiver is tolerated here: the credit executes as an upsert-create when
// policy allows, and otherwise fails the plan inside the atomic unit.
func (a *Authority) receiver(ctx context.Context, mobile string) (name, accountType string) {
	acct, err := a.dir.FindByMobile(ctx, mobile)
	if err != nil {
		return "", models.RoleUser
	}
	return acct.Name, acct.Role
}
