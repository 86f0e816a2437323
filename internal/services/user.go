package services

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/quickcash/quickcash-gobackend/internal/ledger"
	"github.com/quickcash/quickcash-gobackend/internal/models"
	"github.com/quickcash/quickcash-gobackend/internal/mongostore"
)

var pinPattern = regexp.MustCompile(`^\d{5}$`)

// UserService handles registration, login and PIN verification against the
// account collection. It is the credential store the transaction authority
// re-verifies PINs through.
type UserService struct {
	store *mongostore.Store
}

var _ ledger.CredentialVerifier = (*UserService)(nil)

func NewUserService(store *mongostore.Store) *UserService {
	return &UserService{store: store}
}

// RegisterRequest carries a new account registration. The PIN is the
// 5-digit second factor re-checked on cash-in and cash-out.
type RegisterRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	MobileNumber string `json:"mobileNumber"`
	NID          string `json:"nid"`
	Role         string `json:"role"`
	Password     string `json:"password"`
	PIN          string `json:"pin"`
}

// Register creates an account with hashed credentials. Agents start
// unapproved and wait for the operator; admins cannot self-register.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*models.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if req.Name == "" || req.Email == "" || req.MobileNumber == "" || req.NID == "" {
		return nil, fmt.Errorf("%w: name, email, mobileNumber and nid are required", ledger.ErrInvalidInput)
	}
	if req.Role != models.RoleUser && req.Role != models.RoleAgent {
		return nil, fmt.Errorf("%w: role must be user or agent", ledger.ErrInvalidInput)
	}
	if len(req.Password) < 6 {
		return nil, fmt.Errorf("%w: password must be at least 6 characters", ledger.ErrInvalidInput)
	}
	if !pinPattern.MatchString(req.PIN) {
		return nil, fmt.Errorf("%w: pin must be exactly 5 digits", ledger.ErrInvalidInput)
	}

	hpw, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	hpin, err := bcrypt.GenerateFromPassword([]byte(req.PIN), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash pin: %w", err)
	}

	acct := &models.Account{
		Name:         req.Name,
		Email:        req.Email,
		MobileNumber: req.MobileNumber,
		NID:          req.NID,
		Role:         req.Role,
		Balance:      0,
		Approved:     req.Role == models.RoleUser,
		HPassword:    string(hpw),
		HPIN:         string(hpin),
		CreatedAt:    time.Now(),
	}

	if err := s.store.InsertAccount(ctx, acct); err != nil {
		return nil, err
	}
	log.Printf("Account registered: mobile=%s role=%s", acct.MobileNumber, acct.Role)
	return acct, nil
}

// Login checks email and password and returns the account on success.
func (s *UserService) Login(ctx context.Context, email, password string) (*models.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	acct, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, ledger.ErrInvalidCredential
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.HPassword), []byte(password)); err != nil {
		return nil, ledger.ErrInvalidCredential
	}
	return acct, nil
}

// VerifyPIN implements ledger.CredentialVerifier. The error never reveals
// whether the account or the PIN was the wrong half.
func (s *UserService) VerifyPIN(ctx context.Context, mobileNumber, candidate string) error {
	acct, err := s.store.FindByMobile(ctx, mobileNumber)
	if err != nil {
		return ledger.ErrInvalidCredential
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.HPIN), []byte(candidate)); err != nil {
		return ledger.ErrInvalidCredential
	}
	return nil
}

// List returns all accounts with credentials stripped.
func (s *UserService) List(ctx context.Context) ([]models.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.store.ListAccounts(ctx)
}

// GetByMobile fetches one account.
func (s *UserService) GetByMobile(ctx context.Context, mobileNumber string) (*models.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.store.FindByMobile(ctx, mobileNumber)
}

// SetBlocked flips the operator-set blocked flag.
func (s *UserService) SetBlocked(ctx context.Context, mobileNumber string, blocked bool) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.store.SetBlocked(ctx, mobileNumber, blocked); err != nil {
		return err
	}
	log.Printf("Account %s blocked=%v", mobileNumber, blocked)
	return nil
}

// ApproveAgent marks an agent account as operator-approved.
func (s *UserService) ApproveAgent(ctx context.Context, mobileNumber string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.store.ApproveAgent(ctx, mobileNumber); err != nil {
		return err
	}
	log.Printf("Agent %s approved", mobileNumber)
	return nil
}
