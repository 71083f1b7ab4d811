package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
)

var accountNumberPattern = regexp.MustCompile(`^[0-9]{6,20}$`)

type bankAccountService struct {
	repo   ports.BankAccountRepository
	encSvc ports.EncryptionService
}

// NewBankAccountService creates the payout destination service. Account
// numbers are sealed with encSvc before they reach storage.
func NewBankAccountService(
	repo ports.BankAccountRepository,
	encSvc ports.EncryptionService,
) ports.BankAccountService {
	return &bankAccountService{
		repo:   repo,
		encSvc: encSvc,
	}
}

// Register stores a new default payout destination for the worker.
func (s *bankAccountService) Register(ctx context.Context, in ports.RegisterBankAccountInput) (*ports.BankAccountView, error) {
	number := strings.ReplaceAll(strings.TrimSpace(in.AccountNumber), " ", "")
	if !accountNumberPattern.MatchString(number) {
		return nil, apperror.Validation("account number must be 6-20 digits")
	}
	if strings.TrimSpace(in.BankCode) == "" || strings.TrimSpace(in.AccountHolder) == "" {
		return nil, apperror.Validation("bank code and account holder are required")
	}

	sealed, err := s.encSvc.Encrypt(number)
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(fmt.Errorf("encrypt account number: %w", err))
	}

	account := &domain.BankAccount{
		ID:               uuid.New(),
		WorkerID:         in.WorkerID,
		BankCode:         strings.ToUpper(strings.TrimSpace(in.BankCode)),
		AccountNumberEnc: sealed,
		AccountHolder:    strings.TrimSpace(in.AccountHolder),
		IsDefault:        true,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, account); err != nil {
		return nil, apperror.InternalError(err)
	}

	return toBankAccountView(account, number), nil
}

// GetDefault returns the worker's current payout destination.
func (s *bankAccountService) GetDefault(ctx context.Context, workerID uuid.UUID) (*ports.BankAccountView, error) {
	account, err := s.repo.GetDefault(ctx, workerID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if account == nil {
		return nil, apperror.ErrBankAccountRequired()
	}

	number, err := s.encSvc.Decrypt(account.AccountNumberEnc)
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(fmt.Errorf("decrypt account number: %w", err))
	}
	return toBankAccountView(account, number), nil
}

func toBankAccountView(account *domain.BankAccount, number string) *ports.BankAccountView {
	return &ports.BankAccountView{
		ID:            account.ID,
		BankCode:      account.BankCode,
		AccountNumber: MaskAccountNumber(number),
		AccountHolder: account.AccountHolder,
		IsDefault:     account.IsDefault,
		CreatedAt:     account.CreatedAt.Format(time.RFC3339),
	}
}
