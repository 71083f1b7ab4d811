package service

import (
	"context"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// walletQueryService implements ports.WalletService.
type walletQueryService struct {
	ledger *Ledger
	txRepo ports.TransactionRepository
}

// NewWalletQueryService creates a new wallet query service.
func NewWalletQueryService(ledger *Ledger, txRepo ports.TransactionRepository) ports.WalletService {
	return &walletQueryService{ledger: ledger, txRepo: txRepo}
}

// GetWallet returns the owner's wallet, opening it on first access.
func (s *walletQueryService) GetWallet(ctx context.Context, owner domain.Owner) (*domain.Wallet, error) {
	return s.ledger.Wallet(ctx, owner)
}

// ListTransactions returns a page of the owner's history, newest first.
func (s *walletQueryService) ListTransactions(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	if params.Status != nil && !params.Status.Valid() {
		return nil, 0, apperror.Validation("invalid status filter")
	}
	if params.Type != nil && !params.Type.Valid() {
		return nil, 0, apperror.Validation("invalid type filter")
	}
	if params.From != nil && params.To != nil && *params.From > *params.To {
		return nil, 0, apperror.Validation("from must not be after to")
	}

	wallet, err := s.ledger.Wallet(ctx, params.Owner)
	if err != nil {
		return nil, 0, err
	}

	filter := domain.TransactionFilter{
		WalletID: wallet.ID,
		Type:     params.Type,
		Status:   params.Status,
		Page:     params.Page,
		PageSize: params.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = defaultPageSize
	}
	if filter.PageSize > maxPageSize {
		filter.PageSize = maxPageSize
	}
	if params.From != nil {
		from := time.Unix(*params.From, 0).UTC()
		filter.From = &from
	}
	if params.To != nil {
		to := time.Unix(*params.To, 0).UTC()
		filter.To = &to
	}

	txns, total, err := s.txRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}
	return txns, total, nil
}

// GetSummary returns the wallet with per-type totals of successful movements.
func (s *walletQueryService) GetSummary(ctx context.Context, owner domain.Owner) (*ports.WalletSummary, error) {
	wallet, err := s.ledger.Wallet(ctx, owner)
	if err != nil {
		return nil, err
	}
	totals, err := s.txRepo.TotalsByType(ctx, wallet.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("totals by type: %w", err))
	}
	return &ports.WalletSummary{Wallet: wallet, Totals: totals}, nil
}

// Reconcile recomputes a wallet from its log for an admin audit.
func (s *walletQueryService) Reconcile(ctx context.Context, walletID uuid.UUID) (*domain.LedgerAudit, error) {
	return s.ledger.Reconstruct(ctx, walletID)
}
