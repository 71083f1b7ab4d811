package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const walletColumns = `id, owner_type, owner_id, balance, pending_balance, currency, is_active, version, created_at, updated_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Upsert inserts the wallet unless its owner already has one, then returns
// the stored row. Concurrent first access converges on the unique owner key.
func (r *WalletRepo) Upsert(ctx context.Context, w *domain.Wallet) (*domain.Wallet, error) {
	query := `INSERT INTO wallets (id, owner_type, owner_id, balance, pending_balance, currency, is_active, version, created_at, updated_at)
		VALUES ($1, $2, $3, 0, 0, $4, $5, 0, $6, $7)
		ON CONFLICT (owner_type, owner_id) DO NOTHING`

	_, err := conn(ctx, r.pool).Exec(ctx, query,
		w.ID, string(w.OwnerType), w.OwnerID, w.Currency, w.IsActive, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert wallet: %w", err)
	}

	stored, err := r.GetByOwner(ctx, w.Owner())
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("wallet for %s %s vanished after upsert", w.OwnerType, w.OwnerID)
	}
	return stored, nil
}

// GetByID fetches a wallet by its UUID (without locking).
func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`
	return scanWallet(conn(ctx, r.pool).QueryRow(ctx, query, id))
}

// GetByOwner fetches the owner's wallet (non-locking read).
func (r *WalletRepo) GetByOwner(ctx context.Context, owner domain.Owner) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE owner_type = $1 AND owner_id = $2`
	return scanWallet(conn(ctx, r.pool).QueryRow(ctx, query, string(owner.Type), owner.ID))
}

// GetByIDForUpdate fetches a wallet by ID with pessimistic locking.
// This MUST be called within a transaction.
func (r *WalletRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	query := forUpdate(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`)
	return scanWallet(conn(ctx, r.pool).QueryRow(ctx, query, id))
}

// ApplyDelta adds the deltas to both balances in a single guarded UPDATE.
// Nothing is written when either result would be negative.
func (r *WalletRepo) ApplyDelta(ctx context.Context, id uuid.UUID, availableDelta, pendingDelta int64) (*domain.Wallet, error) {
	query := `UPDATE wallets
		SET balance = balance + $2, pending_balance = pending_balance + $3, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND balance + $2 >= 0 AND pending_balance + $3 >= 0
		RETURNING ` + walletColumns

	w, err := scanWallet(conn(ctx, r.pool).QueryRow(ctx, query, id, availableDelta, pendingDelta))
	if err != nil {
		if isCheckViolation(err) {
			return nil, ports.ErrNegativeBalance
		}
		return nil, err
	}
	if w != nil {
		return w, nil
	}

	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("wallet not found: %s", id)
	}
	return nil, ports.ErrNegativeBalance
}

// SetActive freezes or unfreezes a wallet.
func (r *WalletRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `UPDATE wallets SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("set wallet active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", id)
	}
	return nil
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	var ownerType string
	err := row.Scan(
		&w.ID, &ownerType, &w.OwnerID, &w.Balance, &w.PendingBalance,
		&w.Currency, &w.IsActive, &w.Version, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan wallet: %w", err)
	}
	w.OwnerType = domain.OwnerType(ownerType)
	return w, nil
}
