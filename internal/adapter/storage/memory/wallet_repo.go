package memory

import (
	"context"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
)

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	s *Store
}

func (r *WalletRepo) Upsert(ctx context.Context, wallet *domain.Wallet) (*domain.Wallet, error) {
	var out domain.Wallet
	err := r.s.write(ctx, func(st *state) error {
		owner := wallet.Owner()
		if id, ok := st.walletByOwner[owner]; ok {
			out = st.wallets[id]
			return nil
		}
		st.wallets[wallet.ID] = *wallet
		st.walletByOwner[owner] = wallet.ID
		out = *wallet
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	w, ok := r.s.read(ctx).wallets[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r *WalletRepo) GetByOwner(ctx context.Context, owner domain.Owner) (*domain.Wallet, error) {
	st := r.s.read(ctx)
	id, ok := st.walletByOwner[owner]
	if !ok {
		return nil, nil
	}
	w := st.wallets[id]
	return &w, nil
}

// GetByIDForUpdate needs no extra locking: units of work are already serialized.
func (r *WalletRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	return r.GetByID(ctx, id)
}

func (r *WalletRepo) ApplyDelta(ctx context.Context, id uuid.UUID, availableDelta, pendingDelta int64) (*domain.Wallet, error) {
	var out domain.Wallet
	err := r.s.write(ctx, func(st *state) error {
		w, ok := st.wallets[id]
		if !ok {
			return fmt.Errorf("wallet %s not found", id)
		}
		if w.Balance+availableDelta < 0 || w.PendingBalance+pendingDelta < 0 {
			return ports.ErrNegativeBalance
		}
		w.Balance += availableDelta
		w.PendingBalance += pendingDelta
		w.Version++
		w.UpdatedAt = time.Now().UTC()
		st.wallets[id] = w
		out = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SetActive toggles a wallet; wallets are deactivated, never deleted.
func (r *WalletRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.s.write(ctx, func(st *state) error {
		w, ok := st.wallets[id]
		if !ok {
			return fmt.Errorf("wallet %s not found", id)
		}
		w.IsActive = active
		st.wallets[id] = w
		return nil
	})
}
