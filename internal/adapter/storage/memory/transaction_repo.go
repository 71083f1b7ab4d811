package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
)

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	s *Store
}

func (r *TransactionRepo) Create(ctx context.Context, tx *domain.Transaction) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.txs[tx.ID]; ok {
			return ports.ErrDuplicate
		}
		if _, ok := st.wallets[tx.WalletID]; !ok {
			return fmt.Errorf("wallet %s not found", tx.WalletID)
		}
		st.txs[tx.ID] = *tx
		st.txOrder = append(st.txOrder, tx.ID)
		return nil
	})
}

func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	tx, ok := r.s.read(ctx).txs[id]
	if !ok {
		return nil, nil
	}
	return &tx, nil
}

func (r *TransactionRepo) CompleteIfPending(ctx context.Context, id uuid.UUID, status domain.TransactionStatus, at time.Time) (bool, error) {
	var applied bool
	err := r.s.write(ctx, func(st *state) error {
		tx, ok := st.txs[id]
		if !ok || tx.Status != domain.TransactionStatusPending {
			return nil
		}
		tx.Status = status
		tx.CompletedAt = &at
		st.txs[id] = tx
		applied = true
		return nil
	})
	return applied, err
}

func (r *TransactionRepo) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.Transaction, error) {
	st := r.s.read(ctx)
	var out []domain.Transaction
	for _, id := range st.txOrder {
		if tx := st.txs[id]; tx.WalletID == walletID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (r *TransactionRepo) List(ctx context.Context, f domain.TransactionFilter) ([]domain.Transaction, int64, error) {
	all, _ := r.ListByWallet(ctx, f.WalletID)

	var matched []domain.Transaction
	for _, tx := range all {
		if f.Type != nil && tx.Type != *f.Type {
			continue
		}
		if f.Status != nil && tx.Status != *f.Status {
			continue
		}
		if f.From != nil && tx.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && tx.CreatedAt.After(*f.To) {
			continue
		}
		matched = append(matched, tx)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	offset := (f.Page - 1) * f.PageSize
	if offset < 0 || offset >= len(matched) {
		return []domain.Transaction{}, total, nil
	}
	end := offset + f.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (r *TransactionRepo) TotalsByType(ctx context.Context, walletID uuid.UUID) ([]domain.TypeTotal, error) {
	all, _ := r.ListByWallet(ctx, walletID)

	byType := make(map[domain.TransactionType]*domain.TypeTotal)
	var order []domain.TransactionType
	for _, tx := range all {
		if tx.Status != domain.TransactionStatusSuccess {
			continue
		}
		t, ok := byType[tx.Type]
		if !ok {
			t = &domain.TypeTotal{Type: tx.Type}
			byType[tx.Type] = t
			order = append(order, tx.Type)
		}
		t.Count++
		t.Amount += tx.Amount
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	out := make([]domain.TypeTotal, 0, len(order))
	for _, typ := range order {
		out = append(out, *byType[typ])
	}
	return out, nil
}
