package memory

import (
	"context"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
)

// TopupRepo implements ports.PaymentTransactionRepository.
type TopupRepo struct {
	s *Store
}

func (r *TopupRepo) Create(ctx context.Context, p *domain.PaymentTransaction) error {
	return r.s.write(ctx, func(st *state) error {
		for _, existing := range st.topups {
			if existing.ExternalID == p.ExternalID {
				return ports.ErrDuplicate
			}
		}
		st.topups[p.ID] = *p
		return nil
	})
}

func (r *TopupRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentTransaction, error) {
	p, ok := r.s.read(ctx).topups[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *TopupRepo) GetByExternalID(ctx context.Context, externalID string) (*domain.PaymentTransaction, error) {
	for _, p := range r.s.read(ctx).topups {
		if p.ExternalID == externalID {
			return &p, nil
		}
	}
	return nil, nil
}

func (r *TopupRepo) GetByExternalIDForUpdate(ctx context.Context, externalID string) (*domain.PaymentTransaction, error) {
	return r.GetByExternalID(ctx, externalID)
}

func (r *TopupRepo) SetInvoice(ctx context.Context, id uuid.UUID, providerPaymentID, paymentURL string, expiresAt time.Time) error {
	return r.s.write(ctx, func(st *state) error {
		p, ok := st.topups[id]
		if !ok {
			return fmt.Errorf("topup %s not found", id)
		}
		p.ProviderPaymentID = &providerPaymentID
		p.PaymentURL = &paymentURL
		p.ExpiresAt = &expiresAt
		p.UpdatedAt = time.Now().UTC()
		st.topups[id] = p
		return nil
	})
}

func (r *TopupRepo) CompleteIfPending(ctx context.Context, id uuid.UUID, status domain.TransactionStatus, providerPaymentID *string, at time.Time) (bool, error) {
	var applied bool
	err := r.s.write(ctx, func(st *state) error {
		p, ok := st.topups[id]
		if !ok || p.Status != domain.TransactionStatusPending {
			return nil
		}
		p.Status = status
		if providerPaymentID != nil {
			p.ProviderPaymentID = providerPaymentID
		}
		p.CompletedAt = &at
		p.UpdatedAt = at
		st.topups[id] = p
		applied = true
		return nil
	})
	return applied, err
}
