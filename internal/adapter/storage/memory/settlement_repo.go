package memory

import (
	"context"
	"sort"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
)

// SettlementRepo implements ports.SettlementRepository.
type SettlementRepo struct {
	s *Store
}

func (r *SettlementRepo) Create(ctx context.Context, s *domain.Settlement) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.settlements[s.BookingID]; ok {
			return ports.ErrDuplicate
		}
		st.settlements[s.BookingID] = *s
		return nil
	})
}

func (r *SettlementRepo) GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*domain.Settlement, error) {
	s, ok := r.s.read(ctx).settlements[bookingID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *SettlementRepo) GetByBookingIDForUpdate(ctx context.Context, bookingID uuid.UUID) (*domain.Settlement, error) {
	return r.GetByBookingID(ctx, bookingID)
}

func (r *SettlementRepo) MarkReleased(ctx context.Context, s *domain.Settlement) (bool, error) {
	var applied bool
	err := r.s.write(ctx, func(st *state) error {
		stored, ok := st.settlements[s.BookingID]
		if !ok || stored.Status != domain.SettlementStatusHeld {
			return nil
		}
		stored.Status = domain.SettlementStatusReleased
		stored.ReleaseTxID = s.ReleaseTxID
		stored.ReleasedAt = s.ReleasedAt
		stored.ReleaseTrigger = s.ReleaseTrigger
		st.settlements[s.BookingID] = stored
		applied = true
		return nil
	})
	return applied, err
}

func (r *SettlementRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Settlement, error) {
	var out []domain.Settlement
	for _, s := range r.s.read(ctx).settlements {
		if s.IsDue(now) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReleaseAt.Before(out[j].ReleaseAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
