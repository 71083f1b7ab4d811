package memory

import (
	"context"
	"sort"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
)

// BookingRepo implements ports.BookingRepository.
type BookingRepo struct {
	s *Store
}

// Put stores a booking as the marketplace would.
func (r *BookingRepo) Put(ctx context.Context, b *domain.Booking) error {
	return r.s.write(ctx, func(st *state) error {
		st.bookings[b.ID] = *b
		return nil
	})
}

func (r *BookingRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	b, ok := r.s.read(ctx).bookings[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (r *BookingRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	return r.GetByID(ctx, id)
}

func (r *BookingRepo) UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to domain.BookingStatus) (bool, error) {
	var applied bool
	err := r.s.write(ctx, func(st *state) error {
		b, ok := st.bookings[id]
		if !ok || b.Status != from {
			return nil
		}
		b.Status = to
		b.UpdatedAt = time.Now().UTC()
		st.bookings[id] = b
		applied = true
		return nil
	})
	return applied, err
}

// BankAccountRepo implements ports.BankAccountRepository.
type BankAccountRepo struct {
	s *Store
}

func (r *BankAccountRepo) Create(ctx context.Context, account *domain.BankAccount) error {
	return r.s.write(ctx, func(st *state) error {
		if account.IsDefault {
			for id, a := range st.bankAccounts {
				if a.WorkerID == account.WorkerID && a.IsDefault {
					a.IsDefault = false
					st.bankAccounts[id] = a
				}
			}
		}
		st.bankAccounts[account.ID] = *account
		return nil
	})
}

func (r *BankAccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.BankAccount, error) {
	a, ok := r.s.read(ctx).bankAccounts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *BankAccountRepo) GetDefault(ctx context.Context, workerID uuid.UUID) (*domain.BankAccount, error) {
	for _, a := range r.s.read(ctx).bankAccounts {
		if a.WorkerID == workerID && a.IsDefault {
			return &a, nil
		}
	}
	return nil, nil
}

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	s *Store
}

func (r *AuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	return r.s.write(ctx, func(st *state) error {
		st.audits = append(st.audits, *entry)
		return nil
	})
}

// List returns every recorded entry in insertion order.
func (r *AuditRepo) List(ctx context.Context) []domain.AuditLog {
	return append([]domain.AuditLog(nil), r.s.read(ctx).audits...)
}

// IncidentRepo implements ports.IncidentRepository.
type IncidentRepo struct {
	s *Store
}

func (r *IncidentRepo) Create(ctx context.Context, incident *domain.ConsistencyIncident) error {
	return r.s.write(ctx, func(st *state) error {
		st.incidents = append(st.incidents, *incident)
		return nil
	})
}

func (r *IncidentRepo) ListOpen(ctx context.Context, limit int) ([]domain.ConsistencyIncident, error) {
	var out []domain.ConsistencyIncident
	for _, inc := range r.s.read(ctx).incidents {
		if !inc.Resolved {
			out = append(out, inc)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
