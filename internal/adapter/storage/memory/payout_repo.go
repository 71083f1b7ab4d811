package memory

import (
	"context"
	"sort"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
)

// PayoutRepo implements ports.PayoutRepository.
type PayoutRepo struct {
	s *Store
}

func (r *PayoutRepo) Create(ctx context.Context, p *domain.PayoutRequest) error {
	return r.s.write(ctx, func(st *state) error {
		for _, existing := range st.payouts {
			if existing.ExternalID == p.ExternalID ||
				(existing.WorkerID == p.WorkerID && existing.ClientRequestID == p.ClientRequestID) {
				return ports.ErrDuplicate
			}
		}
		st.payouts[p.ID] = *p
		return nil
	})
}

func (r *PayoutRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PayoutRequest, error) {
	p, ok := r.s.read(ctx).payouts[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *PayoutRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.PayoutRequest, error) {
	return r.GetByID(ctx, id)
}

func (r *PayoutRepo) GetByExternalIDForUpdate(ctx context.Context, externalID string) (*domain.PayoutRequest, error) {
	for _, p := range r.s.read(ctx).payouts {
		if p.ExternalID == externalID {
			return &p, nil
		}
	}
	return nil, nil
}

func (r *PayoutRepo) GetByClientRequestID(ctx context.Context, workerID uuid.UUID, clientRequestID string) (*domain.PayoutRequest, error) {
	for _, p := range r.s.read(ctx).payouts {
		if p.WorkerID == workerID && p.ClientRequestID == clientRequestID {
			return &p, nil
		}
	}
	return nil, nil
}

func (r *PayoutRepo) UpdateStatus(ctx context.Context, p *domain.PayoutRequest, from domain.PayoutStatus) (bool, error) {
	var applied bool
	err := r.s.write(ctx, func(st *state) error {
		stored, ok := st.payouts[p.ID]
		if !ok || stored.Status != from {
			return nil
		}
		st.payouts[p.ID] = *p
		applied = true
		return nil
	})
	return applied, err
}

func (r *PayoutRepo) RecordAttempt(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	recorded := false
	err := r.s.write(ctx, func(st *state) error {
		p, ok := st.payouts[id]
		if !ok || p.Status != domain.PayoutStatusPending {
			return nil
		}
		p.Attempts++
		p.SubmittedAt = &at
		p.UpdatedAt = at
		st.payouts[id] = p
		recorded = true
		return nil
	})
	return recorded, err
}

func (r *PayoutRepo) ListStalePending(ctx context.Context, submittedBefore time.Time, limit int) ([]domain.PayoutRequest, error) {
	var out []domain.PayoutRequest
	for _, p := range r.s.read(ctx).payouts {
		if p.Status != domain.PayoutStatusPending {
			continue
		}
		last := p.CreatedAt
		if p.SubmittedAt != nil {
			last = *p.SubmittedAt
		}
		if last.Before(submittedBefore) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
