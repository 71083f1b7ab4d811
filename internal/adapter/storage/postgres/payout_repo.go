package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const payoutColumns = `id, worker_id, wallet_id, transaction_id, refund_tx_id, bank_account_id, client_request_id,
	external_id, amount, fee_amount, net_amount, status, provider_payout_id, failure_reason, attempts,
	created_at, updated_at, submitted_at, processing_at, completed_at, failed_at, cancelled_at`

// PayoutRepo implements ports.PayoutRepository.
type PayoutRepo struct {
	pool Pool
}

// NewPayoutRepo creates a new PayoutRepo.
func NewPayoutRepo(pool Pool) *PayoutRepo {
	return &PayoutRepo{pool: pool}
}

// Create inserts a payout request. A reused external id or client request id
// returns ports.ErrDuplicate.
func (r *PayoutRepo) Create(ctx context.Context, p *domain.PayoutRequest) error {
	query := `INSERT INTO payout_requests (` + payoutColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`

	_, err := conn(ctx, r.pool).Exec(ctx, query,
		p.ID, p.WorkerID, p.WalletID, p.TransactionID, p.RefundTxID, p.BankAccountID, p.ClientRequestID,
		p.ExternalID, p.Amount, p.FeeAmount, p.NetAmount, string(p.Status), p.ProviderPayoutID, p.FailureReason, p.Attempts,
		p.CreatedAt, p.UpdatedAt, p.SubmittedAt, p.ProcessingAt, p.CompletedAt, p.FailedAt, p.CancelledAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ports.ErrDuplicate
		}
		return fmt.Errorf("insert payout: %w", err)
	}
	return nil
}

func (r *PayoutRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PayoutRequest, error) {
	query := `SELECT ` + payoutColumns + ` FROM payout_requests WHERE id = $1`
	return scanPayout(conn(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *PayoutRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.PayoutRequest, error) {
	query := forUpdate(ctx, `SELECT `+payoutColumns+` FROM payout_requests WHERE id = $1`)
	return scanPayout(conn(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *PayoutRepo) GetByExternalIDForUpdate(ctx context.Context, externalID string) (*domain.PayoutRequest, error) {
	query := forUpdate(ctx, `SELECT `+payoutColumns+` FROM payout_requests WHERE external_id = $1`)
	return scanPayout(conn(ctx, r.pool).QueryRow(ctx, query, externalID))
}

func (r *PayoutRepo) GetByClientRequestID(ctx context.Context, workerID uuid.UUID, clientRequestID string) (*domain.PayoutRequest, error) {
	query := `SELECT ` + payoutColumns + ` FROM payout_requests WHERE worker_id = $1 AND client_request_id = $2`
	return scanPayout(conn(ctx, r.pool).QueryRow(ctx, query, workerID, clientRequestID))
}

// UpdateStatus is a compare-and-set on status.
func (r *PayoutRepo) UpdateStatus(ctx context.Context, p *domain.PayoutRequest, from domain.PayoutStatus) (bool, error) {
	query := `UPDATE payout_requests SET
		status = $3, refund_tx_id = $4, provider_payout_id = $5, failure_reason = $6, updated_at = $7,
		processing_at = $8, completed_at = $9, failed_at = $10, cancelled_at = $11
		WHERE id = $1 AND status = $2`

	tag, err := conn(ctx, r.pool).Exec(ctx, query,
		p.ID, string(from), string(p.Status), p.RefundTxID, p.ProviderPayoutID, p.FailureReason, p.UpdatedAt,
		p.ProcessingAt, p.CompletedAt, p.FailedAt, p.CancelledAt,
	)
	if err != nil {
		return false, fmt.Errorf("update payout status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// RecordAttempt counts a gateway submission before it is sent. It only
// matches a pending row, so it waits on a concurrent cancel's row lock and
// reports false once that cancel has committed.
func (r *PayoutRepo) RecordAttempt(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE payout_requests SET attempts = attempts + 1, submitted_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'pending'`

	tag, err := conn(ctx, r.pool).Exec(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("record payout attempt: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListStalePending returns pending payouts last submitted (or created) before the cutoff.
func (r *PayoutRepo) ListStalePending(ctx context.Context, submittedBefore time.Time, limit int) ([]domain.PayoutRequest, error) {
	query := `SELECT ` + payoutColumns + ` FROM payout_requests
		WHERE status = 'pending' AND COALESCE(submitted_at, created_at) < $1
		ORDER BY created_at LIMIT NULLIF($2::int, 0)`

	rows, err := conn(ctx, r.pool).Query(ctx, query, submittedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale payouts: %w", err)
	}
	defer rows.Close()

	payouts := []domain.PayoutRequest{}
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		payouts = append(payouts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payouts: %w", err)
	}
	return payouts, nil
}

func scanPayout(row pgx.Row) (*domain.PayoutRequest, error) {
	p := &domain.PayoutRequest{}
	var status string
	err := row.Scan(
		&p.ID, &p.WorkerID, &p.WalletID, &p.TransactionID, &p.RefundTxID, &p.BankAccountID, &p.ClientRequestID,
		&p.ExternalID, &p.Amount, &p.FeeAmount, &p.NetAmount, &status, &p.ProviderPayoutID, &p.FailureReason, &p.Attempts,
		&p.CreatedAt, &p.UpdatedAt, &p.SubmittedAt, &p.ProcessingAt, &p.CompletedAt, &p.FailedAt, &p.CancelledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan payout: %w", err)
	}
	p.Status = domain.PayoutStatus(status)
	return p, nil
}
