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

const topupColumns = `id, business_id, wallet_id, transaction_id, external_id, amount, fee_amount, provider,
	provider_payment_id, payment_url, expires_at, status, created_at, updated_at, completed_at`

// TopupRepo implements ports.PaymentTransactionRepository.
type TopupRepo struct {
	pool Pool
}

// NewTopupRepo creates a new TopupRepo.
func NewTopupRepo(pool Pool) *TopupRepo {
	return &TopupRepo{pool: pool}
}

// Create inserts a pending top-up.
func (r *TopupRepo) Create(ctx context.Context, p *domain.PaymentTransaction) error {
	query := `INSERT INTO payment_transactions (` + topupColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := conn(ctx, r.pool).Exec(ctx, query,
		p.ID, p.BusinessID, p.WalletID, p.TransactionID, p.ExternalID, p.Amount, p.FeeAmount, p.Provider,
		p.ProviderPaymentID, p.PaymentURL, p.ExpiresAt, string(p.Status), p.CreatedAt, p.UpdatedAt, p.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ports.ErrDuplicate
		}
		return fmt.Errorf("insert topup: %w", err)
	}
	return nil
}

func (r *TopupRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentTransaction, error) {
	query := `SELECT ` + topupColumns + ` FROM payment_transactions WHERE id = $1`
	return scanTopup(conn(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *TopupRepo) GetByExternalID(ctx context.Context, externalID string) (*domain.PaymentTransaction, error) {
	query := `SELECT ` + topupColumns + ` FROM payment_transactions WHERE external_id = $1`
	return scanTopup(conn(ctx, r.pool).QueryRow(ctx, query, externalID))
}

// GetByExternalIDForUpdate locks the top-up row so concurrent callbacks for
// the same external id serialize.
func (r *TopupRepo) GetByExternalIDForUpdate(ctx context.Context, externalID string) (*domain.PaymentTransaction, error) {
	query := forUpdate(ctx, `SELECT `+topupColumns+` FROM payment_transactions WHERE external_id = $1`)
	return scanTopup(conn(ctx, r.pool).QueryRow(ctx, query, externalID))
}

// SetInvoice stores the gateway's payment page for a top-up.
func (r *TopupRepo) SetInvoice(ctx context.Context, id uuid.UUID, providerPaymentID, paymentURL string, expiresAt time.Time) error {
	query := `UPDATE payment_transactions
		SET provider_payment_id = $2, payment_url = $3, expires_at = $4, updated_at = NOW()
		WHERE id = $1`

	tag, err := conn(ctx, r.pool).Exec(ctx, query, id, providerPaymentID, paymentURL, expiresAt)
	if err != nil {
		return fmt.Errorf("set invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("topup not found: %s", id)
	}
	return nil
}

// CompleteIfPending sets the terminal status on a still-pending top-up.
func (r *TopupRepo) CompleteIfPending(ctx context.Context, id uuid.UUID, status domain.TransactionStatus, providerPaymentID *string, at time.Time) (bool, error) {
	query := `UPDATE payment_transactions
		SET status = $2, provider_payment_id = COALESCE($3, provider_payment_id), completed_at = $4, updated_at = $4
		WHERE id = $1 AND status = 'pending'`

	tag, err := conn(ctx, r.pool).Exec(ctx, query, id, string(status), providerPaymentID, at)
	if err != nil {
		return false, fmt.Errorf("complete topup: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanTopup(row pgx.Row) (*domain.PaymentTransaction, error) {
	p := &domain.PaymentTransaction{}
	var status string
	err := row.Scan(
		&p.ID, &p.BusinessID, &p.WalletID, &p.TransactionID, &p.ExternalID, &p.Amount, &p.FeeAmount, &p.Provider,
		&p.ProviderPaymentID, &p.PaymentURL, &p.ExpiresAt, &status, &p.CreatedAt, &p.UpdatedAt, &p.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan topup: %w", err)
	}
	p.Status = domain.TransactionStatus(status)
	return p, nil
}
