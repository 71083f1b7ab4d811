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

const settlementColumns = `id, booking_id, business_wallet_id, worker_wallet_id, hold_tx_id, earn_tx_id, release_tx_id,
	amount, status, release_at, released_at, release_trigger, created_at, client_request_id`

// SettlementRepo implements ports.SettlementRepository. The unique booking_id
// column is what makes a second checkout of one booking impossible.
type SettlementRepo struct {
	pool Pool
}

// NewSettlementRepo creates a new SettlementRepo.
func NewSettlementRepo(pool Pool) *SettlementRepo {
	return &SettlementRepo{pool: pool}
}

func (r *SettlementRepo) Create(ctx context.Context, s *domain.Settlement) error {
	query := `INSERT INTO settlements (` + settlementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := conn(ctx, r.pool).Exec(ctx, query,
		s.ID, s.BookingID, s.BusinessWalletID, s.WorkerWalletID, s.HoldTxID, s.EarnTxID, s.ReleaseTxID,
		s.Amount, string(s.Status), s.ReleaseAt, s.ReleasedAt, triggerValue(s.ReleaseTrigger), s.CreatedAt,
		s.ClientRequestID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ports.ErrDuplicate
		}
		return fmt.Errorf("insert settlement: %w", err)
	}
	return nil
}

func (r *SettlementRepo) GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*domain.Settlement, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE booking_id = $1`
	return scanSettlement(conn(ctx, r.pool).QueryRow(ctx, query, bookingID))
}

func (r *SettlementRepo) GetByBookingIDForUpdate(ctx context.Context, bookingID uuid.UUID) (*domain.Settlement, error) {
	query := forUpdate(ctx, `SELECT `+settlementColumns+` FROM settlements WHERE booking_id = $1`)
	return scanSettlement(conn(ctx, r.pool).QueryRow(ctx, query, bookingID))
}

// MarkReleased flips a held settlement to released.
func (r *SettlementRepo) MarkReleased(ctx context.Context, s *domain.Settlement) (bool, error) {
	query := `UPDATE settlements
		SET status = 'released', release_tx_id = $2, released_at = $3, release_trigger = $4
		WHERE id = $1 AND status = 'held'`

	tag, err := conn(ctx, r.pool).Exec(ctx, query, s.ID, s.ReleaseTxID, s.ReleasedAt, triggerValue(s.ReleaseTrigger))
	if err != nil {
		return false, fmt.Errorf("mark settlement released: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListDue returns held settlements whose release time is at or before now.
func (r *SettlementRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Settlement, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements
		WHERE status = 'held' AND release_at <= $1
		ORDER BY release_at LIMIT NULLIF($2::int, 0)`

	rows, err := conn(ctx, r.pool).Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due settlements: %w", err)
	}
	defer rows.Close()

	due := []domain.Settlement{}
	for rows.Next() {
		s, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settlements: %w", err)
	}
	return due, nil
}

func triggerValue(t *domain.ReleaseTrigger) *string {
	if t == nil {
		return nil
	}
	v := string(*t)
	return &v
}

func scanSettlement(row pgx.Row) (*domain.Settlement, error) {
	s := &domain.Settlement{}
	var (
		status  string
		trigger *string
	)
	err := row.Scan(
		&s.ID, &s.BookingID, &s.BusinessWalletID, &s.WorkerWalletID, &s.HoldTxID, &s.EarnTxID, &s.ReleaseTxID,
		&s.Amount, &status, &s.ReleaseAt, &s.ReleasedAt, &trigger, &s.CreatedAt, &s.ClientRequestID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan settlement: %w", err)
	}
	s.Status = domain.SettlementStatus(status)
	if trigger != nil {
		t := domain.ReleaseTrigger(*trigger)
		s.ReleaseTrigger = &t
	}
	return s, nil
}
