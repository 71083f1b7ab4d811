package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const bookingColumns = `id, business_id, worker_id, final_price, status, updated_at`

// BookingRepo implements ports.BookingRepository over the marketplace's bookings table.
type BookingRepo struct {
	pool Pool
}

// NewBookingRepo creates a new BookingRepo.
func NewBookingRepo(pool Pool) *BookingRepo {
	return &BookingRepo{pool: pool}
}

func (r *BookingRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	return scanBooking(conn(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *BookingRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	query := forUpdate(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`)
	return scanBooking(conn(ctx, r.pool).QueryRow(ctx, query, id))
}

// UpdateStatusIf advances a booking only if it is still in from.
func (r *BookingRepo) UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to domain.BookingStatus) (bool, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE bookings SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`,
		id, string(from), string(to),
	)
	if err != nil {
		return false, fmt.Errorf("update booking status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	b := &domain.Booking{}
	var status string
	err := row.Scan(&b.ID, &b.BusinessID, &b.WorkerID, &b.FinalPrice, &status, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan booking: %w", err)
	}
	b.Status = domain.BookingStatus(status)
	return b, nil
}
