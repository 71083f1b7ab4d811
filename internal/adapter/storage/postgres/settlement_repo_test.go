package postgres

import (
	"context"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSettlement() *domain.Settlement {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Settlement{
		ID:               uuid.New(),
		BookingID:        uuid.New(),
		BusinessWalletID: uuid.New(),
		WorkerWalletID:   uuid.New(),
		HoldTxID:         uuid.New(),
		EarnTxID:         uuid.New(),
		ClientRequestID:  "checkout-1",
		Amount:           300000,
		Status:           domain.SettlementStatusHeld,
		ReleaseAt:        now.Add(24 * time.Hour),
		CreatedAt:        now,
	}
}

func settlementRows(settlements ...*domain.Settlement) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{
		"id", "booking_id", "business_wallet_id", "worker_wallet_id", "hold_tx_id", "earn_tx_id", "release_tx_id",
		"amount", "status", "release_at", "released_at", "release_trigger", "created_at", "client_request_id",
	})
	for _, s := range settlements {
		rows.AddRow(s.ID, s.BookingID, s.BusinessWalletID, s.WorkerWalletID, s.HoldTxID, s.EarnTxID, s.ReleaseTxID,
			s.Amount, string(s.Status), s.ReleaseAt, s.ReleasedAt, triggerValue(s.ReleaseTrigger), s.CreatedAt,
			s.ClientRequestID)
	}
	return rows
}

func TestSettlementRepo_Create_DuplicateBooking(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSettlementRepo(mock)
	mock.ExpectExec("INSERT INTO settlements").
		WithArgs(anyArgs(14)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "settlements_booking_id_key"})

	err = repo.Create(context.Background(), newTestSettlement())
	assert.ErrorIs(t, err, ports.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlementRepo_MarkReleased(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSettlementRepo(mock)
	s := newTestSettlement()
	releaseTx := uuid.New()
	now := time.Now().UTC()
	trigger := domain.ReleaseTriggerSweep
	s.ReleaseTxID = &releaseTx
	s.ReleasedAt = &now
	s.ReleaseTrigger = &trigger

	mock.ExpectExec("UPDATE settlements SET status = 'released'.+WHERE id = \\$1 AND status = 'held'").
		WithArgs(s.ID, s.ReleaseTxID, s.ReleasedAt, triggerValue(s.ReleaseTrigger)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := repo.MarkReleased(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, ok, "an already-released settlement is not flipped twice")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlementRepo_ListDue(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSettlementRepo(mock)
	due := newTestSettlement()
	now := due.ReleaseAt.Add(time.Minute)

	mock.ExpectQuery("WHERE status = 'held' AND release_at <= \\$1 ORDER BY release_at LIMIT NULLIF").
		WithArgs(now, 100).
		WillReturnRows(settlementRows(due))

	got, err := repo.ListDue(context.Background(), now, 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, due.BookingID, got[0].BookingID)
	assert.Nil(t, got[0].ReleaseTrigger)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlementRepo_GetByBookingID_ReleasedTrigger(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSettlementRepo(mock)
	s := newTestSettlement()
	trigger := domain.ReleaseTriggerConfirmation
	s.Status = domain.SettlementStatusReleased
	s.ReleaseTrigger = &trigger

	mock.ExpectQuery("SELECT .+ FROM settlements WHERE booking_id").
		WithArgs(s.BookingID).
		WillReturnRows(settlementRows(s))

	got, err := repo.GetByBookingID(context.Background(), s.BookingID)
	require.NoError(t, err)
	assert.Equal(t, domain.SettlementStatusReleased, got.Status)
	require.NotNil(t, got.ReleaseTrigger)
	assert.Equal(t, domain.ReleaseTriggerConfirmation, *got.ReleaseTrigger)
	assert.Equal(t, "checkout-1", got.ClientRequestID)
}
