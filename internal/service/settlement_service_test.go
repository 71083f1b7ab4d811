package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type settlementFixture struct {
	*ledgerEnv
	svc      *SettlementServiceImpl
	booking  *domain.Booking
	business *domain.Wallet
}

func newSettlementFixture(t *testing.T, businessBalance, price int64) *settlementFixture {
	t.Helper()
	env := newLedgerEnv(t)
	business := businessOwner()
	wallet := env.seed(t, business, businessBalance)

	booking := &domain.Booking{
		ID:         uuid.New(),
		BusinessID: business.ID,
		WorkerID:   uuid.New(),
		FinalPrice: price,
		Status:     domain.BookingStatusInProgress,
	}
	require.NoError(t, env.repos.Bookings.Put(context.Background(), booking))

	return &settlementFixture{
		ledgerEnv: env,
		booking:   booking,
		business:  wallet,
		svc: NewSettlementService(env.store, env.ledger, env.repos.Bookings, env.repos.Settlements,
			nil, nil, nil, env.notifier, time.Hour, newTestLogger()),
	}
}

func (f *settlementFixture) checkout(t *testing.T) *domain.Settlement {
	t.Helper()
	settlement, err := f.svc.Checkout(context.Background(), ports.CheckoutRequest{BookingID: f.booking.ID, ActorID: f.booking.BusinessID})
	require.NoError(t, err)
	return settlement
}

func TestSettlementService_Checkout(t *testing.T) {
	f := newSettlementFixture(t, 1000000, 300000)

	settlement := f.checkout(t)

	assert.Equal(t, domain.SettlementStatusHeld, settlement.Status)
	assert.Equal(t, int64(300000), settlement.Amount)
	assert.WithinDuration(t, settlement.CreatedAt.Add(time.Hour), settlement.ReleaseAt, time.Second)

	business := f.wallet(t, f.business.ID)
	assert.Equal(t, int64(700000), business.Balance)

	worker := f.wallet(t, settlement.WorkerWalletID)
	assert.Equal(t, int64(0), worker.Balance)
	assert.Equal(t, int64(300000), worker.PendingBalance)

	booking, err := f.repos.Bookings.GetByID(context.Background(), f.booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCompleted, booking.Status)

	assert.Equal(t, []domain.NotificationKind{domain.NotificationEarningHeld}, f.notifier.kinds())
	f.assertReconstructs(t, f.business.ID)
	f.assertReconstructs(t, settlement.WorkerWalletID)
}

func TestSettlementService_Checkout_Rejections(t *testing.T) {
	t.Run("insufficient funds", func(t *testing.T) {
		f := newSettlementFixture(t, 100000, 300000)
		_, err := f.svc.Checkout(context.Background(), ports.CheckoutRequest{BookingID: f.booking.ID, ActorID: f.booking.BusinessID})
		assertAppError(t, err, "FUND_001")
		assert.Equal(t, int64(100000), f.wallet(t, f.business.ID).Balance)

		booking, err := f.repos.Bookings.GetByID(context.Background(), f.booking.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStatusInProgress, booking.Status)
	})

	t.Run("stranger", func(t *testing.T) {
		f := newSettlementFixture(t, 1000000, 300000)
		_, err := f.svc.Checkout(context.Background(), ports.CheckoutRequest{BookingID: f.booking.ID, ActorID: uuid.New()})
		assertAppError(t, err, "AUTH_004")
	})

	t.Run("unknown booking", func(t *testing.T) {
		f := newSettlementFixture(t, 1000000, 300000)
		_, err := f.svc.Checkout(context.Background(), ports.CheckoutRequest{BookingID: uuid.New(), ActorID: f.booking.BusinessID})
		assertAppError(t, err, "NF_001")
	})

	t.Run("not in progress", func(t *testing.T) {
		f := newSettlementFixture(t, 1000000, 300000)
		f.booking.Status = domain.BookingStatusAccepted
		require.NoError(t, f.repos.Bookings.Put(context.Background(), f.booking))
		_, err := f.svc.Checkout(context.Background(), ports.CheckoutRequest{BookingID: f.booking.ID, ActorID: f.booking.BusinessID})
		assertAppError(t, err, "VAL_006")
	})
}

func TestSettlementService_Checkout_AtMostOnce(t *testing.T) {
	f := newSettlementFixture(t, 1000000, 300000)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Checkout(context.Background(), ports.CheckoutRequest{BookingID: f.booking.ID, ActorID: f.booking.WorkerID})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(700000), f.wallet(t, f.business.ID).Balance)
	assert.Equal(t, 1, f.countTx(t, f.business.ID, domain.TransactionTypeHold))
}

func TestSettlementService_Checkout_RequestIDReplay(t *testing.T) {
	f := newSettlementFixture(t, 1000000, 300000)
	ctrl := gomock.NewController(t)
	cache := mocks.NewMockIdempotencyCache(ctrl)
	f.svc.cache = cache

	var stored []byte
	cache.EXPECT().Get(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, string) ([]byte, error) {
		return stored, nil
	}).Times(2)
	cache.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), checkoutReplayTTL).DoAndReturn(
		func(_ context.Context, _ string, value []byte, _ time.Duration) error {
			stored = value
			return nil
		})

	req := ports.CheckoutRequest{BookingID: f.booking.ID, ActorID: f.booking.BusinessID, RequestID: "chk-1"}
	first, err := f.svc.Checkout(context.Background(), req)
	require.NoError(t, err)
	second, err := f.svc.Checkout(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.countTx(t, f.business.ID, domain.TransactionTypeHold))
}

func TestSettlementService_Checkout_ReplayWithoutCache(t *testing.T) {
	f := newSettlementFixture(t, 1000000, 300000)
	req := ports.CheckoutRequest{BookingID: f.booking.ID, ActorID: f.booking.BusinessID, RequestID: "chk-1"}

	first, err := f.svc.Checkout(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "chk-1", first.ClientRequestID)

	// no replay cache: the stored request id answers the retry
	again, err := f.svc.Checkout(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, []domain.NotificationKind{domain.NotificationEarningHeld}, f.notifier.kinds(), "a replay notifies nobody")

	req.RequestID = "chk-2"
	_, err = f.svc.Checkout(context.Background(), req)
	assertAppError(t, err, "VAL_006")

	assert.Equal(t, 1, f.countTx(t, f.business.ID, domain.TransactionTypeHold))
	assert.Equal(t, int64(700000), f.wallet(t, f.business.ID).Balance)
}

func TestSettlementService_SchedulesRelease(t *testing.T) {
	f := newSettlementFixture(t, 1000000, 300000)
	ctrl := gomock.NewController(t)
	scheduler := mocks.NewMockReleaseScheduler(ctrl)
	f.svc.scheduler = scheduler

	scheduler.EXPECT().ScheduleRelease(gomock.Any(), f.booking.ID, gomock.Any()).Return(assert.AnError)

	// A scheduling failure does not undo the checkout.
	settlement := f.checkout(t)
	assert.Equal(t, domain.SettlementStatusHeld, settlement.Status)
}

func TestSettlementService_ReleaseNow(t *testing.T) {
	f := newSettlementFixture(t, 1000000, 300000)
	settlement := f.checkout(t)

	_, err := f.svc.ReleaseNow(context.Background(), f.booking.ID, f.booking.WorkerID)
	assertAppError(t, err, "AUTH_004")

	released, err := f.svc.ReleaseNow(context.Background(), f.booking.ID, f.booking.BusinessID)
	require.NoError(t, err)
	assert.Equal(t, domain.SettlementStatusReleased, released.Status)
	require.NotNil(t, released.ReleaseTrigger)
	assert.Equal(t, domain.ReleaseTriggerConfirmation, *released.ReleaseTrigger)

	worker := f.wallet(t, settlement.WorkerWalletID)
	assert.Equal(t, int64(300000), worker.Balance)
	assert.Equal(t, int64(0), worker.PendingBalance)

	// Releasing again changes nothing.
	again, err := f.svc.ReleaseNow(context.Background(), f.booking.ID, f.booking.BusinessID)
	require.NoError(t, err)
	assert.Equal(t, released.ReleaseTxID, again.ReleaseTxID)
	assert.Equal(t, int64(300000), f.wallet(t, settlement.WorkerWalletID).Balance)
	assert.Equal(t, 1, f.countTx(t, settlement.WorkerWalletID, domain.TransactionTypeRelease))

	assert.Equal(t, []domain.NotificationKind{domain.NotificationEarningHeld, domain.NotificationEarningReleased}, f.notifier.kinds())
	f.assertReconstructs(t, settlement.WorkerWalletID)
}

func TestSettlementService_ReleaseDue(t *testing.T) {
	f := newSettlementFixture(t, 1000000, 300000)
	settlement := f.checkout(t)

	early, err := f.svc.ReleaseDue(context.Background(), f.booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SettlementStatusHeld, early.Status)
	assert.Equal(t, int64(300000), f.wallet(t, settlement.WorkerWalletID).PendingBalance)

	f.svc.now = func() time.Time { return settlement.ReleaseAt.Add(time.Second) }

	released, err := f.svc.ReleaseDue(context.Background(), f.booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SettlementStatusReleased, released.Status)
	assert.Equal(t, domain.ReleaseTriggerSchedule, *released.ReleaseTrigger)
	assert.Equal(t, int64(300000), f.wallet(t, settlement.WorkerWalletID).Balance)
}

func TestSettlementService_ConcurrentReleasePaths(t *testing.T) {
	f := newSettlementFixture(t, 1000000, 300000)
	settlement := f.checkout(t)
	f.svc.now = func() time.Time { return settlement.ReleaseAt.Add(time.Minute) }

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			_, err := f.svc.ReleaseNow(context.Background(), f.booking.ID, f.booking.BusinessID)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := f.svc.ReleaseDue(context.Background(), f.booking.ID)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := f.svc.SweepDueReleases(context.Background(), settlement.ReleaseAt.Add(time.Minute), 10)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	worker := f.wallet(t, settlement.WorkerWalletID)
	assert.Equal(t, int64(300000), worker.Balance)
	assert.Equal(t, int64(0), worker.PendingBalance)
	assert.Equal(t, 1, f.countTx(t, settlement.WorkerWalletID, domain.TransactionTypeRelease))
	f.assertReconstructs(t, settlement.WorkerWalletID)
}

func TestSettlementService_SweepDueReleases(t *testing.T) {
	f := newSettlementFixture(t, 1000000, 300000)
	settlement := f.checkout(t)

	n, err := f.svc.SweepDueReleases(context.Background(), settlement.ReleaseAt.Add(-time.Minute), 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.svc.now = func() time.Time { return settlement.ReleaseAt.Add(time.Minute) }
	n, err = f.svc.SweepDueReleases(context.Background(), settlement.ReleaseAt.Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.svc.SweepDueReleases(context.Background(), settlement.ReleaseAt.Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	stored, err := f.svc.GetSettlement(context.Background(), f.booking.ID, f.booking.WorkerID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReleaseTriggerSweep, *stored.ReleaseTrigger)
}

func TestSettlementService_GetSettlement(t *testing.T) {
	f := newSettlementFixture(t, 1000000, 300000)

	_, err := f.svc.GetSettlement(context.Background(), f.booking.ID, f.booking.BusinessID)
	assertAppError(t, err, "NF_001")

	f.checkout(t)

	_, err = f.svc.GetSettlement(context.Background(), f.booking.ID, uuid.New())
	assertAppError(t, err, "AUTH_004")

	got, err := f.svc.GetSettlement(context.Background(), f.booking.ID, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, f.booking.ID, got.BookingID)
}
