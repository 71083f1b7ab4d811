package service

import (
	"context"
	"encoding/json"
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

type webhookFixture struct {
	*ledgerEnv
	reconciler *WebhookReconcilerImpl
	topups     *TopupServiceImpl
	gateway    *mocks.MockPaymentGateway
}

func newWebhookFixture(t *testing.T, cache ports.IdempotencyCache, notifier ports.Notifier) *webhookFixture {
	t.Helper()
	env := newLedgerEnv(t)
	ctrl := gomock.NewController(t)
	gateway := mocks.NewMockPaymentGateway(ctrl)
	if notifier == nil {
		notifier = env.notifier
	}

	return &webhookFixture{
		ledgerEnv: env,
		gateway:   gateway,
		topups: NewTopupService(env.store, env.ledger, env.fees, env.repos.Topups, gateway,
			nil, "test-gateway", time.Hour, newTestLogger()),
		reconciler: NewWebhookReconciler(env.store, env.ledger, env.repos.Topups, env.repos.Payouts,
			cache, nil, notifier, NewIncidentService(env.repos.Incidents, newTestLogger()), newTestLogger()),
	}
}

func (f *webhookFixture) initiateTopup(t *testing.T, businessID uuid.UUID, amount int64) *domain.PaymentTransaction {
	t.Helper()
	f.gateway.EXPECT().CreateInvoice(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.InvoiceRequest) (*ports.Invoice, error) {
			return &ports.Invoice{
				ProviderPaymentID: "inv-" + req.ExternalID,
				PaymentURL:        "https://pay.test/" + req.ExternalID,
				ExpiresAt:         time.Now().Add(time.Hour),
			}, nil
		})
	topup, err := f.topups.Initiate(context.Background(), ports.TopupInput{BusinessID: businessID, Amount: amount})
	require.NoError(t, err)
	return topup
}

func TestWebhookReconciler_TopupSuccess(t *testing.T) {
	f := newWebhookFixture(t, nil, nil)
	topup := f.initiateTopup(t, uuid.New(), 500000)

	result, err := f.reconciler.Reconcile(context.Background(), ports.GatewayCallback{
		ExternalID: topup.ExternalID,
		ProviderID: "pay_123",
		Status:     "COMPLETED",
		Amount:     topup.TotalCharged(),
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, topup.TransactionID.String(), result.TransactionID)
	assert.Equal(t, "success", result.Status)

	assert.Equal(t, int64(500000), f.wallet(t, topup.WalletID).Balance)

	stored, err := f.repos.Topups.GetByID(context.Background(), topup.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusSuccess, stored.Status)
	assert.Equal(t, "pay_123", *stored.ProviderPaymentID)

	assert.Equal(t, []domain.NotificationKind{domain.NotificationTopupSettled}, f.notifier.kinds())
	f.assertReconstructs(t, topup.WalletID)
}

func TestWebhookReconciler_IdempotentReplay(t *testing.T) {
	f := newWebhookFixture(t, nil, nil)
	topup := f.initiateTopup(t, uuid.New(), 500000)
	cb := ports.GatewayCallback{ExternalID: topup.ExternalID, Status: "SUCCEEDED", Amount: topup.Amount}

	var first *ports.CallbackResult
	for i := 0; i < 5; i++ {
		result, err := f.reconciler.Reconcile(context.Background(), cb)
		require.NoError(t, err)
		if first == nil {
			first = result
		}
		assert.Equal(t, first, result)
	}

	assert.Equal(t, int64(500000), f.wallet(t, topup.WalletID).Balance)
	assert.Len(t, f.notifier.kinds(), 1, "only the applied callback notifies")
	f.assertReconstructs(t, topup.WalletID)
}

func TestWebhookReconciler_ConcurrentDeliveries(t *testing.T) {
	f := newWebhookFixture(t, nil, nil)
	businessID := uuid.New()
	a := f.initiateTopup(t, businessID, 500000)
	b := f.initiateTopup(t, businessID, 700000)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		for _, topup := range []*domain.PaymentTransaction{a, b} {
			wg.Add(1)
			go func(externalID string) {
				defer wg.Done()
				_, err := f.reconciler.Reconcile(context.Background(), ports.GatewayCallback{ExternalID: externalID, Status: "COMPLETED"})
				assert.NoError(t, err)
			}(topup.ExternalID)
		}
	}
	wg.Wait()

	assert.Equal(t, int64(1200000), f.wallet(t, a.WalletID).Balance)
	f.assertReconstructs(t, a.WalletID)
}

func TestWebhookReconciler_ContradictoryStatus(t *testing.T) {
	f := newWebhookFixture(t, nil, nil)
	topup := f.initiateTopup(t, uuid.New(), 500000)

	_, err := f.reconciler.Reconcile(context.Background(), ports.GatewayCallback{ExternalID: topup.ExternalID, Status: "COMPLETED"})
	require.NoError(t, err)

	_, err = f.reconciler.Reconcile(context.Background(), ports.GatewayCallback{ExternalID: topup.ExternalID, Status: "FAILED"})
	assertAppError(t, err, "CONS_001")

	assert.Equal(t, int64(500000), f.wallet(t, topup.WalletID).Balance)
	incidents := f.openIncidents(t)
	require.Len(t, incidents, 1)
	assert.Equal(t, topup.ExternalID, incidents[0].ResourceID)
	assert.Equal(t, "CONS_001", incidents[0].Code)
}

func TestWebhookReconciler_FailedAndExpiredTopups(t *testing.T) {
	for _, status := range []string{"FAILED", "EXPIRED"} {
		t.Run(status, func(t *testing.T) {
			f := newWebhookFixture(t, nil, nil)
			topup := f.initiateTopup(t, uuid.New(), 500000)

			result, err := f.reconciler.Reconcile(context.Background(), ports.GatewayCallback{ExternalID: topup.ExternalID, Status: status})
			require.NoError(t, err)
			assert.NotEqual(t, "success", result.Status)
			assert.Equal(t, int64(0), f.wallet(t, topup.WalletID).Balance)
			assert.Equal(t, []domain.NotificationKind{domain.NotificationTopupFailed}, f.notifier.kinds())
			f.assertReconstructs(t, topup.WalletID)
		})
	}
}

func TestWebhookReconciler_UnrecognizedStatusIsIgnored(t *testing.T) {
	f := newWebhookFixture(t, nil, nil)
	topup := f.initiateTopup(t, uuid.New(), 500000)

	result, err := f.reconciler.Reconcile(context.Background(), ports.GatewayCallback{ExternalID: topup.ExternalID, Status: "PAID_MAYBE"})
	require.NoError(t, err)
	assert.Equal(t, "pending", result.Status)
	assert.Equal(t, int64(0), f.wallet(t, topup.WalletID).Balance)
	assert.Empty(t, f.notifier.kinds())

	// Still settles normally afterwards.
	_, err = f.reconciler.Reconcile(context.Background(), ports.GatewayCallback{ExternalID: topup.ExternalID, Status: "COMPLETED"})
	require.NoError(t, err)
	assert.Equal(t, int64(500000), f.wallet(t, topup.WalletID).Balance)
}

func TestWebhookReconciler_UnknownExternalID(t *testing.T) {
	f := newWebhookFixture(t, nil, nil)
	_, err := f.reconciler.Reconcile(context.Background(), ports.GatewayCallback{ExternalID: "topup-missing", Status: "COMPLETED"})
	assertAppError(t, err, "NF_001")
	assert.Empty(t, f.openIncidents(t))
}

func TestWebhookReconciler_AmountMismatch(t *testing.T) {
	f := newWebhookFixture(t, nil, nil)
	topup := f.initiateTopup(t, uuid.New(), 500000)

	_, err := f.reconciler.Reconcile(context.Background(), ports.GatewayCallback{ExternalID: topup.ExternalID, Status: "COMPLETED", Amount: 1})
	assertAppError(t, err, "CONS_002")
	assert.Equal(t, int64(0), f.wallet(t, topup.WalletID).Balance)
	assert.Len(t, f.openIncidents(t), 1)
}

func TestWebhookReconciler_CachedReplayShortCircuits(t *testing.T) {
	ctrl := gomock.NewController(t)
	cache := mocks.NewMockIdempotencyCache(ctrl)
	f := newWebhookFixture(t, cache, nil)

	cached, _ := json.Marshal(cachedCallback{
		Result:  ports.CallbackResult{Success: true, TransactionID: "tx-1", Status: "success"},
		Amounts: []int64{500000, 505000},
	})
	cache.EXPECT().Get(gomock.Any(), "callback:topup-abc:success").Return(cached, nil)

	result, err := f.reconciler.Reconcile(context.Background(), ports.GatewayCallback{ExternalID: "topup-abc", Status: "COMPLETED", Amount: 505000})
	require.NoError(t, err)
	assert.Equal(t, "tx-1", result.TransactionID)
}

func TestWebhookReconciler_CachedReplayChecksAmount(t *testing.T) {
	ctrl := gomock.NewController(t)
	cache := mocks.NewMockIdempotencyCache(ctrl)
	f := newWebhookFixture(t, cache, nil)

	cached, _ := json.Marshal(cachedCallback{
		Result:  ports.CallbackResult{Success: true, TransactionID: "tx-1", Status: "success"},
		Amounts: []int64{500000, 505000},
	})
	cache.EXPECT().Get(gomock.Any(), "callback:topup-abc:success").Return(cached, nil)

	result, err := f.reconciler.Reconcile(context.Background(), ports.GatewayCallback{ExternalID: "topup-abc", Status: "COMPLETED", Amount: 1})
	assertAppError(t, err, "CONS_002")
	assert.Nil(t, result)
	assert.Len(t, f.openIncidents(t), 1)
}

func TestWebhookReconciler_CachedEntryCarriesAmounts(t *testing.T) {
	ctrl := gomock.NewController(t)
	cache := mocks.NewMockIdempotencyCache(ctrl)
	f := newWebhookFixture(t, cache, nil)
	topup := f.initiateTopup(t, uuid.New(), 500000)

	key := domain.BuildCallbackKey(topup.ExternalID, domain.TransactionStatusSuccess)
	var stored []byte
	cache.EXPECT().Get(gomock.Any(), key).Return(nil, nil)
	cache.EXPECT().Set(gomock.Any(), key, gomock.Any(), callbackReplayTTL).DoAndReturn(
		func(_ context.Context, _ string, data []byte, _ time.Duration) error {
			stored = data
			return nil
		})

	_, err := f.reconciler.Reconcile(context.Background(), ports.GatewayCallback{ExternalID: topup.ExternalID, Status: "COMPLETED", Amount: topup.Amount})
	require.NoError(t, err)

	var entry cachedCallback
	require.NoError(t, json.Unmarshal(stored, &entry))
	assert.Equal(t, []int64{topup.Amount, topup.TotalCharged()}, entry.Amounts)
	assert.Equal(t, "success", entry.Result.Status)
}

func TestWebhookReconciler_CachesAppliedResult(t *testing.T) {
	ctrl := gomock.NewController(t)
	cache := mocks.NewMockIdempotencyCache(ctrl)
	f := newWebhookFixture(t, cache, nil)
	topup := f.initiateTopup(t, uuid.New(), 500000)

	key := domain.BuildCallbackKey(topup.ExternalID, domain.TransactionStatusSuccess)
	cache.EXPECT().Get(gomock.Any(), key).Return(nil, nil)
	cache.EXPECT().Set(gomock.Any(), key, gomock.Any(), callbackReplayTTL).Return(nil)

	_, err := f.reconciler.Reconcile(context.Background(), ports.GatewayCallback{ExternalID: topup.ExternalID, Status: "COMPLETED"})
	require.NoError(t, err)
}

func TestWebhookReconciler_NotificationFailureKeepsCredit(t *testing.T) {
	publisher := &failingPublisher{attempts: make(chan struct{}, 4)}
	notifier := NewNotificationService(publisher, newTestLogger()).(*notificationService)
	notifier.retryIntervals = nil

	f := newWebhookFixture(t, nil, notifier)
	topup := f.initiateTopup(t, uuid.New(), 500000)

	_, err := f.reconciler.Reconcile(context.Background(), ports.GatewayCallback{ExternalID: topup.ExternalID, Status: "COMPLETED"})
	require.NoError(t, err)

	waitFor(t, publisher.attempts)
	assert.Equal(t, int64(500000), f.wallet(t, topup.WalletID).Balance)
	f.assertReconstructs(t, topup.WalletID)
}
