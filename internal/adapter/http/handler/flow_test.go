package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"wallet-ledger/config"
	"wallet-ledger/internal/adapter/gateway"
	httpHandler "wallet-ledger/internal/adapter/http/handler"
	"wallet-ledger/internal/adapter/storage/memory"
	redisStorage "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testCallbackToken = "cb-token"
	testJWTSecret     = "test-jwt-secret-key-32bytes!!"
	testAESKey        = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
)

type recordingScheduler struct {
	mu       sync.Mutex
	bookings []uuid.UUID
}

func (s *recordingScheduler) ScheduleRelease(_ context.Context, bookingID uuid.UUID, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings = append(s.bookings, bookingID)
	return nil
}

// testApp runs the real router, middleware and services over the in-memory
// store, miniredis and a stub gateway.
type testApp struct {
	server    *httptest.Server
	store     *memory.Store
	tokens    *service.JWTTokenService
	scheduler *recordingScheduler
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	log := zerolog.Nop()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/invoices":
			_, _ = w.Write([]byte(`{"id":"inv_1","invoice_url":"https://pay.example/inv_1","expiry_date":"2030-01-01T00:00:00Z"}`))
		case "/v1/disbursements":
			_, _ = w.Write([]byte(`{"id":"disb_1","status":"PENDING"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(gw.Close)

	store := memory.NewStore()
	repos := store.Repositories()

	encSvc, err := service.NewAESEncryptionService(testAESKey)
	require.NoError(t, err)
	fees, err := service.NewFeeCalculator(service.DefaultFeeConfig())
	require.NoError(t, err)
	tokens := service.NewJWTTokenService(testJWTSecret, "test-issuer")
	cache := redisStorage.NewIdempotencyCache(rdb)
	auditSvc := service.NewAuditService(repos.Audits, log)
	incidents := service.NewIncidentService(repos.Incidents, log)
	notifier := service.NewNotificationService(nil, log)
	gatewayClient := gateway.NewClient(config.GatewayConfig{BaseURL: gw.URL, Timeout: time.Second}, log)
	ledger := service.NewLedger(repos.Wallets, repos.Transactions, incidents, log)
	scheduler := &recordingScheduler{}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		WalletSvc: service.NewWalletQueryService(ledger, repos.Transactions),
		TopupSvc: service.NewTopupService(store, ledger, fees, repos.Topups, gatewayClient, auditSvc,
			"xendit", time.Hour, log),
		PayoutSvc: service.NewPayoutService(store, ledger, fees, repos.Payouts, repos.BankAccounts, encSvc,
			gatewayClient, cache, redisStorage.NewRequestLock(rdb), auditSvc, time.Hour, log),
		SettlementSvc: service.NewSettlementService(store, ledger, repos.Bookings, repos.Settlements, scheduler,
			cache, auditSvc, notifier, time.Hour, log),
		BankAccountSvc: service.NewBankAccountService(repos.BankAccounts, encSvc),
		Reconciler: service.NewWebhookReconciler(store, ledger, repos.Topups, repos.Payouts,
			cache, auditSvc, notifier, incidents, log),
		IncidentRepo:   repos.Incidents,
		TokenSvc:       tokens,
		SigSvc:         service.NewHMACSignatureService(),
		AuditSvc:       auditSvc,
		RateLimitStore: redisStorage.NewRateLimitStore(rdb),
		HealthCheckers: []ports.HealthChecker{store, redisStorage.NewHealthCheck(rdb)},
		Gateway:        config.GatewayConfig{CallbackToken: testCallbackToken},
		Logger:         log,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testApp{server: srv, store: store, tokens: tokens, scheduler: scheduler}
}

func (a *testApp) token(t *testing.T, subject uuid.UUID, role ports.Role) string {
	t.Helper()
	tok, _, err := a.tokens.Generate(subject, role, time.Hour)
	require.NoError(t, err)
	return tok
}

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return a.send(t, req)
}

func (a *testApp) callback(t *testing.T, body map[string]interface{}) (int, map[string]interface{}) {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, a.server.URL+"/webhooks/payment", bytes.NewReader(b))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Callback-Token", testCallbackToken)
	return a.send(t, req)
}

func (a *testApp) send(t *testing.T, req *http.Request) (int, map[string]interface{}) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func data(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	d, ok := body["data"].(map[string]interface{})
	require.True(t, ok, "no data in %v", body)
	return d
}

func TestFlow_TopupCheckoutReleasePayout(t *testing.T) {
	app := newTestApp(t)

	businessID, workerID, adminID := uuid.New(), uuid.New(), uuid.New()
	businessTok := app.token(t, businessID, ports.RoleBusiness)
	workerTok := app.token(t, workerID, ports.RoleWorker)
	adminTok := app.token(t, adminID, ports.RoleAdmin)

	// 1. Top-up: pending until the gateway confirms.
	status, body := app.do(t, http.MethodPost, "/api/v1/topups", businessTok, map[string]int64{"amount": 500000})
	require.Equal(t, http.StatusCreated, status, "%v", body)
	topup := data(t, body)
	assert.Equal(t, float64(503500), topup["total_charged"])
	externalID := topup["external_id"].(string)

	status, body = app.do(t, http.MethodGet, "/api/v1/wallet", businessTok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(0), data(t, body)["balance"])

	// 2. Webhook settles it; the replay changes nothing.
	for i := 0; i < 2; i++ {
		status, body = app.callback(t, map[string]interface{}{
			"external_id": externalID, "id": "inv_1", "status": "COMPLETED", "amount": 503500,
		})
		require.Equal(t, http.StatusOK, status, "%v", body)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "success", body["status"])
	}

	status, body = app.do(t, http.MethodGet, "/api/v1/wallet", businessTok, nil)
	require.Equal(t, http.StatusOK, status)
	businessWallet := data(t, body)
	assert.Equal(t, float64(500000), businessWallet["balance"])

	// 3. Checkout holds the booking price and parks the earning.
	bookingID := uuid.New()
	require.NoError(t, app.store.Repositories().Bookings.Put(context.Background(), &domain.Booking{
		ID:         bookingID,
		BusinessID: businessID,
		WorkerID:   workerID,
		FinalPrice: 100000,
		Status:     domain.BookingStatusInProgress,
	}))

	status, body = app.do(t, http.MethodPost, "/api/v1/bookings/"+bookingID.String()+"/checkout", businessTok, nil)
	require.Equal(t, http.StatusCreated, status, "%v", body)
	assert.Equal(t, "held", data(t, body)["status"])
	assert.Equal(t, []uuid.UUID{bookingID}, app.scheduler.bookings)

	status, body = app.do(t, http.MethodGet, "/api/v1/wallet", workerTok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(0), data(t, body)["balance"])
	assert.Equal(t, float64(100000), data(t, body)["pending_balance"])

	// 4. Early release by the business.
	status, body = app.do(t, http.MethodPost, "/api/v1/bookings/"+bookingID.String()+"/release", businessTok, nil)
	require.Equal(t, http.StatusOK, status, "%v", body)
	assert.Equal(t, "released", data(t, body)["status"])

	status, body = app.do(t, http.MethodGet, "/api/v1/wallet", workerTok, nil)
	require.Equal(t, http.StatusOK, status)
	workerWallet := data(t, body)
	assert.Equal(t, float64(100000), workerWallet["balance"])
	assert.Equal(t, float64(0), workerWallet["pending_balance"])

	// 5. Payout to a registered bank account.
	status, body = app.do(t, http.MethodPost, "/api/v1/bank-accounts", workerTok, map[string]string{
		"bank_code": "BCA", "account_number": "1234567890", "account_holder": "Budi",
	})
	require.Equal(t, http.StatusCreated, status, "%v", body)

	status, body = app.do(t, http.MethodPost, "/api/v1/payouts", workerTok, map[string]interface{}{
		"amount": 100000, "request_id": "payout-1",
	})
	require.Equal(t, http.StatusCreated, status, "%v", body)
	payout := data(t, body)
	assert.Equal(t, "processing", payout["status"])
	assert.Equal(t, float64(95000), payout["net_amount"])

	status, body = app.callback(t, map[string]interface{}{
		"external_id": payout["external_id"], "id": "disb_1", "status": "COMPLETED", "amount": 95000,
	})
	require.Equal(t, http.StatusOK, status, "%v", body)

	status, body = app.do(t, http.MethodGet, "/api/v1/payouts/"+payout["id"].(string), workerTok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "completed", data(t, body)["status"])

	// 6. Both wallets still reconstruct from their logs.
	for _, w := range []map[string]interface{}{businessWallet, workerWallet} {
		status, body = app.do(t, http.MethodGet, "/api/v1/admin/wallets/"+w["id"].(string)+"/reconcile", adminTok, nil)
		require.Equal(t, http.StatusOK, status, "%v", body)
		assert.Equal(t, true, data(t, body)["consistent"])
	}
}

func TestFlow_CallbackRejections(t *testing.T) {
	app := newTestApp(t)

	req, err := http.NewRequest(http.MethodPost, app.server.URL+"/webhooks/payment",
		bytes.NewBufferString(`{"external_id":"topup-x","status":"COMPLETED","amount":1}`))
	require.NoError(t, err)
	req.Header.Set("X-Callback-Token", "wrong")
	status, body := app.send(t, req)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "AUTH_001", body["error_code"])

	status, body = app.callback(t, map[string]interface{}{
		"external_id": "topup-unknown", "status": "COMPLETED", "amount": 1,
	})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NF_001", body["error_code"])
}

func TestFlow_PayoutOverdraftRejected(t *testing.T) {
	app := newTestApp(t)
	workerTok := app.token(t, uuid.New(), ports.RoleWorker)

	status, _ := app.do(t, http.MethodPost, "/api/v1/bank-accounts", workerTok, map[string]string{
		"bank_code": "BNI", "account_number": "9876543210", "account_holder": "Sari",
	})
	require.Equal(t, http.StatusCreated, status)

	status, body := app.do(t, http.MethodPost, "/api/v1/payouts", workerTok, map[string]interface{}{
		"amount": 100000, "request_id": "payout-1",
	})
	assert.Equal(t, http.StatusPaymentRequired, status)
	assert.Equal(t, "FUND_001", body["error_code"])
}
