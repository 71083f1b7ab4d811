package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wallet-ledger/config"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.GatewayConfig{
		BaseURL: srv.URL + "/",
		APIKey:  "sk_test",
		Timeout: timeout,
	}, zerolog.Nop())
}

func TestCreateInvoice(t *testing.T) {
	expiry := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, invoicePath, r.URL.Path)
		assert.Equal(t, "topup-1", r.Header.Get("Idempotency-Key"))
		user, _, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "sk_test", user)

		var body invoiceBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "topup-1", body.ExternalID)
		assert.Equal(t, int64(503500), body.Amount)
		assert.Equal(t, int64(86400), body.InvoiceDuration)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(invoiceResponse{ID: "inv_1", InvoiceURL: "https://pay.example/inv_1", ExpiryDate: expiry})
	}, time.Second)

	invoice, err := client.CreateInvoice(context.Background(), ports.InvoiceRequest{
		ExternalID:   "topup-1",
		Amount:       500000,
		TotalCharged: 503500,
		Currency:     "IDR",
		ExpiresIn:    24 * time.Hour,
	})

	require.NoError(t, err)
	assert.Equal(t, "inv_1", invoice.ProviderPaymentID)
	assert.Equal(t, "https://pay.example/inv_1", invoice.PaymentURL)
	assert.True(t, invoice.ExpiresAt.Equal(expiry))
}

func TestCreateInvoice_IncompleteResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"inv_1"}`))
	}, time.Second)

	_, err := client.CreateInvoice(context.Background(), ports.InvoiceRequest{ExternalID: "topup-1", TotalCharged: 1})

	assert.True(t, apperror.IsKind(err, apperror.KindExternal))
}

func TestCreatePayout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, payoutPath, r.URL.Path)
		assert.Equal(t, "payout-9", r.Header.Get("Idempotency-Key"))

		var body disbursementBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(95000), body.Amount)
		assert.Equal(t, "BCA", body.BankCode)
		assert.Equal(t, "1234567890", body.AccountNumber)

		_, _ = w.Write([]byte(`{"id":"disb_1","status":"PENDING"}`))
	}, time.Second)

	receipt, err := client.CreatePayout(context.Background(), ports.PayoutOrder{
		ExternalID:    "payout-9",
		NetAmount:     95000,
		Currency:      "IDR",
		BankCode:      "BCA",
		AccountNumber: "1234567890",
		AccountHolder: "Budi",
	})

	require.NoError(t, err)
	assert.Equal(t, "disb_1", receipt.ProviderPayoutID)
	assert.Equal(t, "PENDING", receipt.Status)
}

func TestPost_TimeoutMapsToExternalTimeout(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)
	defer close(release)

	_, err := client.CreatePayout(context.Background(), ports.PayoutOrder{ExternalID: "payout-9", NetAmount: 1})

	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, "EXT_001", appErr.Code)
}

func TestPost_ContextDeadlineMapsToExternalTimeout(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 5*time.Second)
	// runs before the server's Close cleanup, which waits for this handler
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := client.CreatePayout(ctx, ports.PayoutOrder{ExternalID: "payout-9", NetAmount: 1})

	assert.True(t, apperror.IsKind(err, apperror.KindExternalTimeout))
}

func TestPost_GatewayTimeoutStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGatewayTimeout)
	}, time.Second)

	_, err := client.CreatePayout(context.Background(), ports.PayoutOrder{ExternalID: "payout-9", NetAmount: 1})

	assert.True(t, apperror.IsKind(err, apperror.KindExternalTimeout))
}

func TestPost_RejectionMapsToExternalFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error_code":"INVALID_ACCOUNT","message":"bad account"}`))
	}, time.Second)

	_, err := client.CreatePayout(context.Background(), ports.PayoutOrder{ExternalID: "payout-9", NetAmount: 1})

	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, "EXT_002", appErr.Code)
	assert.Contains(t, appErr.Err.Error(), "INVALID_ACCOUNT")
}

func TestPost_UnreachableGateway(t *testing.T) {
	client := NewClient(config.GatewayConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second}, zerolog.Nop())

	_, err := client.CreateInvoice(context.Background(), ports.InvoiceRequest{ExternalID: "topup-1"})

	assert.Error(t, err)
	_, ok := apperror.As(err)
	assert.True(t, ok)
}
