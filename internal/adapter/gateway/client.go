package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"wallet-ledger/config"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

const (
	invoicePath = "/v1/invoices"
	payoutPath  = "/v1/disbursements"

	// maxResponseBody bounds how much of a gateway response is read.
	maxResponseBody = 1 << 20
)

// Client calls the payment gateway's REST API. Every request carries the
// record's external id as Idempotency-Key, so a retried call after a timeout
// never creates a second invoice or disbursement.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a gateway client bounded by cfg.Timeout.
func NewClient(cfg config.GatewayConfig, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

type invoiceBody struct {
	ExternalID      string `json:"external_id"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	Description     string `json:"description"`
	InvoiceDuration int64  `json:"invoice_duration"` // seconds
}

type invoiceResponse struct {
	ID         string    `json:"id"`
	InvoiceURL string    `json:"invoice_url"`
	ExpiryDate time.Time `json:"expiry_date"`
}

// CreateInvoice asks the gateway for a payment page charging req.TotalCharged.
func (c *Client) CreateInvoice(ctx context.Context, req ports.InvoiceRequest) (*ports.Invoice, error) {
	body := invoiceBody{
		ExternalID:      req.ExternalID,
		Amount:          req.TotalCharged,
		Currency:        req.Currency,
		Description:     req.Description,
		InvoiceDuration: int64(req.ExpiresIn / time.Second),
	}
	var resp invoiceResponse
	if err := c.post(ctx, invoicePath, req.ExternalID, body, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" || resp.InvoiceURL == "" {
		return nil, apperror.ErrExternalFailure(errors.New("gateway returned an incomplete invoice"))
	}
	expiresAt := resp.ExpiryDate
	if expiresAt.IsZero() {
		expiresAt = time.Now().UTC().Add(req.ExpiresIn)
	}
	return &ports.Invoice{
		ProviderPaymentID: resp.ID,
		PaymentURL:        resp.InvoiceURL,
		ExpiresAt:         expiresAt,
	}, nil
}

type disbursementBody struct {
	ExternalID        string `json:"external_id"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	BankCode          string `json:"bank_code"`
	AccountNumber     string `json:"account_number"`
	AccountHolderName string `json:"account_holder_name"`
}

type disbursementResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CreatePayout submits a disbursement of order.NetAmount.
func (c *Client) CreatePayout(ctx context.Context, order ports.PayoutOrder) (*ports.PayoutReceipt, error) {
	body := disbursementBody{
		ExternalID:        order.ExternalID,
		Amount:            order.NetAmount,
		Currency:          order.Currency,
		BankCode:          order.BankCode,
		AccountNumber:     order.AccountNumber,
		AccountHolderName: order.AccountHolder,
	}
	var resp disbursementResponse
	if err := c.post(ctx, payoutPath, order.ExternalID, body, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, apperror.ErrExternalFailure(errors.New("gateway returned no disbursement id"))
	}
	return &ports.PayoutReceipt{ProviderPayoutID: resp.ID, Status: resp.Status}, nil
}

type errorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

func (c *Client) post(ctx context.Context, path, idempotencyKey string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("marshal gateway request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return apperror.InternalError(fmt.Errorf("build gateway request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)
	if c.apiKey != "" {
		req.SetBasicAuth(c.apiKey, "")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			c.log.Warn().Err(err).Str("path", path).Str("external_id", idempotencyKey).Msg("gateway call timed out")
			return apperror.ErrExternalTimeout(err)
		}
		return apperror.ErrExternalFailure(fmt.Errorf("call gateway: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		if isTimeout(err) {
			return apperror.ErrExternalTimeout(err)
		}
		return apperror.ErrExternalFailure(fmt.Errorf("read gateway response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusGatewayTimeout || resp.StatusCode == http.StatusRequestTimeout:
		return apperror.ErrExternalTimeout(fmt.Errorf("gateway returned %d", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		var e errorResponse
		_ = json.Unmarshal(raw, &e)
		c.log.Error().
			Int("status", resp.StatusCode).
			Str("path", path).
			Str("external_id", idempotencyKey).
			Str("gateway_error", e.ErrorCode).
			Msg("gateway rejected request")
		return apperror.ErrExternalFailure(fmt.Errorf("gateway returned %d: %s %s", resp.StatusCode, e.ErrorCode, e.Message))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return apperror.ErrExternalFailure(fmt.Errorf("decode gateway response: %w", err))
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
