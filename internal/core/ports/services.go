package ports

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
)

// EncryptionService handles AES-256-GCM encryption/decryption.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
}

// Role is the marketplace role carried in a bearer token.
type Role string

const (
	RoleBusiness Role = "business"
	RoleWorker   Role = "worker"
	RoleAdmin    Role = "admin"
)

// TokenService validates bearer tokens issued by the marketplace auth service.
type TokenService interface {
	Generate(subject uuid.UUID, role Role, ttl time.Duration) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Subject uuid.UUID
	Role    Role
}

// Owner maps the caller to the wallet owner it acts for.
func (c *TokenClaims) Owner() (domain.Owner, bool) {
	switch c.Role {
	case RoleBusiness:
		return domain.Owner{Type: domain.OwnerTypeBusiness, ID: c.Subject}, true
	case RoleWorker:
		return domain.Owner{Type: domain.OwnerTypeWorker, ID: c.Subject}, true
	default:
		return domain.Owner{}, false
	}
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RequestLock serializes concurrent duplicates of one client request.
type RequestLock interface {
	// Acquire returns true if the caller now holds key until ttl or Release.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// --- Outbound ports ---

// PaymentGateway is the external payment provider.
type PaymentGateway interface {
	CreateInvoice(ctx context.Context, req InvoiceRequest) (*Invoice, error)
	CreatePayout(ctx context.Context, order PayoutOrder) (*PayoutReceipt, error)
}

// InvoiceRequest asks the gateway for a top-up payment page.
type InvoiceRequest struct {
	ExternalID   string
	Amount       int64
	TotalCharged int64
	Currency     string
	Description  string
	ExpiresIn    time.Duration
}

// Invoice is the gateway's answer to an InvoiceRequest.
type Invoice struct {
	ProviderPaymentID string
	PaymentURL        string
	ExpiresAt         time.Time
}

// PayoutOrder asks the gateway to disburse NetAmount to a bank account.
// ExternalID doubles as the idempotency key, so resubmission is safe.
type PayoutOrder struct {
	ExternalID    string
	NetAmount     int64
	Currency      string
	BankCode      string
	AccountNumber string
	AccountHolder string
}

// PayoutReceipt is the gateway's acceptance of a PayoutOrder.
type PayoutReceipt struct {
	ProviderPayoutID string
	Status           string
}

// EventPublisher publishes events to the message broker.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, body interface{}) error
}

// ReleaseScheduler schedules a settlement release for a booking at a given time.
type ReleaseScheduler interface {
	ScheduleRelease(ctx context.Context, bookingID uuid.UUID, at time.Time) error
}

// --- Service Ports (Business Logic) ---

// Notifier emits best-effort user notifications after committed changes.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification)
}

// AuditService records audit trail entries asynchronously.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// IncidentReporter escalates consistency errors for manual review.
type IncidentReporter interface {
	Report(ctx context.Context, operation, resourceType, resourceID string, err error)
}

// WebhookReconciler applies gateway callbacks to top-ups and payouts.
type WebhookReconciler interface {
	Reconcile(ctx context.Context, cb GatewayCallback) (*CallbackResult, error)
}

// GatewayCallback is an authenticated gateway notification.
type GatewayCallback struct {
	ExternalID  string
	ProviderID  string
	Status      string // raw gateway vocabulary
	Amount      int64
	CompletedAt *time.Time
	SourceIP    string
}

// CallbackResult is returned for every accepted callback, including replays.
type CallbackResult struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

// TopupService initiates business top-ups.
type TopupService interface {
	Initiate(ctx context.Context, in TopupInput) (*domain.PaymentTransaction, error)
}

// TopupInput holds validated input for a top-up.
type TopupInput struct {
	BusinessID uuid.UUID
	Amount     int64
}

// PayoutService handles worker withdrawals.
type PayoutService interface {
	RequestPayout(ctx context.Context, in PayoutInput) (*domain.PayoutRequest, error)
	Submit(ctx context.Context, payoutID uuid.UUID) (*domain.PayoutRequest, error)
	Cancel(ctx context.Context, payoutID, workerID uuid.UUID) (*domain.PayoutRequest, error)
	Get(ctx context.Context, payoutID, workerID uuid.UUID) (*domain.PayoutRequest, error)
	ResubmitStale(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// PayoutInput holds validated input for a payout request.
type PayoutInput struct {
	WorkerID  uuid.UUID
	Amount    int64
	RequestID string
}

// SettlementService runs booking checkout and earnings release.
type SettlementService interface {
	Checkout(ctx context.Context, req CheckoutRequest) (*domain.Settlement, error)
	ReleaseNow(ctx context.Context, bookingID, actorID uuid.UUID) (*domain.Settlement, error)
	ReleaseDue(ctx context.Context, bookingID uuid.UUID) (*domain.Settlement, error)
	SweepDueReleases(ctx context.Context, now time.Time, limit int) (int, error)
	GetSettlement(ctx context.Context, bookingID, actorID uuid.UUID) (*domain.Settlement, error)
}

// CheckoutRequest holds validated input for a booking checkout.
type CheckoutRequest struct {
	BookingID uuid.UUID
	ActorID   uuid.UUID
	RequestID string // optional; a retried request gets the original result back
}

// WalletService serves wallet reads and audits.
type WalletService interface {
	GetWallet(ctx context.Context, owner domain.Owner) (*domain.Wallet, error)
	ListTransactions(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
	GetSummary(ctx context.Context, owner domain.Owner) (*WalletSummary, error)
	Reconcile(ctx context.Context, walletID uuid.UUID) (*domain.LedgerAudit, error)
}

// WalletSummary aggregates a wallet's successful movements per type.
type WalletSummary struct {
	Wallet *domain.Wallet     `json:"wallet"`
	Totals []domain.TypeTotal `json:"totals"`
}

// BankAccountService manages worker payout destinations.
type BankAccountService interface {
	Register(ctx context.Context, in RegisterBankAccountInput) (*BankAccountView, error)
	GetDefault(ctx context.Context, workerID uuid.UUID) (*BankAccountView, error)
}

// RegisterBankAccountInput holds validated input for a new payout destination.
type RegisterBankAccountInput struct {
	WorkerID      uuid.UUID
	BankCode      string
	AccountNumber string
	AccountHolder string
}

// BankAccountView is a bank account with its number masked.
type BankAccountView struct {
	ID            uuid.UUID `json:"id"`
	BankCode      string    `json:"bank_code"`
	AccountNumber string    `json:"account_number"`
	AccountHolder string    `json:"account_holder"`
	IsDefault     bool      `json:"is_default"`
	CreatedAt     string    `json:"created_at"`
}
