package ports

import (
	"context"
	"errors"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
)

var (
	// ErrNegativeBalance is returned by WalletRepository.ApplyDelta when the
	// change would take either balance below zero. Nothing is written.
	ErrNegativeBalance = errors.New("balance would become negative")
	// ErrDuplicate is returned when a unique key (booking, client request id,
	// external id) already exists.
	ErrDuplicate = errors.New("duplicate record")
)

// Transactor runs fn inside one atomic unit of work. Repositories called with
// the ctx passed to fn join that unit; a returned error rolls everything back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// WalletRepository defines persistence operations for wallets.
// ForUpdate variants take a row lock held until the unit of work ends.
type WalletRepository interface {
	// Upsert creates the owner's wallet if absent and returns it. Safe under concurrent first access.
	Upsert(ctx context.Context, wallet *domain.Wallet) (*domain.Wallet, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByOwner(ctx context.Context, owner domain.Owner) (*domain.Wallet, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	ApplyDelta(ctx context.Context, id uuid.UUID, availableDelta, pendingDelta int64) (*domain.Wallet, error)
}

// TransactionRepository defines persistence for the append-only transaction log.
type TransactionRepository interface {
	Create(ctx context.Context, tx *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	// CompleteIfPending moves a pending transaction to status. It reports false
	// when the row was no longer pending.
	CompleteIfPending(ctx context.Context, id uuid.UUID, status domain.TransactionStatus, at time.Time) (bool, error)
	ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.Transaction, error)
	List(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, int64, error)
	TotalsByType(ctx context.Context, walletID uuid.UUID) ([]domain.TypeTotal, error)
}

// PaymentTransactionRepository persists business top-ups.
type PaymentTransactionRepository interface {
	Create(ctx context.Context, p *domain.PaymentTransaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentTransaction, error)
	GetByExternalID(ctx context.Context, externalID string) (*domain.PaymentTransaction, error)
	GetByExternalIDForUpdate(ctx context.Context, externalID string) (*domain.PaymentTransaction, error)
	SetInvoice(ctx context.Context, id uuid.UUID, providerPaymentID, paymentURL string, expiresAt time.Time) error
	CompleteIfPending(ctx context.Context, id uuid.UUID, status domain.TransactionStatus, providerPaymentID *string, at time.Time) (bool, error)
}

// PayoutRepository persists worker payout requests.
type PayoutRepository interface {
	Create(ctx context.Context, p *domain.PayoutRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PayoutRequest, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.PayoutRequest, error)
	GetByExternalIDForUpdate(ctx context.Context, externalID string) (*domain.PayoutRequest, error)
	GetByClientRequestID(ctx context.Context, workerID uuid.UUID, clientRequestID string) (*domain.PayoutRequest, error)
	// UpdateStatus writes p's status, correlation ids and timestamps if the
	// stored status still equals from. It reports false otherwise.
	UpdateStatus(ctx context.Context, p *domain.PayoutRequest, from domain.PayoutStatus) (bool, error)
	RecordAttempt(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	ListStalePending(ctx context.Context, submittedBefore time.Time, limit int) ([]domain.PayoutRequest, error)
}

// SettlementRepository persists booking hold/release pairs.
type SettlementRepository interface {
	// Create returns ErrDuplicate if the booking already has a settlement.
	Create(ctx context.Context, s *domain.Settlement) error
	GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*domain.Settlement, error)
	GetByBookingIDForUpdate(ctx context.Context, bookingID uuid.UUID) (*domain.Settlement, error)
	// MarkReleased flips a held settlement to released. It reports false when already released.
	MarkReleased(ctx context.Context, s *domain.Settlement) (bool, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Settlement, error)
}

// BookingRepository reads and advances the marketplace bookings checkout depends on.
type BookingRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to domain.BookingStatus) (bool, error)
}

// BankAccountRepository reads worker payout destinations.
type BankAccountRepository interface {
	Create(ctx context.Context, account *domain.BankAccount) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.BankAccount, error)
	GetDefault(ctx context.Context, workerID uuid.UUID) (*domain.BankAccount, error)
}

// AuditRepository persists audit trail entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// IncidentRepository persists consistency incidents for manual review.
type IncidentRepository interface {
	Create(ctx context.Context, incident *domain.ConsistencyIncident) error
	ListOpen(ctx context.Context, limit int) ([]domain.ConsistencyIncident, error)
}

// TransactionListParams holds filter + pagination for listing an owner's transactions.
type TransactionListParams struct {
	Owner    domain.Owner
	Status   *domain.TransactionStatus
	Type     *domain.TransactionType
	From     *int64 // Unix timestamp
	To       *int64 // Unix timestamp
	Page     int
	PageSize int
}
