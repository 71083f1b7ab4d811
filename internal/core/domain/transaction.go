package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType represents the kind of money movement.
type TransactionType string

// Hold and earn are the business and worker sides of a booking checkout.
// Release moves a worker's earning from pending to available. Refund is the
// compensating credit for a failed payout.
const (
	TransactionTypeCredit  TransactionType = "credit"
	TransactionTypeDebit   TransactionType = "debit"
	TransactionTypeHold    TransactionType = "hold"
	TransactionTypeRelease TransactionType = "release"
	TransactionTypeEarn    TransactionType = "earn"
	TransactionTypePayout  TransactionType = "payout"
	TransactionTypePending TransactionType = "pending"
	TransactionTypeRefund  TransactionType = "refund"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeCredit, TransactionTypeDebit, TransactionTypeHold, TransactionTypeRelease,
		TransactionTypeEarn, TransactionTypePayout, TransactionTypePending, TransactionTypeRefund:
		return true
	}
	return false
}

// BalanceSign is the direction a successful transaction of this type moves
// the available balance: +1, -1, or 0 for types that never touch it.
func (t TransactionType) BalanceSign() int64 {
	switch t {
	case TransactionTypeCredit, TransactionTypeRefund, TransactionTypeRelease:
		return 1
	case TransactionTypeDebit, TransactionTypeHold, TransactionTypePayout:
		return -1
	default:
		return 0
	}
}

// TransactionStatus represents the lifecycle state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "pending"
	TransactionStatusSuccess TransactionStatus = "success"
	TransactionStatusFailed  TransactionStatus = "failed"
	TransactionStatusExpired TransactionStatus = "expired"
)

// IsTerminal reports whether s is a final state.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusSuccess ||
		s == TransactionStatusFailed ||
		s == TransactionStatusExpired
}

// Valid reports whether s is a known status.
func (s TransactionStatus) Valid() bool {
	return s == TransactionStatusPending || s.IsTerminal()
}

// Related entity kinds a transaction may reference.
const (
	RelatedBooking = "booking"
	RelatedPayout  = "payout"
	RelatedTopup   = "topup"
)

// Transaction is an append-only ledger entry. Once terminal it is never edited;
// corrections are new entries.
type Transaction struct {
	ID          uuid.UUID         `json:"id"`
	WalletID    uuid.UUID         `json:"wallet_id"`
	Type        TransactionType   `json:"type"`
	Amount      int64             `json:"amount"` // positive, minor units
	FeeAmount   int64             `json:"fee_amount"`
	RelatedType string            `json:"related_type,omitempty"`
	RelatedID   *uuid.UUID        `json:"related_id,omitempty"`
	Status      TransactionStatus `json:"status"`
	Description string            `json:"description,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// IsTerminal returns true if the transaction is in a final state.
func (t *Transaction) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// SignedAmount is the transaction's contribution to the available balance
// once it is successful.
func (t *Transaction) SignedAmount() int64 {
	return t.Type.BalanceSign() * t.Amount
}

// CountsTowardPending reports whether the transaction is part of the
// wallet's pending balance.
func (t *Transaction) CountsTowardPending() bool {
	return t.Type == TransactionTypeEarn && t.Status == TransactionStatusPending
}

// RelatedTo sets the related entity reference.
func (t *Transaction) RelatedTo(kind string, id uuid.UUID) *Transaction {
	t.RelatedType = kind
	t.RelatedID = &id
	return t
}

// TransactionFilter narrows a wallet history listing.
type TransactionFilter struct {
	WalletID uuid.UUID
	Type     *TransactionType
	Status   *TransactionStatus
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// TypeTotal aggregates successful transactions of one type.
type TypeTotal struct {
	Type   TransactionType `json:"type"`
	Count  int64           `json:"count"`
	Amount int64           `json:"amount"`
}
