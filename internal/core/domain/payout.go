package domain

import (
	"time"

	"github.com/google/uuid"
)

// PayoutStatus is the lifecycle of a worker withdrawal.
type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusCompleted  PayoutStatus = "completed"
	PayoutStatusFailed     PayoutStatus = "failed"
	PayoutStatusCancelled  PayoutStatus = "cancelled"
)

// IsTerminal reports whether s is a final payout state.
func (s PayoutStatus) IsTerminal() bool {
	return s == PayoutStatusCompleted || s == PayoutStatusFailed || s == PayoutStatusCancelled
}

// PayoutRequest is a worker withdrawal backed by exactly one payout transaction.
type PayoutRequest struct {
	ID               uuid.UUID    `json:"id"`
	WorkerID         uuid.UUID    `json:"worker_id"`
	WalletID         uuid.UUID    `json:"wallet_id"`
	TransactionID    uuid.UUID    `json:"transaction_id"`
	RefundTxID       *uuid.UUID   `json:"refund_transaction_id,omitempty"`
	BankAccountID    uuid.UUID    `json:"bank_account_id"`
	ClientRequestID  string       `json:"client_request_id"`
	ExternalID       string       `json:"external_id"`
	Amount           int64        `json:"amount"`
	FeeAmount        int64        `json:"fee_amount"`
	NetAmount        int64        `json:"net_amount"`
	Status           PayoutStatus `json:"status"`
	ProviderPayoutID *string      `json:"provider_payout_id,omitempty"`
	FailureReason    *string      `json:"failure_reason,omitempty"`
	Attempts         int          `json:"attempts"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
	SubmittedAt      *time.Time   `json:"submitted_at,omitempty"`
	ProcessingAt     *time.Time   `json:"processing_at,omitempty"`
	CompletedAt      *time.Time   `json:"completed_at,omitempty"`
	FailedAt         *time.Time   `json:"failed_at,omitempty"`
	CancelledAt      *time.Time   `json:"cancelled_at,omitempty"`
}

// ResolvePayoutTransition decides how a payout in current reacts to target.
// A late processing acknowledgement after a terminal webhook is ignored.
func ResolvePayoutTransition(current, target PayoutStatus) (TransitionOutcome, error) {
	if current == target {
		return TransitionReplay, nil
	}
	switch target {
	case PayoutStatusPending:
		return TransitionIgnore, nil
	case PayoutStatusProcessing:
		if current == PayoutStatusPending {
			return TransitionApply, nil
		}
		return TransitionIgnore, nil
	case PayoutStatusCancelled:
		if current == PayoutStatusPending {
			return TransitionApply, nil
		}
	default:
		if !current.IsTerminal() {
			return TransitionApply, nil
		}
	}
	return 0, &TransitionError{From: string(current), To: string(target)}
}

// PayoutStatusFor maps a terminal gateway outcome onto the payout lifecycle.
// Failed and expired both fail the payout.
func PayoutStatusFor(status TransactionStatus) (PayoutStatus, bool) {
	switch status {
	case TransactionStatusSuccess:
		return PayoutStatusCompleted, true
	case TransactionStatusFailed, TransactionStatusExpired:
		return PayoutStatusFailed, true
	default:
		return PayoutStatusPending, false
	}
}
