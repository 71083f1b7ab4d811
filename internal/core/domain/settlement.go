package domain

import (
	"time"

	"github.com/google/uuid"
)

// SettlementStatus tracks a booking's hold/release pair.
type SettlementStatus string

const (
	SettlementStatusHeld     SettlementStatus = "held"
	SettlementStatusReleased SettlementStatus = "released"
)

// ReleaseTrigger records why a settlement was released.
type ReleaseTrigger string

const (
	ReleaseTriggerSchedule     ReleaseTrigger = "schedule"
	ReleaseTriggerConfirmation ReleaseTrigger = "confirmation"
	ReleaseTriggerSweep        ReleaseTrigger = "sweep"
)

// Settlement is the single hold/release pair of a booking. BookingID is unique.
type Settlement struct {
	ID               uuid.UUID        `json:"id"`
	BookingID        uuid.UUID        `json:"booking_id"`
	ClientRequestID  string           `json:"request_id,omitempty"` // checkout request that created it
	BusinessWalletID uuid.UUID        `json:"business_wallet_id"`
	WorkerWalletID   uuid.UUID        `json:"worker_wallet_id"`
	HoldTxID         uuid.UUID        `json:"hold_transaction_id"`
	EarnTxID         uuid.UUID        `json:"earn_transaction_id"`
	ReleaseTxID      *uuid.UUID       `json:"release_transaction_id,omitempty"`
	Amount           int64            `json:"amount"`
	Status           SettlementStatus `json:"status"`
	ReleaseAt        time.Time        `json:"release_at"`
	ReleasedAt       *time.Time       `json:"released_at,omitempty"`
	ReleaseTrigger   *ReleaseTrigger  `json:"release_trigger,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

// IsDue reports whether the hold window has elapsed at now.
func (s *Settlement) IsDue(now time.Time) bool {
	return s.Status == SettlementStatusHeld && !now.Before(s.ReleaseAt)
}
