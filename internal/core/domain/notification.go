package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationKind names a user-facing wallet event.
type NotificationKind string

const (
	NotificationTopupSettled    NotificationKind = "wallet.topup.settled"
	NotificationTopupFailed     NotificationKind = "wallet.topup.failed"
	NotificationPayoutCompleted NotificationKind = "wallet.payout.completed"
	NotificationPayoutFailed    NotificationKind = "wallet.payout.failed"
	NotificationEarningHeld     NotificationKind = "wallet.earning.held"
	NotificationEarningReleased NotificationKind = "wallet.earning.released"
)

// Notification is published after a committed balance change.
type Notification struct {
	ID         uuid.UUID        `json:"id"`
	Kind       NotificationKind `json:"kind"`
	Owner      Owner            `json:"owner"`
	WalletID   uuid.UUID        `json:"wallet_id"`
	Amount     int64            `json:"amount"`
	ResourceID string           `json:"resource_id"`
	OccurredAt time.Time        `json:"occurred_at"`
}
