package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionCallbackAccepted AuditAction = "CALLBACK_ACCEPTED"
	AuditActionCallbackReplay   AuditAction = "CALLBACK_REPLAY"
	AuditActionCallbackIgnored  AuditAction = "CALLBACK_IGNORED"
	AuditActionCallbackRejected AuditAction = "CALLBACK_REJECTED"
	AuditActionTopup            AuditAction = "TOPUP"
	AuditActionPayoutRequest    AuditAction = "PAYOUT_REQUEST"
	AuditActionPayoutSubmit     AuditAction = "PAYOUT_SUBMIT"
	AuditActionPayoutCancel     AuditAction = "PAYOUT_CANCEL"
	AuditActionCheckout         AuditAction = "CHECKOUT"
	AuditActionRelease          AuditAction = "RELEASE"
	AuditActionBankAccount      AuditAction = "BANK_ACCOUNT_REGISTER"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	ActorID      *uuid.UUID  `json:"actor_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
