package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentTransaction is a business top-up awaiting gateway settlement. Its
// terminal status is only ever set by a gateway callback.
type PaymentTransaction struct {
	ID                uuid.UUID         `json:"id"`
	BusinessID        uuid.UUID         `json:"business_id"`
	WalletID          uuid.UUID         `json:"wallet_id"`
	TransactionID     uuid.UUID         `json:"transaction_id"`
	ExternalID        string            `json:"external_id"`
	Amount            int64             `json:"amount"`
	FeeAmount         int64             `json:"fee_amount"`
	Provider          string            `json:"provider"`
	ProviderPaymentID *string           `json:"provider_payment_id,omitempty"`
	PaymentURL        *string           `json:"payment_url,omitempty"`
	ExpiresAt         *time.Time        `json:"expires_at,omitempty"`
	Status            TransactionStatus `json:"status"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
	CompletedAt       *time.Time        `json:"completed_at,omitempty"`
}

// TotalCharged is what the business pays the gateway.
func (p *PaymentTransaction) TotalCharged() int64 {
	return p.Amount + p.FeeAmount
}
