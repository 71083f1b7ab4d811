package dto

import "time"

// CallbackRequest is the payment gateway's notification body.
type CallbackRequest struct {
	ExternalID  string     `json:"external_id" binding:"required,max=100"`
	ID          string     `json:"id" binding:"max=100"`
	Status      string     `json:"status" binding:"required,max=40"`
	Amount      int64      `json:"amount" binding:"required,gt=0"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TopupRequest is the request body for a business top-up. Amount bounds are
// enforced by the fee policy so the caller gets the specific error code.
type TopupRequest struct {
	Amount int64 `json:"amount"`
}

// PayoutRequest is the request body for a worker withdrawal.
type PayoutRequest struct {
	Amount    int64  `json:"amount"`
	RequestID string `json:"request_id" binding:"required,max=100,safe_id"`
}

// CheckoutRequest is the optional body of a booking checkout.
type CheckoutRequest struct {
	RequestID string `json:"request_id" binding:"omitempty,max=100,safe_id"`
}

// BankAccountRequest registers a worker's payout destination.
type BankAccountRequest struct {
	BankCode      string `json:"bank_code" binding:"required,bank_code"`
	AccountNumber string `json:"account_number" binding:"required,numeric,min=6,max=20"`
	AccountHolder string `json:"account_holder" binding:"required,min=2,max=100"`
}

// TransactionListQuery holds the history view's filters.
type TransactionListQuery struct {
	Type     string `form:"type"`
	Status   string `form:"status"`
	From     *int64 `form:"from"` // Unix timestamp
	To       *int64 `form:"to"`   // Unix timestamp
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// TopupResponse is returned once the gateway has issued a payment page.
type TopupResponse struct {
	ID           string  `json:"id"`
	ExternalID   string  `json:"external_id"`
	Amount       int64   `json:"amount"`
	FeeAmount    int64   `json:"fee_amount"`
	TotalCharged int64   `json:"total_charged"`
	Status       string  `json:"status"`
	PaymentURL   *string `json:"payment_url,omitempty"`
	ExpiresAt    *string `json:"expires_at,omitempty"`
}

// TransactionResponse is one ledger entry.
type TransactionResponse struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Amount      int64   `json:"amount"`
	FeeAmount   int64   `json:"fee_amount"`
	Status      string  `json:"status"`
	RelatedType string  `json:"related_type,omitempty"`
	RelatedID   *string `json:"related_id,omitempty"`
	Description string  `json:"description,omitempty"`
	CreatedAt   string  `json:"created_at"`
	CompletedAt *string `json:"completed_at,omitempty"`
}

// TransactionListResponse wraps paginated transaction list.
type TransactionListResponse struct {
	Items      []TransactionResponse `json:"items"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
}
