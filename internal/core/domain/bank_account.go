package domain

import (
	"time"

	"github.com/google/uuid"
)

// BankAccount is a worker's payout destination. The account number is stored
// encrypted and only decrypted to call the gateway.
type BankAccount struct {
	ID               uuid.UUID `json:"id"`
	WorkerID         uuid.UUID `json:"worker_id"`
	BankCode         string    `json:"bank_code"`
	AccountNumberEnc string    `json:"-"`
	AccountHolder    string    `json:"account_holder"`
	IsDefault        bool      `json:"is_default"`
	CreatedAt        time.Time `json:"created_at"`
}
