package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultCurrency is the only currency wallets are opened in.
const DefaultCurrency = "IDR"

// OwnerType identifies which side of the marketplace owns a wallet.
type OwnerType string

const (
	OwnerTypeBusiness OwnerType = "business"
	OwnerTypeWorker   OwnerType = "worker"
)

// Valid reports whether o is a known owner type.
func (o OwnerType) Valid() bool {
	return o == OwnerTypeBusiness || o == OwnerTypeWorker
}

// Owner references the business or worker a wallet belongs to.
type Owner struct {
	Type OwnerType `json:"type"`
	ID   uuid.UUID `json:"id"`
}

// Wallet is the materialized balance projection of an owner's transaction log.
// Balance and PendingBalance are integer minor units and never negative.
type Wallet struct {
	ID             uuid.UUID `json:"id"`
	OwnerType      OwnerType `json:"owner_type"`
	OwnerID        uuid.UUID `json:"owner_id"`
	Balance        int64     `json:"balance"`
	PendingBalance int64     `json:"pending_balance"`
	Currency       string    `json:"currency"`
	IsActive       bool      `json:"is_active"`
	Version        int64     `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Owner returns the wallet's owner reference.
func (w *Wallet) Owner() Owner {
	return Owner{Type: w.OwnerType, ID: w.OwnerID}
}

// CanDebit reports whether the available balance covers amount.
func (w *Wallet) CanDebit(amount int64) bool {
	return w.IsActive && amount > 0 && w.Balance >= amount
}

// NewWallet builds an empty active wallet for owner.
func NewWallet(owner Owner, now time.Time) *Wallet {
	return &Wallet{
		ID:        uuid.New(),
		OwnerType: owner.Type,
		OwnerID:   owner.ID,
		Currency:  DefaultCurrency,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
