package domain

import "github.com/google/uuid"

// LedgerAudit compares a wallet's stored balances with the balances derived
// from its transaction log.
type LedgerAudit struct {
	WalletID       uuid.UUID `json:"wallet_id"`
	Balance        int64     `json:"balance"`
	PendingBalance int64     `json:"pending_balance"`
	LogBalance     int64     `json:"log_balance"`
	LogPending     int64     `json:"log_pending_balance"`
	Transactions   int       `json:"transactions"`
	Consistent     bool      `json:"consistent"`
}

// Reconstruct derives balance and pending balance from a transaction log:
// balance is the signed sum of successful entries, pending is the sum of
// pending earnings.
func Reconstruct(txs []Transaction) (balance, pending int64) {
	for i := range txs {
		tx := &txs[i]
		if tx.Status == TransactionStatusSuccess {
			balance += tx.SignedAmount()
		}
		if tx.CountsTowardPending() {
			pending += tx.Amount
		}
	}
	return balance, pending
}

// AuditWallet reconstructs w from txs and reports any drift.
func AuditWallet(w *Wallet, txs []Transaction) *LedgerAudit {
	balance, pending := Reconstruct(txs)
	return &LedgerAudit{
		WalletID:       w.ID,
		Balance:        w.Balance,
		PendingBalance: w.PendingBalance,
		LogBalance:     balance,
		LogPending:     pending,
		Transactions:   len(txs),
		Consistent:     balance == w.Balance && pending == w.PendingBalance,
	}
}
