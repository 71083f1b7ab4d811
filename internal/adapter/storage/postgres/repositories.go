package postgres

import (
	"github.com/rs/zerolog"
)

// Repositories bundles every PostgreSQL repository over one pool.
type Repositories struct {
	Transactor   *Transactor
	Wallets      *WalletRepo
	Transactions *TransactionRepo
	Topups       *TopupRepo
	Payouts      *PayoutRepo
	Settlements  *SettlementRepo
	Bookings     *BookingRepo
	BankAccounts *BankAccountRepo
	Audits       *AuditRepo
	Incidents    *IncidentRepo
}

// NewRepositories wires the repositories and the transactor they share.
func NewRepositories(pool Pool, log zerolog.Logger) Repositories {
	transactor := NewTransactor(pool, log)
	return Repositories{
		Transactor:   transactor,
		Wallets:      NewWalletRepo(pool),
		Transactions: NewTransactionRepo(pool),
		Topups:       NewTopupRepo(pool),
		Payouts:      NewPayoutRepo(pool),
		Settlements:  NewSettlementRepo(pool),
		Bookings:     NewBookingRepo(pool),
		BankAccounts: NewBankAccountRepo(pool, transactor),
		Audits:       NewAuditRepo(pool),
		Incidents:    NewIncidentRepo(pool),
	}
}
