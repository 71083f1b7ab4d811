// Package storage selects the ledger store backend from configuration.
package storage

import (
	"context"
	"fmt"

	"wallet-ledger/config"
	"wallet-ledger/internal/adapter/storage/memory"
	"wallet-ledger/internal/adapter/storage/postgres"
	"wallet-ledger/internal/core/ports"

	"github.com/rs/zerolog"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Set is one backend's repositories behind the port interfaces.
type Set struct {
	Driver       string
	Transactor   ports.Transactor
	Wallets      ports.WalletRepository
	Transactions ports.TransactionRepository
	Topups       ports.PaymentTransactionRepository
	Payouts      ports.PayoutRepository
	Settlements  ports.SettlementRepository
	Bookings     ports.BookingRepository
	BankAccounts ports.BankAccountRepository
	Audits       ports.AuditRepository
	Incidents    ports.IncidentRepository
	Health       ports.HealthChecker
}

// Open connects the configured backend. The returned func releases it.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Set, func(), error) {
	switch cfg.Storage.Driver {
	case DriverMemory:
		log.Warn().Msg("using in-memory ledger store, state is lost on restart")
		return openMemory(memory.NewStore()), func() {}, nil

	case DriverPostgres, "":
		pool, err := postgres.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Database.Migrate {
			if err := postgres.Migrate(ctx, pool, log); err != nil {
				pool.Close()
				return nil, nil, fmt.Errorf("migrating database: %w", err)
			}
		}
		repos := postgres.NewRepositories(pool, log)
		return &Set{
			Driver:       DriverPostgres,
			Transactor:   repos.Transactor,
			Wallets:      repos.Wallets,
			Transactions: repos.Transactions,
			Topups:       repos.Topups,
			Payouts:      repos.Payouts,
			Settlements:  repos.Settlements,
			Bookings:     repos.Bookings,
			BankAccounts: repos.BankAccounts,
			Audits:       repos.Audits,
			Incidents:    repos.Incidents,
			Health:       postgres.NewHealthCheck(pool),
		}, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func openMemory(store *memory.Store) *Set {
	repos := store.Repositories()
	return &Set{
		Driver:       DriverMemory,
		Transactor:   store,
		Wallets:      repos.Wallets,
		Transactions: repos.Transactions,
		Topups:       repos.Topups,
		Payouts:      repos.Payouts,
		Settlements:  repos.Settlements,
		Bookings:     repos.Bookings,
		BankAccounts: repos.BankAccounts,
		Audits:       repos.Audits,
		Incidents:    repos.Incidents,
		Health:       store,
	}
}
