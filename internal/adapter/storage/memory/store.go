// Package memory is an in-process storage adapter with the same atomicity and
// serialization guarantees as the Postgres adapter. Units of work run one at a
// time against a private copy of the state that is swapped in on commit, so a
// failed unit of work leaves nothing behind.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
)

type state struct {
	wallets       map[uuid.UUID]domain.Wallet
	walletByOwner map[domain.Owner]uuid.UUID
	txs           map[uuid.UUID]domain.Transaction
	txOrder       []uuid.UUID
	topups        map[uuid.UUID]domain.PaymentTransaction
	payouts       map[uuid.UUID]domain.PayoutRequest
	settlements   map[uuid.UUID]domain.Settlement // keyed by booking id
	bookings      map[uuid.UUID]domain.Booking
	bankAccounts  map[uuid.UUID]domain.BankAccount
	audits        []domain.AuditLog
	incidents     []domain.ConsistencyIncident
}

func newState() *state {
	return &state{
		wallets:       make(map[uuid.UUID]domain.Wallet),
		walletByOwner: make(map[domain.Owner]uuid.UUID),
		txs:           make(map[uuid.UUID]domain.Transaction),
		topups:        make(map[uuid.UUID]domain.PaymentTransaction),
		payouts:       make(map[uuid.UUID]domain.PayoutRequest),
		settlements:   make(map[uuid.UUID]domain.Settlement),
		bookings:      make(map[uuid.UUID]domain.Booking),
		bankAccounts:  make(map[uuid.UUID]domain.BankAccount),
	}
}

func (s *state) clone() *state {
	return &state{
		wallets:       maps.Clone(s.wallets),
		walletByOwner: maps.Clone(s.walletByOwner),
		txs:           maps.Clone(s.txs),
		txOrder:       slices.Clone(s.txOrder),
		topups:        maps.Clone(s.topups),
		payouts:       maps.Clone(s.payouts),
		settlements:   maps.Clone(s.settlements),
		bookings:      maps.Clone(s.bookings),
		bankAccounts:  maps.Clone(s.bankAccounts),
		audits:        slices.Clone(s.audits),
		incidents:     slices.Clone(s.incidents),
	}
}

type txKey struct{}

// Store holds the committed state and serializes units of work.
type Store struct {
	txMu      sync.Mutex   // held for the whole unit of work
	mu        sync.RWMutex // guards the committed pointer
	committed *state
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{committed: newState()}
}

// WithinTx implements ports.Transactor. Nested calls join the outer unit of work.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*state); ok {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := s.committed.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, work)); err != nil {
		return err
	}

	s.mu.Lock()
	s.committed = work
	s.mu.Unlock()
	return nil
}

// read returns the unit of work's state, or the committed snapshot outside one.
// Committed snapshots are never mutated.
func (s *Store) read(ctx context.Context) *state {
	if st, ok := ctx.Value(txKey{}).(*state); ok {
		return st
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.committed
}

// write applies fn inside the caller's unit of work, or a fresh one.
func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	if st, ok := ctx.Value(txKey{}).(*state); ok {
		return fn(st)
	}
	return s.WithinTx(ctx, func(ctx context.Context) error {
		return fn(ctx.Value(txKey{}).(*state))
	})
}

// Repositories bundles the store's repository views.
type Repositories struct {
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

// Repositories returns repository views over the store.
func (s *Store) Repositories() Repositories {
	return Repositories{
		Wallets:      &WalletRepo{s: s},
		Transactions: &TransactionRepo{s: s},
		Topups:       &TopupRepo{s: s},
		Payouts:      &PayoutRepo{s: s},
		Settlements:  &SettlementRepo{s: s},
		Bookings:     &BookingRepo{s: s},
		BankAccounts: &BankAccountRepo{s: s},
		Audits:       &AuditRepo{s: s},
		Incidents:    &IncidentRepo{s: s},
	}
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string {
	return "memory"
}

// Ping implements ports.HealthChecker.
func (s *Store) Ping(ctx context.Context) error {
	return nil
}
