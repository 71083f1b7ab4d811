package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Ledger owns every write to wallets and the transaction log. Balance deltas
// are derived from each transaction's contribution before and after a status
// change, so a wallet always equals the reconstruction of its log.
//
// Write methods must run inside ports.Transactor.WithinTx.
type Ledger struct {
	wallets   ports.WalletRepository
	txs       ports.TransactionRepository
	incidents ports.IncidentReporter
	log       zerolog.Logger
}

// NewLedger creates a new Ledger.
func NewLedger(
	wallets ports.WalletRepository,
	txs ports.TransactionRepository,
	incidents ports.IncidentReporter,
	log zerolog.Logger,
) *Ledger {
	return &Ledger{
		wallets:   wallets,
		txs:       txs,
		incidents: incidents,
		log:       log,
	}
}

// contribution is what tx adds to (available, pending) in its current state.
func contribution(tx *domain.Transaction) (available, pending int64) {
	if tx.Status == domain.TransactionStatusSuccess {
		available = tx.SignedAmount()
	}
	if tx.CountsTowardPending() {
		pending = tx.Amount
	}
	return available, pending
}

// Wallet returns the owner's wallet, creating it on first access.
func (l *Ledger) Wallet(ctx context.Context, owner domain.Owner) (*domain.Wallet, error) {
	if !owner.Type.Valid() || owner.ID == uuid.Nil {
		return nil, apperror.Validation("invalid wallet owner")
	}
	wallet, err := l.wallets.Upsert(ctx, domain.NewWallet(owner, time.Now().UTC()))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("upsert wallet: %w", err))
	}
	return wallet, nil
}

// WalletByID returns a wallet or NF_001.
func (l *Ledger) WalletByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	wallet, err := l.wallets.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return wallet, nil
}

// Lock row-locks the given wallets in ascending id order so that concurrent
// multi-wallet operations cannot deadlock.
func (l *Ledger) Lock(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]*domain.Wallet, error) {
	sorted := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].String() < sorted[j].String() })

	locked := make(map[uuid.UUID]*domain.Wallet, len(sorted))
	for _, id := range sorted {
		wallet, err := l.wallets.GetByIDForUpdate(ctx, id)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
		}
		if wallet == nil {
			return nil, apperror.ErrNotFound("wallet")
		}
		locked[id] = wallet
	}
	return locked, nil
}

// Append inserts a pending transaction. A pending earning is reflected in the
// wallet's pending balance in the same unit of work.
func (l *Ledger) Append(ctx context.Context, tx *domain.Transaction) error {
	if err := domain.ValidateInitialStatus(tx.Status, false); err != nil {
		return apperror.InternalError(err)
	}
	return l.insert(ctx, tx)
}

// Post records an instantaneous local operation: the transaction is written
// already successful together with its balance change.
func (l *Ledger) Post(ctx context.Context, tx *domain.Transaction) (*domain.Wallet, error) {
	now := time.Now().UTC()
	tx.Status = domain.TransactionStatusSuccess
	tx.CompletedAt = &now
	if err := domain.ValidateInitialStatus(tx.Status, true); err != nil {
		return nil, apperror.InternalError(err)
	}
	if err := l.insert(ctx, tx); err != nil {
		return nil, err
	}
	return l.WalletByID(ctx, tx.WalletID)
}

func (l *Ledger) insert(ctx context.Context, tx *domain.Transaction) error {
	if tx.Amount <= 0 {
		return apperror.ErrInvalidAmount()
	}
	if !tx.Type.Valid() {
		return apperror.InternalError(fmt.Errorf("unknown transaction type %q", tx.Type))
	}
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	available, pending := contribution(tx)
	if err := l.applyDelta(ctx, tx.WalletID, available, pending); err != nil {
		return err
	}
	if err := l.txs.Create(ctx, tx); err != nil {
		return apperror.InternalError(fmt.Errorf("create transaction: %w", err))
	}
	return nil
}

// Settle moves a transaction to target through the state machine. On Apply the
// status write is conditional on the row still being pending, and the balance
// change lands in the same unit of work. Replays and ignored targets return the
// stored record unchanged; a contradictory target returns CONS_001.
func (l *Ledger) Settle(ctx context.Context, id uuid.UUID, target domain.TransactionStatus) (*domain.Transaction, domain.TransitionOutcome, error) {
	tx, err := l.txs.GetByID(ctx, id)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("get transaction: %w", err))
	}
	if tx == nil {
		return nil, 0, apperror.ErrNotFound("transaction")
	}

	outcome, err := domain.ResolveTransition(tx.Status, target)
	if err != nil {
		return tx, 0, apperror.ErrContradictoryTransition(string(tx.Status), string(target))
	}
	if outcome != domain.TransitionApply {
		return tx, outcome, nil
	}

	now := time.Now().UTC()
	applied, err := l.txs.CompleteIfPending(ctx, id, target, now)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("complete transaction: %w", err))
	}
	if !applied {
		// Lost a race with a concurrent settle; resolve against what won.
		current, err := l.txs.GetByID(ctx, id)
		if err != nil {
			return nil, 0, apperror.InternalError(fmt.Errorf("reload transaction: %w", err))
		}
		outcome, err := domain.ResolveTransition(current.Status, target)
		if err != nil {
			return current, 0, apperror.ErrContradictoryTransition(string(current.Status), string(target))
		}
		return current, outcome, nil
	}

	beforeAvail, beforePending := contribution(tx)
	tx.Status = target
	tx.CompletedAt = &now
	afterAvail, afterPending := contribution(tx)

	if err := l.applyDelta(ctx, tx.WalletID, afterAvail-beforeAvail, afterPending-beforePending); err != nil {
		return nil, 0, err
	}

	l.log.Debug().
		Str("tx_id", tx.ID.String()).
		Str("wallet_id", tx.WalletID.String()).
		Str("status", string(target)).
		Msg("transaction settled")

	return tx, domain.TransitionApply, nil
}

func (l *Ledger) applyDelta(ctx context.Context, walletID uuid.UUID, available, pending int64) error {
	if available == 0 && pending == 0 {
		return nil
	}
	_, err := l.wallets.ApplyDelta(ctx, walletID, available, pending)
	if err == nil {
		return nil
	}
	if errors.Is(err, ports.ErrNegativeBalance) {
		if available < 0 {
			return apperror.ErrInsufficientFunds()
		}
		return apperror.ErrNegativeBalance()
	}
	return apperror.InternalError(fmt.Errorf("apply balance delta: %w", err))
}

// Reconstruct recomputes a wallet from its log. Drift is reported as a
// CONS_003 consistency incident and the audit comes back with Consistent
// false and a nil error. The stored balances are never auto-corrected.
func (l *Ledger) Reconstruct(ctx context.Context, walletID uuid.UUID) (*domain.LedgerAudit, error) {
	wallet, err := l.WalletByID(ctx, walletID)
	if err != nil {
		return nil, err
	}
	txs, err := l.txs.ListByWallet(ctx, walletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}

	audit := domain.AuditWallet(wallet, txs)
	if !audit.Consistent {
		l.incidents.Report(ctx, "reconstruct", "wallet", walletID.String(), apperror.ErrLedgerMismatch(walletID.String()))
	}
	return audit, nil
}
