package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"wallet-ledger/internal/adapter/storage/memory"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() zerolog.Logger {
	return zerolog.Nop()
}

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}

// ledgerEnv wires a Ledger over the in-memory store, which has the same
// unit-of-work semantics as Postgres.
type ledgerEnv struct {
	store    *memory.Store
	repos    memory.Repositories
	ledger   *Ledger
	fees     *FeeCalculator
	notifier *recordingNotifier
}

func newLedgerEnv(t *testing.T) *ledgerEnv {
	t.Helper()
	store := memory.NewStore()
	repos := store.Repositories()
	incidents := NewIncidentService(repos.Incidents, newTestLogger())
	return &ledgerEnv{
		store:    store,
		repos:    repos,
		ledger:   NewLedger(repos.Wallets, repos.Transactions, incidents, newTestLogger()),
		fees:     newTestFeeCalculator(t),
		notifier: &recordingNotifier{},
	}
}

// seed credits owner's wallet through the ledger so the log stays consistent.
func (e *ledgerEnv) seed(t *testing.T, owner domain.Owner, amount int64) *domain.Wallet {
	t.Helper()
	var wallet *domain.Wallet
	err := e.store.WithinTx(context.Background(), func(ctx context.Context) error {
		w, err := e.ledger.Wallet(ctx, owner)
		if err != nil {
			return err
		}
		wallet, err = e.ledger.Post(ctx, &domain.Transaction{
			WalletID:    w.ID,
			Type:        domain.TransactionTypeCredit,
			Amount:      amount,
			Description: "seed",
		})
		return err
	})
	require.NoError(t, err)
	return wallet
}

func (e *ledgerEnv) wallet(t *testing.T, id uuid.UUID) *domain.Wallet {
	t.Helper()
	w, err := e.ledger.WalletByID(context.Background(), id)
	require.NoError(t, err)
	return w
}

func (e *ledgerEnv) assertReconstructs(t *testing.T, walletID uuid.UUID) {
	t.Helper()
	audit, err := e.ledger.Reconstruct(context.Background(), walletID)
	require.NoError(t, err)
	assert.True(t, audit.Consistent, "wallet %s drifted from its log: %+v", walletID, audit)
}

func (e *ledgerEnv) openIncidents(t *testing.T) []domain.ConsistencyIncident {
	t.Helper()
	incidents, err := e.repos.Incidents.ListOpen(context.Background(), 0)
	require.NoError(t, err)
	return incidents
}

func (e *ledgerEnv) countTx(t *testing.T, walletID uuid.UUID, typ domain.TransactionType) int {
	t.Helper()
	txs, err := e.repos.Transactions.ListByWallet(context.Background(), walletID)
	require.NoError(t, err)
	n := 0
	for _, tx := range txs {
		if tx.Type == typ {
			n++
		}
	}
	return n
}

func workerOwner() domain.Owner {
	return domain.Owner{Type: domain.OwnerTypeWorker, ID: uuid.New()}
}

func businessOwner() domain.Owner {
	return domain.Owner{Type: domain.OwnerTypeBusiness, ID: uuid.New()}
}

// recordingNotifier captures notifications synchronously.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, notification domain.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
}

func (n *recordingNotifier) kinds() []domain.NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := make([]domain.NotificationKind, 0, len(n.sent))
	for _, s := range n.sent {
		kinds = append(kinds, s.Kind)
	}
	return kinds
}

// failingPublisher rejects every publish and signals each attempt.
type failingPublisher struct {
	attempts chan struct{}
}

func (p *failingPublisher) Publish(context.Context, string, interface{}) error {
	p.attempts <- struct{}{}
	return assert.AnError
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}
