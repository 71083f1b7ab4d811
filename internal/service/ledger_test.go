package service

import (
	"context"
	"sync"
	"testing"

	"wallet-ledger/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_Wallet_ConcurrentFirstAccess(t *testing.T) {
	env := newLedgerEnv(t)
	owner := workerOwner()

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[string]int{}
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, err := env.ledger.Wallet(context.Background(), owner)
			assert.NoError(t, err)
			if w != nil {
				mu.Lock()
				ids[w.ID.String()]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 1, "every caller must see the same wallet")
}

func TestLedger_Wallet_InvalidOwner(t *testing.T) {
	env := newLedgerEnv(t)
	_, err := env.ledger.Wallet(context.Background(), domain.Owner{Type: "merchant"})
	assertAppError(t, err, "VAL_000")
}

func TestLedger_Append_RejectsTerminal(t *testing.T) {
	env := newLedgerEnv(t)
	w := env.seed(t, businessOwner(), 1000)

	err := env.store.WithinTx(context.Background(), func(ctx context.Context) error {
		return env.ledger.Append(ctx, &domain.Transaction{
			WalletID: w.ID,
			Type:     domain.TransactionTypeCredit,
			Amount:   500,
			Status:   domain.TransactionStatusSuccess,
		})
	})
	assertAppError(t, err, "SYS_001")
	assert.Equal(t, 1, env.countTx(t, w.ID, domain.TransactionTypeCredit))
}

func TestLedger_Post_InsufficientFundsWritesNothing(t *testing.T) {
	env := newLedgerEnv(t)
	w := env.seed(t, workerOwner(), 1000)

	err := env.store.WithinTx(context.Background(), func(ctx context.Context) error {
		_, err := env.ledger.Post(ctx, &domain.Transaction{
			WalletID: w.ID,
			Type:     domain.TransactionTypePayout,
			Amount:   1001,
		})
		return err
	})
	assertAppError(t, err, "FUND_001")

	assert.Equal(t, int64(1000), env.wallet(t, w.ID).Balance)
	assert.Equal(t, 0, env.countTx(t, w.ID, domain.TransactionTypePayout))
	env.assertReconstructs(t, w.ID)
}

func TestLedger_Settle(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()
	w, err := env.ledger.Wallet(ctx, businessOwner())
	require.NoError(t, err)

	credit := &domain.Transaction{
		WalletID: w.ID,
		Type:     domain.TransactionTypeCredit,
		Amount:   500000,
		Status:   domain.TransactionStatusPending,
	}
	require.NoError(t, env.store.WithinTx(ctx, func(ctx context.Context) error {
		return env.ledger.Append(ctx, credit)
	}))
	assert.Equal(t, int64(0), env.wallet(t, w.ID).Balance, "pending credit is not spendable")

	settle := func(target domain.TransactionStatus) (domain.TransitionOutcome, error) {
		var outcome domain.TransitionOutcome
		err := env.store.WithinTx(ctx, func(ctx context.Context) error {
			var err error
			_, outcome, err = env.ledger.Settle(ctx, credit.ID, target)
			return err
		})
		return outcome, err
	}

	outcome, err := settle(domain.TransactionStatusSuccess)
	require.NoError(t, err)
	assert.Equal(t, domain.TransitionApply, outcome)
	assert.Equal(t, int64(500000), env.wallet(t, w.ID).Balance)

	outcome, err = settle(domain.TransactionStatusSuccess)
	require.NoError(t, err)
	assert.Equal(t, domain.TransitionReplay, outcome)
	assert.Equal(t, int64(500000), env.wallet(t, w.ID).Balance)

	outcome, err = settle(domain.TransactionStatusPending)
	require.NoError(t, err)
	assert.Equal(t, domain.TransitionIgnore, outcome)

	_, err = settle(domain.TransactionStatusFailed)
	assertAppError(t, err, "CONS_001")
	assert.Equal(t, int64(500000), env.wallet(t, w.ID).Balance)

	env.assertReconstructs(t, w.ID)
}

func TestLedger_EarnMovesThroughPending(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()
	w, err := env.ledger.Wallet(ctx, workerOwner())
	require.NoError(t, err)

	earn := &domain.Transaction{
		WalletID: w.ID,
		Type:     domain.TransactionTypeEarn,
		Amount:   70000,
		Status:   domain.TransactionStatusPending,
	}
	require.NoError(t, env.store.WithinTx(ctx, func(ctx context.Context) error {
		return env.ledger.Append(ctx, earn)
	}))
	assert.Equal(t, int64(70000), env.wallet(t, w.ID).PendingBalance)

	require.NoError(t, env.store.WithinTx(ctx, func(ctx context.Context) error {
		if _, _, err := env.ledger.Settle(ctx, earn.ID, domain.TransactionStatusSuccess); err != nil {
			return err
		}
		_, err := env.ledger.Post(ctx, &domain.Transaction{WalletID: w.ID, Type: domain.TransactionTypeRelease, Amount: 70000})
		return err
	}))

	got := env.wallet(t, w.ID)
	assert.Equal(t, int64(0), got.PendingBalance)
	assert.Equal(t, int64(70000), got.Balance)
	env.assertReconstructs(t, w.ID)
}

func TestLedger_Reconstruct_DriftRaisesIncident(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()
	w := env.seed(t, workerOwner(), 150000)

	// Write around the ledger to simulate a torn write.
	_, err := env.repos.Wallets.ApplyDelta(ctx, w.ID, 1, 0)
	require.NoError(t, err)

	audit, err := env.ledger.Reconstruct(ctx, w.ID)
	require.NoError(t, err)
	assert.False(t, audit.Consistent)
	assert.Equal(t, int64(150001), audit.Balance)
	assert.Equal(t, int64(150000), audit.LogBalance)

	incidents := env.openIncidents(t)
	require.Len(t, incidents, 1)
	assert.Equal(t, "CONS_003", incidents[0].Code)
	assert.Equal(t, w.ID.String(), incidents[0].ResourceID)
	assert.Equal(t, int64(150001), env.wallet(t, w.ID).Balance, "drift is never auto-corrected")
}

func TestLedger_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	env := newLedgerEnv(t)
	w := env.seed(t, workerOwner(), 100000)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := env.store.WithinTx(context.Background(), func(ctx context.Context) error {
				_, err := env.ledger.Post(ctx, &domain.Transaction{WalletID: w.ID, Type: domain.TransactionTypeDebit, Amount: 30000})
				return err
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	assert.Equal(t, int64(10000), env.wallet(t, w.ID).Balance)
	env.assertReconstructs(t, w.ID)
}
