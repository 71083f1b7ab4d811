package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const bankAccountColumns = `id, worker_id, bank_code, account_number_enc, account_holder, is_default, created_at`

// BankAccountRepo implements ports.BankAccountRepository. Account numbers are
// stored encrypted; this layer never sees plaintext.
type BankAccountRepo struct {
	pool       Pool
	transactor *Transactor
}

// NewBankAccountRepo creates a new BankAccountRepo.
func NewBankAccountRepo(pool Pool, transactor *Transactor) *BankAccountRepo {
	return &BankAccountRepo{pool: pool, transactor: transactor}
}

// Create inserts an account. A new default demotes the worker's previous one
// in the same unit of work.
func (r *BankAccountRepo) Create(ctx context.Context, a *domain.BankAccount) error {
	return r.transactor.WithinTx(ctx, func(ctx context.Context) error {
		db := conn(ctx, r.pool)
		if a.IsDefault {
			if _, err := db.Exec(ctx,
				`UPDATE bank_accounts SET is_default = FALSE WHERE worker_id = $1 AND is_default`, a.WorkerID,
			); err != nil {
				return fmt.Errorf("demote default bank account: %w", err)
			}
		}
		_, err := db.Exec(ctx,
			`INSERT INTO bank_accounts (`+bankAccountColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			a.ID, a.WorkerID, a.BankCode, a.AccountNumberEnc, a.AccountHolder, a.IsDefault, a.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert bank account: %w", err)
		}
		return nil
	})
}

func (r *BankAccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.BankAccount, error) {
	query := `SELECT ` + bankAccountColumns + ` FROM bank_accounts WHERE id = $1`
	return scanBankAccount(conn(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *BankAccountRepo) GetDefault(ctx context.Context, workerID uuid.UUID) (*domain.BankAccount, error) {
	query := `SELECT ` + bankAccountColumns + ` FROM bank_accounts WHERE worker_id = $1 AND is_default`
	return scanBankAccount(conn(ctx, r.pool).QueryRow(ctx, query, workerID))
}

func scanBankAccount(row pgx.Row) (*domain.BankAccount, error) {
	a := &domain.BankAccount{}
	err := row.Scan(&a.ID, &a.WorkerID, &a.BankCode, &a.AccountNumberEnc, &a.AccountHolder, &a.IsDefault, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan bank account: %w", err)
	}
	return a, nil
}
