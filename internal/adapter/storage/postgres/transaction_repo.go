package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, wallet_id, type, amount, fee_amount, related_type, related_id, status, description, created_at, completed_at`

// TransactionRepo implements ports.TransactionRepository over the append-only log.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create appends a transaction.
func (r *TransactionRepo) Create(ctx context.Context, t *domain.Transaction) error {
	query := `INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := conn(ctx, r.pool).Exec(ctx, query,
		t.ID, t.WalletID, string(t.Type), t.Amount, t.FeeAmount,
		t.RelatedType, t.RelatedID, string(t.Status), t.Description,
		t.CreatedAt, t.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ports.ErrDuplicate
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByID fetches a transaction by its ID.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return scanTransaction(conn(ctx, r.pool).QueryRow(ctx, query, id))
}

// CompleteIfPending is the only mutation the log allows: a pending row takes
// its terminal status once.
func (r *TransactionRepo) CompleteIfPending(ctx context.Context, id uuid.UUID, status domain.TransactionStatus, at time.Time) (bool, error) {
	query := `UPDATE transactions SET status = $2, completed_at = $3 WHERE id = $1 AND status = 'pending'`

	tag, err := conn(ctx, r.pool).Exec(ctx, query, id, string(status), at)
	if err != nil {
		return false, fmt.Errorf("complete transaction: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByWallet returns the wallet's full log in insertion order.
func (r *TransactionRepo) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE wallet_id = $1 ORDER BY created_at, id`

	rows, err := conn(ctx, r.pool).Query(ctx, query, walletID)
	if err != nil {
		return nil, fmt.Errorf("list wallet transactions: %w", err)
	}
	return collectTransactions(rows)
}

// List retrieves a filtered, paginated page, newest first, plus the total count.
func (r *TransactionRepo) List(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, int64, error) {
	conditions := []string{"wallet_id = $1"}
	args := []any{filter.WalletID}
	argIdx := 2

	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argIdx))
		args = append(args, string(*filter.Type))
		argIdx++
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, string(*filter.Status))
		argIdx++
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, *filter.From)
		argIdx++
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argIdx))
		args = append(args, *filter.To)
		argIdx++
	}
	where := strings.Join(conditions, " AND ")
	db := conn(ctx, r.pool)

	var total int64
	if err := db.QueryRow(ctx, "SELECT COUNT(*) FROM transactions WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	offset := (filter.Page - 1) * filter.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM transactions WHERE %s
		ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		transactionColumns, where, argIdx, argIdx+1)
	args = append(args, filter.PageSize, offset)

	rows, err := db.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	txns, err := collectTransactions(rows)
	if err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

// TotalsByType aggregates the wallet's successful transactions per type.
func (r *TransactionRepo) TotalsByType(ctx context.Context, walletID uuid.UUID) ([]domain.TypeTotal, error) {
	query := `SELECT type, COUNT(*), COALESCE(SUM(amount), 0)
		FROM transactions WHERE wallet_id = $1 AND status = 'success'
		GROUP BY type ORDER BY type`

	rows, err := conn(ctx, r.pool).Query(ctx, query, walletID)
	if err != nil {
		return nil, fmt.Errorf("totals by type: %w", err)
	}
	defer rows.Close()

	totals := []domain.TypeTotal{}
	for rows.Next() {
		var (
			typ   string
			total domain.TypeTotal
		)
		if err := rows.Scan(&typ, &total.Count, &total.Amount); err != nil {
			return nil, fmt.Errorf("scan type total: %w", err)
		}
		total.Type = domain.TransactionType(typ)
		totals = append(totals, total)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate type totals: %w", err)
	}
	return totals, nil
}

func collectTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	defer rows.Close()

	txns := []domain.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	var typ, status string
	err := row.Scan(
		&t.ID, &t.WalletID, &typ, &t.Amount, &t.FeeAmount,
		&t.RelatedType, &t.RelatedID, &status, &t.Description,
		&t.CreatedAt, &t.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	t.Type = domain.TransactionType(typ)
	t.Status = domain.TransactionStatus(status)
	return t, nil
}
