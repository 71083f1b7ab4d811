package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

type txKey struct{}

// Transactor implements ports.Transactor on a pgx pool. The open pgx.Tx rides
// in the context, so repositories called with that context join it.
type Transactor struct {
	pool Pool
	log  zerolog.Logger
}

// NewTransactor creates a new Transactor wrapping the connection pool.
func NewTransactor(pool Pool, log zerolog.Logger) *Transactor {
	return &Transactor{pool: pool, log: log}
}

// WithinTx runs fn in a transaction. A nested call joins the outer one.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
				t.log.Error().Err(rbErr).Msg("rollback failed")
			}
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// conn returns the transaction carried by ctx, or the pool.
func conn(ctx context.Context, pool Pool) DBTX {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

// forUpdate appends a row lock when ctx carries a transaction. Outside one the
// lock would be released immediately, so it is omitted.
func forUpdate(ctx context.Context, query string) string {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return query + " FOR UPDATE"
	}
	return query
}
