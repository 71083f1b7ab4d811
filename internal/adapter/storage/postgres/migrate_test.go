package postgres

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_AppliesPendingMigrations(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("migrations/001_ledger.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS wallets").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO schema_migrations").
		WithArgs("migrations/001_ledger.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, Migrate(context.Background(), mock, testLogger()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_SkipsAppliedMigrations(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("migrations/001_ledger.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	require.NoError(t, Migrate(context.Background(), mock, testLogger()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrationSchemaGuardsInvariants(t *testing.T) {
	body, err := migrationFiles.ReadFile("migrations/001_ledger.sql")
	require.NoError(t, err)
	schema := string(body)

	assert.Contains(t, schema, "CHECK (balance >= 0)")
	assert.Contains(t, schema, "CHECK (pending_balance >= 0)")
	assert.Contains(t, schema, "booking_id         UUID        NOT NULL UNIQUE")
	assert.Contains(t, schema, "UNIQUE (worker_id, client_request_id)")
	assert.Contains(t, schema, "external_id        TEXT        NOT NULL UNIQUE")
}
