package service

import (
	"context"
	"errors"
	"testing"

	"wallet-ledger/internal/adapter/storage/memory"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports/mocks"
	"wallet-ledger/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestIncidentService_Report(t *testing.T) {
	repos := memory.NewStore().Repositories()
	svc := NewIncidentService(repos.Incidents, newTestLogger())

	svc.Report(context.Background(), "reconstruct", "wallet", "w-1", apperror.ErrLedgerMismatch("w-1"))
	svc.Report(context.Background(), "release", "settlement", "s-1", errors.New("lost update"))

	open, err := repos.Incidents.ListOpen(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, open, 2)

	byResource := map[string]domain.ConsistencyIncident{}
	for _, inc := range open {
		byResource[inc.ResourceID] = inc
	}
	assert.Equal(t, "CONS_003", byResource["w-1"].Code)
	assert.Equal(t, "reconstruct", byResource["w-1"].Operation)
	assert.Equal(t, "CONS_000", byResource["s-1"].Code, "plain errors get the generic code")
	assert.Equal(t, "lost update", byResource["s-1"].Detail)
	assert.False(t, byResource["s-1"].Resolved)
}

func TestIncidentService_Report_SurvivesCancelledContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockIncidentRepository(ctrl)
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, inc *domain.ConsistencyIncident) error {
			assert.NoError(t, ctx.Err())
			assert.Equal(t, "CONS_004", inc.Code)
			return nil
		})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	NewIncidentService(repo, newTestLogger()).Report(ctx, "settle", "transaction", "t-1", apperror.ErrNegativeBalance())
}

func TestIncidentService_Report_RepoFailureIsLogged(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockIncidentRepository(ctrl)
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("db down"))

	assert.NotPanics(t, func() {
		NewIncidentService(repo, newTestLogger()).Report(context.Background(), "settle", "transaction", "t-1", errors.New("x"))
	})
}
