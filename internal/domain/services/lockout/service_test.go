package lockout

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/udaycodespace/enterprise-data-trust-risk-audit/internal/domain/entities"
)

type fakeRepo struct {
	records map[uuid.UUID]*entities.AccountLockout
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[uuid.UUID]*entities.AccountLockout)}
}

func (f *fakeRepo) FindByUser(_ context.Context, userID uuid.UUID) (*entities.AccountLockout, error) {
	return f.records[userID], nil
}

func (f *fakeRepo) RecordFailure(_ context.Context, userID uuid.UUID, now time.Time) (*entities.AccountLockout, error) {
	l, ok := f.records[userID]
	if !ok {
		l = &entities.AccountLockout{UserID: &userID}
		f.records[userID] = l
	}
	l.FailedAttempts++
	l.LastAttemptAt = now
	return l, nil
}

func (f *fakeRepo) Reset(_ context.Context, userID uuid.UUID) error {
	delete(f.records, userID)
	return nil
}

func (f *fakeRepo) Lock(_ context.Context, userID uuid.UUID, until time.Time) error {
	l, ok := f.records[userID]
	if !ok {
		l = &entities.AccountLockout{UserID: &userID}
		f.records[userID] = l
	}
	l.LockedUntil = &until
	return nil
}

func TestCheckLocked_FalseWithNoRecord(t *testing.T) {
	svc := NewService(newFakeRepo(), nil, zap.NewNop())

	locked, err := svc.CheckLocked(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestRecordFailure_LocksAccountAtThreshold(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, zap.NewNop())
	userID := uuid.New()

	for i := 0; i < DefaultFailureThreshold-1; i++ {
		require.NoError(t, svc.RecordFailure(context.Background(), userID))
		locked, err := svc.CheckLocked(context.Background(), userID)
		require.NoError(t, err)
		assert.False(t, locked, "must not lock before crossing the threshold")
	}

	require.NoError(t, svc.RecordFailure(context.Background(), userID))
	locked, err := svc.CheckLocked(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, locked, "must lock on the attempt that crosses the threshold")
}

func TestReset_ClearsLockAndCounter(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, zap.NewNop())
	userID := uuid.New()

	for i := 0; i < DefaultFailureThreshold; i++ {
		require.NoError(t, svc.RecordFailure(context.Background(), userID))
	}
	locked, err := svc.CheckLocked(context.Background(), userID)
	require.NoError(t, err)
	require.True(t, locked)

	require.NoError(t, svc.Reset(context.Background(), userID))

	locked, err = svc.CheckLocked(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, locked)
}
