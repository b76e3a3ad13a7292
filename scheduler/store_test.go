package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callwave/callwave/domain"
	"github.com/callwave/callwave/errs"
)

func TestInMemoryJobStoreGetMissingReturnsNotFound(t *testing.T) {
	store := NewInMemoryJobStore()
	_, err := store.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.NotFound))
}

func TestInMemoryJobStorePutThenGetRoundTrips(t *testing.T) {
	store := NewInMemoryJobStore()
	sc := domain.ScheduledCall{ID: "sc-1", Status: domain.ScheduledPending}
	require.NoError(t, store.Put(context.Background(), sc))

	got, err := store.Get(context.Background(), "sc-1")
	require.NoError(t, err)
	assert.Equal(t, sc, got)
}

func TestInMemoryJobStoreCompareAndSetStatusSucceedsOnMatch(t *testing.T) {
	store := NewInMemoryJobStore()
	sc := domain.ScheduledCall{ID: "sc-1", Status: domain.ScheduledPending}
	require.NoError(t, store.Put(context.Background(), sc))

	ok, err := store.CompareAndSetStatus(context.Background(), "sc-1", domain.ScheduledPending, domain.ScheduledProcessing)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.Get(context.Background(), "sc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ScheduledProcessing, got.Status)
}

func TestInMemoryJobStoreCompareAndSetStatusFailsOnMismatch(t *testing.T) {
	store := NewInMemoryJobStore()
	sc := domain.ScheduledCall{ID: "sc-1", Status: domain.ScheduledCompleted}
	require.NoError(t, store.Put(context.Background(), sc))

	ok, err := store.CompareAndSetStatus(context.Background(), "sc-1", domain.ScheduledPending, domain.ScheduledProcessing)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.Get(context.Background(), "sc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ScheduledCompleted, got.Status, "status must be unchanged on CAS mismatch")
}

func TestInMemoryJobStoreCompareAndSetStatusMissingReturnsNotFound(t *testing.T) {
	store := NewInMemoryJobStore()
	_, err := store.CompareAndSetStatus(context.Background(), "nope", domain.ScheduledPending, domain.ScheduledProcessing)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.NotFound))
}

func TestInMemoryJobStoreListFiltersByStatus(t *testing.T) {
	store := NewInMemoryJobStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, domain.ScheduledCall{ID: "sc-1", Status: domain.ScheduledPending, ScheduledAtUTC: time.Now()}))
	require.NoError(t, store.Put(ctx, domain.ScheduledCall{ID: "sc-2", Status: domain.ScheduledCompleted, ScheduledAtUTC: time.Now()}))
	require.NoError(t, store.Put(ctx, domain.ScheduledCall{ID: "sc-3", Status: domain.ScheduledPending, ScheduledAtUTC: time.Now()}))

	pending, err := store.List(ctx, domain.ScheduledPending)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	completed, err := store.List(ctx, domain.ScheduledCompleted)
	require.NoError(t, err)
	assert.Len(t, completed, 1)
}
