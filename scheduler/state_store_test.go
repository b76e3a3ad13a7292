package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callwave/callwave/domain"
	"github.com/callwave/callwave/errs"
	"github.com/callwave/callwave/state"
	"github.com/callwave/callwave/state/providers/inmemory"
)

func newTestStateJobStore() *StateJobStore {
	return NewStateJobStore(inmemory.New())
}

var _ state.Store = (*inmemory.Store)(nil)

func TestStateJobStoreGetMissingReturnsNotFound(t *testing.T) {
	store := newTestStateJobStore()
	_, err := store.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.NotFound))
}

func TestStateJobStorePutThenGetRoundTrips(t *testing.T) {
	store := newTestStateJobStore()
	sc := domain.ScheduledCall{ID: "sc-1", Phone: "+15550001111", Status: domain.ScheduledPending}
	require.NoError(t, store.Put(context.Background(), sc))

	got, err := store.Get(context.Background(), "sc-1")
	require.NoError(t, err)
	assert.Equal(t, sc.ID, got.ID)
	assert.Equal(t, sc.Phone, got.Phone)
	assert.Equal(t, sc.Status, got.Status)
}

func TestStateJobStoreCompareAndSetStatusSucceedsOnMatch(t *testing.T) {
	store := newTestStateJobStore()
	sc := domain.ScheduledCall{ID: "sc-1", Status: domain.ScheduledPending}
	require.NoError(t, store.Put(context.Background(), sc))

	ok, err := store.CompareAndSetStatus(context.Background(), "sc-1", domain.ScheduledPending, domain.ScheduledProcessing)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.Get(context.Background(), "sc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ScheduledProcessing, got.Status)
}

func TestStateJobStoreCompareAndSetStatusFailsOnMismatch(t *testing.T) {
	store := newTestStateJobStore()
	sc := domain.ScheduledCall{ID: "sc-1", Status: domain.ScheduledCompleted}
	require.NoError(t, store.Put(context.Background(), sc))

	ok, err := store.CompareAndSetStatus(context.Background(), "sc-1", domain.ScheduledPending, domain.ScheduledProcessing)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.Get(context.Background(), "sc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ScheduledCompleted, got.Status, "status must be unchanged on CAS mismatch")
}

func TestStateJobStoreListFiltersByStatus(t *testing.T) {
	store := newTestStateJobStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, domain.ScheduledCall{ID: "sc-1", Status: domain.ScheduledPending}))
	require.NoError(t, store.Put(ctx, domain.ScheduledCall{ID: "sc-2", Status: domain.ScheduledCompleted}))
	require.NoError(t, store.Put(ctx, domain.ScheduledCall{ID: "sc-3", Status: domain.ScheduledPending}))

	pending, err := store.List(ctx, domain.ScheduledPending)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	completed, err := store.List(ctx, domain.ScheduledCompleted)
	require.NoError(t, err)
	assert.Len(t, completed, 1)
}

func TestStateJobStoreListReflectsStatusTransition(t *testing.T) {
	store := newTestStateJobStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, domain.ScheduledCall{ID: "sc-1", Status: domain.ScheduledPending}))

	ok, err := store.CompareAndSetStatus(ctx, "sc-1", domain.ScheduledPending, domain.ScheduledCancelled)
	require.NoError(t, err)
	require.True(t, ok)

	pending, err := store.List(ctx, domain.ScheduledPending)
	require.NoError(t, err)
	assert.Empty(t, pending, "sc-1 must drop out of the pending index once cancelled")

	cancelled, err := store.List(ctx, domain.ScheduledCancelled)
	require.NoError(t, err)
	assert.Len(t, cancelled, 1)
}
