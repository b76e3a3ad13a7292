package scheduler

import (
	"context"
	"sync"

	"github.com/callwave/callwave/domain"
	"github.com/callwave/callwave/errs"
	"github.com/callwave/callwave/state"
)

// StateJobStore is the durable JobStore named in JobStore's doc comment: it
// stores each domain.ScheduledCall as a JSON value in a
// state.Store (typically the postgres provider) under a
// "scheduled_call:<id>" key, plus a per-status index key so List doesn't
// need a full table scan.
//
// CompareAndSetStatus serializes through an in-process mutex rather than a
// database-level CAS: state.Store's Get/Set pair isn't itself atomic, and
// every scheduler activity in this process already funnels through the
// same StateJobStore (via Activities.Store), so a single mutex gives the same effective guarantee the
// workflow needs (at most one activity transitions a given scheduled call
// at a time) without pushing optimistic-concurrency columns into the
// generic state schema.
type StateJobStore struct {
	mu    sync.Mutex
	store state.Store
}

// NewStateJobStore wraps store as a JobStore.
func NewStateJobStore(store state.Store) *StateJobStore {
	return &StateJobStore{store: store}
}

func jobKey(id string) string {
	return state.ScopedKey(state.ScopeGlobal, "scheduled_call:"+id)
}

func statusIndexKey(status domain.ScheduledStatus) string {
	return state.ScopedKey(state.ScopeGlobal, "scheduled_call_index:"+string(status))
}

func (s *StateJobStore) Get(ctx context.Context, id string) (domain.ScheduledCall, error) {
	const op = "scheduler.StateJobStore.Get"
	value, err := s.store.Get(ctx, jobKey(id))
	if err != nil {
		return domain.ScheduledCall{}, errs.Wrap(op, errs.Internal, err)
	}
	sc, ok, err := decodeScheduledCall(value)
	if err != nil {
		return domain.ScheduledCall{}, errs.Wrap(op, errs.Internal, err)
	}
	if !ok {
		return domain.ScheduledCall{}, errs.New(op, errs.NotFound, "scheduled call not found: "+id)
	}
	return sc, nil
}

func (s *StateJobStore) Put(ctx context.Context, sc domain.ScheduledCall) error {
	const op = "scheduler.StateJobStore.Put"
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(ctx, op, sc)
}

// put assumes s.mu is already held.
func (s *StateJobStore) put(ctx context.Context, op string, sc domain.ScheduledCall) error {
	if previous, ok, err := decodeScheduledCall(mustGet(ctx, s.store, jobKey(sc.ID))); err == nil && ok && previous.Status != sc.Status {
		if err := s.removeFromIndex(ctx, previous.Status, sc.ID); err != nil {
			return errs.Wrap(op, errs.Internal, err)
		}
	}
	if err := s.store.Set(ctx, jobKey(sc.ID), encodeScheduledCall(sc)); err != nil {
		return errs.Wrap(op, errs.Internal, err)
	}
	if err := s.addToIndex(ctx, sc.Status, sc.ID); err != nil {
		return errs.Wrap(op, errs.Internal, err)
	}
	return nil
}

func mustGet(ctx context.Context, store state.Store, key string) any {
	value, err := store.Get(ctx, key)
	if err != nil {
		return nil
	}
	return value
}

func (s *StateJobStore) CompareAndSetStatus(ctx context.Context, id string, expected, next domain.ScheduledStatus) (bool, error) {
	const op = "scheduler.StateJobStore.CompareAndSetStatus"
	s.mu.Lock()
	defer s.mu.Unlock()

	value, err := s.store.Get(ctx, jobKey(id))
	if err != nil {
		return false, errs.Wrap(op, errs.Internal, err)
	}
	sc, ok, err := decodeScheduledCall(value)
	if err != nil {
		return false, errs.Wrap(op, errs.Internal, err)
	}
	if !ok {
		return false, errs.New(op, errs.NotFound, "scheduled call not found: "+id)
	}
	if sc.Status != expected {
		return false, nil
	}
	sc.Status = next
	if err := s.put(ctx, op, sc); err != nil {
		return false, err
	}
	return true, nil
}

func (s *StateJobStore) List(ctx context.Context, status domain.ScheduledStatus) ([]domain.ScheduledCall, error) {
	const op = "scheduler.StateJobStore.List"
	value, err := s.store.Get(ctx, statusIndexKey(status))
	if err != nil {
		return nil, errs.Wrap(op, errs.Internal, err)
	}
	ids := decodeIndex(value)

	out := make([]domain.ScheduledCall, 0, len(ids))
	for _, id := range ids {
		sc, err := s.Get(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, sc)
	}
	return out, nil
}

func (s *StateJobStore) addToIndex(ctx context.Context, status domain.ScheduledStatus, id string) error {
	value, err := s.store.Get(ctx, statusIndexKey(status))
	if err != nil {
		return err
	}
	ids := decodeIndex(value)
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	ids = append(ids, id)
	return s.store.Set(ctx, statusIndexKey(status), encodeIndex(ids))
}

func (s *StateJobStore) removeFromIndex(ctx context.Context, status domain.ScheduledStatus, id string) error {
	value, err := s.store.Get(ctx, statusIndexKey(status))
	if err != nil {
		return err
	}
	ids := decodeIndex(value)
	filtered := ids[:0]
	for _, existing := range ids {
		if existing != id {
			filtered = append(filtered, existing)
		}
	}
	return s.store.Set(ctx, statusIndexKey(status), encodeIndex(filtered))
}
