package scheduler

import (
	"context"
	"sync"

	"github.com/callwave/callwave/domain"
	"github.com/callwave/callwave/errs"
)

// JobStore is the durable-state seam the scheduler needs: a Scheduled Call
// read/write surface with compare-and-set on Status, so a duplicate
// Temporal activity retry (§5 "Shared-resource policy") is a no-op once a
// job is no longer pending. StateJobStore (state_store.go) is the durable
// implementation over a state.Store; InMemoryJobStore below exists so the
// scheduler's workflow/activity logic is independently testable without a
// database.
type JobStore interface {
	Get(ctx context.Context, id string) (domain.ScheduledCall, error)
	Put(ctx context.Context, sc domain.ScheduledCall) error
	// CompareAndSetStatus sets sc's status to next iff its current status
	// equals expected, returning ok=false (no error) on mismatch.
	CompareAndSetStatus(ctx context.Context, id string, expected, next domain.ScheduledStatus) (ok bool, err error)
	List(ctx context.Context, status domain.ScheduledStatus) ([]domain.ScheduledCall, error)
}

// InMemoryJobStore is a JobStore backed by a mutex-guarded map, matching the
// teacher's usual shape for an in-process registry (map + sync.Mutex +
// check-then-write).
type InMemoryJobStore struct {
	mu   sync.Mutex
	jobs map[string]domain.ScheduledCall
}

// NewInMemoryJobStore constructs an empty InMemoryJobStore.
func NewInMemoryJobStore() *InMemoryJobStore {
	return &InMemoryJobStore{jobs: make(map[string]domain.ScheduledCall)}
}

func (s *InMemoryJobStore) Get(ctx context.Context, id string) (domain.ScheduledCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.jobs[id]
	if !ok {
		return domain.ScheduledCall{}, errs.New(op+".Get", errs.NotFound, "scheduled call not found: "+id)
	}
	return sc, nil
}

func (s *InMemoryJobStore) Put(ctx context.Context, sc domain.ScheduledCall) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[sc.ID] = sc
	return nil
}

func (s *InMemoryJobStore) CompareAndSetStatus(ctx context.Context, id string, expected, next domain.ScheduledStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.jobs[id]
	if !ok {
		return false, errs.New(op+".CompareAndSetStatus", errs.NotFound, "scheduled call not found: "+id)
	}
	if sc.Status != expected {
		return false, nil
	}
	sc.Status = next
	s.jobs[id] = sc
	return true, nil
}

func (s *InMemoryJobStore) List(ctx context.Context, status domain.ScheduledStatus) ([]domain.ScheduledCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ScheduledCall
	for _, sc := range s.jobs {
		if sc.Status == status {
			out = append(out, sc)
		}
	}
	return out, nil
}
