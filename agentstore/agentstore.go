// Package agentstore is the durable `agents` table from spec.md §6's
// "Persisted state layout": Agent configuration (persona, greeting, model
// selection, TTS voice, end-call phrases, knowledge base binding) keyed by
// agent id, backed by a state.Store the same way scheduler.StateJobStore
// backs Scheduled Call persistence.
package agentstore

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/callwave/callwave/domain"
	"github.com/callwave/callwave/errs"
	"github.com/callwave/callwave/state"
)

// Store is an Agent repository and implements outbound.AgentLookup directly
// (Lookup treats Active==false the same as "disabled"), so the Outbound
// Controller can depend on it without an adapter.
type Store struct {
	mu    sync.Mutex
	store state.Store
}

// New wraps store as an agent repository.
func New(store state.Store) *Store {
	return &Store{store: store}
}

type record struct {
	Agent  domain.Agent
	Active bool
}

func agentKey(id string) string {
	return state.ScopedKey(state.ScopeGlobal, "agent:"+id)
}

// Put creates or replaces an Agent's configuration.
func (s *Store) Put(ctx context.Context, agent domain.Agent, active bool) error {
	const op = "agentstore.Store.Put"
	raw, err := json.Marshal(record{Agent: agent, Active: active})
	if err != nil {
		return errs.Wrap(op, errs.Internal, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Set(ctx, agentKey(agent.ID), string(raw)); err != nil {
		return errs.Wrap(op, errs.Internal, err)
	}
	return nil
}

// SetActive flips an Agent's active flag without touching its
// configuration, for a pause/resume control surface action.
func (s *Store) SetActive(ctx context.Context, agentID string, active bool) error {
	const op = "agentstore.Store.SetActive"
	s.mu.Lock()
	defer s.mu.Unlock()

	value, err := s.store.Get(ctx, agentKey(agentID))
	if err != nil {
		return errs.Wrap(op, errs.Internal, err)
	}
	rec, ok := decodeRecord(value)
	if !ok {
		return errs.New(op, errs.NotFound, "agent not found: "+agentID)
	}
	rec.Active = active
	raw, err := json.Marshal(rec)
	if err != nil {
		return errs.Wrap(op, errs.Internal, err)
	}
	return s.store.Set(ctx, agentKey(agentID), string(raw))
}

// Lookup implements outbound.AgentLookup.
func (s *Store) Lookup(ctx context.Context, agentID string) (domain.Agent, bool, error) {
	const op = "agentstore.Store.Lookup"
	value, err := s.store.Get(ctx, agentKey(agentID))
	if err != nil {
		return domain.Agent{}, false, errs.Wrap(op, errs.Internal, err)
	}
	rec, ok := decodeRecord(value)
	if !ok {
		return domain.Agent{}, false, errs.New(op, errs.NotFound, "agent not found: "+agentID)
	}
	return rec.Agent, rec.Active, nil
}

func decodeRecord(value any) (record, bool) {
	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return record{}, false
	}
	if raw == "" {
		return record{}, false
	}
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return record{}, false
	}
	return rec, true
}
