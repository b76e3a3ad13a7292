// Package registry holds the process-local mapping from session id to live
// Voice Session, per spec.md §5: mutation is single-writer per key (the
// owning session registers and unregisters itself), while webhook and
// control-surface paths only ever read.
package registry

import (
	"sync"

	"github.com/callwave/callwave/voicesession"
)

// Registry is a concurrent-safe session id -> *voicesession.Session map.
// Unlike the teacher's messaging.Registry, this is not a package-level
// singleton reached via sync.Once: the REST control surface and the
// telephony WS handler both need the same instance, and this repo wires
// shared state through constructors (see outbound.Controller, pool.Pool)
// rather than globals, so one *Registry is constructed in cmd/server and
// passed to whatever needs it.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*voicesession.Session
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{sessions: make(map[string]*voicesession.Session)}
}

// Register adds session under id, the call's own id. Only the goroutine
// that owns the session (its Start/Run caller) should call this.
func (r *Registry) Register(id string, session *voicesession.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = session
}

// Unregister removes id. Only the owning session should call this, once its
// Run loop has returned and Close has completed.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Get returns the Session registered under id, if any. Safe to call from
// any goroutine; never mutates the returned Session itself.
func (r *Registry) Get(id string) (*voicesession.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	return session, ok
}

// Count returns the number of currently registered sessions, for the
// /stats control-surface endpoint.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// IDs returns a snapshot of every registered session id.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}
