package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/callwave/callwave/domain"
	"github.com/callwave/callwave/voicesession"
)

func newTestSession(callID string) *voicesession.Session {
	return voicesession.New(voicesession.DefaultConfig(), &domain.Call{ID: callID}, nil, nil, nil, nil, nil, nil, nil)
}

func TestRegistryRegisterThenGetReturnsSession(t *testing.T) {
	r := New()
	session := newTestSession("call-1")
	r.Register("call-1", session)

	got, ok := r.Get("call-1")
	assert.True(t, ok)
	assert.Same(t, session, got)
}

func TestRegistryGetMissingReturnsFalse(t *testing.T) {
	r := New()
	_, ok := r.Get("missing")
	assert.False(t, ok)
}

func TestRegistryUnregisterRemovesSession(t *testing.T) {
	r := New()
	r.Register("call-1", newTestSession("call-1"))
	r.Unregister("call-1")

	_, ok := r.Get("call-1")
	assert.False(t, ok)
}

func TestRegistryCountReflectsRegisteredSessions(t *testing.T) {
	r := New()
	assert.Equal(t, 0, r.Count())
	r.Register("call-1", newTestSession("call-1"))
	r.Register("call-2", newTestSession("call-2"))
	assert.Equal(t, 2, r.Count())
	r.Unregister("call-1")
	assert.Equal(t, 1, r.Count())
}

func TestRegistryIDsReturnsAllRegisteredIDs(t *testing.T) {
	r := New()
	r.Register("call-1", newTestSession("call-1"))
	r.Register("call-2", newTestSession("call-2"))

	ids := r.IDs()
	assert.ElementsMatch(t, []string{"call-1", "call-2"}, ids)
}
