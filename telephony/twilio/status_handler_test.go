package twilio

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callwave/callwave/domain"
	"github.com/callwave/callwave/o11y"
)

type fakeOutboundTracker struct {
	calls       map[string]*domain.Call // keyed by ProviderCallSID
	terminalIDs []string
}

func newFakeOutboundTracker(calls ...*domain.Call) *fakeOutboundTracker {
	f := &fakeOutboundTracker{calls: make(map[string]*domain.Call)}
	for _, c := range calls {
		f.calls[c.ProviderCallSID] = c
	}
	return f
}

func (f *fakeOutboundTracker) FindByProviderCallSID(sid string) (*domain.Call, bool) {
	c, ok := f.calls[sid]
	return c, ok
}

func (f *fakeOutboundTracker) MarkTerminal(callID string) {
	f.terminalIDs = append(f.terminalIDs, callID)
}

func postStatusWebhook(t *testing.T, h *StatusWebhookHandler, secret []byte, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/telephony/status", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, sign(secret, body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStatusWebhookHandlerRejectsBadSignature(t *testing.T) {
	call := &domain.Call{ID: "call-1", ProviderCallSID: "CA123", State: domain.CallRinging}
	tracker := newFakeOutboundTracker(call)
	h := NewStatusWebhookHandler([]byte("secret"), tracker, o11y.NewLogger())

	body := []byte(`{"CallSid":"CA123","CallStatus":"completed"}`)
	req := httptest.NewRequest(http.MethodPost, "/telephony/status", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, "0000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, tracker.terminalIDs)
}

func TestStatusWebhookHandlerInProgressTransitionsToListening(t *testing.T) {
	secret := []byte("secret")
	call := &domain.Call{ID: "call-1", ProviderCallSID: "CA123", State: domain.CallRinging}
	tracker := newFakeOutboundTracker(call)
	h := NewStatusWebhookHandler(secret, tracker, o11y.NewLogger())

	body := []byte(`{"CallSid":"CA123","CallStatus":"in-progress"}`)
	rec := postStatusWebhook(t, h, secret, body)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, domain.CallListening, call.State)
	assert.Empty(t, tracker.terminalIDs)
}

func TestStatusWebhookHandlerCompletedMarksTerminal(t *testing.T) {
	secret := []byte("secret")
	call := &domain.Call{ID: "call-1", ProviderCallSID: "CA123", State: domain.CallListening}
	tracker := newFakeOutboundTracker(call)
	h := NewStatusWebhookHandler(secret, tracker, o11y.NewLogger())

	body := []byte(`{"CallSid":"CA123","CallStatus":"completed","CallDuration":"42"}`)
	rec := postStatusWebhook(t, h, secret, body)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, domain.CallEnded, call.State)
	assert.Equal(t, []string{"call-1"}, tracker.terminalIDs)
}

func TestStatusWebhookHandlerNoAnswerSetsFailureReasonAndTerminal(t *testing.T) {
	secret := []byte("secret")
	call := &domain.Call{ID: "call-1", ProviderCallSID: "CA123", State: domain.CallRinging}
	tracker := newFakeOutboundTracker(call)
	h := NewStatusWebhookHandler(secret, tracker, o11y.NewLogger())

	body := []byte(`{"CallSid":"CA123","CallStatus":"no-answer"}`)
	rec := postStatusWebhook(t, h, secret, body)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, domain.CallEnded, call.State)
	assert.Equal(t, string(domain.FailureNoAnswer), call.FailureReason)
}

func TestStatusWebhookHandlerUnknownCallSidIsANoop(t *testing.T) {
	secret := []byte("secret")
	tracker := newFakeOutboundTracker()
	h := NewStatusWebhookHandler(secret, tracker, o11y.NewLogger())

	body := []byte(`{"CallSid":"CA999","CallStatus":"completed"}`)
	rec := postStatusWebhook(t, h, secret, body)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, tracker.terminalIDs)
}
