package twilio

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/callwave/callwave/domain"
	"github.com/callwave/callwave/o11y"
)

// OutboundTracker is the subset of outbound.Controller the status-webhook
// handler needs: resolving a provider CallSid back to the Call record this
// orchestrator produced, and freeing its concurrency slot once the call
// reaches a terminal status.
type OutboundTracker interface {
	FindByProviderCallSID(sid string) (*domain.Call, bool)
	MarkTerminal(callID string)
}

// StatusWebhookHandler verifies and applies inbound telephony status
// webhooks (spec.md §6's "Telephony status webhook"), driving a Call's
// state past CallRinging as the provider reports it answered, busy, failed,
// or completed.
type StatusWebhookHandler struct {
	secret   []byte
	outbound OutboundTracker
	logger   *o11y.Logger
}

// NewStatusWebhookHandler constructs a StatusWebhookHandler. secret is the
// per-account webhook signing secret; outbound resolves/updates Calls this
// orchestrator's Outbound Controller produced.
func NewStatusWebhookHandler(secret []byte, outbound OutboundTracker, logger *o11y.Logger) *StatusWebhookHandler {
	if logger == nil {
		logger = o11y.NewLogger()
	}
	return &StatusWebhookHandler{secret: secret, outbound: outbound, logger: logger}
}

type statusWebhookBody struct {
	CallSid      string `json:"CallSid"`
	CallStatus   string `json:"CallStatus"`
	CallDuration string `json:"CallDuration,omitempty"`
	RecordingURL string `json:"RecordingUrl,omitempty"`
}

// ServeHTTP implements http.Handler. It reads the raw body first so
// signature verification covers exactly the bytes delivered, per spec.md
// §6's "HMAC-SHA256 over the raw body".
func (h *StatusWebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if err := VerifySignature(h.secret, body, r.Header.Get(SignatureHeader)); err != nil {
		h.logger.Warn(ctx, "telephony status webhook signature verification failed", "error", err)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var parsed statusWebhookBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}

	event := StatusEvent{
		CallSID:      parsed.CallSid,
		CallStatus:   CallStatus(parsed.CallStatus),
		RecordingURL: parsed.RecordingURL,
	}
	if parsed.CallDuration != "" {
		if d, err := strconv.Atoi(parsed.CallDuration); err == nil {
			event.CallDuration = d
		}
	}

	h.apply(ctx, event)
	w.WriteHeader(http.StatusNoContent)
}

// apply updates the Call record matching event.CallSID, if this
// orchestrator's Outbound Controller produced it (inbound calls are driven
// entirely by the media WS, not the status webhook).
func (h *StatusWebhookHandler) apply(ctx context.Context, event StatusEvent) {
	call, ok := h.outbound.FindByProviderCallSID(event.CallSID)
	if !ok {
		// Either an inbound call (status webhook is outbound-only here) or a
		// call this process doesn't own; nothing to update.
		return
	}

	switch event.CallStatus {
	case StatusInitiated, StatusRinging:
		// Already CallRinging from Controller.Initiate's acceptance; no-op.
	case StatusInProgress:
		call.State = domain.CallListening
	case StatusCompleted, StatusBusy, StatusFailed, StatusNoAnswer, StatusCanceled:
		call.State = domain.CallEnded
		call.Duration = durationFromSeconds(event.CallDuration)
		if class, ok := FailureClassForStatus(event.CallStatus); ok {
			call.FailureReason = string(class)
		}
		h.outbound.MarkTerminal(call.ID)
	}

	h.logger.Info(ctx, "telephony status webhook applied", "call_id", call.ID, "provider_call_sid", event.CallSID, "status", event.CallStatus)
}

func durationFromSeconds(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
