package errs

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	e := New("pool.Acquire", ResourceExhausted, "queue is full")
	assert.Contains(t, e.Error(), "pool.Acquire")
	assert.Contains(t, e.Error(), "queue is full")
	assert.Contains(t, e.Error(), string(ResourceExhausted))
}

func TestWrap_PreservesExistingError(t *testing.T) {
	original := New("pool.Acquire", ResourceExhausted, "queue is full").WithCode(CodePoolExhausted)
	wrapped := Wrap("session.Connecting", Internal, original)

	var e *Error
	require.True(t, errors.As(wrapped, &e))
	assert.Equal(t, "session.Connecting", e.Op)
	assert.Equal(t, ResourceExhausted, e.Kind)
	assert.Equal(t, CodePoolExhausted, e.Code)
}

func TestWrap_NewError(t *testing.T) {
	cause := errors.New("connection reset")
	wrapped := Wrap("aiclient.Stream", UpstreamTransient, cause)

	e := As(wrapped)
	require.NotNil(t, e)
	assert.Equal(t, "aiclient.Stream", e.Op)
	assert.Equal(t, UpstreamTransient, e.Kind)
	assert.ErrorIs(t, e.Unwrap(), cause)
}

func TestWrap_Nil(t *testing.T) {
	assert.Nil(t, Wrap("op", Internal, nil))
}

func TestIs(t *testing.T) {
	err := New("outbound.initiate", ResourceExhausted, "cap reached")
	assert.True(t, Is(err, ResourceExhausted))
	assert.False(t, Is(err, Validation))
	assert.False(t, Is(errors.New("plain"), Validation))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(New("x", UpstreamTransient, "")))
	assert.False(t, Retryable(New("x", UpstreamFatal, "")))
	assert.False(t, Retryable(errors.New("plain")))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want int
	}{
		{"validation", New("op", Validation, ""), http.StatusBadRequest},
		{"not found", New("op", NotFound, ""), http.StatusNotFound},
		{"conflict", New("op", Conflict, ""), http.StatusConflict},
		{"resource exhausted default", New("op", ResourceExhausted, ""), http.StatusServiceUnavailable},
		{"concurrency cap", New("op", ResourceExhausted, "").WithCode(CodeConcurrencyCapReached), http.StatusTooManyRequests},
		{"upstream transient", New("op", UpstreamTransient, ""), http.StatusBadGateway},
		{"upstream fatal default", New("op", UpstreamFatal, ""), http.StatusBadGateway},
		{"out of credit", New("op", UpstreamFatal, "").WithCode(CodeOutOfCredit), http.StatusPaymentRequired},
		{"policy rejected", New("op", PolicyRejected, ""), http.StatusForbidden},
		{"internal", New("op", Internal, ""), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatus())
		})
	}
}

func TestWithDetails(t *testing.T) {
	base := New("op", Validation, "bad phone")
	withDetails := base.WithDetails(map[string]any{"field": "to"})
	assert.Nil(t, base.Details)
	assert.Equal(t, "to", withDetails.Details["field"])
}
