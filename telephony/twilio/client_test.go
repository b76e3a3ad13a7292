package twilio

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callwave/callwave/domain"
	"github.com/callwave/callwave/errs"
	"github.com/callwave/callwave/outbound"
)

type fakeCredentialStore struct {
	accountSID, authToken string
	err                   error
}

func (f *fakeCredentialStore) Credential(ctx context.Context, phone string) (string, string, error) {
	if f.err != nil {
		return "", "", f.err
	}
	return f.accountSID, f.authToken, nil
}

func TestClientPlaceCallReturnsProviderCallSID(t *testing.T) {
	var gotAuthUser, gotAuthPass string
	var gotBody connectRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuthUser, gotAuthPass, _ = r.BasicAuth()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(connectResponse{Sid: "CA123"})
	}))
	defer server.Close()

	creds := &fakeCredentialStore{accountSID: "AC1", authToken: "tok1"}
	client := NewClient(creds, "https://orchestrator.example", WithBaseURL(server.URL))

	sid, err := client.PlaceCall(context.Background(), outbound.PlaceCallRequest{
		From: "+15550001111", To: "+15550002222",
		Call: &domain.Call{ID: "call-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "CA123", sid)
	assert.Equal(t, "AC1", gotAuthUser)
	assert.Equal(t, "tok1", gotAuthPass)
	assert.Equal(t, "+15550001111", gotBody.From)
	assert.Equal(t, "+15550002222", gotBody.To)
	assert.Contains(t, gotBody.URL, "call-1")
	assert.Contains(t, gotBody.StatusCallback, "call-1")
}

func TestClientPlaceCallPropagatesCredentialLookupFailure(t *testing.T) {
	creds := &fakeCredentialStore{err: errs.New("op", errs.NotFound, "no credential on file")}
	client := NewClient(creds, "https://orchestrator.example")

	_, err := client.PlaceCall(context.Background(), outbound.PlaceCallRequest{
		From: "+15550001111", To: "+15550002222",
		Call: &domain.Call{ID: "call-1"},
	})
	require.Error(t, err)
	assert.Equal(t, errs.UpstreamFatal, errs.As(err).Kind)
}

func TestClientPlaceCallMapsProviderServerErrorToUpstreamTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	creds := &fakeCredentialStore{accountSID: "AC1", authToken: "tok1"}
	client := NewClient(creds, "https://orchestrator.example", WithBaseURL(server.URL))

	_, err := client.PlaceCall(context.Background(), outbound.PlaceCallRequest{
		From: "+15550001111", To: "+15550002222",
		Call: &domain.Call{ID: "call-1"},
	})
	require.Error(t, err)
	assert.Equal(t, errs.UpstreamTransient, errs.As(err).Kind)
}

func TestClientPlaceCallMapsProviderClientErrorToUpstreamFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	creds := &fakeCredentialStore{accountSID: "AC1", authToken: "tok1"}
	client := NewClient(creds, "https://orchestrator.example", WithBaseURL(server.URL))

	_, err := client.PlaceCall(context.Background(), outbound.PlaceCallRequest{
		From: "+15550001111", To: "+15550002222",
		Call: &domain.Call{ID: "call-1"},
	})
	require.Error(t, err)
	assert.Equal(t, errs.UpstreamFatal, errs.As(err).Kind)
}

func TestClientPlaceCallRejectsMissingSidInResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(connectResponse{})
	}))
	defer server.Close()

	creds := &fakeCredentialStore{accountSID: "AC1", authToken: "tok1"}
	client := NewClient(creds, "https://orchestrator.example", WithBaseURL(server.URL))

	_, err := client.PlaceCall(context.Background(), outbound.PlaceCallRequest{
		From: "+15550001111", To: "+15550002222",
		Call: &domain.Call{ID: "call-1"},
	})
	require.Error(t, err)
}
