package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callwave/callwave/config"
	"github.com/callwave/callwave/domain"
	"github.com/callwave/callwave/outbound"
	"github.com/callwave/callwave/scheduler"
)

type fakeTelephonyClient struct{ sid string }

func (f *fakeTelephonyClient) PlaceCall(ctx context.Context, req outbound.PlaceCallRequest) (string, error) {
	return f.sid, nil
}

type fakeAgentLookup struct {
	agent  domain.Agent
	active bool
}

func (f *fakeAgentLookup) Lookup(ctx context.Context, agentID string) (domain.Agent, bool, error) {
	return f.agent, f.active, nil
}

func testController() *outbound.Controller {
	return outbound.New(&fakeTelephonyClient{sid: "CA1"},
		&fakeAgentLookup{agent: domain.Agent{ID: "agent-1"}, active: true}, "+15550001111",
		outbound.WithRateLimiter(outbound.NewRateLimiter(100000, 100000, 0)),
		outbound.WithCircuitBreaker(outbound.NewCircuitBreaker(100000, time.Hour)))
}

type fakeSchedulerClient struct {
	scheduled   []domain.ScheduledCall
	cancelled   []string
	rescheduled []domain.ScheduledCall
}

func (f *fakeSchedulerClient) Schedule(ctx context.Context, sc domain.ScheduledCall) error {
	f.scheduled = append(f.scheduled, sc)
	return nil
}

func (f *fakeSchedulerClient) Cancel(ctx context.Context, id string) error {
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeSchedulerClient) Reschedule(ctx context.Context, sc domain.ScheduledCall) error {
	f.rescheduled = append(f.rescheduled, sc)
	return nil
}

func testServer(t *testing.T) (*Server, *fakeSchedulerClient, scheduler.JobStore) {
	t.Helper()
	sched := &fakeSchedulerClient{}
	jobs := scheduler.NewInMemoryJobStore()
	cfg := config.Config{}
	cfg.FeatureFlag.OutboundPercentage = 100
	s := New(cfg, Deps{
		Outbound:  testController(),
		Scheduler: sched,
		Jobs:      jobs,
	})
	return s, sched, jobs
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlePlaceOutboundCallCreatesCall(t *testing.T) {
	s, _, _ := testServer(t)
	rec := doRequest(t, s.Handler(), http.MethodPost, "/calls/outbound", placeOutboundCallRequest{
		Phone: "+15550002222", AgentID: "agent-1", UserID: "user-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestHandlePlaceOutboundCallRejectsDisabledFeatureFlag(t *testing.T) {
	s, _, _ := testServer(t)
	s.cfg.FeatureFlag.OutboundPercentage = 0

	rec := doRequest(t, s.Handler(), http.MethodPost, "/calls/outbound", placeOutboundCallRequest{
		Phone: "+15550002222", AgentID: "agent-1", UserID: "user-1",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandleGetCallReturnsNotFoundForUnknownID(t *testing.T) {
	s, _, _ := testServer(t)
	rec := doRequest(t, s.Handler(), http.MethodGet, "/calls/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetCallReturnsCallAfterPlacement(t *testing.T) {
	s, _, _ := testServer(t)
	createRec := doRequest(t, s.Handler(), http.MethodPost, "/calls/outbound", placeOutboundCallRequest{
		Phone: "+15550002222", AgentID: "agent-1", UserID: "user-1",
	})
	var created envelope
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))
	call := created.Data.(map[string]any)
	id := call["ID"].(string)

	rec := doRequest(t, s.Handler(), http.MethodGet, "/calls/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleScheduleCreatesScheduledCall(t *testing.T) {
	s, sched, jobs := testServer(t)
	future := time.Now().Add(24 * time.Hour).Format(time.RFC3339)

	rec := doRequest(t, s.Handler(), http.MethodPost, "/schedule", scheduleRequest{
		Phone: "+15550002222", AgentID: "agent-1", UserID: "user-1",
		ScheduledAt: future, Timezone: "UTC",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, sched.scheduled, 1)

	stored, err := jobs.Get(context.Background(), sched.scheduled[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ScheduledPending, stored.Status)
}

func TestHandleScheduleRejectsPastTime(t *testing.T) {
	s, _, _ := testServer(t)
	past := time.Now().Add(-time.Hour).Format(time.RFC3339)

	rec := doRequest(t, s.Handler(), http.MethodPost, "/schedule", scheduleRequest{
		Phone: "+15550002222", AgentID: "agent-1", ScheduledAt: past, Timezone: "UTC",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleListScheduledCallsFiltersByUserID(t *testing.T) {
	s, _, jobs := testServer(t)
	ctx := context.Background()
	require.NoError(t, jobs.Put(ctx, domain.ScheduledCall{ID: "sc-1", UserID: "user-1", Status: domain.ScheduledPending}))
	require.NoError(t, jobs.Put(ctx, domain.ScheduledCall{ID: "sc-2", UserID: "user-2", Status: domain.ScheduledPending}))

	rec := doRequest(t, s.Handler(), http.MethodGet, "/scheduled-calls?userId=user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	data := resp.Data.([]any)
	require.Len(t, data, 1)
}

func TestHandleCancelScheduledCallTransitionsStatus(t *testing.T) {
	s, sched, jobs := testServer(t)
	ctx := context.Background()
	require.NoError(t, jobs.Put(ctx, domain.ScheduledCall{ID: "sc-1", Status: domain.ScheduledPending}))

	rec := doRequest(t, s.Handler(), http.MethodPost, "/scheduled-calls/sc-1/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, sched.cancelled, "sc-1")

	stored, err := jobs.Get(ctx, "sc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ScheduledCancelled, stored.Status)
}

func TestHandleStatsReportsActiveCalls(t *testing.T) {
	s, _, _ := testServer(t)
	doRequest(t, s.Handler(), http.MethodPost, "/calls/outbound", placeOutboundCallRequest{
		Phone: "+15550002222", AgentID: "agent-1", UserID: "user-1",
	})

	rec := doRequest(t, s.Handler(), http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(1), data["activeCalls"])
}

func TestHealthEndpointReturnsHealthy(t *testing.T) {
	s, _, _ := testServer(t)
	rec := doRequest(t, s.Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
