package server

import (
	"net/http"
	"time"

	"github.com/callwave/callwave/pool"
)

// statsResponse mirrors the observable state spec.md §4.1 calls out:
// active calls, registered sessions, and process uptime.
type statsResponse struct {
	ActiveCalls        int   `json:"activeCalls"`
	RegisteredSessions int   `json:"registeredSessions"`
	UptimeSeconds      int64 `json:"uptimeSeconds"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{
		ActiveCalls:   s.deps.Outbound.ActiveCount(),
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
	}
	if s.deps.Sessions != nil {
		resp.RegisteredSessions = s.deps.Sessions.Count()
	}
	writeData(w, http.StatusOK, resp)
}

// handleStatsPool reports the STT connection pool's observable state
// (§4.1); it degrades to an empty snapshot rather than panicking in a
// deployment that hasn't wired a pool (e.g. a unit test server).
func (s *Server) handleStatsPool(w http.ResponseWriter, r *http.Request) {
	if s.deps.STTPool == nil {
		writeData(w, http.StatusOK, pool.Stats{})
		return
	}
	writeData(w, http.StatusOK, s.deps.STTPool.Stats())
}
