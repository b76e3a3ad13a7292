package server

import (
	"context"
	"encoding/json"
	"hash/crc32"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/callwave/callwave/errs"
	"github.com/callwave/callwave/outbound"
)

// placeOutboundCallRequest is the body of POST /calls/outbound (§6, §4.9).
type placeOutboundCallRequest struct {
	Phone         string `json:"phone"`
	AgentID       string `json:"agentId"`
	CorrelationID string `json:"correlationId"`
	UserID        string `json:"userId"`
}

func (s *Server) handlePlaceOutboundCall(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req placeOutboundCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	if !featureEnabled(s.cfg.FeatureFlag.OutboundPercentage, req.UserID) {
		writeError(ctx, s.logger, w, errs.New("server.handlePlaceOutboundCall", errs.PolicyRejected,
			"outbound calling is not enabled for this user").WithCode("feature_disabled"))
		return
	}

	call, err := s.deps.Outbound.Initiate(ctx, outbound.InitiateRequest{
		Phone:         req.Phone,
		AgentID:       req.AgentID,
		CorrelationID: req.CorrelationID,
	})
	if err != nil {
		writeError(ctx, s.logger, w, err)
		return
	}
	writeData(w, http.StatusCreated, call)
}

func (s *Server) handleGetCall(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	call, ok := s.deps.Outbound.Get(id)
	if !ok {
		writeError(r.Context(), s.logger, w, errs.New("server.handleGetCall", errs.NotFound, "call not found: "+id))
		return
	}
	writeData(w, http.StatusOK, call)
}

func (s *Server) handleCancelCall(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := s.deps.Outbound.Get(id); !ok {
		writeError(r.Context(), s.logger, w, errs.New("server.handleCancelCall", errs.NotFound, "call not found: "+id))
		return
	}

	if s.deps.Sessions != nil {
		if session, ok := s.deps.Sessions.Get(id); ok {
			// Cooperative: give the in-flight turn its shutdown grace window
			// without blocking the HTTP response on it.
			go session.Close(context.Background())
		}
	}
	writeData(w, http.StatusOK, map[string]string{"id": id, "status": "cancelling"})
}

// featureEnabled implements spec.md §6's `featureFlag.outbound_percentage`
// staged-rollout gate: a deterministic hash of the user id decides
// membership, so the same user always lands on the same side of the gate
// across requests. No pack repo implements a percentage-rollout gate, so
// this is built directly against stdlib hash/crc32 rather than adapted from
// an example.
func featureEnabled(percentage int, userID string) bool {
	if percentage >= 100 {
		return true
	}
	if percentage <= 0 {
		return false
	}
	if userID == "" {
		return false
	}
	return int(crc32.ChecksumIEEE([]byte(userID))%100) < percentage
}
