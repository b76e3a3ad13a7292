package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/callwave/callwave/domain"
	"github.com/callwave/callwave/errs"
	"github.com/callwave/callwave/scheduler"
)

type businessHoursRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Days  []int  `json:"days"`
}

type recurrenceRequest struct {
	Unit           string `json:"unit"`
	MaxOccurrences int    `json:"maxOccurrences"`
	EndDate        string `json:"endDate"`
}

// scheduleRequest is the body of POST /schedule (§4.10, §6).
type scheduleRequest struct {
	Phone         string                `json:"phone"`
	AgentID       string                `json:"agentId"`
	UserID        string                `json:"userId"`
	ScheduledAt   string                `json:"scheduledAt"` // RFC3339, interpreted in Timezone
	Timezone      string                `json:"timezone"`
	BusinessHours *businessHoursRequest `json:"businessHours"`
	Recurrence    *recurrenceRequest    `json:"recurrence"`
	CorrelationID string                `json:"correlationId"`
}

func (req scheduleRequest) toDomain() (domain.ScheduledCall, error) {
	const opName = "server.handleSchedule"

	if _, err := scheduler.LoadTimezone(req.Timezone); err != nil {
		return domain.ScheduledCall{}, err
	}
	loc, _ := time.LoadLocation(req.Timezone)

	scheduledAt, err := time.ParseInLocation(time.RFC3339, req.ScheduledAt, loc)
	if err != nil {
		return domain.ScheduledCall{}, errs.New(opName, errs.Validation, "scheduledAt must be RFC3339").
			WithCode(errs.CodeInvalidScheduledTime)
	}
	if scheduledAt.Before(time.Now()) {
		return domain.ScheduledCall{}, errs.New(opName, errs.Validation, "scheduledAt must be in the future").
			WithCode(errs.CodeInvalidScheduledTime)
	}

	sc := domain.ScheduledCall{
		ID:             uuid.New().String(),
		UserID:         req.UserID,
		Phone:          req.Phone,
		AgentID:        req.AgentID,
		ScheduledAtUTC: scheduledAt.UTC(),
		Timezone:       req.Timezone,
		Status:         domain.ScheduledPending,
		Occurrence:     1,
		CorrelationID:  req.CorrelationID,
	}

	if req.BusinessHours != nil {
		days := make([]time.Weekday, 0, len(req.BusinessHours.Days))
		for _, d := range req.BusinessHours.Days {
			days = append(days, time.Weekday(d))
		}
		sc.BusinessHours = &domain.BusinessHoursWindow{
			Start: req.BusinessHours.Start,
			End:   req.BusinessHours.End,
			Days:  days,
		}
	}

	if req.Recurrence != nil {
		rec := &domain.RecurrenceDescriptor{
			Unit:           domain.RecurrenceUnit(req.Recurrence.Unit),
			MaxOccurrences: req.Recurrence.MaxOccurrences,
		}
		if req.Recurrence.EndDate != "" {
			end, err := time.Parse(time.RFC3339, req.Recurrence.EndDate)
			if err != nil {
				return domain.ScheduledCall{}, errs.New(opName, errs.Validation, "recurrence.endDate must be RFC3339")
			}
			rec.EndDate = end
		}
		sc.Recurrence = rec
	}

	return sc, nil
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	sc, err := req.toDomain()
	if err != nil {
		writeError(ctx, s.logger, w, err)
		return
	}

	if err := s.deps.Jobs.Put(ctx, sc); err != nil {
		writeError(ctx, s.logger, w, err)
		return
	}
	if err := s.deps.Scheduler.Schedule(ctx, sc); err != nil {
		writeError(ctx, s.logger, w, err)
		return
	}
	writeData(w, http.StatusCreated, sc)
}

// scheduledCallStatuses enumerates every status, used when a GET
// /scheduled-calls request has no status filter (JobStore.List filters by
// exactly one status at a time).
var scheduledCallStatuses = []domain.ScheduledStatus{
	domain.ScheduledPending, domain.ScheduledProcessing, domain.ScheduledCompleted,
	domain.ScheduledCancelled, domain.ScheduledFailed,
}

func (s *Server) handleListScheduledCalls(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	statuses := scheduledCallStatuses
	if status := q.Get("status"); status != "" {
		statuses = []domain.ScheduledStatus{domain.ScheduledStatus(status)}
	}

	var from, to time.Time
	if v := q.Get("from"); v != "" {
		from, _ = time.Parse(time.RFC3339, v)
	}
	if v := q.Get("to"); v != "" {
		to, _ = time.Parse(time.RFC3339, v)
	}
	userID := q.Get("userId")
	agentID := q.Get("agentId")

	var out []domain.ScheduledCall
	for _, status := range statuses {
		batch, err := s.deps.Jobs.List(ctx, status)
		if err != nil {
			writeError(ctx, s.logger, w, err)
			return
		}
		for _, sc := range batch {
			if userID != "" && sc.UserID != userID {
				continue
			}
			if agentID != "" && sc.AgentID != agentID {
				continue
			}
			if !from.IsZero() && sc.ScheduledAtUTC.Before(from) {
				continue
			}
			if !to.IsZero() && sc.ScheduledAtUTC.After(to) {
				continue
			}
			out = append(out, sc)
		}
	}
	writeData(w, http.StatusOK, out)
}

func (s *Server) handleCancelScheduledCall(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	sc, err := s.deps.Jobs.Get(ctx, id)
	if err != nil {
		writeError(ctx, s.logger, w, err)
		return
	}
	if err := s.deps.Scheduler.Cancel(ctx, id); err != nil {
		writeError(ctx, s.logger, w, err)
		return
	}
	if ok, err := s.deps.Jobs.CompareAndSetStatus(ctx, id, sc.Status, domain.ScheduledCancelled); err != nil {
		writeError(ctx, s.logger, w, err)
		return
	} else if !ok {
		writeData(w, http.StatusOK, map[string]string{"id": id, "status": "already terminal"})
		return
	}
	writeData(w, http.StatusOK, map[string]string{"id": id, "status": string(domain.ScheduledCancelled)})
}

type rescheduleRequest struct {
	ScheduledAt string `json:"scheduledAt"`
	Timezone    string `json:"timezone"`
}

func (s *Server) handleRescheduleScheduledCall(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	sc, err := s.deps.Jobs.Get(ctx, id)
	if err != nil {
		writeError(ctx, s.logger, w, err)
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	tz := req.Timezone
	if tz == "" {
		tz = sc.Timezone
	}
	loc, err := scheduler.LoadTimezone(tz)
	if err != nil {
		writeError(ctx, s.logger, w, err)
		return
	}
	scheduledAt, err := time.ParseInLocation(time.RFC3339, req.ScheduledAt, loc)
	if err != nil {
		writeError(ctx, s.logger, w, errs.New("server.handleRescheduleScheduledCall", errs.Validation,
			"scheduledAt must be RFC3339").WithCode(errs.CodeInvalidScheduledTime))
		return
	}

	sc.ScheduledAtUTC = scheduledAt.UTC()
	sc.Timezone = tz
	sc.Status = domain.ScheduledPending
	if err := s.deps.Jobs.Put(ctx, sc); err != nil {
		writeError(ctx, s.logger, w, err)
		return
	}
	if err := s.deps.Scheduler.Reschedule(ctx, sc); err != nil {
		writeError(ctx, s.logger, w, err)
		return
	}
	writeData(w, http.StatusOK, sc)
}
