// Package server implements the REST control surface of spec.md §6: the
// synchronous `POST /calls/outbound`, `GET /calls/:id`, scheduling, and
// stats endpoints, plus the telephony-provider-facing media WebSocket
// upgrade and status webhook routes. Adapted from the teacher's
// pkg/server/providers/rest/server.go: the same gorilla/mux router, a
// tracing -> cors -> rate-limit -> logging middleware chain (outermost
// first, see Handler), and the
// same context-driven graceful Start/Stop, generalized from the teacher's
// generic resource/streaming dispatch to this spec's named resources.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"

	"github.com/callwave/callwave/config"
	"github.com/callwave/callwave/domain"
	"github.com/callwave/callwave/o11y"
	"github.com/callwave/callwave/outbound"
	"github.com/callwave/callwave/pool"
	"github.com/callwave/callwave/registry"
	"github.com/callwave/callwave/scheduler"
)

// SchedulerClient is the subset of *scheduler.Client the control surface
// needs, narrowed so handlers are testable without a live Temporal
// connection (mirrors scheduler.CallPlacer's narrowing of
// *outbound.Controller).
type SchedulerClient interface {
	Schedule(ctx context.Context, sc domain.ScheduledCall) error
	Cancel(ctx context.Context, scheduledCallID string) error
	Reschedule(ctx context.Context, sc domain.ScheduledCall) error
}

// Deps are the collaborators the control surface dispatches to. Every field
// is a narrow interface or an already-concurrency-safe type owned
// elsewhere; Server holds no call/schedule state of its own.
type Deps struct {
	Outbound  *outbound.Controller
	Scheduler SchedulerClient
	Jobs      scheduler.JobStore
	Sessions  *registry.Registry
	STTPool   *pool.Pool
	Logger    *o11y.Logger
}

// Server is the REST control surface: one gorilla/mux router, one
// http.Server, started and stopped by the caller's context the same way
// the teacher's rest.Server is.
type Server struct {
	cfg    config.Config
	deps   Deps
	logger *o11y.Logger

	router     *mux.Router
	httpServer *http.Server
	startTime  time.Time

	mu           sync.Mutex
	rateLimiters map[string]*outbound.RateLimiter
}

// New constructs a Server and wires its routes. It does not start listening;
// call Start for that.
func New(cfg config.Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = o11y.NewLogger()
	}
	s := &Server{
		cfg:          cfg,
		deps:         deps,
		logger:       logger,
		router:       mux.NewRouter(),
		startTime:    time.Now(),
		rateLimiters: make(map[string]*outbound.RateLimiter),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix(s.cfg.Server.APIBasePath).Subrouter()
	api.HandleFunc("/calls/outbound", s.handlePlaceOutboundCall).Methods(http.MethodPost)
	api.HandleFunc("/calls/{id}", s.handleGetCall).Methods(http.MethodGet)
	api.HandleFunc("/calls/{id}/cancel", s.handleCancelCall).Methods(http.MethodPost)
	api.HandleFunc("/schedule", s.handleSchedule).Methods(http.MethodPost)
	api.HandleFunc("/scheduled-calls", s.handleListScheduledCalls).Methods(http.MethodGet)
	api.HandleFunc("/scheduled-calls/{id}/cancel", s.handleCancelScheduledCall).Methods(http.MethodPost)
	api.HandleFunc("/scheduled-calls/{id}/reschedule", s.handleRescheduleScheduledCall).Methods(http.MethodPost)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/stats/pool", s.handleStatsPool).Methods(http.MethodGet)
}

// Handler returns the fully middleware-wrapped router, for Start or for a
// caller that wants to host it on its own http.Server (tests, in
// particular).
func (s *Server) Handler() http.Handler {
	handler := http.Handler(s.router)
	handler = s.loggingMiddleware(handler)
	handler = s.rateLimitMiddleware(handler)
	handler = s.corsMiddleware(handler)
	handler = s.tracingMiddleware(handler)
	return handler
}

// RegisterTelephonyStatusHandler wires a status-webhook handler once the
// caller has the shared secret and outbound tracker available; kept out of
// New so cmd/server can assemble the telephony wiring after the Controller
// exists.
func (s *Server) RegisterTelephonyStatusHandler(h http.Handler) {
	s.router.Handle("/telephony/status/{id}", h).Methods(http.MethodPost)
}

// RegisterMediaHandler wires the telephony media WebSocket upgrade path.
func (s *Server) RegisterMediaHandler(h http.Handler) {
	s.router.Handle("/telephony/media/{id}", h).Methods(http.MethodGet)
}

// Start begins serving and blocks until ctx is cancelled or the server
// fails to start, then gracefully shuts down (mirrors the teacher's
// Start/Stop contract in pkg/server/providers/rest/server.go).
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	s.logger.Info(ctx, "starting REST control surface", "host", s.cfg.Server.Host, "port", s.cfg.Server.Port)

	serveErr := make(chan error, 1)
	go func() { serveErr <- s.httpServer.ListenAndServe() }()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		return s.Stop(context.Background())
	}
}

// Stop gracefully shuts the server down, bounded by the configured
// shutdown timeout.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"uptime": time.Since(s.startTime).String(),
	})
}

func (s *Server) tracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := o11y.StartSpan(r.Context(), "server.http_request", o11y.Attrs{})
		defer span.End()
		span.SetAttributes(attribute.String("http.method", r.Method), attribute.String("http.path", r.URL.Path))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		s.logger.Info(r.Context(), "http request",
			"method", r.Method, "path", r.URL.Path, "status", rw.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.Server.EnableCORS {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code
// actually written, for the logging middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
