// Package outbound implements the Outbound Controller of spec.md §4.9:
// bounded-concurrency, rate-limited, circuit-breaker-protected initiation of
// outbound calls against the telephony provider, with correlation-id
// idempotency. Queueing beyond the concurrency cap is the scheduler's job,
// not this package's; Initiate rejects overflow rather than buffering it.
package outbound

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/callwave/callwave/domain"
	"github.com/callwave/callwave/errs"
	"github.com/callwave/callwave/o11y"
)

// Defaults per spec.md §4.9 / the `outbound.*` configuration keys.
const (
	DefaultMaxConcurrent    = 10
	DefaultRatePerSecond    = 20
	DefaultMinSpacing       = 50 * time.Millisecond
	DefaultBreakerThreshold = 5
	DefaultBreakerOpenFor   = 60 * time.Second
)

// TelephonyClient places an outbound call against the telephony provider.
// It returns the provider's call SID once the provider has accepted the
// request; the provider's status webhook drives every later transition.
type TelephonyClient interface {
	PlaceCall(ctx context.Context, req PlaceCallRequest) (providerCallSID string, err error)
}

// PlaceCallRequest is everything a TelephonyClient needs to start a call.
type PlaceCallRequest struct {
	From string
	To   string
	Call *domain.Call
}

// AgentLookup resolves an Agent by ID and reports whether it is active and
// usable for an outbound call.
type AgentLookup interface {
	Lookup(ctx context.Context, agentID string) (agent domain.Agent, active bool, err error)
}

// InitiateRequest is the input to Initiate, mirroring the
// `POST /calls/outbound` request body of spec.md §6.
type InitiateRequest struct {
	Phone         string
	AgentID       string
	CorrelationID string
}

// Controller is the Outbound Controller: it enforces the concurrency cap,
// paces provider calls through a rate limiter, short-circuits a
// misbehaving provider through a circuit breaker, and dedupes repeated
// correlation ids.
type Controller struct {
	telephony   TelephonyClient
	agents      AgentLookup
	limiter     *RateLimiter
	breaker     *CircuitBreaker
	idempotency *IdempotencyStore
	validate    *validator.Validate
	logger      *o11y.Logger

	maxConcurrent int
	from          string

	mu     sync.Mutex
	calls  map[string]*domain.Call // callID -> Call, every call this controller ever produced
	active map[string]*domain.Call // callID -> Call, currently non-terminal
}

// Option configures a Controller at construction.
type Option func(*Controller)

// WithMaxConcurrent overrides the default concurrency cap.
func WithMaxConcurrent(n int) Option {
	return func(c *Controller) { c.maxConcurrent = n }
}

// WithRateLimiter overrides the default rate limiter.
func WithRateLimiter(l *RateLimiter) Option {
	return func(c *Controller) { c.limiter = l }
}

// WithCircuitBreaker overrides the default circuit breaker.
func WithCircuitBreaker(b *CircuitBreaker) Option {
	return func(c *Controller) { c.breaker = b }
}

// WithIdempotencyStore overrides the default idempotency store.
func WithIdempotencyStore(s *IdempotencyStore) Option {
	return func(c *Controller) { c.idempotency = s }
}

// WithLogger attaches a logger.
func WithLogger(l *o11y.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// New constructs a Controller. from is the caller-id used for every
// outbound call this controller places.
func New(telephony TelephonyClient, agents AgentLookup, from string, opts ...Option) *Controller {
	c := &Controller{
		telephony:     telephony,
		agents:        agents,
		from:          from,
		maxConcurrent: DefaultMaxConcurrent,
		limiter:       NewRateLimiter(DefaultRatePerSecond, DefaultRatePerSecond, DefaultMinSpacing),
		breaker:       NewCircuitBreaker(DefaultBreakerThreshold, DefaultBreakerOpenFor),
		idempotency:   NewIdempotencyStore(DefaultIdempotencyTTL),
		validate:      validator.New(),
		calls:         make(map[string]*domain.Call),
		active:        make(map[string]*domain.Call),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = o11y.NewLogger()
	}
	return c
}

// Initiate starts a new outbound call, or returns the existing Call if
// correlationID was already seen within the idempotency window.
func (c *Controller) Initiate(ctx context.Context, req InitiateRequest) (*domain.Call, error) {
	const op = "outbound.Controller.Initiate"
	ctx, span := o11y.StartSpan(ctx, op, o11y.Attrs{o11y.AttrAgentID: req.AgentID})
	defer span.End()

	if err := c.validate.Var(req.Phone, "e164"); err != nil {
		return nil, errs.New(op, errs.Validation, "phone number is not a valid E.164 value").WithCode(errs.CodeInvalidPhone)
	}

	if existingID, ok := c.idempotency.Lookup(req.CorrelationID); ok {
		c.mu.Lock()
		existing := c.calls[existingID]
		c.mu.Unlock()
		if existing != nil {
			return existing, nil
		}
	}

	agent, active, err := c.agents.Lookup(ctx, req.AgentID)
	if err != nil {
		return nil, errs.Wrap(op, errs.NotFound, err)
	}
	if !active {
		return nil, errs.New(op, errs.Validation, "agent is not active").WithCode(errs.CodeAgentInactive)
	}

	call, err := c.reserveSlot(req, agent)
	if err != nil {
		return nil, err
	}

	winningID, won := c.idempotency.PutIfAbsent(req.CorrelationID, call.ID)
	if !won {
		c.releaseSlot(call.ID)
		c.mu.Lock()
		existing := c.calls[winningID]
		c.mu.Unlock()
		if existing != nil {
			return existing, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		c.failCall(call, "rate limiter wait cancelled")
		return nil, err
	}

	var sid string
	callErr := c.breaker.Call(func() error {
		var placeErr error
		sid, placeErr = c.telephony.PlaceCall(ctx, PlaceCallRequest{From: c.from, To: req.Phone, Call: call})
		return placeErr
	})
	if callErr != nil {
		c.logger.Warn(ctx, "outbound call placement failed", "call_id", call.ID, "error", callErr)
		c.failCall(call, callErr.Error())
		return call, errs.Wrap(op, classifyPlacementError(callErr), callErr)
	}

	c.mu.Lock()
	call.ProviderCallSID = sid
	call.State = domain.CallRinging
	c.mu.Unlock()

	return call, nil
}

// reserveSlot admits a new Call against the concurrency cap, or returns
// ConcurrencyCapReached.
func (c *Controller) reserveSlot(req InitiateRequest, agent domain.Agent) (*domain.Call, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.active) >= c.maxConcurrent {
		return nil, errs.New("outbound.Controller.Initiate", errs.ResourceExhausted, "concurrency cap reached").WithCode(errs.CodeConcurrencyCapReached)
	}

	call := &domain.Call{
		ID:            newCallID(),
		Direction:     domain.Outbound,
		From:          c.from,
		To:            req.Phone,
		AgentID:       req.AgentID,
		State:         domain.CallConnecting,
		StartedAt:     timeNow(),
		AgentSnapshot: agent,
		CorrelationID: req.CorrelationID,
	}
	c.calls[call.ID] = call
	c.active[call.ID] = call
	return call, nil
}

// releaseSlot removes callID from the active set without marking it failed
// (used when idempotency resolves to a different, already-winning call).
func (c *Controller) releaseSlot(callID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, callID)
	delete(c.calls, callID)
}

// failCall marks call as ended with reason and removes it from the active set.
func (c *Controller) failCall(call *domain.Call, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	call.State = domain.CallEnded
	call.FailureReason = reason
	call.EndedAt = timeNow()
	delete(c.active, call.ID)
}

// MarkTerminal is called by the telephony status-webhook handler once a
// Call produced by this controller reaches a terminal provider status,
// freeing its concurrency slot.
func (c *Controller) MarkTerminal(callID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, callID)
}

// Get returns a Call this controller produced, if any.
func (c *Controller) Get(callID string) (*domain.Call, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	call, ok := c.calls[callID]
	return call, ok
}

// ActiveCount returns the current number of non-terminal Calls this
// controller has in flight, for the `GET /stats` observable state.
func (c *Controller) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}

// FindByProviderCallSID returns the Call this controller produced whose
// ProviderCallSID matches sid, if any. The telephony status-webhook handler
// uses this to resolve the provider's CallSid (the only identifier its
// status events carry) back to this controller's Call record.
func (c *Controller) FindByProviderCallSID(sid string) (*domain.Call, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call.ProviderCallSID == sid {
			return call, true
		}
	}
	return nil, false
}

func classifyPlacementError(err error) errs.Kind {
	if e := errs.As(err); e != nil {
		return e.Kind
	}
	return errs.UpstreamFatal
}
