package scheduler

import (
	"context"

	"go.temporal.io/sdk/temporal"

	"github.com/callwave/callwave/domain"
	"github.com/callwave/callwave/errs"
	"github.com/callwave/callwave/o11y"
	"github.com/callwave/callwave/outbound"
)

// Activity names, registered with the Temporal worker in worker.go and
// referenced by the workflow in workflow.go. Named activities (rather than
// bound method values referenced directly) keep the workflow definition
// decoupled from any live Activities instance, matching the teacher's own
// `RegisterRunnableActivities` idiom (internal/temporal.go) of registering
// by string name.
const (
	ActivityPlaceScheduledCall   = "PlaceScheduledCallActivity"
	ActivityPersistScheduledCall = "PersistScheduledCallActivity"
)

// CallPlacer is the subset of outbound.Controller the scheduler depends on.
type CallPlacer interface {
	Initiate(ctx context.Context, req outbound.InitiateRequest) (*domain.Call, error)
}

// Activities groups the Temporal activities this package registers.
type Activities struct {
	Placer CallPlacer
	Store  JobStore
	Logger *o11y.Logger
}

// NewActivities constructs an Activities. logger defaults to o11y.NewLogger().
func NewActivities(placer CallPlacer, store JobStore, logger *o11y.Logger) *Activities {
	if logger == nil {
		logger = o11y.NewLogger()
	}
	return &Activities{Placer: placer, Store: store, Logger: logger}
}

// PlaceScheduledCallActivity places the outbound call for sc, enforcing the
// at-least-once dedup rule from spec.md §4.10: a duplicate delivery of this
// activity (Temporal's at-least-once execution guarantee) is a no-op once
// sc is no longer `pending`.
func (a *Activities) PlaceScheduledCallActivity(ctx context.Context, sc domain.ScheduledCall) error {
	const activityOp = "scheduler.PlaceScheduledCallActivity"

	admitted, err := a.Store.CompareAndSetStatus(ctx, sc.ID, domain.ScheduledPending, domain.ScheduledProcessing)
	if err != nil {
		return err
	}
	if !admitted {
		a.Logger.Info(ctx, "scheduled call already handled, skipping duplicate delivery", "scheduled_call_id", sc.ID)
		return nil
	}

	call, placeErr := a.Placer.Initiate(ctx, outbound.InitiateRequest{
		Phone:         sc.Phone,
		AgentID:       sc.AgentID,
		CorrelationID: sc.CorrelationID,
	})
	if placeErr != nil {
		class := classifyFailure(placeErr)
		if _, casErr := a.Store.CompareAndSetStatus(ctx, sc.ID, domain.ScheduledProcessing, domain.ScheduledFailed); casErr != nil {
			a.Logger.Warn(ctx, "failed to record scheduled call failure", "scheduled_call_id", sc.ID, "error", casErr)
		}
		if !Retryable(class) {
			return temporal.NewNonRetryableApplicationError(placeErr.Error(), nonRetryableErrorType, placeErr)
		}
		return placeErr
	}

	sc.ProducedCallID = call.ID
	if err := a.Store.Put(ctx, sc); err != nil {
		return err
	}
	_, err = a.Store.CompareAndSetStatus(ctx, sc.ID, domain.ScheduledProcessing, domain.ScheduledCompleted)
	return err
}

// PersistScheduledCallActivity writes sc to the job store. Used by the
// workflow to durably record a recurrence successor before continuing as
// new, since workflow code itself must not perform I/O directly.
func (a *Activities) PersistScheduledCallActivity(ctx context.Context, sc domain.ScheduledCall) error {
	return a.Store.Put(ctx, sc)
}

// classifyFailure maps an outbound placement error onto the failure-class
// taxonomy spec.md §4.10's retry table is keyed by.
func classifyFailure(err error) domain.FailureClass {
	e := errs.As(err)
	if e == nil {
		return domain.FailureUnknown
	}
	switch {
	case e.Code == errs.CodeInvalidPhone:
		return domain.FailureInvalidNumber
	case e.Code == errs.CodeAgentInactive:
		return domain.FailureUpstreamFatal
	case e.Code == errs.CodeConcurrencyCapReached:
		return domain.FailureProviderRateLimited
	case e.Code == errs.CodeBreakerOpen:
		return domain.FailureNetworkError
	case e.Kind == errs.UpstreamFatal:
		return domain.FailureUpstreamFatal
	case e.Kind == errs.UpstreamTransient:
		return domain.FailureNetworkError
	default:
		return domain.FailureUnknown
	}
}
