package scheduler

import (
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/callwave/callwave/domain"
)

// activityStartToCloseTimeout bounds a single PlaceScheduledCallActivity
// attempt; the provider call itself is expected to resolve in well under a
// minute (it only covers reaching the provider's REST API, not the phone
// call's duration).
const activityStartToCloseTimeout = time.Minute

// ScheduledCallWorkflow is the per-Scheduled-Call Temporal workflow: it
// sleeps until the business-hours-projected fire instant, places the call
// through an activity wrapped in DefaultPlacementRetryPolicy (the
// network_error cadence, whatever the failure class; the other per-class
// policies of RetryPolicyFor are not applied here), and —
// on success, if sc carries a RecurrenceDescriptor — persists and continues
// as new into the successor occurrence. Grounded on
// pkg/orchestration/internal/temporal.go's SimpleChainWorkflow (workflow.Context
// + workflow.ActivityOptions + workflow.ExecuteActivity shape), generalized
// from a static activity chain to a sleep-then-fire-then-maybe-recur job.
func ScheduledCallWorkflow(ctx workflow.Context, sc domain.ScheduledCall) error {
	logger := workflow.GetLogger(ctx)

	now := workflow.Now(ctx)
	fireAt, err := ComputeFireTime(sc, now)
	if err != nil {
		logger.Error("scheduled call rejected by the scheduling algorithm", "scheduled_call_id", sc.ID, "error", err)
		return err
	}

	if wait := fireAt.Sub(now); wait > 0 {
		if err := workflow.Sleep(ctx, wait); err != nil {
			return err
		}
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: activityStartToCloseTimeout,
		RetryPolicy:         DefaultPlacementRetryPolicy(),
	}
	actCtx := workflow.WithActivityOptions(ctx, ao)

	if err := workflow.ExecuteActivity(actCtx, ActivityPlaceScheduledCall, sc).Get(actCtx, nil); err != nil {
		logger.Error("scheduled call placement exhausted its retries", "scheduled_call_id", sc.ID, "error", err)
		return err
	}

	successor, hasSuccessor := NextOccurrence(sc)
	if !hasSuccessor {
		return nil
	}

	persistCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{StartToCloseTimeout: activityStartToCloseTimeout})
	if err := workflow.ExecuteActivity(persistCtx, ActivityPersistScheduledCall, *successor).Get(persistCtx, nil); err != nil {
		logger.Error("failed to persist recurrence successor", "scheduled_call_id", successor.ID, "error", err)
		return err
	}

	return workflow.NewContinueAsNewError(ctx, ScheduledCallWorkflow, *successor)
}
