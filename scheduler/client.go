package scheduler

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"

	"github.com/callwave/callwave/domain"
	"github.com/callwave/callwave/errs"
)

// Client starts and manages ScheduledCallWorkflow executions. It is the
// control-surface-facing half of the scheduler: `POST /schedule` and the
// `/scheduled-calls/:id/{cancel,reschedule}` handlers (§6) go through it.
// Adapted from the teacher's TemporalWorkflow adapter
// (pkg/orchestration/internal/temporal.go / providers/workflow/temporal.go),
// narrowed to this package's one workflow type instead of an `any` workflow
// function, and keyed by Scheduled Call ID instead of a synthetic
// timestamp-based workflow ID so Cancel/Reschedule can address it later.
type Client struct {
	temporal  client.Client
	taskQueue string
}

// NewClient wraps an already-connected Temporal client.
func NewClient(temporal client.Client) *Client {
	return &Client{temporal: temporal, taskQueue: TaskQueue}
}

func workflowID(scheduledCallID string) string {
	return "scheduled-call:" + scheduledCallID
}

// Schedule starts a ScheduledCallWorkflow for sc. The workflow itself
// performs the business-hours projection and sleep; Schedule just starts
// the durable execution.
func (c *Client) Schedule(ctx context.Context, sc domain.ScheduledCall) error {
	options := client.StartWorkflowOptions{
		ID:        workflowID(sc.ID),
		TaskQueue: c.taskQueue,
	}
	_, err := c.temporal.ExecuteWorkflow(ctx, options, ScheduledCallWorkflow, sc)
	if err != nil {
		return errs.Wrap("scheduler.Client.Schedule", errs.Internal, err)
	}
	return nil
}

// Cancel requests cancellation of the Scheduled Call's workflow. Temporal
// delivers the cancellation as a context cancellation inside
// ScheduledCallWorkflow's workflow.Context, interrupting whichever of
// workflow.Sleep / the in-flight activity is active.
func (c *Client) Cancel(ctx context.Context, scheduledCallID string) error {
	if err := c.temporal.CancelWorkflow(ctx, workflowID(scheduledCallID), ""); err != nil {
		return errs.Wrap("scheduler.Client.Cancel", errs.Internal, err)
	}
	return nil
}

// Reschedule cancels the Scheduled Call's current workflow (if running) and
// starts a fresh one against the updated ScheduledCall. Temporal does not
// allow mutating a running workflow's input, so rescheduling is
// cancel-then-restart rather than an in-place update.
func (c *Client) Reschedule(ctx context.Context, sc domain.ScheduledCall) error {
	if err := c.temporal.CancelWorkflow(ctx, workflowID(sc.ID), ""); err != nil {
		return errs.Wrap("scheduler.Client.Reschedule", errs.Internal, fmt.Errorf("cancelling previous workflow: %w", err))
	}
	return c.Schedule(ctx, sc)
}
