package scheduler

import (
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// TaskQueue is the Temporal task queue cmd/scheduler-worker polls and
// Client.Schedule starts workflows against.
const TaskQueue = "callwave-scheduler"

// RegisterWorker registers ScheduledCallWorkflow and acts's activities with
// w, adapted from the teacher's `RegisterRunnableActivities`
// (internal/temporal.go), which registers by explicit name rather than
// relying on Temporal's reflection-derived default name.
func RegisterWorker(w worker.Worker, acts *Activities) {
	w.RegisterWorkflowWithOptions(ScheduledCallWorkflow, workflow.RegisterOptions{Name: "ScheduledCallWorkflow"})
	w.RegisterActivityWithOptions(acts.PlaceScheduledCallActivity, activity.RegisterOptions{Name: ActivityPlaceScheduledCall})
	w.RegisterActivityWithOptions(acts.PersistScheduledCallActivity, activity.RegisterOptions{Name: ActivityPersistScheduledCall})
}
