package workflows

import (
	"go.temporal.io/sdk/workflow"

	"github.com/planovo/planovo-api/internal/temporal"
	"github.com/planovo/planovo-api/internal/temporal/activities"
)

// ReminderSweepWorkflow is the periodic driver behind the reminder state
// machine. It runs on a cron schedule and executes three best-effort
// steps; one step failing does not stop the others, and the next cron run
// retries naturally.
func ReminderSweepWorkflow(ctx workflow.Context, params temporal.SweepParams) (temporal.SweepResult, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: temporal.DefaultActivityTimeout,
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	logger := workflow.GetLogger(ctx)
	logger.Info("Starting reminder sweep")

	// The actual implementation is on the worker; this is just a proxy.
	var a *activities.Activities
	var result temporal.SweepResult

	// Step 1: Move past-due PENDING invoices to OVERDUE.
	var overdue int
	if err := workflow.ExecuteActivity(ctx, a.MarkOverdueInvoicesActivity).Get(ctx, &overdue); err != nil {
		logger.Error("Failed to mark overdue invoices.", "error", err)
	} else {
		result.InvoicesMarkedOverdue = overdue
	}

	// Step 2: Escalate stale reminders to the next level.
	var escalated int
	if err := workflow.ExecuteActivity(ctx, a.EscalateRemindersActivity, params.EscalationAfter).Get(ctx, &escalated); err != nil {
		logger.Error("Failed to escalate reminders.", "error", err)
	} else {
		result.RemindersEscalated = escalated
	}

	// Step 3: Flag open tasks past their due date.
	var tasks int
	if err := workflow.ExecuteActivity(ctx, a.MarkOverdueTasksActivity).Get(ctx, &tasks); err != nil {
		logger.Error("Failed to flag overdue tasks.", "error", err)
	} else {
		result.TasksMarkedOverdue = tasks
	}

	logger.Info("Reminder sweep completed",
		"InvoicesMarkedOverdue", result.InvoicesMarkedOverdue,
		"RemindersEscalated", result.RemindersEscalated,
		"TasksMarkedOverdue", result.TasksMarkedOverdue)
	return result, nil
}
