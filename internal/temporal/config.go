package temporal

import "time"

// TaskQueueName is the name of the Temporal task queue used for Planovo automation workflows.
const TaskQueueName = "PLANOVO_AUTOMATION"

// SweepWorkflowID identifies the singleton cron sweep; starting it again
// with the same ID is a no-op while a run is scheduled.
const SweepWorkflowID = "planovo-reminder-sweep"

// DefaultActivityTimeout is the default timeout duration for Temporal activities in Planovo workflows.
const DefaultActivityTimeout = 2 * time.Minute

// SweepParams defines the input for the reminder sweep workflow.
type SweepParams struct {
	// EscalationAfter is the minimum age of the newest reminder before the
	// invoice escalates to the next level.
	EscalationAfter time.Duration
}

// SweepResult summarizes one sweep run.
type SweepResult struct {
	InvoicesMarkedOverdue int
	RemindersEscalated    int
	TasksMarkedOverdue    int
}
