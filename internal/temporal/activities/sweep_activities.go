package activities

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"go.temporal.io/sdk/activity"

	"github.com/planovo/planovo-api/internal/events"
	"github.com/planovo/planovo-api/internal/models"
	"github.com/planovo/planovo-api/internal/repository"
)

// Emitter is the slice of the event bus the sweep activities publish to.
type Emitter interface {
	Emit(ctx context.Context, evt events.Event)
}

type Activities struct {
	Invoices  repository.InvoiceRepository
	Reminders repository.ReminderRepository
	Tasks     repository.TaskRepository
	Bus       Emitter
}

// MarkOverdueInvoicesActivity transitions past-due PENDING invoices to
// OVERDUE across all tenants and emits invoice.overdue per transitioned
// invoice. The rules take it from there.
func (a *Activities) MarkOverdueInvoicesActivity(ctx context.Context) (int, error) {
	logger := activity.GetLogger(ctx)

	invoices, err := a.Invoices.MarkOverdue(ctx, time.Now())
	if err != nil {
		return 0, errors.Wrap(err, "failed to mark overdue invoices")
	}

	for _, inv := range invoices {
		var customerID string
		if inv.CustomerID != nil {
			customerID = *inv.CustomerID
		}
		a.Bus.Emit(ctx, events.InvoiceOverdue{
			TenantID:   inv.TenantID,
			InvoiceID:  inv.ID,
			CustomerID: customerID,
		})
	}

	if len(invoices) > 0 {
		logger.Info("Marked invoices overdue", "count", len(invoices))
	}
	return len(invoices), nil
}

// EscalateRemindersActivity advances OVERDUE invoices whose newest
// reminder is older than escalationAfter to the next reminder level. The
// level advance is a compare-and-swap and the insert is guarded on
// invoice status, mirroring the level-1 rule.
func (a *Activities) EscalateRemindersActivity(ctx context.Context, escalationAfter time.Duration) (int, error) {
	logger := activity.GetLogger(ctx)

	invoices, err := a.Invoices.ListEscalatable(ctx, time.Now().Add(-escalationAfter))
	if err != nil {
		return 0, errors.Wrap(err, "failed to list escalatable invoices")
	}

	escalated := 0
	for _, inv := range invoices {
		nextLevel := inv.ReminderLevel + 1
		if nextLevel > models.MaxReminderLevel {
			continue
		}

		advanced, err := a.Invoices.AdvanceReminderLevel(ctx, inv.TenantID, inv.ID, inv.ReminderLevel)
		if err != nil {
			logger.Error("Failed to advance reminder level", "invoiceID", inv.ID, "error", err)
			continue
		}
		if !advanced {
			// Paid or escalated concurrently.
			continue
		}

		rem, err := a.Reminders.Create(ctx, models.InvoiceReminder{
			TenantID:  inv.TenantID,
			InvoiceID: inv.ID,
			Level:     nextLevel,
			Method:    "email",
		})
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			logger.Error("Failed to create reminder", "invoiceID", inv.ID, "error", err)
			continue
		}

		a.Bus.Emit(ctx, events.InvoiceReminderCreated{
			TenantID:   inv.TenantID,
			InvoiceID:  inv.ID,
			ReminderID: rem.ID,
			Level:      nextLevel,
		})
		escalated++
	}

	if escalated > 0 {
		logger.Info("Escalated reminders", "count", escalated)
	}
	return escalated, nil
}

// MarkOverdueTasksActivity emits task.overdue for open tasks past their
// due date that have not been flagged URGENT yet.
func (a *Activities) MarkOverdueTasksActivity(ctx context.Context) (int, error) {
	logger := activity.GetLogger(ctx)

	tasks, err := a.Tasks.ListOverdue(ctx, time.Now())
	if err != nil {
		return 0, errors.Wrap(err, "failed to list overdue tasks")
	}

	for _, task := range tasks {
		a.Bus.Emit(ctx, events.TaskOverdue{TenantID: task.TenantID, TaskID: task.ID})
	}

	if len(tasks) > 0 {
		logger.Info("Flagged overdue tasks", "count", len(tasks))
	}
	return len(tasks), nil
}
