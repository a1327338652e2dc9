package automation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/planovo/planovo-api/internal/events"
	"github.com/planovo/planovo-api/internal/models"
	"github.com/planovo/planovo-api/internal/repository"
	"github.com/planovo/planovo-api/internal/textgen"
)

// Emitter is the slice of the event bus rules use to emit follow-up
// events. Chain depth bounding lives in the bus, not here.
type Emitter interface {
	Emit(ctx context.Context, evt events.Event)
}

// Deps collects everything the default rule set touches. All fields are
// required unless noted; the composition root wires them explicitly.
type Deps struct {
	Tasks        repository.TaskRepository
	Customers    repository.CustomerRepository
	Invoices     repository.InvoiceRepository
	Reminders    repository.ReminderRepository
	Appointments repository.AppointmentRepository
	Tenants      repository.TenantRepository
	TextGen      textgen.Generator
	Bus          Emitter
	Logger       zerolog.Logger
}

const invoicePaymentTermDays = 14

// DefaultRules returns the built-in rule set in registration order. Order
// matters for rules sharing an event name: e.g. the level-1 reminder rule
// runs before the customer-tagging rule on invoice.overdue.
func DefaultRules(d Deps) []Rule {
	logger := d.Logger.With().Str("component", "automation_rules").Logger()

	return []Rule{
		// A new appointment triggers a follow-up task unless the customer
		// already has one open.
		On("customer follow-up on new appointment",
			func(ctx context.Context, evt events.AppointmentCreated) (bool, error) {
				if evt.CustomerID == "" {
					return false, nil
				}
				open, err := d.Tasks.HasOpenForCustomer(ctx, evt.TenantID, evt.CustomerID)
				if err != nil {
					return false, errors.Wrap(err, "failed to check open tasks")
				}
				return !open, nil
			},
			func(ctx context.Context, evt events.AppointmentCreated) error {
				customerID := evt.CustomerID
				_, err := d.Tasks.Create(ctx, models.Task{
					TenantID:    evt.TenantID,
					Title:       "Customer follow-up",
					Description: fmt.Sprintf("New appointment %s booked. Reach out to confirm details and expectations.", evt.AppointmentID),
					Priority:    models.TaskPriorityMedium,
					CustomerID:  &customerID,
				})
				return errors.Wrap(err, "failed to create follow-up task")
			},
		),

		// A sick report frees the employee's upcoming appointments for
		// manual redistribution.
		On("reassign appointments of sick employee",
			nil,
			func(ctx context.Context, evt events.EmployeeSick) error {
				affected, err := d.Appointments.MarkFutureForReassignment(ctx, evt.TenantID, evt.EmployeeID, time.Now())
				if err != nil {
					return errors.Wrap(err, "failed to mark appointments for reassignment")
				}
				logger.Info().
					Str("tenant_id", evt.TenantID).
					Str("employee_id", evt.EmployeeID).
					Int64("appointments", affected).
					Msg("appointments marked for reassignment")
				return nil
			},
		),

		// First escalation step. The level advance is a compare-and-swap on
		// (level, status) and the reminder insert is guarded on invoice
		// status, so a concurrent payment or duplicate overdue event cannot
		// create a stray reminder.
		On("create level-1 payment reminder",
			func(ctx context.Context, evt events.InvoiceOverdue) (bool, error) {
				inv, err := d.Invoices.Get(ctx, evt.TenantID, evt.InvoiceID)
				if errors.Is(err, sql.ErrNoRows) {
					return false, nil
				}
				if err != nil {
					return false, errors.Wrap(err, "failed to load invoice")
				}
				return inv.ReminderLevel == 0, nil
			},
			func(ctx context.Context, evt events.InvoiceOverdue) error {
				advanced, err := d.Invoices.AdvanceReminderLevel(ctx, evt.TenantID, evt.InvoiceID, 0)
				if err != nil {
					return errors.Wrap(err, "failed to advance reminder level")
				}
				if !advanced {
					return nil
				}
				rem, err := d.Reminders.Create(ctx, models.InvoiceReminder{
					TenantID:  evt.TenantID,
					InvoiceID: evt.InvoiceID,
					Level:     1,
					Method:    "email",
				})
				if errors.Is(err, sql.ErrNoRows) {
					// Invoice settled between the level advance and the
					// insert.
					return nil
				}
				if err != nil {
					return errors.Wrap(err, "failed to create reminder")
				}
				d.Bus.Emit(ctx, events.InvoiceReminderCreated{
					TenantID:   evt.TenantID,
					InvoiceID:  evt.InvoiceID,
					ReminderID: rem.ID,
					Level:      1,
				})
				return nil
			},
		),

		// Tag the customer once; the note is only written when the tag is
		// new so repeated overdue events do not spam the note log.
		On("tag customer with payment reminder",
			func(_ context.Context, evt events.InvoiceOverdue) (bool, error) {
				return evt.CustomerID != "", nil
			},
			func(ctx context.Context, evt events.InvoiceOverdue) error {
				added, err := d.Customers.AddTag(ctx, evt.TenantID, evt.CustomerID, models.TagPaymentReminder)
				if err != nil {
					return errors.Wrap(err, "failed to tag customer")
				}
				if !added {
					return nil
				}
				note := fmt.Sprintf("Payment reminder started for invoice %s.", evt.InvoiceID)
				return errors.Wrap(d.Customers.AppendNote(ctx, evt.TenantID, evt.CustomerID, note), "failed to append customer note")
			},
		),

		On("restock task for low inventory",
			nil,
			func(ctx context.Context, evt events.InventoryLow) error {
				_, err := d.Tasks.Create(ctx, models.Task{
					TenantID:    evt.TenantID,
					Title:       fmt.Sprintf("Restock %s", evt.ItemName),
					Description: fmt.Sprintf("Inventory for %s is low: %d on hand, minimum is %d.", evt.ItemName, evt.CurrentQuantity, evt.MinThreshold),
					Priority:    models.TaskPriorityHigh,
				})
				return errors.Wrap(err, "failed to create restock task")
			},
		),

		On("bump overdue task to urgent",
			nil,
			func(ctx context.Context, evt events.TaskOverdue) error {
				err := d.Tasks.SetPriority(ctx, evt.TenantID, evt.TaskID, models.TaskPriorityUrgent)
				if errors.Is(err, sql.ErrNoRows) {
					return nil
				}
				return errors.Wrap(err, "failed to set task priority")
			},
		),

		// Bookkeeping trail: a completed task per received payment.
		On("record received payment",
			nil,
			func(ctx context.Context, evt events.PaymentPaid) error {
				task := models.Task{
					TenantID:    evt.TenantID,
					Title:       "Payment received",
					Description: fmt.Sprintf("Payment of %.2f via %s received for invoice %s.", evt.Amount, evt.Method, evt.InvoiceID),
					Status:      models.TaskStatusDone,
					Priority:    models.TaskPriorityLow,
				}
				if evt.CustomerID != "" {
					customerID := evt.CustomerID
					task.CustomerID = &customerID
				}
				_, err := d.Tasks.Create(ctx, task)
				return errors.Wrap(err, "failed to create payment record task")
			},
		),

		On("tag bank transfer payer",
			func(_ context.Context, evt events.PaymentPaid) (bool, error) {
				return evt.Method == events.PaymentMethodBankTransfer && evt.CustomerID != "", nil
			},
			func(ctx context.Context, evt events.PaymentPaid) error {
				_, err := d.Customers.AddTag(ctx, evt.TenantID, evt.CustomerID, models.TagBankTransfer)
				return errors.Wrap(err, "failed to tag customer")
			},
		),

		// Stop the reminder machine. Idempotent: marking an already-paid
		// invoice and cancelling zero pending reminders are both no-ops.
		On("stop reminders on payment",
			func(_ context.Context, evt events.PaymentPaid) (bool, error) {
				return evt.InvoiceID != "", nil
			},
			func(ctx context.Context, evt events.PaymentPaid) error {
				if _, err := d.Invoices.MarkPaid(ctx, evt.TenantID, evt.InvoiceID, time.Now()); err != nil {
					return errors.Wrap(err, "failed to mark invoice paid")
				}
				cancelled, err := d.Reminders.CancelPending(ctx, evt.TenantID, evt.InvoiceID)
				if err != nil {
					return errors.Wrap(err, "failed to cancel pending reminders")
				}
				if cancelled > 0 {
					logger.Info().
						Str("tenant_id", evt.TenantID).
						Str("invoice_id", evt.InvoiceID).
						Int64("reminders", cancelled).
						Msg("pending reminders cancelled after payment")
				}
				return nil
			},
		),

		On("flag customer with failed payment",
			func(_ context.Context, evt events.PaymentFailed) (bool, error) {
				return evt.CustomerID != "", nil
			},
			func(ctx context.Context, evt events.PaymentFailed) error {
				if _, err := d.Customers.AddTag(ctx, evt.TenantID, evt.CustomerID, models.TagPaymentProblem); err != nil {
					return errors.Wrap(err, "failed to tag customer")
				}
				note := fmt.Sprintf("Payment of %.2f via %s failed for invoice %s.", evt.Amount, evt.Method, evt.InvoiceID)
				return errors.Wrap(d.Customers.AppendNote(ctx, evt.TenantID, evt.CustomerID, note), "failed to append customer note")
			},
		),

		// Completed appointments with a customer turn into invoice drafts.
		On("draft invoice for completed appointment",
			func(_ context.Context, evt events.AppointmentCompleted) (bool, error) {
				return evt.CustomerID != "", nil
			},
			func(ctx context.Context, evt events.AppointmentCompleted) error {
				tenant, err := d.Tenants.GetTenantByID(ctx, evt.TenantID)
				if err != nil {
					return errors.Wrap(err, "failed to load tenant")
				}
				customerID := evt.CustomerID
				appointmentID := evt.AppointmentID
				dueDate := time.Now().AddDate(0, 0, invoicePaymentTermDays)
				_, err = d.Invoices.CreateDraft(ctx, models.Invoice{
					TenantID:      evt.TenantID,
					CustomerID:    &customerID,
					AppointmentID: &appointmentID,
					Amount:        evt.Price,
					Currency:      tenant.DefaultCurrency,
					Status:        models.InvoiceStatusPending,
					DueDate:       &dueDate,
				})
				return errors.Wrap(err, "failed to create invoice draft")
			},
		),

		On("flag anomalous ai usage",
			func(_ context.Context, evt events.AIUsageRecorded) (bool, error) {
				return evt.TotalTokens > 100000, nil
			},
			func(ctx context.Context, evt events.AIUsageRecorded) error {
				_, err := d.Tasks.Create(ctx, models.Task{
					TenantID:    evt.TenantID,
					Title:       "Review AI usage",
					Description: fmt.Sprintf("Feature %s consumed %d tokens in a single call. Check for runaway usage.", evt.Feature, evt.TotalTokens),
					Priority:    models.TaskPriorityHigh,
				})
				return errors.Wrap(err, "failed to create ai usage task")
			},
		),

		On("dispatch task for first reminder",
			func(_ context.Context, evt events.InvoiceReminderCreated) (bool, error) {
				return evt.Level == 1, nil
			},
			func(ctx context.Context, evt events.InvoiceReminderCreated) error {
				_, err := d.Tasks.Create(ctx, models.Task{
					TenantID:    evt.TenantID,
					Title:       "Send payment reminder",
					Description: fmt.Sprintf("Send the level-1 payment reminder for invoice %s.", evt.InvoiceID),
					Priority:    models.TaskPriorityMedium,
				})
				return errors.Wrap(err, "failed to create reminder task")
			},
		),

		// Level 2 gets a generated letter. The prompt carries only amount,
		// currency, level, and days overdue; customer data never leaves the
		// system.
		On("draft level-2 reminder letter",
			func(_ context.Context, evt events.InvoiceReminderCreated) (bool, error) {
				return evt.Level == 2, nil
			},
			func(ctx context.Context, evt events.InvoiceReminderCreated) error {
				inv, err := d.Invoices.Get(ctx, evt.TenantID, evt.InvoiceID)
				if errors.Is(err, sql.ErrNoRows) {
					return nil
				}
				if err != nil {
					return errors.Wrap(err, "failed to load invoice")
				}
				prompt := fmt.Sprintf(
					"Write a firm but polite second payment reminder letter in German for an open invoice of %.2f %s that is %d days overdue. This is escalation level 2 of 3. Use neutral placeholders for the salutation and signature and do not invent any names, addresses or other personal details.",
					inv.Amount, inv.Currency, inv.DaysOverdue(time.Now()),
				)
				text, err := d.TextGen.Generate(ctx, evt.TenantID, prompt)
				if err != nil {
					return errors.Wrap(err, "failed to generate reminder letter")
				}
				err = d.Reminders.SetAIText(ctx, evt.TenantID, evt.InvoiceID, 2, text)
				if errors.Is(err, sql.ErrNoRows) {
					// Reminder left PENDING state before the letter arrived.
					return nil
				}
				return errors.Wrap(err, "failed to store reminder letter")
			},
		),

		// Final escalation hands the case to a human and signals the rest
		// of the system through a chained event.
		On("escalate level-3 reminder to collections",
			func(_ context.Context, evt events.InvoiceReminderCreated) (bool, error) {
				return evt.Level == models.MaxReminderLevel, nil
			},
			func(ctx context.Context, evt events.InvoiceReminderCreated) error {
				_, err := d.Tasks.Create(ctx, models.Task{
					TenantID:    evt.TenantID,
					Title:       "Review invoice for collections",
					Description: fmt.Sprintf("Invoice %s reached the final reminder level. Review it for handover to collections.", evt.InvoiceID),
					Priority:    models.TaskPriorityHigh,
				})
				if err != nil {
					return errors.Wrap(err, "failed to create collections task")
				}
				d.Bus.Emit(ctx, events.InvoiceReminderEscalated{
					TenantID:  evt.TenantID,
					InvoiceID: evt.InvoiceID,
					Level:     evt.Level,
				})
				return nil
			},
		),
	}
}
