package notification

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/planovo/planovo-api/internal/bus"
	"github.com/planovo/planovo-api/internal/events"
	"github.com/planovo/planovo-api/internal/models"
	"github.com/planovo/planovo-api/internal/repository"
)

// ReminderNotifier emails freshly created level-1 and level-2 reminders
// and records the delivery outcome on the reminder row. Level 3 stays
// with the collections task; no automated mail goes out for it.
type ReminderNotifier struct {
	invoices  repository.InvoiceRepository
	reminders repository.ReminderRepository
	customers repository.CustomerRepository
	mailer    ReminderMailer
	logger    zerolog.Logger
}

func NewReminderNotifier(
	invoices repository.InvoiceRepository,
	reminders repository.ReminderRepository,
	customers repository.CustomerRepository,
	mailer ReminderMailer,
	logger zerolog.Logger,
) *ReminderNotifier {
	return &ReminderNotifier{
		invoices:  invoices,
		reminders: reminders,
		customers: customers,
		mailer:    mailer,
		logger:    logger.With().Str("component", "reminder_notifier").Logger(),
	}
}

// Start attaches the notifier to the bus. It must be called after the
// automation engine subscribes so the level-2 letter is already backfilled
// when the notifier sees the event.
func (n *ReminderNotifier) Start(b *bus.Bus) {
	b.Subscribe(events.InvoiceReminderCreatedName, n.handleReminderCreated)
}

func (n *ReminderNotifier) handleReminderCreated(ctx context.Context, evt events.Event) error {
	created, ok := evt.(events.InvoiceReminderCreated)
	if !ok {
		return errors.Errorf("unexpected payload %T", evt)
	}
	if created.Level >= models.MaxReminderLevel {
		return nil
	}

	inv, err := n.invoices.Get(ctx, created.TenantID, created.InvoiceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "failed to load invoice")
	}
	if inv.CustomerID == nil {
		return nil
	}

	customer, err := n.customers.Get(ctx, created.TenantID, *inv.CustomerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "failed to load customer")
	}
	if customer.Email == nil || *customer.Email == "" {
		// Nothing to send to; the dispatch task covers manual delivery.
		n.logger.Info().
			Str("tenant_id", created.TenantID).
			Str("invoice_id", created.InvoiceID).
			Msg("customer has no email, reminder left pending")
		return nil
	}

	subject, body := n.compose(ctx, created, inv)
	if err := n.mailer.SendReminder(*customer.Email, subject, body); err != nil {
		n.logger.Error().Err(err).
			Str("tenant_id", created.TenantID).
			Str("reminder_id", created.ReminderID).
			Msg("reminder email delivery failed")
		return n.reminders.SetStatus(ctx, created.TenantID, created.ReminderID, models.ReminderStatusFailed)
	}
	return n.reminders.SetStatus(ctx, created.TenantID, created.ReminderID, models.ReminderStatusSent)
}

func (n *ReminderNotifier) compose(ctx context.Context, created events.InvoiceReminderCreated, inv models.Invoice) (string, string) {
	if created.Level == 2 {
		if text := n.generatedText(ctx, created, inv); text != "" {
			return fmt.Sprintf("Zweite Zahlungserinnerung – Rechnung %s", inv.ID), text
		}
	}
	subject := fmt.Sprintf("Zahlungserinnerung – Rechnung %s", inv.ID)
	body := fmt.Sprintf(
		"Guten Tag,\n\nzu der Rechnung %s über %.2f %s liegt noch kein Zahlungseingang vor. Bitte begleichen Sie den offenen Betrag.\n\nMit freundlichen Grüßen\nIhr Team",
		inv.ID, inv.Amount, inv.Currency,
	)
	return subject, body
}

func (n *ReminderNotifier) generatedText(ctx context.Context, created events.InvoiceReminderCreated, inv models.Invoice) string {
	reminders, err := n.reminders.ListByInvoice(ctx, created.TenantID, inv.ID)
	if err != nil {
		return ""
	}
	for _, rem := range reminders {
		if rem.ID == created.ReminderID && rem.AIText != nil {
			return *rem.AIText
		}
	}
	return ""
}
