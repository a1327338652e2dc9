package repository

import (
	"context"
	"database/sql"

	"github.com/planovo/planovo-api/internal/models"
)

type ReminderRepository interface {
	// Create inserts the reminder only while the invoice is still open.
	// Returns sql.ErrNoRows when the invoice is missing, paid, or
	// cancelled — the guard lives in the INSERT itself so a payment
	// landing between "check" and "act" cannot slip a reminder through.
	Create(ctx context.Context, rem models.InvoiceReminder) (models.InvoiceReminder, error)
	// SetAIText backfills the generated letter onto the matching PENDING
	// reminder of the given level.
	SetAIText(ctx context.Context, tenantID, invoiceID string, level int, text string) error
	SetStatus(ctx context.Context, tenantID, reminderID string, status models.ReminderStatus) error
	// CancelPending cancels all PENDING reminders of the invoice.
	// Idempotent; returns the number of cancelled rows (may be zero).
	CancelPending(ctx context.Context, tenantID, invoiceID string) (int64, error)
	ListByInvoice(ctx context.Context, tenantID, invoiceID string) ([]models.InvoiceReminder, error)
}

type reminderRepository struct {
	db *sql.DB
}

func NewReminderRepository(db *sql.DB) ReminderRepository {
	return &reminderRepository{db: db}
}

func (r *reminderRepository) Create(ctx context.Context, rem models.InvoiceReminder) (models.InvoiceReminder, error) {
	if rem.Status == "" {
		rem.Status = models.ReminderStatusPending
	}
	const query = `
		INSERT INTO tenant.invoice_reminders (tenant_id, invoice_id, level, status, method)
		SELECT $1, $2, $3, $4, $5
		FROM tenant.invoices i
		WHERE i.id = $2 AND i.tenant_id = $1 AND i.status NOT IN ('PAID', 'CANCELLED')
		RETURNING id, created_at;
	`
	err := r.db.QueryRowContext(ctx, query,
		rem.TenantID,
		rem.InvoiceID,
		rem.Level,
		rem.Status,
		rem.Method,
	).Scan(&rem.ID, &rem.CreatedAt)
	return rem, err
}

func (r *reminderRepository) SetAIText(ctx context.Context, tenantID, invoiceID string, level int, text string) error {
	const query = `
		UPDATE tenant.invoice_reminders
		SET ai_text = $4
		WHERE tenant_id = $1 AND invoice_id = $2 AND level = $3 AND status = 'PENDING';
	`
	res, err := r.db.ExecContext(ctx, query, tenantID, invoiceID, level, text)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *reminderRepository) SetStatus(ctx context.Context, tenantID, reminderID string, status models.ReminderStatus) error {
	const query = `
		UPDATE tenant.invoice_reminders
		SET status = $3
		WHERE tenant_id = $1 AND id = $2;
	`
	_, err := r.db.ExecContext(ctx, query, tenantID, reminderID, status)
	return err
}

func (r *reminderRepository) CancelPending(ctx context.Context, tenantID, invoiceID string) (int64, error) {
	const query = `
		UPDATE tenant.invoice_reminders
		SET status = 'CANCELLED'
		WHERE tenant_id = $1 AND invoice_id = $2 AND status = 'PENDING';
	`
	res, err := r.db.ExecContext(ctx, query, tenantID, invoiceID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *reminderRepository) ListByInvoice(ctx context.Context, tenantID, invoiceID string) ([]models.InvoiceReminder, error) {
	const query = `
		SELECT id, tenant_id, invoice_id, level, status, method, ai_text, created_at
		FROM tenant.invoice_reminders
		WHERE tenant_id = $1 AND invoice_id = $2
		ORDER BY level;
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reminders []models.InvoiceReminder
	for rows.Next() {
		var (
			rem    models.InvoiceReminder
			aiText sql.NullString
		)
		if err := rows.Scan(
			&rem.ID,
			&rem.TenantID,
			&rem.InvoiceID,
			&rem.Level,
			&rem.Status,
			&rem.Method,
			&aiText,
			&rem.CreatedAt,
		); err != nil {
			return nil, err
		}
		if aiText.Valid {
			val := aiText.String
			rem.AIText = &val
		}
		reminders = append(reminders, rem)
	}
	return reminders, rows.Err()
}
