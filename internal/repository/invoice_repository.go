package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/planovo/planovo-api/internal/models"
)

type InvoiceRepository interface {
	Get(ctx context.Context, tenantID, invoiceID string) (models.Invoice, error)
	List(ctx context.Context, tenantID string, limit, offset int) ([]models.Invoice, error)
	CreateDraft(ctx context.Context, inv models.Invoice) (models.Invoice, error)
	// MarkPaid settles the invoice: status PAID, reminder level reset to 0.
	// Returns false when the invoice was already paid or cancelled, which
	// makes repeated payment notifications harmless.
	MarkPaid(ctx context.Context, tenantID, invoiceID string, paidAt time.Time) (bool, error)
	// AdvanceReminderLevel moves reminder_level from fromLevel to
	// fromLevel+1 with a compare-and-swap on both the level and the
	// OVERDUE status. Returns false when another writer got there first
	// or the invoice was paid in the meantime.
	AdvanceReminderLevel(ctx context.Context, tenantID, invoiceID string, fromLevel int) (bool, error)
	// MarkOverdue transitions all PENDING invoices past their due date to
	// OVERDUE, across tenants, and returns the transitioned invoices.
	MarkOverdue(ctx context.Context, now time.Time) ([]models.Invoice, error)
	// ListEscalatable returns OVERDUE invoices at reminder level 1 or 2
	// whose newest reminder predates the cutoff.
	ListEscalatable(ctx context.Context, cutoff time.Time) ([]models.Invoice, error)
}

type invoiceRepository struct {
	db *sql.DB
}

func NewInvoiceRepository(db *sql.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

const invoiceColumns = `id, tenant_id, customer_id, appointment_id, amount, currency, status, due_date, reminder_level, paid_at, created_at, updated_at`

func (r *invoiceRepository) Get(ctx context.Context, tenantID, invoiceID string) (models.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM tenant.invoices
		WHERE tenant_id = $1 AND id = $2;
	`
	return scanInvoice(r.db.QueryRowContext(ctx, query, tenantID, invoiceID))
}

func (r *invoiceRepository) List(ctx context.Context, tenantID string, limit, offset int) ([]models.Invoice, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	query := `
		SELECT ` + invoiceColumns + `
		FROM tenant.invoices
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3;
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInvoices(rows)
}

func (r *invoiceRepository) CreateDraft(ctx context.Context, inv models.Invoice) (models.Invoice, error) {
	if inv.Status == "" {
		inv.Status = models.InvoiceStatusPending
	}
	const query = `
		INSERT INTO tenant.invoices (tenant_id, customer_id, appointment_id, amount, currency, status, due_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, reminder_level, created_at, updated_at;
	`
	err := r.db.QueryRowContext(ctx, query,
		inv.TenantID,
		inv.CustomerID,
		inv.AppointmentID,
		inv.Amount,
		inv.Currency,
		inv.Status,
		inv.DueDate,
	).Scan(&inv.ID, &inv.ReminderLevel, &inv.CreatedAt, &inv.UpdatedAt)
	return inv, err
}

func (r *invoiceRepository) MarkPaid(ctx context.Context, tenantID, invoiceID string, paidAt time.Time) (bool, error) {
	const query = `
		UPDATE tenant.invoices
		SET status = 'PAID', reminder_level = 0, paid_at = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND status NOT IN ('PAID', 'CANCELLED');
	`
	res, err := r.db.ExecContext(ctx, query, tenantID, invoiceID, paidAt)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *invoiceRepository) AdvanceReminderLevel(ctx context.Context, tenantID, invoiceID string, fromLevel int) (bool, error) {
	const query = `
		UPDATE tenant.invoices
		SET reminder_level = reminder_level + 1, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
		  AND reminder_level = $3
		  AND status = 'OVERDUE';
	`
	res, err := r.db.ExecContext(ctx, query, tenantID, invoiceID, fromLevel)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *invoiceRepository) MarkOverdue(ctx context.Context, now time.Time) ([]models.Invoice, error) {
	query := `
		UPDATE tenant.invoices
		SET status = 'OVERDUE', updated_at = NOW()
		WHERE status = 'PENDING' AND due_date IS NOT NULL AND due_date < $1
		RETURNING ` + invoiceColumns + `;
	`
	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInvoices(rows)
}

func (r *invoiceRepository) ListEscalatable(ctx context.Context, cutoff time.Time) ([]models.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM tenant.invoices i
		WHERE i.status = 'OVERDUE'
		  AND i.reminder_level BETWEEN 1 AND 2
		  AND (
			SELECT MAX(r.created_at)
			FROM tenant.invoice_reminders r
			WHERE r.invoice_id = i.id
		  ) < $1;
	`
	rows, err := r.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInvoices(rows)
}

func collectInvoices(rows *sql.Rows) ([]models.Invoice, error) {
	var invoices []models.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func scanInvoice(scanner interface {
	Scan(dest ...interface{}) error
}) (models.Invoice, error) {
	var (
		inv           models.Invoice
		customerID    sql.NullString
		appointmentID sql.NullString
		dueDate       sql.NullTime
		paidAt        sql.NullTime
	)
	err := scanner.Scan(
		&inv.ID,
		&inv.TenantID,
		&customerID,
		&appointmentID,
		&inv.Amount,
		&inv.Currency,
		&inv.Status,
		&dueDate,
		&inv.ReminderLevel,
		&paidAt,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		return models.Invoice{}, err
	}
	if customerID.Valid {
		val := customerID.String
		inv.CustomerID = &val
	}
	if appointmentID.Valid {
		val := appointmentID.String
		inv.AppointmentID = &val
	}
	if dueDate.Valid {
		t := dueDate.Time
		inv.DueDate = &t
	}
	if paidAt.Valid {
		t := paidAt.Time
		inv.PaidAt = &t
	}
	return inv, nil
}
