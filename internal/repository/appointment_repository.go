package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/planovo/planovo-api/internal/models"
)

type AppointmentRepository interface {
	Create(ctx context.Context, appt models.Appointment) (models.Appointment, error)
	Get(ctx context.Context, tenantID, appointmentID string) (models.Appointment, error)
	// Complete transitions the appointment to COMPLETED. Returns
	// sql.ErrNoRows when the appointment is missing or already terminal.
	Complete(ctx context.Context, tenantID, appointmentID string) (models.Appointment, error)
	// MarkFutureForReassignment bulk-moves an employee's upcoming,
	// non-terminal appointments to NEEDS_REASSIGNMENT. Past appointments
	// are untouched. Returns the number of affected rows.
	MarkFutureForReassignment(ctx context.Context, tenantID, employeeID string, from time.Time) (int64, error)
	// ListByDay returns the tenant's appointments starting within the
	// given calendar day, with the linked customer's name and tags joined
	// in for report generation.
	ListByDay(ctx context.Context, tenantID string, day time.Time) ([]models.Appointment, error)
}

type appointmentRepository struct {
	db *sql.DB
}

func NewAppointmentRepository(db *sql.DB) AppointmentRepository {
	return &appointmentRepository{db: db}
}

func (r *appointmentRepository) Create(ctx context.Context, appt models.Appointment) (models.Appointment, error) {
	if appt.Status == "" {
		appt.Status = models.AppointmentStatusPending
	}
	const query = `
		INSERT INTO tenant.appointments (tenant_id, customer_id, employee_id, title, start_time, end_time, price, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at;
	`
	err := r.db.QueryRowContext(ctx, query,
		appt.TenantID,
		appt.CustomerID,
		appt.EmployeeID,
		appt.Title,
		appt.StartTime,
		appt.EndTime,
		appt.Price,
		appt.Status,
	).Scan(&appt.ID, &appt.CreatedAt, &appt.UpdatedAt)
	return appt, err
}

func (r *appointmentRepository) Get(ctx context.Context, tenantID, appointmentID string) (models.Appointment, error) {
	const query = `
		SELECT id, tenant_id, customer_id, employee_id, title, start_time, end_time, price, status, created_at, updated_at
		FROM tenant.appointments
		WHERE tenant_id = $1 AND id = $2;
	`
	return scanAppointment(r.db.QueryRowContext(ctx, query, tenantID, appointmentID))
}

func (r *appointmentRepository) Complete(ctx context.Context, tenantID, appointmentID string) (models.Appointment, error) {
	const query = `
		UPDATE tenant.appointments
		SET status = 'COMPLETED', updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND status NOT IN ('COMPLETED', 'CANCELLED')
		RETURNING id, tenant_id, customer_id, employee_id, title, start_time, end_time, price, status, created_at, updated_at;
	`
	return scanAppointment(r.db.QueryRowContext(ctx, query, tenantID, appointmentID))
}

func (r *appointmentRepository) MarkFutureForReassignment(ctx context.Context, tenantID, employeeID string, from time.Time) (int64, error) {
	const query = `
		UPDATE tenant.appointments
		SET status = 'NEEDS_REASSIGNMENT', updated_at = NOW()
		WHERE tenant_id = $1 AND employee_id = $2
		  AND start_time >= $3
		  AND status NOT IN ('COMPLETED', 'CANCELLED');
	`
	res, err := r.db.ExecContext(ctx, query, tenantID, employeeID, from)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *appointmentRepository) ListByDay(ctx context.Context, tenantID string, day time.Time) ([]models.Appointment, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	const query = `
		SELECT a.id, a.tenant_id, a.customer_id, a.employee_id, a.title, a.start_time, a.end_time, a.price, a.status, a.created_at, a.updated_at,
		       COALESCE(c.name, ''), COALESCE(c.tags, '{}')
		FROM tenant.appointments a
		LEFT JOIN tenant.customers c ON c.id = a.customer_id AND c.tenant_id = a.tenant_id
		WHERE a.tenant_id = $1 AND a.start_time >= $2 AND a.start_time < $3
		ORDER BY a.start_time;
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appointments []models.Appointment
	for rows.Next() {
		var (
			appt       models.Appointment
			customerID sql.NullString
			price      sql.NullFloat64
		)
		if err := rows.Scan(
			&appt.ID,
			&appt.TenantID,
			&customerID,
			&appt.EmployeeID,
			&appt.Title,
			&appt.StartTime,
			&appt.EndTime,
			&price,
			&appt.Status,
			&appt.CreatedAt,
			&appt.UpdatedAt,
			&appt.CustomerName,
			pq.Array(&appt.CustomerTags),
		); err != nil {
			return nil, err
		}
		applyAppointmentNullables(&appt, customerID, price)
		appointments = append(appointments, appt)
	}
	return appointments, rows.Err()
}

func scanAppointment(scanner interface {
	Scan(dest ...interface{}) error
}) (models.Appointment, error) {
	var (
		appt       models.Appointment
		customerID sql.NullString
		price      sql.NullFloat64
	)
	err := scanner.Scan(
		&appt.ID,
		&appt.TenantID,
		&customerID,
		&appt.EmployeeID,
		&appt.Title,
		&appt.StartTime,
		&appt.EndTime,
		&price,
		&appt.Status,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	if err != nil {
		return models.Appointment{}, err
	}
	applyAppointmentNullables(&appt, customerID, price)
	return appt, nil
}

func applyAppointmentNullables(appt *models.Appointment, customerID sql.NullString, price sql.NullFloat64) {
	if customerID.Valid {
		val := customerID.String
		appt.CustomerID = &val
	}
	if price.Valid {
		val := price.Float64
		appt.Price = &val
	}
}
