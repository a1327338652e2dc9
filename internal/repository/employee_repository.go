package repository

import (
	"context"
	"database/sql"

	"github.com/planovo/planovo-api/internal/models"
)

type EmployeeRepository interface {
	Get(ctx context.Context, tenantID, employeeID string) (models.Employee, error)
	List(ctx context.Context, tenantID string) ([]models.Employee, error)
	SetStatus(ctx context.Context, tenantID, employeeID string, status models.EmployeeStatus) error
}

type employeeRepository struct {
	db *sql.DB
}

func NewEmployeeRepository(db *sql.DB) EmployeeRepository {
	return &employeeRepository{db: db}
}

func (r *employeeRepository) Get(ctx context.Context, tenantID, employeeID string) (models.Employee, error) {
	const query = `
		SELECT id, tenant_id, name, status, work_hours, created_at, updated_at
		FROM tenant.employees
		WHERE tenant_id = $1 AND id = $2;
	`
	var emp models.Employee
	err := r.db.QueryRowContext(ctx, query, tenantID, employeeID).Scan(
		&emp.ID,
		&emp.TenantID,
		&emp.Name,
		&emp.Status,
		&emp.WorkHours,
		&emp.CreatedAt,
		&emp.UpdatedAt,
	)
	return emp, err
}

func (r *employeeRepository) List(ctx context.Context, tenantID string) ([]models.Employee, error) {
	const query = `
		SELECT id, tenant_id, name, status, work_hours, created_at, updated_at
		FROM tenant.employees
		WHERE tenant_id = $1
		ORDER BY name;
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []models.Employee
	for rows.Next() {
		var emp models.Employee
		if err := rows.Scan(
			&emp.ID,
			&emp.TenantID,
			&emp.Name,
			&emp.Status,
			&emp.WorkHours,
			&emp.CreatedAt,
			&emp.UpdatedAt,
		); err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

func (r *employeeRepository) SetStatus(ctx context.Context, tenantID, employeeID string, status models.EmployeeStatus) error {
	const query = `
		UPDATE tenant.employees
		SET status = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2;
	`
	res, err := r.db.ExecContext(ctx, query, tenantID, employeeID, status)
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
