package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/planovo/planovo-api/internal/models"
)

type TaskRepository interface {
	Create(ctx context.Context, task models.Task) (models.Task, error)
	// HasOpenForCustomer reports whether the customer already has an open
	// (TODO or IN_PROGRESS) task.
	HasOpenForCustomer(ctx context.Context, tenantID, customerID string) (bool, error)
	SetPriority(ctx context.Context, tenantID, taskID string, priority models.TaskPriority) error
	// ListOverdue returns open tasks past their due date that have not
	// been bumped to URGENT yet, across tenants. Used by the sweep; the
	// URGENT filter keeps it from re-flagging the same task every run.
	ListOverdue(ctx context.Context, now time.Time) ([]models.Task, error)
}

type taskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) Create(ctx context.Context, task models.Task) (models.Task, error) {
	if task.Status == "" {
		task.Status = models.TaskStatusTodo
	}
	if task.Priority == "" {
		task.Priority = models.TaskPriorityMedium
	}
	const query = `
		INSERT INTO tenant.tasks (tenant_id, title, description, status, priority, assigned_to, customer_id, due_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at;
	`
	err := r.db.QueryRowContext(ctx, query,
		task.TenantID,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.AssignedTo,
		task.CustomerID,
		task.DueDate,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
	return task, err
}

func (r *taskRepository) HasOpenForCustomer(ctx context.Context, tenantID, customerID string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM tenant.tasks
			WHERE tenant_id = $1 AND customer_id = $2 AND status IN ('TODO', 'IN_PROGRESS')
		);
	`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, tenantID, customerID).Scan(&exists)
	return exists, err
}

func (r *taskRepository) SetPriority(ctx context.Context, tenantID, taskID string, priority models.TaskPriority) error {
	const query = `
		UPDATE tenant.tasks
		SET priority = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2;
	`
	res, err := r.db.ExecContext(ctx, query, tenantID, taskID, priority)
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

func (r *taskRepository) ListOverdue(ctx context.Context, now time.Time) ([]models.Task, error) {
	const query = `
		SELECT id, tenant_id, title, description, status, priority, assigned_to, customer_id, due_date, created_at, updated_at
		FROM tenant.tasks
		WHERE status IN ('TODO', 'IN_PROGRESS')
		  AND due_date IS NOT NULL AND due_date < $1
		  AND priority <> 'URGENT';
	`
	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		var (
			task       models.Task
			assignedTo sql.NullString
			customerID sql.NullString
			dueDate    sql.NullTime
		)
		if err := rows.Scan(
			&task.ID,
			&task.TenantID,
			&task.Title,
			&task.Description,
			&task.Status,
			&task.Priority,
			&assignedTo,
			&customerID,
			&dueDate,
			&task.CreatedAt,
			&task.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if assignedTo.Valid {
			val := assignedTo.String
			task.AssignedTo = &val
		}
		if customerID.Valid {
			val := customerID.String
			task.CustomerID = &val
		}
		if dueDate.Valid {
			t := dueDate.Time
			task.DueDate = &t
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}
