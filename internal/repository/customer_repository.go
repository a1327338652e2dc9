package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/planovo/planovo-api/internal/models"
)

type CustomerRepository interface {
	Get(ctx context.Context, tenantID, customerID string) (models.Customer, error)
	// AddTag appends the tag if the customer does not already carry it.
	// Returns true when the tag was newly added. The presence check and
	// append happen in a single statement so concurrent rule executions
	// cannot produce duplicates.
	AddTag(ctx context.Context, tenantID, customerID, tag string) (bool, error)
	// AppendNote adds a timestamped entry to the customer's note log.
	AppendNote(ctx context.Context, tenantID, customerID, note string) error
}

type customerRepository struct {
	db *sql.DB
}

func NewCustomerRepository(db *sql.DB) CustomerRepository {
	return &customerRepository{db: db}
}

func (r *customerRepository) Get(ctx context.Context, tenantID, customerID string) (models.Customer, error) {
	const query = `
		SELECT id, tenant_id, name, email, tags, notes, created_at, updated_at
		FROM tenant.customers
		WHERE tenant_id = $1 AND id = $2;
	`
	var (
		customer models.Customer
		email    sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, tenantID, customerID).Scan(
		&customer.ID,
		&customer.TenantID,
		&customer.Name,
		&email,
		pq.Array(&customer.Tags),
		&customer.Notes,
		&customer.CreatedAt,
		&customer.UpdatedAt,
	)
	if err != nil {
		return models.Customer{}, err
	}
	if email.Valid {
		val := email.String
		customer.Email = &val
	}
	return customer, nil
}

func (r *customerRepository) AddTag(ctx context.Context, tenantID, customerID, tag string) (bool, error) {
	const query = `
		UPDATE tenant.customers
		SET tags = array_append(tags, $3), updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND NOT ($3 = ANY(tags));
	`
	res, err := r.db.ExecContext(ctx, query, tenantID, customerID, tag)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *customerRepository) AppendNote(ctx context.Context, tenantID, customerID, note string) error {
	const query = `
		UPDATE tenant.customers
		SET notes = notes || $3, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2;
	`
	entry := fmt.Sprintf("\n[%s] %s", time.Now().UTC().Format(time.RFC3339), note)
	res, err := r.db.ExecContext(ctx, query, tenantID, customerID, entry)
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
