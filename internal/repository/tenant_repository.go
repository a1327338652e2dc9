package repository

import (
	"context"
	"database/sql"

	"github.com/planovo/planovo-api/internal/models"
)

type TenantRepository interface {
	CreateTenant(ctx context.Context, name, defaultCurrency string) (models.Tenant, error)
	GetTenantByID(ctx context.Context, id string) (models.Tenant, error)
}

type tenantRepository struct {
	db *sql.DB
}

func NewTenantRepository(db *sql.DB) TenantRepository {
	return &tenantRepository{db: db}
}

func (r *tenantRepository) CreateTenant(ctx context.Context, name, defaultCurrency string) (models.Tenant, error) {
	if defaultCurrency == "" {
		defaultCurrency = "EUR"
	}
	const query = `
		INSERT INTO tenant.tenants (name, default_currency)
		VALUES ($1, $2)
		RETURNING id, name, default_currency, created_at, updated_at;
	`
	var tenant models.Tenant
	err := r.db.QueryRowContext(ctx, query, name, defaultCurrency).
		Scan(&tenant.ID, &tenant.Name, &tenant.DefaultCurrency, &tenant.CreatedAt, &tenant.UpdatedAt)
	return tenant, err
}

func (r *tenantRepository) GetTenantByID(ctx context.Context, id string) (models.Tenant, error) {
	const query = `
		SELECT id, name, default_currency, created_at, updated_at
		FROM tenant.tenants
		WHERE id = $1;
	`
	var tenant models.Tenant
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&tenant.ID, &tenant.Name, &tenant.DefaultCurrency, &tenant.CreatedAt, &tenant.UpdatedAt)
	return tenant, err
}
