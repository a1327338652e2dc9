package repository

import (
	"context"
	"database/sql"

	"github.com/planovo/planovo-api/internal/models"
)

type InventoryRepository interface {
	Get(ctx context.Context, tenantID, itemID string) (models.InventoryItem, error)
	// AdjustQuantity applies a signed delta and returns the updated item.
	AdjustQuantity(ctx context.Context, tenantID, itemID string, delta int) (models.InventoryItem, error)
	ListBelowThreshold(ctx context.Context, tenantID string) ([]models.InventoryItem, error)
}

type inventoryRepository struct {
	db *sql.DB
}

func NewInventoryRepository(db *sql.DB) InventoryRepository {
	return &inventoryRepository{db: db}
}

const inventoryColumns = `id, tenant_id, name, quantity, min_threshold, unit, updated_at`

func (r *inventoryRepository) Get(ctx context.Context, tenantID, itemID string) (models.InventoryItem, error) {
	query := `
		SELECT ` + inventoryColumns + `
		FROM tenant.inventory_items
		WHERE tenant_id = $1 AND id = $2;
	`
	return scanInventoryItem(r.db.QueryRowContext(ctx, query, tenantID, itemID))
}

func (r *inventoryRepository) AdjustQuantity(ctx context.Context, tenantID, itemID string, delta int) (models.InventoryItem, error) {
	query := `
		UPDATE tenant.inventory_items
		SET quantity = GREATEST(quantity + $3, 0), updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING ` + inventoryColumns + `;
	`
	return scanInventoryItem(r.db.QueryRowContext(ctx, query, tenantID, itemID, delta))
}

func (r *inventoryRepository) ListBelowThreshold(ctx context.Context, tenantID string) ([]models.InventoryItem, error) {
	query := `
		SELECT ` + inventoryColumns + `
		FROM tenant.inventory_items
		WHERE tenant_id = $1 AND quantity < min_threshold
		ORDER BY name;
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.InventoryItem
	for rows.Next() {
		item, err := scanInventoryItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanInventoryItem(scanner interface {
	Scan(dest ...interface{}) error
}) (models.InventoryItem, error) {
	var item models.InventoryItem
	err := scanner.Scan(
		&item.ID,
		&item.TenantID,
		&item.Name,
		&item.Quantity,
		&item.MinThreshold,
		&item.Unit,
		&item.UpdatedAt,
	)
	return item, err
}
