package models

import "time"

type InventoryItem struct {
	ID           string    `json:"id" db:"id"`
	TenantID     string    `json:"tenant_id" db:"tenant_id"`
	Name         string    `json:"name" db:"name"`
	Quantity     int       `json:"quantity" db:"quantity"`
	MinThreshold int       `json:"min_threshold" db:"min_threshold"`
	Unit         string    `json:"unit" db:"unit"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// BelowThreshold reports whether the item needs restocking.
func (i InventoryItem) BelowThreshold() bool {
	return i.Quantity < i.MinThreshold
}
