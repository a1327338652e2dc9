package models

import "time"

type Tenant struct {
	ID              string    `json:"id" db:"id"`
	Name            string    `json:"name" db:"name"`
	DefaultCurrency string    `json:"default_currency" db:"default_currency"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}
