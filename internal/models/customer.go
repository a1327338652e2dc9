package models

import "time"

// Customer tags are an append-only-if-absent collection; notes are an
// append-only log with timestamped entries. The automation layer never
// removes tags.
type Customer struct {
	ID        string    `json:"id" db:"id"`
	TenantID  string    `json:"tenant_id" db:"tenant_id"`
	Name      string    `json:"name" db:"name"`
	Email     *string   `json:"email,omitempty" db:"email"`
	Tags      []string  `json:"tags" db:"tags"`
	Notes     string    `json:"notes" db:"notes"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Tags applied by automation rules.
const (
	TagPaymentReminder = "Zahlungserinnerung"
	TagPaymentProblem  = "Zahlungsproblem"
	TagBankTransfer    = "Überweisungszahler"
	TagVIP             = "VIP"
	TagImportant       = "Wichtig"
)

func (c Customer) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
