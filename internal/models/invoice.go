package models

import "time"

type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "PENDING"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusOverdue   InvoiceStatus = "OVERDUE"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// MaxReminderLevel is the final escalation stage; level 3 reminders are
// handed to a human for collections review.
const MaxReminderLevel = 3

// Invoice carries the reminder escalation state. ReminderLevel only moves
// upward while the invoice is unpaid; marking the invoice PAID resets it
// to 0 and is terminal for reminders.
type Invoice struct {
	ID            string        `json:"id" db:"id"`
	TenantID      string        `json:"tenant_id" db:"tenant_id"`
	CustomerID    *string       `json:"customer_id,omitempty" db:"customer_id"`
	AppointmentID *string       `json:"appointment_id,omitempty" db:"appointment_id"`
	Amount        float64       `json:"amount" db:"amount"`
	Currency      string        `json:"currency" db:"currency"`
	Status        InvoiceStatus `json:"status" db:"status"`
	DueDate       *time.Time    `json:"due_date,omitempty" db:"due_date"`
	ReminderLevel int           `json:"reminder_level" db:"reminder_level"`
	PaidAt        *time.Time    `json:"paid_at,omitempty" db:"paid_at"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}

// DaysOverdue returns how many whole days the invoice is past its due date
// at the given instant.
func (i Invoice) DaysOverdue(now time.Time) int {
	if i.DueDate == nil || now.Before(*i.DueDate) {
		return 0
	}
	return int(now.Sub(*i.DueDate).Hours() / 24)
}

type ReminderStatus string

const (
	ReminderStatusPending   ReminderStatus = "PENDING"
	ReminderStatusSent      ReminderStatus = "SENT"
	ReminderStatusFailed    ReminderStatus = "FAILED"
	ReminderStatusCancelled ReminderStatus = "CANCELLED"
)

// InvoiceReminder records one escalation step. Rows are immutable after
// creation except for the status transition and the ai_text backfill on
// level-2 reminders.
type InvoiceReminder struct {
	ID        string         `json:"id" db:"id"`
	TenantID  string         `json:"tenant_id" db:"tenant_id"`
	InvoiceID string         `json:"invoice_id" db:"invoice_id"`
	Level     int            `json:"level" db:"level"`
	Status    ReminderStatus `json:"status" db:"status"`
	Method    string         `json:"method" db:"method"`
	AIText    *string        `json:"ai_text,omitempty" db:"ai_text"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}
