package models

import "time"

type AppointmentStatus string

const (
	AppointmentStatusPending           AppointmentStatus = "PENDING"
	AppointmentStatusAccepted          AppointmentStatus = "ACCEPTED"
	AppointmentStatusCompleted         AppointmentStatus = "COMPLETED"
	AppointmentStatusCancelled         AppointmentStatus = "CANCELLED"
	AppointmentStatusNeedsReassignment AppointmentStatus = "NEEDS_REASSIGNMENT"
)

type Appointment struct {
	ID         string            `json:"id" db:"id"`
	TenantID   string            `json:"tenant_id" db:"tenant_id"`
	CustomerID *string           `json:"customer_id,omitempty" db:"customer_id"`
	EmployeeID string            `json:"employee_id" db:"employee_id"`
	Title      string            `json:"title" db:"title"`
	StartTime  time.Time         `json:"start_time" db:"start_time"`
	EndTime    time.Time         `json:"end_time" db:"end_time"`
	Price      *float64          `json:"price,omitempty" db:"price"`
	Status     AppointmentStatus `json:"status" db:"status"`
	CreatedAt  time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at" db:"updated_at"`

	// Denormalized customer fields, populated by day-scoped report queries.
	CustomerName string   `json:"customer_name,omitempty"`
	CustomerTags []string `json:"customer_tags,omitempty"`
}

// DurationMinutes returns the booked length of the appointment.
func (a Appointment) DurationMinutes() int {
	if !a.EndTime.After(a.StartTime) {
		return 0
	}
	return int(a.EndTime.Sub(a.StartTime).Minutes())
}

// Overlaps reports whether two appointment intervals intersect.
func (a Appointment) Overlaps(b Appointment) bool {
	return a.StartTime.Before(b.EndTime) && b.StartTime.Before(a.EndTime)
}
