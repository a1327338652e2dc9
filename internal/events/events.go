// Package events defines the closed set of domain events the automation
// engine reacts to. Each event name has exactly one payload type, so rule
// code binds to a concrete struct instead of narrowing a generic map at
// runtime. Events are immutable value objects; identity is not tracked and
// duplicate emissions are not deduplicated.
package events

// Event names. The bus keys subscriptions by these strings.
const (
	AppointmentCreatedName       = "appointment.created"
	AppointmentCompletedName     = "appointment.completed"
	EmployeeSickName             = "employee.sick"
	InvoiceOverdueName           = "invoice.overdue"
	InvoiceReminderCreatedName   = "invoice.reminder_created"
	InvoiceReminderEscalatedName = "invoice.reminder_escalated"
	InventoryLowName             = "inventory.low"
	TaskOverdueName              = "task.overdue"
	PaymentPaidName              = "payment.paid"
	PaymentFailedName            = "payment.failed"
	AIUsageRecordedName          = "ai.usage_recorded"
)

// Payment methods as reported by the gateway boundary.
const (
	PaymentMethodBankTransfer = "BANK_TRANSFER"
	PaymentMethodCard         = "CARD"
	PaymentMethodCash         = "CASH"
)

// Event is the payload union. Every concrete event carries the tenant it
// belongs to; the bus and engine treat the rest of the payload as opaque.
type Event interface {
	Name() string
	Tenant() string
}

type AppointmentCreated struct {
	TenantID      string
	AppointmentID string
	CustomerID    string
}

func (AppointmentCreated) Name() string     { return AppointmentCreatedName }
func (e AppointmentCreated) Tenant() string { return e.TenantID }

type AppointmentCompleted struct {
	TenantID      string
	AppointmentID string
	CustomerID    string
	Price         float64
}

func (AppointmentCompleted) Name() string     { return AppointmentCompletedName }
func (e AppointmentCompleted) Tenant() string { return e.TenantID }

type EmployeeSick struct {
	TenantID   string
	EmployeeID string
}

func (EmployeeSick) Name() string     { return EmployeeSickName }
func (e EmployeeSick) Tenant() string { return e.TenantID }

type InvoiceOverdue struct {
	TenantID   string
	InvoiceID  string
	CustomerID string
}

func (InvoiceOverdue) Name() string     { return InvoiceOverdueName }
func (e InvoiceOverdue) Tenant() string { return e.TenantID }

type InvoiceReminderCreated struct {
	TenantID   string
	InvoiceID  string
	ReminderID string
	Level      int
}

func (InvoiceReminderCreated) Name() string     { return InvoiceReminderCreatedName }
func (e InvoiceReminderCreated) Tenant() string { return e.TenantID }

type InvoiceReminderEscalated struct {
	TenantID  string
	InvoiceID string
	Level     int
}

func (InvoiceReminderEscalated) Name() string     { return InvoiceReminderEscalatedName }
func (e InvoiceReminderEscalated) Tenant() string { return e.TenantID }

type InventoryLow struct {
	TenantID        string
	ItemID          string
	ItemName        string
	CurrentQuantity int
	MinThreshold    int
}

func (InventoryLow) Name() string     { return InventoryLowName }
func (e InventoryLow) Tenant() string { return e.TenantID }

type TaskOverdue struct {
	TenantID string
	TaskID   string
}

func (TaskOverdue) Name() string     { return TaskOverdueName }
func (e TaskOverdue) Tenant() string { return e.TenantID }

type PaymentPaid struct {
	TenantID   string
	InvoiceID  string
	CustomerID string
	Amount     float64
	Method     string
}

func (PaymentPaid) Name() string     { return PaymentPaidName }
func (e PaymentPaid) Tenant() string { return e.TenantID }

type PaymentFailed struct {
	TenantID   string
	InvoiceID  string
	CustomerID string
	Amount     float64
	Method     string
}

func (PaymentFailed) Name() string     { return PaymentFailedName }
func (e PaymentFailed) Tenant() string { return e.TenantID }

type AIUsageRecorded struct {
	TenantID    string
	Feature     string
	TotalTokens int
}

func (AIUsageRecorded) Name() string     { return AIUsageRecordedName }
func (e AIUsageRecorded) Tenant() string { return e.TenantID }
