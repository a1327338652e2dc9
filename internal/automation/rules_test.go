package automation

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planovo/planovo-api/internal/events"
	"github.com/planovo/planovo-api/internal/models"
)

// In-memory fakes for the repositories the rules touch. They reproduce
// the guard semantics of the SQL layer (CAS level advance, status-guarded
// reminder insert, tag dedup) so the rule tests exercise the same
// contracts production code relies on.

type fakeTasks struct {
	created         []models.Task
	openForCustomer map[string]bool
	priorities      map[string]models.TaskPriority
}

func newFakeTasks() *fakeTasks {
	return &fakeTasks{
		openForCustomer: make(map[string]bool),
		priorities:      make(map[string]models.TaskPriority),
	}
}

func (f *fakeTasks) Create(_ context.Context, task models.Task) (models.Task, error) {
	if task.Status == "" {
		task.Status = models.TaskStatusTodo
	}
	if task.Priority == "" {
		task.Priority = models.TaskPriorityMedium
	}
	task.ID = fmt.Sprintf("task-%d", len(f.created)+1)
	f.created = append(f.created, task)
	return task, nil
}

func (f *fakeTasks) HasOpenForCustomer(_ context.Context, _, customerID string) (bool, error) {
	return f.openForCustomer[customerID], nil
}

func (f *fakeTasks) SetPriority(_ context.Context, _, taskID string, priority models.TaskPriority) error {
	if _, ok := f.priorities[taskID]; !ok {
		return sql.ErrNoRows
	}
	f.priorities[taskID] = priority
	return nil
}

func (f *fakeTasks) ListOverdue(context.Context, time.Time) ([]models.Task, error) {
	return nil, nil
}

type fakeCustomers struct {
	customers map[string]*models.Customer
}

func newFakeCustomers(customers ...models.Customer) *fakeCustomers {
	f := &fakeCustomers{customers: make(map[string]*models.Customer)}
	for i := range customers {
		c := customers[i]
		f.customers[c.ID] = &c
	}
	return f
}

func (f *fakeCustomers) Get(_ context.Context, _, customerID string) (models.Customer, error) {
	c, ok := f.customers[customerID]
	if !ok {
		return models.Customer{}, sql.ErrNoRows
	}
	return *c, nil
}

func (f *fakeCustomers) AddTag(_ context.Context, _, customerID, tag string) (bool, error) {
	c, ok := f.customers[customerID]
	if !ok {
		return false, nil
	}
	if c.HasTag(tag) {
		return false, nil
	}
	c.Tags = append(c.Tags, tag)
	return true, nil
}

func (f *fakeCustomers) AppendNote(_ context.Context, _, customerID, note string) error {
	c, ok := f.customers[customerID]
	if !ok {
		return sql.ErrNoRows
	}
	c.Notes += "\n" + note
	return nil
}

type fakeInvoices struct {
	invoices map[string]*models.Invoice
	drafts   []models.Invoice
}

func newFakeInvoices(invoices ...models.Invoice) *fakeInvoices {
	f := &fakeInvoices{invoices: make(map[string]*models.Invoice)}
	for i := range invoices {
		inv := invoices[i]
		f.invoices[inv.ID] = &inv
	}
	return f
}

func (f *fakeInvoices) Get(_ context.Context, _, invoiceID string) (models.Invoice, error) {
	inv, ok := f.invoices[invoiceID]
	if !ok {
		return models.Invoice{}, sql.ErrNoRows
	}
	return *inv, nil
}

func (f *fakeInvoices) List(context.Context, string, int, int) ([]models.Invoice, error) {
	return nil, nil
}

func (f *fakeInvoices) CreateDraft(_ context.Context, inv models.Invoice) (models.Invoice, error) {
	inv.ID = fmt.Sprintf("inv-draft-%d", len(f.drafts)+1)
	f.drafts = append(f.drafts, inv)
	f.invoices[inv.ID] = &inv
	return inv, nil
}

func (f *fakeInvoices) MarkPaid(_ context.Context, _, invoiceID string, paidAt time.Time) (bool, error) {
	inv, ok := f.invoices[invoiceID]
	if !ok || inv.Status == models.InvoiceStatusPaid || inv.Status == models.InvoiceStatusCancelled {
		return false, nil
	}
	inv.Status = models.InvoiceStatusPaid
	inv.ReminderLevel = 0
	inv.PaidAt = &paidAt
	return true, nil
}

func (f *fakeInvoices) AdvanceReminderLevel(_ context.Context, _, invoiceID string, fromLevel int) (bool, error) {
	inv, ok := f.invoices[invoiceID]
	if !ok || inv.Status != models.InvoiceStatusOverdue || inv.ReminderLevel != fromLevel {
		return false, nil
	}
	inv.ReminderLevel++
	return true, nil
}

func (f *fakeInvoices) MarkOverdue(context.Context, time.Time) ([]models.Invoice, error) {
	return nil, nil
}

func (f *fakeInvoices) ListEscalatable(context.Context, time.Time) ([]models.Invoice, error) {
	return nil, nil
}

type fakeReminders struct {
	invoices *fakeInvoices
	created  []*models.InvoiceReminder
}

func (f *fakeReminders) Create(_ context.Context, rem models.InvoiceReminder) (models.InvoiceReminder, error) {
	inv, ok := f.invoices.invoices[rem.InvoiceID]
	if !ok || inv.Status == models.InvoiceStatusPaid || inv.Status == models.InvoiceStatusCancelled {
		return models.InvoiceReminder{}, sql.ErrNoRows
	}
	if rem.Status == "" {
		rem.Status = models.ReminderStatusPending
	}
	rem.ID = fmt.Sprintf("rem-%d", len(f.created)+1)
	rem.CreatedAt = time.Now()
	stored := rem
	f.created = append(f.created, &stored)
	return rem, nil
}

func (f *fakeReminders) SetAIText(_ context.Context, _, invoiceID string, level int, text string) error {
	for _, rem := range f.created {
		if rem.InvoiceID == invoiceID && rem.Level == level && rem.Status == models.ReminderStatusPending {
			t := text
			rem.AIText = &t
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeReminders) SetStatus(_ context.Context, _, reminderID string, status models.ReminderStatus) error {
	for _, rem := range f.created {
		if rem.ID == reminderID {
			rem.Status = status
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeReminders) CancelPending(_ context.Context, _, invoiceID string) (int64, error) {
	var cancelled int64
	for _, rem := range f.created {
		if rem.InvoiceID == invoiceID && rem.Status == models.ReminderStatusPending {
			rem.Status = models.ReminderStatusCancelled
			cancelled++
		}
	}
	return cancelled, nil
}

func (f *fakeReminders) ListByInvoice(_ context.Context, _, invoiceID string) ([]models.InvoiceReminder, error) {
	var out []models.InvoiceReminder
	for _, rem := range f.created {
		if rem.InvoiceID == invoiceID {
			out = append(out, *rem)
		}
	}
	return out, nil
}

type reassignCall struct {
	tenantID   string
	employeeID string
	from       time.Time
}

type fakeAppointments struct {
	reassigned []reassignCall
}

func (f *fakeAppointments) Create(_ context.Context, appt models.Appointment) (models.Appointment, error) {
	return appt, nil
}

func (f *fakeAppointments) Get(context.Context, string, string) (models.Appointment, error) {
	return models.Appointment{}, sql.ErrNoRows
}

func (f *fakeAppointments) Complete(context.Context, string, string) (models.Appointment, error) {
	return models.Appointment{}, sql.ErrNoRows
}

func (f *fakeAppointments) MarkFutureForReassignment(_ context.Context, tenantID, employeeID string, from time.Time) (int64, error) {
	f.reassigned = append(f.reassigned, reassignCall{tenantID: tenantID, employeeID: employeeID, from: from})
	return 2, nil
}

func (f *fakeAppointments) ListByDay(context.Context, string, time.Time) ([]models.Appointment, error) {
	return nil, nil
}

type fakeTenants struct{}

func (fakeTenants) CreateTenant(context.Context, string, string) (models.Tenant, error) {
	return models.Tenant{}, nil
}

func (fakeTenants) GetTenantByID(_ context.Context, id string) (models.Tenant, error) {
	return models.Tenant{ID: id, Name: "Acme Services", DefaultCurrency: "EUR"}, nil
}

type fakeTextGen struct {
	prompts []string
	reply   string
}

func (f *fakeTextGen) Generate(_ context.Context, _ string, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, nil
}

type fakeEmitter struct {
	events []events.Event
}

func (f *fakeEmitter) Emit(_ context.Context, evt events.Event) {
	f.events = append(f.events, evt)
}

// fixture wires the default rule set against fakes and dispatches events
// through a real engine, so conditions, ordering, and failure isolation
// all run exactly as in production.
type fixture struct {
	tasks        *fakeTasks
	customers    *fakeCustomers
	invoices     *fakeInvoices
	reminders    *fakeReminders
	appointments *fakeAppointments
	textgen      *fakeTextGen
	emitter      *fakeEmitter
	engine       *Engine
}

func newFixture(customers []models.Customer, invoices []models.Invoice) *fixture {
	f := &fixture{
		tasks:        newFakeTasks(),
		customers:    newFakeCustomers(customers...),
		invoices:     newFakeInvoices(invoices...),
		appointments: &fakeAppointments{},
		textgen:      &fakeTextGen{reply: "Sehr geehrte Damen und Herren, ..."},
		emitter:      &fakeEmitter{},
	}
	f.reminders = &fakeReminders{invoices: f.invoices}

	registry := NewRegistry()
	registry.RegisterAll(DefaultRules(Deps{
		Tasks:        f.tasks,
		Customers:    f.customers,
		Invoices:     f.invoices,
		Reminders:    f.reminders,
		Appointments: f.appointments,
		Tenants:      fakeTenants{},
		TextGen:      f.textgen,
		Bus:          f.emitter,
		Logger:       zerolog.Nop(),
	}))
	f.engine = NewEngine(registry, &fakeSubscriber{}, zerolog.Nop())
	return f
}

func (f *fixture) dispatch(t *testing.T, evt events.Event) {
	t.Helper()
	require.NoError(t, f.engine.handleEvent(context.Background(), evt))
}

func (f *fixture) tasksByTitle(title string) []models.Task {
	var out []models.Task
	for _, task := range f.tasks.created {
		if task.Title == title {
			out = append(out, task)
		}
	}
	return out
}

func daysAgo(n int) *time.Time {
	t := time.Now().AddDate(0, 0, -n)
	return &t
}

func TestNewAppointmentCreatesFollowUpTaskOnce(t *testing.T) {
	f := newFixture(nil, nil)
	evt := events.AppointmentCreated{TenantID: "t1", AppointmentID: "appt-1", CustomerID: "cust-1"}

	f.dispatch(t, evt)
	created := f.tasksByTitle("Customer follow-up")
	require.Len(t, created, 1)
	assert.Equal(t, models.TaskPriorityMedium, created[0].Priority)
	require.NotNil(t, created[0].CustomerID)
	assert.Equal(t, "cust-1", *created[0].CustomerID)

	// With an open task for the customer the gate closes.
	f.tasks.openForCustomer["cust-1"] = true
	f.dispatch(t, evt)
	assert.Len(t, f.tasksByTitle("Customer follow-up"), 1)
}

func TestSickEmployeeAppointmentsMarkedForReassignment(t *testing.T) {
	f := newFixture(nil, nil)
	before := time.Now()
	f.dispatch(t, events.EmployeeSick{TenantID: "t1", EmployeeID: "emp-7"})

	require.Len(t, f.appointments.reassigned, 1)
	call := f.appointments.reassigned[0]
	assert.Equal(t, "t1", call.tenantID)
	assert.Equal(t, "emp-7", call.employeeID)
	// The cutoff is the moment of the sick report, so appointments already
	// in the past stay with the employee.
	assert.WithinRange(t, call.from, before, time.Now())
}

func TestOverdueInvoiceCreatesLevelOneReminderOnce(t *testing.T) {
	f := newFixture(
		[]models.Customer{{ID: "cust-1", TenantID: "t1", Name: "Erika Muster"}},
		[]models.Invoice{{
			ID: "inv-1", TenantID: "t1", Amount: 250, Currency: "EUR",
			Status: models.InvoiceStatusOverdue, DueDate: daysAgo(5),
		}},
	)
	evt := events.InvoiceOverdue{TenantID: "t1", InvoiceID: "inv-1", CustomerID: "cust-1"}

	f.dispatch(t, evt)
	f.dispatch(t, evt)

	require.Len(t, f.reminders.created, 1)
	assert.Equal(t, 1, f.reminders.created[0].Level)
	assert.Equal(t, 1, f.invoices.invoices["inv-1"].ReminderLevel)

	var reminderEvents int
	for _, emitted := range f.emitter.events {
		if created, ok := emitted.(events.InvoiceReminderCreated); ok {
			reminderEvents++
			assert.Equal(t, 1, created.Level)
			assert.Equal(t, "rem-1", created.ReminderID)
		}
	}
	assert.Equal(t, 1, reminderEvents)

	// The tagging rule fires alongside; dedup keeps a single tag and note.
	customer := f.customers.customers["cust-1"]
	assert.Equal(t, []string{models.TagPaymentReminder}, customer.Tags)
	assert.Equal(t, "\nPayment reminder started for invoice inv-1.", customer.Notes)
}

func TestPaidInvoiceIgnoresLateOverdueEvent(t *testing.T) {
	paidAt := time.Now().AddDate(0, 0, -1)
	f := newFixture(
		[]models.Customer{{ID: "cust-1", TenantID: "t1", Name: "Erika Muster"}},
		[]models.Invoice{{
			ID: "inv-1", TenantID: "t1", Amount: 250, Currency: "EUR",
			Status: models.InvoiceStatusPaid, DueDate: daysAgo(5), PaidAt: &paidAt,
		}},
	)

	// A stale overdue event arriving after payment must not restart the
	// reminder machine.
	f.dispatch(t, events.InvoiceOverdue{TenantID: "t1", InvoiceID: "inv-1", CustomerID: "cust-1"})

	assert.Empty(t, f.reminders.created)
	assert.Equal(t, 0, f.invoices.invoices["inv-1"].ReminderLevel)
	assert.Equal(t, models.InvoiceStatusPaid, f.invoices.invoices["inv-1"].Status)
	for _, emitted := range f.emitter.events {
		_, ok := emitted.(events.InvoiceReminderCreated)
		assert.False(t, ok, "no reminder event expected for a paid invoice")
	}
}

func TestFailedPaymentTagIsDeduplicated(t *testing.T) {
	f := newFixture([]models.Customer{{ID: "cust-1", TenantID: "t1", Name: "Erika Muster"}}, nil)
	evt := events.PaymentFailed{TenantID: "t1", InvoiceID: "inv-1", CustomerID: "cust-1", Amount: 99.5, Method: events.PaymentMethodCard}

	f.dispatch(t, evt)
	f.dispatch(t, evt)

	var occurrences int
	for _, tag := range f.customers.customers["cust-1"].Tags {
		if tag == models.TagPaymentProblem {
			occurrences++
		}
	}
	assert.Equal(t, 1, occurrences)
}

func TestPaymentStopsReminderMachine(t *testing.T) {
	f := newFixture(
		[]models.Customer{{ID: "cust-1", TenantID: "t1"}},
		[]models.Invoice{{
			ID: "inv-1", TenantID: "t1", Amount: 480, Currency: "EUR",
			Status: models.InvoiceStatusOverdue, ReminderLevel: 2, DueDate: daysAgo(20),
		}},
	)
	_, err := f.reminders.Create(context.Background(), models.InvoiceReminder{
		TenantID: "t1", InvoiceID: "inv-1", Level: 2, Method: "email",
	})
	require.NoError(t, err)

	evt := events.PaymentPaid{TenantID: "t1", InvoiceID: "inv-1", CustomerID: "cust-1", Amount: 480, Method: events.PaymentMethodCard}
	f.dispatch(t, evt)

	inv := f.invoices.invoices["inv-1"]
	assert.Equal(t, models.InvoiceStatusPaid, inv.Status)
	assert.Zero(t, inv.ReminderLevel)
	assert.Equal(t, models.ReminderStatusCancelled, f.reminders.created[0].Status)

	// Replaying the payment with nothing left to cancel stays clean.
	f.dispatch(t, evt)
	assert.Equal(t, models.InvoiceStatusPaid, inv.Status)
	assert.Len(t, f.tasksByTitle("Payment received"), 2)
}

func TestBankTransferPayerTagged(t *testing.T) {
	f := newFixture([]models.Customer{{ID: "cust-1", TenantID: "t1"}}, nil)

	f.dispatch(t, events.PaymentPaid{TenantID: "t1", InvoiceID: "", CustomerID: "cust-1", Amount: 10, Method: events.PaymentMethodCash})
	assert.Empty(t, f.customers.customers["cust-1"].Tags)

	f.dispatch(t, events.PaymentPaid{TenantID: "t1", InvoiceID: "", CustomerID: "cust-1", Amount: 10, Method: events.PaymentMethodBankTransfer})
	assert.Equal(t, []string{models.TagBankTransfer}, f.customers.customers["cust-1"].Tags)
}

func TestLevelTwoReminderLetterOmitsPersonalData(t *testing.T) {
	f := newFixture(
		[]models.Customer{{ID: "cust-1", TenantID: "t1", Name: "Erika Muster"}},
		[]models.Invoice{{
			ID: "inv-1", TenantID: "t1", Amount: 250.5, Currency: "EUR",
			Status: models.InvoiceStatusOverdue, ReminderLevel: 2, DueDate: daysAgo(10),
		}},
	)
	_, err := f.reminders.Create(context.Background(), models.InvoiceReminder{
		TenantID: "t1", InvoiceID: "inv-1", Level: 2, Method: "email",
	})
	require.NoError(t, err)

	f.dispatch(t, events.InvoiceReminderCreated{TenantID: "t1", InvoiceID: "inv-1", ReminderID: "rem-1", Level: 2})

	require.Len(t, f.textgen.prompts, 1)
	prompt := f.textgen.prompts[0]
	assert.NotContains(t, prompt, "Erika")
	assert.NotContains(t, prompt, "Muster")
	assert.NotContains(t, prompt, "cust-1")
	assert.Contains(t, prompt, "250.50 EUR")
	assert.Contains(t, prompt, "10 days overdue")

	require.NotNil(t, f.reminders.created[0].AIText)
	assert.Equal(t, f.textgen.reply, *f.reminders.created[0].AIText)
}

func TestLevelThreeReminderEscalatesToCollections(t *testing.T) {
	f := newFixture(nil, []models.Invoice{{
		ID: "inv-1", TenantID: "t1", Status: models.InvoiceStatusOverdue, ReminderLevel: 3,
	}})
	f.dispatch(t, events.InvoiceReminderCreated{TenantID: "t1", InvoiceID: "inv-1", ReminderID: "rem-3", Level: 3})

	collections := f.tasksByTitle("Review invoice for collections")
	require.Len(t, collections, 1)
	assert.Equal(t, models.TaskPriorityHigh, collections[0].Priority)

	require.Len(t, f.emitter.events, 1)
	escalated, ok := f.emitter.events[0].(events.InvoiceReminderEscalated)
	require.True(t, ok)
	assert.Equal(t, 3, escalated.Level)
	assert.Equal(t, "inv-1", escalated.InvoiceID)
}

func TestCompletedAppointmentDraftsInvoice(t *testing.T) {
	f := newFixture(nil, nil)

	f.dispatch(t, events.AppointmentCompleted{TenantID: "t1", AppointmentID: "appt-1", CustomerID: "cust-1", Price: 120})
	require.Len(t, f.invoices.drafts, 1)
	draft := f.invoices.drafts[0]
	assert.Equal(t, models.InvoiceStatusPending, draft.Status)
	assert.Equal(t, 120.0, draft.Amount)
	assert.Equal(t, "EUR", draft.Currency)
	require.NotNil(t, draft.CustomerID)
	assert.Equal(t, "cust-1", *draft.CustomerID)
	require.NotNil(t, draft.DueDate)

	// Walk-in without a customer record produces no invoice.
	f.dispatch(t, events.AppointmentCompleted{TenantID: "t1", AppointmentID: "appt-2", Price: 40})
	assert.Len(t, f.invoices.drafts, 1)
}

func TestLowInventoryTaskNamesQuantities(t *testing.T) {
	f := newFixture(nil, nil)
	f.dispatch(t, events.InventoryLow{
		TenantID: "t1", ItemID: "item-1", ItemName: "Hair color 7.1",
		CurrentQuantity: 2, MinThreshold: 10,
	})

	require.Len(t, f.tasks.created, 1)
	task := f.tasks.created[0]
	assert.Equal(t, models.TaskPriorityHigh, task.Priority)
	assert.Contains(t, task.Title, "Hair color 7.1")
	assert.Contains(t, task.Description, "2")
	assert.Contains(t, task.Description, "10")
}

func TestAnomalousAIUsageFlagged(t *testing.T) {
	f := newFixture(nil, nil)

	f.dispatch(t, events.AIUsageRecorded{TenantID: "t1", Feature: "text_generation", TotalTokens: 50000})
	assert.Empty(t, f.tasks.created)

	f.dispatch(t, events.AIUsageRecorded{TenantID: "t1", Feature: "text_generation", TotalTokens: 150000})
	require.Len(t, f.tasks.created, 1)
	assert.Equal(t, models.TaskPriorityHigh, f.tasks.created[0].Priority)
	assert.Contains(t, f.tasks.created[0].Description, "150000")
}

func TestOverdueTaskBumpedToUrgent(t *testing.T) {
	f := newFixture(nil, nil)
	f.tasks.priorities["task-9"] = models.TaskPriorityMedium

	f.dispatch(t, events.TaskOverdue{TenantID: "t1", TaskID: "task-9"})
	assert.Equal(t, models.TaskPriorityUrgent, f.tasks.priorities["task-9"])

	// A task deleted in the meantime is tolerated.
	f.dispatch(t, events.TaskOverdue{TenantID: "t1", TaskID: "task-gone"})
}

func TestPaymentRecordedAsBookkeepingTask(t *testing.T) {
	f := newFixture([]models.Customer{{ID: "cust-1", TenantID: "t1"}}, nil)
	f.dispatch(t, events.PaymentPaid{TenantID: "t1", InvoiceID: "", CustomerID: "cust-1", Amount: 75.25, Method: events.PaymentMethodCash})

	records := f.tasksByTitle("Payment received")
	require.Len(t, records, 1)
	assert.Equal(t, models.TaskStatusDone, records[0].Status)
	assert.Equal(t, models.TaskPriorityLow, records[0].Priority)
	assert.Contains(t, records[0].Description, "75.25")
}
