package report

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planovo/planovo-api/internal/models"
)

type fakeAppointments struct {
	byDay map[string][]models.Appointment
}

func (f *fakeAppointments) Create(_ context.Context, appt models.Appointment) (models.Appointment, error) {
	return appt, nil
}

func (f *fakeAppointments) Get(context.Context, string, string) (models.Appointment, error) {
	return models.Appointment{}, nil
}

func (f *fakeAppointments) Complete(context.Context, string, string) (models.Appointment, error) {
	return models.Appointment{}, nil
}

func (f *fakeAppointments) MarkFutureForReassignment(context.Context, string, string, time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeAppointments) ListByDay(_ context.Context, _ string, day time.Time) ([]models.Appointment, error) {
	return f.byDay[day.Format("2006-01-02")], nil
}

type fakeEmployees struct {
	list []models.Employee
}

func (f *fakeEmployees) Get(context.Context, string, string) (models.Employee, error) {
	return models.Employee{}, nil
}

func (f *fakeEmployees) List(context.Context, string) ([]models.Employee, error) {
	return f.list, nil
}

func (f *fakeEmployees) SetStatus(context.Context, string, string, models.EmployeeStatus) error {
	return nil
}

type fakeInventory struct {
	low []models.InventoryItem
}

func (f *fakeInventory) Get(context.Context, string, string) (models.InventoryItem, error) {
	return models.InventoryItem{}, nil
}

func (f *fakeInventory) AdjustQuantity(context.Context, string, string, int) (models.InventoryItem, error) {
	return models.InventoryItem{}, nil
}

func (f *fakeInventory) ListBelowThreshold(context.Context, string) ([]models.InventoryItem, error) {
	return f.low, nil
}

// reportDate is a Monday; tomorrow is Tuesday.
var reportDate = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func fullWeek(start, end string) models.WorkSchedule {
	s := models.WorkSchedule{}
	for _, day := range []string{"monday", "tuesday", "wednesday", "thursday", "friday"} {
		s[day] = models.WorkWindow{Start: start, End: end}
	}
	return s
}

func appt(id, employeeID string, day time.Time, startHour, durationMinutes int, status models.AppointmentStatus) models.Appointment {
	start := day.Add(time.Duration(startHour) * time.Hour)
	return models.Appointment{
		ID:         id,
		TenantID:   "t1",
		EmployeeID: employeeID,
		Title:      "Appointment " + id,
		StartTime:  start,
		EndTime:    start.Add(time.Duration(durationMinutes) * time.Minute),
		Status:     status,
	}
}

func priced(a models.Appointment, price float64) models.Appointment {
	a.Price = &price
	return a
}

func generate(t *testing.T, appts *fakeAppointments, emps *fakeEmployees, inv *fakeInventory) models.DailyReport {
	t.Helper()
	gen := NewGenerator(appts, emps, inv, zerolog.Nop())
	report, err := gen.Generate(context.Background(), "t1", reportDate)
	require.NoError(t, err)
	return report
}

func TestUtilizationCappedAndOvertimeReported(t *testing.T) {
	emps := &fakeEmployees{list: []models.Employee{
		{ID: "emp-1", Name: "Anna", Status: models.EmployeeStatusActive, WorkHours: fullWeek("09:00", "18:00")},
	}}
	appts := &fakeAppointments{byDay: map[string][]models.Appointment{
		// 540 booked minutes against a 480 minute day.
		reportDate.Format("2006-01-02"): {
			appt("a1", "emp-1", reportDate, 9, 300, models.AppointmentStatusCompleted),
			appt("a2", "emp-1", reportDate, 14, 240, models.AppointmentStatusAccepted),
		},
	}}

	report := generate(t, appts, emps, &fakeInventory{})

	require.Len(t, report.Metrics.Utilization, 1)
	util := report.Metrics.Utilization[0]
	assert.Equal(t, 540, util.BookedMinutes)
	assert.Equal(t, 1.0, util.Utilization)

	require.Len(t, report.Metrics.OvertimeEmployees, 1)
	assert.InDelta(t, 1.0, report.Metrics.OvertimeEmployees[0].OvertimeHours, 0.001)
}

func TestRevenueCountsOnlyAcceptedAndCompleted(t *testing.T) {
	emps := &fakeEmployees{list: []models.Employee{
		{ID: "emp-1", Name: "Anna", Status: models.EmployeeStatusActive, WorkHours: fullWeek("08:00", "18:00")},
	}}
	appts := &fakeAppointments{byDay: map[string][]models.Appointment{
		reportDate.Format("2006-01-02"): {
			priced(appt("a1", "emp-1", reportDate, 9, 60, models.AppointmentStatusCompleted), 80),
			priced(appt("a2", "emp-1", reportDate, 11, 60, models.AppointmentStatusAccepted), 50),
			priced(appt("a3", "emp-1", reportDate, 13, 60, models.AppointmentStatusCancelled), 200),
			priced(appt("a4", "emp-1", reportDate, 15, 60, models.AppointmentStatusPending), 75),
		},
	}}

	report := generate(t, appts, emps, &fakeInventory{})
	assert.InDelta(t, 130.0, report.Metrics.Revenue, 0.001)
	assert.Equal(t, 4, report.Metrics.TotalAppointments)
	assert.Equal(t, 1, report.Metrics.Completed)
	assert.Equal(t, 1, report.Metrics.Cancelled)
}

func TestDoubleBookingsDetected(t *testing.T) {
	emps := &fakeEmployees{list: []models.Employee{
		{ID: "emp-1", Name: "Anna", Status: models.EmployeeStatusActive, WorkHours: fullWeek("08:00", "18:00")},
	}}
	appts := &fakeAppointments{byDay: map[string][]models.Appointment{
		reportDate.Format("2006-01-02"): {
			appt("a1", "emp-1", reportDate, 10, 90, models.AppointmentStatusAccepted),
			appt("a2", "emp-1", reportDate, 11, 60, models.AppointmentStatusAccepted),
			// Cancelled overlap does not count.
			appt("a3", "emp-1", reportDate, 10, 60, models.AppointmentStatusCancelled),
		},
	}}

	report := generate(t, appts, emps, &fakeInventory{})

	require.Len(t, report.Issues.DoubleBookings, 1)
	booking := report.Issues.DoubleBookings[0]
	assert.Equal(t, "a1", booking.FirstAppointment)
	assert.Equal(t, "a2", booking.SecondAppointment)

	var highScheduling bool
	for _, rec := range report.Recommendations {
		if rec.Priority == models.RecommendationHigh && rec.Category == "scheduling" {
			highScheduling = true
		}
	}
	assert.True(t, highScheduling)
}

func TestHighCancellationsFlagged(t *testing.T) {
	emps := &fakeEmployees{list: []models.Employee{
		{ID: "emp-1", Name: "Anna", Status: models.EmployeeStatusActive, WorkHours: fullWeek("08:00", "18:00")},
	}}
	appts := &fakeAppointments{byDay: map[string][]models.Appointment{
		reportDate.Format("2006-01-02"): {
			appt("a1", "emp-1", reportDate, 9, 60, models.AppointmentStatusCancelled),
			appt("a2", "emp-1", reportDate, 11, 60, models.AppointmentStatusCancelled),
		},
	}}

	report := generate(t, appts, emps, &fakeInventory{})
	require.Len(t, report.Issues.HighCancellationEmployees, 1)
	assert.Equal(t, 2, report.Issues.HighCancellationEmployees[0].Cancelled)
}

func TestWorkHoursViolationOutsideWindow(t *testing.T) {
	emps := &fakeEmployees{list: []models.Employee{
		{ID: "emp-1", Name: "Anna", Status: models.EmployeeStatusActive, WorkHours: fullWeek("09:00", "17:00")},
	}}
	appts := &fakeAppointments{byDay: map[string][]models.Appointment{
		reportDate.Format("2006-01-02"): {
			// 18:00 start is after the window closes.
			appt("a1", "emp-1", reportDate, 18, 60, models.AppointmentStatusAccepted),
		},
	}}

	report := generate(t, appts, emps, &fakeInventory{})
	require.Len(t, report.Issues.WorkHoursViolations, 1)
	assert.Equal(t, "a1", report.Issues.WorkHoursViolations[0].AppointmentID)
}

func TestTomorrowUnavailableAssignmentsAndBuckets(t *testing.T) {
	tomorrow := reportDate.AddDate(0, 0, 1)
	emps := &fakeEmployees{list: []models.Employee{
		{ID: "emp-sick", Name: "Ben", Status: models.EmployeeStatusSick, WorkHours: fullWeek("09:00", "17:00")},
		{ID: "emp-free", Name: "Clara", Status: models.EmployeeStatusActive, WorkHours: fullWeek("09:00", "17:00")},
	}}
	appts := &fakeAppointments{byDay: map[string][]models.Appointment{
		tomorrow.Format("2006-01-02"): {
			appt("b1", "emp-sick", tomorrow, 10, 60, models.AppointmentStatusAccepted),
		},
	}}

	report := generate(t, appts, emps, &fakeInventory{})

	require.Len(t, report.Tomorrow.SickEmployees, 1)
	assert.Equal(t, "emp-sick", report.Tomorrow.SickEmployees[0].EmployeeID)
	require.Len(t, report.Tomorrow.SubstituteEmployees, 1)
	assert.Equal(t, "emp-free", report.Tomorrow.SubstituteEmployees[0].EmployeeID)

	require.Len(t, report.Tomorrow.UnavailableAssignments, 1)
	assert.Equal(t, "b1", report.Tomorrow.UnavailableAssignments[0].AppointmentID)

	require.NotEmpty(t, report.Recommendations)
	first := report.Recommendations[0]
	assert.Equal(t, models.RecommendationHigh, first.Priority)
	assert.Equal(t, "staffing", first.Category)
}

func TestCriticalAppointmentsByTagAndPrice(t *testing.T) {
	tomorrow := reportDate.AddDate(0, 0, 1)
	vip := appt("b1", "emp-1", tomorrow, 10, 60, models.AppointmentStatusAccepted)
	vip.CustomerName = "Erika Muster"
	vip.CustomerTags = []string{models.TagVIP}
	expensive := priced(appt("b2", "emp-1", tomorrow, 12, 60, models.AppointmentStatusAccepted), 750)
	plain := priced(appt("b3", "emp-1", tomorrow, 14, 60, models.AppointmentStatusAccepted), 90)

	emps := &fakeEmployees{list: []models.Employee{
		{ID: "emp-1", Name: "Anna", Status: models.EmployeeStatusActive, WorkHours: fullWeek("08:00", "18:00")},
	}}
	appts := &fakeAppointments{byDay: map[string][]models.Appointment{
		tomorrow.Format("2006-01-02"): {vip, expensive, plain},
	}}

	report := generate(t, appts, emps, &fakeInventory{})

	require.Len(t, report.Tomorrow.CriticalAppointments, 2)
	assert.Equal(t, "important customer", report.Tomorrow.CriticalAppointments[0].Reason)
	assert.Equal(t, "high value appointment", report.Tomorrow.CriticalAppointments[1].Reason)
}

func TestUtilizationSuggestionsForTomorrow(t *testing.T) {
	tomorrow := reportDate.AddDate(0, 0, 1)
	emps := &fakeEmployees{list: []models.Employee{
		{ID: "emp-busy", Name: "Anna", Status: models.EmployeeStatusActive, WorkHours: fullWeek("08:00", "18:00")},
		{ID: "emp-idle", Name: "Ben", Status: models.EmployeeStatusActive, WorkHours: fullWeek("08:00", "18:00")},
	}}
	appts := &fakeAppointments{byDay: map[string][]models.Appointment{
		tomorrow.Format("2006-01-02"): {
			// 450 of 480 minutes booked.
			appt("b1", "emp-busy", tomorrow, 8, 450, models.AppointmentStatusAccepted),
			appt("b2", "emp-idle", tomorrow, 9, 60, models.AppointmentStatusAccepted),
		},
	}}

	report := generate(t, appts, emps, &fakeInventory{})

	require.Len(t, report.Tomorrow.UtilizationSuggestions, 2)
	byID := map[string]models.SuggestionKind{}
	for _, s := range report.Tomorrow.UtilizationSuggestions {
		byID[s.EmployeeID] = s.Kind
	}
	assert.Equal(t, models.SuggestionRedistribute, byID["emp-busy"])
	assert.Equal(t, models.SuggestionSpareCapacity, byID["emp-idle"])
}

func TestLowInventorySurfacesAsHighRecommendation(t *testing.T) {
	inv := &fakeInventory{low: []models.InventoryItem{
		{ID: "item-1", TenantID: "t1", Name: "Hair color 7.1", Quantity: 2, MinThreshold: 10},
	}}
	report := generate(t, &fakeAppointments{}, &fakeEmployees{}, inv)

	require.Len(t, report.Issues.LowInventory, 1)
	require.NotEmpty(t, report.Recommendations)
	assert.Equal(t, models.RecommendationHigh, report.Recommendations[0].Priority)
	assert.Equal(t, "inventory", report.Recommendations[0].Category)
}
