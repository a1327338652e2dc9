// Package report builds the daily operations report: a pull-based
// aggregation over a tenant's appointments, employees, and inventory.
// Generation is read-only and independent of the event bus.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/planovo/planovo-api/internal/metrics"
	"github.com/planovo/planovo-api/internal/models"
	"github.com/planovo/planovo-api/internal/repository"
)

const (
	workdayMinutes = 480

	// Utilization bands driving tomorrow's staffing suggestions.
	overloadedThreshold  = 0.9
	underloadedThreshold = 0.4

	// A day shorter than this counts as limited hours.
	limitedHoursMinutes = 360

	criticalPriceThreshold = 500.0

	cancellationIssueCount = 2
)

type Generator struct {
	appointments repository.AppointmentRepository
	employees    repository.EmployeeRepository
	inventory    repository.InventoryRepository
	logger       zerolog.Logger
}

func NewGenerator(
	appointments repository.AppointmentRepository,
	employees repository.EmployeeRepository,
	inventory repository.InventoryRepository,
	logger zerolog.Logger,
) *Generator {
	return &Generator{
		appointments: appointments,
		employees:    employees,
		inventory:    inventory,
		logger:       logger.With().Str("component", "report_generator").Logger(),
	}
}

// Generate builds the report for the given calendar day. Reads fan out
// concurrently; everything after that is pure in-memory computation.
func (g *Generator) Generate(ctx context.Context, tenantID string, date time.Time) (models.DailyReport, error) {
	timer := prometheus.NewTimer(metrics.ReportDuration)
	defer timer.ObserveDuration()

	var (
		today     []models.Appointment
		tomorrow  []models.Appointment
		employees []models.Employee
		lowStock  []models.InventoryItem
	)

	grp, grpCtx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		var err error
		today, err = g.appointments.ListByDay(grpCtx, tenantID, date)
		return errors.Wrap(err, "failed to load today's appointments")
	})
	grp.Go(func() error {
		var err error
		tomorrow, err = g.appointments.ListByDay(grpCtx, tenantID, date.AddDate(0, 0, 1))
		return errors.Wrap(err, "failed to load tomorrow's appointments")
	})
	grp.Go(func() error {
		var err error
		employees, err = g.employees.List(grpCtx, tenantID)
		return errors.Wrap(err, "failed to load employees")
	})
	grp.Go(func() error {
		var err error
		lowStock, err = g.inventory.ListBelowThreshold(grpCtx, tenantID)
		return errors.Wrap(err, "failed to load inventory")
	})
	if err := grp.Wait(); err != nil {
		return models.DailyReport{}, err
	}

	todayMinutes := bookedMinutesByEmployee(today)
	tomorrowMinutes := bookedMinutesByEmployee(tomorrow)

	report := models.DailyReport{
		ReportDate:  date,
		GeneratedAt: time.Now(),
		Metrics:     computeMetrics(today, employees, todayMinutes),
	}
	report.Issues = models.ReportIssues{
		HighCancellationEmployees: highCancellations(today, employees),
		DoubleBookings:            doubleBookings(today, employees),
		WorkHoursViolations:       workHoursViolations(today, employees),
		LowInventory:              lowStock,
	}
	report.Tomorrow = tomorrowOutlook(tomorrow, employees, todayMinutes, tomorrowMinutes, date.AddDate(0, 0, 1))
	report.Recommendations = recommendations(report)

	g.logger.Info().
		Str("tenant_id", tenantID).
		Str("date", date.Format("2006-01-02")).
		Int("appointments", len(today)).
		Int("recommendations", len(report.Recommendations)).
		Msg("daily report generated")
	return report, nil
}

// bookedMinutesByEmployee sums appointment durations per employee,
// skipping cancelled slots.
func bookedMinutesByEmployee(appointments []models.Appointment) map[string]int {
	minutes := make(map[string]int)
	for _, appt := range appointments {
		if appt.Status == models.AppointmentStatusCancelled {
			continue
		}
		minutes[appt.EmployeeID] += appt.DurationMinutes()
	}
	return minutes
}

func computeMetrics(today []models.Appointment, employees []models.Employee, booked map[string]int) models.ReportMetrics {
	m := models.ReportMetrics{TotalAppointments: len(today)}
	for _, appt := range today {
		switch appt.Status {
		case models.AppointmentStatusCompleted:
			m.Completed++
		case models.AppointmentStatusCancelled:
			m.Cancelled++
		case models.AppointmentStatusNeedsReassignment:
			m.NeedsReassignment++
		}
		if appt.Price != nil &&
			(appt.Status == models.AppointmentStatusAccepted || appt.Status == models.AppointmentStatusCompleted) {
			m.Revenue += *appt.Price
		}
	}

	for _, emp := range employees {
		minutes := booked[emp.ID]
		uncapped := float64(minutes) / workdayMinutes
		capped := uncapped
		if capped > 1.0 {
			capped = 1.0
		}
		m.Utilization = append(m.Utilization, models.EmployeeUtilization{
			EmployeeID:    emp.ID,
			EmployeeName:  emp.Name,
			BookedMinutes: minutes,
			Utilization:   capped,
		})
		if uncapped > 1.0 {
			m.OvertimeEmployees = append(m.OvertimeEmployees, models.EmployeeOvertime{
				EmployeeID:    emp.ID,
				EmployeeName:  emp.Name,
				OvertimeHours: float64(minutes-workdayMinutes) / 60,
			})
		}
	}
	return m
}

func highCancellations(today []models.Appointment, employees []models.Employee) []models.EmployeeCancellations {
	counts := make(map[string]int)
	for _, appt := range today {
		if appt.Status == models.AppointmentStatusCancelled {
			counts[appt.EmployeeID]++
		}
	}

	var out []models.EmployeeCancellations
	for _, emp := range employees {
		if counts[emp.ID] >= cancellationIssueCount {
			out = append(out, models.EmployeeCancellations{
				EmployeeID:   emp.ID,
				EmployeeName: emp.Name,
				Cancelled:    counts[emp.ID],
			})
		}
	}
	return out
}

// doubleBookings finds overlapping non-cancelled appointment pairs per
// employee. Day-sized inputs keep the pairwise scan cheap.
func doubleBookings(today []models.Appointment, employees []models.Employee) []models.DoubleBooking {
	names := employeeNames(employees)
	byEmployee := make(map[string][]models.Appointment)
	for _, appt := range today {
		if appt.Status == models.AppointmentStatusCancelled {
			continue
		}
		byEmployee[appt.EmployeeID] = append(byEmployee[appt.EmployeeID], appt)
	}

	var out []models.DoubleBooking
	for _, emp := range employees {
		appts := byEmployee[emp.ID]
		for i := 0; i < len(appts); i++ {
			for j := i + 1; j < len(appts); j++ {
				if appts[i].Overlaps(appts[j]) {
					out = append(out, models.DoubleBooking{
						EmployeeID:        emp.ID,
						EmployeeName:      names[emp.ID],
						FirstAppointment:  appts[i].ID,
						SecondAppointment: appts[j].ID,
					})
				}
			}
		}
	}
	return out
}

func workHoursViolations(appointments []models.Appointment, employees []models.Employee) []models.WorkHoursViolation {
	byID := make(map[string]models.Employee, len(employees))
	for _, emp := range employees {
		byID[emp.ID] = emp
	}

	var out []models.WorkHoursViolation
	for _, appt := range appointments {
		if appt.Status == models.AppointmentStatusCancelled {
			continue
		}
		emp, ok := byID[appt.EmployeeID]
		if !ok {
			continue
		}
		window, works := emp.WorkHours.WindowFor(appt.StartTime.Weekday())
		if !works {
			out = append(out, models.WorkHoursViolation{
				EmployeeID:    emp.ID,
				EmployeeName:  emp.Name,
				AppointmentID: appt.ID,
				StartTime:     appt.StartTime,
				Reason:        "no working hours configured for this day",
			})
			continue
		}
		start, end, ok := windowBounds(window, appt.StartTime)
		if !ok {
			continue
		}
		if appt.StartTime.Before(start) || appt.EndTime.After(end) {
			out = append(out, models.WorkHoursViolation{
				EmployeeID:    emp.ID,
				EmployeeName:  emp.Name,
				AppointmentID: appt.ID,
				StartTime:     appt.StartTime,
				Reason:        fmt.Sprintf("outside working hours %s-%s", window.Start, window.End),
			})
		}
	}
	return out
}

// windowBounds projects an "HH:MM" window onto the appointment's calendar
// day.
func windowBounds(w models.WorkWindow, day time.Time) (time.Time, time.Time, bool) {
	start, err1 := time.Parse("15:04", w.Start)
	end, err2 := time.Parse("15:04", w.End)
	if err1 != nil || err2 != nil {
		return time.Time{}, time.Time{}, false
	}
	s := time.Date(day.Year(), day.Month(), day.Day(), start.Hour(), start.Minute(), 0, 0, day.Location())
	e := time.Date(day.Year(), day.Month(), day.Day(), end.Hour(), end.Minute(), 0, 0, day.Location())
	return s, e, true
}

func tomorrowOutlook(
	tomorrow []models.Appointment,
	employees []models.Employee,
	todayMinutes, tomorrowMinutes map[string]int,
	tomorrowDate time.Time,
) models.TomorrowOutlook {
	outlook := models.TomorrowOutlook{}
	unavailable := make(map[string]string)

	for _, emp := range employees {
		if emp.Status == models.EmployeeStatusInactive {
			continue
		}
		ref := models.EmployeeRef{EmployeeID: emp.ID, EmployeeName: emp.Name}
		window, works := emp.WorkHours.WindowFor(tomorrowDate.Weekday())

		switch {
		case emp.Status == models.EmployeeStatusSick:
			outlook.SickEmployees = append(outlook.SickEmployees, ref)
			unavailable[emp.ID] = "employee reported sick"
		case emp.Status == models.EmployeeStatusVacation:
			outlook.VacationEmployees = append(outlook.VacationEmployees, ref)
			unavailable[emp.ID] = "employee on vacation"
		case !works:
			outlook.DayOffEmployees = append(outlook.DayOffEmployees, ref)
			unavailable[emp.ID] = "day off"
		case window.Minutes() < limitedHoursMinutes:
			outlook.LimitedHoursEmployees = append(outlook.LimitedHoursEmployees, ref)
		case float64(todayMinutes[emp.ID])/workdayMinutes > overloadedThreshold:
			outlook.OvertimeRiskEmployees = append(outlook.OvertimeRiskEmployees, ref)
		default:
			outlook.SubstituteEmployees = append(outlook.SubstituteEmployees, ref)
		}
	}

	names := employeeNames(employees)
	for _, appt := range tomorrow {
		if appt.Status == models.AppointmentStatusCancelled {
			continue
		}
		if reason := criticalReason(appt); reason != "" {
			var price float64
			if appt.Price != nil {
				price = *appt.Price
			}
			outlook.CriticalAppointments = append(outlook.CriticalAppointments, models.CriticalAppointment{
				AppointmentID: appt.ID,
				CustomerName:  appt.CustomerName,
				StartTime:     appt.StartTime,
				Price:         price,
				Reason:        reason,
			})
		}
		if reason, ok := unavailable[appt.EmployeeID]; ok {
			outlook.UnavailableAssignments = append(outlook.UnavailableAssignments, models.UnavailableAssignment{
				AppointmentID: appt.ID,
				EmployeeID:    appt.EmployeeID,
				EmployeeName:  names[appt.EmployeeID],
				StartTime:     appt.StartTime,
				Reason:        reason,
			})
		}
	}

	for _, emp := range employees {
		if _, isUnavailable := unavailable[emp.ID]; isUnavailable || emp.Status != models.EmployeeStatusActive {
			continue
		}
		util := float64(tomorrowMinutes[emp.ID]) / workdayMinutes
		switch {
		case util > overloadedThreshold:
			outlook.UtilizationSuggestions = append(outlook.UtilizationSuggestions, models.UtilizationSuggestion{
				EmployeeID:   emp.ID,
				EmployeeName: emp.Name,
				Utilization:  util,
				Kind:         models.SuggestionRedistribute,
			})
		case util < underloadedThreshold:
			outlook.UtilizationSuggestions = append(outlook.UtilizationSuggestions, models.UtilizationSuggestion{
				EmployeeID:   emp.ID,
				EmployeeName: emp.Name,
				Utilization:  util,
				Kind:         models.SuggestionSpareCapacity,
			})
		}
	}

	outlook.WorkHoursViolations = workHoursViolations(tomorrow, employees)
	return outlook
}

func criticalReason(appt models.Appointment) string {
	for _, tag := range appt.CustomerTags {
		if tag == models.TagVIP || tag == models.TagImportant {
			return "important customer"
		}
	}
	if appt.Price != nil && *appt.Price > criticalPriceThreshold {
		return "high value appointment"
	}
	return ""
}

func employeeNames(employees []models.Employee) map[string]string {
	names := make(map[string]string, len(employees))
	for _, emp := range employees {
		names[emp.ID] = emp.Name
	}
	return names
}

// recommendations derives the action list from the computed sections.
// Priorities are fixed per finding category so the ordering is stable
// across runs.
func recommendations(report models.DailyReport) []models.Recommendation {
	var out []models.Recommendation

	if n := len(report.Tomorrow.UnavailableAssignments); n > 0 {
		out = append(out, models.Recommendation{
			Priority: models.RecommendationHigh,
			Category: "staffing",
			Message:  fmt.Sprintf("%d appointments tomorrow are assigned to unavailable employees", n),
			Action:   "reassign these appointments today",
		})
	}
	if n := len(report.Issues.LowInventory); n > 0 {
		out = append(out, models.Recommendation{
			Priority: models.RecommendationHigh,
			Category: "inventory",
			Message:  fmt.Sprintf("%d inventory items are below their minimum threshold", n),
			Action:   "reorder before stock runs out",
		})
	}
	if n := len(report.Issues.DoubleBookings); n > 0 {
		out = append(out, models.Recommendation{
			Priority: models.RecommendationHigh,
			Category: "scheduling",
			Message:  fmt.Sprintf("%d double bookings detected", n),
			Action:   "resolve the overlapping appointments",
		})
	}

	overloaded := 0
	underloaded := 0
	for _, s := range report.Tomorrow.UtilizationSuggestions {
		if s.Kind == models.SuggestionRedistribute {
			overloaded++
		} else {
			underloaded++
		}
	}
	if overloaded > 0 {
		out = append(out, models.Recommendation{
			Priority: models.RecommendationMedium,
			Category: "scheduling",
			Message:  fmt.Sprintf("%d employees are overloaded tomorrow", overloaded),
			Action:   "redistribute appointments",
		})
	}
	if n := len(report.Issues.HighCancellationEmployees); n > 0 {
		out = append(out, models.Recommendation{
			Priority: models.RecommendationMedium,
			Category: "quality",
			Message:  fmt.Sprintf("%d employees had unusually many cancellations", n),
			Action:   "review cancellation reasons",
		})
	}
	if n := report.Metrics.NeedsReassignment; n > 0 {
		out = append(out, models.Recommendation{
			Priority: models.RecommendationMedium,
			Category: "scheduling",
			Message:  fmt.Sprintf("%d appointments are waiting for reassignment", n),
			Action:   "assign a substitute employee",
		})
	}

	if underloaded > 0 {
		out = append(out, models.Recommendation{
			Priority: models.RecommendationLow,
			Category: "scheduling",
			Message:  fmt.Sprintf("%d employees have spare capacity tomorrow", underloaded),
			Action:   "consider moving appointments or marketing pushes",
		})
	}
	if n := len(report.Tomorrow.CriticalAppointments); n > 0 {
		out = append(out, models.Recommendation{
			Priority: models.RecommendationLow,
			Category: "attention",
			Message:  fmt.Sprintf("%d critical appointments tomorrow", n),
			Action:   "double-check preparation for these customers",
		})
	}
	return out
}
