package models

import "time"

// DailyReport is a point-in-time snapshot; it is recomputed from the
// underlying entities on every generation call and never updated in place.
type DailyReport struct {
	ReportDate      time.Time        `json:"report_date"`
	GeneratedAt     time.Time        `json:"generated_at"`
	Metrics         ReportMetrics    `json:"metrics"`
	Issues          ReportIssues     `json:"issues"`
	Tomorrow        TomorrowOutlook  `json:"tomorrow"`
	Recommendations []Recommendation `json:"recommendations"`
}

type ReportMetrics struct {
	TotalAppointments int                   `json:"total_appointments"`
	Completed         int                   `json:"completed"`
	Cancelled         int                   `json:"cancelled"`
	NeedsReassignment int                   `json:"needs_reassignment"`
	Revenue           float64               `json:"revenue"`
	Utilization       []EmployeeUtilization `json:"utilization"`
	OvertimeEmployees []EmployeeOvertime    `json:"overtime_employees"`
}

// EmployeeUtilization is booked minutes against an 8-hour day, capped at 1.0.
type EmployeeUtilization struct {
	EmployeeID    string  `json:"employee_id"`
	EmployeeName  string  `json:"employee_name"`
	BookedMinutes int     `json:"booked_minutes"`
	Utilization   float64 `json:"utilization"`
}

type EmployeeOvertime struct {
	EmployeeID    string  `json:"employee_id"`
	EmployeeName  string  `json:"employee_name"`
	OvertimeHours float64 `json:"overtime_hours"`
}

type ReportIssues struct {
	HighCancellationEmployees []EmployeeCancellations `json:"high_cancellation_employees"`
	DoubleBookings            []DoubleBooking         `json:"double_bookings"`
	WorkHoursViolations       []WorkHoursViolation    `json:"work_hours_violations"`
	LowInventory              []InventoryItem         `json:"low_inventory"`
}

type EmployeeCancellations struct {
	EmployeeID   string `json:"employee_id"`
	EmployeeName string `json:"employee_name"`
	Cancelled    int    `json:"cancelled"`
}

type DoubleBooking struct {
	EmployeeID        string `json:"employee_id"`
	EmployeeName      string `json:"employee_name"`
	FirstAppointment  string `json:"first_appointment"`
	SecondAppointment string `json:"second_appointment"`
}

type WorkHoursViolation struct {
	EmployeeID    string    `json:"employee_id"`
	EmployeeName  string    `json:"employee_name"`
	AppointmentID string    `json:"appointment_id"`
	StartTime     time.Time `json:"start_time"`
	Reason        string    `json:"reason"`
}

type TomorrowOutlook struct {
	SickEmployees          []EmployeeRef             `json:"sick_employees"`
	VacationEmployees      []EmployeeRef             `json:"vacation_employees"`
	DayOffEmployees        []EmployeeRef             `json:"day_off_employees"`
	LimitedHoursEmployees  []EmployeeRef             `json:"limited_hours_employees"`
	OvertimeRiskEmployees  []EmployeeRef             `json:"overtime_risk_employees"`
	SubstituteEmployees    []EmployeeRef             `json:"substitute_employees"`
	CriticalAppointments   []CriticalAppointment     `json:"critical_appointments"`
	UnavailableAssignments []UnavailableAssignment   `json:"unavailable_assignments"`
	UtilizationSuggestions []UtilizationSuggestion   `json:"utilization_suggestions"`
	WorkHoursViolations    []WorkHoursViolation      `json:"work_hours_violations"`
}

type EmployeeRef struct {
	EmployeeID   string `json:"employee_id"`
	EmployeeName string `json:"employee_name"`
}

// CriticalAppointment is tomorrow's appointment for a VIP-tagged customer
// or one priced above the critical threshold.
type CriticalAppointment struct {
	AppointmentID string    `json:"appointment_id"`
	CustomerName  string    `json:"customer_name"`
	StartTime     time.Time `json:"start_time"`
	Price         float64   `json:"price"`
	Reason        string    `json:"reason"`
}

// UnavailableAssignment is a tomorrow appointment whose assigned employee
// will not be available.
type UnavailableAssignment struct {
	AppointmentID string    `json:"appointment_id"`
	EmployeeID    string    `json:"employee_id"`
	EmployeeName  string    `json:"employee_name"`
	StartTime     time.Time `json:"start_time"`
	Reason        string    `json:"reason"`
}

type SuggestionKind string

const (
	SuggestionRedistribute  SuggestionKind = "redistribute"
	SuggestionSpareCapacity SuggestionKind = "spare_capacity"
)

type UtilizationSuggestion struct {
	EmployeeID   string         `json:"employee_id"`
	EmployeeName string         `json:"employee_name"`
	Utilization  float64        `json:"utilization"`
	Kind         SuggestionKind `json:"kind"`
}

type RecommendationPriority string

const (
	RecommendationHigh   RecommendationPriority = "high"
	RecommendationMedium RecommendationPriority = "medium"
	RecommendationLow    RecommendationPriority = "low"
)

type Recommendation struct {
	Priority RecommendationPriority `json:"priority"`
	Category string                 `json:"category"`
	Message  string                 `json:"message"`
	Action   string                 `json:"action,omitempty"`
}
