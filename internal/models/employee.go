package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

type EmployeeStatus string

const (
	EmployeeStatusActive   EmployeeStatus = "ACTIVE"
	EmployeeStatusSick     EmployeeStatus = "SICK"
	EmployeeStatusVacation EmployeeStatus = "VACATION"
	EmployeeStatusInactive EmployeeStatus = "INACTIVE"
)

// WorkWindow is a daily work-hours window in "HH:MM" wall-clock time.
type WorkWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// WorkSchedule maps lowercase weekday names ("monday".."sunday") to work
// windows. A missing weekday means the employee does not work that day.
type WorkSchedule map[string]WorkWindow

func (s WorkSchedule) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

func (s *WorkSchedule) Scan(src interface{}) error {
	if src == nil {
		*s = nil
		return nil
	}
	raw, ok := src.([]byte)
	if !ok {
		return errors.Errorf("work schedule: cannot scan %T", src)
	}
	return json.Unmarshal(raw, s)
}

// WindowFor returns the work window for the given day, if one is configured.
func (s WorkSchedule) WindowFor(day time.Weekday) (WorkWindow, bool) {
	w, ok := s[weekdayKey(day)]
	return w, ok
}

// Minutes returns the length of the window in minutes, or 0 if it cannot
// be parsed.
func (w WorkWindow) Minutes() int {
	start, err1 := time.Parse("15:04", w.Start)
	end, err2 := time.Parse("15:04", w.End)
	if err1 != nil || err2 != nil || !end.After(start) {
		return 0
	}
	return int(end.Sub(start).Minutes())
}

func weekdayKey(day time.Weekday) string {
	switch day {
	case time.Monday:
		return "monday"
	case time.Tuesday:
		return "tuesday"
	case time.Wednesday:
		return "wednesday"
	case time.Thursday:
		return "thursday"
	case time.Friday:
		return "friday"
	case time.Saturday:
		return "saturday"
	default:
		return "sunday"
	}
}

type Employee struct {
	ID        string         `json:"id" db:"id"`
	TenantID  string         `json:"tenant_id" db:"tenant_id"`
	Name      string         `json:"name" db:"name"`
	Status    EmployeeStatus `json:"status" db:"status"`
	WorkHours WorkSchedule   `json:"work_hours" db:"work_hours"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
}
