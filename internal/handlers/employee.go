package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/planovo/planovo-api/internal/authz"
	"github.com/planovo/planovo-api/internal/automation"
	"github.com/planovo/planovo-api/internal/events"
	"github.com/planovo/planovo-api/internal/models"
	"github.com/planovo/planovo-api/internal/repository"
)

type EmployeeHandler struct {
	employees repository.EmployeeRepository
	bus       automation.Emitter
	logger    zerolog.Logger
}

func NewEmployeeHandler(employees repository.EmployeeRepository, emitter automation.Emitter, logger zerolog.Logger) *EmployeeHandler {
	return &EmployeeHandler{employees: employees, bus: emitter, logger: logger}
}

// ReportSick marks the employee SICK and emits the event that frees their
// upcoming appointments for reassignment.
func (h *EmployeeHandler) ReportSick(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := authz.TenantIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing tenant context", http.StatusUnauthorized)
		return
	}
	employeeID := mux.Vars(r)["id"]

	err := h.employees.SetStatus(r.Context(), tenantID, employeeID, models.EmployeeStatusSick)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "Employee not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to update employee", http.StatusInternalServerError)
		return
	}

	h.bus.Emit(r.Context(), events.EmployeeSick{TenantID: tenantID, EmployeeID: employeeID})
	writeJSON(w, http.StatusOK, map[string]string{"status": string(models.EmployeeStatusSick)})
}
