package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/planovo/planovo-api/internal/authz"
	"github.com/planovo/planovo-api/internal/automation"
	"github.com/planovo/planovo-api/internal/events"
	"github.com/planovo/planovo-api/internal/models"
	"github.com/planovo/planovo-api/internal/repository"
)

type AppointmentHandler struct {
	appointments repository.AppointmentRepository
	bus          automation.Emitter
	logger       zerolog.Logger
}

func NewAppointmentHandler(appointments repository.AppointmentRepository, emitter automation.Emitter, logger zerolog.Logger) *AppointmentHandler {
	return &AppointmentHandler{appointments: appointments, bus: emitter, logger: logger}
}

type createAppointmentRequest struct {
	CustomerID *string   `json:"customer_id"`
	EmployeeID string    `json:"employee_id"`
	Title      string    `json:"title"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Price      *float64  `json:"price"`
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := authz.TenantIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing tenant context", http.StatusUnauthorized)
		return
	}

	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.EmployeeID == "" || req.Title == "" {
		http.Error(w, "employee_id and title are required", http.StatusBadRequest)
		return
	}
	if !req.EndTime.After(req.StartTime) {
		http.Error(w, "end_time must be after start_time", http.StatusBadRequest)
		return
	}

	appt, err := h.appointments.Create(r.Context(), models.Appointment{
		TenantID:   tenantID,
		CustomerID: req.CustomerID,
		EmployeeID: req.EmployeeID,
		Title:      req.Title,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Price:      req.Price,
	})
	if err != nil {
		http.Error(w, "Failed to create appointment", http.StatusInternalServerError)
		return
	}

	var customerID string
	if appt.CustomerID != nil {
		customerID = *appt.CustomerID
	}
	h.bus.Emit(r.Context(), events.AppointmentCreated{
		TenantID:      tenantID,
		AppointmentID: appt.ID,
		CustomerID:    customerID,
	})

	writeJSON(w, http.StatusCreated, appt)
}

func (h *AppointmentHandler) Complete(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := authz.TenantIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing tenant context", http.StatusUnauthorized)
		return
	}
	appointmentID := mux.Vars(r)["id"]

	appt, err := h.appointments.Complete(r.Context(), tenantID, appointmentID)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "Appointment not found or already closed", http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, "Failed to complete appointment", http.StatusInternalServerError)
		return
	}

	var customerID string
	if appt.CustomerID != nil {
		customerID = *appt.CustomerID
	}
	var price float64
	if appt.Price != nil {
		price = *appt.Price
	}
	h.bus.Emit(r.Context(), events.AppointmentCompleted{
		TenantID:      tenantID,
		AppointmentID: appt.ID,
		CustomerID:    customerID,
		Price:         price,
	})

	writeJSON(w, http.StatusOK, appt)
}
