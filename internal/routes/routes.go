package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/planovo/planovo-api/internal/authz"
	"github.com/planovo/planovo-api/internal/handlers"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth        *handlers.AuthHandler
	Health      *handlers.HealthHandler
	Appointment *handlers.AppointmentHandler
	Employee    *handlers.EmployeeHandler
	Payment     *handlers.PaymentHandler
	Invoice     *handlers.InvoiceHandler
	Inventory   *handlers.InventoryHandler
	Automation  *handlers.AutomationHandler
	Report      *handlers.ReportHandler
}

// NewRouter sets up the API routes.
func NewRouter(h Handlers, jwtSecret string) *mux.Router {
	router := mux.NewRouter()

	// Public endpoints
	router.HandleFunc("/health", h.Health.HealthCheck).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/api/login", h.Auth.Login).Methods(http.MethodPost)

	// Authenticated endpoints
	api := router.PathPrefix("/api").Subrouter()
	api.Use(authz.Middleware(jwtSecret))

	api.HandleFunc("/appointments", h.Appointment.Create).Methods(http.MethodPost)
	api.HandleFunc("/appointments/{id}/complete", h.Appointment.Complete).Methods(http.MethodPost)

	api.HandleFunc("/employees/{id}/sick", h.Employee.ReportSick).Methods(http.MethodPost)

	api.HandleFunc("/payments/result", h.Payment.Result).Methods(http.MethodPost)

	api.HandleFunc("/invoices", h.Invoice.List).Methods(http.MethodGet)
	api.HandleFunc("/invoices/{id}", h.Invoice.Get).Methods(http.MethodGet)

	api.HandleFunc("/inventory/{id}/adjust", h.Inventory.Adjust).Methods(http.MethodPost)

	api.HandleFunc("/automation/status", h.Automation.Status).Methods(http.MethodGet)
	api.HandleFunc("/automation/enabled", h.Automation.SetEnabled).Methods(http.MethodPut)

	api.HandleFunc("/reports/daily", h.Report.Daily).Methods(http.MethodGet)

	return router
}
