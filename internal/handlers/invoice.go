package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/planovo/planovo-api/internal/authz"
	"github.com/planovo/planovo-api/internal/repository"
)

type InvoiceHandler struct {
	invoices  repository.InvoiceRepository
	reminders repository.ReminderRepository
}

func NewInvoiceHandler(invoices repository.InvoiceRepository, reminders repository.ReminderRepository) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices, reminders: reminders}
}

func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := authz.TenantIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing tenant context", http.StatusUnauthorized)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	invoices, err := h.invoices.List(r.Context(), tenantID, limit, offset)
	if err != nil {
		http.Error(w, "Failed to list invoices", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, invoices)
}

// Get returns the invoice together with its reminder history.
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := authz.TenantIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing tenant context", http.StatusUnauthorized)
		return
	}
	invoiceID := mux.Vars(r)["id"]

	invoice, err := h.invoices.Get(r.Context(), tenantID, invoiceID)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "Invoice not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to load invoice", http.StatusInternalServerError)
		return
	}

	reminders, err := h.reminders.ListByInvoice(r.Context(), tenantID, invoiceID)
	if err != nil {
		http.Error(w, "Failed to load reminders", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"invoice":   invoice,
		"reminders": reminders,
	})
}
