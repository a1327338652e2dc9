package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/planovo/planovo-api/internal/authz"
	"github.com/planovo/planovo-api/internal/automation"
	"github.com/planovo/planovo-api/internal/events"
	"github.com/planovo/planovo-api/internal/repository"
)

// PaymentHandler accepts opaque gateway results. The gateway integration
// itself lives outside this service; all that arrives here is the
// paid/failed outcome.
type PaymentHandler struct {
	invoices repository.InvoiceRepository
	bus      automation.Emitter
	logger   zerolog.Logger
}

func NewPaymentHandler(invoices repository.InvoiceRepository, emitter automation.Emitter, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{invoices: invoices, bus: emitter, logger: logger}
}

type paymentResultRequest struct {
	InvoiceID  string  `json:"invoice_id"`
	CustomerID string  `json:"customer_id"`
	Amount     float64 `json:"amount"`
	Method     string  `json:"method"`
	Succeeded  bool    `json:"succeeded"`
}

func (h *PaymentHandler) Result(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := authz.TenantIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing tenant context", http.StatusUnauthorized)
		return
	}

	var req paymentResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Method == "" {
		http.Error(w, "method is required", http.StatusBadRequest)
		return
	}

	if !req.Succeeded {
		h.bus.Emit(r.Context(), events.PaymentFailed{
			TenantID:   tenantID,
			InvoiceID:  req.InvoiceID,
			CustomerID: req.CustomerID,
			Amount:     req.Amount,
			Method:     req.Method,
		})
		writeJSON(w, http.StatusAccepted, map[string]string{"result": "failed"})
		return
	}

	if req.InvoiceID != "" {
		// Settle synchronously so the caller sees the final invoice state;
		// the paid event still drives the bookkeeping and reminder rules.
		if _, err := h.invoices.MarkPaid(r.Context(), tenantID, req.InvoiceID, time.Now()); err != nil {
			http.Error(w, "Failed to settle invoice", http.StatusInternalServerError)
			return
		}
	}
	h.bus.Emit(r.Context(), events.PaymentPaid{
		TenantID:   tenantID,
		InvoiceID:  req.InvoiceID,
		CustomerID: req.CustomerID,
		Amount:     req.Amount,
		Method:     req.Method,
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"result": "paid"})
}
