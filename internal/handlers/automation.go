package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/planovo/planovo-api/internal/automation"
)

// AutomationHandler exposes the engine's kill switch and status. The
// toggle is process-wide, not per tenant.
type AutomationHandler struct {
	engine *automation.Engine
}

func NewAutomationHandler(engine *automation.Engine) *AutomationHandler {
	return &AutomationHandler{engine: engine}
}

func (h *AutomationHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Status())
}

type setEnabledRequest struct {
	Enabled *bool `json:"enabled"`
}

func (h *AutomationHandler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	var req setEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		http.Error(w, "enabled is required", http.StatusBadRequest)
		return
	}
	h.engine.SetEnabled(*req.Enabled)
	writeJSON(w, http.StatusOK, h.engine.Status())
}
