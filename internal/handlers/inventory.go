package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/planovo/planovo-api/internal/authz"
	"github.com/planovo/planovo-api/internal/automation"
	"github.com/planovo/planovo-api/internal/events"
	"github.com/planovo/planovo-api/internal/repository"
)

type InventoryHandler struct {
	inventory repository.InventoryRepository
	bus       automation.Emitter
	logger    zerolog.Logger
}

func NewInventoryHandler(inventory repository.InventoryRepository, emitter automation.Emitter, logger zerolog.Logger) *InventoryHandler {
	return &InventoryHandler{inventory: inventory, bus: emitter, logger: logger}
}

type adjustQuantityRequest struct {
	Delta int `json:"delta"`
}

// Adjust applies a signed quantity delta and emits inventory.low when the
// item drops below its minimum threshold.
func (h *InventoryHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := authz.TenantIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing tenant context", http.StatusUnauthorized)
		return
	}
	itemID := mux.Vars(r)["id"]

	var req adjustQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Delta == 0 {
		http.Error(w, "delta must be non-zero", http.StatusBadRequest)
		return
	}

	item, err := h.inventory.AdjustQuantity(r.Context(), tenantID, itemID, req.Delta)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "Inventory item not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to adjust quantity", http.StatusInternalServerError)
		return
	}

	if item.BelowThreshold() {
		h.bus.Emit(r.Context(), events.InventoryLow{
			TenantID:        tenantID,
			ItemID:          item.ID,
			ItemName:        item.Name,
			CurrentQuantity: item.Quantity,
			MinThreshold:    item.MinThreshold,
		})
	}

	writeJSON(w, http.StatusOK, item)
}
