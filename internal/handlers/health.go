package handlers

import (
	"database/sql"
	"net/http"

	"github.com/planovo/planovo-api/internal/automation"
	"github.com/planovo/planovo-api/internal/bus"
)

type HealthHandler struct {
	db     *sql.DB
	bus    *bus.Bus
	engine *automation.Engine
}

func NewHealthHandler(db *sql.DB, b *bus.Bus, engine *automation.Engine) *HealthHandler {
	return &HealthHandler{db: db, bus: b, engine: engine}
}

// HealthCheck reports database reachability, bus queue occupancy, and the
// automation engine state.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "ok"
	if err := h.db.PingContext(r.Context()); err != nil {
		status = "degraded"
		dbStatus = err.Error()
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status":     status,
		"database":   dbStatus,
		"bus":        h.bus.QueueStatus(),
		"automation": h.engine.Status(),
	})
}
