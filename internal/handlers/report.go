package handlers

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/planovo/planovo-api/internal/authz"
	"github.com/planovo/planovo-api/internal/report"
)

type ReportHandler struct {
	generator *report.Generator
	logger    zerolog.Logger
}

func NewReportHandler(generator *report.Generator, logger zerolog.Logger) *ReportHandler {
	return &ReportHandler{generator: generator, logger: logger}
}

// Daily generates the report for ?date=YYYY-MM-DD, defaulting to today.
func (h *ReportHandler) Daily(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := authz.TenantIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing tenant context", http.StatusUnauthorized)
		return
	}

	date := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			http.Error(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		date = parsed
	}

	dailyReport, err := h.generator.Generate(r.Context(), tenantID, date)
	if err != nil {
		h.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("report generation failed")
		http.Error(w, "Failed to generate report", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, dailyReport)
}
