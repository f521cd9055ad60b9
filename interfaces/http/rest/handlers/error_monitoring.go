package handlers

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"attendance-backend/monitoring/errtracker"
	"attendance-backend/pkg/common"
	apperrors "attendance-backend/pkg/errors"
	"attendance-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ErrorMonitoringHandler serves the error tracker's analytics surface.
type ErrorMonitoringHandler struct {
	tracker *errtracker.Tracker
	errors  *apperrors.ErrorHandler
	logger  *zap.Logger
}

// NewErrorMonitoringHandler creates a new error monitoring handler.
func NewErrorMonitoringHandler(tracker *errtracker.Tracker, errorHandler *apperrors.ErrorHandler, logger *zap.Logger) *ErrorMonitoringHandler {
	return &ErrorMonitoringHandler{
		tracker: tracker,
		errors:  errorHandler,
		logger:  logger,
	}
}

// GetAnalytics handles GET /monitoring/errors/analytics.
func (h *ErrorMonitoringHandler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	timeRange := parseTimeRange(r)
	includeDetails := r.URL.Query().Get("includeDetails") == "true"

	analytics := h.tracker.Analytics(timeRange, includeDetails)
	common.RespondJSON(w, http.StatusOK, analytics)
}

// GetHealth handles GET /monitoring/errors/health.
func (h *ErrorMonitoringHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, h.tracker.HealthStatus())
}

// GetStats handles GET /monitoring/errors/stats/{name}/{code}. Unknown
// signatures are a 404, not an empty aggregate.
func (h *ErrorMonitoringHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	code := chi.URLParam(r, "code")

	entry := h.tracker.Stats(name, code)
	if entry == nil {
		h.errors.Handle(w, r, apperrors.NewNotFoundError(
			fmt.Sprintf("no statistics for error signature %s_%s", name, code)))
		return
	}

	common.RespondJSON(w, http.StatusOK, entry)
}

// Cleanup handles POST /monitoring/errors/cleanup.
func (h *ErrorMonitoringHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	h.tracker.Cleanup()

	h.logger.Info("Error tracker cleanup triggered manually")
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Error tracking data cleaned up",
	})
}

// UpdateThresholds handles PUT /monitoring/errors/thresholds.
func (h *ErrorMonitoringHandler) UpdateThresholds(w http.ResponseWriter, r *http.Request) {
	var update errtracker.ThresholdUpdate
	if err := common.ParseJSONBody(w, r, &update, 4096); err != nil {
		h.errors.Handle(w, r, apperrors.NewValidationError("invalid request body: "+err.Error()))
		return
	}
	if err := utils.ValidateStruct(update); err != nil {
		h.errors.Handle(w, r, apperrors.NewValidationError(err.Error()))
		return
	}

	if err := h.tracker.UpdateThresholds(update); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Thresholds updated",
		"thresholds": h.tracker.Thresholds(),
	})
}

// Export handles GET /monitoring/errors/export. Supports json (default)
// and csv attachments.
func (h *ErrorMonitoringHandler) Export(w http.ResponseWriter, r *http.Request) {
	timeRange := parseTimeRange(r)
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}

	events := h.tracker.Events(timeRange)
	filename := fmt.Sprintf("error-report-%s", time.Now().Format("2006-01-02"))

	switch format {
	case "json":
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.json", filename))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"generatedAt": time.Now().Format(time.RFC3339),
			"timeRange":   timeRange.String(),
			"total":       len(events),
			"events":      events,
		})

	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", filename))

		cw := csv.NewWriter(w)
		cw.Write([]string{"timestamp", "name", "code", "severity", "status", "message", "endpoint", "userId"})
		for _, e := range events {
			cw.Write([]string{
				e.Timestamp.Format(time.RFC3339),
				e.Name,
				e.Code,
				string(e.Severity),
				fmt.Sprintf("%d", e.StatusCode),
				e.Message,
				e.Context.Endpoint,
				e.Context.UserID,
			})
		}
		cw.Flush()

	default:
		h.errors.Handle(w, r, apperrors.NewValidationError("format must be json or csv"))
	}
}
