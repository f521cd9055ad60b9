package handlers

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"attendance-backend/monitoring/attendtracker"
	"attendance-backend/pkg/common"
	apperrors "attendance-backend/pkg/errors"
	"attendance-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AttendanceMonitoringHandler serves the attendance error tracker's
// analytics surface. Mirrors the generic error monitoring endpoints with
// impact analysis and recommendations on top.
type AttendanceMonitoringHandler struct {
	tracker *attendtracker.Tracker
	errors  *apperrors.ErrorHandler
	logger  *zap.Logger
}

// NewAttendanceMonitoringHandler creates a new attendance monitoring handler.
func NewAttendanceMonitoringHandler(tracker *attendtracker.Tracker, errorHandler *apperrors.ErrorHandler, logger *zap.Logger) *AttendanceMonitoringHandler {
	return &AttendanceMonitoringHandler{
		tracker: tracker,
		errors:  errorHandler,
		logger:  logger,
	}
}

// GetAnalytics handles GET /monitoring/attendance/analytics. The optional
// operation query parameter narrows the report to one operation.
func (h *AttendanceMonitoringHandler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	timeRange := parseTimeRange(r)
	operation := r.URL.Query().Get("operation")

	analytics := h.tracker.Analytics(timeRange, operation)
	common.RespondJSON(w, http.StatusOK, analytics)
}

// GetHealth handles GET /monitoring/attendance/health.
func (h *AttendanceMonitoringHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, h.tracker.HealthStatus())
}

// GetOperationStats handles GET /monitoring/attendance/stats/{operation}.
func (h *AttendanceMonitoringHandler) GetOperationStats(w http.ResponseWriter, r *http.Request) {
	operation := chi.URLParam(r, "operation")

	stats := h.tracker.OperationStats(operation)
	if stats == nil {
		h.errors.Handle(w, r, apperrors.NewNotFoundError(
			fmt.Sprintf("no statistics for operation %s", operation)))
		return
	}

	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"operation": operation,
		"stats":     stats,
		"errorRate": stats.ErrorRate(),
	})
}

// Cleanup handles POST /monitoring/attendance/cleanup.
func (h *AttendanceMonitoringHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	h.tracker.Cleanup()

	h.logger.Info("Attendance tracker cleanup triggered manually")
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Attendance tracking data cleaned up",
	})
}

// UpdateThresholds handles PUT /monitoring/attendance/thresholds.
func (h *AttendanceMonitoringHandler) UpdateThresholds(w http.ResponseWriter, r *http.Request) {
	var update attendtracker.ThresholdUpdate
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

// Export handles GET /monitoring/attendance/export.
func (h *AttendanceMonitoringHandler) Export(w http.ResponseWriter, r *http.Request) {
	timeRange := parseTimeRange(r)
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}

	events := h.tracker.Events(timeRange)
	filename := fmt.Sprintf("attendance-error-report-%s", time.Now().Format("2006-01-02"))

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
		cw.Write([]string{"timestamp", "operation", "name", "code", "severity", "impact", "status", "classId", "message"})
		for _, e := range events {
			cw.Write([]string{
				e.Timestamp.Format(time.RFC3339),
				e.Context.Operation,
				e.Name,
				e.Code,
				string(e.Severity),
				e.Impact.Level,
				fmt.Sprintf("%d", e.StatusCode),
				e.Context.ClassID,
				e.Message,
			})
		}
		cw.Flush()

	default:
		h.errors.Handle(w, r, apperrors.NewValidationError("format must be json or csv"))
	}
}
