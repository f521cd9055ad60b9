package handlers

import (
	"net/http"

	"attendance-backend/infrastructure/cache"
	"attendance-backend/monitoring/perftracker"
	"attendance-backend/pkg/common"
	apperrors "attendance-backend/pkg/errors"
	"attendance-backend/pkg/utils"

	"go.uber.org/zap"
)

// PerformanceHandler serves the performance tracker's analytics surface
// plus the cache statistics.
type PerformanceHandler struct {
	tracker *perftracker.Tracker
	cache   *cache.TieredCache
	errors  *apperrors.ErrorHandler
	logger  *zap.Logger
}

// NewPerformanceHandler creates a new performance handler.
func NewPerformanceHandler(tracker *perftracker.Tracker, tieredCache *cache.TieredCache, errorHandler *apperrors.ErrorHandler, logger *zap.Logger) *PerformanceHandler {
	return &PerformanceHandler{
		tracker: tracker,
		cache:   tieredCache,
		errors:  errorHandler,
		logger:  logger,
	}
}

// GetAPIPerformance handles GET /monitoring/performance/api.
func (h *PerformanceHandler) GetAPIPerformance(w http.ResponseWriter, r *http.Request) {
	requests, errorCount := h.tracker.Counters()

	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"totalRequests": requests,
		"totalErrors":   errorCount,
		"endpoints":     h.tracker.AllEndpointStats(),
	})
}

// GetDatabasePerformance handles GET /monitoring/performance/database.
func (h *PerformanceHandler) GetDatabasePerformance(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"queries": h.tracker.AllQueryStats(),
	})
}

// GetSystemPerformance handles GET /monitoring/performance/system.
func (h *PerformanceHandler) GetSystemPerformance(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"latest":  h.tracker.LatestSystemSample(),
		"samples": h.tracker.SystemSamples(),
	})
}

// GetAlerts handles GET /monitoring/performance/alerts.
func (h *PerformanceHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": h.tracker.Alerts(),
	})
}

// GetAdvanced handles GET /monitoring/performance/advanced: the combined
// summary of slow endpoints, slow query types, system state and alerts.
func (h *PerformanceHandler) GetAdvanced(w http.ResponseWriter, r *http.Request) {
	timeRange := parseTimeRange(r)
	common.RespondJSON(w, http.StatusOK, h.tracker.GetSummary(timeRange))
}

// GetCacheStats handles GET /monitoring/performance/cache.
func (h *PerformanceHandler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, h.cache.Stats())
}

// GetOptimization handles GET /monitoring/performance/optimization.
func (h *PerformanceHandler) GetOptimization(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, h.tracker.GetOptimizationReport())
}

// UpdateThresholds handles PUT /monitoring/performance/thresholds.
func (h *PerformanceHandler) UpdateThresholds(w http.ResponseWriter, r *http.Request) {
	var update perftracker.ThresholdUpdate
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

// Cleanup handles POST /monitoring/performance/cleanup.
func (h *PerformanceHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	h.tracker.Cleanup()

	h.logger.Info("Performance tracker cleanup triggered manually")
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Performance tracking data cleaned up",
	})
}
