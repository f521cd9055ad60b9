package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"attendance-backend/monitoring/errtracker"
	apperrors "attendance-backend/pkg/errors"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type monitoringFixture struct {
	tracker *errtracker.Tracker
	router  chi.Router
}

func newMonitoringFixture(t *testing.T) *monitoringFixture {
	t.Helper()
	logger := zap.NewNop()
	tracker := errtracker.New(logger, nil)
	handler := NewErrorMonitoringHandler(tracker, apperrors.NewErrorHandler(logger, false), logger)

	router := chi.NewRouter()
	router.Get("/monitoring/errors/analytics", handler.GetAnalytics)
	router.Get("/monitoring/errors/health", handler.GetHealth)
	router.Get("/monitoring/errors/stats/{name}/{code}", handler.GetStats)
	router.Get("/monitoring/errors/export", handler.Export)
	router.Post("/monitoring/errors/cleanup", handler.Cleanup)
	router.Put("/monitoring/errors/thresholds", handler.UpdateThresholds)

	return &monitoringFixture{tracker: tracker, router: router}
}

func (f *monitoringFixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestGetAnalyticsEndpoint(t *testing.T) {
	f := newMonitoringFixture(t)
	f.tracker.Track(apperrors.NewNotFoundError("student"), errtracker.Context{UserRole: "Teacher"})

	rec := f.get(t, "/monitoring/errors/analytics?timeRange=1h")
	require.Equal(t, http.StatusOK, rec.Code)

	var response struct {
		Success bool                `json:"success"`
		Data    errtracker.Analytics `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.True(t, response.Success)
	assert.Equal(t, 1, response.Data.Total)
	assert.Equal(t, "1h0m0s", response.Data.TimeRange)
	// Details only appear when asked for.
	assert.Empty(t, response.Data.Details)

	detailed := f.get(t, "/monitoring/errors/analytics?includeDetails=true")
	var detailedResponse struct {
		Data errtracker.Analytics `json:"data"`
	}
	require.NoError(t, json.Unmarshal(detailed.Body.Bytes(), &detailedResponse))
	assert.Len(t, detailedResponse.Data.Details, 1)
}

func TestGetHealthEndpoint(t *testing.T) {
	f := newMonitoringFixture(t)

	rec := f.get(t, "/monitoring/errors/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestGetStatsEndpoint(t *testing.T) {
	f := newMonitoringFixture(t)
	f.tracker.Track(apperrors.NewNotFoundError("student"), errtracker.Context{})

	rec := f.get(t, "/monitoring/errors/stats/NOT_FOUND/NOT_FOUND")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	missing := f.get(t, "/monitoring/errors/stats/NOT_FOUND/UNSEEN")
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestExportJSON(t *testing.T) {
	f := newMonitoringFixture(t)
	f.tracker.Track(apperrors.NewInternalError("boom"), errtracker.Context{Endpoint: "/api/v2/attendance/mark"})

	rec := f.get(t, "/monitoring/errors/export")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Body.String(), `"total":1`)
}

func TestExportCSV(t *testing.T) {
	f := newMonitoringFixture(t)
	f.tracker.Track(apperrors.NewInternalError("boom"), errtracker.Context{Endpoint: "/api/v2/attendance/mark", UserID: "u1"})

	rec := f.get(t, "/monitoring/errors/export?format=csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "timestamp,name,code,severity,status,message,endpoint,userId", lines[0])
	assert.Contains(t, lines[1], "INTERNAL")
	assert.Contains(t, lines[1], "u1")
}

func TestExportUnknownFormat(t *testing.T) {
	f := newMonitoringFixture(t)

	rec := f.get(t, "/monitoring/errors/export?format=xml")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateThresholdsEndpoint(t *testing.T) {
	f := newMonitoringFixture(t)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/monitoring/errors/thresholds",
		strings.NewReader(`{"errorRate":0.25}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.25, f.tracker.Thresholds().ErrorRate)

	bad := httptest.NewRecorder()
	f.router.ServeHTTP(bad, httptest.NewRequest(http.MethodPut, "/monitoring/errors/thresholds",
		strings.NewReader(`{"errorRate":2.0}`)))
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestCleanupEndpoint(t *testing.T) {
	f := newMonitoringFixture(t)
	f.tracker.Track(apperrors.NewNotFoundError("student"), errtracker.Context{})

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/monitoring/errors/cleanup", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	// Fresh events survive cleanup.
	assert.Equal(t, 1, f.tracker.Analytics(time.Hour, false).Total)
}

func TestParseTimeRangeClampsAndDefaults(t *testing.T) {
	assert.Equal(t, defaultTimeRange, parseTimeRange(httptest.NewRequest(http.MethodGet, "/x", nil)))
	assert.Equal(t, defaultTimeRange, parseTimeRange(httptest.NewRequest(http.MethodGet, "/x?timeRange=soon", nil)))
	assert.Equal(t, time.Hour, parseTimeRange(httptest.NewRequest(http.MethodGet, "/x?timeRange=1h", nil)))
	assert.Equal(t, maxTimeRange, parseTimeRange(httptest.NewRequest(http.MethodGet, "/x?timeRange=720h", nil)))
}
