package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"attendance-backend/application/ports"
	"attendance-backend/infrastructure/cache"
	"attendance-backend/infrastructure/persistence/memory"
	"attendance-backend/monitoring/attendtracker"
	"attendance-backend/monitoring/errtracker"
	"attendance-backend/monitoring/perftracker"
	"attendance-backend/pkg/auth"
	apperrors "attendance-backend/pkg/errors"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type attendanceFixture struct {
	handler    *AttendanceHandler
	repo       *memory.AttendanceRepository
	attendance *attendtracker.Tracker
	errors     *errtracker.Tracker
	perf       *perftracker.Tracker
	cache      *cache.TieredCache
	router     chi.Router
}

func newAttendanceFixture(t *testing.T) *attendanceFixture {
	t.Helper()
	logger := zap.NewNop()

	errTracker := errtracker.New(logger, nil)
	attTracker := attendtracker.New(logger, nil)
	perfTracker := perftracker.New(logger, nil, nil)
	tiered := cache.NewTieredCache(nil, cache.NewMemoryStore(), logger)

	repo := memory.NewAttendanceRepository()
	repo.SeedStudents([]ports.Student{
		{ID: "s1", Name: "Asha", RollNumber: "01", ClassID: "c1"},
		{ID: "s2", Name: "Ben", RollNumber: "02", ClassID: "c1"},
	})

	errorHandler := apperrors.NewErrorHandler(logger, false, NewErrorTrackerReporter(errTracker))
	handler := NewAttendanceHandler(repo, perfTracker, attTracker, tiered, errorHandler, logger)

	router := chi.NewRouter()
	router.Post("/attendance/mark", handler.MarkAttendance)
	router.Post("/attendance/classes/{classID}/bulk", handler.BulkMarkAttendance)
	router.Get("/attendance/students/{studentID}/summary", handler.GetStudentSummary)
	router.Get("/attendance/classes/{classID}/students", handler.GetClassStudents)

	return &attendanceFixture{
		handler:    handler,
		repo:       repo,
		attendance: attTracker,
		errors:     errTracker,
		perf:       perfTracker,
		cache:      tiered,
		router:     router,
	}
}

func (f *attendanceFixture) do(t *testing.T, method, path string, body interface{}, user *auth.UserContext) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if user != nil {
		req = req.WithContext(auth.SetUserInContext(req.Context(), user))
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func admin() *auth.UserContext   { return &auth.UserContext{UserID: "a1", Role: "Admin"} }
func teacher() *auth.UserContext { return &auth.UserContext{UserID: "t1", Role: "Teacher"} }

func markBody() map[string]interface{} {
	return map[string]interface{}{
		"studentId": "s1",
		"classId":   "c1",
		"subjectId": "math",
		"date":      "2026-03-02",
		"session":   "morning",
		"status":    "Present",
	}
}

func TestMarkAttendanceSuccess(t *testing.T) {
	f := newAttendanceFixture(t)

	rec := f.do(t, http.MethodPost, "/attendance/mark", markBody(), teacher())

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)

	// Success is recorded against the marking operation.
	stats := f.attendance.OperationStats("mark")
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.Total)
	assert.Zero(t, stats.Errors)

	// The repository call went through the query decorator.
	queries := f.perf.AllQueryStats()
	require.Len(t, queries, 1)
	assert.Equal(t, "insert_attendances", queries[0].Key)
}

func TestMarkAttendanceDuplicateTracked(t *testing.T) {
	f := newAttendanceFixture(t)

	first := f.do(t, http.MethodPost, "/attendance/mark", markBody(), teacher())
	require.Equal(t, http.StatusCreated, first.Code)

	second := f.do(t, http.MethodPost, "/attendance/mark", markBody(), teacher())
	assert.Equal(t, http.StatusConflict, second.Code)
	assert.Contains(t, second.Body.String(), "DUPLICATE_MARKING")

	// Tracked by the domain tracker and, via the boundary, the generic one.
	stats := f.attendance.OperationStats("mark")
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.Errors)
	assert.NotNil(t, f.errors.Stats("DUPLICATE_MARKING", "DUPLICATE_MARKING"))
}

func TestMarkAttendanceValidation(t *testing.T) {
	f := newAttendanceFixture(t)

	body := markBody()
	body["session"] = "midnight"
	rec := f.do(t, http.MethodPost, "/attendance/mark", body, teacher())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	stats := f.attendance.OperationStats("mark")
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.Errors)
}

func TestMarkAttendanceRejectsUnknownFields(t *testing.T) {
	f := newAttendanceFixture(t)

	body := markBody()
	body["unexpected"] = true
	rec := f.do(t, http.MethodPost, "/attendance/mark", body, teacher())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarkAttendanceTeacherCannotActForAnother(t *testing.T) {
	f := newAttendanceFixture(t)

	body := markBody()
	body["teacherId"] = "t-other"
	rec := f.do(t, http.MethodPost, "/attendance/mark", body, teacher())

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "TEACHER_NOT_ASSIGNED")
}

func TestMarkAttendanceRequiresUser(t *testing.T) {
	f := newAttendanceFixture(t)

	rec := f.do(t, http.MethodPost, "/attendance/mark", markBody(), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMarkAttendanceInvalidatesCachedSummary(t *testing.T) {
	f := newAttendanceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.cache.SetBytes(ctx, "student:s1:summary", []byte("{}"), time.Minute))
	require.NoError(t, f.cache.SetBytes(ctx, "class:c1:students", []byte("[]"), time.Minute))
	require.NoError(t, f.cache.SetBytes(ctx, "student:s2:summary", []byte("{}"), time.Minute))

	rec := f.do(t, http.MethodPost, "/attendance/mark", markBody(), teacher())
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.False(t, f.cache.Exists(ctx, "student:s1:summary"))
	assert.False(t, f.cache.Exists(ctx, "class:c1:students"))
	// Other students' entries are untouched.
	assert.True(t, f.cache.Exists(ctx, "student:s2:summary"))
}

func TestBulkMarkAllSucceed(t *testing.T) {
	f := newAttendanceFixture(t)

	rec := f.do(t, http.MethodPost, "/attendance/classes/c1/bulk", map[string]interface{}{
		"date":    "2026-03-02",
		"session": "morning",
		"entries": []map[string]string{
			{"studentId": "s1", "status": "Present"},
			{"studentId": "s2", "status": "Absent"},
		},
	}, admin())

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"succeeded":2`)

	stats := f.attendance.OperationStats("bulk")
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.Total)
}

func TestBulkMarkPartialFailureIs207(t *testing.T) {
	f := newAttendanceFixture(t)

	first := f.do(t, http.MethodPost, "/attendance/mark", markBody(), teacher())
	require.Equal(t, http.StatusCreated, first.Code)

	rec := f.do(t, http.MethodPost, "/attendance/classes/c1/bulk", map[string]interface{}{
		"date":    "2026-03-02",
		"session": "morning",
		"entries": []map[string]string{
			{"studentId": "s1", "status": "Present"},
			{"studentId": "s2", "status": "Present"},
		},
	}, admin())

	assert.Equal(t, http.StatusMultiStatus, rec.Code)
	assert.Contains(t, rec.Body.String(), "BULK_PARTIAL_FAILURE")
	// Per-record failures ride along in the error details.
	assert.Contains(t, rec.Body.String(), `"studentId":"s1"`)

	stats := f.attendance.OperationStats("bulk")
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.Errors)
}

func TestBulkMarkEmptyEntriesRejected(t *testing.T) {
	f := newAttendanceFixture(t)

	rec := f.do(t, http.MethodPost, "/attendance/classes/c1/bulk", map[string]interface{}{
		"date":    "2026-03-02",
		"session": "morning",
		"entries": []map[string]string{},
	}, admin())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetStudentSummary(t *testing.T) {
	f := newAttendanceFixture(t)

	mark := f.do(t, http.MethodPost, "/attendance/mark", markBody(), teacher())
	require.Equal(t, http.StatusCreated, mark.Code)

	rec := f.do(t, http.MethodGet, "/attendance/students/s1/summary", nil, teacher())
	require.Equal(t, http.StatusOK, rec.Code)

	var response struct {
		Success bool                 `json:"success"`
		Data    ports.StudentSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.True(t, response.Success)
	assert.Equal(t, 1, response.Data.TotalSessions)
	assert.Equal(t, 1, response.Data.Present)
}

func TestGetStudentSummaryUnknownStudent(t *testing.T) {
	f := newAttendanceFixture(t)

	rec := f.do(t, http.MethodGet, "/attendance/students/ghost/summary", nil, teacher())

	assert.Equal(t, http.StatusNotFound, rec.Code)
	stats := f.attendance.OperationStats("summary")
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.Errors)
}

func TestGetClassStudents(t *testing.T) {
	f := newAttendanceFixture(t)

	rec := f.do(t, http.MethodGet, "/attendance/classes/c1/students", nil, teacher())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"classId":"c1"`)
	assert.Contains(t, rec.Body.String(), "Asha")
}
