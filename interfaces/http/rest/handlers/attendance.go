package handlers

import (
	"context"
	"net/http"
	"time"

	"attendance-backend/application/ports"
	"attendance-backend/infrastructure/cache"
	"attendance-backend/monitoring/attendtracker"
	"attendance-backend/monitoring/perftracker"
	"attendance-backend/pkg/auth"
	"attendance-backend/pkg/common"
	apperrors "attendance-backend/pkg/errors"
	"attendance-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AttendanceHandler serves the attendance routes. Every repository call is
// wrapped in the performance tracker's Measure decorator, every failure is
// tracked by the attendance tracker, and writes invalidate the cache
// namespaces they touch.
type AttendanceHandler struct {
	repo       ports.AttendanceRepository
	perf       *perftracker.Tracker
	attendance *attendtracker.Tracker
	cache      *cache.TieredCache
	errors     *apperrors.ErrorHandler
	logger     *zap.Logger
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(
	repo ports.AttendanceRepository,
	perf *perftracker.Tracker,
	attendance *attendtracker.Tracker,
	tieredCache *cache.TieredCache,
	errorHandler *apperrors.ErrorHandler,
	logger *zap.Logger,
) *AttendanceHandler {
	return &AttendanceHandler{
		repo:       repo,
		perf:       perf,
		attendance: attendance,
		cache:      tieredCache,
		errors:     errorHandler,
		logger:     logger,
	}
}

// MarkAttendanceRequest is the body for marking a single student.
type MarkAttendanceRequest struct {
	StudentID string `json:"studentId" validate:"required"`
	ClassID   string `json:"classId" validate:"required"`
	SubjectID string `json:"subjectId,omitempty"`
	TeacherID string `json:"teacherId,omitempty"`
	Date      string `json:"date" validate:"required,attendance_date"`
	Session   string `json:"session" validate:"required,oneof=morning afternoon full-day"`
	Status    string `json:"status" validate:"required,oneof=Present Absent Late Excused"`
}

// BulkMarkRequest is the body for marking a whole class in one call.
type BulkMarkRequest struct {
	SubjectID string          `json:"subjectId,omitempty"`
	Date      string          `json:"date" validate:"required,attendance_date"`
	Session   string          `json:"session" validate:"required,oneof=morning afternoon full-day"`
	Entries   []BulkMarkEntry `json:"entries" validate:"required,min=1,dive"`
}

// BulkMarkEntry is one student's status within a bulk request.
type BulkMarkEntry struct {
	StudentID string `json:"studentId" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=Present Absent Late Excused"`
}

// MarkAttendance handles POST /attendance/mark.
func (h *AttendanceHandler) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	var req MarkAttendanceRequest
	if err := common.ParseJSONBody(w, r, &req, 64*1024); err != nil {
		h.errors.Handle(w, r, apperrors.NewValidationError("invalid request body: "+err.Error()))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.trackAndRespond(w, r, apperrors.NewValidationError(err.Error()), attendtracker.Context{
			Operation: "mark",
			StudentID: req.StudentID,
			ClassID:   req.ClassID,
			Date:      req.Date,
			Session:   req.Session,
		})
		return
	}

	actor, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.errors.Handle(w, r, apperrors.NewUnauthorizedError("unauthorized"))
		return
	}

	teacherID := req.TeacherID
	if actor.Role == "Teacher" {
		if teacherID != "" && teacherID != actor.UserID {
			h.trackAndRespond(w, r, apperrors.NewTeacherNotAssignedError(actor.UserID, req.ClassID), attendtracker.Context{
				Operation: "mark",
				UserRole:  actor.Role,
				UserID:    actor.UserID,
				ClassID:   req.ClassID,
			})
			return
		}
		teacherID = actor.UserID
	}

	reqCtx := attendtracker.Context{
		Operation: "mark",
		UserRole:  actor.Role,
		UserID:    actor.UserID,
		ClassID:   req.ClassID,
		SubjectID: req.SubjectID,
		TeacherID: teacherID,
		StudentID: req.StudentID,
		Date:      req.Date,
		Session:   req.Session,
	}

	start := time.Now()
	record, err := perftracker.MeasureResult(r.Context(), h.perf, "insert", "attendances",
		func(ctx context.Context) (*ports.AttendanceRecord, error) {
			return h.repo.Mark(ctx, ports.AttendanceRecord{
				StudentID: req.StudentID,
				ClassID:   req.ClassID,
				SubjectID: req.SubjectID,
				TeacherID: teacherID,
				Date:      req.Date,
				Session:   req.Session,
				Status:    ports.AttendanceStatus(req.Status),
				MarkedBy:  actor.UserID,
			})
		})
	if err != nil {
		h.trackAndRespond(w, r, err, reqCtx)
		return
	}

	h.attendance.RecordSuccess("mark", reqCtx, time.Since(start))
	h.invalidate(r, "student:"+req.StudentID+":*", "class:"+req.ClassID+":*")

	common.RespondJSON(w, http.StatusCreated, record)
}

// BulkMarkAttendance handles POST /attendance/classes/{classID}/bulk. Cache
// invalidation for the class namespace runs in the route middleware; the
// touched student namespaces are invalidated here.
func (h *AttendanceHandler) BulkMarkAttendance(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "classID")

	var req BulkMarkRequest
	if err := common.ParseJSONBody(w, r, &req, 1024*1024); err != nil {
		h.errors.Handle(w, r, apperrors.NewValidationError("invalid request body: "+err.Error()))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.trackAndRespond(w, r, apperrors.NewValidationError(err.Error()), attendtracker.Context{
			Operation:    "bulk",
			ClassID:      classID,
			Date:         req.Date,
			Session:      req.Session,
			TotalRecords: len(req.Entries),
		})
		return
	}

	actor, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.errors.Handle(w, r, apperrors.NewUnauthorizedError("unauthorized"))
		return
	}

	records := make([]ports.AttendanceRecord, 0, len(req.Entries))
	for _, entry := range req.Entries {
		records = append(records, ports.AttendanceRecord{
			StudentID: entry.StudentID,
			ClassID:   classID,
			SubjectID: req.SubjectID,
			TeacherID: actor.UserID,
			Date:      req.Date,
			Session:   req.Session,
			Status:    ports.AttendanceStatus(entry.Status),
			MarkedBy:  actor.UserID,
		})
	}

	reqCtx := attendtracker.Context{
		Operation:    "bulk",
		UserRole:     actor.Role,
		UserID:       actor.UserID,
		ClassID:      classID,
		SubjectID:    req.SubjectID,
		Date:         req.Date,
		Session:      req.Session,
		TotalRecords: len(records),
	}

	start := time.Now()
	result, err := perftracker.MeasureResult(r.Context(), h.perf, "insertMany", "attendances",
		func(ctx context.Context) (*ports.BulkResult, error) {
			return h.repo.BulkMark(ctx, records)
		})

	if result != nil {
		reqCtx.SuccessCount = result.Succeeded
		reqCtx.FailureCount = result.Failed
		for _, record := range result.Records {
			h.invalidate(r, "student:"+record.StudentID+":*")
		}
	}

	if err != nil {
		if appErr := apperrors.GetAppError(err); appErr != nil && result != nil {
			if appErr.Details == nil {
				appErr.Details = map[string]interface{}{}
			}
			appErr.Details["errors"] = result.Errors
		}
		h.trackAndRespond(w, r, err, reqCtx)
		return
	}

	h.attendance.RecordSuccess("bulk", reqCtx, time.Since(start))
	common.RespondJSON(w, http.StatusCreated, result)
}

// GetStudentSummary handles GET /attendance/students/{studentID}/summary.
// Served through the cache middleware under the student:<id>:summary key.
func (h *AttendanceHandler) GetStudentSummary(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")

	summary, err := perftracker.MeasureResult(r.Context(), h.perf, "aggregate", "attendances",
		func(ctx context.Context) (*ports.StudentSummary, error) {
			return h.repo.StudentSummary(ctx, studentID, from, to)
		})
	if err != nil {
		h.trackAndRespond(w, r, err, attendtracker.Context{
			Operation: "summary",
			StudentID: studentID,
		})
		return
	}

	common.RespondJSON(w, http.StatusOK, summary)
}

// GetClassStudents handles GET /attendance/classes/{classID}/students.
// Served through the cache middleware under the class:<id>:students key.
func (h *AttendanceHandler) GetClassStudents(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "classID")

	students, err := perftracker.MeasureResult(r.Context(), h.perf, "find", "students",
		func(ctx context.Context) ([]ports.Student, error) {
			return h.repo.ClassStudents(ctx, classID)
		})
	if err != nil {
		h.trackAndRespond(w, r, err, attendtracker.Context{
			Operation: "roster",
			ClassID:   classID,
		})
		return
	}

	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"classId":  classID,
		"students": students,
	})
}

// trackAndRespond records the failure with the attendance tracker before
// handing the error to the boundary for the response (which also feeds the
// generic tracker).
func (h *AttendanceHandler) trackAndRespond(w http.ResponseWriter, r *http.Request, err error, reqCtx attendtracker.Context) {
	h.attendance.Track(err, reqCtx)
	h.errors.Handle(w, r, err)
}

// invalidate removes cache namespaces touched by a write, best-effort.
func (h *AttendanceHandler) invalidate(r *http.Request, patterns ...string) {
	for _, pattern := range patterns {
		removed := h.cache.DeletePattern(r.Context(), pattern)
		if removed > 0 {
			h.logger.Debug("Cache invalidated", zap.String("pattern", pattern), zap.Int("removed", removed))
		}
	}
}
