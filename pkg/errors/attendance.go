package errors

import (
	"fmt"
	"net/http"
)

// Attendance-domain constructors. These produce kinds the attendance error
// tracker maps to elevated severities, so they must be raised at the point
// the condition is detected rather than reclassified later.

// NewDuplicateMarkingError signals that attendance for a student was already
// marked for the given date and session.
func NewDuplicateMarkingError(studentID, date, session string) *AppError {
	return &AppError{
		Kind:    KindDuplicateMarking,
		Message: fmt.Sprintf("attendance already marked for student %s on %s (%s)", studentID, date, session),
		Code:    "DUPLICATE_MARKING",
		Details: map[string]interface{}{
			"studentId": studentID,
			"date":      date,
			"session":   session,
		},
		HTTPStatus: http.StatusConflict,
	}
}

// NewBulkPartialFailureError signals that a bulk operation completed with
// some records failing. Totals are carried in Details so the tracker can
// derive impact without re-querying.
func NewBulkPartialFailureError(operation string, total, succeeded, failed int) *AppError {
	return &AppError{
		Kind:    KindBulkPartial,
		Message: fmt.Sprintf("bulk %s completed with %d of %d records failed", operation, failed, total),
		Code:    "BULK_PARTIAL_FAILURE",
		Details: map[string]interface{}{
			"operation":    operation,
			"totalRecords": total,
			"successCount": succeeded,
			"failureCount": failed,
		},
		HTTPStatus: http.StatusMultiStatus,
	}
}

// NewTeacherNotAssignedError signals a teacher acting on a class or subject
// they are not assigned to.
func NewTeacherNotAssignedError(teacherID, classID string) *AppError {
	return &AppError{
		Kind:    KindAuthorization,
		Message: fmt.Sprintf("teacher %s is not assigned to class %s", teacherID, classID),
		Code:    "TEACHER_NOT_ASSIGNED",
		Details: map[string]interface{}{
			"teacherId": teacherID,
			"classId":   classID,
		},
		HTTPStatus: http.StatusForbidden,
	}
}

// NewInvalidSessionError signals an attendance session outside the accepted
// vocabulary (morning, afternoon, full-day).
func NewInvalidSessionError(session string) *AppError {
	return NewValidationError(fmt.Sprintf("invalid attendance session %q", session)).
		WithCode("INVALID_SESSION")
}
