// Package ports defines the persistence interfaces the HTTP layer depends
// on. Implementations live under infrastructure/persistence.
package ports

import (
	"context"
	"time"
)

// AttendanceStatus is the closed set of per-session attendance states.
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "Present"
	StatusAbsent  AttendanceStatus = "Absent"
	StatusLate    AttendanceStatus = "Late"
	StatusExcused AttendanceStatus = "Excused"
)

// AttendanceRecord is one marked attendance entry. A student has at most
// one record per date+session.
type AttendanceRecord struct {
	ID        string           `json:"id"`
	StudentID string           `json:"studentId"`
	ClassID   string           `json:"classId"`
	SubjectID string           `json:"subjectId,omitempty"`
	TeacherID string           `json:"teacherId"`
	Date      string           `json:"date"`
	Session   string           `json:"session"`
	Status    AttendanceStatus `json:"status"`
	MarkedBy  string           `json:"markedBy"`
	MarkedAt  time.Time        `json:"markedAt"`
}

// BulkError is one failed entry in a bulk operation.
type BulkError struct {
	StudentID string `json:"studentId"`
	Reason    string `json:"reason"`
}

// BulkResult summarizes a bulk marking operation.
type BulkResult struct {
	Total     int              `json:"total"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Errors    []BulkError      `json:"errors,omitempty"`
	Records   []AttendanceRecord `json:"records,omitempty"`
}

// StudentSummary aggregates a student's attendance over a date range.
type StudentSummary struct {
	StudentID      string  `json:"studentId"`
	TotalSessions  int     `json:"totalSessions"`
	Present        int     `json:"present"`
	Absent         int     `json:"absent"`
	Late           int     `json:"late"`
	Excused        int     `json:"excused"`
	AttendanceRate float64 `json:"attendanceRate"`
}

// Student is a roster entry.
type Student struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	RollNumber string `json:"rollNumber"`
	ClassID    string `json:"classId"`
}

// AttendanceRepository is the attendance persistence port.
type AttendanceRepository interface {
	// Mark stores one record. A second record for the same
	// student+date+session fails with a duplicate-marking error.
	Mark(ctx context.Context, record AttendanceRecord) (*AttendanceRecord, error)

	// BulkMark stores many records in one pass. Individual failures do not
	// abort the batch; a mixed outcome returns both the result and a
	// bulk-partial error.
	BulkMark(ctx context.Context, records []AttendanceRecord) (*BulkResult, error)

	// StudentSummary aggregates a student's records between two dates,
	// inclusive.
	StudentSummary(ctx context.Context, studentID string, from, to string) (*StudentSummary, error)

	// ClassStudents lists the roster of a class.
	ClassStudents(ctx context.Context, classID string) ([]Student, error)
}
