// Package memory provides the in-process attendance repository. It backs
// the attendance boundary routes; durability is out of scope for this
// service.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"attendance-backend/application/ports"
	apperrors "attendance-backend/pkg/errors"

	"github.com/google/uuid"
)

// AttendanceRepository is a mutex-guarded in-memory implementation of the
// attendance port.
type AttendanceRepository struct {
	mu       sync.RWMutex
	records  map[string]ports.AttendanceRecord // studentID|date|session
	students map[string]ports.Student
}

// NewAttendanceRepository creates an empty repository.
func NewAttendanceRepository() *AttendanceRepository {
	return &AttendanceRepository{
		records:  make(map[string]ports.AttendanceRecord),
		students: make(map[string]ports.Student),
	}
}

// SeedStudents loads roster entries. Used at startup and in tests.
func (r *AttendanceRepository) SeedStudents(students []ports.Student) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range students {
		r.students[s.ID] = s
	}
}

func recordKey(studentID, date, session string) string {
	return studentID + "|" + date + "|" + session
}

// Mark stores one record, rejecting duplicates for the same
// student+date+session.
func (r *AttendanceRepository) Mark(ctx context.Context, record ports.AttendanceRecord) (*ports.AttendanceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := recordKey(record.StudentID, record.Date, record.Session)
	if _, exists := r.records[key]; exists {
		return nil, apperrors.NewDuplicateMarkingError(record.StudentID, record.Date, record.Session)
	}

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	record.MarkedAt = time.Now()
	r.records[key] = record

	cp := record
	return &cp, nil
}

// BulkMark stores many records in one pass. Duplicates fail individually
// without aborting the batch; a mixed outcome returns the result alongside
// a bulk-partial error.
func (r *AttendanceRepository) BulkMark(ctx context.Context, records []ports.AttendanceRecord) (*ports.BulkResult, error) {
	result := &ports.BulkResult{Total: len(records)}

	r.mu.Lock()
	for _, record := range records {
		key := recordKey(record.StudentID, record.Date, record.Session)
		if _, exists := r.records[key]; exists {
			result.Failed++
			result.Errors = append(result.Errors, ports.BulkError{
				StudentID: record.StudentID,
				Reason:    "attendance already marked",
			})
			continue
		}

		if record.ID == "" {
			record.ID = uuid.New().String()
		}
		record.MarkedAt = time.Now()
		r.records[key] = record

		result.Succeeded++
		result.Records = append(result.Records, record)
	}
	r.mu.Unlock()

	if result.Failed > 0 {
		err := apperrors.NewBulkPartialFailureError("mark", result.Total, result.Succeeded, result.Failed)
		return result, err
	}
	return result, nil
}

// StudentSummary aggregates a student's records between two dates,
// inclusive. An unknown student is a not-found error; a known student with
// no records in range yields a zero summary.
func (r *AttendanceRepository) StudentSummary(ctx context.Context, studentID string, from, to string) (*ports.StudentSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, known := r.students[studentID]; !known {
		return nil, apperrors.NewNotFoundError("student " + studentID)
	}

	summary := &ports.StudentSummary{StudentID: studentID}
	for _, record := range r.records {
		if record.StudentID != studentID {
			continue
		}
		if (from != "" && record.Date < from) || (to != "" && record.Date > to) {
			continue
		}

		summary.TotalSessions++
		switch record.Status {
		case ports.StatusPresent:
			summary.Present++
		case ports.StatusAbsent:
			summary.Absent++
		case ports.StatusLate:
			summary.Late++
		case ports.StatusExcused:
			summary.Excused++
		}
	}

	if summary.TotalSessions > 0 {
		attended := summary.Present + summary.Late
		summary.AttendanceRate = float64(attended) / float64(summary.TotalSessions)
	}
	return summary, nil
}

// ClassStudents lists the roster of a class, ordered by roll number. An
// unknown class is an empty roster, not an error.
func (r *AttendanceRepository) ClassStudents(ctx context.Context, classID string) ([]ports.Student, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	students := make([]ports.Student, 0)
	for _, s := range r.students {
		if s.ClassID == classID {
			students = append(students, s)
		}
	}

	sort.Slice(students, func(i, j int) bool {
		return students[i].RollNumber < students[j].RollNumber
	})
	return students, nil
}
