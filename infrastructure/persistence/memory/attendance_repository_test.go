package memory

import (
	"context"
	"testing"

	"attendance-backend/application/ports"
	apperrors "attendance-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededRepository() *AttendanceRepository {
	repo := NewAttendanceRepository()
	repo.SeedStudents([]ports.Student{
		{ID: "s1", Name: "Asha", RollNumber: "02", ClassID: "c1"},
		{ID: "s2", Name: "Ben", RollNumber: "01", ClassID: "c1"},
		{ID: "s3", Name: "Chitra", RollNumber: "03", ClassID: "c2"},
	})
	return repo
}

func record(studentID, date, session string, status ports.AttendanceStatus) ports.AttendanceRecord {
	return ports.AttendanceRecord{
		StudentID: studentID,
		ClassID:   "c1",
		SubjectID: "math",
		TeacherID: "t1",
		Date:      date,
		Session:   session,
		Status:    status,
		MarkedBy:  "t1",
	}
}

func TestMarkAssignsIDAndTimestamp(t *testing.T) {
	repo := seededRepository()

	saved, err := repo.Mark(context.Background(), record("s1", "2026-03-02", "morning", ports.StatusPresent))
	require.NoError(t, err)

	assert.NotEmpty(t, saved.ID)
	assert.False(t, saved.MarkedAt.IsZero())
	assert.Equal(t, ports.StatusPresent, saved.Status)
}

func TestMarkRejectsDuplicate(t *testing.T) {
	repo := seededRepository()
	ctx := context.Background()

	_, err := repo.Mark(ctx, record("s1", "2026-03-02", "morning", ports.StatusPresent))
	require.NoError(t, err)

	_, err = repo.Mark(ctx, record("s1", "2026-03-02", "morning", ports.StatusAbsent))
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindDuplicateMarking))

	// Same student, different session is a distinct slot.
	_, err = repo.Mark(ctx, record("s1", "2026-03-02", "afternoon", ports.StatusPresent))
	assert.NoError(t, err)
}

func TestBulkMarkAllSucceed(t *testing.T) {
	repo := seededRepository()

	result, err := repo.BulkMark(context.Background(), []ports.AttendanceRecord{
		record("s1", "2026-03-02", "morning", ports.StatusPresent),
		record("s2", "2026-03-02", "morning", ports.StatusAbsent),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 2, result.Succeeded)
	assert.Zero(t, result.Failed)
	assert.Len(t, result.Records, 2)
}

func TestBulkMarkPartialFailure(t *testing.T) {
	repo := seededRepository()
	ctx := context.Background()

	_, err := repo.Mark(ctx, record("s1", "2026-03-02", "morning", ports.StatusPresent))
	require.NoError(t, err)

	result, err := repo.BulkMark(ctx, []ports.AttendanceRecord{
		record("s1", "2026-03-02", "morning", ports.StatusPresent),
		record("s2", "2026-03-02", "morning", ports.StatusLate),
	})

	// The batch is not aborted: the result and the error arrive together.
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindBulkPartial))
	require.NotNil(t, result)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "s1", result.Errors[0].StudentID)
}

func TestStudentSummaryAggregates(t *testing.T) {
	repo := seededRepository()
	ctx := context.Background()

	for _, r := range []ports.AttendanceRecord{
		record("s1", "2026-03-02", "morning", ports.StatusPresent),
		record("s1", "2026-03-03", "morning", ports.StatusLate),
		record("s1", "2026-03-04", "morning", ports.StatusAbsent),
		record("s1", "2026-03-05", "morning", ports.StatusExcused),
		record("s2", "2026-03-02", "morning", ports.StatusPresent),
	} {
		_, err := repo.Mark(ctx, r)
		require.NoError(t, err)
	}

	summary, err := repo.StudentSummary(ctx, "s1", "", "")
	require.NoError(t, err)

	assert.Equal(t, 4, summary.TotalSessions)
	assert.Equal(t, 1, summary.Present)
	assert.Equal(t, 1, summary.Late)
	assert.Equal(t, 1, summary.Absent)
	assert.Equal(t, 1, summary.Excused)
	// Present and late both count as attended.
	assert.InDelta(t, 0.5, summary.AttendanceRate, 0.001)
}

func TestStudentSummaryDateRange(t *testing.T) {
	repo := seededRepository()
	ctx := context.Background()

	for _, date := range []string{"2026-03-02", "2026-03-09", "2026-03-16"} {
		_, err := repo.Mark(ctx, record("s1", date, "morning", ports.StatusPresent))
		require.NoError(t, err)
	}

	summary, err := repo.StudentSummary(ctx, "s1", "2026-03-05", "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalSessions)
}

func TestStudentSummaryUnknownStudent(t *testing.T) {
	repo := seededRepository()

	_, err := repo.StudentSummary(context.Background(), "ghost", "", "")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestStudentSummaryKnownStudentNoRecords(t *testing.T) {
	repo := seededRepository()

	summary, err := repo.StudentSummary(context.Background(), "s3", "", "")
	require.NoError(t, err)
	assert.Zero(t, summary.TotalSessions)
	assert.Zero(t, summary.AttendanceRate)
}

func TestClassStudentsSortedByRollNumber(t *testing.T) {
	repo := seededRepository()

	students, err := repo.ClassStudents(context.Background(), "c1")
	require.NoError(t, err)

	require.Len(t, students, 2)
	assert.Equal(t, "s2", students[0].ID)
	assert.Equal(t, "s1", students[1].ID)
}

func TestClassStudentsUnknownClassIsEmpty(t *testing.T) {
	repo := seededRepository()

	students, err := repo.ClassStudents(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Empty(t, students)
}
