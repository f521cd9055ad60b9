package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type markRequest struct {
	StudentID string `validate:"required"`
	Date      string `validate:"required,attendance_date"`
	Session   string `validate:"required,oneof=morning afternoon full-day"`
}

func TestValidateStructPasses(t *testing.T) {
	err := ValidateStruct(markRequest{
		StudentID: "s1",
		Date:      "2026-03-02",
		Session:   "morning",
	})
	assert.NoError(t, err)
}

func TestValidateStructRequired(t *testing.T) {
	err := ValidateStruct(markRequest{Date: "2026-03-02", Session: "morning"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "studentid is required")
}

func TestValidateStructAttendanceDate(t *testing.T) {
	cases := []string{"02-03-2026", "2026/03/02", "2026-13-40", "yesterday"}
	for _, date := range cases {
		err := ValidateStruct(markRequest{StudentID: "s1", Date: date, Session: "morning"})
		require.Error(t, err, date)
		assert.Contains(t, err.Error(), "YYYY-MM-DD")
	}
}

func TestValidateStructOneof(t *testing.T) {
	err := ValidateStruct(markRequest{StudentID: "s1", Date: "2026-03-02", Session: "midnight"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be one of")
}

func TestValidateStructJoinsMultipleFailures(t *testing.T) {
	err := ValidateStruct(markRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), ";")
}

func TestParseAttendanceDateRoundtrip(t *testing.T) {
	parsed, err := ParseAttendanceDate("2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, 2026, parsed.Year())
	assert.Equal(t, time.March, parsed.Month())
	assert.Equal(t, "2026-03-02", FormatAttendanceDate(parsed))
}
