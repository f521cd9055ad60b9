package utils

import "time"

// AttendanceDateLayout is the wire format for attendance dates.
const AttendanceDateLayout = "2006-01-02"

// NowRFC3339 returns the current time in RFC3339 format.
func NowRFC3339() string {
	return time.Now().Format(time.RFC3339)
}

// ParseAttendanceDate parses a date in the attendance wire format.
func ParseAttendanceDate(s string) (time.Time, error) {
	return time.Parse(AttendanceDateLayout, s)
}

// FormatAttendanceDate formats a time as an attendance date.
func FormatAttendanceDate(t time.Time) string {
	return t.Format(AttendanceDateLayout)
}
