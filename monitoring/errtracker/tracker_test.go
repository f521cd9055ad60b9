package errtracker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"attendance-backend/monitoring/alerting"
	apperrors "attendance-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// captureNotifier records fired alerts for assertions.
type captureNotifier struct {
	mu     sync.Mutex
	alerts []alerting.Alert
}

func (n *captureNotifier) Notify(alert alerting.Alert) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
}

func (n *captureNotifier) ofType(alertType string) []alerting.Alert {
	n.mu.Lock()
	defer n.mu.Unlock()

	var out []alerting.Alert
	for _, a := range n.alerts {
		if a.Type == alertType {
			out = append(out, a)
		}
	}
	return out
}

func newTestTracker() (*Tracker, *captureNotifier) {
	notifier := &captureNotifier{}
	return New(zap.NewNop(), notifier), notifier
}

func TestTrackClassifiesBySeverity(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		code     string
		kind     string
		severity alerting.Severity
	}{
		{"internal is critical", apperrors.NewInternalError("boom"), "INTERNAL", "INTERNAL", alerting.SeverityCritical},
		{"database is critical", apperrors.NewDatabaseError("find", errors.New("down")), "DATABASE_ERROR", "DATABASE", alerting.SeverityCritical},
		{"validation is info", apperrors.NewValidationError("bad date"), "VALIDATION_FAILED", "VALIDATION", alerting.SeverityInfo},
		{"not found is warning", apperrors.NewNotFoundError("student"), "NOT_FOUND", "NOT_FOUND", alerting.SeverityWarning},
		{"forbidden is warning", apperrors.NewAuthorizationError(""), "FORBIDDEN", "AUTHORIZATION", alerting.SeverityWarning},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tracker, _ := newTestTracker()
			tracker.Track(tc.err, Context{Endpoint: "/api/v2/attendance/mark"})

			entry := tracker.Stats(tc.kind, tc.code)
			require.NotNil(t, entry)
			assert.Equal(t, 1, entry.Count)
			assert.Equal(t, tc.severity, entry.Severity)
		})
	}
}

func TestTrackNilIsNoop(t *testing.T) {
	tracker, notifier := newTestTracker()

	tracker.Track(nil, Context{})

	assert.Equal(t, 0, tracker.Analytics(time.Hour, false).Total)
	assert.Empty(t, notifier.alerts)
}

func TestNonAppErrorCountsAsInternal(t *testing.T) {
	tracker, _ := newTestTracker()

	tracker.Track(errors.New("raw failure"), Context{})

	entry := tracker.Stats("INTERNAL", "UNKNOWN")
	require.NotNil(t, entry)
	assert.Equal(t, alerting.SeverityCritical, entry.Severity)
}

func TestStatsUnknownSignatureIsNil(t *testing.T) {
	tracker, _ := newTestTracker()
	assert.Nil(t, tracker.Stats("NOT_FOUND", "NOT_FOUND"))
}

func TestRepeatedSignatureAggregates(t *testing.T) {
	tracker, _ := newTestTracker()

	for i := 0; i < 7; i++ {
		tracker.Track(apperrors.NewNotFoundError("student"), Context{UserID: "u1"})
	}

	entry := tracker.Stats("NOT_FOUND", "NOT_FOUND")
	require.NotNil(t, entry)
	assert.Equal(t, 7, entry.Count)
	assert.False(t, entry.LastOccurrence.Before(entry.FirstOccurrence))
	// Context samples are capped, not unbounded.
	assert.LessOrEqual(t, len(entry.Contexts), 5)
}

func TestCriticalBurstFiresThresholdAlert(t *testing.T) {
	tracker, notifier := newTestTracker()

	for i := 0; i < 5; i++ {
		tracker.Track(apperrors.NewInternalError("boom"), Context{})
	}

	fired := notifier.ofType("critical_error_threshold")
	require.NotEmpty(t, fired)
	assert.Equal(t, alerting.SeverityCritical, fired[0].Severity)

	// Level-triggered: the rule fires again while the window still holds.
	tracker.Track(apperrors.NewInternalError("boom"), Context{})
	assert.Greater(t, len(notifier.ofType("critical_error_threshold")), len(fired)-1)
}

func TestFourCriticalsDoNotAlert(t *testing.T) {
	tracker, notifier := newTestTracker()

	for i := 0; i < 4; i++ {
		tracker.Track(apperrors.NewInternalError("boom"), Context{})
	}

	assert.Empty(t, notifier.ofType("critical_error_threshold"))
}

func TestUpdateThresholdsValidates(t *testing.T) {
	tracker, _ := newTestTracker()

	bad := 1.5
	err := tracker.UpdateThresholds(ThresholdUpdate{ErrorRate: &bad})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	// A failed update leaves the configuration untouched.
	assert.Equal(t, DefaultThresholds().ErrorRate, tracker.Thresholds().ErrorRate)

	good := 0.25
	criticals := 3
	require.NoError(t, tracker.UpdateThresholds(ThresholdUpdate{ErrorRate: &good, CriticalErrors: &criticals}))
	assert.Equal(t, 0.25, tracker.Thresholds().ErrorRate)
	assert.Equal(t, 3, tracker.Thresholds().CriticalErrors)
	// Untouched field keeps its value.
	assert.Equal(t, DefaultThresholds().TimeWindow, tracker.Thresholds().TimeWindow)
}

func TestAnalyticsEmptyWindow(t *testing.T) {
	tracker, _ := newTestTracker()

	analytics := tracker.Analytics(time.Hour, false)

	assert.Equal(t, 0, analytics.Total)
	assert.Empty(t, analytics.TopErrors)
	assert.Empty(t, analytics.Details)
}

func TestAnalyticsTopErrorsAndTrends(t *testing.T) {
	tracker, _ := newTestTracker()

	for i := 0; i < 3; i++ {
		tracker.Track(apperrors.NewNotFoundError("student"), Context{UserRole: "Teacher"})
	}
	tracker.Track(apperrors.NewValidationError("bad"), Context{UserRole: "Admin"})

	analytics := tracker.Analytics(time.Hour, true)

	require.NotEmpty(t, analytics.TopErrors)
	assert.Equal(t, "NOT_FOUND", analytics.TopErrors[0].Name)
	assert.Equal(t, 3, analytics.TopErrors[0].Count)
	assert.Equal(t, 4, analytics.Total)
	assert.Len(t, analytics.Details, 4)
	assert.Equal(t, 3, analytics.Contexts.ByRole["Teacher"])

	var trendTotal int
	for _, n := range analytics.Trends {
		trendTotal += n
	}
	assert.Equal(t, 4, trendTotal)
}

func TestEventsRespectsTimeRange(t *testing.T) {
	tracker, _ := newTestTracker()
	tracker.Track(apperrors.NewNotFoundError("student"), Context{})

	assert.Len(t, tracker.Events(time.Hour), 1)
	assert.Empty(t, tracker.Events(-time.Second))
}

func TestCleanupIsIdempotent(t *testing.T) {
	tracker, _ := newTestTracker()
	tracker.Track(apperrors.NewNotFoundError("student"), Context{})

	tracker.Cleanup()
	first := tracker.Analytics(time.Hour, false).Total
	tracker.Cleanup()
	second := tracker.Analytics(time.Hour, false).Total

	// Fresh events survive the retention cutoff; repeating changes nothing.
	assert.Equal(t, first, second)
	assert.Equal(t, 1, first)
}

func TestHealthStatusHealthyWhenQuiet(t *testing.T) {
	tracker, _ := newTestTracker()

	health := tracker.HealthStatus()

	assert.Equal(t, "healthy", health.Status)
	assert.Zero(t, health.RecentErrorCount)
	assert.Greater(t, health.MemoryUsageBytes, uint64(0))
}

func TestHealthStatusCriticalOnRecentCritical(t *testing.T) {
	tracker, _ := newTestTracker()
	tracker.Track(apperrors.NewInternalError("boom"), Context{})

	assert.Equal(t, "critical", tracker.HealthStatus().Status)
}
