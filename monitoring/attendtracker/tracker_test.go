package attendtracker

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

func TestClassifySeverityTable(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		reqCtx   Context
		severity alerting.Severity
	}{
		{"server error is critical", apperrors.NewInternalError("boom"), Context{Operation: "mark"}, alerting.SeverityCritical},
		{"duplicate marking is high", apperrors.NewDuplicateMarkingError("s1", "2026-03-02", "morning"), Context{Operation: "mark"}, alerting.SeverityHigh},
		{"teacher not assigned is high", apperrors.NewTeacherNotAssignedError("t1", "c1"), Context{Operation: "mark"}, alerting.SeverityHigh},
		{"validation is medium", apperrors.NewValidationError("bad date"), Context{Operation: "mark"}, alerting.SeverityMedium},
		{"not found is medium", apperrors.NewNotFoundError("student"), Context{Operation: "summary"}, alerting.SeverityMedium},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			event := classify(tc.err, tc.reqCtx)
			assert.Equal(t, tc.severity, event.Severity)
		})
	}
}

func TestBulkMajorityFailureIsCriticalRegardlessOfStatus(t *testing.T) {
	// 207 on its own would never be critical; the failure majority makes it so.
	err := apperrors.NewBulkPartialFailureError("mark", 30, 10, 20)
	event := classify(err, Context{
		Operation:    "bulk",
		TotalRecords: 30,
		SuccessCount: 10,
		FailureCount: 20,
	})

	assert.Equal(t, alerting.SeverityCritical, event.Severity)
	assert.Equal(t, "high", event.Impact.Level)
	assert.Equal(t, 30, event.Impact.AffectedUsers)
	assert.Equal(t, "significant", event.Impact.BusinessImpact)
}

func TestBulkMinorityFailureIsNotCritical(t *testing.T) {
	err := apperrors.NewBulkPartialFailureError("mark", 30, 25, 5)
	event := classify(err, Context{
		Operation:    "bulk",
		TotalRecords: 30,
		SuccessCount: 25,
		FailureCount: 5,
	})

	assert.NotEqual(t, alerting.SeverityCritical, event.Severity)
	// Bulk operations always carry high impact.
	assert.Equal(t, "high", event.Impact.Level)
}

func TestMarkingOperationGetsMediumImpact(t *testing.T) {
	event := classify(apperrors.NewValidationError("bad"), Context{Operation: "mark"})

	assert.Equal(t, "medium", event.Impact.Level)
	assert.Equal(t, 1, event.Impact.AffectedUsers)
}

func TestServerErrorImpactDefaultsToTen(t *testing.T) {
	event := classify(errors.New("raw"), Context{Operation: "summary"})

	assert.Equal(t, "high", event.Impact.Level)
	assert.Equal(t, 10, event.Impact.AffectedUsers)
}

func TestTrackBumpsOperationStats(t *testing.T) {
	tracker, _ := newTestTracker()

	tracker.Track(apperrors.NewValidationError("bad"), Context{Operation: "mark"})
	tracker.RecordSuccess("mark", Context{Operation: "mark"}, 120*time.Millisecond)

	stats := tracker.OperationStats("mark")
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 0.5, stats.ErrorRate())
	assert.InDelta(t, 120, stats.AvgResponseTime, 1)
	assert.InDelta(t, 120, stats.MaxResponseTime, 1)
}

func TestOperationStatsUnknownIsNil(t *testing.T) {
	tracker, _ := newTestTracker()
	assert.Nil(t, tracker.OperationStats("bulk"))
}

func TestConsecutiveFailuresAlertAtThree(t *testing.T) {
	tracker, notifier := newTestTracker()

	tracker.Track(apperrors.NewValidationError("bad"), Context{Operation: "mark"})
	tracker.Track(apperrors.NewValidationError("bad"), Context{Operation: "mark"})
	assert.Empty(t, notifier.ofType("consecutive_failures"))

	tracker.Track(apperrors.NewValidationError("bad"), Context{Operation: "mark"})

	fired := notifier.ofType("consecutive_failures")
	require.NotEmpty(t, fired)
	assert.Equal(t, alerting.SeverityHigh, fired[0].Severity)
	assert.Equal(t, "mark", fired[0].Data["operation"])
}

func TestConsecutiveFailuresCountsPerOperation(t *testing.T) {
	tracker, notifier := newTestTracker()

	// Two failures each on two operations never cross the per-operation bar.
	tracker.Track(apperrors.NewValidationError("bad"), Context{Operation: "mark"})
	tracker.Track(apperrors.NewValidationError("bad"), Context{Operation: "bulk"})
	tracker.Track(apperrors.NewValidationError("bad"), Context{Operation: "mark"})
	tracker.Track(apperrors.NewValidationError("bad"), Context{Operation: "bulk"})

	assert.Empty(t, notifier.ofType("consecutive_failures"))
}

func TestHighFailureRateNeedsTenObservations(t *testing.T) {
	tracker, notifier := newTestTracker()

	// One failure out of nine: rate 11% over the 5% marking limit, but the
	// minimum-volume guard holds the rule back.
	tracker.Track(apperrors.NewValidationError("bad"), Context{Operation: "mark"})
	for i := 0; i < 8; i++ {
		tracker.RecordSuccess("mark", Context{Operation: "mark"}, 50*time.Millisecond)
	}
	assert.Empty(t, notifier.ofType("high_failure_rate"))

	// The tenth observation lifts the guard; the next failure evaluates the rule.
	tracker.RecordSuccess("mark", Context{Operation: "mark"}, 50*time.Millisecond)
	tracker.Track(apperrors.NewValidationError("bad"), Context{Operation: "mark"})

	fired := notifier.ofType("high_failure_rate")
	require.NotEmpty(t, fired)
	assert.Equal(t, "mark", fired[0].Data["operation"])
}

func TestBulkUsesItsOwnFailureRateLimit(t *testing.T) {
	tracker, notifier := newTestTracker()

	// 1 failure in 10 is 10%, not above the 10% bulk limit.
	for i := 0; i < 9; i++ {
		tracker.RecordSuccess("bulk", Context{Operation: "bulk"}, 50*time.Millisecond)
	}
	tracker.Track(apperrors.NewValidationError("bad"), Context{Operation: "bulk"})
	assert.Empty(t, notifier.ofType("high_failure_rate"))

	// A second failure pushes the rate past the limit.
	tracker.Track(apperrors.NewValidationError("bad"), Context{Operation: "bulk"})
	assert.NotEmpty(t, notifier.ofType("high_failure_rate"))
}

func TestSlowResponseAlert(t *testing.T) {
	tracker, notifier := newTestTracker()

	tracker.RecordSuccess("mark", Context{Operation: "mark", ClassID: "c1"}, 2*time.Second)
	assert.Empty(t, notifier.ofType("slow_response"))

	tracker.RecordSuccess("mark", Context{Operation: "mark", ClassID: "c1"}, 6*time.Second)

	fired := notifier.ofType("slow_response")
	require.Len(t, fired, 1)
	assert.Equal(t, alerting.SeverityWarning, fired[0].Severity)
	assert.Equal(t, "c1", fired[0].Data["classId"])
}

func TestUpdateThresholdsValidatesAndMerges(t *testing.T) {
	tracker, _ := newTestTracker()

	bad := 1.5
	err := tracker.UpdateThresholds(ThresholdUpdate{MarkingFailureRate: &bad})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, DefaultThresholds().MarkingFailureRate, tracker.Thresholds().MarkingFailureRate)

	rate := 0.2
	consecutive := 5
	require.NoError(t, tracker.UpdateThresholds(ThresholdUpdate{
		MarkingFailureRate:  &rate,
		ConsecutiveFailures: &consecutive,
	}))
	assert.Equal(t, 0.2, tracker.Thresholds().MarkingFailureRate)
	assert.Equal(t, 5, tracker.Thresholds().ConsecutiveFailures)
	assert.Equal(t, DefaultThresholds().BulkOperationFailureRate, tracker.Thresholds().BulkOperationFailureRate)

	shortResponse := int64(50)
	assert.Error(t, tracker.UpdateThresholds(ThresholdUpdate{ResponseTimeThresholdMs: &shortResponse}))
}

func TestAnalyticsFiltersByOperation(t *testing.T) {
	tracker, _ := newTestTracker()

	tracker.Track(apperrors.NewValidationError("bad"), Context{Operation: "mark"})
	tracker.Track(apperrors.NewValidationError("bad"), Context{Operation: "bulk"})
	tracker.Track(apperrors.NewNotFoundError("student"), Context{Operation: "mark"})

	all := tracker.Analytics(time.Hour, "")
	assert.Equal(t, 3, all.Total)
	assert.Equal(t, 2, all.ByOperation["mark"])

	marks := tracker.Analytics(time.Hour, "mark")
	assert.Equal(t, 2, marks.Total)
	assert.Equal(t, "mark", marks.Operation)
}

func TestAnalyticsRecommendations(t *testing.T) {
	tracker, _ := newTestTracker()

	for i := 0; i < 6; i++ {
		tracker.Track(apperrors.NewValidationError("bad"), Context{Operation: "mark"})
	}
	for i := 0; i < 4; i++ {
		tracker.Track(apperrors.NewTeacherNotAssignedError("t1", "c1"), Context{Operation: "bulk"})
	}

	analytics := tracker.Analytics(time.Hour, "")

	types := make(map[string]Recommendation)
	for _, r := range analytics.Recommendations {
		types[r.Type] = r
	}

	opReview, ok := types["operation_review"]
	require.True(t, ok)
	assert.Equal(t, "mark", opReview.Operation)
	assert.Equal(t, "high", opReview.Priority)

	assignment, ok := types["assignment_review"]
	require.True(t, ok)
	assert.Equal(t, "medium", assignment.Priority)

	clientValidation, ok := types["client_validation"]
	require.True(t, ok)
	assert.Equal(t, "low", clientValidation.Priority)
}

func TestAnalyticsEmptyWindow(t *testing.T) {
	tracker, _ := newTestTracker()

	analytics := tracker.Analytics(time.Hour, "")

	assert.Equal(t, 0, analytics.Total)
	assert.Empty(t, analytics.TopErrors)
	assert.Empty(t, analytics.Recommendations)
}

func TestEventsRespectsTimeRange(t *testing.T) {
	tracker, _ := newTestTracker()
	tracker.Track(apperrors.NewValidationError("bad"), Context{Operation: "mark"})

	assert.Len(t, tracker.Events(time.Hour), 1)
	assert.Empty(t, tracker.Events(-time.Second))
}

func TestHealthStatus(t *testing.T) {
	tracker, _ := newTestTracker()
	assert.Equal(t, "healthy", tracker.HealthStatus().Status)

	tracker.Track(apperrors.NewValidationError("bad"), Context{Operation: "mark"})
	health := tracker.HealthStatus()
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, 1, health.RecentErrorCount)
	require.Contains(t, health.Operations, "mark")
	assert.Equal(t, "warning", health.Operations["mark"].Status)

	tracker.Track(apperrors.NewInternalError("boom"), Context{Operation: "mark"})
	assert.Equal(t, "critical", tracker.HealthStatus().Status)
}

func TestCleanupKeepsFreshEvents(t *testing.T) {
	tracker, _ := newTestTracker()
	tracker.Track(apperrors.NewValidationError("bad"), Context{Operation: "mark"})

	tracker.Cleanup()

	assert.Equal(t, 1, tracker.Analytics(time.Hour, "").Total)
	assert.NotNil(t, tracker.OperationStats("mark"))
	assert.False(t, tracker.HealthStatus().LastCleanup.IsZero())
}
