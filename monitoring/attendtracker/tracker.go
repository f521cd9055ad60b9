// Package attendtracker specializes error tracking for the attendance
// domain: it classifies attendance errors into severity and business impact,
// keeps per-operation failure counters, and raises domain alerts
// (consecutive failures, failure-rate breaches, slow responses).
package attendtracker

import (
	"context"
	"strings"
	"sync"
	"time"

	"attendance-backend/monitoring/alerting"
	"attendance-backend/monitoring/ringlog"
	apperrors "attendance-backend/pkg/errors"

	"go.uber.org/zap"
)

const (
	eventLogCapacity = 500
	alertLogCapacity = 100
	retentionPeriod  = 7 * 24 * time.Hour
)

// Context carries the attendance-specific request context for a tracked
// error or successful operation.
type Context struct {
	Operation    string `json:"operation,omitempty"`
	UserRole     string `json:"userRole,omitempty"`
	UserID       string `json:"userId,omitempty"`
	ClassID      string `json:"classId,omitempty"`
	SubjectID    string `json:"subjectId,omitempty"`
	TeacherID    string `json:"teacherId,omitempty"`
	StudentID    string `json:"studentId,omitempty"`
	Date         string `json:"date,omitempty"`
	Session      string `json:"session,omitempty"`
	TotalRecords int    `json:"totalRecords,omitempty"`
	SuccessCount int    `json:"successCount,omitempty"`
	FailureCount int    `json:"failureCount,omitempty"`
}

// Impact describes the estimated blast radius of an error.
type Impact struct {
	Level              string   `json:"level"`
	AffectedUsers      int      `json:"affectedUsers"`
	AffectedOperations []string `json:"affectedOperations"`
	BusinessImpact     string   `json:"businessImpact"`
}

// Event is one recorded attendance error.
type Event struct {
	Timestamp  time.Time         `json:"timestamp"`
	Name       string            `json:"name"`
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Severity   alerting.Severity `json:"severity"`
	StatusCode int               `json:"statusCode"`
	Impact     Impact            `json:"impact"`
	Context    Context           `json:"context"`
}

// OperationStats tracks volume and latency per attendance operation.
type OperationStats struct {
	Total           int       `json:"total"`
	Errors          int       `json:"errors"`
	AvgResponseTime float64   `json:"avgResponseTime"`
	MaxResponseTime float64   `json:"maxResponseTime"`
	LastActivity    time.Time `json:"lastActivity"`

	totalResponseTime float64
	timedSamples      int
}

// ErrorRate returns errors divided by total observations, or 0.
func (s *OperationStats) ErrorRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Errors) / float64(s.Total)
}

// Thresholds controls the attendance alert rules.
type Thresholds struct {
	MarkingFailureRate       float64       `json:"markingFailureRate"`
	BulkOperationFailureRate float64       `json:"bulkOperationFailureRate"`
	ConsecutiveFailures      int           `json:"consecutiveFailures"`
	ResponseTimeThreshold    time.Duration `json:"responseTimeThreshold"`
	TimeWindow               time.Duration `json:"timeWindow"`
}

// DefaultThresholds returns the shipped attendance alerting defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MarkingFailureRate:       0.05,
		BulkOperationFailureRate: 0.10,
		ConsecutiveFailures:      3,
		ResponseTimeThreshold:    5 * time.Second,
		TimeWindow:               15 * time.Minute,
	}
}

// Tracker is the attendance-domain error tracker.
type Tracker struct {
	mu          sync.RWMutex
	log         *ringlog.Log[Event]
	operations  map[string]*OperationStats
	alerts      *ringlog.Log[alerting.Alert]
	thresholds  Thresholds
	notifier    alerting.Notifier
	logger      *zap.Logger
	lastCleanup time.Time
}

// New creates an attendance tracker with default thresholds.
func New(logger *zap.Logger, notifier alerting.Notifier) *Tracker {
	return &Tracker{
		log:        ringlog.New[Event](eventLogCapacity),
		operations: make(map[string]*OperationStats),
		alerts:     ringlog.New[alerting.Alert](alertLogCapacity),
		thresholds: DefaultThresholds(),
		notifier:   notifier,
		logger:     logger,
	}
}

// Track records an attendance error: classifies severity and impact,
// appends to the log, bumps the operation counters, and evaluates the
// domain alert rules. Never fails.
func (t *Tracker) Track(err error, reqCtx Context) {
	if err == nil {
		return
	}

	event := classify(err, reqCtx)
	t.log.Push(event)

	op := reqCtx.Operation
	if op == "" {
		op = "unknown"
	}

	t.mu.Lock()
	stats := t.operationStatsLocked(op)
	stats.Total++
	stats.Errors++
	stats.LastActivity = event.Timestamp
	t.mu.Unlock()

	t.evaluateAlerts(op)

	t.logger.Debug("Attendance error tracked",
		zap.String("operation", op),
		zap.String("severity", string(event.Severity)),
		zap.String("impact", event.Impact.Level),
		zap.Int("status", event.StatusCode),
	)
}

// RecordSuccess records a successful attendance operation and its response
// time. Fires a slow_response alert when the response time exceeds the
// configured threshold.
func (t *Tracker) RecordSuccess(operation string, reqCtx Context, responseTime time.Duration) {
	if operation == "" {
		operation = "unknown"
	}

	t.mu.Lock()
	stats := t.operationStatsLocked(operation)
	stats.Total++
	stats.LastActivity = time.Now()

	ms := float64(responseTime.Milliseconds())
	stats.timedSamples++
	stats.totalResponseTime += ms
	stats.AvgResponseTime = stats.totalResponseTime / float64(stats.timedSamples)
	if ms > stats.MaxResponseTime {
		stats.MaxResponseTime = ms
	}
	threshold := t.thresholds.ResponseTimeThreshold
	t.mu.Unlock()

	if responseTime > threshold {
		t.fire(alerting.New("slow_response", alerting.SeverityWarning, map[string]interface{}{
			"operation":    operation,
			"responseTime": ms,
			"thresholdMs":  threshold.Milliseconds(),
			"classId":      reqCtx.ClassID,
		}))
	}
}

func (t *Tracker) operationStatsLocked(operation string) *OperationStats {
	stats, ok := t.operations[operation]
	if !ok {
		stats = &OperationStats{}
		t.operations[operation] = stats
	}
	return stats
}

// classify applies the severity and impact policies. Severity is
// first-match-wins over the closed error taxonomy; a bulk operation whose
// failures outnumber successes is always critical regardless of status.
func classify(err error, reqCtx Context) Event {
	event := Event{
		Timestamp: time.Now(),
		Name:      string(apperrors.KindInternal),
		Code:      "UNKNOWN",
		Message:   err.Error(),
		Context:   reqCtx,
	}

	appErr := apperrors.GetAppError(err)
	if appErr != nil {
		event.Name = string(appErr.Kind)
		if appErr.Code != "" {
			event.Code = appErr.Code
		}
		event.StatusCode = appErr.HTTPStatus
	} else {
		event.StatusCode = 500
	}

	bulkMajorityFailed := reqCtx.Operation == "bulk" && reqCtx.FailureCount > reqCtx.SuccessCount

	switch {
	case event.StatusCode >= 500 || bulkMajorityFailed:
		event.Severity = alerting.SeverityCritical
	case isHighSeverityKind(appErr) || event.StatusCode == 403:
		event.Severity = alerting.SeverityHigh
	case isMediumSeverityKind(appErr) || event.StatusCode == 400 || event.StatusCode == 404:
		event.Severity = alerting.SeverityMedium
	default:
		event.Severity = alerting.SeverityLow
	}

	event.Impact = assessImpact(event, reqCtx)
	return event
}

func isHighSeverityKind(appErr *apperrors.AppError) bool {
	if appErr == nil {
		return false
	}
	return appErr.Kind == apperrors.KindAuthorization || appErr.Kind == apperrors.KindDuplicateMarking
}

func isMediumSeverityKind(appErr *apperrors.AppError) bool {
	if appErr == nil {
		return false
	}
	return appErr.Kind == apperrors.KindValidation || appErr.Kind == apperrors.KindNotFound
}

// assessImpact estimates how many users an error touched and how much it
// matters to the business.
func assessImpact(event Event, reqCtx Context) Impact {
	operations := []string{}
	if reqCtx.Operation != "" {
		operations = append(operations, reqCtx.Operation)
	}

	switch {
	case reqCtx.Operation == "bulk" || event.StatusCode >= 500:
		affected := reqCtx.TotalRecords
		if affected == 0 {
			affected = 10
		}
		return Impact{
			Level:              "high",
			AffectedUsers:      affected,
			AffectedOperations: operations,
			BusinessImpact:     "significant",
		}
	case event.Severity == alerting.SeverityHigh || isMarkingOperation(reqCtx.Operation):
		return Impact{
			Level:              "medium",
			AffectedUsers:      1,
			AffectedOperations: operations,
			BusinessImpact:     "moderate",
		}
	default:
		return Impact{
			Level:              "low",
			AffectedUsers:      1,
			AffectedOperations: operations,
			BusinessImpact:     "minimal",
		}
	}
}

func isMarkingOperation(operation string) bool {
	return strings.Contains(operation, "mark")
}

// evaluateAlerts checks the consecutive-failure and failure-rate rules for
// one operation. Level-triggered, like the generic tracker.
func (t *Tracker) evaluateAlerts(operation string) {
	t.mu.RLock()
	thresholds := t.thresholds
	stats, ok := t.operations[operation]
	var total, errors int
	if ok {
		total = stats.Total
		errors = stats.Errors
	}
	t.mu.RUnlock()

	cutoff := time.Now().Add(-thresholds.TimeWindow)
	recentFailures := t.log.Count(func(e Event) bool {
		return e.Context.Operation == operation && e.Timestamp.After(cutoff)
	})

	if recentFailures >= thresholds.ConsecutiveFailures {
		t.fire(alerting.New("consecutive_failures", alerting.SeverityHigh, map[string]interface{}{
			"operation": operation,
			"failures":  recentFailures,
			"threshold": thresholds.ConsecutiveFailures,
			"windowMs":  thresholds.TimeWindow.Milliseconds(),
		}))
	}

	if total >= 10 {
		rate := float64(errors) / float64(total)
		limit := thresholds.MarkingFailureRate
		if operation == "bulk" {
			limit = thresholds.BulkOperationFailureRate
		}
		if rate > limit {
			t.fire(alerting.New("high_failure_rate", alerting.SeverityHigh, map[string]interface{}{
				"operation":   operation,
				"failureRate": rate,
				"threshold":   limit,
				"total":       total,
				"errors":      errors,
			}))
		}
	}
}

func (t *Tracker) fire(alert alerting.Alert) {
	t.alerts.Push(alert)
	if t.notifier != nil {
		t.notifier.Notify(alert)
	}
}

// OperationStats returns a copy of the counters for one operation, or nil
// when the operation has never been observed.
func (t *Tracker) OperationStats(operation string) *OperationStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats, ok := t.operations[operation]
	if !ok {
		return nil
	}
	cp := *stats
	return &cp
}

// Events returns the logged events within the time range, newest first.
// Used by the export endpoint.
func (t *Tracker) Events(timeRange time.Duration) []Event {
	cutoff := time.Now().Add(-timeRange)
	return t.log.Filter(func(e Event) bool {
		return e.Timestamp.After(cutoff)
	})
}

// Alerts returns the alert history, newest first.
func (t *Tracker) Alerts() []alerting.Alert {
	return t.alerts.All()
}

// Thresholds returns the live threshold configuration.
func (t *Tracker) Thresholds() Thresholds {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.thresholds
}

// ThresholdUpdate is a partial threshold mutation for the PUT endpoint.
type ThresholdUpdate struct {
	MarkingFailureRate       *float64 `json:"markingFailureRate,omitempty" validate:"omitempty,gte=0,lte=1"`
	BulkOperationFailureRate *float64 `json:"bulkOperationFailureRate,omitempty" validate:"omitempty,gte=0,lte=1"`
	ConsecutiveFailures      *int     `json:"consecutiveFailures,omitempty" validate:"omitempty,gte=1"`
	ResponseTimeThresholdMs  *int64   `json:"responseTimeThreshold,omitempty" validate:"omitempty,gte=100"`
}

// UpdateThresholds merges a validated update into the live configuration.
func (t *Tracker) UpdateThresholds(update ThresholdUpdate) error {
	if update.MarkingFailureRate != nil && (*update.MarkingFailureRate < 0 || *update.MarkingFailureRate > 1) {
		return apperrors.NewValidationError("markingFailureRate must be between 0 and 1")
	}
	if update.BulkOperationFailureRate != nil && (*update.BulkOperationFailureRate < 0 || *update.BulkOperationFailureRate > 1) {
		return apperrors.NewValidationError("bulkOperationFailureRate must be between 0 and 1")
	}
	if update.ConsecutiveFailures != nil && *update.ConsecutiveFailures < 1 {
		return apperrors.NewValidationError("consecutiveFailures must be at least 1")
	}
	if update.ResponseTimeThresholdMs != nil && *update.ResponseTimeThresholdMs < 100 {
		return apperrors.NewValidationError("responseTimeThreshold must be at least 100ms")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if update.MarkingFailureRate != nil {
		t.thresholds.MarkingFailureRate = *update.MarkingFailureRate
	}
	if update.BulkOperationFailureRate != nil {
		t.thresholds.BulkOperationFailureRate = *update.BulkOperationFailureRate
	}
	if update.ConsecutiveFailures != nil {
		t.thresholds.ConsecutiveFailures = *update.ConsecutiveFailures
	}
	if update.ResponseTimeThresholdMs != nil {
		t.thresholds.ResponseTimeThreshold = time.Duration(*update.ResponseTimeThresholdMs) * time.Millisecond
	}
	return nil
}

// Cleanup drops events, alerts and stale operation counters older than the
// retention window. Idempotent.
func (t *Tracker) Cleanup() {
	cutoff := time.Now().Add(-retentionPeriod)

	dropped := t.log.Retain(func(e Event) bool {
		return e.Timestamp.After(cutoff)
	})
	t.alerts.Retain(func(a alerting.Alert) bool {
		return a.Timestamp.After(cutoff)
	})

	t.mu.Lock()
	removed := 0
	for op, stats := range t.operations {
		if stats.LastActivity.Before(cutoff) {
			delete(t.operations, op)
			removed++
		}
	}
	t.lastCleanup = time.Now()
	t.mu.Unlock()

	if dropped > 0 || removed > 0 {
		t.logger.Info("Attendance tracker cleanup completed",
			zap.Int("events_dropped", dropped),
			zap.Int("operations_removed", removed),
		)
	}
}

// StartCleanupLoop runs Cleanup on the given interval until ctx is
// cancelled.
func (t *Tracker) StartCleanupLoop(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}
