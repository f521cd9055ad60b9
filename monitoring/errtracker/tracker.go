// Package errtracker records application errors, keeps aggregate statistics
// per error signature, and raises alerts when error volume crosses the
// configured thresholds. State is process-local and bounded; nothing here is
// durable across restarts.
package errtracker

import (
	"context"
	"sync"
	"time"

	"attendance-backend/monitoring/alerting"
	"attendance-backend/monitoring/ringlog"
	apperrors "attendance-backend/pkg/errors"

	"go.uber.org/zap"
)

const (
	eventLogCapacity = 1000
	alertLogCapacity = 100
	maxStatContexts  = 5
	retentionPeriod  = 7 * 24 * time.Hour
)

// Context carries the request context attached to a tracked error. It is
// retained verbatim; only the enclosing log caps its lifetime.
type Context struct {
	UserID    string                 `json:"userId,omitempty"`
	UserRole  string                 `json:"userRole,omitempty"`
	Endpoint  string                 `json:"endpoint,omitempty"`
	Method    string                 `json:"method,omitempty"`
	IP        string                 `json:"ip,omitempty"`
	UserAgent string                 `json:"userAgent,omitempty"`
	RequestID string                 `json:"requestId,omitempty"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
}

// Event is one recorded error occurrence.
type Event struct {
	Timestamp  time.Time         `json:"timestamp"`
	Name       string            `json:"name"`
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Severity   alerting.Severity `json:"severity"`
	StatusCode int               `json:"statusCode"`
	Context    Context           `json:"context"`
}

// Signature returns the aggregation key for the event.
func (e Event) Signature() string {
	return e.Name + "_" + e.Code
}

// StatEntry is the running aggregate for one error signature. Created on
// first occurrence, updated in place, removed only by time-based cleanup.
type StatEntry struct {
	Name            string            `json:"name"`
	Code            string            `json:"code"`
	Count           int               `json:"count"`
	FirstOccurrence time.Time         `json:"firstOccurrence"`
	LastOccurrence  time.Time         `json:"lastOccurrence"`
	Severity        alerting.Severity `json:"severity"`
	Contexts        []Context         `json:"contexts,omitempty"`
}

// Thresholds controls alert evaluation. ErrorRate is a fraction converted to
// an events-per-minute budget at evaluation time.
type Thresholds struct {
	ErrorRate      float64       `json:"errorRate"`
	CriticalErrors int           `json:"criticalErrors"`
	TimeWindow     time.Duration `json:"timeWindow"`
}

// DefaultThresholds returns the shipped alerting defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ErrorRate:      0.1,
		CriticalErrors: 5,
		TimeWindow:     5 * time.Minute,
	}
}

// Tracker is the generic application error tracker. One instance per
// process, constructed at the composition root.
type Tracker struct {
	mu          sync.RWMutex
	log         *ringlog.Log[Event]
	stats       map[string]*StatEntry
	alerts      *ringlog.Log[alerting.Alert]
	thresholds  Thresholds
	notifier    alerting.Notifier
	logger      *zap.Logger
	lastCleanup time.Time
}

// New creates an error tracker with default thresholds.
func New(logger *zap.Logger, notifier alerting.Notifier) *Tracker {
	return &Tracker{
		log:        ringlog.New[Event](eventLogCapacity),
		stats:      make(map[string]*StatEntry),
		alerts:     ringlog.New[alerting.Alert](alertLogCapacity),
		thresholds: DefaultThresholds(),
		notifier:   notifier,
		logger:     logger,
	}
}

// Track records an error occurrence: classifies severity, appends to the
// event log, updates the aggregate entry for the signature, and evaluates
// the alert rules. It never fails; tracking is a side effect of the error
// path and must not disturb it.
func (t *Tracker) Track(err error, reqCtx Context) {
	if err == nil {
		return
	}

	event := t.classify(err)
	event.Context = reqCtx

	t.log.Push(event)

	t.mu.Lock()
	key := event.Signature()
	entry, ok := t.stats[key]
	if !ok {
		entry = &StatEntry{
			Name:            event.Name,
			Code:            event.Code,
			FirstOccurrence: event.Timestamp,
		}
		t.stats[key] = entry
	}
	entry.Count++
	entry.LastOccurrence = event.Timestamp
	entry.Severity = event.Severity
	if len(entry.Contexts) < maxStatContexts {
		entry.Contexts = append(entry.Contexts, reqCtx)
	}
	t.mu.Unlock()

	t.evaluateAlerts()

	t.logger.Debug("Error tracked",
		zap.String("name", event.Name),
		zap.String("code", event.Code),
		zap.String("severity", string(event.Severity)),
		zap.Int("status", event.StatusCode),
		zap.String("endpoint", reqCtx.Endpoint),
	)
}

// classify derives the event identity and severity from the error. Severity
// is a total mapping over the closed error taxonomy: 5xx is critical,
// validation noise is informational, other client errors are warnings, and
// everything else counts as an error.
func (t *Tracker) classify(err error) Event {
	event := Event{
		Timestamp: time.Now(),
		Name:      string(apperrors.KindInternal),
		Code:      "UNKNOWN",
		Message:   err.Error(),
	}

	if appErr := apperrors.GetAppError(err); appErr != nil {
		event.Name = string(appErr.Kind)
		if appErr.Code != "" {
			event.Code = appErr.Code
		}
		event.StatusCode = appErr.HTTPStatus
	} else {
		event.StatusCode = 500
	}

	switch {
	case event.StatusCode >= 500:
		event.Severity = alerting.SeverityCritical
	case apperrors.IsValidation(err):
		event.Severity = alerting.SeverityInfo
	case event.StatusCode >= 400:
		event.Severity = alerting.SeverityWarning
	default:
		event.Severity = alerting.SeverityError
	}

	return event
}

// evaluateAlerts re-checks the threshold rules against the current window.
// Rules are level-triggered: a rule that still holds on the next qualifying
// track call fires again.
func (t *Tracker) evaluateAlerts() {
	t.mu.RLock()
	thresholds := t.thresholds
	t.mu.RUnlock()

	now := time.Now()
	cutoff := now.Add(-thresholds.TimeWindow)

	recent := t.log.Filter(func(e Event) bool {
		return e.Timestamp.After(cutoff)
	})

	criticalCount := 0
	for _, e := range recent {
		if e.Severity == alerting.SeverityCritical {
			criticalCount++
		}
	}

	if criticalCount >= thresholds.CriticalErrors {
		t.fire(alerting.New("critical_error_threshold", alerting.SeverityCritical, map[string]interface{}{
			"criticalCount": criticalCount,
			"threshold":     thresholds.CriticalErrors,
			"windowMs":      thresholds.TimeWindow.Milliseconds(),
		}))
	}

	windowMinutes := thresholds.TimeWindow.Minutes()
	if windowMinutes > 0 {
		perMinute := float64(len(recent)) / windowMinutes
		if perMinute > thresholds.ErrorRate*60 {
			t.fire(alerting.New("high_error_rate", alerting.SeverityWarning, map[string]interface{}{
				"errorsPerMinute": perMinute,
				"threshold":       thresholds.ErrorRate * 60,
				"windowMs":        thresholds.TimeWindow.Milliseconds(),
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

// Stats returns the aggregate entry for a signature, or nil when the
// signature has never been seen.
func (t *Tracker) Stats(name, code string) *StatEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, ok := t.stats[name+"_"+code]
	if !ok {
		return nil
	}
	cp := *entry
	cp.Contexts = append([]Context(nil), entry.Contexts...)
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

// ThresholdUpdate is a partial threshold mutation. Nil fields are left
// untouched.
type ThresholdUpdate struct {
	ErrorRate      *float64 `json:"errorRate,omitempty" validate:"omitempty,gte=0,lte=1"`
	CriticalErrors *int     `json:"criticalErrors,omitempty" validate:"omitempty,gte=1"`
	TimeWindowMs   *int64   `json:"timeWindow,omitempty" validate:"omitempty,gte=60000"`
}

// UpdateThresholds merges a validated update into the live configuration.
// Takes effect on the next evaluation; past events are not reclassified.
func (t *Tracker) UpdateThresholds(update ThresholdUpdate) error {
	if update.ErrorRate != nil && (*update.ErrorRate < 0 || *update.ErrorRate > 1) {
		return apperrors.NewValidationError("errorRate must be between 0 and 1")
	}
	if update.CriticalErrors != nil && *update.CriticalErrors < 1 {
		return apperrors.NewValidationError("criticalErrors must be at least 1")
	}
	if update.TimeWindowMs != nil && *update.TimeWindowMs < 60000 {
		return apperrors.NewValidationError("timeWindow must be at least 60000ms")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if update.ErrorRate != nil {
		t.thresholds.ErrorRate = *update.ErrorRate
	}
	if update.CriticalErrors != nil {
		t.thresholds.CriticalErrors = *update.CriticalErrors
	}
	if update.TimeWindowMs != nil {
		t.thresholds.TimeWindow = time.Duration(*update.TimeWindowMs) * time.Millisecond
	}
	return nil
}

// Cleanup drops events, aggregate entries and alerts older than the
// retention window. Safe to call repeatedly; a second call with no new
// events removes nothing.
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
	for key, entry := range t.stats {
		if entry.LastOccurrence.Before(cutoff) {
			delete(t.stats, key)
			removed++
		}
	}
	t.lastCleanup = time.Now()
	t.mu.Unlock()

	if dropped > 0 || removed > 0 {
		t.logger.Info("Error tracker cleanup completed",
			zap.Int("events_dropped", dropped),
			zap.Int("stats_removed", removed),
		)
	}
}

// StartCleanupLoop runs Cleanup on the given interval until ctx is
// cancelled. Started once at process start.
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
