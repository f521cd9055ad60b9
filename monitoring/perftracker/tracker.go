// Package perftracker records API request and database query latencies,
// keeps rolling per-signature aggregates, samples process resource usage,
// and raises latency and memory alerts. Like the error trackers, all state
// is process-local and bounded.
package perftracker

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
	recentSampleCap  = 50
	slowSampleCap    = 20
	alertLogCapacity = 100
	trimWindow       = 24 * time.Hour
)

// APIRequest is one observed HTTP request.
type APIRequest struct {
	Method     string
	Path       string
	Duration   time.Duration
	StatusCode int
	UserID     string
	UserRole   string
}

// Query is one observed database query execution. Err is recorded but not
// interpreted; the error path still contributes a latency sample.
type Query struct {
	Operation  string
	Collection string
	Duration   time.Duration
	Err        error
}

// Sample is a single latency observation kept in the bounded recent/slow
// lists.
type Sample struct {
	Timestamp  time.Time `json:"timestamp"`
	DurationMs float64   `json:"durationMs"`
	StatusCode int       `json:"statusCode,omitempty"`
	UserID     string    `json:"userId,omitempty"`
	Failed     bool      `json:"failed,omitempty"`
}

// EndpointStats is the rolling aggregate for one METHOD+path signature.
// The counters live for the process lifetime; only the bounded sample lists
// are trimmed by cleanup.
type EndpointStats struct {
	Key       string    `json:"key"`
	Count     int64     `json:"count"`
	Errors    int64     `json:"errors"`
	TotalMs   float64   `json:"totalMs"`
	AvgMs     float64   `json:"avgMs"`
	MinMs     float64   `json:"minMs"`
	MaxMs     float64   `json:"maxMs"`
	Recent    []Sample  `json:"recent"`
	Slow      []Sample  `json:"slow"`
	LastSeen  time.Time `json:"lastSeen"`
}

// QueryStats is the rolling aggregate for one operation+collection
// signature.
type QueryStats struct {
	Key        string    `json:"key"`
	Operation  string    `json:"operation"`
	Collection string    `json:"collection"`
	Count      int64     `json:"count"`
	Errors     int64     `json:"errors"`
	TotalMs    float64   `json:"totalMs"`
	AvgMs      float64   `json:"avgMs"`
	MinMs      float64   `json:"minMs"`
	MaxMs      float64   `json:"maxMs"`
	Recent     []Sample  `json:"recent"`
	Slow       []Sample  `json:"slow"`
	LastSeen   time.Time `json:"lastSeen"`
}

// Thresholds holds the runtime-mutable latency and memory limits.
type Thresholds struct {
	APIWarning     time.Duration `json:"apiWarning"`
	APICritical    time.Duration `json:"apiCritical"`
	QueryWarning   time.Duration `json:"queryWarning"`
	QueryCritical  time.Duration `json:"queryCritical"`
	MemoryWarning  uint64        `json:"memoryWarning"`
	MemoryCritical uint64        `json:"memoryCritical"`
}

// DefaultThresholds returns the shipped performance limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		APIWarning:     500 * time.Millisecond,
		APICritical:    2 * time.Second,
		QueryWarning:   time.Second,
		QueryCritical:  3 * time.Second,
		MemoryWarning:  500 * 1024 * 1024,
		MemoryCritical: 1000 * 1024 * 1024,
	}
}

// Tracker is the performance tracker. One instance per process.
type Tracker struct {
	mu         sync.RWMutex
	endpoints  map[string]*EndpointStats
	queries    map[string]*QueryStats
	thresholds Thresholds

	requestCount int64
	errorCount   int64

	alerts   *ringlog.Log[alerting.Alert]
	samples  *ringlog.Log[SystemSample]
	notifier alerting.Notifier
	logger   *zap.Logger
	metrics  *Metrics

	lastMemoryAlert time.Time
	lastCleanup     time.Time
}

// New creates a performance tracker with default thresholds. metrics may be
// nil when prometheus export is disabled.
func New(logger *zap.Logger, notifier alerting.Notifier, metrics *Metrics) *Tracker {
	return &Tracker{
		endpoints:  make(map[string]*EndpointStats),
		queries:    make(map[string]*QueryStats),
		thresholds: DefaultThresholds(),
		alerts:     ringlog.New[alerting.Alert](alertLogCapacity),
		samples:    ringlog.New[SystemSample](systemSampleCap),
		notifier:   notifier,
		logger:     logger,
		metrics:    metrics,
	}
}

// TrackAPIRequest records a request latency under its METHOD+path
// signature and evaluates the latency alert rule.
func (t *Tracker) TrackAPIRequest(req APIRequest) {
	key := req.Method + " " + req.Path
	ms := float64(req.Duration.Milliseconds())
	now := time.Now()

	sample := Sample{
		Timestamp:  now,
		DurationMs: ms,
		StatusCode: req.StatusCode,
		UserID:     req.UserID,
	}

	t.mu.Lock()
	stats, ok := t.endpoints[key]
	if !ok {
		stats = &EndpointStats{Key: key, MinMs: ms}
		t.endpoints[key] = stats
	}
	stats.Count++
	stats.TotalMs += ms
	stats.AvgMs = stats.TotalMs / float64(stats.Count)
	if ms < stats.MinMs || stats.Count == 1 {
		stats.MinMs = ms
	}
	if ms > stats.MaxMs {
		stats.MaxMs = ms
	}
	stats.LastSeen = now
	stats.Recent = pushSample(stats.Recent, sample, recentSampleCap)

	t.requestCount++
	if req.StatusCode >= 400 {
		t.errorCount++
		stats.Errors++
	}

	thresholds := t.thresholds
	slow := req.Duration > thresholds.APIWarning
	if slow {
		stats.Slow = pushSample(stats.Slow, sample, slowSampleCap)
	}
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.ObserveRequest(req)
	}

	if slow {
		severity := alerting.SeverityWarning
		if req.Duration > thresholds.APICritical {
			severity = alerting.SeverityCritical
		}
		t.fire(alerting.New("slow_api_request", severity, map[string]interface{}{
			"endpoint":   key,
			"durationMs": ms,
			"statusCode": req.StatusCode,
		}))
	}
}

// TrackQuery records a query latency under its operation+collection
// signature. Failed queries still contribute a sample, tagged as failed.
func (t *Tracker) TrackQuery(q Query) {
	key := q.Operation + "_" + q.Collection
	ms := float64(q.Duration.Milliseconds())
	now := time.Now()

	sample := Sample{
		Timestamp:  now,
		DurationMs: ms,
		Failed:     q.Err != nil,
	}

	t.mu.Lock()
	stats, ok := t.queries[key]
	if !ok {
		stats = &QueryStats{
			Key:        key,
			Operation:  q.Operation,
			Collection: q.Collection,
			MinMs:      ms,
		}
		t.queries[key] = stats
	}
	stats.Count++
	stats.TotalMs += ms
	stats.AvgMs = stats.TotalMs / float64(stats.Count)
	if ms < stats.MinMs || stats.Count == 1 {
		stats.MinMs = ms
	}
	if ms > stats.MaxMs {
		stats.MaxMs = ms
	}
	stats.LastSeen = now
	stats.Recent = pushSample(stats.Recent, sample, recentSampleCap)
	if q.Err != nil {
		stats.Errors++
	}

	thresholds := t.thresholds
	slow := q.Duration > thresholds.QueryWarning
	if slow {
		stats.Slow = pushSample(stats.Slow, sample, slowSampleCap)
	}
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.ObserveQuery(q)
	}

	if slow {
		severity := alerting.SeverityWarning
		if q.Duration > thresholds.QueryCritical {
			severity = alerting.SeverityCritical
		}
		t.fire(alerting.New("slow_query", severity, map[string]interface{}{
			"query":      key,
			"durationMs": ms,
			"failed":     q.Err != nil,
		}))
	}
}

// pushSample prepends newest-first and truncates to cap.
func pushSample(list []Sample, s Sample, capacity int) []Sample {
	list = append(list, Sample{})
	copy(list[1:], list)
	list[0] = s
	if len(list) > capacity {
		list = list[:capacity]
	}
	return list
}

func (t *Tracker) fire(alert alerting.Alert) {
	t.alerts.Push(alert)
	if t.notifier != nil {
		t.notifier.Notify(alert)
	}
}

// EndpointStats returns a copy of the aggregate for one signature, or nil.
func (t *Tracker) EndpointStats(method, path string) *EndpointStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats, ok := t.endpoints[method+" "+path]
	if !ok {
		return nil
	}
	return copyEndpointStats(stats)
}

// AllEndpointStats returns copies of every endpoint aggregate.
func (t *Tracker) AllEndpointStats() []EndpointStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]EndpointStats, 0, len(t.endpoints))
	for _, stats := range t.endpoints {
		out = append(out, *copyEndpointStats(stats))
	}
	return out
}

// AllQueryStats returns copies of every query aggregate.
func (t *Tracker) AllQueryStats() []QueryStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]QueryStats, 0, len(t.queries))
	for _, stats := range t.queries {
		out = append(out, *copyQueryStats(stats))
	}
	return out
}

func copyEndpointStats(stats *EndpointStats) *EndpointStats {
	cp := *stats
	cp.Recent = append([]Sample(nil), stats.Recent...)
	cp.Slow = append([]Sample(nil), stats.Slow...)
	return &cp
}

func copyQueryStats(stats *QueryStats) *QueryStats {
	cp := *stats
	cp.Recent = append([]Sample(nil), stats.Recent...)
	cp.Slow = append([]Sample(nil), stats.Slow...)
	return &cp
}

// Counters returns the global request and error totals.
func (t *Tracker) Counters() (requests, errors int64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.requestCount, t.errorCount
}

// Alerts returns the alert history, newest first.
func (t *Tracker) Alerts() []alerting.Alert {
	return t.alerts.All()
}

// Thresholds returns the live threshold table.
func (t *Tracker) Thresholds() Thresholds {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.thresholds
}

// ThresholdUpdate is a partial threshold mutation; durations in
// milliseconds, memory limits in megabytes.
type ThresholdUpdate struct {
	APIWarningMs     *int64 `json:"apiWarning,omitempty" validate:"omitempty,gte=1"`
	APICriticalMs    *int64 `json:"apiCritical,omitempty" validate:"omitempty,gte=1"`
	QueryWarningMs   *int64 `json:"queryWarning,omitempty" validate:"omitempty,gte=1"`
	QueryCriticalMs  *int64 `json:"queryCritical,omitempty" validate:"omitempty,gte=1"`
	MemoryWarningMB  *int64 `json:"memoryWarningMB,omitempty" validate:"omitempty,gte=1"`
	MemoryCriticalMB *int64 `json:"memoryCriticalMB,omitempty" validate:"omitempty,gte=1"`
}

// UpdateThresholds shallow-merges the update into the live table. Takes
// effect on the next evaluation; past events are not re-classified.
func (t *Tracker) UpdateThresholds(update ThresholdUpdate) error {
	for _, v := range []*int64{
		update.APIWarningMs, update.APICriticalMs,
		update.QueryWarningMs, update.QueryCriticalMs,
		update.MemoryWarningMB, update.MemoryCriticalMB,
	} {
		if v != nil && *v < 1 {
			return apperrors.NewValidationError("thresholds must be positive")
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if update.APIWarningMs != nil {
		t.thresholds.APIWarning = time.Duration(*update.APIWarningMs) * time.Millisecond
	}
	if update.APICriticalMs != nil {
		t.thresholds.APICritical = time.Duration(*update.APICriticalMs) * time.Millisecond
	}
	if update.QueryWarningMs != nil {
		t.thresholds.QueryWarning = time.Duration(*update.QueryWarningMs) * time.Millisecond
	}
	if update.QueryCriticalMs != nil {
		t.thresholds.QueryCritical = time.Duration(*update.QueryCriticalMs) * time.Millisecond
	}
	if update.MemoryWarningMB != nil {
		t.thresholds.MemoryWarning = uint64(*update.MemoryWarningMB) * 1024 * 1024
	}
	if update.MemoryCriticalMB != nil {
		t.thresholds.MemoryCritical = uint64(*update.MemoryCriticalMB) * 1024 * 1024
	}
	return nil
}

// Cleanup trims the bounded sample lists and alert history past the trim
// window. The aggregate counters persist for the process lifetime.
func (t *Tracker) Cleanup() {
	cutoff := time.Now().Add(-trimWindow)

	t.mu.Lock()
	for _, stats := range t.endpoints {
		stats.Recent = trimSamples(stats.Recent, cutoff)
		stats.Slow = trimSamples(stats.Slow, cutoff)
	}
	for _, stats := range t.queries {
		stats.Recent = trimSamples(stats.Recent, cutoff)
		stats.Slow = trimSamples(stats.Slow, cutoff)
	}
	t.lastCleanup = time.Now()
	t.mu.Unlock()

	t.alerts.Retain(func(a alerting.Alert) bool {
		return a.Timestamp.After(cutoff)
	})
}

func trimSamples(list []Sample, cutoff time.Time) []Sample {
	kept := list[:0]
	for _, s := range list {
		if s.Timestamp.After(cutoff) {
			kept = append(kept, s)
		}
	}
	return kept
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
