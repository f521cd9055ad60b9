package attendtracker

import (
	"fmt"
	"sort"
	"time"

	"attendance-backend/monitoring/alerting"
	apperrors "attendance-backend/pkg/errors"
)

// Analytics is the attendance-domain aggregation over a time window.
type Analytics struct {
	TimeRange       string                    `json:"timeRange"`
	Operation       string                    `json:"operation,omitempty"`
	Total           int                       `json:"total"`
	BySeverity      map[alerting.Severity]int `json:"bySeverity"`
	ByOperation     map[string]int            `json:"byOperation"`
	TopErrors       []ErrorFrequency          `json:"topErrors"`
	Trends          [24]int                   `json:"hourlyTrends"`
	ImpactAnalysis  ImpactAnalysis            `json:"impactAnalysis"`
	Recommendations []Recommendation          `json:"recommendations"`
}

// ErrorFrequency is one row of the top-errors table.
type ErrorFrequency struct {
	Name     string            `json:"name"`
	Code     string            `json:"code"`
	Count    int               `json:"count"`
	Severity alerting.Severity `json:"severity"`
	LastSeen time.Time         `json:"lastSeen"`
}

// ImpactAnalysis aggregates the per-event impact assessments.
type ImpactAnalysis struct {
	TotalAffectedUsers int            `json:"totalAffectedUsers"`
	HighImpactCount    int            `json:"highImpactCount"`
	ByBusinessImpact   map[string]int `json:"byBusinessImpact"`
}

// Recommendation is one actionable suggestion from the rule engine.
type Recommendation struct {
	Type      string `json:"type"`
	Operation string `json:"operation,omitempty"`
	Message   string `json:"message"`
	Priority  string `json:"priority"`
}

// Analytics aggregates events within timeRange, optionally filtered to one
// operation. Pure read; empty windows return zero counts.
func (t *Tracker) Analytics(timeRange time.Duration, operation string) Analytics {
	cutoff := time.Now().Add(-timeRange)
	events := t.log.Filter(func(e Event) bool {
		if !e.Timestamp.After(cutoff) {
			return false
		}
		return operation == "" || e.Context.Operation == operation
	})

	result := Analytics{
		TimeRange:   timeRange.String(),
		Operation:   operation,
		Total:       len(events),
		BySeverity:  make(map[alerting.Severity]int),
		ByOperation: make(map[string]int),
		ImpactAnalysis: ImpactAnalysis{
			ByBusinessImpact: make(map[string]int),
		},
	}

	freq := make(map[string]*ErrorFrequency)
	authorizationErrors := 0
	validationErrors := 0

	for _, e := range events {
		result.BySeverity[e.Severity]++
		result.Trends[e.Timestamp.Hour()]++
		if e.Context.Operation != "" {
			result.ByOperation[e.Context.Operation]++
		}

		key := e.Name + "_" + e.Code
		f, ok := freq[key]
		if !ok {
			f = &ErrorFrequency{Name: e.Name, Code: e.Code, Severity: e.Severity}
			freq[key] = f
		}
		f.Count++
		if e.Timestamp.After(f.LastSeen) {
			f.LastSeen = e.Timestamp
			f.Severity = e.Severity
		}

		result.ImpactAnalysis.TotalAffectedUsers += e.Impact.AffectedUsers
		result.ImpactAnalysis.ByBusinessImpact[e.Impact.BusinessImpact]++
		if e.Impact.Level == "high" {
			result.ImpactAnalysis.HighImpactCount++
		}

		switch e.Name {
		case string(apperrors.KindAuthorization):
			authorizationErrors++
		case string(apperrors.KindValidation):
			validationErrors++
		}
	}

	result.TopErrors = make([]ErrorFrequency, 0, len(freq))
	for _, f := range freq {
		result.TopErrors = append(result.TopErrors, *f)
	}
	sort.Slice(result.TopErrors, func(i, j int) bool {
		if result.TopErrors[i].Count != result.TopErrors[j].Count {
			return result.TopErrors[i].Count > result.TopErrors[j].Count
		}
		return result.TopErrors[i].LastSeen.After(result.TopErrors[j].LastSeen)
	})
	if len(result.TopErrors) > 10 {
		result.TopErrors = result.TopErrors[:10]
	}

	result.Recommendations = recommend(result.ByOperation, authorizationErrors, validationErrors)
	return result
}

// recommend applies the small advisory rule set over the window counts.
func recommend(byOperation map[string]int, authorizationErrors, validationErrors int) []Recommendation {
	var recs []Recommendation

	for op, count := range byOperation {
		if count > 5 {
			recs = append(recs, Recommendation{
				Type:      "operation_review",
				Operation: op,
				Message:   fmt.Sprintf("operation %q produced %d errors in the window; review its inputs and recent changes", op, count),
				Priority:  "high",
			})
		}
	}
	if authorizationErrors > 3 {
		recs = append(recs, Recommendation{
			Type:     "assignment_review",
			Message:  fmt.Sprintf("%d authorization errors recorded; review teacher class and subject assignments", authorizationErrors),
			Priority: "medium",
		})
	}
	if validationErrors > 5 {
		recs = append(recs, Recommendation{
			Type:     "client_validation",
			Message:  fmt.Sprintf("%d validation errors recorded; improve client-side validation before submission", validationErrors),
			Priority: "low",
		})
	}

	sort.Slice(recs, func(i, j int) bool { return recs[i].Type < recs[j].Type })
	return recs
}

// OperationHealth is the per-operation slice of the health report.
type OperationHealth struct {
	Total           int     `json:"total"`
	Errors          int     `json:"errors"`
	ErrorRate       float64 `json:"errorRate"`
	AvgResponseTime float64 `json:"avgResponseTime"`
	Status          string  `json:"status"`
}

// Health is the coarse attendance subsystem status.
type Health struct {
	Status           string                     `json:"status"`
	RecentErrorCount int                        `json:"recentErrorCount"`
	HighImpactCount  int                        `json:"highImpactCount"`
	Operations       map[string]OperationHealth `json:"operations"`
	LastCleanup      time.Time                  `json:"lastCleanup"`
}

// HealthStatus derives the overall and per-operation health from the recent
// window: critical on any critical error, warning above two high-impact
// errors, degraded above ten errors total.
func (t *Tracker) HealthStatus() Health {
	t.mu.RLock()
	window := t.thresholds.TimeWindow
	lastCleanup := t.lastCleanup
	operations := make(map[string]OperationHealth, len(t.operations))
	for op, stats := range t.operations {
		status := "healthy"
		if stats.ErrorRate() > 0.10 {
			status = "warning"
		}
		operations[op] = OperationHealth{
			Total:           stats.Total,
			Errors:          stats.Errors,
			ErrorRate:       stats.ErrorRate(),
			AvgResponseTime: stats.AvgResponseTime,
			Status:          status,
		}
	}
	t.mu.RUnlock()

	cutoff := time.Now().Add(-window)
	recent := t.log.Filter(func(e Event) bool {
		return e.Timestamp.After(cutoff)
	})

	critical := 0
	highImpact := 0
	for _, e := range recent {
		if e.Severity == alerting.SeverityCritical {
			critical++
		}
		if e.Impact.Level == "high" {
			highImpact++
		}
	}

	status := "healthy"
	switch {
	case critical > 0:
		status = "critical"
	case highImpact > 2:
		status = "warning"
	case len(recent) > 10:
		status = "degraded"
	}

	return Health{
		Status:           status,
		RecentErrorCount: len(recent),
		HighImpactCount:  highImpact,
		Operations:       operations,
		LastCleanup:      lastCleanup,
	}
}
