package perftracker

import (
	"fmt"
	"sort"
	"time"

	"attendance-backend/monitoring/alerting"
)

// Summary is the cross-cutting performance report for a time window. Pure
// read: calling it twice with no intervening tracked events returns
// identical aggregate numbers.
type Summary struct {
	TimeRange      string          `json:"timeRange"`
	TotalRequests  int64           `json:"totalRequests"`
	TotalErrors    int64           `json:"totalErrors"`
	ErrorRate      float64         `json:"errorRate"`
	SlowEndpoints  []EndpointStats `json:"slowEndpoints"`
	SlowQueryTypes []QueryStats    `json:"slowQueryTypes"`
	System         *SystemSample   `json:"system,omitempty"`
	RecentAlerts   []alerting.Alert `json:"recentAlerts"`
}

// GetSummary assembles the performance summary: endpoints and query types
// whose average exceeds the warning threshold, the latest system snapshot,
// and alerts within the window.
func (t *Tracker) GetSummary(timeRange time.Duration) Summary {
	t.mu.RLock()
	thresholds := t.thresholds
	requests := t.requestCount
	errors := t.errorCount
	t.mu.RUnlock()

	summary := Summary{
		TimeRange:     timeRange.String(),
		TotalRequests: requests,
		TotalErrors:   errors,
	}
	if requests > 0 {
		summary.ErrorRate = float64(errors) / float64(requests)
	}

	apiWarnMs := float64(thresholds.APIWarning.Milliseconds())
	for _, stats := range t.AllEndpointStats() {
		if stats.AvgMs > apiWarnMs {
			summary.SlowEndpoints = append(summary.SlowEndpoints, stats)
		}
	}
	sort.Slice(summary.SlowEndpoints, func(i, j int) bool {
		return summary.SlowEndpoints[i].AvgMs > summary.SlowEndpoints[j].AvgMs
	})

	queryWarnMs := float64(thresholds.QueryWarning.Milliseconds())
	for _, stats := range t.AllQueryStats() {
		if stats.AvgMs > queryWarnMs {
			summary.SlowQueryTypes = append(summary.SlowQueryTypes, stats)
		}
	}
	sort.Slice(summary.SlowQueryTypes, func(i, j int) bool {
		return summary.SlowQueryTypes[i].AvgMs > summary.SlowQueryTypes[j].AvgMs
	})

	summary.System = t.LatestSystemSample()

	cutoff := time.Now().Add(-timeRange)
	summary.RecentAlerts = t.alerts.Filter(func(a alerting.Alert) bool {
		return a.Timestamp.After(cutoff)
	})

	return summary
}

// IndexSuggestion is a naive index recommendation derived from a query
// signature's shape and volume.
type IndexSuggestion struct {
	Collection string `json:"collection"`
	Operation  string `json:"operation"`
	Reason     string `json:"reason"`
	Suggestion string `json:"suggestion"`
}

// OptimizationReport lists query signatures worth attention: slow on
// average, unusually frequent, or error-prone.
type OptimizationReport struct {
	SlowQueries       []QueryStats      `json:"slowQueries"`
	FrequentQueries   []QueryStats      `json:"frequentQueries"`
	ErrorProneQueries []QueryStats      `json:"errorProneQueries"`
	Suggestions       []IndexSuggestion `json:"suggestions"`
}

const (
	frequentQueryCount  = 100
	errorProneThreshold = 0.05
)

// GetOptimizationReport derives the optimization report from the query
// aggregates. Pure read.
func (t *Tracker) GetOptimizationReport() OptimizationReport {
	t.mu.RLock()
	queryWarnMs := float64(t.thresholds.QueryWarning.Milliseconds())
	t.mu.RUnlock()

	report := OptimizationReport{}
	for _, stats := range t.AllQueryStats() {
		slow := stats.AvgMs > queryWarnMs
		frequent := stats.Count >= frequentQueryCount
		errorProne := stats.Count > 0 && float64(stats.Errors)/float64(stats.Count) > errorProneThreshold

		if slow {
			report.SlowQueries = append(report.SlowQueries, stats)
		}
		if frequent {
			report.FrequentQueries = append(report.FrequentQueries, stats)
		}
		if errorProne {
			report.ErrorProneQueries = append(report.ErrorProneQueries, stats)
		}

		if slow || (frequent && stats.AvgMs > queryWarnMs/2) {
			report.Suggestions = append(report.Suggestions, suggestIndex(stats))
		}
	}

	sort.Slice(report.SlowQueries, func(i, j int) bool {
		return report.SlowQueries[i].AvgMs > report.SlowQueries[j].AvgMs
	})
	sort.Slice(report.FrequentQueries, func(i, j int) bool {
		return report.FrequentQueries[i].Count > report.FrequentQueries[j].Count
	})
	sort.Slice(report.ErrorProneQueries, func(i, j int) bool {
		return report.ErrorProneQueries[i].Errors > report.ErrorProneQueries[j].Errors
	})

	return report
}

// suggestIndex maps a query signature's shape to a coarse index hint.
func suggestIndex(stats QueryStats) IndexSuggestion {
	suggestion := fmt.Sprintf("review access pattern for %s on %s", stats.Operation, stats.Collection)
	switch stats.Operation {
	case "find", "findOne", "count":
		suggestion = fmt.Sprintf("ensure an index covers the filter fields used by %s on %s", stats.Operation, stats.Collection)
	case "aggregate":
		suggestion = fmt.Sprintf("ensure the leading $match stage of aggregations on %s is index-backed", stats.Collection)
	case "update", "updateMany", "delete":
		suggestion = fmt.Sprintf("ensure the selector of %s on %s hits an index to avoid collection scans", stats.Operation, stats.Collection)
	}
	return IndexSuggestion{
		Collection: stats.Collection,
		Operation:  stats.Operation,
		Reason:     fmt.Sprintf("avg %.0fms over %d executions", stats.AvgMs, stats.Count),
		Suggestion: suggestion,
	}
}
