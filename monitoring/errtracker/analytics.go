package errtracker

import (
	"runtime"
	"sort"
	"strings"
	"time"

	"attendance-backend/monitoring/alerting"
)

// Analytics is the read-only aggregation over the event log for a time
// window. An empty window yields zero counts and empty collections.
type Analytics struct {
	TimeRange  string                       `json:"timeRange"`
	Total      int                          `json:"total"`
	BySeverity map[alerting.Severity]int    `json:"bySeverity"`
	TopErrors  []ErrorFrequency             `json:"topErrors"`
	Trends     [24]int                      `json:"hourlyTrends"`
	Contexts   ContextBreakdown             `json:"contexts"`
	Details    []Event                      `json:"details,omitempty"`
}

// ErrorFrequency is one row of the top-errors table.
type ErrorFrequency struct {
	Name     string            `json:"name"`
	Code     string            `json:"code"`
	Count    int               `json:"count"`
	Severity alerting.Severity `json:"severity"`
	LastSeen time.Time         `json:"lastSeen"`
}

// ContextBreakdown groups window events by caller attributes.
type ContextBreakdown struct {
	ByRole     map[string]int `json:"byRole"`
	ByEndpoint map[string]int `json:"byEndpoint"`
	ByBrowser  map[string]int `json:"byBrowser"`
	ByIP       map[string]int `json:"byIP"`
}

// Analytics aggregates the events recorded within the last timeRange. Pure
// read; cost is proportional to the bounded window size.
func (t *Tracker) Analytics(timeRange time.Duration, includeDetails bool) Analytics {
	cutoff := time.Now().Add(-timeRange)
	events := t.log.Filter(func(e Event) bool {
		return e.Timestamp.After(cutoff)
	})

	result := Analytics{
		TimeRange:  timeRange.String(),
		Total:      len(events),
		BySeverity: make(map[alerting.Severity]int),
		Contexts: ContextBreakdown{
			ByRole:     make(map[string]int),
			ByEndpoint: make(map[string]int),
			ByBrowser:  make(map[string]int),
			ByIP:       make(map[string]int),
		},
	}

	freq := make(map[string]*ErrorFrequency)
	for _, e := range events {
		result.BySeverity[e.Severity]++
		result.Trends[e.Timestamp.Hour()]++

		key := e.Signature()
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

		if e.Context.UserRole != "" {
			result.Contexts.ByRole[e.Context.UserRole]++
		}
		if e.Context.Endpoint != "" {
			result.Contexts.ByEndpoint[e.Context.Endpoint]++
		}
		if e.Context.UserAgent != "" {
			result.Contexts.ByBrowser[browserFamily(e.Context.UserAgent)]++
		}
		if e.Context.IP != "" {
			result.Contexts.ByIP[e.Context.IP]++
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

	if includeDetails {
		result.Details = events
	}

	return result
}

// Health is the coarse status derived from recent error volume.
type Health struct {
	Status             string    `json:"status"`
	RecentErrorCount   int       `json:"recentErrorCount"`
	CriticalErrorCount int       `json:"criticalErrorCount"`
	MemoryUsageBytes   uint64    `json:"memoryUsage"`
	LastCleanup        time.Time `json:"lastCleanup"`
}

// HealthStatus reports critical when any critical event fell inside the
// alert window, warning above 10 recent errors, healthy otherwise.
func (t *Tracker) HealthStatus() Health {
	t.mu.RLock()
	window := t.thresholds.TimeWindow
	lastCleanup := t.lastCleanup
	t.mu.RUnlock()

	cutoff := time.Now().Add(-window)
	recent := t.log.Filter(func(e Event) bool {
		return e.Timestamp.After(cutoff)
	})

	critical := 0
	for _, e := range recent {
		if e.Severity == alerting.SeverityCritical {
			critical++
		}
	}

	status := "healthy"
	switch {
	case critical > 0:
		status = "critical"
	case len(recent) > 10:
		status = "warning"
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return Health{
		Status:             status,
		RecentErrorCount:   len(recent),
		CriticalErrorCount: critical,
		MemoryUsageBytes:   mem.HeapAlloc,
		LastCleanup:        lastCleanup,
	}
}

// browserFamily buckets a user agent into a coarse browser family for the
// context breakdown.
func browserFamily(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "edg/"):
		return "Edge"
	case strings.Contains(ua, "chrome"):
		return "Chrome"
	case strings.Contains(ua, "firefox"):
		return "Firefox"
	case strings.Contains(ua, "safari"):
		return "Safari"
	default:
		return "Other"
	}
}
