// Package handlers contains the HTTP handlers for the monitoring and
// attendance APIs.
package handlers

import (
	"net/http"
	"time"
)

const (
	defaultTimeRange = 24 * time.Hour
	maxTimeRange     = 7 * 24 * time.Hour
)

// parseTimeRange reads the timeRange query parameter as a Go duration
// ("1h", "30m", "24h"). Absent or malformed values fall back to the
// default; values above the retention window are clamped.
func parseTimeRange(r *http.Request) time.Duration {
	raw := r.URL.Query().Get("timeRange")
	if raw == "" {
		return defaultTimeRange
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return defaultTimeRange
	}
	if d > maxTimeRange {
		return maxTimeRange
	}
	return d
}
