package perftracker

import (
	"context"
	"runtime"
	"time"

	"attendance-backend/monitoring/alerting"
)

const (
	systemSampleCap    = 120
	memoryAlertBackoff = 5 * time.Minute
)

// SystemSample is one snapshot of process resource usage.
type SystemSample struct {
	Timestamp    time.Time `json:"timestamp"`
	HeapAlloc    uint64    `json:"heapAlloc"`
	Sys          uint64    `json:"sys"`
	NumGoroutine int       `json:"numGoroutine"`
	NumGC        uint32    `json:"numGC"`
}

// SampleSystem takes one resource snapshot, stores it, and evaluates the
// memory alert rule. Memory alerts are rate-limited to one per backoff
// window to avoid alert storms.
func (t *Tracker) SampleSystem() SystemSample {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	sample := SystemSample{
		Timestamp:    time.Now(),
		HeapAlloc:    mem.HeapAlloc,
		Sys:          mem.Sys,
		NumGoroutine: runtime.NumGoroutine(),
		NumGC:        mem.NumGC,
	}
	t.samples.Push(sample)

	t.mu.Lock()
	thresholds := t.thresholds
	canAlert := time.Since(t.lastMemoryAlert) > alertBackoff(t.lastMemoryAlert)
	if canAlert && sample.HeapAlloc > thresholds.MemoryWarning {
		t.lastMemoryAlert = time.Now()
	}
	t.mu.Unlock()

	if canAlert && sample.HeapAlloc > thresholds.MemoryWarning {
		severity := alerting.SeverityWarning
		if sample.HeapAlloc > thresholds.MemoryCritical {
			severity = alerting.SeverityCritical
		}
		t.fire(alerting.New("high_memory_usage", severity, map[string]interface{}{
			"heapAlloc": sample.HeapAlloc,
			"threshold": thresholds.MemoryWarning,
		}))
	}

	return sample
}

// alertBackoff allows the very first alert through even though
// lastMemoryAlert is the zero time.
func alertBackoff(last time.Time) time.Duration {
	if last.IsZero() {
		return 0
	}
	return memoryAlertBackoff
}

// LatestSystemSample returns the newest snapshot, or nil before the first
// sampling tick.
func (t *Tracker) LatestSystemSample() *SystemSample {
	all := t.samples.All()
	if len(all) == 0 {
		return nil
	}
	return &all[0]
}

// SystemSamples returns the retained snapshots, newest first.
func (t *Tracker) SystemSamples() []SystemSample {
	return t.samples.All()
}

// StartSampler samples resource usage on the given interval until ctx is
// cancelled. Started once at process start.
func (t *Tracker) StartSampler(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.SampleSystem()
			case <-ctx.Done():
				return
			}
		}
	}()
}
