package profiler

import (
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/cyclopcam/logs"
)

// RuntimeProfiler collects per-stage timings for the detection pipeline
// (preprocess, forward, plot) and can summarize them through a logger.
//
// It is safe for concurrent use.
type RuntimeProfiler struct {
	mu         sync.RWMutex
	startTime  time.Time
	maxSamples int

	operationTimes map[string]*TimeTracker
}

// TimeTracker tracks operation timing statistics.
type TimeTracker struct {
	name      string
	durations []time.Duration
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
}

// OperationStats is a snapshot of one tracked operation.
type OperationStats struct {
	Name    string
	Count   int64
	Total   time.Duration
	Average time.Duration
	Min     time.Duration
	Max     time.Duration
}

// ProfilingOptions configures the runtime profiler.
type ProfilingOptions struct {
	// MaxSamples caps the per-operation sample history (default: 600).
	MaxSamples int
}

// NewRuntimeProfiler creates a new runtime profiler with the specified options.
//
// Arguments:
// - opts: Configuration options for the profiler
//
// Returns:
// - A configured RuntimeProfiler instance
func NewRuntimeProfiler(opts ProfilingOptions) *RuntimeProfiler {
	if opts.MaxSamples == 0 {
		opts.MaxSamples = 600
	}

	return &RuntimeProfiler{
		startTime:      time.Now(),
		maxSamples:     opts.MaxSamples,
		operationTimes: make(map[string]*TimeTracker),
	}
}

// StartOperation begins timing an operation.
//
// Arguments:
// - name: The name of the operation to track
//
// Returns:
// - A function to call when the operation completes
func (rp *RuntimeProfiler) StartOperation(name string) func() {
	if rp == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		rp.Record(name, time.Since(start))
	}
}

// Record adds one measured duration to the named operation.
func (rp *RuntimeProfiler) Record(name string, duration time.Duration) {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	tracker, exists := rp.operationTimes[name]
	if !exists {
		tracker = &TimeTracker{
			name:    name,
			minTime: duration,
			maxTime: duration,
		}
		rp.operationTimes[name] = tracker
	}

	tracker.durations = append(tracker.durations, duration)
	if len(tracker.durations) > rp.maxSamples {
		tracker.totalTime -= tracker.durations[0]
		tracker.durations = tracker.durations[1:]
	}

	tracker.totalTime += duration
	tracker.count++

	if duration < tracker.minTime {
		tracker.minTime = duration
	}
	if duration > tracker.maxTime {
		tracker.maxTime = duration
	}
}

// Operations returns a snapshot of every tracked operation, sorted by name.
func (rp *RuntimeProfiler) Operations() []OperationStats {
	rp.mu.RLock()
	defer rp.mu.RUnlock()

	stats := make([]OperationStats, 0, len(rp.operationTimes))
	for name, tracker := range rp.operationTimes {
		if len(tracker.durations) == 0 {
			continue
		}
		stats = append(stats, OperationStats{
			Name:    name,
			Count:   tracker.count,
			Total:   tracker.totalTime,
			Average: tracker.totalTime / time.Duration(len(tracker.durations)),
			Min:     tracker.minTime,
			Max:     tracker.maxTime,
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

// Report writes an uptime, memory and per-operation summary to the logger.
func (rp *RuntimeProfiler) Report(log logs.Log) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	log.Infof("Profiler uptime %v, heap %s, sys %s, gc cycles %d",
		time.Since(rp.startTime).Truncate(time.Millisecond),
		formatBytes(mem.HeapAlloc), formatBytes(mem.Sys), mem.NumGC)

	for _, op := range rp.Operations() {
		log.Infof("  %s: avg=%v, min=%v, max=%v, count=%d",
			op.Name,
			op.Average.Truncate(time.Microsecond),
			op.Min.Truncate(time.Microsecond),
			op.Max.Truncate(time.Microsecond),
			op.Count)
	}
}

// formatBytes formats byte counts in human-readable format.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
