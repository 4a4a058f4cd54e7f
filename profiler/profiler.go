// Package profiler - lightweight timing and resource accounting for batch
// runs.
package profiler

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Profiler aggregates operation timings, scalar metrics, and counters for
// one run. It keeps no background goroutines; callers time operations with
// StartOperation and read everything back with Snapshot.
//
// All methods are safe for concurrent use. A nil *Profiler is a valid no-op,
// so instrumented code never needs to branch on whether profiling is on.
type Profiler struct {
	mu        sync.Mutex
	startTime time.Time
	ops       map[string]*TimeTracker
	metrics   map[string]*MetricTracker
	counters  map[string]int64
}

// TimeTracker tracks operation timing statistics.
type TimeTracker struct {
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
}

// MetricTracker tracks statistics for a custom metric.
type MetricTracker struct {
	sum   float64
	min   float64
	max   float64
	count int64
}

// New creates an empty profiler. The uptime clock starts now.
//
// Returns:
//   - *Profiler: The profiler.
func New() *Profiler {
	return &Profiler{
		startTime: time.Now(),
		ops:       make(map[string]*TimeTracker),
		metrics:   make(map[string]*MetricTracker),
		counters:  make(map[string]int64),
	}
}

// StartOperation begins timing an operation.
//
// Arguments:
//   - name: The name of the operation to track.
//
// Returns:
//   - A function to call when the operation completes.
func (p *Profiler) StartOperation(name string) func() {
	if p == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		p.recordOperationTime(name, time.Since(start))
	}
}

// recordOperationTime records the completion time of an operation.
func (p *Profiler) recordOperationTime(name string, duration time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tracker, exists := p.ops[name]
	if !exists {
		tracker = &TimeTracker{minTime: duration, maxTime: duration}
		p.ops[name] = tracker
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

// RecordMetric records a custom metric value.
//
// Arguments:
//   - name: The name of the metric.
//   - value: The metric value to record.
func (p *Profiler) RecordMetric(name string, value float64) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	tracker, exists := p.metrics[name]
	if !exists {
		tracker = &MetricTracker{min: value, max: value}
		p.metrics[name] = tracker
	}

	tracker.sum += value
	tracker.count++
	if value < tracker.min {
		tracker.min = value
	}
	if value > tracker.max {
		tracker.max = value
	}
}

// Add adds delta to a named counter.
//
// Arguments:
//   - name: The name of the counter.
//   - delta: The amount to add.
func (p *Profiler) Add(name string, delta int64) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counters[name] += delta
}

// OperationStats is the aggregated timing of one operation.
type OperationStats struct {
	Count   int64   `json:"count"`
	TotalMS float64 `json:"total_ms"`
	AvgMS   float64 `json:"avg_ms"`
	MinMS   float64 `json:"min_ms"`
	MaxMS   float64 `json:"max_ms"`
}

// MetricStats is the aggregated view of one custom metric.
type MetricStats struct {
	Count int64   `json:"count"`
	Avg   float64 `json:"avg"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// ProcessStats is a point sample of the running process.
type ProcessStats struct {
	CPUPercent float64 `json:"cpu_percent"`
	RSSBytes   uint64  `json:"rss_bytes"`
	Goroutines int     `json:"goroutines"`
	HeapAlloc  uint64  `json:"heap_alloc"`
	GCCycles   uint32  `json:"gc_cycles"`
}

// Report is a self-contained snapshot of a run's profile.
type Report struct {
	UptimeMS   float64                   `json:"uptime_ms"`
	Operations map[string]OperationStats `json:"operations,omitempty"`
	Metrics    map[string]MetricStats    `json:"metrics,omitempty"`
	Counters   map[string]int64          `json:"counters,omitempty"`
	Process    ProcessStats              `json:"process"`
}

// Snapshot returns the current profiling statistics plus a process resource
// sample. A nil profiler yields a zero report.
//
// Returns:
//   - Report: The snapshot.
func (p *Profiler) Snapshot() Report {
	if p == nil {
		return Report{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	report := Report{
		UptimeMS:   float64(time.Since(p.startTime)) / float64(time.Millisecond),
		Operations: make(map[string]OperationStats, len(p.ops)),
		Metrics:    make(map[string]MetricStats, len(p.metrics)),
		Counters:   make(map[string]int64, len(p.counters)),
		Process:    sampleProcess(),
	}
	for name, tr := range p.ops {
		ms := func(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }
		report.Operations[name] = OperationStats{
			Count:   tr.count,
			TotalMS: ms(tr.totalTime),
			AvgMS:   ms(tr.totalTime) / float64(tr.count),
			MinMS:   ms(tr.minTime),
			MaxMS:   ms(tr.maxTime),
		}
	}
	for name, tr := range p.metrics {
		report.Metrics[name] = MetricStats{
			Count: tr.count,
			Avg:   tr.sum / float64(tr.count),
			Min:   tr.min,
			Max:   tr.max,
		}
	}
	for name, v := range p.counters {
		report.Counters[name] = v
	}
	return report
}

// sampleProcess collects a resource sample of this process. OS-level fields
// stay zero when the platform query fails; runtime fields always fill.
func sampleProcess() ProcessStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats := ProcessStats{
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  memStats.HeapAlloc,
		GCCycles:   memStats.NumGC,
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return stats
	}
	if cpu, err := proc.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	}
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		stats.RSSBytes = mem.RSS
	}
	return stats
}

// String renders the report as a human-readable status block with
// deterministic ordering.
func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "PROFILE REPORT\n")
	fmt.Fprintf(&b, "Uptime: %.1f ms\n", r.UptimeMS)

	if len(r.Operations) > 0 {
		fmt.Fprintf(&b, "\nOPERATION TIMINGS:\n")
		for _, name := range sortedKeys(r.Operations) {
			op := r.Operations[name]
			fmt.Fprintf(&b, "  %s: avg=%.3fms, min=%.3fms, max=%.3fms, count=%d\n",
				name, op.AvgMS, op.MinMS, op.MaxMS, op.Count)
		}
	}
	if len(r.Metrics) > 0 {
		fmt.Fprintf(&b, "\nCUSTOM METRICS:\n")
		for _, name := range sortedKeys(r.Metrics) {
			m := r.Metrics[name]
			fmt.Fprintf(&b, "  %s: avg=%.2f, min=%.2f, max=%.2f, samples=%d\n",
				name, m.Avg, m.Min, m.Max, m.Count)
		}
	}
	if len(r.Counters) > 0 {
		fmt.Fprintf(&b, "\nCOUNTERS:\n")
		for _, name := range sortedKeys(r.Counters) {
			fmt.Fprintf(&b, "  %s: %d\n", name, r.Counters[name])
		}
	}

	fmt.Fprintf(&b, "\nPROCESS:\n")
	fmt.Fprintf(&b, "  CPU: %.1f%%\n", r.Process.CPUPercent)
	fmt.Fprintf(&b, "  RSS: %s\n", formatBytes(r.Process.RSSBytes))
	fmt.Fprintf(&b, "  Heap Alloc: %s\n", formatBytes(r.Process.HeapAlloc))
	fmt.Fprintf(&b, "  Goroutines: %d\n", r.Process.Goroutines)
	fmt.Fprintf(&b, "  GC Cycles: %d\n", r.Process.GCCycles)
	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
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
