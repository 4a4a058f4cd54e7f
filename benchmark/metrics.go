// Package benchmark - Functionality for measuring localization throughput.
package benchmark

import (
	"time"

	"github.com/smlm-ai/go-smlm/profiler"
)

// PerformanceMetrics captures detailed performance data for one scenario run.
type PerformanceMetrics struct {
	Scenario          Scenario        `json:"scenario"`
	Timestamp         time.Time       `json:"timestamp"`
	TotalDuration     time.Duration   `json:"total_duration"`
	FramesPerSecond   float64         `json:"frames_per_second"`
	EmittersPerSecond float64         `json:"emitters_per_second"`
	DetectionCount    int             `json:"detection_count"`
	ExpectedCount     int             `json:"expected_count"`
	ErrorRate         float64         `json:"error_rate"`
	MemoryStats       MemoryMetrics   `json:"memory_stats"`
	CPUStats          CPUMetrics      `json:"cpu_stats"`
	Profile           profiler.Report `json:"profile"`
}

// MemoryMetrics captures memory usage statistics
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
	HeapSysBytes    uint64 `json:"heap_sys_bytes"`
}

// CPUMetrics captures CPU usage statistics
type CPUMetrics struct {
	NumCPU int `json:"num_cpu"`
}
