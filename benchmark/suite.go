package benchmark

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/smlm-ai/go-smlm/frames"
	"github.com/smlm-ai/go-smlm/inference"
	"github.com/smlm-ai/go-smlm/models"
	"github.com/smlm-ai/go-smlm/postprocess"
	"github.com/smlm-ai/go-smlm/profiler"
	"github.com/smlm-ai/go-smlm/transforms"
)

// latticeSpacing is the pixel distance between synthetic emitters. Three
// pixels keeps every site outside its neighbors' aggregation and suppression
// windows, so one pass over a fixture detects exactly the planted count.
const latticeSpacing = 3

// Suite manages and executes benchmark scenarios
type Suite struct {
	scenarios []Scenario
	outputDir string
	mu        sync.RWMutex
	results   []PerformanceMetrics
}

// NewSuiteArgs represents the arguments for creating a new benchmark suite.
type NewSuiteArgs struct {
	OutputPath string `json:"outputPath" yaml:"outputPath"`
}

// NewSuite creates a new benchmark suite.
//
// Arguments:
//   - args: The arguments for creating a new benchmark suite.
//
// Returns:
//   - *Suite: The benchmark suite.
func NewSuite(args NewSuiteArgs) *Suite {
	return &Suite{
		outputDir: args.OutputPath,
		scenarios: make([]Scenario, 0),
		results:   make([]PerformanceMetrics, 0),
	}
}

// AddScenario adds a test scenario to the benchmark suite
func (bs *Suite) AddScenario(scenario Scenario) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.scenarios = append(bs.scenarios, scenario)
}

// fixture is one scenario's synthetic workload: blank input frames and a
// replay backend whose bundles plant emitters on a fixed lattice.
type fixture struct {
	stack *frames.Stack
	pipe  *inference.Pipeline
	prof  *profiler.Profiler
}

// buildFixture synthesizes the workload for a scenario.
//
// Emitters are planted on a lattice starting one pixel in from the border,
// rotating through the available sites frame by frame so successive frames
// light different pixels. The planted probability is well above the default
// threshold and sites never suppress each other, which pins the detection
// count of a pass at Frames * EmittersPerFrame.
func buildFixture(scenario Scenario) (*fixture, error) {
	w, h := scenario.GridWidth, scenario.GridHeight
	if w < 2*latticeSpacing || h < 2*latticeSpacing {
		return nil, fmt.Errorf("grid %dx%d is too small for the emitter lattice", w, h)
	}
	if scenario.Frames < 1 {
		return nil, fmt.Errorf("scenario needs at least one frame, got %d", scenario.Frames)
	}

	// Sites at 1, 1+spacing, ... keeping one border pixel clear.
	cols := (w-2-1)/latticeSpacing + 1
	rows := (h-2-1)/latticeSpacing + 1
	capacity := cols * rows
	if scenario.EmittersPerFrame > capacity {
		return nil, fmt.Errorf("%d emitters per frame exceed the %d lattice sites of a %dx%d grid",
			scenario.EmittersPerFrame, capacity, w, h)
	}

	bundles := make([]*models.Bundle, scenario.Frames)
	for f := 0; f < scenario.Frames; f++ {
		bundle, err := models.NewBundle(h, w)
		if err != nil {
			return nil, fmt.Errorf("failed to allocate bundle: %w", err)
		}
		for k := 0; k < scenario.EmittersPerFrame; k++ {
			site := (f*scenario.EmittersPerFrame + k) % capacity
			y := 1 + latticeSpacing*(site/cols)
			x := 1 + latticeSpacing*(site%cols)
			bundle.Set(models.ChannelProbability, y, x, 0.9)
			bundle.Set(models.ChannelPhotons, y, x, 1000)
			bundle.Set(models.ChannelOffsetX, y, x, 0.25)
			bundle.Set(models.ChannelOffsetY, y, x, -0.25)
			bundle.Set(models.ChannelOffsetZ, y, x, 50)
			bundle.Set(models.ChannelSigmaX, y, x, 0.1)
			bundle.Set(models.ChannelSigmaY, y, x, 0.1)
			bundle.Set(models.ChannelSigmaZ, y, x, 25)
		}
		bundles[f] = bundle
	}

	stack, err := frames.NewStack(scenario.Frames, w, h)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate stack: %w", err)
	}

	mapper, err := transforms.NewCoordinateMapper(transforms.PixelExtent(w, h), w, h)
	if err != nil {
		return nil, fmt.Errorf("failed to build mapper: %w", err)
	}

	workers := scenario.Workers
	if workers < 1 {
		workers = 1
	}
	prof := profiler.New()
	pipe, err := inference.NewPipelineBuilder().
		WithModel(models.Args{Kind: models.KindReplay, Bundles: bundles}).
		WithExtractor(postprocess.DefaultConfig(), transforms.IdentityScaler(models.RegressionChannels[:]...), mapper).
		WithWorkers(workers).
		WithProfiler(prof).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	return &fixture{stack: stack, pipe: pipe, prof: prof}, nil
}

// RunScenario executes a single benchmark scenario
func (bs *Suite) RunScenario(ctx context.Context, scenario Scenario) (*PerformanceMetrics, error) {
	fix, err := buildFixture(scenario)
	if err != nil {
		return nil, err
	}
	defer fix.pipe.Close()

	metrics := &PerformanceMetrics{
		Scenario:  scenario,
		Timestamp: time.Now(),
	}

	// Warmup runs
	for i := 0; i < scenario.WarmupRuns; i++ {
		if _, err := fix.pipe.Process(ctx, fix.stack); err != nil {
			return nil, fmt.Errorf("warmup run failed: %w", err)
		}
	}

	// Capture initial memory stats
	var startMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)

	startTime := time.Now()
	totalDetections := 0
	failedFrames := 0
	processedFrames := 0

	// Run benchmark iterations
	for i := 0; i < scenario.Iterations; i++ {
		result, err := fix.pipe.Process(ctx, fix.stack)
		if err != nil {
			return nil, fmt.Errorf("iteration %d cancelled: %w", i, err)
		}

		totalDetections += result.Detections
		failedFrames += len(result.Failures)
		processedFrames += result.Frames
	}

	totalDuration := time.Since(startTime)

	// Capture final memory stats
	var endMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&endMem)

	// Calculate metrics
	metrics.TotalDuration = totalDuration
	metrics.FramesPerSecond = float64(processedFrames) / totalDuration.Seconds()
	metrics.EmittersPerSecond = float64(totalDetections) / totalDuration.Seconds()
	metrics.DetectionCount = totalDetections
	metrics.ExpectedCount = scenario.ExpectedDetections() * scenario.Iterations
	if processedFrames > 0 {
		metrics.ErrorRate = float64(failedFrames) / float64(processedFrames)
	}
	metrics.Profile = fix.prof.Snapshot()

	metrics.MemoryStats = MemoryMetrics{
		AllocBytes:      endMem.Alloc,
		TotalAllocBytes: endMem.TotalAlloc - startMem.TotalAlloc,
		SysBytes:        endMem.Sys,
		NumGC:           endMem.NumGC - startMem.NumGC,
		HeapAllocBytes:  endMem.HeapAlloc,
		HeapSysBytes:    endMem.HeapSys,
	}

	metrics.CPUStats = CPUMetrics{
		NumCPU: runtime.NumCPU(),
	}

	return metrics, nil
}

// RunAllScenarios executes all configured benchmark scenarios
func (bs *Suite) RunAllScenarios(ctx context.Context) error {
	bs.mu.Lock()
	scenarios := make([]Scenario, len(bs.scenarios))
	copy(scenarios, bs.scenarios)
	bs.mu.Unlock()

	for _, scenario := range scenarios {
		metrics, err := bs.RunScenario(ctx, scenario)
		if err != nil {
			fmt.Printf("Scenario %s failed: %v\n", scenario.Name, err)
			continue
		}

		bs.mu.Lock()
		bs.results = append(bs.results, *metrics)
		bs.mu.Unlock()

		fmt.Printf("Scenario %s completed: %.2f frames/s, %.0f emitters/s\n",
			scenario.Name, metrics.FramesPerSecond, metrics.EmittersPerSecond)
	}

	return bs.SaveResults()
}

// SaveResults persists benchmark results to filesystem
func (bs *Suite) SaveResults() error {
	bs.mu.RLock()
	results := make([]PerformanceMetrics, len(bs.results))
	copy(results, bs.results)
	bs.mu.RUnlock()

	// Ensure output directory exists
	if err := os.MkdirAll(bs.outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Save detailed results as JSON
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	resultsFile := filepath.Join(bs.outputDir, fmt.Sprintf("benchmark_results_%s.json", timestamp))

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	if err := os.WriteFile(resultsFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write results file: %w", err)
	}

	// Save summary CSV
	summaryFile := filepath.Join(bs.outputDir, fmt.Sprintf("benchmark_summary_%s.csv", timestamp))
	if err := bs.saveSummaryCSV(summaryFile, results); err != nil {
		return fmt.Errorf("failed to save summary CSV: %w", err)
	}

	fmt.Printf("Results saved to: %s\n", resultsFile)
	fmt.Printf("Summary saved to: %s\n", summaryFile)

	return nil
}

func (bs *Suite) saveSummaryCSV(filename string, results []PerformanceMetrics) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	// Write CSV header
	header := "Scenario,Grid,Frames,Emitters_Per_Frame,Workers,FPS,Emitters_Per_Sec,Total_Duration_ms,Alloc_MB,Detections,Error_Rate\n"
	if _, err := file.WriteString(header); err != nil {
		return err
	}

	// Write data rows
	for _, result := range results {
		allocMB := float64(result.MemoryStats.AllocBytes) / (1024 * 1024)
		line := fmt.Sprintf("%s,%dx%d,%d,%d,%d,%.2f,%.2f,%.2f,%.2f,%d,%.4f\n",
			result.Scenario.Name,
			result.Scenario.GridWidth,
			result.Scenario.GridHeight,
			result.Scenario.Frames,
			result.Scenario.EmittersPerFrame,
			result.Scenario.Workers,
			result.FramesPerSecond,
			result.EmittersPerSecond,
			float64(result.TotalDuration.Nanoseconds())/1e6,
			allocMB,
			result.DetectionCount,
			result.ErrorRate,
		)
		if _, err := file.WriteString(line); err != nil {
			return err
		}
	}

	return nil
}

// GetResults returns all benchmark results
func (bs *Suite) GetResults() []PerformanceMetrics {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	results := make([]PerformanceMetrics, len(bs.results))
	copy(results, bs.results)
	return results
}
