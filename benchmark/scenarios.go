package benchmark

import (
	"encoding/json"
	"fmt"
	"os"
)

// Scenario defines one synthetic localization workload: a stack of frames
// whose model output carries a fixed number of well-separated emitters.
type Scenario struct {
	Name             string `json:"name"`
	GridWidth        int    `json:"grid_width"`
	GridHeight       int    `json:"grid_height"`
	Frames           int    `json:"frames"`
	EmittersPerFrame int    `json:"emitters_per_frame"`
	Workers          int    `json:"workers"`
	Iterations       int    `json:"iterations"`
	WarmupRuns       int    `json:"warmup_runs"`
}

// ExpectedDetections returns the detection count one pass over the stack must
// produce when every frame succeeds.
func (s Scenario) ExpectedDetections() int {
	return s.Frames * s.EmittersPerFrame
}

// ScenarioBuilder helps build test scenarios with fluent API
type ScenarioBuilder struct {
	scenario Scenario
}

// NewScenarioBuilder creates a new scenario builder
func NewScenarioBuilder(name string) *ScenarioBuilder {
	return &ScenarioBuilder{
		scenario: Scenario{
			Name:             name,
			GridWidth:        64,
			GridHeight:       64,
			Frames:           16,
			EmittersPerFrame: 8,
			Workers:          1,
			Iterations:       100,
			WarmupRuns:       10,
		},
	}
}

// WithGrid sets the pixel grid dimensions
func (sb *ScenarioBuilder) WithGrid(width, height int) *ScenarioBuilder {
	sb.scenario.GridWidth = width
	sb.scenario.GridHeight = height
	return sb
}

// WithFrames sets the number of frames per stack
func (sb *ScenarioBuilder) WithFrames(frames int) *ScenarioBuilder {
	sb.scenario.Frames = frames
	return sb
}

// WithEmittersPerFrame sets the synthetic emitter count per frame
func (sb *ScenarioBuilder) WithEmittersPerFrame(n int) *ScenarioBuilder {
	sb.scenario.EmittersPerFrame = n
	return sb
}

// WithWorkers sets the pipeline worker count
func (sb *ScenarioBuilder) WithWorkers(workers int) *ScenarioBuilder {
	sb.scenario.Workers = workers
	return sb
}

// WithIterations sets the number of measured stack passes
func (sb *ScenarioBuilder) WithIterations(iterations int) *ScenarioBuilder {
	sb.scenario.Iterations = iterations
	return sb
}

// WithWarmupRuns sets the number of unmeasured passes before timing starts
func (sb *ScenarioBuilder) WithWarmupRuns(warmups int) *ScenarioBuilder {
	sb.scenario.WarmupRuns = warmups
	return sb
}

// Build returns the configured test scenario
func (sb *ScenarioBuilder) Build() Scenario {
	return sb.scenario
}

// ScenarioSet represents a collection of related test scenarios
type ScenarioSet struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Scenarios   []Scenario `json:"scenarios"`
}

// PredefinedScenarios contains common benchmark scenario sets
type PredefinedScenarios struct{}

// GetQuickScenarios returns a smaller set for quick testing
func (ps *PredefinedScenarios) GetQuickScenarios() *ScenarioSet {
	scenarios := make([]Scenario, 0)

	for _, grid := range []int{32, 64} {
		scenario := NewScenarioBuilder(fmt.Sprintf("quick_%dx%d", grid, grid)).
			WithGrid(grid, grid).
			WithFrames(8).
			WithEmittersPerFrame(8).
			WithIterations(20).
			WithWarmupRuns(2).
			Build()

		scenarios = append(scenarios, scenario)
	}

	return &ScenarioSet{
		Name:        "Quick Performance Test",
		Description: "Quick test with common configurations",
		Scenarios:   scenarios,
	}
}

// GetDensityComparisonScenarios sweeps the emitter count per frame on a fixed
// grid, showing how extraction cost scales with detection density.
func (ps *PredefinedScenarios) GetDensityComparisonScenarios(gridSize int) *ScenarioSet {
	scenarios := make([]Scenario, 0)

	for _, density := range []int{1, 4, 16, 64} {
		scenario := NewScenarioBuilder(fmt.Sprintf("density_%dx%d_%d", gridSize, gridSize, density)).
			WithGrid(gridSize, gridSize).
			WithFrames(16).
			WithEmittersPerFrame(density).
			WithIterations(50).
			WithWarmupRuns(5).
			Build()

		scenarios = append(scenarios, scenario)
	}

	return &ScenarioSet{
		Name:        fmt.Sprintf("Density Comparison @ %dx%d", gridSize, gridSize),
		Description: "Compares emitter densities on a fixed pixel grid",
		Scenarios:   scenarios,
	}
}

// GetGridComparisonScenarios sweeps the pixel grid at a fixed emitter count,
// isolating the per-pixel cost of thresholding and aggregation.
func (ps *PredefinedScenarios) GetGridComparisonScenarios() *ScenarioSet {
	scenarios := make([]Scenario, 0)

	for _, grid := range []int{32, 64, 128, 256} {
		scenario := NewScenarioBuilder(fmt.Sprintf("grid_%dx%d", grid, grid)).
			WithGrid(grid, grid).
			WithFrames(16).
			WithEmittersPerFrame(8).
			WithIterations(50).
			WithWarmupRuns(5).
			Build()

		scenarios = append(scenarios, scenario)
	}

	return &ScenarioSet{
		Name:        "Grid Comparison",
		Description: "Compares pixel grid sizes at a fixed emitter count",
		Scenarios:   scenarios,
	}
}

// GetWorkerComparisonScenarios sweeps the worker pool size on a fixed
// workload, showing the concurrency scaling of the pipeline.
func (ps *PredefinedScenarios) GetWorkerComparisonScenarios(gridSize int) *ScenarioSet {
	scenarios := make([]Scenario, 0)

	for _, workers := range []int{1, 2, 4, 8} {
		scenario := NewScenarioBuilder(fmt.Sprintf("workers_%dx%d_%d", gridSize, gridSize, workers)).
			WithGrid(gridSize, gridSize).
			WithFrames(64).
			WithEmittersPerFrame(8).
			WithWorkers(workers).
			WithIterations(20).
			WithWarmupRuns(2).
			Build()

		scenarios = append(scenarios, scenario)
	}

	return &ScenarioSet{
		Name:        fmt.Sprintf("Worker Comparison @ %dx%d", gridSize, gridSize),
		Description: "Compares worker pool sizes on a fixed workload",
		Scenarios:   scenarios,
	}
}

// SaveScenarioSet saves a scenario set to a JSON file
func SaveScenarioSet(scenarioSet *ScenarioSet, filename string) error {
	data, err := json.MarshalIndent(scenarioSet, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scenario set: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write scenario file: %w", err)
	}

	return nil
}

// LoadScenarioSet loads a scenario set from a JSON file
func LoadScenarioSet(filename string) (*ScenarioSet, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenarioSet ScenarioSet
	if err := json.Unmarshal(data, &scenarioSet); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scenario set: %w", err)
	}

	return &scenarioSet, nil
}
