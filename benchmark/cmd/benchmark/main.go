package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/smlm-ai/go-smlm/benchmark"
)

func main() {
	var (
		scenarioFile = flag.String("scenarios", "", "Path to scenario configuration file")
		outputDir    = flag.String("output", "./benchmark_results", "Output directory for results")
		quick        = flag.Bool("quick", false, "Run quick benchmark scenarios")
		density      = flag.Bool("density", false, "Compare emitter densities on a fixed grid")
		grids        = flag.Bool("grids", false, "Compare pixel grid sizes")
		workers      = flag.Bool("workers", false, "Compare worker pool sizes")
		gridSize     = flag.Int("grid", 64, "Grid size for the density and worker sweeps")
		timeout      = flag.Duration("timeout", 30*time.Minute, "Benchmark timeout duration")
	)
	flag.Parse()

	suite := benchmark.NewSuite(benchmark.NewSuiteArgs{
		OutputPath: *outputDir,
	})

	predefined := &benchmark.PredefinedScenarios{}

	if *scenarioFile != "" {
		scenarioSet, err := benchmark.LoadScenarioSet(*scenarioFile)
		if err != nil {
			log.Fatalf("Failed to load scenario file: %v", err)
		}
		for _, scenario := range scenarioSet.Scenarios {
			suite.AddScenario(scenario)
		}
		fmt.Printf("Loaded %d scenarios from %s\n", len(scenarioSet.Scenarios), *scenarioFile)
	} else {
		if *quick {
			scenarios := predefined.GetQuickScenarios()
			for _, scenario := range scenarios.Scenarios {
				suite.AddScenario(scenario)
			}
			fmt.Printf("Added %d quick scenarios\n", len(scenarios.Scenarios))
		}

		if *density {
			scenarios := predefined.GetDensityComparisonScenarios(*gridSize)
			for _, scenario := range scenarios.Scenarios {
				suite.AddScenario(scenario)
			}
			fmt.Printf("Added %d density comparison scenarios\n", len(scenarios.Scenarios))
		}

		if *grids {
			scenarios := predefined.GetGridComparisonScenarios()
			for _, scenario := range scenarios.Scenarios {
				suite.AddScenario(scenario)
			}
			fmt.Printf("Added %d grid comparison scenarios\n", len(scenarios.Scenarios))
		}

		if *workers {
			scenarios := predefined.GetWorkerComparisonScenarios(*gridSize)
			for _, scenario := range scenarios.Scenarios {
				suite.AddScenario(scenario)
			}
			fmt.Printf("Added %d worker comparison scenarios\n", len(scenarios.Scenarios))
		}

		// If no specific scenarios requested, use quick by default
		if !*quick && !*density && !*grids && !*workers {
			scenarios := predefined.GetQuickScenarios()
			for _, scenario := range scenarios.Scenarios {
				suite.AddScenario(scenario)
			}
			fmt.Printf("Added %d default quick scenarios\n", len(scenarios.Scenarios))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	fmt.Println("Starting benchmark execution...")
	start := time.Now()

	if err := suite.RunAllScenarios(ctx); err != nil {
		log.Fatalf("Benchmark execution failed: %v", err)
	}

	duration := time.Since(start)
	fmt.Printf("Benchmark completed in %v\n", duration)

	results := suite.GetResults()
	fmt.Printf("\n=== BENCHMARK RESULTS SUMMARY ===\n")
	fmt.Printf("Total scenarios: %d\n", len(results))
	fmt.Printf("Results saved to: %s\n", *outputDir)

	var bestFPS float64
	var bestScenario string
	for _, result := range results {
		if result.FramesPerSecond > bestFPS {
			bestFPS = result.FramesPerSecond
			bestScenario = result.Scenario.Name
		}
		fmt.Printf("  %s: %.2f frames/s, %.0f emitters/s (%.2f MB memory)\n",
			result.Scenario.Name,
			result.FramesPerSecond,
			result.EmittersPerSecond,
			float64(result.MemoryStats.AllocBytes)/(1024*1024))
	}

	fmt.Printf("\nBest performing scenario: %s (%.2f frames/s)\n", bestScenario, bestFPS)
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", filepath.Base(os.Args[0]))
		fmt.Fprintf(os.Stderr, "Benchmark tool for localization pipeline throughput.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(
			os.Stderr,
			"  %s -quick\n",
			filepath.Base(os.Args[0]),
		)
		fmt.Fprintf(
			os.Stderr,
			"  %s -scenarios ./scenarios.json -output ./results\n",
			filepath.Base(os.Args[0]),
		)
		fmt.Fprintf(
			os.Stderr,
			"  %s -density -workers -grid 128\n",
			filepath.Base(os.Args[0]),
		)
	}
}
