// Command localize runs the localization pipeline over a directory of frame
// images and exports the detected emitters.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/smlm-ai/go-smlm/config"
	"github.com/smlm-ai/go-smlm/frames"
	"github.com/smlm-ai/go-smlm/inference"
	"github.com/smlm-ai/go-smlm/profiler"
	"github.com/smlm-ai/go-smlm/util"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to the pipeline configuration file")
		inputDir   = flag.String("input", "", "Directory of numbered frame images (overrides config)")
		pattern    = flag.String("pattern", "", "Glob restricting the frame files, e.g. 'frame-*.tif' (overrides config)")
		modelPath  = flag.String("model", "", "Path to the ONNX model file (overrides config)")
		gridWidth  = flag.Int("width", 0, "Model input width in pixels (0 keeps the config value)")
		gridHeight = flag.Int("height", 0, "Model input height in pixels (0 keeps the config value)")
		csvPath    = flag.String("csv", "", "Delimited-text output file (overrides config)")
		binaryPath = flag.String("binary", "", "Binary collection output file (overrides config)")
		workers    = flag.Int("workers", 0, "Concurrent frames (0 keeps the config value)")
		threshold  = flag.Float64("threshold", 0, "Detection threshold (0 keeps the config value)")
		timeout    = flag.Duration("timeout", 0, "Abort the batch after this duration (0 runs to completion)")
		profile    = flag.Bool("profile", false, "Print a profiling report after the run")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if *inputDir != "" {
		cfg.Input.Dir = *inputDir
	}
	if *pattern != "" {
		cfg.Input.Pattern = *pattern
	}
	if *modelPath != "" {
		cfg.Model.Path = *modelPath
	}
	if *gridWidth > 0 {
		cfg.Model.Width = *gridWidth
	}
	if *gridHeight > 0 {
		cfg.Model.Height = *gridHeight
	}
	if *csvPath != "" {
		cfg.Output.CSV = *csvPath
	}
	if *binaryPath != "" {
		cfg.Output.Binary = *binaryPath
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}
	if *threshold > 0 {
		cfg.Extractor.RawThreshold = float32(*threshold)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.Input.Dir == "" {
		log.Fatal("Frame directory is required (-input or input.dir)")
	}
	if cfg.Output.CSV == "" && cfg.Output.Binary == "" {
		log.Fatal("At least one output is required (-csv, -binary, or the output section)")
	}

	stack, err := util.LoadStackMatching(cfg.Input.Dir, cfg.Input.Pattern)
	if err != nil {
		log.Fatalf("Failed to load frames: %v", err)
	}
	lo, hi := stack.Frame(0).MinMax()
	for i := 1; i < stack.Frames(); i++ {
		flo, fhi := stack.Frame(i).MinMax()
		if flo < lo {
			lo = flo
		}
		if fhi > hi {
			hi = fhi
		}
	}
	fmt.Printf("Loaded %d frames of %dx%d from %s (counts %.0f..%.0f)\n",
		stack.Frames(), stack.Width(), stack.Height(), cfg.Input.Dir, lo, hi)

	if stack.Width() != cfg.Model.Width || stack.Height() != cfg.Model.Height {
		if !cfg.Input.Rescale {
			log.Fatalf("Frames are %dx%d but the model expects %dx%d; set input.rescale to resample",
				stack.Width(), stack.Height(), cfg.Model.Width, cfg.Model.Height)
		}
		stack, err = frames.RescaleStack(stack, cfg.Model.Width, cfg.Model.Height)
		if err != nil {
			log.Fatalf("Failed to rescale frames: %v", err)
		}
		fmt.Printf("Rescaled frames to the %dx%d model grid\n", cfg.Model.Width, cfg.Model.Height)
	}

	scaler, err := cfg.Scaler()
	if err != nil {
		log.Fatalf("Invalid scale constants: %v", err)
	}
	mapper, err := cfg.Mapper()
	if err != nil {
		log.Fatalf("Invalid coordinate grid: %v", err)
	}

	var prof *profiler.Profiler
	if *profile {
		prof = profiler.New()
	}

	pipe, err := inference.NewPipelineBuilder().
		WithModel(cfg.Model).
		WithExtractor(cfg.Extractor, scaler, mapper).
		WithWorkers(cfg.WorkerCount()).
		WithProfiler(prof).
		Build()
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}
	defer pipe.Close()

	ctx := context.Background()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	start := time.Now()
	result, runErr := pipe.Process(ctx, stack)
	elapsed := time.Since(start)

	if cfg.Output.CSV != "" {
		if err := writeOutput(cfg.Output.CSV, result.Emitters.WriteCSV); err != nil {
			log.Fatalf("Failed to write CSV: %v", err)
		}
		fmt.Printf("Wrote %s\n", cfg.Output.CSV)
	}
	if cfg.Output.Binary != "" {
		if err := writeOutput(cfg.Output.Binary, result.Emitters.WriteBinary); err != nil {
			log.Fatalf("Failed to write binary collection: %v", err)
		}
		fmt.Printf("Wrote %s\n", cfg.Output.Binary)
	}

	fmt.Printf("\n=== LOCALIZATION SUMMARY ===\n")
	fmt.Printf("Frames: %d in %v (%.1f frames/s)\n",
		result.Frames, elapsed.Round(time.Millisecond), float64(result.Frames)/elapsed.Seconds())
	fmt.Printf("Detections: %d (%s)\n", result.Detections, result.Emitters.Unit)
	if len(result.Failures) > 0 {
		fmt.Printf("Failures: %d\n", len(result.Failures))
		for _, failure := range result.Failures {
			fmt.Printf("  %s\n", failure.Error())
		}
	}
	if *profile {
		fmt.Printf("\n%s", prof.Snapshot())
	}

	if runErr != nil {
		log.Fatalf("Batch stopped early: %v", runErr)
	}
	if result.Frames > 0 && len(result.Failures) == result.Frames {
		log.Fatal("Every frame failed")
	}
}

// writeOutput streams one exporter into a freshly created file, creating the
// parent directory when needed.
func writeOutput(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", filepath.Base(os.Args[0]))
		fmt.Fprintf(os.Stderr, "Localizes point emitters in a stack of microscopy frames.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -config pipeline.yaml -profile\n", filepath.Base(os.Args[0]))
		fmt.Fprintf(os.Stderr, "  %s -input ./frames -model net.onnx -width 64 -height 64 -csv emitters.csv\n", filepath.Base(os.Args[0]))
	}
}
