// Package inference - batch orchestration from frame stacks to emitter
// collections.
package inference

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/smlm-ai/go-smlm/common"
	"github.com/smlm-ai/go-smlm/emitters"
	"github.com/smlm-ai/go-smlm/frames"
	"github.com/smlm-ai/go-smlm/models"
	"github.com/smlm-ai/go-smlm/postprocess"
	"github.com/smlm-ai/go-smlm/profiler"
	"github.com/smlm-ai/go-smlm/transforms"
)

// FrameError records one frame whose localization failed.
type FrameError struct {
	Frame int
	Err   error
}

func (e *FrameError) Error() string { return fmt.Sprintf("frame %d: %v", e.Frame, e.Err) }

// Unwrap exposes the underlying failure to errors.Is and errors.As.
func (e *FrameError) Unwrap() error { return e.Err }

// BatchResult is the outcome of processing one frame stack.
type BatchResult struct {
	// Emitters holds every detection from the frames that succeeded,
	// ordered by frame and row-major within a frame.
	Emitters *emitters.Set
	// Failures lists the frames that could not be processed, in frame
	// order. Frames aborted by context cancellation are not failures.
	Failures []FrameError
	// Frames is the number of frames scheduled before the batch finished
	// or was cancelled.
	Frames int
	// Detections is the total emitter count across all frames.
	Detections int
}

// Pipeline drives frames through the model and the extractor with a bounded
// worker pool. A Pipeline is immutable after Build and safe for concurrent
// Process calls as long as the model backend is.
type Pipeline struct {
	model     models.Model
	extractor *postprocess.Extractor
	workers   int
	prof      *profiler.Profiler
	log       *slog.Logger
}

// PipelineBuilder assembles a Pipeline with a fluent API. The first error
// sticks; later calls become no-ops and Build reports it.
type PipelineBuilder struct {
	model     models.Model
	extractor *postprocess.Extractor
	workers   int
	prof      *profiler.Profiler
	log       *slog.Logger
	err       error
}

// NewPipelineBuilder creates a builder with one worker per CPU.
//
// Returns:
//   - *PipelineBuilder: The pipeline builder.
func NewPipelineBuilder() *PipelineBuilder {
	return &PipelineBuilder{workers: runtime.NumCPU()}
}

// WithModel creates the model backend for the pipeline.
//
// Arguments:
//   - args: The model arguments.
//
// Returns:
//   - *PipelineBuilder: The pipeline builder.
func (b *PipelineBuilder) WithModel(args models.Args) *PipelineBuilder {
	if b.HasError() {
		return b
	}
	m, err := models.New(args)
	if err != nil {
		b.err = err
		return b
	}
	b.model = m
	return b
}

// WithExtractor creates the detection extractor for the pipeline.
//
// Arguments:
//   - cfg: Detection parameters.
//   - scaler: Channel scale constants.
//   - mapper: Pixel-to-absolute coordinate transform.
//
// Returns:
//   - *PipelineBuilder: The pipeline builder.
func (b *PipelineBuilder) WithExtractor(cfg postprocess.Config, scaler *transforms.ChannelScaler, mapper *transforms.CoordinateMapper) *PipelineBuilder {
	if b.HasError() {
		return b
	}
	ex, err := postprocess.NewExtractor(cfg, scaler, mapper)
	if err != nil {
		b.err = err
		return b
	}
	b.extractor = ex
	return b
}

// WithWorkers bounds the number of frames processed concurrently.
//
// Arguments:
//   - n: Worker count, at least 1.
//
// Returns:
//   - *PipelineBuilder: The pipeline builder.
func (b *PipelineBuilder) WithWorkers(n int) *PipelineBuilder {
	if b.HasError() {
		return b
	}
	if n < 1 {
		b.err = common.NewConfigError("workers", "must be at least 1, got %d", n)
		return b
	}
	b.workers = n
	return b
}

// WithProfiler attaches a profiler. Without one, timing is skipped.
func (b *PipelineBuilder) WithProfiler(p *profiler.Profiler) *PipelineBuilder {
	if b.HasError() {
		return b
	}
	b.prof = p
	return b
}

// WithLogger overrides the default logger.
func (b *PipelineBuilder) WithLogger(l *slog.Logger) *PipelineBuilder {
	if b.HasError() {
		return b
	}
	b.log = l
	return b
}

// HasError checks if the pipeline builder has errors.
//
// Returns:
//   - bool: True if there are errors, false otherwise.
func (b *PipelineBuilder) HasError() bool {
	return b.err != nil
}

// Build builds the pipeline.
//
// Returns:
//   - *Pipeline: The pipeline.
//   - error: The error if any.
func (b *PipelineBuilder) Build() (*Pipeline, error) {
	if b.HasError() {
		return nil, b.err
	}
	if b.model == nil {
		return nil, errors.New("model not configured")
	}
	if b.extractor == nil {
		return nil, errors.New("extractor not configured")
	}
	if b.model.InputWidth() != b.extractor.GridWidth() || b.model.InputHeight() != b.extractor.GridHeight() {
		return nil, common.NewShapeError("pipeline grid",
			[]int{b.model.InputHeight(), b.model.InputWidth()},
			[]int{b.extractor.GridHeight(), b.extractor.GridWidth()})
	}

	log := b.log
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		model:     b.model,
		extractor: b.extractor,
		workers:   b.workers,
		prof:      b.prof,
		log:       log,
	}, nil
}

// MustBuild builds the pipeline and panics if there is an error.
//
// Returns:
//   - *Pipeline: The pipeline.
func (b *PipelineBuilder) MustBuild() *Pipeline {
	p, err := b.Build()
	if err != nil {
		panic(err)
	}
	return p
}

// Process localizes every frame of the stack.
//
// Frames are dispatched to the worker pool in order; results are merged back
// in frame order regardless of completion order, so output is deterministic
// for a given input. A frame that fails does not stop its siblings; it is
// reported in BatchResult.Failures instead. Cancelling the context stops
// scheduling new frames and returns what has been computed, with ctx's error.
//
// Arguments:
//   - ctx: Cancellation control for the whole batch.
//   - stack: The frames to localize.
//
// Returns:
//   - *BatchResult: Detections and per-frame failures.
//   - error: The context error when cancelled, nil otherwise.
func (p *Pipeline) Process(ctx context.Context, stack *frames.Stack) (*BatchResult, error) {
	if stack == nil {
		return nil, common.NewConfigError("stack", "required")
	}
	n := stack.Frames()
	p.log.Info("processing stack",
		"frames", n, "width", stack.Width(), "height", stack.Height(), "workers", p.workers)
	stopBatch := p.prof.StartOperation("batch")
	defer stopBatch()

	perFrame := make([]*emitters.Set, n)
	perErr := make([]error, n)

	var g errgroup.Group
	g.SetLimit(p.workers)
	scheduled := 0
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		i := i
		scheduled++
		g.Go(func() error {
			// Failures land in perErr so one bad frame never cancels
			// its siblings.
			perFrame[i], perErr[i] = p.processFrame(ctx, stack.Frame(i))
			return nil
		})
	}
	_ = g.Wait()

	result := &BatchResult{Emitters: p.extractor.Empty(), Frames: scheduled}
	for i := 0; i < scheduled; i++ {
		if err := perErr[i]; err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			result.Failures = append(result.Failures, FrameError{Frame: i, Err: err})
			p.log.Warn("frame failed", "frame", i, "error", err)
			continue
		}
		// Every set shares the extractor's metadata, so a plain append
		// keeps Concat's semantics at linear cost.
		result.Emitters.Items = append(result.Emitters.Items, perFrame[i].Items...)
	}

	result.Detections = result.Emitters.Len()
	p.prof.Add("frames", int64(scheduled))
	p.prof.Add("detections", int64(result.Detections))
	p.log.Info("stack processed",
		"frames", scheduled, "detections", result.Detections, "failures", len(result.Failures))
	return result, ctx.Err()
}

// processFrame runs one frame through inference and extraction.
func (p *Pipeline) processFrame(ctx context.Context, frame frames.Frame) (*emitters.Set, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stopInfer := p.prof.StartOperation("infer")
	bundle, err := p.model.Infer(ctx, frame)
	stopInfer()
	if err != nil {
		return nil, errors.Wrap(err, "inference")
	}

	stopExtract := p.prof.StartOperation("extract")
	set, err := p.extractor.Extract(frame.Index, bundle)
	stopExtract()
	if err != nil {
		return nil, errors.Wrap(err, "extraction")
	}
	return set, nil
}

// Close releases the model backend.
func (p *Pipeline) Close() error {
	return p.model.Close()
}
