package models

import (
	"context"
	"os"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"

	"github.com/smlm-ai/go-smlm/common"
	"github.com/smlm-ai/go-smlm/frames"
)

const (
	defaultInputName  = "frame"
	defaultOutputName = "output"
)

var (
	ortOnce    sync.Once
	ortInitErr error
)

// initRuntime loads the ONNX Runtime shared library and initializes the
// environment. Required once per process; later calls return the first result.
func initRuntime(library string) error {
	ortOnce.Do(func() {
		if library == "" {
			library = defaultLibraryPath()
		}
		if _, err := os.Stat(library); err != nil {
			ortInitErr = errors.Wrapf(err, "onnxruntime shared library not found at %s", library)
			return
		}
		ort.SetSharedLibraryPath(library)
		if err := ort.InitializeEnvironment(); err != nil {
			ortInitErr = errors.Wrap(err, "initializing onnxruntime environment")
		}
	})
	return ortInitErr
}

// defaultLibraryPath returns the shared library location for the current
// platform, relative to the working directory.
func defaultLibraryPath() string {
	if runtime.GOOS == "darwin" {
		return "./third_party/libonnxruntime.dylib"
	}
	if runtime.GOOS == "windows" {
		return "./third_party/onnxruntime.dll"
	}
	if runtime.GOARCH == "arm64" {
		return "./third_party/onnxruntime_arm64.so"
	}
	return "./third_party/onnxruntime.so"
}

// ONNXModel runs a trained localization network through ONNX Runtime.
//
// The session is created with preallocated input (1,1,H,W) and output
// (1,NumChannels,H,W) tensors; the native buffers are shared between calls,
// so Run is serialized by an internal mutex. Bundles returned by Infer copy
// the output buffer and stay valid after Close.
type ONNXModel struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	width   int
	height  int
	mu      sync.Mutex
}

// NewONNXModel creates an ONNX Runtime session for the given model file.
//
// Arguments:
//   - args: Model path, grid size, and runtime settings.
//
// Returns:
//   - *ONNXModel: The ready backend.
//   - error: An error if the runtime, tensors, or session cannot be created.
func NewONNXModel(args Args) (*ONNXModel, error) {
	if args.Width <= 0 || args.Height <= 0 {
		return nil, common.NewConfigError("model", "input grid %dx%d must be positive", args.Height, args.Width)
	}
	if args.Path == "" {
		return nil, common.NewConfigError("model.path", "onnx model file required")
	}
	if err := initRuntime(args.Library); err != nil {
		return nil, err
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1, int64(args.Height), int64(args.Width)))
	if err != nil {
		return nil, errors.Wrap(err, "creating input tensor")
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, NumChannels, int64(args.Height), int64(args.Width)))
	if err != nil {
		input.Destroy()
		return nil, errors.Wrap(err, "creating output tensor")
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrap(err, "creating session options")
	}
	defer options.Destroy()
	options.SetIntraOpNumThreads(args.IntraOpThreads)
	options.SetInterOpNumThreads(args.InterOpThreads)
	options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended)

	inputName := args.InputName
	if inputName == "" {
		inputName = defaultInputName
	}
	outputName := args.OutputName
	if outputName == "" {
		outputName = defaultOutputName
	}

	session, err := ort.NewAdvancedSession(
		args.Path,
		[]string{inputName},
		[]string{outputName},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrapf(err, "creating session for %s", args.Path)
	}

	return &ONNXModel{
		session: session,
		input:   input,
		output:  output,
		width:   args.Width,
		height:  args.Height,
	}, nil
}

// InputWidth returns the pixel columns the session was built for.
func (m *ONNXModel) InputWidth() int { return m.width }

// InputHeight returns the pixel rows the session was built for.
func (m *ONNXModel) InputHeight() int { return m.height }

// Infer runs the network on one frame and returns its channel bundle.
//
// Arguments:
//   - ctx: Cancellation check before the (non-interruptible) native run.
//   - frame: The input plane; must match the session grid.
//
// Returns:
//   - *Bundle: A copy of the output planes.
//   - error: ShapeError on a grid mismatch, or the wrapped runtime error.
func (m *ONNXModel) Infer(ctx context.Context, frame frames.Frame) (*Bundle, error) {
	if frame.Width != m.width || frame.Height != m.height {
		return nil, common.NewShapeError("model input", []int{frame.Height, frame.Width}, []int{m.height, m.width})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	copy(m.input.GetData(), frame.Data)
	if err := m.session.Run(); err != nil {
		return nil, errors.Wrapf(err, "running inference on frame %d", frame.Index)
	}

	out := m.output.GetData()
	backing := make([]float32, len(out))
	copy(backing, out)
	return BundleFromTensor(tensor.New(
		tensor.WithShape(NumChannels, m.height, m.width),
		tensor.WithBacking(backing),
	))
}

// Close destroys the session and its preallocated tensors.
func (m *ONNXModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.input != nil {
		m.input.Destroy()
		m.input = nil
	}
	if m.output != nil {
		m.output.Destroy()
		m.output = nil
	}
	if m.session != nil {
		if err := m.session.Destroy(); err != nil {
			return errors.Wrap(err, "destroying session")
		}
		m.session = nil
	}
	return nil
}
