package models

import (
	"context"
	"fmt"

	"github.com/smlm-ai/go-smlm/frames"
)

// Kind is the unique identifier of a model backend.
type Kind string

const (
	// KindONNX runs a trained network through ONNX Runtime.
	KindONNX Kind = "onnx"
	// KindReplay serves pre-computed bundles by frame index.
	KindReplay Kind = "replay"
)

// Model produces one channel tensor bundle per input frame.
//
// Implementations are safe for concurrent Infer calls; the returned bundle is
// owned by the caller and independent of backend state.
type Model interface {
	// Infer runs the model on a single frame.
	Infer(ctx context.Context, frame frames.Frame) (*Bundle, error)
	// InputWidth returns the pixel columns the model expects.
	InputWidth() int
	// InputHeight returns the pixel rows the model expects.
	InputHeight() int
	// Close releases backend resources.
	Close() error
}

// Args is the configuration for creating a model through New.
type Args struct {
	// Kind selects the backend.
	Kind Kind `json:"kind" yaml:"kind"`
	// Path is the ONNX model file (onnx backend).
	Path string `json:"path" yaml:"path"`
	// Library overrides the ONNX Runtime shared library location. Empty
	// selects the per-platform default.
	Library string `json:"library" yaml:"library"`
	// Width and Height fix the input grid.
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
	// InputName and OutputName are the graph node names. Empty selects the
	// exporter defaults.
	InputName  string `json:"input_name" yaml:"input_name"`
	OutputName string `json:"output_name" yaml:"output_name"`
	// IntraOpThreads and InterOpThreads bound ONNX Runtime parallelism.
	// Zero lets the runtime decide.
	IntraOpThreads int `json:"intra_op_threads" yaml:"intra_op_threads"`
	InterOpThreads int `json:"inter_op_threads" yaml:"inter_op_threads"`
	// Bundles seeds the replay backend, indexed by frame.
	Bundles []*Bundle `json:"-" yaml:"-"`
}

// New creates a model backend from its configuration.
//
// Arguments:
//   - args: Backend selection and settings.
//
// Returns:
//   - Model: The configured backend.
//   - error: An error if the kind is unsupported or construction fails.
func New(args Args) (Model, error) {
	switch args.Kind {
	case KindONNX:
		return NewONNXModel(args)
	case KindReplay:
		return NewReplayModel(args.Bundles)
	default:
		return nil, fmt.Errorf("unsupported model kind: %q", args.Kind)
	}
}
