package models

import (
	"gorgonia.org/tensor"

	"github.com/smlm-ai/go-smlm/common"
)

// Bundle is the raw model output for one frame: a dense float32 tensor of
// shape (NumChannels, height, width) whose planes follow ChannelOrder.
//
// Bundles are created per inference call and discarded once converted to
// emitters; nothing mutates a bundle after construction.
type Bundle struct {
	t      *tensor.Dense
	height int
	width  int
}

// NewBundle allocates a zeroed bundle for the given grid.
//
// Arguments:
//   - height: Pixel rows per plane.
//   - width: Pixel columns per plane.
//
// Returns:
//   - *Bundle: The zeroed bundle.
//   - error: ConfigError if the grid is degenerate.
func NewBundle(height, width int) (*Bundle, error) {
	if height <= 0 || width <= 0 {
		return nil, common.NewConfigError("bundle", "grid %dx%d must be positive", height, width)
	}
	t := tensor.New(
		tensor.WithShape(NumChannels, height, width),
		tensor.WithBacking(make([]float32, NumChannels*height*width)),
	)
	return &Bundle{t: t, height: height, width: width}, nil
}

// BundleFromTensor wraps a dense tensor as a bundle.
//
// The tensor is adopted, not copied.
//
// Arguments:
//   - t: A float32 tensor of shape (NumChannels, height, width).
//
// Returns:
//   - *Bundle: The bundle view.
//   - error: ShapeError if the rank, channel count, or dtype disagree.
func BundleFromTensor(t *tensor.Dense) (*Bundle, error) {
	shape := t.Shape()
	if len(shape) != 3 || shape[0] != NumChannels {
		return nil, common.NewShapeError("bundle tensor", shape, []int{NumChannels, -1, -1})
	}
	if _, ok := t.Data().([]float32); !ok {
		return nil, common.NewConfigError("bundle tensor", "dtype %v, want float32", t.Dtype())
	}
	return &Bundle{t: t, height: shape[1], width: shape[2]}, nil
}

// BundleFromPlanes assembles a bundle from named per-channel planes, copying
// each plane into place. Missing channels stay zero.
//
// Arguments:
//   - height: Pixel rows per plane.
//   - width: Pixel columns per plane.
//   - planes: Row-major planes keyed by channel.
//
// Returns:
//   - *Bundle: The assembled bundle.
//   - error: ConfigError for an unknown channel, ShapeError for a plane whose
//     length does not match the grid.
func BundleFromPlanes(height, width int, planes map[Channel][]float32) (*Bundle, error) {
	b, err := NewBundle(height, width)
	if err != nil {
		return nil, err
	}
	for _, ch := range ChannelOrder {
		plane, ok := planes[ch]
		if !ok {
			continue
		}
		if len(plane) != height*width {
			return nil, common.NewShapeError("bundle plane "+string(ch), []int{len(plane)}, []int{height * width})
		}
		copy(b.Plane(ch), plane)
	}
	for ch := range planes {
		if ch.Index() < 0 {
			return nil, common.NewConfigError("bundle plane", "unknown channel %q", ch)
		}
	}
	return b, nil
}

// Height returns the pixel rows per plane.
func (b *Bundle) Height() int { return b.height }

// Width returns the pixel columns per plane.
func (b *Bundle) Width() int { return b.width }

// Tensor returns the backing tensor.
func (b *Bundle) Tensor() *tensor.Dense { return b.t }

// Plane returns the row-major float32 plane of the given channel as a view
// into the backing tensor. The channel must be one of ChannelOrder.
func (b *Bundle) Plane(ch Channel) []float32 {
	idx := ch.Index()
	plane := b.height * b.width
	return b.t.Data().([]float32)[idx*plane : (idx+1)*plane]
}

// At returns the value of channel ch at row y, column x.
func (b *Bundle) At(ch Channel, y, x int) float32 {
	return b.Plane(ch)[y*b.width+x]
}

// Set writes the value of channel ch at row y, column x. It exists for
// fixture construction; production bundles are written by the backends.
func (b *Bundle) Set(ch Channel, y, x int, v float32) {
	b.Plane(ch)[y*b.width+x] = v
}
