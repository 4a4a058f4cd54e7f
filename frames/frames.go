// Package frames - camera frame stacks and the float32 plane format consumed
// by the localization model.
package frames

import (
	"github.com/smlm-ai/go-smlm/common"
)

// Frame is a single grayscale intensity plane, row-major.
//
// Data holds Width*Height values scanned row by row; Data[y*Width+x] is the
// intensity at column x of row y. Index is the frame's position in its stack
// and doubles as the frame id carried by detections.
type Frame struct {
	// Index is the frame's position within its stack.
	Index int
	// Width is the number of pixel columns.
	Width int
	// Height is the number of pixel rows.
	Height int
	// Data is the row-major intensity plane.
	Data []float32
}

// At returns the intensity at column x of row y.
func (f Frame) At(y, x int) float32 {
	return f.Data[y*f.Width+x]
}

// MinMax returns the smallest and largest intensity of the frame. Both are
// zero for an empty plane.
func (f Frame) MinMax() (float32, float32) {
	if len(f.Data) == 0 {
		return 0, 0
	}
	lo, hi := f.Data[0], f.Data[0]
	for _, v := range f.Data[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// Stack is an immutable frame-indexed collection of equally sized planes.
//
// The backing array is contiguous (frame-major), so Frame views are cheap
// subslices rather than copies.
type Stack struct {
	frames int
	width  int
	height int
	data   []float32
}

// NewStack allocates a zeroed stack of the given dimensions.
//
// Arguments:
//   - frames: Number of frames.
//   - width: Pixel columns per frame.
//   - height: Pixel rows per frame.
//
// Returns:
//   - *Stack: The zeroed stack.
//   - error: ConfigError if any dimension is non-positive.
func NewStack(frames, width, height int) (*Stack, error) {
	if frames <= 0 || width <= 0 || height <= 0 {
		return nil, common.NewConfigError("stack", "dimensions %dx%dx%d must be positive", frames, height, width)
	}
	return &Stack{
		frames: frames,
		width:  width,
		height: height,
		data:   make([]float32, frames*width*height),
	}, nil
}

// StackFromData wraps an existing frame-major backing slice.
//
// The slice is adopted, not copied; the caller must not mutate it afterwards.
//
// Arguments:
//   - frames: Number of frames.
//   - width: Pixel columns per frame.
//   - height: Pixel rows per frame.
//   - data: Backing slice of length frames*height*width.
//
// Returns:
//   - *Stack: The stack view over data.
//   - error: ShapeError if the backing length does not match the dimensions.
func StackFromData(frames, width, height int, data []float32) (*Stack, error) {
	if frames <= 0 || width <= 0 || height <= 0 {
		return nil, common.NewConfigError("stack", "dimensions %dx%dx%d must be positive", frames, height, width)
	}
	if len(data) != frames*width*height {
		return nil, common.NewShapeError("stack backing", []int{len(data)}, []int{frames * height * width})
	}
	return &Stack{frames: frames, width: width, height: height, data: data}, nil
}

// StackFromFrames assembles a stack from individual frames, copying each
// plane. All frames must share the same dimensions.
//
// Arguments:
//   - planes: The frames in stack order.
//
// Returns:
//   - *Stack: The assembled stack; frame i of the stack is planes[i].
//   - error: ShapeError if a frame's dimensions or backing length disagree.
func StackFromFrames(planes []Frame) (*Stack, error) {
	if len(planes) == 0 {
		return nil, common.NewConfigError("stack", "at least one frame required")
	}
	w, h := planes[0].Width, planes[0].Height
	s, err := NewStack(len(planes), w, h)
	if err != nil {
		return nil, err
	}
	for i, p := range planes {
		if p.Width != w || p.Height != h {
			return nil, common.NewShapeError("stack frame", []int{p.Height, p.Width}, []int{h, w})
		}
		if len(p.Data) != w*h {
			return nil, common.NewShapeError("stack frame backing", []int{len(p.Data)}, []int{h * w})
		}
		copy(s.data[i*w*h:(i+1)*w*h], p.Data)
	}
	return s, nil
}

// Frames returns the number of frames in the stack.
func (s *Stack) Frames() int { return s.frames }

// Width returns the pixel columns per frame.
func (s *Stack) Width() int { return s.width }

// Height returns the pixel rows per frame.
func (s *Stack) Height() int { return s.height }

// Frame returns a view of frame i without copying. i must lie in [0, Frames()).
func (s *Stack) Frame(i int) Frame {
	plane := s.width * s.height
	return Frame{
		Index:  i,
		Width:  s.width,
		Height: s.height,
		Data:   s.data[i*plane : (i+1)*plane],
	}
}
