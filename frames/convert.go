package frames

import (
	"image"

	"github.com/nfnt/resize"

	"github.com/smlm-ai/go-smlm/common"
)

// FromImage converts a decoded image into a float32 intensity plane.
//
// 16-bit grayscale sources (the usual microscopy TIFF payload) are read at
// full depth; everything else goes through the standard 16-bit luminance
// conversion. Values are raw camera counts, not normalized.
//
// Arguments:
//   - img: The decoded image.
//   - index: The frame index to stamp on the result.
//
// Returns:
//   - Frame: The converted intensity plane.
func FromImage(img image.Image, index int) Frame {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	data := make([]float32, w*h)

	switch src := img.(type) {
	case *image.Gray16:
		for y := 0; y < h; y++ {
			row := src.Pix[y*src.Stride:]
			for x := 0; x < w; x++ {
				data[y*w+x] = float32(uint16(row[2*x])<<8 | uint16(row[2*x+1]))
			}
		}
	case *image.Gray:
		for y := 0; y < h; y++ {
			row := src.Pix[y*src.Stride:]
			for x := 0; x < w; x++ {
				data[y*w+x] = float32(row[x])
			}
		}
	default:
		i := 0
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				r, g, b, _ := img.At(x, y).RGBA()
				data[i] = 0.299*float32(r) + 0.587*float32(g) + 0.114*float32(b)
				i++
			}
		}
	}

	return Frame{Index: index, Width: w, Height: h, Data: data}
}

// FromImages converts a decoded image sequence into a stack, preserving order.
//
// Arguments:
//   - imgs: The decoded images in frame order.
//
// Returns:
//   - *Stack: The assembled stack.
//   - error: ShapeError if the images disagree in size.
func FromImages(imgs []image.Image) (*Stack, error) {
	if len(imgs) == 0 {
		return nil, common.NewConfigError("stack", "at least one frame required")
	}
	planes := make([]Frame, len(imgs))
	for i, img := range imgs {
		planes[i] = FromImage(img, i)
	}
	return StackFromFrames(planes)
}

// ToGray16 renders the frame back into a 16-bit grayscale image, clamping
// intensities to the uint16 range. Intended for raw camera counts.
func (f Frame) ToGray16() *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			v := f.Data[y*f.Width+x]
			if v < 0 {
				v = 0
			}
			if v > 65535 {
				v = 65535
			}
			u := uint16(v)
			off := y*img.Stride + 2*x
			img.Pix[off] = uint8(u >> 8)
			img.Pix[off+1] = uint8(u)
		}
	}
	return img
}

// Rescale resamples a frame to the given grid using Lanczos3.
//
// Arguments:
//   - f: The frame to resample.
//   - width: Target pixel columns.
//   - height: Target pixel rows.
//
// Returns:
//   - Frame: The resampled frame, keeping f's index.
func Rescale(f Frame, width, height int) Frame {
	if f.Width == width && f.Height == height {
		cp := make([]float32, len(f.Data))
		copy(cp, f.Data)
		return Frame{Index: f.Index, Width: width, Height: height, Data: cp}
	}
	resized := resize.Resize(uint(width), uint(height), f.ToGray16(), resize.Lanczos3)
	out := FromImage(resized, f.Index)
	return out
}

// RescaleStack resamples every frame of a stack to the given grid.
//
// Arguments:
//   - s: The source stack.
//   - width: Target pixel columns.
//   - height: Target pixel rows.
//
// Returns:
//   - *Stack: A new stack on the target grid.
//   - error: Propagated stack assembly error.
func RescaleStack(s *Stack, width, height int) (*Stack, error) {
	planes := make([]Frame, s.Frames())
	for i := 0; i < s.Frames(); i++ {
		planes[i] = Rescale(s.Frame(i), width, height)
	}
	return StackFromFrames(planes)
}
