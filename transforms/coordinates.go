package transforms

import (
	"github.com/chewxy/math32"

	"github.com/smlm-ai/go-smlm/common"
)

// Extent is the absolute coordinate bounds spanned by a frame's pixel grid.
type Extent struct {
	MinX float32 `json:"min_x" yaml:"min_x"`
	MaxX float32 `json:"max_x" yaml:"max_x"`
	MinY float32 `json:"min_y" yaml:"min_y"`
	MaxY float32 `json:"max_y" yaml:"max_y"`
}

// SpanX returns the extent width along x.
func (e Extent) SpanX() float32 { return e.MaxX - e.MinX }

// SpanY returns the extent height along y.
func (e Extent) SpanY() float32 { return e.MaxY - e.MinY }

// Scale returns the extent with both axes multiplied by per-axis factors.
func (e Extent) Scale(fx, fy float32) Extent {
	return Extent{MinX: e.MinX * fx, MaxX: e.MaxX * fx, MinY: e.MinY * fy, MaxY: e.MaxY * fy}
}

// PixelExtent returns the pixel-unit extent of a width x height grid.
//
// The bounds run from -0.5 to n-0.5 on each axis so the pixel pitch is
// exactly 1 and the center of pixel i sits at absolute coordinate i.
func PixelExtent(width, height int) Extent {
	return Extent{
		MinX: -0.5, MaxX: float32(width) - 0.5,
		MinY: -0.5, MaxY: float32(height) - 0.5,
	}
}

// CoordinateMapper converts between (pixel index, sub-pixel offset) pairs and
// absolute coordinates under a declared frame extent.
//
// Forward: absolute = min + (index + 0.5 + offset) * pitch, with
// pitch = (max - min) / pixels. Rectangular grids carry independent pitches
// per axis. Offsets are the network's native prediction format and live in
// [-0.5, 0.5); the absolute domain is the half-open box [min, max) per axis.
type CoordinateMapper struct {
	extent Extent
	gridW  int
	gridH  int
	pitchX float32
	pitchY float32
}

// NewCoordinateMapper creates a mapper for a grid under an extent.
//
// Arguments:
//   - extent: The absolute bounds of the grid.
//   - gridW: Pixel columns.
//   - gridH: Pixel rows.
//
// Returns:
//   - *CoordinateMapper: The mapper.
//   - error: ConfigError on a degenerate extent or non-positive grid.
func NewCoordinateMapper(extent Extent, gridW, gridH int) (*CoordinateMapper, error) {
	if gridW <= 0 || gridH <= 0 {
		return nil, common.NewConfigError("mapper", "grid %dx%d must be positive", gridH, gridW)
	}
	if extent.SpanX() <= 0 || extent.SpanY() <= 0 {
		return nil, common.NewConfigError("mapper", "extent spans (%g, %g) must be positive", extent.SpanX(), extent.SpanY())
	}
	return &CoordinateMapper{
		extent: extent,
		gridW:  gridW,
		gridH:  gridH,
		pitchX: extent.SpanX() / float32(gridW),
		pitchY: extent.SpanY() / float32(gridH),
	}, nil
}

// Extent returns the declared absolute bounds.
func (m *CoordinateMapper) Extent() Extent { return m.extent }

// GridWidth returns the pixel columns of the grid.
func (m *CoordinateMapper) GridWidth() int { return m.gridW }

// GridHeight returns the pixel rows of the grid.
func (m *CoordinateMapper) GridHeight() int { return m.gridH }

// PitchX returns the absolute width of one pixel.
func (m *CoordinateMapper) PitchX() float32 { return m.pitchX }

// PitchY returns the absolute height of one pixel.
func (m *CoordinateMapper) PitchY() float32 { return m.pitchY }

// AbsoluteX maps a column index plus sub-pixel offset to an absolute x.
//
// Arguments:
//   - ix: Column index.
//   - offset: Sub-pixel displacement from the pixel center, in [-0.5, 0.5).
//
// Returns:
//   - float32: The absolute coordinate.
//   - error: RangeError if ix lies outside [0, GridWidth()).
func (m *CoordinateMapper) AbsoluteX(ix int, offset float32) (float32, error) {
	if ix < 0 || ix >= m.gridW {
		return 0, common.NewRangeError("pixel index x", float64(ix), 0, float64(m.gridW-1))
	}
	return m.extent.MinX + (float32(ix)+0.5+offset)*m.pitchX, nil
}

// AbsoluteY maps a row index plus sub-pixel offset to an absolute y.
func (m *CoordinateMapper) AbsoluteY(iy int, offset float32) (float32, error) {
	if iy < 0 || iy >= m.gridH {
		return 0, common.NewRangeError("pixel index y", float64(iy), 0, float64(m.gridH-1))
	}
	return m.extent.MinY + (float32(iy)+0.5+offset)*m.pitchY, nil
}

// RelativeX projects an absolute x back onto the grid.
//
// Arguments:
//   - abs: The absolute coordinate; must lie in [MinX, MaxX).
//
// Returns:
//   - int: The column index.
//   - float32: The sub-pixel offset in [-0.5, 0.5).
//   - error: RangeError if abs lies outside the extent.
func (m *CoordinateMapper) RelativeX(abs float32) (int, float32, error) {
	if abs < m.extent.MinX || abs >= m.extent.MaxX {
		return 0, 0, common.NewRangeError("absolute x", float64(abs), float64(m.extent.MinX), float64(m.extent.MaxX))
	}
	cont := (abs-m.extent.MinX)/m.pitchX - 0.5
	ix := int(math32.Floor(cont + 0.5))
	if ix >= m.gridW {
		ix = m.gridW - 1
	}
	return ix, cont - float32(ix), nil
}

// RelativeY projects an absolute y back onto the grid.
func (m *CoordinateMapper) RelativeY(abs float32) (int, float32, error) {
	if abs < m.extent.MinY || abs >= m.extent.MaxY {
		return 0, 0, common.NewRangeError("absolute y", float64(abs), float64(m.extent.MinY), float64(m.extent.MaxY))
	}
	cont := (abs-m.extent.MinY)/m.pitchY - 0.5
	iy := int(math32.Floor(cont + 0.5))
	if iy >= m.gridH {
		iy = m.gridH - 1
	}
	return iy, cont - float32(iy), nil
}
