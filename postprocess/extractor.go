// Package postprocess collapses dense per-pixel model output into sparse
// emitter collections.
package postprocess

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/smlm-ai/go-smlm/common"
	"github.com/smlm-ai/go-smlm/emitters"
	"github.com/smlm-ai/go-smlm/models"
	"github.com/smlm-ai/go-smlm/transforms"
)

// Config holds the detection parameters.
type Config struct {
	// RawThreshold is the minimum per-pixel probability for a pixel to
	// become a detection candidate, in (0, 1].
	RawThreshold float32 `json:"raw_th" yaml:"raw_th"`
	// AggregationRadius is the neighborhood radius, in pixels, over which
	// probability mass is summed into a candidate's confidence. Zero uses
	// the pixel's own probability.
	AggregationRadius int `json:"aggregation_radius" yaml:"aggregation_radius"`
	// SuppressionRadius is the Chebyshev radius, in pixels, within which a
	// weaker candidate is discarded in favor of an accepted one.
	SuppressionRadius int `json:"suppression_radius" yaml:"suppression_radius"`
	// Unit is the coordinate space of extracted positions.
	Unit common.Unit `json:"unit" yaml:"unit"`
	// PixelSize is the physical pitch (nm per pixel) along x and y.
	// Required when Unit is physical, otherwise informational.
	PixelSize [2]float32 `json:"pixel_size" yaml:"pixel_size"`
}

// DefaultConfig returns the standard detection parameters: threshold 0.1,
// 3x3 aggregation, 8-connected suppression, pixel coordinates.
func DefaultConfig() Config {
	return Config{
		RawThreshold:      0.1,
		AggregationRadius: 1,
		SuppressionRadius: 1,
		Unit:              common.UnitPixel,
	}
}

// Validate checks the parameters against their documented domains.
func (c Config) Validate() error {
	if c.RawThreshold <= 0 || c.RawThreshold > 1 {
		return common.NewRangeError("raw_threshold", float64(c.RawThreshold), 0, 1)
	}
	if c.AggregationRadius < 0 {
		return common.NewConfigError("aggregation_radius", "must be non-negative, got %d", c.AggregationRadius)
	}
	if c.SuppressionRadius < 0 {
		return common.NewConfigError("suppression_radius", "must be non-negative, got %d", c.SuppressionRadius)
	}
	if !c.Unit.Valid() {
		return common.NewConfigError("unit", "unknown unit %q", c.Unit)
	}
	if c.Unit == common.UnitNanometer && (c.PixelSize[0] <= 0 || c.PixelSize[1] <= 0) {
		return common.NewConfigError("pixel_size", "required for physical units")
	}
	return nil
}

// regressionSpecs caches the per-channel scale constants so extraction never
// touches the scaler's error paths in the pixel loop.
type regressionSpecs struct {
	photons transforms.ScaleSpec
	offsetX transforms.ScaleSpec
	offsetY transforms.ScaleSpec
	offsetZ transforms.ScaleSpec
	sigmaX  transforms.ScaleSpec
	sigmaY  transforms.ScaleSpec
	sigmaZ  transforms.ScaleSpec
}

// Extractor turns one channel tensor bundle into the distinct emitters it
// encodes. The stages are fixed: threshold, aggregate, suppress, transform.
//
// An Extractor is immutable after construction and safe for concurrent use.
type Extractor struct {
	cfg    Config
	mapper *transforms.CoordinateMapper
	spec   regressionSpecs
}

// NewExtractor builds an extractor for one pixel grid.
//
// Arguments:
//   - cfg: Detection parameters.
//   - scaler: Channel scale constants; must cover every regression channel.
//   - mapper: Pixel-to-absolute coordinate transform; fixes the grid shape.
//
// Returns:
//   - *Extractor: The ready extractor.
//   - error: Validation failure of any argument.
func NewExtractor(cfg Config, scaler *transforms.ChannelScaler, mapper *transforms.CoordinateMapper) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if scaler == nil {
		return nil, common.NewConfigError("scaler", "required")
	}
	if mapper == nil {
		return nil, common.NewConfigError("mapper", "required")
	}

	var spec regressionSpecs
	targets := map[models.Channel]*transforms.ScaleSpec{
		models.ChannelPhotons: &spec.photons,
		models.ChannelOffsetX: &spec.offsetX,
		models.ChannelOffsetY: &spec.offsetY,
		models.ChannelOffsetZ: &spec.offsetZ,
		models.ChannelSigmaX:  &spec.sigmaX,
		models.ChannelSigmaY:  &spec.sigmaY,
		models.ChannelSigmaZ:  &spec.sigmaZ,
	}
	for _, ch := range models.RegressionChannels {
		s, err := scaler.Spec(ch)
		if err != nil {
			return nil, errors.Wrapf(err, "scaler must cover channel %q", ch)
		}
		*targets[ch] = s
	}

	return &Extractor{cfg: cfg, mapper: mapper, spec: spec}, nil
}

// Config returns the detection parameters the extractor was built with.
func (e *Extractor) Config() Config { return e.cfg }

// GridWidth returns the expected bundle width in pixels.
func (e *Extractor) GridWidth() int { return e.mapper.GridWidth() }

// GridHeight returns the expected bundle height in pixels.
func (e *Extractor) GridHeight() int { return e.mapper.GridHeight() }

// Empty returns a fresh zero-length collection carrying the extractor's
// coordinate metadata. Batch results grow from this seed so even an all-quiet
// stack yields a well-formed collection.
func (e *Extractor) Empty() *emitters.Set {
	return &emitters.Set{
		Items:     make([]emitters.Emitter, 0),
		Unit:      e.cfg.Unit,
		PixelSize: e.cfg.PixelSize,
		Extent:    e.mapper.Extent(),
	}
}

// candidate is a thresholded pixel competing for acceptance.
type candidate struct {
	idx   int     // row-major pixel index
	score float32 // aggregated, capped probability
}

// Extract converts one bundle into the emitters it encodes.
//
// Pixels at or above the raw threshold become candidates scored by the
// probability mass of their neighborhood, capped at 1. Candidates are
// accepted in descending score order unless an accepted candidate already
// sits within the suppression radius. Accepted pixels are mapped through the
// scale constants and the coordinate transform; the output is ordered
// row-major by pixel.
//
// Arguments:
//   - frameID: Frame id stamped on every extracted emitter.
//   - bundle: Model output; its grid must match the extractor's.
//
// Returns:
//   - *emitters.Set: The detections, possibly empty.
//   - error: ShapeError when the bundle grid disagrees with the mapper.
func (e *Extractor) Extract(frameID int, bundle *models.Bundle) (*emitters.Set, error) {
	if bundle == nil {
		return nil, common.NewConfigError("bundle", "required")
	}
	w, h := e.mapper.GridWidth(), e.mapper.GridHeight()
	if bundle.Width() != w || bundle.Height() != h {
		return nil, common.NewShapeError("bundle grid",
			[]int{bundle.Height(), bundle.Width()}, []int{h, w})
	}

	prob := bundle.Plane(models.ChannelProbability)
	cands := e.rank(prob, w, h)
	accepted := e.suppress(cands, w, h)

	set := e.Empty()
	if len(accepted) == 0 {
		return set, nil
	}
	sort.Slice(accepted, func(i, j int) bool { return accepted[i].idx < accepted[j].idx })

	phot := bundle.Plane(models.ChannelPhotons)
	dx := bundle.Plane(models.ChannelOffsetX)
	dy := bundle.Plane(models.ChannelOffsetY)
	dz := bundle.Plane(models.ChannelOffsetZ)
	sx := bundle.Plane(models.ChannelSigmaX)
	sy := bundle.Plane(models.ChannelSigmaY)
	sz := bundle.Plane(models.ChannelSigmaZ)

	items := make([]emitters.Emitter, 0, len(accepted))
	for _, c := range accepted {
		y, x := c.idx/w, c.idx%w
		absX, err := e.mapper.AbsoluteX(x, e.spec.offsetX.Apply(dx[c.idx]))
		if err != nil {
			return nil, err
		}
		absY, err := e.mapper.AbsoluteY(y, e.spec.offsetY.Apply(dy[c.idx]))
		if err != nil {
			return nil, err
		}
		photons := e.spec.photons.Apply(phot[c.idx])
		if photons < 0 {
			photons = 0
		}
		items = append(items, emitters.Emitter{
			ID:          -1,
			FrameID:     frameID,
			XYZ:         [3]float32{absX, absY, e.spec.offsetZ.Apply(dz[c.idx])},
			Photons:     photons,
			Probability: c.score,
			SigmaXYZ: [3]float32{
				e.spec.sigmaX.Apply(sx[c.idx]),
				e.spec.sigmaY.Apply(sy[c.idx]),
				e.spec.sigmaZ.Apply(sz[c.idx]),
			},
		})
	}
	set.Items = items
	return set, nil
}

// rank collects the thresholded pixels and orders them by aggregated score.
// The stable sort keeps row-major scan order between equal scores, so the
// ranking is fully deterministic.
func (e *Extractor) rank(prob []float32, w, h int) []candidate {
	cands := make([]candidate, 0, 64)
	for idx, p := range prob {
		if p < e.cfg.RawThreshold {
			continue
		}
		cands = append(cands, candidate{idx: idx, score: e.aggregate(prob, w, h, idx)})
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })
	return cands
}

// aggregate sums the probability mass around a pixel, window clipped to the
// frame, capped at 1.
func (e *Extractor) aggregate(prob []float32, w, h, idx int) float32 {
	r := e.cfg.AggregationRadius
	y, x := idx/w, idx%w
	var sum float32
	for yy := max(y-r, 0); yy <= min(y+r, h-1); yy++ {
		for xx := max(x-r, 0); xx <= min(x+r, w-1); xx++ {
			sum += prob[yy*w+xx]
		}
	}
	if sum > 1 {
		sum = 1
	}
	return sum
}

// suppress greedily accepts candidates in rank order, discarding any within
// the suppression radius of an earlier acceptance.
func (e *Extractor) suppress(cands []candidate, w, h int) []candidate {
	taken := make([]bool, w*h)
	accepted := make([]candidate, 0, len(cands))
	for _, c := range cands {
		if e.blocked(taken, w, h, c.idx) {
			continue
		}
		taken[c.idx] = true
		accepted = append(accepted, c)
	}
	return accepted
}

// blocked reports whether an accepted pixel lies within the suppression
// radius of the given pixel.
func (e *Extractor) blocked(taken []bool, w, h, idx int) bool {
	r := e.cfg.SuppressionRadius
	y, x := idx/w, idx%w
	for yy := max(y-r, 0); yy <= min(y+r, h-1); yy++ {
		for xx := max(x-r, 0); xx <= min(x+r, w-1); xx++ {
			if taken[yy*w+xx] {
				return true
			}
		}
	}
	return false
}
