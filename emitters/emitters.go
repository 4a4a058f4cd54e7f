// Package emitters - collections of localized point sources and their
// filtering, combination, and persistence operations.
package emitters

import (
	"sort"

	"github.com/chewxy/math32"

	"github.com/smlm-ai/go-smlm/common"
	"github.com/smlm-ai/go-smlm/transforms"
)

// Emitter is a single detected point source.
//
// Attributes describe one physical event; an emitter is never mutated after
// creation. Positions and sigmas are expressed in the unit carried by the
// collection, not by the emitter itself.
type Emitter struct {
	// ID is an optional external identity; -1 when unassigned.
	ID int64
	// FrameID is the frame the emitter was detected in.
	FrameID int
	// XYZ is the position. Z is in physical length even under pixel units.
	XYZ [3]float32
	// Photons is the intensity estimate, non-negative.
	Photons float32
	// Probability is the detection confidence in [0, 1].
	Probability float32
	// SigmaXYZ is the per-axis localization uncertainty, non-negative.
	SigmaXYZ [3]float32
}

// approxEqual compares two emitters within a per-field tolerance.
func (e Emitter) approxEqual(o Emitter, tol float32) bool {
	if e.ID != o.ID || e.FrameID != o.FrameID {
		return false
	}
	near := func(a, b float32) bool { return math32.Abs(a-b) <= tol }
	for a := 0; a < 3; a++ {
		if !near(e.XYZ[a], o.XYZ[a]) || !near(e.SigmaXYZ[a], o.SigmaXYZ[a]) {
			return false
		}
	}
	return near(e.Photons, o.Photons) && near(e.Probability, o.Probability)
}

// Set is an ordered collection of emitters plus the metadata needed to
// interpret their coordinates.
//
// Every operation returns a new Set backed by a fresh item slice; a Set and
// its derivatives never alias, so finished collections are safe for
// concurrent readers. Treat the fields as read-only after construction.
type Set struct {
	// Items holds the emitters in collection order.
	Items []Emitter
	// Unit is the coordinate space of positions and x/y sigmas.
	Unit common.Unit
	// PixelSize is the physical pitch (nm per pixel) along x and y; zero
	// when unknown. Required only for unit conversion.
	PixelSize [2]float32
	// Extent is the absolute bounds of the source frame, in Unit.
	Extent transforms.Extent
}

// NewSet creates a collection in the given unit.
//
// Arguments:
//   - unit: Coordinate space of the items.
//   - items: Initial emitters, in order.
//
// Returns:
//   - *Set: The collection.
func NewSet(unit common.Unit, items ...Emitter) *Set {
	owned := make([]Emitter, len(items))
	copy(owned, items)
	return &Set{Items: owned, Unit: unit}
}

// Len returns the number of emitters.
func (s *Set) Len() int { return len(s.Items) }

// Clone returns a deep copy of the collection.
func (s *Set) Clone() *Set {
	items := make([]Emitter, len(s.Items))
	copy(items, s.Items)
	return s.withItems(items)
}

// withItems builds a new Set with this collection's metadata and the given
// (already owned) item slice.
func (s *Set) withItems(items []Emitter) *Set {
	return &Set{Items: items, Unit: s.Unit, PixelSize: s.PixelSize, Extent: s.Extent}
}

// SubsetByFrame returns the emitters whose frame id lies in [lo, hi], both
// ends inclusive, preserving order. An empty range yields an empty collection.
func (s *Set) SubsetByFrame(lo, hi int) *Set {
	items := make([]Emitter, 0)
	for _, em := range s.Items {
		if em.FrameID >= lo && em.FrameID <= hi {
			items = append(items, em)
		}
	}
	return s.withItems(items)
}

// SplitByFrame partitions the emitters of frames [lo, hi] into one collection
// per frame; element k holds frame lo+k. Emitters outside the range are
// dropped.
//
// Arguments:
//   - lo: First frame id.
//   - hi: Last frame id, inclusive.
//
// Returns:
//   - []*Set: hi-lo+1 collections in frame order.
//   - error: RangeError when hi < lo.
func (s *Set) SplitByFrame(lo, hi int) ([]*Set, error) {
	if hi < lo {
		return nil, common.NewRangeError("frame range", float64(hi), float64(lo), float64(hi))
	}
	buckets := make([][]Emitter, hi-lo+1)
	for _, em := range s.Items {
		if em.FrameID < lo || em.FrameID > hi {
			continue
		}
		k := em.FrameID - lo
		buckets[k] = append(buckets[k], em)
	}
	out := make([]*Set, len(buckets))
	for k, items := range buckets {
		if items == nil {
			items = make([]Emitter, 0)
		}
		out[k] = s.withItems(items)
	}
	return out, nil
}

// SortByFrame returns the collection ordered by ascending frame id, stable
// within a frame.
func (s *Set) SortByFrame() *Set {
	out := s.Clone()
	sort.SliceStable(out.Items, func(i, j int) bool {
		return out.Items[i].FrameID < out.Items[j].FrameID
	})
	return out
}

// Concat appends other's emitters after this collection's, preserving both
// orders. Metadata comes from the receiver; other's pixel size is adopted
// when the receiver has none.
//
// Arguments:
//   - other: The collection to append.
//
// Returns:
//   - *Set: The combined collection.
//   - error: UnitMismatchError when the unit systems differ.
func (s *Set) Concat(other *Set) (*Set, error) {
	if s.Unit != other.Unit {
		return nil, &common.UnitMismatchError{A: s.Unit, B: other.Unit}
	}
	items := make([]Emitter, 0, len(s.Items)+len(other.Items))
	items = append(items, s.Items...)
	items = append(items, other.Items...)
	out := s.withItems(items)
	if out.PixelSize == ([2]float32{}) {
		out.PixelSize = other.PixelSize
	}
	return out, nil
}

// Cat concatenates many collections in order. Metadata follows Concat's
// receiver-wins rule, seeded by the first collection.
//
// Arguments:
//   - sets: The collections to combine, in order.
//
// Returns:
//   - *Set: The combined collection.
//   - error: ConfigError when sets is empty, UnitMismatchError on mixed units.
func Cat(sets []*Set) (*Set, error) {
	return CatWithFrameStep(sets, 0)
}

// CatWithFrameStep concatenates chunked collections, shifting the frame ids
// of chunk k by k*step. A step equal to the chunk size in frames restores
// global frame numbering for stacks processed in pieces.
//
// Arguments:
//   - sets: The chunk collections, in chunk order.
//   - step: Frame id shift between consecutive chunks; 0 keeps ids as-is.
//
// Returns:
//   - *Set: The combined collection.
//   - error: ConfigError when sets is empty, UnitMismatchError on mixed units.
func CatWithFrameStep(sets []*Set, step int) (*Set, error) {
	if len(sets) == 0 {
		return nil, common.NewConfigError("cat", "at least one collection required")
	}
	out := sets[0].Clone()
	for k, set := range sets {
		if k == 0 {
			continue
		}
		shifted := set
		if step != 0 {
			shifted = set.Clone()
			for i := range shifted.Items {
				shifted.Items[i].FrameID += k * step
			}
		}
		combined, err := out.Concat(shifted)
		if err != nil {
			return nil, err
		}
		out = combined
	}
	return out, nil
}

// ConvertUnit returns the collection expressed in the target unit.
//
// Lateral positions, lateral sigmas, and the extent are rescaled by the
// pixel size; z is physical in both unit systems and passes through.
// Converting to the current unit returns a copy.
//
// Arguments:
//   - target: The desired coordinate space.
//
// Returns:
//   - *Set: The converted collection.
//   - error: ConfigError when the target is unknown or the pixel size is
//     unset.
func (s *Set) ConvertUnit(target common.Unit) (*Set, error) {
	if !target.Valid() {
		return nil, common.NewConfigError("unit", "unknown unit %q", target)
	}
	if s.Unit == target {
		return s.Clone(), nil
	}
	if s.PixelSize[0] == 0 || s.PixelSize[1] == 0 {
		return nil, common.NewConfigError("pixel_size", "required to convert %q to %q", s.Unit, target)
	}

	var fx, fy float32
	switch {
	case s.Unit == common.UnitPixel && target == common.UnitNanometer:
		fx, fy = s.PixelSize[0], s.PixelSize[1]
	case s.Unit == common.UnitNanometer && target == common.UnitPixel:
		fx, fy = 1/s.PixelSize[0], 1/s.PixelSize[1]
	default:
		return nil, common.NewConfigError("unit", "cannot convert %q to %q", s.Unit, target)
	}

	items := make([]Emitter, len(s.Items))
	for i, em := range s.Items {
		em.XYZ[0] *= fx
		em.XYZ[1] *= fy
		em.SigmaXYZ[0] *= fx
		em.SigmaXYZ[1] *= fy
		items[i] = em
	}
	return &Set{
		Items:     items,
		Unit:      target,
		PixelSize: s.PixelSize,
		Extent:    s.Extent.Scale(fx, fy),
	}, nil
}

// Equal reports whether two collections carry the same unit and the same
// emitters in the same order, comparing floats within tol.
func (s *Set) Equal(other *Set, tol float32) bool {
	if other == nil || s.Unit != other.Unit || len(s.Items) != len(other.Items) {
		return false
	}
	for i := range s.Items {
		if !s.Items[i].approxEqual(other.Items[i], tol) {
			return false
		}
	}
	return true
}
