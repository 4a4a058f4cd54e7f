package emitters

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smlm-ai/go-smlm/common"
	"github.com/smlm-ai/go-smlm/transforms"
)

// testSet builds a deterministic collection of n emitters spread over
// frames of ten emitters each.
func testSet(n int, unit common.Unit) *Set {
	rng := rand.New(rand.NewSource(42))
	items := make([]Emitter, n)
	for i := range items {
		items[i] = Emitter{
			ID:          int64(i),
			FrameID:     i / 10,
			XYZ:         [3]float32{rng.Float32() * 32, rng.Float32() * 32, rng.Float32()*1000 - 500},
			Photons:     rng.Float32() * 5000,
			Probability: rng.Float32(),
			SigmaXYZ:    [3]float32{rng.Float32() * 50, rng.Float32() * 50, rng.Float32() * 120},
		}
	}
	set := NewSet(unit, items...)
	set.PixelSize = [2]float32{100, 100}
	set.Extent = transforms.PixelExtent(32, 32)
	return set
}

func TestNewSetOwnsItems(t *testing.T) {
	items := []Emitter{{ID: 1}, {ID: 2}}
	set := NewSet(common.UnitPixel, items...)
	items[0].ID = 99

	assert.Equal(t, int64(1), set.Items[0].ID, "set must copy the input slice")
	assert.Equal(t, 2, set.Len())
}

func TestCloneIsIndependent(t *testing.T) {
	set := testSet(5, common.UnitPixel)
	clone := set.Clone()
	clone.Items[0].Photons = -1

	assert.NotEqual(t, float32(-1), set.Items[0].Photons, "clone must not share backing")
	assert.True(t, set.Equal(set.Clone(), 0), "clone must equal the source")
}

func TestSubsetByFrameInclusive(t *testing.T) {
	set := testSet(30, common.UnitPixel) // frames 0, 1, 2

	sub := set.SubsetByFrame(1, 2)
	assert.Equal(t, 20, sub.Len())
	for _, em := range sub.Items {
		assert.GreaterOrEqual(t, em.FrameID, 1)
		assert.LessOrEqual(t, em.FrameID, 2)
	}

	assert.Equal(t, 10, set.SubsetByFrame(0, 0).Len(), "both bounds are inclusive")
	assert.Equal(t, 0, set.SubsetByFrame(5, 9).Len())
	assert.Equal(t, set.Unit, sub.Unit)
	assert.Equal(t, set.PixelSize, sub.PixelSize)
}

func TestSplitByFrame(t *testing.T) {
	set := NewSet(common.UnitPixel,
		Emitter{ID: 0, FrameID: 0},
		Emitter{ID: 1, FrameID: 0},
		Emitter{ID: 2, FrameID: 2},
		Emitter{ID: 3, FrameID: 7},
	)

	parts, err := set.SplitByFrame(0, 3)
	require.NoError(t, err)
	require.Len(t, parts, 4, "one collection per frame, empty frames included")

	assert.Equal(t, 2, parts[0].Len())
	assert.Equal(t, 0, parts[1].Len())
	assert.Equal(t, 1, parts[2].Len())
	assert.Equal(t, 0, parts[3].Len())
	assert.Equal(t, int64(2), parts[2].Items[0].ID)

	narrow, err := set.SplitByFrame(2, 2)
	require.NoError(t, err)
	require.Len(t, narrow, 1)
	assert.Equal(t, 1, narrow[0].Len(), "emitters outside the range are dropped")
}

func TestSplitByFrameRejectsInvertedRange(t *testing.T) {
	set := testSet(10, common.UnitPixel)

	_, err := set.SplitByFrame(3, 1)
	require.Error(t, err)
	var rangeErr *common.RangeError
	assert.ErrorAs(t, err, &rangeErr)
}

func TestSortByFrameIsStable(t *testing.T) {
	set := NewSet(common.UnitPixel,
		Emitter{ID: 0, FrameID: 2},
		Emitter{ID: 1, FrameID: 0},
		Emitter{ID: 2, FrameID: 2},
		Emitter{ID: 3, FrameID: 1},
	)

	sorted := set.SortByFrame()
	ids := make([]int64, 0, sorted.Len())
	for _, em := range sorted.Items {
		ids = append(ids, em.ID)
	}
	assert.Equal(t, []int64{1, 3, 0, 2}, ids, "ties keep their original order")
	assert.Equal(t, int64(0), set.Items[0].ID, "source collection stays unsorted")
}

func TestConcatPreservesOrderAndMetadata(t *testing.T) {
	a := NewSet(common.UnitPixel, Emitter{ID: 0}, Emitter{ID: 1})
	a.PixelSize = [2]float32{110, 120}
	b := NewSet(common.UnitPixel, Emitter{ID: 2})
	b.PixelSize = [2]float32{200, 200}

	out, err := a.Concat(b)
	require.NoError(t, err)
	require.Equal(t, 3, out.Len())
	assert.Equal(t, int64(0), out.Items[0].ID)
	assert.Equal(t, int64(2), out.Items[2].ID)
	assert.Equal(t, [2]float32{110, 120}, out.PixelSize, "receiver metadata wins")
}

func TestConcatAdoptsPixelSizeWhenUnset(t *testing.T) {
	a := NewSet(common.UnitPixel, Emitter{ID: 0})
	b := NewSet(common.UnitPixel, Emitter{ID: 1})
	b.PixelSize = [2]float32{95, 95}

	out, err := a.Concat(b)
	require.NoError(t, err)
	assert.Equal(t, [2]float32{95, 95}, out.PixelSize)
}

func TestConcatRejectsMixedUnits(t *testing.T) {
	px := testSet(3, common.UnitPixel)
	nm := testSet(3, common.UnitNanometer)

	_, err := px.Concat(nm)
	require.Error(t, err)
	var mismatch *common.UnitMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, common.UnitPixel, mismatch.A)
	assert.Equal(t, common.UnitNanometer, mismatch.B)
}

func TestCat(t *testing.T) {
	a := NewSet(common.UnitNanometer, Emitter{ID: 0, FrameID: 0})
	b := NewSet(common.UnitNanometer, Emitter{ID: 1, FrameID: 3})
	c := NewSet(common.UnitNanometer, Emitter{ID: 2, FrameID: 1})

	out, err := Cat([]*Set{a, b, c})
	require.NoError(t, err)
	require.Equal(t, 3, out.Len())
	assert.Equal(t, []int{0, 3, 1}, []int{
		out.Items[0].FrameID, out.Items[1].FrameID, out.Items[2].FrameID,
	}, "plain cat keeps frame ids untouched")

	_, err = Cat(nil)
	require.Error(t, err)
	var cfgErr *common.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestCatWithFrameStepRenumbersChunks(t *testing.T) {
	chunk0 := NewSet(common.UnitPixel,
		Emitter{ID: 0, FrameID: 0},
		Emitter{ID: 1, FrameID: 4},
		Emitter{ID: 2, FrameID: 9},
	)
	chunk1 := NewSet(common.UnitPixel,
		Emitter{ID: 3, FrameID: 1},
		Emitter{ID: 4, FrameID: 5},
	)
	chunk2 := NewSet(common.UnitPixel,
		Emitter{ID: 5, FrameID: 0},
	)

	out, err := CatWithFrameStep([]*Set{chunk0, chunk1, chunk2}, 10)
	require.NoError(t, err)
	require.Equal(t, 6, out.Len())

	frames := make([]int, 0, out.Len())
	for _, em := range out.Items {
		frames = append(frames, em.FrameID)
	}
	assert.Equal(t, []int{0, 4, 9, 11, 15, 20}, frames)

	assert.Equal(t, 1, chunk1.Items[0].FrameID, "input chunks stay untouched")
}

func TestConvertUnitPixelToNanometer(t *testing.T) {
	set := NewSet(common.UnitPixel, Emitter{
		ID:          7,
		FrameID:     2,
		XYZ:         [3]float32{2, 3, 7},
		Photons:     500,
		Probability: 0.9,
		SigmaXYZ:    [3]float32{0.5, 0.25, 80},
	})
	set.PixelSize = [2]float32{100, 50}
	set.Extent = transforms.PixelExtent(32, 32)

	nm, err := set.ConvertUnit(common.UnitNanometer)
	require.NoError(t, err)
	require.Equal(t, common.UnitNanometer, nm.Unit)

	em := nm.Items[0]
	assert.InDelta(t, 200, em.XYZ[0], 1e-4)
	assert.InDelta(t, 150, em.XYZ[1], 1e-4)
	assert.InDelta(t, 7, em.XYZ[2], 1e-4, "z is physical already and passes through")
	assert.InDelta(t, 50, em.SigmaXYZ[0], 1e-4)
	assert.InDelta(t, 12.5, em.SigmaXYZ[1], 1e-4)
	assert.InDelta(t, 80, em.SigmaXYZ[2], 1e-4)
	assert.InDelta(t, 500, em.Photons, 1e-4, "photons are unitless")
	assert.InDelta(t, -50, nm.Extent.MinX, 1e-3)
	assert.InDelta(t, 3150, nm.Extent.MaxX, 1e-2)
	assert.InDelta(t, -25, nm.Extent.MinY, 1e-3)
	assert.InDelta(t, 1575, nm.Extent.MaxY, 1e-2)

	assert.InDelta(t, 2, set.Items[0].XYZ[0], 1e-6, "conversion must not mutate the source")
}

func TestConvertUnitRoundTrip(t *testing.T) {
	set := testSet(50, common.UnitPixel)

	nm, err := set.ConvertUnit(common.UnitNanometer)
	require.NoError(t, err)
	back, err := nm.ConvertUnit(common.UnitPixel)
	require.NoError(t, err)

	assert.True(t, set.Equal(back, 1e-3), "px -> nm -> px must round trip")
}

func TestConvertUnitSameUnitCopies(t *testing.T) {
	set := testSet(3, common.UnitPixel)

	out, err := set.ConvertUnit(common.UnitPixel)
	require.NoError(t, err)
	assert.True(t, set.Equal(out, 0))
	out.Items[0].Photons = -1
	assert.NotEqual(t, float32(-1), set.Items[0].Photons)
}

func TestConvertUnitRequiresPixelSize(t *testing.T) {
	set := NewSet(common.UnitPixel, Emitter{ID: 0})

	_, err := set.ConvertUnit(common.UnitNanometer)
	require.Error(t, err)
	var cfgErr *common.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "pixel_size", cfgErr.Field)

	_, err = set.ConvertUnit(common.Unit("um"))
	require.Error(t, err, "unknown target unit must be rejected")
}

func TestEqual(t *testing.T) {
	set := testSet(10, common.UnitPixel)

	assert.True(t, set.Equal(set.Clone(), 0))
	assert.False(t, set.Equal(nil, 0))
	assert.False(t, set.Equal(testSet(9, common.UnitPixel), 0), "length must match")
	assert.False(t, set.Equal(testSet(10, common.UnitNanometer), 0), "unit must match")

	nudged := set.Clone()
	nudged.Items[4].XYZ[0] += 5e-4
	assert.True(t, set.Equal(nudged, 1e-3), "differences inside the tolerance pass")
	assert.False(t, set.Equal(nudged, 1e-5), "differences outside the tolerance fail")

	reframed := set.Clone()
	reframed.Items[0].FrameID++
	assert.False(t, set.Equal(reframed, 1))
}
