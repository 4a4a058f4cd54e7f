package emitters

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smlm-ai/go-smlm/common"
)

func TestFilterByAxisSigmaDropsOversizeZ(t *testing.T) {
	// 100 emitters, 26 of them with an axial sigma beyond the ceiling.
	items := make([]Emitter, 100)
	oversize := 0
	for i := range items {
		sigmaZ := float32(60)
		if i%50 < 13 {
			sigmaZ = 95
			oversize++
		}
		items[i] = Emitter{ID: int64(i), SigmaXYZ: [3]float32{30, 30, sigmaZ}}
	}
	require.Equal(t, 26, oversize, "fixture must contain 26 oversize emitters")
	set := NewSet(common.UnitNanometer, items...)

	kept := set.FilterByAxisSigma(40, 40, 80)

	assert.Equal(t, 74, kept.Len())
	prev := int64(-1)
	for _, em := range kept.Items {
		assert.LessOrEqual(t, em.SigmaXYZ[2], float32(80))
		assert.Greater(t, em.ID, prev, "surviving emitters keep their order")
		prev = em.ID
	}
	assert.Equal(t, 100, set.Len(), "filtering must not mutate the source")
}

func TestFilterByAxisSigmaChecksEveryAxis(t *testing.T) {
	set := NewSet(common.UnitNanometer,
		Emitter{ID: 0, SigmaXYZ: [3]float32{10, 10, 10}},
		Emitter{ID: 1, SigmaXYZ: [3]float32{99, 10, 10}},
		Emitter{ID: 2, SigmaXYZ: [3]float32{10, 99, 10}},
		Emitter{ID: 3, SigmaXYZ: [3]float32{10, 10, 99}},
		Emitter{ID: 4, SigmaXYZ: [3]float32{20, 20, 20}},
	)

	kept := set.FilterByAxisSigma(20, 20, 20)
	require.Equal(t, 2, kept.Len())
	assert.Equal(t, int64(0), kept.Items[0].ID)
	assert.Equal(t, int64(4), kept.Items[1].ID)

	boundary := set.FilterByAxisSigma(99, 99, 99)
	assert.Equal(t, 5, boundary.Len(), "ceilings are inclusive")
}

func TestFilterByCombinedSigmaKeepAll(t *testing.T) {
	set := testSet(40, common.UnitPixel)

	kept, err := set.FilterByCombinedSigma(1.0)
	require.NoError(t, err)
	assert.True(t, set.Equal(kept, 0), "full fraction keeps the collection intact")
}

func TestFilterByCombinedSigmaPicksLowestScores(t *testing.T) {
	// Lateral sigmas are constant, so ranking follows the axial sigma alone.
	set := NewSet(common.UnitNanometer,
		Emitter{ID: 0, SigmaXYZ: [3]float32{10, 10, 40}},
		Emitter{ID: 1, SigmaXYZ: [3]float32{10, 10, 10}},
		Emitter{ID: 2, SigmaXYZ: [3]float32{10, 10, 30}},
		Emitter{ID: 3, SigmaXYZ: [3]float32{10, 10, 20}},
	)

	kept, err := set.FilterByCombinedSigma(0.5)
	require.NoError(t, err)
	require.Equal(t, 2, kept.Len())
	assert.Equal(t, int64(1), kept.Items[0].ID)
	assert.Equal(t, int64(3), kept.Items[1].ID, "survivors keep collection order, not score order")
}

func TestFilterByCombinedSigmaNormalizesAxes(t *testing.T) {
	// The axial sigmas dwarf the lateral ones in raw magnitude. On raw
	// means emitter 1 would rank first; spread normalization lets the
	// tight lateral localization of emitter 0 outweigh its larger z.
	set := NewSet(common.UnitNanometer,
		Emitter{ID: 0, SigmaXYZ: [3]float32{5, 5, 130}},
		Emitter{ID: 1, SigmaXYZ: [3]float32{30, 30, 60}},
		Emitter{ID: 2, SigmaXYZ: [3]float32{20, 20, 300}},
	)

	kept, err := set.FilterByCombinedSigma(1.0 / 3.0)
	require.NoError(t, err)
	require.Equal(t, 1, kept.Len())
	assert.Equal(t, int64(0), kept.Items[0].ID)
}

func TestFilterByCombinedSigmaNesting(t *testing.T) {
	set := testSet(100, common.UnitPixel)

	fractions := []float64{0.25, 0.5, 0.75, 1.0}
	var previous *Set
	for _, f := range fractions {
		kept, err := set.FilterByCombinedSigma(f)
		require.NoError(t, err)
		assert.Equal(t, int(f*100+0.5), kept.Len(), "size must follow round(fraction*total)")

		if previous != nil {
			ids := make(map[int64]bool, kept.Len())
			for _, em := range kept.Items {
				ids[em.ID] = true
			}
			for _, em := range previous.Items {
				assert.True(t, ids[em.ID],
					"emitter %d kept at a stricter fraction must survive a looser one", em.ID)
			}
		}
		previous = kept
	}
}

func TestFilterByCombinedSigmaRejectsBadFraction(t *testing.T) {
	set := testSet(10, common.UnitPixel)

	for _, f := range []float64{0, -0.5, 1.01} {
		_, err := set.FilterByCombinedSigma(f)
		require.Error(t, err, "fraction %v must be rejected", f)
		var rangeErr *common.RangeError
		assert.ErrorAs(t, err, &rangeErr)
	}
}

func TestFilterByCombinedSigmaEmptySet(t *testing.T) {
	set := NewSet(common.UnitPixel)

	kept, err := set.FilterByCombinedSigma(0.5)
	require.NoError(t, err)
	assert.Equal(t, 0, kept.Len())
}

func BenchmarkFilterByCombinedSigma(b *testing.B) {
	rng := rand.New(rand.NewSource(42))
	items := make([]Emitter, 10000)
	for i := range items {
		items[i] = Emitter{
			ID:       int64(i),
			SigmaXYZ: [3]float32{rng.Float32() * 50, rng.Float32() * 50, rng.Float32() * 150},
		}
	}
	set := NewSet(common.UnitNanometer, items...)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := set.FilterByCombinedSigma(0.6); err != nil {
			b.Fatal(err)
		}
	}
}
