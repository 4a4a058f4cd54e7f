package emitters

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/smlm-ai/go-smlm/common"
)

// FilterByAxisSigma retains the emitters whose uncertainty is within the
// given ceiling on every axis, preserving order.
//
// Arguments:
//   - maxX: Ceiling for the x sigma.
//   - maxY: Ceiling for the y sigma.
//   - maxZ: Ceiling for the z sigma.
//
// Returns:
//   - *Set: The filtered collection.
func (s *Set) FilterByAxisSigma(maxX, maxY, maxZ float32) *Set {
	items := make([]Emitter, 0, len(s.Items))
	for _, em := range s.Items {
		if em.SigmaXYZ[0] <= maxX && em.SigmaXYZ[1] <= maxY && em.SigmaXYZ[2] <= maxZ {
			items = append(items, em)
		}
	}
	return s.withItems(items)
}

// FilterByCombinedSigma keeps the best-localized fraction of the collection.
//
// Each emitter gets a combined score: its per-axis sigmas are divided by the
// population spread of that axis across the collection, then averaged, so no
// axis dominates on raw magnitude. The round(keepFraction*Len()) emitters
// with the lowest scores are retained in their original order. Raising the
// fraction only ever adds emitters, never swaps them.
//
// Arguments:
//   - keepFraction: Fraction of emitters to keep, in (0, 1].
//
// Returns:
//   - *Set: The filtered collection.
//   - error: RangeError when keepFraction is outside (0, 1].
func (s *Set) FilterByCombinedSigma(keepFraction float64) (*Set, error) {
	if keepFraction <= 0 || keepFraction > 1 {
		return nil, common.NewRangeError("keep_fraction", keepFraction, 0, 1)
	}
	n := len(s.Items)
	keep := int(math.Round(keepFraction * float64(n)))
	if keep >= n {
		return s.Clone(), nil
	}

	scores := s.combinedSigmaScores()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] < scores[order[b]]
	})

	chosen := append([]int(nil), order[:keep]...)
	sort.Ints(chosen)
	items := make([]Emitter, 0, keep)
	for _, idx := range chosen {
		items = append(items, s.Items[idx])
	}
	return s.withItems(items), nil
}

// combinedSigmaScores computes the spread-normalized mean sigma per emitter.
// An axis with zero spread keeps its raw scale so constant axes still count.
func (s *Set) combinedSigmaScores() []float64 {
	n := len(s.Items)
	var axes [3][]float64
	for a := 0; a < 3; a++ {
		axes[a] = make([]float64, n)
	}
	for i, em := range s.Items {
		for a := 0; a < 3; a++ {
			axes[a][i] = float64(em.SigmaXYZ[a])
		}
	}

	var weight [3]float64
	for a := 0; a < 3; a++ {
		spread := stat.PopStdDev(axes[a], nil)
		if spread == 0 || math.IsNaN(spread) {
			spread = 1
		}
		weight[a] = 1 / spread
	}

	scores := make([]float64, n)
	for i := range scores {
		scores[i] = (axes[0][i]*weight[0] + axes[1][i]*weight[1] + axes[2][i]*weight[2]) / 3
	}
	return scores
}
