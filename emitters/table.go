package emitters

import (
	"github.com/smlm-ai/go-smlm/common"
	"github.com/smlm-ai/go-smlm/transforms"
)

// Table is the columnar form of a collection, one slice per attribute with
// equal lengths. It is the shape persisted to disk and handed to analysis
// tooling that prefers column access.
type Table struct {
	ID          []int64   `json:"id"`
	FrameID     []int64   `json:"frame_ix"`
	X           []float32 `json:"x"`
	Y           []float32 `json:"y"`
	Z           []float32 `json:"z"`
	Photons     []float32 `json:"phot"`
	Probability []float32 `json:"prob"`
	SigmaX      []float32 `json:"sigma_x"`
	SigmaY      []float32 `json:"sigma_y"`
	SigmaZ      []float32 `json:"sigma_z"`

	Unit      common.Unit       `json:"unit"`
	PixelSize [2]float32        `json:"pixel_size"`
	Extent    transforms.Extent `json:"extent"`
}

// ToTable converts the collection to columnar form. The conversion is
// lossless; FromTable restores an equal collection.
func (s *Set) ToTable() *Table {
	n := len(s.Items)
	t := &Table{
		ID:          make([]int64, n),
		FrameID:     make([]int64, n),
		X:           make([]float32, n),
		Y:           make([]float32, n),
		Z:           make([]float32, n),
		Photons:     make([]float32, n),
		Probability: make([]float32, n),
		SigmaX:      make([]float32, n),
		SigmaY:      make([]float32, n),
		SigmaZ:      make([]float32, n),
		Unit:        s.Unit,
		PixelSize:   s.PixelSize,
		Extent:      s.Extent,
	}
	for i, em := range s.Items {
		t.ID[i] = em.ID
		t.FrameID[i] = int64(em.FrameID)
		t.X[i] = em.XYZ[0]
		t.Y[i] = em.XYZ[1]
		t.Z[i] = em.XYZ[2]
		t.Photons[i] = em.Photons
		t.Probability[i] = em.Probability
		t.SigmaX[i] = em.SigmaXYZ[0]
		t.SigmaY[i] = em.SigmaXYZ[1]
		t.SigmaZ[i] = em.SigmaXYZ[2]
	}
	return t
}

// FromTable rebuilds a collection from columnar form.
//
// Arguments:
//   - t: The table; all columns must share one length.
//
// Returns:
//   - *Set: The reconstructed collection.
//   - error: ShapeError when the columns are ragged.
func FromTable(t *Table) (*Set, error) {
	n := len(t.FrameID)
	cols := map[string]int{
		"id":      len(t.ID),
		"x":       len(t.X),
		"y":       len(t.Y),
		"z":       len(t.Z),
		"phot":    len(t.Photons),
		"prob":    len(t.Probability),
		"sigma_x": len(t.SigmaX),
		"sigma_y": len(t.SigmaY),
		"sigma_z": len(t.SigmaZ),
	}
	for name, got := range cols {
		if got != n {
			return nil, common.NewShapeError("table column "+name, []int{got}, []int{n})
		}
	}

	items := make([]Emitter, n)
	for i := 0; i < n; i++ {
		items[i] = Emitter{
			ID:          t.ID[i],
			FrameID:     int(t.FrameID[i]),
			XYZ:         [3]float32{t.X[i], t.Y[i], t.Z[i]},
			Photons:     t.Photons[i],
			Probability: t.Probability[i],
			SigmaXYZ:    [3]float32{t.SigmaX[i], t.SigmaY[i], t.SigmaZ[i]},
		}
	}
	return &Set{
		Items:     items,
		Unit:      t.Unit,
		PixelSize: t.PixelSize,
		Extent:    t.Extent,
	}, nil
}
