package emitters

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/smlm-ai/go-smlm/common"
)

// csvHeader is the fixed column order of the delimited export.
var csvHeader = []string{
	"id", "frame_ix", "x", "y", "z", "phot", "prob", "sigma_x", "sigma_y", "sigma_z",
}

// WriteCSV streams the collection as delimited text, one emitter per row
// under a fixed header. Floats use the shortest representation that survives
// a round trip, so ReadCSV restores exact values.
//
// Arguments:
//   - w: Destination stream.
//
// Returns:
//   - error: The first write failure, if any.
func (s *Set) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return errors.Wrap(err, "writing csv header")
	}
	rec := make([]string, len(csvHeader))
	for i, em := range s.Items {
		rec[0] = strconv.FormatInt(em.ID, 10)
		rec[1] = strconv.Itoa(em.FrameID)
		rec[2] = formatFloat(em.XYZ[0])
		rec[3] = formatFloat(em.XYZ[1])
		rec[4] = formatFloat(em.XYZ[2])
		rec[5] = formatFloat(em.Photons)
		rec[6] = formatFloat(em.Probability)
		rec[7] = formatFloat(em.SigmaXYZ[0])
		rec[8] = formatFloat(em.SigmaXYZ[1])
		rec[9] = formatFloat(em.SigmaXYZ[2])
		if err := cw.Write(rec); err != nil {
			return errors.Wrapf(err, "writing emitter %d", i)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing csv")
}

// ReadCSV parses a collection from delimited text produced by WriteCSV.
//
// The text format carries no metadata, so the caller supplies the unit; the
// pixel size and extent of the result are zero.
//
// Arguments:
//   - r: Source stream.
//   - unit: Coordinate space the rows are expressed in.
//
// Returns:
//   - *Set: The parsed collection.
//   - error: ConfigError on a missing or foreign header, a parse error
//     otherwise.
func ReadCSV(r io.Reader, unit common.Unit) (*Set, error) {
	if !unit.Valid() {
		return nil, common.NewConfigError("unit", "unknown unit %q", unit)
	}
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return nil, common.NewConfigError("csv", "missing header")
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading csv header")
	}
	if !headerMatches(header) {
		return nil, common.NewConfigError("csv", "unexpected header %v", header)
	}

	set := &Set{Items: make([]Emitter, 0), Unit: unit}
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading csv row %d", row)
		}
		em, err := parseRecord(rec)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing csv row %d", row)
		}
		set.Items = append(set.Items, em)
	}
	return set, nil
}

func headerMatches(header []string) bool {
	if len(header) != len(csvHeader) {
		return false
	}
	for i, name := range csvHeader {
		if header[i] != name {
			return false
		}
	}
	return true
}

func parseRecord(rec []string) (Emitter, error) {
	var em Emitter
	id, err := strconv.ParseInt(rec[0], 10, 64)
	if err != nil {
		return em, errors.Wrap(err, "id")
	}
	frame, err := strconv.Atoi(rec[1])
	if err != nil {
		return em, errors.Wrap(err, "frame_ix")
	}
	floats := make([]float32, 8)
	for i := range floats {
		v, err := strconv.ParseFloat(rec[i+2], 32)
		if err != nil {
			return em, errors.Wrap(err, csvHeader[i+2])
		}
		floats[i] = float32(v)
	}
	em = Emitter{
		ID:          id,
		FrameID:     frame,
		XYZ:         [3]float32{floats[0], floats[1], floats[2]},
		Photons:     floats[3],
		Probability: floats[4],
		SigmaXYZ:    [3]float32{floats[5], floats[6], floats[7]},
	}
	return em, nil
}

// formatFloat renders a float32 with just enough digits to parse back
// bit-identically.
func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}
