package emitters

import (
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"github.com/smlm-ai/go-smlm/common"
)

const (
	binaryFormat  = "go-smlm/emitters"
	binaryVersion = 1
)

// binaryEnvelope wraps the columnar table with a format marker so foreign or
// stale files are rejected before any field is interpreted.
type binaryEnvelope struct {
	Format  string `json:"format"`
	Version int    `json:"version"`
	Table   *Table `json:"table"`
}

// WriteBinary persists the collection, metadata included, as a canonical
// CBOR document.
//
// Arguments:
//   - w: Destination stream.
//
// Returns:
//   - error: The encode failure, if any.
func (s *Set) WriteBinary(w io.Writer) error {
	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return errors.Wrap(err, "creating cbor encoder")
	}
	env := binaryEnvelope{
		Format:  binaryFormat,
		Version: binaryVersion,
		Table:   s.ToTable(),
	}
	return errors.Wrap(mode.NewEncoder(w).Encode(&env), "encoding emitters")
}

// ReadBinary restores a collection written by WriteBinary. Unlike the
// delimited form, the binary form carries unit, pixel size, and extent.
//
// Arguments:
//   - r: Source stream.
//
// Returns:
//   - *Set: The decoded collection.
//   - error: ConfigError when the document is not a known emitter file, a
//     decode failure otherwise.
func ReadBinary(r io.Reader) (*Set, error) {
	var env binaryEnvelope
	if err := cbor.NewDecoder(r).Decode(&env); err != nil {
		return nil, errors.Wrap(err, "decoding emitters")
	}
	if env.Format != binaryFormat {
		return nil, common.NewConfigError("binary", "unknown format %q", env.Format)
	}
	if env.Version != binaryVersion {
		return nil, common.NewConfigError("binary", "unsupported version %d", env.Version)
	}
	if env.Table == nil {
		return nil, common.NewConfigError("binary", "missing emitter table")
	}
	return FromTable(env.Table)
}
