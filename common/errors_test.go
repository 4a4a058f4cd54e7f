package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorTaxonomyMatching(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		as   interface{}
	}{
		{
			name: "ConfigError",
			err:  NewConfigError("scales.phot", "scale must be non-zero"),
			as:   new(*ConfigError),
		},
		{
			name: "ShapeError",
			err:  NewShapeError("bundle", []int{4, 32, 32}, []int{8, 32, 32}),
			as:   new(*ShapeError),
		},
		{
			name: "RangeError",
			err:  NewRangeError("keep_fraction", 1.5, 0, 1),
			as:   new(*RangeError),
		},
		{
			name: "UnitMismatchError",
			err:  &UnitMismatchError{A: UnitPixel, B: UnitNanometer},
			as:   new(*UnitMismatchError),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Error(t, tc.err)
			assert.True(t, errors.As(tc.err, tc.as), "error should match its own type")
			assert.NotEmpty(t, tc.err.Error(), "error message should not be empty")
		})
	}
}

func TestErrorTaxonomySurvivesWrapping(t *testing.T) {
	base := NewShapeError("frame 3", []int{16, 16}, []int{32, 32})
	wrapped := fmt.Errorf("processing frame: %w", base)

	var shapeErr *ShapeError
	require.True(t, errors.As(wrapped, &shapeErr), "wrapped shape error should still match")
	assert.Equal(t, []int{16, 16}, shapeErr.Got)
	assert.Equal(t, []int{32, 32}, shapeErr.Want)
}

func TestUnitValid(t *testing.T) {
	assert.True(t, UnitPixel.Valid())
	assert.True(t, UnitNanometer.Valid())
	assert.False(t, Unit("furlong").Valid())
	assert.False(t, Unit("").Valid())
}
