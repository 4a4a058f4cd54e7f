package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/smlm-ai/go-smlm/common"
)

func TestChannelIndexMatchesOrder(t *testing.T) {
	for i, ch := range ChannelOrder {
		assert.Equal(t, i, ch.Index(), "channel %s", ch)
	}
	assert.Equal(t, -1, Channel("bg").Index(), "unknown channel has no plane")
}

func TestBundlePlaneAddressing(t *testing.T) {
	b, err := NewBundle(4, 5)
	require.NoError(t, err)

	b.Set(ChannelPhotons, 2, 3, 500)
	b.Set(ChannelSigmaZ, 0, 0, 10)

	assert.Equal(t, float32(500), b.At(ChannelPhotons, 2, 3))
	assert.Equal(t, float32(500), b.Plane(ChannelPhotons)[2*5+3], "At and Plane must agree on row-major layout")
	assert.Equal(t, float32(10), b.At(ChannelSigmaZ, 0, 0))
	assert.Equal(t, float32(0), b.At(ChannelProbability, 2, 3), "other planes stay zero")
}

func TestBundleFromTensorValidatesShape(t *testing.T) {
	bad := tensor.New(tensor.WithShape(4, 8, 8), tensor.WithBacking(make([]float32, 4*8*8)))
	_, err := BundleFromTensor(bad)
	var shapeErr *common.ShapeError
	require.True(t, errors.As(err, &shapeErr), "wrong channel count should yield ShapeError")

	good := tensor.New(tensor.WithShape(NumChannels, 8, 8), tensor.WithBacking(make([]float32, NumChannels*8*8)))
	b, err := BundleFromTensor(good)
	require.NoError(t, err)
	assert.Equal(t, 8, b.Height())
	assert.Equal(t, 8, b.Width())
}

func TestBundleFromPlanes(t *testing.T) {
	prob := make([]float32, 9)
	prob[4] = 0.9

	b, err := BundleFromPlanes(3, 3, map[Channel][]float32{
		ChannelProbability: prob,
	})
	require.NoError(t, err)
	assert.Equal(t, float32(0.9), b.At(ChannelProbability, 1, 1))
	assert.Equal(t, float32(0), b.At(ChannelPhotons, 1, 1), "missing planes stay zero")

	_, err = BundleFromPlanes(3, 3, map[Channel][]float32{
		ChannelProbability: make([]float32, 8),
	})
	var shapeErr *common.ShapeError
	assert.True(t, errors.As(err, &shapeErr), "short plane should yield ShapeError")

	_, err = BundleFromPlanes(3, 3, map[Channel][]float32{
		Channel("bg"): make([]float32, 9),
	})
	var cfgErr *common.ConfigError
	assert.True(t, errors.As(err, &cfgErr), "unknown channel should yield ConfigError")
}
