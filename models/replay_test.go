package models

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smlm-ai/go-smlm/frames"
)

func TestReplayModelServesByFrameIndex(t *testing.T) {
	b0, err := NewBundle(4, 4)
	require.NoError(t, err)
	b0.Set(ChannelPhotons, 0, 0, 111)
	b1, err := NewBundle(4, 4)
	require.NoError(t, err)
	b1.Set(ChannelPhotons, 0, 0, 222)

	m, err := NewReplayModel([]*Bundle{b0, b1})
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, 4, m.InputWidth())
	assert.Equal(t, 4, m.InputHeight())

	frame := frames.Frame{Index: 1, Width: 4, Height: 4, Data: make([]float32, 16)}
	got, err := m.Infer(context.Background(), frame)
	require.NoError(t, err)
	assert.Equal(t, float32(222), got.At(ChannelPhotons, 0, 0), "frame 1 must get bundle 1 regardless of call order")
}

func TestReplayModelPoisonedFrame(t *testing.T) {
	b, err := NewBundle(4, 4)
	require.NoError(t, err)

	m, err := NewReplayModel([]*Bundle{b, nil})
	require.NoError(t, err)

	_, err = m.Infer(context.Background(), frames.Frame{Index: 1, Width: 4, Height: 4})
	assert.Error(t, err, "nil bundle must fail its frame")

	_, err = m.Infer(context.Background(), frames.Frame{Index: 7, Width: 4, Height: 4})
	assert.Error(t, err, "out-of-range index must fail")
}

func TestReplayModelRejectsMixedGrids(t *testing.T) {
	a, err := NewBundle(4, 4)
	require.NoError(t, err)
	b, err := NewBundle(8, 8)
	require.NoError(t, err)

	_, err = NewReplayModel([]*Bundle{a, b})
	assert.Error(t, err)

	_, err = NewReplayModel(nil)
	assert.Error(t, err, "empty replay has no grid")
}

func TestFactorySelectsBackend(t *testing.T) {
	b, err := NewBundle(4, 4)
	require.NoError(t, err)

	m, err := New(Args{Kind: KindReplay, Bundles: []*Bundle{b}})
	require.NoError(t, err)
	_, ok := m.(*ReplayModel)
	assert.True(t, ok, "replay kind should build a ReplayModel")

	_, err = New(Args{Kind: Kind("tflite")})
	assert.Error(t, err, "unknown kind must be rejected")
}
