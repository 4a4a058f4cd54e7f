// Package models - the model boundary: output channel layout, the channel
// tensor bundle, and the backends that produce bundles from frames.
package models

// Channel is the unique identifier of a model output channel.
type Channel string

const (
	// ChannelProbability is the per-pixel detection probability.
	ChannelProbability Channel = "prob"
	// ChannelPhotons is the per-pixel photon count estimate.
	ChannelPhotons Channel = "phot"
	// ChannelOffsetX is the sub-pixel x displacement from the pixel center.
	ChannelOffsetX Channel = "dx"
	// ChannelOffsetY is the sub-pixel y displacement from the pixel center.
	ChannelOffsetY Channel = "dy"
	// ChannelOffsetZ is the axial displacement from the focal plane.
	ChannelOffsetZ Channel = "dz"
	// ChannelSigmaX is the estimated x localization uncertainty.
	ChannelSigmaX Channel = "sigma_x"
	// ChannelSigmaY is the estimated y localization uncertainty.
	ChannelSigmaY Channel = "sigma_y"
	// ChannelSigmaZ is the estimated z localization uncertainty.
	ChannelSigmaZ Channel = "sigma_z"
)

// NumChannels is the number of planes in a model output bundle.
const NumChannels = 8

// ChannelOrder is the canonical plane order of a bundle, matching the model's
// output tensor layout.
var ChannelOrder = [NumChannels]Channel{
	ChannelProbability,
	ChannelPhotons,
	ChannelOffsetX,
	ChannelOffsetY,
	ChannelOffsetZ,
	ChannelSigmaX,
	ChannelSigmaY,
	ChannelSigmaZ,
}

// RegressionChannels lists the channels that carry scaled physical quantities,
// in bundle order. The probability plane is excluded; it is consumed raw.
var RegressionChannels = [NumChannels - 1]Channel{
	ChannelPhotons,
	ChannelOffsetX,
	ChannelOffsetY,
	ChannelOffsetZ,
	ChannelSigmaX,
	ChannelSigmaY,
	ChannelSigmaZ,
}

// Index returns the channel's plane position within a bundle, or -1 for an
// unknown channel.
func (c Channel) Index() int {
	for i, ch := range ChannelOrder {
		if ch == c {
			return i
		}
	}
	return -1
}
