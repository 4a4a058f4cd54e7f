// Package transforms - the linear unit/scale transform and the pixel-grid
// coordinate transform between model outputs and physical space.
package transforms

import (
	"sort"

	"github.com/smlm-ai/go-smlm/common"
	"github.com/smlm-ai/go-smlm/models"
)

// ScaleSpec is one channel's linear denormalization: physical = raw*Scale + Offset.
//
// The constants mirror the normalization applied to the channel at training
// time, so Apply and Invert round-trip exactly at float32 precision.
type ScaleSpec struct {
	Scale  float32 `json:"scale" yaml:"scale"`
	Offset float32 `json:"offset" yaml:"offset"`
}

// Apply converts a raw network value to its physical quantity.
func (s ScaleSpec) Apply(v float32) float32 {
	return v*s.Scale + s.Offset
}

// Invert recovers the raw network value from a physical quantity.
func (s ScaleSpec) Invert(v float32) float32 {
	return (v - s.Offset) / s.Scale
}

// ChannelScaler holds the per-channel scale constants for a trained model.
//
// Construction validates eagerly; a scaler never carries a zero scale, so
// Invert cannot divide by zero.
type ChannelScaler struct {
	specs map[models.Channel]ScaleSpec
}

// NewChannelScaler creates a scaler from explicit per-channel constants.
//
// Arguments:
//   - specs: Scale/offset pair per channel.
//
// Returns:
//   - *ChannelScaler: The validated scaler.
//   - error: ConfigError if no channels are declared, a channel is unknown,
//     or a scale constant is zero.
func NewChannelScaler(specs map[models.Channel]ScaleSpec) (*ChannelScaler, error) {
	if len(specs) == 0 {
		return nil, common.NewConfigError("scales", "at least one channel required")
	}
	owned := make(map[models.Channel]ScaleSpec, len(specs))
	for ch, spec := range specs {
		if ch.Index() < 0 {
			return nil, common.NewConfigError("scales", "unknown channel %q", ch)
		}
		if spec.Scale == 0 {
			return nil, common.NewConfigError("scales."+string(ch), "scale must be non-zero")
		}
		owned[ch] = spec
	}
	return &ChannelScaler{specs: owned}, nil
}

// IdentityScaler creates a scale-1, offset-0 scaler for the given channels,
// the configuration of a model trained on physical units directly.
//
// Arguments:
//   - channels: Channels to declare; empty declares every bundle channel.
//
// Returns:
//   - *ChannelScaler: The identity scaler.
func IdentityScaler(channels ...models.Channel) *ChannelScaler {
	if len(channels) == 0 {
		channels = models.ChannelOrder[:]
	}
	specs := make(map[models.Channel]ScaleSpec, len(channels))
	for _, ch := range channels {
		specs[ch] = ScaleSpec{Scale: 1}
	}
	return &ChannelScaler{specs: specs}
}

// Spec returns the scale constants declared for a channel.
//
// Arguments:
//   - ch: The channel to look up.
//
// Returns:
//   - ScaleSpec: The channel's constants.
//   - error: ConfigError if the channel has no declared constants.
func (cs *ChannelScaler) Spec(ch models.Channel) (ScaleSpec, error) {
	spec, ok := cs.specs[ch]
	if !ok {
		return ScaleSpec{}, common.NewConfigError("scales", "no scale constants for channel %q", ch)
	}
	return spec, nil
}

// Apply converts a single raw value of the given channel to physical units.
func (cs *ChannelScaler) Apply(ch models.Channel, v float32) (float32, error) {
	spec, err := cs.Spec(ch)
	if err != nil {
		return 0, err
	}
	return spec.Apply(v), nil
}

// Invert recovers the raw value of the given channel from physical units.
func (cs *ChannelScaler) Invert(ch models.Channel, v float32) (float32, error) {
	spec, err := cs.Spec(ch)
	if err != nil {
		return 0, err
	}
	return spec.Invert(v), nil
}

// ApplyPlane converts a whole raw plane of the given channel, returning a new
// slice and leaving the input untouched.
func (cs *ChannelScaler) ApplyPlane(ch models.Channel, plane []float32) ([]float32, error) {
	spec, err := cs.Spec(ch)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(plane))
	for i, v := range plane {
		out[i] = spec.Apply(v)
	}
	return out, nil
}

// InvertPlane recovers a whole raw plane of the given channel, returning a
// new slice and leaving the input untouched.
func (cs *ChannelScaler) InvertPlane(ch models.Channel, plane []float32) ([]float32, error) {
	spec, err := cs.Spec(ch)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(plane))
	for i, v := range plane {
		out[i] = spec.Invert(v)
	}
	return out, nil
}

// Channels returns the declared channels in bundle order.
func (cs *ChannelScaler) Channels() []models.Channel {
	out := make([]models.Channel, 0, len(cs.specs))
	for ch := range cs.specs {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index() < out[j].Index() })
	return out
}
