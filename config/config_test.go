package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smlm-ai/go-smlm/common"
	"github.com/smlm-ai/go-smlm/models"
	"github.com/smlm-ai/go-smlm/transforms"
)

// validConfig returns a Default configuration completed with the fields
// Validate requires.
func validConfig() *Config {
	cfg := Default()
	cfg.Model.Path = "net.onnx"
	cfg.Model.Width = 64
	cfg.Model.Height = 64
	return cfg
}

func TestDefaultParameters(t *testing.T) {
	cfg := Default()

	assert.Equal(t, models.KindONNX, cfg.Model.Kind)
	assert.InDelta(t, 0.1, cfg.Extractor.RawThreshold, 1e-6)
	assert.Equal(t, 1, cfg.Extractor.AggregationRadius)
	assert.Equal(t, 1, cfg.Extractor.SuppressionRadius)
	assert.Equal(t, common.UnitPixel, cfg.Extractor.Unit)

	require.Len(t, cfg.Scales, len(models.RegressionChannels))
	for ch, spec := range cfg.Scales {
		assert.Equal(t, transforms.ScaleSpec{Scale: 1}, spec, "channel %s defaults to identity", ch)
	}
}

func TestDefaultNeedsModelBeforeValidate(t *testing.T) {
	err := Default().Validate()
	require.Error(t, err)
	var cfgErr *common.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "model.path", cfgErr.Field)

	assert.NoError(t, validConfig().Validate())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := validConfig()
	cfg.Extractor.RawThreshold = 0.25
	cfg.Scales[models.ChannelPhotons] = transforms.ScaleSpec{Scale: 5000, Offset: 100}
	cfg.Workers = 3
	cfg.Input = Input{Dir: "frames", Rescale: true}
	cfg.Output = Output{CSV: "out.csv", Binary: "out.emc"}

	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Model, loaded.Model)
	assert.Equal(t, cfg.Extractor, loaded.Extractor)
	assert.Equal(t, cfg.Scales, loaded.Scales)
	assert.Equal(t, cfg.Workers, loaded.Workers)
	assert.Equal(t, cfg.Input, loaded.Input)
	assert.Equal(t, cfg.Output, loaded.Output)
}

func TestLoadLayersPartialFileOverDefaults(t *testing.T) {
	// Only the model section and one scale constant are given; everything
	// else must keep its default.
	doc := `
model:
  kind: onnx
  path: net.onnx
  width: 40
  height: 40
scales:
  phot: {scale: 12000, offset: 0}
`
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Model.Width)
	assert.InDelta(t, 0.1, cfg.Extractor.RawThreshold, 1e-6, "threshold keeps its default")
	assert.Equal(t, float32(12000), cfg.Scales[models.ChannelPhotons].Scale)
	assert.Equal(t, transforms.ScaleSpec{Scale: 1}, cfg.Scales[models.ChannelSigmaZ], "untouched channels stay identity")
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	garbled := filepath.Join(dir, "garbled.yaml")
	require.NoError(t, os.WriteFile(garbled, []byte("model: [not a mapping"), 0o644))
	_, err = Load(garbled)
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("model:\n  kind: onnx\n"), 0o644))
	_, err = Load(invalid)
	require.Error(t, err, "a parseable file must still validate")
	var cfgErr *common.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mangle func(*Config)
	}{
		{"unknown model kind", func(c *Config) { c.Model.Kind = "tflite" }},
		{"replay kind from file", func(c *Config) { c.Model.Kind = models.KindReplay }},
		{"degenerate grid", func(c *Config) { c.Model.Width = 0 }},
		{"threshold out of range", func(c *Config) { c.Extractor.RawThreshold = 1.5 }},
		{"zero scale constant", func(c *Config) {
			c.Scales[models.ChannelOffsetZ] = transforms.ScaleSpec{}
		}},
		{"missing regression channel", func(c *Config) {
			delete(c.Scales, models.ChannelSigmaY)
		}},
		{"negative workers", func(c *Config) { c.Workers = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mangle(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestMapperFollowsUnit(t *testing.T) {
	cfg := validConfig()

	px, err := cfg.Mapper()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, px.PitchX(), 1e-6, "pixel units have unit pitch")
	abs, err := px.AbsoluteX(10, 0)
	require.NoError(t, err)
	assert.InDelta(t, 10, abs, 1e-6, "pixel center i sits at absolute i")

	cfg.Extractor.Unit = common.UnitNanometer
	cfg.Extractor.PixelSize = [2]float32{100, 120}
	nm, err := cfg.Mapper()
	require.NoError(t, err)
	assert.InDelta(t, 100, nm.PitchX(), 1e-4)
	assert.InDelta(t, 120, nm.PitchY(), 1e-4)
}

func TestWorkerCount(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, runtime.NumCPU(), cfg.WorkerCount(), "zero falls back to one per CPU")

	cfg.Workers = 5
	assert.Equal(t, 5, cfg.WorkerCount())
}
