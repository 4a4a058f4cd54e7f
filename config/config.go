// Package config - YAML pipeline configuration with eager validation.
package config

import (
	"os"
	"runtime"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/smlm-ai/go-smlm/common"
	"github.com/smlm-ai/go-smlm/models"
	"github.com/smlm-ai/go-smlm/postprocess"
	"github.com/smlm-ai/go-smlm/transforms"
)

// Input selects the frame source.
type Input struct {
	// Dir is a directory of numbered frame images (TIFF or PNG).
	Dir string `json:"dir" yaml:"dir"`
	// Pattern restricts loading to base names matching this glob. Empty
	// admits every supported file in Dir.
	Pattern string `json:"pattern" yaml:"pattern"`
	// Rescale resamples loaded frames to the model grid when their size
	// disagrees with it. Without it a size mismatch is an error.
	Rescale bool `json:"rescale" yaml:"rescale"`
}

// Output names the export destinations. An empty field skips that export.
type Output struct {
	// CSV is the delimited-text destination.
	CSV string `json:"csv" yaml:"csv"`
	// Binary is the native binary collection destination.
	Binary string `json:"binary" yaml:"binary"`
}

// Config assembles every knob of the localization pipeline: the model
// backend, the detection parameters, the per-channel scale constants the
// model was trained with, and the I/O endpoints.
//
// Missing keys keep their Default values, so partial files configure only
// what they name.
type Config struct {
	Model     models.Args                             `json:"model"     yaml:"model"`
	Extractor postprocess.Config                      `json:"extractor" yaml:"extractor"`
	Scales    map[models.Channel]transforms.ScaleSpec `json:"scales"    yaml:"scales"`
	// Workers bounds concurrent frame processing; zero means one per CPU.
	Workers int    `json:"workers" yaml:"workers"`
	Input   Input  `json:"input"   yaml:"input"`
	Output  Output `json:"output"  yaml:"output"`
}

// Default returns the standard configuration: threshold 0.1, 3x3
// aggregation, 8-connected suppression, pixel coordinates, and identity
// scale constants for every regression channel.
//
// Returns:
//   - *Config: The default configuration. The model path and grid must still
//     be set before Validate passes.
func Default() *Config {
	scales := make(map[models.Channel]transforms.ScaleSpec, len(models.RegressionChannels))
	for _, ch := range models.RegressionChannels {
		scales[ch] = transforms.ScaleSpec{Scale: 1}
	}
	return &Config{
		Model:     models.Args{Kind: models.KindONNX},
		Extractor: postprocess.DefaultConfig(),
		Scales:    scales,
	}
}

// Load reads, parses, and validates a configuration file.
//
// Arguments:
//   - path: The YAML file to read.
//
// Returns:
//   - *Config: The validated configuration, file values layered over Default.
//   - error: A read, parse, or validation failure with the path attached.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "validating config %s", path)
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
//
// Arguments:
//   - path: The destination file.
//
// Returns:
//   - error: The marshal or write failure, if any.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshaling config")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "writing config %s", path)
}

// Validate checks every section eagerly so a misconfigured pipeline fails
// before any frame is touched.
//
// Returns:
//   - error: ConfigError naming the offending key, nil when valid.
func (c *Config) Validate() error {
	switch c.Model.Kind {
	case models.KindONNX:
		if c.Model.Path == "" {
			return common.NewConfigError("model.path", "onnx model file required")
		}
		if c.Model.Width <= 0 || c.Model.Height <= 0 {
			return common.NewConfigError("model", "input grid %dx%d must be positive", c.Model.Height, c.Model.Width)
		}
	case models.KindReplay:
		return common.NewConfigError("model.kind", "replay backends are constructed in code, not from a file")
	default:
		return common.NewConfigError("model.kind", "unknown kind %q", c.Model.Kind)
	}
	if err := c.Extractor.Validate(); err != nil {
		return err
	}
	if _, err := c.Scaler(); err != nil {
		return err
	}
	if c.Workers < 0 {
		return common.NewConfigError("workers", "must be non-negative, got %d", c.Workers)
	}
	return nil
}

// Scaler builds the channel scaler declared by the Scales section and
// confirms it covers every regression channel.
//
// Returns:
//   - *transforms.ChannelScaler: The validated scaler.
//   - error: ConfigError for a bad constant or an uncovered channel.
func (c *Config) Scaler() (*transforms.ChannelScaler, error) {
	scaler, err := transforms.NewChannelScaler(c.Scales)
	if err != nil {
		return nil, err
	}
	for _, ch := range models.RegressionChannels {
		if _, err := scaler.Spec(ch); err != nil {
			return nil, err
		}
	}
	return scaler, nil
}

// Mapper builds the coordinate mapper for the configured model grid. Pixel
// units span the unit pixel extent; physical units scale it by the pixel
// size, so absolute positions come out in nanometers directly.
//
// Returns:
//   - *transforms.CoordinateMapper: The mapper.
//   - error: ConfigError on a degenerate grid.
func (c *Config) Mapper() (*transforms.CoordinateMapper, error) {
	w, h := c.Model.Width, c.Model.Height
	extent := transforms.PixelExtent(w, h)
	if c.Extractor.Unit == common.UnitNanometer {
		extent = extent.Scale(c.Extractor.PixelSize[0], c.Extractor.PixelSize[1])
	}
	return transforms.NewCoordinateMapper(extent, w, h)
}

// WorkerCount resolves the worker bound; zero falls back to one per CPU.
func (c *Config) WorkerCount() int {
	if c.Workers < 1 {
		return runtime.NumCPU()
	}
	return c.Workers
}
