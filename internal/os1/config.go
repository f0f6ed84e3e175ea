package os1

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DecoderConfig controls sweep accumulation and projection. It may be
// replaced at any time through Decoder.UpdateConfig; every update discards
// the sweep in progress.
type DecoderConfig struct {
	// MinRange and MaxRange are range bounds in metres. They are normalized
	// so MinRange <= MaxRange but are not yet applied as a projection filter;
	// the projector emits every valid return regardless. Kept as-observed
	// from the sensor vendor's reference behaviour.
	MinRange float64 `yaml:"min_range"`
	MaxRange float64 `yaml:"max_range"`

	// ImageWidth is the sweep width in azimuth columns. Normalized down to a
	// multiple of COLUMNS_PER_BUFFER.
	ImageWidth int `yaml:"image_width"`

	// Organized selects a dense row/column-aligned point cloud with NaN
	// placeholder points for missing returns, instead of a compact cloud of
	// valid points only.
	Organized bool `yaml:"organized"`

	// FullSweep is accepted and carried but currently reserved; it has no
	// effect on the decode or projection path.
	FullSweep bool `yaml:"full_sweep"`
}

// DefaultDecoderConfig returns the decoder defaults: one full 1024-column
// sweep per emission, compact output.
func DefaultDecoderConfig() DecoderConfig {
	return DecoderConfig{
		MinRange:   0.25,
		MaxRange:   120.0,
		ImageWidth: 1024,
		Organized:  false,
		FullSweep:  false,
	}
}

// Normalized returns a copy with the configuration invariants enforced:
// MinRange is clamped down to MaxRange when it exceeds it, and ImageWidth is
// floored to the nearest multiple of COLUMNS_PER_BUFFER.
func (c DecoderConfig) Normalized() DecoderConfig {
	if c.MinRange > c.MaxRange {
		c.MinRange = c.MaxRange
	}
	c.ImageWidth = c.ImageWidth / COLUMNS_PER_BUFFER * COLUMNS_PER_BUFFER
	return c
}

// String formats the configuration the way reconfiguration requests are
// logged.
func (c DecoderConfig) String() string {
	return fmt.Sprintf("min_range: %.2f, max_range: %.2f, image_width: %d, organized: %t, full_sweep: %t",
		c.MinRange, c.MaxRange, c.ImageWidth, c.Organized, c.FullSweep)
}

// LoadDecoderConfig reads a YAML decoder configuration file. Fields absent
// from the file keep their default values. The result is not normalized;
// the decoder normalizes on apply.
func LoadDecoderConfig(path string) (DecoderConfig, error) {
	config := DefaultDecoderConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("failed to read decoder config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse decoder config %s: %w", path, err)
	}
	return config, nil
}
