// Package config loads renderer settings from YAML or TOML files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-xr/engine/light"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxInstances   = 10000
	DefaultMaxLights      = light.DefaultMaxLights
	DefaultRingSize       = 3
	DefaultTAASampleCount = 8
)

var (
	// ErrInvalidConfig is wrapped by every Validate failure.
	ErrInvalidConfig = errors.New("invalid renderer config")
	// ErrUnknownFormat is returned for a config file extension other than .yaml, .yml or .toml.
	ErrUnknownFormat = errors.New("unknown config format")
	// ErrUnknownPresentMode is returned when parsing an unrecognized present mode name.
	ErrUnknownPresentMode = errors.New("unknown present mode")
)

// Format is a config file encoding.
type Format int

const (
	FormatYAML Format = iota
	FormatTOML
)

func (f Format) String() string {
	if f == FormatTOML {
		return "toml"
	}
	return "yaml"
}

// FormatFromPath picks the format from a file extension.
//
// Parameters:
//   - path: the config file path
//
// Returns:
//   - Format: the format
//   - error: ErrUnknownFormat for any other extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, path)
	}
}

// PresentMode controls how frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting.
	PresentModeVSync PresentMode = iota
	// PresentModeUncapped presents immediately. It may tear.
	PresentModeUncapped
)

func (m PresentMode) String() string {
	switch m {
	case PresentModeVSync:
		return "vsync"
	case PresentModeUncapped:
		return "uncapped"
	default:
		return fmt.Sprintf("PresentMode(%d)", int(m))
	}
}

// WGPU returns the surface present mode.
func (m PresentMode) WGPU() wgpu.PresentMode {
	if m == PresentModeUncapped {
		return wgpu.PresentModeImmediate
	}
	return wgpu.PresentModeFifo
}

// MarshalText encodes the mode by name.
func (m PresentMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes "vsync" or "uncapped", case-insensitively.
func (m *PresentMode) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "vsync":
		*m = PresentModeVSync
	case "uncapped":
		*m = PresentModeUncapped
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPresentMode, text)
	}
	return nil
}

// BloomConfig configures the bloom passes.
type BloomConfig struct {
	Enabled   bool    `yaml:"enabled" toml:"enabled"`
	Threshold float32 `yaml:"threshold" toml:"threshold"`
	Intensity float32 `yaml:"intensity" toml:"intensity"`
	KneeWidth float32 `yaml:"knee_width" toml:"knee_width"`
}

// SharpenConfig configures the sharpen pass.
type SharpenConfig struct {
	Enabled  bool    `yaml:"enabled" toml:"enabled"`
	Strength float32 `yaml:"strength" toml:"strength"`
}

// TAAConfig configures temporal anti-aliasing.
type TAAConfig struct {
	Enabled     bool    `yaml:"enabled" toml:"enabled"`
	SampleCount uint32  `yaml:"sample_count" toml:"sample_count"`
	Blend       float32 `yaml:"blend" toml:"blend"`
}

// RendererConfig is every renderer setting that can come from a file.
type RendererConfig struct {
	ShadowQuality light.ShadowQuality `yaml:"shadow_quality" toml:"shadow_quality"`
	MaxInstances  int                 `yaml:"max_instances" toml:"max_instances"`
	MaxLights     int                 `yaml:"max_lights" toml:"max_lights"`
	RingSize      int                 `yaml:"ring_size" toml:"ring_size"`
	Bloom         BloomConfig         `yaml:"bloom" toml:"bloom"`
	Sharpen       SharpenConfig       `yaml:"sharpen" toml:"sharpen"`
	TAA           TAAConfig           `yaml:"taa" toml:"taa"`
	PresentMode   PresentMode         `yaml:"present_mode" toml:"present_mode"`
	// ShaderDir, when set, is a directory of .wgsl include modules that override the embedded ones
	// and are watched for changes.
	ShaderDir string `yaml:"shader_dir" toml:"shader_dir"`
	Debug     bool   `yaml:"debug" toml:"debug"`
}

// Default returns the settings used when no file is given. Every post effect is off.
func Default() RendererConfig {
	return RendererConfig{
		ShadowQuality: light.ShadowQualityHigh,
		MaxInstances:  DefaultMaxInstances,
		MaxLights:     DefaultMaxLights,
		RingSize:      DefaultRingSize,
		Bloom:         BloomConfig{Threshold: 1, Intensity: 0.2, KneeWidth: 1},
		Sharpen:       SharpenConfig{Strength: 0.5},
		TAA:           TAAConfig{SampleCount: DefaultTAASampleCount, Blend: 0.1},
		PresentMode:   PresentModeVSync,
	}
}

type decoder interface {
	Decode(v any) error
}

var decoders = map[Format]func(r io.Reader) decoder{
	FormatYAML: func(r io.Reader) decoder {
		d := yaml.NewDecoder(r)
		d.KnownFields(true)
		return d
	},
	FormatTOML: func(r io.Reader) decoder {
		d := toml.NewDecoder(r)
		d.DisallowUnknownFields()
		return d
	},
}

// Parse decodes a config over Default, so absent keys keep their defaults, expands a leading ~ in
// ShaderDir, then validates it.
//
// Parameters:
//   - data: the encoded config
//   - format: the encoding
//
// Returns:
//   - RendererConfig: the config
//   - error: a decode error or a Validate failure
func Parse(data []byte, format Format) (RendererConfig, error) {
	cfg := Default()
	newDecoder, ok := decoders[format]
	if !ok {
		return cfg, fmt.Errorf("%w: %d", ErrUnknownFormat, format)
	}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := newDecoder(bytes.NewReader(data)).Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("failed to decode %s config: %w", format, err)
		}
	}
	dir, err := homedir.Expand(cfg.ShaderDir)
	if err != nil {
		return cfg, fmt.Errorf("%w: shader_dir: %w", ErrInvalidConfig, err)
	}
	cfg.ShaderDir = dir
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Load reads and parses a config file, choosing the format from its extension. A leading ~ in path
// is expanded to the home directory.
//
// Parameters:
//   - path: the file path
//
// Returns:
//   - RendererConfig: the config
//   - error: a read, format, decode or validation error
func Load(path string) (RendererConfig, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return Default(), fmt.Errorf("failed to expand config path: %w", err)
	}
	format, err := FormatFromPath(path)
	if err != nil {
		return Default(), err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Default(), fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg, err := Parse(data, format)
	if err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid setting, joined.
func (c RendererConfig) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...)))
	}
	if c.RingSize < DefaultRingSize {
		invalid("ring_size %d is below %d", c.RingSize, DefaultRingSize)
	}
	if c.MaxInstances <= 0 {
		invalid("max_instances must be positive, got %d", c.MaxInstances)
	}
	if c.MaxLights <= 0 {
		invalid("max_lights must be positive, got %d", c.MaxLights)
	}
	if c.ShadowQuality < light.ShadowQualityLow || c.ShadowQuality > light.ShadowQualityUltra {
		invalid("unknown shadow_quality %d", c.ShadowQuality)
	}
	if c.PresentMode != PresentModeVSync && c.PresentMode != PresentModeUncapped {
		invalid("unknown present_mode %d", c.PresentMode)
	}
	if c.TAA.SampleCount == 0 {
		invalid("taa.sample_count must be positive")
	}
	if c.TAA.Blend < 0 || c.TAA.Blend > 1 {
		invalid("taa.blend %g is outside [0, 1]", c.TAA.Blend)
	}
	if c.Sharpen.Strength < 0 || c.Sharpen.Strength > 1 {
		invalid("sharpen.strength %g is outside [0, 1]", c.Sharpen.Strength)
	}
	return errors.Join(errs...)
}
