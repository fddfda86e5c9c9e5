package renderer

import (
	"github.com/Carmen-Shannon/oxy-xr/common"
	"github.com/Carmen-Shannon/oxy-xr/engine/config"
	"github.com/Carmen-Shannon/oxy-xr/engine/renderer/postproc"
)

// RenderSystemBuilderOption is a functional option applied to a render system during construction via
// NewRenderSystem.
type RenderSystemBuilderOption func(*renderSystemImpl)

// WithMaxInstances sets the instance buffer capacity.
//
// Parameters:
//   - n: the maximum number of instances per update
//
// Returns:
//   - RenderSystemBuilderOption: a function that applies the capacity to a render system
func WithMaxInstances(n int) RenderSystemBuilderOption {
	return func(rs *renderSystemImpl) {
		rs.maxInstances = n
	}
}

// WithBloom sets the bloom settings.
//
// Parameters:
//   - s: the bloom settings
//
// Returns:
//   - RenderSystemBuilderOption: a function that applies the bloom settings to a render system
func WithBloom(s postproc.BloomSettings) RenderSystemBuilderOption {
	return func(rs *renderSystemImpl) {
		rs.bloom = s
	}
}

// WithSharpen sets the sharpen settings.
//
// Parameters:
//   - s: the sharpen settings
//
// Returns:
//   - RenderSystemBuilderOption: a function that applies the sharpen settings to a render system
func WithSharpen(s postproc.SharpenSettings) RenderSystemBuilderOption {
	return func(rs *renderSystemImpl) {
		rs.sharpen = s
	}
}

// WithTAA sets the TAA settings. Disabled TAA also turns off camera jitter.
//
// Parameters:
//   - s: the TAA settings
//
// Returns:
//   - RenderSystemBuilderOption: a function that applies the TAA settings to a render system
func WithTAA(s postproc.TAASettings) RenderSystemBuilderOption {
	return func(rs *renderSystemImpl) {
		rs.taa = s
	}
}

// WithConfig applies the instance capacity and post effect settings of a renderer config.
//
// Parameters:
//   - cfg: the config
//
// Returns:
//   - RenderSystemBuilderOption: a function that applies the config to a render system
func WithConfig(cfg config.RendererConfig) RenderSystemBuilderOption {
	return func(rs *renderSystemImpl) {
		rs.maxInstances = cfg.MaxInstances
		rs.bloom = postproc.BloomSettings{
			Enabled:   cfg.Bloom.Enabled,
			Threshold: cfg.Bloom.Threshold,
			Knee:      cfg.Bloom.KneeWidth,
			Intensity: cfg.Bloom.Intensity,
		}
		rs.sharpen = postproc.SharpenSettings{Enabled: cfg.Sharpen.Enabled, Strength: cfg.Sharpen.Strength}
		rs.taa = postproc.TAASettings{Enabled: cfg.TAA.Enabled, SampleCount: cfg.TAA.SampleCount, Blend: cfg.TAA.Blend}
	}
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(logger common.Logger) RenderSystemBuilderOption {
	return func(rs *renderSystemImpl) {
		if logger != nil {
			rs.logger = logger
		}
	}
}
