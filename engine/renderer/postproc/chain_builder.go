package postproc

import "github.com/Carmen-Shannon/oxy-xr/common"

// ChainBuilderOption is a functional option for configuring a Chain.
type ChainBuilderOption func(*Chain)

// WithBloom sets the initial bloom settings.
//
// Parameters:
//   - s: the bloom settings
//
// Returns:
//   - ChainBuilderOption: a function that sets the bloom settings
func WithBloom(s BloomSettings) ChainBuilderOption {
	return func(c *Chain) {
		c.bloom = s
	}
}

// WithSharpen sets the initial sharpen settings.
//
// Parameters:
//   - s: the sharpen settings
//
// Returns:
//   - ChainBuilderOption: a function that sets the sharpen settings
func WithSharpen(s SharpenSettings) ChainBuilderOption {
	return func(c *Chain) {
		c.sharpen = s
	}
}

// WithTAA sets the initial TAA settings.
//
// Parameters:
//   - s: the TAA settings
//
// Returns:
//   - ChainBuilderOption: a function that sets the TAA settings
func WithTAA(s TAASettings) ChainBuilderOption {
	return func(c *Chain) {
		c.taa = s
	}
}

// WithLogger sets the logger used for pipeline rebuild failures. A nil logger is ignored.
func WithLogger(logger common.Logger) ChainBuilderOption {
	return func(c *Chain) {
		if logger != nil {
			c.logger = logger
		}
	}
}
