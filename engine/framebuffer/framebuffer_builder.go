package framebuffer

import "github.com/Carmen-Shannon/oxy-xr/common"

// FramebufferBuilderOption is a functional option for configuring a Framebuffer.
type FramebufferBuilderOption func(*Framebuffer)

// WithRingSize sets the number of ring color buffers. New fails for sizes below common.MinRingSize.
func WithRingSize(size int) FramebufferBuilderOption {
	return func(fb *Framebuffer) {
		fb.ringSize = size
	}
}

// WithLabel sets the label prefix of every resource.
func WithLabel(label string) FramebufferBuilderOption {
	return func(fb *Framebuffer) {
		fb.label = label
	}
}

// WithLogger sets the logger.
func WithLogger(logger common.Logger) FramebufferBuilderOption {
	return func(fb *Framebuffer) {
		fb.logger = logger
	}
}
