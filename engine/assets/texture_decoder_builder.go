package assets

import "github.com/Carmen-Shannon/oxy-xr/common"

// TextureDecoderBuilderOption is a functional option for configuring a TextureDecoder.
type TextureDecoderBuilderOption func(*textureDecoder)

// WithLogger sets the logger used by the TextureDecoder.
func WithLogger(logger common.Logger) TextureDecoderBuilderOption {
	return func(d *textureDecoder) {
		d.logger = logger
	}
}
