package gpu

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-xr/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// UploadTexture creates a sampled 2D texture from RGBA8 staging data, uploads the pixels and creates a
// view over it.
//
// Parameters:
//   - device: the device to create on
//   - label: debug label for the texture and view
//   - data: the RGBA pixels, 4 bytes per pixel
//   - format: an RGBA8 format, usually RGBA8UnormSrgb for color and RGBA8Unorm for data maps
//
// Returns:
//   - Texture: the texture
//   - TextureView: a view over the whole texture
//   - error: if the pixel data does not match the size or creation fails
func UploadTexture(device Device, label string, data common.TextureStagingData, format wgpu.TextureFormat) (Texture, TextureView, error) {
	if want := int(data.Width) * int(data.Height) * 4; want == 0 || len(data.Pixels) != want {
		return nil, nil, fmt.Errorf("texture %s: %d bytes for %dx%d: %w", label, len(data.Pixels), data.Width, data.Height, ErrBufferTooSmall)
	}

	size := wgpu.Extent3D{Width: data.Width, Height: data.Height, DepthOrArrayLayers: 1}
	tex, err := device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label + " Texture",
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension:     wgpu.TextureDimension2D,
		Size:          size,
		Format:        format,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create texture %s: %w", label, err)
	}

	err = device.WriteTexture(TextureWrite{
		Texture:      tex,
		BytesPerRow:  data.Width * 4,
		RowsPerImage: data.Height,
		Size:         size,
	}, data.Pixels)
	if err != nil {
		tex.Release()
		return nil, nil, fmt.Errorf("failed to upload texture %s: %w", label, err)
	}

	view, err := device.CreateTextureView(tex, nil)
	if err != nil {
		tex.Release()
		return nil, nil, fmt.Errorf("failed to create view for texture %s: %w", label, err)
	}
	return tex, view, nil
}

// CreateSampler creates a sampler from staging data. Unset fields default to repeat addressing and
// linear filtering.
//
// Parameters:
//   - device: the device to create on
//   - label: debug label
//   - data: the sampler configuration
//
// Returns:
//   - Sampler: the sampler
//   - error: if creation fails
func CreateSampler(device Device, label string, data common.SamplerStagingData) (Sampler, error) {
	return device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         label + " Sampler",
		AddressModeU:  common.Coalesce(data.AddressModeU, wgpu.AddressModeRepeat),
		AddressModeV:  common.Coalesce(data.AddressModeV, wgpu.AddressModeRepeat),
		AddressModeW:  common.Coalesce(data.AddressModeW, wgpu.AddressModeRepeat),
		MagFilter:     common.Coalesce(data.MagFilter, wgpu.FilterModeLinear),
		MinFilter:     common.Coalesce(data.MinFilter, wgpu.FilterModeLinear),
		MipmapFilter:  common.Coalesce(data.MipmapFilter, wgpu.MipmapFilterModeLinear),
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
}
