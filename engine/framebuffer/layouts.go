package framebuffer

import "github.com/cogentcore/webgpu/wgpu"

func viewDimension(layers uint32) wgpu.TextureViewDimension {
	if layers > 1 {
		return wgpu.TextureViewDimension2DArray
	}
	return wgpu.TextureViewDimension2D
}

// InputBindGroupLayoutDescriptor describes a post-process input: a filtering sampler at binding 0
// and a float texture at binding 1.
//
// Parameters:
//   - layers: the texture layer count; more than one selects a 2D-array view
//
// Returns:
//   - *wgpu.BindGroupLayoutDescriptor: the descriptor
func InputBindGroupLayoutDescriptor(layers uint32) *wgpu.BindGroupLayoutDescriptor {
	return &wgpu.BindGroupLayoutDescriptor{
		Label: "Input Bind Group Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: viewDimension(layers),
				},
			},
		},
	}
}

// GBufferBindGroupLayoutDescriptor describes the G-buffer group: a non-filtering sampler and an
// unfilterable float texture per color target, at bindings 0 through 7.
//
// Parameters:
//   - layers: the texture layer count; more than one selects a 2D-array view
//
// Returns:
//   - *wgpu.BindGroupLayoutDescriptor: the descriptor
func GBufferBindGroupLayoutDescriptor(layers uint32) *wgpu.BindGroupLayoutDescriptor {
	entries := make([]wgpu.BindGroupLayoutEntry, 0, 2*GBufferColorCount)
	for i := range uint32(GBufferColorCount) {
		entries = append(entries,
			wgpu.BindGroupLayoutEntry{
				Binding:    2 * i,
				Visibility: wgpu.ShaderStageFragment,
				Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeNonFiltering},
			},
			wgpu.BindGroupLayoutEntry{
				Binding:    2*i + 1,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeUnfilterableFloat,
					ViewDimension: viewDimension(layers),
				},
			},
		)
	}
	return &wgpu.BindGroupLayoutDescriptor{Label: "GBuffer Bind Group Layout", Entries: entries}
}
