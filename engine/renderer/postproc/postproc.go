// Package postproc records the full-screen passes that follow the G-buffer pass: deferred lighting,
// TAA, bloom, sharpen, tonemap and the copy into a presentation target. Every pass draws one triangle
// covering the viewport and reads its input through the framebuffer's ring of color buffers.
package postproc

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-xr/engine/gpu"
	"github.com/Carmen-Shannon/oxy-xr/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-xr/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// Pass labels, in recording order.
const (
	LightingPassLabel        = "Deferred Lighting"
	TAAPassLabel             = "TAA"
	BloomBrightnessPassLabel = "Bloom Brightness"
	BloomDownsamplePassLabel = "Bloom Downsample"
	BloomBlurHPassLabel      = "Bloom Blur Horizontal"
	BloomBlurVPassLabel      = "Bloom Blur Vertical"
	BloomUpsamplePassLabel   = "Bloom Upsample"
	BloomCompositePassLabel  = "Bloom Composite"
	SharpenPassLabel         = "Sharpen"
	TonemapPassLabel         = "Tonemap"
	CopyPassLabel            = "Copy To Target"
)

// Proc is one full-screen triangle pass.
type Proc struct {
	label    string
	pipeline pipeline.Pipeline
}

// Label returns the render pass label.
func (p Proc) Label() string {
	return p.label
}

// Pipeline returns the pipeline the pass draws with.
func (p Proc) Pipeline() pipeline.Pipeline {
	return p.pipeline
}

// Draw records one render pass into target, binds groups at indices 0..n-1 and draws the triangle.
//
// Parameters:
//   - encoder: the frame's command encoder
//   - target: the color attachment written by the pass
//   - groups: bind groups in group-index order
//
// Returns:
//   - error: if the pipeline is not built or the pass is invalid
func (p Proc) Draw(encoder gpu.CommandEncoder, target gpu.ColorAttachment, groups ...gpu.BindGroup) error {
	return p.DrawLabeled(p.label, encoder, target, groups...)
}

// DrawLabeled is Draw with a pass label override, used by passes recorded more than once per frame.
func (p Proc) DrawLabeled(label string, encoder gpu.CommandEncoder, target gpu.ColorAttachment, groups ...gpu.BindGroup) error {
	pass := encoder.BeginRenderPass(&gpu.RenderPassDescriptor{
		Label:            label,
		ColorAttachments: []gpu.ColorAttachment{target},
	})
	if err := p.pipeline.Bind(pass); err != nil {
		_ = pass.End()
		return err
	}
	for i, g := range groups {
		pass.SetBindGroup(uint32(i), g, nil)
	}
	pass.Draw(3, 1, 0, 0)
	if err := pass.End(); err != nil {
		return fmt.Errorf("%s pass: %w", label, err)
	}
	return nil
}

// viewDefines returns the defines and pipeline options shared by every pass rendering viewCount views.
func viewDefines(viewCount int) (map[string]shader.Value, []pipeline.PipelineBuilderOption) {
	defs := map[string]shader.Value{"VIEW_COUNT": shader.Uint(uint32(viewCount))}
	var opts []pipeline.PipelineBuilderOption
	if viewCount > 1 {
		defs["MULTIVIEW"] = shader.Def()
		opts = append(opts, pipeline.WithMultiview(uint32(viewCount)))
	}
	return defs, opts
}

// fullscreenPipeline describes a post-process pipeline: no vertex buffers, no depth, one color target.
func fullscreenPipeline(key, shaderName string, format wgpu.TextureFormat, defs map[string]shader.Value, layouts []gpu.BindGroupLayout, extra ...pipeline.PipelineBuilderOption) pipeline.Pipeline {
	opts := []pipeline.PipelineBuilderOption{
		pipeline.WithDefines(defs),
		pipeline.WithBindGroupLayouts(layouts...),
		pipeline.WithColorTargets(format),
		pipeline.WithDepthTestEnabled(false),
		pipeline.WithDepthWriteEnabled(false),
	}
	return pipeline.NewPipeline(key, shaderName, append(opts, extra...)...)
}

// ParamsBindGroupLayoutDescriptor describes a 16-byte fragment uniform at binding 0, the params group of
// the bloom and sharpen passes.
func ParamsBindGroupLayoutDescriptor() *wgpu.BindGroupLayoutDescriptor {
	return &wgpu.BindGroupLayoutDescriptor{
		Label: "PostProc Params Bind Group Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: GPUParamsSize,
				},
			},
		},
	}
}

// isSRGB reports whether writes to format are gamma encoded by the hardware.
func isSRGB(format wgpu.TextureFormat) bool {
	switch format {
	case wgpu.TextureFormatRGBA8UnormSrgb, wgpu.TextureFormatBGRA8UnormSrgb:
		return true
	default:
		return false
	}
}
