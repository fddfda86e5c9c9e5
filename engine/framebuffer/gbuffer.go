package framebuffer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-xr/common"
	"github.com/Carmen-Shannon/oxy-xr/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

const (
	// GBufferColorFormat is the format of the four G-buffer color targets.
	GBufferColorFormat = wgpu.TextureFormatRGBA16Float
	// DepthStencilFormat is the G-buffer depth-stencil format.
	DepthStencilFormat = wgpu.TextureFormatDepth24PlusStencil8
	// GBufferColorCount is the number of G-buffer color targets.
	GBufferColorCount = 4
)

// GBuffer holds the geometry pass targets. All five share one extent and layer count.
type GBuffer struct {
	PositionMetallic *gpu.RenderTarget
	NormalRoughness  *gpu.RenderTarget
	AlbedoOcclusion  *gpu.RenderTarget
	Emissive         *gpu.RenderTarget
	DepthStencil     *gpu.RenderTarget
}

func newGBuffer(device gpu.Device, extent common.Extent, label string) (*GBuffer, error) {
	g := &GBuffer{}
	colors := []struct {
		target **gpu.RenderTarget
		name   string
	}{
		{&g.PositionMetallic, "Position Metallic"},
		{&g.NormalRoughness, "Normal Roughness"},
		{&g.AlbedoOcclusion, "Albedo Occlusion"},
		{&g.Emissive, "Emissive"},
	}
	for _, c := range colors {
		t, err := gpu.NewRenderTarget(device, gpu.RenderTargetDescriptor{
			Label:  fmt.Sprintf("%s GBuffer %s", label, c.name),
			Extent: extent,
			Format: GBufferColorFormat,
			Usage:  wgpu.TextureUsageTextureBinding,
			Ops:    gpu.ClearColorOps(wgpu.Color{}),
		})
		if err != nil {
			g.Release()
			return nil, err
		}
		*c.target = t
	}

	depth, err := gpu.NewRenderTarget(device, gpu.RenderTargetDescriptor{
		Label:  label + " GBuffer Depth Stencil",
		Extent: extent,
		Format: DepthStencilFormat,
		Ops: gpu.DepthStencilOps{
			Depth:   &gpu.DepthOps{Load: wgpu.LoadOpClear, Store: wgpu.StoreOpStore, Clear: 1.0},
			Stencil: &gpu.StencilOps{Load: wgpu.LoadOpClear, Store: wgpu.StoreOpStore, Clear: 0},
		},
	})
	if err != nil {
		g.Release()
		return nil, err
	}
	g.DepthStencil = depth
	return g, nil
}

// ColorTargets returns the color targets in attachment order.
func (g *GBuffer) ColorTargets() [GBufferColorCount]*gpu.RenderTarget {
	return [GBufferColorCount]*gpu.RenderTarget{g.PositionMetallic, g.NormalRoughness, g.AlbedoOcclusion, g.Emissive}
}

// Attachments returns the four color attachments and the depth-stencil attachment.
func (g *GBuffer) Attachments() ([]gpu.ColorAttachment, *gpu.DepthStencilAttachment, error) {
	colors := make([]gpu.ColorAttachment, 0, GBufferColorCount)
	for _, t := range g.ColorTargets() {
		att, err := t.ColorAttachment()
		if err != nil {
			return nil, nil, err
		}
		colors = append(colors, att)
	}
	depth, err := g.DepthStencil.DepthStencilAttachment()
	if err != nil {
		return nil, nil, err
	}
	return colors, depth, nil
}

// Release frees every target. It tolerates a partially built GBuffer.
func (g *GBuffer) Release() {
	for _, t := range []*gpu.RenderTarget{g.PositionMetallic, g.NormalRoughness, g.AlbedoOcclusion, g.Emissive, g.DepthStencil} {
		if t != nil {
			t.Release()
		}
	}
}
