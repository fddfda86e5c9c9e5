package gpu_test

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-xr/common"
	"github.com/Carmen-Shannon/oxy-xr/engine/gpu"
	"github.com/Carmen-Shannon/oxy-xr/engine/gpu/gputest"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newColorTarget(t *testing.T, d gpu.Device, layers uint32) *gpu.RenderTarget {
	t.Helper()
	rt, err := gpu.NewRenderTarget(d, gpu.RenderTargetDescriptor{
		Label:  "color",
		Extent: common.Extent{Width: 64, Height: 32, Layers: layers},
		Format: wgpu.TextureFormatRGBA16Float,
		Usage:  wgpu.TextureUsageTextureBinding,
		Ops:    gpu.ClearColorOps(wgpu.Color{A: 1}),
	})
	require.NoError(t, err)
	return rt
}

func newDepthTarget(t *testing.T, d gpu.Device) *gpu.RenderTarget {
	t.Helper()
	rt, err := gpu.NewRenderTarget(d, gpu.RenderTargetDescriptor{
		Label:  "depth",
		Extent: common.NewExtent(64, 32),
		Format: wgpu.TextureFormatDepth24PlusStencil8,
		Ops: gpu.DepthStencilOps{
			Depth:   &gpu.DepthOps{Load: wgpu.LoadOpClear, Store: wgpu.StoreOpStore, Clear: 1},
			Stencil: &gpu.StencilOps{Load: wgpu.LoadOpClear, Store: wgpu.StoreOpStore},
		},
	})
	require.NoError(t, err)
	return rt
}

func TestRenderTargetTypeMismatch(t *testing.T) {
	d := gputest.NewDevice()
	color := newColorTarget(t, d, 1)
	depth := newDepthTarget(t, d)

	_, err := color.DepthStencilOps()
	assert.ErrorIs(t, err, gpu.ErrTargetTypeMismatch)
	_, err = color.DepthStencilAttachment()
	assert.ErrorIs(t, err, gpu.ErrTargetTypeMismatch)

	_, err = depth.ColorOps()
	assert.ErrorIs(t, err, gpu.ErrTargetTypeMismatch)
	_, err = depth.ColorAttachment()
	assert.ErrorIs(t, err, gpu.ErrTargetTypeMismatch)

	assert.False(t, color.IsDepth())
	assert.True(t, depth.IsDepth())
}

func TestRenderTargetAttachments(t *testing.T) {
	d := gputest.NewDevice()

	ca, err := newColorTarget(t, d, 1).ColorAttachment()
	require.NoError(t, err)
	assert.Equal(t, wgpu.LoadOpClear, ca.LoadOp)
	assert.Equal(t, wgpu.StoreOpStore, ca.StoreOp)
	assert.Equal(t, 1.0, ca.ClearValue.A)

	da, err := newDepthTarget(t, d).DepthStencilAttachment()
	require.NoError(t, err)
	assert.Equal(t, float32(1), da.DepthClearValue)
	assert.False(t, da.DepthReadOnly)
	assert.False(t, da.StencilReadOnly)
}

func TestRenderTargetViewDimension(t *testing.T) {
	d := gputest.NewDevice()

	mono := newColorTarget(t, d, 1)
	assert.Equal(t, wgpu.TextureViewDimension2D, mono.View().(*gputest.TextureView).Desc.Dimension)

	stereo := newColorTarget(t, d, 2)
	view := stereo.View().(*gputest.TextureView)
	assert.Equal(t, wgpu.TextureViewDimension2DArray, view.Desc.Dimension)
	assert.Equal(t, uint32(2), view.Desc.ArrayLayerCount)
	assert.Equal(t, uint32(2), stereo.Extent().Layers)

	tex := stereo.Texture().(*gputest.Texture)
	assert.NotZero(t, tex.Desc.Usage&wgpu.TextureUsageRenderAttachment)
	assert.NotZero(t, tex.Desc.Usage&wgpu.TextureUsageTextureBinding)
}

func TestLayerTargetReleasesOnlyView(t *testing.T) {
	d := gputest.NewDevice()
	array := newColorTarget(t, d, 4)

	layer, err := gpu.NewLayerTarget(d, array.Texture(), 3, gpu.RenderTargetDescriptor{
		Label:  "layer 3",
		Extent: common.NewExtent(64, 32),
		Format: wgpu.TextureFormatRGBA16Float,
		Ops:    gpu.ClearColorOps(wgpu.Color{}),
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(3), layer.View().(*gputest.TextureView).Desc.BaseArrayLayer)

	tex := array.Texture().(*gputest.Texture)
	layer.Release()
	assert.False(t, tex.Released)
	array.Release()
	assert.True(t, tex.Released)
}
