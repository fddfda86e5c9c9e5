package gpu

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-xr/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// AttachmentOps is the load/store configuration of a render target: ColorOps or DepthStencilOps.
type AttachmentOps interface {
	isAttachmentOps()
}

// ColorOps configures a color attachment.
type ColorOps struct {
	Load  wgpu.LoadOp
	Store wgpu.StoreOp
	Clear wgpu.Color
}

// DepthOps configures the depth aspect of a depth-stencil attachment.
type DepthOps struct {
	Load  wgpu.LoadOp
	Store wgpu.StoreOp
	Clear float32
}

// StencilOps configures the stencil aspect of a depth-stencil attachment.
type StencilOps struct {
	Load  wgpu.LoadOp
	Store wgpu.StoreOp
	Clear uint32
}

// DepthStencilOps configures a depth-stencil attachment. A nil aspect is left untouched.
type DepthStencilOps struct {
	Depth   *DepthOps
	Stencil *StencilOps
}

func (ColorOps) isAttachmentOps()        {}
func (DepthStencilOps) isAttachmentOps() {}

// ClearColorOps clears to c and stores.
func ClearColorOps(c wgpu.Color) ColorOps {
	return ColorOps{Load: wgpu.LoadOpClear, Store: wgpu.StoreOpStore, Clear: c}
}

// LoadColorOps keeps the existing contents and stores.
func LoadColorOps() ColorOps {
	return ColorOps{Load: wgpu.LoadOpLoad, Store: wgpu.StoreOpStore}
}

// RenderTargetDescriptor describes a render target texture.
type RenderTargetDescriptor struct {
	Label  string
	Extent common.Extent
	Format wgpu.TextureFormat
	// Usage is added to RenderAttachment.
	Usage wgpu.TextureUsage
	Ops   AttachmentOps
}

// RenderTarget is a texture usable as a pass attachment, together with its view and attachment ops.
// The ops kind is fixed at creation.
type RenderTarget struct {
	texture Texture
	view    TextureView
	format  wgpu.TextureFormat
	extent  common.Extent
	ops     AttachmentOps
	label   string
	owned   bool
}

// NewRenderTarget allocates a texture and a view over all of its layers. Multi-layer targets get a 2D-array view.
//
// Parameters:
//   - device: the device to allocate on
//   - desc: label, extent, format, extra usage and ops
//
// Returns:
//   - *RenderTarget: the target
//   - error: if the texture or view cannot be created
func NewRenderTarget(device Device, desc RenderTargetDescriptor) (*RenderTarget, error) {
	if desc.Ops == nil {
		return nil, fmt.Errorf("render target %s: attachment ops are required", desc.Label)
	}
	layers := desc.Extent.LayerCount()

	tex, err := device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         desc.Label,
		Usage:         wgpu.TextureUsageRenderAttachment | desc.Usage,
		Dimension:     wgpu.TextureDimension2D,
		Size:          desc.Extent.Size3D(),
		Format:        desc.Format,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create render target %s: %w", desc.Label, err)
	}

	dimension := wgpu.TextureViewDimension2D
	if layers > 1 {
		dimension = wgpu.TextureViewDimension2DArray
	}
	view, err := device.CreateTextureView(tex, &wgpu.TextureViewDescriptor{
		Label:           desc.Label + " View",
		Format:          desc.Format,
		Dimension:       dimension,
		BaseMipLevel:    0,
		MipLevelCount:   1,
		BaseArrayLayer:  0,
		ArrayLayerCount: layers,
		Aspect:          wgpu.TextureAspectAll,
	})
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("failed to create render target view %s: %w", desc.Label, err)
	}

	return &RenderTarget{
		texture: tex,
		view:    view,
		format:  desc.Format,
		extent:  common.Extent{Width: desc.Extent.Width, Height: desc.Extent.Height, Layers: layers},
		ops:     desc.Ops,
		label:   desc.Label,
		owned:   true,
	}, nil
}

// NewLayerTarget creates a single-layer 2D target over one layer of an existing array texture.
// The returned target releases only its view.
//
// Parameters:
//   - device: the device owning texture
//   - texture: the array texture
//   - layer: the array layer to view
//   - desc: label, per-layer extent, format and ops; Usage is ignored
//
// Returns:
//   - *RenderTarget: the layer target
//   - error: if the view cannot be created
func NewLayerTarget(device Device, texture Texture, layer uint32, desc RenderTargetDescriptor) (*RenderTarget, error) {
	view, err := device.CreateTextureView(texture, &wgpu.TextureViewDescriptor{
		Label:           desc.Label,
		Format:          desc.Format,
		Dimension:       wgpu.TextureViewDimension2D,
		BaseMipLevel:    0,
		MipLevelCount:   1,
		BaseArrayLayer:  layer,
		ArrayLayerCount: 1,
		Aspect:          wgpu.TextureAspectAll,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create layer view %s: %w", desc.Label, err)
	}
	return &RenderTarget{
		texture: texture,
		view:    view,
		format:  desc.Format,
		extent:  common.Extent{Width: desc.Extent.Width, Height: desc.Extent.Height, Layers: 1},
		ops:     desc.Ops,
		label:   desc.Label,
	}, nil
}

// Texture returns the backing texture.
func (t *RenderTarget) Texture() Texture { return t.texture }

// View returns the attachment view.
func (t *RenderTarget) View() TextureView { return t.view }

// Format returns the texture format.
func (t *RenderTarget) Format() wgpu.TextureFormat { return t.format }

// Extent returns the size and layer count.
func (t *RenderTarget) Extent() common.Extent { return t.extent }

// Label returns the debug label.
func (t *RenderTarget) Label() string { return t.label }

// IsDepth reports whether the target was configured with depth-stencil ops.
func (t *RenderTarget) IsDepth() bool {
	_, ok := t.ops.(DepthStencilOps)
	return ok
}

// ColorOps returns the target's color ops.
//
// Returns:
//   - ColorOps: the ops
//   - error: ErrTargetTypeMismatch if the target is a depth-stencil target
func (t *RenderTarget) ColorOps() (ColorOps, error) {
	ops, ok := t.ops.(ColorOps)
	if !ok {
		return ColorOps{}, fmt.Errorf("render target %s is not a color target: %w", t.label, ErrTargetTypeMismatch)
	}
	return ops, nil
}

// DepthStencilOps returns the target's depth-stencil ops.
//
// Returns:
//   - DepthStencilOps: the ops
//   - error: ErrTargetTypeMismatch if the target is a color target
func (t *RenderTarget) DepthStencilOps() (DepthStencilOps, error) {
	ops, ok := t.ops.(DepthStencilOps)
	if !ok {
		return DepthStencilOps{}, fmt.Errorf("render target %s is not a depth-stencil target: %w", t.label, ErrTargetTypeMismatch)
	}
	return ops, nil
}

// ColorAttachment builds a pass color attachment from the target's view and ops.
func (t *RenderTarget) ColorAttachment() (ColorAttachment, error) {
	ops, err := t.ColorOps()
	if err != nil {
		return ColorAttachment{}, err
	}
	return ColorAttachment{View: t.view, LoadOp: ops.Load, StoreOp: ops.Store, ClearValue: ops.Clear}, nil
}

// DepthStencilAttachment builds a pass depth-stencil attachment from the target's view and ops.
// An aspect without ops is marked read-only.
func (t *RenderTarget) DepthStencilAttachment() (*DepthStencilAttachment, error) {
	ops, err := t.DepthStencilOps()
	if err != nil {
		return nil, err
	}
	att := &DepthStencilAttachment{View: t.view, DepthReadOnly: ops.Depth == nil, StencilReadOnly: ops.Stencil == nil}
	if ops.Depth != nil {
		att.DepthLoadOp, att.DepthStoreOp, att.DepthClearValue = ops.Depth.Load, ops.Depth.Store, ops.Depth.Clear
	}
	if ops.Stencil != nil {
		att.StencilLoadOp, att.StencilStoreOp, att.StencilClearValue = ops.Stencil.Load, ops.Stencil.Store, ops.Stencil.Clear
	}
	return att, nil
}

// Release frees the view and, for targets that allocated their texture, the texture.
func (t *RenderTarget) Release() {
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.owned && t.texture != nil {
		t.texture.Release()
	}
	t.texture = nil
}
