// Package framebuffer owns the per-camera render targets: the G-buffer, a ring of HDR color
// buffers that post passes ping-pong through, the bloom chain and the final output color.
package framebuffer

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-xr/common"
	"github.com/Carmen-Shannon/oxy-xr/engine/gpu"
	"github.com/chewxy/math32"
	"github.com/cogentcore/webgpu/wgpu"
)

const (
	// HDRFormat is the format of the ring color buffers and the bloom chain.
	HDRFormat = wgpu.TextureFormatRGBA16Float
	// DefaultRingSize is the number of ring color buffers when none is configured.
	DefaultRingSize = common.MinRingSize
	// MaxBloomLevels caps the bloom chain depth.
	MaxBloomLevels = 3
	// MinBloomSize is the smallest edge, in texels, the deepest bloom level may reach.
	MinBloomSize = 128
)

// ErrInvalidRingSize is returned when the ring would have fewer than common.MinRingSize buffers.
var ErrInvalidRingSize = errors.New("invalid ring size")

// Framebuffer holds every render target one camera renders into. All targets are created eagerly.
type Framebuffer struct {
	device       gpu.Device
	label        string
	logger       common.Logger
	extent       common.Extent
	outputFormat wgpu.TextureFormat
	ringSize     int

	ring common.Ring

	gbuffer       *GBuffer
	gbufferLayout gpu.BindGroupLayout
	gbufferGroup  gpu.BindGroup

	inputLayout gpu.BindGroupLayout
	colors      []*gpu.RenderTarget
	colorGroups []gpu.BindGroup

	bloomDown       []*gpu.RenderTarget
	bloomDownGroups []gpu.BindGroup
	bloomBlur       []*gpu.RenderTarget
	bloomBlurGroups []gpu.BindGroup

	finalColor *gpu.RenderTarget
	finalGroup gpu.BindGroup

	linearSampler gpu.Sampler
	pointSampler  gpu.Sampler
}

// New creates a Framebuffer and every target and bind group it owns.
//
// Parameters:
//   - device: the device to allocate on
//   - extent: the render size; Layers above 1 selects array targets
//   - outputFormat: the format of the final color target
//   - options: optional builder options
//
// Returns:
//   - *Framebuffer: the framebuffer
//   - error: ErrInvalidRingSize, or an allocation error
func New(device gpu.Device, extent common.Extent, outputFormat wgpu.TextureFormat, options ...FramebufferBuilderOption) (*Framebuffer, error) {
	fb := &Framebuffer{
		device:       device,
		label:        "Framebuffer",
		logger:       common.NewNopLogger(),
		outputFormat: outputFormat,
		ringSize:     DefaultRingSize,
	}
	for _, opt := range options {
		opt(fb)
	}

	ring, err := common.NewRing(fb.ringSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRingSize, err)
	}
	fb.ring = ring

	if err := fb.allocate(extent); err != nil {
		fb.Release()
		return nil, err
	}
	return fb, nil
}

// BloomLevels returns the bloom chain depth for an extent: the largest L up to MaxBloomLevels with
// min(width, height) / 2^L >= MinBloomSize, and never less than 1.
func BloomLevels(extent common.Extent) int {
	edge := min(extent.Width, extent.Height)
	if edge < 2*MinBloomSize {
		return 1
	}
	levels := int(math32.Floor(math32.Log2(float32(edge) / MinBloomSize)))
	return min(max(levels, 1), MaxBloomLevels)
}

// BloomLevelExtent returns the size of bloom level i: each edge halved i+1 times, at least 1.
func BloomLevelExtent(extent common.Extent, level int) common.Extent {
	return common.Extent{
		Width:  max(1, extent.Width>>(level+1)),
		Height: max(1, extent.Height>>(level+1)),
		Layers: extent.LayerCount(),
	}
}

func (fb *Framebuffer) allocate(extent common.Extent) error {
	fb.extent = common.Extent{Width: extent.Width, Height: extent.Height, Layers: extent.LayerCount()}
	layers := fb.extent.Layers
	var err error

	if fb.linearSampler == nil {
		fb.linearSampler, err = fb.device.CreateSampler(&wgpu.SamplerDescriptor{
			Label:         fb.label + " Linear Sampler",
			AddressModeU:  wgpu.AddressModeClampToEdge,
			AddressModeV:  wgpu.AddressModeClampToEdge,
			AddressModeW:  wgpu.AddressModeClampToEdge,
			MagFilter:     wgpu.FilterModeLinear,
			MinFilter:     wgpu.FilterModeLinear,
			MipmapFilter:  wgpu.MipmapFilterModeNearest,
			LodMaxClamp:   32.0,
			MaxAnisotropy: 1,
		})
		if err != nil {
			return fmt.Errorf("failed to create linear sampler: %w", err)
		}
		fb.pointSampler, err = fb.device.CreateSampler(&wgpu.SamplerDescriptor{
			Label:         fb.label + " Point Sampler",
			AddressModeU:  wgpu.AddressModeClampToEdge,
			AddressModeV:  wgpu.AddressModeClampToEdge,
			AddressModeW:  wgpu.AddressModeClampToEdge,
			MagFilter:     wgpu.FilterModeNearest,
			MinFilter:     wgpu.FilterModeNearest,
			MipmapFilter:  wgpu.MipmapFilterModeNearest,
			LodMaxClamp:   32.0,
			MaxAnisotropy: 1,
		})
		if err != nil {
			return fmt.Errorf("failed to create point sampler: %w", err)
		}
	}

	if fb.inputLayout, err = fb.device.CreateBindGroupLayout(InputBindGroupLayoutDescriptor(layers)); err != nil {
		return fmt.Errorf("failed to create input bind group layout: %w", err)
	}
	if fb.gbufferLayout, err = fb.device.CreateBindGroupLayout(GBufferBindGroupLayoutDescriptor(layers)); err != nil {
		return fmt.Errorf("failed to create gbuffer bind group layout: %w", err)
	}

	if fb.gbuffer, err = newGBuffer(fb.device, fb.extent, fb.label); err != nil {
		return err
	}
	if err := fb.createGBufferGroup(); err != nil {
		return err
	}

	fb.colors = make([]*gpu.RenderTarget, 0, fb.ringSize)
	fb.colorGroups = make([]gpu.BindGroup, 0, fb.ringSize)
	for i := range fb.ringSize {
		t, g, err := fb.createInputTarget(fmt.Sprintf("%s Color %d", fb.label, i), fb.extent, HDRFormat)
		if err != nil {
			return err
		}
		fb.colors = append(fb.colors, t)
		fb.colorGroups = append(fb.colorGroups, g)
	}

	levels := BloomLevels(fb.extent)
	fb.bloomDown, fb.bloomDownGroups = nil, nil
	fb.bloomBlur, fb.bloomBlurGroups = nil, nil
	for i := range levels {
		size := BloomLevelExtent(fb.extent, i)
		t, g, err := fb.createInputTarget(fmt.Sprintf("%s Bloom Downsample %d", fb.label, i), size, HDRFormat)
		if err != nil {
			return err
		}
		fb.bloomDown = append(fb.bloomDown, t)
		fb.bloomDownGroups = append(fb.bloomDownGroups, g)

		t, g, err = fb.createInputTarget(fmt.Sprintf("%s Bloom Blur %d", fb.label, i), size, HDRFormat)
		if err != nil {
			return err
		}
		fb.bloomBlur = append(fb.bloomBlur, t)
		fb.bloomBlurGroups = append(fb.bloomBlurGroups, g)
	}

	fb.finalColor, fb.finalGroup, err = fb.createInputTarget(fb.label+" Final Color", fb.extent, fb.outputFormat)
	if err != nil {
		return err
	}

	fb.logger.Debugf("%s allocated %dx%dx%d, ring %d, bloom levels %d", fb.label, fb.extent.Width, fb.extent.Height, layers, fb.ringSize, levels)
	return nil
}

func (fb *Framebuffer) createInputTarget(label string, extent common.Extent, format wgpu.TextureFormat) (*gpu.RenderTarget, gpu.BindGroup, error) {
	t, err := gpu.NewRenderTarget(fb.device, gpu.RenderTargetDescriptor{
		Label:  label,
		Extent: extent,
		Format: format,
		Usage:  wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopySrc,
		Ops:    gpu.ClearColorOps(wgpu.Color{}),
	})
	if err != nil {
		return nil, nil, err
	}
	g, err := fb.device.CreateBindGroup(&gpu.BindGroupDescriptor{
		Label:  label + " Bind Group",
		Layout: fb.inputLayout,
		Entries: []gpu.BindGroupEntry{
			{Binding: 0, Sampler: fb.linearSampler},
			{Binding: 1, TextureView: t.View()},
		},
	})
	if err != nil {
		t.Release()
		return nil, nil, fmt.Errorf("failed to create bind group %s: %w", label, err)
	}
	return t, g, nil
}

func (fb *Framebuffer) createGBufferGroup() error {
	entries := make([]gpu.BindGroupEntry, 0, 2*GBufferColorCount)
	for i, t := range fb.gbuffer.ColorTargets() {
		entries = append(entries,
			gpu.BindGroupEntry{Binding: uint32(2 * i), Sampler: fb.pointSampler},
			gpu.BindGroupEntry{Binding: uint32(2*i + 1), TextureView: t.View()},
		)
	}
	g, err := fb.device.CreateBindGroup(&gpu.BindGroupDescriptor{
		Label:   fb.label + " GBuffer Bind Group",
		Layout:  fb.gbufferLayout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("failed to create gbuffer bind group: %w", err)
	}
	fb.gbufferGroup = g
	return nil
}

// BeginFrame rotates the ring: previous takes current and current moves to the next slot.
func (fb *Framebuffer) BeginFrame() {
	fb.ring.Rotate()
}

// SwapFrame makes the output slot current. Call it after each pass that wrote OutputTarget.
func (fb *Framebuffer) SwapFrame() {
	fb.ring.Advance()
}

// Ring returns the ring indices.
func (fb *Framebuffer) Ring() common.Ring { return fb.ring }

// RingSize returns the number of ring color buffers.
func (fb *Framebuffer) RingSize() int { return fb.ringSize }

// CurrentIndex returns the ring slot holding the latest color.
func (fb *Framebuffer) CurrentIndex() int { return fb.ring.Current() }

// PreviousIndex returns the ring slot holding the previous frame's final HDR color.
func (fb *Framebuffer) PreviousIndex() int { return fb.ring.Previous() }

// OutputIndex returns the free ring slot a pass may write.
func (fb *Framebuffer) OutputIndex() int { return fb.ring.FreeSlot() }

// CurrentTarget returns the ring buffer at the current slot.
func (fb *Framebuffer) CurrentTarget() *gpu.RenderTarget { return fb.colors[fb.ring.Current()] }

// OutputTarget returns the ring buffer at the free slot.
func (fb *Framebuffer) OutputTarget() *gpu.RenderTarget { return fb.colors[fb.OutputIndex()] }

// OutputAttachments returns the color attachment for the free slot.
func (fb *Framebuffer) OutputAttachments() ([]gpu.ColorAttachment, error) {
	att, err := fb.OutputTarget().ColorAttachment()
	if err != nil {
		return nil, err
	}
	return []gpu.ColorAttachment{att}, nil
}

// InputBindGroup returns the bind group sampling the current slot.
func (fb *Framebuffer) InputBindGroup() gpu.BindGroup { return fb.colorGroups[fb.ring.Current()] }

// HistoryBindGroup returns the bind group sampling the previous slot.
func (fb *Framebuffer) HistoryBindGroup() gpu.BindGroup { return fb.colorGroups[fb.ring.Previous()] }

// InputBindGroupLayout returns the layout shared by every input bind group.
func (fb *Framebuffer) InputBindGroupLayout() gpu.BindGroupLayout { return fb.inputLayout }

// GBuffer returns the geometry targets.
func (fb *Framebuffer) GBuffer() *GBuffer { return fb.gbuffer }

// GBufferBindGroup returns the bind group sampling the four G-buffer color targets.
func (fb *Framebuffer) GBufferBindGroup() gpu.BindGroup { return fb.gbufferGroup }

// GBufferBindGroupLayout returns the G-buffer bind group layout.
func (fb *Framebuffer) GBufferBindGroupLayout() gpu.BindGroupLayout { return fb.gbufferLayout }

// GBufferAttachments returns the geometry pass attachments: four colors and depth-stencil.
func (fb *Framebuffer) GBufferAttachments() ([]gpu.ColorAttachment, *gpu.DepthStencilAttachment, error) {
	return fb.gbuffer.Attachments()
}

// BloomLevelCount returns the depth of the bloom chain.
func (fb *Framebuffer) BloomLevelCount() int { return len(fb.bloomDown) }

// BloomDownsampleTarget returns bloom downsample level i.
func (fb *Framebuffer) BloomDownsampleTarget(i int) *gpu.RenderTarget { return fb.bloomDown[i] }

// BloomDownsampleBindGroup returns the bind group sampling downsample level i.
func (fb *Framebuffer) BloomDownsampleBindGroup(i int) gpu.BindGroup { return fb.bloomDownGroups[i] }

// BloomBlurTarget returns bloom blur level i.
func (fb *Framebuffer) BloomBlurTarget(i int) *gpu.RenderTarget { return fb.bloomBlur[i] }

// BloomBlurBindGroup returns the bind group sampling blur level i.
func (fb *Framebuffer) BloomBlurBindGroup(i int) gpu.BindGroup { return fb.bloomBlurGroups[i] }

// FinalColor returns the tonemapped output target.
func (fb *Framebuffer) FinalColor() *gpu.RenderTarget { return fb.finalColor }

// FinalBindGroup returns the bind group sampling the final color, used to copy it out.
func (fb *Framebuffer) FinalBindGroup() gpu.BindGroup { return fb.finalGroup }

// OutputFormat returns the final color format.
func (fb *Framebuffer) OutputFormat() wgpu.TextureFormat { return fb.outputFormat }

// Extent returns the render size.
func (fb *Framebuffer) Extent() common.Extent { return fb.extent }

// Label returns the debug label.
func (fb *Framebuffer) Label() string { return fb.label }

// Resize recreates every target and bind group at the new extent. The ring size and ring indices are kept.
func (fb *Framebuffer) Resize(extent common.Extent) error {
	fb.releaseTargets()
	if err := fb.allocate(extent); err != nil {
		return fmt.Errorf("failed to resize %s: %w", fb.label, err)
	}
	return nil
}

func (fb *Framebuffer) releaseTargets() {
	if fb.gbuffer != nil {
		fb.gbuffer.Release()
		fb.gbuffer = nil
	}
	releaseAll(fb.colors, fb.colorGroups)
	releaseAll(fb.bloomDown, fb.bloomDownGroups)
	releaseAll(fb.bloomBlur, fb.bloomBlurGroups)
	fb.colors, fb.colorGroups = nil, nil
	fb.bloomDown, fb.bloomDownGroups, fb.bloomBlur, fb.bloomBlurGroups = nil, nil, nil, nil
	for _, r := range []gpu.Releaser{fb.gbufferGroup, fb.finalGroup, fb.gbufferLayout, fb.inputLayout} {
		if r != nil {
			r.Release()
		}
	}
	if fb.finalColor != nil {
		fb.finalColor.Release()
	}
	fb.gbufferGroup, fb.finalGroup, fb.gbufferLayout, fb.inputLayout, fb.finalColor = nil, nil, nil, nil, nil
}

// Release frees every resource.
func (fb *Framebuffer) Release() {
	fb.releaseTargets()
	for _, s := range []gpu.Sampler{fb.linearSampler, fb.pointSampler} {
		if s != nil {
			s.Release()
		}
	}
	fb.linearSampler, fb.pointSampler = nil, nil
}

func releaseAll(targets []*gpu.RenderTarget, groups []gpu.BindGroup) {
	for _, t := range targets {
		t.Release()
	}
	for _, g := range groups {
		g.Release()
	}
}
