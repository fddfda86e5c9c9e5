package light

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-xr/common"
	"github.com/Carmen-Shannon/oxy-xr/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

const (
	// MaxShadowmaps is the number of shadow slots the lighting pass can address.
	MaxShadowmaps = 64
	// ShadowmapFormat holds the two depth moments of variance shadow mapping.
	ShadowmapFormat = wgpu.TextureFormatRG32Float
	// ShadowDepthFormat is the depth format of the per-slot depth targets.
	ShadowDepthFormat = wgpu.TextureFormatDepth32Float
)

var (
	// ErrShadowmapPoolFull is returned when a light needs more slots than remain.
	ErrShadowmapPoolFull = errors.New("shadowmap pool is full")
	// ErrShadowmapNotFound is returned for a slot index past the pool size.
	ErrShadowmapNotFound = errors.New("shadowmap not found")
	// ErrUnknownShadowQuality is returned when parsing an unrecognized quality name.
	ErrUnknownShadowQuality = errors.New("unknown shadow quality")
)

// ShadowQuality selects the per-slot shadow map resolution.
type ShadowQuality int

const (
	ShadowQualityLow ShadowQuality = iota
	ShadowQualityMedium
	ShadowQualityHigh
	ShadowQualityUltra
)

// Resolution returns the width and height of one shadow map in texels.
func (q ShadowQuality) Resolution() uint32 {
	switch q {
	case ShadowQualityLow:
		return 512
	case ShadowQualityMedium:
		return 1024
	case ShadowQualityUltra:
		return 4096
	default:
		return 2048
	}
}

func (q ShadowQuality) String() string {
	switch q {
	case ShadowQualityLow:
		return "low"
	case ShadowQualityMedium:
		return "medium"
	case ShadowQualityHigh:
		return "high"
	case ShadowQualityUltra:
		return "ultra"
	default:
		return fmt.Sprintf("ShadowQuality(%d)", int(q))
	}
}

// ParseShadowQuality parses low, medium, high or ultra, case-insensitively.
//
// Parameters:
//   - s: the quality name
//
// Returns:
//   - ShadowQuality: the quality
//   - error: ErrUnknownShadowQuality for any other name
func ParseShadowQuality(s string) (ShadowQuality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return ShadowQualityLow, nil
	case "medium":
		return ShadowQualityMedium, nil
	case "high":
		return ShadowQualityHigh, nil
	case "ultra", "ultrahigh":
		return ShadowQualityUltra, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownShadowQuality, s)
}

// MarshalText implements encoding.TextMarshaler so config files carry the quality by name.
func (q ShadowQuality) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (q *ShadowQuality) UnmarshalText(text []byte) error {
	parsed, err := ParseShadowQuality(string(text))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

// ShadowmapPool hands out shadow slots to lights. The moments live in one array texture with a
// layer per slot; each slot also owns a depth target. Slots are handed out in order and only
// released all at once by Reset.
type ShadowmapPool struct {
	mu     *sync.Mutex
	device gpu.Device
	extent common.Extent

	array     gpu.Texture
	arrayView gpu.TextureView
	slots     []*gpu.RenderTarget
	depths    []*gpu.RenderTarget

	dummy          gpu.Texture
	dummyView      gpu.TextureView
	dummyArrayView gpu.TextureView
	sampler        gpu.Sampler

	assigned uint32
}

// NewShadowmapPool creates an empty pool. Backing storage is allocated as lights are assigned.
//
// Parameters:
//   - device: the device to allocate on
//   - quality: the shadow map resolution
//
// Returns:
//   - *ShadowmapPool: the pool
//   - error: if the dummy map or sampler cannot be created
func NewShadowmapPool(device gpu.Device, quality ShadowQuality) (*ShadowmapPool, error) {
	res := quality.Resolution()
	p := &ShadowmapPool{
		mu:     &sync.Mutex{},
		device: device,
		extent: common.NewExtent(res, res),
	}

	dummy, err := device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Dummy Shadowmap",
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageRenderAttachment,
		Dimension:     wgpu.TextureDimension2D,
		Size:          wgpu.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1},
		Format:        ShadowmapFormat,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create dummy shadowmap: %w", err)
	}
	p.dummy = dummy
	if p.dummyView, err = createShadowView(device, dummy, "Dummy Shadowmap View", wgpu.TextureViewDimension2D, 1); err != nil {
		p.Release()
		return nil, err
	}
	if p.dummyArrayView, err = createShadowView(device, dummy, "Dummy Shadowmap Array View", wgpu.TextureViewDimension2DArray, 1); err != nil {
		p.Release()
		return nil, err
	}

	p.sampler, err = device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Shadowmap Sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeNearest,
		MinFilter:     wgpu.FilterModeNearest,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		p.Release()
		return nil, fmt.Errorf("failed to create shadowmap sampler: %w", err)
	}
	return p, nil
}

func createShadowView(device gpu.Device, tex gpu.Texture, label string, dim wgpu.TextureViewDimension, layers uint32) (gpu.TextureView, error) {
	view, err := device.CreateTextureView(tex, &wgpu.TextureViewDescriptor{
		Label:           label,
		Format:          ShadowmapFormat,
		Dimension:       dim,
		MipLevelCount:   1,
		ArrayLayerCount: layers,
		Aspect:          wgpu.TextureAspectAll,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", label, err)
	}
	return view, nil
}

// AssignIndex gives the light a contiguous run of ShadowmapCount slots, growing the backing
// storage when the run does not fit. Nothing is assigned on failure.
//
// Parameters:
//   - light: the light to assign
//
// Returns:
//   - bool: true if the backing storage was recreated, which invalidates bind groups over it
//   - error: ErrShadowmapPoolFull if the run would pass MaxShadowmaps, or an allocation error
func (p *ShadowmapPool) AssignIndex(light *LightInstance) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	required := light.Type().ShadowmapCount()
	if p.assigned+required > MaxShadowmaps {
		return false, fmt.Errorf("%w: %d assigned, %d more requested", ErrShadowmapPoolFull, p.assigned, required)
	}

	grew := false
	if p.assigned+required > uint32(len(p.slots)) {
		if err := p.increasePool(p.assigned + required); err != nil {
			return false, err
		}
		grew = true
	}

	index := p.assigned
	light.state.ShadowMapIndex = &index
	p.assigned += required
	return grew, nil
}

// Reset forgets every assignment. Storage is kept.
func (p *ShadowmapPool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.assigned = 0
}

// IncreasePool grows the storage to n slots. Requests at or below the current size are ignored.
//
// Parameters:
//   - n: the slot count to grow to, at most MaxShadowmaps
//
// Returns:
//   - error: ErrShadowmapPoolFull past MaxShadowmaps, or an allocation error
func (p *ShadowmapPool) IncreasePool(n uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.increasePool(n)
}

func (p *ShadowmapPool) increasePool(n uint32) error {
	current := uint32(len(p.slots))
	if n <= current {
		return nil
	}
	if n > MaxShadowmaps {
		return fmt.Errorf("%w: %d slots requested", ErrShadowmapPoolFull, n)
	}

	array, err := p.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Shadowmap Array",
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
		Dimension:     wgpu.TextureDimension2D,
		Size:          wgpu.Extent3D{Width: p.extent.Width, Height: p.extent.Height, DepthOrArrayLayers: n},
		Format:        ShadowmapFormat,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return fmt.Errorf("failed to create shadowmap array of %d layers: %w", n, err)
	}
	arrayView, err := createShadowView(p.device, array, "Shadowmap Array View", wgpu.TextureViewDimension2DArray, n)
	if err != nil {
		array.Release()
		return err
	}

	slots := make([]*gpu.RenderTarget, 0, n)
	fail := func(err error) error {
		for _, s := range slots {
			s.Release()
		}
		arrayView.Release()
		array.Release()
		return err
	}
	for i := range n {
		slot, err := gpu.NewLayerTarget(p.device, array, i, gpu.RenderTargetDescriptor{
			Label:  fmt.Sprintf("Shadowmap %d", i),
			Extent: p.extent,
			Format: ShadowmapFormat,
			Ops:    gpu.ClearColorOps(wgpu.Color{}),
		})
		if err != nil {
			return fail(err)
		}
		slots = append(slots, slot)
	}

	depths := p.depths
	for i := current; i < n; i++ {
		depth, err := gpu.NewRenderTarget(p.device, gpu.RenderTargetDescriptor{
			Label:  fmt.Sprintf("Shadowmap Depth %d", i),
			Extent: p.extent,
			Format: ShadowDepthFormat,
			Ops: gpu.DepthStencilOps{
				Depth: &gpu.DepthOps{Load: wgpu.LoadOpClear, Store: wgpu.StoreOpStore, Clear: 1},
			},
		})
		if err != nil {
			for _, d := range depths[current:] {
				d.Release()
			}
			p.depths = depths[:current]
			return fail(err)
		}
		depths = append(depths, depth)
	}

	p.releaseArray()
	p.array, p.arrayView, p.slots, p.depths = array, arrayView, slots, depths
	return nil
}

func (p *ShadowmapPool) releaseArray() {
	for _, s := range p.slots {
		s.Release()
	}
	p.slots = nil
	if p.arrayView != nil {
		p.arrayView.Release()
		p.arrayView = nil
	}
	if p.array != nil {
		p.array.Release()
		p.array = nil
	}
}

// Shadowmap returns the moments target of slot i.
func (p *ShadowmapPool) Shadowmap(i uint32) (*gpu.RenderTarget, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i >= uint32(len(p.slots)) {
		return nil, fmt.Errorf("%w: slot %d of %d", ErrShadowmapNotFound, i, len(p.slots))
	}
	return p.slots[i], nil
}

// ShadowmapDepth returns the depth target of slot i.
func (p *ShadowmapPool) ShadowmapDepth(i uint32) (*gpu.RenderTarget, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i >= uint32(len(p.depths)) {
		return nil, fmt.Errorf("%w: depth slot %d of %d", ErrShadowmapNotFound, i, len(p.depths))
	}
	return p.depths[i], nil
}

// ShadowmapViews returns exactly MaxShadowmaps single-layer views: one per allocated slot, then
// the dummy map.
func (p *ShadowmapPool) ShadowmapViews() []gpu.TextureView {
	p.mu.Lock()
	defer p.mu.Unlock()
	views := make([]gpu.TextureView, MaxShadowmaps)
	for i := range views {
		if i < len(p.slots) {
			views[i] = p.slots[i].View()
		} else {
			views[i] = p.dummyView
		}
	}
	return views
}

// ArrayView returns the 2D-array view over every slot, or a one-layer dummy array while the pool
// is empty.
func (p *ShadowmapPool) ArrayView() gpu.TextureView {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.arrayView == nil {
		return p.dummyArrayView
	}
	return p.arrayView
}

// Sampler returns the nearest, clamp-to-edge shadow sampler.
func (p *ShadowmapPool) Sampler() gpu.Sampler { return p.sampler }

// Extent returns the per-slot size.
func (p *ShadowmapPool) Extent() common.Extent { return p.extent }

// AssignedCount returns the number of slots handed out since the last Reset.
func (p *ShadowmapPool) AssignedCount() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.assigned
}

// Len returns the number of allocated slots.
func (p *ShadowmapPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}

// Release frees every texture, view and the sampler.
func (p *ShadowmapPool) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.releaseArray()
	for _, d := range p.depths {
		d.Release()
	}
	p.depths = nil
	for _, r := range []gpu.Releaser{p.dummyArrayView, p.dummyView, p.dummy, p.sampler} {
		if r != nil {
			r.Release()
		}
	}
	p.dummyArrayView, p.dummyView, p.dummy, p.sampler = nil, nil, nil, nil
}
