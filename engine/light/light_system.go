package light

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-xr/common"
	"github.com/Carmen-Shannon/oxy-xr/engine/gpu"
	"github.com/chewxy/math32"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// DefaultMaxLights is the light storage capacity used when none is configured.
const DefaultMaxLights = 1024

var (
	// ErrLightNotFound is returned when a light id is not registered.
	ErrLightNotFound = errors.New("light not found")
	// ErrTooManyLights is returned when spawning past the storage capacity.
	ErrTooManyLights = errors.New("too many lights")
	// ErrInvalidRange is returned when setting a non-positive range or the range of a directional light.
	ErrInvalidRange = errors.New("invalid light range")
)

type lightSystemImpl struct {
	mu *sync.Mutex

	device    gpu.Device
	logger    common.Logger
	quality   ShadowQuality
	maxLights int

	pool   *ShadowmapPool
	lights map[uuid.UUID]*LightInstance
	order  []uuid.UUID
	dirty  bool
	// uploaded is the light storage last written, so edits made through State() are still seen.
	uploaded []byte

	lightBuffer  *gpu.TypedBuffer
	paramsBuffer *gpu.TypedBuffer
	shadowBuffer *gpu.TypedBuffer
	matrixBuffer *gpu.TypedBuffer

	lightingLayout gpu.BindGroupLayout
	lightingGroup  gpu.BindGroup
	shadowLayout   gpu.BindGroupLayout
	shadowGroup    gpu.BindGroup
}

// LightSystem owns every light, the shadow map pool, and the buffers and bind groups the lighting
// and shadow passes read.
type LightSystem interface {
	// SpawnLight creates a light from a component. A shadow-casting light is given pool slots; if
	// the pool is full a warning is logged and the light is spawned without a shadow.
	//
	// Parameters:
	//   - entityID: the owning entity
	//   - viewDirection: the light position and direction
	//   - component: the light description
	//
	// Returns:
	//   - uuid.UUID: the new light's id
	//   - error: ErrTooManyLights past the capacity, or a pool allocation error
	SpawnLight(entityID uuid.UUID, viewDirection common.ViewDirection, component LightComponent) (uuid.UUID, error)

	// RemoveLight forgets a light and reassigns the shadow slots of the rest.
	//
	// Parameters:
	//   - id: the light id
	//
	// Returns:
	//   - error: ErrLightNotFound if the id is unknown, or a reassignment error
	RemoveLight(id uuid.UUID) error

	// LightIDs returns every light id in spawn order.
	LightIDs() []uuid.UUID

	// LightInstance looks up a light.
	//
	// Parameters:
	//   - id: the light id
	//
	// Returns:
	//   - *LightInstance: the light
	//   - error: ErrLightNotFound if the id is unknown
	LightInstance(id uuid.UUID) (*LightInstance, error)

	// Lights returns every light in spawn order.
	Lights() []*LightInstance

	// SetViewDirection moves a light and marks the buffers for upload.
	//
	// Parameters:
	//   - id: the light id
	//   - viewDirection: the new position and direction
	//
	// Returns:
	//   - error: ErrLightNotFound if the id is unknown
	SetViewDirection(id uuid.UUID, viewDirection common.ViewDirection) error

	// SetColor changes a light's linear RGB color and marks the buffers for upload.
	//
	// Parameters:
	//   - id: the light id
	//   - color: the new color
	//
	// Returns:
	//   - error: ErrLightNotFound if the id is unknown
	SetColor(id uuid.UUID, color mgl32.Vec3) error

	// SetIntensity changes a light's intensity and marks the buffers for upload.
	SetIntensity(id uuid.UUID, intensity float32) error

	// SetRange changes the range of a point or spot light. Culling and the shadow far plane follow
	// the new range.
	//
	// Parameters:
	//   - id: the light id
	//   - lightRange: the new range, greater than zero
	//
	// Returns:
	//   - error: ErrLightNotFound, or ErrInvalidRange for directional lights and non-positive ranges
	SetRange(id uuid.UUID, lightRange float32) error

	// ReassignShadows resets the pool and gives slots, in spawn order, to every light that asked
	// for a shadow and passes visible. Lights that fail visible or do not fit cast no shadow this
	// frame.
	//
	// Parameters:
	//   - visible: the filter, or nil to consider every light
	//
	// Returns:
	//   - error: if growing the pool fails
	ReassignShadows(visible func(*LightInstance) bool) error

	// OnPreRender uploads the light storage, light params and shadow matrices if anything changed,
	// including edits made directly through LightInstance.State.
	//
	// Returns:
	//   - error: if an upload fails
	OnPreRender() error

	// LightingBindGroupLayout returns the layout of the lighting pass's light group.
	LightingBindGroupLayout() gpu.BindGroupLayout

	// LightingBindGroup returns the light group. It is recreated whenever the pool grows.
	LightingBindGroup() gpu.BindGroup

	// ShadowBindGroupLayout returns the layout of the shadow pass's matrix group.
	ShadowBindGroupLayout() gpu.BindGroupLayout

	// ShadowBindGroup returns the shadow matrix group. Bind it with ShadowOffset of the slot.
	ShadowBindGroup() gpu.BindGroup

	// ShadowOffset returns the dynamic offset of a slot's matrix in the shadow group.
	ShadowOffset(slot uint32) uint32

	// ShadowAttachments returns the color and depth attachments of a slot's shadow pass.
	//
	// Parameters:
	//   - slot: the shadow slot
	//
	// Returns:
	//   - gpu.ColorAttachment: the moments target, cleared to black
	//   - *gpu.DepthStencilAttachment: the depth target, cleared to 1
	//   - error: ErrShadowmapNotFound if the slot is not allocated
	ShadowAttachments(slot uint32) (gpu.ColorAttachment, *gpu.DepthStencilAttachment, error)

	// Pool returns the shadow map pool.
	Pool() *ShadowmapPool

	// Release frees the pool, buffers, bind groups and layouts.
	Release()
}

var _ LightSystem = &lightSystemImpl{}

// LightingBindGroupLayoutDescriptor describes the lighting pass's light group: the light storage,
// the light params, the shadow map array and its sampler, and the per-slot shadow matrices.
func LightingBindGroupLayoutDescriptor() *wgpu.BindGroupLayoutDescriptor {
	return &wgpu.BindGroupLayoutDescriptor{
		Label: "Lighting Bind Group Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform, MinBindingSize: GPULightParamsSize},
			},
			{
				Binding:    2,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeUnfilterableFloat,
					ViewDimension: wgpu.TextureViewDimension2DArray,
				},
			},
			{
				Binding:    3,
				Visibility: wgpu.ShaderStageFragment,
				Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeNonFiltering},
			},
			{
				Binding:    4,
				Visibility: wgpu.ShaderStageFragment,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage},
			},
		},
	}
}

// ShadowBindGroupLayoutDescriptor describes the shadow pass's group: one view-projection matrix
// bound with a dynamic offset per slot.
func ShadowBindGroupLayoutDescriptor() *wgpu.BindGroupLayoutDescriptor {
	return &wgpu.BindGroupLayoutDescriptor{
		Label: "Shadow Bind Group Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex,
				Buffer: wgpu.BufferBindingLayout{
					Type:             wgpu.BufferBindingTypeUniform,
					HasDynamicOffset: true,
					MinBindingSize:   ShadowUniformSize,
				},
			},
		},
	}
}

// NewLightSystem creates an empty light system and its buffers.
//
// Parameters:
//   - device: the device to allocate on
//   - options: optional builder options
//
// Returns:
//   - LightSystem: the system
//   - error: if any buffer, layout or bind group cannot be created
func NewLightSystem(device gpu.Device, options ...LightSystemBuilderOption) (LightSystem, error) {
	ls := &lightSystemImpl{
		mu:        &sync.Mutex{},
		device:    device,
		logger:    common.NewNopLogger(),
		quality:   ShadowQualityHigh,
		maxLights: DefaultMaxLights,
		lights:    make(map[uuid.UUID]*LightInstance),
		dirty:     true,
	}
	for _, option := range options {
		option(ls)
	}

	if err := ls.init(); err != nil {
		ls.Release()
		return nil, err
	}
	return ls, nil
}

func (ls *lightSystemImpl) init() error {
	var err error
	if ls.pool, err = NewShadowmapPool(ls.device, ls.quality); err != nil {
		return err
	}
	if ls.lightBuffer, err = gpu.NewStorageBuffer(ls.device, "Light Storage", GPULightSize, ls.maxLights); err != nil {
		return err
	}
	if ls.paramsBuffer, err = gpu.NewUniformBuffer(ls.device, "Light Params", GPULightParamsSize); err != nil {
		return err
	}
	if ls.shadowBuffer, err = gpu.NewUniformBuffer(ls.device, "Shadow View Projections", MaxShadowmaps*ShadowUniformStride); err != nil {
		return err
	}
	if ls.matrixBuffer, err = gpu.NewStorageBuffer(ls.device, "Shadow Matrices", ShadowUniformSize, MaxShadowmaps); err != nil {
		return err
	}

	if ls.lightingLayout, err = ls.device.CreateBindGroupLayout(LightingBindGroupLayoutDescriptor()); err != nil {
		return fmt.Errorf("failed to create lighting bind group layout: %w", err)
	}
	if ls.shadowLayout, err = ls.device.CreateBindGroupLayout(ShadowBindGroupLayoutDescriptor()); err != nil {
		return fmt.Errorf("failed to create shadow bind group layout: %w", err)
	}
	if ls.shadowGroup, err = ls.device.CreateBindGroup(&gpu.BindGroupDescriptor{
		Label:  "Shadow Bind Group",
		Layout: ls.shadowLayout,
		Entries: []gpu.BindGroupEntry{
			{Binding: 0, Buffer: ls.shadowBuffer.Buffer(), Size: ShadowUniformSize},
		},
	}); err != nil {
		return fmt.Errorf("failed to create shadow bind group: %w", err)
	}
	return ls.createLightingGroup()
}

// createLightingGroup builds the light group over the pool's current array view. Caller must hold
// the mutex or be constructing.
func (ls *lightSystemImpl) createLightingGroup() error {
	group, err := ls.device.CreateBindGroup(&gpu.BindGroupDescriptor{
		Label:  "Lighting Bind Group",
		Layout: ls.lightingLayout,
		Entries: []gpu.BindGroupEntry{
			{Binding: 0, Buffer: ls.lightBuffer.Buffer(), Size: ls.lightBuffer.Size()},
			{Binding: 1, Buffer: ls.paramsBuffer.Buffer(), Size: GPULightParamsSize},
			{Binding: 2, TextureView: ls.pool.ArrayView()},
			{Binding: 3, Sampler: ls.pool.Sampler()},
			{Binding: 4, Buffer: ls.matrixBuffer.Buffer(), Size: ls.matrixBuffer.Size()},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create lighting bind group: %w", err)
	}
	if ls.lightingGroup != nil {
		ls.lightingGroup.Release()
	}
	ls.lightingGroup = group
	return nil
}

// assignShadow gives l pool slots and rebuilds the light group if the pool grew. A full pool is
// reported as false with no error. Caller must hold the mutex.
func (ls *lightSystemImpl) assignShadow(l *LightInstance) (bool, error) {
	grew, err := ls.pool.AssignIndex(l)
	if errors.Is(err, ErrShadowmapPoolFull) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if grew {
		ls.logger.Debugf("shadowmap pool grew to %d slots", ls.pool.Len())
		if err := ls.createLightingGroup(); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (ls *lightSystemImpl) SpawnLight(entityID uuid.UUID, viewDirection common.ViewDirection, component LightComponent) (uuid.UUID, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if len(ls.order) >= ls.maxLights {
		return uuid.Nil, fmt.Errorf("%w: capacity is %d", ErrTooManyLights, ls.maxLights)
	}

	l := NewLightInstance(entityID, component.Type)
	l.id = uuid.New()
	l.wantsShadow = component.CastShadow
	l.state = LightInstanceState{
		ViewDirection: viewDirection,
		Color:         component.Color,
		Intensity:     component.Intensity,
		Range:         component.Type.Range,
	}
	if component.Type.Kind == LightKindDirectional {
		l.state.Range = math32.MaxFloat32
	}

	if component.CastShadow {
		ok, err := ls.assignShadow(l)
		if err != nil {
			return uuid.Nil, err
		}
		if !ok {
			ls.logger.Warnf("shadowmap pool is full, spawning %s light %s without a shadow", component.Type.Kind, l.id)
		}
		l.state.CastShadow = ok
	}

	ls.lights[l.id] = l
	ls.order = append(ls.order, l.id)
	ls.dirty = true
	ls.logger.Debugf("spawned %s light %s for entity %s", component.Type.Kind, l.id, entityID)
	return l.id, nil
}

func (ls *lightSystemImpl) RemoveLight(id uuid.UUID) error {
	ls.mu.Lock()
	if _, ok := ls.lights[id]; !ok {
		ls.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrLightNotFound, id)
	}
	delete(ls.lights, id)
	for i, other := range ls.order {
		if other == id {
			ls.order = append(ls.order[:i], ls.order[i+1:]...)
			break
		}
	}
	ls.mu.Unlock()
	return ls.ReassignShadows(nil)
}

func (ls *lightSystemImpl) LightIDs() []uuid.UUID {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return append([]uuid.UUID(nil), ls.order...)
}

func (ls *lightSystemImpl) LightInstance(id uuid.UUID) (*LightInstance, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	l, ok := ls.lights[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLightNotFound, id)
	}
	return l, nil
}

func (ls *lightSystemImpl) Lights() []*LightInstance {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	out := make([]*LightInstance, len(ls.order))
	for i, id := range ls.order {
		out[i] = ls.lights[id]
	}
	return out
}

func (ls *lightSystemImpl) SetViewDirection(id uuid.UUID, viewDirection common.ViewDirection) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	l, ok := ls.lights[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrLightNotFound, id)
	}
	l.state.ViewDirection = viewDirection
	ls.dirty = true
	return nil
}

func (ls *lightSystemImpl) SetColor(id uuid.UUID, color mgl32.Vec3) error {
	return ls.modify(id, func(l *LightInstance) error {
		l.state.Color = color
		return nil
	})
}

func (ls *lightSystemImpl) SetIntensity(id uuid.UUID, intensity float32) error {
	return ls.modify(id, func(l *LightInstance) error {
		l.state.Intensity = intensity
		return nil
	})
}

func (ls *lightSystemImpl) SetRange(id uuid.UUID, lightRange float32) error {
	return ls.modify(id, func(l *LightInstance) error {
		if l.lightType.Kind == LightKindDirectional || lightRange <= 0 {
			return fmt.Errorf("%w: %g for %s light %s", ErrInvalidRange, lightRange, l.lightType.Kind, id)
		}
		l.lightType.Range = lightRange
		l.state.Range = lightRange
		return nil
	})
}

func (ls *lightSystemImpl) modify(id uuid.UUID, fn func(l *LightInstance) error) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	l, ok := ls.lights[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrLightNotFound, id)
	}
	if err := fn(l); err != nil {
		return err
	}
	ls.dirty = true
	return nil
}

func (ls *lightSystemImpl) ReassignShadows(visible func(*LightInstance) bool) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	ls.pool.Reset()
	for _, id := range ls.order {
		l := ls.lights[id]
		l.state.CastShadow = false
		l.state.ShadowMapIndex = nil
		if !l.wantsShadow || (visible != nil && !visible(l)) {
			continue
		}
		ok, err := ls.assignShadow(l)
		if err != nil {
			return err
		}
		l.state.CastShadow = ok
	}
	ls.dirty = true
	return nil
}

func (ls *lightSystemImpl) OnPreRender() error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	gpuLights := make([]GPULight, len(ls.order))
	for i, id := range ls.order {
		gpuLights[i] = ls.lights[id].ToGPU()
	}
	lightBytes := MarshalLights(gpuLights)
	if !ls.dirty && bytes.Equal(lightBytes, ls.uploaded) {
		return nil
	}

	slots := make([]mgl32.Mat4, ls.pool.AssignedCount())
	for _, id := range ls.order {
		l := ls.lights[id]
		if !l.state.CastShadow || l.state.ShadowMapIndex == nil {
			continue
		}
		first := *l.state.ShadowMapIndex
		for face := range l.lightType.ShadowmapCount() {
			slots[first+face] = l.FaceViewProjection(int(face))
		}
	}

	if len(gpuLights) > 0 {
		if err := ls.lightBuffer.Write(ls.device, 0, lightBytes); err != nil {
			return fmt.Errorf("failed to upload lights: %w", err)
		}
	}
	params := GPULightParams{LightCount: uint32(len(gpuLights)), ShadowCount: uint32(len(slots))}
	if err := ls.paramsBuffer.Write(ls.device, 0, params.Marshal()); err != nil {
		return fmt.Errorf("failed to upload light params: %w", err)
	}
	if len(slots) > 0 {
		if err := ls.shadowBuffer.Write(ls.device, 0, marshalShadowUniform(slots)); err != nil {
			return fmt.Errorf("failed to upload shadow view projections: %w", err)
		}
		if err := ls.matrixBuffer.Write(ls.device, 0, marshalMatrices(slots)); err != nil {
			return fmt.Errorf("failed to upload shadow matrices: %w", err)
		}
	}
	ls.uploaded = lightBytes
	ls.dirty = false
	return nil
}

func (ls *lightSystemImpl) LightingBindGroupLayout() gpu.BindGroupLayout { return ls.lightingLayout }

func (ls *lightSystemImpl) LightingBindGroup() gpu.BindGroup {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.lightingGroup
}

func (ls *lightSystemImpl) ShadowBindGroupLayout() gpu.BindGroupLayout { return ls.shadowLayout }

func (ls *lightSystemImpl) ShadowBindGroup() gpu.BindGroup { return ls.shadowGroup }

func (ls *lightSystemImpl) ShadowOffset(slot uint32) uint32 {
	return slot * ShadowUniformStride
}

func (ls *lightSystemImpl) ShadowAttachments(slot uint32) (gpu.ColorAttachment, *gpu.DepthStencilAttachment, error) {
	color, err := ls.pool.Shadowmap(slot)
	if err != nil {
		return gpu.ColorAttachment{}, nil, err
	}
	depth, err := ls.pool.ShadowmapDepth(slot)
	if err != nil {
		return gpu.ColorAttachment{}, nil, err
	}
	colorAtt, err := color.ColorAttachment()
	if err != nil {
		return gpu.ColorAttachment{}, nil, err
	}
	depthAtt, err := depth.DepthStencilAttachment()
	if err != nil {
		return gpu.ColorAttachment{}, nil, err
	}
	return colorAtt, depthAtt, nil
}

func (ls *lightSystemImpl) Pool() *ShadowmapPool { return ls.pool }

func (ls *lightSystemImpl) Release() {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	for _, r := range []gpu.Releaser{ls.lightingGroup, ls.shadowGroup, ls.lightingLayout, ls.shadowLayout} {
		if r != nil {
			r.Release()
		}
	}
	ls.lightingGroup, ls.shadowGroup, ls.lightingLayout, ls.shadowLayout = nil, nil, nil, nil
	for _, b := range []*gpu.TypedBuffer{ls.lightBuffer, ls.paramsBuffer, ls.shadowBuffer, ls.matrixBuffer} {
		if b != nil {
			b.Release()
		}
	}
	ls.lightBuffer, ls.paramsBuffer, ls.shadowBuffer, ls.matrixBuffer = nil, nil, nil, nil
	if ls.pool != nil {
		ls.pool.Release()
		ls.pool = nil
	}
}
