// Package renderer records a camera's frame: shadow maps for every shadow-casting light, the G-buffer
// pass grouped by material, then the post-process chain from deferred lighting to the presentation
// copy.
package renderer

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-xr/common"
	"github.com/Carmen-Shannon/oxy-xr/engine/camera"
	"github.com/Carmen-Shannon/oxy-xr/engine/gpu"
	"github.com/Carmen-Shannon/oxy-xr/engine/light"
	"github.com/Carmen-Shannon/oxy-xr/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-xr/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-xr/engine/renderer/postproc"
	"github.com/Carmen-Shannon/oxy-xr/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

const (
	// DefaultMaxInstances is the instance buffer capacity used when none is configured.
	DefaultMaxInstances = 10000

	GBufferPassLabel  = "GBuffer"
	ShadowPassLabel   = "Shadow"
	shadowPipelineKey = "shadow"
)

var (
	// ErrTooManyInstances is returned when an update needs more instances than the buffer holds.
	ErrTooManyInstances = errors.New("too many instances")
	// ErrInstanceRange is returned when a render item's range runs past the instance slice.
	ErrInstanceRange = errors.New("instance range out of bounds")
	// ErrNoFrame is returned when OnRender or OnPostRender is called without OnPreRender.
	ErrNoFrame = errors.New("no frame in progress")
)

type draw struct {
	primitive     *Primitive
	instances     uint32
	firstInstance uint32
}

type renderSystemImpl struct {
	mu *sync.Mutex

	device  gpu.Device
	library shader.Library
	logger  common.Logger
	cameras camera.CameraSystem
	lights  light.LightSystem

	maxInstances int
	bloom        postproc.BloomSettings
	sharpen      postproc.SharpenSettings
	taa          postproc.TAASettings

	instanceBuffer *gpu.TypedBuffer
	instanceCount  int
	draws          map[uuid.UUID][]draw

	materials material.Registry
	shadows   *pipeline.Cache
	chain     *postproc.Chain

	encoder gpu.CommandEncoder
	// shadowsDone is set once the frame's shadow maps are recorded; every camera shares them.
	shadowsDone bool
}

// RenderSystem records and submits frames. Per frame the calls must come in the order OnPreRender,
// OnRender for each camera, OnPostRender.
type RenderSystem interface {
	// UpdateInstances uploads the instance transforms and replaces the draw list. Each item gets its
	// own block of the instance buffer holding instances[j] * item.LocalTransform for every j in its
	// range.
	//
	// Parameters:
	//   - instances: world transforms
	//   - items: render items keyed by material asset id
	//
	// Returns:
	//   - error: ErrTooManyInstances, ErrInstanceRange, material.ErrMaterialNotFound or an upload error
	UpdateInstances(instances []mgl32.Mat4, items map[uuid.UUID][]RenderItem) error

	// InstanceCount returns how many instances the last update uploaded.
	InstanceCount() int

	// RegisterMaterial adds a material to the registry.
	//
	// Parameters:
	//   - params: the surface params
	//   - options: asset id, label, maps and sampler
	//
	// Returns:
	//   - uuid.UUID: the material asset id
	//   - error: if a texture or buffer cannot be created
	RegisterMaterial(params material.Params, options ...material.MaterialOption) (uuid.UUID, error)

	// Materials returns the material registry.
	Materials() material.Registry

	// PostProcess returns the post-process chain, for changing effect settings at runtime.
	PostProcess() *postproc.Chain

	// OnPreRender creates the frame's command encoder.
	//
	// Returns:
	//   - error: if the encoder cannot be created
	OnPreRender() error

	// OnRender records one camera: the G-buffer pass and the post-process chain. The first call of a
	// frame also records a shadow pass per assigned shadow slot. It panics if a light casts a shadow
	// without a shadow index.
	//
	// Parameters:
	//   - cam: the camera, after UpdateViewParams and UpdateUniform
	//
	// Returns:
	//   - error: ErrNoFrame, or a pipeline or pass error
	OnRender(cam *camera.CameraInstance) error

	// OnPostRender finishes the encoder and submits it.
	//
	// Returns:
	//   - error: ErrNoFrame, or an encoder error
	OnPostRender() error

	// RebuildPipelines rebuilds every pipeline from the library's current sources.
	//
	// Returns:
	//   - error: every rebuild failure, joined
	RebuildPipelines() error

	// Release frees the instance buffer, materials and pipelines.
	Release()
}

var _ RenderSystem = &renderSystemImpl{}

// NewRenderSystem builds the instance buffer, the material registry with its G-buffer pipelines, the
// shadow pipeline and the post-process chain. It also sets the cameras' jitter length from the TAA
// settings.
//
// Parameters:
//   - device: the device to build on
//   - library: the shader library
//   - cameras: the camera system, for the view layout
//   - lights: the light system, for the lighting and shadow layouts and per-frame bind groups
//   - options: optional builder options
//
// Returns:
//   - RenderSystem: the render system
//   - error: if any resource or pipeline cannot be created
func NewRenderSystem(device gpu.Device, library shader.Library, cameras camera.CameraSystem, lights light.LightSystem, options ...RenderSystemBuilderOption) (RenderSystem, error) {
	rs := &renderSystemImpl{
		mu:           &sync.Mutex{},
		device:       device,
		library:      library,
		logger:       common.NewNopLogger(),
		cameras:      cameras,
		lights:       lights,
		maxInstances: DefaultMaxInstances,
		bloom:        postproc.DefaultBloomSettings(),
		sharpen:      postproc.DefaultSharpenSettings(),
		taa:          postproc.DefaultTAASettings(),
		draws:        map[uuid.UUID][]draw{},
	}
	for _, opt := range options {
		opt(rs)
	}
	if rs.maxInstances <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive, got %d", ErrTooManyInstances, rs.maxInstances)
	}
	if err := rs.init(); err != nil {
		rs.Release()
		return nil, err
	}
	if rs.taa.Enabled {
		cameras.SetTAASampleCount(rs.taa.SampleCount)
	} else {
		cameras.SetTAASampleCount(0)
	}
	return rs, nil
}

func (rs *renderSystemImpl) init() error {
	var err error
	rs.instanceBuffer, err = gpu.NewVertexBufferWithStride(rs.device, "Instances", InstanceStride, nil, uint64(rs.maxInstances)*InstanceStride)
	if err != nil {
		return fmt.Errorf("failed to create instance buffer: %w", err)
	}

	rs.materials, err = material.NewRegistry(rs.device, material.WithLogger(rs.logger))
	if err != nil {
		return err
	}
	if err = rs.materials.BuildPipelines(rs.library, rs.cameras.ViewParamsLayout()); err != nil {
		return err
	}

	rs.shadows = pipeline.NewCache(rs.device, rs.library, rs.logger)
	if _, err = rs.shadowPipeline(); err != nil {
		return err
	}

	rs.chain, err = postproc.NewChain(rs.device, rs.library, rs.cameras.ViewParamsLayout(), rs.lights.LightingBindGroupLayout(),
		postproc.WithBloom(rs.bloom),
		postproc.WithSharpen(rs.sharpen),
		postproc.WithTAA(rs.taa),
		postproc.WithLogger(rs.logger),
	)
	return err
}

func (rs *renderSystemImpl) shadowPipeline() (pipeline.Pipeline, error) {
	return rs.shadows.Get(shadowPipelineKey, func() pipeline.Pipeline {
		return pipeline.NewPipeline(shadowPipelineKey, shader.ShadowShader,
			pipeline.WithBindGroupLayouts(rs.lights.ShadowBindGroupLayout()),
			pipeline.WithVertexBuffers(VertexLayouts()...),
			pipeline.WithColorTargets(light.ShadowmapFormat),
			pipeline.WithWriteMask(wgpu.ColorWriteMaskRed|wgpu.ColorWriteMaskGreen),
			pipeline.WithDepthFormat(light.ShadowDepthFormat),
			pipeline.WithTopology(wgpu.PrimitiveTopologyTriangleList),
			pipeline.WithFrontFace(wgpu.FrontFaceCCW),
			pipeline.WithCullMode(wgpu.CullModeBack),
			pipeline.WithDepthBias(2, 2),
		)
	})
}

func (rs *renderSystemImpl) UpdateInstances(instances []mgl32.Mat4, items map[uuid.UUID][]RenderItem) error {
	total := 0
	for id, list := range items {
		if _, err := rs.materials.Material(id); err != nil {
			return err
		}
		for _, item := range list {
			if int(item.Instances.Start)+int(item.Instances.Count) > len(instances) {
				return fmt.Errorf("%w: [%d, %d) of %d instances", ErrInstanceRange,
					item.Instances.Start, item.Instances.Start+item.Instances.Count, len(instances))
			}
			total += int(item.Instances.Count)
		}
	}
	if total > rs.maxInstances {
		return fmt.Errorf("%w: %d exceeds %d", ErrTooManyInstances, total, rs.maxInstances)
	}

	data := make([]byte, 0, total*InstanceStride)
	draws := make(map[uuid.UUID][]draw, len(items))
	next := uint32(0)
	for _, id := range rs.materialOrder(items) {
		for _, item := range items[id] {
			if item.Instances.Count == 0 || item.Primitive == nil {
				continue
			}
			for j := item.Instances.Start; j < item.Instances.Start+item.Instances.Count; j++ {
				g := NewGPUInstance(instances[j].Mul4(item.LocalTransform))
				data = append(data, g.Marshal()...)
			}
			draws[id] = append(draws[id], draw{primitive: item.Primitive, instances: item.Instances.Count, firstInstance: next})
			next += item.Instances.Count
		}
	}

	if len(data) > 0 {
		if err := rs.instanceBuffer.Write(rs.device, 0, data); err != nil {
			return err
		}
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.draws = draws
	rs.instanceCount = int(next)
	return nil
}

type materialDraws struct {
	id    uuid.UUID
	draws []draw
}

// orderedDraws returns the draw list grouped by material in registration order. Callers hold mu.
func (rs *renderSystemImpl) orderedDraws() []materialDraws {
	out := make([]materialDraws, 0, len(rs.draws))
	for _, id := range rs.materials.IDs() {
		if list, ok := rs.draws[id]; ok {
			out = append(out, materialDraws{id: id, draws: list})
		}
	}
	return out
}

// materialOrder returns the ids of items in registration order.
func (rs *renderSystemImpl) materialOrder(items map[uuid.UUID][]RenderItem) []uuid.UUID {
	return slices.DeleteFunc(rs.materials.IDs(), func(id uuid.UUID) bool {
		_, ok := items[id]
		return !ok
	})
}

func (rs *renderSystemImpl) InstanceCount() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.instanceCount
}

func (rs *renderSystemImpl) RegisterMaterial(params material.Params, options ...material.MaterialOption) (uuid.UUID, error) {
	return rs.materials.Register(params, options...)
}

func (rs *renderSystemImpl) Materials() material.Registry { return rs.materials }

func (rs *renderSystemImpl) PostProcess() *postproc.Chain { return rs.chain }

func (rs *renderSystemImpl) OnPreRender() error {
	if err := rs.lights.OnPreRender(); err != nil {
		return err
	}
	enc, err := rs.device.CreateCommandEncoder("Render System Encoder")
	if err != nil {
		return fmt.Errorf("failed to create command encoder: %w", err)
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.encoder != nil {
		rs.encoder.Release()
	}
	rs.encoder = enc
	rs.shadowsDone = false
	return nil
}

func (rs *renderSystemImpl) OnRender(cam *camera.CameraInstance) error {
	rs.mu.Lock()
	enc := rs.encoder
	draws := rs.orderedDraws()
	shadows := !rs.shadowsDone
	rs.shadowsDone = true
	rs.mu.Unlock()
	if enc == nil {
		return ErrNoFrame
	}

	if shadows {
		if err := rs.renderShadows(enc, draws); err != nil {
			return err
		}
	}
	if err := rs.renderGBuffer(enc, cam, draws); err != nil {
		return err
	}

	frame := postproc.Frame{
		Framebuffer: cam.Framebuffer(),
		ViewCount:   cam.ViewCount(),
		ViewGroup:   cam.BindGroup(),
		LightGroup:  rs.lights.LightingBindGroup(),
	}
	if target := cam.CopyTarget(); target != nil {
		frame.CopyView = target.View
		frame.CopyFormat = target.Format
	}
	return rs.chain.Render(enc, frame)
}

func (rs *renderSystemImpl) renderShadows(enc gpu.CommandEncoder, draws []materialDraws) error {
	p, err := rs.shadowPipeline()
	if err != nil {
		return err
	}
	for _, l := range rs.lights.Lights() {
		state := l.State()
		if !state.CastShadow {
			continue
		}
		if state.ShadowMapIndex == nil {
			panic(fmt.Sprintf("light %s casts a shadow but has no shadow map index", l.ID()))
		}
		for face := range l.Type().ShadowmapCount() {
			slot := *state.ShadowMapIndex + face
			if err := rs.renderShadowSlot(enc, p, slot, draws); err != nil {
				return err
			}
		}
	}
	return nil
}

func (rs *renderSystemImpl) renderShadowSlot(enc gpu.CommandEncoder, p pipeline.Pipeline, slot uint32, draws []materialDraws) error {
	color, depth, err := rs.lights.ShadowAttachments(slot)
	if err != nil {
		return err
	}
	pass := enc.BeginRenderPass(&gpu.RenderPassDescriptor{
		Label:                  fmt.Sprintf("%s %d", ShadowPassLabel, slot),
		ColorAttachments:       []gpu.ColorAttachment{color},
		DepthStencilAttachment: depth,
	})
	if err := p.Bind(pass); err != nil {
		_ = pass.End()
		return err
	}
	pass.SetBindGroup(0, rs.lights.ShadowBindGroup(), []uint32{rs.lights.ShadowOffset(slot)})
	pass.SetVertexBuffer(VertexSlotInstances, rs.instanceBuffer.Buffer(), 0, rs.instanceBuffer.Size())
	for _, group := range draws {
		for _, d := range group.draws {
			d.primitive.encode(pass, d.instances, d.firstInstance)
		}
	}
	if err := pass.End(); err != nil {
		return fmt.Errorf("shadow pass %d: %w", slot, err)
	}
	return nil
}

func (rs *renderSystemImpl) renderGBuffer(enc gpu.CommandEncoder, cam *camera.CameraInstance, draws []materialDraws) error {
	colors, depth, err := cam.Framebuffer().GBufferAttachments()
	if err != nil {
		return err
	}
	pass := enc.BeginRenderPass(&gpu.RenderPassDescriptor{
		Label:                  GBufferPassLabel,
		ColorAttachments:       colors,
		DepthStencilAttachment: depth,
	})

	if err := rs.encodeMaterials(pass, cam, draws); err != nil {
		_ = pass.End()
		return err
	}
	if err := pass.End(); err != nil {
		return fmt.Errorf("gbuffer pass: %w", err)
	}
	return nil
}

func (rs *renderSystemImpl) encodeMaterials(pass gpu.RenderPass, cam *camera.CameraInstance, draws []materialDraws) error {
	if len(draws) == 0 {
		return nil
	}
	pass.SetVertexBuffer(VertexSlotInstances, rs.instanceBuffer.Buffer(), 0, rs.instanceBuffer.Size())
	for _, group := range draws {
		m, err := rs.materials.Material(group.id)
		if err != nil {
			rs.logger.Debugf("skipping removed material %s", group.id)
			continue
		}
		p, err := rs.materials.Pipeline(m.Variant(), cam.ViewCount())
		if err != nil {
			return err
		}
		if err := p.Bind(pass); err != nil {
			return err
		}
		pass.SetBindGroup(material.ViewGroup, cam.BindGroup(), nil)
		pass.SetBindGroup(material.MaterialGroup, m.BindGroup(), nil)
		for _, d := range group.draws {
			d.primitive.encode(pass, d.instances, d.firstInstance)
		}
	}
	return nil
}

func (rs *renderSystemImpl) OnPostRender() error {
	rs.mu.Lock()
	enc := rs.encoder
	rs.encoder = nil
	rs.mu.Unlock()
	if enc == nil {
		return ErrNoFrame
	}
	defer enc.Release()

	cb, err := enc.Finish()
	if err != nil {
		return fmt.Errorf("failed to finish frame: %w", err)
	}
	rs.device.Submit(cb)
	cb.Release()
	return nil
}

func (rs *renderSystemImpl) RebuildPipelines() error {
	var errs []error
	if rs.materials != nil {
		errs = append(errs, rs.materials.RebuildPipelines())
	}
	if rs.shadows != nil {
		errs = append(errs, rs.shadows.RebuildAll())
	}
	if rs.chain != nil {
		errs = append(errs, rs.chain.RebuildPipelines())
	}
	return errors.Join(errs...)
}

func (rs *renderSystemImpl) Release() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.encoder != nil {
		rs.encoder.Release()
		rs.encoder = nil
	}
	if rs.chain != nil {
		rs.chain.Release()
	}
	if rs.shadows != nil {
		rs.shadows.Release()
	}
	if rs.materials != nil {
		rs.materials.Release()
	}
	if rs.instanceBuffer != nil {
		rs.instanceBuffer.Release()
	}
	rs.draws = map[uuid.UUID][]draw{}
}
