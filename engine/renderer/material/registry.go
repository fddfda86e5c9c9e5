package material

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-xr/common"
	"github.com/Carmen-Shannon/oxy-xr/engine/framebuffer"
	"github.com/Carmen-Shannon/oxy-xr/engine/gpu"
	"github.com/Carmen-Shannon/oxy-xr/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-xr/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/google/uuid"
)

// Bind group indices of the G-buffer pipelines.
const (
	ViewGroup     = 0
	MaterialGroup = 1
)

var (
	// ErrDuplicateMaterial is returned when an asset id is registered twice.
	ErrDuplicateMaterial = errors.New("material already registered")

	// ErrPipelinesNotBuilt is returned when a pipeline is requested before BuildPipelines.
	ErrPipelinesNotBuilt = errors.New("material pipelines have not been built")
)

// registry is the implementation of the Registry interface.
type registry struct {
	mu     *sync.Mutex
	device gpu.Device
	logger common.Logger

	layout       gpu.BindGroupLayout
	sampler      gpu.Sampler
	whiteTexture gpu.Texture
	whiteView    gpu.TextureView
	flatTexture  gpu.Texture
	flatView     gpu.TextureView

	materials map[uuid.UUID]*material
	order     []uuid.UUID

	cache      *pipeline.Cache
	viewLayout gpu.BindGroupLayout
}

// Registry owns every material by asset id together with the G-buffer pipeline variants they draw with.
type Registry interface {
	// Register uploads a material's uniform and textures and creates its bind group.
	//
	// Parameters:
	//   - params: the surface properties
	//   - options: label, maps, sampler and asset id options
	//
	// Returns:
	//   - uuid.UUID: the asset id, generated unless WithAssetID is given
	//   - error: ErrDuplicateMaterial, or an upload or bind group error
	Register(params Params, options ...MaterialOption) (uuid.UUID, error)

	// Material returns a registered material.
	//
	// Parameters:
	//   - id: the asset id
	//
	// Returns:
	//   - Material: the material
	//   - error: ErrMaterialNotFound if id is not registered
	Material(id uuid.UUID) (Material, error)

	// IDs returns every asset id in registration order.
	IDs() []uuid.UUID

	// Remove releases and forgets a material.
	Remove(id uuid.UUID) error

	// Layout returns the material bind group layout at MaterialGroup.
	Layout() gpu.BindGroupLayout

	// BuildPipelines builds every single-view G-buffer variant. Multiview variants are built on first use.
	//
	// Parameters:
	//   - library: the shader library
	//   - viewLayout: the camera view-params layout at ViewGroup
	//
	// Returns:
	//   - error: the first pipeline build error
	BuildPipelines(library shader.Library, viewLayout gpu.BindGroupLayout) error

	// Pipeline returns the G-buffer pipeline for a variant and view count.
	//
	// Parameters:
	//   - variant: the material variant
	//   - viewCount: the camera's view count; above 1 builds a multiview variant
	//
	// Returns:
	//   - pipeline.Pipeline: the built pipeline
	//   - error: ErrPipelinesNotBuilt before BuildPipelines, or a build error
	Pipeline(variant Variant, viewCount int) (pipeline.Pipeline, error)

	// RebuildPipelines rebuilds every built variant from the current library sources.
	RebuildPipelines() error

	// Release frees every material, the shared defaults and the pipelines.
	Release()
}

var _ Registry = &registry{}

// BindGroupLayoutDescriptor returns the material layout matching the G-buffer shader's group 1.
func BindGroupLayoutDescriptor() *wgpu.BindGroupLayoutDescriptor {
	texture := func(binding uint32) wgpu.BindGroupLayoutEntry {
		return wgpu.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: wgpu.ShaderStageFragment,
			Texture: wgpu.TextureBindingLayout{
				SampleType:    wgpu.TextureSampleTypeFloat,
				ViewDimension: wgpu.TextureViewDimension2D,
			},
		}
	}
	return &wgpu.BindGroupLayoutDescriptor{
		Label: "Material Bind Group Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: GPUMaterialParamsSize,
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering},
			},
			texture(2),
			texture(3),
		},
	}
}

// NewRegistry creates an empty registry with its bind group layout, a shared linear sampler and the 1x1
// fallback textures used for missing maps.
//
// Parameters:
//   - device: the device materials are created on
//   - options: optional builder options
//
// Returns:
//   - Registry: the registry
//   - error: if a shared resource cannot be created
func NewRegistry(device gpu.Device, options ...RegistryBuilderOption) (Registry, error) {
	r := &registry{
		mu:        &sync.Mutex{},
		device:    device,
		logger:    common.NewNopLogger(),
		materials: map[uuid.UUID]*material{},
	}
	for _, opt := range options {
		opt(r)
	}

	var err error
	if r.layout, err = device.CreateBindGroupLayout(BindGroupLayoutDescriptor()); err != nil {
		return nil, fmt.Errorf("failed to create material layout: %w", err)
	}
	if r.sampler, err = gpu.CreateSampler(device, "Material Default", common.SamplerStagingData{}); err != nil {
		r.Release()
		return nil, fmt.Errorf("failed to create material sampler: %w", err)
	}
	if r.whiteTexture, r.whiteView, err = gpu.UploadTexture(device, "Material White", common.SolidTexture(255, 255, 255, 255), wgpu.TextureFormatRGBA8UnormSrgb); err != nil {
		r.Release()
		return nil, err
	}
	// Tangent-space +Z, so a missing normal map leaves the surface normal unchanged.
	if r.flatTexture, r.flatView, err = gpu.UploadTexture(device, "Material Flat Normal", common.SolidTexture(128, 128, 255, 255), wgpu.TextureFormatRGBA8Unorm); err != nil {
		r.Release()
		return nil, err
	}
	return r, nil
}

func (r *registry) Register(params Params, options ...MaterialOption) (uuid.UUID, error) {
	opts := materialOptions{assetID: uuid.New()}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.label == "" {
		opts.label = "Material " + opts.assetID.String()
	}

	r.mu.Lock()
	_, exists := r.materials[opts.assetID]
	r.mu.Unlock()
	if exists {
		return uuid.Nil, fmt.Errorf("material %s: %w", opts.assetID, ErrDuplicateMaterial)
	}

	m, err := r.create(params, opts)
	if err != nil {
		return uuid.Nil, err
	}

	r.mu.Lock()
	r.materials[m.assetID] = m
	r.order = append(r.order, m.assetID)
	r.mu.Unlock()

	r.logger.Debugf("registered material %s (%s)", m.label, m.variant.Key())
	return m.assetID, nil
}

// create builds the material's owned resources. Only owned resources are recorded on the material; the
// shared sampler and fallback textures stay with the registry.
func (r *registry) create(params Params, opts materialOptions) (*material, error) {
	m := &material{
		assetID: opts.assetID,
		label:   opts.label,
		params:  params,
		variant: Variant{HasAlbedoMap: opts.albedo != nil, HasNormalMap: opts.normal != nil},
	}

	var err error
	m.uniform, err = gpu.NewUniformBuffer(r.device, m.label+" Params", GPUMaterialParamsSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create material %s uniform: %w", m.label, err)
	}
	gpuParams := params.ToGPU()
	if err = m.uniform.Write(r.device, 0, gpuParams.Marshal()); err != nil {
		m.Release()
		return nil, fmt.Errorf("failed to write material %s uniform: %w", m.label, err)
	}

	sampler := r.sampler
	if opts.sampler != nil {
		if m.sampler, err = gpu.CreateSampler(r.device, m.label, *opts.sampler); err != nil {
			m.Release()
			return nil, fmt.Errorf("failed to create material %s sampler: %w", m.label, err)
		}
		sampler = m.sampler
	}

	albedo, err := r.mapView(m, opts.albedo, " Albedo", wgpu.TextureFormatRGBA8UnormSrgb, r.whiteView)
	if err != nil {
		return nil, err
	}
	normal, err := r.mapView(m, opts.normal, " Normal", wgpu.TextureFormatRGBA8Unorm, r.flatView)
	if err != nil {
		return nil, err
	}

	m.bindGroup, err = r.device.CreateBindGroup(&gpu.BindGroupDescriptor{
		Label:  m.label + " Bind Group",
		Layout: r.layout,
		Entries: []gpu.BindGroupEntry{
			{Binding: 0, Buffer: m.uniform.Buffer(), Size: GPUMaterialParamsSize},
			{Binding: 1, Sampler: sampler},
			{Binding: 2, TextureView: albedo},
			{Binding: 3, TextureView: normal},
		},
	})
	if err != nil {
		m.Release()
		return nil, fmt.Errorf("failed to create material %s bind group: %w", m.label, err)
	}
	return m, nil
}

func (r *registry) mapView(m *material, data *common.TextureStagingData, suffix string, format wgpu.TextureFormat, fallback gpu.TextureView) (gpu.TextureView, error) {
	if data == nil {
		return fallback, nil
	}
	tex, view, err := gpu.UploadTexture(r.device, m.label+suffix, *data, format)
	if err != nil {
		m.Release()
		return nil, err
	}
	m.textures = append(m.textures, tex)
	m.views = append(m.views, view)
	return view, nil
}

func (r *registry) Material(id uuid.UUID) (Material, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.materials[id]
	if !ok {
		return nil, fmt.Errorf("material %s: %w", id, ErrMaterialNotFound)
	}
	return m, nil
}

func (r *registry) IDs() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.order)
}

func (r *registry) Remove(id uuid.UUID) error {
	r.mu.Lock()
	m, ok := r.materials[id]
	if ok {
		delete(r.materials, id)
		r.order = slices.DeleteFunc(r.order, func(o uuid.UUID) bool { return o == id })
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("material %s: %w", id, ErrMaterialNotFound)
	}
	m.Release()
	return nil
}

func (r *registry) Layout() gpu.BindGroupLayout {
	return r.layout
}

func (r *registry) BuildPipelines(library shader.Library, viewLayout gpu.BindGroupLayout) error {
	r.mu.Lock()
	if r.cache != nil {
		r.cache.Release()
	}
	r.cache = pipeline.NewCache(r.device, library, r.logger)
	r.viewLayout = viewLayout
	r.mu.Unlock()

	for _, v := range Variants {
		if _, err := r.Pipeline(v, 1); err != nil {
			return err
		}
	}
	return nil
}

func (r *registry) Pipeline(variant Variant, viewCount int) (pipeline.Pipeline, error) {
	r.mu.Lock()
	cache, viewLayout := r.cache, r.viewLayout
	r.mu.Unlock()
	if cache == nil {
		return nil, ErrPipelinesNotBuilt
	}

	viewCount = max(viewCount, 1)
	key := fmt.Sprintf("%s[views=%d]", variant.Key(), viewCount)
	return cache.Get(key, func() pipeline.Pipeline {
		return NewGBufferPipeline(key, variant, viewCount, viewLayout, r.layout)
	})
}

// NewGBufferPipeline describes the G-buffer pipeline for one variant: view params at ViewGroup, the
// material at MaterialGroup, the four G-buffer color targets and the G-buffer depth.
//
// Parameters:
//   - key: the pipeline key
//   - variant: the material variant
//   - viewCount: the number of views; above 1 enables multiview
//   - viewLayout: the view-params layout
//   - materialLayout: the material layout
//
// Returns:
//   - pipeline.Pipeline: the unbuilt pipeline
func NewGBufferPipeline(key string, variant Variant, viewCount int, viewLayout, materialLayout gpu.BindGroupLayout) pipeline.Pipeline {
	defs := map[string]shader.Value{"VIEW_COUNT": shader.Uint(uint32(viewCount))}
	opts := []pipeline.PipelineBuilderOption{
		pipeline.WithBindGroupLayouts(viewLayout, materialLayout),
		pipeline.WithColorTargets(slices.Repeat([]wgpu.TextureFormat{framebuffer.GBufferColorFormat}, framebuffer.GBufferColorCount)...),
		pipeline.WithDepthFormat(framebuffer.DepthStencilFormat),
		pipeline.WithTopology(wgpu.PrimitiveTopologyTriangleList),
		pipeline.WithFrontFace(wgpu.FrontFaceCCW),
		pipeline.WithCullMode(wgpu.CullModeBack),
	}
	if viewCount > 1 {
		defs["MULTIVIEW"] = shader.Def()
		opts = append(opts, pipeline.WithMultiview(uint32(viewCount)))
	}
	opts = append(opts, pipeline.WithDefines(defines(defs, variant)))
	return pipeline.NewPipeline(key, shader.GBufferShader, opts...)
}

func (r *registry) RebuildPipelines() error {
	r.mu.Lock()
	cache := r.cache
	r.mu.Unlock()
	if cache == nil {
		return ErrPipelinesNotBuilt
	}
	return cache.RebuildAll()
}

func (r *registry) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		r.materials[id].Release()
	}
	r.materials = map[uuid.UUID]*material{}
	r.order = nil
	if r.cache != nil {
		r.cache.Release()
		r.cache = nil
	}
	for _, res := range []gpu.Releaser{r.whiteView, r.whiteTexture, r.flatView, r.flatTexture, r.sampler, r.layout} {
		if res != nil {
			res.Release()
		}
	}
	r.whiteView, r.whiteTexture, r.flatView, r.flatTexture, r.sampler, r.layout = nil, nil, nil, nil, nil, nil
}
