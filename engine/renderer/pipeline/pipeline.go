package pipeline

import (
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/Carmen-Shannon/oxy-xr/engine/gpu"
	"github.com/Carmen-Shannon/oxy-xr/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

var (
	// ErrNotBuilt is returned when a pipeline is used before Build succeeds.
	ErrNotBuilt = errors.New("pipeline has not been built")

	// ErrMissingEntryPoint is returned when the built shader lacks a vertex entry point, or a fragment entry
	// point while color targets are configured.
	ErrMissingEntryPoint = errors.New("shader is missing a required entry point")
)

// pipeline is the implementation of the Pipeline interface.
type pipeline struct {
	mu *sync.Mutex

	// pipelineKey is the unique identifier for this pipeline, used for caching and lookups
	pipelineKey string
	shaderName  string
	defines     map[string]shader.Value

	bindGroupLayouts []gpu.BindGroupLayout
	colorFormats     []wgpu.TextureFormat
	depthFormat      wgpu.TextureFormat
	multiview        uint32
	vertexBuffers    []wgpu.VertexBufferLayout

	renderPipeline gpu.RenderPipeline
	reflection     shader.Reflection

	// The following properties configure the pipeline at Build and can be set with the builder options.

	depthTestEnabled    bool
	depthWriteEnabled   bool
	depthBias           int32
	depthBiasSlopeScale float32
	blendEnabled        bool
	cullMode            wgpu.CullMode
	topology            wgpu.PrimitiveTopology
	frontFace           wgpu.FrontFace
	writeMask           wgpu.ColorWriteMask
	blendState          *wgpu.BlendState
}

// Pipeline is a render pipeline described by a library shader, its defines and fixed-function state. The
// description outlives the GPU object: Build compiles it and can be called again when the shader source
// changes.
type Pipeline interface {
	// PipelineKey returns the unique key associated with this pipeline, used for caching and lookups.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// ShaderName returns the library module the pipeline is built from.
	ShaderName() string

	// Defines returns a copy of the defines the shader is built with.
	Defines() map[string]shader.Value

	// Build preprocesses the shader, creates its module and compiles the render pipeline. A previously built
	// pipeline is released only after the new one succeeds, so a failed rebuild leaves the old one usable.
	//
	// Parameters:
	//   - device: the device to build on
	//   - library: the shader library to build the module from
	//
	// Returns:
	//   - error: a preprocess, module or pipeline creation error
	Build(device gpu.Device, library shader.Library) error

	// RenderPipeline returns the compiled pipeline, or nil before Build.
	RenderPipeline() gpu.RenderPipeline

	// Reflection returns the reflection of the last built shader source.
	Reflection() shader.Reflection

	// Bind sets the pipeline on a render pass.
	//
	// Parameters:
	//   - pass: the open render pass
	//
	// Returns:
	//   - error: ErrNotBuilt if Build has not succeeded
	Bind(pass gpu.RenderPass) error

	// DepthTestEnabled returns whether depth testing is enabled for this pipeline.
	DepthTestEnabled() bool

	// DepthWriteEnabled returns whether depth writing is enabled for this pipeline.
	DepthWriteEnabled() bool

	// DepthBias returns the constant depth bias and slope scale configured for this pipeline.
	DepthBias() (int32, float32)

	// BlendEnabled returns whether blending is enabled for this pipeline.
	BlendEnabled() bool

	// CullMode returns the cull mode configured for this pipeline.
	CullMode() wgpu.CullMode

	// Topology returns the primitive topology configured for this pipeline.
	Topology() wgpu.PrimitiveTopology

	// Multiview returns the number of views a draw renders to. Zero means single view.
	Multiview() uint32

	// Release frees the compiled pipeline. The description stays valid and can be built again.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline creates a pipeline description. Nothing is compiled until Build.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - shaderName: the library module to build, e.g. shader.GBufferShader
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: the pipeline description
func NewPipeline(pipelineKey, shaderName string, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		mu:                &sync.Mutex{},
		pipelineKey:       pipelineKey,
		shaderName:        shaderName,
		defines:           map[string]shader.Value{},
		depthFormat:       wgpu.TextureFormatUndefined,
		depthTestEnabled:  true,
		depthWriteEnabled: true,
		blendEnabled:      false,
		cullMode:          wgpu.CullModeNone,
		topology:          wgpu.PrimitiveTopologyTriangleList,
		frontFace:         wgpu.FrontFaceCCW,
		writeMask:         wgpu.ColorWriteMaskAll,
		blendState: &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) ShaderName() string {
	return p.shaderName
}

func (p *pipeline) Defines() map[string]shader.Value {
	return maps.Clone(p.defines)
}

func (p *pipeline) Build(device gpu.Device, library shader.Library) error {
	module, refl, err := library.Module(device, p.shaderName, p.defines)
	if err != nil {
		return fmt.Errorf("pipeline %s: %w", p.pipelineKey, err)
	}
	defer module.Release()

	desc, err := p.descriptor(module, refl)
	if err != nil {
		return err
	}
	rp, err := device.CreateRenderPipeline(desc)
	if err != nil {
		return fmt.Errorf("failed to create pipeline %s: %w", p.pipelineKey, err)
	}

	p.mu.Lock()
	old := p.renderPipeline
	p.renderPipeline = rp
	p.reflection = refl
	p.mu.Unlock()

	if old != nil {
		old.Release()
	}
	return nil
}

func (p *pipeline) descriptor(module gpu.ShaderModule, refl shader.Reflection) (*gpu.RenderPipelineDescriptor, error) {
	if refl.VertexEntry == "" {
		return nil, fmt.Errorf("pipeline %s: vertex: %w", p.pipelineKey, ErrMissingEntryPoint)
	}
	buffers := refl.VertexLayouts
	if p.vertexBuffers != nil {
		buffers = p.vertexBuffers
	}

	desc := &gpu.RenderPipelineDescriptor{
		Label:            p.pipelineKey,
		BindGroupLayouts: p.bindGroupLayouts,
		Vertex: gpu.VertexState{
			Module:     module,
			EntryPoint: refl.VertexEntry,
			Buffers:    buffers,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  p.topology,
			FrontFace: p.frontFace,
			CullMode:  p.cullMode,
		},
		Multiview: p.multiview,
	}

	if len(p.colorFormats) > 0 {
		if refl.FragmentEntry == "" {
			return nil, fmt.Errorf("pipeline %s: fragment: %w", p.pipelineKey, ErrMissingEntryPoint)
		}
		targets := make([]wgpu.ColorTargetState, len(p.colorFormats))
		for i, format := range p.colorFormats {
			targets[i] = wgpu.ColorTargetState{
				Format:    format,
				WriteMask: p.writeMask,
			}
			if p.blendEnabled {
				targets[i].Blend = p.blendState
			}
		}
		desc.Fragment = &gpu.FragmentState{
			Module:     module,
			EntryPoint: refl.FragmentEntry,
			Targets:    targets,
		}
	}

	if p.depthFormat != wgpu.TextureFormatUndefined {
		depthCompare := wgpu.CompareFunctionLess
		if !p.depthTestEnabled {
			depthCompare = wgpu.CompareFunctionAlways
		}
		desc.DepthStencil = &wgpu.DepthStencilState{
			Format:              p.depthFormat,
			DepthWriteEnabled:   p.depthWriteEnabled,
			DepthCompare:        depthCompare,
			DepthBias:           p.depthBias,
			DepthBiasSlopeScale: p.depthBiasSlopeScale,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		}
	}
	return desc, nil
}

func (p *pipeline) RenderPipeline() gpu.RenderPipeline {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.renderPipeline
}

func (p *pipeline) Reflection() shader.Reflection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reflection
}

func (p *pipeline) Bind(pass gpu.RenderPass) error {
	rp := p.RenderPipeline()
	if rp == nil {
		return fmt.Errorf("pipeline %s: %w", p.pipelineKey, ErrNotBuilt)
	}
	pass.SetPipeline(rp)
	return nil
}

func (p *pipeline) DepthTestEnabled() bool {
	return p.depthTestEnabled
}

func (p *pipeline) DepthWriteEnabled() bool {
	return p.depthWriteEnabled
}

func (p *pipeline) DepthBias() (int32, float32) {
	return p.depthBias, p.depthBiasSlopeScale
}

func (p *pipeline) BlendEnabled() bool {
	return p.blendEnabled
}

func (p *pipeline) CullMode() wgpu.CullMode {
	return p.cullMode
}

func (p *pipeline) Topology() wgpu.PrimitiveTopology {
	return p.topology
}

func (p *pipeline) Multiview() uint32 {
	return p.multiview
}

func (p *pipeline) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.renderPipeline != nil {
		p.renderPipeline.Release()
		p.renderPipeline = nil
	}
}
