package pipeline_test

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-xr/engine/gpu"
	"github.com/Carmen-Shannon/oxy-xr/engine/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-xr/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-xr/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLibrary(t *testing.T) shader.Library {
	t.Helper()
	lib, err := shader.NewLibrary()
	require.NoError(t, err)
	return lib
}

func TestBuildFullscreenPipeline(t *testing.T) {
	d := gputest.NewDevice()
	lib := newLibrary(t)
	layout, err := d.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{Label: "input"})
	require.NoError(t, err)

	p := pipeline.NewPipeline("tonemap", shader.TonemapShader,
		pipeline.WithDefines(map[string]shader.Value{"APPLY_GAMMA": shader.Def()}),
		pipeline.WithBindGroupLayouts(layout),
		pipeline.WithColorTargets(wgpu.TextureFormatRGBA8Unorm),
		pipeline.WithDepthTestEnabled(false),
		pipeline.WithDepthWriteEnabled(false),
	)
	assert.Nil(t, p.RenderPipeline())
	require.NoError(t, p.Build(d, lib))

	require.Len(t, d.Pipelines, 1)
	desc := d.Pipelines[0].Desc
	assert.Equal(t, "tonemap", desc.Label)
	assert.Equal(t, "vs_main", desc.Vertex.EntryPoint)
	assert.Empty(t, desc.Vertex.Buffers)
	require.NotNil(t, desc.Fragment)
	assert.Equal(t, "fs_main", desc.Fragment.EntryPoint)
	require.Len(t, desc.Fragment.Targets, 1)
	assert.Equal(t, wgpu.TextureFormatRGBA8Unorm, desc.Fragment.Targets[0].Format)
	assert.Nil(t, desc.Fragment.Targets[0].Blend)
	assert.Nil(t, desc.DepthStencil)
	assert.Equal(t, []gpu.BindGroupLayout{layout}, desc.BindGroupLayouts)
	assert.Contains(t, d.ShaderModules[0].Code, "pow(color")
	assert.True(t, d.ShaderModules[0].Released, "module is released after pipeline creation")
}

func TestBuildDepthOnlyPipeline(t *testing.T) {
	d := gputest.NewDevice()
	p := pipeline.NewPipeline("shadow", shader.ShadowShader,
		pipeline.WithColorTargets(wgpu.TextureFormatRG32Float),
		pipeline.WithDepthFormat(wgpu.TextureFormatDepth32Float),
		pipeline.WithDepthBias(2, 1.5),
		pipeline.WithCullMode(wgpu.CullModeFront),
	)
	require.NoError(t, p.Build(d, newLibrary(t)))

	desc := d.Pipelines[0].Desc
	require.NotNil(t, desc.DepthStencil)
	assert.Equal(t, wgpu.TextureFormatDepth32Float, desc.DepthStencil.Format)
	assert.Equal(t, wgpu.CompareFunctionLess, desc.DepthStencil.DepthCompare)
	assert.True(t, desc.DepthStencil.DepthWriteEnabled)
	assert.Equal(t, int32(2), desc.DepthStencil.DepthBias)
	assert.Equal(t, wgpu.CullModeFront, desc.Primitive.CullMode)
	assert.NotEmpty(t, desc.Vertex.Buffers, "vertex layouts come from reflection")

	bias, slope := p.DepthBias()
	assert.Equal(t, int32(2), bias)
	assert.Equal(t, float32(1.5), slope)
}

func TestPrimitiveAndTargetOverrides(t *testing.T) {
	d := gputest.NewDevice()
	positions := wgpu.VertexBufferLayout{
		ArrayStride: 12,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  []wgpu.VertexAttribute{{Format: wgpu.VertexFormatFloat32x3, ShaderLocation: 0}},
	}
	p := pipeline.NewPipeline("lines", shader.ShadowShader,
		pipeline.WithVertexBuffers(positions),
		pipeline.WithColorTargets(wgpu.TextureFormatRG32Float, wgpu.TextureFormatRG32Float),
		pipeline.WithTopology(wgpu.PrimitiveTopologyLineList),
		pipeline.WithFrontFace(wgpu.FrontFaceCW),
		pipeline.WithWriteMask(wgpu.ColorWriteMaskRed),
	)
	require.NoError(t, p.Build(d, newLibrary(t)))

	desc := d.Pipelines[0].Desc
	assert.Equal(t, []wgpu.VertexBufferLayout{positions}, desc.Vertex.Buffers, "explicit layouts replace reflection")
	assert.Equal(t, wgpu.PrimitiveTopologyLineList, desc.Primitive.Topology)
	assert.Equal(t, wgpu.PrimitiveTopologyLineList, p.Topology())
	assert.Equal(t, wgpu.FrontFaceCW, desc.Primitive.FrontFace)
	require.Len(t, desc.Fragment.Targets, 2)
	for _, target := range desc.Fragment.Targets {
		assert.Equal(t, wgpu.ColorWriteMaskRed, target.WriteMask)
	}
}

func TestDefaultPrimitiveState(t *testing.T) {
	d := gputest.NewDevice()
	p := pipeline.NewPipeline("copy", shader.CopySwapchainShader, pipeline.WithColorTargets(wgpu.TextureFormatBGRA8Unorm))
	require.NoError(t, p.Build(d, newLibrary(t)))
	desc := d.Pipelines[0].Desc
	assert.Equal(t, wgpu.PrimitiveTopologyTriangleList, desc.Primitive.Topology)
	assert.Equal(t, wgpu.FrontFaceCCW, desc.Primitive.FrontFace)
	assert.Equal(t, wgpu.ColorWriteMaskAll, desc.Fragment.Targets[0].WriteMask)
}

func TestBlendAppliesToEveryTarget(t *testing.T) {
	d := gputest.NewDevice()
	additive := &wgpu.BlendState{
		Color: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorOne, DstFactor: wgpu.BlendFactorOne, Operation: wgpu.BlendOperationAdd},
		Alpha: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorOne, DstFactor: wgpu.BlendFactorOne, Operation: wgpu.BlendOperationAdd},
	}
	p := pipeline.NewPipeline("bloom_upsample", shader.BloomShader,
		pipeline.WithDefines(map[string]shader.Value{"UPSAMPLE_PASS": shader.Def()}),
		pipeline.WithColorTargets(wgpu.TextureFormatRGBA16Float),
		pipeline.WithBlendEnabled(true),
		pipeline.WithBlendState(additive),
	)
	require.NoError(t, p.Build(d, newLibrary(t)))
	assert.Equal(t, additive, d.Pipelines[0].Desc.Fragment.Targets[0].Blend)
}

func TestRebuildReleasesPrevious(t *testing.T) {
	d := gputest.NewDevice()
	lib := newLibrary(t)
	p := pipeline.NewPipeline("copy", shader.CopySwapchainShader, pipeline.WithColorTargets(wgpu.TextureFormatBGRA8Unorm))
	require.NoError(t, p.Build(d, lib))
	first := p.RenderPipeline()

	require.NoError(t, p.Build(d, lib))
	assert.True(t, d.Pipelines[0].Released)
	assert.NotSame(t, first, p.RenderPipeline())

	d.FailRenderPipeline = func(*gpu.RenderPipelineDescriptor) error { return errors.New("boom") }
	assert.Error(t, p.Build(d, lib))
	assert.Same(t, d.Pipelines[1], p.RenderPipeline(), "a failed rebuild keeps the previous pipeline")
	assert.False(t, d.Pipelines[1].Released)

	p.Release()
	assert.True(t, d.Pipelines[1].Released)
	assert.Nil(t, p.RenderPipeline())
}

func TestBuildErrors(t *testing.T) {
	d := gputest.NewDevice()
	lib := newLibrary(t)

	unknown := pipeline.NewPipeline("missing", "postproc::missing")
	assert.ErrorIs(t, unknown.Build(d, lib), shader.ErrIncludeNotFound)

	lib.Override("test::vertex_only", "@vertex\nfn vs() -> @builtin(position) vec4<f32> { return vec4<f32>(0.0); }\n")
	noFragment := pipeline.NewPipeline("vertex_only", "test::vertex_only", pipeline.WithColorTargets(wgpu.TextureFormatRGBA8Unorm))
	assert.ErrorIs(t, noFragment.Build(d, lib), pipeline.ErrMissingEntryPoint)

	depthOnly := pipeline.NewPipeline("depth_only", "test::vertex_only", pipeline.WithDepthFormat(wgpu.TextureFormatDepth32Float))
	require.NoError(t, depthOnly.Build(d, lib))
	assert.Nil(t, d.Pipelines[0].Desc.Fragment)
}

func TestBindRequiresBuild(t *testing.T) {
	d := gputest.NewDevice()
	p := pipeline.NewPipeline("copy", shader.CopySwapchainShader, pipeline.WithColorTargets(wgpu.TextureFormatBGRA8Unorm))

	enc, err := d.CreateCommandEncoder("frame")
	require.NoError(t, err)
	pass := enc.BeginRenderPass(&gpu.RenderPassDescriptor{Label: "copy"})
	assert.ErrorIs(t, p.Bind(pass), pipeline.ErrNotBuilt)

	require.NoError(t, p.Build(d, newLibrary(t)))
	require.NoError(t, p.Bind(pass))
	require.NoError(t, pass.End())
	cb, err := enc.Finish()
	require.NoError(t, err)
	d.Submit(cb)
	assert.Equal(t, []*gputest.RenderPipeline{d.Pipelines[0]}, d.Passes()[0].Pipelines)
}

func TestMultiviewDescriptor(t *testing.T) {
	d := gputest.NewDevice()
	p := pipeline.NewPipeline("copy_stereo", shader.TonemapShader,
		pipeline.WithDefines(map[string]shader.Value{"MULTIVIEW": shader.Def()}),
		pipeline.WithMultiview(2),
		pipeline.WithColorTargets(wgpu.TextureFormatRGBA8Unorm),
	)
	require.NoError(t, p.Build(d, newLibrary(t)))
	assert.Equal(t, uint32(2), d.Pipelines[0].Desc.Multiview)
	assert.Equal(t, uint32(2), p.Multiview())
	assert.Contains(t, d.ShaderModules[0].Code, "view_index")
}

func TestDefinesAreCopied(t *testing.T) {
	defs := map[string]shader.Value{"A": shader.Uint(1)}
	p := pipeline.NewPipeline("k", shader.TonemapShader, pipeline.WithDefines(defs), pipeline.WithDefines(map[string]shader.Value{"A": shader.Uint(2)}))
	got := p.Defines()
	assert.Equal(t, shader.Uint(2), got["A"])
	got["B"] = shader.Def()
	assert.NotContains(t, p.Defines(), "B")
	assert.Equal(t, shader.Uint(1), defs["A"])
}

func TestCache(t *testing.T) {
	d := gputest.NewDevice()
	lib := newLibrary(t)
	cache := pipeline.NewCache(d, lib, nil)

	builds := 0
	build := func() pipeline.Pipeline {
		builds++
		return pipeline.NewPipeline("copy", shader.CopySwapchainShader, pipeline.WithColorTargets(wgpu.TextureFormatBGRA8Unorm))
	}
	p, err := cache.Get("copy", build)
	require.NoError(t, err)
	again, err := cache.Get("copy", build)
	require.NoError(t, err)
	assert.Same(t, p, again)
	assert.Equal(t, 1, builds)
	assert.Equal(t, []string{"copy"}, cache.Keys())

	src, ok := lib.Source(shader.CopySwapchainShader)
	require.True(t, ok)
	lib.Override(shader.CopySwapchainShader, src+"\nconst EDITED: f32 = 1.0;\n")
	require.Len(t, d.Pipelines, 2, "override rebuilds cached pipelines")
	assert.True(t, d.Pipelines[0].Released)
	assert.Contains(t, d.ShaderModules[1].Code, "EDITED")

	_, err = cache.Get("broken", func() pipeline.Pipeline { return pipeline.NewPipeline("broken", "missing") })
	assert.Error(t, err)
	_, ok = cache.Lookup("broken")
	assert.False(t, ok)

	cache.Release()
	assert.True(t, d.Pipelines[1].Released)
	assert.Empty(t, cache.Keys())
}
