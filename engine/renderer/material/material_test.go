package material_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-xr/common"
	"github.com/Carmen-Shannon/oxy-xr/engine/framebuffer"
	"github.com/Carmen-Shannon/oxy-xr/engine/gpu"
	"github.com/Carmen-Shannon/oxy-xr/engine/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-xr/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-xr/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) (*gputest.Device, material.Registry) {
	t.Helper()
	d := gputest.NewDevice()
	r, err := material.NewRegistry(d)
	require.NoError(t, err)
	return d, r
}

func TestGPUMaterialParamsMatchesShader(t *testing.T) {
	lib, err := shader.NewLibrary()
	require.NoError(t, err)
	src, err := lib.Build(shader.GBufferShader, nil)
	require.NoError(t, err)

	size, ok := shader.Reflect(src.Code).StructSize("MaterialParams")
	require.True(t, ok)
	assert.Equal(t, uint64(material.GPUMaterialParamsSize), size)

	var g material.GPUMaterialParams
	assert.Equal(t, material.GPUMaterialParamsSize, g.Size())
}

func TestParamsMarshal(t *testing.T) {
	p := material.DefaultParams()
	p.Emissive = [4]float32{1, 0.5, 0, 2}
	p.Metallic = 0.25
	g := p.ToGPU()
	buf := g.Marshal()
	require.Len(t, buf, material.GPUMaterialParamsSize)

	at := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])) }
	assert.Equal(t, float32(1), at(0))
	assert.Equal(t, float32(2), at(28))
	assert.Equal(t, float32(0.25), at(32))
	assert.Equal(t, float32(0.5), at(36))
	assert.Equal(t, float32(1), at(40))
	assert.Equal(t, float32(1), at(44))
}

func TestVariants(t *testing.T) {
	assert.Equal(t, "gbuffer", material.Variant{}.Key())
	assert.Equal(t, "gbuffer+albedo+normal", material.Variant{HasAlbedoMap: true, HasNormalMap: true}.Key())
	assert.Empty(t, material.Variant{}.Defines())
	assert.Equal(t, map[string]shader.Value{"HAS_NORMAL_MAP": shader.Def()}, material.Variant{HasNormalMap: true}.Defines())
	assert.Len(t, material.Variants, 4)
}

func TestRegisterWithoutMaps(t *testing.T) {
	d, r := newRegistry(t)
	require.Len(t, d.Textures, 2, "white and flat fallbacks")

	id, err := r.Register(material.DefaultParams(), material.WithLabel("plain"))
	require.NoError(t, err)

	m, err := r.Material(id)
	require.NoError(t, err)
	assert.Equal(t, "plain", m.Label())
	assert.Equal(t, material.Variant{}, m.Variant())
	assert.Equal(t, []uuid.UUID{id}, r.IDs())

	group := m.BindGroup().(*gputest.BindGroup)
	require.Len(t, group.Desc.Entries, 4)
	assert.Same(t, d.Views[0], group.Desc.Entries[2].TextureView, "missing albedo uses white")
	assert.Same(t, d.Views[1], group.Desc.Entries[3].TextureView, "missing normal uses flat")
	assert.Same(t, d.Samplers[0], group.Desc.Entries[1].Sampler)

	uniform := group.Desc.Entries[0].Buffer
	writes := d.WritesTo(uniform)
	require.Len(t, writes, 1)
	g := material.DefaultParams().ToGPU()
	assert.Equal(t, g.Marshal(), writes[0].Data)
}

func TestRegisterWithMaps(t *testing.T) {
	d, r := newRegistry(t)
	albedo := common.TextureStagingData{Pixels: make([]byte, 2*2*4), Width: 2, Height: 2}
	normal := common.SolidTexture(128, 128, 255, 255)

	id, err := r.Register(material.DefaultParams(),
		material.WithAlbedoMap(albedo),
		material.WithNormalMap(normal),
		material.WithSampler(common.SamplerStagingData{AddressModeU: wgpu.AddressModeClampToEdge}),
	)
	require.NoError(t, err)

	m, err := r.Material(id)
	require.NoError(t, err)
	assert.Equal(t, material.Variant{HasAlbedoMap: true, HasNormalMap: true}, m.Variant())

	require.Len(t, d.Textures, 4)
	assert.Equal(t, wgpu.TextureFormatRGBA8UnormSrgb, d.Textures[2].Desc.Format)
	assert.Equal(t, uint32(2), d.Textures[2].Desc.Size.Width)
	assert.Equal(t, wgpu.TextureFormatRGBA8Unorm, d.Textures[3].Desc.Format)
	require.Len(t, d.TextureWrites, 4)
	assert.Equal(t, uint32(8), d.TextureWrites[2].BytesPerRow)

	require.Len(t, d.Samplers, 2)
	assert.Equal(t, wgpu.AddressModeClampToEdge, d.Samplers[1].Desc.AddressModeU)
	group := m.BindGroup().(*gputest.BindGroup)
	assert.Same(t, d.Samplers[1], group.Desc.Entries[1].Sampler)

	require.NoError(t, r.Remove(id))
	assert.True(t, d.Textures[2].Released)
	assert.True(t, d.Samplers[1].Released)
	assert.False(t, d.Samplers[0].Released, "the shared sampler outlives materials")
	assert.False(t, d.Textures[0].Released)
	_, err = r.Material(id)
	assert.ErrorIs(t, err, material.ErrMaterialNotFound)
	assert.ErrorIs(t, r.Remove(id), material.ErrMaterialNotFound)
}

func TestRegisterErrors(t *testing.T) {
	_, r := newRegistry(t)

	_, err := r.Register(material.DefaultParams(), material.WithAlbedoMap(common.TextureStagingData{Pixels: []byte{1, 2, 3}, Width: 1, Height: 1}))
	assert.ErrorIs(t, err, gpu.ErrBufferTooSmall)
	assert.Empty(t, r.IDs())

	id := uuid.New()
	_, err = r.Register(material.DefaultParams(), material.WithAssetID(id))
	require.NoError(t, err)
	_, err = r.Register(material.DefaultParams(), material.WithAssetID(id))
	assert.ErrorIs(t, err, material.ErrDuplicateMaterial)
}

func TestPipelines(t *testing.T) {
	d, r := newRegistry(t)
	_, err := r.Pipeline(material.Variant{}, 1)
	assert.ErrorIs(t, err, material.ErrPipelinesNotBuilt)

	lib, err := shader.NewLibrary()
	require.NoError(t, err)
	viewLayout, err := d.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{Label: "views"})
	require.NoError(t, err)
	require.NoError(t, r.BuildPipelines(lib, viewLayout))
	require.Len(t, d.Pipelines, len(material.Variants))

	desc := d.Pipelines[0].Desc
	assert.Equal(t, []gpu.BindGroupLayout{viewLayout, r.Layout()}, desc.BindGroupLayouts)
	require.NotNil(t, desc.Fragment)
	require.Len(t, desc.Fragment.Targets, framebuffer.GBufferColorCount)
	assert.Equal(t, framebuffer.DepthStencilFormat, desc.DepthStencil.Format)
	require.Len(t, desc.Vertex.Buffers, 2)
	assert.Equal(t, wgpu.VertexStepModeInstance, desc.Vertex.Buffers[1].StepMode)

	both, err := r.Pipeline(material.Variant{HasAlbedoMap: true, HasNormalMap: true}, 1)
	require.NoError(t, err)
	assert.Len(t, d.Pipelines, len(material.Variants), "single-view variants are prebuilt")
	assert.Contains(t, both.Defines(), "HAS_ALBEDO_MAP")
	assert.Contains(t, both.Defines(), "HAS_NORMAL_MAP")

	stereo, err := r.Pipeline(material.Variant{}, 2)
	require.NoError(t, err)
	assert.Len(t, d.Pipelines, len(material.Variants)+1)
	assert.Equal(t, uint32(2), stereo.Multiview())
	assert.Equal(t, shader.Uint(2), stereo.Defines()["VIEW_COUNT"])
	assert.Contains(t, stereo.Defines(), "MULTIVIEW")

	require.NoError(t, r.RebuildPipelines())
	assert.Len(t, d.Pipelines, 2*(len(material.Variants)+1))

	r.Release()
	for _, p := range d.Pipelines {
		assert.True(t, p.Released)
	}
	assert.True(t, d.BindGroupLayouts[0].Released)
}
