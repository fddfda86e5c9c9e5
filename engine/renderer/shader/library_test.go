package shader

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-xr/engine/gpu"
	"github.com/Carmen-Shannon/oxy-xr/engine/gpu/gputest"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLibrary(t *testing.T) Library {
	t.Helper()
	lib, err := NewLibrary()
	require.NoError(t, err)
	return lib
}

func reflectBuilt(t *testing.T, lib Library, name string, defs map[string]Value) Reflection {
	t.Helper()
	src, err := lib.Build(name, defs)
	require.NoError(t, err)
	return Reflect(src.Code)
}

func taaDefs() map[string]Value {
	return map[string]Value{"TAA_BLEND": Float(0.1), "TAA_SAMPLE_COUNT": Uint(8)}
}

func TestLibraryRegistersEmbeddedModules(t *testing.T) {
	lib := newTestLibrary(t)
	for _, name := range []string{
		"common::view_params", "common::light", "common::gbuffer", "common::instance",
		"postproc::types", "postproc::simple_quad",
		GBufferShader, ShadowShader, DeferredLightingShader, BloomShader,
		SharpenShader, TAAShader, TonemapShader, CopySwapchainShader,
	} {
		_, ok := lib.Source(name)
		assert.True(t, ok, name)
	}
}

func TestLibraryBuildsEveryVariant(t *testing.T) {
	lib := newTestLibrary(t)
	variants := []struct {
		name string
		defs map[string]Value
	}{
		{GBufferShader, nil},
		{GBufferShader, map[string]Value{"HAS_ALBEDO_MAP": Def(), "HAS_NORMAL_MAP": Def()}},
		{GBufferShader, map[string]Value{"MULTIVIEW": Def(), "VIEW_COUNT": Uint(2)}},
		{ShadowShader, nil},
		{DeferredLightingShader, nil},
		{DeferredLightingShader, map[string]Value{"MULTIVIEW": Def(), "VIEW_COUNT": Uint(2)}},
		{BloomShader, map[string]Value{"BRIGHTNESS_PASS": Def()}},
		{BloomShader, map[string]Value{"DOWNSAMPLE_PASS": Def()}},
		{BloomShader, map[string]Value{"BLUR_PASS": Def(), "BLUR_HORIZONTAL": Def()}},
		{BloomShader, map[string]Value{"BLUR_PASS": Def()}},
		{BloomShader, map[string]Value{"UPSAMPLE_PASS": Def()}},
		{BloomShader, map[string]Value{"COMPOSITE_PASS": Def()}},
		{SharpenShader, nil},
		{TAAShader, taaDefs()},
		{TonemapShader, map[string]Value{"APPLY_GAMMA": Def()}},
		{CopySwapchainShader, nil},
	}
	for _, v := range variants {
		t.Run(moduleLabel(v.name, v.defs), func(t *testing.T) {
			r := reflectBuilt(t, lib, v.name, v.defs)
			assert.Equal(t, "vs_main", r.VertexEntry)
			assert.Equal(t, "fs_main", r.FragmentEntry)
		})
	}
}

func TestLibraryGBufferReflection(t *testing.T) {
	r := reflectBuilt(t, newTestLibrary(t), GBufferShader, nil)

	require.Len(t, r.VertexLayouts, 2)
	assert.Equal(t, uint64(48), r.VertexLayouts[0].ArrayStride)
	assert.Equal(t, wgpu.VertexStepModeVertex, r.VertexLayouts[0].StepMode)
	assert.Equal(t, uint64(128), r.VertexLayouts[1].ArrayStride)
	assert.Equal(t, wgpu.VertexStepModeInstance, r.VertexLayouts[1].StepMode)
	assert.Equal(t, uint32(4), r.VertexLayouts[1].Attributes[0].ShaderLocation)

	size, ok := r.StructSize("ViewParams")
	require.True(t, ok)
	assert.Equal(t, uint64(480), size)
	size, ok = r.StructSize("MaterialParams")
	require.True(t, ok)
	assert.Equal(t, uint64(48), size)

	assert.Len(t, r.Group(0), 1)
	assert.Len(t, r.Group(1), 4)
	assert.Equal(t, "array<ViewParams, 1>", r.Group(0)[0].Type)
}

func TestLibraryViewCountDefine(t *testing.T) {
	r := reflectBuilt(t, newTestLibrary(t), GBufferShader, map[string]Value{"MULTIVIEW": Def(), "VIEW_COUNT": Uint(2)})
	assert.Equal(t, "array<ViewParams, 2>", r.Group(0)[0].Type)
	assert.Len(t, r.VertexLayouts, 2)
}

func TestLibraryLightingReflection(t *testing.T) {
	r := reflectBuilt(t, newTestLibrary(t), DeferredLightingShader, nil)

	size, ok := r.StructSize("Light")
	require.True(t, ok)
	assert.Equal(t, uint64(192), size)
	size, ok = r.StructSize("LightParams")
	require.True(t, ok)
	assert.Equal(t, uint64(16), size)

	assert.Len(t, r.Group(0), 1)
	assert.Len(t, r.Group(1), 8)
	assert.Len(t, r.Group(2), 5)
	assert.Empty(t, r.VertexLayouts)
}

func TestLibraryTAAMovesGBufferGroup(t *testing.T) {
	r := reflectBuilt(t, newTestLibrary(t), TAAShader, taaDefs())
	assert.Len(t, r.Group(1), 2)
	assert.Len(t, r.Group(2), 2)
	assert.Len(t, r.Group(3), 8)
}

func TestLibraryShadowReflection(t *testing.T) {
	r := reflectBuilt(t, newTestLibrary(t), ShadowShader, nil)
	assert.Len(t, r.VertexLayouts, 2)
	require.Len(t, r.Group(0), 1)
	assert.Equal(t, "mat4x4<f32>", r.Group(0)[0].Type)
}

func TestLibraryBuildUnknownModule(t *testing.T) {
	_, err := newTestLibrary(t).Build("nope", nil)
	assert.ErrorIs(t, err, ErrIncludeNotFound)
}

func TestLibraryModule(t *testing.T) {
	lib := newTestLibrary(t)
	device := gputest.NewDevice()

	module, r, err := lib.Module(device, TonemapShader, map[string]Value{"APPLY_GAMMA": Def()})
	require.NoError(t, err)
	require.NotNil(t, module)
	assert.Equal(t, "fs_main", r.FragmentEntry)
	require.Len(t, device.ShaderModules, 1)
	assert.Equal(t, "postproc::tonemap[APPLY_GAMMA]", device.ShaderModules[0].Label)
	assert.Contains(t, device.ShaderModules[0].Code, "pow(color")

	device.FailShaderModule = func(*gpu.ShaderModuleDescriptor) error { return errors.New("boom") }
	_, _, err = lib.Module(device, TonemapShader, nil)
	assert.ErrorContains(t, err, "boom")
}

func TestLibraryOverrideNotifies(t *testing.T) {
	lib := newTestLibrary(t)
	var changed []string
	lib.OnChange(func(name string) { changed = append(changed, name) })

	lib.Override("postproc::types", "// replaced\n")
	assert.Equal(t, []string{"postproc::types"}, changed)

	src, ok := lib.Source("postproc::types")
	require.True(t, ok)
	assert.Equal(t, "// replaced\n", src)

	lib.Override(CopySwapchainShader, "@vertex fn vs_main() {}\n")
	out, err := lib.Build(CopySwapchainShader, nil)
	require.NoError(t, err)
	assert.Equal(t, "@vertex fn vs_main() {}\n", out.Code)
}

func TestModuleLabel(t *testing.T) {
	assert.Equal(t, "gbuffer", moduleLabel("gbuffer", nil))
	assert.Equal(t, "bloom[BLUR_PASS,LEVEL=2]", moduleLabel("bloom", map[string]Value{"LEVEL": Uint(2), "BLUR_PASS": Def()}))
}
