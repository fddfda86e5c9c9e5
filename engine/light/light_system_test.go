package light

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-xr/common"
	"github.com/Carmen-Shannon/oxy-xr/engine/gpu/gputest"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSystem(t *testing.T, options ...LightSystemBuilderOption) (LightSystem, *gputest.Device) {
	t.Helper()
	device := gputest.NewDevice()
	ls, err := NewLightSystem(device, append([]LightSystemBuilderOption{WithShadowQuality(ShadowQualityLow)}, options...)...)
	require.NoError(t, err)
	t.Cleanup(ls.Release)
	return ls, device
}

func spawn(t *testing.T, ls LightSystem, lt LightType, castShadow bool) uuid.UUID {
	t.Helper()
	id, err := ls.SpawnLight(uuid.New(), common.ViewDirection{Position: mgl32.Vec3{0, 3, 0}, Direction: mgl32.Vec3{0, -1, 0}},
		NewLightComponent(lt, WithCastShadow(castShadow)))
	require.NoError(t, err)
	return id
}

func fillPool(t *testing.T, pool *ShadowmapPool, slots int) {
	t.Helper()
	for range slots {
		_, err := pool.AssignIndex(newLight(Spot(5, 0.9, 0.8), mgl32.Vec3{}, mgl32.Vec3{0, 0, -1}))
		require.NoError(t, err)
	}
}

func TestShadowmapPoolAssignsContiguousRuns(t *testing.T) {
	device := gputest.NewDevice()
	pool, err := NewShadowmapPool(device, ShadowQualityMedium)
	require.NoError(t, err)
	defer pool.Release()

	assert.Equal(t, 0, pool.Len())
	assert.Equal(t, pool.dummyArrayView, pool.ArrayView())

	spot := newLight(Spot(5, 0.9, 0.8), mgl32.Vec3{}, mgl32.Vec3{0, 0, -1})
	grew, err := pool.AssignIndex(spot)
	require.NoError(t, err)
	assert.True(t, grew)
	require.NotNil(t, spot.State().ShadowMapIndex)
	assert.Equal(t, uint32(0), *spot.State().ShadowMapIndex)

	point := newLight(Point(5), mgl32.Vec3{}, mgl32.Vec3{})
	grew, err = pool.AssignIndex(point)
	require.NoError(t, err)
	assert.True(t, grew)
	assert.Equal(t, uint32(1), *point.State().ShadowMapIndex)
	assert.Equal(t, uint32(7), pool.AssignedCount())
	assert.Equal(t, 7, pool.Len())

	slot, err := pool.Shadowmap(6)
	require.NoError(t, err)
	assert.Equal(t, uint32(1024), slot.Extent().Width)
	assert.Equal(t, ShadowmapFormat, slot.Format())
	_, err = pool.Shadowmap(7)
	assert.ErrorIs(t, err, ErrShadowmapNotFound)

	depth, err := pool.ShadowmapDepth(6)
	require.NoError(t, err)
	assert.True(t, depth.IsDepth())

	pool.Reset()
	assert.Equal(t, uint32(0), pool.AssignedCount())
	grew, err = pool.AssignIndex(point)
	require.NoError(t, err)
	assert.False(t, grew, "storage is kept across resets")
	assert.Equal(t, uint32(0), *point.State().ShadowMapIndex)
}

func TestShadowmapPoolFull(t *testing.T) {
	device := gputest.NewDevice()
	pool, err := NewShadowmapPool(device, ShadowQualityLow)
	require.NoError(t, err)
	defer pool.Release()

	fillPool(t, pool, MaxShadowmaps-5)

	point := newLight(Point(5), mgl32.Vec3{}, mgl32.Vec3{})
	_, err = pool.AssignIndex(point)
	assert.ErrorIs(t, err, ErrShadowmapPoolFull)
	assert.Nil(t, point.State().ShadowMapIndex, "no partial assignment")
	assert.Equal(t, uint32(MaxShadowmaps-5), pool.AssignedCount())

	pool.Reset()
	fillPool(t, pool, MaxShadowmaps-6)
	_, err = pool.AssignIndex(point)
	require.NoError(t, err)
	assert.Equal(t, uint32(MaxShadowmaps-6), *point.State().ShadowMapIndex)
	assert.Equal(t, uint32(MaxShadowmaps), pool.AssignedCount())

	assert.ErrorIs(t, pool.IncreasePool(MaxShadowmaps+1), ErrShadowmapPoolFull)
}

func TestShadowmapViewsArePadded(t *testing.T) {
	device := gputest.NewDevice()
	pool, err := NewShadowmapPool(device, ShadowQualityLow)
	require.NoError(t, err)
	defer pool.Release()

	views := pool.ShadowmapViews()
	require.Len(t, views, MaxShadowmaps)
	for _, v := range views {
		assert.Equal(t, pool.dummyView, v)
	}

	require.NoError(t, pool.IncreasePool(3))
	require.NoError(t, pool.IncreasePool(2), "smaller requests are ignored")
	assert.Equal(t, 3, pool.Len())

	views = pool.ShadowmapViews()
	require.Len(t, views, MaxShadowmaps)
	for i := range 3 {
		slot, err := pool.Shadowmap(uint32(i))
		require.NoError(t, err)
		assert.Equal(t, slot.View(), views[i])
		fake := views[i].(*gputest.TextureView)
		assert.Equal(t, uint32(i), fake.Desc.BaseArrayLayer)
	}
	assert.Equal(t, pool.dummyView, views[3])
	assert.Equal(t, pool.dummyView, views[MaxShadowmaps-1])

	array := pool.ArrayView().(*gputest.TextureView)
	assert.Equal(t, wgpu.TextureViewDimension2DArray, array.Desc.Dimension)
	assert.Equal(t, uint32(3), array.Desc.ArrayLayerCount)
}

func TestShadowmapPoolGrowthReleasesOldArray(t *testing.T) {
	device := gputest.NewDevice()
	pool, err := NewShadowmapPool(device, ShadowQualityLow)
	require.NoError(t, err)
	defer pool.Release()

	require.NoError(t, pool.IncreasePool(1))
	old := pool.ArrayView().(*gputest.TextureView)
	oldDepth, err := pool.ShadowmapDepth(0)
	require.NoError(t, err)

	require.NoError(t, pool.IncreasePool(4))
	assert.True(t, old.Released)
	assert.True(t, old.Texture.Released)
	assert.Equal(t, uint32(4), pool.ArrayView().(*gputest.TextureView).Texture.Desc.Size.DepthOrArrayLayers)

	depth, err := pool.ShadowmapDepth(0)
	require.NoError(t, err)
	assert.Same(t, oldDepth, depth, "depth targets are kept")
}

func TestSpawnLightAssignsShadows(t *testing.T) {
	ls, _ := newTestSystem(t)

	noShadow := spawn(t, ls, Point(4), false)
	sun := spawn(t, ls, Directional(), true)
	point := spawn(t, ls, Point(4), true)

	l, err := ls.LightInstance(noShadow)
	require.NoError(t, err)
	assert.False(t, l.State().CastShadow)
	assert.Nil(t, l.State().ShadowMapIndex)

	l, err = ls.LightInstance(sun)
	require.NoError(t, err)
	assert.True(t, l.State().CastShadow)
	assert.Equal(t, uint32(0), *l.State().ShadowMapIndex)
	assert.Greater(t, l.State().Range, float32(1e30), "directional lights have unbounded range")

	l, err = ls.LightInstance(point)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), *l.State().ShadowMapIndex)
	assert.Equal(t, uint32(7), ls.Pool().AssignedCount())

	assert.Equal(t, []uuid.UUID{noShadow, sun, point}, ls.LightIDs())
	assert.Len(t, ls.Lights(), 3)

	_, err = ls.LightInstance(uuid.New())
	assert.ErrorIs(t, err, ErrLightNotFound)
}

func TestSpawnLightWhenPoolFullDropsShadow(t *testing.T) {
	var warnings bytes.Buffer
	ls, _ := newTestSystem(t, WithLogger(common.NewWriterLogger("light", false, io.Discard, &warnings)))

	for range MaxShadowmaps - 2 {
		spawn(t, ls, Spot(5, 0.9, 0.8), true)
	}
	id := spawn(t, ls, Point(5), true)

	l, err := ls.LightInstance(id)
	require.NoError(t, err)
	assert.False(t, l.State().CastShadow)
	assert.Nil(t, l.State().ShadowMapIndex)
	assert.Contains(t, warnings.String(), "WARN")
	assert.Contains(t, warnings.String(), "full")

	spot := spawn(t, ls, Spot(5, 0.9, 0.8), true)
	l, err = ls.LightInstance(spot)
	require.NoError(t, err)
	assert.True(t, l.State().CastShadow, "smaller requests still fit")
}

func TestSpawnLightCapacity(t *testing.T) {
	ls, _ := newTestSystem(t, WithMaxLights(2))
	spawn(t, ls, Directional(), false)
	spawn(t, ls, Directional(), false)
	_, err := ls.SpawnLight(uuid.New(), common.ViewDirection{}, NewLightComponent(Directional()))
	assert.ErrorIs(t, err, ErrTooManyLights)
}

func TestPoolGrowthRecreatesLightingBindGroup(t *testing.T) {
	ls, _ := newTestSystem(t)
	initial := ls.LightingBindGroup().(*gputest.BindGroup)
	assert.Len(t, initial.Desc.Entries, 5)
	assert.Equal(t, ls.Pool().dummyArrayView, initial.Desc.Entries[2].TextureView)

	spawn(t, ls, Point(3), false)
	assert.Same(t, initial, ls.LightingBindGroup(), "no growth without shadows")

	spawn(t, ls, Point(3), true)
	grown := ls.LightingBindGroup().(*gputest.BindGroup)
	assert.NotSame(t, initial, grown)
	assert.True(t, initial.Released)
	assert.Equal(t, ls.Pool().ArrayView(), grown.Desc.Entries[2].TextureView)
}

func TestOnPreRenderUploads(t *testing.T) {
	ls, device := newTestSystem(t)
	impl := ls.(*lightSystemImpl)

	spawn(t, ls, Directional(), false)
	point := spawn(t, ls, Point(6), true)

	require.NoError(t, ls.OnPreRender())

	lights := device.WritesTo(impl.lightBuffer.Buffer())
	require.Len(t, lights, 1)
	assert.Len(t, lights[0].Data, 2*GPULightSize)

	params := device.WritesTo(impl.paramsBuffer.Buffer())
	require.Len(t, params, 1)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(params[0].Data[0:]))
	assert.Equal(t, uint32(6), binary.LittleEndian.Uint32(params[0].Data[4:]))

	l, err := ls.LightInstance(point)
	require.NoError(t, err)
	shadow := device.WritesTo(impl.shadowBuffer.Buffer())
	require.Len(t, shadow, 1)
	for face := range CubeFaceCount {
		off := int(ls.ShadowOffset(uint32(face)))
		assert.Equal(t, marshalMatrices([]mgl32.Mat4{l.FaceViewProjection(face)}), shadow[0].Data[off:off+ShadowUniformSize])
	}
	matrices := device.WritesTo(impl.matrixBuffer.Buffer())
	require.Len(t, matrices, 1)
	assert.Len(t, matrices[0].Data, 6*64)

	device.ResetFrames()
	require.NoError(t, ls.OnPreRender())
	assert.Empty(t, device.Writes, "clean frames upload nothing")

	require.NoError(t, ls.SetViewDirection(point, common.ViewDirection{Position: mgl32.Vec3{1, 1, 1}, Direction: mgl32.Vec3{0, 0, -1}}))
	require.NoError(t, ls.OnPreRender())
	assert.NotEmpty(t, device.WritesTo(impl.lightBuffer.Buffer()))

	assert.ErrorIs(t, ls.SetViewDirection(uuid.New(), common.ViewDirection{}), ErrLightNotFound)
}

func TestReassignShadowsWithCull(t *testing.T) {
	ls, _ := newTestSystem(t)
	near := spawn(t, ls, Point(2), true)
	far := spawn(t, ls, Spot(2, 0.9, 0.8), true)
	require.NoError(t, ls.SetViewDirection(far, common.ViewDirection{Position: mgl32.Vec3{0, 0, 500}, Direction: mgl32.Vec3{0, 0, -1}}))
	require.NoError(t, ls.SetViewDirection(near, common.ViewDirection{Position: mgl32.Vec3{0, 0, -5}, Direction: mgl32.Vec3{0, 0, -1}}))

	frustum := common.ExtractFrustum(common.PerspectiveFov(1.5, 1, 0.1, 100))
	require.NoError(t, ls.ReassignShadows(Cull(frustum)))

	l, err := ls.LightInstance(far)
	require.NoError(t, err)
	assert.False(t, l.State().CastShadow)
	assert.Nil(t, l.State().ShadowMapIndex)

	l, err = ls.LightInstance(near)
	require.NoError(t, err)
	assert.True(t, l.State().CastShadow)
	assert.Equal(t, uint32(0), *l.State().ShadowMapIndex)
	assert.Equal(t, uint32(6), ls.Pool().AssignedCount())

	require.NoError(t, ls.RemoveLight(near))
	l, err = ls.LightInstance(far)
	require.NoError(t, err)
	assert.True(t, l.State().CastShadow, "removal reassigns every shadow request")
	assert.Equal(t, uint32(0), *l.State().ShadowMapIndex)
	assert.ErrorIs(t, ls.RemoveLight(near), ErrLightNotFound)
}

func TestShadowAttachments(t *testing.T) {
	ls, _ := newTestSystem(t)
	spawn(t, ls, Spot(5, 0.9, 0.8), true)

	color, depth, err := ls.ShadowAttachments(0)
	require.NoError(t, err)
	assert.Equal(t, wgpu.LoadOpClear, color.LoadOp)
	assert.Equal(t, wgpu.Color{}, color.ClearValue)
	require.NotNil(t, depth)
	assert.Equal(t, wgpu.LoadOpClear, depth.DepthLoadOp)
	assert.Equal(t, float32(1), depth.DepthClearValue)

	_, _, err = ls.ShadowAttachments(1)
	assert.ErrorIs(t, err, ErrShadowmapNotFound)

	assert.Equal(t, uint32(512), ls.ShadowOffset(2))
	group := ls.ShadowBindGroup().(*gputest.BindGroup)
	assert.Equal(t, uint64(ShadowUniformSize), group.Desc.Entries[0].Size)
	layout := ls.ShadowBindGroupLayout().(*gputest.BindGroupLayout)
	assert.True(t, layout.Desc.Entries[0].Buffer.HasDynamicOffset)
}

func TestSettersMarkLightsForUpload(t *testing.T) {
	ls, device := newTestSystem(t)
	impl := ls.(*lightSystemImpl)
	sun := spawn(t, ls, Directional(), false)
	lamp := spawn(t, ls, Point(6), false)
	require.NoError(t, ls.OnPreRender())

	device.ResetFrames()
	require.NoError(t, ls.SetColor(lamp, mgl32.Vec3{0, 1, 0}))
	require.NoError(t, ls.OnPreRender())
	writes := device.WritesTo(impl.lightBuffer.Buffer())
	require.Len(t, writes, 1)
	assert.Equal(t, float32(1), math.Float32frombits(binary.LittleEndian.Uint32(writes[0].Data[GPULightSize+164:])), "green channel of the second light")

	device.ResetFrames()
	require.NoError(t, ls.SetIntensity(sun, 7))
	require.NoError(t, ls.OnPreRender())
	assert.Len(t, device.WritesTo(impl.lightBuffer.Buffer()), 1)

	device.ResetFrames()
	require.NoError(t, ls.SetRange(lamp, 20))
	require.NoError(t, ls.OnPreRender())
	assert.Len(t, device.WritesTo(impl.lightBuffer.Buffer()), 1)
	l, err := ls.LightInstance(lamp)
	require.NoError(t, err)
	assert.Equal(t, float32(20), l.Type().Range)
	assert.Equal(t, float32(20), l.State().Range)

	assert.ErrorIs(t, ls.SetRange(sun, 5), ErrInvalidRange)
	assert.ErrorIs(t, ls.SetRange(lamp, 0), ErrInvalidRange)
	assert.ErrorIs(t, ls.SetColor(uuid.New(), mgl32.Vec3{}), ErrLightNotFound)
	assert.ErrorIs(t, ls.SetIntensity(uuid.New(), 1), ErrLightNotFound)
	assert.ErrorIs(t, ls.SetRange(uuid.New(), 1), ErrLightNotFound)
}

func TestOnPreRenderUploadsDirectStateEdits(t *testing.T) {
	ls, device := newTestSystem(t)
	impl := ls.(*lightSystemImpl)
	lamp := spawn(t, ls, Point(6), false)
	require.NoError(t, ls.OnPreRender())

	device.ResetFrames()
	require.NoError(t, ls.OnPreRender())
	assert.Empty(t, device.Writes)

	l, err := ls.LightInstance(lamp)
	require.NoError(t, err)
	l.State().Intensity = 12
	require.NoError(t, ls.OnPreRender())
	writes := device.WritesTo(impl.lightBuffer.Buffer())
	require.Len(t, writes, 1)
	assert.Equal(t, MarshalLights([]GPULight{l.ToGPU()}), writes[0].Data)

	device.ResetFrames()
	require.NoError(t, ls.OnPreRender())
	assert.Empty(t, device.Writes, "unchanged lights are not uploaded twice")
}
