package light

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-xr/common"
	"github.com/Carmen-Shannon/oxy-xr/engine/renderer/shader"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func project(m mgl32.Mat4, p mgl32.Vec3) (mgl32.Vec3, float32) {
	clip := m.Mul4x1(p.Vec4(1))
	return clip.Vec3().Mul(1 / clip.W()), clip.W()
}

func insideClip(ndc mgl32.Vec3, w float32) bool {
	return w > 0 && math.Abs(float64(ndc.X())) <= 1 && math.Abs(float64(ndc.Y())) <= 1 && ndc.Z() >= 0 && ndc.Z() <= 1
}

func floatAt(buf []byte, offset int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[offset:]))
}

func newLight(lt LightType, pos, dir mgl32.Vec3) *LightInstance {
	l := NewLightInstance(uuid.New(), lt)
	l.State().ViewDirection = common.ViewDirection{Position: pos, Direction: dir}
	l.State().Range = lt.Range
	return l
}

func TestShadowmapCount(t *testing.T) {
	assert.Equal(t, uint32(1), Directional().ShadowmapCount())
	assert.Equal(t, uint32(6), Point(5).ShadowmapCount())
	assert.Equal(t, uint32(1), Spot(5, 0.9, 0.8).ShadowmapCount())
}

func TestSpotDegrees(t *testing.T) {
	lt := SpotDegrees(10, 0, 60)
	assert.Equal(t, LightKindSpot, lt.Kind)
	assert.InDelta(t, 1, lt.InnerCos, 1e-6)
	assert.InDelta(t, 0.5, lt.OuterCos, 1e-6)
}

func TestDirectionalProjection(t *testing.T) {
	l := newLight(Directional(), mgl32.Vec3{}, mgl32.Vec3{0, -1, 0})
	vp := l.ViewProjection()

	below, w := project(vp, mgl32.Vec3{3, -5, 2})
	assert.True(t, insideClip(below, w), "%v", below)
	assert.InDelta(t, 0.75, below.Z(), 1e-5)

	outside, w := project(vp, mgl32.Vec3{11, -5, 0})
	assert.False(t, insideClip(outside, w))
}

func TestPointLightFaces(t *testing.T) {
	pos := mgl32.Vec3{1, 2, 3}
	l := newLight(Point(20), pos, mgl32.Vec3{0, 0, -1})

	// The lighting shader picks the face from the dominant axis of light-to-fragment.
	cubeFace := func(d mgl32.Vec3) int {
		ax, ay, az := math.Abs(float64(d.X())), math.Abs(float64(d.Y())), math.Abs(float64(d.Z()))
		switch {
		case ax >= ay && ax >= az:
			if d.X() > 0 {
				return 0
			}
			return 1
		case ay >= az:
			if d.Y() > 0 {
				return 2
			}
			return 3
		default:
			if d.Z() > 0 {
				return 4
			}
			return 5
		}
	}

	dirs := []mgl32.Vec3{
		{5, 0.5, -1}, {-5, 1, 0.3}, {0.2, 6, -0.4}, {1, -4, 0.5}, {-0.3, 0.7, 8}, {0.9, -1.2, -3},
	}
	for i, d := range dirs {
		face := cubeFace(d)
		require.Equal(t, i, face)
		p := pos.Add(d)
		for f := range CubeFaceCount {
			ndc, w := project(l.FaceViewProjection(f), p)
			assert.Equal(t, f == face, insideClip(ndc, w), "direction %v face %d", d, f)
		}
	}

	beyond, w := project(l.FaceViewProjection(0), pos.Add(mgl32.Vec3{25, 0, 0}))
	assert.False(t, insideClip(beyond, w), "past the range")
}

func TestSpotProjectionCoversCone(t *testing.T) {
	l := newLight(SpotDegrees(10, 20, 30), mgl32.Vec3{}, mgl32.Vec3{0, 0, -1})
	vp := l.ViewProjection()

	edge := mgl32.Vec3{float32(math.Tan(29 * math.Pi / 180)), 0, -1}.Mul(5)
	ndc, w := project(vp, edge)
	assert.True(t, insideClip(ndc, w))

	wide := mgl32.Vec3{float32(math.Tan(40 * math.Pi / 180)), 0, -1}.Mul(5)
	ndc, w = project(vp, wide)
	assert.False(t, insideClip(ndc, w))

	// Non-point kinds ignore the face index.
	assert.Equal(t, vp, l.FaceViewProjection(3))
}

func TestGPULightLayout(t *testing.T) {
	l := newLight(Spot(7, 0.9, 0.8), mgl32.Vec3{1, 2, 3}, mgl32.Vec3{0, -1, 0})
	l.State().Color = mgl32.Vec3{0.1, 0.2, 0.3}
	l.State().Intensity = 4
	l.State().CastShadow = true
	idx := uint32(9)
	l.State().ShadowMapIndex = &idx

	g := l.ToGPU()
	assert.Equal(t, uint64(GPULightSize), g.Size())

	buf := g.Marshal()
	require.Len(t, buf, GPULightSize)
	assert.Equal(t, float32(1), floatAt(buf, 128))
	assert.Equal(t, float32(7), floatAt(buf, 140))
	assert.Equal(t, float32(-1), floatAt(buf, 148))
	assert.Equal(t, float32(4), floatAt(buf, 156))
	assert.Equal(t, float32(0.3), floatAt(buf, 168))
	assert.Equal(t, uint32(LightKindSpot), binary.LittleEndian.Uint32(buf[172:]))
	assert.Equal(t, float32(0.9), floatAt(buf, 176))
	assert.Equal(t, float32(0.8), floatAt(buf, 180))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(buf[184:]))
	assert.Equal(t, uint32(9), binary.LittleEndian.Uint32(buf[188:]))

	packed := MarshalLights([]GPULight{{}, g})
	assert.Equal(t, buf, packed[GPULightSize:])

	params := GPULightParams{LightCount: 3, ShadowCount: 7}
	assert.Equal(t, uint64(GPULightParamsSize), params.Size())
	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(params.Marshal()[4:]))
}

func TestGPUTypesMatchShaderLayout(t *testing.T) {
	lib, err := shader.NewLibrary()
	require.NoError(t, err)
	src, err := lib.Build(shader.DeferredLightingShader, nil)
	require.NoError(t, err)
	refl := shader.Reflect(src.Code)

	size, ok := refl.StructSize("Light")
	require.True(t, ok)
	assert.Equal(t, uint64(GPULightSize), size)

	size, ok = refl.StructSize("LightParams")
	require.True(t, ok)
	assert.Equal(t, uint64(GPULightParamsSize), size)
}

func TestShadowQuality(t *testing.T) {
	cases := map[string]uint32{"low": 512, "Medium": 1024, "high": 2048, " ultra ": 4096}
	for name, res := range cases {
		q, err := ParseShadowQuality(name)
		require.NoError(t, err, name)
		assert.Equal(t, res, q.Resolution())
	}

	_, err := ParseShadowQuality("extreme")
	assert.ErrorIs(t, err, ErrUnknownShadowQuality)

	var q ShadowQuality
	require.NoError(t, q.UnmarshalText([]byte("medium")))
	assert.Equal(t, ShadowQualityMedium, q)
	text, err := ShadowQualityUltra.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "ultra", string(text))
}

func TestCull(t *testing.T) {
	proj := common.PerspectiveFov(math.Pi/2, 1, 0.1, 100)
	frustum := common.ExtractFrustum(proj)
	visible := Cull(frustum)

	assert.True(t, visible(newLight(Directional(), mgl32.Vec3{0, 0, 500}, mgl32.Vec3{0, -1, 0})))
	assert.True(t, visible(newLight(Point(5), mgl32.Vec3{0, 0, -10}, mgl32.Vec3{})))
	assert.True(t, visible(newLight(Point(5), mgl32.Vec3{0, 0, 3}, mgl32.Vec3{})), "range reaches past the near plane")
	assert.False(t, visible(newLight(Point(5), mgl32.Vec3{0, 0, 20}, mgl32.Vec3{})))

	behind := common.ExtractFrustum(proj.Mul4(mgl32.HomogRotate3DY(math.Pi)))
	assert.True(t, CullAny(behind, frustum)(newLight(Point(1), mgl32.Vec3{0, 0, -10}, mgl32.Vec3{})))
	assert.False(t, CullAny(behind)(newLight(Point(1), mgl32.Vec3{0, 0, -10}, mgl32.Vec3{})))
}
