package model

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-xr/engine/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-xr/engine/renderer"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vec(a [3]float32) mgl32.Vec3 { return mgl32.Vec3{a[0], a[1], a[2]} }

// assertOutwardWinding checks every triangle is counter-clockwise seen from the side its normals
// face.
func assertOutwardWinding(t *testing.T, m Mesh) {
	t.Helper()
	require.Zero(t, len(m.Indices)%3)
	for i := 0; i < len(m.Indices); i += 3 {
		a, b, c := m.Vertices[m.Indices[i]], m.Vertices[m.Indices[i+1]], m.Vertices[m.Indices[i+2]]
		geometric := vec(b.Position).Sub(vec(a.Position)).Cross(vec(c.Position).Sub(vec(a.Position)))
		if geometric.Len() < 1e-9 {
			continue
		}
		assert.Greater(t, geometric.Dot(vec(a.Normal)), float32(0), "triangle %d", i/3)
	}
}

func TestCube(t *testing.T) {
	m := Cube()
	assert.Equal(t, "Cube", m.Name)
	assert.Len(t, m.Vertices, 24)
	assert.Len(t, m.Indices, 36)
	assert.InDelta(t, 0.866, m.BoundingRadius(), 1e-3)
	for _, v := range m.Vertices {
		for _, p := range v.Position {
			assert.InDelta(t, 0.5, abs(p), 1e-6)
		}
		assert.InDelta(t, 0, vec(v.Normal).Dot(mgl32.Vec3{v.Tangent[0], v.Tangent[1], v.Tangent[2]}), 1e-6)
	}
	assertOutwardWinding(t, m)
}

func TestBox(t *testing.T) {
	m := Box(2, 1, 3)
	assert.InDelta(t, mgl32.Vec3{2, 1, 3}.Len(), m.BoundingRadius(), 1e-5)
	assertOutwardWinding(t, m)
}

func TestPlane(t *testing.T) {
	m := Plane(10)
	require.Len(t, m.Vertices, 4)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, m.Indices)
	for _, v := range m.Vertices {
		assert.Equal(t, float32(0), v.Position[1])
		assert.Equal(t, [3]float32{0, 1, 0}, v.Normal)
	}
	assertOutwardWinding(t, m)
}

func TestSphere(t *testing.T) {
	m := Sphere(2, 16, 8)
	assert.Len(t, m.Vertices, 17*9)
	assert.Len(t, m.Indices, 16*8*6)
	assert.InDelta(t, 2, m.BoundingRadius(), 1e-5)
	for _, v := range m.Vertices {
		assert.InDelta(t, 2, vec(v.Position).Len(), 1e-5)
	}
	assertOutwardWinding(t, m)

	clamped := Sphere(1, 1, 1)
	assert.Len(t, clamped.Vertices, 4*3)
}

func TestUpload(t *testing.T) {
	d := gputest.NewDevice()
	p, err := Cube().Upload(d)
	require.NoError(t, err)
	assert.Equal(t, "Cube", p.Label())
	assert.Equal(t, uint32(36), p.IndexCount())
	assert.Equal(t, uint64(24*renderer.VertexStride), p.VertexBuffer().Size())

	_, err = Mesh{Name: "empty"}.Upload(d)
	assert.ErrorIs(t, err, renderer.ErrEmptyPrimitive)
}

func abs(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
