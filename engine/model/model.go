// Package model builds procedural meshes in the renderer's vertex layout and uploads them as
// primitives.
package model

import (
	"github.com/Carmen-Shannon/oxy-xr/engine/gpu"
	"github.com/Carmen-Shannon/oxy-xr/engine/renderer"
	"github.com/chewxy/math32"
)

// Mesh is CPU-side indexed triangle geometry.
type Mesh struct {
	Name     string
	Vertices []renderer.Vertex
	Indices  []uint32
}

// Upload creates a GPU primitive from the mesh.
//
// Parameters:
//   - device: the device to allocate on
//
// Returns:
//   - *renderer.Primitive: the primitive, labeled with the mesh name
//   - error: renderer.ErrEmptyPrimitive or an allocation error
func (m Mesh) Upload(device gpu.Device) (*renderer.Primitive, error) {
	return renderer.NewPrimitive(device, m.Name, m.Vertices, m.Indices)
}

// BoundingRadius returns the largest distance from the origin to any vertex.
func (m Mesh) BoundingRadius() float32 {
	var maxDistSq float32
	for _, v := range m.Vertices {
		p := v.Position
		maxDistSq = max(maxDistSq, p[0]*p[0]+p[1]*p[1]+p[2]*p[2])
	}
	return math32.Sqrt(maxDistSq)
}

type face struct {
	corners [4][3]float32
	normal  [3]float32
	tangent [4]float32
}

var faceUVs = [4][2]float32{{0, 1}, {0, 0}, {1, 0}, {1, 1}}

// Corners wind counter-clockwise seen from outside.
var cubeFaces = [6]face{
	{corners: [4][3]float32{{1, -1, -1}, {1, 1, -1}, {1, 1, 1}, {1, -1, 1}}, normal: [3]float32{1, 0, 0}, tangent: [4]float32{0, 0, 1, 1}},
	{corners: [4][3]float32{{-1, -1, 1}, {-1, 1, 1}, {-1, 1, -1}, {-1, -1, -1}}, normal: [3]float32{-1, 0, 0}, tangent: [4]float32{0, 0, -1, 1}},
	{corners: [4][3]float32{{-1, 1, -1}, {-1, 1, 1}, {1, 1, 1}, {1, 1, -1}}, normal: [3]float32{0, 1, 0}, tangent: [4]float32{1, 0, 0, 1}},
	{corners: [4][3]float32{{-1, -1, 1}, {-1, -1, -1}, {1, -1, -1}, {1, -1, 1}}, normal: [3]float32{0, -1, 0}, tangent: [4]float32{1, 0, 0, 1}},
	{corners: [4][3]float32{{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1}}, normal: [3]float32{0, 0, 1}, tangent: [4]float32{1, 0, 0, 1}},
	{corners: [4][3]float32{{1, -1, -1}, {-1, -1, -1}, {-1, 1, -1}, {1, 1, -1}}, normal: [3]float32{0, 0, -1}, tangent: [4]float32{-1, 0, 0, 1}},
}

func appendFace(m *Mesh, f face, half [3]float32) {
	base := uint32(len(m.Vertices))
	for i, c := range f.corners {
		m.Vertices = append(m.Vertices, renderer.Vertex{
			Position: [3]float32{c[0] * half[0], c[1] * half[1], c[2] * half[2]},
			Normal:   f.normal,
			UV:       faceUVs[i],
			Tangent:  f.tangent,
		})
	}
	m.Indices = append(m.Indices, base, base+1, base+2, base, base+2, base+3)
}

// Box returns an axis-aligned box centered on the origin with 24 vertices, four per face so
// each face has flat normals.
//
// Parameters:
//   - hx, hy, hz: half extents along each axis
//
// Returns:
//   - Mesh: the box
func Box(hx, hy, hz float32) Mesh {
	m := Mesh{Name: "Box", Vertices: make([]renderer.Vertex, 0, 24), Indices: make([]uint32, 0, 36)}
	for _, f := range cubeFaces {
		appendFace(&m, f, [3]float32{hx, hy, hz})
	}
	return m
}

// Cube returns a unit cube with edges of length 1.
func Cube() Mesh {
	m := Box(0.5, 0.5, 0.5)
	m.Name = "Cube"
	return m
}

// Plane returns a square facing +Y at the origin.
//
// Parameters:
//   - half: half the side length
//
// Returns:
//   - Mesh: the plane
func Plane(half float32) Mesh {
	m := Mesh{Name: "Plane"}
	appendFace(&m, cubeFaces[2], [3]float32{half, 0, half})
	return m
}

// Sphere returns a UV sphere of the given radius.
//
// Parameters:
//   - radius: the sphere radius
//   - segments: longitudinal slices, at least 3
//   - rings: latitudinal bands, at least 2
//
// Returns:
//   - Mesh: the sphere
func Sphere(radius float32, segments, rings int) Mesh {
	segments, rings = max(segments, 3), max(rings, 2)
	m := Mesh{Name: "Sphere"}
	for r := 0; r <= rings; r++ {
		v := float32(r) / float32(rings)
		theta := v * math32.Pi
		sinT, cosT := math32.Sincos(theta)
		for s := 0; s <= segments; s++ {
			u := float32(s) / float32(segments)
			phi := u * 2 * math32.Pi
			sinP, cosP := math32.Sincos(phi)
			n := [3]float32{sinT * cosP, cosT, -sinT * sinP}
			m.Vertices = append(m.Vertices, renderer.Vertex{
				Position: [3]float32{n[0] * radius, n[1] * radius, n[2] * radius},
				Normal:   n,
				UV:       [2]float32{u, v},
				Tangent:  [4]float32{-sinP, 0, -cosP, 1},
			})
		}
	}
	stride := uint32(segments + 1)
	for r := range uint32(rings) {
		for s := range uint32(segments) {
			a := r*stride + s
			b := a + stride
			m.Indices = append(m.Indices, a, b, a+1, a+1, b, b+1)
		}
	}
	return m
}
