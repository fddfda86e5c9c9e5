package renderer

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-xr/common"
	"github.com/Carmen-Shannon/oxy-xr/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrEmptyPrimitive is returned when a primitive has no vertices or indices.
var ErrEmptyPrimitive = errors.New("primitive has no geometry")

// Primitive is an indexed triangle mesh on the GPU.
type Primitive struct {
	label      string
	vertices   *gpu.TypedBuffer
	indices    *gpu.TypedBuffer
	indexCount uint32
}

// NewPrimitive uploads a mesh.
//
// Parameters:
//   - device: the device to allocate on
//   - label: debug label
//   - vertices: the vertices
//   - indices: triangle list indices into vertices
//
// Returns:
//   - *Primitive: the primitive
//   - error: ErrEmptyPrimitive, or an allocation error
func NewPrimitive(device gpu.Device, label string, vertices []Vertex, indices []uint32) (*Primitive, error) {
	if len(vertices) == 0 || len(indices) == 0 {
		return nil, fmt.Errorf("primitive %s: %w", label, ErrEmptyPrimitive)
	}
	vb, err := gpu.NewVertexBufferWithStride(device, label+" Vertices", VertexStride, MarshalVertices(vertices), 0)
	if err != nil {
		return nil, err
	}
	ib, err := gpu.NewIndexBuffer(device, label+" Indices", wgpu.IndexFormatUint32, common.SliceToBytes(indices))
	if err != nil {
		vb.Release()
		return nil, err
	}
	return &Primitive{label: label, vertices: vb, indices: ib, indexCount: uint32(len(indices))}, nil
}

// Label returns the debug label.
func (p *Primitive) Label() string { return p.label }

// IndexCount returns the number of indices drawn.
func (p *Primitive) IndexCount() uint32 { return p.indexCount }

// VertexBuffer returns the vertex buffer.
func (p *Primitive) VertexBuffer() *gpu.TypedBuffer { return p.vertices }

// IndexBuffer returns the index buffer.
func (p *Primitive) IndexBuffer() *gpu.TypedBuffer { return p.indices }

// Release frees both buffers.
func (p *Primitive) Release() {
	p.vertices.Release()
	p.indices.Release()
}

func (p *Primitive) encode(pass gpu.RenderPass, instances uint32, firstInstance uint32) {
	pass.SetVertexBuffer(VertexSlotMesh, p.vertices.Buffer(), 0, p.vertices.Size())
	pass.SetIndexBuffer(p.indices.Buffer(), wgpu.IndexFormatUint32, 0, p.indices.Size())
	pass.DrawIndexed(p.indexCount, instances, 0, 0, firstInstance)
}

// InstanceRange selects Count entries of the instance slice passed to UpdateInstances, from Start.
type InstanceRange struct {
	Start uint32
	Count uint32
}

// RenderItem draws a primitive once per instance in a range, with LocalTransform applied before
// each instance transform.
type RenderItem struct {
	Primitive      *Primitive
	LocalTransform mgl32.Mat4
	Instances      InstanceRange
}
