package renderer

import (
	"unsafe"

	"github.com/Carmen-Shannon/oxy-xr/common"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// VertexStride is the byte size of one Vertex.
	VertexStride = 48
	// InstanceStride is the byte size of one GPUInstance.
	InstanceStride = 128
)

// Vertex slots shared by the G-buffer and shadow pipelines.
const (
	VertexSlotMesh      = 0
	VertexSlotInstances = 1
)

// VertexLayouts returns the mesh and instance buffer layouts in slot order. Instance attributes
// start at location 4 and carry the model then normal matrix columns.
func VertexLayouts() []wgpu.VertexBufferLayout {
	mesh := wgpu.VertexBufferLayout{
		ArrayStride: VertexStride,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes: []wgpu.VertexAttribute{
			{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
			{Format: wgpu.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
			{Format: wgpu.VertexFormatFloat32x2, Offset: 24, ShaderLocation: 2},
			{Format: wgpu.VertexFormatFloat32x4, Offset: 32, ShaderLocation: 3},
		},
	}
	instance := wgpu.VertexBufferLayout{
		ArrayStride: InstanceStride,
		StepMode:    wgpu.VertexStepModeInstance,
		Attributes:  make([]wgpu.VertexAttribute, 8),
	}
	for i := range instance.Attributes {
		instance.Attributes[i] = wgpu.VertexAttribute{
			Format:         wgpu.VertexFormatFloat32x4,
			Offset:         uint64(i) * 16,
			ShaderLocation: uint32(4 + i),
		}
	}
	return []wgpu.VertexBufferLayout{VertexSlotMesh: mesh, VertexSlotInstances: instance}
}

// Vertex is one mesh vertex.
// Matches the WGSL VertexInput struct layout exactly.
// Size: 48 bytes.
type Vertex struct {
	Position [3]float32 // offset 0
	Normal   [3]float32 // offset 12
	UV       [2]float32 // offset 24
	Tangent  [4]float32 // offset 32: xyz tangent, w handedness
}

// Size returns the size of the Vertex struct in bytes.
func (v *Vertex) Size() int {
	return int(unsafe.Sizeof(*v))
}

// MarshalVertices packs vertices for upload.
func MarshalVertices(vertices []Vertex) []byte {
	buf := make([]byte, len(vertices)*VertexStride)
	for i, v := range vertices {
		off := i * VertexStride
		off = common.PutFloat32s(buf, off, v.Position[:]...)
		off = common.PutFloat32s(buf, off, v.Normal[:]...)
		off = common.PutFloat32s(buf, off, v.UV[:]...)
		common.PutFloat32s(buf, off, v.Tangent[:]...)
	}
	return buf
}

// GPUInstance is the per-instance vertex data.
// Matches the WGSL InstanceInput struct layout exactly.
// Size: 128 bytes.
type GPUInstance struct {
	Model  mgl32.Mat4 // offset 0: object to world
	Normal mgl32.Mat4 // offset 64: inverse-transpose of the model's upper 3x3
}

// NewGPUInstance derives the normal matrix from model.
func NewGPUInstance(model mgl32.Mat4) GPUInstance {
	return GPUInstance{Model: model, Normal: common.NormalMatrix(model)}
}

// Size returns the size of the GPUInstance struct in bytes.
func (g *GPUInstance) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUInstance struct into a byte buffer suitable for GPU upload.
func (g *GPUInstance) Marshal() []byte {
	buf := make([]byte, InstanceStride)
	off := common.PutMat4(buf, 0, g.Model)
	common.PutMat4(buf, off, g.Normal)
	return buf
}
