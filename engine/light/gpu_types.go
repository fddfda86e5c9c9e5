package light

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-xr/common"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// GPULightSize is the byte size of one light in the storage buffer.
	GPULightSize = 192
	// GPULightParamsSize is the byte size of the light params uniform.
	GPULightParamsSize = 16
	// ShadowUniformStride is the dynamic offset step between shadow slots in the shadow uniform.
	ShadowUniformStride = 256
	// ShadowUniformSize is the bound size of one shadow slot: a single view-projection matrix.
	ShadowUniformSize = 64
)

// GPULight is the storage buffer layout of one light. Position, range, direction and intensity are
// packed into two vec4s.
type GPULight struct {
	View           mgl32.Mat4 // offset 0
	ViewProj       mgl32.Mat4 // offset 64
	Position       mgl32.Vec3 // offset 128
	Range          float32    // offset 140
	Direction      mgl32.Vec3 // offset 144
	Intensity      float32    // offset 156
	Color          mgl32.Vec3 // offset 160
	LightType      uint32     // offset 172
	InnerCos       float32    // offset 176
	OuterCos       float32    // offset 180
	CastShadow     uint32     // offset 184
	ShadowMapIndex uint32     // offset 188
}

// Size returns the byte size of the struct.
func (g *GPULight) Size() uint64 {
	return uint64(unsafe.Sizeof(*g))
}

// Marshal serializes the light to little-endian bytes.
func (g *GPULight) Marshal() []byte {
	buf := make([]byte, GPULightSize)
	g.put(buf)
	return buf
}

func (g *GPULight) put(buf []byte) {
	off := common.PutMat4(buf, 0, g.View)
	off = common.PutMat4(buf, off, g.ViewProj)
	off = common.PutFloat32s(buf, off, g.Position[0], g.Position[1], g.Position[2], g.Range)
	off = common.PutFloat32s(buf, off, g.Direction[0], g.Direction[1], g.Direction[2], g.Intensity)
	off = common.PutFloat32s(buf, off, g.Color[0], g.Color[1], g.Color[2])
	binary.LittleEndian.PutUint32(buf[off:], g.LightType)
	binary.LittleEndian.PutUint32(buf[off+4:], math.Float32bits(g.InnerCos))
	binary.LittleEndian.PutUint32(buf[off+8:], math.Float32bits(g.OuterCos))
	binary.LittleEndian.PutUint32(buf[off+12:], g.CastShadow)
	binary.LittleEndian.PutUint32(buf[off+16:], g.ShadowMapIndex)
}

// MarshalLights serializes lights back to back.
func MarshalLights(lights []GPULight) []byte {
	buf := make([]byte, len(lights)*GPULightSize)
	for i := range lights {
		lights[i].put(buf[i*GPULightSize:])
	}
	return buf
}

// GPULightParams is the uniform header of the lighting pass.
type GPULightParams struct {
	LightCount  uint32 // offset 0
	ShadowCount uint32 // offset 4
	_           [2]uint32
}

// Size returns the byte size of the struct.
func (p *GPULightParams) Size() uint64 {
	return uint64(unsafe.Sizeof(*p))
}

// Marshal serializes the params to little-endian bytes.
func (p *GPULightParams) Marshal() []byte {
	buf := make([]byte, GPULightParamsSize)
	binary.LittleEndian.PutUint32(buf[0:], p.LightCount)
	binary.LittleEndian.PutUint32(buf[4:], p.ShadowCount)
	return buf
}

// marshalShadowUniform lays out one view-projection per slot at ShadowUniformStride.
func marshalShadowUniform(viewProjs []mgl32.Mat4) []byte {
	buf := make([]byte, len(viewProjs)*ShadowUniformStride)
	for i, m := range viewProjs {
		common.PutMat4(buf, i*ShadowUniformStride, m)
	}
	return buf
}

// marshalMatrices packs matrices back to back for the shadow matrix storage buffer.
func marshalMatrices(viewProjs []mgl32.Mat4) []byte {
	buf := make([]byte, len(viewProjs)*64)
	off := 0
	for _, m := range viewProjs {
		off = common.PutMat4(buf, off, m)
	}
	return buf
}
