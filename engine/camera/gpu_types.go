package camera

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// ViewParamsSize is the size in bytes of one ViewParams entry in the view uniform array.
const ViewParamsSize = 480

// ViewParams holds one view's matrices for a frame. It mirrors the WGSL ViewParams struct in
// common::view_params; see GPUViewParams for the byte layout.
type ViewParams struct {
	ViewProjection     mgl32.Mat4
	InvViewProjection  mgl32.Mat4
	PrevViewProjection mgl32.Mat4
	View               mgl32.Mat4
	InvView            mgl32.Mat4
	Projection         mgl32.Mat4
	InvProjection      mgl32.Mat4
	WorldPosition      mgl32.Vec3
	// Jitter is the NDC offset applied to Projection this frame.
	Jitter     mgl32.Vec2
	PrevJitter mgl32.Vec2
}

// GPUViewParams is the GPU-aligned representation of ViewParams.
// Size: 480 bytes (WGSL uniform aligned).
type GPUViewParams struct {
	ViewProjection     [16]float32 // offset   0: jittered view-projection (mat4x4<f32>)
	InvViewProjection  [16]float32 // offset  64: inverse of ViewProjection
	PrevViewProjection [16]float32 // offset 128: previous frame's jittered view-projection
	View               [16]float32 // offset 192: world to view
	InvView            [16]float32 // offset 256: view to world
	Projection         [16]float32 // offset 320: jittered projection
	InvProjection      [16]float32 // offset 384: inverse of Projection
	WorldPosition      [4]float32  // offset 448: eye position, w = 1 (vec4<f32>)
	Jitter             [2]float32  // offset 464: NDC jitter (vec2<f32>)
	PrevJitter         [2]float32  // offset 472: previous frame's NDC jitter (vec2<f32>)
}

// ToGPU converts the view params to their GPU layout.
func (v ViewParams) ToGPU() GPUViewParams {
	return GPUViewParams{
		ViewProjection:     v.ViewProjection,
		InvViewProjection:  v.InvViewProjection,
		PrevViewProjection: v.PrevViewProjection,
		View:               v.View,
		InvView:            v.InvView,
		Projection:         v.Projection,
		InvProjection:      v.InvProjection,
		WorldPosition:      [4]float32{v.WorldPosition.X(), v.WorldPosition.Y(), v.WorldPosition.Z(), 1},
		Jitter:             v.Jitter,
		PrevJitter:         v.PrevJitter,
	}
}

// Size returns the size of the GPUViewParams struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (480)
func (g *GPUViewParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUViewParams struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUViewParams) Marshal() []byte {
	buf := make([]byte, g.Size())
	g.put(buf)
	return buf
}

func (g *GPUViewParams) put(buf []byte) {
	mats := [...]*[16]float32{
		&g.ViewProjection, &g.InvViewProjection, &g.PrevViewProjection,
		&g.View, &g.InvView, &g.Projection, &g.InvProjection,
	}
	offset := 0
	for _, m := range mats {
		for i := range 16 {
			binary.LittleEndian.PutUint32(buf[offset+i*4:], math.Float32bits(m[i]))
		}
		offset += 64
	}
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[448+i*4:], math.Float32bits(g.WorldPosition[i]))
	}
	for i := range 2 {
		binary.LittleEndian.PutUint32(buf[464+i*4:], math.Float32bits(g.Jitter[i]))
		binary.LittleEndian.PutUint32(buf[472+i*4:], math.Float32bits(g.PrevJitter[i]))
	}
}

// MarshalViewParams serializes views back to back, as the view uniform array expects.
//
// Parameters:
//   - views: the views in layer order
//
// Returns:
//   - []byte: ViewParamsSize bytes per view
func MarshalViewParams(views []ViewParams) []byte {
	buf := make([]byte, ViewParamsSize*len(views))
	for i, v := range views {
		g := v.ToGPU()
		g.put(buf[i*ViewParamsSize:])
	}
	return buf
}
