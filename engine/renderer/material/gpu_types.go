package material

import (
	"unsafe"

	"github.com/Carmen-Shannon/oxy-xr/common"
)

// GPUMaterialParamsSize is the byte size of the WGSL MaterialParams uniform.
const GPUMaterialParamsSize = 48

// GPUMaterialParams is the GPU-aligned uniform read by the G-buffer fragment shader.
// Matches the WGSL MaterialParams struct layout exactly.
// Size: 48 bytes (two vec4<f32> and four f32, std140 aligned).
type GPUMaterialParams struct {
	BaseColor   [4]float32 // offset 0: linear RGBA base color, multiplied with the albedo map
	Emissive    [4]float32 // offset 16: RGB emissive color, A is the emissive strength
	Metallic    float32    // offset 32
	Roughness   float32    // offset 36
	Occlusion   float32    // offset 40
	NormalScale float32    // offset 44: scales the tangent-space XY of the normal map
}

// Size returns the size of the GPUMaterialParams struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUMaterialParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUMaterialParams struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 48-byte buffer ready for GPU upload.
func (g *GPUMaterialParams) Marshal() []byte {
	buf := make([]byte, GPUMaterialParamsSize)
	off := common.PutFloat32s(buf, 0, g.BaseColor[:]...)
	off = common.PutFloat32s(buf, off, g.Emissive[:]...)
	common.PutFloat32s(buf, off, g.Metallic, g.Roughness, g.Occlusion, g.NormalScale)
	return buf
}
