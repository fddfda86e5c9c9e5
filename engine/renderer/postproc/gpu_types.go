package postproc

import (
	"unsafe"

	"github.com/Carmen-Shannon/oxy-xr/common"
)

// GPUParamsSize is the byte size of every post-process params uniform.
const GPUParamsSize = 16

// GPUBloomParams is the GPU-aligned uniform for the bloom passes.
// Matches the WGSL BloomParams struct layout exactly.
// Size: 16 bytes.
type GPUBloomParams struct {
	Threshold float32 // offset 0: brightness where bloom starts
	Knee      float32 // offset 4: width of the soft threshold
	Intensity float32 // offset 8: bloom weight in the composite
	_         float32 // offset 12: padding
}

// Size returns the size of the GPUBloomParams struct in bytes.
func (g *GPUBloomParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUBloomParams struct into a byte buffer suitable for GPU upload.
func (g *GPUBloomParams) Marshal() []byte {
	buf := make([]byte, GPUParamsSize)
	common.PutFloat32s(buf, 0, g.Threshold, g.Knee, g.Intensity)
	return buf
}

// GPUSharpenParams is the GPU-aligned uniform for the sharpen pass.
// Matches the WGSL SharpenParams struct layout exactly.
// Size: 16 bytes.
type GPUSharpenParams struct {
	Strength float32    // offset 0: 0 is the mildest sharpening, 1 the strongest
	_        [3]float32 // offset 4: padding
}

// Size returns the size of the GPUSharpenParams struct in bytes.
func (g *GPUSharpenParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUSharpenParams struct into a byte buffer suitable for GPU upload.
func (g *GPUSharpenParams) Marshal() []byte {
	buf := make([]byte, GPUParamsSize)
	common.PutFloat32s(buf, 0, g.Strength)
	return buf
}
