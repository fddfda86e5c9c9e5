package gpu_test

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-xr/engine/gpu"
	"github.com/Carmen-Shannon/oxy-xr/engine/gpu/gputest"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedBufferStrides(t *testing.T) {
	d := gputest.NewDevice()

	tests := []struct {
		name   string
		build  func() (*gpu.TypedBuffer, error)
		kind   gpu.BufferKind
		stride uint64
		count  uint64
	}{
		{
			name: "vertex float32x3",
			build: func() (*gpu.TypedBuffer, error) {
				return gpu.NewVertexBuffer(d, "pos", wgpu.VertexFormatFloat32x3, make([]byte, 36))
			},
			kind:   gpu.BufferKindVertex,
			stride: 12,
			count:  3,
		},
		{
			name: "index uint16",
			build: func() (*gpu.TypedBuffer, error) {
				return gpu.NewIndexBuffer(d, "idx16", wgpu.IndexFormatUint16, make([]byte, 12))
			},
			kind:   gpu.BufferKindIndex,
			stride: 2,
			count:  6,
		},
		{
			name: "index uint32",
			build: func() (*gpu.TypedBuffer, error) {
				return gpu.NewIndexBuffer(d, "idx32", wgpu.IndexFormatUint32, make([]byte, 24))
			},
			kind:   gpu.BufferKindIndex,
			stride: 4,
			count:  6,
		},
		{
			name: "interleaved vertex",
			build: func() (*gpu.TypedBuffer, error) {
				return gpu.NewVertexBufferWithStride(d, "mesh", 48, make([]byte, 96), 0)
			},
			kind:   gpu.BufferKindVertex,
			stride: 48,
			count:  2,
		},
		{
			name:   "uniform",
			build:  func() (*gpu.TypedBuffer, error) { return gpu.NewUniformBuffer(d, "params", 480) },
			kind:   gpu.BufferKindUniform,
			stride: 480,
			count:  1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := tt.build()
			require.NoError(t, err)
			assert.Equal(t, tt.kind, b.Type().Kind)
			assert.Equal(t, tt.stride, b.Stride())
			assert.Equal(t, tt.count, b.Count())
		})
	}
}

func TestTypedBufferUsage(t *testing.T) {
	d := gputest.NewDevice()
	b, err := gpu.NewIndexBuffer(d, "idx", wgpu.IndexFormatUint32, make([]byte, 8))
	require.NoError(t, err)

	native := b.Buffer().(*gputest.Buffer)
	assert.NotZero(t, native.Desc.Usage&wgpu.BufferUsageIndex)
	assert.NotZero(t, native.Desc.Usage&wgpu.BufferUsageCopyDst)
}

func TestTypedBufferRejectsUnknownFormats(t *testing.T) {
	d := gputest.NewDevice()
	_, err := gpu.NewIndexBuffer(d, "bad", wgpu.IndexFormat(99), []byte{1, 2})
	assert.Error(t, err)
	_, err = gpu.NewVertexBufferWithStride(d, "bad", 0, []byte{1}, 0)
	assert.Error(t, err)
}

func TestTypedBufferWrite(t *testing.T) {
	d := gputest.NewDevice()
	b, err := gpu.NewUniformBuffer(d, "u", 16)
	require.NoError(t, err)

	require.NoError(t, b.Write(d, 8, []byte{1, 2, 3, 4}))
	native := b.Buffer().(*gputest.Buffer)
	assert.Equal(t, []byte{1, 2, 3, 4}, native.Data[8:12])

	err = b.Write(d, 12, make([]byte, 8))
	assert.ErrorIs(t, err, gpu.ErrBufferTooSmall)
}

func TestTypedBufferPadsOddUploads(t *testing.T) {
	d := gputest.NewDevice()
	b, err := gpu.NewIndexBuffer(d, "idx", wgpu.IndexFormatUint16, []byte{1, 0, 2, 0, 3, 0})
	require.NoError(t, err)
	assert.Equal(t, uint64(8), b.Size())

	writes := d.WritesTo(b.Buffer())
	require.Len(t, writes, 1)
	assert.Len(t, writes[0].Data, 8)
}
