package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// BufferKind is the semantic role of a TypedBuffer.
type BufferKind int

const (
	BufferKindVertex BufferKind = iota
	BufferKindIndex
	BufferKindUniform
	BufferKindStorage
)

func (k BufferKind) String() string {
	switch k {
	case BufferKindVertex:
		return "vertex"
	case BufferKindIndex:
		return "index"
	case BufferKindUniform:
		return "uniform"
	case BufferKindStorage:
		return "storage"
	}
	return fmt.Sprintf("BufferKind(%d)", int(k))
}

// BufferType is a buffer's kind plus the element format for vertex and index buffers.
type BufferType struct {
	Kind         BufferKind
	VertexFormat wgpu.VertexFormat
	IndexFormat  wgpu.IndexFormat
}

// VertexBufferType returns the type of a vertex buffer holding elements of format.
func VertexBufferType(format wgpu.VertexFormat) BufferType {
	return BufferType{Kind: BufferKindVertex, VertexFormat: format}
}

// IndexBufferType returns the type of an index buffer of format.
func IndexBufferType(format wgpu.IndexFormat) BufferType {
	return BufferType{Kind: BufferKindIndex, IndexFormat: format}
}

var vertexFormatSizes = map[wgpu.VertexFormat]uint64{
	wgpu.VertexFormatFloat32:   4,
	wgpu.VertexFormatFloat32x2: 8,
	wgpu.VertexFormatFloat32x3: 12,
	wgpu.VertexFormatFloat32x4: 16,
	wgpu.VertexFormatSint32:    4,
	wgpu.VertexFormatSint32x2:  8,
	wgpu.VertexFormatSint32x3:  12,
	wgpu.VertexFormatSint32x4:  16,
	wgpu.VertexFormatUint32:    4,
	wgpu.VertexFormatUint32x2:  8,
	wgpu.VertexFormatUint32x3:  12,
	wgpu.VertexFormatUint32x4:  16,
	wgpu.VertexFormatFloat16x2: 4,
	wgpu.VertexFormatFloat16x4: 8,
}

// VertexFormatSize returns the byte size of one vertex attribute of format, or 0 if unknown.
func VertexFormatSize(format wgpu.VertexFormat) uint64 {
	return vertexFormatSizes[format]
}

// IndexFormatSize returns the byte size of one index of format, or 0 if unknown.
func IndexFormatSize(format wgpu.IndexFormat) uint64 {
	switch format {
	case wgpu.IndexFormatUint16:
		return 2
	case wgpu.IndexFormatUint32:
		return 4
	}
	return 0
}

// TypedBuffer is a GPU buffer with an immutable semantic type and element stride.
type TypedBuffer struct {
	buffer Buffer
	typ    BufferType
	stride uint64
	label  string
}

// NewVertexBuffer creates a vertex buffer whose stride is derived from format and uploads data into it.
//
// Parameters:
//   - device: the device to allocate on
//   - label: debug label
//   - format: the per-element vertex format
//   - data: initial contents, also fixing the buffer size
//
// Returns:
//   - *TypedBuffer: the buffer
//   - error: if the format is unknown or allocation fails
func NewVertexBuffer(device Device, label string, format wgpu.VertexFormat, data []byte) (*TypedBuffer, error) {
	stride := VertexFormatSize(format)
	if stride == 0 {
		return nil, fmt.Errorf("vertex buffer %s: unsupported vertex format %v", label, format)
	}
	return newTypedBuffer(device, label, VertexBufferType(format), stride, uint64(len(data)), wgpu.BufferUsageVertex, data)
}

// NewVertexBufferWithStride creates a vertex buffer for an interleaved layout with an explicit stride.
//
// Parameters:
//   - device: the device to allocate on
//   - label: debug label
//   - stride: bytes per vertex
//   - data: initial contents, or nil
//   - size: buffer size in bytes when data is nil
//
// Returns:
//   - *TypedBuffer: the buffer
//   - error: if the stride is zero or allocation fails
func NewVertexBufferWithStride(device Device, label string, stride uint64, data []byte, size uint64) (*TypedBuffer, error) {
	if stride == 0 {
		return nil, fmt.Errorf("vertex buffer %s: stride must be positive", label)
	}
	if data != nil {
		size = uint64(len(data))
	}
	return newTypedBuffer(device, label, BufferType{Kind: BufferKindVertex}, stride, size, wgpu.BufferUsageVertex, data)
}

// NewIndexBuffer creates an index buffer and uploads data into it.
//
// Parameters:
//   - device: the device to allocate on
//   - label: debug label
//   - format: Uint16 or Uint32
//   - data: index bytes
//
// Returns:
//   - *TypedBuffer: the buffer
//   - error: if the format is unknown or allocation fails
func NewIndexBuffer(device Device, label string, format wgpu.IndexFormat, data []byte) (*TypedBuffer, error) {
	stride := IndexFormatSize(format)
	if stride == 0 {
		return nil, fmt.Errorf("index buffer %s: unsupported index format %v", label, format)
	}
	return newTypedBuffer(device, label, IndexBufferType(format), stride, uint64(len(data)), wgpu.BufferUsageIndex, data)
}

// NewUniformBuffer creates a zeroed uniform buffer of size bytes. The stride equals the size.
func NewUniformBuffer(device Device, label string, size uint64) (*TypedBuffer, error) {
	return newTypedBuffer(device, label, BufferType{Kind: BufferKindUniform}, size, size, wgpu.BufferUsageUniform, nil)
}

// NewStorageBuffer creates a zeroed read-only storage buffer holding count elements of stride bytes.
func NewStorageBuffer(device Device, label string, stride uint64, count int) (*TypedBuffer, error) {
	return newTypedBuffer(device, label, BufferType{Kind: BufferKindStorage}, stride, stride*uint64(count), wgpu.BufferUsageStorage, nil)
}

func newTypedBuffer(device Device, label string, typ BufferType, stride, size uint64, usage wgpu.BufferUsage, data []byte) (*TypedBuffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("%s buffer %s: size must be positive", typ.Kind, label)
	}
	// Queue writes must be 4-byte aligned.
	size = (size + 3) &^ 3

	buf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s buffer %s: %w", typ.Kind, label, err)
	}

	b := &TypedBuffer{buffer: buf, typ: typ, stride: stride, label: label}
	if len(data) > 0 {
		if err := b.Write(device, 0, data); err != nil {
			buf.Release()
			return nil, err
		}
	}
	return b, nil
}

// Buffer returns the native handle.
func (b *TypedBuffer) Buffer() Buffer { return b.buffer }

// Type returns the buffer's semantic type.
func (b *TypedBuffer) Type() BufferType { return b.typ }

// Stride returns the bytes per element.
func (b *TypedBuffer) Stride() uint64 { return b.stride }

// Size returns the buffer size in bytes.
func (b *TypedBuffer) Size() uint64 { return b.buffer.Size() }

// Label returns the debug label.
func (b *TypedBuffer) Label() string { return b.label }

// Count returns the number of whole elements the buffer holds.
func (b *TypedBuffer) Count() uint64 {
	return b.buffer.Size() / b.stride
}

// Write uploads data at a byte offset.
//
// Parameters:
//   - device: the device owning the buffer
//   - offset: byte offset into the buffer
//   - data: bytes to upload
//
// Returns:
//   - error: ErrBufferTooSmall if the write overruns the buffer, or the device error
func (b *TypedBuffer) Write(device Device, offset uint64, data []byte) error {
	if pad := len(data) % 4; pad != 0 {
		data = append(data[:len(data):len(data)], make([]byte, 4-pad)...)
	}
	if offset+uint64(len(data)) > b.buffer.Size() {
		return fmt.Errorf("%s buffer %s: write of %d bytes at %d exceeds size %d: %w",
			b.typ.Kind, b.label, len(data), offset, b.buffer.Size(), ErrBufferTooSmall)
	}
	if err := device.WriteBuffer(b.buffer, offset, data); err != nil {
		return fmt.Errorf("failed to write %s buffer %s: %w", b.typ.Kind, b.label, err)
	}
	return nil
}

// Release frees the native buffer.
func (b *TypedBuffer) Release() {
	if b.buffer != nil {
		b.buffer.Release()
		b.buffer = nil
	}
}
