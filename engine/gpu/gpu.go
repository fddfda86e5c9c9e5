// Package gpu is the engine's thin layer over the graphics device. Every GPU-facing package records through
// the Device interface defined here, so render passes, bind groups and uploads can be driven by the wgpu
// backend in production or by a recording fake in tests.
//
// Descriptors that carry no handles reuse the wgpu descriptor types directly. Descriptors that reference
// other GPU objects are mirrored here with the handle interfaces in place of native pointers.
package gpu

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// Releaser is implemented by every GPU handle.
type Releaser interface {
	// Release frees the native object. Handles must not be used after Release.
	Release()
}

// Texture is an allocated GPU texture.
type Texture interface {
	Releaser
}

// TextureView is a view over a texture's mips and layers.
type TextureView interface {
	Releaser
}

// Sampler is a texture sampler.
type Sampler interface {
	Releaser
}

// Buffer is a GPU buffer.
type Buffer interface {
	Releaser

	// Size returns the buffer size in bytes.
	Size() uint64
}

// BindGroupLayout describes the shape of a bind group.
type BindGroupLayout interface {
	Releaser
}

// BindGroup is a set of resources bound together at one group index.
type BindGroup interface {
	Releaser
}

// ShaderModule is a compiled shader module.
type ShaderModule interface {
	Releaser
}

// RenderPipeline is a compiled render pipeline.
type RenderPipeline interface {
	Releaser
}

// CommandBuffer is a finished command encoder, ready for submission.
type CommandBuffer interface {
	Releaser
}

// BindGroupEntry binds one resource at a binding index. Exactly one of Buffer, Sampler or TextureView is set.
type BindGroupEntry struct {
	Binding     uint32
	Buffer      Buffer
	Offset      uint64
	Size        uint64
	Sampler     Sampler
	TextureView TextureView
}

// BindGroupDescriptor describes a bind group to create.
type BindGroupDescriptor struct {
	Label   string
	Layout  BindGroupLayout
	Entries []BindGroupEntry
}

// ShaderModuleDescriptor carries WGSL source for a shader module.
type ShaderModuleDescriptor struct {
	Label string
	Code  string
}

// VertexState is the vertex stage of a render pipeline.
type VertexState struct {
	Module     ShaderModule
	EntryPoint string
	Buffers    []wgpu.VertexBufferLayout
}

// FragmentState is the fragment stage of a render pipeline.
type FragmentState struct {
	Module     ShaderModule
	EntryPoint string
	Targets    []wgpu.ColorTargetState
}

// RenderPipelineDescriptor describes a render pipeline. The pipeline layout is derived from BindGroupLayouts
// in group-index order.
type RenderPipelineDescriptor struct {
	Label            string
	BindGroupLayouts []BindGroupLayout
	Vertex           VertexState
	Fragment         *FragmentState
	Primitive        wgpu.PrimitiveState
	DepthStencil     *wgpu.DepthStencilState
	// Multiview is the number of array layers a single draw renders to through view_index. Zero and
	// one mean an ordinary single-view pipeline.
	Multiview uint32
}

// ColorAttachment is one color target of a render pass.
type ColorAttachment struct {
	View       TextureView
	LoadOp     wgpu.LoadOp
	StoreOp    wgpu.StoreOp
	ClearValue wgpu.Color
}

// DepthStencilAttachment is the depth-stencil target of a render pass. A zero load op leaves the aspect untouched.
type DepthStencilAttachment struct {
	View              TextureView
	DepthLoadOp       wgpu.LoadOp
	DepthStoreOp      wgpu.StoreOp
	DepthClearValue   float32
	DepthReadOnly     bool
	StencilLoadOp     wgpu.LoadOp
	StencilStoreOp    wgpu.StoreOp
	StencilClearValue uint32
	StencilReadOnly   bool
}

// RenderPassDescriptor describes a render pass.
type RenderPassDescriptor struct {
	Label                  string
	ColorAttachments       []ColorAttachment
	DepthStencilAttachment *DepthStencilAttachment
}

// TextureWrite describes the destination and layout of a texture upload.
type TextureWrite struct {
	Texture      Texture
	MipLevel     uint32
	Origin       wgpu.Origin3D
	BytesPerRow  uint32
	RowsPerImage uint32
	Size         wgpu.Extent3D
}

// Device creates GPU resources and records and submits command buffers.
type Device interface {
	// CreateTexture allocates a texture.
	//
	// Parameters:
	//   - desc: the texture descriptor
	//
	// Returns:
	//   - Texture: the created texture
	//   - error: if the device rejects the descriptor
	CreateTexture(desc *wgpu.TextureDescriptor) (Texture, error)

	// CreateTextureView creates a view over a texture. A nil descriptor views the whole texture.
	//
	// Parameters:
	//   - texture: the texture to view
	//   - desc: the view descriptor, or nil
	//
	// Returns:
	//   - TextureView: the created view
	//   - error: if the view cannot be created
	CreateTextureView(texture Texture, desc *wgpu.TextureViewDescriptor) (TextureView, error)

	// CreateSampler creates a sampler.
	CreateSampler(desc *wgpu.SamplerDescriptor) (Sampler, error)

	// CreateBuffer allocates a buffer.
	CreateBuffer(desc *wgpu.BufferDescriptor) (Buffer, error)

	// CreateBindGroupLayout creates a bind group layout.
	CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (BindGroupLayout, error)

	// CreateBindGroup creates a bind group against a layout.
	CreateBindGroup(desc *BindGroupDescriptor) (BindGroup, error)

	// CreateShaderModule compiles WGSL source into a shader module.
	//
	// Parameters:
	//   - desc: the label and WGSL source
	//
	// Returns:
	//   - ShaderModule: the compiled module
	//   - error: if compilation fails
	CreateShaderModule(desc *ShaderModuleDescriptor) (ShaderModule, error)

	// CreateRenderPipeline creates a render pipeline and its layout.
	//
	// Parameters:
	//   - desc: the pipeline descriptor
	//
	// Returns:
	//   - RenderPipeline: the compiled pipeline
	//   - error: if layout or pipeline creation fails
	CreateRenderPipeline(desc *RenderPipelineDescriptor) (RenderPipeline, error)

	// WriteBuffer queues an upload of data into buffer at offset.
	//
	// Parameters:
	//   - buffer: destination buffer, which must have CopyDst usage
	//   - offset: byte offset into the buffer
	//   - data: bytes to upload
	//
	// Returns:
	//   - error: if the upload is rejected
	WriteBuffer(buffer Buffer, offset uint64, data []byte) error

	// WriteTexture queues an upload of pixel data into a texture region.
	//
	// Parameters:
	//   - dst: destination texture, region and row layout
	//   - data: pixel bytes
	//
	// Returns:
	//   - error: if the upload is rejected
	WriteTexture(dst TextureWrite, data []byte) error

	// CreateCommandEncoder begins recording a command buffer.
	//
	// Parameters:
	//   - label: debug label for the encoder
	//
	// Returns:
	//   - CommandEncoder: the encoder
	//   - error: if the encoder cannot be created
	CreateCommandEncoder(label string) (CommandEncoder, error)

	// Submit submits finished command buffers to the queue in order.
	Submit(buffers ...CommandBuffer)
}

// CommandEncoder records render passes into a command buffer.
type CommandEncoder interface {
	Releaser

	// BeginRenderPass opens a render pass. The returned pass must be ended before the next one begins.
	//
	// Parameters:
	//   - desc: the pass attachments
	//
	// Returns:
	//   - RenderPass: the open pass
	BeginRenderPass(desc *RenderPassDescriptor) RenderPass

	// Finish ends recording.
	//
	// Returns:
	//   - CommandBuffer: the recorded commands
	//   - error: if any recorded command was invalid
	Finish() (CommandBuffer, error)
}

// RenderPass records draw state and draws within one render pass.
type RenderPass interface {
	SetPipeline(pipeline RenderPipeline)
	SetBindGroup(index uint32, group BindGroup, dynamicOffsets []uint32)
	SetVertexBuffer(slot uint32, buffer Buffer, offset, size uint64)
	SetIndexBuffer(buffer Buffer, format wgpu.IndexFormat, offset, size uint64)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32)

	// End closes the pass.
	//
	// Returns:
	//   - error: if the pass was invalid
	End() error
}

// Surface is a presentable swapchain.
type Surface interface {
	// Configure (re)creates the swapchain at the given size.
	Configure(width, height uint32) error

	// Format returns the swapchain texture format. Valid after Configure.
	Format() wgpu.TextureFormat

	// Acquire returns a view of the next swapchain image.
	//
	// Returns:
	//   - TextureView: the image view, valid until Present
	//   - error: if no image is available (outdated, lost or timed out)
	Acquire() (TextureView, error)

	// Present shows the acquired image and releases it.
	Present()

	// Discard releases the acquired image without showing it. It is a no-op when nothing is
	// acquired.
	Discard()
}
