// Package gputest provides a recording gpu.Device for tests. It allocates no GPU memory. Every created
// resource, buffer upload, render pass, bind call and draw is kept so tests can assert exactly what a
// component recorded.
package gputest

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-xr/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// Handle is the common part of every fake resource.
type Handle struct {
	ID       int
	Label    string
	Released bool
}

// Release marks the handle released.
func (h *Handle) Release() { h.Released = true }

type Texture struct {
	Handle
	Desc wgpu.TextureDescriptor
}

type TextureView struct {
	Handle
	Texture *Texture
	Desc    wgpu.TextureViewDescriptor
}

type Sampler struct {
	Handle
	Desc wgpu.SamplerDescriptor
}

type Buffer struct {
	Handle
	Desc wgpu.BufferDescriptor
	Data []byte
}

// Size returns the allocated size.
func (b *Buffer) Size() uint64 { return b.Desc.Size }

type BindGroupLayout struct {
	Handle
	Desc wgpu.BindGroupLayoutDescriptor
}

type BindGroup struct {
	Handle
	Desc gpu.BindGroupDescriptor
}

type ShaderModule struct {
	Handle
	Code string
}

type RenderPipeline struct {
	Handle
	Desc gpu.RenderPipelineDescriptor
}

// CommandBuffer is a finished encoder.
type CommandBuffer struct {
	Handle
	Passes []*Pass
}

// BindCall is one SetBindGroup call.
type BindCall struct {
	Index   uint32
	Group   *BindGroup
	Offsets []uint32
}

// DrawCall is one Draw or DrawIndexed call, together with the pipeline bound at the time.
type DrawCall struct {
	Indexed       bool
	Count         uint32
	Instances     uint32
	First         uint32
	BaseVertex    int32
	FirstInstance uint32
	Pipeline      *RenderPipeline
}

// Pass is a recorded render pass.
type Pass struct {
	Desc          gpu.RenderPassDescriptor
	Pipelines     []*RenderPipeline
	BindCalls     []BindCall
	VertexBuffers map[uint32]*Buffer
	IndexBuffer   *Buffer
	Draws         []DrawCall
	Ended         bool

	pipeline *RenderPipeline
}

// BufferWrite is one WriteBuffer call.
type BufferWrite struct {
	Buffer *Buffer
	Offset uint64
	Data   []byte
}

// Device is a recording gpu.Device. The zero value is not usable; call NewDevice.
type Device struct {
	mu     sync.Mutex
	nextID int

	Textures         []*Texture
	Views            []*TextureView
	Samplers         []*Sampler
	Buffers          []*Buffer
	BindGroupLayouts []*BindGroupLayout
	BindGroups       []*BindGroup
	ShaderModules    []*ShaderModule
	Pipelines        []*RenderPipeline
	Writes           []BufferWrite
	TextureWrites    []gpu.TextureWrite
	Encoders         int
	Submitted        []*CommandBuffer

	// FailShaderModule, when set, is consulted before creating each shader module.
	FailShaderModule func(desc *gpu.ShaderModuleDescriptor) error
	// FailRenderPipeline, when set, is consulted before creating each render pipeline.
	FailRenderPipeline func(desc *gpu.RenderPipelineDescriptor) error
	// FailWriteBuffer, when set, is consulted before each buffer write.
	FailWriteBuffer func(buffer *Buffer) error
	// FailCommandEncoder, when set, is consulted before creating each command encoder.
	FailCommandEncoder func(label string) error
}

var _ gpu.Device = &Device{}

// NewDevice creates an empty recording device.
func NewDevice() *Device {
	return &Device{}
}

func (d *Device) handle(label string) Handle {
	d.nextID++
	return Handle{ID: d.nextID, Label: label}
}

func (d *Device) CreateTexture(desc *wgpu.TextureDescriptor) (gpu.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if desc.Size.Width == 0 || desc.Size.Height == 0 {
		return nil, fmt.Errorf("texture %s: zero size", desc.Label)
	}
	t := &Texture{Handle: d.handle(desc.Label), Desc: *desc}
	d.Textures = append(d.Textures, t)
	return t, nil
}

func (d *Device) CreateTextureView(texture gpu.Texture, desc *wgpu.TextureViewDescriptor) (gpu.TextureView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := texture.(*Texture)
	if !ok {
		return nil, gpu.ErrForeignHandle
	}
	v := &TextureView{Texture: t}
	if desc != nil {
		v.Desc = *desc
		if desc.BaseArrayLayer+max(desc.ArrayLayerCount, 1) > t.Desc.Size.DepthOrArrayLayers {
			return nil, fmt.Errorf("view %s: layers out of range", desc.Label)
		}
	}
	v.Handle = d.handle(v.Desc.Label)
	d.Views = append(d.Views, v)
	return v, nil
}

func (d *Device) CreateSampler(desc *wgpu.SamplerDescriptor) (gpu.Sampler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := &Sampler{Handle: d.handle(desc.Label), Desc: *desc}
	d.Samplers = append(d.Samplers, s)
	return s, nil
}

func (d *Device) CreateBuffer(desc *wgpu.BufferDescriptor) (gpu.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b := &Buffer{Handle: d.handle(desc.Label), Desc: *desc, Data: make([]byte, desc.Size)}
	d.Buffers = append(d.Buffers, b)
	return b, nil
}

func (d *Device) CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (gpu.BindGroupLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	l := &BindGroupLayout{Handle: d.handle(desc.Label), Desc: *desc}
	d.BindGroupLayouts = append(d.BindGroupLayouts, l)
	return l, nil
}

func (d *Device) CreateBindGroup(desc *gpu.BindGroupDescriptor) (gpu.BindGroup, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	layout, ok := desc.Layout.(*BindGroupLayout)
	if !ok {
		return nil, gpu.ErrForeignHandle
	}
	if len(layout.Desc.Entries) != len(desc.Entries) {
		return nil, fmt.Errorf("bind group %s: %d entries for a layout of %d", desc.Label, len(desc.Entries), len(layout.Desc.Entries))
	}
	g := &BindGroup{Handle: d.handle(desc.Label), Desc: *desc}
	d.BindGroups = append(d.BindGroups, g)
	return g, nil
}

func (d *Device) CreateShaderModule(desc *gpu.ShaderModuleDescriptor) (gpu.ShaderModule, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailShaderModule != nil {
		if err := d.FailShaderModule(desc); err != nil {
			return nil, err
		}
	}
	m := &ShaderModule{Handle: d.handle(desc.Label), Code: desc.Code}
	d.ShaderModules = append(d.ShaderModules, m)
	return m, nil
}

func (d *Device) CreateRenderPipeline(desc *gpu.RenderPipelineDescriptor) (gpu.RenderPipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailRenderPipeline != nil {
		if err := d.FailRenderPipeline(desc); err != nil {
			return nil, err
		}
	}
	p := &RenderPipeline{Handle: d.handle(desc.Label), Desc: *desc}
	d.Pipelines = append(d.Pipelines, p)
	return p, nil
}

func (d *Device) WriteBuffer(buffer gpu.Buffer, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := buffer.(*Buffer)
	if !ok {
		return gpu.ErrForeignHandle
	}
	if d.FailWriteBuffer != nil {
		if err := d.FailWriteBuffer(b); err != nil {
			return err
		}
	}
	if offset+uint64(len(data)) > uint64(len(b.Data)) {
		return fmt.Errorf("write past end of buffer %s", b.Label)
	}
	copy(b.Data[offset:], data)
	d.Writes = append(d.Writes, BufferWrite{Buffer: b, Offset: offset, Data: append([]byte(nil), data...)})
	return nil
}

func (d *Device) WriteTexture(dst gpu.TextureWrite, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := dst.Texture.(*Texture); !ok {
		return gpu.ErrForeignHandle
	}
	d.TextureWrites = append(d.TextureWrites, dst)
	return nil
}

func (d *Device) CreateCommandEncoder(label string) (gpu.CommandEncoder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailCommandEncoder != nil {
		if err := d.FailCommandEncoder(label); err != nil {
			return nil, err
		}
	}
	d.Encoders++
	return &encoder{device: d, label: label}, nil
}

func (d *Device) Submit(buffers ...gpu.CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, b := range buffers {
		if cb, ok := b.(*CommandBuffer); ok {
			d.Submitted = append(d.Submitted, cb)
		}
	}
}

// Passes returns every pass of every submitted command buffer in submission order.
func (d *Device) Passes() []*Pass {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*Pass
	for _, cb := range d.Submitted {
		out = append(out, cb.Passes...)
	}
	return out
}

// PassLabels returns the labels of Passes.
func (d *Device) PassLabels() []string {
	passes := d.Passes()
	labels := make([]string, len(passes))
	for i, p := range passes {
		labels[i] = p.Desc.Label
	}
	return labels
}

// WritesTo returns the uploads recorded against buffer.
func (d *Device) WritesTo(buffer gpu.Buffer) []BufferWrite {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []BufferWrite
	for _, w := range d.Writes {
		if w.Buffer == buffer {
			out = append(out, w)
		}
	}
	return out
}

// ResetFrames forgets submitted buffers, uploads and the encoder count, keeping created resources.
func (d *Device) ResetFrames() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Submitted = nil
	d.Writes = nil
	d.TextureWrites = nil
	d.Encoders = 0
}

type encoder struct {
	device   *Device
	label    string
	passes   []*Pass
	open     *Pass
	finished bool
}

func (e *encoder) BeginRenderPass(desc *gpu.RenderPassDescriptor) gpu.RenderPass {
	if e.open != nil && !e.open.Ended {
		panic(fmt.Sprintf("gputest: pass %q begun while %q is open", desc.Label, e.open.Desc.Label))
	}
	p := &Pass{Desc: *desc, VertexBuffers: map[uint32]*Buffer{}}
	e.passes = append(e.passes, p)
	e.open = p
	return p
}

func (e *encoder) Finish() (gpu.CommandBuffer, error) {
	if e.open != nil && !e.open.Ended {
		return nil, fmt.Errorf("encoder %s finished with pass %q open", e.label, e.open.Desc.Label)
	}
	e.finished = true
	e.device.mu.Lock()
	defer e.device.mu.Unlock()
	return &CommandBuffer{Handle: e.device.handle(e.label), Passes: e.passes}, nil
}

func (e *encoder) Release() {}

func (p *Pass) SetPipeline(pipeline gpu.RenderPipeline) {
	rp := pipeline.(*RenderPipeline)
	p.pipeline = rp
	p.Pipelines = append(p.Pipelines, rp)
}

func (p *Pass) SetBindGroup(index uint32, group gpu.BindGroup, dynamicOffsets []uint32) {
	p.BindCalls = append(p.BindCalls, BindCall{Index: index, Group: group.(*BindGroup), Offsets: dynamicOffsets})
}

func (p *Pass) SetVertexBuffer(slot uint32, buffer gpu.Buffer, offset, size uint64) {
	p.VertexBuffers[slot] = buffer.(*Buffer)
}

func (p *Pass) SetIndexBuffer(buffer gpu.Buffer, format wgpu.IndexFormat, offset, size uint64) {
	p.IndexBuffer = buffer.(*Buffer)
}

func (p *Pass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.Draws = append(p.Draws, DrawCall{Count: vertexCount, Instances: instanceCount, First: firstVertex, FirstInstance: firstInstance, Pipeline: p.pipeline})
}

func (p *Pass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.Draws = append(p.Draws, DrawCall{Indexed: true, Count: indexCount, Instances: instanceCount, First: firstIndex, BaseVertex: baseVertex, FirstInstance: firstInstance, Pipeline: p.pipeline})
}

func (p *Pass) End() error {
	if p.Ended {
		return fmt.Errorf("pass %q ended twice", p.Desc.Label)
	}
	p.Ended = true
	return nil
}

// Surface is a fake presentable surface.
type Surface struct {
	Device     *Device
	Width      uint32
	Height     uint32
	TexFormat  wgpu.TextureFormat
	Acquired   int
	Presented  int
	Discarded  int
	AcquireErr error

	held bool
}

var _ gpu.Surface = &Surface{}

// NewSurface creates a fake surface with a BGRA8Unorm format.
func NewSurface(d *Device) *Surface {
	return &Surface{Device: d, TexFormat: wgpu.TextureFormatBGRA8Unorm}
}

func (s *Surface) Configure(width, height uint32) error {
	s.Width, s.Height = width, height
	return nil
}

func (s *Surface) Format() wgpu.TextureFormat { return s.TexFormat }

func (s *Surface) Acquire() (gpu.TextureView, error) {
	if s.AcquireErr != nil {
		return nil, s.AcquireErr
	}
	s.Acquired++
	s.held = true
	tex, err := s.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:  "Swapchain",
		Size:   wgpu.Extent3D{Width: max(s.Width, 1), Height: max(s.Height, 1), DepthOrArrayLayers: 1},
		Format: s.TexFormat,
	})
	if err != nil {
		return nil, err
	}
	return s.Device.CreateTextureView(tex, nil)
}

func (s *Surface) Present() {
	s.Presented++
	s.held = false
}

func (s *Surface) Discard() {
	if s.held {
		s.Discarded++
	}
	s.held = false
}

// Held reports whether an acquired image has been neither presented nor discarded.
func (s *Surface) Held() bool { return s.held }
