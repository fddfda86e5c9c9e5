package gpu

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

type (
	wgpuTexture         struct{ *wgpu.Texture }
	wgpuTextureView     struct{ *wgpu.TextureView }
	wgpuSampler         struct{ *wgpu.Sampler }
	wgpuBindGroupLayout struct{ *wgpu.BindGroupLayout }
	wgpuBindGroup       struct{ *wgpu.BindGroup }
	wgpuShaderModule    struct{ *wgpu.ShaderModule }
	wgpuRenderPipeline  struct{ *wgpu.RenderPipeline }
	wgpuCommandBuffer   struct{ *wgpu.CommandBuffer }
)

type wgpuBuffer struct {
	*wgpu.Buffer
	size uint64
}

func (b *wgpuBuffer) Size() uint64 { return b.size }

// wgpuDevice is the implementation of the Device interface on top of cogentcore/webgpu.
type wgpuDevice struct {
	mu                   *sync.Mutex
	instance             *wgpu.Instance
	adapter              *wgpu.Adapter
	device               *wgpu.Device
	queue                *wgpu.Queue
	forceFallbackAdapter bool
	maxBindGroups        uint32
	presentMode          wgpu.PresentMode
}

var _ Device = &wgpuDevice{}

// NewWGPUDevice creates a wgpu instance, adapter and device. When surfaceDescriptor is non-nil a presentable
// surface compatible with the adapter is created too; otherwise the returned Surface is nil.
// The calling goroutine is locked to its OS thread, as the native backends require.
//
// Parameters:
//   - surfaceDescriptor: the platform surface to present to, or nil for headless rendering
//   - options: device builder options
//
// Returns:
//   - Device: the device
//   - Surface: the surface, or nil
//   - error: if no adapter or device could be obtained
func NewWGPUDevice(surfaceDescriptor *wgpu.SurfaceDescriptor, options ...DeviceBuilderOption) (Device, Surface, error) {
	runtime.LockOSThread()
	d := &wgpuDevice{
		mu:            &sync.Mutex{},
		instance:      wgpu.CreateInstance(nil),
		maxBindGroups: 4,
		presentMode:   wgpu.PresentModeFifo,
	}
	for _, opt := range options {
		opt(d)
	}

	var surface *wgpu.Surface
	if surfaceDescriptor != nil {
		surface = d.instance.CreateSurface(surfaceDescriptor)
	}

	a, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: d.forceFallbackAdapter,
		CompatibleSurface:    surface,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to request adapter: %w", err)
	}
	d.adapter = a

	limits := wgpu.DefaultLimits()
	limits.MaxBindGroups = d.maxBindGroups

	dev, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to request device: %w", err)
	}
	d.device = dev
	d.queue = dev.GetQueue()

	if surface == nil {
		return d, nil, nil
	}
	return d, &wgpuSurface{
		mu:          &sync.Mutex{},
		surface:     surface,
		adapter:     a,
		device:      dev,
		presentMode: d.presentMode,
	}, nil
}

func (d *wgpuDevice) CreateTexture(desc *wgpu.TextureDescriptor) (Texture, error) {
	t, err := d.device.CreateTexture(desc)
	if err != nil {
		return nil, err
	}
	return &wgpuTexture{t}, nil
}

func (d *wgpuDevice) CreateTextureView(texture Texture, desc *wgpu.TextureViewDescriptor) (TextureView, error) {
	t, ok := texture.(*wgpuTexture)
	if !ok {
		return nil, ErrForeignHandle
	}
	v, err := t.CreateView(desc)
	if err != nil {
		return nil, err
	}
	return &wgpuTextureView{v}, nil
}

func (d *wgpuDevice) CreateSampler(desc *wgpu.SamplerDescriptor) (Sampler, error) {
	s, err := d.device.CreateSampler(desc)
	if err != nil {
		return nil, err
	}
	return &wgpuSampler{s}, nil
}

func (d *wgpuDevice) CreateBuffer(desc *wgpu.BufferDescriptor) (Buffer, error) {
	b, err := d.device.CreateBuffer(desc)
	if err != nil {
		return nil, err
	}
	return &wgpuBuffer{Buffer: b, size: desc.Size}, nil
}

func (d *wgpuDevice) CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (BindGroupLayout, error) {
	l, err := d.device.CreateBindGroupLayout(desc)
	if err != nil {
		return nil, err
	}
	return &wgpuBindGroupLayout{l}, nil
}

func (d *wgpuDevice) CreateBindGroup(desc *BindGroupDescriptor) (BindGroup, error) {
	layout, ok := desc.Layout.(*wgpuBindGroupLayout)
	if !ok {
		return nil, ErrForeignHandle
	}

	entries := make([]wgpu.BindGroupEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		entry := wgpu.BindGroupEntry{Binding: e.Binding}
		switch {
		case e.Buffer != nil:
			buf, ok := e.Buffer.(*wgpuBuffer)
			if !ok {
				return nil, ErrForeignHandle
			}
			entry.Buffer = buf.Buffer
			entry.Offset = e.Offset
			entry.Size = e.Size
			if entry.Size == 0 {
				entry.Size = wgpu.WholeSize
			}
		case e.Sampler != nil:
			s, ok := e.Sampler.(*wgpuSampler)
			if !ok {
				return nil, ErrForeignHandle
			}
			entry.Sampler = s.Sampler
		case e.TextureView != nil:
			v, ok := e.TextureView.(*wgpuTextureView)
			if !ok {
				return nil, ErrForeignHandle
			}
			entry.TextureView = v.TextureView
		default:
			return nil, fmt.Errorf("bind group %s: entry %d binds no resource", desc.Label, e.Binding)
		}
		entries[i] = entry
	}

	bg, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  layout.BindGroupLayout,
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuBindGroup{bg}, nil
}

func (d *wgpuDevice) CreateShaderModule(desc *ShaderModuleDescriptor) (ShaderModule, error) {
	m, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: desc.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: desc.Code,
		},
	})
	if err != nil {
		return nil, err
	}
	return &wgpuShaderModule{m}, nil
}

func (d *wgpuDevice) CreateRenderPipeline(desc *RenderPipelineDescriptor) (RenderPipeline, error) {
	// The native descriptor in this binding has no multiview field.
	if desc.Multiview > 1 {
		return nil, fmt.Errorf("pipeline %s with %d views: %w", desc.Label, desc.Multiview, ErrMultiviewUnsupported)
	}
	layouts := make([]*wgpu.BindGroupLayout, len(desc.BindGroupLayouts))
	for i, l := range desc.BindGroupLayouts {
		native, ok := l.(*wgpuBindGroupLayout)
		if !ok {
			return nil, ErrForeignHandle
		}
		layouts[i] = native.BindGroupLayout
	}

	pipelineLayout, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline layout %s: %w", desc.Label, err)
	}
	defer pipelineLayout.Release()

	vs, ok := desc.Vertex.Module.(*wgpuShaderModule)
	if !ok {
		return nil, ErrForeignHandle
	}

	native := &wgpu.RenderPipelineDescriptor{
		Label:  desc.Label + " Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vs.ShaderModule,
			EntryPoint: desc.Vertex.EntryPoint,
			Buffers:    desc.Vertex.Buffers,
		},
		Primitive:    desc.Primitive,
		DepthStencil: desc.DepthStencil,
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	}
	if desc.Fragment != nil {
		fs, ok := desc.Fragment.Module.(*wgpuShaderModule)
		if !ok {
			return nil, ErrForeignHandle
		}
		native.Fragment = &wgpu.FragmentState{
			Module:     fs.ShaderModule,
			EntryPoint: desc.Fragment.EntryPoint,
			Targets:    desc.Fragment.Targets,
		}
	}

	p, err := d.device.CreateRenderPipeline(native)
	if err != nil {
		return nil, err
	}
	return &wgpuRenderPipeline{p}, nil
}

func (d *wgpuDevice) WriteBuffer(buffer Buffer, offset uint64, data []byte) error {
	b, ok := buffer.(*wgpuBuffer)
	if !ok {
		return ErrForeignHandle
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue.WriteBuffer(b.Buffer, offset, data)
	return nil
}

func (d *wgpuDevice) WriteTexture(dst TextureWrite, data []byte) error {
	t, ok := dst.Texture.(*wgpuTexture)
	if !ok {
		return ErrForeignHandle
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  t.Texture,
			MipLevel: dst.MipLevel,
			Origin:   dst.Origin,
			Aspect:   wgpu.TextureAspectAll,
		},
		data,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  dst.BytesPerRow,
			RowsPerImage: dst.RowsPerImage,
		},
		&dst.Size,
	)
	return nil
}

func (d *wgpuDevice) CreateCommandEncoder(label string) (CommandEncoder, error) {
	enc, err := d.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, err
	}
	return &wgpuCommandEncoder{enc: enc}, nil
}

func (d *wgpuDevice) Submit(buffers ...CommandBuffer) {
	native := make([]*wgpu.CommandBuffer, 0, len(buffers))
	for _, b := range buffers {
		if cb, ok := b.(*wgpuCommandBuffer); ok {
			native = append(native, cb.CommandBuffer)
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue.Submit(native...)
}

type wgpuCommandEncoder struct {
	enc *wgpu.CommandEncoder
}

func (e *wgpuCommandEncoder) BeginRenderPass(desc *RenderPassDescriptor) RenderPass {
	colors := make([]wgpu.RenderPassColorAttachment, len(desc.ColorAttachments))
	for i, c := range desc.ColorAttachments {
		colors[i] = wgpu.RenderPassColorAttachment{
			View:       mustView(c.View),
			LoadOp:     c.LoadOp,
			StoreOp:    c.StoreOp,
			ClearValue: c.ClearValue,
		}
	}

	native := &wgpu.RenderPassDescriptor{
		Label:            desc.Label,
		ColorAttachments: colors,
	}
	if ds := desc.DepthStencilAttachment; ds != nil {
		native.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:              mustView(ds.View),
			DepthLoadOp:       ds.DepthLoadOp,
			DepthStoreOp:      ds.DepthStoreOp,
			DepthClearValue:   ds.DepthClearValue,
			DepthReadOnly:     ds.DepthReadOnly,
			StencilLoadOp:     ds.StencilLoadOp,
			StencilStoreOp:    ds.StencilStoreOp,
			StencilClearValue: ds.StencilClearValue,
			StencilReadOnly:   ds.StencilReadOnly,
		}
	}
	return &wgpuRenderPass{pass: e.enc.BeginRenderPass(native)}
}

func (e *wgpuCommandEncoder) Finish() (CommandBuffer, error) {
	cb, err := e.enc.Finish(nil)
	if err != nil {
		return nil, err
	}
	return &wgpuCommandBuffer{cb}, nil
}

func (e *wgpuCommandEncoder) Release() {
	e.enc.Release()
}

type wgpuRenderPass struct {
	pass *wgpu.RenderPassEncoder
}

func (p *wgpuRenderPass) SetPipeline(pipeline RenderPipeline) {
	p.pass.SetPipeline(mustNative[*wgpuRenderPipeline](pipeline).RenderPipeline)
}

func (p *wgpuRenderPass) SetBindGroup(index uint32, group BindGroup, dynamicOffsets []uint32) {
	p.pass.SetBindGroup(index, mustNative[*wgpuBindGroup](group).BindGroup, dynamicOffsets)
}

func (p *wgpuRenderPass) SetVertexBuffer(slot uint32, buffer Buffer, offset, size uint64) {
	p.pass.SetVertexBuffer(slot, mustNative[*wgpuBuffer](buffer).Buffer, offset, size)
}

func (p *wgpuRenderPass) SetIndexBuffer(buffer Buffer, format wgpu.IndexFormat, offset, size uint64) {
	p.pass.SetIndexBuffer(mustNative[*wgpuBuffer](buffer).Buffer, format, offset, size)
}

func (p *wgpuRenderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.pass.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (p *wgpuRenderPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.pass.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}

func (p *wgpuRenderPass) End() error {
	err := p.pass.End()
	p.pass.Release()
	return err
}

func mustView(v TextureView) *wgpu.TextureView {
	return mustNative[*wgpuTextureView](v).TextureView
}

// mustNative unwraps a handle recorded into a pass. Passing another backend's handle is a programming error.
func mustNative[T any](h any) T {
	native, ok := h.(T)
	if !ok {
		panic(fmt.Sprintf("gpu: %T is not a wgpu handle", h))
	}
	return native
}
