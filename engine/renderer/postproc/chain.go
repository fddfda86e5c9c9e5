package postproc

import (
	"fmt"
	"maps"
	"sync"

	"github.com/Carmen-Shannon/oxy-xr/common"
	"github.com/Carmen-Shannon/oxy-xr/engine/framebuffer"
	"github.com/Carmen-Shannon/oxy-xr/engine/gpu"
	"github.com/Carmen-Shannon/oxy-xr/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-xr/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// BloomSettings configures the bloom passes.
type BloomSettings struct {
	Enabled   bool
	Threshold float32
	Knee      float32
	Intensity float32
}

// SharpenSettings configures the sharpen pass.
type SharpenSettings struct {
	Enabled  bool
	Strength float32
}

// TAASettings configures temporal anti-aliasing. SampleCount is the jitter sequence length; Blend is
// the minimum weight of the current frame.
type TAASettings struct {
	Enabled     bool
	SampleCount uint32
	Blend       float32
}

// DefaultBloomSettings returns bloom disabled with threshold 1, knee 1 and intensity 0.2.
func DefaultBloomSettings() BloomSettings {
	return BloomSettings{Threshold: 1, Knee: 1, Intensity: 0.2}
}

// DefaultSharpenSettings returns sharpen disabled at strength 0.5.
func DefaultSharpenSettings() SharpenSettings {
	return SharpenSettings{Strength: 0.5}
}

// DefaultTAASettings returns TAA disabled with 8 samples and a 0.1 blend.
func DefaultTAASettings() TAASettings {
	return TAASettings{SampleCount: 8, Blend: 0.1}
}

// Frame is what one camera contributes to the post-process chain.
type Frame struct {
	// Framebuffer is the camera's framebuffer, after the G-buffer pass.
	Framebuffer *framebuffer.Framebuffer
	// ViewCount is the camera's view count. Above 1 every pass renders all layers in one draw.
	ViewCount int
	// ViewGroup is the camera's view-params bind group.
	ViewGroup gpu.BindGroup
	// LightGroup is the lighting bind group of the light system.
	LightGroup gpu.BindGroup
	// CopyView, when set, receives layer 0 of the final color.
	CopyView   gpu.TextureView
	CopyFormat wgpu.TextureFormat
}

// Chain records every pass from deferred lighting to the copy into a presentation target. Pipelines are
// cached by view count, output format and settings, and rebuilt when the shader library changes.
type Chain struct {
	mu     *sync.Mutex
	device gpu.Device
	cache  *pipeline.Cache
	logger common.Logger

	viewLayout   gpu.BindGroupLayout
	lightLayout  gpu.BindGroupLayout
	paramsLayout gpu.BindGroupLayout
	inputLayouts map[int]gpu.BindGroupLayout
	gbufLayouts  map[int]gpu.BindGroupLayout

	bloom   BloomSettings
	sharpen SharpenSettings
	taa     TAASettings

	bloomParams   *gpu.TypedBuffer
	sharpenParams *gpu.TypedBuffer
	bloomGroup    gpu.BindGroup
	sharpenGroup  gpu.BindGroup
}

// NewChain creates the chain, its params uniforms and builds every enabled single-view pass.
//
// Parameters:
//   - device: the device to build on
//   - library: the shader library
//   - viewLayout: the camera view-params layout
//   - lightLayout: the light system's lighting layout
//   - options: optional builder options
//
// Returns:
//   - *Chain: the chain
//   - error: if a resource or pipeline cannot be created
func NewChain(device gpu.Device, library shader.Library, viewLayout, lightLayout gpu.BindGroupLayout, options ...ChainBuilderOption) (*Chain, error) {
	c := &Chain{
		mu:           &sync.Mutex{},
		device:       device,
		logger:       common.NewNopLogger(),
		viewLayout:   viewLayout,
		lightLayout:  lightLayout,
		inputLayouts: map[int]gpu.BindGroupLayout{},
		gbufLayouts:  map[int]gpu.BindGroupLayout{},
		bloom:        DefaultBloomSettings(),
		sharpen:      DefaultSharpenSettings(),
		taa:          DefaultTAASettings(),
	}
	for _, opt := range options {
		opt(c)
	}
	c.cache = pipeline.NewCache(device, library, c.logger)

	if err := c.createParams(); err != nil {
		c.Release()
		return nil, err
	}
	if err := c.Prepare(1); err != nil {
		c.Release()
		return nil, err
	}
	return c, nil
}

func (c *Chain) createParams() error {
	var err error
	if c.paramsLayout, err = c.device.CreateBindGroupLayout(ParamsBindGroupLayoutDescriptor()); err != nil {
		return fmt.Errorf("failed to create params layout: %w", err)
	}
	if c.bloomParams, c.bloomGroup, err = c.paramsGroup("Bloom Params"); err != nil {
		return err
	}
	if c.sharpenParams, c.sharpenGroup, err = c.paramsGroup("Sharpen Params"); err != nil {
		return err
	}
	if err = c.writeBloom(); err != nil {
		return err
	}
	return c.writeSharpen()
}

func (c *Chain) paramsGroup(label string) (*gpu.TypedBuffer, gpu.BindGroup, error) {
	buf, err := gpu.NewUniformBuffer(c.device, label, GPUParamsSize)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s: %w", label, err)
	}
	group, err := c.device.CreateBindGroup(&gpu.BindGroupDescriptor{
		Label:   label,
		Layout:  c.paramsLayout,
		Entries: []gpu.BindGroupEntry{{Binding: 0, Buffer: buf.Buffer(), Size: GPUParamsSize}},
	})
	if err != nil {
		buf.Release()
		return nil, nil, fmt.Errorf("failed to create %s bind group: %w", label, err)
	}
	return buf, group, nil
}

func (c *Chain) writeBloom() error {
	p := GPUBloomParams{Threshold: c.bloom.Threshold, Knee: c.bloom.Knee, Intensity: c.bloom.Intensity}
	return c.bloomParams.Write(c.device, 0, p.Marshal())
}

func (c *Chain) writeSharpen() error {
	p := GPUSharpenParams{Strength: c.sharpen.Strength}
	return c.sharpenParams.Write(c.device, 0, p.Marshal())
}

// Prepare builds every pass enabled by the current settings for a view count, plus tonemap and copy
// passes for each listed output format, so the first frame does not build pipelines.
//
// Parameters:
//   - viewCount: the camera view count
//   - outputFormats: final color and copy target formats
//
// Returns:
//   - error: the first pipeline build error
func (c *Chain) Prepare(viewCount int, outputFormats ...wgpu.TextureFormat) error {
	viewCount = max(viewCount, 1)
	if _, err := c.lighting(viewCount); err != nil {
		return err
	}
	bloom, sharpen, taa := c.Settings()
	if taa.Enabled {
		if _, err := c.taaProc(viewCount); err != nil {
			return err
		}
	}
	if bloom.Enabled {
		for _, stage := range bloomStages {
			if _, err := c.bloomProc(viewCount, stage); err != nil {
				return err
			}
		}
	}
	if sharpen.Enabled {
		if _, err := c.sharpenProc(viewCount); err != nil {
			return err
		}
	}
	for _, format := range outputFormats {
		if _, err := c.tonemap(viewCount, format); err != nil {
			return err
		}
		if _, err := c.copyProc(viewCount, format); err != nil {
			return err
		}
	}
	return nil
}

// Settings returns the current bloom, sharpen and TAA settings.
func (c *Chain) Settings() (BloomSettings, SharpenSettings, TAASettings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bloom, c.sharpen, c.taa
}

// SetBloom replaces the bloom settings and uploads the new params.
func (c *Chain) SetBloom(s BloomSettings) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bloom = s
	return c.writeBloom()
}

// SetSharpen replaces the sharpen settings and uploads the new params.
func (c *Chain) SetSharpen(s SharpenSettings) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sharpen = s
	return c.writeSharpen()
}

// SetTAA replaces the TAA settings. The sample count and blend are compiled into the shader, so a change
// selects a different pipeline on the next frame.
func (c *Chain) SetTAA(s TAASettings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.taa = s
}

func (c *Chain) layouts(layers int) (input, gbuf gpu.BindGroupLayout, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.inputLayouts[layers]; ok {
		return l, c.gbufLayouts[layers], nil
	}
	input, err = c.device.CreateBindGroupLayout(framebuffer.InputBindGroupLayoutDescriptor(uint32(layers)))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create input layout: %w", err)
	}
	gbuf, err = c.device.CreateBindGroupLayout(framebuffer.GBufferBindGroupLayoutDescriptor(uint32(layers)))
	if err != nil {
		input.Release()
		return nil, nil, fmt.Errorf("failed to create gbuffer layout: %w", err)
	}
	c.inputLayouts[layers] = input
	c.gbufLayouts[layers] = gbuf
	return input, gbuf, nil
}

func (c *Chain) proc(label, key string, build func() pipeline.Pipeline) (Proc, error) {
	p, err := c.cache.Get(key, build)
	if err != nil {
		return Proc{}, err
	}
	return Proc{label: label, pipeline: p}, nil
}

func (c *Chain) lighting(viewCount int) (Proc, error) {
	_, gbuf, err := c.layouts(viewCount)
	if err != nil {
		return Proc{}, err
	}
	key := fmt.Sprintf("deferred_lighting[views=%d]", viewCount)
	return c.proc(LightingPassLabel, key, func() pipeline.Pipeline {
		defs, opts := viewDefines(viewCount)
		layouts := []gpu.BindGroupLayout{c.viewLayout, gbuf, c.lightLayout}
		return fullscreenPipeline(key, shader.DeferredLightingShader, framebuffer.HDRFormat, defs, layouts, opts...)
	})
}

func (c *Chain) taaProc(viewCount int) (Proc, error) {
	input, gbuf, err := c.layouts(viewCount)
	if err != nil {
		return Proc{}, err
	}
	_, _, taa := c.Settings()
	samples := max(taa.SampleCount, 1)
	key := fmt.Sprintf("taa[views=%d,samples=%d,blend=%g]", viewCount, samples, taa.Blend)
	return c.proc(TAAPassLabel, key, func() pipeline.Pipeline {
		defs, opts := viewDefines(viewCount)
		defs["TAA_SAMPLE_COUNT"] = shader.Uint(samples)
		defs["TAA_BLEND"] = shader.Float(taa.Blend)
		layouts := []gpu.BindGroupLayout{c.viewLayout, input, input, gbuf}
		return fullscreenPipeline(key, shader.TAAShader, framebuffer.HDRFormat, defs, layouts, opts...)
	})
}

func (c *Chain) sharpenProc(viewCount int) (Proc, error) {
	input, _, err := c.layouts(viewCount)
	if err != nil {
		return Proc{}, err
	}
	key := fmt.Sprintf("sharpen[views=%d]", viewCount)
	return c.proc(SharpenPassLabel, key, func() pipeline.Pipeline {
		defs, opts := viewDefines(viewCount)
		layouts := []gpu.BindGroupLayout{input, c.paramsLayout}
		return fullscreenPipeline(key, shader.SharpenShader, framebuffer.HDRFormat, defs, layouts, opts...)
	})
}

func (c *Chain) tonemap(viewCount int, format wgpu.TextureFormat) (Proc, error) {
	input, _, err := c.layouts(viewCount)
	if err != nil {
		return Proc{}, err
	}
	key := fmt.Sprintf("tonemap[views=%d,format=%d]", viewCount, format)
	return c.proc(TonemapPassLabel, key, func() pipeline.Pipeline {
		defs, opts := viewDefines(viewCount)
		if !isSRGB(format) {
			defs["APPLY_GAMMA"] = shader.Def()
		}
		return fullscreenPipeline(key, shader.TonemapShader, format, defs, []gpu.BindGroupLayout{input}, opts...)
	})
}

// copyProc reads layer 0 of the final color into a single-layer target, so it never uses multiview.
func (c *Chain) copyProc(layers int, format wgpu.TextureFormat) (Proc, error) {
	input, _, err := c.layouts(layers)
	if err != nil {
		return Proc{}, err
	}
	key := fmt.Sprintf("copy[layers=%d,format=%d]", layers, format)
	return c.proc(CopyPassLabel, key, func() pipeline.Pipeline {
		defs := map[string]shader.Value{}
		if layers > 1 {
			defs["INPUT_ARRAY"] = shader.Def()
		}
		return fullscreenPipeline(key, shader.CopySwapchainShader, format, defs, []gpu.BindGroupLayout{input})
	})
}

// Render records the chain for one camera: deferred lighting, then TAA, bloom and sharpen when enabled,
// then tonemap into the final color and, when a copy view is set, the copy. Every pass that writes the ring
// is followed by a SwapFrame so the next pass reads its output.
//
// Parameters:
//   - encoder: the frame's command encoder
//   - frame: the camera's framebuffer, bind groups and copy target
//
// Returns:
//   - error: if a pipeline cannot be built or a pass is invalid
func (c *Chain) Render(encoder gpu.CommandEncoder, frame Frame) error {
	fb := frame.Framebuffer
	viewCount := max(frame.ViewCount, 1)
	bloom, sharpen, taa := c.Settings()

	lighting, err := c.lighting(viewCount)
	if err != nil {
		return err
	}
	if err := c.drawToOutput(encoder, fb, lighting, frame.ViewGroup, fb.GBufferBindGroup(), frame.LightGroup); err != nil {
		return err
	}

	if taa.Enabled {
		p, err := c.taaProc(viewCount)
		if err != nil {
			return err
		}
		if err := c.drawToOutput(encoder, fb, p, frame.ViewGroup, fb.InputBindGroup(), fb.HistoryBindGroup(), fb.GBufferBindGroup()); err != nil {
			return err
		}
	}

	if bloom.Enabled {
		if err := c.renderBloom(encoder, fb, viewCount); err != nil {
			return err
		}
	}

	if sharpen.Enabled {
		p, err := c.sharpenProc(viewCount)
		if err != nil {
			return err
		}
		if err := c.drawToOutput(encoder, fb, p, fb.InputBindGroup(), c.sharpenGroup); err != nil {
			return err
		}
	}

	tonemap, err := c.tonemap(viewCount, fb.OutputFormat())
	if err != nil {
		return err
	}
	final, err := fb.FinalColor().ColorAttachment()
	if err != nil {
		return err
	}
	if err := tonemap.Draw(encoder, final, fb.InputBindGroup()); err != nil {
		return err
	}

	if frame.CopyView == nil {
		return nil
	}
	copyProc, err := c.copyProc(viewCount, frame.CopyFormat)
	if err != nil {
		return err
	}
	target := gpu.ColorAttachment{
		View:       frame.CopyView,
		LoadOp:     wgpu.LoadOpClear,
		StoreOp:    wgpu.StoreOpStore,
		ClearValue: wgpu.Color{A: 1},
	}
	return copyProc.Draw(encoder, target, fb.FinalBindGroup())
}

// drawToOutput draws into the framebuffer's free ring slot and swaps it in as the current buffer.
func (c *Chain) drawToOutput(encoder gpu.CommandEncoder, fb *framebuffer.Framebuffer, p Proc, groups ...gpu.BindGroup) error {
	targets, err := fb.OutputAttachments()
	if err != nil {
		return err
	}
	if err := p.Draw(encoder, targets[0], groups...); err != nil {
		return err
	}
	fb.SwapFrame()
	return nil
}

type bloomStage int

const (
	bloomBrightness bloomStage = iota
	bloomDownsample
	bloomBlurH
	bloomBlurV
	bloomUpsample
	bloomComposite
)

var bloomStages = []bloomStage{bloomBrightness, bloomDownsample, bloomBlurH, bloomBlurV, bloomUpsample, bloomComposite}

func (s bloomStage) label() string {
	return [...]string{
		BloomBrightnessPassLabel,
		BloomDownsamplePassLabel,
		BloomBlurHPassLabel,
		BloomBlurVPassLabel,
		BloomUpsamplePassLabel,
		BloomCompositePassLabel,
	}[s]
}

func (s bloomStage) defines() map[string]shader.Value {
	switch s {
	case bloomBrightness:
		return map[string]shader.Value{"BRIGHTNESS_PASS": shader.Def()}
	case bloomDownsample:
		return map[string]shader.Value{"DOWNSAMPLE_PASS": shader.Def()}
	case bloomBlurH:
		return map[string]shader.Value{"BLUR_PASS": shader.Def(), "BLUR_HORIZONTAL": shader.Def()}
	case bloomBlurV:
		return map[string]shader.Value{"BLUR_PASS": shader.Def()}
	case bloomUpsample:
		return map[string]shader.Value{"UPSAMPLE_PASS": shader.Def()}
	default:
		return map[string]shader.Value{"COMPOSITE_PASS": shader.Def()}
	}
}

// additiveBlend accumulates upsampled levels onto the level above.
var additiveBlend = &wgpu.BlendState{
	Color: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorOne, DstFactor: wgpu.BlendFactorOne, Operation: wgpu.BlendOperationAdd},
	Alpha: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorOne, DstFactor: wgpu.BlendFactorOne, Operation: wgpu.BlendOperationAdd},
}

func (c *Chain) bloomProc(viewCount int, stage bloomStage) (Proc, error) {
	input, _, err := c.layouts(viewCount)
	if err != nil {
		return Proc{}, err
	}
	key := fmt.Sprintf("bloom/%d[views=%d]", stage, viewCount)
	return c.proc(stage.label(), key, func() pipeline.Pipeline {
		defs, opts := viewDefines(viewCount)
		maps.Copy(defs, stage.defines())
		layouts := []gpu.BindGroupLayout{input, c.paramsLayout}
		if stage == bloomComposite {
			layouts = append(layouts, input)
		}
		if stage == bloomUpsample {
			opts = append(opts, pipeline.WithBlendEnabled(true), pipeline.WithBlendState(additiveBlend))
		}
		return fullscreenPipeline(key, shader.BloomShader, framebuffer.HDRFormat, defs, layouts, opts...)
	})
}

// renderBloom extracts bright pixels into the first bloom level, downsamples through the chain, blurs
// each level, accumulates back up with additive blending and composites the result over the input.
func (c *Chain) renderBloom(encoder gpu.CommandEncoder, fb *framebuffer.Framebuffer, viewCount int) error {
	procs := make(map[bloomStage]Proc, len(bloomStages))
	for _, stage := range bloomStages {
		p, err := c.bloomProc(viewCount, stage)
		if err != nil {
			return err
		}
		procs[stage] = p
	}
	levels := fb.BloomLevelCount()
	if levels == 0 {
		return nil
	}
	down0, err := fb.BloomDownsampleTarget(0).ColorAttachment()
	if err != nil {
		return err
	}
	if err := procs[bloomBrightness].Draw(encoder, down0, fb.InputBindGroup(), c.bloomGroup); err != nil {
		return err
	}

	for i := 1; i < levels; i++ {
		target, err := fb.BloomDownsampleTarget(i).ColorAttachment()
		if err != nil {
			return err
		}
		label := fmt.Sprintf("%s %d", BloomDownsamplePassLabel, i)
		if err := procs[bloomDownsample].DrawLabeled(label, encoder, target, fb.BloomDownsampleBindGroup(i-1), c.bloomGroup); err != nil {
			return err
		}
	}

	for i := range levels {
		blur, err := fb.BloomBlurTarget(i).ColorAttachment()
		if err != nil {
			return err
		}
		label := fmt.Sprintf("%s %d", BloomBlurHPassLabel, i)
		if err := procs[bloomBlurH].DrawLabeled(label, encoder, blur, fb.BloomDownsampleBindGroup(i), c.bloomGroup); err != nil {
			return err
		}
		down, err := fb.BloomDownsampleTarget(i).ColorAttachment()
		if err != nil {
			return err
		}
		label = fmt.Sprintf("%s %d", BloomBlurVPassLabel, i)
		if err := procs[bloomBlurV].DrawLabeled(label, encoder, down, fb.BloomBlurBindGroup(i), c.bloomGroup); err != nil {
			return err
		}
	}

	for i := levels - 1; i >= 1; i-- {
		target, err := fb.BloomDownsampleTarget(i - 1).ColorAttachment()
		if err != nil {
			return err
		}
		target.LoadOp = wgpu.LoadOpLoad
		label := fmt.Sprintf("%s %d", BloomUpsamplePassLabel, i)
		if err := procs[bloomUpsample].DrawLabeled(label, encoder, target, fb.BloomDownsampleBindGroup(i), c.bloomGroup); err != nil {
			return err
		}
	}

	return c.drawToOutput(encoder, fb, procs[bloomComposite], fb.InputBindGroup(), c.bloomGroup, fb.BloomDownsampleBindGroup(0))
}

// Release frees every pipeline, layout and params buffer.
func (c *Chain) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cache != nil {
		c.cache.Release()
	}
	for _, g := range []gpu.BindGroup{c.bloomGroup, c.sharpenGroup} {
		if g != nil {
			g.Release()
		}
	}
	for _, b := range []*gpu.TypedBuffer{c.bloomParams, c.sharpenParams} {
		if b != nil {
			b.Release()
		}
	}
	if c.paramsLayout != nil {
		c.paramsLayout.Release()
	}
	for layers, l := range c.inputLayouts {
		l.Release()
		c.gbufLayouts[layers].Release()
	}
	c.inputLayouts = map[int]gpu.BindGroupLayout{}
	c.gbufLayouts = map[int]gpu.BindGroupLayout{}
}

// RebuildPipelines rebuilds every cached pass from the current library sources.
func (c *Chain) RebuildPipelines() error {
	return c.cache.RebuildAll()
}
