package gpu

import (
	"errors"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// wgpuSurface is the implementation of the Surface interface for a wgpu swapchain.
type wgpuSurface struct {
	mu          *sync.Mutex
	surface     *wgpu.Surface
	adapter     *wgpu.Adapter
	device      *wgpu.Device
	presentMode wgpu.PresentMode
	format      wgpu.TextureFormat

	frameTexture *wgpu.Texture
	frameView    *wgpu.TextureView
}

var _ Surface = &wgpuSurface{}

func (s *wgpuSurface) Configure(width, height uint32) error {
	if width == 0 || height == 0 {
		return errors.New("surface size must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	capabilities := s.surface.GetCapabilities(s.adapter)
	if len(capabilities.Formats) == 0 {
		return errors.New("surface reports no supported formats")
	}
	s.format = capabilities.Formats[0]

	s.surface.Configure(s.adapter, s.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      s.format,
		Width:       width,
		Height:      height,
		PresentMode: s.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	return nil
}

func (s *wgpuSurface) Format() wgpu.TextureFormat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

func (s *wgpuSurface) Acquire() (TextureView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tex, err := s.surface.GetCurrentTexture()
	if err != nil {
		return nil, err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}
	s.frameTexture = tex
	s.frameView = view
	return &wgpuTextureView{view}, nil
}

func (s *wgpuSurface) Present() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frameTexture == nil {
		return
	}
	s.surface.Present()
	s.releaseFrame()
}

func (s *wgpuSurface) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frameTexture == nil {
		return
	}
	s.releaseFrame()
}

func (s *wgpuSurface) releaseFrame() {
	s.frameView.Release()
	s.frameTexture.Release()
	s.frameView = nil
	s.frameTexture = nil
}
