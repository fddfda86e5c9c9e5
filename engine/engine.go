// Package engine drives frames: it owns the device, the surface and the camera, light and render
// systems, and runs acquire, record, submit and present once per window update.
package engine

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-xr/common"
	"github.com/Carmen-Shannon/oxy-xr/engine/assets"
	"github.com/Carmen-Shannon/oxy-xr/engine/camera"
	"github.com/Carmen-Shannon/oxy-xr/engine/config"
	"github.com/Carmen-Shannon/oxy-xr/engine/gpu"
	"github.com/Carmen-Shannon/oxy-xr/engine/light"
	"github.com/Carmen-Shannon/oxy-xr/engine/profiler"
	"github.com/Carmen-Shannon/oxy-xr/engine/renderer"
	"github.com/Carmen-Shannon/oxy-xr/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-xr/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/google/uuid"
)

// reloadQueueSize bounds the shader changes buffered between frames.
const reloadQueueSize = 64

var (
	// ErrAcquire is returned when the surface has no image for this frame.
	ErrAcquire = errors.New("failed to acquire surface image")
	// ErrNoWindow is returned by Run on an engine built without a window.
	ErrNoWindow = errors.New("engine has no window")
)

type shaderChange struct {
	name   string
	source string
}

type engine struct {
	logger common.Logger
	cfg    config.RendererConfig

	window  window.Window
	device  gpu.Device
	surface gpu.Surface
	extent  common.Extent

	library  shader.Library
	cameras  camera.CameraSystem
	lights   light.LightSystem
	renderer renderer.RenderSystem

	watcher *assets.ShaderWatcher
	reloads chan shaderChange

	profiler      *profiler.Profiler
	frameCallback func(deltaTime float32)
	presentCamera uuid.UUID

	tickRateChannel chan time.Duration
	engineTickRate  time.Duration
	tickCallback    func(deltaTime float32)
	renderLimit     time.Duration
	lastRender      time.Time

	running     atomic.Bool
	wg          sync.WaitGroup
	quitChannel chan struct{}
	quitOnce    sync.Once
}

// Engine owns every rendering system and drives one frame per window update.
type Engine interface {
	// Window returns the window, or nil for a headless engine.
	Window() window.Window

	// Device returns the GPU device.
	Device() gpu.Device

	// Library returns the shader library.
	Library() shader.Library

	// Cameras returns the camera system.
	Cameras() camera.CameraSystem

	// Lights returns the light system.
	Lights() light.LightSystem

	// Renderer returns the render system.
	Renderer() renderer.RenderSystem

	// Config returns the renderer config the engine was built with.
	Config() config.RendererConfig

	// AddCamera adds a camera sized to the surface and rendering to the surface format. The first
	// camera added presents to the surface.
	//
	// Parameters:
	//   - infos: per-view projection settings
	//   - transforms: per-view eye transforms
	//
	// Returns:
	//   - uuid.UUID: the camera id
	//   - error: if the camera system rejects the views
	AddCamera(infos []camera.CameraInfo, transforms []common.Transform) (uuid.UUID, error)

	// SetPresentCamera selects the camera copied to the surface. Other cameras render off screen.
	//
	// Parameters:
	//   - id: the camera id
	//
	// Returns:
	//   - error: camera.ErrCameraNotFound if the id is unknown
	SetPresentCamera(id uuid.UUID) error

	// SetFrameCallback registers the function called on the render thread before each frame is
	// recorded. Feed instances and move lights and cameras here.
	SetFrameCallback(callback func(deltaTime float32))

	// SetTickCallback registers the function called at the tick rate on the tick goroutine.
	SetTickCallback(callback func(deltaTime float32))

	// SetTickRate sets the tick rate in ticks per second. Values <= 0 use 60.
	SetTickRate(fps float64)

	// RenderFrame records, submits and presents one frame. A minimized window skips the frame.
	//
	// Parameters:
	//   - deltaTime: seconds since the previous frame, passed to the frame callback
	//
	// Returns:
	//   - error: ErrAcquire, or a recording error
	RenderFrame(deltaTime float32) error

	// Resize reconfigures the surface and resizes every camera. A zero size pauses rendering.
	//
	// Parameters:
	//   - width, height: the new size in pixels
	//
	// Returns:
	//   - error: if the surface or a framebuffer cannot be resized
	Resize(width, height int) error

	// Run drives frames from the window's message loop and blocks until the window closes.
	//
	// Returns:
	//   - error: ErrNoWindow for a headless engine
	Run() error

	// Quit stops the tick goroutine and closes the window at the next update. Safe to call more
	// than once.
	Quit()

	// Release stops the shader watcher and frees every system.
	Release()
}

var _ Engine = &engine{}

// NewEngine builds the engine. Without WithWindow or WithHeadless it opens a window and creates a
// wgpu device presenting to it.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the engine
//   - error: config.ErrInvalidConfig, or a device, system or pipeline construction error
func NewEngine(options ...EngineBuilderOption) (Engine, error) {
	e := &engine{
		cfg:             config.Default(),
		reloads:         make(chan shaderChange, reloadQueueSize),
		tickRateChannel: make(chan time.Duration, 1),
		engineTickRate:  time.Second / 60,
		quitChannel:     make(chan struct{}),
	}
	for _, opt := range options {
		opt(e)
	}
	if e.logger == nil {
		e.logger = common.NewDefaultLogger("oxy-xr", e.cfg.Debug)
	}
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	if err := e.init(); err != nil {
		e.Release()
		return nil, err
	}
	return e, nil
}

func (e *engine) init() error {
	if e.device == nil {
		if e.window == nil {
			e.window = window.NewWindow(window.WithTitle("oxy-xr"))
		}
		device, surface, err := gpu.NewWGPUDevice(e.window.SurfaceDescriptor(), gpu.WithPresentMode(e.cfg.PresentMode.WGPU()))
		if err != nil {
			return err
		}
		e.device, e.surface = device, surface
	}
	if e.window != nil {
		e.extent = e.window.Extent()
	}
	if e.surface != nil && !e.extent.IsZero() {
		if err := e.surface.Configure(e.extent.Width, e.extent.Height); err != nil {
			return fmt.Errorf("failed to configure surface: %w", err)
		}
	}

	var err error
	if e.library, err = shader.NewLibrary(shader.WithLibraryLogger(e.logger)); err != nil {
		return err
	}
	if e.cfg.ShaderDir != "" {
		if err := e.loadShaderDir(e.cfg.ShaderDir); err != nil {
			return err
		}
	}

	if e.cameras, err = camera.NewCameraSystem(e.device, camera.WithLogger(e.logger), camera.WithRingSize(e.cfg.RingSize)); err != nil {
		return err
	}
	if e.lights, err = light.NewLightSystem(e.device,
		light.WithShadowQuality(e.cfg.ShadowQuality),
		light.WithMaxLights(e.cfg.MaxLights),
		light.WithLogger(e.logger),
	); err != nil {
		return err
	}
	if e.renderer, err = renderer.NewRenderSystem(e.device, e.library, e.cameras, e.lights,
		renderer.WithConfig(e.cfg),
		renderer.WithLogger(e.logger),
	); err != nil {
		return err
	}

	if e.window != nil {
		e.window.SetResizeCallback(func(width, height int) {
			if err := e.Resize(width, height); err != nil {
				e.logger.Errorf("resize to %dx%d: %v", width, height, err)
			}
		})
		e.window.SetUpdateCallback(e.update)
	}
	return nil
}

// loadShaderDir overrides the embedded sources with the files in dir and watches it for changes.
func (e *engine) loadShaderDir(dir string) error {
	sources, err := assets.LoadShaderDir(os.DirFS(dir), ".")
	if err != nil {
		return err
	}
	for name, source := range sources {
		e.library.Override(name, source)
	}
	e.logger.Infof("loaded %d shader modules from %s", len(sources), dir)

	e.watcher, err = assets.NewShaderWatcher(dir, e.queueReload, e.logger)
	return err
}

// queueReload runs on the watcher goroutine. Changes are applied on the render thread.
func (e *engine) queueReload(name, source string) {
	select {
	case e.reloads <- shaderChange{name: name, source: source}:
	default:
		e.logger.Warnf("shader reload queue full, dropping change to %s", name)
	}
}

func (e *engine) applyReloads() {
	for {
		select {
		case c := <-e.reloads:
			e.library.Override(c.name, c.source)
		default:
			return
		}
	}
}

func (e *engine) Window() window.Window           { return e.window }
func (e *engine) Device() gpu.Device              { return e.device }
func (e *engine) Library() shader.Library         { return e.library }
func (e *engine) Cameras() camera.CameraSystem    { return e.cameras }
func (e *engine) Lights() light.LightSystem       { return e.lights }
func (e *engine) Renderer() renderer.RenderSystem { return e.renderer }
func (e *engine) Config() config.RendererConfig   { return e.cfg }

func (e *engine) surfaceFormat() wgpu.TextureFormat {
	if e.surface == nil {
		return wgpu.TextureFormatBGRA8Unorm
	}
	return e.surface.Format()
}

func (e *engine) AddCamera(infos []camera.CameraInfo, transforms []common.Transform) (uuid.UUID, error) {
	id, err := e.cameras.AddCamera(infos, transforms, e.extent, e.surfaceFormat())
	if err != nil {
		return uuid.Nil, err
	}
	if e.presentCamera == uuid.Nil {
		e.presentCamera = id
	}
	return id, nil
}

func (e *engine) SetPresentCamera(id uuid.UUID) error {
	if _, err := e.cameras.Camera(id); err != nil {
		return err
	}
	e.presentCamera = id
	return nil
}

func (e *engine) SetFrameCallback(callback func(deltaTime float32)) {
	e.frameCallback = callback
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	rate := frameInterval(fps)
	if !e.running.Load() {
		e.engineTickRate = rate
		return
	}
	// Replace any pending update.
	select {
	case e.tickRateChannel <- rate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- rate
	}
}

// frameInterval converts a positive rate in frames per second to a period.
func frameInterval(fps float64) time.Duration {
	return time.Duration(float64(time.Second) / fps)
}

func (e *engine) RenderFrame(deltaTime float32) error {
	e.applyReloads()
	if e.extent.IsZero() {
		return nil
	}

	var target gpu.TextureView
	if e.surface != nil {
		view, err := e.surface.Acquire()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrAcquire, err)
		}
		target = view
		// No-op once presented; releases the image on every failed path.
		defer e.surface.Discard()
	}

	if e.frameCallback != nil {
		e.frameCallback(deltaTime)
	}

	if err := e.renderer.OnPreRender(); err != nil {
		return err
	}
	err := e.renderCameras(target)
	if err = errors.Join(err, e.renderer.OnPostRender()); err != nil {
		return err
	}
	if e.surface != nil {
		e.surface.Present()
	}
	if e.profiler != nil {
		e.profiler.Tick()
	}
	return nil
}

func (e *engine) renderCameras(target gpu.TextureView) error {
	for _, id := range e.cameras.CameraIDs() {
		cam, err := e.cameras.Camera(id)
		if err != nil {
			return err
		}
		if id == e.presentCamera && target != nil {
			cam.SetCopyTarget(target, e.surfaceFormat())
		} else {
			cam.SetCopyTarget(nil, wgpu.TextureFormatUndefined)
		}

		cam.Framebuffer().BeginFrame()
		cam.UpdateViewParams()
		if err := cam.UpdateUniform(e.device); err != nil {
			return err
		}
		if err := e.renderer.OnRender(cam); err != nil {
			return err
		}
	}
	return nil
}

func (e *engine) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		e.extent = common.Extent{}
		return nil
	}
	e.extent = common.NewExtent(uint32(width), uint32(height))
	if e.surface != nil {
		if err := e.surface.Configure(e.extent.Width, e.extent.Height); err != nil {
			return fmt.Errorf("failed to configure surface: %w", err)
		}
	}
	var errs []error
	for _, id := range e.cameras.CameraIDs() {
		cam, err := e.cameras.Camera(id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		errs = append(errs, cam.Resize(e.extent.Width, e.extent.Height))
	}
	return errors.Join(errs...)
}

func (e *engine) Run() error {
	if e.window == nil {
		return ErrNoWindow
	}
	e.running.Store(true)
	e.lastRender = time.Now()
	e.wg.Add(1)
	go e.handleTicks()

	e.window.ProcessMessages()

	e.Quit()
	e.wg.Wait()
	if err := e.window.Close(); err != nil && !errors.Is(err, window.ErrNotInitialized) {
		return err
	}
	return nil
}

// update runs once per window message loop iteration.
func (e *engine) update() {
	select {
	case <-e.quitChannel:
		if err := e.window.Close(); err != nil {
			e.logger.Errorf("close window: %v", err)
		}
		return
	default:
	}

	now := time.Now()
	dt := float32(now.Sub(e.lastRender).Seconds())
	e.lastRender = now

	if err := e.RenderFrame(dt); err != nil {
		e.logger.Errorf("skipping frame: %v", err)
	}

	if e.renderLimit > 0 {
		if remaining := e.renderLimit - time.Since(now); remaining > 0 {
			time.Sleep(remaining)
		}
	}
}

// handleTicks fires the tick callback at the tick rate until Quit.
func (e *engine) handleTicks() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()
	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case now := <-ticker.C:
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now
			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case rate := <-e.tickRateChannel:
			ticker.Reset(rate)
		}
	}
}

func (e *engine) Quit() {
	e.quitOnce.Do(func() {
		e.running.Store(false)
		close(e.quitChannel)
	})
}

func (e *engine) Release() {
	if e.watcher != nil {
		if err := e.watcher.Close(); err != nil {
			e.logger.Errorf("close shader watcher: %v", err)
		}
		e.watcher = nil
	}
	if e.renderer != nil {
		e.renderer.Release()
	}
	if e.lights != nil {
		e.lights.Release()
	}
	if e.cameras != nil {
		e.cameras.Release()
	}
}
