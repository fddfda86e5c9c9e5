package engine

import (
	"github.com/Carmen-Shannon/oxy-xr/common"
	"github.com/Carmen-Shannon/oxy-xr/engine/config"
	"github.com/Carmen-Shannon/oxy-xr/engine/gpu"
	"github.com/Carmen-Shannon/oxy-xr/engine/profiler"
	"github.com/Carmen-Shannon/oxy-xr/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
type EngineBuilderOption func(*engine)

// WithWindow sets a pre-configured window instead of letting the engine open one.
//
// Parameters:
//   - w: the window
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithHeadless renders to a caller-provided device and surface without a window. The surface may
// be nil, in which case no camera presents.
//
// Parameters:
//   - device: the device to render with
//   - surface: the surface to present to, or nil
//   - extent: the render size in pixels
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithHeadless(device gpu.Device, surface gpu.Surface, extent common.Extent) EngineBuilderOption {
	return func(e *engine) {
		e.device = device
		e.surface = surface
		e.extent = extent
	}
}

// WithConfig sets the renderer config. It is validated by NewEngine.
func WithConfig(cfg config.RendererConfig) EngineBuilderOption {
	return func(e *engine) {
		e.cfg = cfg
	}
}

// WithLogger sets the logger handed to every system. Defaults to a stdout logger at the config's
// debug level.
func WithLogger(logger common.Logger) EngineBuilderOption {
	return func(e *engine) {
		e.logger = logger
	}
}

// WithProfiler ticks p after every presented frame.
func WithProfiler(p *profiler.Profiler) EngineBuilderOption {
	return func(e *engine) {
		e.profiler = p
	}
}

// WithFrameCallback registers the function called on the render thread before each frame.
//
// Parameters:
//   - callback: receives the delta time in seconds
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithFrameCallback(callback func(deltaTime float32)) EngineBuilderOption {
	return func(e *engine) {
		e.frameCallback = callback
	}
}

// WithTickRate sets the tick rate in ticks per second. Values <= 0 use 60.
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			fps = 60
		}
		e.engineTickRate = frameInterval(fps)
	}
}

// WithTickCallback registers the function called at the tick rate on the tick goroutine.
func WithTickCallback(callback func(deltaTime float32)) EngineBuilderOption {
	return func(e *engine) {
		e.tickCallback = callback
	}
}

// WithRenderFrameLimit caps the frame rate. Pass 0 to uncap (default).
//
// Parameters:
//   - fps: maximum frames per second
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			e.renderLimit = 0
			return
		}
		e.renderLimit = frameInterval(fps)
	}
}
